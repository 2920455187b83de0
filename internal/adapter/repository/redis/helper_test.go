package redis

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
)

// newTestStore returns a ProcessedStore backed by a fresh miniredis server.
// The client is closed when the test ends; the server is returned so tests
// can inspect keys, fast-forward TTLs or shut it down.
func newTestStore(t *testing.T) (*ProcessedStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewProcessedStore(client), mr
}
