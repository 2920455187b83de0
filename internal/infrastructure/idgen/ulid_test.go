package idgen

import (
	"testing"

	"github.com/oklog/ulid/v2"
)

func TestULIDGenerator(t *testing.T) {
	gen := NewULIDGenerator()

	first := gen.Generate()
	second := gen.Generate()

	if _, err := ulid.Parse(first); err != nil {
		t.Fatalf("expected valid ULID, got %q: %v", first, err)
	}
	if first == second {
		t.Fatalf("expected unique IDs, got %q twice", first)
	}
	if second < first {
		t.Fatalf("expected monotonic ordering, got %q before %q", first, second)
	}
}
