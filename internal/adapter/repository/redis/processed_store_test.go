package redis

import (
	"context"
	"testing"
	"time"
)

func TestProcessedStore_AcquireOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "bucket/dep-1.event", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	ok, err = store.Acquire(ctx, "bucket/dep-1.event", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected second acquire to fail, got ok=%v err=%v", ok, err)
	}

	status, err := store.Status(ctx, "bucket/dep-1.event")
	if err != nil || status != markerProcessing {
		t.Fatalf("expected in-flight marker, got %q err=%v", status, err)
	}
}

func TestProcessedStore_ReleaseAllowsRetry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := store.Release(ctx, "k"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if mr.Exists(store.prefix + "k") {
		t.Fatalf("expected key to be removed")
	}

	ok, err := store.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected reacquire to succeed, got ok=%v err=%v", ok, err)
	}

	if err := store.Release(ctx, "never-acquired"); err != nil {
		t.Fatalf("release of missing key failed: %v", err)
	}
}

func TestProcessedStore_CompleteIsSticky(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := store.Complete(ctx, "k", time.Hour); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := store.Release(ctx, "k"); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	val, err := mr.Get(store.prefix + "k")
	if err != nil || val != markerDone {
		t.Fatalf("expected done marker to survive release, got %q err=%v", val, err)
	}
	if ttl := mr.TTL(store.prefix + "k"); ttl != time.Hour {
		t.Fatalf("expected done TTL of 1h, got %v", ttl)
	}

	ok, err := store.Acquire(ctx, "k", time.Minute)
	if err != nil || ok {
		t.Fatalf("expected acquire after completion to fail, got ok=%v err=%v", ok, err)
	}
}

func TestProcessedStore_InFlightExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "k", time.Minute); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	ok, err := store.Acquire(ctx, "k", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected acquire after expiry to succeed, got ok=%v err=%v", ok, err)
	}
}

func TestProcessedStore_ServerDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	if _, err := store.Acquire(context.Background(), "k", time.Minute); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}
