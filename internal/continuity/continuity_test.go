package continuity

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	got, err := s.Get(ctx, "sess-1")
	if err != nil || got != "" {
		t.Fatalf("Get unknown = %q, %v", got, err)
	}

	if err := s.Put(ctx, "sess-1", "resp_1"); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "sess-1")
	if err != nil || got != "resp_1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	if err := s.Put(ctx, "sess-1", "resp_2"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Get(ctx, "sess-1")
	if got != "resp_2" {
		t.Errorf("Get after overwrite = %q", got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	now := time.Now()
	s.clock = func() time.Time { return now }
	if err := s.Put(ctx, "sess-1", "resp_1"); err != nil {
		t.Fatal(err)
	}

	s.clock = func() time.Time { return now.Add(2 * time.Minute) }
	got, err := s.Get(ctx, "sess-1")
	if err != nil || got != "" {
		t.Errorf("Get expired = %q, %v", got, err)
	}
}

func TestMemoryStorePrune(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	now := time.Now()
	s.clock = func() time.Time { return now }
	s.Put(ctx, "old", "resp_1")

	s.clock = func() time.Time { return now.Add(30 * time.Second) }
	s.Put(ctx, "fresh", "resp_2")

	s.clock = func() time.Time { return now.Add(70 * time.Second) }
	if removed := s.Prune(); removed != 1 {
		t.Errorf("Prune removed %d, want 1", removed)
	}
	if got, _ := s.Get(ctx, "fresh"); got != "resp_2" {
		t.Errorf("fresh = %q", got)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	got, err := s.Get(ctx, "sess-1")
	if err != nil || got != "" {
		t.Fatalf("Get unknown = %q, %v", got, err)
	}

	if err := s.Put(ctx, "sess-1", "resp_1"); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "sess-1")
	if err != nil || got != "resp_1" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	mr.FastForward(2 * time.Minute)
	got, err = s.Get(ctx, "sess-1")
	if err != nil || got != "" {
		t.Errorf("Get expired = %q, %v", got, err)
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	if _, err := NewRedisStore("127.0.0.1:1", time.Minute); err == nil {
		t.Fatal("expected connection error")
	}
}
