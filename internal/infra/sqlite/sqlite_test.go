package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crossroads-network/crossroads/internal/infra/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "k", "v1", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "k", "v2", 0); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	v, err := s.Get(ctx, "k")
	if err != nil || v != "v2" {
		t.Errorf("Get = %q, %v, want \"v2\", nil", v, err)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("deleted Get err = %v, want ErrNotFound", err)
	}
}

func TestSetNX_OnlyFirstWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	won, err := s.SetNX(ctx, "claim", "first", 0)
	if err != nil || !won {
		t.Fatalf("first SetNX = %v, %v", won, err)
	}
	won, err = s.SetNX(ctx, "claim", "second", 0)
	if err != nil || won {
		t.Fatalf("second SetNX = %v, %v, want loss", won, err)
	}
	v, _ := s.Get(ctx, "claim")
	if v != "first" {
		t.Errorf("value = %q, want first writer's value", v)
	}
}

func TestSetNX_ExpiredKeyReclaimable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	s.SetClock(func() time.Time { return current })

	if won, _ := s.SetNX(ctx, "k", "old", time.Minute); !won {
		t.Fatal("initial claim lost")
	}
	current = base.Add(2 * time.Minute)

	won, err := s.SetNX(ctx, "k", "new", 0)
	if err != nil || !won {
		t.Fatalf("SetNX on expired key = %v, %v, want win", won, err)
	}
	v, _ := s.Get(ctx, "k")
	if v != "new" {
		t.Errorf("value = %q, want \"new\"", v)
	}
}

func TestGet_ExpiresWithTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	s.SetClock(func() time.Time { return current })

	s.Set(ctx, "ephemeral", "v", time.Minute)
	if _, err := s.Get(ctx, "ephemeral"); err != nil {
		t.Fatalf("value missing before expiry: %v", err)
	}
	current = base.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "ephemeral"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired Get err = %v, want ErrNotFound", err)
	}
}

func TestHashIncrBy_Accumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := s.HashIncrBy(ctx, "tally", "a", 1); err != nil {
			t.Fatalf("HashIncrBy failed: %v", err)
		}
	}
	n, err := s.HashIncrBy(ctx, "tally", "a", 5)
	if err != nil || n != 15 {
		t.Errorf("HashIncrBy = %d, %v, want 15, nil", n, err)
	}

	v, _ := s.HashGet(ctx, "tally", "a")
	if v != "15" {
		t.Errorf("stored counter = %s, want 15", v)
	}
}

func TestHashGetAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.HashSet(ctx, "h", "f1", "v1")
	s.HashSet(ctx, "h", "f2", "v2")
	s.HashSet(ctx, "h", "f1", "v1b") // overwrite

	all, err := s.HashGetAll(ctx, "h")
	if err != nil {
		t.Fatalf("HashGetAll failed: %v", err)
	}
	if len(all) != 2 || all["f1"] != "v1b" || all["f2"] != "v2" {
		t.Errorf("HashGetAll = %v", all)
	}
}

func TestIncrBy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if n, err := s.IncrBy(ctx, "c", 3); err != nil || n != 3 {
		t.Fatalf("IncrBy = %d, %v, want 3, nil", n, err)
	}
	if n, _ := s.IncrBy(ctx, "c", -1); n != 2 {
		t.Errorf("IncrBy = %d, want 2", n)
	}
}

func TestSortedSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SortedSetAdd(ctx, "lb", "alice", 10)
	s.SortedSetAdd(ctx, "lb", "bob", 30)
	s.SortedSetAdd(ctx, "lb", "carol", 20)

	for member, want := range map[string]int64{"bob": 0, "carol": 1, "alice": 2} {
		rank, err := s.SortedSetRank(ctx, "lb", member)
		if err != nil || rank != want {
			t.Errorf("rank(%s) = %d, %v, want %d", member, rank, err, want)
		}
	}

	if _, err := s.SortedSetRank(ctx, "lb", "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rank of absent member err = %v, want ErrNotFound", err)
	}

	card, _ := s.SortedSetCard(ctx, "lb")
	if card != 3 {
		t.Errorf("card = %d, want 3", card)
	}

	s.SortedSetRemove(ctx, "lb", "bob")
	if _, err := s.SortedSetScore(ctx, "lb", "bob"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("removed member score err = %v, want ErrNotFound", err)
	}
}
