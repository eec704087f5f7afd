package session

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a mutable clock for driving TTL expiry deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(clock *fakeClock) *Store {
	return NewStore(
		WithClock(clock.Now),
		WithTTLs(2*time.Minute, 5*time.Minute),
	)
}

func TestCreateReplacesExistingSession(t *testing.T) {
	t.Parallel()

	s := newTestStore(newFakeClock())
	s.Create("u1", "ch1", "", KindTask, TaskPayload{})
	replaced := s.Create("u1", "ch2", "", KindFailure, FailurePayload{})

	if replaced.Kind != KindFailure {
		t.Errorf("Kind = %q, want replacement kind", replaced.Kind)
	}
	got, ok := s.Get("u1")
	if !ok || got.Kind != KindFailure || got.ChannelID != "ch2" {
		t.Fatalf("Get after replace = %+v, %v", got, ok)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1 (at most one session per user)", s.Len())
	}
}

func TestGetLazyExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := newTestStore(clock)
	s.Create("u1", "ch", "", KindTask, TaskPayload{})

	clock.Advance(5*time.Minute - time.Second)
	if _, ok := s.Get("u1"); !ok {
		t.Fatal("session expired before its TTL")
	}

	// Expiry is inclusive: now == expiresAt means gone.
	clock.Advance(time.Second)
	if _, ok := s.Get("u1"); ok {
		t.Fatal("session still live at its exact expiry instant")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after lazy deletion", s.Len())
	}
}

func TestUpdateStateChangeResetsTTL(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := newTestStore(clock)
	s.Create("u1", "ch", "", KindTask, TaskPayload{})

	// Into processing: the long TTL applies from now.
	clock.Advance(time.Minute)
	got, ok := s.Update("u1", func(sess *Session) { sess.State = StateProcessing })
	if !ok {
		t.Fatal("Update on live session failed")
	}
	if want := clock.Now().Add(5 * time.Minute); !got.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v (waiting TTL from now)", got.ExpiresAt, want)
	}

	// Back to an interactive state: the short TTL applies from now.
	clock.Advance(4 * time.Minute)
	got, ok = s.Update("u1", func(sess *Session) { sess.State = StateAwaitingDisambiguation })
	if !ok {
		t.Fatal("Update on live session failed")
	}
	if want := clock.Now().Add(2 * time.Minute); !got.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v (interactive TTL from now)", got.ExpiresAt, want)
	}
}

func TestUpdatePayloadOnlyKeepsExpiry(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := newTestStore(clock)
	created := s.Create("u1", "ch", "", KindFailure, FailurePayload{})

	clock.Advance(30 * time.Second)
	got, ok := s.Update("u1", func(sess *Session) {
		p := sess.Payload.(FailurePayload)
		p.Transcript = "se rompió la prensa"
		sess.Payload = p
	})
	if !ok {
		t.Fatal("Update on live session failed")
	}
	if !got.ExpiresAt.Equal(created.ExpiresAt) {
		t.Errorf("payload-only update moved expiry: %v != %v", got.ExpiresAt, created.ExpiresAt)
	}
	if got.Payload.(FailurePayload).Transcript == "" {
		t.Error("payload mutation was lost")
	}
}

func TestUpdateMissingOrExpiredIsNoop(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := newTestStore(clock)

	if _, ok := s.Update("ghost", func(*Session) {}); ok {
		t.Error("Update on missing key reported success")
	}

	s.Create("u1", "ch", "", KindTask, TaskPayload{})
	clock.Advance(6 * time.Minute)
	if _, ok := s.Update("u1", func(*Session) {}); ok {
		t.Error("Update on expired session reported success")
	}
}

func TestUpdateRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	s := newTestStore(newFakeClock())
	s.Create("u1", "ch", "", KindTask, TaskPayload{})

	// There is no direct arc from awaiting input to a clarification state.
	if _, ok := s.Update("u1", func(sess *Session) {
		sess.State = StateAwaitingDisambiguation
	}); ok {
		t.Error("illegal transition reported success")
	}
	got, ok := s.Get("u1")
	if !ok || got.State != StateAwaitingInput {
		t.Fatalf("session after rejected update = %+v, %v, want untouched", got, ok)
	}

	// The clarification loop is legal in both directions.
	s.Update("u1", func(sess *Session) { sess.State = StateProcessing })
	s.Update("u1", func(sess *Session) { sess.State = StateAwaitingNewEntityName })
	if _, ok := s.Update("u1", func(sess *Session) {
		sess.State = StateAwaitingDisambiguation
	}); !ok {
		t.Error("retyped-name ambiguity transition was rejected")
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := newTestStore(newFakeClock())
	s.Create("u1", "ch", "", KindTask, TaskPayload{})

	if !s.Delete("u1") {
		t.Error("Delete on live session returned false")
	}
	if s.Delete("u1") {
		t.Error("Delete on missing key returned true")
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s := newTestStore(clock)

	s.Create("old", "ch", "", KindTask, TaskPayload{})
	clock.Advance(4 * time.Minute)
	s.Create("fresh", "ch", "", KindTask, TaskPayload{})
	clock.Advance(time.Minute) // "old" is now at its 5m expiry

	if n := s.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}
	if _, ok := s.Get("old"); ok {
		t.Error("expired session survived the sweep")
	}
	if _, ok := s.Get("fresh"); !ok {
		t.Error("live session was swept")
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	t.Parallel()

	s := newTestStore(newFakeClock())
	snap := s.Create("u1", "ch", "", KindTask, TaskPayload{})
	snap.State = StateCancelled

	got, ok := s.Get("u1")
	if !ok || got.State != StateAwaitingInput {
		t.Fatalf("mutating a snapshot leaked into the store: %+v", got)
	}
}
