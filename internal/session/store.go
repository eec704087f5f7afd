package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultInteractiveTTL = 2 * time.Minute
	defaultWaitingTTL     = 5 * time.Minute
)

// StoreOption is a functional option for configuring a [Store].
type StoreOption func(*Store)

// WithTTLs overrides the state-dependent session lifetimes. Clarification
// states (a pending question) expire after interactive; open-ended states
// (awaiting the dictation, or processing) after waiting.
func WithTTLs(interactive, waiting time.Duration) StoreOption {
	return func(s *Store) {
		if interactive > 0 {
			s.interactiveTTL = interactive
		}
		if waiting > 0 {
			s.waitingTTL = waiting
		}
	}
}

// WithClock overrides the store's clock. For tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger used by the background sweeper.
func WithLogger(log *slog.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

// Store is an in-memory TTL session container, one live session per user
// key. Expiry is enforced twice: lazily on every read, and by a periodic
// [Store.Sweep]. Both use the same now >= expiry rule.
//
// All methods are safe for concurrent use; each operation is atomic for its
// key.
type Store struct {
	interactiveTTL time.Duration
	waitingTTL     time.Duration
	now            func() time.Time
	log            *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty session store with default TTLs.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		interactiveTTL: defaultInteractiveTTL,
		waitingTTL:     defaultWaitingTTL,
		now:            time.Now,
		log:            slog.Default(),
		sessions:       make(map[string]*Session),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create opens a session for userKey in StateAwaitingInput, unconditionally
// replacing any prior session for the same key. The returned value is a
// snapshot.
func (s *Store) Create(userKey, channelID, authorName string, kind Kind, payload Payload) Session {
	now := s.now()
	sess := &Session{
		UserKey:    userKey,
		ChannelID:  channelID,
		AuthorName: authorName,
		Kind:       kind,
		State:      StateAwaitingInput,
		Payload:    payload,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttlFor(StateAwaitingInput)),
	}

	s.mu.Lock()
	s.sessions[userKey] = sess
	s.mu.Unlock()
	return *sess
}

// Get returns a snapshot of the live session for userKey. An entry whose
// expiry has passed is deleted and reported as absent.
func (s *Store) Get(userKey string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userKey]
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, userKey)
		return Session{}, false
	}
	return *sess, true
}

// Update mutates the live session for userKey under the store lock and
// returns a snapshot of the result. When mutate changes the state, the move
// must be allowed by [CanTransition]; an illegal move is logged, rolled back,
// and reported as false. On a legal state change the expiry is recomputed
// from now using the new state's TTL; payload-only updates leave it
// untouched. Missing or expired keys are a no-op reporting false.
func (s *Store) Update(userKey string, mutate func(*Session)) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[userKey]
	if !ok {
		return Session{}, false
	}
	now := s.now()
	if !now.Before(sess.ExpiresAt) {
		delete(s.sessions, userKey)
		return Session{}, false
	}

	prev := *sess
	mutate(sess)
	if sess.State != prev.State {
		if !CanTransition(prev.State, sess.State) {
			attempted := sess.State
			*sess = prev
			s.log.Warn("session transition rejected",
				"user", userKey, "from", prev.State, "to", attempted)
			return Session{}, false
		}
		sess.ExpiresAt = now.Add(s.ttlFor(sess.State))
	}
	return *sess, true
}

// Delete removes the session for userKey, reporting whether one existed.
func (s *Store) Delete(userKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[userKey]
	delete(s.sessions, userKey)
	return ok
}

// Len returns the number of stored sessions, expired entries included until
// the next sweep or read touches them.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep deletes every entry whose expiry has passed and returns how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug("session sweep", "expired", n)
			}
		}
	}
}

func (s *Store) ttlFor(state State) time.Duration {
	if state.Interactive() {
		return s.interactiveTTL
	}
	return s.waitingTTL
}
