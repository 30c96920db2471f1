package session

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/soyeahso/meetbot/internal/logging"
)

// entry pairs a session with its own lock so that turns for different calls
// never wait on each other.
type entry struct {
	mu        sync.Mutex
	sess      *CallSession
	discarded bool // guarded by Store.mu
}

// maxEndedCalls bounds how many ended call IDs are remembered.
const maxEndedCalls = 4096

// Store maps call IDs to sessions with per-call locking. It also remembers
// recently ended calls so late webhooks cannot revive them.
type Store struct {
	mu         sync.Mutex
	entries    map[string]*entry
	ended      map[string]struct{}
	endedOrder []string
	maxEnded   int
	log        *logging.Logger
	now        func() time.Time
}

// NewStore creates an empty session store.
func NewStore(log *logging.Logger) *Store {
	return &Store{
		entries:  make(map[string]*entry),
		ended:    make(map[string]struct{}),
		maxEnded: maxEndedCalls,
		log:      log.Sub("sessions"),
		now:      time.Now,
	}
}

// Acquire returns the session for callID, creating it if needed, with the
// call's lock held. The caller must invoke release exactly once. created
// reports whether the session is new.
func (s *Store) Acquire(callID string) (sess *CallSession, created bool, release func()) {
	sess, created, release, _ = s.acquire(callID, false)
	return sess, created, release
}

// AcquireActive is Acquire for calls that have not ended. ok is false, and
// nothing is created or locked, when callID was discarded and not reset.
func (s *Store) AcquireActive(callID string) (sess *CallSession, created bool, release func(), ok bool) {
	return s.acquire(callID, true)
}

func (s *Store) acquire(callID string, activeOnly bool) (sess *CallSession, created bool, release func(), ok bool) {
	for {
		s.mu.Lock()
		if _, gone := s.ended[callID]; gone && activeOnly {
			s.mu.Unlock()
			return nil, false, nil, false
		}
		e, found := s.entries[callID]
		if !found {
			e = &entry{sess: newCallSession(callID, s.now())}
			s.entries[callID] = e
			created = true
		}
		s.mu.Unlock()

		e.mu.Lock()
		s.mu.Lock()
		stale := e.discarded
		s.mu.Unlock()
		if stale {
			// discarded while we waited; the next call for this id starts fresh
			e.mu.Unlock()
			created = false
			continue
		}
		return e.sess, created, e.mu.Unlock, true
	}
}

// Reset replaces any session for callID with a fresh one and returns it
// locked, as Acquire does. It clears the ended mark.
func (s *Store) Reset(callID string) (*CallSession, func()) {
	s.Discard(callID)
	s.mu.Lock()
	s.forgetEnded(callID)
	s.mu.Unlock()
	sess, _, release := s.Acquire(callID)
	return sess, release
}

// Discard forgets a session and marks the call ended. A turn still holding
// it finishes against the detached state.
func (s *Store) Discard(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markEnded(callID)
	e, ok := s.entries[callID]
	if !ok {
		return false
	}
	e.discarded = true
	delete(s.entries, callID)
	return true
}

// Ended reports whether callID was discarded and not reset since.
func (s *Store) Ended(callID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ended[callID]
	return ok
}

// markEnded records callID, evicting the oldest mark past the bound. Callers
// hold s.mu.
func (s *Store) markEnded(callID string) {
	if _, ok := s.ended[callID]; ok {
		return
	}
	s.ended[callID] = struct{}{}
	s.endedOrder = append(s.endedOrder, callID)
	for len(s.endedOrder) > s.maxEnded {
		delete(s.ended, s.endedOrder[0])
		s.endedOrder = s.endedOrder[1:]
	}
}

// forgetEnded clears the mark for callID. Callers hold s.mu.
func (s *Store) forgetEnded(callID string) {
	if _, ok := s.ended[callID]; !ok {
		return
	}
	delete(s.ended, callID)
	s.endedOrder = slices.DeleteFunc(s.endedOrder, func(id string) bool { return id == callID })
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of one session's monitorable state.
func (s *Store) Snapshot(callID string) (Snapshot, bool) {
	s.mu.Lock()
	e, ok := s.entries[callID]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Snapshot(), true
}

// List returns snapshots of all live sessions, oldest first.
func (s *Store) List() []Snapshot {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.sess.Snapshot())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ReapIdle discards sessions not updated within maxIdle and returns their
// call IDs. Sessions whose lock is held by an in-flight turn are skipped.
func (s *Store) ReapIdle(maxIdle time.Duration) []string {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	var reaped []string
	for id, e := range s.entries {
		if !e.mu.TryLock() {
			continue
		}
		idle := e.sess.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if idle {
			e.discarded = true
			delete(s.entries, id)
			reaped = append(reaped, id)
		}
	}
	sort.Strings(reaped)
	return reaped
}

// RunJanitor reaps idle sessions every interval until ctx is done, calling
// onReap for each discarded call.
func (s *Store) RunJanitor(ctx context.Context, interval, maxIdle time.Duration, onReap func(callID string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.ReapIdle(maxIdle) {
				s.log.Info().Str("callId", id).Dur("maxIdle", maxIdle).Msg("reaped idle session")
				if onReap != nil {
					onReap(id)
				}
			}
		}
	}
}
