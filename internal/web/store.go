package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appLog "addtocal/internal/log"
	"addtocal/internal/workflow"
)

// session is one workflow controller plus its last access time.
type session struct {
	ctrl     *workflow.Controller
	lastSeen time.Time
}

// Store holds live sessions keyed by a random ID. Sessions untouched for
// longer than the TTL are discarded by Sweep.
type Store struct {
	newController func() *workflow.Controller
	ttl           time.Duration
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewStore creates a Store. factory builds the controller for each new
// session.
func NewStore(factory func() *workflow.Controller, ttl time.Duration) *Store {
	return &Store{
		newController: factory,
		ttl:           ttl,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}
}

// Create starts a new session in the Input state.
func (s *Store) Create() (string, *workflow.Controller) {
	id := uuid.NewString()
	ctrl := s.newController()

	s.mu.Lock()
	s.sessions[id] = &session{ctrl: ctrl, lastSeen: s.now()}
	s.mu.Unlock()

	appLog.Debug("session created", "id", id)
	return id, ctrl
}

// Get returns the session's controller and marks it as used.
func (s *Store) Get(id string) (*workflow.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.ctrl, true
}

// Delete discards and removes a session.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	sess.ctrl.Discard()
	appLog.Debug("session deleted", "id", id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep discards sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	expired := make([]*session, 0)
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.ctrl.Discard()
	}
	return len(expired)
}

// NewSweeper schedules Sweep on a cron spec (e.g. "*/5 * * * *"). The caller
// starts and stops the returned scheduler.
func (s *Store) NewSweeper(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if n := s.Sweep(); n > 0 {
			appLog.Info("idle sessions discarded", "count", n, "remaining", s.Len())
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
