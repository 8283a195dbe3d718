package exam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-academy/internal/errs"
	"github.com/mind-engage/mindengage-academy/internal/metrics"
	"github.com/mind-engage/mindengage-academy/internal/rbac"
)

// Manager holds the live sessions of a server process. A session is bound
// to the actor that created it; any other actor gets ErrNotFound.
type Manager struct {
	repo   Repository
	opts   Options
	idle   time.Duration
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a manager whose countdowns live until Close. Sessions
// not in progress and untouched for idleTTL are removed by Sweep.
func NewManager(repo Repository, opts Options, idleTTL time.Duration) *Manager {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo:     repo,
		opts:     opts,
		idle:     idleTTL,
		base:     ctx,
		cancel:   cancel,
		sessions: map[string]*Session{},
	}
}

// Create loads the exam of a course into a new session for actor.
func (m *Manager) Create(ctx context.Context, actor rbac.Actor, courseID string) (string, Snapshot, error) {
	s := NewSession(m.repo, actor, m.opts)
	if err := s.Load(ctx, courseID); err != nil {
		return "", Snapshot{}, err
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	snap := s.Snapshot()
	snap.ID = id
	return id, snap, nil
}

func (m *Manager) Get(actor rbac.Actor, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || !sameActor(s.Actor(), actor) {
		return nil, fmt.Errorf("session %s: %w", id, errs.ErrNotFound)
	}
	return s, nil
}

// Start starts the countdown under the manager's lifetime rather than the
// caller's request.
func (m *Manager) Start(actor rbac.Actor, id string) (Snapshot, error) {
	s, err := m.Get(actor, id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.Start(m.base); err != nil {
		return Snapshot{}, err
	}
	return m.snapshot(id, s), nil
}

func (m *Manager) Snapshot(actor rbac.Actor, id string) (Snapshot, error) {
	s, err := m.Get(actor, id)
	if err != nil {
		return Snapshot{}, err
	}
	return m.snapshot(id, s), nil
}

func (m *Manager) SelectAnswer(actor rbac.Actor, id string, q, choice int) (Snapshot, error) {
	s, err := m.Get(actor, id)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.SelectAnswer(q, choice); err != nil {
		return Snapshot{}, err
	}
	return m.snapshot(id, s), nil
}

func (m *Manager) Submit(ctx context.Context, actor rbac.Actor, id string) (Result, error) {
	s, err := m.Get(actor, id)
	if err != nil {
		return Result{}, err
	}
	return s.Submit(ctx)
}

// Discard cancels the session's countdown and forgets it.
func (m *Manager) Discard(actor rbac.Actor, id string) error {
	s, err := m.Get(actor, id)
	if err != nil {
		return err
	}
	s.Cancel()
	m.mu.Lock()
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	return nil
}

// Sweep removes sessions that are not in progress and have been idle
// longer than the TTL. In-progress sessions end through their countdown.
func (m *Manager) Sweep() int {
	now := m.opts.Clock.Now()
	var evicted []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		st := s.State()
		if st == StateInProgress || st == StateSubmitting {
			continue
		}
		if now.Sub(s.idleSince()) >= m.idle {
			evicted = append(evicted, s)
			delete(m.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range evicted {
		s.Cancel()
	}
	if len(evicted) > 0 {
		m.opts.Logger.Info("swept exam sessions", zap.Int("count", len(evicted)))
	}
	return len(evicted)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every countdown. Sessions in progress are not submitted.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.Cancel()
	}
}

func (m *Manager) snapshot(id string, s *Session) Snapshot {
	snap := s.Snapshot()
	snap.ID = id
	return snap
}

func sameActor(a, b rbac.Actor) bool {
	return a.Role() == b.Role() && a.ID() == b.ID()
}
