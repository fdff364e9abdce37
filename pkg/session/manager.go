package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/bpmnchat/internal/logging"
	"github.com/aretw0/bpmnchat/internal/runtime"
	"github.com/aretw0/bpmnchat/pkg/domain"
	"github.com/aretw0/bpmnchat/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a session.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager runs engine operations against stored sessions.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	engine *runtime.Engine
	store  ports.SessionStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager running engine against store.
func NewManager(engine *runtime.Engine, store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		engine:  engine,
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Engine returns the engine sessions are resumed on.
func (m *Manager) Engine() *runtime.Engine {
	return m.engine
}

// Start creates and starts session id. The turns it produces go to surface.
// It returns domain.ErrAlreadyStarted if id is already stored.
// A session that cannot start (no start event) is not stored.
func (m *Manager) Start(ctx context.Context, id string, surface ports.Surface, renderer ports.Renderer) (*domain.Session, error) {
	var state *domain.Session
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, id)
		if err == nil {
			return domain.ErrAlreadyStarted
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		sess := m.engine.NewSession(id, surface, renderer)
		runErr := sess.Start(ctx)
		state = sess.State()
		if state.Phase == domain.PhaseIdle {
			return runErr
		}
		return m.save(ctx, state, runErr)
	})
	return state, err
}

// Submit delivers a reply to session id.
// NoMatchError and runtime errors are returned after the session is saved.
func (m *Manager) Submit(ctx context.Context, id, text string, surface ports.Surface, renderer ports.Renderer) (*domain.Session, error) {
	return m.apply(ctx, id, surface, renderer, func(ctx context.Context, s *runtime.Session) error {
		return s.SubmitInput(ctx, text)
	})
}

// End cancels session id. Ending an ended session is a no-op.
func (m *Manager) End(ctx context.Context, id string, surface ports.Surface, renderer ports.Renderer) (*domain.Session, error) {
	return m.apply(ctx, id, surface, renderer, func(ctx context.Context, s *runtime.Session) error {
		return s.End(ctx)
	})
}

// Step continues an active session, e.g. one whose paced run was interrupted.
func (m *Manager) Step(ctx context.Context, id string, surface ports.Surface, renderer ports.Renderer) (*domain.Session, error) {
	return m.apply(ctx, id, surface, renderer, func(ctx context.Context, s *runtime.Session) error {
		return s.Step(ctx)
	})
}

func (m *Manager) apply(ctx context.Context, id string, surface ports.Surface, renderer ports.Renderer, fn func(context.Context, *runtime.Session) error) (*domain.Session, error) {
	var state *domain.Session
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		stored, err := m.store.Load(ctx, id)
		if err != nil {
			return err
		}
		sess := m.engine.Resume(stored, surface, renderer)
		runErr := fn(ctx, sess)
		state = sess.State()
		return m.save(ctx, state, runErr)
	})
	return state, err
}

// save persists state and joins a storage failure with the run error.
func (m *Manager) save(ctx context.Context, state *domain.Session, runErr error) error {
	if err := m.store.Save(ctx, state); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to save session: %w", err))
	}
	return runErr
}

// Load retrieves a session snapshot.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Session, error) {
	var state *domain.Session
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, id)
		return err
	})
	return state, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// WithLock executes fn while holding the lock for session id.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock, it will expire",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
