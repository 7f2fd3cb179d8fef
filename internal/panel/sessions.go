package panel

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/poller"
	"github.com/xaenox/botpanel/internal/presenter"
	"github.com/xaenox/botpanel/internal/storage"
	"go.uber.org/zap"
)

// Session is one operator's dashboard view, kept fresh by its own poller.
type Session struct {
	Owner  string
	poller *poller.Poller
}

func (s *Session) Snapshot() poller.Snapshot {
	return s.poller.Snapshot()
}

func (s *Session) Summary() presenter.Summary {
	return presenter.Summarize(s.poller.Snapshot().Records)
}

func (s *Session) Refresh(ctx context.Context) (bool, error) {
	return s.poller.Refresh(ctx)
}

// Sessions hands out one Session per owner, started on first use.
type Sessions struct {
	lister   storage.BotReader
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewSessions(lister storage.BotReader, interval time.Duration, logger *zap.Logger) *Sessions {
	return &Sessions{
		lister:   lister,
		interval: interval,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for the identity in ctx, starting its poller and
// waiting for the first read when it is new.
func (m *Sessions) Get(ctx context.Context) (*Session, error) {
	id, ok := identity.FromContext(ctx)
	if !ok || id.Role != identity.RoleOperator {
		return nil, storage.ErrPermissionDenied
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, context.Canceled
	}
	if s, exists := m.sessions[id.UserID]; exists {
		m.mu.Unlock()
		return s, nil
	}

	logger := m.logger.With(zap.String("owner", id.UserID))
	s := &Session{
		Owner:  id.UserID,
		poller: poller.New(m.lister, m.interval, logger),
	}
	m.sessions[id.UserID] = s
	m.mu.Unlock()

	s.poller.OnUpdate(func(snap poller.Snapshot) {
		sum := presenter.Summarize(snap.Records)
		logger.Debug("Dashboard view updated",
			zap.Int("bots", sum.ActiveBotCount),
			zap.String("status", sum.DisplayStatus),
			zap.String("activity", sum.DisplayActivity))
	})

	if _, err := s.poller.Refresh(ctx); err != nil {
		logger.Warn("Initial poll failed", zap.Error(err))
	}

	// Close may have run during the first read; it must not miss this poller.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		s.poller.Stop()
		return nil, context.Canceled
	}
	// The poller outlives the request that created it.
	s.poller.Start(identity.Operator(context.Background(), id.UserID))
	return s, nil
}

// Close stops every session poller.
func (m *Sessions) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.poller.Stop()
	}
}
