package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/botpanel/internal/models"
)

type botKey struct {
	owner string
	id    string
}

type memoryBot struct {
	rec   *models.BotRecord
	order int64
}

type memorySecret struct {
	owner  string
	sealed []byte
}

// MemoryStorage keeps records in process memory. Records are copied in and
// out so callers never share memory with the store.
type MemoryStorage struct {
	mu      sync.RWMutex
	bots    map[botKey]*memoryBot
	secrets map[string]memorySecret
	nextOrd int64
	now     func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		bots:    make(map[botKey]*memoryBot),
		secrets: make(map[string]memorySecret),
		now:     time.Now,
	}
}

func (s *MemoryStorage) GetBot(ctx context.Context, id string) (*models.BotRecord, error) {
	who, err := reader(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.bots[botKey{who.UserID, id}]
	if !exists {
		return nil, ErrNotFound
	}
	return b.rec.Clone(), nil
}

func (s *MemoryStorage) ListBots(ctx context.Context) ([]*models.BotRecord, error) {
	who, err := reader(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make([]*memoryBot, 0)
	for key, b := range s.bots {
		if key.owner == who.UserID {
			owned = append(owned, b)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		ci, cj := owned[i].rec.CreatedAt, owned[j].rec.CreatedAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return owned[i].order > owned[j].order
	})

	out := make([]*models.BotRecord, len(owned))
	for i, b := range owned {
		out[i] = b.rec.Clone()
	}
	return out, nil
}

func (s *MemoryStorage) CreateBot(ctx context.Context, rec *models.BotRecord) error {
	who, err := operator(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := botKey{who.UserID, rec.ID}
	if _, exists := s.bots[key]; exists {
		return ErrConflict
	}

	stored := rec.Clone()
	stored.Owner = who.UserID
	if stored.Status == "" {
		stored.Status = models.StatusStopped
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.nextOrd++
	s.bots[key] = &memoryBot{rec: stored, order: s.nextOrd}

	rec.Owner = stored.Owner
	rec.Status = stored.Status
	rec.CreatedAt = stored.CreatedAt
	return nil
}

func (s *MemoryStorage) WriteCommand(ctx context.Context, id string, kind models.CommandKind, extras models.CommandExtras) (models.CommandReceipt, error) {
	who, err := operator(ctx)
	if err != nil {
		return models.CommandReceipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.bots[botKey{who.UserID, id}]
	if !exists {
		return models.CommandReceipt{}, ErrNotFound
	}

	receipt := models.CommandReceipt{
		PrevKind: b.rec.Command,
		PrevSeq:  b.rec.CommandSeq,
		PrevAck:  b.rec.CommandAck,
	}
	b.rec.Command = kind
	b.rec.CommandExtras = extras
	b.rec.CommandSeq++
	receipt.Seq = b.rec.CommandSeq
	return receipt, nil
}

func (s *MemoryStorage) WriteConfig(ctx context.Context, id string, cfg models.BotConfig, creds models.Credentials) error {
	who, err := operator(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.bots[botKey{who.UserID, id}]
	if !exists {
		return ErrNotFound
	}
	b.rec.Config = cfg.Clone()
	b.rec.Credentials = creds
	return nil
}

func (s *MemoryStorage) WriteStatus(ctx context.Context, id string, report models.StatusReport) error {
	who, err := agent(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.bots[botKey{who.UserID, id}]
	if !exists {
		return ErrNotFound
	}
	seen := report.SeenAt
	if seen.IsZero() {
		seen = s.now()
	}
	b.rec.Status = report.Status
	b.rec.CurrentActivity = report.Activity
	b.rec.LastSeen = &seen
	return nil
}

func (s *MemoryStorage) AckCommand(ctx context.Context, id string, seq int64) error {
	who, err := agent(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.bots[botKey{who.UserID, id}]
	if !exists {
		return ErrNotFound
	}
	if seq > b.rec.CommandAck {
		b.rec.CommandAck = seq
	}
	if b.rec.CommandSeq == seq {
		b.rec.Command = ""
		b.rec.CommandExtras = models.CommandExtras{}
	}
	return nil
}

func (s *MemoryStorage) PutSecret(ctx context.Context, handle string, sealed []byte) error {
	who, err := operator(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.secrets[handle]; exists {
		return ErrConflict
	}
	s.secrets[handle] = memorySecret{owner: who.UserID, sealed: append([]byte(nil), sealed...)}
	return nil
}

func (s *MemoryStorage) GetSecret(ctx context.Context, handle string) ([]byte, error) {
	who, err := reader(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, exists := s.secrets[handle]
	if !exists || sec.owner != who.UserID {
		return nil, ErrNotFound
	}
	return append([]byte(nil), sec.sealed...), nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
