// Package poller keeps an in-memory view of a user's bot records in sync
// with the store by re-reading the whole set on a fixed interval.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xaenox/botpanel/internal/models"
	"go.uber.org/zap"
)

const DefaultInterval = 5 * time.Second

type Lister interface {
	ListBots(ctx context.Context) ([]*models.BotRecord, error)
}

// Snapshot is the reconciled view after the most recent successful read.
type Snapshot struct {
	Records   []*models.BotRecord
	FetchedAt time.Time
	// LastError is the error of the most recent read, nil if it succeeded.
	LastError error
}

type Poller struct {
	lister   Lister
	interval time.Duration
	logger   *zap.Logger

	inFlight atomic.Bool

	mu       sync.RWMutex
	snap     Snapshot
	stopped  bool
	onUpdate func(Snapshot)

	lifeMu  sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(lister Lister, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{lister: lister, interval: interval, logger: logger}
}

// OnUpdate registers fn to run after every successful reconciliation.
func (p *Poller) OnUpdate(fn func(Snapshot)) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

// Start reads once immediately and then on every interval until Stop or
// until ctx is cancelled. ctx must carry the identity the reads are scoped to.
// A stopped poller cannot be started again.
func (p *Poller) Start(ctx context.Context) {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()
	if p.started || stopped {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop cancels the timer and waits for any in-flight read. No view update
// happens after Stop returns.
func (p *Poller) Stop() {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick starts a read in the background unless one is already outstanding.
func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Debug("Skipping poll, previous read still in flight")
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		p.poll(ctx)
	}()
}

// Refresh reads synchronously, outside the timer. It returns false without
// reading when another read is already outstanding.
func (p *Poller) Refresh(ctx context.Context) (bool, error) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return false, nil
	}
	defer p.inFlight.Store(false)
	return true, p.poll(ctx)
}

func (p *Poller) poll(ctx context.Context) error {
	records, err := p.lister.ListBots(ctx)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return err
	}
	if err != nil {
		p.snap.LastError = err
		p.mu.Unlock()
		p.logger.Warn("Failed to poll bot records", zap.Error(err))
		return err
	}
	p.snap = Snapshot{Records: records, FetchedAt: time.Now()}
	fn := p.onUpdate
	snap := p.copySnapshot()
	p.mu.Unlock()

	p.logger.Debug("Bot records reconciled", zap.Int("count", len(records)))
	if fn != nil {
		fn(snap)
	}
	return nil
}

// Snapshot returns a copy of the current view.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.copySnapshot()
}

func (p *Poller) copySnapshot() Snapshot {
	out := p.snap
	out.Records = make([]*models.BotRecord, len(p.snap.Records))
	for i, r := range p.snap.Records {
		out.Records[i] = r.Clone()
	}
	return out
}
