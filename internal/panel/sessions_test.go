package panel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/models"
	"go.uber.org/zap/zaptest"
)

// stallingLister holds the first ListBots until release is closed.
type stallingLister struct {
	reads   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (l *stallingLister) GetBot(ctx context.Context, id string) (*models.BotRecord, error) {
	return nil, nil
}

func (l *stallingLister) ListBots(ctx context.Context) ([]*models.BotRecord, error) {
	l.reads.Add(1)
	l.once.Do(func() {
		close(l.entered)
		<-l.release
	})
	return nil, nil
}

func TestCloseDuringFirstReadStopsSession(t *testing.T) {
	lister := &stallingLister{entered: make(chan struct{}), release: make(chan struct{})}
	sessions := NewSessions(lister, 5*time.Millisecond, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() {
		_, err := sessions.Get(identity.Operator(context.Background(), "alice"))
		done <- err
	}()

	<-lister.entered
	sessions.Close()
	close(lister.release)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Get did not return after Close")
	}

	reads := lister.reads.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, reads, lister.reads.Load(), "no reads may happen after Close")
}

func TestGetAfterCloseFails(t *testing.T) {
	lister := &stallingLister{entered: make(chan struct{}), release: make(chan struct{})}
	close(lister.release)
	sessions := NewSessions(lister, time.Hour, zaptest.NewLogger(t))
	sessions.Close()

	_, err := sessions.Get(identity.Operator(context.Background(), "alice"))
	require.Error(t, err)
	assert.Equal(t, int32(0), lister.reads.Load())
}
