package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/models"
	"github.com/xaenox/botpanel/internal/storage"
	"go.uber.org/zap/zaptest"
)

type countingWriter struct {
	storage.CommandWriter
	writes int
}

func (w *countingWriter) WriteCommand(ctx context.Context, id string, kind models.CommandKind, extras models.CommandExtras) (models.CommandReceipt, error) {
	w.writes++
	return w.CommandWriter.WriteCommand(ctx, id, kind, extras)
}

func setup(t *testing.T) (context.Context, *storage.MemoryStorage, *countingWriter, *Dispatcher) {
	t.Helper()
	store := storage.NewMemoryStorage()
	ctx := identity.Operator(context.Background(), "alice")
	require.NoError(t, store.CreateBot(ctx, &models.BotRecord{ID: "b1"}))
	w := &countingWriter{CommandWriter: store}
	return ctx, store, w, New(w, zaptest.NewLogger(t))
}

func TestEmptyMessageIsRejectedWithoutWrite(t *testing.T) {
	ctx, _, w, d := setup(t)

	_, err := d.Dispatch(ctx, "b1", models.SendMessage{Text: ""})
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 0, w.writes)
}

func TestInvalidRoomIsRejectedWithoutWrite(t *testing.T) {
	ctx, _, w, d := setup(t)

	for _, room := range []string{"", "two words", "ftp://x/y"} {
		_, err := d.Dispatch(ctx, "b1", models.JoinRoom{TargetRoom: room})
		var verr *models.ValidationError
		assert.True(t, errors.As(err, &verr), room)
	}
	_, err := d.Dispatch(ctx, "", models.Stop{})
	assert.Error(t, err)
	assert.Equal(t, 0, w.writes)
}

func TestLastWriterWins(t *testing.T) {
	ctx, store, w, d := setup(t)

	first, err := d.Dispatch(ctx, "b1", models.JoinRoom{TargetRoom: "r1"})
	require.NoError(t, err)
	assert.False(t, first.Superseded)

	second, err := d.Dispatch(ctx, "b1", models.Stop{})
	require.NoError(t, err)
	assert.True(t, second.Superseded)
	assert.Equal(t, models.CommandJoinRoom, second.SupersededKind)
	assert.Greater(t, second.Seq, first.Seq)
	assert.Equal(t, 2, w.writes)

	rec, err := store.GetBot(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.CommandStop, rec.Command)
	assert.Equal(t, models.CommandExtras{}, rec.CommandExtras)
}

func TestAcknowledgedCommandIsNotReportedSuperseded(t *testing.T) {
	ctx, store, _, d := setup(t)

	first, err := d.Dispatch(ctx, "b1", models.TestAI{})
	require.NoError(t, err)
	require.NoError(t, store.AckCommand(identity.Agent(context.Background(), "alice", "b1"), "b1", first.Seq))

	second, err := d.Dispatch(ctx, "b1", models.SendMessage{Text: "hello"})
	require.NoError(t, err)
	assert.False(t, second.Superseded)
}

func TestStoreErrorsPropagate(t *testing.T) {
	ctx, _, _, d := setup(t)

	_, err := d.Dispatch(ctx, "missing", models.Stop{})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = d.Dispatch(identity.Agent(context.Background(), "alice", "b1"), "b1", models.Stop{})
	assert.ErrorIs(t, err, storage.ErrPermissionDenied)
}
