package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/botpanel/internal/identity"
	"github.com/xaenox/botpanel/internal/models"
)

func TestListBotsScopedAndOrdered(t *testing.T) {
	s := NewMemoryStorage()
	alice := identity.Operator(context.Background(), "alice")
	bob := identity.Operator(context.Background(), "bob")

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateBot(alice, &models.BotRecord{ID: "old", CreatedAt: base}))
	require.NoError(t, s.CreateBot(alice, &models.BotRecord{ID: "new", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateBot(bob, &models.BotRecord{ID: "other"}))

	bots, err := s.ListBots(alice)
	require.NoError(t, err)
	require.Len(t, bots, 2)
	assert.Equal(t, "new", bots[0].ID)
	assert.Equal(t, "old", bots[1].ID)
	assert.Equal(t, models.StatusStopped, bots[0].Status)

	_, err = s.GetBot(bob, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.ListBots(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCreateBotConflict(t *testing.T) {
	s := NewMemoryStorage()
	ctx := identity.Operator(context.Background(), "alice")

	require.NoError(t, s.CreateBot(ctx, &models.BotRecord{ID: "b1"}))
	assert.ErrorIs(t, s.CreateBot(ctx, &models.BotRecord{ID: "b1"}), ErrConflict)

	// Ids are unique per owner only.
	assert.NoError(t, s.CreateBot(identity.Operator(context.Background(), "bob"), &models.BotRecord{ID: "b1"}))
}

func TestWriteCommandIsMinimalDiff(t *testing.T) {
	s := NewMemoryStorage()
	op := identity.Operator(context.Background(), "alice")
	ag := identity.Agent(context.Background(), "alice", "b1")

	require.NoError(t, s.CreateBot(op, &models.BotRecord{ID: "b1", Config: models.BotConfig{TargetRoom: "lobby"}}))
	require.NoError(t, s.WriteStatus(ag, "b1", models.StatusReport{Status: models.StatusOnline, Activity: "busy"}))

	receipt, err := s.WriteCommand(op, "b1", models.CommandJoinRoom, models.CommandExtras{TargetRoom: "r1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), receipt.Seq)
	assert.False(t, receipt.Superseded())

	rec, err := s.GetBot(op, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.CommandJoinRoom, rec.Command)
	assert.Equal(t, "r1", rec.CommandExtras.TargetRoom)
	assert.Equal(t, models.StatusOnline, rec.Status)
	assert.Equal(t, "busy", rec.CurrentActivity)
	assert.Equal(t, "lobby", rec.Config.TargetRoom)

	receipt, err = s.WriteCommand(op, "b1", models.CommandStop, models.CommandExtras{})
	require.NoError(t, err)
	assert.True(t, receipt.Superseded())
	assert.Equal(t, models.CommandJoinRoom, receipt.PrevKind)

	rec, err = s.GetBot(op, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.CommandStop, rec.Command)
	assert.Empty(t, rec.CommandExtras.TargetRoom)
}

func TestCapabilitiesAreDisjoint(t *testing.T) {
	s := NewMemoryStorage()
	op := identity.Operator(context.Background(), "alice")
	ag := identity.Agent(context.Background(), "alice", "b1")
	wrongBot := identity.Agent(context.Background(), "alice", "b2")

	require.NoError(t, s.CreateBot(op, &models.BotRecord{ID: "b1"}))

	_, err := s.WriteCommand(ag, "b1", models.CommandStop, models.CommandExtras{})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.ErrorIs(t, s.WriteConfig(ag, "b1", models.BotConfig{}, models.Credentials{}), ErrPermissionDenied)
	assert.ErrorIs(t, s.WriteStatus(op, "b1", models.StatusReport{Status: models.StatusOnline}), ErrPermissionDenied)
	assert.ErrorIs(t, s.WriteStatus(wrongBot, "b1", models.StatusReport{Status: models.StatusOnline}), ErrPermissionDenied)

	_, err = s.GetBot(ag, "b1")
	assert.NoError(t, err)
}

func TestAckCommandNeverClearsNewerCommand(t *testing.T) {
	s := NewMemoryStorage()
	op := identity.Operator(context.Background(), "alice")
	ag := identity.Agent(context.Background(), "alice", "b1")
	require.NoError(t, s.CreateBot(op, &models.BotRecord{ID: "b1"}))

	first, err := s.WriteCommand(op, "b1", models.CommandTestAI, models.CommandExtras{})
	require.NoError(t, err)
	_, err = s.WriteCommand(op, "b1", models.CommandSendMessage, models.CommandExtras{Text: "hi"})
	require.NoError(t, err)

	require.NoError(t, s.AckCommand(ag, "b1", first.Seq))
	rec, err := s.GetBot(op, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.CommandSendMessage, rec.Command)
	assert.True(t, rec.HasPendingCommand())

	require.NoError(t, s.AckCommand(ag, "b1", rec.CommandSeq))
	rec, err = s.GetBot(op, "b1")
	require.NoError(t, err)
	assert.Empty(t, rec.Command)
	assert.False(t, rec.HasPendingCommand())
}

func TestSecretsScopedToOwner(t *testing.T) {
	s := NewMemoryStorage()
	op := identity.Operator(context.Background(), "alice")

	require.NoError(t, s.PutSecret(op, "secret://1", []byte("sealed")))
	assert.ErrorIs(t, s.PutSecret(op, "secret://1", []byte("again")), ErrConflict)

	got, err := s.GetSecret(identity.Agent(context.Background(), "alice", "b1"), "secret://1")
	require.NoError(t, err)
	assert.Equal(t, []byte("sealed"), got)

	_, err = s.GetSecret(identity.Operator(context.Background(), "bob"), "secret://1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClassifyTransient(t *testing.T) {
	err := classify("list bots", context.DeadlineExceeded)
	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	err = classify("list bots", errors.New("syntax error"))
	assert.False(t, IsTransient(err))
	assert.Nil(t, classify("noop", nil))
}
