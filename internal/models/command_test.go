package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRoomRef(t *testing.T) {
	valid := []string{
		"r1",
		"roomX",
		"room-105044116-306",
		"https://pt.imvu.com/next/chat/room-105044116-306/",
		"http://example.com/room",
	}
	for _, ref := range valid {
		assert.NoError(t, ValidateRoomRef(ref), ref)
	}

	invalidRefs := []string{"", "   ", "ftp://host/room", "https://", "room with spaces", "-leading"}
	for _, ref := range invalidRefs {
		err := ValidateRoomRef(ref)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), ref)
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand("join_room", CommandExtras{TargetRoom: "r1"})
	require.NoError(t, err)
	assert.Equal(t, JoinRoom{TargetRoom: "r1"}, cmd)

	cmd, err = ParseCommand(CommandSendMessage, CommandExtras{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, CommandSendMessage, cmd.Kind())
	assert.Equal(t, "hi", cmd.Extras().Text)

	_, err = ParseCommand("MONITOR_CHAT", CommandExtras{})
	assert.Error(t, err)
}

func TestSendMessageRequiresText(t *testing.T) {
	assert.Error(t, SendMessage{Text: "  "}.Validate())
	assert.NoError(t, SendMessage{Text: "hello"}.Validate())
	assert.NoError(t, Stop{}.Validate())
	assert.Empty(t, Stop{}.Extras())
}

func TestCommandReceiptSuperseded(t *testing.T) {
	assert.False(t, CommandReceipt{Seq: 1}.Superseded())
	assert.True(t, CommandReceipt{Seq: 2, PrevKind: CommandJoinRoom, PrevSeq: 1, PrevAck: 0}.Superseded())
	assert.False(t, CommandReceipt{Seq: 2, PrevKind: CommandJoinRoom, PrevSeq: 1, PrevAck: 1}.Superseded())
}

func TestCloneDoesNotAlias(t *testing.T) {
	rec := &BotRecord{ID: "b1", Config: BotConfig{Providers: []Provider{{Name: ProviderOpenAI}}}}
	c := rec.Clone()
	c.Config.Providers[0].Model = "changed"
	assert.Empty(t, rec.Config.Providers[0].Model)
}
