package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaenox/botpanel/internal/models"
	"github.com/xaenox/botpanel/internal/storage"
	"go.uber.org/zap"
)

// Ack confirms the store durably accepted a command. It says nothing about
// whether the agent has executed it.
type Ack struct {
	BotID string             `json:"bot_id"`
	Kind  models.CommandKind `json:"command"`
	Seq   int64              `json:"seq"`
	// Superseded is set when the command slot still held an unacknowledged
	// command, which this dispatch has overwritten.
	Superseded     bool               `json:"superseded"`
	SupersededKind models.CommandKind `json:"superseded_command,omitempty"`
}

type Dispatcher struct {
	store  storage.CommandWriter
	logger *zap.Logger
}

func New(store storage.CommandWriter, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, logger: logger}
}

// Dispatch validates cmd and writes it into the command slot of botID in a
// single partial update. Invalid commands never reach the store. Dispatch is
// not retried: a retry could issue the command twice.
func (d *Dispatcher) Dispatch(ctx context.Context, botID string, cmd models.Command) (*Ack, error) {
	botID = strings.TrimSpace(botID)
	if botID == "" {
		return nil, &models.ValidationError{Field: "bot_id", Reason: "a bot must be selected"}
	}
	if cmd == nil {
		return nil, &models.ValidationError{Field: "command", Reason: "command is required"}
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	receipt, err := d.store.WriteCommand(ctx, botID, cmd.Kind(), cmd.Extras())
	if err != nil {
		d.logger.Error("Failed to dispatch command",
			zap.Error(err),
			zap.String("bot_id", botID),
			zap.String("command", string(cmd.Kind())))
		return nil, fmt.Errorf("dispatch %s to %s: %w", cmd.Kind(), botID, err)
	}

	ack := &Ack{
		BotID:      botID,
		Kind:       cmd.Kind(),
		Seq:        receipt.Seq,
		Superseded: receipt.Superseded(),
	}
	if ack.Superseded {
		ack.SupersededKind = receipt.PrevKind
		d.logger.Warn("Pending command overwritten before the agent consumed it",
			zap.String("bot_id", botID),
			zap.String("command", string(cmd.Kind())),
			zap.String("superseded", string(receipt.PrevKind)),
			zap.Int64("superseded_seq", receipt.PrevSeq))
	}

	d.logger.Info("Command dispatched",
		zap.String("bot_id", botID),
		zap.String("command", string(cmd.Kind())),
		zap.Int64("seq", receipt.Seq))
	return ack, nil
}
