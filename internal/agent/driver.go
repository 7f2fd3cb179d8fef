package agent

import (
	"context"

	"go.uber.org/zap"
)

// LogDriver stands in for a real chat client session. It records what it
// would do and never sees any chat traffic.
type LogDriver struct {
	logger *zap.Logger
}

func NewLogDriver(logger *zap.Logger) *LogDriver {
	return &LogDriver{logger: logger}
}

func (d *LogDriver) JoinRoom(ctx context.Context, room string) error {
	d.logger.Info("Joining room", zap.String("room", room))
	return nil
}

func (d *LogDriver) Send(ctx context.Context, text string) error {
	d.logger.Info("Sending chat message", zap.Int("length", len(text)))
	return nil
}

func (d *LogDriver) LastMessage(ctx context.Context) (string, error) {
	return "", nil
}
