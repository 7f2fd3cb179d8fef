package storage

import (
	"context"

	"github.com/xaenox/botpanel/internal/models"
)

// Every call is scoped by the identity carried in ctx (see package identity).

type BotReader interface {
	GetBot(ctx context.Context, id string) (*models.BotRecord, error)
	// ListBots returns the caller's bots, most recently created first.
	ListBots(ctx context.Context) ([]*models.BotRecord, error)
}

type BotCreator interface {
	CreateBot(ctx context.Context, rec *models.BotRecord) error
}

// CommandWriter touches only the command slot of a record.
type CommandWriter interface {
	WriteCommand(ctx context.Context, id string, kind models.CommandKind, extras models.CommandExtras) (models.CommandReceipt, error)
}

// ConfigWriter touches only the configuration and credentials of a record.
type ConfigWriter interface {
	WriteConfig(ctx context.Context, id string, cfg models.BotConfig, creds models.Credentials) error
}

// StatusWriter is the agent's only write capability.
type StatusWriter interface {
	WriteStatus(ctx context.Context, id string, report models.StatusReport) error
	// AckCommand records seq as consumed and clears the command slot unless a
	// newer command has been dispatched since.
	AckCommand(ctx context.Context, id string, seq int64) error
}

type SecretStore interface {
	PutSecret(ctx context.Context, handle string, sealed []byte) error
	GetSecret(ctx context.Context, handle string) ([]byte, error)
}

// OperatorStore is what the dashboard is given.
type OperatorStore interface {
	BotReader
	BotCreator
	CommandWriter
	ConfigWriter
	SecretStore
}

// AgentStore is what a bot agent is given.
type AgentStore interface {
	BotReader
	StatusWriter
	SecretStore
}

type Storage interface {
	OperatorStore
	StatusWriter
	Close() error
}
