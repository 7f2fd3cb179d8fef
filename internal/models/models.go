package models

import "time"

// Status is the lifecycle state of a bot process, written only by the agent.
type Status string

const (
	StatusStopped Status = "STOPPED"
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
	StatusWorking Status = "WORKING"
	StatusError   Status = "ERROR"
)

// Credentials holds the chat client login. Password is a secret handle, never the password.
type Credentials struct {
	Username    string `json:"username"`
	PasswordRef string `json:"password_ref"`
}

// BotRecord is the shared control-plane row for one bot
type BotRecord struct {
	ID          string      `json:"id"`
	Owner       string      `json:"owner"`
	Credentials Credentials `json:"credentials"`

	// Agent-owned fields.
	Status          Status     `json:"status"`
	CurrentActivity string     `json:"current_activity"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`

	// Operator-owned command slot. CommandSeq increments on every dispatch;
	// CommandAck is the last sequence number the agent has consumed.
	Command       CommandKind   `json:"command,omitempty"`
	CommandExtras CommandExtras `json:"command_extras"`
	CommandSeq    int64         `json:"command_seq"`
	CommandAck    int64         `json:"command_ack"`

	Config    BotConfig `json:"config"`
	CreatedAt time.Time `json:"created_at"`
}

// HasPendingCommand reports whether the command slot holds a command the agent
// has not acknowledged yet.
func (r *BotRecord) HasPendingCommand() bool {
	return r.Command != "" && r.CommandSeq > r.CommandAck
}

// Clone returns a deep copy so projections never alias store-owned memory.
func (r *BotRecord) Clone() *BotRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.LastSeen != nil {
		ts := *r.LastSeen
		c.LastSeen = &ts
	}
	c.Config = r.Config.Clone()
	return &c
}

// StatusReport is what the agent writes back on each heartbeat.
type StatusReport struct {
	Status   Status    `json:"status"`
	Activity string    `json:"current_activity"`
	SeenAt   time.Time `json:"last_seen"`
}

// CommandReceipt describes the command slot as it was just before a dispatch
// overwrote it, plus the sequence number the new command received.
type CommandReceipt struct {
	Seq      int64       `json:"seq"`
	PrevKind CommandKind `json:"prev_kind,omitempty"`
	PrevSeq  int64       `json:"prev_seq"`
	PrevAck  int64       `json:"prev_ack"`
}

// Superseded reports whether the overwritten command was never acknowledged.
func (r CommandReceipt) Superseded() bool {
	return r.PrevKind != "" && r.PrevSeq > r.PrevAck
}
