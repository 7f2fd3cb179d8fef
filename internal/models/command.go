package models

import (
	"net/url"
	"regexp"
	"strings"
)

type CommandKind string

const (
	CommandJoinRoom    CommandKind = "JOIN_ROOM"
	CommandStop        CommandKind = "STOP"
	CommandTestAI      CommandKind = "TEST_AI"
	CommandSendMessage CommandKind = "SEND_MESSAGE"
)

// CommandExtras is the payload bag stored next to the command slot.
type CommandExtras struct {
	TargetRoom string `json:"target_room,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Command is one of JoinRoom, Stop, TestAI or SendMessage.
type Command interface {
	Kind() CommandKind
	Extras() CommandExtras
	Validate() error
}

type JoinRoom struct {
	TargetRoom string
}

func (JoinRoom) Kind() CommandKind { return CommandJoinRoom }

func (c JoinRoom) Extras() CommandExtras {
	return CommandExtras{TargetRoom: strings.TrimSpace(c.TargetRoom)}
}

func (c JoinRoom) Validate() error {
	return ValidateRoomRef(c.TargetRoom)
}

type Stop struct{}

func (Stop) Kind() CommandKind     { return CommandStop }
func (Stop) Extras() CommandExtras { return CommandExtras{} }
func (Stop) Validate() error       { return nil }

type TestAI struct{}

func (TestAI) Kind() CommandKind     { return CommandTestAI }
func (TestAI) Extras() CommandExtras { return CommandExtras{} }
func (TestAI) Validate() error       { return nil }

type SendMessage struct {
	Text string
}

func (SendMessage) Kind() CommandKind { return CommandSendMessage }

func (c SendMessage) Extras() CommandExtras {
	return CommandExtras{Text: strings.TrimSpace(c.Text)}
}

func (c SendMessage) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return invalid("text", "message text is required")
	}
	return nil
}

var roomTokenRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateRoomRef accepts either an http(s) room URL or a bare room token.
func ValidateRoomRef(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return invalid("target_room", "room reference is required")
	}
	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("target_room", "room URL must be an http(s) URL with a host")
		}
		return nil
	}
	if !roomTokenRe.MatchString(ref) {
		return invalid("target_room", "room reference contains invalid characters")
	}
	return nil
}

// ParseCommand builds a typed command from its wire form. The result is not validated.
func ParseCommand(kind CommandKind, extras CommandExtras) (Command, error) {
	switch CommandKind(strings.ToUpper(string(kind))) {
	case CommandJoinRoom:
		return JoinRoom{TargetRoom: extras.TargetRoom}, nil
	case CommandStop:
		return Stop{}, nil
	case CommandTestAI:
		return TestAI{}, nil
	case CommandSendMessage:
		return SendMessage{Text: extras.Text}, nil
	default:
		return nil, invalid("command", "unknown command "+string(kind))
	}
}
