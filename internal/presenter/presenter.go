package presenter

import (
	"time"

	"github.com/xaenox/botpanel/internal/models"
)

const (
	FallbackStatus   = string(models.StatusOffline)
	FallbackActivity = "Idle"
	FallbackLastSeen = "-"
)

// Summary is the dashboard header for a reconciled record set.
type Summary struct {
	ActiveBotCount  int               `json:"active_bot_count"`
	FocusBot        *models.BotRecord `json:"focus_bot,omitempty"`
	DisplayStatus   string            `json:"display_status"`
	DisplayActivity string            `json:"display_activity"`
	Online          bool              `json:"online"`
	LastSeen        string            `json:"last_seen"`
}

// Summarize projects records, which must already be in store order (newest
// first). The focus bot is always the first record and multi-bot aggregation is
// not attempted. records are never modified.
func Summarize(records []*models.BotRecord) Summary {
	s := Summary{
		ActiveBotCount:  len(records),
		DisplayStatus:   FallbackStatus,
		DisplayActivity: FallbackActivity,
		LastSeen:        FallbackLastSeen,
	}
	if len(records) == 0 || records[0] == nil {
		return s
	}

	focus := records[0].Clone()
	s.FocusBot = focus
	if focus.Status != "" {
		s.DisplayStatus = string(focus.Status)
	}
	if focus.CurrentActivity != "" {
		s.DisplayActivity = focus.CurrentActivity
	}
	s.Online = focus.Status == models.StatusOnline
	if focus.LastSeen != nil {
		s.LastSeen = focus.LastSeen.Format(time.TimeOnly)
	}
	return s
}
