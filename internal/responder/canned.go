package responder

import (
	"strings"

	"github.com/xaenox/botpanel/internal/models"
)

// MatchCanned returns the response of the first entry whose trigger occurs in
// message, compared case-insensitively.
func MatchCanned(message string, responses []models.CannedResponse) (string, bool) {
	message = strings.ToLower(message)
	if strings.TrimSpace(message) == "" {
		return "", false
	}
	for _, c := range responses {
		trigger := strings.ToLower(strings.TrimSpace(c.Trigger))
		if trigger != "" && strings.Contains(message, trigger) {
			return c.Response, true
		}
	}
	return "", false
}
