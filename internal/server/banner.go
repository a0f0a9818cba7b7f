package server

import (
	"fmt"
	"strings"
	"time"

	"agentlog-shell/internal/model"
)

var divider = strings.Repeat("=", 70)

// FormatBanner renders ev as the multi-line block shown in the UI log pane.
// at is printed as local HH:MM:SS.
func FormatBanner(at time.Time, ev model.LogEvent) string {
	return fmt.Sprintf("\n%s\n📩 [%s] message from '%s':\n%s\n%s\n",
		divider,
		at.Format("15:04:05"),
		ev.AgentName(),
		ev.Content,
		divider,
	)
}
