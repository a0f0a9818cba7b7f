// internal/model/event.go
package model

import "fmt"

// UnknownAgent replaces an empty agent name in the banner.
const UnknownAgent = "Unknown"

// LogEvent
// ------------------------------------------------------------
// One notification posted by an external agent process to /log.
// Both fields are optional and default to "". It lives only for the
// request that carried it: decoded, formatted into a banner, discarded.
type LogEvent struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// AgentName returns Agent, or UnknownAgent when it is empty.
func (e LogEvent) AgentName() string {
	if e.Agent == "" {
		return UnknownAgent
	}
	return e.Agent
}

// Received is the JSON body acknowledging an accepted LogEvent.
type Received struct {
	Status string `json:"status"`
}

// ProxyRequest
// ------------------------------------------------------------
// Job description sent to the generation backend. Date is the caller's
// day offset (0 = today).
type ProxyRequest struct {
	City string `json:"city"`
	Date int    `json:"date"`
}

// ProxyResult
// ------------------------------------------------------------
// Backend status and raw body, handed back to the caller as one string.
type ProxyResult struct {
	StatusLine string
	Body       string
}

func (r ProxyResult) String() string {
	return fmt.Sprintf("Status: %s\nResponse: %s", r.StatusLine, r.Body)
}
