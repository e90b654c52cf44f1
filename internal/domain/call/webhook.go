package call

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
	"strings"
)

// summaryLimit caps derived call summaries; anything longer is truncated
// with a trailing ellipsis.
const summaryLimit = 500

// WebhookEvent is the inbound shape posted by the call provider. Only the
// fields the reconciler consumes are modeled; everything else is ignored.
type WebhookEvent struct {
	Type string      `json:"type"`
	Call WebhookCall `json:"call"`
}

type WebhookCall struct {
	ID                string                 `json:"id"`
	Metadata          map[string]interface{} `json:"metadata"`
	WorkflowOverrides struct {
		VariableValues map[string]interface{} `json:"variableValues"`
	} `json:"workflowOverrides"`
	EndedReason string          `json:"endedReason"`
	Duration    *float64        `json:"duration"`
	Transcript  json.RawMessage `json:"transcript"`
}

// CorrelationID extracts the application-supplied scheduled call id. The
// provider echoes it back in metadata on some event shapes and in the
// workflow variable values on others, so both are checked.
func (c *WebhookCall) CorrelationID() string {
	if id, ok := c.Metadata["scheduled_call_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := c.WorkflowOverrides.VariableValues["scheduled_call_id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// DedupKey fingerprints the fields an event can mutate, so a redelivery of
// the exact same event is dropped while one carrying corrected data still
// applies. Events that merge on every arrival are never deduplicated;
// ok is false for those and for events without a provider call id.
func (e *WebhookEvent) DedupKey() (key string, ok bool) {
	switch e.Type {
	case "call-forwarded", "function-call":
		return "", false
	}
	if e.Call.ID == "" {
		return "", false
	}

	h := fnv.New64a()
	for _, part := range []string{e.Type, e.Call.ID, e.Call.EndedReason} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	if e.Call.Duration != nil {
		h.Write([]byte(strconv.FormatFloat(*e.Call.Duration, 'g', -1, 64)))
	}
	h.Write([]byte{0})
	h.Write(e.Call.Transcript)
	return e.Call.ID + ":" + strconv.FormatUint(h.Sum64(), 16), true
}

type transcriptMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
	Content string `json:"content"`
}

// summarizeTranscript derives a call summary from the provider's transcript
// field, which arrives either as one string or as an array of message
// fragments. An unrecognized shape yields an empty summary; derivation is
// best-effort and never fails the webhook.
func summarizeTranscript(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return truncateSummary(text)
	}

	var messages []transcriptMessage
	if err := json.Unmarshal(raw, &messages); err == nil {
		parts := make([]string, 0, len(messages))
		for _, m := range messages {
			body := m.Message
			if body == "" {
				body = m.Content
			}
			if body == "" {
				continue
			}
			if m.Role != "" {
				body = m.Role + ": " + body
			}
			parts = append(parts, body)
		}
		return truncateSummary(strings.Join(parts, " "))
	}

	return ""
}

func truncateSummary(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= summaryLimit {
		return s
	}
	return string(runes[:summaryLimit]) + "..."
}
