package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// deliver sends webhook notifications for a to all configured targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(url, a)
		case "teams":
			err = e.sendTeams(url, a)
		case "http":
			err = e.sendHTTP(url, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"entity", a.EntityID,
				"err", err,
			)
		} else {
			slog.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"entity", a.EntityID,
				"state", a.State,
			)
		}
	}
}

func (e *Engine) sendSlack(url string, a *Alert) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", stateLabel(a), a.Message),
	})
	return e.post(url, body)
}

func (e *Engine) sendTeams(url string, a *Alert) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": levelColor(a),
		"summary":    a.EntityID,
		"title":      fmt.Sprintf("Cold chain alert: lot %s %s", a.EntityID, a.State),
		"text":       a.Message,
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

func (e *Engine) sendHTTP(url string, a *Alert) error {
	body, err := json.Marshal(map[string]interface{}{"alert": httpAlert(a)})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// httpAlert replaces a non-finite HER, which encoding/json rejects, with nil.
func httpAlert(a *Alert) map[string]interface{} {
	out := map[string]interface{}{
		"id":            a.ID,
		"entity_id":     a.EntityID,
		"level":         a.Level,
		"decision_code": a.DecisionCode,
		"message":       a.Message,
		"fired_at":      a.FiredAt,
		"state":         a.State,
		"her":           nil,
	}
	if !math.IsNaN(a.HER) && !math.IsInf(a.HER, 0) {
		out["her"] = a.HER
	}
	if a.ResolvedAt != nil {
		out["resolved_at"] = *a.ResolvedAt
	}
	return out
}

func stateLabel(a *Alert) string {
	if a.State == "resolved" {
		return "[RESOLVED]"
	}
	return "[" + string(a.Level) + "]"
}

func levelColor(a *Alert) string {
	if a.State == "resolved" {
		return "2EB67D"
	}
	switch a.Level {
	case types.AlertRed:
		return "FF4F6A"
	case types.AlertYellow:
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
