package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/vvmguard/vvmguard/evaluator/internal/config"
	"github.com/vvmguard/vvmguard/pkg/types"
)

const (
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert is one alert event for a lot.
type Alert struct {
	ID           string             `json:"id"`
	EntityID     string             `json:"entity_id"`
	Level        types.AlertLevel   `json:"level"`
	DecisionCode types.DecisionCode `json:"decision_code"`
	HER          float64            `json:"her"`
	Message      string             `json:"message"`
	FiredAt      time.Time          `json:"fired_at"`
	ResolvedAt   *time.Time         `json:"resolved_at,omitempty"`
	State        string             `json:"state"` // "firing" | "resolved"
}

// Engine evaluates decision results and delivers webhook notifications when
// lots fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	minLevel types.AlertLevel
	cooldown time.Duration
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: entity id
	lastFire map[string]time.Time // last fire time per entity (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time
	wg       sync.WaitGroup
}

// New creates an Engine from the alert configuration.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		minLevel: cfg.Level(),
		cooldown: cfg.Cooldown,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Evaluate tests res against the minimum level.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose lot is now below the level are resolved.
func (e *Engine) Evaluate(res types.DecisionResult) {
	now := e.now()
	key := res.EntityID
	fires := res.AlertLevel.Severity() >= e.minLevel.Severity()

	e.mu.Lock()
	prev, firing := e.active[key]

	if fires {
		escalated := firing && res.AlertLevel.Severity() > prev.Level.Severity()
		if !escalated && now.Sub(e.lastFire[key]) <= e.cooldown && !e.lastFire[key].IsZero() {
			e.mu.Unlock()
			return
		}
		a := &Alert{
			ID:           fmt.Sprintf("%s:%d", key, now.UnixNano()),
			EntityID:     key,
			Level:        res.AlertLevel,
			DecisionCode: res.DecisionCode,
			HER:          res.HER,
			Message:      message(res),
			FiredAt:      now,
			State:        "firing",
		}
		e.active[key] = a
		e.lastFire[key] = now
		alertCopy := *a
		e.mu.Unlock()

		slog.Warn("alerts: lot fired",
			"entity", key,
			"level", res.AlertLevel,
			"decision", res.DecisionCode,
			"her", res.HER,
		)
		e.dispatch(&alertCopy)
		return
	}

	if !firing {
		e.mu.Unlock()
		return
	}
	resolved := now
	prev.State = "resolved"
	prev.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, prev)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	alertCopy := *prev
	e.mu.Unlock()

	slog.Info("alerts: lot resolved", "entity", key, "level", res.AlertLevel)
	e.dispatch(&alertCopy)
}

func (e *Engine) dispatch(a *Alert) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(a)
	}()
}

// Wait blocks until every pending webhook delivery has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return latest(out[i]).After(latest(out[j])) })
	return out
}

func latest(a *Alert) time.Time {
	if a.ResolvedAt != nil {
		return *a.ResolvedAt
	}
	return a.FiredAt
}

func message(res types.DecisionResult) string {
	msg := fmt.Sprintf("[%s] lot %s (%s): %s, status %s, HER %.2f",
		res.AlertLevel, res.EntityID, res.ProfileID, res.DecisionCode, res.Status, res.HER)
	if len(res.Recommendations) > 0 {
		msg += ". " + res.Recommendations[0]
	}
	return msg
}
