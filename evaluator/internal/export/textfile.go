// Package export writes decision results as Prometheus gauges in the text
// exposition format, ready for the node-exporter textfile collector.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Metric names.
const (
	MetricHER           = "vvmguard_her"
	MetricStage         = "vvmguard_stage"
	MetricAlertLevel    = "vvmguard_alert_level"
	MetricDecision      = "vvmguard_decision"
	MetricBudgetPct     = "vvmguard_budget_consumed_pct"
	MetricThawRemaining = "vvmguard_thaw_remaining_hours"
)

// Families converts results into metric families, one series per lot.
// Families without samples are omitted.
// Results are ordered by entity id so the output is stable.
func Families(results []types.DecisionResult) []*dto.MetricFamily {
	sorted := make([]types.DecisionResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EntityID < sorted[j].EntityID })

	her := gauge(MetricHER, "Heat exposure ratio: degradation hours over shelf life hours.")
	stage := gauge(MetricStage, "VVM stage: 0=NONE 1=A 2=B 3=C 4=D.")
	alert := gauge(MetricAlertLevel, "Alert level: 0=GREEN 1=YELLOW 2=RED.")
	decision := gauge(MetricDecision, "Current decision per lot; the series with value 1 carries the decision code.")
	budget := gauge(MetricBudgetPct, "Thermal stability budget consumed, percent, capped at 100.")
	thaw := gauge(MetricThawRemaining, "Hours left in the thaw window of thawing lots.")

	for _, r := range sorted {
		lots := lotLabels(r)
		her.Metric = append(her.Metric, sample(r.HER, lots...))
		stage.Metric = append(stage.Metric, sample(float64(r.Stage), lots...))
		alert.Metric = append(alert.Metric, sample(float64(r.AlertLevel.Severity()), lots...))
		decision.Metric = append(decision.Metric,
			sample(1, append(lots, label("decision_code", string(r.DecisionCode)), label("status", string(r.Status)))...))
		budget.Metric = append(budget.Metric, sample(r.StabilityBudgetConsumedPct, lots...))
		if r.ThawRemainingHours != nil {
			thaw.Metric = append(thaw.Metric, sample(*r.ThawRemainingHours, lots...))
		}
	}

	// The text encoder rejects families without samples.
	var out []*dto.MetricFamily
	for _, mf := range []*dto.MetricFamily{her, stage, alert, decision, budget, thaw} {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

// WriteTextfile writes results to w in the Prometheus text format.
func WriteTextfile(w io.Writer, results []types.DecisionResult) error {
	for _, mf := range Families(results) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("export: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteFile writes results to path atomically: a temp file in the same
// directory is renamed over path so the collector never reads a partial file.
func WriteFile(path string, results []types.DecisionResult) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vvmguard-*.prom")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTextfile(tmp, results); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("export: chmod: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename: %w", err)
	}
	return nil
}

func gauge(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func sample(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{
		Label: labels,
		Gauge: &dto.Gauge{Value: proto.Float64(v)},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

// lotLabels returns a fresh slice each call so appends never alias.
func lotLabels(r types.DecisionResult) []*dto.LabelPair {
	return []*dto.LabelPair{
		label("entity_id", r.EntityID),
		label("profile_id", r.ProfileID),
	}
}
