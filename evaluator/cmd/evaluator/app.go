package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vvmguard/vvmguard/evaluator/internal/alerts"
	"github.com/vvmguard/vvmguard/evaluator/internal/assess"
	"github.com/vvmguard/vvmguard/evaluator/internal/audit"
	"github.com/vvmguard/vvmguard/evaluator/internal/batch"
	"github.com/vvmguard/vvmguard/evaluator/internal/ccm"
	"github.com/vvmguard/vvmguard/evaluator/internal/config"
	"github.com/vvmguard/vvmguard/evaluator/internal/export"
	"github.com/vvmguard/vvmguard/evaluator/internal/library"
	"github.com/vvmguard/vvmguard/evaluator/internal/readings"
	"github.com/vvmguard/vvmguard/evaluator/internal/store"
	"github.com/vvmguard/vvmguard/pkg/types"
)

// snapshot pairs a library with the evaluator bound to it. It is swapped
// as a whole when the library file changes.
type snapshot struct {
	lib *library.Library
	ev  *assess.Evaluator
}

type app struct {
	cfg     *config.Config
	now     func() time.Time
	monitor *ccm.Monitor
	current atomic.Pointer[snapshot]
	audit   *audit.Store // nil when disabled
	alerts  *alerts.Engine

	closeOnce sync.Once
}

func newApp(cfg *config.Config, now func() time.Time) (*app, error) {
	a := &app{
		cfg:     cfg,
		now:     now,
		monitor: ccm.New(cfg.Evaluator.CCM.DeltaThreshold, cfg.Evaluator.CCM.BaseTemp),
		alerts:  alerts.New(cfg.Alerts),
	}
	if err := a.reloadLibrary(); err != nil {
		return nil, err
	}
	if path := cfg.Evaluator.Audit.Path; path != "" {
		st, err := audit.NewStore(path)
		if err != nil {
			return nil, err
		}
		a.audit = st
	}
	return a, nil
}

// reloadLibrary loads the library file and swaps it in. On error the
// previous library stays active.
func (a *app) reloadLibrary() error {
	lib, err := library.Load(a.cfg.Evaluator.LibraryPath)
	if err != nil {
		return err
	}
	a.current.Store(&snapshot{lib: lib, ev: assess.New(lib, assess.WithMonitor(a.monitor))})
	slog.Info("library loaded",
		"path", a.cfg.Evaluator.LibraryPath,
		"profiles", len(lib.Profiles()),
		"lots", len(lib.Lots()),
	)
	return nil
}

func (a *app) close() {
	a.closeOnce.Do(func() {
		a.alerts.Wait()
		if a.audit != nil {
			if err := a.audit.Close(); err != nil {
				slog.Warn("audit: close failed", "err", err)
			}
		}
	})
}

// once evaluates every library lot against the readings file and writes
// the results as JSON to w.
func (a *app) once(ctx context.Context, w io.Writer) error {
	if a.cfg.Evaluator.ReadingsPath == "" {
		return fmt.Errorf("evaluator.readings_path is required without -watch")
	}
	byEntity, err := readings.Load(a.cfg.Evaluator.ReadingsPath)
	if err != nil {
		return err
	}

	snap := a.current.Load()
	results := a.evaluate(ctx, snap, func(id string) []types.TemperatureReading { return byEntity[id] })

	for id := range byEntity {
		if _, ok := snap.lib.Lot(id); !ok {
			slog.Warn("readings for unknown lot ignored", "entity", id)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// evaluate runs one batch over every lot of snap and publishes the results
// to the audit trail, the alert engine and the textfile export.
func (a *app) evaluate(ctx context.Context, snap *snapshot, readingsFor func(string) []types.TemperatureReading) []types.DecisionResult {
	lots := snap.lib.Lots()
	jobs := make([]batch.Job, len(lots))
	for i, lot := range lots {
		jobs[i] = batch.Job{Lot: lot, Readings: readingsFor(lot.ID)}
	}

	now := a.now()
	outcomes := batch.Run(ctx, snap.ev, jobs, now, a.cfg.Evaluator.Workers)
	results := batch.Results(outcomes)

	counts := map[types.Status]int{}
	for i := range results {
		results[i] = a.reaffirm(ctx, results[i])
		res := results[i]
		counts[res.Status]++
		a.alerts.Evaluate(res)
		if a.audit != nil {
			if _, err := a.audit.Record(ctx, res); err != nil {
				slog.Error("audit: record failed", "entity", res.EntityID, "err", err)
			}
		}
	}

	if path := a.cfg.Evaluator.Metrics.TextfilePath; path != "" {
		if err := export.WriteFile(path, results); err != nil {
			slog.Error("export: textfile write failed", "path", path, "err", err)
		}
	}

	slog.Info("batch evaluated",
		"now", now,
		"lots", len(lots),
		"failed", len(outcomes)-len(results),
		"safe", counts[types.StatusSafe],
		"partial", counts[types.StatusPartial],
		"discard", counts[types.StatusDiscard],
		"unknown", counts[types.StatusUnknown],
	)
	return results
}

// reaffirm keeps a lot discarded once the audit trail holds a rejection for
// it. Without an audit trail the result is returned unchanged.
func (a *app) reaffirm(ctx context.Context, res types.DecisionResult) types.DecisionResult {
	if a.audit == nil || res.DecisionCode.IsRejection() {
		return res
	}
	prev, ok, err := a.audit.LastRejection(ctx, res.EntityID)
	if err != nil {
		slog.Error("audit: rejection lookup failed", "entity", res.EntityID, "err", err)
		return res
	}
	if !ok {
		return res
	}
	slog.Info("earlier rejection stands", "entity", res.EntityID, "decision", prev.DecisionCode, "rejected_at", prev.EvaluatedAt)
	return assess.Reaffirm(res, prev.DecisionCode, prev.EvaluatedAt)
}

// newStore returns the readings window for watch mode. Lots in the active
// library keep their full series so cumulative exposure survives eviction.
func (a *app) newStore() *store.Store {
	st := store.New(a.cfg.Evaluator.Watch.Retention)
	st.Retain(func(entityID string) bool {
		_, ok := a.current.Load().lib.Lot(entityID)
		return ok
	})
	return st
}
