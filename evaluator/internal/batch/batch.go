// Package batch evaluates many lots in parallel against one shared,
// read-only profile library.
//
// Each lot is independent: a validation error aborts that lot only and is
// reported in its Outcome. Cancelling ctx stops submitting further lots;
// lots never started report the context error.
package batch

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Evaluator evaluates one lot. *assess.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(lot types.Lot, readings []types.TemperatureReading, now time.Time) (types.DecisionResult, error)
}

// Job is one lot with its readings.
type Job struct {
	Lot      types.Lot
	Readings []types.TemperatureReading
}

// Outcome is the result of one Job. Exactly one of Result and Err is meaningful.
type Outcome struct {
	Lot    types.Lot
	Result types.DecisionResult
	Err    error
}

// Run evaluates jobs with at most workers in flight and returns one Outcome
// per job, in job order. now is shared by every evaluation of the batch.
// A non-positive workers uses the number of CPUs.
func Run(ctx context.Context, ev Evaluator, jobs []Job, now time.Time, workers int) []Outcome {
	out := make([]Outcome, len(jobs))
	for i, j := range jobs {
		out[i].Lot = j.Lot
	}

	var g errgroup.Group
	g.SetLimit(workerCount(workers, len(jobs)))

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			for k := i; k < len(jobs); k++ {
				out[k].Err = err
			}
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			res, err := ev.Evaluate(jobs[i].Lot, jobs[i].Readings, now)
			if err != nil {
				slog.Warn("batch: entity skipped", "entity", jobs[i].Lot.ID, "err", err)
				out[i].Err = err
				return nil
			}
			out[i].Result = res
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// Results returns the successful results of outcomes, in order.
func Results(outcomes []Outcome) []types.DecisionResult {
	out := make([]types.DecisionResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err == nil {
			out = append(out, o.Result)
		}
	}
	return out
}

func workerCount(workers, jobs int) int {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return max(min(workers, jobs), 1)
}
