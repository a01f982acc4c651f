package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vvmguard/vvmguard/pkg/types"
)

var now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

var errBadProfile = errors.New("bad profile")

// fakeEvaluator echoes the lot id and fails for lots whose profile is "bad".
type fakeEvaluator struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeEvaluator) Evaluate(lot types.Lot, readings []types.TemperatureReading, at time.Time) (types.DecisionResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(f.delay)

	if lot.ProfileID == "bad" {
		return types.DecisionResult{}, fmt.Errorf("lot %s: %w", lot.ID, errBadProfile)
	}
	return types.DecisionResult{EntityID: lot.ID, EvaluatedAt: at, Stats: types.ExposureStats{EntryCount: len(readings)}}, nil
}

func jobs(n int) []Job {
	out := make([]Job, n)
	for i := range out {
		out[i] = Job{Lot: types.Lot{ID: fmt.Sprintf("lot-%02d", i), ProfileID: "measles"}}
	}
	return out
}

func TestRun_OrderPreserved(t *testing.T) {
	ev := &fakeEvaluator{}
	js := jobs(25)
	out := Run(context.Background(), ev, js, now, 4)

	if len(out) != len(js) {
		t.Fatalf("outcomes = %d, want %d", len(out), len(js))
	}
	for i, o := range out {
		if o.Err != nil {
			t.Fatalf("outcome %d: unexpected error %v", i, o.Err)
		}
		if o.Result.EntityID != js[i].Lot.ID || o.Lot.ID != js[i].Lot.ID {
			t.Errorf("outcome %d = %s, want %s", i, o.Result.EntityID, js[i].Lot.ID)
		}
		if !o.Result.EvaluatedAt.Equal(now) {
			t.Errorf("outcome %d evaluated at %v, want shared now", i, o.Result.EvaluatedAt)
		}
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	ev := &fakeEvaluator{delay: 10 * time.Millisecond}
	Run(context.Background(), ev, jobs(20), now, 3)
	if p := ev.peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
}

func TestRun_ErrorAbortsOneLotOnly(t *testing.T) {
	js := jobs(5)
	js[2].Lot.ProfileID = "bad"
	out := Run(context.Background(), &fakeEvaluator{}, js, now, 2)

	for i, o := range out {
		if i == 2 {
			if !errors.Is(o.Err, errBadProfile) {
				t.Errorf("outcome 2 error = %v, want errBadProfile", o.Err)
			}
			continue
		}
		if o.Err != nil {
			t.Errorf("outcome %d: unexpected error %v", i, o.Err)
		}
	}
	if got := len(Results(out)); got != 4 {
		t.Errorf("Results = %d, want 4", got)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := Run(ctx, &fakeEvaluator{}, jobs(3), now, 2)
	for i, o := range out {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("outcome %d error = %v, want context.Canceled", i, o.Err)
		}
		if o.Lot.ID == "" {
			t.Errorf("outcome %d lost its lot", i)
		}
	}
}

func TestRun_NoJobs(t *testing.T) {
	if out := Run(context.Background(), &fakeEvaluator{}, nil, now, 4); len(out) != 0 {
		t.Errorf("outcomes = %d, want 0", len(out))
	}
}

func TestWorkerCount(t *testing.T) {
	if got := workerCount(8, 3); got != 3 {
		t.Errorf("workerCount(8, 3) = %d, want 3", got)
	}
	if got := workerCount(2, 10); got != 2 {
		t.Errorf("workerCount(2, 10) = %d, want 2", got)
	}
	if got := workerCount(4, 0); got != 1 {
		t.Errorf("workerCount(4, 0) = %d, want 1", got)
	}
	if got := workerCount(0, 1000); got < 1 {
		t.Errorf("workerCount(0, 1000) = %d, want >= 1", got)
	}
}
