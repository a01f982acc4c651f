package scraper

import (
	"sort"
	"sync"
	"time"
)

// uptimeWindow is the number of recent scrape outcomes tracked for uptime %.
const uptimeWindow = 20

// SourceHealth summarises the recent scrape history of one gateway.
type SourceHealth struct {
	SourceID     string
	UptimePct    float64
	LastSuccess  time.Time
	LastError    string
	LastReadings int
}

// Tracker keeps a rolling window of scrape outcomes per source.
//
// All exported methods are safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	states map[string]*sourceState
}

type sourceState struct {
	history      []bool // circular buffer of scrape outcomes, newest last
	lastSuccess  time.Time
	lastError    string
	lastReadings int
}

// NewTracker returns a ready-to-use Tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*sourceState)}
}

// Record ingests one scrape result and returns the source's updated health.
func (t *Tracker) Record(res *Result) SourceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[res.SourceID]
	if !ok {
		st = &sourceState{}
		t.states[res.SourceID] = st
	}

	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, res.Err == nil)

	if res.Err != nil {
		st.lastError = res.Err.Error()
	} else {
		st.lastSuccess = res.ScrapedAt
		st.lastError = ""
		st.lastReadings = len(res.Readings)
	}
	return st.health(res.SourceID)
}

// Snapshot returns the health of every tracked source, sorted by id.
func (t *Tracker) Snapshot() []SourceHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SourceHealth, 0, len(t.states))
	for id, st := range t.states {
		out = append(out, st.health(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

func (st *sourceState) health(id string) SourceHealth {
	return SourceHealth{
		SourceID:     id,
		UptimePct:    st.uptimePct(),
		LastSuccess:  st.lastSuccess,
		LastError:    st.lastError,
		LastReadings: st.lastReadings,
	}
}

func (st *sourceState) uptimePct() float64 {
	if len(st.history) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range st.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}
