package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vvmguard/vvmguard/pkg/types"
)

// Store is a thread-safe readings window keyed by entity id.
type Store struct {
	mu        sync.RWMutex
	data      map[string][]types.TemperatureReading
	retention time.Duration
	keep      func(entityID string) bool
	now       func() time.Time // injectable for deterministic tests
}

// New creates a Store that keeps readings for the given retention.
func New(retention time.Duration) *Store {
	return &Store{
		data:      make(map[string][]types.TemperatureReading),
		retention: retention,
		now:       time.Now,
	}
}

// Retain exempts every entity for which keep returns true from eviction.
// Cumulative exposure is derived from the full series, so entities still
// under evaluation must keep all of their readings. A nil keep evicts all.
func (s *Store) Retain(keep func(entityID string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keep = keep
}

// Append adds readings to their entities' series. A reading whose
// RecordedAt is already stored for the entity is ignored. It returns the
// number of readings actually added.
func (s *Store) Append(readings ...types.TemperatureReading) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, r := range readings {
		series := s.data[r.EntityID]
		i := sort.Search(len(series), func(i int) bool {
			return !series[i].RecordedAt.Before(r.RecordedAt)
		})
		if i < len(series) && series[i].RecordedAt.Equal(r.RecordedAt) {
			continue
		}
		series = append(series, types.TemperatureReading{})
		copy(series[i+1:], series[i:])
		series[i] = r
		s.data[r.EntityID] = series
		added++
	}
	return added
}

// Readings returns a chronological copy of the entity's series.
func (s *Store) Readings(entityID string) []types.TemperatureReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.data[entityID]
	out := make([]types.TemperatureReading, len(series))
	copy(out, series)
	return out
}

// Entities returns the ids of all entities with at least one reading, sorted.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for id := range s.data {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the total number of readings held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, series := range s.data {
		n += len(series)
	}
	return n
}

// Evict removes readings recorded at or before now minus the retention and
// drops entities left without readings. Entities exempted by Retain are
// skipped. It returns the number of readings removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.retention)
	removed := 0
	for id, series := range s.data {
		if s.keep != nil && s.keep(id) {
			continue
		}
		i := sort.Search(len(series), func(i int) bool {
			return series[i].RecordedAt.After(cutoff)
		})
		if i == 0 {
			continue
		}
		removed += i
		if i == len(series) {
			delete(s.data, id)
			continue
		}
		s.data[id] = append([]types.TemperatureReading(nil), series[i:]...)
	}
	return removed
}

// Run starts the background eviction loop. It ticks at half the retention
// (minimum 1 second, maximum 1 hour). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Hour {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Evict(s.now()); n > 0 {
				slog.Debug("store: evicted expired readings", "count", n)
			}
		}
	}
}
