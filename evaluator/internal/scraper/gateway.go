package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/vvmguard/vvmguard/evaluator/internal/config"
	"github.com/vvmguard/vvmguard/pkg/types"
)

// EntityLabel is the label that names the lot a sample belongs to.
const EntityLabel = "entity_id"

// Result is the output of one scrape cycle for a single source.
type Result struct {
	SourceID  string
	ScrapedAt time.Time

	// Readings holds one reading per usable sample, in exposition order.
	Readings []types.TemperatureReading

	// Skipped counts samples dropped for a missing entity_id, a non-gauge
	// type or a non-finite value.
	Skipped int

	// Err is non-nil if the scrape itself failed (connectivity, auth, parse).
	Err error
}

// Scraper polls one sensor gateway.
type Scraper struct {
	src    config.Source
	client *http.Client
	now    func() time.Time
}

// New returns a Scraper for src. It builds the HTTP client once and reuses
// it across scrape calls.
func New(src config.Source) (*Scraper, error) {
	client, err := buildHTTPClient(src)
	if err != nil {
		return nil, fmt.Errorf("scraper %q: build http client: %w", src.ID, err)
	}
	return &Scraper{src: src, client: client, now: time.Now}, nil
}

// ID returns the source id.
func (s *Scraper) ID() string { return s.src.ID }

// Scrape fetches the gateway's exposition and extracts the configured metric.
// A fetch failure is reported in Result.Err.
func (s *Scraper) Scrape(ctx context.Context) *Result {
	res := &Result{SourceID: s.src.ID, ScrapedAt: s.now().UTC()}

	mfs, err := fetchMetrics(ctx, s.client, s.src.Endpoint)
	if err != nil {
		res.Err = fmt.Errorf("gateway scrape %q: %w", s.src.ID, err)
		slog.Warn("scraper: gateway fetch failed", "source", s.src.ID, "err", err)
		return res
	}

	mf := mfs[s.src.Metric]
	if mf == nil {
		slog.Debug("scraper: metric not present", "source", s.src.ID, "metric", s.src.Metric)
		return res
	}

	for _, m := range mf.GetMetric() {
		id := labelValue(m, EntityLabel)
		v, ok := sampleValue(m)
		if id == "" || !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			res.Skipped++
			continue
		}
		at := res.ScrapedAt
		if m.TimestampMs != nil {
			at = time.UnixMilli(m.GetTimestampMs()).UTC()
		}
		res.Readings = append(res.Readings, types.TemperatureReading{
			EntityID:   id,
			Value:      v,
			RecordedAt: at,
		})
	}

	if res.Skipped > 0 {
		slog.Warn("scraper: samples skipped", "source", s.src.ID, "skipped", res.Skipped)
	}
	return res
}
