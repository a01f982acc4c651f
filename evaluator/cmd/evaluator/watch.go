package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/vvmguard/vvmguard/evaluator/internal/config"
	"github.com/vvmguard/vvmguard/evaluator/internal/scraper"
)

// watch scrapes every configured gateway each scrape interval, keeps the
// readings window and re-evaluates all lots. It runs until ctx is cancelled.
func (a *app) watch(ctx context.Context, configPath string) error {
	wc := a.cfg.Evaluator.Watch

	st := a.newStore()
	go st.Run(ctx)

	var scrapers []*scraper.Scraper
	for _, src := range wc.Sources {
		s, err := scraper.New(src)
		if err != nil {
			slog.Error("skipping source, could not build scraper", "source", src.ID, "err", err)
			continue
		}
		scrapers = append(scrapers, s)
		slog.Info("registered source", "id", src.ID, "endpoint", src.Endpoint, "metric", src.Metric)
	}
	if len(scrapers) == 0 {
		slog.Warn("no sources configured, evaluator will only re-evaluate stored readings")
	}

	go func() {
		if err := config.WatchFile(ctx, a.cfg.Evaluator.LibraryPath, a.reloadLibrary); err != nil {
			slog.Error("library watcher stopped", "err", err)
		}
	}()

	go func() {
		err := config.Watch(ctx, configPath, func(c *config.Config) {
			slog.Warn("config changed on disk, restart to apply",
				"sources", len(c.Evaluator.Watch.Sources),
				"scrape_interval", c.Evaluator.Watch.ScrapeInterval,
			)
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	tracker := scraper.NewTracker()
	cycle := func() {
		for _, s := range scrapers {
			res := s.Scrape(ctx)
			h := tracker.Record(res)
			if res.Err != nil {
				slog.Warn("scrape error", "source", s.ID(), "err", res.Err, "uptime_pct", h.UptimePct)
				continue
			}
			added := st.Append(res.Readings...)
			slog.Debug("scraped", "source", s.ID(), "readings", len(res.Readings), "new", added)
		}
		snap := a.current.Load()
		a.evaluate(ctx, snap, st.Readings)
	}

	cycle()
	ticker := time.NewTicker(wc.ScrapeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			for _, h := range tracker.Snapshot() {
				slog.Info("source summary", "source", h.SourceID, "uptime_pct", h.UptimePct, "last_success", h.LastSuccess)
			}
			return nil
		case <-ticker.C:
			cycle()
		}
	}
}
