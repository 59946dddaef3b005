// Package metrics exposes Prometheus instrumentation for the crawler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Crawl holds the collectors written during ingestion runs.
type Crawl struct {
	PagesFetched     prometheus.Counter
	FetchErrors      prometheus.Counter
	EpisodesIngested prometheus.Counter
	EpisodeFailures  prometheus.Counter
	TracksSkipped    prometheus.Counter
	ActiveCrawls     prometheus.Gauge
}

// NewCrawl registers the crawl collectors on reg.
func NewCrawl(reg prometheus.Registerer) *Crawl {
	c := &Crawl{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiocrate_pages_fetched_total",
			Help: "Index and episode pages fetched.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiocrate_fetch_errors_total",
			Help: "Pages that could not be fetched or parsed.",
		}),
		EpisodesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiocrate_episodes_ingested_total",
			Help: "Episodes persisted, including idempotent re-ingests.",
		}),
		EpisodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiocrate_episode_failures_total",
			Help: "Episodes whose transaction rolled back.",
		}),
		TracksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiocrate_tracks_skipped_total",
			Help: "Tracks dropped for malformed datetimes or blank required fields.",
		}),
		ActiveCrawls: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "radiocrate_active_crawls",
			Help: "Ingestion runs currently in flight.",
		}),
	}
	reg.MustRegister(c.PagesFetched, c.FetchErrors, c.EpisodesIngested,
		c.EpisodeFailures, c.TracksSkipped, c.ActiveCrawls)
	return c
}

// NewNopCrawl returns unregistered collectors for tests and callers
// that do not scrape metrics.
func NewNopCrawl() *Crawl {
	reg := prometheus.NewRegistry()
	return NewCrawl(reg)
}
