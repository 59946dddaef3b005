package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/ingest"
	"github.com/radiocrate/radiocrate/internal/metrics"
	"github.com/radiocrate/radiocrate/internal/rebroadcast"
	"github.com/radiocrate/radiocrate/internal/resolve"
	"github.com/radiocrate/radiocrate/internal/scrape"
	"github.com/radiocrate/radiocrate/internal/store"
	"github.com/radiocrate/radiocrate/internal/textnorm"
)

const ingestDateLayout = "2006-01-02"

func newIngestCmd() *cobra.Command {
	var (
		startDate    string
		endDate      string
		detectReruns bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <show-slug> [show-slug...]",
		Short: "Crawl one or more shows' archives into the catalog",
		Long: `Crawls each named show's episode archive. Without --start the crawl
resumes from the latest previously-ingested episode, so repeated runs
are incremental. Both date bounds are inclusive.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseRunOptions(startDate, endDate)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return runIngest(cmd.Context(), a, args, opts, detectReruns)
		},
	}
	cmd.Flags().StringVar(&startDate, "start", "", "inclusive start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "inclusive end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&detectReruns, "detect-reruns", false, "run rerun detection after crawling")
	return cmd
}

func parseRunOptions(start, end string) (ingest.RunOptions, error) {
	var opts ingest.RunOptions
	if start != "" {
		t, err := time.Parse(ingestDateLayout, start)
		if err != nil {
			return opts, fmt.Errorf("invalid start date %q: %w", start, err)
		}
		opts.StartDate = &t
	}
	if end != "" {
		t, err := time.Parse(ingestDateLayout, end)
		if err != nil {
			return opts, fmt.Errorf("invalid end date %q: %w", end, err)
		}
		// Inclusive: cover the whole final day.
		t = t.Add(24*time.Hour - time.Second)
		opts.EndDate = &t
	}
	return opts, nil
}

func runIngest(ctx context.Context, a *app, slugs []string, opts ingest.RunOptions, detectReruns bool) error {
	station, err := a.store.FindOrCreateStation(ctx, store.Station{
		Name:     a.cfg.Station.Name,
		BaseURL:  a.cfg.Station.BaseURL,
		IndexURL: a.cfg.Station.IndexURL,
	})
	if err != nil {
		return fmt.Errorf("bootstrap station: %w", err)
	}

	fetcher := scrape.NewCollyFetcher(scrape.FetcherConfig{
		UserAgent: a.cfg.Crawler.UserAgent,
		Throttle:  a.cfg.Throttle(),
		Timeout:   a.cfg.RequestTimeout(),
	}, a.logger)
	norm := textnorm.NewNormalizer(a.cfg.Normalizer.Substitutions)
	coordinator := ingest.NewCoordinator(
		a.store,
		fetcher,
		scrape.NewEpisodeParser(a.logger),
		scrape.NewMetadataResolver(a.logger),
		resolve.NewResolver(norm, a.logger),
		metrics.NewCrawl(prometheus.DefaultRegisterer),
		a.logger,
	)

	var failed []string
	for _, slug := range slugs {
		b, err := a.store.FindOrCreateBroadcast(ctx, store.Broadcast{
			StationID: station.ID,
			Title:     titleFromSlug(slug),
			URL:       fmt.Sprintf("%s/programs/%s", strings.TrimRight(station.BaseURL, "/"), slug),
		})
		if err != nil {
			return fmt.Errorf("bootstrap broadcast %q: %w", slug, err)
		}
		if err := coordinator.Run(ctx, station, b, opts); err != nil {
			a.logger.Error("crawl failed", zap.String("show", slug), zap.Error(err))
			failed = append(failed, slug)
			continue
		}
		if detectReruns {
			report, err := rebroadcast.NewDetector(a.store, a.logger).Run(ctx, b.ID)
			if err != nil {
				a.logger.Error("rerun detection failed", zap.String("show", slug), zap.Error(err))
				continue
			}
			a.logger.Info("rerun detection finished",
				zap.String("show", slug),
				zap.Int("auto_linked", report.AutoLinked),
				zap.Int("queued", report.Queued))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("crawl failed for: %s", strings.Join(failed, ", "))
	}
	return nil
}

// titleFromSlug gives a new broadcast a readable provisional title; the
// first crawl replaces it with the scraped one.
func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
