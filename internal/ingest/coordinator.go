// Package ingest orchestrates a full or incremental crawl of one show.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/metrics"
	"github.com/radiocrate/radiocrate/internal/resolve"
	"github.com/radiocrate/radiocrate/internal/scrape"
	"github.com/radiocrate/radiocrate/internal/store"
)

// archiveEpoch predates any archived episode: the date of the first
// radio broadcast. A show with no ingested playlists crawls its whole
// archive.
var archiveEpoch = time.Date(1901, 12, 12, 0, 0, 0, 0, time.UTC)

// RunOptions bound one crawl. Both dates are inclusive and optional:
// a nil StartDate resumes from the latest ingested episode, a nil
// EndDate crawls to the newest.
type RunOptions struct {
	StartDate *time.Time
	EndDate   *time.Time
}

// Coordinator drives index crawling, episode parsing, and persistence
// for one show at a time. Independent coordinators may run concurrently
// as long as they own disjoint broadcasts.
type Coordinator struct {
	store    store.Store
	fetcher  scrape.Fetcher
	parser   *scrape.EpisodeParser
	metadata *scrape.MetadataResolver
	resolver *resolve.Resolver
	crawl    *metrics.Crawl
	logger   *zap.Logger
	now      func() time.Time
}

func NewCoordinator(
	st store.Store,
	fetcher scrape.Fetcher,
	parser *scrape.EpisodeParser,
	metadata *scrape.MetadataResolver,
	resolver *resolve.Resolver,
	crawl *metrics.Crawl,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		store:    st,
		fetcher:  fetcher,
		parser:   parser,
		metadata: metadata,
		resolver: resolver,
		crawl:    crawl,
		logger:   logger,
		now:      time.Now,
	}
}

// Run crawls one broadcast's archive between the run's date bounds.
// Every completed episode is durable on its own; a failure in one
// episode or page never rolls back the rest of the run.
func (c *Coordinator) Run(ctx context.Context, station store.Station, b store.Broadcast, opts RunOptions) error {
	logger := c.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("broadcast", b.Title))

	c.crawl.ActiveCrawls.Inc()
	defer c.crawl.ActiveCrawls.Dec()

	startDate, err := c.startDate(ctx, b, opts.StartDate)
	if err != nil {
		return err
	}
	logger.Info("starting crawl",
		zap.Time("start_date", startDate),
		zap.Timep("end_date", opts.EndDate))

	// The page cache lives and dies with this run.
	crawler := scrape.NewIndexCrawler(c.fetcher, station.BaseURL, logger)
	slug := b.Slug()

	if firstPage, ok := crawler.OpenIndexPage(ctx, slug, 1); ok {
		c.crawl.PagesFetched.Inc()
		if err := c.refreshMetadata(ctx, crawler, firstPage, &b); err != nil {
			return err
		}
	} else {
		c.crawl.FetchErrors.Inc()
		logger.Warn("first index page unavailable, skipping metadata refresh")
	}

	page := crawler.FindStartPage(ctx, slug, startDate)
	done := false
	for {
		doc, ok := crawler.OpenIndexPage(ctx, slug, page)
		if !ok {
			c.crawl.FetchErrors.Inc()
			break
		}
		c.crawl.PagesFetched.Inc()

		// Oldest entry first, so interruption always leaves a resumable
		// latest-ingested date.
		stubs := crawler.EpisodeStubs(doc)
		for i := len(stubs) - 1; i >= 0; i-- {
			stub := stubs[i]
			if opts.EndDate != nil && stub.AirDate.After(*opts.EndDate) {
				logger.Info("reached end date, stopping", zap.Time("episode", stub.AirDate))
				done = true
				break
			}
			if !stub.AirDate.After(startDate) {
				continue
			}
			c.ingestEpisode(ctx, logger, station, b, stub)
		}

		if done || page == 1 {
			break
		}
		page--
	}

	return c.finalize(ctx, logger, b)
}

func (c *Coordinator) startDate(ctx context.Context, b store.Broadcast, explicit *time.Time) (time.Time, error) {
	if explicit != nil {
		return *explicit, nil
	}
	latest, err := c.store.LatestPlaylistAirDate(ctx, b.ID)
	if errors.Is(err, store.ErrNotFound) {
		return archiveEpoch, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest, nil
}

// refreshMetadata re-derives the broadcast's schedule, activity, title,
// and DJ from the first index page and persists the result.
func (c *Coordinator) refreshMetadata(ctx context.Context, crawler *scrape.IndexCrawler, firstPage *goquery.Document, b *store.Broadcast) error {
	dates := crawler.FetchDates(firstPage)
	dj := c.metadata.UpdateBroadcastDetails(firstPage, b, dates)
	updateTitle(b, strings.TrimSpace(firstPage.Find("div.content-center h1.main-title").First().Text()))

	if dj != nil {
		saved, err := c.store.SaveDJ(ctx, *dj)
		if err != nil {
			return fmt.Errorf("save dj: %w", err)
		}
		b.DJID = &saved.ID
	}
	if err := c.store.UpdateBroadcast(ctx, *b); err != nil {
		return fmt.Errorf("update broadcast metadata: %w", err)
	}
	return nil
}

// updateTitle shifts the current title into the audit field when the
// scraped one differs.
func updateTitle(b *store.Broadcast, scraped string) {
	if scraped == "" || scraped == b.Title {
		return
	}
	if b.Title != "" {
		b.PriorTitle = b.Title
	}
	b.Title = scraped
}

// ingestEpisode fetches, parses, and persists one episode. Failures are
// logged and contained; the caller moves on to the next episode.
func (c *Coordinator) ingestEpisode(ctx context.Context, logger *zap.Logger, station store.Station, b store.Broadcast, stub scrape.EpisodeStub) {
	doc, err := c.fetcher.Fetch(ctx, stub.URL)
	if err != nil {
		c.crawl.FetchErrors.Inc()
		logger.Warn("episode page unavailable, skipping",
			zap.String("url", stub.URL), zap.Error(err))
		return
	}
	c.crawl.PagesFetched.Inc()

	tracks := c.parser.ParseTracks(doc)
	links := c.parser.ExtractDownloadLinks(doc)

	if err := c.persistEpisode(ctx, station, b, stub, tracks, links); err != nil {
		c.crawl.EpisodeFailures.Inc()
		logger.Error("episode persistence failed, continuing",
			zap.String("url", stub.URL),
			zap.Time("air_date", stub.AirDate),
			zap.Error(err))
		return
	}
	c.crawl.EpisodesIngested.Inc()
	logger.Info("episode ingested",
		zap.String("title", stub.Title),
		zap.Time("air_date", stub.AirDate),
		zap.Int("tracks", len(tracks)))
}

// persistEpisode writes the playlist, its raw import, and all resolved
// track rows in one transaction.
func (c *Coordinator) persistEpisode(ctx context.Context, station store.Station, b store.Broadcast, stub scrape.EpisodeStub, tracks []store.RawTrack, links []string) error {
	pl := store.Playlist{
		BroadcastID: b.ID,
		StationID:   station.ID,
		Title:       stub.Title,
		AirDate:     stub.AirDate,
		URL:         stub.URL,
	}
	if len(links) > 0 {
		pl.DownloadURL1 = links[0]
	}
	if len(links) > 1 {
		pl.DownloadURL2 = links[1]
	}

	return c.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		saved, err := tx.UpsertPlaylist(ctx, pl)
		if err != nil {
			return err
		}
		if err := tx.ReplaceRawImport(ctx, saved.ID, tracks); err != nil {
			return err
		}
		if err := tx.ClearPlaylistTracks(ctx, saved.ID); err != nil {
			return err
		}
		for _, track := range tracks {
			if err := c.persistTrack(ctx, tx, saved, track); err != nil {
				return err
			}
		}
		return nil
	})
}

// persistTrack resolves one raw track's entities and links it into the
// playlist. A blank artist or title skips the track without error;
// anything else aborts the episode's transaction.
func (c *Coordinator) persistTrack(ctx context.Context, tx store.Tx, pl store.Playlist, track store.RawTrack) error {
	if strings.TrimSpace(track.Artist) == "" || strings.TrimSpace(track.Title) == "" {
		c.crawl.TracksSkipped.Inc()
		c.logger.Debug("skipping track with blank required field",
			zap.Int64("playlist_id", pl.ID),
			zap.Int("position", track.TrackNumber))
		return nil
	}

	artist, err := c.resolver.Resolve(ctx, tx, store.KindArtist, track.Artist, nil)
	if err != nil {
		return err
	}
	song, err := c.resolver.Resolve(ctx, tx, store.KindSong, track.Title, &artist.ID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(track.Album) != "" {
		album, err := c.resolver.Resolve(ctx, tx, store.KindAlbum, track.Album, &artist.ID)
		if err != nil {
			return err
		}
		if err := tx.LinkSongAlbum(ctx, song.ID, album.ID); err != nil {
			return err
		}
		if strings.TrimSpace(track.Label) != "" {
			label, err := c.resolver.Resolve(ctx, tx, store.KindRecordLabel, track.Label, nil)
			if err != nil {
				return err
			}
			if err := tx.SetAlbumLabel(ctx, album.ID, label.ID); err != nil {
				return err
			}
		}
	}

	return tx.AddPlaylistTrack(ctx, store.PlaylistTrack{
		PlaylistID: pl.ID,
		SongID:     song.ID,
		Position:   track.TrackNumber,
		StartTime:  track.StartTime,
	})
}

// finalize backfills the air-end time from the newest playlist's track
// span and stamps the run.
func (c *Coordinator) finalize(ctx context.Context, logger *zap.Logger, b store.Broadcast) error {
	span, err := c.store.LatestTrackSpan(ctx, b.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Nothing with timestamps yet.
	case err != nil:
		return err
	default:
		current, err := c.store.BroadcastByURL(ctx, b.URL)
		if err != nil {
			return err
		}
		b = current
		c.metadata.BackfillAirEnd(&b, span)
	}

	now := c.now()
	b.LastScrapedAt = &now
	if err := c.store.UpdateBroadcast(ctx, b); err != nil {
		return fmt.Errorf("finalize broadcast: %w", err)
	}
	logger.Info("crawl finished")
	return nil
}
