package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radiocrate/radiocrate/internal/metrics"
	"github.com/radiocrate/radiocrate/internal/resolve"
	"github.com/radiocrate/radiocrate/internal/scrape"
	"github.com/radiocrate/radiocrate/internal/store"
	"github.com/radiocrate/radiocrate/internal/textnorm"
)

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*goquery.Document, error) {
	html, ok := f.pages[url]
	if !ok {
		return nil, scrape.ErrUnavailable
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

type trackRow struct {
	timeStr, title, artist, album, label string
}

func episodeHTML(date string, tracks ...trackRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><div class="date">Tuesday, %s</div>`, date)
	b.WriteString(`<a class="player" href="https://cdn.xray.fm/a.mp3">a</a>` +
		`<a class="player" href="https://cdn.xray.fm/b.mp3">b</a>` +
		`<div class="creek-playlist"><ul>`)
	for _, tr := range tracks {
		fmt.Fprintf(&b, `<li class="creek-track"><span class="creek-track-time">%s</span>`+
			`<span class="creek-track-title">%s</span><span class="creek-track-artist">%s</span>`+
			`<span class="creek-track-album">%s</span><span class="creek-track-label">%s</span></li>`,
			tr.timeStr, tr.title, tr.artist, tr.album, tr.label)
	}
	b.WriteString(`</ul></div></body></html>`)
	return b.String()
}

func indexHTML(entries ...[3]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="content-center"><h1 class="main-title">Strange Babes</h1></div>` +
		`<div class="broadcasts-container">`)
	for _, e := range entries {
		fmt.Fprintf(&b, `<div class="broadcast"><div class="date">%s</div>`+
			`<div class="title"><a href="%s">%s</a></div></div>`, e[0], e[1], e[2])
	}
	b.WriteString(`</div><div class="pagination-container"><div class="pagination-inner"></div></div></body></html>`)
	return b.String()
}

type fixture struct {
	coord   *Coordinator
	store   *store.Memory
	station store.Station
	bc      store.Broadcast
}

func newFixture(t *testing.T, pages map[string]string) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mem := store.NewMemory()
	ctx := context.Background()

	station, err := mem.FindOrCreateStation(ctx, store.Station{Name: "XRAY", BaseURL: "https://xray.fm"})
	require.NoError(t, err)
	bc, err := mem.FindOrCreateBroadcast(ctx, store.Broadcast{
		StationID: station.ID,
		Title:     "Strange Babes",
		URL:       "https://xray.fm/programs/strange-babes",
	})
	require.NoError(t, err)

	norm := textnorm.NewNormalizer(nil)
	coord := NewCoordinator(
		mem,
		&fakeFetcher{pages: pages},
		scrape.NewEpisodeParser(logger),
		scrape.NewMetadataResolver(logger),
		resolve.NewResolver(norm, logger),
		metrics.NewNopCrawl(),
		logger,
	)
	return &fixture{coord: coord, store: mem, station: station, bc: bc}
}

func crawlWholeArchive() RunOptions {
	start := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	return RunOptions{StartDate: &start}
}

const indexPage1Key = "https://xray.fm/programs/strange-babes/page:1?url=broadcasts%2Fstrange-babes"

func TestCoordinatorIngestsArchive(t *testing.T) {
	pages := map[string]string{
		indexPage1Key: indexHTML(
			[3]string{"8:00PM, 3-19-2024", "/broadcasts/103", "Ep 103"},
			[3]string{"8:00PM, 3-12-2024", "/broadcasts/102", "Ep 102"},
		),
		"https://xray.fm/broadcasts/103": episodeHTML("3-19-2024",
			trackRow{"8:01PM", "Jenny", "Sleater-Kinney", "Call the Doctor", "Chainsaw"},
			trackRow{"8:05PM", "Dig Me Out", "Sleater-Kinney", "Dig Me Out", "Kill Rock Stars"},
		),
		"https://xray.fm/broadcasts/102": episodeHTML("3-12-2024",
			trackRow{"8:02PM", "Typical Girls", "The Slits", "Cut", "Island"},
		),
	}
	f := newFixture(t, pages)
	ctx := context.Background()

	require.NoError(t, f.coord.Run(ctx, f.station, f.bc, crawlWholeArchive()))

	playlists, err := f.store.PlaylistsByBroadcast(ctx, f.bc.ID)
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.Equal(t, "Ep 102", playlists[0].Title, "ordered by air date")
	assert.Equal(t, "https://cdn.xray.fm/a.mp3", playlists[0].DownloadURL1)
	assert.Equal(t, "https://cdn.xray.fm/b.mp3", playlists[0].DownloadURL2)

	songIDs, err := f.store.SongIDsByPlaylist(ctx, playlists[1].ID)
	require.NoError(t, err)
	assert.Len(t, songIDs, 2)

	artists, err := f.store.ListEntities(ctx, store.KindArtist)
	require.NoError(t, err)
	assert.Len(t, artists, 2, "Sleater-Kinney resolved once across tracks")

	// Metadata refresh ran from page 1.
	b, err := f.store.BroadcastByURL(ctx, f.bc.URL)
	require.NoError(t, err)
	assert.NotNil(t, b.LastScrapedAt)
	assert.True(t, b.FrequencyDays > 0)
	require.NotNil(t, b.AirDay)
	assert.Equal(t, int(time.Tuesday), *b.AirDay)
}

func TestCoordinatorIsIdempotent(t *testing.T) {
	pages := map[string]string{
		indexPage1Key: indexHTML(
			[3]string{"8:00PM, 3-19-2024", "/broadcasts/103", "Ep 103"},
		),
		"https://xray.fm/broadcasts/103": episodeHTML("3-19-2024",
			trackRow{"8:01PM", "Jenny", "Sleater-Kinney", "", ""},
			trackRow{"8:05PM", "Modern Girl", "Sleater-Kinney", "", ""},
		),
	}
	f := newFixture(t, pages)
	ctx := context.Background()

	require.NoError(t, f.coord.Run(ctx, f.station, f.bc, crawlWholeArchive()))
	require.NoError(t, f.coord.Run(ctx, f.station, f.bc, crawlWholeArchive()))

	playlists, err := f.store.PlaylistsByBroadcast(ctx, f.bc.ID)
	require.NoError(t, err)
	require.Len(t, playlists, 1, "re-crawling the same URL is an update, not an insert")

	songIDs, err := f.store.SongIDsByPlaylist(ctx, playlists[0].ID)
	require.NoError(t, err)
	assert.Len(t, songIDs, 2, "track associations are replaced, not appended")

	songs, err := f.store.ListEntities(ctx, store.KindSong)
	require.NoError(t, err)
	assert.Len(t, songs, 2)
}

func TestCoordinatorSkipsBlankTracksWithoutAbortingEpisode(t *testing.T) {
	tracks := make([]trackRow, 0, 21)
	for i := 0; i < 21; i++ {
		tr := trackRow{
			timeStr: fmt.Sprintf("8:%02dPM", i+1),
			title:   fmt.Sprintf("Song %02d", i+1),
			artist:  "The Regulars",
		}
		if i == 19 {
			tr.artist = "" // data-quality hole on track 20
		}
		tracks = append(tracks, tr)
	}
	pages := map[string]string{
		indexPage1Key: indexHTML(
			[3]string{"8:00PM, 3-19-2024", "/broadcasts/103", "Ep 103"},
		),
		"https://xray.fm/broadcasts/103": episodeHTML("3-19-2024", tracks...),
	}
	f := newFixture(t, pages)
	ctx := context.Background()

	require.NoError(t, f.coord.Run(ctx, f.station, f.bc, crawlWholeArchive()))

	playlists, err := f.store.PlaylistsByBroadcast(ctx, f.bc.ID)
	require.NoError(t, err)
	require.Len(t, playlists, 1)

	songIDs, err := f.store.SongIDsByPlaylist(ctx, playlists[0].ID)
	require.NoError(t, err)
	assert.Len(t, songIDs, 20, "only the blank track is dropped")

	songs, err := f.store.ListEntities(ctx, store.KindSong)
	require.NoError(t, err)
	assert.Len(t, songs, 20, "no placeholder entities for the blank row")
}

func TestCoordinatorSurvivesMissingEpisodePage(t *testing.T) {
	pages := map[string]string{
		indexPage1Key: indexHTML(
			[3]string{"8:00PM, 3-19-2024", "/broadcasts/103", "Ep 103"},
			[3]string{"8:00PM, 3-12-2024", "/broadcasts/102", "Ep 102"},
		),
		// 102 is missing entirely.
		"https://xray.fm/broadcasts/103": episodeHTML("3-19-2024",
			trackRow{"8:01PM", "Jenny", "Sleater-Kinney", "", ""},
		),
	}
	f := newFixture(t, pages)
	ctx := context.Background()

	require.NoError(t, f.coord.Run(ctx, f.station, f.bc, crawlWholeArchive()))

	playlists, err := f.store.PlaylistsByBroadcast(ctx, f.bc.ID)
	require.NoError(t, err)
	require.Len(t, playlists, 1)
	assert.Equal(t, "Ep 103", playlists[0].Title)
}

func TestCoordinatorHonorsEndDate(t *testing.T) {
	pages := map[string]string{
		indexPage1Key: indexHTML(
			[3]string{"8:00PM, 3-19-2024", "/broadcasts/103", "Ep 103"},
			[3]string{"8:00PM, 3-12-2024", "/broadcasts/102", "Ep 102"},
		),
		"https://xray.fm/broadcasts/102": episodeHTML("3-12-2024",
			trackRow{"8:02PM", "Typical Girls", "The Slits", "", ""},
		),
		"https://xray.fm/broadcasts/103": episodeHTML("3-19-2024",
			trackRow{"8:01PM", "Jenny", "Sleater-Kinney", "", ""},
		),
	}
	f := newFixture(t, pages)
	ctx := context.Background()

	opts := crawlWholeArchive()
	end := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	opts.EndDate = &end

	require.NoError(t, f.coord.Run(ctx, f.station, f.bc, opts))

	playlists, err := f.store.PlaylistsByBroadcast(ctx, f.bc.ID)
	require.NoError(t, err)
	require.Len(t, playlists, 1, "episodes past the end boundary are not ingested")
	assert.Equal(t, "Ep 102", playlists[0].Title)
}

func TestCoordinatorIncrementalByDefault(t *testing.T) {
	pages := map[string]string{
		indexPage1Key: indexHTML(
			[3]string{"8:00PM, 3-19-2024", "/broadcasts/103", "Ep 103"},
			[3]string{"8:00PM, 3-12-2024", "/broadcasts/102", "Ep 102"},
		),
		"https://xray.fm/broadcasts/102": episodeHTML("3-12-2024",
			trackRow{"8:02PM", "Typical Girls", "The Slits", "", ""},
		),
		"https://xray.fm/broadcasts/103": episodeHTML("3-19-2024",
			trackRow{"8:01PM", "Jenny", "Sleater-Kinney", "", ""},
		),
	}
	f := newFixture(t, pages)
	ctx := context.Background()

	// Seed the older episode as already ingested.
	err := f.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.UpsertPlaylist(ctx, store.Playlist{
			BroadcastID: f.bc.ID,
			StationID:   f.station.ID,
			Title:       "Ep 102",
			AirDate:     time.Date(2024, 3, 12, 20, 0, 0, 0, time.UTC),
			URL:         "https://xray.fm/broadcasts/102",
		})
		return err
	})
	require.NoError(t, err)

	// No explicit start date: resume from the latest ingested episode.
	require.NoError(t, f.coord.Run(ctx, f.station, f.bc, RunOptions{}))

	playlists, err := f.store.PlaylistsByBroadcast(ctx, f.bc.ID)
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.Equal(t, "Ep 103", playlists[1].Title)
}

func TestCoordinatorTitleMaintenance(t *testing.T) {
	pages := map[string]string{
		indexPage1Key: indexHTML(
			[3]string{"8:00PM, 3-19-2024", "/broadcasts/103", "Ep 103"},
		),
		"https://xray.fm/broadcasts/103": episodeHTML("3-19-2024",
			trackRow{"8:01PM", "Jenny", "Sleater-Kinney", "", ""},
		),
	}
	f := newFixture(t, pages)
	ctx := context.Background()

	// Stored under an older name; the page now says "Strange Babes".
	f.bc.Title = "Magnet Radio"
	require.NoError(t, f.store.UpdateBroadcast(ctx, f.bc))

	require.NoError(t, f.coord.Run(ctx, f.station, f.bc, crawlWholeArchive()))

	b, err := f.store.BroadcastByURL(ctx, f.bc.URL)
	require.NoError(t, err)
	assert.Equal(t, "Strange Babes", b.Title)
	assert.Equal(t, "Magnet Radio", b.PriorTitle)
}
