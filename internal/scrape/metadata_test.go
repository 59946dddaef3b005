package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radiocrate/radiocrate/internal/store"
)

func testResolver(t *testing.T, now time.Time) *MetadataResolver {
	t.Helper()
	r := NewMetadataResolver(zaptest.NewLogger(t))
	r.now = func() time.Time { return now }
	return r
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 20, 0, 0, 0, time.UTC)
}

func TestMetadataResolverFrequency(t *testing.T) {
	r := testResolver(t, day(2024, 3, 20))

	weekly := []time.Time{day(2024, 3, 19), day(2024, 3, 12), day(2024, 3, 5), day(2024, 2, 27)}
	assert.Equal(t, 7, r.Frequency(weekly))

	// A skipped week stretches the gap.
	gappy := []time.Time{day(2024, 3, 19), day(2024, 3, 5), day(2024, 2, 27)}
	assert.Equal(t, 14, r.Frequency(gappy))

	// Too few samples to measure.
	assert.Equal(t, 123, r.Frequency([]time.Time{day(2024, 3, 19), day(2024, 3, 12)}))
	assert.Equal(t, 123, r.Frequency(nil))
}

func TestMetadataResolverActive(t *testing.T) {
	now := day(2024, 3, 20)
	r := testResolver(t, now)

	recent := []time.Time{day(2024, 3, 12), day(2024, 3, 5), day(2024, 2, 27)}
	assert.True(t, r.Active(recent, 7, store.Broadcast{}))

	// Window is 3x7 = 21 days; a 20-day-old episode still counts.
	stale := []time.Time{day(2024, 2, 29)}
	assert.True(t, r.Active(stale, 7, store.Broadcast{}))

	gone := []time.Time{day(2023, 6, 1)}
	assert.False(t, r.Active(gone, 7, store.Broadcast{}))

	// No episodes: only a broadcast row over a year old is inactive.
	assert.True(t, r.Active(nil, 7, store.Broadcast{CreatedAt: day(2024, 1, 1)}))
	assert.False(t, r.Active(nil, 7, store.Broadcast{CreatedAt: day(2022, 1, 1)}))
}

const airtimesPageHTML = `<html><body>
<div class="content-center"><h1 class="main-title">DJ Magnet</h1></div>
<div class="airtimes-container">
  <span class="weekday">Tuesdays</span>
  <span class="start">8:00pm</span>
  <span class="end">10:00pm</span>
</div>
<div class="full-description">
  <p>Jen and Magnet spin garage and soul. Reach us at strangebabes@xray.fm.</p>
  <p>Follow instagram.com/strangebabes and twitter.com/strangebabesfm for playlists.</p>
</div>
<div class="hosts-container"><a href="/hosts/dj-magnet">DJ Magnet, Jen O</a></div>
</body></html>`

func TestMetadataResolverUpdateBroadcastDetails(t *testing.T) {
	r := testResolver(t, day(2024, 3, 20))
	doc := episodeDoc(t, airtimesPageHTML)

	b := store.Broadcast{Title: "Strange Babes", CreatedAt: day(2024, 1, 1)}
	dates := []time.Time{day(2024, 3, 19), day(2024, 3, 12), day(2024, 3, 5)}

	dj := r.UpdateBroadcastDetails(doc, &b, dates)

	assert.Equal(t, 7, b.FrequencyDays)
	assert.True(t, b.Active)
	require.NotNil(t, b.AirDay)
	assert.Equal(t, 2, *b.AirDay, "Tuesday")
	require.NotNil(t, b.AirTimeStart)
	assert.Equal(t, 20, b.AirTimeStart.Hour())
	require.NotNil(t, b.AirTimeEnd)
	assert.Equal(t, 22, b.AirTimeEnd.Hour())

	require.NotNil(t, dj)
	assert.Equal(t, "DJ Magnet", dj.Name)
	assert.Contains(t, dj.Bio, "garage and soul")
	assert.Equal(t, "DJ Magnet, Jen O", dj.MemberNames)
	assert.Equal(t, "strangebabes@xray.fm", dj.Email)
	assert.Equal(t, "strangebabes", dj.Instagram)
	assert.Equal(t, "strangebabesfm", dj.Twitter)
	assert.Empty(t, dj.Facebook)
	assert.Equal(t, "/hosts/dj-magnet", dj.ProfileURL)
}

func TestMetadataResolverAirTimesFallBackToNewestEpisode(t *testing.T) {
	r := testResolver(t, day(2024, 3, 20))
	doc := episodeDoc(t, `<html><body><div class="content-center"></div></body></html>`)

	b := store.Broadcast{Title: "Late Show"}
	// 2024-03-19 is a Tuesday.
	dates := []time.Time{day(2024, 3, 19), day(2024, 3, 12), day(2024, 3, 5)}

	dj := r.UpdateBroadcastDetails(doc, &b, dates)
	assert.Nil(t, dj)
	require.NotNil(t, b.AirDay)
	assert.Equal(t, int(time.Tuesday), *b.AirDay)
	require.NotNil(t, b.AirTimeStart)
	assert.Equal(t, 20, b.AirTimeStart.Hour())
	assert.Nil(t, b.AirTimeEnd, "end time is left for the track-span backfill")
}

func TestMetadataResolverBackfillAirEnd(t *testing.T) {
	r := testResolver(t, day(2024, 3, 20))
	start := time.Date(2000, 1, 1, 20, 0, 0, 0, time.UTC)

	b := store.Broadcast{Title: "Strange Babes", AirTimeStart: &start}
	span := store.TrackSpan{
		First: time.Date(2024, 3, 19, 20, 1, 0, 0, time.UTC),
		Last:  time.Date(2024, 3, 19, 21, 48, 0, 0, time.UTC),
	}
	require.True(t, r.BackfillAirEnd(&b, span))
	require.NotNil(t, b.AirTimeEnd)
	assert.Equal(t, 22, b.AirTimeEnd.Hour(), "last track rounds up to the top of the hour")
	assert.Equal(t, 0, b.AirTimeEnd.Minute())
}

func TestMetadataResolverBackfillAirEndSkipsStaleSchedule(t *testing.T) {
	r := testResolver(t, day(2024, 3, 20))
	start := time.Date(2000, 1, 1, 20, 0, 0, 0, time.UTC)

	b := store.Broadcast{Title: "Strange Babes", AirTimeStart: &start}
	span := store.TrackSpan{
		First: time.Date(2024, 3, 19, 22, 30, 0, 0, time.UTC),
		Last:  time.Date(2024, 3, 19, 23, 45, 0, 0, time.UTC),
	}
	assert.False(t, r.BackfillAirEnd(&b, span))
	assert.Nil(t, b.AirTimeEnd)
}

func TestMetadataResolverBackfillAirEndMidnightWraparound(t *testing.T) {
	r := testResolver(t, day(2024, 3, 20))
	// Published start 11:30pm, first track lands just past midnight.
	start := time.Date(2000, 1, 1, 23, 30, 0, 0, time.UTC)

	b := store.Broadcast{Title: "Night Owls", AirTimeStart: &start}
	span := store.TrackSpan{
		First: time.Date(2024, 3, 20, 0, 5, 0, 0, time.UTC),
		Last:  time.Date(2024, 3, 20, 1, 12, 0, 0, time.UTC),
	}
	require.True(t, r.BackfillAirEnd(&b, span))
	require.NotNil(t, b.AirTimeEnd)
	assert.Equal(t, 2, b.AirTimeEnd.Hour())
}
