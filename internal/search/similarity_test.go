package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radiocrate/radiocrate/internal/store"
)

type stubFinder struct {
	matches []store.Match
}

func (f *stubFinder) FuzzyFind(_ context.Context, _ store.Kind, _ string, threshold float64) ([]store.Match, error) {
	var out []store.Match
	for _, m := range f.matches {
		if m.Similarity > threshold {
			out = append(out, m)
		}
	}
	return out, nil
}

func match(id int64, name string, sim float64) store.Match {
	return store.Match{
		Entity:     store.Entity{ID: id, Kind: store.KindArtist, Name: name},
		Similarity: sim,
	}
}

func TestSearcherRejectsOutOfRangeThreshold(t *testing.T) {
	s := NewSearcher(&stubFinder{}, zaptest.NewLogger(t))

	_, err := s.FuzzyFind(context.Background(), store.KindArtist, "x", 1.5)
	assert.Error(t, err)
	_, err = s.FuzzyFind(context.Background(), store.KindArtist, "x", -0.1)
	assert.Error(t, err)
	_, err = s.FindAcrossThresholds(context.Background(), store.KindArtist, "x", 0.8, 0.3, 0.1, 10)
	assert.Error(t, err, "low above high")
}

func TestSearcherBandsAreDisjoint(t *testing.T) {
	finder := &stubFinder{matches: []store.Match{
		match(1, "exact", 0.96),
		match(2, "close", 0.85),
		match(3, "closer", 0.82),
		match(4, "far", 0.65),
		match(5, "noise", 0.31),
	}}
	s := NewSearcher(finder, zaptest.NewLogger(t))

	bands, err := s.FindAcrossThresholds(context.Background(), store.KindArtist, "exact", 0.6, 0.9, 0.1, 10)
	require.NoError(t, err)
	require.Len(t, bands, 4) // 0.9, 0.8, 0.7, 0.6

	assert.Equal(t, []int64{1}, ids(bands[0].Matches))
	assert.Equal(t, []int64{2, 3}, ids(bands[1].Matches))
	assert.Empty(t, bands[2].Matches)
	assert.Equal(t, []int64{4}, ids(bands[3].Matches))

	// No row appears twice across bands.
	seen := map[int64]int{}
	for _, b := range bands {
		for _, m := range b.Matches {
			seen[m.ID]++
		}
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, fmt.Sprintf("row %d reported in %d bands", id, n))
	}
}

func TestSearcherOverBroadBandReportsEmpty(t *testing.T) {
	finder := &stubFinder{}
	for i := int64(1); i <= 5; i++ {
		finder.matches = append(finder.matches, match(i, "dup", 0.75))
	}
	s := NewSearcher(finder, zaptest.NewLogger(t))

	bands, err := s.FindAcrossThresholds(context.Background(), store.KindArtist, "dup", 0.7, 0.7, 0.1, 3)
	require.NoError(t, err)
	require.Len(t, bands, 1)
	assert.Empty(t, bands[0].Matches)
	assert.True(t, bands[0].Truncated)
}

func ids(matches []store.Match) []int64 {
	var out []int64
	for _, m := range matches {
		out = append(out, m.ID)
	}
	return out
}
