// Package search wraps the store's trigram matching with threshold
// validation and banded exploration.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/store"
)

const (
	// DefaultBandStep walks thresholds a tenth at a time.
	DefaultBandStep = 0.1
	// DefaultMaxRowsPerBand caps how many rows a band may report before
	// it is considered too broad to be useful.
	DefaultMaxRowsPerBand = 100
)

// Finder is the store-side fuzzy lookup the searcher delegates to.
type Finder interface {
	FuzzyFind(ctx context.Context, kind store.Kind, query string, threshold float64) ([]store.Match, error)
}

// Band is one similarity range and the rows whose score lands in it.
type Band struct {
	// Threshold is the band's lower bound; rows in the band score above
	// it and at or below the next band up.
	Threshold float64
	Matches   []store.Match
	// Truncated marks a band whose population exceeded the cap and was
	// reported empty.
	Truncated bool
}

// Searcher validates thresholds before touching the store.
type Searcher struct {
	finder Finder
	logger *zap.Logger
}

func NewSearcher(finder Finder, logger *zap.Logger) *Searcher {
	return &Searcher{finder: finder, logger: logger}
}

// FuzzyFind returns rows scoring above threshold, best first.
func (s *Searcher) FuzzyFind(ctx context.Context, kind store.Kind, query string, threshold float64) ([]store.Match, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v out of range [0, 1]", threshold)
	}
	return s.finder.FuzzyFind(ctx, kind, query, threshold)
}

// FindAcrossThresholds partitions matches into disjoint bands from high
// down to low, stepping by step. Each row appears only in the highest
// band it qualifies for. A band holding more than maxRowsPerBand rows is
// reported empty with a warning: the query is too broad at that
// threshold to be worth listing.
func (s *Searcher) FindAcrossThresholds(ctx context.Context, kind store.Kind, query string, low, high, step float64, maxRowsPerBand int) ([]Band, error) {
	if low < 0 || low > 1 || high < 0 || high > 1 {
		return nil, fmt.Errorf("similarity thresholds [%v, %v] out of range [0, 1]", low, high)
	}
	if low > high {
		return nil, fmt.Errorf("low threshold %v exceeds high threshold %v", low, high)
	}
	if step <= 0 {
		step = DefaultBandStep
	}
	if maxRowsPerBand <= 0 {
		maxRowsPerBand = DefaultMaxRowsPerBand
	}

	matches, err := s.finder.FuzzyFind(ctx, kind, query, low)
	if err != nil {
		return nil, err
	}

	var bands []Band
	upper := 1.0
	for threshold := high; threshold >= low-1e-9; threshold -= step {
		band := Band{Threshold: threshold}
		for _, m := range matches {
			if m.Similarity > threshold && m.Similarity <= upper {
				band.Matches = append(band.Matches, m)
			}
		}
		if len(band.Matches) > maxRowsPerBand {
			s.logger.Warn("similarity band too broad, dropping its rows",
				zap.Stringer("kind", kind),
				zap.String("query", query),
				zap.Float64("threshold", threshold),
				zap.Int("rows", len(band.Matches)))
			band.Matches = nil
			band.Truncated = true
		}
		bands = append(bands, band)
		upper = threshold
	}
	return bands, nil
}
