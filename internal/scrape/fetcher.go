// Package scrape fetches and parses station archive pages.
package scrape

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnavailable marks a page that could not be fetched or does not
// exist. Callers stop paginating or skip the item; it is never fatal.
var ErrUnavailable = errors.New("page unavailable")

// Fetcher retrieves one URL as a parsed HTML document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// FetcherConfig controls collector behavior.
type FetcherConfig struct {
	UserAgent string
	Throttle  time.Duration
	Timeout   time.Duration
}

// CollyFetcher implements Fetcher with a shared rate limit across all
// requests it issues.
type CollyFetcher struct {
	cfg           FetcherConfig
	limiter       *rate.Limiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyFetcher builds a throttled fetcher. A zero throttle disables
// the delay.
func NewCollyFetcher(cfg FetcherConfig, logger *zap.Logger) *CollyFetcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Throttle > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Throttle), 1)
	}
	return &CollyFetcher{
		cfg:           cfg,
		limiter:       limiter,
		baseCollector: colly.NewCollector(colly.Async(false)),
		logger:        logger,
	}
}

// Fetch GETs the URL after waiting out the throttle. Transport and HTTP
// errors are logged and reported as ErrUnavailable.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var (
		body     []byte
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		// The station mislabels charsets; the bytes are UTF-8.
		r.ResponseCharacterEncoding = "utf-8"
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			fetchErr = err
		}
	}
	if fetchErr != nil {
		f.logger.Warn("page fetch failed", zap.String("url", url), zap.Error(fetchErr))
		return nil, ErrUnavailable
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		f.logger.Warn("page parse failed", zap.String("url", url), zap.Error(err))
		return nil, ErrUnavailable
	}
	return doc, nil
}
