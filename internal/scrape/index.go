package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const indexDateLayout = "3:04PM, 1-2-2006"

// EpisodeStub is the per-episode metadata carried by an index entry.
type EpisodeStub struct {
	Title   string
	URL     string
	AirDate time.Time
}

// IndexCrawler paginates a show's episode index. Each crawl run owns its
// own crawler: the page cache must not outlive the run, since new
// episodes shift content across page boundaries.
type IndexCrawler struct {
	fetcher Fetcher
	baseURL string
	logger  *zap.Logger

	cache map[int]*goquery.Document
	miss  map[int]bool
}

// NewIndexCrawler builds a crawler for one run against the station at
// baseURL.
func NewIndexCrawler(fetcher Fetcher, baseURL string, logger *zap.Logger) *IndexCrawler {
	return &IndexCrawler{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		cache:   make(map[int]*goquery.Document),
		miss:    make(map[int]bool),
	}
}

func (c *IndexCrawler) pageURL(slug string, page int) string {
	return fmt.Sprintf("%s/programs/%s/page:%d?url=broadcasts%%2F%s", c.baseURL, slug, page, slug)
}

// OpenIndexPage returns the index page, fetching it at most once per
// run. ok is false when the page does not exist or the fetch failed;
// callers treat both as the end of the archive.
func (c *IndexCrawler) OpenIndexPage(ctx context.Context, slug string, page int) (*goquery.Document, bool) {
	if doc, hit := c.cache[page]; hit {
		return doc, true
	}
	if c.miss[page] {
		return nil, false
	}
	doc, err := c.fetcher.Fetch(ctx, c.pageURL(slug, page))
	if err != nil {
		c.logger.Warn("index page unavailable",
			zap.String("slug", slug), zap.Int("page", page), zap.Error(err))
		c.miss[page] = true
		return nil, false
	}
	c.cache[page] = doc
	return doc, true
}

// FetchDates extracts the episode air dates from an index page in the
// page's newest-first order. Unparseable entries are logged and dropped.
func (c *IndexCrawler) FetchDates(doc *goquery.Document) []time.Time {
	var dates []time.Time
	doc.Find("div.broadcasts-container div.broadcast").Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Find("div.date").Text())
		d, err := time.Parse(indexDateLayout, strings.ToUpper(raw))
		if err != nil {
			c.logger.Warn("unparseable index date", zap.String("raw", raw))
			return
		}
		dates = append(dates, d)
	})
	return dates
}

// EpisodeStubs extracts the per-episode entries from an index page in
// the page's newest-first order. Entries without a parseable date or a
// link are dropped.
func (c *IndexCrawler) EpisodeStubs(doc *goquery.Document) []EpisodeStub {
	var stubs []EpisodeStub
	doc.Find("div.broadcasts-container div.broadcast").Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Find("div.date").Text())
		d, err := time.Parse(indexDateLayout, strings.ToUpper(raw))
		if err != nil {
			c.logger.Warn("skipping index entry with unparseable date", zap.String("raw", raw))
			return
		}
		link := s.Find("div.title a").First()
		href, ok := link.Attr("href")
		if !ok {
			c.logger.Warn("skipping index entry without a link", zap.String("date", raw))
			return
		}
		url := href
		if !strings.HasPrefix(href, "http") {
			url = c.baseURL + href
		}
		stubs = append(stubs, EpisodeStub{
			Title:   strings.TrimSpace(link.Text()),
			URL:     url,
			AirDate: d,
		})
	})
	return stubs
}

// NextPageAvailable reports whether the page carries a "next"
// pagination control.
func (c *IndexCrawler) NextPageAvailable(doc *goquery.Document) bool {
	return doc.Find("div.pagination-container div.pagination-inner span.next a").Length() > 0
}

// FindStartPage resolves the page whose date range brackets target. The
// archive is reverse chronological and non-overlapping, so the walk only
// ever moves forward. It terminates on a missing page, a page with zero
// dates, or the oldest available page.
func (c *IndexCrawler) FindStartPage(ctx context.Context, slug string, target time.Time) int {
	page := 1
	upperBound := time.Now().Add(24 * time.Hour)

	for {
		doc, ok := c.OpenIndexPage(ctx, slug, page)
		if !ok {
			break
		}
		dates := c.FetchDates(doc)
		if len(dates) == 0 {
			break
		}
		min := dates[0]
		for _, d := range dates[1:] {
			if d.Before(min) {
				min = d
			}
		}
		min = min.Truncate(24 * time.Hour)

		if !target.Before(min) && !target.After(upperBound) {
			break
		}
		if target.Before(min) {
			if !c.NextPageAvailable(doc) {
				break
			}
			upperBound = min
			page++
			continue
		}
		// target is newer than anything left in the archive; the first
		// page is as close as it gets.
		break
	}
	return page
}
