package scrape

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/store"
)

const trackDateLayout = "1-2-2006, 3:04PM"

var trackDatePattern = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}, \d{1,2}:\d{2}(AM|PM)$`)

// EpisodeParser turns one episode page into track records and download
// links.
type EpisodeParser struct {
	logger *zap.Logger
}

func NewEpisodeParser(logger *zap.Logger) *EpisodeParser {
	return &EpisodeParser{logger: logger}
}

// ParseTracks extracts the ordered track list. Each track's start time
// is assembled from the page's air date and the track's time-of-day
// string; a row whose assembled datetime fails validation is logged and
// skipped without aborting the rest of the episode.
func (p *EpisodeParser) ParseTracks(doc *goquery.Document) []store.RawTrack {
	dateText := strings.TrimSpace(doc.Find("div.date").First().Text())
	if idx := strings.LastIndex(dateText, ","); idx >= 0 {
		dateText = strings.TrimSpace(dateText[idx+1:])
	}

	var tracks []store.RawTrack
	position := 0
	doc.Find("div.creek-playlist li.creek-track").Each(func(_ int, s *goquery.Selection) {
		position++
		timeString := strings.ToUpper(strings.TrimSpace(s.Find("span.creek-track-time").Text()))
		assembled := dateText + ", " + timeString
		if !trackDatePattern.MatchString(assembled) {
			p.logger.Warn("skipping track with malformed datetime",
				zap.Int("position", position), zap.String("datetime", assembled))
			return
		}
		start, err := time.Parse(trackDateLayout, assembled)
		if err != nil {
			p.logger.Warn("skipping track with unparseable datetime",
				zap.Int("position", position), zap.String("datetime", assembled))
			return
		}
		tracks = append(tracks, store.RawTrack{
			TrackNumber: position,
			TimeString:  timeString,
			StartTime:   &start,
			Title:       strings.TrimSpace(s.Find("span.creek-track-title").Text()),
			Artist:      strings.TrimSpace(s.Find("span.creek-track-artist").Text()),
			Album:       strings.TrimSpace(s.Find("span.creek-track-album").Text()),
			Label:       strings.TrimSpace(s.Find("span.creek-track-label").Text()),
		})
	})
	return tracks
}

// ExtractDownloadLinks returns every player link on the page. Callers
// keep the first two; the page layout assumes exactly two mirrors.
func (p *EpisodeParser) ExtractDownloadLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a.player").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})
	if len(links) > 2 {
		p.logger.Info("episode page lists more than two download links", zap.Int("count", len(links)))
	}
	return links
}
