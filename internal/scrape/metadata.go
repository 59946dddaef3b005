package scrape

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/store"
)

// defaultFrequencyDays keeps an annual show inside the activity window:
// three times this is just over a year.
const defaultFrequencyDays = 123

// airTimeAnchor pins time-of-day values to a fixed date so they compare
// cleanly.
var airTimeAnchor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	weekdayPattern = regexp.MustCompile(`(?i)\b(sunday|monday|tuesday|wednesday|thursday|friday|saturday)\b`)
	emailPattern   = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
)

var weekdayIndex = map[string]int{
	"sunday": 0, "monday": 1, "tuesday": 2, "wednesday": 3,
	"thursday": 4, "friday": 5, "saturday": 6,
}

// MetadataResolver derives show-level facts from the first index page
// and from accumulated episode dates.
type MetadataResolver struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewMetadataResolver(logger *zap.Logger) *MetadataResolver {
	return &MetadataResolver{logger: logger, now: time.Now}
}

// Frequency returns the maximum gap in days between consecutive
// observed dates (newest first). Fewer than three samples fall back to
// the default.
func (r *MetadataResolver) Frequency(dates []time.Time) int {
	if len(dates) <= 2 {
		return defaultFrequencyDays
	}
	max := 0
	for i := 1; i < len(dates); i++ {
		gap := int(dates[i-1].Sub(dates[i]).Hours() / 24)
		if gap < 0 {
			gap = -gap
		}
		if gap > max {
			max = gap
		}
	}
	return max
}

// Active reports whether the show is still airing: the newest date must
// fall within three frequencies (at least 15 days) of today. With no
// dates at all, only a broadcast row over a year old is inactive.
func (r *MetadataResolver) Active(dates []time.Time, frequencyDays int, b store.Broadcast) bool {
	threshold := frequencyDays * 3
	if threshold < 15 {
		threshold = 15
	}
	var latest time.Time
	for _, d := range dates {
		if d.After(latest) {
			latest = d
		}
	}
	if !latest.IsZero() {
		return r.now().AddDate(0, 0, -threshold).Before(latest)
	}
	return !b.CreatedAt.Before(r.now().AddDate(-1, 0, 0))
}

// UpdateBroadcastDetails mutates b's recurrence and schedule fields from
// the first index page and returns the DJ record scraped from it, or nil
// when the page carries none. The caller persists both.
func (r *MetadataResolver) UpdateBroadcastDetails(doc *goquery.Document, b *store.Broadcast, dates []time.Time) *store.DJ {
	b.FrequencyDays = r.Frequency(dates)
	b.Active = r.Active(dates, b.FrequencyDays, *b)

	day, start, end, ok := r.airTimes(doc, dates)
	if ok {
		b.AirDay = &day
		b.AirTimeStart = start
		b.AirTimeEnd = end
	} else {
		r.logger.Warn("unable to determine air times", zap.String("broadcast", b.Title))
	}

	return r.scrapeDJ(doc, b.Title)
}

func (r *MetadataResolver) airTimes(doc *goquery.Document, dates []time.Time) (int, *time.Time, *time.Time, bool) {
	widget := doc.Find("div.airtimes-container")
	if widget.Length() > 0 && widget.Find("span.weekday").Length() > 0 {
		dayText := widget.Find("span.weekday").First().Text()
		names := weekdayPattern.FindAllString(dayText, -1)
		if len(names) == 0 {
			return 0, nil, nil, false
		}
		if len(names) > 1 {
			r.logger.Info("multiple air days listed, using the first",
				zap.Strings("days", names))
		}
		day := weekdayIndex[strings.ToLower(names[0])]
		start := parseTimeOfDay(widget.Find("span.start").First().Text())
		end := parseTimeOfDay(widget.Find("span.end").First().Text())
		if start == nil {
			return 0, nil, nil, false
		}
		return day, start, end, true
	}

	// No widget: fall back to the most recent episode's weekday and time.
	var latest time.Time
	for _, d := range dates {
		if d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return 0, nil, nil, false
	}
	start := anchorTimeOfDay(latest)
	return int(latest.Weekday()), &start, nil, true
}

func parseTimeOfDay(text string) *time.Time {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return nil
	}
	for _, layout := range []string{"3:04PM", "3PM", "15:04"} {
		if t, err := time.Parse(layout, text); err == nil {
			anchored := airTimeAnchor.Add(
				time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
			return &anchored
		}
	}
	return nil
}

func anchorTimeOfDay(t time.Time) time.Time {
	return airTimeAnchor.Add(
		time.Duration(t.Hour())*time.Hour +
			time.Duration(t.Minute())*time.Minute +
			time.Duration(t.Second())*time.Second)
}

func (r *MetadataResolver) scrapeDJ(doc *goquery.Document, broadcastTitle string) *store.DJ {
	if doc.Find("div.content-center").Length() == 0 {
		r.logger.Info("no dj info found", zap.String("broadcast", broadcastTitle))
	}
	name := strings.TrimSpace(doc.Find("div.content-center h1.main-title").Text())
	if name == "" {
		return nil
	}

	var paragraphs []string
	doc.Find("div.full-description p").Each(func(_ int, s *goquery.Selection) {
		paragraphs = append(paragraphs, strings.TrimSpace(s.Text()))
	})
	bio := strings.Join(paragraphs, "\n")

	dj := &store.DJ{
		Name:        name,
		Bio:         bio,
		MemberNames: strings.TrimSpace(doc.Find("div.hosts-container a").Text()),
		Email:       strings.Join(uniqueStrings(emailPattern.FindAllString(bio, -1)), ", "),
		Instagram:   scanHandles(bio, "instagram.com"),
		Twitter:     scanHandles(bio, "twitter.com"),
		Facebook:    scanHandles(bio, "facebook.com"),
	}
	if host := doc.Find("div.hosts-container a").First(); host.Length() > 0 {
		dj.ProfileURL, _ = host.Attr("href")
	}
	return dj
}

func scanHandles(bio, site string) string {
	pattern := regexp.MustCompile(regexp.QuoteMeta(site) + `/(\w+)`)
	var handles []string
	for _, m := range pattern.FindAllStringSubmatch(bio, -1) {
		handles = append(handles, m[1])
	}
	return strings.Join(uniqueStrings(handles), ", ")
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// BackfillAirEnd sets the broadcast's end time from the newest
// playlist's track span, once tracks with timestamps exist. A first
// track that starts more than an hour from the recorded start time
// means the published schedule is stale; the update is skipped rather
// than recording a wrong end time. Returns whether b was changed.
func (r *MetadataResolver) BackfillAirEnd(b *store.Broadcast, span store.TrackSpan) bool {
	if b.AirTimeStart == nil {
		return false
	}
	first := anchorTimeOfDay(span.First)
	diff := first.Sub(*b.AirTimeStart)
	if diff < 0 {
		diff = -diff
	}
	if diff > 12*time.Hour {
		diff = 24*time.Hour - diff
	}
	if diff > time.Hour {
		r.logger.Warn("first track start too far from recorded air time, skipping end time update",
			zap.String("broadcast", b.Title),
			zap.Duration("difference", diff))
		return false
	}

	end := anchorTimeOfDay(span.Last).Truncate(time.Hour).Add(time.Hour)
	b.AirTimeEnd = &end
	return true
}
