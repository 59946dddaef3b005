// Package store defines the persisted data model and the Store interface
// shared by the Postgres and in-memory implementations.
package store

import (
	"strings"
	"time"
)

// Station is a source website. Created once via configuration and treated
// as immutable afterwards.
type Station struct {
	ID       int64
	Name     string
	BaseURL  string
	IndexURL string
}

// Broadcast is a recurring program owned by one Station. Air times carry
// only a time of day, anchored at 2000-01-01 UTC.
type Broadcast struct {
	ID            int64
	StationID     int64
	DJID          *int64
	Title         string
	PriorTitle    string
	URL           string
	AirDay        *int // 0=Sunday .. 6=Saturday
	AirTimeStart  *time.Time
	AirTimeEnd    *time.Time
	FrequencyDays int
	Active        bool
	LastScrapedAt *time.Time
	CreatedAt     time.Time
}

// Slug returns the station-side identifier for the show, the last segment
// of its canonical URL.
func (b Broadcast) Slug() string {
	parts := strings.Split(strings.TrimRight(b.URL, "/"), "/")
	return parts[len(parts)-1]
}

// DJ holds host identity and contact handles scraped from the show page.
type DJ struct {
	ID          int64
	Name        string
	Bio         string
	MemberNames string
	Email       string
	Instagram   string
	Twitter     string
	Facebook    string
	ProfileURL  string
}

// Playlist is one aired instance of a Broadcast. Identity is the source
// URL, compared case-insensitively. OriginalPlaylistID marks a rerun and
// must point strictly backward in time.
type Playlist struct {
	ID                 int64
	BroadcastID        int64
	StationID          int64
	Title              string
	AirDate            time.Time
	URL                string
	DownloadURL1       string
	DownloadURL2       string
	OriginalPlaylistID *int64
}

// RawTrack is one entry of the verbatim parsed track array stored with a
// playlist's raw import, separate from the playlist row itself.
type RawTrack struct {
	TrackNumber int        `json:"track_number"`
	TimeString  string     `json:"time_string"`
	StartTime   *time.Time `json:"start_time"`
	Title       string     `json:"title"`
	Artist      string     `json:"artist"`
	Album       string     `json:"album"`
	Label       string     `json:"label"`
}

// PlaylistTrack joins a Playlist and a Song with an ordinal and the
// observed start timestamp. Not unique: the same song may repeat.
type PlaylistTrack struct {
	PlaylistID int64
	SongID     int64
	Position   int
	StartTime  *time.Time
}

// Entity is one canonical row of any normalized kind. ArtistID is set only
// for grouped kinds (albums and songs).
type Entity struct {
	ID         int64
	Kind       Kind
	Name       string
	Normalized string
	ArtistID   *int64
}

// Match is an entity row with its similarity score against a fuzzy query.
type Match struct {
	Entity
	Similarity float64
}

// PendingDecision is an ambiguous rerun grouping waiting for an external
// reviewer; the crawl never blocks on it.
type PendingDecision struct {
	ID          int64
	BroadcastID int64
	Reason      string
	PlaylistIDs []int64
	CreatedAt   time.Time
}

// TrackSpan is the first and last observed track start time of a playlist.
type TrackSpan struct {
	First time.Time
	Last  time.Time
}
