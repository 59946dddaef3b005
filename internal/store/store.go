package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store is the relational storage collaborator. Implementations must
// enforce the schema invariants (unique source URLs, unique normalized
// keys scoped by artist where applicable) as the last line of defense
// against races.
type Store interface {
	FindOrCreateStation(ctx context.Context, s Station) (Station, error)
	StationByID(ctx context.Context, id int64) (Station, error)

	FindOrCreateBroadcast(ctx context.Context, b Broadcast) (Broadcast, error)
	BroadcastByURL(ctx context.Context, url string) (Broadcast, error)
	ListBroadcasts(ctx context.Context) ([]Broadcast, error)
	UpdateBroadcast(ctx context.Context, b Broadcast) error
	SaveDJ(ctx context.Context, dj DJ) (DJ, error)

	LatestPlaylistAirDate(ctx context.Context, broadcastID int64) (time.Time, error)
	PlaylistsByBroadcast(ctx context.Context, broadcastID int64) ([]Playlist, error)
	SongIDsByPlaylist(ctx context.Context, playlistID int64) ([]int64, error)
	LatestTrackSpan(ctx context.Context, broadcastID int64) (TrackSpan, error)
	// SetOriginalPlaylist marks playlistID as a rerun of originalID. It
	// rejects self-references, cycles, and originals that do not air
	// strictly before the rerun.
	SetOriginalPlaylist(ctx context.Context, playlistID, originalID int64) error

	AddPendingDecision(ctx context.Context, d PendingDecision) error
	PendingDecisions(ctx context.Context) ([]PendingDecision, error)

	ListEntities(ctx context.Context, kind Kind) ([]Entity, error)
	// FuzzyFind returns rows of kind whose display value scores above
	// threshold against query, ordered by descending similarity.
	FuzzyFind(ctx context.Context, kind Kind, query string, threshold float64) ([]Match, error)

	// WithTx runs fn inside a transaction; fn returning an error rolls the
	// whole transaction back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Close()
}

// Tx is the transactional write surface used for per-episode persistence
// and per-partition duplicate merges.
type Tx interface {
	// UpsertPlaylist finds or creates the playlist by source URL
	// (case-insensitive) and unconditionally overwrites its mutable fields.
	UpsertPlaylist(ctx context.Context, p Playlist) (Playlist, error)
	ReplaceRawImport(ctx context.Context, playlistID int64, tracks []RawTrack) error
	ClearPlaylistTracks(ctx context.Context, playlistID int64) error
	AddPlaylistTrack(ctx context.Context, t PlaylistTrack) error

	FindEntity(ctx context.Context, kind Kind, normalized string, artistID *int64) (Entity, error)
	CreateEntity(ctx context.Context, e Entity) (Entity, error)
	RenameEntity(ctx context.Context, kind Kind, id int64, name string) error
	LinkSongAlbum(ctx context.Context, songID, albumID int64) error
	SetAlbumLabel(ctx context.Context, albumID, labelID int64) error

	ReassignDependents(ctx context.Context, kind Kind, fromID, toID int64) error
	DeleteEntity(ctx context.Context, kind Kind, id int64) error
	SetNormalized(ctx context.Context, kind Kind, id int64, normalized string) error
}
