package store

import "fmt"

// Kind enumerates the closed set of normalized entity types. Each kind
// carries its table, its name and normalized-key columns, whether its
// uniqueness is scoped by artist, and the dependent relations that must be
// reparented when duplicate rows are merged.
type Kind int

// Normalized entity kinds, in dependency order: parents merge before the
// kinds that reference them.
const (
	KindArtist Kind = iota
	KindGenre
	KindRecordLabel
	KindAlbum
	KindSong
)

// Kinds lists all entity kinds in merge order.
var Kinds = []Kind{KindArtist, KindGenre, KindRecordLabel, KindAlbum, KindSong}

// Relation names a table/column pair holding foreign keys to an entity.
type Relation struct {
	Table  string
	Column string
}

var kindInfo = map[Kind]struct {
	name       string
	table      string
	nameColumn string
	grouped    bool
	dependents []Relation
}{
	KindArtist: {
		name: "artist", table: "artists", nameColumn: "name",
		dependents: []Relation{{"albums", "artist_id"}, {"songs", "artist_id"}},
	},
	KindGenre: {
		name: "genre", table: "genres", nameColumn: "name",
		dependents: []Relation{{"songs", "genre_id"}},
	},
	KindRecordLabel: {
		name: "record_label", table: "record_labels", nameColumn: "name",
		dependents: []Relation{{"albums", "record_label_id"}},
	},
	KindAlbum: {
		name: "album", table: "albums", nameColumn: "title", grouped: true,
		dependents: []Relation{{"albums_songs", "album_id"}},
	},
	KindSong: {
		name: "song", table: "songs", nameColumn: "title", grouped: true,
		dependents: []Relation{{"playlists_songs", "song_id"}, {"albums_songs", "song_id"}},
	},
}

func (k Kind) String() string { return kindInfo[k].name }

// Table returns the kind's table name.
func (k Kind) Table() string { return kindInfo[k].table }

// NameColumn returns the display-value column ("name" or "title").
func (k Kind) NameColumn() string { return kindInfo[k].nameColumn }

// NormalizedColumn returns the canonical-key column.
func (k Kind) NormalizedColumn() string { return "normalized_" + kindInfo[k].nameColumn }

// Grouped reports whether the kind's normalized key is unique per artist
// rather than globally.
func (k Kind) Grouped() bool { return kindInfo[k].grouped }

// Dependents lists the foreign-key relations reassigned during a merge.
func (k Kind) Dependents() []Relation { return kindInfo[k].dependents }

// KindFromString maps a user-supplied name to a Kind.
func KindFromString(s string) (Kind, error) {
	for k, info := range kindInfo {
		if info.name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", s)
}
