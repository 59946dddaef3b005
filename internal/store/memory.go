package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is an in-memory Store used by tests and local development. Its
// transactions are implemented by snapshotting state and restoring the
// snapshot when fn fails, which gives the same all-or-nothing visibility
// as the Postgres implementation.
type Memory struct {
	mu   sync.Mutex
	data memData
}

type memData struct {
	nextID         int64
	stations       map[int64]Station
	djs            map[int64]DJ
	broadcasts     map[int64]Broadcast
	playlists      map[int64]Playlist
	rawImports     map[int64][]RawTrack
	playlistTracks []PlaylistTrack
	entities       map[Kind]map[int64]Entity
	songAlbums     map[[2]int64]struct{}
	albumLabels    map[int64]int64
	decisions      []PendingDecision
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

func newMemData() memData {
	entities := make(map[Kind]map[int64]Entity, len(Kinds))
	for _, k := range Kinds {
		entities[k] = make(map[int64]Entity)
	}
	return memData{
		nextID:      1,
		stations:    make(map[int64]Station),
		djs:         make(map[int64]DJ),
		broadcasts:  make(map[int64]Broadcast),
		playlists:   make(map[int64]Playlist),
		rawImports:  make(map[int64][]RawTrack),
		entities:    entities,
		songAlbums:  make(map[[2]int64]struct{}),
		albumLabels: make(map[int64]int64),
	}
}

func (d memData) clone() memData {
	out := newMemData()
	out.nextID = d.nextID
	for id, v := range d.stations {
		out.stations[id] = v
	}
	for id, v := range d.djs {
		out.djs[id] = v
	}
	for id, v := range d.broadcasts {
		out.broadcasts[id] = v
	}
	for id, v := range d.playlists {
		out.playlists[id] = v
	}
	for id, v := range d.rawImports {
		out.rawImports[id] = append([]RawTrack(nil), v...)
	}
	out.playlistTracks = append([]PlaylistTrack(nil), d.playlistTracks...)
	for k, rows := range d.entities {
		for id, e := range rows {
			out.entities[k][id] = e
		}
	}
	for key := range d.songAlbums {
		out.songAlbums[key] = struct{}{}
	}
	for album, label := range d.albumLabels {
		out.albumLabels[album] = label
	}
	out.decisions = append([]PendingDecision(nil), d.decisions...)
	return out
}

func (m *Memory) nextID() int64 {
	id := m.data.nextID
	m.data.nextID++
	return id
}

// FindOrCreateStation looks a station up by name, creating it if absent.
func (m *Memory) FindOrCreateStation(_ context.Context, s Station) (Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.stations {
		if existing.Name == s.Name {
			return existing, nil
		}
	}
	s.ID = m.nextID()
	m.data.stations[s.ID] = s
	return s, nil
}

// StationByID returns the station or ErrNotFound.
func (m *Memory) StationByID(_ context.Context, id int64) (Station, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data.stations[id]
	if !ok {
		return Station{}, ErrNotFound
	}
	return s, nil
}

// FindOrCreateBroadcast looks a broadcast up by URL, creating it if absent.
func (m *Memory) FindOrCreateBroadcast(_ context.Context, b Broadcast) (Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.broadcasts {
		if strings.EqualFold(existing.URL, b.URL) {
			return existing, nil
		}
	}
	b.ID = m.nextID()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	m.data.broadcasts[b.ID] = b
	return b, nil
}

// BroadcastByURL returns the broadcast or ErrNotFound.
func (m *Memory) BroadcastByURL(_ context.Context, url string) (Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.data.broadcasts {
		if strings.EqualFold(b.URL, url) {
			return b, nil
		}
	}
	return Broadcast{}, ErrNotFound
}

// ListBroadcasts returns all broadcasts ordered by ID.
func (m *Memory) ListBroadcasts(_ context.Context) ([]Broadcast, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Broadcast, 0, len(m.data.broadcasts))
	for _, b := range m.data.broadcasts {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateBroadcast overwrites an existing broadcast row.
func (m *Memory) UpdateBroadcast(_ context.Context, b Broadcast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.broadcasts[b.ID]; !ok {
		return ErrNotFound
	}
	m.data.broadcasts[b.ID] = b
	return nil
}

// SaveDJ finds a DJ by name and updates it, or creates a new row.
func (m *Memory) SaveDJ(_ context.Context, dj DJ) (DJ, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.data.djs {
		if existing.Name == dj.Name {
			dj.ID = id
			m.data.djs[id] = dj
			return dj, nil
		}
	}
	dj.ID = m.nextID()
	m.data.djs[dj.ID] = dj
	return dj, nil
}

// LatestPlaylistAirDate returns the newest air date for the broadcast, or
// ErrNotFound when it has no playlists.
func (m *Memory) LatestPlaylistAirDate(_ context.Context, broadcastID int64) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	found := false
	for _, p := range m.data.playlists {
		if p.BroadcastID == broadcastID && p.AirDate.After(latest) {
			latest = p.AirDate
			found = true
		}
	}
	if !found {
		return time.Time{}, ErrNotFound
	}
	return latest, nil
}

// PlaylistsByBroadcast returns the broadcast's playlists ordered by air date.
func (m *Memory) PlaylistsByBroadcast(_ context.Context, broadcastID int64) ([]Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Playlist
	for _, p := range m.data.playlists {
		if p.BroadcastID == broadcastID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AirDate.Before(out[j].AirDate) })
	return out, nil
}

// SongIDsByPlaylist returns the playlist's song IDs in position order.
func (m *Memory) SongIDsByPlaylist(_ context.Context, playlistID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var tracks []PlaylistTrack
	for _, t := range m.data.playlistTracks {
		if t.PlaylistID == playlistID {
			tracks = append(tracks, t)
		}
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Position < tracks[j].Position })
	out := make([]int64, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t.SongID)
	}
	return out, nil
}

// LatestTrackSpan returns the first and last track start time of the most
// recent playlist that has timestamped tracks.
func (m *Memory) LatestTrackSpan(_ context.Context, broadcastID int64) (TrackSpan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var playlists []Playlist
	for _, p := range m.data.playlists {
		if p.BroadcastID == broadcastID {
			playlists = append(playlists, p)
		}
	}
	sort.Slice(playlists, func(i, j int) bool { return playlists[i].AirDate.Before(playlists[j].AirDate) })
	for i := len(playlists) - 1; i >= 0; i-- {
		span := TrackSpan{}
		found := false
		for _, t := range m.data.playlistTracks {
			if t.PlaylistID != playlists[i].ID || t.StartTime == nil {
				continue
			}
			if !found || t.StartTime.Before(span.First) {
				span.First = *t.StartTime
			}
			if !found || t.StartTime.After(span.Last) {
				span.Last = *t.StartTime
			}
			found = true
		}
		if found {
			return span, nil
		}
	}
	return TrackSpan{}, ErrNotFound
}

// SetOriginalPlaylist marks playlistID as a rerun of originalID, rejecting
// cycles and originals that do not air strictly earlier.
func (m *Memory) SetOriginalPlaylist(_ context.Context, playlistID, originalID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return setOriginalPlaylist(m.data.playlists, playlistID, originalID)
}

func setOriginalPlaylist(playlists map[int64]Playlist, playlistID, originalID int64) error {
	pl, ok := playlists[playlistID]
	if !ok {
		return ErrNotFound
	}
	orig, ok := playlists[originalID]
	if !ok {
		return ErrNotFound
	}
	if playlistID == originalID {
		return fmt.Errorf("playlist %d cannot be a rerun of itself", playlistID)
	}
	if !orig.AirDate.Before(pl.AirDate) {
		return fmt.Errorf("original playlist %d does not air before playlist %d", originalID, playlistID)
	}
	// Walk the chain from the proposed original to guard against cycles.
	seen := map[int64]struct{}{playlistID: {}}
	cur := orig
	for cur.OriginalPlaylistID != nil {
		next := *cur.OriginalPlaylistID
		if _, dup := seen[next]; dup {
			return fmt.Errorf("linking playlist %d to %d would create a cycle", playlistID, originalID)
		}
		seen[next] = struct{}{}
		cur = playlists[next]
	}
	pl.OriginalPlaylistID = &originalID
	playlists[playlistID] = pl
	return nil
}

// AddPendingDecision appends a reviewer decision to the queue.
func (m *Memory) AddPendingDecision(_ context.Context, d PendingDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.nextID()
	d.CreatedAt = time.Now().UTC()
	m.data.decisions = append(m.data.decisions, d)
	return nil
}

// PendingDecisions returns the queued decisions in insertion order.
func (m *Memory) PendingDecisions(_ context.Context) ([]PendingDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PendingDecision(nil), m.data.decisions...), nil
}

// ListEntities returns all rows of the kind ordered by ID.
func (m *Memory) ListEntities(_ context.Context, kind Kind) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.data.entities[kind]
	out := make([]Entity, 0, len(rows))
	for _, e := range rows {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FuzzyFind scores every row of the kind against query with trigram
// similarity, mirroring the pg_trgm behavior of the Postgres store.
func (m *Memory) FuzzyFind(_ context.Context, kind Kind, query string, threshold float64) ([]Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Match
	for _, e := range m.data.entities[kind] {
		score := trigramSimilarity(e.Name, query)
		if score > threshold {
			out = append(out, Match{Entity: e, Similarity: score})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// WithTx snapshots state, runs fn, and restores the snapshot on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.data.clone()
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

// memTx mutates the owning store directly; rollback is handled by the
// snapshot in WithTx. The store mutex is held for the whole transaction.
type memTx struct {
	m *Memory
}

func (t *memTx) UpsertPlaylist(_ context.Context, p Playlist) (Playlist, error) {
	d := &t.m.data
	for id, existing := range d.playlists {
		if strings.EqualFold(existing.URL, p.URL) {
			existing.Title = p.Title
			existing.AirDate = p.AirDate
			existing.BroadcastID = p.BroadcastID
			existing.StationID = p.StationID
			existing.DownloadURL1 = p.DownloadURL1
			existing.DownloadURL2 = p.DownloadURL2
			d.playlists[id] = existing
			return existing, nil
		}
	}
	p.ID = t.m.nextID()
	d.playlists[p.ID] = p
	return p, nil
}

func (t *memTx) ReplaceRawImport(_ context.Context, playlistID int64, tracks []RawTrack) error {
	t.m.data.rawImports[playlistID] = append([]RawTrack(nil), tracks...)
	return nil
}

func (t *memTx) ClearPlaylistTracks(_ context.Context, playlistID int64) error {
	kept := t.m.data.playlistTracks[:0]
	for _, tr := range t.m.data.playlistTracks {
		if tr.PlaylistID != playlistID {
			kept = append(kept, tr)
		}
	}
	t.m.data.playlistTracks = kept
	return nil
}

func (t *memTx) AddPlaylistTrack(_ context.Context, tr PlaylistTrack) error {
	t.m.data.playlistTracks = append(t.m.data.playlistTracks, tr)
	return nil
}

func (t *memTx) FindEntity(_ context.Context, kind Kind, normalized string, artistID *int64) (Entity, error) {
	for _, e := range t.m.data.entities[kind] {
		if e.Normalized != normalized {
			continue
		}
		if kind.Grouped() && !sameID(e.ArtistID, artistID) {
			continue
		}
		return e, nil
	}
	return Entity{}, ErrNotFound
}

func (t *memTx) CreateEntity(ctx context.Context, e Entity) (Entity, error) {
	if e.Kind.Grouped() && e.ArtistID == nil {
		return Entity{}, fmt.Errorf("%s requires an artist grouping key", e.Kind)
	}
	if _, err := t.FindEntity(ctx, e.Kind, e.Normalized, e.ArtistID); err == nil {
		return Entity{}, fmt.Errorf("%s with normalized key %q already exists", e.Kind, e.Normalized)
	}
	e.ID = t.m.nextID()
	t.m.data.entities[e.Kind][e.ID] = e
	return e, nil
}

func (t *memTx) RenameEntity(_ context.Context, kind Kind, id int64, name string) error {
	e, ok := t.m.data.entities[kind][id]
	if !ok {
		return ErrNotFound
	}
	e.Name = name
	t.m.data.entities[kind][id] = e
	return nil
}

func (t *memTx) LinkSongAlbum(_ context.Context, songID, albumID int64) error {
	t.m.data.songAlbums[[2]int64{songID, albumID}] = struct{}{}
	return nil
}

func (t *memTx) SetAlbumLabel(_ context.Context, albumID, labelID int64) error {
	t.m.data.albumLabels[albumID] = labelID
	return nil
}

func (t *memTx) ReassignDependents(_ context.Context, kind Kind, fromID, toID int64) error {
	d := &t.m.data
	switch kind {
	case KindArtist:
		for id, e := range d.entities[KindAlbum] {
			if sameID(e.ArtistID, &fromID) {
				e.ArtistID = &toID
				d.entities[KindAlbum][id] = e
			}
		}
		for id, e := range d.entities[KindSong] {
			if sameID(e.ArtistID, &fromID) {
				e.ArtistID = &toID
				d.entities[KindSong][id] = e
			}
		}
	case KindRecordLabel:
		for album, label := range d.albumLabels {
			if label == fromID {
				d.albumLabels[album] = toID
			}
		}
	case KindAlbum:
		for key := range d.songAlbums {
			if key[1] == fromID {
				delete(d.songAlbums, key)
				d.songAlbums[[2]int64{key[0], toID}] = struct{}{}
			}
		}
		for album, label := range d.albumLabels {
			if album == fromID {
				delete(d.albumLabels, album)
				d.albumLabels[toID] = label
			}
		}
	case KindSong:
		for i, tr := range d.playlistTracks {
			if tr.SongID == fromID {
				d.playlistTracks[i].SongID = toID
			}
		}
		for key := range d.songAlbums {
			if key[0] == fromID {
				delete(d.songAlbums, key)
				d.songAlbums[[2]int64{toID, key[1]}] = struct{}{}
			}
		}
	case KindGenre:
		// Songs do not carry genre in the in-memory model yet.
	}
	return nil
}

func (t *memTx) DeleteEntity(_ context.Context, kind Kind, id int64) error {
	if _, ok := t.m.data.entities[kind][id]; !ok {
		return ErrNotFound
	}
	delete(t.m.data.entities[kind], id)
	return nil
}

func (t *memTx) SetNormalized(_ context.Context, kind Kind, id int64, normalized string) error {
	e, ok := t.m.data.entities[kind][id]
	if !ok {
		return ErrNotFound
	}
	e.Normalized = normalized
	t.m.data.entities[kind][id] = e
	return nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
