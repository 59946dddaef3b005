package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresConfig controls the Postgres connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// querier is implemented by both DB and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	db DB
}

// NewPostgres connects a pool using the provided config.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{db: pool}, nil
}

// NewPostgresWithDB constructs a store from an existing pool (primarily
// for testing).
func NewPostgresWithDB(db DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (p *Postgres) Close() {
	if p != nil && p.db != nil {
		p.db.Close()
	}
}

// FindOrCreateStation looks a station up by name, creating it if absent.
func (p *Postgres) FindOrCreateStation(ctx context.Context, s Station) (Station, error) {
	err := p.db.QueryRow(ctx,
		`SELECT id, name, base_url, index_url FROM stations WHERE name = $1`, s.Name,
	).Scan(&s.ID, &s.Name, &s.BaseURL, &s.IndexURL)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Station{}, fmt.Errorf("find station: %w", err)
	}
	err = p.db.QueryRow(ctx,
		`INSERT INTO stations (name, base_url, index_url) VALUES ($1, $2, $3) RETURNING id`,
		s.Name, s.BaseURL, s.IndexURL,
	).Scan(&s.ID)
	if err != nil {
		return Station{}, fmt.Errorf("create station: %w", err)
	}
	return s, nil
}

// StationByID returns the station or ErrNotFound.
func (p *Postgres) StationByID(ctx context.Context, id int64) (Station, error) {
	var s Station
	err := p.db.QueryRow(ctx,
		`SELECT id, name, base_url, index_url FROM stations WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.BaseURL, &s.IndexURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return Station{}, ErrNotFound
	}
	if err != nil {
		return Station{}, fmt.Errorf("station by id: %w", err)
	}
	return s, nil
}

const broadcastColumns = `id, station_id, dj_id, title, prior_title, url, air_day,
air_time_start, air_time_end, frequency_days, active, last_scraped_at, created_at`

func scanBroadcast(row pgx.Row) (Broadcast, error) {
	var b Broadcast
	err := row.Scan(&b.ID, &b.StationID, &b.DJID, &b.Title, &b.PriorTitle, &b.URL,
		&b.AirDay, &b.AirTimeStart, &b.AirTimeEnd, &b.FrequencyDays, &b.Active,
		&b.LastScrapedAt, &b.CreatedAt)
	return b, err
}

// FindOrCreateBroadcast looks a broadcast up by URL, creating it if absent.
func (p *Postgres) FindOrCreateBroadcast(ctx context.Context, b Broadcast) (Broadcast, error) {
	existing, err := p.BroadcastByURL(ctx, b.URL)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Broadcast{}, err
	}
	row := p.db.QueryRow(ctx,
		`INSERT INTO broadcasts (station_id, title, prior_title, url, frequency_days, active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+broadcastColumns,
		b.StationID, b.Title, b.PriorTitle, b.URL, b.FrequencyDays, b.Active,
	)
	created, err := scanBroadcast(row)
	if err != nil {
		return Broadcast{}, fmt.Errorf("create broadcast: %w", err)
	}
	return created, nil
}

// BroadcastByURL returns the broadcast or ErrNotFound.
func (p *Postgres) BroadcastByURL(ctx context.Context, url string) (Broadcast, error) {
	row := p.db.QueryRow(ctx,
		`SELECT `+broadcastColumns+` FROM broadcasts WHERE lower(url) = lower($1)`, url)
	b, err := scanBroadcast(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Broadcast{}, ErrNotFound
	}
	if err != nil {
		return Broadcast{}, fmt.Errorf("broadcast by url: %w", err)
	}
	return b, nil
}

// ListBroadcasts returns all broadcasts ordered by ID.
func (p *Postgres) ListBroadcasts(ctx context.Context) ([]Broadcast, error) {
	rows, err := p.db.Query(ctx, `SELECT `+broadcastColumns+` FROM broadcasts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	defer rows.Close()
	var out []Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBroadcast overwrites the broadcast's mutable fields.
func (p *Postgres) UpdateBroadcast(ctx context.Context, b Broadcast) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE broadcasts SET dj_id = $2, title = $3, prior_title = $4, air_day = $5,
air_time_start = $6, air_time_end = $7, frequency_days = $8, active = $9, last_scraped_at = $10
WHERE id = $1`,
		b.ID, b.DJID, b.Title, b.PriorTitle, b.AirDay, b.AirTimeStart, b.AirTimeEnd,
		b.FrequencyDays, b.Active, b.LastScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("update broadcast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveDJ upserts a DJ row keyed by name.
func (p *Postgres) SaveDJ(ctx context.Context, dj DJ) (DJ, error) {
	err := p.db.QueryRow(ctx,
		`INSERT INTO djs (name, bio, member_names, email, instagram, twitter, facebook, profile_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (name) DO UPDATE SET
	bio = EXCLUDED.bio,
	member_names = EXCLUDED.member_names,
	email = EXCLUDED.email,
	instagram = EXCLUDED.instagram,
	twitter = EXCLUDED.twitter,
	facebook = EXCLUDED.facebook,
	profile_url = EXCLUDED.profile_url
RETURNING id`,
		dj.Name, dj.Bio, dj.MemberNames, dj.Email, dj.Instagram, dj.Twitter, dj.Facebook, dj.ProfileURL,
	).Scan(&dj.ID)
	if err != nil {
		return DJ{}, fmt.Errorf("save dj: %w", err)
	}
	return dj, nil
}

// LatestPlaylistAirDate returns the newest air date for the broadcast.
func (p *Postgres) LatestPlaylistAirDate(ctx context.Context, broadcastID int64) (time.Time, error) {
	var latest *time.Time
	err := p.db.QueryRow(ctx,
		`SELECT max(air_date) FROM playlists WHERE broadcast_id = $1`, broadcastID,
	).Scan(&latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest playlist air date: %w", err)
	}
	if latest == nil {
		return time.Time{}, ErrNotFound
	}
	return *latest, nil
}

const playlistColumns = `id, broadcast_id, station_id, title, air_date, url,
download_url_1, download_url_2, original_playlist_id`

func scanPlaylist(row pgx.Row) (Playlist, error) {
	var pl Playlist
	err := row.Scan(&pl.ID, &pl.BroadcastID, &pl.StationID, &pl.Title, &pl.AirDate,
		&pl.URL, &pl.DownloadURL1, &pl.DownloadURL2, &pl.OriginalPlaylistID)
	return pl, err
}

// PlaylistsByBroadcast returns the broadcast's playlists ordered by air date.
func (p *Postgres) PlaylistsByBroadcast(ctx context.Context, broadcastID int64) ([]Playlist, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE broadcast_id = $1 ORDER BY air_date`,
		broadcastID)
	if err != nil {
		return nil, fmt.Errorf("playlists by broadcast: %w", err)
	}
	defer rows.Close()
	var out []Playlist
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playlist: %w", err)
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

// SongIDsByPlaylist returns the playlist's song IDs in position order.
func (p *Postgres) SongIDsByPlaylist(ctx context.Context, playlistID int64) ([]int64, error) {
	rows, err := p.db.Query(ctx,
		`SELECT song_id FROM playlists_songs WHERE playlist_id = $1 ORDER BY position`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("song ids by playlist: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan song id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// LatestTrackSpan returns the track time span of the most recent playlist
// with timestamped tracks.
func (p *Postgres) LatestTrackSpan(ctx context.Context, broadcastID int64) (TrackSpan, error) {
	var first, last *time.Time
	err := p.db.QueryRow(ctx,
		`SELECT min(ps.start_time), max(ps.start_time)
FROM playlists_songs ps
WHERE ps.start_time IS NOT NULL AND ps.playlist_id = (
	SELECT pl.id FROM playlists pl
	JOIN playlists_songs t ON t.playlist_id = pl.id AND t.start_time IS NOT NULL
	WHERE pl.broadcast_id = $1
	ORDER BY pl.air_date DESC LIMIT 1
)`, broadcastID,
	).Scan(&first, &last)
	if err != nil {
		return TrackSpan{}, fmt.Errorf("latest track span: %w", err)
	}
	if first == nil || last == nil {
		return TrackSpan{}, ErrNotFound
	}
	return TrackSpan{First: *first, Last: *last}, nil
}

// SetOriginalPlaylist marks playlistID as a rerun of originalID after
// validating the chain invariants.
func (p *Postgres) SetOriginalPlaylist(ctx context.Context, playlistID, originalID int64) error {
	if playlistID == originalID {
		return fmt.Errorf("playlist %d cannot be a rerun of itself", playlistID)
	}
	var playlistAir, originalAir time.Time
	err := p.db.QueryRow(ctx, `SELECT air_date FROM playlists WHERE id = $1`, playlistID).Scan(&playlistAir)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load playlist: %w", err)
	}
	err = p.db.QueryRow(ctx, `SELECT air_date FROM playlists WHERE id = $1`, originalID).Scan(&originalAir)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load original playlist: %w", err)
	}
	if !originalAir.Before(playlistAir) {
		return fmt.Errorf("original playlist %d does not air before playlist %d", originalID, playlistID)
	}
	// Walk the chain from the proposed original to guard against cycles.
	seen := map[int64]struct{}{playlistID: {}}
	cur := originalID
	for {
		var next *int64
		err := p.db.QueryRow(ctx,
			`SELECT original_playlist_id FROM playlists WHERE id = $1`, cur).Scan(&next)
		if err != nil {
			return fmt.Errorf("walk rerun chain: %w", err)
		}
		if next == nil {
			break
		}
		if _, dup := seen[*next]; dup {
			return fmt.Errorf("linking playlist %d to %d would create a cycle", playlistID, originalID)
		}
		seen[*next] = struct{}{}
		cur = *next
	}
	if _, err := p.db.Exec(ctx,
		`UPDATE playlists SET original_playlist_id = $2 WHERE id = $1`, playlistID, originalID); err != nil {
		return fmt.Errorf("set original playlist: %w", err)
	}
	return nil
}

// AddPendingDecision appends a reviewer decision to the queue.
func (p *Postgres) AddPendingDecision(ctx context.Context, d PendingDecision) error {
	if _, err := p.db.Exec(ctx,
		`INSERT INTO pending_decisions (broadcast_id, reason, playlist_ids) VALUES ($1, $2, $3)`,
		d.BroadcastID, d.Reason, d.PlaylistIDs); err != nil {
		return fmt.Errorf("add pending decision: %w", err)
	}
	return nil
}

// PendingDecisions returns the queued decisions in insertion order.
func (p *Postgres) PendingDecisions(ctx context.Context) ([]PendingDecision, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, broadcast_id, reason, playlist_ids, created_at FROM pending_decisions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("pending decisions: %w", err)
	}
	defer rows.Close()
	var out []PendingDecision
	for rows.Next() {
		var d PendingDecision
		if err := rows.Scan(&d.ID, &d.BroadcastID, &d.Reason, &d.PlaylistIDs, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func entitySelect(kind Kind) string {
	if kind.Grouped() {
		return fmt.Sprintf("SELECT id, %s, %s, artist_id FROM %s",
			kind.NameColumn(), kind.NormalizedColumn(), kind.Table())
	}
	return fmt.Sprintf("SELECT id, %s, %s, NULL::bigint FROM %s",
		kind.NameColumn(), kind.NormalizedColumn(), kind.Table())
}

func scanEntity(row pgx.Row, kind Kind) (Entity, error) {
	e := Entity{Kind: kind}
	err := row.Scan(&e.ID, &e.Name, &e.Normalized, &e.ArtistID)
	return e, err
}

// ListEntities returns all rows of the kind ordered by ID.
func (p *Postgres) ListEntities(ctx context.Context, kind Kind) ([]Entity, error) {
	rows, err := p.db.Query(ctx, entitySelect(kind)+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list %ss: %w", kind, err)
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		e, err := scanEntity(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FuzzyFind runs a pg_trgm similarity query against the kind's display
// column, ordered by descending similarity.
func (p *Postgres) FuzzyFind(ctx context.Context, kind Kind, query string, threshold float64) ([]Match, error) {
	artistCol := "NULL::bigint"
	if kind.Grouped() {
		artistCol = "artist_id"
	}
	sql := fmt.Sprintf(
		`SELECT id, %s, %s, %s, similarity(%s, $1) AS sim
FROM %s
WHERE similarity(%s, $1) > $2
ORDER BY sim DESC, id`,
		kind.NameColumn(), kind.NormalizedColumn(), artistCol,
		kind.NameColumn(), kind.Table(), kind.NameColumn())
	rows, err := p.db.Query(ctx, sql, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("fuzzy find %ss: %w", kind, err)
	}
	defer rows.Close()
	var out []Match
	for rows.Next() {
		m := Match{Entity: Entity{Kind: kind}}
		if err := rows.Scan(&m.ID, &m.Name, &m.Normalized, &m.ArtistID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scan %s match: %w", kind, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// WithTx runs fn inside a pgx transaction.
func (p *Postgres) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgtx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(ctx, &pgTx{q: pgtx}); err != nil {
		if rbErr := pgtx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgTx implements Tx over a pgx transaction.
type pgTx struct {
	q querier
}

func (t *pgTx) UpsertPlaylist(ctx context.Context, pl Playlist) (Playlist, error) {
	row := t.q.QueryRow(ctx,
		`INSERT INTO playlists (broadcast_id, station_id, title, air_date, url, download_url_1, download_url_2)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (lower(url)) DO UPDATE SET
	broadcast_id = EXCLUDED.broadcast_id,
	station_id = EXCLUDED.station_id,
	title = EXCLUDED.title,
	air_date = EXCLUDED.air_date,
	download_url_1 = EXCLUDED.download_url_1,
	download_url_2 = EXCLUDED.download_url_2
RETURNING `+playlistColumns,
		pl.BroadcastID, pl.StationID, pl.Title, pl.AirDate, pl.URL, pl.DownloadURL1, pl.DownloadURL2)
	saved, err := scanPlaylist(row)
	if err != nil {
		return Playlist{}, fmt.Errorf("upsert playlist: %w", err)
	}
	return saved, nil
}

func (t *pgTx) ReplaceRawImport(ctx context.Context, playlistID int64, tracks []RawTrack) error {
	payload, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("marshal raw import: %w", err)
	}
	if _, err := t.q.Exec(ctx,
		`INSERT INTO playlist_imports (playlist_id, scraped_data, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (playlist_id) DO UPDATE SET scraped_data = EXCLUDED.scraped_data, updated_at = NOW()`,
		playlistID, payload); err != nil {
		return fmt.Errorf("replace raw import: %w", err)
	}
	return nil
}

func (t *pgTx) ClearPlaylistTracks(ctx context.Context, playlistID int64) error {
	if _, err := t.q.Exec(ctx,
		`DELETE FROM playlists_songs WHERE playlist_id = $1`, playlistID); err != nil {
		return fmt.Errorf("clear playlist tracks: %w", err)
	}
	return nil
}

func (t *pgTx) AddPlaylistTrack(ctx context.Context, tr PlaylistTrack) error {
	if _, err := t.q.Exec(ctx,
		`INSERT INTO playlists_songs (playlist_id, song_id, position, start_time) VALUES ($1, $2, $3, $4)`,
		tr.PlaylistID, tr.SongID, tr.Position, tr.StartTime); err != nil {
		return fmt.Errorf("add playlist track: %w", err)
	}
	return nil
}

func (t *pgTx) FindEntity(ctx context.Context, kind Kind, normalized string, artistID *int64) (Entity, error) {
	var row pgx.Row
	if kind.Grouped() {
		if artistID == nil {
			return Entity{}, fmt.Errorf("%s lookup requires an artist grouping key", kind)
		}
		row = t.q.QueryRow(ctx,
			entitySelect(kind)+fmt.Sprintf(" WHERE %s = $1 AND artist_id = $2", kind.NormalizedColumn()),
			normalized, *artistID)
	} else {
		row = t.q.QueryRow(ctx,
			entitySelect(kind)+fmt.Sprintf(" WHERE %s = $1", kind.NormalizedColumn()),
			normalized)
	}
	e, err := scanEntity(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, fmt.Errorf("find %s: %w", kind, err)
	}
	return e, nil
}

func (t *pgTx) CreateEntity(ctx context.Context, e Entity) (Entity, error) {
	var err error
	if e.Kind.Grouped() {
		if e.ArtistID == nil {
			return Entity{}, fmt.Errorf("%s requires an artist grouping key", e.Kind)
		}
		err = t.q.QueryRow(ctx,
			fmt.Sprintf(`INSERT INTO %s (%s, %s, artist_id) VALUES ($1, $2, $3) RETURNING id`,
				e.Kind.Table(), e.Kind.NameColumn(), e.Kind.NormalizedColumn()),
			e.Name, e.Normalized, *e.ArtistID).Scan(&e.ID)
	} else {
		err = t.q.QueryRow(ctx,
			fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) RETURNING id`,
				e.Kind.Table(), e.Kind.NameColumn(), e.Kind.NormalizedColumn()),
			e.Name, e.Normalized).Scan(&e.ID)
	}
	if err != nil {
		return Entity{}, fmt.Errorf("create %s: %w", e.Kind, err)
	}
	return e, nil
}

func (t *pgTx) RenameEntity(ctx context.Context, kind Kind, id int64, name string) error {
	tag, err := t.q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE id = $1`, kind.Table(), kind.NameColumn()),
		id, name)
	if err != nil {
		return fmt.Errorf("rename %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) LinkSongAlbum(ctx context.Context, songID, albumID int64) error {
	if _, err := t.q.Exec(ctx,
		`INSERT INTO albums_songs (album_id, song_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		albumID, songID); err != nil {
		return fmt.Errorf("link song to album: %w", err)
	}
	return nil
}

func (t *pgTx) SetAlbumLabel(ctx context.Context, albumID, labelID int64) error {
	if _, err := t.q.Exec(ctx,
		`UPDATE albums SET record_label_id = $2 WHERE id = $1`, albumID, labelID); err != nil {
		return fmt.Errorf("set album label: %w", err)
	}
	return nil
}

func (t *pgTx) ReassignDependents(ctx context.Context, kind Kind, fromID, toID int64) error {
	for _, rel := range kind.Dependents() {
		if _, err := t.q.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, rel.Table, rel.Column, rel.Column),
			toID, fromID); err != nil {
			return fmt.Errorf("reassign %s.%s: %w", rel.Table, rel.Column, err)
		}
	}
	return nil
}

func (t *pgTx) DeleteEntity(ctx context.Context, kind Kind, id int64) error {
	tag, err := t.q.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, kind.Table()), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SetNormalized(ctx context.Context, kind Kind, id int64, normalized string) error {
	if _, err := t.q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE id = $1`, kind.Table(), kind.NormalizedColumn()),
		id, normalized); err != nil {
		return fmt.Errorf("set normalized %s: %w", kind, err)
	}
	return nil
}
