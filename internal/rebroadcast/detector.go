// Package rebroadcast finds playlists that are reruns of earlier ones.
// Unambiguous cases are linked automatically; everything else lands in
// the pending-decision queue for a reviewer, so a detection pass never
// blocks.
package rebroadcast

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/store"
)

var rebroadcastPattern = regexp.MustCompile(`(?i)\((re-?broadcast|copy|rerun)\)`)

// Report summarizes one detection pass.
type Report struct {
	AutoLinked int
	Queued     int
}

type Detector struct {
	store  store.Store
	logger *zap.Logger
}

func NewDetector(st store.Store, logger *zap.Logger) *Detector {
	return &Detector{store: st, logger: logger}
}

// Run scans one broadcast's unlinked playlists, oldest first. The
// parenthetical pass auto-links titles that differ from an original only
// by a rerun marker; the song-set pass groups playlists that share an
// identical song set and queues them for review.
func (d *Detector) Run(ctx context.Context, broadcastID int64) (Report, error) {
	var report Report

	all, err := d.store.PlaylistsByBroadcast(ctx, broadcastID)
	if err != nil {
		return report, fmt.Errorf("list playlists: %w", err)
	}
	var candidates []store.Playlist
	for _, pl := range all {
		if pl.OriginalPlaylistID == nil {
			candidates = append(candidates, pl)
		}
	}

	linked := make(map[int64]bool)
	d.checkByParenthetical(ctx, broadcastID, candidates, linked, &report)
	if err := d.checkByIdenticalSongs(ctx, broadcastID, candidates, linked, &report); err != nil {
		return report, err
	}
	return report, nil
}

func (d *Detector) checkByParenthetical(ctx context.Context, broadcastID int64, candidates []store.Playlist, linked map[int64]bool, report *Report) {
	checked := make(map[int64]bool)
	for _, pl := range candidates {
		if checked[pl.ID] || !strings.Contains(pl.Title, "(") {
			continue
		}
		base := strings.TrimSpace(pl.Title[:strings.Index(pl.Title, "(")])
		if base == "" {
			continue
		}

		var group []store.Playlist
		for _, other := range candidates {
			if strings.HasPrefix(strings.ToLower(other.Title), strings.ToLower(base)) {
				group = append(group, other)
				checked[other.ID] = true
			}
		}
		if len(group) < 2 {
			continue
		}

		if onlyRerunMarkersRemain(base, group) {
			// Candidates arrive oldest first, so the first member is the
			// original and every link points backward in time.
			original := group[0]
			for _, m := range group[1:] {
				if err := d.store.SetOriginalPlaylist(ctx, m.ID, original.ID); err != nil {
					d.logger.Warn("could not link rerun",
						zap.Int64("playlist_id", m.ID),
						zap.Int64("original_id", original.ID),
						zap.Error(err))
					continue
				}
				linked[m.ID] = true
				report.AutoLinked++
			}
			continue
		}

		d.queue(ctx, broadcastID, "parenthetical title match", group, report)
	}
}

// onlyRerunMarkersRemain reports whether each member's title reduces to
// nothing once the shared base and a rerun marker are removed, meaning
// the variants differ only by that marker.
func onlyRerunMarkersRemain(base string, group []store.Playlist) bool {
	for _, pl := range group {
		rest := strings.Replace(pl.Title, base, "", 1)
		rest = rebroadcastPattern.ReplaceAllString(rest, "")
		if strings.TrimSpace(rest) != "" {
			return false
		}
	}
	return true
}

func (d *Detector) checkByIdenticalSongs(ctx context.Context, broadcastID int64, candidates []store.Playlist, linked map[int64]bool, report *Report) error {
	groups := make(map[string][]store.Playlist)
	for _, pl := range candidates {
		if linked[pl.ID] {
			continue
		}
		songIDs, err := d.store.SongIDsByPlaylist(ctx, pl.ID)
		if err != nil {
			return fmt.Errorf("songs for playlist %d: %w", pl.ID, err)
		}
		if len(songIDs) == 0 {
			continue
		}
		sort.Slice(songIDs, func(i, j int) bool { return songIDs[i] < songIDs[j] })
		key := fmt.Sprint(songIDs)
		groups[key] = append(groups[key], pl)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if group := groups[key]; len(group) > 1 {
			d.queue(ctx, broadcastID, "identical song set", group, report)
		}
	}
	return nil
}

func (d *Detector) queue(ctx context.Context, broadcastID int64, reason string, group []store.Playlist, report *Report) {
	ids := make([]int64, len(group))
	for i, pl := range group {
		ids[i] = pl.ID
	}
	err := d.store.AddPendingDecision(ctx, store.PendingDecision{
		BroadcastID: broadcastID,
		Reason:      reason,
		PlaylistIDs: ids,
	})
	if err != nil {
		d.logger.Error("could not queue rerun decision",
			zap.String("reason", reason), zap.Error(err))
		return
	}
	report.Queued++
	d.logger.Info("queued rerun group for review",
		zap.String("reason", reason), zap.Int64s("playlist_ids", ids))
}
