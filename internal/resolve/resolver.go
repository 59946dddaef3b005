// Package resolve maps raw scraped names onto canonical entity rows and
// collapses duplicates that slipped past normalization.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/store"
	"github.com/radiocrate/radiocrate/internal/textnorm"
)

// ErrBlankValue signals a missing required field. Callers skip the
// record; a placeholder entity is never created.
var ErrBlankValue = errors.New("blank entity value")

// Resolver finds or creates canonical rows by normalized key.
type Resolver struct {
	norm   *textnorm.Normalizer
	logger *zap.Logger
}

func NewResolver(norm *textnorm.Normalizer, logger *zap.Logger) *Resolver {
	return &Resolver{norm: norm, logger: logger}
}

// Resolve returns the canonical entity for raw within the current
// transaction, creating it on first sight. When the row already exists
// and the new raw spelling is judged better formatted than the stored
// one, the stored display name is upgraded in place. artistID is
// required for grouped kinds (albums and songs) and ignored otherwise.
func (r *Resolver) Resolve(ctx context.Context, tx store.Tx, kind store.Kind, raw string, artistID *int64) (store.Entity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return store.Entity{}, fmt.Errorf("%s: %w", kind, ErrBlankValue)
	}
	normalized := r.norm.Normalize(raw)

	existing, err := tx.FindEntity(ctx, kind, normalized, artistID)
	if errors.Is(err, store.ErrNotFound) {
		created, err := tx.CreateEntity(ctx, store.Entity{
			Kind:       kind,
			Name:       raw,
			Normalized: normalized,
			ArtistID:   artistID,
		})
		if err != nil {
			return store.Entity{}, fmt.Errorf("create %s %q: %w", kind, raw, err)
		}
		return created, nil
	}
	if err != nil {
		return store.Entity{}, fmt.Errorf("find %s %q: %w", kind, raw, err)
	}

	if best, ok := textnorm.SelectBest([]string{existing.Name, raw}); ok && best != existing.Name {
		r.logger.Debug("upgrading display name",
			zap.Stringer("kind", kind),
			zap.String("from", existing.Name),
			zap.String("to", best))
		if err := tx.RenameEntity(ctx, kind, existing.ID, best); err != nil {
			return store.Entity{}, fmt.Errorf("rename %s %d: %w", kind, existing.ID, err)
		}
		existing.Name = best
	}
	return existing, nil
}
