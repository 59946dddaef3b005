package resolve

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/store"
	"github.com/radiocrate/radiocrate/internal/textnorm"
)

// MergeEngine collapses rows that share a normalized key. Duplicates
// appear when normalization rules tighten after data exists, or when a
// race let two creates through.
type MergeEngine struct {
	store  store.Store
	norm   *textnorm.Normalizer
	logger *zap.Logger
}

func NewMergeEngine(st store.Store, norm *textnorm.Normalizer, logger *zap.Logger) *MergeEngine {
	return &MergeEngine{store: st, norm: norm, logger: logger}
}

type partitionKey struct {
	normalized string
	artistID   int64
}

// MergeDuplicates partitions every row of kind by its recomputed
// normalized key (scoped by artist for grouped kinds), elects a primary
// display name per partition, reparents dependent rows onto the
// primary, and deletes the losers. Each partition is one transaction; a
// failed partition is logged and the rest proceed. Returns the number
// of rows merged away.
func (e *MergeEngine) MergeDuplicates(ctx context.Context, kind store.Kind) (int, error) {
	rows, err := e.store.ListEntities(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("list %ss: %w", kind, err)
	}

	partitions := make(map[partitionKey][]store.Entity)
	for _, row := range rows {
		key := partitionKey{normalized: e.norm.Normalize(row.Name)}
		if kind.Grouped() {
			if row.ArtistID == nil {
				e.logger.Warn("skipping ungrouped row of a grouped kind",
					zap.Stringer("kind", kind), zap.Int64("id", row.ID))
				continue
			}
			key.artistID = *row.ArtistID
		}
		partitions[key] = append(partitions[key], row)
	}

	// Deterministic partition order keeps reruns and logs comparable.
	keys := make([]partitionKey, 0, len(partitions))
	for key := range partitions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].normalized != keys[j].normalized {
			return keys[i].normalized < keys[j].normalized
		}
		return keys[i].artistID < keys[j].artistID
	})

	merged := 0
	for _, key := range keys {
		members := partitions[key]
		if len(members) < 2 {
			continue
		}
		if err := e.mergePartition(ctx, kind, key.normalized, members); err != nil {
			e.logger.Error("partition merge failed",
				zap.Stringer("kind", kind),
				zap.String("normalized", key.normalized),
				zap.Error(err))
			continue
		}
		merged += len(members) - 1
	}
	return merged, nil
}

func (e *MergeEngine) mergePartition(ctx context.Context, kind store.Kind, normalized string, members []store.Entity) error {
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	best, ok := textnorm.SelectBest(names)
	if !ok {
		return fmt.Errorf("no candidate names in partition %q", normalized)
	}
	// SelectBest always returns a member of its input.
	primary := members[0]
	for _, m := range members {
		if m.Name == best {
			primary = m
			break
		}
	}

	e.logger.Info("merging duplicates",
		zap.Stringer("kind", kind),
		zap.String("primary", primary.Name),
		zap.Int("losers", len(members)-1))

	return e.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, m := range members {
			if m.ID == primary.ID {
				continue
			}
			if err := tx.ReassignDependents(ctx, kind, m.ID, primary.ID); err != nil {
				return err
			}
			if err := tx.DeleteEntity(ctx, kind, m.ID); err != nil {
				return err
			}
		}
		return tx.SetNormalized(ctx, kind, primary.ID, normalized)
	})
}
