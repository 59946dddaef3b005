package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/resolve"
	"github.com/radiocrate/radiocrate/internal/store"
	"github.com/radiocrate/radiocrate/internal/textnorm"
)

func newMergeCmd() *cobra.Command {
	var kindName string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Collapse entity rows that share a normalized key",
		Long: `Re-partitions the catalog by each entity's current normalized key and
merges rows that collide, reparenting their dependents onto the
best-formatted survivor. Run after tightening normalization rules.
Do not run concurrently with an ingest of the same station.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			kinds := store.Kinds
			if kindName != "" {
				kind, err := store.KindFromString(kindName)
				if err != nil {
					return err
				}
				kinds = []store.Kind{kind}
			}

			norm := textnorm.NewNormalizer(a.cfg.Normalizer.Substitutions)
			engine := resolve.NewMergeEngine(a.store, norm, a.logger)
			for _, kind := range kinds {
				merged, err := engine.MergeDuplicates(cmd.Context(), kind)
				if err != nil {
					return fmt.Errorf("merge %ss: %w", kind, err)
				}
				a.logger.Info("merge pass finished",
					zap.Stringer("kind", kind), zap.Int("merged", merged))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", "", "merge only one entity kind (artist, genre, record_label, album, song)")
	return cmd
}
