package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/metadata"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/query"
)

// NewPrewarmCommand creates the prewarm command.
func NewPrewarmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prewarm",
		Short: "Build the result metadata cache of every query definition",
		Long: `Register every query definition, then discover result metadata for all of
them concurrently. Reports the discovery strategy and column count per query
and fails listing every query whose metadata could not be built.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrewarm(cmd.Context(), rootOpts, cmd.OutOrStdout())
		},
	}
}

func runPrewarm(ctx context.Context, rootOpts *RootOptions, out io.Writer) error {
	s, err := openSession(ctx, rootOpts, func(cfg *query.Config) {
		cfg.BuildMetadataOnRegister = false
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.registerAllOrFail(ctx); err != nil {
		return err
	}

	prewarmErr := s.engine.Prewarm(ctx)
	for _, def := range s.engine.Definitions() {
		cache := def.Cache()
		if cache == nil {
			fmt.Fprintf(out, "FAIL  %s\n", def.Name)
			continue
		}
		fmt.Fprintf(out, "ok    %s (%s, %d columns)\n", def.Name, cache.Strategy(), cache.ColumnCount())
	}

	var perr *metadata.PrewarmError
	if errors.As(prewarmErr, &perr) {
		return &silentError{err: perr}
	}
	return prewarmErr
}
