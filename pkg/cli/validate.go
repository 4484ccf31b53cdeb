package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/query"
)

// ValidateOptions holds the flags of the validate command.
type ValidateOptions struct {
	// SkipMetadata registers definitions without building metadata caches,
	// so only the definitions themselves are checked.
	SkipMetadata bool
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Register every query definition and report problems",
		Long: `Compile and register every query definition against the configured
datasource. Unless --skip-metadata is set each definition's result metadata
is discovered as well, which catches SQL the database rejects.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.SkipMetadata, "skip-metadata", false, "do not discover result metadata")

	return cmd
}

func runValidate(ctx context.Context, rootOpts *RootOptions, opts *ValidateOptions, out io.Writer) error {
	s, err := openSession(ctx, rootOpts, func(cfg *query.Config) {
		cfg.BuildMetadataOnRegister = !opts.SkipMetadata
		cfg.TolerateMissingMetadata = false
	})
	if err != nil {
		return err
	}
	defer s.Close()

	results := s.registerAll(ctx)
	failedCount := 0
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintf(out, "ok    %s (%d attributes)\n", r.Name, len(r.Def.Attributes))
			continue
		}
		failedCount++
		fmt.Fprintf(out, "FAIL  %s\n", r.Name)
		for _, problem := range problems(r.Err) {
			fmt.Fprintf(out, "      - %s\n", problem)
		}
	}

	if failedCount > 0 {
		return &silentError{err: fmt.Errorf("%d of %d query definitions are invalid", failedCount, len(results))}
	}
	fmt.Fprintf(out, "%d query definitions valid\n", len(results))
	return nil
}

// problems flattens a registration error into one line per problem.
func problems(err error) []string {
	var derr *apperrors.DefinitionError
	if errors.As(err, &derr) {
		return derr.Problems
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
