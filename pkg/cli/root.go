// Package cli is the ekaya-query-engine command line: it loads configuration
// and query definitions, then runs, validates or prewarms them.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/config"

	// Adapters register themselves with the datasource registry.
	_ "github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource/oracle"
	_ "github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath      string
	DefinitionsPath string // overrides definitions_path from configuration
	Version         string
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &RootOptions{Version: version}

	cmd := &cobra.Command{
		Use:   "ekaya-query-engine",
		Short: "Run registered SQL query definitions",
		Long: `Load query definitions from YAML, register them against a datasource
and execute them with runtime parameters, filters, sorting and pagination.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath,
		"configuration file; environment variables override it")
	cmd.PersistentFlags().StringVarP(&opts.DefinitionsPath, "definitions", "d", "",
		"query definitions file (default from configuration)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewPrewarmCommand(opts))
	cmd.AddCommand(NewAdaptersCommand())
	cmd.AddCommand(NewSealCommand())
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// Execute runs the root command with os.Args and returns the process exit
// code. SIGINT and SIGTERM cancel the running command.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, NewRootCommand(version), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var silent *silentError
		if !errors.As(err, &silent) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}

// silentError fails a command whose output already describes the failure.
type silentError struct{ err error }

func (e *silentError) Error() string { return e.err.Error() }
func (e *silentError) Unwrap() error { return e.err }
