package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/query"
)

// RunOptions holds the flags of the run command.
type RunOptions struct {
	Params     []string // name=value
	ParamsJSON string   // JSON object, or @file
	Filters    []string // attr.op=GTE, attr.value=5, attr.values=a,b
	Sorts      []string // attr[.asc|.desc]
	Fields     []string
	Start      int
	End        int
	Single     bool
	NoMetadata bool
	Compact    bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Execute a registered query and print the result as JSON",
		Long: `Execute a query definition with runtime parameters, filters, sorting and
pagination. Filters use the same keys as the query-string form:

  --filter salary.op=GTE --filter salary.value=50000
  --filter id.values=1,2,3
  --filter hireDate.op=BETWEEN --filter hireDate.value=2020-01-01 --filter hireDate.value2=2020-12-31`,
		Example: `  ekaya-query-engine run employees --param minSalary=50000 --sort lastName --start 0 --end 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "parameter as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.ParamsJSON, "params-json", "", "parameters as a JSON object, or @file")
	cmd.Flags().StringArrayVarP(&opts.Filters, "filter", "f", nil, "filter as attr.key=value (repeatable)")
	cmd.Flags().StringSliceVarP(&opts.Sorts, "sort", "s", nil, "sort as attr[.asc|.desc] (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "hidden attributes to include")
	cmd.Flags().IntVar(&opts.Start, "start", 0, "first row of the page (inclusive)")
	cmd.Flags().IntVar(&opts.End, "end", 0, "last row of the page (exclusive)")
	cmd.Flags().BoolVar(&opts.Single, "single", false, "expect exactly one row via the query's lookup criteria")
	cmd.Flags().BoolVar(&opts.NoMetadata, "no-metadata", false, "omit total count, schema and applied criteria")
	cmd.Flags().BoolVar(&opts.Compact, "compact", false, "print compact JSON")

	return cmd
}

func runQuery(ctx context.Context, rootOpts *RootOptions, opts *RunOptions, name string, cmd *cobra.Command) error {
	values, err := opts.values(cmd)
	if err != nil {
		return err
	}
	jsonParams, err := opts.jsonParams()
	if err != nil {
		return err
	}

	s, err := openSession(ctx, rootOpts, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.registerOne(ctx, name); err != nil {
		return err
	}

	qc, err := s.engine.Query(name)
	if err != nil {
		return err
	}
	qc.Params(jsonParams)
	if err := query.ApplyValues(qc, values); err != nil {
		return err
	}
	if opts.NoMetadata {
		qc.WithoutMetadata()
	}

	out := cmd.OutOrStdout()
	if opts.Single {
		row, err := qc.ExecuteSingle(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, row, opts.Compact)
	}

	res := qc.Execute(ctx)
	if err := writeJSON(out, res, opts.Compact); err != nil {
		return err
	}
	if !res.Success {
		return &silentError{err: res.Err()}
	}
	return nil
}

// values translates flags into the query-string form ApplyValues reads.
func (o *RunOptions) values(cmd *cobra.Command) (url.Values, error) {
	values := url.Values{}

	for _, p := range o.Params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q: expected name=value", p)
		}
		values.Add("param."+k, v)
	}
	for _, f := range o.Filters {
		k, v, ok := strings.Cut(f, "=")
		if !ok || !strings.Contains(k, ".") {
			return nil, fmt.Errorf("invalid --filter %q: expected attr.key=value", f)
		}
		values.Add("filter."+k, v)
	}
	if len(o.Sorts) > 0 {
		values.Set(query.KeySort, strings.Join(o.Sorts, ","))
	}
	if len(o.Fields) > 0 {
		values.Set(query.KeyFields, strings.Join(o.Fields, ","))
	}
	if cmd.Flags().Changed("start") {
		values.Set(query.KeyStart, strconv.Itoa(o.Start))
	}
	if cmd.Flags().Changed("end") {
		values.Set(query.KeyEnd, strconv.Itoa(o.End))
	}
	return values, nil
}

func (o *RunOptions) jsonParams() (map[string]any, error) {
	if o.ParamsJSON == "" {
		return nil, nil
	}
	data := []byte(o.ParamsJSON)
	if path, ok := strings.CutPrefix(o.ParamsJSON, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read --params-json: %w", err)
		}
	}
	params, err := jsonutil.StringValues(data)
	if err != nil {
		return nil, fmt.Errorf("invalid --params-json: %w", err)
	}
	return params, nil
}

func writeJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
