package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/config"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/logging"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-query-engine/pkg/query"
)

// session is a connected engine plus everything it was built from.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	ds      *datasource.Datasource
	engine  *query.Engine
	queries []models.QueryDefinition
}

// registration is the outcome of registering one definition.
type registration struct {
	Name string
	Def  *query.Definition
	Err  error
}

// openSession loads configuration and definitions, connects to the
// datasource and creates the engine. tune may adjust the engine
// configuration before the engine is built.
func openSession(ctx context.Context, opts *RootOptions, tune func(*query.Config)) (*session, error) {
	path := opts.ConfigPath
	if path == config.DefaultPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path, opts.Version)
	if err != nil {
		return nil, err
	}
	if opts.DefinitionsPath != "" {
		cfg.DefinitionsPath = opts.DefinitionsPath
	}

	file, err := config.LoadQueryDefinitions(cfg.DefinitionsPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ds, err := datasource.Open(ctx, cfg.Datasource.Connection(), cfg.Datasource.Pool(), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	engineCfg := cfg.Engine()
	if tune != nil {
		tune(&engineCfg)
	}
	engine, err := query.New(ds, engineCfg, logger)
	if err != nil {
		_ = ds.Close()
		_ = logger.Sync()
		return nil, err
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		ds:      ds,
		engine:  engine,
		queries: file.Queries,
	}, nil
}

// registerAll compiles and registers every loaded definition, continuing
// past failures.
func (s *session) registerAll(ctx context.Context) []registration {
	fns := query.DefaultFunctions()
	out := make([]registration, 0, len(s.queries))
	for _, q := range s.queries {
		r := registration{Name: q.Name}
		r.Def, r.Err = query.FromModel(q, fns)
		if r.Err == nil {
			r.Err = s.engine.Register(ctx, r.Def)
		}
		out = append(out, r)
	}
	return out
}

// registerOne compiles and registers the named definition only.
func (s *session) registerOne(ctx context.Context, name string) error {
	for _, q := range s.queries {
		if q.Name != name {
			continue
		}
		def, err := query.FromModel(q, query.DefaultFunctions())
		if err != nil {
			return fmt.Errorf("query %s: %w", name, err)
		}
		return s.engine.Register(ctx, def)
	}
	return fmt.Errorf("%w: %s", apperrors.ErrUnknownQuery, name)
}

// registerAllOrFail is registerAll for commands that need every definition.
func (s *session) registerAllOrFail(ctx context.Context) error {
	var errs []error
	for _, r := range s.registerAll(ctx) {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("query %s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}

func (s *session) Close() {
	s.engine.Close()
	if err := s.ds.Close(); err != nil {
		s.logger.Warn("Failed to close datasource", zap.Error(err))
	}
	_ = s.logger.Sync()
}
