package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/crafthaus/methodgraph/internal/config"
	"github.com/crafthaus/methodgraph/internal/gate"
	"github.com/crafthaus/methodgraph/internal/model"
	"github.com/crafthaus/methodgraph/internal/proposal"
	"github.com/crafthaus/methodgraph/internal/schema"
	"github.com/crafthaus/methodgraph/internal/store"
	badgerstore "github.com/crafthaus/methodgraph/internal/store/badger"
	"github.com/crafthaus/methodgraph/internal/store/sqlite"
	"github.com/crafthaus/methodgraph/internal/version"
)

// env wires the engine together for one command invocation.
type env struct {
	store     store.Store
	gate      *gate.Gate
	versions  *version.Manager
	proposals *proposal.Workflow
	log       *slog.Logger
}

// openEnv loads the config, opens the selected backend, and assembles the
// engine. The returned cleanup closes the store.
func openEnv(opts *RootOptions) (*env, func(), error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var s store.Store
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err = sqlite.Open(cfg.Path)
	case config.BackendBadger:
		s, err = badgerstore.Open(badgerstore.Config{Path: cfg.Path, SyncWrites: true, Logger: logger})
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}

	validator, err := schema.New()
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	versions := version.NewManager(s, validator, logger)
	e := &env{
		store:     s,
		gate:      gate.New(s, versions, validator, logger),
		versions:  versions,
		proposals: proposal.New(s, versions, validator, nil, logger),
		log:       logger,
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}
	return e, cleanup, nil
}

// parseAttrs converts repeated key=value flags into an attribute payload.
// Integer-looking values become ints so numeric schema fields validate.
func parseAttrs(pairs []string) (model.Attrs, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := model.Attrs{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid attribute %q: want key=value", pair)
		}
		if n, err := strconv.Atoi(value); err == nil {
			attrs[key] = n
		} else {
			attrs[key] = value
		}
	}
	return attrs, nil
}
