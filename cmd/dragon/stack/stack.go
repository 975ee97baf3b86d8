// Package stack resolves dragon settings from viper and wires the chapter
// log, merge cache, oracle, metrics and event publisher into a compaction
// service shared by the CLI commands.
package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/viper"

	"github.com/bochendong/dragon-continue/cmd/dragon/sqlitepath"
	"github.com/bochendong/dragon-continue/pkg/chapter"
	chaptersqlite "github.com/bochendong/dragon-continue/pkg/chapter/sqlite"
	"github.com/bochendong/dragon-continue/pkg/compaction"
	"github.com/bochendong/dragon-continue/pkg/config"
	"github.com/bochendong/dragon-continue/pkg/credentials"
	"github.com/bochendong/dragon-continue/pkg/eventstream"
	"github.com/bochendong/dragon-continue/pkg/eventstream/kafka"
	"github.com/bochendong/dragon-continue/pkg/eventstream/nop"
	"github.com/bochendong/dragon-continue/pkg/mergecache"
	"github.com/bochendong/dragon-continue/pkg/mergecache/postgres"
	cachesqlite "github.com/bochendong/dragon-continue/pkg/mergecache/sqlite"
	"github.com/bochendong/dragon-continue/pkg/metrics"
	"github.com/bochendong/dragon-continue/pkg/oracle"
)

// Settings is the resolved configuration for one command invocation.
type Settings struct {
	ConfigDir string

	Backend     string
	SQLitePath  string
	PostgresDSN string

	Oracle        oracle.CallerConfig
	OracleTimeout time.Duration

	MergeFactor     int
	DetailWindow    int
	Concurrency     int
	WindowCacheSize int

	Listen string

	Brokers []string
	Topic   string

	Heuristics compaction.Heuristics
}

// Resolve reads settings from v, which carries the flag > env > file >
// default precedence chain. Heuristic tables are not scalar keys and come
// from config.toml directly. A missing API key falls back to the provider's
// environment variable, then to credentials.toml.
func Resolve(v *viper.Viper, configDir string) (Settings, error) {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return Settings{}, fmt.Errorf("loading config: %w", err)
	}
	fileCfg, err := cfger.LoadConfig()
	if err != nil {
		return Settings{}, err
	}

	timeout := v.GetDuration("oracle.timeout")
	if timeout <= 0 {
		return Settings{}, fmt.Errorf("invalid oracle.timeout %q", v.GetString("oracle.timeout"))
	}

	provider := v.GetString("oracle.provider")
	keyring, err := credentials.Open(configDir)
	if err != nil {
		return Settings{}, fmt.Errorf("opening credentials: %w", err)
	}
	apiKey, err := credentials.Resolve(v.GetString("oracle.api_key"), provider, keyring)
	if err != nil {
		return Settings{}, err
	}

	events := config.EventsConfig{Brokers: v.GetString("events.brokers"), Topic: v.GetString("events.topic")}

	return Settings{
		ConfigDir:   cfger.Dir(),
		Backend:     v.GetString("storage.backend"),
		SQLitePath:  v.GetString("storage.sqlite_path"),
		PostgresDSN: v.GetString("storage.postgres_dsn"),
		Oracle: oracle.CallerConfig{
			Provider: provider,
			Model:    v.GetString("oracle.model"),
			BaseURL:  v.GetString("oracle.base_url"),
			APIKey:   apiKey,
		},
		OracleTimeout:   timeout,
		MergeFactor:     v.GetInt("compaction.merge_factor"),
		DetailWindow:    v.GetInt("compaction.detail_window"),
		Concurrency:     v.GetInt("compaction.concurrency"),
		WindowCacheSize: v.GetInt("compaction.window_cache_size"),
		Listen:          v.GetString("api.listen"),
		Brokers:         events.BrokerList(),
		Topic:           events.Topic,
		Heuristics:      fileCfg.ResolvedHeuristics(),
	}, nil
}

// ChapterStore is the chapter log plus its write side.
type ChapterStore interface {
	chapter.Log
	chapter.Writer
	Close() error
}

// Stack is a wired compaction service and the resources behind it.
type Stack struct {
	Settings  Settings
	Chapters  ChapterStore
	Store     mergecache.Store
	Service   *compaction.Service
	Publisher eventstream.Publisher
	Registry  *prometheus.Registry

	logger  *slog.Logger
	closers []func() error
}

// OpenChapters opens only the chapter log, for commands that never compact.
func OpenChapters(s Settings, log *slog.Logger) (ChapterStore, error) {
	path, err := sqlitepath.ResolveSQLitePath(s.SQLitePath, s.ConfigDir)
	if err != nil {
		return nil, err
	}
	chapters, err := chaptersqlite.NewLog(withBusyTimeout(path))
	if err != nil {
		return nil, fmt.Errorf("opening chapter log: %w", err)
	}
	log.Debug("using SQLite chapter log", "path", path)
	return chapters, nil
}

// withBusyTimeout makes the chapter log and the merge cache, which share one
// database file through separate handles, wait for each other's locks.
func withBusyTimeout(path string) string {
	if path == ":memory:" || strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000"
}

// New opens every backend named by s and builds the service.
func New(ctx context.Context, s Settings, log *slog.Logger) (*Stack, error) {
	st := &Stack{Settings: s, logger: log}

	if err := st.open(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func (st *Stack) open(ctx context.Context) error {
	s := st.Settings

	chapters, err := OpenChapters(s, st.logger)
	if err != nil {
		return err
	}
	st.Chapters = chapters
	st.closers = append(st.closers, chapters.Close)

	store, err := OpenStore(ctx, s, st.logger)
	if err != nil {
		return err
	}
	st.Store = store
	st.closers = append(st.closers, store.Close)

	st.Registry = prometheus.NewRegistry()
	st.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observer, err := metrics.NewObserver("dragon", st.Registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	orc, err := st.openOracle()
	if err != nil {
		return err
	}

	heuristics := s.Heuristics
	windows := compaction.NewWindowCompactor(compaction.WindowConfig{
		Oracle:     orc,
		Timeout:    s.OracleTimeout,
		Heuristics: &heuristics,
		Observer:   observer,
	}, st.logger)

	engine, err := compaction.NewEngine(windows, compaction.EngineConfig{
		Concurrency:     s.Concurrency,
		WindowCacheSize: s.WindowCacheSize,
		Observer:        observer,
	}, st.logger)
	if err != nil {
		return err
	}

	st.Publisher, err = st.openPublisher()
	if err != nil {
		return err
	}
	st.closers = append(st.closers, st.Publisher.Close)

	st.Service, err = compaction.NewService(compaction.ServiceConfig{
		Log:       chapters,
		Engine:    engine,
		Cache:     mergecache.New(store, observer, st.logger),
		Publisher: st.Publisher,
		Logger:    st.logger,
	})
	return err
}

// OpenStore opens the merge cache backend named by s.
func OpenStore(ctx context.Context, s Settings, log *slog.Logger) (mergecache.Store, error) {
	switch s.Backend {
	case config.BackendPostgres:
		if s.PostgresDSN == "" {
			return nil, errors.New("storage.backend is postgres but storage.postgres_dsn is empty")
		}
		store, err := postgres.NewStore(ctx, s.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres merge cache: %w", err)
		}
		log.Debug("using PostgreSQL merge cache")
		return store, nil

	case config.BackendSQLite, "":
		path, err := sqlitepath.ResolveSQLitePath(s.SQLitePath, s.ConfigDir)
		if err != nil {
			return nil, err
		}
		store, err := cachesqlite.NewStore(withBusyTimeout(path))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite merge cache: %w", err)
		}
		log.Debug("using SQLite merge cache", "path", path)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

// openOracle returns nil when no summarizer is configured; every window then
// goes through the fallback compactor.
func (st *Stack) openOracle() (oracle.Oracle, error) {
	call, err := oracle.NewCaller(st.Settings.Oracle)
	switch {
	case errors.Is(err, oracle.ErrUnavailable):
		st.logger.Info("no summarizer configured, using fallback compaction", "reason", err)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("creating summarizer: %w", err)
	}
	st.logger.Debug("using summarizer", "provider", st.Settings.Oracle.Provider, "model", st.Settings.Oracle.Model)
	return oracle.NewLLM(call), nil
}

func (st *Stack) openPublisher() (eventstream.Publisher, error) {
	if len(st.Settings.Brokers) == 0 {
		return nop.NewPublisher(st.logger), nil
	}
	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: st.Settings.Brokers,
		Topic:   st.Settings.Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	st.logger.Info("publishing compaction events", "brokers", st.Settings.Brokers, "topic", p.Topic())
	return p, nil
}

// Close releases resources in reverse order of opening.
func (st *Stack) Close() error {
	var errs []error
	for i := len(st.closers) - 1; i >= 0; i-- {
		if err := st.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	st.closers = nil
	return errors.Join(errs...)
}
