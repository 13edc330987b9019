// Package app builds every LexiGuard component from configuration. Both the
// HTTP gateway and the CLI start here.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ericksa/lexiguard/internal/analysis"
	"github.com/ericksa/lexiguard/internal/api"
	"github.com/ericksa/lexiguard/internal/archive"
	"github.com/ericksa/lexiguard/internal/audit"
	"github.com/ericksa/lexiguard/internal/config"
	"github.com/ericksa/lexiguard/internal/logging"
	"github.com/ericksa/lexiguard/internal/metrics"
	"github.com/ericksa/lexiguard/internal/pipeline"
	"github.com/ericksa/lexiguard/internal/store"
	"github.com/ericksa/lexiguard/pkg/mcp"
)

// Version is reported by the MCP server and the CLI.
const Version = "1.0.0"

const persistRetryBase = 100 * time.Millisecond

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   store.Store
	Auditor *audit.Auditor
	Metrics *metrics.Metrics
	Service *pipeline.Service
	Tools   *mcp.Handler

	closers []func() error
}

type Option func(*App)

// WithLogger replaces the logger built from cfg.Log.
func WithLogger(l *zap.Logger) Option { return func(a *App) { a.Logger = l } }

// New validates cfg and wires the application. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		logger, err := logging.New(cfg.Log)
		if err != nil {
			return nil, err
		}
		a.Logger = logger
		a.closers = append(a.closers, func() error {
			_ = logger.Sync()
			return nil
		})
	}

	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	st, err := store.Open(ctx, cfg.Store, a.Logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, st.Close)
	a.Store = a.withCache(ctx, st)

	classifier, segmenter, err := a.buildAnalysis()
	if err != nil {
		return err
	}

	a.Metrics = metrics.New()
	a.Auditor = audit.NewAuditor(a.Store, a.Logger)
	a.Service = pipeline.NewService(a.Store, classifier, segmenter,
		pipeline.WithAuditor(a.Auditor),
		pipeline.WithArchiver(a.buildArchiver(ctx)),
		pipeline.WithMetrics(a.Metrics),
		pipeline.WithLogger(a.Logger),
		pipeline.WithPersistRetries(cfg.Store.PersistRetries, persistRetryBase),
		pipeline.WithSnippetLength(cfg.Analysis.SnippetLength),
	)
	a.Tools = mcp.NewHandler(a.Service, a.Auditor, a.Logger, Version)
	return nil
}

func (a *App) buildAnalysis() (*analysis.Classifier, *analysis.Segmenter, error) {
	cfg := a.Config.Analysis

	var keywords *analysis.KeywordTable
	if cfg.KeywordsFile != "" {
		t, err := analysis.LoadKeywordTable(cfg.KeywordsFile)
		if err != nil {
			return nil, nil, err
		}
		keywords = t
		a.Logger.Info("loaded keyword table", zap.String("path", cfg.KeywordsFile))
	}

	var model analysis.Model
	if cfg.ModelEnabled {
		m, err := analysis.NewSeedModel()
		if err != nil {
			return nil, nil, err
		}
		model = m
		a.Logger.Info("risk model trained",
			zap.Int("vocabulary", m.VocabularySize()),
			zap.Int("classes", len(m.Classes())),
		)
	} else {
		a.Logger.Info("risk model disabled, classifying by keywords only")
	}

	detector, err := analysis.NewSentenceDetector(cfg.SentenceDetector)
	if err != nil {
		return nil, nil, err
	}

	classifier := analysis.NewClassifier(keywords, model, a.Logger)
	segmenter := analysis.NewSegmenter(detector, cfg.MinClauseLength)
	return classifier, segmenter, nil
}

// withCache puts the redis fingerprint cache in front of st when enabled.
// An unreachable redis is logged and skipped.
func (a *App) withCache(ctx context.Context, st store.Store) store.Store {
	cfg := a.Config.Redis
	if !cfg.Enabled {
		return st
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.Logger.Warn("redis unavailable, fingerprint cache disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = rdb.Close()
		return st
	}
	a.closers = append(a.closers, rdb.Close)
	a.Logger.Info("fingerprint cache enabled", zap.String("addr", cfg.Addr))
	return store.NewCachedStore(st, rdb, cfg.TTL, a.Logger)
}

// buildArchiver returns the MinIO archive when enabled. Archiving is best
// effort, so a bucket that cannot be prepared disables it.
func (a *App) buildArchiver(ctx context.Context) archive.Archiver {
	cfg := a.Config.MinIO
	if !cfg.Enabled {
		return archive.Nop{}
	}
	arc, err := archive.NewMinIOArchive(cfg)
	if err == nil {
		err = arc.EnsureBucket(ctx)
	}
	if err != nil {
		a.Logger.Warn("minio unavailable, source archiving disabled", zap.String("endpoint", cfg.Endpoint), zap.Error(err))
		return archive.Nop{}
	}
	a.Logger.Info("archiving contract sources", zap.String("bucket", cfg.Bucket))
	return arc
}

// Handler returns the HTTP router.
func (a *App) Handler() http.Handler {
	return api.NewServer(a.Config, a.Service, a.Tools, a.Metrics, a.Logger).Router()
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
