// Package app wires settings into a ready-to-use pipeline.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"forensic_audit/pkg/core/agent"
	"forensic_audit/pkg/core/config"
	"forensic_audit/pkg/core/pipeline"
	"forensic_audit/pkg/core/prompt"
	"forensic_audit/pkg/core/store"
)

// App holds the long-lived components shared by the binaries.
type App struct {
	Settings *config.Settings
	Agents   *agent.Manager
	Cache    *store.ExtractionCache // nil when caching is disabled
	Pipeline *pipeline.Orchestrator
	Log      *zap.Logger

	pool *pgxpool.Pool
}

// New builds the provider manager, prompt library, extraction cache and
// orchestrator described by s.
func New(ctx context.Context, s *config.Settings, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	mgr, err := agent.NewManager(s.Models, log)
	if err != nil {
		return nil, fmt.Errorf("failed to configure providers: %w", err)
	}

	prompts := prompt.Get()
	if err := prompt.LoadFromDirectory(prompts, s.ResourcesDir, log); err != nil {
		return nil, fmt.Errorf("failed to load prompt library: %w", err)
	}
	log.Info("prompt library loaded", zap.Int("prompts", prompts.Count()), zap.String("dir", s.ResourcesDir))

	a := &App{Settings: s, Agents: mgr, Log: log}

	var cache pipeline.ExtractionCache
	if !s.Cache.Disabled {
		if s.Database.URL != "" {
			a.pool, err = store.Connect(ctx, s.Database.URL)
			if err != nil {
				return nil, err
			}
			if err := store.InitSchema(ctx, a.pool); err != nil {
				a.pool.Close()
				return nil, err
			}
			log.Info("extraction cache uses postgres")
		}
		a.Cache = store.NewExtractionCache(a.pool, s.Cache.Dir, log)
		cache = a.Cache
	}

	a.Pipeline = pipeline.NewOrchestrator(mgr, cache, pipeline.Options{
		Prompts:     prompts,
		PromptID:    s.Extraction.PromptID,
		FillMissing: s.Extraction.FillMissing,
		Timeout:     s.ExtractionTimeout(),
	}, log)
	return a, nil
}

// Close releases the database pool, if any.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
