package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/internal/dispatcher"
	"github.com/mohammad-safakhou/quizsolver/internal/extractor"
	"github.com/mohammad-safakhou/quizsolver/internal/httpclient"
	"github.com/mohammad-safakhou/quizsolver/internal/solver"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy/api"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy/file"
	"github.com/mohammad-safakhou/quizsolver/internal/strategy/stat"
	"github.com/mohammad-safakhou/quizsolver/internal/telemetry"
	"github.com/mohammad-safakhou/quizsolver/provider"
	"github.com/mohammad-safakhou/quizsolver/session"
	"github.com/mohammad-safakhou/quizsolver/tools/render"
)

// Build wires a pipeline from configuration. The caller owns the returned
// store and must Close it.
func Build(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics, logger *zap.Logger) (*Pipeline, session.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer, err := render.NewRenderer(cfg.Render)
	if err != nil {
		return nil, nil, err
	}
	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("llm provider: %w", err)
	}
	store, err := session.NewStore(ctx, cfg.Session)
	if err != nil {
		return nil, nil, err
	}

	client := httpclient.New(cfg.HTTP.Timeout, cfg.HTTP.MaxBodyBytes, cfg.HTTP.UserAgent)
	maxContext := cfg.LLM.MaxContextChars

	p := New(Deps{
		Renderer:   renderer,
		Extractor:  extractor.New(),
		Dispatcher: dispatcher.New(cfg.Dispatch.Keywords),
		Strategies: []strategy.Strategy{
			file.New(client, maxContext, logger),
			api.New(client, maxContext, logger),
			stat.New(maxContext, logger),
		},
		Solver:  solver.New(llm, cfg.LLM.Timeout, maxContext, logger),
		Store:   store,
		HTTP:    client,
		Metrics: metrics,
		Logger:  logger,
	}, Options{
		SessionTimeout: cfg.Quiz.SessionTimeout,
		SubmitEnabled:  cfg.Quiz.SubmitEnabled,
		SubmitURL:      cfg.Quiz.SubmitURL,
	})
	logger.Info("pipeline ready",
		zap.String("render_engine", cfg.Render.Engine),
		zap.String("llm_provider", llm.Name()),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("session_store", cfg.Session.Store))
	return p, store, nil
}
