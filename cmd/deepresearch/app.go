package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/checkpoint"
	"github.com/dusk-indust/deepresearch/internal/config"
	"github.com/dusk-indust/deepresearch/internal/export"
	"github.com/dusk-indust/deepresearch/internal/model"
	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/dusk-indust/deepresearch/internal/worker"
)

// app bundles what a command needs to run sessions.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	model    model.Model
	store    checkpoint.Store
	pipeline *orchestrator.Pipeline
	sink     export.Sink
}

// newApp wires the model, checkpoint store, researcher and artifact sink
// from the loaded configuration. Relative paths resolve against --dir.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg := opts.cfg
	logger := opts.logger

	m, err := model.New(ctx, cfg.Model.Provider, cfg.Model.Name, cfg.Model.APIKey)
	if err != nil {
		return nil, err
	}

	cpCfg := cfg.Checkpoint
	cpCfg.Path = resolve(opts.Dir, cpCfg.Path)
	store, err := checkpoint.Open(ctx, cpCfg)
	if err != nil {
		return nil, err
	}

	researcher, err := newResearcher(ctx, cfg, m, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	artCfg := cfg.Artifacts
	artCfg.Dir = resolve(opts.Dir, artCfg.Dir)
	sink, err := export.NewSink(artCfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	r := cfg.Research
	pipeline := orchestrator.NewPipeline(orchestrator.Config{
		AllowClarification:    r.AllowClarification,
		MaxClarifications:     r.MaxClarifications,
		MaxSupervisorRounds:   r.MaxSupervisorRounds,
		MaxTopicsPerRound:     r.MaxTopicsPerRound,
		MaxConcurrentResearch: r.MaxConcurrentResearch,
		SubTaskTimeout:        r.SubTaskTimeout,
		ResearcherEndpoints:   r.Researchers,
		SingleAgent:           r.SingleAgent,
		Logger:                logger,
	}, m, researcher, store)

	return &app{
		cfg:      cfg,
		logger:   logger,
		model:    m,
		store:    store,
		pipeline: pipeline,
		sink:     sink,
	}, nil
}

// newResearcher picks remote researchers when any configured endpoint
// answers, and the in-process model otherwise.
func newResearcher(ctx context.Context, cfg *config.Config, m model.Model, logger *zap.Logger) (orchestrator.Researcher, error) {
	client := worker.NewHTTPClient(worker.WithTimeout(cfg.Research.SubTaskTimeout))
	detector := orchestrator.NewDefaultDetector(client, cfg.Research.Researchers, cfg.Research.SingleAgent, logger)

	level, endpoints, err := detector.Detect(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("research capability", zap.Stringer("level", level), zap.Strings("endpoints", endpoints))

	if level == orchestrator.CapRemote {
		remote, err := orchestrator.NewRemoteResearcher(client, endpoints)
		if err != nil {
			return nil, err
		}
		return remote, nil
	}
	return orchestrator.NewLocalResearcher(worker.NewModelResearcher(m, "local")), nil
}

func (a *app) Close() error {
	a.pipeline.Close()
	return a.store.Close()
}

// publish writes the artifacts of a completed session to the configured
// sink, if any.
func (a *app) publish(ctx context.Context, w io.Writer, cp *checkpoint.Checkpoint) error {
	if a.sink == nil || cp.Phase != checkpoint.PhaseCompleted {
		return nil
	}
	locations, err := export.Publish(ctx, a.sink, cp)
	if err != nil {
		return err
	}
	for _, loc := range locations {
		fmt.Fprintf(w, "published %s\n", loc)
	}
	return nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
