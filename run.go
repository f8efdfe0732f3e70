package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"

	"github.com/Seednode/streetguess/browser"
	"github.com/Seednode/streetguess/catalog"
	"github.com/Seednode/streetguess/game"
	"github.com/Seednode/streetguess/ledger"
	"github.com/Seednode/streetguess/round"
)

func newPipeline(cfg *Config, cat *catalog.Catalog, logger *zap.Logger) *browser.Pipeline {
	launcher := &browser.ChromeLauncher{
		ExecPath:  cfg.chromePath,
		RemoteURL: cfg.chromeURL,
		Headless:  cfg.headless,
		Logger:    logger.Named("chrome"),
	}

	p := browser.NewPipeline(cat, launcher, logger.Named("pipeline"))
	p.Navigator.Attempts = cfg.navAttempts
	p.Navigator.AttemptTimeout = cfg.navTimeout
	p.OuterAttempts = cfg.outerAttempts
	p.SceneSelector = cfg.sceneSelector
	p.SceneTimeout = cfg.sceneTimeout
	p.SettleDelay = cfg.settleDelay
	p.ChromeSelector = cfg.selectors
	if cfg.artifactDir != "" {
		p.ArtifactDir = cfg.artifactDir
	}

	return p
}

func loadScores(store ledger.FileStore) (*ledger.Ledger, error) {
	data, err := store.Load()
	if err != nil {
		return nil, err
	}

	scores := ledger.New()
	if err := scores.Import(data); err != nil {
		return nil, fmt.Errorf("import %s: %w", store.Path, err)
	}
	return scores, nil
}

func run(ctx context.Context, cfg *Config) error {
	logger := cfg.logger

	logf(cfg, "START: streetguess v%s", releaseVersion)

	cat, err := catalog.OpenDir(cfg.catalogDir)
	if err != nil {
		return err
	}
	for _, m := range catalog.Modes() {
		logf(cfg, "CATALOG: Loaded %d %s candidates", cat.Len(m), m)
	}

	store := ledger.FileStore{Path: cfg.scoresFile}
	scores, err := loadScores(store)
	if err != nil {
		return err
	}

	machine := round.NewMachine(
		pipelineAcquirer{cfg: cfg, pipeline: newPipeline(cfg, cat, logger)},
		scores,
		round.WithScorer(cfg.scorer()),
		round.WithSaver(store),
		round.WithLogger(logger.Named("round")),
	)

	feed := newFeed(logger)
	service := game.NewService(machine, scores, logger.Named("game"), feed)

	b, err := newBot(cfg, service, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return machine.Run(gctx) })
	g.Go(func() error { return feed.run(gctx) })
	g.Go(func() error { return serveHTTP(gctx, cfg, scores, feed) })
	g.Go(func() error { return b.run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		err = nil
	}

	if serr := store.Save(scores.Export()); serr != nil {
		err = errors.Join(err, fmt.Errorf("save scores: %w", serr))
	}

	logf(cfg, "STOP: streetguess v%s", releaseVersion)

	return err
}
