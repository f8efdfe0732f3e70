/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Seednode/streetguess/catalog"
)

// Capture is a screenshot written to disk together with the candidate it
// shows. The caller owns Path once Acquire returns.
type Capture struct {
	Candidate catalog.Candidate
	Path      string
	Size      int64
}

// Remove deletes the screenshot file. Removing an already deleted file is
// not an error.
func (c *Capture) Remove() error {
	if c == nil || c.Path == "" {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CandidateSource supplies the candidates of a mode.
type CandidateSource interface {
	Candidates(mode catalog.Mode) ([]catalog.Candidate, error)
}

// Pipeline turns a random catalog candidate into a screenshot.
type Pipeline struct {
	Catalog   CandidateSource
	Launcher  Launcher
	Navigator *Navigator

	OuterAttempts  int
	SceneSelector  string
	SceneTimeout   time.Duration
	SettleDelay    time.Duration
	ChromeSelector []string
	ArtifactDir    string

	Logger *zap.Logger

	// Pick returns an index in [0, n). Defaults to a uniform random pick.
	Pick func(n int) int
}

func NewPipeline(source CandidateSource, launcher Launcher, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Catalog:        source,
		Launcher:       launcher,
		Navigator:      NewNavigator(logger),
		OuterAttempts:  3,
		SceneSelector:  DefaultSceneSelector,
		SceneTimeout:   60 * time.Second,
		SettleDelay:    2 * time.Second,
		ChromeSelector: DefaultChromeSelectors,
		ArtifactDir:    os.TempDir(),
		Logger:         logger,
	}
}

type attemptFailure int

const (
	failedNavigation attemptFailure = iota
	failedScene
	failedCapture
)

// Acquire draws candidates of mode until one yields a screenshot, or the
// outer attempt bound is reached. The screenshot is stored as <key>.png in
// ArtifactDir. The browser is closed before Acquire returns on every path.
func (p *Pipeline) Acquire(ctx context.Context, mode catalog.Mode, key string) (*Capture, error) {
	logger := p.logger().With(zap.String("mode", string(mode)), zap.String("key", key))

	candidates, err := p.Catalog.Candidates(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %w: no %s candidates", ErrAcquisitionFailed, catalog.ErrCatalogUnavailable, mode)
	}

	b, err := p.Launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %w", ErrAcquisitionFailed, err)
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			logger.Warn("closing browser", zap.Error(cerr))
		}
	}()

	page, err := b.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open page: %w", ErrAcquisitionFailed, err)
	}

	attempts := max(p.OuterAttempts, 1)
	var navMisses, sceneMisses int
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		candidate := candidates[p.pick(len(candidates))]
		alog := logger.With(zap.Int("attempt", attempt), zap.String("reference", candidate.Reference))

		capture, kind, err := p.attempt(ctx, page, candidate, key)
		if err == nil {
			alog.Info("captured scene", zap.Int64("bytes", capture.Size))
			return capture, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrAcquisitionFailed, ctx.Err())
		}

		switch kind {
		case failedNavigation:
			navMisses++
		case failedScene:
			sceneMisses++
		}
		lastErr = err
		alog.Warn("acquisition attempt failed", zap.Error(err))
	}

	summary := lastErr
	switch {
	case sceneMisses > 0 && !errors.Is(lastErr, ErrSceneNotFound):
		summary = fmt.Errorf("%w: %w", ErrSceneNotFound, lastErr)
	case sceneMisses == 0 && navMisses > 0 && !errors.Is(lastErr, ErrNavigationExhausted):
		summary = fmt.Errorf("%w: %w", ErrNavigationExhausted, lastErr)
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrAcquisitionFailed, attempts, summary)
}

func (p *Pipeline) attempt(ctx context.Context, page Page, candidate catalog.Candidate, key string) (*Capture, attemptFailure, error) {
	if err := p.navigator().Navigate(ctx, page, candidate.Reference); err != nil {
		return nil, failedNavigation, err
	}

	if len(p.ChromeSelector) > 0 {
		if err := page.Prune(ctx, p.ChromeSelector); err != nil {
			p.logger().Debug("pruning page chrome", zap.Error(err))
		}
	}

	sceneCtx := ctx
	if p.SceneTimeout > 0 {
		var cancel context.CancelFunc
		sceneCtx, cancel = context.WithTimeout(ctx, p.SceneTimeout)
		defer cancel()
	}
	if err := page.WaitScene(sceneCtx, p.sceneSelector()); err != nil {
		return nil, failedScene, fmt.Errorf("%w: %w", ErrSceneNotFound, err)
	}

	if p.SettleDelay > 0 {
		if err := sleep(ctx, p.SettleDelay); err != nil {
			return nil, failedCapture, err
		}
	}

	img, err := page.Screenshot(ctx)
	if err != nil {
		return nil, failedCapture, fmt.Errorf("screenshot: %w", err)
	}

	path := filepath.Join(p.ArtifactDir, key+".png")
	if err := os.MkdirAll(p.ArtifactDir, 0o755); err != nil {
		return nil, failedCapture, fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return nil, failedCapture, fmt.Errorf("write artifact: %w", err)
	}

	return &Capture{
		Candidate: candidate,
		Path:      path,
		Size:      int64(len(img)),
	}, 0, nil
}

func (p *Pipeline) pick(n int) int {
	if p.Pick != nil {
		return p.Pick(n)
	}
	return rand.IntN(n)
}

func (p *Pipeline) navigator() *Navigator {
	if p.Navigator == nil {
		p.Navigator = NewNavigator(p.Logger)
	}
	return p.Navigator
}

func (p *Pipeline) sceneSelector() string {
	if p.SceneSelector == "" {
		return DefaultSceneSelector
	}
	return p.SceneSelector
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
