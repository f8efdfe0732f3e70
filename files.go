/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Seednode/streetguess/browser"
	"github.com/Seednode/streetguess/catalog"
	"github.com/Seednode/streetguess/round"
)

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// captureSource is the part of browser.Pipeline the round machine needs.
type captureSource interface {
	Acquire(ctx context.Context, mode catalog.Mode, key string) (*browser.Capture, error)
}

// pipelineAcquirer hands screenshots from the browser pipeline to the round
// machine, which owns the file from then on.
type pipelineAcquirer struct {
	cfg      *Config
	pipeline captureSource
}

func (a pipelineAcquirer) Acquire(ctx context.Context, mode catalog.Mode, key string) (round.Acquisition, error) {
	startTime := time.Now()

	capture, err := a.pipeline.Acquire(ctx, mode, key)
	if err != nil {
		return round.Acquisition{}, err
	}

	logf(a.cfg, "CAPTURE: %s screenshot (%s) of %s in %s",
		mode,
		humanReadableSize(capture.Size),
		capture.Candidate.Reference,
		time.Since(startTime).Round(time.Millisecond),
	)

	return round.Acquisition{
		Candidate:    capture.Candidate,
		ArtifactPath: capture.Path,
	}, nil
}
