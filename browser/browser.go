/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package browser captures Street View screenshots with a headless browser.
//
// The pipeline only talks to the Launcher, Browser and Page interfaces, so
// the chromedp implementation in chrome.go can be swapped for a test double.
package browser

import (
	"context"
	"errors"
)

var (
	ErrAcquisitionFailed   = errors.New("acquisition failed")
	ErrNavigationExhausted = errors.New("navigation attempts exhausted")
	ErrSceneNotFound       = errors.New("scene canvas not found")
	ErrNetworkIdle         = errors.New("page did not reach network idle")
)

// Page is a single browser tab.
type Page interface {
	// Navigate loads url and returns once the page is network idle.
	Navigate(ctx context.Context, url string) error
	// Prune removes the first element matching each selector.
	Prune(ctx context.Context, selectors []string) error
	// WaitScene blocks until an element matching selector is present.
	WaitScene(ctx context.Context, selector string) error
	// Screenshot returns a PNG of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Browser is one browser process.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher starts browser processes.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// DefaultChromeSelectors is the map UI removed before a capture so the image
// shows only the panorama.
var DefaultChromeSelectors = []string{
	".scene-footer-container",
	".widget-minimap-shim",
	".app-bottom-navigation",
	".scene-footer",
	".search-button",
	".search-container",
	".scene-description",
	".scene-action-bar",
	"#titlecard",
	"#omnibox-container",
	"#inputtools",
	"#zoom",
	"#minimap",
	".app-horizontal-widget-holder",
}

const DefaultSceneSelector = ".widget-scene-canvas"
