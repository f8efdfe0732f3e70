package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/streetguess/browser"
	"github.com/Seednode/streetguess/round"
)

func validConfig() *Config {
	return &Config{
		token:         "secret",
		guessChannel:  "123",
		port:          8080,
		navAttempts:   3,
		outerAttempts: 3,
		navTimeout:    time.Minute,
		sceneTimeout:  time.Minute,
		settleDelay:   2 * time.Second,
		scoring:       "best",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.token = "" }},
		{"missing channel", func(c *Config) { c.guessChannel = "" }},
		{"port zero", func(c *Config) { c.port = 0 }},
		{"port too high", func(c *Config) { c.port = 70000 }},
		{"no navigation attempts", func(c *Config) { c.navAttempts = 0 }},
		{"no outer attempts", func(c *Config) { c.outerAttempts = 0 }},
		{"zero scene timeout", func(c *Config) { c.sceneTimeout = 0 }},
		{"negative settle", func(c *Config) { c.settleDelay = -time.Second }},
		{"unknown scoring", func(c *Config) { c.scoring = "nearest" }},
	}

	require.NoError(t, validConfig().validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestScorerFromConfig(t *testing.T) {
	cfg := validConfig()
	cfg.scoring = "first"
	cfg.rejectMultiToken = true

	assert.Equal(t, round.Scorer{Rule: round.FirstMatch, RejectMultiToken: true}, cfg.scorer())
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	_ = newCmd(cfg)

	assert.Equal(t, 8080, cfg.port)
	assert.True(t, cfg.headless)
	assert.Equal(t, browser.DefaultSceneSelector, cfg.sceneSelector)
	assert.Equal(t, browser.DefaultChromeSelectors, cfg.selectors)
	assert.Equal(t, "best", cfg.scoring)
	assert.Equal(t, 60*time.Second, cfg.navTimeout)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("STREETGUESS_PORT", "9090")
	t.Setenv("STREETGUESS_GUESS_CHANNEL", "987")
	t.Setenv("STREETGUESS_SCORING", "first")
	t.Setenv("STREETGUESS_NAV_TIMEOUT", "5s")

	cfg := &Config{}
	_ = newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, "987", cfg.guessChannel)
	assert.Equal(t, "first", cfg.scoring)
	assert.Equal(t, 5*time.Second, cfg.navTimeout)
}
