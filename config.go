package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Seednode/streetguess/browser"
	"github.com/Seednode/streetguess/round"
)

type Config struct {
	adminRole        string
	appID            string
	artifactDir      string
	bind             string
	catalogDir       string
	chromePath       string
	chromeURL        string
	guessChannel     string
	guildID          string
	headless         bool
	navAttempts      int
	navTimeout       time.Duration
	outerAttempts    int
	port             int
	profile          bool
	rejectMultiToken bool
	sceneSelector    string
	sceneTimeout     time.Duration
	scoresFile       string
	scoring          string
	selectors        []string
	settleDelay      time.Duration
	token            string
	verbose          bool
	version          bool

	logger *zap.Logger
}

func (c *Config) validate() error {
	if c.token == "" {
		return errors.New("--token is required")
	}
	if c.guessChannel == "" {
		return errors.New("--guess-channel is required")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.navAttempts < 1 {
		return fmt.Errorf("invalid --nav-attempts (must be at least 1): %d", c.navAttempts)
	}
	if c.outerAttempts < 1 {
		return fmt.Errorf("invalid --outer-attempts (must be at least 1): %d", c.outerAttempts)
	}
	if c.navTimeout <= 0 || c.sceneTimeout <= 0 {
		return errors.New("--nav-timeout and --scene-timeout must be positive")
	}
	if c.settleDelay < 0 {
		return fmt.Errorf("invalid --settle-delay (must not be negative): %s", c.settleDelay)
	}
	if _, err := round.ParseRule(c.scoring); err != nil {
		return err
	}
	return nil
}

func (c *Config) scorer() round.Scorer {
	rule, _ := round.ParseRule(c.scoring)
	return round.Scorer{Rule: rule, RejectMultiToken: c.rejectMultiToken}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("STREETGUESS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "streetguess",
		Short:         "A Discord bot that runs a Street View location guessing game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			cfg.logger = logger

			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminRole, "admin-role", "", "role id allowed to reset scores, in addition to server administrators (env: STREETGUESS_ADMIN_ROLE)")
	fs.StringVar(&cfg.appID, "app-id", "", "application id used to register commands, defaults to the bot user (env: STREETGUESS_APP_ID)")
	fs.StringVar(&cfg.artifactDir, "artifact-dir", "", "directory for temporary screenshots, defaults to the system temp dir (env: STREETGUESS_ARTIFACT_DIR)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: STREETGUESS_BIND)")
	fs.StringVar(&cfg.catalogDir, "catalog-dir", ".", "directory containing japancoord.json and worldcoord.json (env: STREETGUESS_CATALOG_DIR)")
	fs.StringVar(&cfg.chromePath, "chrome-path", "", "path to the chrome executable (env: STREETGUESS_CHROME_PATH)")
	fs.StringVar(&cfg.chromeURL, "chrome-url", "", "devtools websocket url of a running chrome, instead of launching one (env: STREETGUESS_CHROME_URL)")
	fs.StringVar(&cfg.guessChannel, "guess-channel", "", "channel id where guesses are read (env: STREETGUESS_GUESS_CHANNEL)")
	fs.StringVar(&cfg.guildID, "guild-id", "", "register commands in this guild only (env: STREETGUESS_GUILD_ID)")
	fs.BoolVar(&cfg.headless, "headless", true, "run chrome without a window (env: STREETGUESS_HEADLESS)")
	fs.IntVar(&cfg.navAttempts, "nav-attempts", 3, "navigation attempts per candidate (env: STREETGUESS_NAV_ATTEMPTS)")
	fs.DurationVar(&cfg.navTimeout, "nav-timeout", 60*time.Second, "time allowed for each navigation attempt (env: STREETGUESS_NAV_TIMEOUT)")
	fs.IntVar(&cfg.outerAttempts, "outer-attempts", 3, "candidates tried before a round fails to start (env: STREETGUESS_OUTER_ATTEMPTS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: STREETGUESS_PORT)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: STREETGUESS_PROFILE)")
	fs.BoolVar(&cfg.rejectMultiToken, "reject-multi-token", false, "warn players who answer with more than one word (env: STREETGUESS_REJECT_MULTI_TOKEN)")
	fs.StringVar(&cfg.sceneSelector, "scene-selector", browser.DefaultSceneSelector, "selector that marks a rendered street view scene (env: STREETGUESS_SCENE_SELECTOR)")
	fs.DurationVar(&cfg.sceneTimeout, "scene-timeout", 60*time.Second, "time allowed for the scene to render (env: STREETGUESS_SCENE_TIMEOUT)")
	fs.StringVar(&cfg.scoresFile, "scores-file", "scores.json", "file scores are persisted to (env: STREETGUESS_SCORES_FILE)")
	fs.StringVar(&cfg.scoring, "scoring", round.BestMatch.String(), "scoring rule, best or first (env: STREETGUESS_SCORING)")
	fs.StringSliceVar(&cfg.selectors, "selectors", browser.DefaultChromeSelectors, "page elements removed before the screenshot (env: STREETGUESS_SELECTORS)")
	fs.DurationVar(&cfg.settleDelay, "settle-delay", 2*time.Second, "pause after the scene renders, before the screenshot (env: STREETGUESS_SETTLE_DELAY)")
	fs.StringVar(&cfg.token, "token", "", "discord bot token (env: STREETGUESS_TOKEN)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: STREETGUESS_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: STREETGUESS_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("streetguess v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
