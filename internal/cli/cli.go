package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pfrederiksen/heylo-register/internal/browser"
	"github.com/pfrederiksen/heylo-register/internal/config"
	"github.com/pfrederiksen/heylo-register/internal/controller"
	"github.com/pfrederiksen/heylo-register/internal/discovery"
	"github.com/pfrederiksen/heylo-register/internal/logger"
	"github.com/pfrederiksen/heylo-register/internal/notifier"
	"github.com/pfrederiksen/heylo-register/internal/register"
	"github.com/pfrederiksen/heylo-register/internal/scraper"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess     = 0
	ExitError       = 1
	ExitInterrupted = 130
)

// errInterrupted marks a run ended by the operator
var errInterrupted = errors.New("interrupted")

// startBrowser launches the browser session; tests replace it.
var startBrowser = func(ctx context.Context, opts browser.Options) (browser.Session, func(), error) {
	c, err := browser.NewChrome(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

type options struct {
	configPath   string
	userDataDir  string
	profile      string
	headless     bool
	pollInterval time.Duration
	yes          bool
	dryRun       bool
	logFormat    string
	logLevel     string
	verbose      bool
	format       string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "heylo-register <event>",
		Short: "Register for a Heylo event as soon as it is published",
		Long: `Waits for a recurring Heylo event to be published and registers for it.

A Chrome window is opened on your usual profile so an existing Heylo login is
reused. If you are not logged in, log in by hand in that window; the tool
carries on once the login page is left. After registering, the window stays
open until you press Ctrl+C.`,
		Args:          cobra.ExactArgs(1),
		ValidArgs:     config.Default().EventKeys(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts, cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, opts, args[0])
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", os.Getenv("HEYLO_CONFIG"), "Path to YAML config (or env: HEYLO_CONFIG)")
	pf.StringVar(&opts.userDataDir, "user-data-dir", "", "Chrome user data directory (default from config)")
	pf.StringVar(&opts.profile, "profile", "", "Chrome profile directory (default from config)")
	pf.BoolVar(&opts.headless, "headless", false, "Run Chrome without a window")
	pf.StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")
	pf.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging (same as --log-level debug)")

	cmd.Flags().DurationVar(&opts.pollInterval, "poll-interval", 0, "Delay between listing polls (default from config)")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Start without asking for confirmation")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the success notification instead of sending it")

	cmd.AddCommand(newListCmd(opts), newCardsCmd(opts))

	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the configured events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseOutputFormat(opts.format)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			entries := make([]EventEntry, 0, len(cfg.Events))
			for _, key := range cfg.EventKeys() {
				rule, err := cfg.Rule(key)
				if err != nil {
					return err
				}
				entries = append(entries, EventEntry{Key: key, Rule: rule})
			}
			return WriteEvents(cmd.OutOrStdout(), entries, format)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	return cmd
}

func newCardsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Print the events currently shown on the listing page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ParseOutputFormat(opts.format)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, closeSession, err := startBrowser(ctx, browserOptions(cfg))
			if err != nil {
				return fmt.Errorf("starting browser: %w", err)
			}
			defer closeSession()

			result, err := fetchCards(ctx, session, cfg)
			if err != nil {
				return err
			}
			return WriteCards(cmd.OutOrStdout(), result, format, opts.verbose)
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	return cmd
}

// fetchCards loads the listing once and reports its cards and which
// configured events they match.
func fetchCards(ctx context.Context, session browser.Session, cfg *config.Config) (*CardsResult, error) {
	if err := session.Navigate(ctx, cfg.Site.EventsURL); err != nil {
		return nil, err
	}
	if _, err := session.WaitFor(ctx, scraper.CardSelector, cfg.Timing.RenderTimeout); err != nil {
		return nil, err
	}
	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := scraper.Parse(html)
	if err != nil {
		return nil, err
	}

	sc := scraper.New(cfg.Scraper)
	result := &CardsResult{
		CheckedAt: time.Now().UTC(),
		URL:       cfg.Site.EventsURL,
		Cards:     sc.Cards(doc),
		Matches:   make(map[string]string),
	}
	for _, key := range cfg.EventKeys() {
		rule, err := cfg.Rule(key)
		if err != nil {
			return nil, err
		}
		if id, ok := sc.Match(doc, rule); ok {
			result.Matches[key] = id
		}
	}
	return result, nil
}

func setupLogging(opts *options, out io.Writer) error {
	format, err := logger.ParseFormat(opts.logFormat)
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	if opts.verbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, out, format))
	return nil
}

// loadConfig reads the config file and applies environment and flag overrides
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("user-data-dir") {
		cfg.Browser.UserDataDir = opts.userDataDir
	}
	if flags.Changed("profile") {
		cfg.Browser.Profile = opts.profile
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = opts.headless
	}
	if flags.Changed("poll-interval") {
		if opts.pollInterval <= 0 {
			return nil, fmt.Errorf("--poll-interval must be positive")
		}
		cfg.Timing.PollInterval = opts.pollInterval
	}

	logger.Debug("Configuration loaded", logger.Fields{
		"config":        opts.configPath,
		"events_url":    cfg.Site.EventsURL,
		"user_data_dir": cfg.Browser.UserDataDir,
		"profile":       cfg.Browser.Profile,
		"poll_interval": cfg.Timing.PollInterval.String(),
	})
	return cfg, nil
}

func browserOptions(cfg *config.Config) browser.Options {
	return browser.Options{
		ExecPath:    cfg.Browser.ExecPath,
		UserDataDir: cfg.Browser.UserDataDir,
		Profile:     cfg.Browser.Profile,
		Headless:    cfg.Browser.Headless,

		NavigateTimeout: cfg.Timing.NavigateTimeout,
	}
}

func buildNotifier(cfg *config.Config, dryRun bool, out io.Writer) (notifier.Notifier, error) {
	var n notifier.Multi
	if dryRun {
		n = append(n, notifier.NewDryRunNotifier(out))
	} else if cfg.Telegram.Enabled() {
		tg, err := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		n = append(n, tg)
	}
	if len(n) == 0 {
		return nil, nil
	}
	return n, nil
}

// runRegister is the main command logic
func runRegister(cmd *cobra.Command, opts *options, key string) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	rule, err := cfg.Rule(key)
	if err != nil {
		return err
	}
	n, err := buildNotifier(cfg, opts.dryRun, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("configuring notifications: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, closeSession, err := startBrowser(ctx, browserOptions(cfg))
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer closeSession()

	metrics := logger.DefaultMetrics()
	ctrl, err := controller.New(controller.Config{
		LoginURL:         cfg.Site.LoginURL(),
		ListingURL:       cfg.Site.EventsURL,
		EventKey:         key,
		Rule:             rule,
		Steps:            cfg.RegistrationSteps(),
		AuthPollInterval: cfg.Timing.AuthPollInterval,
		RetryPause:       cfg.Timing.RetryPause,
		HoldInterval:     cfg.Timing.HoldInterval,
		AutoStart:        opts.yes,
	}, controller.Deps{
		Session: session,
		Loop: &discovery.Loop{
			Scraper:        scraper.New(cfg.Scraper),
			PollInterval:   cfg.Timing.PollInterval,
			RenderTimeout:  cfg.Timing.RenderTimeout,
			HeartbeatEvery: cfg.Timing.HeartbeatEvery,
			Metrics:        metrics,
		},
		Sequencer: &register.Sequencer{Metrics: metrics},
		Operator:  controller.NewConsoleOperator(cmd.InOrStdin(), cmd.OutOrStdout()),
		Notifier:  n,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	err = ctrl.Run(ctx)

	fields := metrics.Fields()
	fields["runtime"] = time.Since(start).Round(time.Second).String()
	logger.Info("Run finished", fields)

	if errors.Is(err, context.Canceled) {
		return errInterrupted
	}
	return err
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	switch {
	case err == nil:
		os.Exit(ExitSuccess)
	case errors.Is(err, errInterrupted):
		fmt.Fprintln(os.Stderr, "Interrupted.")
		os.Exit(ExitInterrupted)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
