// Package cmd defines the sitelogo CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/belingud/mao-nav/internal/app"
	"github.com/belingud/mao-nav/internal/config"
	"github.com/belingud/mao-nav/internal/favicon"
	"github.com/belingud/mao-nav/internal/logging"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is the service surface the commands use.
type App interface {
	Close()
	Logger() *zap.Logger
	Location() string
	LoadTasks() ([]favicon.IconTask, []favicon.SiteEntry, error)
	RunBatch(ctx context.Context, tasks []favicon.IconTask, observers ...favicon.Observer) (app.Report, error)
	Resolve(ctx context.Context, siteURL string) (favicon.IconCandidate, error)
	ListIcons(ctx context.Context) ([]favicon.ObjectInfo, error)
}

var _ App = (*app.App)(nil)

// newApp is the application factory; tests swap it out.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

type rootOptions struct {
	configPath string
	dataset    string
	output     string

	// app is set by PersistentPreRunE and closed after execution returns.
	app App
}

// closeApp releases the services opened for the command, if any. Cobra
// skips post-run hooks when RunE fails, so this runs after execution.
func (o *rootOptions) closeApp() {
	if o.app != nil {
		o.app.Close()
		o.app = nil
	}
}

func newRootCmd() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "sitelogo",
		Short: "Resolve and download favicons for a site directory.",
		Long: `sitelogo reads the site directory dataset, finds each site's favicon
(well-known /favicon.ico first, then <link rel> hints in the page), converts
PNG icons to 32x32 ICO, and stores them as <domain>.ico. Existing files are
skipped, so interrupted runs can simply be restarted.`,
		SilenceErrors: true,
		SilenceUsage:  true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				_ = logger.Sync()
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opts.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.dataset, "dataset", "", "site directory dataset (overrides dataset.path)")
	cmd.PersistentFlags().StringVar(&opts.output, "output", "", "icon output directory (overrides output.dir)")

	cmd.AddCommand(newFetchCmd(), newResolveCmd(), newTasksCmd())
	return cmd, opts
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.Dataset.Path = opts.dataset
	}
	if flags.Changed("output") {
		cfg.Output.Dir = opts.output
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the CLI and returns the process exit code. SIGINT and SIGTERM
// cancel the command context; the in-flight task finishes or times out first.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root, opts := newRootCmd()
	return run(ctx, root, opts, os.Args[1:], os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, opts *rootOptions, args []string, stderr io.Writer) int {
	defer opts.closeApp()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		fmt.Fprintln(stderr, "interrupted")
		return ExitInterrupted
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitError
	}
}
