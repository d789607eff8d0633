// Package app initializes and holds long-lived services, acting as the
// dependency container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/belingud/mao-nav/internal/config"
	"github.com/belingud/mao-nav/internal/dataset"
	"github.com/belingud/mao-nav/internal/favicon"
	collyfetcher "github.com/belingud/mao-nav/internal/fetcher/colly"
	"github.com/belingud/mao-nav/internal/progress"
	"github.com/belingud/mao-nav/internal/progress/sinks"
	"github.com/belingud/mao-nav/internal/publisher/pubsub"
	"github.com/belingud/mao-nav/internal/storage/gcs"
	"github.com/belingud/mao-nav/internal/storage/local"
	"github.com/belingud/mao-nav/internal/storage/memory"
)

// NotifyEvent is the Pub/Sub event attribute for batch summaries.
const NotifyEvent = "sitelogo.batch_finished"

const hubCloseTimeout = 10 * time.Second

// Notifier publishes the end-of-run summary.
type Notifier interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Report is what a batch run hands back to the CLI.
type Report struct {
	RunID    string
	Result   favicon.BatchResult
	Location string
	// MessageID is set when a completion notification was published.
	MessageID string
}

// Option customizes App construction.
type Option func(*App)

// WithSink replaces the configured storage backend.
func WithSink(sink favicon.Sink) Option {
	return func(a *App) { a.sink = sink }
}

// WithNotifier replaces the Pub/Sub notifier.
func WithNotifier(n Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// App holds the shared services for one process: the HTTP pool, the icon
// sink, the metrics registry and the optional notifier.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	fetcher    *collyfetcher.Fetcher
	sink       favicon.Sink
	notifier   Notifier
	registry   *prometheus.Registry
	promSink   *sinks.PrometheusSink
	normalizer favicon.Normalizer
	closers    []func() error
}

// New builds the App. It fails fast when a backend cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:        cfg,
		logger:     logger,
		registry:   prometheus.NewRegistry(),
		normalizer: favicon.NewNormalizer(cfg.Dataset.ProxySegment, cfg.Output.Extension),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:       cfg.HTTP.UserAgent,
		Accept:          cfg.HTTP.Accept,
		Timeout:         cfg.RequestTimeout(),
		MaxConnsPerHost: cfg.HTTP.MaxConnsPerHost,
		MaxIdleConns:    cfg.HTTP.MaxIdleConns,
		MaxRetries:      cfg.HTTP.MaxRetries,
		BackoffInitial:  cfg.BackoffInitial(),
		BackoffMax:      cfg.BackoffMax(),
	})

	if a.sink == nil {
		sink, err := a.buildSink(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.sink = sink
	}

	if a.notifier == nil && cfg.Notify.Enabled() {
		pub, closeFn, err := pubsub.Connect(ctx, cfg.Notify.ProjectID, cfg.Notify.Topic, NotifyEvent)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init notifier: %w", err)
		}
		a.notifier = pub
		a.closers = append(a.closers, closeFn)
		logger.Info("pubsub notifications enabled", zap.String("topic", cfg.Notify.Topic))
	}

	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	if cfg.Metrics.Textfile != "" {
		promSink.WithTextfile(cfg.Metrics.Textfile, a.registry)
	}
	a.promSink = promSink

	return a, nil
}

func (a *App) buildSink(ctx context.Context) (favicon.Sink, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket, Prefix: a.cfg.Storage.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs sink: %w", err)
		}
		a.logger.Info("using gcs sink", zap.String("location", store.Location()))
		return store, nil
	case config.BackendMemory:
		a.logger.Info("using in-memory sink; icons will be discarded on exit")
		return memory.NewBlobStore(), nil
	default:
		store, err := local.New(local.Config{BaseDir: a.cfg.Output.Dir, Extension: a.cfg.Output.Extension})
		if err != nil {
			return nil, fmt.Errorf("init local sink: %w", err)
		}
		return store, nil
	}
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Sink returns the icon sink.
func (a *App) Sink() favicon.Sink {
	return a.sink
}

// Location describes where icons are written.
func (a *App) Location() string {
	return a.sink.Location()
}

// Registry exposes the metrics registry.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// LoadTasks reads the dataset and builds the task list. Entries without an
// absolute http(s) URL are returned separately and never become tasks.
func (a *App) LoadTasks() ([]favicon.IconTask, []favicon.SiteEntry, error) {
	doc, err := dataset.Load(a.cfg.Dataset.Path, a.cfg.Dataset.Variable)
	if err != nil {
		return nil, nil, fmt.Errorf("load dataset: %w", err)
	}
	tasks, excluded := favicon.BuildTasks(doc.Entries(), a.normalizer)
	for _, entry := range excluded {
		a.logger.Debug("skipping non-http entry", zap.String("site", entry.Name), zap.String("url", entry.URL))
	}
	return tasks, excluded, nil
}

// ListIcons returns the icons currently in the sink.
func (a *App) ListIcons(ctx context.Context) ([]favicon.ObjectInfo, error) {
	objects, err := a.sink.ListObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list icons: %w", err)
	}
	return objects, nil
}

// Resolve runs only the locator for siteURL.
func (a *App) Resolve(ctx context.Context, siteURL string) (favicon.IconCandidate, error) {
	locator := favicon.NewLocator(a.fetcher, a.locatorConfig(), a.logger.Named("locator"))
	candidate, err := locator.Locate(ctx, siteURL)
	if err != nil {
		return favicon.IconCandidate{}, fmt.Errorf("resolve %s: %w", siteURL, err)
	}
	return candidate, nil
}

// RunBatch processes tasks in order with progress reporting, then publishes
// the summary when icons were written. The returned error is non-nil only
// when the run was interrupted.
func (a *App) RunBatch(ctx context.Context, tasks []favicon.IconTask, observers ...favicon.Observer) (Report, error) {
	runID := progress.NewRunID()
	hub := progress.NewHub(progress.Config{Logger: a.logger.Named("progress")},
		sinks.NewLogSink(a.logger.Named("events")),
		a.promSink,
	)

	fetcher := progress.InstrumentFetcher(a.fetcher, runID, hub)
	locCfg := a.locatorConfig()
	downloader := favicon.NewDownloader(
		favicon.NewLocator(fetcher, locCfg, a.logger.Named("locator")),
		fetcher,
		favicon.NewAdapter(a.cfg.Icon.Size, locCfg.IconTypes, locCfg.PNGTypes),
		a.sink,
		locCfg.Headers,
		a.logger.Named("downloader"),
	)
	taskObserver := progress.NewTaskObserver(runID, hub)
	runner := favicon.NewRunner(downloader, a.logger.Named("runner"),
		append([]favicon.Observer{taskObserver}, observers...)...)

	report := Report{RunID: uuid.UUID(runID).String(), Location: a.sink.Location()}
	a.logger.Info("icon batch starting",
		zap.String("run_id", report.RunID),
		zap.Int("tasks", len(tasks)),
		zap.String("location", report.Location),
	)
	taskObserver.RunStarted(len(tasks))
	result, runErr := runner.Run(ctx, tasks)
	taskObserver.RunFinished(result)
	report.Result = result

	closeCtx, cancel := context.WithTimeout(context.Background(), hubCloseTimeout)
	defer cancel()
	if err := hub.Close(closeCtx); err != nil {
		a.logger.Warn("progress hub close failed", zap.Error(err))
	}

	if runErr != nil {
		return report, runErr
	}
	report.MessageID = a.notify(ctx, report)
	return report, nil
}

// notify publishes the summary when anything new was written. Publish
// failures are logged; they never fail the run.
func (a *App) notify(ctx context.Context, report Report) string {
	if a.notifier == nil || report.Result.Written() == 0 {
		return ""
	}
	id, err := a.notifier.Publish(ctx, report.Result.Summary(report.RunID, report.Location))
	if err != nil {
		a.logger.Warn("publish batch summary failed", zap.Error(err))
		return ""
	}
	a.logger.Info("batch summary published", zap.String("message_id", id))
	return id
}

func (a *App) locatorConfig() favicon.LocatorConfig {
	return favicon.LocatorConfig{
		MinBytes:  a.cfg.Icon.MinBytes,
		IconTypes: a.cfg.Icon.IconTypes,
		PNGTypes:  a.cfg.Icon.PNGTypes,
		Rels:      a.cfg.Icon.Rels,
		Headers:   favicon.RequestHeaders(a.cfg.HTTP.UserAgent, a.cfg.HTTP.Accept),
	}
}

// Close releases pooled connections and backend clients.
func (a *App) Close() {
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
