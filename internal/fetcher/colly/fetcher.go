// Package collyfetcher implements favicon.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/belingud/mao-nav/internal/favicon"
)

// Defaults applied when Config leaves a field unset.
const (
	DefaultTimeout         = 10 * time.Second
	DefaultMaxConnsPerHost = 10
	DefaultMaxIdleConns    = 5
)

// Config controls collector behavior.
type Config struct {
	UserAgent       string
	Accept          string
	Timeout         time.Duration
	MaxConnsPerHost int
	MaxIdleConns    int
	MaxRetries      int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
}

// Fetcher implements favicon.Fetcher on top of a single Colly collector. Every
// fetch clones the base collector, so all requests share one HTTP backend and
// one keep-alive pool.
type Fetcher struct {
	cfg           Config
	transport     *http.Transport
	baseCollector *colly.Collector
	retry         *RetryPolicy
	sleep         func(context.Context, time.Duration) error
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = DefaultMaxIdleConns
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
	)
	transport := newHTTPTransport(cfg)
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		retry:         NewRetryPolicy(cfg.MaxRetries, cfg.BackoffInitial, cfg.BackoffMax),
		sleep:         sleepContext,
	}
}

// Fetch executes a single HTTP GET using Colly, retrying connection faults
// according to the retry policy. Non-2xx responses are returned, not errors.
func (f *Fetcher) Fetch(ctx context.Context, request favicon.FetchRequest) (favicon.FetchResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := f.fetchOnce(ctx, request)
		if err == nil {
			return resp, nil
		}
		if !f.retry.ShouldRetry(err, attempt) {
			return favicon.FetchResponse{}, fmt.Errorf("%w: GET %s: %w", favicon.ErrTransport, request.URL, err)
		}
		if sleepErr := f.sleep(ctx, f.retry.Backoff(attempt)); sleepErr != nil {
			return favicon.FetchResponse{}, fmt.Errorf("%w: GET %s: %w", favicon.ErrTransport, request.URL, sleepErr)
		}
	}
}

// Close drops idle pooled connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

func (f *Fetcher) fetchOnce(ctx context.Context, request favicon.FetchRequest) (favicon.FetchResponse, error) {
	var (
		result   favicon.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx, request, start, &result, &fetchErr)
	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		return favicon.FetchResponse{}, err
	}
	if result.StatusCode == 0 {
		return favicon.FetchResponse{}, errors.New("colly returned no response")
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	request favicon.FetchRequest,
	start time.Time,
	result *favicon.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, request, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request favicon.FetchRequest,
	start time.Time,
	result *favicon.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = favicon.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// copyHeaders applies the configured defaults first, then the request's own
// headers, so per-request values win.
func (f *Fetcher) copyHeaders(request favicon.FetchRequest, r *colly.Request) {
	if f.cfg.UserAgent != "" {
		r.Headers.Set("User-Agent", f.cfg.UserAgent)
	}
	if f.cfg.Accept != "" {
		r.Headers.Set("Accept", f.cfg.Accept)
	}
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
