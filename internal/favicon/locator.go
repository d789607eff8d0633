package favicon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Request defaults for icon resolution.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	DefaultAccept    = "image/webp,image/apng,image/*,*/*;q=0.8"
	DefaultMinBytes  = 100
	wellKnownPath    = "/favicon.ico"
)

// LocatorConfig controls candidate validation.
type LocatorConfig struct {
	// MinBytes rejects placeholder images smaller than this.
	MinBytes  int
	IconTypes []string
	PNGTypes  []string
	// Rels are tried in order when scanning page markup.
	Rels    []string
	Headers http.Header
}

// DefaultLocatorConfig returns the stock validation rules.
func DefaultLocatorConfig() LocatorConfig {
	return LocatorConfig{
		MinBytes:  DefaultMinBytes,
		IconTypes: []string{"image/x-icon", "image/vnd.microsoft.icon"},
		PNGTypes:  []string{"image/png"},
		Rels:      []string{"icon", "shortcut icon", "apple-touch-icon"},
		Headers:   RequestHeaders(DefaultUserAgent, DefaultAccept),
	}
}

// RequestHeaders builds the header set sent with every icon request.
func RequestHeaders(userAgent, accept string) http.Header {
	h := http.Header{}
	if userAgent != "" {
		h.Set("User-Agent", userAgent)
	}
	if accept != "" {
		h.Set("Accept", accept)
	}
	return h
}

// Locator walks the resolution chain: the well-known path first, then the
// link hints in the page markup.
type Locator struct {
	fetcher Fetcher
	cfg     LocatorConfig
	logger  *zap.Logger
}

// NewLocator wires a Locator.
func NewLocator(fetcher Fetcher, cfg LocatorConfig, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Locate returns the first validated icon for siteURL. Every fetch or parse
// problem is recorded and resolution moves on; if nothing validates the error
// wraps ErrNotFound together with the per-step causes.
func (l *Locator) Locate(ctx context.Context, siteURL string) (IconCandidate, error) {
	site, err := parseAbsolute(siteURL)
	if err != nil {
		return IconCandidate{}, err
	}
	base := baseOf(site)
	var stepErrs []error

	direct := base.String() + wellKnownPath
	candidate, err := l.try(ctx, direct)
	if err == nil {
		return candidate, nil
	}
	stepErrs = append(stepErrs, err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return IconCandidate{}, fmt.Errorf("locate %s: %w", siteURL, ctxErr)
	}

	hrefs, err := l.linkHints(ctx, site.String(), base)
	if err != nil {
		stepErrs = append(stepErrs, err)
	}
	for _, href := range hrefs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return IconCandidate{}, fmt.Errorf("locate %s: %w", siteURL, ctxErr)
		}
		candidate, err := l.try(ctx, href)
		if err == nil {
			return candidate, nil
		}
		stepErrs = append(stepErrs, err)
	}

	if len(stepErrs) == 0 {
		return IconCandidate{}, fmt.Errorf("%w for %s", ErrNotFound, siteURL)
	}
	return IconCandidate{}, fmt.Errorf("%w for %s: %w", ErrNotFound, siteURL, errors.Join(stepErrs...))
}

// Validate checks a response against the size and content-type rules.
func (l *Locator) Validate(resp FetchResponse) error {
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: %s returned status %d", errRejected, resp.URL, resp.StatusCode)
	}
	if len(resp.Body) < l.cfg.MinBytes {
		return fmt.Errorf("%w: %s is %d bytes, below minimum %d", errRejected, resp.URL, len(resp.Body), l.cfg.MinBytes)
	}
	ct := resp.ContentType()
	if !matchesAny(ct, l.cfg.IconTypes) && !matchesAny(ct, l.cfg.PNGTypes) {
		return fmt.Errorf("%w: %s has content type %q", errRejected, resp.URL, ct)
	}
	return nil
}

func (l *Locator) try(ctx context.Context, target string) (IconCandidate, error) {
	resp, err := l.fetcher.Fetch(ctx, FetchRequest{URL: target, Headers: l.cfg.Headers.Clone()})
	if err != nil {
		l.logger.Debug("icon candidate fetch failed", zap.String("url", target), zap.Error(err))
		return IconCandidate{}, err
	}
	if resp.URL == "" {
		resp.URL = target
	}
	if err := l.Validate(resp); err != nil {
		l.logger.Debug("icon candidate rejected", zap.String("url", target), zap.Error(err))
		return IconCandidate{}, err
	}
	return IconCandidate{
		URL:         target,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType(),
		Size:        len(resp.Body),
		Body:        resp.Body,
	}, nil
}

// linkHints fetches the page and returns at most one resolved href per rel,
// in rel priority order.
func (l *Locator) linkHints(ctx context.Context, pageURL string, base *url.URL) ([]string, error) {
	resp, err := l.fetcher.Fetch(ctx, FetchRequest{URL: pageURL, Headers: l.cfg.Headers.Clone()})
	if err != nil {
		return nil, err
	}
	// Error pages often still carry the site's <head>, so any status is parsed.
	if !resp.IsSuccess() {
		l.logger.Debug("parsing non-2xx page for icon links", zap.String("page", pageURL), zap.Int("status", resp.StatusCode))
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", errRejected, pageURL, err)
	}
	links := doc.Find("link[rel]")
	hrefs := make([]string, 0, len(l.cfg.Rels))
	seen := make(map[string]struct{}, len(l.cfg.Rels))
	for _, rel := range l.cfg.Rels {
		// Only the first link carrying rel counts; without an href the rel is spent.
		var href string
		links.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value, _ := s.Attr("rel")
			if !relMatches(value, rel) {
				return true
			}
			href, _ = s.Attr("href")
			return false
		})
		if strings.TrimSpace(href) == "" {
			continue
		}
		resolved, ok := resolveHref(base, href)
		if !ok {
			l.logger.Debug("ignoring unusable icon href", zap.String("page", pageURL), zap.String("href", href))
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		hrefs = append(hrefs, resolved)
	}
	return hrefs, nil
}

// relMatches compares a rel attribute against a wanted value. Single-word
// values match any token; multi-word values must match the whole attribute.
func relMatches(attr, want string) bool {
	tokens := strings.Fields(strings.ToLower(attr))
	wantTokens := strings.Fields(strings.ToLower(want))
	if len(tokens) == 0 || len(wantTokens) == 0 {
		return false
	}
	if len(wantTokens) > 1 {
		return strings.Join(tokens, " ") == strings.Join(wantTokens, " ")
	}
	for _, tok := range tokens {
		if tok == wantTokens[0] {
			return true
		}
	}
	return false
}

func resolveHref(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	scheme := strings.ToLower(resolved.Scheme)
	if (scheme != "http" && scheme != "https") || resolved.Host == "" {
		return "", false
	}
	return resolved.String(), true
}

func matchesAny(contentType string, types []string) bool {
	ct := strings.ToLower(contentType)
	if ct == "" {
		return false
	}
	for _, t := range types {
		if t != "" && strings.Contains(ct, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
