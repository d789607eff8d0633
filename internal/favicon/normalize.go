package favicon

import (
	"fmt"
	"net/url"
	"strings"
)

// Defaults for task construction.
const (
	DefaultProxySegment = "/favicon/"
	DefaultExtension    = ".ico"
)

// Normalizer derives domain keys and target filenames from source URLs. It
// holds no mutable state; the zero value is not useful, use NewNormalizer.
type Normalizer struct {
	proxySegment string
	extension    string
}

// NewNormalizer builds a Normalizer. Empty arguments fall back to the
// defaults.
func NewNormalizer(proxySegment, extension string) Normalizer {
	if proxySegment == "" {
		proxySegment = DefaultProxySegment
	}
	if extension == "" {
		extension = DefaultExtension
	}
	return Normalizer{proxySegment: proxySegment, extension: extension}
}

// Normalize returns the domain key for sourceURL. URLs routed through an icon
// proxy (".../favicon/<domain>") yield the token after the proxy segment;
// anything else yields the URL authority.
func (n Normalizer) Normalize(sourceURL string) (string, error) {
	u, err := parseAbsolute(sourceURL)
	if err != nil {
		return "", err
	}
	key := u.Host
	raw := strings.TrimSpace(sourceURL)
	if idx := strings.LastIndex(raw, n.proxySegment); idx >= 0 {
		key = raw[idx+len(n.proxySegment):]
	}
	if !safeKey(key) {
		return "", fmt.Errorf("%w: %q yields unusable domain key %q", ErrInvalidURL, sourceURL, key)
	}
	return key, nil
}

// Filename returns the target filename for a domain key.
func (n Normalizer) Filename(domainKey string) string {
	return domainKey + n.extension
}

// NewTask builds the IconTask for a dataset entry.
func (n Normalizer) NewTask(entry SiteEntry) (IconTask, error) {
	key, err := n.Normalize(entry.URL)
	if err != nil {
		return IconTask{}, err
	}
	return IconTask{
		SourceURL:      strings.TrimSpace(entry.URL),
		DomainKey:      key,
		TargetFilename: n.Filename(key),
		DisplayName:    entry.Name,
	}, nil
}

// BuildTasks converts entries into tasks, preserving order. Entries that are
// not absolute http(s) URLs are returned separately and never become tasks.
func BuildTasks(entries []SiteEntry, n Normalizer) ([]IconTask, []SiteEntry) {
	tasks := make([]IconTask, 0, len(entries))
	var excluded []SiteEntry
	for _, entry := range entries {
		task, err := n.NewTask(entry)
		if err != nil {
			excluded = append(excluded, entry)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, excluded
}

func parseAbsolute(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) url", ErrInvalidURL, raw)
	}
	if u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return u, nil
}

// baseOf returns scheme://authority of u.
func baseOf(u *url.URL) *url.URL {
	return &url.URL{Scheme: strings.ToLower(u.Scheme), Host: u.Host}
}

func safeKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	for _, r := range key {
		if r == '/' || r == '\\' || r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
