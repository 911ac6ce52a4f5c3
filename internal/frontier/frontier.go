// Package frontier tracks discovered-but-unvisited URLs for a single crawl
// session and owns URL normalization, validation, and deduplication.
package frontier

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultDocumentExtensions lists the binary resources routed to the
// document downloader instead of the renderer.
func DefaultDocumentExtensions() []string {
	return []string{
		".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
		".csv", ".txt", ".rtf", ".zip", ".rar", ".mp3", ".mp4", ".odt",
	}
}

// DefaultIgnoredExtensions lists extensions never worth crawling.
func DefaultIgnoredExtensions() []string {
	return []string{".css", ".js"}
}

// WordPressIgnoredExtensions extends the ignore list with image types that
// WordPress themes link to from galleries and media pages.
func WordPressIgnoredExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico"}
}

// WordPressIgnoredPatterns lists URL substrings that mark admin, login,
// feed, search, and REST-discovery endpoints on WordPress sites.
func WordPressIgnoredPatterns() []string {
	return []string{"wp-admin", "wp-login", "feed", "comment", "?s=", "wp-json"}
}

// Config controls classification and validation of candidate URLs.
type Config struct {
	DocumentExtensions []string
	IgnoredExtensions  []string
	IgnoredPatterns    []string
}

// Record is a frontier member: an absolute URL plus derived classification.
type Record struct {
	URL        string
	Host       string
	IsDocument bool
}

// Frontier holds the visited and pending URL sets for one crawl session.
// It is not safe for concurrent use; the crawl loop is its only caller.
//
// Pending is drained FIFO. The behavior this engine was modeled on popped
// an arbitrary member of a hash set; FIFO is an explicit choice here so
// traversal order is reproducible.
type Frontier struct {
	base    *url.URL
	cfg     Config
	visited map[string]struct{}
	queued  map[string]struct{}
	pending []Record
}

// New creates a Frontier rooted at startURL and seeds the pending set with
// it. The start URL bypasses pattern validation so a crawl can always begin.
func New(startURL string, cfg Config) (*Frontier, error) {
	base, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("start url must be http(s), got %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("start url %q has no host", startURL)
	}

	if len(cfg.DocumentExtensions) == 0 {
		cfg.DocumentExtensions = DefaultDocumentExtensions()
	}
	if len(cfg.IgnoredExtensions) == 0 {
		cfg.IgnoredExtensions = DefaultIgnoredExtensions()
	}

	f := &Frontier{
		base:    base,
		cfg:     cfg,
		visited: make(map[string]struct{}),
		queued:  make(map[string]struct{}),
	}
	f.enqueue(f.Normalize(startURL))
	return f, nil
}

// BaseHost returns the network location the crawl is confined to.
func (f *Frontier) BaseHost() string {
	return f.base.Host
}

// BaseURL returns the scheme://host root of the crawl.
func (f *Frontier) BaseURL() string {
	return fmt.Sprintf("%s://%s", f.base.Scheme, f.base.Host)
}

// IsDocument reports whether the URL points at a downloadable document,
// judged by extension.
func (f *Frontier) IsDocument(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, ext := range f.cfg.DocumentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Normalize canonicalizes a URL for frontier membership: the fragment is
// dropped, and non-document URLs lose all trailing slashes so /a, /a/ and
// /a// collapse to a single entry. Normalize is idempotent.
func (f *Frontier) Normalize(rawURL string) string {
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL = rawURL[:i]
	}
	if !f.IsDocument(rawURL) {
		trimmed := strings.TrimRight(rawURL, "/")
		// Never trim into the scheme separator ("https://" stays intact).
		if !strings.HasSuffix(trimmed, ":") {
			rawURL = trimmed
		}
	}
	return rawURL
}

// Validate reports whether a candidate URL is a legal frontier member:
// same-origin, not an ignored extension, and not matching an ignored
// pattern. The candidate must already be absolute.
func (f *Frontier) Validate(candidate string) bool {
	if candidate == "" {
		return false
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if parsed.Host != "" && parsed.Host != f.base.Host {
		return false
	}
	lower := strings.ToLower(candidate)
	for _, ext := range f.cfg.IgnoredExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	for _, pattern := range f.cfg.IgnoredPatterns {
		if strings.Contains(candidate, pattern) {
			return false
		}
	}
	return true
}

// Discover resolves each raw href against pageURL, normalizes and validates
// it, and inserts it into the pending set unless already visited or queued.
func (f *Frontier) Discover(pageURL string, hrefs []string) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return
	}
	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" || hasSkippedScheme(href) {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		resolved := f.Normalize(page.ResolveReference(ref).String())
		if resolved == "" || !f.Validate(resolved) {
			continue
		}
		f.enqueue(resolved)
	}
}

func hasSkippedScheme(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:")
}

func (f *Frontier) enqueue(normalized string) {
	if _, seen := f.visited[normalized]; seen {
		return
	}
	if _, queued := f.queued[normalized]; queued {
		return
	}
	f.queued[normalized] = struct{}{}
	f.pending = append(f.pending, f.record(normalized))
}

func (f *Frontier) record(normalized string) Record {
	host := f.base.Host
	if parsed, err := url.Parse(normalized); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	return Record{
		URL:        normalized,
		Host:       host,
		IsDocument: f.IsDocument(normalized),
	}
}

// Next removes and returns the oldest pending record, FIFO.
func (f *Frontier) Next() (Record, bool) {
	for len(f.pending) > 0 {
		rec := f.pending[0]
		f.pending = f.pending[1:]
		delete(f.queued, rec.URL)
		if _, seen := f.visited[rec.URL]; seen {
			continue
		}
		return rec, true
	}
	return Record{}, false
}

// MarkVisited records a URL as processed. Idempotent; the URL will never
// re-enter the pending set.
func (f *Frontier) MarkVisited(rawURL string) {
	normalized := f.Normalize(rawURL)
	f.visited[normalized] = struct{}{}
	if _, queued := f.queued[normalized]; queued {
		delete(f.queued, normalized)
		for i, rec := range f.pending {
			if rec.URL == normalized {
				f.pending = append(f.pending[:i], f.pending[i+1:]...)
				break
			}
		}
	}
}

// VisitedCount returns how many URLs have been processed so far.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}

// PendingCount returns how many URLs await processing.
func (f *Frontier) PendingCount() int {
	return len(f.pending)
}

// VisitedURLs returns a copy of all processed URLs, in no particular order.
func (f *Frontier) VisitedURLs() []string {
	out := make([]string, 0, len(f.visited))
	for u := range f.visited {
		out = append(out, u)
	}
	return out
}
