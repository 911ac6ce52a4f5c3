package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/siteharvest/siteharvest/internal/download"
	"github.com/siteharvest/siteharvest/internal/extract"
)

// homeSlug names the artifact for a URL with an empty path.
const homeSlug = "homepage"

var slugUnsafeChars = regexp.MustCompile(`[^\w\-.]`)

// JSONStore writes one JSON artifact per page plus an index.json manifest.
// The manifest is flushed after every page and document so a crash mid-run
// loses at most the URL being processed.
type JSONStore struct {
	dir      string
	manifest Manifest
	logger   *zap.Logger
}

// NewJSONStore creates the output directory and an empty manifest.
// Directory creation failure is fatal: the run must not start.
func NewJSONStore(dir, baseURL string, logger *zap.Logger) (*JSONStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &JSONStore{
		dir: dir,
		manifest: Manifest{
			BaseURL:   baseURL,
			Pages:     []PageSummary{},
			Documents: []download.Document{},
		},
		logger: logger,
	}, nil
}

// WritePage serializes the page to its own artifact and records it in the
// manifest. The artifact path is derived from the URL slug; URLs are already
// deduplicated by the frontier, so slugs cannot collide within a run.
func (s *JSONStore) WritePage(page *extract.Page) error {
	name := PageSlug(page.URL) + ".json"
	fullPath := filepath.Join(s.dir, name)
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		absPath = fullPath
	}
	page.FilePath = absPath

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal page %s: %w", page.URL, err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return fmt.Errorf("write page artifact: %w", err)
	}

	s.manifest.Pages = append(s.manifest.Pages, PageSummary{
		URL:      page.URL,
		Title:    page.Title,
		FilePath: absPath,
	})
	s.flush()
	return nil
}

// RecordDocument appends the document to the manifest.
func (s *JSONStore) RecordDocument(doc download.Document) error {
	s.manifest.Documents = append(s.manifest.Documents, doc)
	s.flush()
	return nil
}

// Finalize stamps the statistics and writes the authoritative manifest.
func (s *JSONStore) Finalize(summary Summary) error {
	stats := summary.Stats
	s.manifest.Stats = &stats
	return s.writeManifest()
}

// flush opportunistically persists the manifest; failures are logged, not
// propagated, since the definitive write happens at Finalize.
func (s *JSONStore) flush() {
	if err := s.writeManifest(); err != nil {
		s.logger.Warn("Opportunistic manifest flush failed", zap.Error(err))
	}
}

func (s *JSONStore) writeManifest() error {
	data, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(s.dir, "index.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// PageSlug derives the artifact name from a URL path: slashes and other
// non-word characters become underscores, and the empty path maps to the
// fixed home slug.
func PageSlug(rawURL string) string {
	path := ""
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			path = rest[j:]
		}
	} else {
		path = rawURL
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return homeSlug
	}
	path = strings.ReplaceAll(path, "/", "_")
	return slugUnsafeChars.ReplaceAllString(path, "_")
}
