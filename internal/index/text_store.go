package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/siteharvest/siteharvest/internal/download"
	"github.com/siteharvest/siteharvest/internal/extract"
)

const (
	sectionRule = "=================================================="
	headerRule  = "--------------------------------------------------"
)

// TextStore appends every page's plain text to a single aggregate file.
// Sections are flushed as they are written, so the file is useful even if
// the run is interrupted before Finalize.
type TextStore struct {
	file      *os.File
	path      string
	documents []download.Document
	logger    *zap.Logger
}

// NewTextStore creates the aggregate file and writes its banner.
func NewTextStore(dir, filename, baseURL string, logger *zap.Logger) (*TextStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create aggregate file: %w", err)
	}
	banner := fmt.Sprintf("Web Scraping Results for %s\n%s\n", baseURL, sectionRule)
	if _, err := f.WriteString(banner); err != nil {
		f.Close()
		return nil, fmt.Errorf("write banner: %w", err)
	}
	return &TextStore{file: f, path: path, logger: logger}, nil
}

// WritePage appends a URL-headed section holding the page's plain text.
func (s *TextStore) WritePage(page *extract.Page) error {
	section := fmt.Sprintf("\nURL: %s\n%s\n%s\n%s\n", page.URL, headerRule, page.PlainText, sectionRule)
	if _, err := s.file.WriteString(section); err != nil {
		return fmt.Errorf("write page section: %w", err)
	}
	return s.file.Sync()
}

// RecordDocument notes the saved file inline and keeps it for the final index.
func (s *TextStore) RecordDocument(doc download.Document) error {
	s.documents = append(s.documents, doc)
	section := fmt.Sprintf("\nURL: %s\n%s\nDocument downloaded to: %s\n%s\n",
		doc.URL, headerRule, doc.FilePath, sectionRule)
	if _, err := s.file.WriteString(section); err != nil {
		return fmt.Errorf("write document section: %w", err)
	}
	return s.file.Sync()
}

// Finalize appends the sorted URL index and the document index, then closes
// the file.
func (s *TextStore) Finalize(summary Summary) error {
	urls := append([]string(nil), summary.VisitedURLs...)
	sort.Strings(urls)

	var b strings.Builder
	b.WriteString("\n\nURL INDEX\n")
	b.WriteString(sectionRule)
	b.WriteString("\n")
	for i, u := range urls {
		fmt.Fprintf(&b, "%d. %s\n", i+1, u)
	}
	if len(s.documents) > 0 {
		b.WriteString("\nDOWNLOADED DOCUMENTS\n")
		b.WriteString(sectionRule)
		b.WriteString("\n")
		for i, doc := range s.documents {
			fmt.Fprintf(&b, "%d. %s -> %s\n", i+1, doc.URL, doc.FilePath)
		}
	}
	if _, err := s.file.WriteString(b.String()); err != nil {
		s.file.Close()
		return fmt.Errorf("write indexes: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close aggregate file: %w", err)
	}
	s.logger.Info("Aggregate file written",
		zap.String("path", s.path),
		zap.Int("urls", len(urls)),
		zap.Int("documents", len(s.documents)))
	return nil
}
