// Package index persists per-page artifacts and maintains the run manifest.
package index

import (
	"time"

	"github.com/siteharvest/siteharvest/internal/download"
	"github.com/siteharvest/siteharvest/internal/extract"
)

// timestampLayout is the human-readable manifest timestamp format.
const timestampLayout = "2006-01-02 15:04:05"

// PageSummary is the manifest entry for one persisted page.
type PageSummary struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	FilePath string `json:"file_path"`
}

// Stats are the run statistics recorded in the manifest at completion.
type Stats struct {
	TotalPages      int     `json:"total_pages"`
	TotalDocuments  int     `json:"total_documents"`
	ScrapeTimestamp string  `json:"scrape_timestamp"`
	DurationSeconds float64 `json:"duration_seconds"`
	RunID           string  `json:"run_id,omitempty"`
}

// NewStats builds completion statistics from the run outcome.
func NewStats(pages, documents int, duration time.Duration, runID string) Stats {
	return Stats{
		TotalPages:      pages,
		TotalDocuments:  documents,
		ScrapeTimestamp: time.Now().Format(timestampLayout),
		DurationSeconds: duration.Seconds(),
		RunID:           runID,
	}
}

// Manifest is the authoritative run-level index of pages and documents.
type Manifest struct {
	BaseURL   string              `json:"base_url"`
	Pages     []PageSummary       `json:"pages"`
	Documents []download.Document `json:"documents"`
	Stats     *Stats              `json:"stats,omitempty"`
}

// Summary is handed to a sink at the end of the run.
type Summary struct {
	Stats Stats
	// VisitedURLs holds every processed URL, including failures.
	VisitedURLs []string
}

// Sink receives extraction results as the crawl progresses. Implementations
// are driven by a single crawl loop and need no locking.
type Sink interface {
	WritePage(page *extract.Page) error
	RecordDocument(doc download.Document) error
	// Finalize writes the manifest (or trailing indexes) and closes the
	// sink. It is called once, on every exit path, best-effort.
	Finalize(summary Summary) error
}
