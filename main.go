// The main package for the siteharvest executable.
//
// Architecture overview:
//   - Frontier: internal/frontier owns URL normalization, same-origin
//     validation, and deduplication. Discovered links enter a FIFO pending
//     queue; visited URLs are never revisited, even when a fetch fails.
//   - Rendering: internal/render offers two PageRenderer implementations.
//     The browser renderer drives headless Chrome via Chromedp, waits for
//     network quiescence with a bounded timeout, and degrades rather than
//     fails when a page never settles; a commit-level retry salvages pages
//     that time out outright. The static renderer fetches over plain HTTP
//     with Colly for sites that do not need JavaScript.
//   - Extraction: internal/extract parses rendered HTML with goquery,
//     strips navigation and footer boilerplate, locates the main content
//     container heuristically, and emits structured Page records plus an
//     assembled plain-text rendition.
//   - Documents: internal/download streams linked binary documents (PDF,
//     Office files, archives) to disk with collision-safe filenames derived
//     from the URL, Content-Disposition header, or MIME type.
//   - Persistence: internal/index writes either one JSON artifact per page
//     plus an index.json manifest, or a single aggregate text file with
//     per-URL sections and trailing indexes. The manifest is flushed
//     incrementally so interrupted runs keep their progress.
//   - Plumbing: Viper populates config from a YAML file, environment
//     variables (SITEHARVEST_ prefix), and command-line flags; zap provides
//     structured logging; Prometheus counters are exported on an optional
//     /metrics listener.
//
// Run locally: go run . scrape --url https://example.com
// (or put the settings in a YAML file and pass --config).
package main

import (
	"github.com/siteharvest/siteharvest/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
