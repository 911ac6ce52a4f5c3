package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siteharvest/siteharvest/internal/download"
	"github.com/siteharvest/siteharvest/internal/extract"
)

func TestPageSlug(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"homepage", "https://example.com", "homepage"},
		{"homepage with slash", "https://example.com/", "homepage"},
		{"single segment", "https://example.com/about", "about"},
		{"nested path", "https://example.com/news/2024/launch", "news_2024_launch"},
		{"trailing slash stripped", "https://example.com/about/", "about"},
		{"unsafe characters", "https://example.com/a b&c", "a_b_c"},
		{"dots preserved", "https://example.com/page.html", "page.html"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PageSlug(tc.url))
		})
	}
}

func TestJSONStoreWritesArtifactAndManifest(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir, "https://example.com", zap.NewNop())
	require.NoError(t, err)

	page := &extract.Page{
		URL:       "https://example.com/about",
		Title:     "About Us",
		PlainText: "About Us\n\nWe make things.",
	}
	require.NoError(t, store.WritePage(page))

	artifact := filepath.Join(dir, "about.json")
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)

	var got extract.Page
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "https://example.com/about", got.URL)
	assert.Equal(t, "About Us", got.Title)
	assert.True(t, filepath.IsAbs(got.FilePath))
	assert.Equal(t, "about.json", filepath.Base(got.FilePath))

	// The manifest is flushed even before Finalize.
	manifestData, err := os.ReadFile(filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(manifestData, &manifest))
	assert.Equal(t, "https://example.com", manifest.BaseURL)
	require.Len(t, manifest.Pages, 1)
	assert.Equal(t, "About Us", manifest.Pages[0].Title)
	assert.Nil(t, manifest.Stats)
}

func TestJSONStoreFinalizeStampsStats(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONStore(dir, "https://example.com", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.WritePage(&extract.Page{URL: "https://example.com/about", Title: "About"}))
	require.NoError(t, store.RecordDocument(download.Document{
		URL:      "https://example.com/files/report.pdf",
		FilePath: "/tmp/docs/report.pdf",
	}))

	stats := NewStats(1, 1, 90*time.Second, "run-1")
	require.NoError(t, store.Finalize(Summary{Stats: stats}))

	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))

	require.NotNil(t, manifest.Stats)
	assert.Equal(t, 1, manifest.Stats.TotalPages)
	assert.Equal(t, 1, manifest.Stats.TotalDocuments)
	assert.Equal(t, 90.0, manifest.Stats.DurationSeconds)
	assert.NotEmpty(t, manifest.Stats.ScrapeTimestamp)
	require.Len(t, manifest.Documents, 1)
	assert.Equal(t, "/tmp/docs/report.pdf", manifest.Documents[0].FilePath)
}

func TestJSONStoreRequiresDirectory(t *testing.T) {
	_, err := NewJSONStore("", "https://example.com", zap.NewNop())
	assert.Error(t, err)
}

func TestTextStoreSectionsAndIndexes(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTextStore(dir, "results.txt", "https://example.com", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.WritePage(&extract.Page{
		URL:       "https://example.com/zebra",
		PlainText: "Zebra page text.",
	}))
	require.NoError(t, store.WritePage(&extract.Page{
		URL:       "https://example.com/apple",
		PlainText: "Apple page text.",
	}))
	require.NoError(t, store.RecordDocument(download.Document{
		URL:      "https://example.com/files/report.pdf",
		FilePath: "/tmp/docs/report.pdf",
	}))

	require.NoError(t, store.Finalize(Summary{
		VisitedURLs: []string{"https://example.com/zebra", "https://example.com/apple"},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "results.txt"))
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "Web Scraping Results for https://example.com\n"))
	assert.Contains(t, text, "URL: https://example.com/zebra")
	assert.Contains(t, text, "Zebra page text.")
	assert.Contains(t, text, "Document downloaded to: /tmp/docs/report.pdf")
	assert.Contains(t, text, "URL INDEX")
	assert.Contains(t, text, "DOWNLOADED DOCUMENTS")
	assert.Contains(t, text, "1. https://example.com/files/report.pdf -> /tmp/docs/report.pdf")

	// Index entries are sorted regardless of visit order.
	apple := strings.Index(text, "1. https://example.com/apple")
	zebra := strings.Index(text, "2. https://example.com/zebra")
	require.Positive(t, apple)
	require.Positive(t, zebra)
	assert.Less(t, apple, zebra)
}

func TestTextStoreOmitsDocumentIndexWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewTextStore(dir, "results.txt", "https://example.com", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Finalize(Summary{VisitedURLs: []string{"https://example.com"}}))

	data, err := os.ReadFile(filepath.Join(dir, "results.txt"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "DOWNLOADED DOCUMENTS")
}
