package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDownloaderForTest(t *testing.T) *Downloader {
	t.Helper()
	d, err := New(Options{Dir: t.TempDir(), UserAgent: "test-agent"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestDownloadUsesPathBasename(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 payload"))
	}))
	defer server.Close()

	d := newDownloaderForTest(t)
	doc, err := d.Download(context.Background(), server.URL+"/files/annual.pdf")
	require.NoError(t, err)

	assert.Equal(t, "annual.pdf", filepath.Base(doc.FilePath))
	assert.Equal(t, "annual.pdf", doc.Title)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, int64(len("%PDF-1.4 payload")), doc.SizeBytes)

	data, err := os.ReadFile(doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 payload", string(data))
}

func TestDownloadUsesContentDisposition(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer server.Close()

	d := newDownloaderForTest(t)
	doc, err := d.Download(context.Background(), server.URL+"/file")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", filepath.Base(doc.FilePath))
}

func TestDownloadGeneratesNameFromMIME(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer server.Close()

	d := newDownloaderForTest(t)
	doc, err := d.Download(context.Background(), server.URL+"/file")
	require.NoError(t, err)
	assert.Equal(t, "document_1.pdf", filepath.Base(doc.FilePath))

	doc2, err := d.Download(context.Background(), server.URL+"/other")
	require.NoError(t, err)
	assert.Equal(t, "document_2.pdf", filepath.Base(doc2.FilePath))
}

func TestDownloadUnknownMIMEFallsBackToBin(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-mystery-format")
		_, _ = w.Write([]byte("???"))
	}))
	defer server.Close()

	d := newDownloaderForTest(t)
	doc, err := d.Download(context.Background(), server.URL+"/blob")
	require.NoError(t, err)
	assert.Equal(t, "document_1.bin", filepath.Base(doc.FilePath))
}

func TestDownloadNeverOverwrites(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer server.Close()

	d := newDownloaderForTest(t)
	seen := make(map[string]struct{})
	for i := 0; i < 3; i++ {
		doc, err := d.Download(context.Background(), server.URL+"/files/same.pdf")
		require.NoError(t, err)
		_, dup := seen[doc.FilePath]
		require.False(t, dup, "path %q reused", doc.FilePath)
		seen[doc.FilePath] = struct{}{}
	}
	assert.Contains(t, seen, filepath.Join(mustAbs(t, d.dir), "same.pdf"))
	assert.Contains(t, seen, filepath.Join(mustAbs(t, d.dir), "same_1.pdf"))
	assert.Contains(t, seen, filepath.Join(mustAbs(t, d.dir), "same_2.pdf"))
}

func TestDownloadSanitizesFilename(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="we?ird*na:me.pdf"`)
		_, _ = w.Write([]byte("pdf bytes"))
	}))
	defer server.Close()

	d := newDownloaderForTest(t)
	doc, err := d.Download(context.Background(), server.URL+"/x")
	require.NoError(t, err)
	// Everything from the first '?' on is treated as query residue.
	assert.Equal(t, "we", filepath.Base(doc.FilePath))
}

func TestDownloadFailsOnBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := newDownloaderForTest(t)
	_, err := d.Download(context.Background(), server.URL+"/missing.pdf")
	assert.Error(t, err)
}

func TestNewRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Dir: "  "}, zap.NewNop())
	assert.Error(t, err)
}

func TestResolveFilenamePriorities(t *testing.T) {
	t.Parallel()

	d := newDownloaderForTest(t)
	cases := []struct {
		name        string
		url         string
		disposition string
		contentType string
		want        string
	}{
		{"path basename wins", "https://example.com/a/b/doc.pdf", `attachment; filename="x.pdf"`, "application/pdf", "doc.pdf"},
		{"disposition when no dot", "https://example.com/file", `attachment; filename="report.pdf"`, "application/pdf", "report.pdf"},
		{"generated with mime ext", "https://example.com/file", "", "application/pdf", "document_1.pdf"},
		{"generated with bin ext", "https://example.com/file", "", "application/x-nope", "document_1.bin"},
		{"query stripped", "https://example.com/dl/report.pdf%3Fv=2", "", "application/pdf", "report.pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.resolveFilename(tc.url, tc.disposition, tc.contentType)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestUniquePathSkipsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_1.pdf"), []byte("x"), 0o600))

	assert.Equal(t, filepath.Join(dir, "a_2.pdf"), uniquePath(dir, "a.pdf"))
	assert.Equal(t, filepath.Join(dir, "b.pdf"), uniquePath(dir, "b.pdf"))
}

func TestUniquePathReturnsOnStatError(t *testing.T) {
	t.Parallel()

	// A regular file in the directory position makes every Stat fail with
	// ENOTDIR, which is not "not exist"; the loop must not spin on it.
	dir := t.TempDir()
	notADir := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(notADir, []byte("x"), 0o600))

	assert.Equal(t, filepath.Join(notADir, "a.pdf"), uniquePath(notADir, "a.pdf"))
}

func TestExtensionFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".pdf", extensionFor("application/pdf"))
	assert.Equal(t, ".xlsx", extensionFor("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))
	assert.Equal(t, ".bin", extensionFor("application/x-totally-unknown"))
	assert.Equal(t, ".bin", extensionFor(""))
}

func mustAbs(t *testing.T, p string) string {
	t.Helper()
	abs, err := filepath.Abs(p)
	require.NoError(t, err)
	return abs
}
