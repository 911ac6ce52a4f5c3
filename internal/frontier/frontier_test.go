package frontier

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFrontier(t *testing.T, start string, cfg Config) *Frontier {
	t.Helper()
	f, err := New(start, cfg)
	require.NoError(t, err)
	return f
}

func TestNewRejectsBadStartURLs(t *testing.T) {
	t.Parallel()

	for _, start := range []string{"", "ftp://example.com/", "not a url://", "/relative/only"} {
		_, err := New(start, Config{})
		assert.Error(t, err, "start url %q", start)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	cases := []string{
		"https://example.com/a/",
		"https://example.com/a//",
		"https://example.com/a///",
		"https://example.com/a#section",
		"https://example.com/report.pdf",
		"https://example.com/",
		"https://example.com//",
	}
	for _, raw := range cases {
		once := f.Normalize(raw)
		assert.Equal(t, once, f.Normalize(once), "normalize should be idempotent for %q", raw)
	}
}

func TestNormalizeCollapsesTrailingSlashAndFragment(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	assert.Equal(t, "https://example.com/a", f.Normalize("https://example.com/a/"))
	assert.Equal(t, "https://example.com/a", f.Normalize("https://example.com/a//"))
	assert.Equal(t, "https://example.com/a", f.Normalize("https://example.com/a#top"))
	assert.Equal(t, "https://example.com", f.Normalize("https://example.com//"))
	// Documents keep their trailing path untouched apart from the fragment.
	assert.Equal(t, "https://example.com/r.pdf", f.Normalize("https://example.com/r.pdf#page=2"))
}

func TestDiscoverCollapsesRepeatedTrailingSlashes(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	f.MarkVisited("https://example.com")
	f.Discover("https://example.com", []string{"/a//", "/a/", "/a"})

	assert.Equal(t, 1, f.PendingCount())
	rec, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", rec.URL)
}

func TestValidateSameOriginOnly(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	assert.True(t, f.Validate("https://example.com/about"))
	assert.False(t, f.Validate("https://other.com/x"))
	assert.False(t, f.Validate(""))
	assert.False(t, f.Validate("https://example.com/app.js"))
	assert.False(t, f.Validate("https://example.com/theme.css"))
}

func TestValidateWordPressPatterns(t *testing.T) {
	t.Parallel()

	cfg := Config{
		IgnoredExtensions: append(DefaultIgnoredExtensions(), WordPressIgnoredExtensions()...),
		IgnoredPatterns:   WordPressIgnoredPatterns(),
	}
	f := newTestFrontier(t, "https://example.com/", cfg)

	assert.False(t, f.Validate("https://example.com/wp-admin/options.php"))
	assert.False(t, f.Validate("https://example.com/wp-login.php"))
	assert.False(t, f.Validate("https://example.com/blog/feed"))
	assert.False(t, f.Validate("https://example.com/?s=query"))
	assert.False(t, f.Validate("https://example.com/wp-json/wp/v2/posts"))
	assert.False(t, f.Validate("https://example.com/media/photo.jpg"))
	assert.True(t, f.Validate("https://example.com/blog/post"))
}

func TestDiscoverKeepsSameDomainOnly(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	start, ok := f.Next()
	require.True(t, ok)
	f.MarkVisited(start.URL)

	f.Discover("https://example.com/", []string{"/about", "https://other.com/x"})

	next, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/about", next.URL)
	_, ok = f.Next()
	assert.False(t, ok, "external link must not enter the frontier")
}

func TestDiscoverDeduplicatesEquivalentLinks(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	start, _ := f.Next()
	f.MarkVisited(start.URL)

	f.Discover("https://example.com/", []string{"/about", "/about/", "/about#team"})
	assert.Equal(t, 1, f.PendingCount(), "equivalent links should enqueue once")
}

func TestDiscoverSkipsNonNavigableSchemes(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	start, _ := f.Next()
	f.MarkVisited(start.URL)

	f.Discover("https://example.com/", []string{
		"javascript:void(0)", "mailto:a@example.com", "tel:+1555", "",
	})
	assert.Zero(t, f.PendingCount())
}

func TestVisitedAndPendingStayDisjoint(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	for i := 0; i < 5; i++ {
		f.Discover("https://example.com/", []string{fmt.Sprintf("/p%d", i)})
	}

	seen := make(map[string]struct{})
	for {
		rec, ok := f.Next()
		if !ok {
			break
		}
		_, dup := seen[rec.URL]
		require.False(t, dup, "url %q popped twice", rec.URL)
		seen[rec.URL] = struct{}{}
		f.MarkVisited(rec.URL)

		// Rediscovering a visited URL must not re-enqueue it.
		f.Discover("https://example.com/", []string{rec.URL})
		for _, pending := range f.pending {
			_, visited := f.visited[pending.URL]
			require.False(t, visited, "pending %q is already visited", pending.URL)
		}
	}
	assert.Equal(t, 6, f.VisitedCount())
}

func TestNextIsFIFO(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	start, _ := f.Next()
	f.MarkVisited(start.URL)

	f.Discover("https://example.com/", []string{"/first", "/second", "/third"})
	var order []string
	for {
		rec, ok := f.Next()
		if !ok {
			break
		}
		order = append(order, rec.URL)
		f.MarkVisited(rec.URL)
	}
	assert.Equal(t, []string{
		"https://example.com/first",
		"https://example.com/second",
		"https://example.com/third",
	}, order)
}

func TestMarkVisitedRemovesPendingEntry(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	start, _ := f.Next()
	f.MarkVisited(start.URL)

	f.Discover("https://example.com/", []string{"/a", "/b"})
	f.MarkVisited("https://example.com/a")
	f.MarkVisited("https://example.com/a") // idempotent

	rec, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/b", rec.URL)
	_, ok = f.Next()
	assert.False(t, ok)
}

func TestIsDocumentByExtension(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", Config{})
	assert.True(t, f.IsDocument("https://example.com/report.PDF"))
	assert.True(t, f.IsDocument("https://example.com/data.xlsx"))
	assert.False(t, f.IsDocument("https://example.com/report"))
	assert.False(t, f.IsDocument("https://example.com/about.html"))
}
