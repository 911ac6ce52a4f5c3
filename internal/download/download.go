// Package download resolves safe filenames for linked binary resources and
// streams them to disk.
package download

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Document records one successfully downloaded binary resource.
type Document struct {
	URL         string `json:"url"`
	FilePath    string `json:"file_path"`
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// Options configures the downloader.
type Options struct {
	// Dir is the folder documents are written to. Created at startup;
	// creation failure is fatal.
	Dir       string
	UserAgent string
	VerifyTLS bool
	Timeout   time.Duration
}

// Downloader fetches documents over a single shared HTTP client. It is used
// by exactly one crawl loop, so the filename collision check is race-free
// within a session.
type Downloader struct {
	dir       string
	userAgent string
	client    *http.Client
	logger    *zap.Logger
	count     int
}

// preferredExtensions maps common document MIME types to an extension,
// checked before the platform MIME database.
var preferredExtensions = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"application/vnd.ms-powerpoint":                                     ".ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/zip":              ".zip",
	"application/x-rar-compressed": ".rar",
	"application/rtf":              ".rtf",
	"text/plain":                   ".txt",
	"text/csv":                     ".csv",
	"audio/mpeg":                   ".mp3",
	"video/mp4":                    ".mp4",
	"application/vnd.oasis.opendocument.text": ".odt",
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\-. ]`)

// New creates the documents folder and the shared HTTP client.
func New(opts Options, logger *zap.Logger) (*Downloader, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("documents directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        16,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: !opts.VerifyTLS, //nolint:gosec // operator-controlled toggle
			},
		},
	}
	return &Downloader{
		dir:       opts.Dir,
		userAgent: opts.UserAgent,
		client:    client,
		logger:    logger,
	}, nil
}

// Close releases idle connections held by the shared client.
func (d *Downloader) Close() {
	d.client.CloseIdleConnections()
}

// Download fetches rawURL, resolves a safe unique filename, and streams the
// body to disk. Failures are soft: callers log and continue.
func (d *Downloader) Download(ctx context.Context, rawURL string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Document{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return Document{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	contentType := mediaType(resp.Header.Get("Content-Type"))
	filename := d.resolveFilename(rawURL, resp.Header.Get("Content-Disposition"), contentType)
	fullPath := uniquePath(d.dir, filename)

	out, err := os.Create(fullPath)
	if err != nil {
		return Document{}, fmt.Errorf("create %s: %w", fullPath, err)
	}
	size, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// A partial file is useless; drop it so the slot can be reused.
		_ = os.Remove(fullPath)
		return Document{}, fmt.Errorf("write %s: %w", fullPath, err)
	}

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		absPath = fullPath
	}
	d.count++
	d.logger.Info("Downloaded document",
		zap.String("url", rawURL),
		zap.String("path", absPath),
		zap.Int64("size_bytes", size),
	)
	return Document{
		URL:         rawURL,
		FilePath:    absPath,
		Title:       filename,
		ContentType: contentType,
		SizeBytes:   size,
	}, nil
}

// resolveFilename picks a filename in priority order: URL path basename
// containing a dot, Content-Disposition filename, then a generated
// document_<n> name with an extension guessed from the content type.
func (d *Downloader) resolveFilename(rawURL, disposition, contentType string) string {
	var filename string
	if parsed, err := url.Parse(rawURL); err == nil {
		filename = path.Base(parsed.Path)
		if filename == "." || filename == "/" {
			filename = ""
		}
	}

	if !strings.Contains(filename, ".") {
		if name := dispositionFilename(disposition); name != "" {
			filename = name
		}
	}

	if filename == "" || !strings.Contains(filename, ".") {
		filename = fmt.Sprintf("document_%d%s", d.count+1, extensionFor(contentType))
	}

	// Residual query strings and unsafe characters are scrubbed last.
	if i := strings.IndexByte(filename, '?'); i >= 0 {
		filename = filename[:i]
	}
	return unsafeFilenameChars.ReplaceAllString(filename, "_")
}

func dispositionFilename(disposition string) string {
	if disposition == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return path.Base(name)
		}
	}
	return ""
}

// extensionFor guesses an extension from a MIME type, defaulting to the
// generic binary extension.
func extensionFor(contentType string) string {
	if contentType == "" {
		return ".bin"
	}
	if ext, ok := preferredExtensions[contentType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// uniquePath appends _1, _2, ... before the extension until the path does
// not exist yet. A path only counts as taken when Stat succeeds: any other
// Stat failure (permissions, a file in the directory chain) would repeat
// for every candidate, so the original path is returned and os.Create
// surfaces the underlying error.
func uniquePath(dir, filename string) string {
	full := filepath.Join(dir, filename)
	if _, err := os.Stat(full); err != nil {
		return full
	}
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
}
