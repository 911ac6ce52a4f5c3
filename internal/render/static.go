package render

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Static renders pages with a plain HTTP GET via a Colly collector. The base
// collector is built once per run and cloned per fetch for clean state.
type Static struct {
	base   *colly.Collector
	logger *zap.Logger
}

// NewStatic constructs the static renderer.
func NewStatic(opts Options, logger *zap.Logger) (*Static, error) {
	base := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
	)
	base.AllowURLRevisit = true
	base.IgnoreRobotsTxt = true
	base.CheckHead = false
	base.WithTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !opts.VerifyTLS, //nolint:gosec // operator-controlled toggle
		},
		ForceAttemptHTTP2: true,
	})
	base.SetRequestTimeout(opts.requestTimeout())

	return &Static{base: base, logger: logger}, nil
}

// Render fetches rawURL and returns its body when the response is 2xx HTML.
func (s *Static) Render(ctx context.Context, rawURL string) (Result, error) {
	collector := s.base.Clone()

	var (
		once sync.Once
		out  Result
		rerr error
	)
	settle := func(res Result, err error) {
		once.Do(func() {
			out, rerr = res, err
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode/100 != 2 {
			settle(Result{}, fmt.Errorf("unexpected status %d", r.StatusCode))
			return
		}
		contentType := strings.ToLower(r.Headers.Get("Content-Type"))
		if !strings.Contains(contentType, "text/html") {
			settle(Result{}, fmt.Errorf("%w: content type %q", ErrNotHTML, contentType))
			return
		}
		html := string(r.Body)
		settle(Result{HTML: html, Suspect: len(html) < suspectContentLength}, nil)
	})

	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown fetch error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		settle(Result{}, err)
	})

	if err := collector.Visit(rawURL); err != nil {
		return Result{}, fmt.Errorf("visit %s: %w", rawURL, err)
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if rerr != nil {
		return Result{}, rerr
	}
	if out.HTML == "" {
		return Result{}, ErrNoContent
	}
	return out, nil
}

// Close is a no-op; the collector holds no resources beyond its transport.
func (s *Static) Close(context.Context) error {
	return nil
}
