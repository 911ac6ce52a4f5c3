// Package render fetches a URL's HTML, either via plain HTTP or a headless
// browser session with degraded-mode retry.
package render

import (
	"context"
	"errors"
	"time"
)

// ErrNotHTML indicates the response was served with a non-HTML content type.
var ErrNotHTML = errors.New("response is not html")

// ErrNoContent indicates the fetch produced an empty body.
var ErrNoContent = errors.New("no content")

// suspectContentLength is the minimum body size below which a successful
// render is flagged as suspect (likely an error page).
const suspectContentLength = 500

// Result is the outcome of a successful render.
type Result struct {
	HTML string
	// Degraded is set when the page was accepted without reaching network
	// quiescence.
	Degraded bool
	// Suspect is set when the body is shorter than the minimal content
	// threshold. The HTML is still returned.
	Suspect bool
}

// PageRenderer is the strategy interface for producing a page's HTML.
// Render failures are soft: the crawl loop logs them and moves on.
type PageRenderer interface {
	Render(ctx context.Context, rawURL string) (Result, error)
	Close(ctx context.Context) error
}

// Options configures both renderer strategies.
type Options struct {
	UserAgent string
	VerifyTLS bool

	// RequestTimeout bounds a static HTTP fetch.
	RequestTimeout time.Duration
	// NavTimeout bounds browser navigation up to the content-loaded milestone.
	NavTimeout time.Duration
	// QuiesceTimeout bounds the post-navigation wait for network quiescence.
	QuiesceTimeout time.Duration
	// RetryTimeout bounds the single commit-only retry after a failed navigation.
	RetryTimeout time.Duration
}

func (o Options) requestTimeout() time.Duration {
	if o.RequestTimeout > 0 {
		return o.RequestTimeout
	}
	return 10 * time.Second
}

func (o Options) navTimeout() time.Duration {
	if o.NavTimeout > 0 {
		return o.NavTimeout
	}
	return 20 * time.Second
}

func (o Options) quiesceTimeout() time.Duration {
	if o.QuiesceTimeout > 0 {
		return o.QuiesceTimeout
	}
	return 10 * time.Second
}

func (o Options) retryTimeout() time.Duration {
	if o.RetryTimeout > 0 {
		return o.RetryTimeout
	}
	return 15 * time.Second
}
