package crawler

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/siteharvest/siteharvest/internal/download"
	"github.com/siteharvest/siteharvest/internal/extract"
	"github.com/siteharvest/siteharvest/internal/frontier"
	"github.com/siteharvest/siteharvest/internal/index"
	"github.com/siteharvest/siteharvest/internal/metrics"
	"github.com/siteharvest/siteharvest/internal/render"
)

// Stats summarizes a completed (or interrupted) run.
type Stats struct {
	Pages     int
	Documents int
	Failures  int
	Duration  time.Duration
	RunID     string
}

// Engine drives the crawl: it drains the frontier one URL at a time,
// renders pages, extracts content, downloads documents and hands
// everything to the sink. A single engine runs a single session.
type Engine struct {
	frontier   *frontier.Frontier
	renderer   render.PageRenderer
	extractor  *extract.Extractor
	downloader *download.Downloader
	sink       index.Sink
	limiter    *rate.Limiter
	logger     *zap.Logger
	runID      string

	stats Stats
}

// Deps carries everything an Engine needs. All fields are required
// except Delay, which disables pacing when zero.
type Deps struct {
	Frontier   *frontier.Frontier
	Renderer   render.PageRenderer
	Extractor  *extract.Extractor
	Downloader *download.Downloader
	Sink       index.Sink
	Delay      time.Duration
	Logger     *zap.Logger
}

// New validates the dependency set and builds an engine.
func New(deps Deps) (*Engine, error) {
	if deps.Frontier == nil {
		return nil, fmt.Errorf("frontier is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("renderer is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Downloader == nil {
		return nil, fmt.Errorf("downloader is required")
	}
	if deps.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if deps.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(deps.Delay), 1)
	}
	return &Engine{
		frontier:   deps.Frontier,
		renderer:   deps.Renderer,
		extractor:  deps.Extractor,
		downloader: deps.Downloader,
		sink:       deps.Sink,
		limiter:    limiter,
		logger:     deps.Logger,
		runID:      uuid.NewString(),
	}, nil
}

// RunID identifies this session in logs and the manifest.
func (e *Engine) RunID() string {
	return e.runID
}

// Run drains the frontier until it is empty or the context is cancelled.
// The sink is finalized on every exit path so partial runs still leave a
// coherent manifest behind.
func (e *Engine) Run(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	e.checkDNS()
	e.logger.Info("Crawl started",
		zap.String("run_id", e.runID),
		zap.String("base_url", e.frontier.BaseURL()))

	defer func() {
		e.stats.Duration = time.Since(start)
		e.stats.RunID = e.runID
		stats = e.stats
		summary := index.Summary{
			Stats:       index.NewStats(e.stats.Pages, e.stats.Documents, e.stats.Duration, e.runID),
			VisitedURLs: e.frontier.VisitedURLs(),
		}
		if err := e.sink.Finalize(summary); err != nil {
			e.logger.Error("Finalizing output failed", zap.Error(err))
		}
		e.logger.Info("Crawl finished",
			zap.String("run_id", e.runID),
			zap.Int("pages", e.stats.Pages),
			zap.Int("documents", e.stats.Documents),
			zap.Int("failures", e.stats.Failures),
			zap.Duration("duration", e.stats.Duration))
	}()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, ok := e.frontier.Next()
		if !ok {
			return stats, nil
		}
		e.frontier.MarkVisited(rec.URL)
		e.processOne(ctx, rec)
		if err := e.limiter.Wait(ctx); err != nil {
			return stats, err
		}
	}
}

// processOne handles a single URL. A failure, including a panic from a
// pathological page, is logged and counted; it never aborts the run.
func (e *Engine) processOne(ctx context.Context, rec frontier.Record) {
	defer func() {
		if r := recover(); r != nil {
			e.stats.Failures++
			metrics.ObservePage("panic")
			e.logger.Error("Recovered while processing URL",
				zap.String("url", rec.URL),
				zap.Any("panic", r))
		}
	}()

	if rec.IsDocument {
		e.processDocument(ctx, rec)
		return
	}
	e.processPage(ctx, rec)
}

func (e *Engine) processDocument(ctx context.Context, rec frontier.Record) {
	doc, err := e.downloader.Download(ctx, rec.URL)
	if err != nil {
		e.stats.Failures++
		metrics.ObserveFetchError()
		e.logger.Warn("Document download failed", zap.String("url", rec.URL), zap.Error(err))
		return
	}
	if err := e.sink.RecordDocument(doc); err != nil {
		e.stats.Failures++
		e.logger.Error("Recording document failed", zap.String("url", rec.URL), zap.Error(err))
		return
	}
	e.stats.Documents++
	metrics.ObserveDocument()
}

func (e *Engine) processPage(ctx context.Context, rec frontier.Record) {
	result, err := e.renderer.Render(ctx, rec.URL)
	if err != nil {
		e.stats.Failures++
		metrics.ObserveFetchError()
		metrics.ObservePage("error")
		e.logger.Warn("Render failed", zap.String("url", rec.URL), zap.Error(err))
		return
	}
	if result.Suspect {
		e.logger.Warn("Rendered page is suspiciously short, keeping it anyway",
			zap.String("url", rec.URL))
	}

	// Links come off the raw document so navigation chrome still feeds
	// the frontier even though extraction strips it.
	e.frontier.Discover(rec.URL, extract.Hrefs(result.HTML))

	page, err := e.extractor.Extract(rec.URL, result.HTML)
	if err != nil {
		e.stats.Failures++
		metrics.ObservePage("empty")
		e.logger.Warn("Extraction failed", zap.String("url", rec.URL), zap.Error(err))
		return
	}
	if err := e.sink.WritePage(page); err != nil {
		e.stats.Failures++
		e.logger.Error("Persisting page failed", zap.String("url", rec.URL), zap.Error(err))
		return
	}
	e.stats.Pages++
	status := "success"
	if result.Degraded {
		status = "degraded"
	}
	metrics.ObservePage(status)
	e.logger.Info("Page scraped",
		zap.String("url", rec.URL),
		zap.String("title", page.Title),
		zap.Int("pending", e.frontier.PendingCount()),
		zap.Bool("degraded", result.Degraded))
}

// checkDNS resolves the target host before the first fetch so an
// unreachable site produces one clear warning instead of a wall of
// per-URL errors. Resolution failure does not stop the run: the host
// may still be reachable through /etc/hosts or a proxy.
func (e *Engine) checkDNS() {
	host := e.frontier.BaseHost()
	if _, err := net.LookupHost(host); err != nil {
		e.logger.Warn("DNS resolution failed, the crawl will likely produce no pages",
			zap.String("host", host),
			zap.Error(err))
	}
}
