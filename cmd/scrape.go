package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/siteharvest/siteharvest/internal/config"
	"github.com/siteharvest/siteharvest/internal/crawler"
	"github.com/siteharvest/siteharvest/internal/download"
	"github.com/siteharvest/siteharvest/internal/extract"
	"github.com/siteharvest/siteharvest/internal/frontier"
	"github.com/siteharvest/siteharvest/internal/index"
	"github.com/siteharvest/siteharvest/internal/logging"
	"github.com/siteharvest/siteharvest/internal/metrics"
	"github.com/siteharvest/siteharvest/internal/render"
)

// newScrapeCmd creates and configures the 'scrape' subcommand, which runs a
// complete crawl session against a single site.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Crawl a site and extract its content",
		Long: `Starts at the configured URL and visits every same-domain page reachable
from it, writing extracted content and downloaded documents to disk. The
crawl ends when no unvisited URLs remain or the process is interrupted.`,
		RunE: runScrapeCommand,
	}

	flags := cmd.Flags()
	flags.String("url", "", "start URL (overrides scrape.start_url)")
	flags.String("output-dir", "", "directory for extracted content")
	flags.String("format", "", "output format: json or text")
	flags.String("docs-dir", "", "directory for downloaded documents")
	flags.Int("delay", -1, "seconds to wait between requests")
	flags.Bool("verify-tls", false, "verify TLS certificates")
	flags.String("mode", "", "render mode: browser or static")
	flags.String("user-agent", "", "User-Agent header for all requests")
	flags.Bool("wordpress", false, "skip WordPress admin, feed, and media URLs")

	return cmd
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadScrapeConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		go serveMetrics(addr, logger)
	}

	engine, cleanup, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := engine.Run(cmd.Context())
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}
	logger.Info("Scrape command finished",
		zap.Int("pages", stats.Pages),
		zap.Int("documents", stats.Documents),
		zap.Int("failures", stats.Failures),
		zap.Duration("duration", stats.Duration))
	return nil
}

// loadScrapeConfig loads the file/environment configuration and layers the
// command-line flags on top. Only flags the user actually set override the
// loaded values.
func loadScrapeConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("url"); flags.Changed("url") {
		cfg.Scrape.StartURL = v
	}
	if v, _ := flags.GetString("output-dir"); flags.Changed("output-dir") {
		cfg.Output.Dir = v
	}
	if v, _ := flags.GetString("format"); flags.Changed("format") {
		cfg.Output.Format = v
	}
	if v, _ := flags.GetString("docs-dir"); flags.Changed("docs-dir") {
		cfg.Download.Dir = v
	}
	if v, _ := flags.GetInt("delay"); flags.Changed("delay") {
		cfg.Scrape.DelaySeconds = v
	}
	if v, _ := flags.GetBool("verify-tls"); flags.Changed("verify-tls") {
		cfg.Scrape.VerifyTLS = v
	}
	if v, _ := flags.GetString("mode"); flags.Changed("mode") {
		cfg.Render.Mode = v
	}
	if v, _ := flags.GetString("user-agent"); flags.Changed("user-agent") {
		cfg.Scrape.UserAgent = v
	}
	if v, _ := flags.GetBool("wordpress"); flags.Changed("wordpress") {
		cfg.Scrape.WordPressAware = v
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildEngine wires all crawl components from the resolved configuration.
// The returned cleanup closes the renderer and downloader.
func buildEngine(cfg config.Config, logger *zap.Logger) (*crawler.Engine, func(), error) {
	front, err := frontier.New(cfg.Scrape.StartURL, cfg.FrontierOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("init frontier: %w", err)
	}

	renderOpts := render.Options{
		UserAgent:      cfg.Scrape.UserAgent,
		VerifyTLS:      cfg.Scrape.VerifyTLS,
		RequestTimeout: time.Duration(cfg.Render.RequestTimeoutSeconds) * time.Second,
		NavTimeout:     time.Duration(cfg.Render.NavTimeoutSeconds) * time.Second,
		QuiesceTimeout: time.Duration(cfg.Render.QuiesceTimeoutSeconds) * time.Second,
		RetryTimeout:   time.Duration(cfg.Render.RetryTimeoutSeconds) * time.Second,
	}
	var renderer render.PageRenderer
	switch cfg.Render.Mode {
	case config.ModeBrowser:
		renderer, err = render.NewBrowser(renderOpts, logger)
	default:
		renderer, err = render.NewStatic(renderOpts, logger)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("init renderer: %w", err)
	}

	downloader, err := download.New(download.Options{
		Dir:       cfg.Download.Dir,
		UserAgent: cfg.Scrape.UserAgent,
		VerifyTLS: cfg.Scrape.VerifyTLS,
		Timeout:   time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
	}, logger)
	if err != nil {
		closeRenderer(renderer, logger)
		return nil, nil, fmt.Errorf("init downloader: %w", err)
	}

	var sink index.Sink
	switch cfg.Output.Format {
	case config.FormatText:
		sink, err = index.NewTextStore(cfg.Output.Dir, cfg.Output.File, front.BaseURL(), logger)
	default:
		sink, err = index.NewJSONStore(cfg.Output.Dir, front.BaseURL(), logger)
	}
	if err != nil {
		closeRenderer(renderer, logger)
		downloader.Close()
		return nil, nil, fmt.Errorf("init output store: %w", err)
	}

	engine, err := crawler.New(crawler.Deps{
		Frontier:   front,
		Renderer:   renderer,
		Extractor:  extract.New(cfg.ExtractSelectors()),
		Downloader: downloader,
		Sink:       sink,
		Delay:      cfg.Delay(),
		Logger:     logger,
	})
	if err != nil {
		closeRenderer(renderer, logger)
		downloader.Close()
		return nil, nil, fmt.Errorf("init engine: %w", err)
	}

	cleanup := func() {
		closeRenderer(renderer, logger)
		downloader.Close()
	}
	return engine, cleanup, nil
}

func closeRenderer(r render.PageRenderer, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		logger.Warn("Failed to close renderer", zap.Error(err))
	}
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("Metrics server stopped", zap.Error(err))
	}
}
