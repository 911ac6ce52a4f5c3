// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/siteharvest/siteharvest/internal/extract"
	"github.com/siteharvest/siteharvest/internal/frontier"
)

// Render modes.
const (
	ModeBrowser = "browser"
	ModeStatic  = "static"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Render    RenderConfig    `mapstructure:"render"`
	Download  DownloadConfig  `mapstructure:"download"`
	Output    OutputConfig    `mapstructure:"output"`
	Frontier  FrontierConfig  `mapstructure:"frontier"`
	Selectors SelectorsConfig `mapstructure:"selectors"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ScrapeConfig governs the crawl session itself.
type ScrapeConfig struct {
	StartURL       string `mapstructure:"start_url"`
	DelaySeconds   int    `mapstructure:"delay_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	VerifyTLS      bool   `mapstructure:"verify_tls"`
	WordPressAware bool   `mapstructure:"wordpress_aware"`
}

// RenderConfig selects and tunes the page renderer.
type RenderConfig struct {
	Mode                  string `mapstructure:"mode"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	NavTimeoutSeconds     int    `mapstructure:"nav_timeout_seconds"`
	QuiesceTimeoutSeconds int    `mapstructure:"quiesce_timeout_seconds"`
	RetryTimeoutSeconds   int    `mapstructure:"retry_timeout_seconds"`
}

// DownloadConfig controls document persistence.
type DownloadConfig struct {
	Dir            string `mapstructure:"dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OutputConfig selects the persistence format and location.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
	File   string `mapstructure:"file"`
}

// FrontierConfig overrides URL classification rules.
type FrontierConfig struct {
	DocumentExtensions []string `mapstructure:"document_extensions"`
	IgnoredExtensions  []string `mapstructure:"ignored_extensions"`
	IgnoredPatterns    []string `mapstructure:"ignored_patterns"`
}

// SelectorsConfig overrides the boilerplate and content selector sets.
type SelectorsConfig struct {
	Nav     []string `mapstructure:"nav"`
	Footer  []string `mapstructure:"footer"`
	Content []string `mapstructure:"content"`
}

// MetricsConfig enables the Prometheus endpoint when a listen address is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Validation is left to the
// caller: command-line flags may still fill required values after loading.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SITEHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key is registered here, including the empty ones: only
	// registered keys are visible to AutomaticEnv during Unmarshal.
	v.SetDefault("scrape.start_url", "")
	v.SetDefault("scrape.delay_seconds", 1)
	v.SetDefault("scrape.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("scrape.verify_tls", false)
	v.SetDefault("scrape.wordpress_aware", false)
	v.SetDefault("render.mode", ModeBrowser)
	v.SetDefault("render.request_timeout_seconds", 10)
	v.SetDefault("render.nav_timeout_seconds", 20)
	v.SetDefault("render.quiesce_timeout_seconds", 10)
	v.SetDefault("render.retry_timeout_seconds", 15)
	v.SetDefault("download.dir", "downloaded_docs")
	v.SetDefault("download.timeout_seconds", 30)
	v.SetDefault("output.format", FormatJSON)
	v.SetDefault("output.dir", "scraped_data")
	v.SetDefault("output.file", "scraped_data.txt")
	v.SetDefault("frontier.document_extensions", []string{})
	v.SetDefault("frontier.ignored_extensions", []string{})
	v.SetDefault("frontier.ignored_patterns", []string{})
	v.SetDefault("selectors.nav", []string{})
	v.SetDefault("selectors.footer", []string{})
	v.SetDefault("selectors.content", []string{})
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scrape.StartURL == "" {
		return fmt.Errorf("scrape.start_url is required")
	}
	if c.Scrape.DelaySeconds < 0 {
		return fmt.Errorf("scrape.delay_seconds must be >= 0")
	}
	if c.Render.Mode != ModeBrowser && c.Render.Mode != ModeStatic {
		return fmt.Errorf("render.mode must be %q or %q, got %q", ModeBrowser, ModeStatic, c.Render.Mode)
	}
	if c.Output.Format != FormatJSON && c.Output.Format != FormatText {
		return fmt.Errorf("output.format must be %q or %q, got %q", FormatJSON, FormatText, c.Output.Format)
	}
	if c.Download.TimeoutSeconds <= 0 {
		return fmt.Errorf("download.timeout_seconds must be > 0")
	}
	return nil
}

// Delay converts the crawl pacing config to a duration.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Scrape.DelaySeconds) * time.Second
}

// FrontierOptions maps the config onto frontier classification rules.
// WordPress-aware mode folds in the extra ignore lists unless the
// corresponding field is overridden outright.
func (c Config) FrontierOptions() frontier.Config {
	fc := frontier.Config{
		DocumentExtensions: c.Frontier.DocumentExtensions,
		IgnoredExtensions:  c.Frontier.IgnoredExtensions,
		IgnoredPatterns:    c.Frontier.IgnoredPatterns,
	}
	if c.Scrape.WordPressAware {
		if len(fc.IgnoredExtensions) == 0 {
			fc.IgnoredExtensions = append(frontier.DefaultIgnoredExtensions(), frontier.WordPressIgnoredExtensions()...)
		}
		if len(fc.IgnoredPatterns) == 0 {
			fc.IgnoredPatterns = frontier.WordPressIgnoredPatterns()
		}
	}
	return fc
}

// ExtractSelectors maps the config onto extractor selector sets; empty
// sections fall back to the extractor defaults.
func (c Config) ExtractSelectors() extract.Selectors {
	return extract.Selectors{
		Nav:     c.Selectors.Nav,
		Footer:  c.Selectors.Footer,
		Content: c.Selectors.Content,
	}
}
