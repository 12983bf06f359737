package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ubtue/ztsharvest/internal/descriptor"
)

// SimpleCrawlConfig is the lightweight config shape for the single-site
// crawl mode: crawl one site, archive what it finds, skip the journal
// descriptor table and translation/record pipeline entirely.
type SimpleCrawlConfig struct {
	StartURL      string        `json:"startUrl"`
	MaxDepth      int           `json:"maxDepth,omitempty"`
	UserAgent     string        `json:"userAgent,omitempty"`
	OutputDir     string        `json:"outputDir,omitempty"`
	DownloadDelay time.Duration `json:"downloadDelay,omitempty"`
	IgnoreRobots  bool          `json:"ignoreRobots,omitempty"`
}

// WithSimpleCrawlConfigFile loads a SimpleCrawlConfig and lowers it into a
// full Config carrying a single JournalCrawl-typed descriptor, so it can
// be driven by the same scheduler as a full harvest.
func WithSimpleCrawlConfigFile(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	var simple SimpleCrawlConfig
	if err := json.Unmarshal(content, &simple); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}
	if simple.StartURL == "" {
		return Config{}, fmt.Errorf("%w: startUrl is required", ErrInvalidConfig)
	}

	journal := descriptor.JournalDescriptor{
		Name:          "adhoc-site-crawl",
		Type:          descriptor.JournalCrawl,
		StartURL:      simple.StartURL,
		MaxCrawlDepth: simple.MaxDepth,
	}

	builder := WithDefault([]descriptor.JournalDescriptor{journal}).WithIgnoreRobots(simple.IgnoreRobots)
	if simple.UserAgent != "" {
		builder = builder.WithUserAgent(simple.UserAgent)
	}
	if simple.OutputDir != "" {
		builder = builder.WithArchiveDir(simple.OutputDir)
	}
	if simple.DownloadDelay != 0 {
		builder = builder.WithDefaultDownloadDelay(simple.DownloadDelay)
	}
	builder = builder.WithArchiveEnabled(true)

	return builder.Build(), nil
}
