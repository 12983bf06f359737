package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ubtue/ztsharvest/internal/descriptor"
)

// Config is the two-tier configuration described by the harvester: a set
// of global defaults (politeness, retry, translation-server, map
// directory, per-kind tasklet caps) plus one JournalDescriptor per
// harvested source.
type Config struct {
	//===============
	// Journals
	//===============
	journals []descriptor.JournalDescriptor

	//===============
	// Politeness
	//===============
	defaultDownloadDelay   time.Duration
	maxDownloadDelay       time.Duration
	perDomainDelayOverride map[string]time.Duration
	jitter                 time.Duration
	randomSeed             int64
	ignoreRobots           bool
	userAgent              string

	//===============
	// Retry / backoff
	//===============
	maxAttempt             int
	backoffInitialDuration time.Duration
	backoffMultiplier      float64
	backoffMaxDuration     time.Duration

	//===============
	// Time limits
	//===============
	perRequestTimeout time.Duration
	perCrawlTimeout   time.Duration

	//===============
	// Translation server
	//===============
	translationServerURL string
	maxConcurrentRequests int
	maxSearchBatchSize    int

	//===============
	// Per-kind scheduler caps
	//===============
	maxTasklets map[descriptor.TaskKind]int

	//===============
	// Output / bookkeeping
	//===============
	mapDirectory        string
	progressFilePath    string
	hashSidecarPath     string
	recordOutputDir     string
	archiveDir          string
	archiveEnabled      bool
	dryRun              bool
	deliveryFalsePositiveRate float64
	expectedDeliveredItems    uint
}

type journalDTO struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	ZederID         string `json:"zederId,omitempty"`
	ISSNPrint       string `json:"issnPrint,omitempty"`
	ISSNOnline      string `json:"issnOnline,omitempty"`
	ParentPPN       string `json:"parentPpn,omitempty"`
	Group           string `json:"group,omitempty"`
	DeliveryMode    string `json:"deliveryMode,omitempty"`
	ExtractionRegex string `json:"extractionRegex,omitempty"`
	CrawlURLRegex   string `json:"crawlUrlRegex,omitempty"`
	MaxCrawlDepth   int    `json:"maxCrawlDepth,omitempty"`
	StrptimeFormat  string `json:"strptimeFormat,omitempty"`
	FeedURL         string `json:"feedUrl,omitempty"`
	StartURL        string `json:"startUrl,omitempty"`
}

type configDTO struct {
	Journals                 []journalDTO               `json:"journals"`
	DefaultDownloadDelay     time.Duration              `json:"defaultDownloadDelay,omitempty"`
	MaxDownloadDelay         time.Duration              `json:"maxDownloadDelay,omitempty"`
	PerDomainDelayOverride   map[string]time.Duration   `json:"perDomainDelayOverride,omitempty"`
	Jitter                   time.Duration              `json:"jitter,omitempty"`
	RandomSeed               int64                      `json:"randomSeed,omitempty"`
	IgnoreRobots             bool                       `json:"ignoreRobots,omitempty"`
	UserAgent                string                     `json:"userAgent,omitempty"`
	MaxAttempt               int                        `json:"maxAttempt,omitempty"`
	BackoffInitialDuration   time.Duration              `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier        float64                    `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration       time.Duration              `json:"backoffMaxDuration,omitempty"`
	PerRequestTimeout        time.Duration              `json:"perRequestTimeout,omitempty"`
	PerCrawlTimeout          time.Duration              `json:"perCrawlTimeout,omitempty"`
	TranslationServerURL     string                     `json:"translationServerUrl,omitempty"`
	MaxConcurrentRequests    int                        `json:"maxConcurrentTranslationRequests,omitempty"`
	MaxSearchBatchSize       int                        `json:"maxSearchBatchSize,omitempty"`
	MaxTasklets              map[string]int             `json:"maxTasklets,omitempty"`
	MapDirectory             string                     `json:"mapDirectory,omitempty"`
	ProgressFilePath         string                     `json:"progressFilePath,omitempty"`
	HashSidecarPath          string                     `json:"hashSidecarPath,omitempty"`
	RecordOutputDir          string                     `json:"recordOutputDir,omitempty"`
	ArchiveDir               string                     `json:"archiveDir,omitempty"`
	ArchiveEnabled           bool                       `json:"archiveEnabled,omitempty"`
	DryRun                   bool                       `json:"dryRun,omitempty"`
	DeliveryFalsePositiveRate float64                   `json:"deliveryFalsePositiveRate,omitempty"`
	ExpectedDeliveredItems    uint                      `json:"expectedDeliveredItems,omitempty"`
}

func journalTypeFromString(s string) descriptor.JournalType {
	switch s {
	case "DIRECT":
		return descriptor.JournalDirect
	case "CRAWL":
		return descriptor.JournalCrawl
	case "APIQUERY":
		return descriptor.JournalAPIQuery
	case "EMAIL_CRAWL":
		return descriptor.JournalEmailCrawl
	default:
		return descriptor.JournalRSS
	}
}

func deliveryModeFromString(s string) descriptor.DeliveryMode {
	switch s {
	case "LIVE":
		return descriptor.DeliveryLive
	case "TEST":
		return descriptor.DeliveryTest
	default:
		return descriptor.DeliveryNone
	}
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := WithDefault(nil).Build()

	journals := make([]descriptor.JournalDescriptor, 0, len(dto.Journals))
	for _, j := range dto.Journals {
		journals = append(journals, descriptor.JournalDescriptor{
			Name:            j.Name,
			Type:            journalTypeFromString(j.Type),
			ZederID:         j.ZederID,
			ISSNPrint:       j.ISSNPrint,
			ISSNOnline:      j.ISSNOnline,
			ParentPPN:       j.ParentPPN,
			Group:           j.Group,
			DeliveryMode:    deliveryModeFromString(j.DeliveryMode),
			ExtractionRegex: j.ExtractionRegex,
			CrawlURLRegex:   j.CrawlURLRegex,
			MaxCrawlDepth:   j.MaxCrawlDepth,
			StrptimeFormat:  j.StrptimeFormat,
			FeedURL:         j.FeedURL,
			StartURL:        j.StartURL,
		})
	}
	cfg.journals = journals

	if dto.DefaultDownloadDelay != 0 {
		cfg.defaultDownloadDelay = dto.DefaultDownloadDelay
	}
	if dto.MaxDownloadDelay != 0 {
		cfg.maxDownloadDelay = dto.MaxDownloadDelay
	}
	if len(dto.PerDomainDelayOverride) > 0 {
		cfg.perDomainDelayOverride = dto.PerDomainDelayOverride
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	cfg.ignoreRobots = dto.IgnoreRobots
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}
	if dto.PerRequestTimeout != 0 {
		cfg.perRequestTimeout = dto.PerRequestTimeout
	}
	if dto.PerCrawlTimeout != 0 {
		cfg.perCrawlTimeout = dto.PerCrawlTimeout
	}
	if dto.TranslationServerURL != "" {
		cfg.translationServerURL = dto.TranslationServerURL
	}
	if dto.MaxConcurrentRequests != 0 {
		cfg.maxConcurrentRequests = dto.MaxConcurrentRequests
	}
	if dto.MaxSearchBatchSize != 0 {
		cfg.maxSearchBatchSize = dto.MaxSearchBatchSize
	}
	for kindName, cap := range dto.MaxTasklets {
		if kind, ok := taskKindFromString(kindName); ok {
			cfg.maxTasklets[kind] = cap
		}
	}
	if dto.MapDirectory != "" {
		cfg.mapDirectory = dto.MapDirectory
	}
	if dto.ProgressFilePath != "" {
		cfg.progressFilePath = dto.ProgressFilePath
	}
	if dto.HashSidecarPath != "" {
		cfg.hashSidecarPath = dto.HashSidecarPath
	}
	if dto.RecordOutputDir != "" {
		cfg.recordOutputDir = dto.RecordOutputDir
	}
	if dto.ArchiveDir != "" {
		cfg.archiveDir = dto.ArchiveDir
	}
	cfg.archiveEnabled = dto.ArchiveEnabled
	cfg.dryRun = dto.DryRun
	if dto.DeliveryFalsePositiveRate != 0 {
		cfg.deliveryFalsePositiveRate = dto.DeliveryFalsePositiveRate
	}
	if dto.ExpectedDeliveredItems != 0 {
		cfg.expectedDeliveredItems = dto.ExpectedDeliveredItems
	}

	return cfg, nil
}

func taskKindFromString(s string) (descriptor.TaskKind, bool) {
	for _, k := range descriptor.TaskKinds() {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	if err := json.Unmarshal(configContent, &cfgDTO); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}
	if len(cfgDTO.Journals) == 0 {
		return Config{}, fmt.Errorf("%w: no journals configured", ErrInvalidConfig)
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault builds a Config for the given journals with every politeness,
// retry, and capacity default filled in.
func WithDefault(journals []descriptor.JournalDescriptor) *Config {
	defaultCfg := Config{
		journals:               journals,
		defaultDownloadDelay:   time.Second,
		maxDownloadDelay:       30 * time.Second,
		perDomainDelayOverride: map[string]time.Duration{},
		jitter:                 500 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		userAgent:              "ztsharvest/1.0",
		maxAttempt:             10,
		backoffInitialDuration: 100 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		perRequestTimeout:      20 * time.Second,
		perCrawlTimeout:        5 * time.Minute,
		translationServerURL:   "http://localhost:1969",
		maxConcurrentRequests:  4,
		maxSearchBatchSize:     400,
		maxTasklets: map[descriptor.TaskKind]int{
			descriptor.KindDirectQuery:  8,
			descriptor.KindTranslation:  4,
			descriptor.KindCrawl:        4,
			descriptor.KindRSSFeed:      4,
			descriptor.KindAPIQuery:     4,
			descriptor.KindEmailCrawl:   2,
		},
		mapDirectory:              "maps",
		progressFilePath:          "progress.txt",
		hashSidecarPath:           "previously_downloaded.hashes",
		recordOutputDir:           "output",
		archiveDir:                "archive",
		deliveryFalsePositiveRate: 0.01,
		expectedDeliveredItems:    100000,
	}
	return &defaultCfg
}

func (c *Config) WithJournals(journals []descriptor.JournalDescriptor) *Config {
	c.journals = journals
	return c
}

func (c *Config) WithDefaultDownloadDelay(d time.Duration) *Config {
	c.defaultDownloadDelay = d
	return c
}

func (c *Config) WithMaxDownloadDelay(d time.Duration) *Config {
	c.maxDownloadDelay = d
	return c
}

func (c *Config) WithPerDomainDelayOverride(overrides map[string]time.Duration) *Config {
	c.perDomainDelayOverride = overrides
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithIgnoreRobots(ignore bool) *Config {
	c.ignoreRobots = ignore
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(d time.Duration) *Config {
	c.backoffInitialDuration = d
	return c
}

func (c *Config) WithBackoffMultiplier(m float64) *Config {
	c.backoffMultiplier = m
	return c
}

func (c *Config) WithBackoffMaxDuration(d time.Duration) *Config {
	c.backoffMaxDuration = d
	return c
}

func (c *Config) WithPerRequestTimeout(d time.Duration) *Config {
	c.perRequestTimeout = d
	return c
}

func (c *Config) WithPerCrawlTimeout(d time.Duration) *Config {
	c.perCrawlTimeout = d
	return c
}

func (c *Config) WithTranslationServerURL(url string) *Config {
	c.translationServerURL = url
	return c
}

func (c *Config) WithMaxConcurrentRequests(n int) *Config {
	c.maxConcurrentRequests = n
	return c
}

func (c *Config) WithMaxSearchBatchSize(n int) *Config {
	c.maxSearchBatchSize = n
	return c
}

func (c *Config) WithMaxTasklets(kind descriptor.TaskKind, cap int) *Config {
	if c.maxTasklets == nil {
		c.maxTasklets = map[descriptor.TaskKind]int{}
	}
	c.maxTasklets[kind] = cap
	return c
}

func (c *Config) WithMapDirectory(dir string) *Config {
	c.mapDirectory = dir
	return c
}

func (c *Config) WithProgressFilePath(path string) *Config {
	c.progressFilePath = path
	return c
}

func (c *Config) WithHashSidecarPath(path string) *Config {
	c.hashSidecarPath = path
	return c
}

func (c *Config) WithRecordOutputDir(dir string) *Config {
	c.recordOutputDir = dir
	return c
}

func (c *Config) WithArchiveDir(dir string) *Config {
	c.archiveDir = dir
	return c
}

func (c *Config) WithArchiveEnabled(enabled bool) *Config {
	c.archiveEnabled = enabled
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) Build() Config {
	if c.maxTasklets == nil {
		c.maxTasklets = map[descriptor.TaskKind]int{}
	}
	if c.perDomainDelayOverride == nil {
		c.perDomainDelayOverride = map[string]time.Duration{}
	}
	return *c
}

func (c Config) Journals() []descriptor.JournalDescriptor {
	out := make([]descriptor.JournalDescriptor, len(c.journals))
	copy(out, c.journals)
	return out
}

func (c Config) DefaultDownloadDelay() time.Duration { return c.defaultDownloadDelay }
func (c Config) MaxDownloadDelay() time.Duration     { return c.maxDownloadDelay }

func (c Config) DelayOverrideFor(host string) (time.Duration, bool) {
	d, ok := c.perDomainDelayOverride[host]
	return d, ok
}

func (c Config) Jitter() time.Duration  { return c.jitter }
func (c Config) RandomSeed() int64      { return c.randomSeed }
func (c Config) IgnoreRobots() bool     { return c.ignoreRobots }
func (c Config) UserAgent() string      { return c.userAgent }

func (c Config) MaxAttempt() int                        { return c.maxAttempt }
func (c Config) BackoffInitialDuration() time.Duration  { return c.backoffInitialDuration }
func (c Config) BackoffMultiplier() float64             { return c.backoffMultiplier }
func (c Config) BackoffMaxDuration() time.Duration      { return c.backoffMaxDuration }

func (c Config) PerRequestTimeout() time.Duration { return c.perRequestTimeout }
func (c Config) PerCrawlTimeout() time.Duration   { return c.perCrawlTimeout }

func (c Config) TranslationServerURL() string  { return c.translationServerURL }
func (c Config) MaxConcurrentRequests() int    { return c.maxConcurrentRequests }
func (c Config) MaxSearchBatchSize() int       { return c.maxSearchBatchSize }

func (c Config) MaxTaskletsFor(kind descriptor.TaskKind) int {
	if cap, ok := c.maxTasklets[kind]; ok {
		return cap
	}
	return 1
}

func (c Config) MapDirectory() string     { return c.mapDirectory }
func (c Config) ProgressFilePath() string { return c.progressFilePath }
func (c Config) HashSidecarPath() string  { return c.hashSidecarPath }
func (c Config) RecordOutputDir() string  { return c.recordOutputDir }
func (c Config) ArchiveDir() string       { return c.archiveDir }
func (c Config) ArchiveEnabled() bool     { return c.archiveEnabled }
func (c Config) DryRun() bool             { return c.dryRun }

func (c Config) DeliveryFalsePositiveRate() float64 { return c.deliveryFalsePositiveRate }
func (c Config) ExpectedDeliveredItems() uint        { return c.expectedDeliveredItems }
