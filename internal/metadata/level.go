package metadata

import "strings"

// LogLevel filters which observational events a LeveledSink forwards.
// It never gates control flow — only how much gets written to the log.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
)

// ParseLogLevel maps a CLI-facing string to a LogLevel, defaulting to
// LevelInfo for anything unrecognized.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	default:
		return LevelInfo
	}
}

// LeveledSink wraps a MetadataSink and suppresses the routine, high-volume
// events (fetches, artifacts) below minLevel. Errors always pass through:
// a harvest's failures matter at every verbosity setting.
type LeveledSink struct {
	inner    MetadataSink
	minLevel LogLevel
}

// NewLeveledSink returns a MetadataSink that forwards to inner, filtered
// by minLevel.
func NewLeveledSink(inner MetadataSink, minLevel LogLevel) *LeveledSink {
	return &LeveledSink{inner: inner, minLevel: minLevel}
}

func (s *LeveledSink) RecordFetch(journal string, evt FetchEvent) {
	if s.minLevel <= LevelInfo {
		s.inner.RecordFetch(journal, evt)
	}
}

func (s *LeveledSink) RecordError(rec ErrorRecord) {
	s.inner.RecordError(rec)
}

func (s *LeveledSink) RecordArtifact(journal string, art ArtifactRecord) {
	if s.minLevel <= LevelInfo {
		s.inner.RecordArtifact(journal, art)
	}
}

// RecordFinalCrawlStats forwards unconditionally when inner implements
// CrawlFinalizer; the end-of-run summary line is never filtered.
func (s *LeveledSink) RecordFinalCrawlStats(journal string, totalPages, totalErrors, totalAssets int, durationMs int64) {
	if finalizer, ok := s.inner.(CrawlFinalizer); ok {
		finalizer.RecordFinalCrawlStats(journal, totalPages, totalErrors, totalAssets, durationMs)
	}
}
