package scheduler

import (
	"github.com/ubtue/ztsharvest/internal/descriptor"
)

// RecordSink receives every successfully completed translation DownloadResult
// for downstream record synthesis. Left unset, translated results are still
// cached and counted but nothing is emitted — useful for the single-site
// crawl CLI, which has no record pipeline.
type RecordSink interface {
	Emit(result descriptor.DownloadResult)
}

// ArchiveSink receives every successfully completed direct-query
// DownloadResult for optional local archival. Left unset (archival
// disabled in config), direct-query bodies are cached for translation
// but never archived to disk.
type ArchiveSink interface {
	Archive(result descriptor.DownloadResult)
}

// CrawlSummary is the terminal, derived report ExecuteHarvest returns once
// every seeded job and everything it transitively enqueued has drained.
type CrawlSummary struct {
	TotalHarvested int
	TotalSkipped   int
	TotalErrors    int
	DurationMs     int64
}

func opForKind(kind descriptor.TaskKind) descriptor.Operation {
	if kind == descriptor.KindTranslation || kind == descriptor.KindAPIQuery {
		return descriptor.OpUseTranslationServer
	}
	return descriptor.OpDirectQuery
}
