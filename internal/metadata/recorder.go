package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"io"
	"strconv"
	"sync"

	"github.com/go-logfmt/logfmt"
)

// MetadataSink is implemented by anything that records the observational
// events emitted while an item is fetched, translated, or persisted. It is
// consulted for logging only; nothing downstream may branch on it.
type MetadataSink interface {
	RecordFetch(journal string, evt FetchEvent)
	RecordError(rec ErrorRecord)
	RecordArtifact(journal string, art ArtifactRecord)
}

// CrawlFinalizer is implemented by a sink that can also emit the one
// terminal summary line produced at the end of a harvest run.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(journal string, totalPages, totalErrors, totalAssets int, durationMs int64)
}

// Recorder writes logfmt-encoded lines to an underlying writer. Every
// Record* method is safe for concurrent use, since fetch and error events
// arrive from many worker goroutines concurrently.
type Recorder struct {
	mu  sync.Mutex
	enc *logfmt.Encoder
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: logfmt.NewEncoder(w)}
}

func (r *Recorder) RecordFetch(journal string, evt FetchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodeKV("event", "fetch")
	r.encodeKV("journal", journal)
	r.encodeKV("url", evt.fetchUrl)
	r.encodeKV("status", strconv.Itoa(evt.httpStatus))
	r.encodeKV("duration_ms", strconv.FormatInt(evt.duration.Milliseconds(), 10))
	r.encodeKV("content_type", evt.contentType)
	r.encodeKV("retries", strconv.Itoa(evt.retryCount))
	r.encodeKV("depth", strconv.Itoa(evt.crawlDepth))
	r.endLine()
}

func (r *Recorder) RecordError(rec ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodeKV("event", "error")
	r.encodeKV("package", rec.packageName)
	r.encodeKV("action", rec.action)
	r.encodeKV("cause", causeString(rec.cause))
	r.encodeKV("error", rec.errorString)
	r.encodeKV("time", rec.observedAt.UTC().Format("2006-01-02T15:04:05.000Z"))
	for _, a := range rec.attrs {
		r.encodeKV(string(a.Key), a.Value)
	}
	r.endLine()
}

func (r *Recorder) RecordArtifact(journal string, art ArtifactRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodeKV("event", "artifact")
	r.encodeKV("journal", journal)
	r.encodeKV("paths", art.paths)
	r.endLine()
}

func (r *Recorder) RecordFinalCrawlStats(journal string, totalPages, totalErrors, totalAssets int, durationMs int64) {
	stats := NewCrawlStats(totalPages, totalErrors, totalAssets, durationMs)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodeKV("event", "crawl_summary")
	r.encodeKV("journal", journal)
	r.encodeKV("pages", strconv.Itoa(stats.totalPages))
	r.encodeKV("errors", strconv.Itoa(stats.totalErrors))
	r.encodeKV("assets", strconv.Itoa(stats.totalAssets))
	r.encodeKV("duration_ms", strconv.FormatInt(stats.durationMs, 10))
	r.endLine()
}

func (r *Recorder) encodeKV(k, v string) {
	_ = r.enc.EncodeKeyval(k, v)
}

func (r *Recorder) endLine() {
	_ = r.enc.EndRecord()
}

func causeString(c ErrorCause) string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvariantViolation:
		return "invariant_violation"
	case CauseRetryFailure:
		return "retry_failure"
	case CauseTranslation:
		return "translation"
	case CausePolicySkip:
		return "policy_skip"
	default:
		return "unknown"
	}
}
