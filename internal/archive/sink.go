package archive

import (
	"time"

	"github.com/ubtue/ztsharvest/internal/descriptor"
)

// Sink adapts a Writer to the scheduler's ArchiveSink interface: every
// successfully completed direct-query DownloadResult is handed to
// Archive, and any failure is swallowed (already reported through
// metadataSink by the Writer itself) since archival is best-effort.
type Sink struct {
	writer *Writer
}

// NewSink wraps writer for use as a scheduler.ArchiveSink.
func NewSink(writer *Writer) *Sink {
	return &Sink{writer: writer}
}

// Archive implements scheduler.ArchiveSink.
func (s *Sink) Archive(result descriptor.DownloadResult) {
	journalName := ""
	if result.Item.Journal != nil {
		journalName = result.Item.Journal.Name
	}
	s.writer.Archive(result.Item.URL, journalName, result.Body, result.ResponseCode, time.Now())
}
