package archive

import (
	"fmt"

	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/pkg/failure"
)

// ArchiveErrorCause classifies why a page could not be archived.
type ArchiveErrorCause int

const (
	ErrCauseContentRejected ArchiveErrorCause = iota
	ErrCauseWriteFailure
)

// ArchiveError reports a failure in the extract/sanitize/convert/write
// pipeline. A page this pipeline cannot turn into Markdown is skipped, not
// fatal to the harvest: archival is an enrichment, not a requirement.
type ArchiveError struct {
	Message   string
	Retryable bool
	Cause     ArchiveErrorCause
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive error: %s", e.Message)
}

func (e *ArchiveError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func mapArchiveErrorToMetadataCause(err *ArchiveError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWriteFailure:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseContentInvalid
	}
}
