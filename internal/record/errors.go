package record

import (
	"fmt"

	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/pkg/failure"
)

// RecordErrorCause classifies why record synthesis or serialization
// failed.
type RecordErrorCause int

const (
	ErrCauseMalformedCitation RecordErrorCause = iota
	ErrCauseSidecarIO
)

// RecordError reports a failure synthesizing or serializing a
// bibliographic record. Malformed input is always fatal: a citation the
// translation server itself produced but that this package cannot parse
// indicates a protocol mismatch, not a transient condition.
type RecordError struct {
	Message string
	Cause   RecordErrorCause
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record error: %s", e.Message)
}

func (e *RecordError) Severity() failure.Severity {
	if e.Cause == ErrCauseSidecarIO {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func mapRecordErrorToMetadataCause(err *RecordError) metadata.ErrorCause {
	if err.Cause == ErrCauseSidecarIO {
		return metadata.CauseStorageFailure
	}
	return metadata.CauseContentInvalid
}

// causeOf resolves any failure.ClassifiedError Emit sees to a metadata
// cause, deferring to mapRecordErrorToMetadataCause for this package's own
// error type and falling back to CauseContentInvalid for anything else
// (e.g. a future Sink implementation that returns a foreign error type).
func causeOf(err failure.ClassifiedError) metadata.ErrorCause {
	if recErr, ok := err.(*RecordError); ok {
		return mapRecordErrorToMetadataCause(recErr)
	}
	return metadata.CauseContentInvalid
}
