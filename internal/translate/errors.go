package translate

import (
	"fmt"

	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/pkg/failure"
)

type TranslationErrorCause string

const (
	ErrCauseBusy             TranslationErrorCause = "translation server busy"
	ErrCauseProtocol         TranslationErrorCause = "protocol error"
	ErrCauseTranslatorError  TranslationErrorCause = "translator internal error"
	ErrCauseUnexpectedStatus TranslationErrorCause = "unexpected status"
	ErrCauseNetwork          TranslationErrorCause = "network failure"
)

// TranslationError reports a failure from the external translation
// server. Per §7, a 500 is terminal for the item and a busy semaphore
// timeout is transient; Retryable reflects that distinction directly
// rather than being inferred by callers.
type TranslationError struct {
	Message   string
	Retryable bool
	Cause     TranslationErrorCause
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translation error: %s: %s", e.Cause, e.Message)
}

func (e *TranslationError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *TranslationError) IsRetryable() bool {
	return e.Retryable
}

func mapTranslationErrorToMetadataCause(err *TranslationError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseBusy:
		return metadata.CauseTranslation
	case ErrCauseProtocol:
		return metadata.CauseContentInvalid
	case ErrCauseTranslatorError:
		return metadata.CauseTranslation
	case ErrCauseUnexpectedStatus:
		return metadata.CauseTranslation
	case ErrCauseNetwork:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}

// MetadataCause exposes mapTranslationErrorToMetadataCause to callers
// outside this package (the scheduler records errors through a single
// metadata.ErrorCause field and has no other way to see Cause's finer
// distinctions).
func (e *TranslationError) MetadataCause() metadata.ErrorCause {
	return mapTranslationErrorToMetadataCause(e)
}
