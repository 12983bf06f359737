package rss

import (
	"fmt"

	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/pkg/failure"
)

// FeedError reports a failure fetching or parsing a syndication feed.
type FeedError struct {
	Message   string
	Retryable bool
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed error: %s", e.Message)
}

func (e *FeedError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FeedError) IsRetryable() bool {
	return e.Retryable
}

func mapFeedErrorToMetadataCause(err *FeedError) metadata.ErrorCause {
	if err.Retryable {
		return metadata.CauseNetworkFailure
	}
	return metadata.CauseContentInvalid
}

// MetadataCause exposes mapFeedErrorToMetadataCause to callers outside this
// package (the scheduler records errors through a single metadata.ErrorCause
// field and has no other way to see FeedError's internal Retryable bit).
func (e *FeedError) MetadataCause() metadata.ErrorCause {
	return mapFeedErrorToMetadataCause(e)
}
