package fetcher

import (
	"context"
	"net/http"

	"github.com/ubtue/ztsharvest/pkg/failure"
	"github.com/ubtue/ztsharvest/pkg/retry"
)

type Fetcher interface {
	Init(httpClient *http.Client)
	Fetch(
		ctx context.Context,
		journal string,
		crawlDepth int,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}
