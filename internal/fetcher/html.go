package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/rehttp"
	"github.com/aybabtme/iocontrol"
	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/pkg/failure"
	"github.com/ubtue/ztsharvest/pkg/retry"
)

/*
Responsibilities

- Perform a single HTTP request for a harvestable item's download URL
- Apply headers, timeouts, and a per-response size cap
- Follow redirects within a bounded chain, preserving cookies across hops
- Classify responses into retryable or terminal fetcher errors

The fetcher never interprets bibliographic content; it only returns bytes
and metadata. Robots-txt admission is decided by the caller (the
scheduler) before a fetch is ever attempted here.
*/

// DefaultMaxBodyBytes caps a single response body. A larger body of a
// text-like type (see isTextContent) is truncated to the cap; any other
// type is a terminal fetch error (DOCUMENT_TOO_LARGE in spec terms).
const DefaultMaxBodyBytes = 50 * 1024 * 1024

// DefaultMetaRefreshDelayThreshold is the maximum http-equiv refresh delay
// the fetcher will follow automatically; a longer delay is left for the
// caller to decide whether to revisit.
const DefaultMetaRefreshDelayThreshold = 30 * time.Second

// MaxHTTPEquivRedirects bounds how many http-equiv refresh hops a single
// Fetch call will follow.
const MaxHTTPEquivRedirects = 1

type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	maxBodyBytes int64
}

func NewHtmlFetcher(metadataSink metadata.MetadataSink) HtmlFetcher {
	jar, _ := cookiejar.New(nil)
	transport := rehttp.NewTransport(
		http.DefaultTransport,
		rehttp.RetryAll(
			rehttp.RetryMaxRetries(2),
			rehttp.RetryTemporaryErr(),
		),
		rehttp.ExpJitterDelay(200*time.Millisecond, 5*time.Second),
	)
	return HtmlFetcher{
		metadataSink: metadataSink,
		maxBodyBytes: DefaultMaxBodyBytes,
		httpClient: &http.Client{
			Jar:       jar,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
	}
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	journal string,
	crawlDepth int,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	result, err := h.fetchWithRetry(ctx, fetchParam, retryParam)

	duration := time.Since(startTime)

	var statusCode int
	var contentType string
	var retryCount int

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			retryCount = retryParam.MaxAttempts
		}
	} else {
		statusCode = result.Code()
		contentType = h.extractContentType(result.Headers())
	}

	h.metadataSink.RecordFetch(journal, metadata.NewFetchEvent(
		fetchParam.fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		retryCount,
		crawlDepth,
	))

	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			h.recordRetryError(callerMethod, fetchParam.fetchUrl, retryErr)
		} else {
			h.recordFetchError(callerMethod, fetchParam.fetchUrl, err)
		}
		return FetchResult{}, err
	}

	return result, nil
}

// SetMaxBodyBytesForTest overrides the response-body size cap, letting
// tests exercise the oversized-document policy without a 50 MiB fixture.
func (h *HtmlFetcher) SetMaxBodyBytesForTest(maxBodyBytes int64) {
	h.maxBodyBytes = maxBodyBytes
}

func (h *HtmlFetcher) extractContentType(headers map[string]string) string {
	return headers["Content-Type"]
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		h.metadataSink.RecordError(metadata.NewErrorRecord(
			"fetcher",
			callerMethod,
			mapFetchErrorToMetadataCause(fetchError),
			err.Error(),
			time.Now(),
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		))
	}
}

func (h *HtmlFetcher) recordRetryError(callerMethod string, fetchUrl url.URL, retryErr *retry.RetryError) {
	h.metadataSink.RecordError(metadata.NewErrorRecord(
		"fetcher",
		callerMethod,
		metadata.CauseRetryFailure,
		retryErr.Error(),
		time.Now(),
		metadata.NewAttr(metadata.AttrMessage, retryErr.Error()),
		metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
	))
}

func (h *HtmlFetcher) fetchWithRetry(ctx context.Context, fetchParam FetchParam, retryParam retry.RetryParam) (FetchResult, failure.ClassifiedError) {
	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchParam)
	}

	result, retryErr := retry.Retry(retryParam, fetchTask)
	if retryErr != nil {
		var fetchErr *FetchError
		if errors.As(retryErr, &fetchErr) {
			return FetchResult{}, fetchErr
		}
		return FetchResult{}, retryErr
	}

	return h.followMetaRefresh(ctx, fetchParam, result, MaxHTTPEquivRedirects), nil
}

// followMetaRefresh inspects result's body for an http-equiv refresh meta
// tag and, if its delay is below DefaultMetaRefreshDelayThreshold, fetches
// the target URL once and returns that page instead. A broken or missing
// target falls back to the original result rather than failing the fetch.
func (h *HtmlFetcher) followMetaRefresh(ctx context.Context, fetchParam FetchParam, result FetchResult, redirectsRemaining int) FetchResult {
	if redirectsRemaining <= 0 {
		return result
	}

	target, delay, ok := parseMetaRefresh(result.Body(), result.URL())
	if !ok || delay >= DefaultMetaRefreshDelayThreshold {
		return result
	}

	nextParam := NewFetchParamWithLanguage(*target, fetchParam.userAgent, fetchParam.acceptLanguage)
	next, err := h.performFetch(ctx, nextParam)
	if err != nil {
		return result
	}

	return h.followMetaRefresh(ctx, nextParam, next, redirectsRemaining-1)
}

// parseMetaRefresh looks for the first `<meta http-equiv="refresh">` tag in
// body and resolves its target URL against base.
func parseMetaRefresh(body []byte, base url.URL) (*url.URL, time.Duration, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, false
	}

	var target *url.URL
	var delay time.Duration
	found := false

	doc.Find(`meta[http-equiv]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(equiv, "refresh") {
			return true
		}
		content, _ := s.Attr("content")
		d, rawURL, ok := parseRefreshContent(content)
		if !ok {
			return true
		}
		ref, err := url.Parse(rawURL)
		if err != nil {
			return true
		}
		delay = d
		resolved := base.ResolveReference(ref)
		target = resolved
		found = true
		return false
	})

	return target, delay, found
}

// parseRefreshContent parses a refresh meta tag's content attribute, e.g.
// `5; url=https://example.com/next` or `5;URL='/next'`.
func parseRefreshContent(content string) (time.Duration, string, bool) {
	parts := strings.SplitN(content, ";", 2)
	seconds, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || len(parts) < 2 {
		return 0, "", false
	}

	rest := strings.TrimSpace(parts[1])
	rest = strings.TrimPrefix(rest, "url=")
	rest = strings.TrimPrefix(rest, "URL=")
	rest = strings.Trim(rest, `"'`)
	if rest == "" {
		return 0, "", false
	}

	return time.Duration(seconds) * time.Second, rest, true
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	fetchUrl := fetchParam.fetchUrl
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	for key, value := range requestHeaders(fetchParam.userAgent, fetchParam.acceptLanguage) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}
	case resp.StatusCode == 429:
		return FetchResult{}, &FetchError{
			Message:   "rate limited (429)",
			Retryable: true,
			Cause:     ErrCauseRequestTooMany,
		}
	case resp.StatusCode == 403:
		return FetchResult{}, &FetchError{
			Message:   "access forbidden (403)",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("redirect error: %d", resp.StatusCode),
			Retryable: false,
			Cause:     ErrCauseRedirectLimitExceeded,
		}
	}

	if !isHTMLContent(resp.Header.Get("Content-Type")) {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("unsupported content type: %s", resp.Header.Get("Content-Type")),
			Retryable: false,
			Cause:     ErrCauseContentTypeInvalid,
		}
	}

	limited := iocontrol.NewMeasuredReader(io.LimitReader(resp.Body, h.maxBodyBytes+1))
	body, err := io.ReadAll(limited)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}
	if int64(len(body)) > h.maxBodyBytes {
		if !isTextContent(resp.Header.Get("Content-Type")) {
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("document exceeds size cap of %d bytes", h.maxBodyBytes),
				Retryable: false,
				Cause:     ErrCauseDocumentTooLarge,
			}
		}
		body = body[:h.maxBodyBytes]
	}

	responseHeaders := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	return FetchResult{
		url:       fetchUrl,
		body:      body,
		fetchedAt: time.Now(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: responseHeaders,
		},
	}, nil
}

func isHTMLContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml") ||
		strings.Contains(contentType, "application/xml") ||
		strings.Contains(contentType, "text/xml") ||
		strings.Contains(contentType, "application/rss+xml") ||
		strings.Contains(contentType, "application/atom+xml") ||
		strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "application/pdf")
}

// isTextContent reports whether contentType is text in the sense the
// oversized-document policy cares about: truncate rather than reject.
// application/pdf is the one isHTMLContent-accepted type excluded here,
// since truncating a binary PDF stream does not yield a usable prefix.
func isTextContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml") ||
		strings.Contains(contentType, "application/xml") ||
		strings.Contains(contentType, "text/xml") ||
		strings.Contains(contentType, "application/rss+xml") ||
		strings.Contains(contentType, "application/atom+xml") ||
		strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "text/plain")
}

func requestHeaders(userAgent, acceptLanguage string) map[string]string {
	if acceptLanguage == "" {
		acceptLanguage = "en-US,en;q=0.5"
	}
	// Accept-Encoding is deliberately left unset: net/http's transport
	// advertises and transparently decodes gzip on our behalf only when
	// we don't set it ourselves.
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": acceptLanguage,
		"Connection":      "keep-alive",
	}
}
