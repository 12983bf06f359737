// Package translate wraps the external translation server (C5): an
// out-of-scope black-box HTTP service that converts a rendered page URL
// into structured citation JSON.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ubtue/ztsharvest/pkg/failure"
)

// BatchKind distinguishes a single citation array from the two-step
// multi-match protocol's result.
type BatchKind int

const (
	SingleBatch BatchKind = iota
	MultiBatch
	TranslatorUnavailable // HTTP 501: recorded as skipped, not an error
)

// Result is the outcome of a /web or /searchmultiple call.
type Result struct {
	Kind      BatchKind
	Citations json.RawMessage // JSON array of citation objects

	// ChildURLs holds every landing-page child URL the translation
	// server reported in a 300 Kind==MultiBatch response, so callers can
	// cache the same Citations under each child's own cache key (§4.5:
	// a later direct lookup of one child must be a cache hit, not a
	// second round trip through the server).
	ChildURLs []string
}

// Client talks to the translation server's /web, /searchmultiple, and
// /export endpoints, bounded by a process-wide semaphore so simultaneous
// translation calls never exceed MAX_CONCURRENT_TRANSLATION_SERVER_REQUESTS
// regardless of how many hosts are being harvested concurrently.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sem        chan struct{}
	sessionID  string
}

// NewClient builds a Client. maxConcurrent bounds simultaneous outbound
// calls to the translation server across the whole process.
func NewClient(baseURL string, perRequestTimeout time.Duration, maxConcurrent int) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: perRequestTimeout},
		sem:        make(chan struct{}, maxConcurrent),
		sessionID:  uuid.NewString(),
	}
}

// acquire bounds the semaphore wait to 3x the per-request time limit per
// §4.5; exceeding it yields TRANSLATION_SERVER_BUSY rather than blocking
// forever behind a saturated translation server.
func (c *Client) acquire(ctx context.Context, perRequestTimeout time.Duration) failure.ClassifiedError {
	timer := time.NewTimer(3 * perRequestTimeout)
	defer timer.Stop()
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return &TranslationError{Message: "translation server busy", Cause: ErrCauseBusy, Retryable: true}
	case <-ctx.Done():
		return &TranslationError{Message: ctx.Err().Error(), Cause: ErrCauseBusy, Retryable: true}
	}
}

func (c *Client) release() {
	<-c.sem
}

// Web posts url (and, if available, pre-fetched HTML) to /web and
// implements the 300-multiple-match round-trip protocol.
func (c *Client) Web(ctx context.Context, url string, cachedHTML string, perRequestTimeout time.Duration) (Result, failure.ClassifiedError) {
	if err := c.acquire(ctx, perRequestTimeout); err != nil {
		return Result{}, err
	}
	defer c.release()

	payload := map[string]string{"url": url, "sessionid": c.sessionID}
	if cachedHTML != "" {
		payload["cachedHTML"] = cachedHTML
	}

	body, status, cerr := c.post(ctx, "/web", payload, perRequestTimeout)
	if cerr != nil {
		return Result{}, cerr
	}

	switch status {
	case 200:
		return singleResult(body, url)
	case 300:
		// Multi-article landing page: the same request is re-POSTed
		// with an extended time budget to collect every child's
		// citation in the second response.
		var childLabels map[string]string
		if err := json.Unmarshal(body, &childLabels); err != nil {
			return Result{}, &TranslationError{Message: "malformed 300 body", Cause: ErrCauseProtocol}
		}
		secondBody, secondStatus, cerr := c.post(ctx, "/web", payload, 2*perRequestTimeout)
		if cerr != nil {
			return Result{}, cerr
		}
		if secondStatus != 200 {
			return Result{}, &TranslationError{Message: fmt.Sprintf("unexpected status %d on multi-match follow-up", secondStatus), Cause: ErrCauseProtocol}
		}
		if singleChildMatchesOriginal(secondBody, url) {
			return Result{}, &TranslationError{Message: "multi-match follow-up returned only the original URL", Cause: ErrCauseProtocol}
		}
		children := make([]string, 0, len(childLabels))
		for childURL := range childLabels {
			children = append(children, childURL)
		}
		return Result{Kind: MultiBatch, Citations: secondBody, ChildURLs: children}, nil
	case 500:
		return Result{}, &TranslationError{Message: "translator internal error", Cause: ErrCauseTranslatorError}
	case 501:
		return Result{Kind: TranslatorUnavailable}, nil
	default:
		return Result{}, &TranslationError{Message: fmt.Sprintf("unexpected status %d", status), Cause: ErrCauseUnexpectedStatus, Retryable: true}
	}
}

// SearchMultiple posts a batch of identifiers to /searchmultiple,
// filtering out already-delivered ids and capping the batch at
// maxBatchSize (400 per §4.5). If the filtered batch is empty, no
// network call is made.
func (c *Client) SearchMultiple(ctx context.Context, ids map[string]int, alreadyDelivered func(string) bool, maxBatchSize int, perRequestTimeout time.Duration) (Result, failure.ClassifiedError) {
	filtered := make(map[string]int, len(ids))
	for id, idx := range ids {
		if alreadyDelivered != nil && alreadyDelivered(id) {
			continue
		}
		if len(filtered) >= maxBatchSize {
			break
		}
		filtered[id] = idx
	}
	if len(filtered) == 0 {
		return Result{}, nil
	}

	if err := c.acquire(ctx, perRequestTimeout); err != nil {
		return Result{}, err
	}
	defer c.release()

	payload := map[string]any{"items": filtered, "sessionid": c.sessionID}
	body, status, cerr := c.post(ctx, "/searchmultiple", payload, perRequestTimeout)
	if cerr != nil {
		return Result{}, cerr
	}

	switch status {
	case 200:
		return Result{Kind: SingleBatch, Citations: body}, nil
	case 300:
		secondBody, secondStatus, cerr := c.post(ctx, "/searchmultiple", payload, 2*perRequestTimeout)
		if cerr != nil {
			return Result{}, cerr
		}
		if secondStatus != 200 {
			return Result{}, &TranslationError{Message: fmt.Sprintf("unexpected status %d on multi-match follow-up", secondStatus), Cause: ErrCauseProtocol}
		}
		return Result{Kind: MultiBatch, Citations: secondBody}, nil
	case 500:
		return Result{}, &TranslationError{Message: "translator internal error", Cause: ErrCauseTranslatorError}
	case 501:
		return Result{Kind: TranslatorUnavailable}, nil
	default:
		return Result{}, &TranslationError{Message: fmt.Sprintf("unexpected status %d", status), Cause: ErrCauseUnexpectedStatus, Retryable: true}
	}
}

// Export posts citation JSON to /export?format=<fmt> and returns the
// converted body verbatim.
func (c *Client) Export(ctx context.Context, format string, citation json.RawMessage, perRequestTimeout time.Duration) ([]byte, failure.ClassifiedError) {
	if err := c.acquire(ctx, perRequestTimeout); err != nil {
		return nil, err
	}
	defer c.release()

	reqCtx, cancel := context.WithTimeout(ctx, perRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/export?format="+format, bytes.NewReader(citation))
	if err != nil {
		return nil, &TranslationError{Message: err.Error(), Cause: ErrCauseProtocol}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TranslationError{Message: err.Error(), Cause: ErrCauseNetwork, Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TranslationError{Message: err.Error(), Cause: ErrCauseNetwork, Retryable: true}
	}
	if resp.StatusCode != 200 {
		return nil, &TranslationError{Message: fmt.Sprintf("export failed: %d", resp.StatusCode), Cause: ErrCauseUnexpectedStatus, Retryable: true}
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, timeout time.Duration) ([]byte, int, failure.ClassifiedError) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, &TranslationError{Message: err.Error(), Cause: ErrCauseProtocol}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, &TranslationError{Message: err.Error(), Cause: ErrCauseProtocol}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TranslationError{Message: err.Error(), Cause: ErrCauseNetwork, Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &TranslationError{Message: err.Error(), Cause: ErrCauseNetwork, Retryable: true}
	}
	return body, resp.StatusCode, nil
}

func singleResult(body []byte, originalURL string) (Result, failure.ClassifiedError) {
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err != nil {
		return Result{}, &TranslationError{Message: "malformed citation array", Cause: ErrCauseProtocol}
	}
	return Result{Kind: SingleBatch, Citations: body}, nil
}

// singleChildMatchesOriginal detects the pathological case in §4.5/§8: a
// 300 round-trip whose second response is a single-element array whose
// URL equals the original request URL.
func singleChildMatchesOriginal(body []byte, originalURL string) bool {
	var arr []map[string]any
	if err := json.Unmarshal(body, &arr); err != nil || len(arr) != 1 {
		return false
	}
	u, _ := arr[0]["url"].(string)
	return u == originalURL
}
