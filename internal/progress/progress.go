// Package progress implements C10: a resumable progress file, rewritten
// after every URL processed in a crawl, plus the error-taxonomy counters
// a run summary is built from. The logger only records; it never decides
// retry policy.
package progress

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ubtue/ztsharvest/pkg/failure"
	"github.com/ubtue/ztsharvest/pkg/fileutil"
)

// State is the resumable position recorded after each processed URL:
// how many URLs have been processed, how much crawl depth remains, and
// the last URL touched.
type State struct {
	ProcessedCount int
	RemainingDepth int
	LastURL        string
}

// Encode renders State as the single-line "<count>;<depth>;<url>" format
// the file persists.
func (s State) Encode() string {
	return fmt.Sprintf("%d;%d;%s", s.ProcessedCount, s.RemainingDepth, s.LastURL)
}

// ParseState decodes a progress-file line back into a State. An empty
// line (no prior run) yields the zero State.
func ParseState(line string) (State, failure.ClassifiedError) {
	line = strings.TrimSpace(line)
	if line == "" {
		return State{}, nil
	}
	parts := strings.SplitN(line, ";", 3)
	if len(parts) != 3 {
		return State{}, &ProgressError{
			Message: fmt.Sprintf("malformed progress line: %q", line),
		}
	}
	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return State{}, &ProgressError{Message: fmt.Sprintf("bad processed count: %v", err)}
	}
	depth, err := strconv.Atoi(parts[1])
	if err != nil {
		return State{}, &ProgressError{Message: fmt.Sprintf("bad remaining depth: %v", err)}
	}
	return State{ProcessedCount: count, RemainingDepth: depth, LastURL: parts[2]}, nil
}

// ProgressError reports a malformed progress file. It is always fatal:
// a corrupt resume file must stop the run rather than silently restart
// from scratch, since that would risk re-emitting already-delivered
// records.
type ProgressError struct {
	Message string
}

func (e *ProgressError) Error() string {
	return fmt.Sprintf("progress: %s", e.Message)
}

func (e *ProgressError) Severity() failure.Severity {
	return failure.SeverityFatal
}

// Tracker owns the progress file for one crawl and rewrites it after
// every URL processed.
type Tracker struct {
	mu   sync.Mutex
	path string
	cur  State
}

// NewTracker loads any prior progress recorded at path, returning a
// Tracker positioned at the resumed state (the zero State if no file, or
// an empty file, exists yet).
func NewTracker(path string) (*Tracker, failure.ClassifiedError) {
	content, ferr := fileutil.ReadIfExists(path)
	if ferr != nil {
		return nil, ferr
	}
	state, perr := ParseState(string(content))
	if perr != nil {
		return nil, perr
	}
	return &Tracker{path: path, cur: state}, nil
}

// Resume returns the state a prior run left off at.
func (t *Tracker) Resume() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// Advance records one more processed URL and truncate-rewrites the
// progress file. Write failures are surfaced to the caller rather than
// swallowed, since a crawl that believes it checkpointed when it did not
// could re-emit duplicate records on the next resume.
func (t *Tracker) Advance(lastURL string, remainingDepth int) failure.ClassifiedError {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.ProcessedCount++
	t.cur.RemainingDepth = remainingDepth
	t.cur.LastURL = lastURL
	return fileutil.TruncateAndWrite(t.path, []byte(t.cur.Encode()))
}
