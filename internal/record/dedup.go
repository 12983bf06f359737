package record

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ubtue/ztsharvest/pkg/failure"
	"github.com/ubtue/ztsharvest/pkg/fileutil"
	"github.com/ubtue/ztsharvest/pkg/hashutil"
)

// FingerprintSet is the loaded/rewritten `previously_downloaded.hashes`
// sidecar: a set of content fingerprints, one per already-emitted record,
// computed over every significant field except the control number so a
// record re-synthesized on a later run with a new control number still
// dedupes against itself.
type FingerprintSet struct {
	mu   sync.Mutex
	path string
	seen map[string]struct{}
}

// LoadFingerprintSet reads path's newline-separated hex fingerprints. A
// missing sidecar yields an empty set, which is the normal state for a
// first run.
func LoadFingerprintSet(path string) (*FingerprintSet, failure.ClassifiedError) {
	content, err := fileutil.ReadIfExists(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			seen[line] = struct{}{}
		}
	}
	return &FingerprintSet{path: path, seen: seen}, nil
}

// Fingerprint computes the record's dedup key: a blake3 hash of every
// field but ControlNumber, so the same bibliographic content always
// fingerprints identically regardless of which run (or which monotonic
// control number) produced it.
func Fingerprint(rec Record) string {
	withoutControlNumber := rec
	withoutControlNumber.ControlNumber = ""
	encoded, _ := json.Marshal(withoutControlNumber)
	hash, _ := hashutil.HashBytes(encoded, hashutil.HashAlgoBLAKE3)
	return hash
}

// CheckAndAdd reports whether fingerprint was already present, adding it
// to the set if not. Callers skip emission (and count a
// previously-delivered hit) when this returns true.
func (s *FingerprintSet) CheckAndAdd(fingerprint string) (alreadySeen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[fingerprint]; ok {
		return true
	}
	s.seen[fingerprint] = struct{}{}
	return false
}

// Save rewrites the sidecar file with every fingerprint currently in the
// set, truncate-then-write, matching the progress file's update strategy.
func (s *FingerprintSet) Save() failure.ClassifiedError {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	for fp := range s.seen {
		buf.WriteString(fp)
		buf.WriteByte('\n')
	}
	return fileutil.TruncateAndWrite(s.path, buf.Bytes())
}

// Len reports how many fingerprints are currently tracked.
func (s *FingerprintSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
