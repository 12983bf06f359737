// Package delivery implements C4: a read-only query over which URLs have
// already been delivered. The core only depends on the query semantics;
// the persistence backend is swappable.
package delivery

// Tracker answers "has this URL already been delivered?"
type Tracker interface {
	AlreadyDelivered(url string) bool
}

// BitsetTracker is a process-local Tracker backed by a Bloom filter: fast
// and memory-light for the common case of checking millions of URLs
// against a large prior-delivery set, at the cost of a small false-positive
// rate (a URL may be reported delivered when it was not — never the
// reverse). Deployments needing exact answers should back Tracker with a
// relational store instead; the interface does not care which.
type BitsetTracker struct {
	delivered *probableSet
}

// NewBitsetTracker builds a tracker sized for approximately expectedItems
// entries at the given false-positive rate.
func NewBitsetTracker(expectedItems uint, falsePositiveRate float64) *BitsetTracker {
	return &BitsetTracker{
		delivered: newProbableSet(expectedItems, falsePositiveRate),
	}
}

// MarkDelivered records url as delivered.
func (t *BitsetTracker) MarkDelivered(url string) {
	t.delivered.Add(url)
}

// AlreadyDelivered implements Tracker.
func (t *BitsetTracker) AlreadyDelivered(url string) bool {
	return t.delivered.Contains(url)
}

// StaticTracker is a Tracker fixture useful for tests and for the
// single-site crawl CLI, which has no persistent delivery history.
type StaticTracker struct {
	Delivered map[string]bool
}

func (t StaticTracker) AlreadyDelivered(url string) bool {
	if t.Delivered == nil {
		return false
	}
	return t.Delivered[url]
}
