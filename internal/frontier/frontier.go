package frontier

import (
	"sync"

	"github.com/ubtue/ztsharvest/internal/descriptor"
)

/*
Frontier Responsibilities
- Hold one FIFO queue per (domain, TaskKind) pair
- Deduplicate URLs per domain
- Dispense tokens in TaskKind priority order, round-robining across domains
- Knows nothing about:
	- fetching
	- robots policy
	- translation
	- rate limiting

It is a data structure module, not a pipeline executor: every candidate
reaching Submit has already cleared the scheduler's admission gate.
*/

type domainQueues struct {
	byKind map[descriptor.TaskKind]*FIFOQueue[CrawlAdmissionCandidate]
	seen   Set[string]
}

func newDomainQueues() *domainQueues {
	dq := &domainQueues{
		byKind: make(map[descriptor.TaskKind]*FIFOQueue[CrawlAdmissionCandidate]),
		seen:   NewSet[string](),
	}
	for _, k := range descriptor.TaskKinds() {
		q := NewFIFOQueue[CrawlAdmissionCandidate]()
		dq.byKind[k] = q
	}
	return dq
}

// Frontier is the shared multi-domain, multi-kind admitted-work queue the
// scheduler dispatches from. Safe for concurrent Submit/Dequeue.
type Frontier struct {
	mu           sync.Mutex
	domains      map[string]*domainQueues
	domainOrder  []string
	nextDomainAt int
	visited      int
}

func NewFrontier() Frontier {
	return Frontier{domains: make(map[string]*domainQueues)}
}

// Submit enqueues an already-admitted candidate onto its domain's kind
// queue, deduplicating by target URL within that domain.
func (f *Frontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	domain := candidate.TargetURL().Host
	dq, ok := f.domains[domain]
	if !ok {
		dq = newDomainQueues()
		f.domains[domain] = dq
		f.domainOrder = append(f.domainOrder, domain)
	}

	targetURL := candidate.TargetURL()
	key := targetURL.String()
	if dq.seen.Contains(key) {
		return
	}
	dq.seen.Add(key)
	dq.byKind[candidate.Kind()].Enqueue(candidate)
	f.visited++
}

// Dequeue returns the next token in TaskKind priority order from the next
// domain in round-robin order that has anything ready, so no single
// domain can starve the others of dispatch attention.
func (f *Frontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.domainOrder)
	for i := 0; i < n; i++ {
		idx := (f.nextDomainAt + i) % n
		domain := f.domainOrder[idx]
		dq := f.domains[domain]
		for _, kind := range descriptor.TaskKinds() {
			q := dq.byKind[kind]
			if candidate, ok := q.Dequeue(); ok {
				f.nextDomainAt = (idx + 1) % n
				return NewCrawlTokenForItem(domain, kind, candidate.Item()), true
			}
		}
	}
	return CrawlToken{}, false
}

// DequeueKind pops the next token of a specific kind from domain, used by
// the dispatch loop once it has already decided domain+kind has budget.
func (f *Frontier) DequeueKind(domain string, kind descriptor.TaskKind) (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	dq, ok := f.domains[domain]
	if !ok {
		return CrawlToken{}, false
	}
	candidate, ok := dq.byKind[kind].Dequeue()
	if !ok {
		return CrawlToken{}, false
	}
	return NewCrawlTokenForItem(domain, kind, candidate.Item()), true
}

// Domains returns the known domains in first-seen order, for the
// scheduler's round-robin dispatch sweep.
func (f *Frontier) Domains() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.domainOrder))
	copy(out, f.domainOrder)
	return out
}

// PendingCount reports how many candidates of kind remain queued for domain.
func (f *Frontier) PendingCount(domain string, kind descriptor.TaskKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	dq, ok := f.domains[domain]
	if !ok {
		return 0
	}
	return dq.byKind[kind].Size()
}

// VisitedCount reports how many distinct URLs have ever been admitted.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited
}

// Init exists for compatibility with callers that previously configured
// the frontier from a loaded config; the new Frontier needs no seed state
// beyond what Submit populates lazily.
func (f *Frontier) Init() {
	if f.domains == nil {
		f.domains = make(map[string]*domainQueues)
	}
}
