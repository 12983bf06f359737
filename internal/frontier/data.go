package frontier

/*
 Frontier - manages crawl state & ordering
*/

import (
	"net/url"
	"time"

	"github.com/ubtue/ztsharvest/internal/descriptor"
)

// CrawlToken
// Frontier-issued, per-URL crawl Token
// It represents: "This URL, at this depth, in this deterministic order, is next"
// It contains no semantic policy decisions.
// It represents ordering + depth metadata only.
type CrawlToken struct {
	url    url.URL
	depth  int
	domain string
	kind   descriptor.TaskKind
	item   descriptor.HarvestableItem
}

// NewCrawlToken creates a new CrawlToken with the given URL and depth.
// This constructor is provided for testing and internal use.
func NewCrawlToken(u url.URL, depth int) CrawlToken {
	return CrawlToken{
		url:   u,
		depth: depth,
	}
}

// NewCrawlTokenForItem builds a CrawlToken carrying the full admitted item,
// its domain queue family, and the domain it was dequeued from; this is
// what the scheduler's dispatch loop actually pulls off a domain's queues.
func NewCrawlTokenForItem(domain string, kind descriptor.TaskKind, item descriptor.HarvestableItem) CrawlToken {
	return CrawlToken{
		url:    item.URL,
		depth:  item.Depth,
		domain: domain,
		kind:   kind,
		item:   item,
	}
}

func (c *CrawlToken) URL() url.URL {
	return c.url
}

func (c *CrawlToken) Depth() int {
	return c.depth
}

func (c *CrawlToken) Domain() string {
	return c.domain
}

func (c *CrawlToken) Kind() descriptor.TaskKind {
	return c.kind
}

func (c *CrawlToken) Item() descriptor.HarvestableItem {
	return c.item
}

// CrawlAdmissionCandidate represents a URL that has already been
// admitted by the scheduler.
//
// Invariants:
// - Robots.txt checks have passed
// - Crawl scope and limits have been enforced
// - Frontier MUST treat this as an admitted URL
// - Frontier MUST NOT re-evaluate admission semantics
type CrawlAdmissionCandidate struct {
	// frontier MUST assume this URL is already admitted.
	targetURL url.URL

	// is it seed url or discovered during crawling?
	sourceContext SourceContext

	// additional information about the URL
	discoveryMetadata DiscoveryMetadata

	// which per-domain queue family this candidate is destined for
	kind descriptor.TaskKind

	// the admitted unit of work; carries ID/Journal/QueuedAt alongside
	// targetURL/discoveryMetadata, which remain the admission-time view
	item descriptor.HarvestableItem
}

func NewCrawlAdmissionCandidate(
	targetUrl url.URL,
	sourceContext SourceContext,
	discoveryMetadata DiscoveryMetadata,
	kind descriptor.TaskKind,
	item descriptor.HarvestableItem,
) CrawlAdmissionCandidate {
	return CrawlAdmissionCandidate{
		targetURL:         targetUrl,
		sourceContext:     sourceContext,
		discoveryMetadata: discoveryMetadata,
		kind:              kind,
		item:              item,
	}
}

func (c *CrawlAdmissionCandidate) TargetURL() url.URL {
	return c.targetURL
}

func (c *CrawlAdmissionCandidate) SourceContext() SourceContext {
	return c.sourceContext
}

func (c *CrawlAdmissionCandidate) DiscoveryMetadata() DiscoveryMetadata {
	return c.discoveryMetadata
}

func (c *CrawlAdmissionCandidate) Kind() descriptor.TaskKind {
	return c.kind
}

func (c *CrawlAdmissionCandidate) Item() descriptor.HarvestableItem {
	return c.item
}

type SourceContext string

const (
	SourceSeed  = "Seed"
	SourceCrawl = "Crawl"
)

type DiscoveryMetadata struct {
	// the depth of the path relative to hostname where the url is found
	// hostname/root -> depth = 0
	// TODO: implement delay overriding in both scheduler and frontier
	depth         int
	delayOverride *time.Duration
}

func NewDiscoveryMetadata(
	depth int,
	delayOverride *time.Duration,
) DiscoveryMetadata {
	return DiscoveryMetadata{
		depth:         depth,
		delayOverride: delayOverride,
	}
}

func (d DiscoveryMetadata) Depth() int {
	return d.depth
}

func (d DiscoveryMetadata) DelayOverride() *time.Duration {
	return d.delayOverride
}
