package robots

/*
Responsibilities

- Fetch robots.txt per host, lazily, the first time a host is seen
- Cache rules for the remainder of the crawl
- Enforce allow/disallow rules before a URL is admitted to the frontier

Robots checks occur before a URL enters the frontier.
*/

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/internal/robots/cache"
)

// CachedRobot answers admission and delay questions for every host seen
// during a run. The first Decide() for a host triggers a synchronous
// robots.txt fetch; every subsequent call for that host is served from
// the cache.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	userAgent    string
	fetcher      *RobotsFetcher

	mu         sync.RWMutex
	rules      map[string]ruleSet
	maxEntries int
}

// NewCachedRobot builds a CachedRobot around the given observability
// sink. Call Init or InitWithCache before the first Decide.
func NewCachedRobot(metadataSink metadata.MetadataSink) *CachedRobot {
	return &CachedRobot{
		metadataSink: metadataSink,
		userAgent:    "ztsharvest",
		rules:        make(map[string]ruleSet),
		maxEntries:   4096,
	}
}

// Init configures the user agent used both for fetching robots.txt and
// for user-agent-group matching, backed by an in-memory robots.txt cache.
func (c *CachedRobot) Init(userAgent string) {
	c.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache is Init with caller-supplied robots.txt response cache,
// letting tests and long-running daemons choose their own cache policy.
func (c *CachedRobot) InitWithCache(userAgent string, robotsCache cache.Cache) {
	c.userAgent = userAgent
	c.fetcher = NewRobotsFetcher(c.metadataSink, userAgent, robotsCache)
}

// Decide answers "may fetch?" for u, fetching and caching u.Host's
// robots.txt on first use. An unreachable or malformed robots.txt is
// surfaced as an error; callers that prefer fail-open behavior on
// network errors should retry per §7's transient-error policy rather
// than treat the failure as a denial.
func (c *CachedRobot) Decide(u url.URL) (Decision, *RobotsError) {
	if canonicalPath(u.Path) == "/robots.txt" {
		return Decision{Url: u, Allowed: true, Reason: AllowedByRobots}, nil
	}

	rs, err := c.ruleSetFor(u)
	if err != nil {
		return Decision{}, err
	}

	return decide(rs, u), nil
}

func (c *CachedRobot) ruleSetFor(u url.URL) (ruleSet, *RobotsError) {
	c.mu.RLock()
	rs, ok := c.rules[u.Host]
	c.mu.RUnlock()
	if ok {
		return rs, nil
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	result, ferr := c.fetcher.Fetch(context.Background(), scheme, u.Host)
	if ferr != nil {
		c.metadataSink.RecordError(metadata.NewErrorRecord(
			"robots", "CachedRobot.Decide",
			mapRobotsErrorToMetadataCause(ferr), ferr.Error(), time.Now(),
			metadata.NewAttr(metadata.AttrHost, u.Host),
		))
		return ruleSet{}, ferr
	}

	rs = MapResponseToRuleSet(result.Response, c.userAgent, result.FetchedAt)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rules) >= c.maxEntries {
		// Prefer simplicity over LRU accuracy for a small working set,
		// per §4.2: clear the whole cache rather than evict selectively.
		c.rules = make(map[string]ruleSet)
	}
	c.rules[u.Host] = rs
	return rs, nil
}

// decide applies §4.2's rule-matching semantics: the first rule (in
// declared order) whose canonicalized path prefix matches the
// canonicalized request path wins. An empty prefix on a DISALLOW rule
// means "disallow all"; on an ALLOW rule it means "allow all".
func decide(rs ruleSet, u url.URL) Decision {
	if !rs.hasGroups {
		return Decision{Url: u, Allowed: true, Reason: EmptyRuleSet}
	}
	if !rs.matchedGroup {
		return Decision{Url: u, Allowed: true, Reason: UserAgentNotMatched}
	}

	path := canonicalPath(u.Path)

	var delay time.Duration
	if rs.crawlDelay != nil {
		delay = *rs.crawlDelay
	}

	for _, rule := range rs.rules {
		if !matchesPrefix(path, rule.prefix) {
			continue
		}
		if rule.allow {
			return Decision{Url: u, Allowed: true, Reason: AllowedByRobots, CrawlDelay: delay}
		}
		return Decision{Url: u, Allowed: false, Reason: DisallowedByRobots, CrawlDelay: delay}
	}

	return Decision{Url: u, Allowed: true, Reason: NoMatchingRules, CrawlDelay: delay}
}

// matchesPrefix reports whether path satisfies prefix, interpreting the
// "$" end-anchor (as in `/$` or `/*.pdf$`) as requiring path to end at
// the preceding literal (or, with a wildcard, to start with the part
// before it and end with the part after it).
func matchesPrefix(path, prefix string) bool {
	if prefix == "" || prefix == "/" {
		return true
	}
	if strings.HasSuffix(prefix, "$") {
		literal := strings.TrimSuffix(prefix, "$")
		if idx := strings.Index(literal, "*"); idx != -1 {
			return strings.HasPrefix(path, literal[:idx]) && strings.HasSuffix(path, literal[idx+1:])
		}
		return path == literal
	}
	if strings.Contains(prefix, "*") {
		idx := strings.Index(prefix, "*")
		return strings.HasPrefix(path, prefix[:idx])
	}
	return strings.HasPrefix(path, prefix)
}

// canonicalPath implements §4.2 step 1: percent-decode every octet
// except %2F, then uppercase any remaining hex digits.
func canonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '%' && i+2 < len(path) && isHex(path[i+1]) && isHex(path[i+2]) {
			hex := strings.ToUpper(path[i+1 : i+3])
			if hex == "2F" {
				b.WriteString("%2F")
			} else if n, err := strconv.ParseInt(hex, 16, 32); err == nil {
				b.WriteByte(byte(n))
			} else {
				b.WriteString("%" + hex)
			}
			i += 2
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
