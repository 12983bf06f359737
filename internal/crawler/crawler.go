// Package crawler implements C6: a bounded-depth BFS over a single site,
// driven by the scheduler's direct-download facility, emitting URLs that
// match a per-site extraction regex for translation and URLs that match
// a crawl-URL regex for further crawling.
package crawler

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ubtue/ztsharvest/internal/descriptor"
	"github.com/ubtue/ztsharvest/pkg/urlutil"
)

var defaultIgnoreRegex = regexp.MustCompile(`(?i)\.(css|js|jpg|jpeg|png|gif|svg|ico|woff2?|ttf|zip|mp3|mp4)$`)

// Downloader is the subset of the scheduler a Crawler needs: fetch one
// page directly (not a translation call) and hand back its outcome.
type Downloader interface {
	DirectDownload(ctx context.Context, item descriptor.HarvestableItem) (descriptor.DownloadResult, error)
}

// Emitter receives the crawler's two independent decisions per outlink:
// enqueue it for translation, or enqueue it for further crawling at the
// next depth.
type Emitter interface {
	EnqueueTranslation(item descriptor.HarvestableItem)
	AlreadyDelivered(url string) bool
}

// Stats summarizes one crawl for C10's run-summary line.
type Stats struct {
	PagesVisited        int
	UnsuccessfulFetches int
	ItemsHarvested      int
	ItemsSkipped        int
}

// Crawler runs one bounded-depth BFS against a single site.
type Crawler struct {
	downloader Downloader
	emitter    Emitter
	journal    *descriptor.JournalDescriptor

	crawlURLRegex   *regexp.Regexp
	extractionRegex *regexp.Regexp
	ignoreRegex     *regexp.Regexp

	maxDepth int
	timeout  time.Duration

	visited map[string]bool
	queued  map[string]bool
}

// New builds a Crawler for journal, compiling its optional regexes (an
// empty pattern matches everything, per §4.6).
func New(downloader Downloader, emitter Emitter, journal *descriptor.JournalDescriptor, timeout time.Duration) (*Crawler, error) {
	c := &Crawler{
		downloader:  downloader,
		emitter:     emitter,
		journal:     journal,
		maxDepth:    journal.MaxCrawlDepth,
		timeout:     timeout,
		ignoreRegex: defaultIgnoreRegex,
		visited:     make(map[string]bool),
		queued:      make(map[string]bool),
	}
	if journal.CrawlURLRegex != "" {
		re, err := regexp.Compile(journal.CrawlURLRegex)
		if err != nil {
			return nil, err
		}
		c.crawlURLRegex = re
	}
	if journal.ExtractionRegex != "" {
		re, err := regexp.Compile(journal.ExtractionRegex)
		if err != nil {
			return nil, err
		}
		c.extractionRegex = re
	}
	return c, nil
}

// Run executes the state machine described in §4.6: two queues,
// current_depth and next_depth, with remaining_depth counting down from
// maxDepth. It returns when continue? goes false or the wall-clock
// budget is exceeded.
func (c *Crawler) Run(ctx context.Context, start url.URL) Stats {
	deadline := time.Now().Add(c.timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var stats Stats
	currentDepth := []url.URL{urlutil.Canonicalize(start)}
	var nextDepth []url.URL
	remainingDepth := c.maxDepth

	for c.shouldContinue(&currentDepth, &nextDepth, &remainingDepth) {
		if ctx.Err() != nil {
			return stats
		}

		u := currentDepth[0]
		currentDepth = currentDepth[1:]

		key := u.String()
		if c.visited[key] || c.ignoreRegex.MatchString(u.Path) {
			continue
		}
		c.visited[key] = true

		item := descriptor.NewHarvestableItem(u, c.journal, c.maxDepth-remainingDepth)
		result, err := c.downloader.DirectDownload(ctx, item)
		stats.PagesVisited++
		if err != nil || !result.Successful() {
			stats.UnsuccessfulFetches++
			continue
		}

		outlinks := extractOutlinks(u, result.Body)
		for _, out := range outlinks {
			outKey := out.String()

			harvest := (c.extractionRegex == nil || c.extractionRegex.MatchString(outKey)) &&
				!c.queued[outKey]
			if harvest {
				if c.emitter.AlreadyDelivered(outKey) {
					stats.ItemsSkipped++
				} else {
					c.queued[outKey] = true
					c.emitter.EnqueueTranslation(descriptor.NewHarvestableItem(out, c.journal, c.maxDepth-remainingDepth+1))
					stats.ItemsHarvested++
				}
			}

			if c.crawlURLRegex == nil || c.crawlURLRegex.MatchString(outKey) {
				if !c.visited[outKey] {
					nextDepth = append(nextDepth, out)
				}
			}
		}
	}

	return stats
}

// shouldContinue implements §4.6's continue? predicate: true while
// current_depth is non-empty; otherwise swaps in next_depth and
// decrements remaining_depth, stopping at zero.
func (c *Crawler) shouldContinue(current, next *[]url.URL, remainingDepth *int) bool {
	if len(*current) > 0 {
		return true
	}
	if *remainingDepth <= 0 || len(*next) == 0 {
		return false
	}
	*current = *next
	*next = nil
	*remainingDepth--
	return len(*current) > 0
}

// extractOutlinks applies the deterministic URL-extraction policy from
// §4.6: ignores duplicates within this page (via a local seen map),
// image-tag hrefs, fragment-only and javascript: links; every non-file
// target must have exactly origin's host; file:// targets are unrestricted.
func extractOutlinks(origin url.URL, body []byte) []url.URL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	var out []url.URL
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			return
		}

		resolved, err := origin.Parse(href)
		if err != nil {
			return
		}
		canon := urlutil.Canonicalize(*resolved)

		if canon.Scheme != "file" && canon.Host != origin.Host {
			return
		}

		key := canon.String()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, canon)
	})

	return out
}
