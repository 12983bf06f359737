// Package rss implements C7: parses a syndication feed into candidate
// item URLs and enqueues a translation task for each one not already
// delivered.
package rss

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ubtue/ztsharvest/internal/descriptor"
	"github.com/ubtue/ztsharvest/pkg/failure"
)

// Emitter receives one translation task per undelivered feed item.
type Emitter interface {
	EnqueueTranslation(item descriptor.HarvestableItem)
	AlreadyDelivered(url string) bool
}

// Stats reports how a feed was processed, for C10's run summary.
type Stats struct {
	ItemsQueued  int
	ItemsSkipped int
}

// Processor parses one journal's feed.
type Processor struct {
	parser  *gofeed.Parser
	emitter Emitter
}

func NewProcessor(emitter Emitter) *Processor {
	return &Processor{parser: gofeed.NewParser(), emitter: emitter}
}

// ProcessURL fetches and parses the feed at feedURL.
func (p *Processor) ProcessURL(ctx context.Context, feedURL string, journal *descriptor.JournalDescriptor) (Stats, failure.ClassifiedError) {
	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return Stats{}, &FeedError{Message: fmt.Sprintf("fetching %s: %v", feedURL, err), Retryable: true}
	}
	return p.process(feed, journal), nil
}

// ProcessText parses feed content already held in memory (e.g. supplied
// by a caller that fetched it through the scheduler for cache/coalescing
// benefits).
func (p *Processor) ProcessText(text string, journal *descriptor.JournalDescriptor) (Stats, failure.ClassifiedError) {
	feed, err := p.parser.ParseString(text)
	if err != nil {
		return Stats{}, &FeedError{Message: fmt.Sprintf("parsing feed text: %v", err), Retryable: false}
	}
	return p.process(feed, journal), nil
}

func (p *Processor) process(feed *gofeed.Feed, journal *descriptor.JournalDescriptor) Stats {
	var stats Stats
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}
		if p.emitter.AlreadyDelivered(item.Link) {
			stats.ItemsSkipped++
			continue
		}

		publishedAt := parseItemDate(item, journal.StrptimeFormat)

		u, err := parseURL(item.Link)
		if err != nil {
			stats.ItemsSkipped++
			continue
		}
		harvestItem := descriptor.NewHarvestableItem(u, journal, 0)
		harvestItem.QueuedAt = publishedAt
		p.emitter.EnqueueTranslation(harvestItem)
		stats.ItemsQueued++
	}
	return stats
}

func parseItemDate(item *gofeed.Item, strptimeFormat string) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Now()
}

func parseURL(raw string) (url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return url.URL{}, err
	}
	return *u, nil
}
