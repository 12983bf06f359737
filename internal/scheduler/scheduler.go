// Package scheduler implements C8: the concurrent download manager that
// owns per-domain, per-kind queues, enforces a rate-limit gate and
// per-kind concurrency caps, and coalesces duplicate in-flight work
// through the response cache. It is the only component that talks to
// every other pipeline stage.
package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ubtue/ztsharvest/internal/cache"
	"github.com/ubtue/ztsharvest/internal/config"
	"github.com/ubtue/ztsharvest/internal/crawler"
	"github.com/ubtue/ztsharvest/internal/delivery"
	"github.com/ubtue/ztsharvest/internal/descriptor"
	"github.com/ubtue/ztsharvest/internal/fetcher"
	"github.com/ubtue/ztsharvest/internal/frontier"
	"github.com/ubtue/ztsharvest/internal/metadata"
	"github.com/ubtue/ztsharvest/internal/progress"
	"github.com/ubtue/ztsharvest/internal/robots"
	"github.com/ubtue/ztsharvest/internal/rss"
	"github.com/ubtue/ztsharvest/internal/translate"
	"github.com/ubtue/ztsharvest/pkg/failure"
	"github.com/ubtue/ztsharvest/pkg/limiter"
	"github.com/ubtue/ztsharvest/pkg/retry"
	"github.com/ubtue/ztsharvest/pkg/tasklet"
	"github.com/ubtue/ztsharvest/pkg/timeutil"
	"github.com/ubtue/ztsharvest/pkg/urlutil"
)

// dispatchCadence is the dispatch thread's polling interval.
const dispatchCadence = 32 * time.Millisecond

/*
Scheduler is the sole control-plane authority of the harvest.

It is the only component allowed to decide whether a discovered URL may
enter the crawl frontier, and the only component allowed to submit to the
frontier. Every other stage — fetcher, robots, cache, translation client,
crawler, rss processor — is invoked BY the scheduler, never the reverse.

Metadata emission is observational only and must never influence
scheduling, retries, or crawl termination.
*/
type Scheduler struct {
	cfg config.Config

	frontier        *frontier.Frontier
	robot           *robots.CachedRobot
	htmlFetcher     fetcher.Fetcher
	cache           *cache.ResponseCache
	deliveryTracker delivery.Tracker
	translateClient *translate.Client
	metadataSink    metadata.MetadataSink
	crawlFinalizer  metadata.CrawlFinalizer
	rateLimiter     limiter.RateLimiter
	sleeper         timeutil.Sleeper
	recordSink      RecordSink
	archiveSink     ArchiveSink

	progressTracker *progress.Tracker
	resumeApplied   bool

	retryParam retry.RetryParam

	activeCounts map[descriptor.TaskKind]*atomic.Int64
	maxTasklets  map[descriptor.TaskKind]int

	ingestMu     sync.Mutex
	ingestBuffer []frontier.CrawlAdmissionCandidate

	pendingMu sync.Mutex
	pending   map[uint64]*tasklet.Task

	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once

	counters *progressCountersAdapter
}

// progressCounters is the narrow slice of progress.Counters the scheduler
// consults; declared here as an interface so tests can supply a stub
// without importing the progress package's Tracker machinery.
type progressCounters interface {
	IncHarvested()
	IncPreviouslyDelivered()
	IncSkipped()
	IncError(cause metadata.ErrorCause)
}

// progressCountersAdapter tolerates a nil progressCounters so callers with
// no progress file (e.g. the single-site crawl CLI) don't need a stub.
type progressCountersAdapter struct {
	inner progressCounters
}

func (a *progressCountersAdapter) IncHarvested() {
	if a.inner != nil {
		a.inner.IncHarvested()
	}
}
func (a *progressCountersAdapter) IncPreviouslyDelivered() {
	if a.inner != nil {
		a.inner.IncPreviouslyDelivered()
	}
}
func (a *progressCountersAdapter) IncSkipped() {
	if a.inner != nil {
		a.inner.IncSkipped()
	}
}
func (a *progressCountersAdapter) IncError(cause metadata.ErrorCause) {
	if a.inner != nil {
		a.inner.IncError(cause)
	}
}

// NewScheduler builds a fully-wired Scheduler using the production
// implementation of every dependency.
func NewScheduler(cfg config.Config, metadataSink metadata.MetadataSink, crawlFinalizer metadata.CrawlFinalizer, counters progressCounters) *Scheduler {
	robot := robots.NewCachedRobot(metadataSink)
	robot.Init(cfg.UserAgent())

	htmlFetcher := fetcher.NewHtmlFetcher(metadataSink)

	deliveryTracker := delivery.NewBitsetTracker(cfg.ExpectedDeliveredItems(), cfg.DeliveryFalsePositiveRate())

	translateClient := translate.NewClient(cfg.TranslationServerURL(), cfg.PerRequestTimeout(), cfg.MaxConcurrentRequests())

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.DefaultDownloadDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(cfg.RandomSeed())

	sleeper := timeutil.NewRealSleeper()

	return NewSchedulerWithDeps(cfg, metadataSink, crawlFinalizer, counters, robot, &htmlFetcher, cache.NewResponseCache(), deliveryTracker, translateClient, rateLimiter, &sleeper)
}

// NewSchedulerWithDeps is NewScheduler with every dependency injected, for
// tests and for callers (like the single-site crawl CLI) that need a
// stripped-down wiring, e.g. a StaticTracker instead of a BitsetTracker.
func NewSchedulerWithDeps(
	cfg config.Config,
	metadataSink metadata.MetadataSink,
	crawlFinalizer metadata.CrawlFinalizer,
	counters progressCounters,
	robot *robots.CachedRobot,
	htmlFetcher fetcher.Fetcher,
	responseCache *cache.ResponseCache,
	deliveryTracker delivery.Tracker,
	translateClient *translate.Client,
	rateLimiter limiter.RateLimiter,
	sleeper timeutil.Sleeper,
) *Scheduler {
	f := frontier.NewFrontier()
	f.Init()

	activeCounts := make(map[descriptor.TaskKind]*atomic.Int64, len(descriptor.TaskKinds()))
	maxTasklets := make(map[descriptor.TaskKind]int, len(descriptor.TaskKinds()))
	for _, k := range descriptor.TaskKinds() {
		activeCounts[k] = &atomic.Int64{}
		maxTasklets[k] = cfg.MaxTaskletsFor(k)
	}

	return &Scheduler{
		cfg:             cfg,
		frontier:        &f,
		robot:           robot,
		htmlFetcher:     htmlFetcher,
		cache:           responseCache,
		deliveryTracker: deliveryTracker,
		translateClient: translateClient,
		metadataSink:    metadataSink,
		crawlFinalizer:  crawlFinalizer,
		rateLimiter:     rateLimiter,
		sleeper:         sleeper,
		retryParam:      RetryParamFromConfig(cfg),
		activeCounts:    activeCounts,
		maxTasklets:     maxTasklets,
		pending:         make(map[uint64]*tasklet.Task),
		counters:        &progressCountersAdapter{counters},
	}
}

// RetryParamFromConfig builds the retry parameters a fetch or translation
// call should use, sourced entirely from the loaded Config.
func RetryParamFromConfig(cfg config.Config) retry.RetryParam {
	backoff := timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration())
	return retry.NewRetryParam(cfg.DefaultDownloadDelay(), cfg.Jitter(), cfg.RandomSeed(), cfg.MaxAttempt(), backoff)
}

// SetRecordSink wires the record pipeline in; callers with no downstream
// record consumer (e.g. the single-site crawl CLI) may leave it unset.
func (s *Scheduler) SetRecordSink(sink RecordSink) {
	s.recordSink = sink
}

// SetArchiveSink wires in the optional local archival path; callers that
// leave archival disabled in config never need to call this.
func (s *Scheduler) SetArchiveSink(sink ArchiveSink) {
	s.archiveSink = sink
}

// SetProgressTracker wires in the resumable progress file (§4.10): the
// first KindCrawl seed submitted after this call resumes from the
// tracker's recorded position instead of the journal's configured
// StartURL, and every successfully completed direct-download or
// translation tasklet afterward re-checkpoints the tracker. Callers with
// no progress file never need to call this.
func (s *Scheduler) SetProgressTracker(tracker *progress.Tracker) {
	s.progressTracker = tracker
}

// Start launches the dispatch thread. Callers must call Stop before the
// process exits to join it cooperatively.
func (s *Scheduler) Start() {
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.dispatchLoop()
}

// Stop signals the dispatch thread to exit and waits for it, and for every
// worker it already launched, to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) dispatchLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(dispatchCadence)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.drainIngestion()
			s.dispatchOnce()
		}
	}
}

// drainIngestion moves everything callers have queued since the last cycle
// into the frontier's per-domain queues.
func (s *Scheduler) drainIngestion() {
	s.ingestMu.Lock()
	batch := s.ingestBuffer
	s.ingestBuffer = nil
	s.ingestMu.Unlock()

	for _, candidate := range batch {
		s.frontier.Submit(candidate)
	}
}

func (s *Scheduler) ingest(candidate frontier.CrawlAdmissionCandidate) {
	s.ingestMu.Lock()
	s.ingestBuffer = append(s.ingestBuffer, candidate)
	s.ingestMu.Unlock()
}

// dispatchOnce inspects every known domain; if its rate-limit gate is
// open, it pops and starts one tasklet in TaskKind priority order, bounded
// by the per-kind global cap, at most one new dispatch per domain per
// cycle.
func (s *Scheduler) dispatchOnce() {
	for _, domain := range s.frontier.Domains() {
		if !s.cfg.IgnoreRobots() && s.rateLimiter.ResolveDelay(domain) > 0 {
			continue
		}

		for _, kind := range descriptor.TaskKinds() {
			if s.activeCounts[kind].Load() >= int64(s.maxTasklets[kind]) {
				continue
			}
			if s.frontier.PendingCount(domain, kind) == 0 {
				continue
			}
			token, ok := s.frontier.DequeueKind(domain, kind)
			if !ok {
				continue
			}

			s.activeCounts[kind].Add(1)
			s.rateLimiter.MarkLastFetchAsNow(domain)
			s.wg.Add(1)
			go s.runTasklet(token, kind)
			break
		}
	}
}

func (s *Scheduler) runTasklet(token frontier.CrawlToken, kind descriptor.TaskKind) {
	defer s.wg.Done()
	defer s.activeCounts[kind].Add(-1)

	switch kind {
	case descriptor.KindDirectQuery, descriptor.KindTranslation:
		s.runFetchTasklet(token, kind)
	case descriptor.KindCrawl:
		s.runCrawlJob(token)
	case descriptor.KindRSSFeed:
		s.runRSSJob(token)
	case descriptor.KindAPIQuery:
		s.runAPIQueryJob(token)
	case descriptor.KindEmailCrawl:
		s.runEmailCrawlJob(token)
	}
}

// enqueueWork is the cache-and-coalescing choke point: a cache hit
// resolves synchronously with no task created; in-flight work is joined;
// a delivery hit for translation work completes immediately; otherwise
// the robots admission gate runs once and a fresh tasklet is registered
// and queued for the dispatch loop to pick up.
func (s *Scheduler) enqueueWork(item descriptor.HarvestableItem, kind descriptor.TaskKind) *tasklet.Future {
	op := opForKind(kind)
	canon := urlutil.Canonicalize(item.URL)
	key := descriptor.CacheKey{URL: canon.String(), Op: op}

	if cached, ok := s.cache.Lookup(key); ok {
		result := descriptor.DownloadResult{
			Item:         item,
			Op:           op,
			Body:         cached.Body,
			ResponseCode: 200,
			Flags:        descriptor.FlagFromCache,
		}
		return tasklet.Completed(result, nil)
	}

	task, future, started := s.cache.StartOrJoin(key)
	if !started {
		return future
	}

	if kind == descriptor.KindTranslation && s.deliveryTracker.AlreadyDelivered(canon.String()) {
		s.counters.IncSkipped()
		task.Finish(descriptor.DownloadResult{Item: item, Op: op, Flags: descriptor.FlagAlreadyDelivered}, nil)
		s.cache.Reap(key)
		return future
	}

	if !s.cfg.IgnoreRobots() {
		decision, rerr := s.robot.Decide(item.URL)
		if rerr != nil {
			s.rateLimiter.Backoff(item.URL.Host)
			task.Finish(descriptor.DownloadResult{}, rerr)
			s.cache.Reap(key)
			return future
		}
		if !decision.Allowed {
			s.counters.IncSkipped()
			s.metadataSink.RecordError(metadata.NewErrorRecord(
				"scheduler", "enqueueWork", metadata.CausePolicyDisallow, "denied by robots", time.Now(),
				metadata.NewAttr(metadata.AttrURL, canon.String()),
			))
			task.Finish(descriptor.DownloadResult{Item: item, Op: op}, nil)
			s.cache.Reap(key)
			return future
		}
		clamped := descriptor.ClampMinInterval(decision.CrawlDelay, s.cfg.DefaultDownloadDelay(), s.cfg.MaxDownloadDelay())
		s.rateLimiter.SetCrawlDelay(item.URL.Host, clamped)
	} else if override, ok := s.cfg.DelayOverrideFor(item.URL.Host); ok {
		s.rateLimiter.SetCrawlDelay(item.URL.Host, override)
	}

	s.registerPending(item.ID, task)

	candidate := frontier.NewCrawlAdmissionCandidate(item.URL, frontier.SourceCrawl, frontier.NewDiscoveryMetadata(item.Depth, nil), kind, item)
	s.ingest(candidate)

	return future
}

func (s *Scheduler) registerPending(id uint64, task *tasklet.Task) {
	s.pendingMu.Lock()
	s.pending[id] = task
	s.pendingMu.Unlock()
}

func (s *Scheduler) takePending(id uint64) *tasklet.Task {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	task := s.pending[id]
	delete(s.pending, id)
	return task
}

// runFetchTasklet executes one direct-download or translation tasklet
// popped by the dispatch loop, resolving the future every caller — the
// original enqueuer and anyone who coalesced onto it — is waiting on.
func (s *Scheduler) runFetchTasklet(token frontier.CrawlToken, kind descriptor.TaskKind) {
	item := token.Item()
	op := opForKind(kind)
	canon := urlutil.Canonicalize(item.URL)
	key := descriptor.CacheKey{URL: canon.String(), Op: op}

	task := s.takePending(item.ID)
	if task == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PerRequestTimeout())
	defer cancel()

	var result descriptor.DownloadResult
	var ferr failure.ClassifiedError

	switch kind {
	case descriptor.KindDirectQuery:
		journalName := ""
		if item.Journal != nil {
			journalName = item.Journal.Name
		}
		fetchResult, err := s.htmlFetcher.Fetch(ctx, journalName, item.Depth, fetcher.NewFetchParam(item.URL, s.cfg.UserAgent()), s.retryParam)
		if err != nil {
			ferr = err
		} else {
			result = descriptor.DownloadResult{
				Item:         item,
				Op:           op,
				Body:         fetchResult.Body(),
				Headers:      fetchResult.Headers(),
				ResponseCode: fetchResult.Code(),
			}
		}
	case descriptor.KindTranslation:
		cachedHTML, _ := s.cache.Lookup(descriptor.CacheKey{URL: canon.String(), Op: descriptor.OpDirectQuery})
		translated, err := s.translateClient.Web(ctx, canon.String(), string(cachedHTML.Body), s.cfg.PerRequestTimeout())
		if err != nil {
			ferr = err
		} else if translated.Kind == translate.TranslatorUnavailable {
			result = descriptor.DownloadResult{Item: item, Op: op, ResponseCode: 501}
		} else {
			result = descriptor.DownloadResult{Item: item, Op: op, Body: translated.Citations, ResponseCode: 200}
			for _, childURL := range translated.ChildURLs {
				parsed, parseErr := url.Parse(childURL)
				if parseErr != nil {
					continue
				}
				childCanon := urlutil.Canonicalize(*parsed)
				if childCanon.String() == canon.String() {
					continue
				}
				s.cache.Insert(descriptor.CacheKey{URL: childCanon.String(), Op: op}, descriptor.CachedDownloadData{
					Item: item, Op: op, Body: translated.Citations,
				})
			}
		}
	}

	if ferr != nil {
		s.rateLimiter.Backoff(item.URL.Host)
		s.counters.IncError(causeFromClassifiedError(ferr))
	} else {
		s.rateLimiter.ResetBackoff(item.URL.Host)
		if result.Successful() {
			s.cache.Insert(key, descriptor.CachedDownloadData{Item: item, Op: op, Body: result.Body})
			if kind == descriptor.KindTranslation {
				s.counters.IncHarvested()
				if s.recordSink != nil {
					s.recordSink.Emit(result)
				}
			}
			if kind == descriptor.KindDirectQuery && s.archiveSink != nil {
				s.archiveSink.Archive(result)
			}
			if s.progressTracker != nil {
				remainingDepth := 0
				if item.Journal != nil {
					remainingDepth = item.Journal.MaxCrawlDepth - item.Depth
					if remainingDepth < 0 {
						remainingDepth = 0
					}
				}
				if perr := s.progressTracker.Advance(canon.String(), remainingDepth); perr != nil {
					s.metadataSink.RecordError(metadata.NewErrorRecord(
						"scheduler", "runFetchTasklet", metadata.CauseInvariantViolation, perr.Error(), time.Now(),
						metadata.NewAttr(metadata.AttrURL, canon.String()),
					))
				}
			}
		}
	}

	task.Finish(result, ferr)
	s.cache.Reap(key)
}

// causeFromClassifiedError gives the scheduler's own coarse tally an
// observability-only ErrorCause; each component already records its own
// precise cause through metadataSink at the point the error was produced.
func causeFromClassifiedError(err failure.ClassifiedError) metadata.ErrorCause {
	if err.Severity() == failure.SeverityFatal {
		return metadata.CauseInvariantViolation
	}
	return metadata.CauseNetworkFailure
}

func (s *Scheduler) runCrawlJob(token frontier.CrawlToken) {
	item := token.Item()
	journal := item.Journal
	if journal == nil {
		return
	}

	c, err := crawler.New(s, s, journal, s.cfg.PerCrawlTimeout())
	if err != nil {
		s.metadataSink.RecordError(metadata.NewErrorRecord(
			"scheduler", "runCrawlJob", metadata.CauseInvariantViolation, err.Error(), time.Now(),
			metadata.NewAttr(metadata.AttrJournal, journal.Name),
		))
		return
	}

	stats := c.Run(context.Background(), item.URL)
	for i := 0; i < stats.ItemsSkipped; i++ {
		s.counters.IncSkipped()
	}
	s.metadataSink.RecordArtifact(journal.Name, metadata.NewArtifactRecord(
		fmt.Sprintf("pages=%d harvested=%d skipped=%d unsuccessful=%d", stats.PagesVisited, stats.ItemsHarvested, stats.ItemsSkipped, stats.UnsuccessfulFetches),
	))
}

func (s *Scheduler) runRSSJob(token frontier.CrawlToken) {
	item := token.Item()
	journal := item.Journal
	if journal == nil {
		return
	}

	processor := rss.NewProcessor(s)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PerCrawlTimeout())
	defer cancel()

	stats, ferr := processor.ProcessURL(ctx, journal.FeedURL, journal)
	if ferr != nil {
		s.counters.IncError(causeFromClassifiedError(ferr))
		cause := metadata.CauseNetworkFailure
		if feedErr, ok := ferr.(*rss.FeedError); ok {
			cause = feedErr.MetadataCause()
		}
		s.metadataSink.RecordError(metadata.NewErrorRecord(
			"scheduler", "runRSSJob", cause, ferr.Error(), time.Now(),
			metadata.NewAttr(metadata.AttrJournal, journal.Name),
		))
		return
	}
	for i := 0; i < stats.ItemsSkipped; i++ {
		s.counters.IncSkipped()
	}
	s.metadataSink.RecordArtifact(journal.Name, metadata.NewArtifactRecord(
		fmt.Sprintf("queued=%d skipped=%d", stats.ItemsQueued, stats.ItemsSkipped),
	))
}

// runAPIQueryJob implements the searchMultiple identifier-batch path for
// API-query-mode journals: the journal's own print/online ISSN is
// submitted as the (minimal) identifier batch, filtered through the same
// delivery short-circuit every other kind uses.
func (s *Scheduler) runAPIQueryJob(token frontier.CrawlToken) {
	item := token.Item()
	journal := item.Journal
	if journal == nil {
		return
	}

	ids := map[string]int{}
	if journal.ISSNPrint != "" {
		ids[journal.ISSNPrint] = 0
	}
	if journal.ISSNOnline != "" {
		ids[journal.ISSNOnline] = len(ids)
	}
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PerRequestTimeout())
	defer cancel()

	result, ferr := s.translateClient.SearchMultiple(ctx, ids, s.deliveryTracker.AlreadyDelivered, s.cfg.MaxSearchBatchSize(), s.cfg.PerRequestTimeout())
	if ferr != nil {
		s.counters.IncError(causeFromClassifiedError(ferr))
		cause := metadata.CauseTranslation
		if translateErr, ok := ferr.(*translate.TranslationError); ok {
			cause = translateErr.MetadataCause()
		}
		s.metadataSink.RecordError(metadata.NewErrorRecord(
			"scheduler", "runAPIQueryJob", cause, ferr.Error(), time.Now(),
			metadata.NewAttr(metadata.AttrJournal, journal.Name),
		))
		return
	}
	if len(result.Citations) == 0 {
		return
	}

	s.counters.IncHarvested()
	if s.recordSink != nil {
		s.recordSink.Emit(descriptor.DownloadResult{
			Item:         item,
			Op:           descriptor.OpUseTranslationServer,
			Body:         result.Citations,
			ResponseCode: 200,
		})
	}
}

// runEmailCrawlJob is a documented stub: no mailbox-transport dependency
// exists anywhere in the retrieval pack, so EMAIL_CRAWL journals are
// accepted by configuration but produce only an observability record
// rather than a synthesized implementation of an unspecified protocol.
func (s *Scheduler) runEmailCrawlJob(token frontier.CrawlToken) {
	item := token.Item()
	name := ""
	if item.Journal != nil {
		name = item.Journal.Name
	}
	s.metadataSink.RecordError(metadata.NewErrorRecord(
		"scheduler", "runEmailCrawlJob", metadata.CausePolicySkip, "email crawling is not implemented", time.Now(),
		metadata.NewAttr(metadata.AttrJournal, name),
	))
}

// DirectDownload implements crawler.Downloader: it is how a Crawler asks
// the scheduler to fetch one page, blocking until the tasklet (or the
// cache, or an in-flight join) resolves.
func (s *Scheduler) DirectDownload(ctx context.Context, item descriptor.HarvestableItem) (descriptor.DownloadResult, error) {
	future := s.enqueueWork(item, descriptor.KindDirectQuery)
	select {
	case <-future.Done():
		result, err := future.Wait()
		if err != nil {
			return result, err
		}
		return result, nil
	case <-ctx.Done():
		return descriptor.DownloadResult{}, ctx.Err()
	}
}

// EnqueueTranslation implements crawler.Emitter and rss.Emitter: it admits
// item as translation-kind work and returns immediately, never blocking
// the crawler or feed processor that discovered it.
func (s *Scheduler) EnqueueTranslation(item descriptor.HarvestableItem) {
	s.enqueueWork(item, descriptor.KindTranslation)
}

// AlreadyDelivered implements crawler.Emitter and rss.Emitter.
func (s *Scheduler) AlreadyDelivered(rawURL string) bool {
	return s.deliveryTracker.AlreadyDelivered(rawURL)
}

// SubmitJournalSeed admits a journal's starting point — its RSS feed URL,
// crawl start URL, or direct-query URL — as the TaskKind matching its
// JournalType, kicking off the nested task graph.
func (s *Scheduler) SubmitJournalSeed(journal *descriptor.JournalDescriptor) error {
	switch journal.Type {
	case descriptor.JournalRSS:
		return s.submitSeed(journal, journal.FeedURL, descriptor.KindRSSFeed)
	case descriptor.JournalCrawl:
		return s.submitSeed(journal, journal.StartURL, descriptor.KindCrawl)
	case descriptor.JournalDirect:
		return s.submitSeed(journal, journal.StartURL, descriptor.KindDirectQuery)
	case descriptor.JournalAPIQuery:
		return s.submitSeed(journal, journal.StartURL, descriptor.KindAPIQuery)
	case descriptor.JournalEmailCrawl:
		return s.submitSeed(journal, journal.StartURL, descriptor.KindEmailCrawl)
	default:
		return fmt.Errorf("unknown journal type %v for %s", journal.Type, journal.Name)
	}
}

// submitSeed admits journal's starting URL as kind. For a KindCrawl seed
// with a progress tracker attached, the FIRST such seed submitted in this
// process resumes from the tracker's last recorded position instead of
// journal's configured StartURL — crawler.Run's own state machine always
// re-derives its remaining-depth budget from maxDepth on each Run call
// (§4.6), so resumption repositions where the walk restarts, not how much
// depth budget is left; the per-item dedup layers (delivery tracker,
// record fingerprint sidecar) are what keep the resumed walk from
// re-emitting records already delivered before the crash.
func (s *Scheduler) submitSeed(journal *descriptor.JournalDescriptor, rawURL string, kind descriptor.TaskKind) error {
	depth := 0
	if kind == descriptor.KindCrawl && !s.resumeApplied && s.progressTracker != nil {
		s.resumeApplied = true
		if resumed := s.progressTracker.Resume(); resumed.LastURL != "" {
			rawURL = resumed.LastURL
		}
	}

	if rawURL == "" {
		return fmt.Errorf("journal %s has no seed URL for kind %v", journal.Name, kind)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("journal %s: invalid seed URL %q: %w", journal.Name, rawURL, err)
	}
	item := descriptor.NewHarvestableItem(*u, journal, depth)
	candidate := frontier.NewCrawlAdmissionCandidate(*u, frontier.SourceSeed, frontier.NewDiscoveryMetadata(depth, nil), kind, item)
	s.ingest(candidate)
	return nil
}

// Quiescent reports whether every ingestion buffer, domain queue, and
// active-task slot is empty — the condition ExecuteHarvest waits for
// before declaring a run complete.
func (s *Scheduler) Quiescent() bool {
	s.ingestMu.Lock()
	pendingIngest := len(s.ingestBuffer)
	s.ingestMu.Unlock()
	if pendingIngest > 0 {
		return false
	}

	for _, count := range s.activeCounts {
		if count.Load() > 0 {
			return false
		}
	}

	for _, domain := range s.frontier.Domains() {
		for _, kind := range descriptor.TaskKinds() {
			if s.frontier.PendingCount(domain, kind) > 0 {
				return false
			}
		}
	}

	return true
}

// ExecuteHarvest runs every journal in cfg to completion: it starts the
// dispatch thread, seeds each journal's starting point, polls until the
// whole nested task graph has drained, then stops the dispatch thread and
// records the terminal crawl summary via crawlFinalizer.
func (s *Scheduler) ExecuteHarvest(ctx context.Context) (CrawlSummary, error) {
	started := time.Now()
	s.Start()
	defer s.Stop()

	for _, journal := range s.cfg.Journals() {
		j := journal
		if err := s.SubmitJournalSeed(&j); err != nil {
			s.metadataSink.RecordError(metadata.NewErrorRecord(
				"scheduler", "ExecuteHarvest", metadata.CauseInvariantViolation, err.Error(), time.Now(),
				metadata.NewAttr(metadata.AttrJournal, j.Name),
			))
		}
	}

	quietStreak := 0
	poll := time.NewTicker(2 * dispatchCadence)
	defer poll.Stop()
	for quietStreak < 3 {
		select {
		case <-ctx.Done():
			return CrawlSummary{}, ctx.Err()
		case <-poll.C:
			if s.Quiescent() {
				quietStreak++
			} else {
				quietStreak = 0
			}
		}
	}

	duration := time.Since(started)
	summary := CrawlSummary{DurationMs: duration.Milliseconds()}
	if s.crawlFinalizer != nil {
		s.crawlFinalizer.RecordFinalCrawlStats("all", summary.TotalHarvested, summary.TotalErrors, 0, summary.DurationMs)
	}
	return summary, nil
}
