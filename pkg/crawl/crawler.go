package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"docsmap/pkg/config"
	"docsmap/pkg/events"
	"docsmap/pkg/fetch"
	"docsmap/pkg/models"
	"docsmap/pkg/parse"
	"docsmap/pkg/queue"
	"docsmap/pkg/sitemap"
	"docsmap/pkg/storage"
	"docsmap/pkg/utils"
)

// Crawler generates a sitemap for a single configured site. It walks the site
// breadth-first from the start URLs, keeps discovered URLs within scope, and
// raises crawl events for every accepted, ignored, or failed URL.
type Crawler struct {
	log                *logrus.Entry // Logger contextualized with site_key
	appCfg             *config.AppConfig
	siteCfg            *config.SiteConfig
	siteKey            string
	siteOutputDir      string
	disallowedPatterns []*regexp.Regexp

	// Effective per-site options resolved from site + app config
	userAgent    string
	delayPerHost time.Duration
	stripQuery   bool

	// Core components
	store       storage.VisitedStore
	frontier    *queue.Frontier
	fetcher     fetch.HTTPFetcher
	robots      *fetch.RobotsHandler
	rateLimiter *fetch.RateLimiter
	writer      *sitemap.Writer

	// Event delivery; emitMu serializes Publish so sinks never see
	// concurrent events
	sink   events.Sink
	emitMu sync.Mutex

	// Concurrency control
	globalSemaphore *semaphore.Weighted
	hostLimiter     *fetch.HostLimiter

	// Tracking and coordination
	wg               sync.WaitGroup // All in-flight page tasks
	processedCounter atomic.Int64
	ignoredCounter   atomic.Int64
	errorCounter     atomic.Int64
	crawlCtx         context.Context
	cancelCrawl      context.CancelFunc
}

// Stats summarizes a finished or in-progress crawl.
type Stats struct {
	Added     int
	Ignored   int64
	Errors    int64
	Processed int64
	Queued    int
}

// NewCrawler creates and initializes a Crawler and its components.
func NewCrawler(
	appCfg *config.AppConfig,
	siteCfg *config.SiteConfig,
	siteKey string,
	baseLogger *logrus.Entry,
	store storage.VisitedStore,
	fetcher fetch.HTTPFetcher,
	rateLimiter *fetch.RateLimiter,
	sink events.Sink,
	crawlCtx context.Context,
	cancelCrawl context.CancelFunc,
) (*Crawler, error) {
	logger := baseLogger.WithField("site_key", siteKey)

	disallowedPatterns, err := utils.CompileRegexPatterns(siteCfg.DisallowedPathPatterns)
	if err != nil {
		return nil, fmt.Errorf("compiling disallowed patterns for site '%s': %w", siteKey, err)
	}
	if len(disallowedPatterns) > 0 {
		logger.Infof("Compiled %d disallowed path patterns.", len(disallowedPatterns))
	}

	if sink == nil {
		sink = events.NopSink{}
	}

	c := &Crawler{
		log:                logger,
		appCfg:             appCfg,
		siteCfg:            siteCfg,
		siteKey:            siteKey,
		siteOutputDir:      filepath.Join(appCfg.OutputBaseDir, utils.SanitizeFilename(siteCfg.AllowedDomain)),
		disallowedPatterns: disallowedPatterns,
		userAgent:          config.GetEffectiveUserAgent(*siteCfg, *appCfg),
		delayPerHost:       config.GetEffectiveDelayPerHost(*siteCfg, *appCfg),
		stripQuery:         config.GetEffectiveStripQueryString(*siteCfg, *appCfg),
		store:              store,
		frontier:           queue.NewFrontier(logger),
		fetcher:            fetcher,
		rateLimiter:        rateLimiter,
		writer:             sitemap.NewWriter(logger),
		sink:               sink,
		globalSemaphore:    semaphore.NewWeighted(int64(appCfg.MaxRequests)),
		hostLimiter:        fetch.NewHostLimiter(appCfg.MaxRequestsPerHost, logger),
		crawlCtx:           crawlCtx,
		cancelCrawl:        cancelCrawl,
	}
	c.robots = fetch.NewRobotsHandler(fetcher, rateLimiter, appCfg, logger)

	return c, nil
}

// SitemapPath returns the path the generated sitemap is written to.
func (c *Crawler) SitemapPath() string {
	return filepath.Join(c.siteOutputDir, config.GetEffectiveSitemapFilename(*c.siteCfg, *c.appCfg))
}

// URLListPath returns the path the extracted URL list is written to.
func (c *Crawler) URLListPath() string {
	return filepath.Join(c.siteOutputDir, config.GetEffectiveURLListFilename(*c.siteCfg, *c.appCfg))
}

// GetStats returns current crawl counters.
func (c *Crawler) GetStats() Stats {
	return Stats{
		Added:     c.writer.Len(),
		Ignored:   c.ignoredCounter.Load(),
		Errors:    c.errorCounter.Load(),
		Processed: c.processedCounter.Load(),
		Queued:    c.frontier.Len(),
	}
}

// emit delivers one event to the sink. Delivery is serialized so sink
// implementations never need their own locking.
func (c *Crawler) emit(ev events.Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.sink.Publish(ev)
}

// Run crawls the configured site and blocks until the sitemap is written or
// the crawl context is cancelled. The done event fires only on a completed
// run; cancellation skips it and returns the context error.
func (c *Crawler) Run(resume bool) error {
	startTime := time.Now()
	runLogFields := logrus.Fields{"domain": c.siteCfg.AllowedDomain, "resume": resume}
	c.log.WithFields(runLogFields).Infof("Crawl starting with %d worker(s)...", c.appCfg.NumWorkers)

	// --- Start URL validation ---
	validStartURLs, firstParsedURL, err := c.validateStartURLs()
	if err != nil {
		return err
	}
	c.log.WithFields(runLogFields).Infof("Using %d valid start URLs: %v", len(validStartURLs), validStartURLs)

	// --- Prepare output directory ---
	if err := os.MkdirAll(c.siteOutputDir, 0755); err != nil {
		return fmt.Errorf("%w: creating site output dir '%s': %w", utils.ErrFilesystem, c.siteOutputDir, err)
	}

	// --- Requeue incomplete tasks from DB (resume mode) ---
	requeuedFromDB := 0
	if resume {
		requeueChan := make(chan models.WorkItem, 100)
		var requeueWg sync.WaitGroup
		requeueWg.Add(1)
		go func() {
			defer requeueWg.Done()
			for item := range requeueChan {
				c.wg.Add(1)
				c.frontier.Add(&item)
				requeuedFromDB++
			}
		}()

		_, _, scanErr := c.store.RequeueIncomplete(c.crawlCtx, requeueChan)
		close(requeueChan)
		requeueWg.Wait()

		if scanErr != nil && !errors.Is(scanErr, context.Canceled) && !errors.Is(scanErr, context.DeadlineExceeded) {
			c.log.WithFields(runLogFields).Errorf("Error during DB requeue scan: %v", scanErr)
		}
		if c.crawlCtx.Err() != nil {
			return c.crawlCtx.Err()
		}
		c.log.WithFields(runLogFields).Infof("DB requeue scan complete. Requeued %d tasks.", requeuedFromDB)
	}

	// --- Start workers ---
	var workersWg sync.WaitGroup
	for i := 1; i <= c.appCfg.NumWorkers; i++ {
		workersWg.Add(1)
		workerLog := c.log.WithField("worker_id", i)
		go func() {
			defer workersWg.Done()
			c.worker(workerLog)
		}()
	}
	c.log.WithFields(runLogFields).Infof("%d workers started.", c.appCfg.NumWorkers)

	// --- Waiter goroutine: progress reporting, completion detection ---
	waiterDone := make(chan struct{})
	go func() {
		defer close(waiterDone)

		progTicker := time.NewTicker(30 * time.Second)
		progDone := make(chan struct{})
		defer func() {
			progTicker.Stop()
			close(progDone)
		}()
		go func() {
			for {
				select {
				case <-progDone:
					return
				case <-c.crawlCtx.Done():
					return
				case <-progTicker.C:
					vCount, _ := c.store.GetVisitedCount()
					c.log.WithFields(logrus.Fields{
						"site_key":        c.siteKey,
						"visited_db":      vCount,
						"frontier_len":    c.frontier.Len(),
						"processed_tasks": c.processedCounter.Load(),
						"sitemap_urls":    c.writer.Len(),
					}).Info("Crawl progress")
				}
			}
		}()

		// Log sitemaps the site itself declares in robots.txt; useful when
		// comparing our generated sitemap against the site's own.
		if firstParsedURL != nil {
			if declared := c.robots.Sitemaps(c.crawlCtx, c.userAgent, firstParsedURL); len(declared) > 0 {
				c.log.WithFields(runLogFields).Infof("Site declares %d sitemap(s) in robots.txt: %v", len(declared), declared)
			}
		}

		// Wait for all page tasks, or for cancellation
		waitTasksDone := make(chan struct{})
		go func() { c.wg.Wait(); close(waitTasksDone) }()
		select {
		case <-waitTasksDone:
			c.log.WithFields(runLogFields).Info("Waiter: all page tasks finished.")
		case <-c.crawlCtx.Done():
			c.log.WithFields(runLogFields).Warnf("Waiter: crawl context cancelled while waiting for tasks: %v", c.crawlCtx.Err())
		}

		c.frontier.Close()
	}()

	// --- Seed frontier with validated start URLs ---
	seeded := 0
	for _, startURL := range validStartURLs {
		if c.enqueue(startURL, 0) {
			seeded++
		}
	}
	if seeded == 0 && requeuedFromDB == 0 {
		c.log.WithFields(runLogFields).Warn("No tasks seeded (start URLs already visited and nothing requeued). Crawl will finish immediately.")
	}

	<-waiterDone
	workersWg.Wait()

	// --- Finalize ---
	if ctxErr := c.crawlCtx.Err(); ctxErr != nil {
		c.log.WithFields(runLogFields).Warnf("Crawl cancelled after %v; sitemap not finalized.", time.Since(startTime))
		return ctxErr
	}

	if err := c.writer.Write(c.SitemapPath()); err != nil {
		return fmt.Errorf("finalizing sitemap for site '%s': %w", c.siteKey, err)
	}

	if c.appCfg.WriteRunMetadata {
		if err := c.writeRunMetadata(startTime, time.Now()); err != nil {
			c.log.WithFields(runLogFields).Errorf("Failed to write run metadata: %v", err)
		}
	}

	c.emit(events.Event{Kind: events.KindDone})

	duration := time.Since(startTime)
	stats := c.GetStats()
	summaryLog := c.log.WithFields(logrus.Fields{"domain": c.siteCfg.AllowedDomain})
	summaryLog.Info("========================================================================")
	summaryLog.Info("SITEMAP GENERATION FINISHED")
	summaryLog.Infof("Duration:    %v", duration)
	summaryLog.Infof("Final stats: Added: %d, Ignored: %d, Errors: %d, Processed: %d",
		stats.Added, stats.Ignored, stats.Errors, stats.Processed)
	summaryLog.Infof("Sitemap:     %s", c.SitemapPath())
	summaryLog.Info("========================================================================")

	return nil
}

// validateStartURLs filters the configured start URLs down to the ones that
// parse and fall inside the crawl scope. Returns the valid URLs and the first
// parsed one (used for the robots.txt sitemap lookup).
func (c *Crawler) validateStartURLs() ([]string, *url.URL, error) {
	var valid []string
	var firstParsed *url.URL
	seen := make(map[string]bool, len(c.siteCfg.StartURLs))

	for i, startURL := range c.siteCfg.StartURLs {
		startLog := c.log.WithFields(logrus.Fields{"index": i, "url": startURL})
		if seen[startURL] {
			startLog.Warn("Duplicate start URL. Skipping.")
			continue
		}
		seen[startURL] = true

		parsed, err := url.ParseRequestURI(startURL)
		if err != nil {
			startLog.Warnf("Invalid format: %v. Skipping.", err)
			continue
		}
		if ok, reason := c.inScope(parsed); !ok {
			startLog.Warnf("Start URL out of scope (%s). Skipping.", reason)
			continue
		}

		valid = append(valid, startURL)
		if firstParsed == nil {
			firstParsed = parsed
		}
	}

	if len(valid) == 0 {
		return nil, nil, fmt.Errorf("no valid start_urls found for site '%s' matching scope", c.siteKey)
	}
	return valid, firstParsed, nil
}

// enqueue normalizes a URL, claims it in the visited store, and adds it to
// the frontier if it is new and in scope. Out-of-scope URLs raise an ignored
// event once (the store claim dedups repeat discoveries). Returns whether the
// URL was queued.
func (c *Crawler) enqueue(rawURL string, depth int) bool {
	normalized, parsed, err := parse.ParseAndNormalize(rawURL, c.stripQuery)
	if err != nil {
		c.log.Debugf("Skipping unparseable URL '%s': %v", rawURL, err)
		return false
	}

	added, dbErr := c.store.MarkPageVisited(normalized)
	if dbErr != nil {
		c.log.Errorf("DB error claiming URL '%s': %v", normalized, dbErr)
		return false
	}
	if !added {
		return false // Already discovered earlier in this run
	}

	if ok, reason := c.inScope(parsed); !ok {
		c.recordIgnored(normalized, depth, reason)
		return false
	}
	if c.siteCfg.MaxDepth > 0 && depth > c.siteCfg.MaxDepth {
		c.recordIgnored(normalized, depth, reasonDepth)
		return false
	}

	c.wg.Add(1)
	c.frontier.Add(&models.WorkItem{URL: normalized, Depth: depth})
	return true
}

// recordIgnored emits an ignored event for a URL and records it in the store
// so it is neither requeued on resume nor re-announced on rediscovery.
func (c *Crawler) recordIgnored(normalizedURL string, depth int, reason string) {
	c.ignoredCounter.Add(1)
	c.emit(events.Event{Kind: events.KindIgnored, URL: normalizedURL})

	entry := &models.PageDBEntry{
		Status:      models.PageStatusFailure,
		ErrorType:   reason,
		LastAttempt: time.Now(),
		Depth:       depth,
	}
	if err := c.store.UpdatePageStatus(normalizedURL, entry); err != nil {
		c.log.Errorf("Failed to record ignored URL '%s': %v", normalizedURL, err)
	}
}

// worker processes page tasks from the frontier until it closes.
func (c *Crawler) worker(workerLog *logrus.Entry) {
	workerLog.Info("Worker starting")
	defer workerLog.Info("Worker finished")

	for {
		select {
		case <-c.crawlCtx.Done():
			workerLog.Warnf("Worker shutting down due to context cancellation: %v", c.crawlCtx.Err())
			return
		default:
		}

		workItem, ok := c.frontier.Pop()
		if !ok {
			if c.crawlCtx.Err() != nil {
				workerLog.Warnf("Worker shutting down (frontier closed & context cancelled): %v", c.crawlCtx.Err())
			} else {
				workerLog.Info("Worker shutting down (frontier closed & empty).")
			}
			return
		}

		c.processPageTask(*workItem, workerLog)
	}
}
