package crawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"

	"docsmap/pkg/events"
	"docsmap/pkg/models"
	"docsmap/pkg/parse"
	"docsmap/pkg/utils"
)

// maxPageSizeBytes caps how much of a page body is read. Documentation pages
// beyond this are treated as fetch failures rather than read into memory.
const maxPageSizeBytes = int64(10 * 1024 * 1024)

// processPageTask runs the pipeline for a single frontier item: policy
// checks, fetch, link discovery, and sitemap acceptance. Failures are
// recorded per URL and never abort the crawl.
func (c *Crawler) processPageTask(workItem models.WorkItem, workerLog *logrus.Entry) {
	currentURL := workItem.URL
	currentDepth := workItem.Depth
	taskLog := workerLog.WithFields(logrus.Fields{"url": currentURL, "depth": currentDepth})
	startTime := time.Now()

	var taskErr error
	var ignoredReason string // Set when the URL is rejected by policy, not by failure
	var skipped bool

	defer func() {
		if r := recover(); r != nil {
			skipped = false
			ignoredReason = ""
			taskErr = fmt.Errorf("panic: %v", r)
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"duration":    time.Since(startTime).String(),
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered in processPageTask")
		}

		logFields := logrus.Fields{"duration": time.Since(startTime).String()}
		finalStatus := models.PageStatusSuccess
		errorType := "None"

		switch {
		case ignoredReason != "":
			finalStatus = models.PageStatusFailure
			errorType = ignoredReason
			c.ignoredCounter.Add(1)
			c.emit(events.Event{Kind: events.KindIgnored, URL: currentURL})
			taskLog.WithFields(logFields).Infof("Task ignored (%s)", ignoredReason)
		case taskErr != nil:
			finalStatus = models.PageStatusFailure
			errorType = utils.CategorizeError(taskErr)
			c.errorCounter.Add(1)
			c.emit(events.Event{Kind: events.KindError, URL: currentURL, Code: errorType})
			logFields["category"] = errorType
			taskLog.WithFields(logFields).Warnf("Task failed: %v", taskErr)
		case skipped:
			taskLog.WithFields(logFields).Info("Task skipped")
		default:
			c.emit(events.Event{Kind: events.KindAdded, URL: currentURL})
			taskLog.WithFields(logFields).Info("Task completed successfully")
		}

		if !skipped {
			entry := &models.PageDBEntry{
				Status:      finalStatus,
				ErrorType:   errorType,
				LastAttempt: time.Now(),
				Depth:       currentDepth,
			}
			if finalStatus == models.PageStatusSuccess {
				entry.ProcessedAt = entry.LastAttempt
				entry.ErrorType = ""
			}
			if dbErr := c.store.UpdatePageStatus(currentURL, entry); dbErr != nil {
				taskLog.Errorf("Failed to update final DB status for '%s': %v", currentURL, dbErr)
			}
			c.processedCounter.Add(1)
		}
		c.wg.Done()
	}()

	// 1. Parse and resume check. Frontier items carry normalized URLs, so the
	// URL doubles as the store key.
	parsedURL, err := url.Parse(currentURL)
	if err != nil {
		taskErr = fmt.Errorf("parsing URL '%s': %w", currentURL, err)
		return
	}
	host := parsedURL.Hostname()

	pageStatus, _, checkErr := c.store.CheckPageStatus(currentURL)
	if checkErr != nil {
		taskLog.Errorf("DB error checking status for '%s', proceeding: %v", currentURL, checkErr)
	} else if pageStatus == models.PageStatusSuccess {
		taskLog.Info("Skipping already successfully processed page (from DB).")
		skipped = true
		return
	}

	// 2. Policy checks. Requeued resume items bypass the enqueue-time checks,
	// so scope and depth are re-verified here.
	if ok, reason := c.inScope(parsedURL); !ok {
		ignoredReason = reason
		return
	}
	if c.siteCfg.MaxDepth > 0 && currentDepth > c.siteCfg.MaxDepth {
		ignoredReason = reasonDepth
		return
	}
	if !c.robots.Allowed(c.crawlCtx, c.userAgent, parsedURL) {
		ignoredReason = reasonRobots
		return
	}

	// 3. Acquire resources: per-host and global semaphores, then rate limit.
	release, acquireErr := c.acquireResources(host, taskLog)
	defer release()
	if acquireErr != nil {
		taskErr = acquireErr
		return
	}

	// 4. Fetch with retries.
	finalURL, bodyBytes, fetchErr := c.fetchPage(currentURL, parsedURL, taskLog)
	if fetchErr != nil {
		taskErr = fetchErr
		return
	}

	// 5. Redirect scope check: a redirect may have landed out of scope.
	if ok, reason := c.inScope(finalURL); !ok {
		ignoredReason = reason
		return
	}

	// 6. Accept into the sitemap.
	c.writer.Add(currentURL)

	// 7. Discover and enqueue links.
	links, linkErr := parse.ExtractLinks(bodyBytes, finalURL)
	if linkErr != nil {
		taskLog.Warnf("Non-fatal error extracting links: %v", linkErr)
		return
	}
	queued := 0
	for _, link := range links {
		if c.enqueue(link, currentDepth+1) {
			queued++
		}
	}
	taskLog.Debugf("Discovered %d links, queued %d new.", len(links), queued)
}

// acquireResources takes the per-host and global semaphores with a timeout,
// then applies the politeness delay. The returned release function is always
// safe to call.
func (c *Crawler) acquireResources(host string, taskLog *logrus.Entry) (func(), error) {
	acquiredHost, acquiredGlobal := false, false
	release := func() {
		if acquiredHost {
			c.hostLimiter.Release(host)
		}
		if acquiredGlobal {
			c.globalSemaphore.Release(1)
		}
	}

	semTimeout := c.appCfg.SemaphoreAcquireTimeout

	ctxHost, cancelHost := context.WithTimeout(c.crawlCtx, semTimeout)
	defer cancelHost()
	if err := c.hostLimiter.Acquire(ctxHost, host); err != nil {
		return release, fmt.Errorf("%w: acquire host semaphore for '%s': %w", utils.ErrSemaphoreTimeout, host, err)
	}
	acquiredHost = true

	ctxGlobal, cancelGlobal := context.WithTimeout(c.crawlCtx, semTimeout)
	defer cancelGlobal()
	if err := c.globalSemaphore.Acquire(ctxGlobal, 1); err != nil {
		return release, fmt.Errorf("%w: acquire global semaphore: %w", utils.ErrSemaphoreTimeout, err)
	}
	acquiredGlobal = true

	if c.delayPerHost > 0 {
		c.rateLimiter.ApplyDelay(host, c.delayPerHost)
	}
	return release, nil
}

// fetchPage performs the HTTP GET with retries and reads the body up to the
// size cap. Returns the final URL after redirects and the body bytes.
func (c *Crawler) fetchPage(reqURL string, parsedURL *url.URL, taskLog *logrus.Entry) (*url.URL, []byte, error) {
	req, reqErr := http.NewRequestWithContext(c.crawlCtx, http.MethodGet, reqURL, nil)
	if reqErr != nil {
		return nil, nil, fmt.Errorf("%w: creating request for '%s': %w", utils.ErrRequestCreation, reqURL, reqErr)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, fetchErr := c.fetcher.FetchWithRetry(req, c.crawlCtx)
	c.rateLimiter.UpdateLastRequestTime(parsedURL.Hostname())

	if fetchErr != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return nil, nil, fetchErr
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL
	if finalURL.String() != reqURL {
		taskLog.WithField("final_url", finalURL.String()).Info("URL redirected.")
	}

	limitedReader := io.LimitReader(resp.Body, maxPageSizeBytes+1)
	bodyBytes, readErr := io.ReadAll(limitedReader)
	if readErr != nil {
		if errors.Is(readErr, context.Canceled) || errors.Is(readErr, context.DeadlineExceeded) {
			return nil, nil, readErr
		}
		return nil, nil, fmt.Errorf("%w: reading body from '%s': %w", utils.ErrResponseBodyRead, finalURL.String(), readErr)
	}
	if int64(len(bodyBytes)) > maxPageSizeBytes {
		return nil, nil, fmt.Errorf("%w: page '%s' exceeds max size (%d bytes)", utils.ErrResponseBodyRead, finalURL.String(), maxPageSizeBytes)
	}

	return finalURL, bodyBytes, nil
}
