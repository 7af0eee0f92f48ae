package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"docsmap/pkg/config"
	"docsmap/pkg/utils"
)

// RobotsHandler manages fetching, parsing, caching, and checking robots.txt
// data per host. A nil cache entry means robots.txt was unavailable (fetch
// error or 4xx) and everything is treated as allowed.
type RobotsHandler struct {
	fetcher       HTTPFetcher
	rateLimiter   *RateLimiter
	robotsCache   map[string]*robotstxt.RobotsData // hostname -> parsed data (or nil)
	robotsCacheMu sync.Mutex
	cfg           *config.AppConfig
	log           *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(fetcher HTTPFetcher, rateLimiter *RateLimiter, cfg *config.AppConfig, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		cfg:         cfg,
		log:         log.WithField("component", "robots"),
	}
}

// Allowed reports whether the given URL may be fetched under the host's
// robots.txt rules for userAgent. Missing or unfetchable robots.txt allows
// everything.
func (rh *RobotsHandler) Allowed(ctx context.Context, userAgent string, target *url.URL) bool {
	data := rh.getRobotsData(ctx, userAgent, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.Path, userAgent)
}

// Sitemaps returns the sitemap URLs declared in the host's robots.txt,
// or nil if robots.txt is unavailable or declares none.
func (rh *RobotsHandler) Sitemaps(ctx context.Context, userAgent string, target *url.URL) []string {
	data := rh.getRobotsData(ctx, userAgent, target)
	if data == nil {
		return nil
	}
	return data.Sitemaps
}

// getRobotsData retrieves robots.txt data for the target's host, using the
// cache or fetching on a miss. The outcome (including nil on error) is cached
// so each host is fetched at most once per run.
func (rh *RobotsHandler) getRobotsData(ctx context.Context, userAgent string, target *url.URL) *robotstxt.RobotsData {
	host := target.Hostname()
	hostLog := rh.log.WithField("host", host)

	rh.robotsCacheMu.Lock()
	robotsData, found := rh.robotsCache[host]
	rh.robotsCacheMu.Unlock()
	if found {
		return robotsData // Cached data may be nil
	}

	robotsData = rh.fetchRobotsData(ctx, userAgent, target, hostLog)

	rh.robotsCacheMu.Lock()
	rh.robotsCache[host] = robotsData
	rh.robotsCacheMu.Unlock()

	return robotsData
}

// fetchRobotsData fetches and parses /robots.txt for the target's host.
// Returns nil on any error, non-2xx status, or parse failure.
func (rh *RobotsHandler) fetchRobotsData(ctx context.Context, userAgent string, target *url.URL, hostLog *logrus.Entry) *robotstxt.RobotsData {
	robotsURL := &url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}
	hostLog.Infof("Fetching robots.txt: %s", robotsURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		hostLog.Errorf("Failed to create robots.txt request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	rh.rateLimiter.ApplyDelay(target.Hostname(), rh.cfg.DefaultDelayPerHost)
	resp, fetchErr := rh.fetcher.FetchWithRetry(req, ctx)
	rh.rateLimiter.UpdateLastRequestTime(target.Hostname())

	if fetchErr != nil {
		if errors.Is(fetchErr, utils.ErrClientHTTPError) {
			hostLog.Debugf("robots.txt unavailable (4xx), allowing all: %v", fetchErr)
		} else {
			hostLog.Warnf("robots.txt fetch failed, allowing all: %v", fetchErr)
		}
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return nil
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		hostLog.Errorf("Failed to read robots.txt body: %v", readErr)
		return nil
	}

	data, parseErr := robotstxt.FromBytes(body)
	if parseErr != nil {
		hostLog.Warnf("Failed to parse robots.txt, allowing all: %v", parseErr)
		return nil
	}

	hostLog.Info("robots.txt fetched and parsed.")
	return data
}
