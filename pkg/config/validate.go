package config

import (
	"fmt"
	"net/url"
	"time"

	"docsmap/pkg/utils"
)

// Validate fills in defaults for unset AppConfig fields in place and
// collects warnings for values it had to adjust.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers must be positive, using 4")
		c.NumWorkers = 4
	}

	// MaxRequests
	if c.MaxRequests <= 0 {
		warnings = append(warnings, "max_requests must be positive, using 10")
		c.MaxRequests = 10
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = 2
	}

	// OutputBaseDir
	if c.OutputBaseDir == "" {
		warnings = append(warnings, "output_base_dir is empty, defaulting to './sitemaps'")
		c.OutputBaseDir = "./sitemaps"
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir not set, using './crawler_state'")
		c.StateDir = "./crawler_state"
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries is negative, disabling retries")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Delay defaults only matter when retries happen
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// Clamp inverted retry delays
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) exceeds max_retry_delay (%v), clamping",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// SemaphoreAcquireTimeout
	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	// GlobalCrawlTimeout
	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout is negative, running without a timeout")
		c.GlobalCrawlTimeout = 0
	}

	// DBGCInterval
	if c.DBGCInterval <= 0 {
		c.DBGCInterval = 5 * time.Minute
	}

	// Shared HTTP client defaults
	c.validateHTTPClientSettings()

	// App-level problems are always recoverable with defaults
	return warnings, nil
}

// validateHTTPClientSettings fills zero HTTP client fields with defaults.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place (e.g., path prefix normalization).
func (c *SiteConfig) Validate() (warnings []string, err error) {
	// Required: StartURLs
	if len(c.StartURLs) == 0 {
		return nil, fmt.Errorf("%w: site has no start_urls", utils.ErrConfigValidation)
	}
	for i, raw := range c.StartURLs {
		parsed, parseErr := url.ParseRequestURI(raw)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: start_urls[%d] ('%s') is not a valid absolute URL: %v",
				utils.ErrConfigValidation, i, raw, parseErr)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("%w: start_urls[%d] ('%s') must use http or https",
				utils.ErrConfigValidation, i, raw)
		}
	}

	// Required: AllowedDomain
	if c.AllowedDomain == "" {
		return nil, fmt.Errorf("%w: site needs allowed_domain", utils.ErrConfigValidation)
	}

	// Prefix always starts with a slash
	if c.AllowedPathPrefix == "" {
		c.AllowedPathPrefix = "/"
	} else if c.AllowedPathPrefix[0] != '/' {
		c.AllowedPathPrefix = "/" + c.AllowedPathPrefix
	}

	// DisallowedPathPatterns must compile
	if _, compErr := utils.CompileRegexPatterns(c.DisallowedPathPatterns); compErr != nil {
		return nil, compErr
	}

	// MaxDepth
	if c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth is negative, treating as unlimited")
		c.MaxDepth = 0
	}

	// DelayPerHost
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "Site DelayPerHost cannot be negative, using global default")
		c.DelayPerHost = 0
	}

	return warnings, nil
}
