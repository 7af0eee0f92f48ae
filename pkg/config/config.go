package config

import "time"

// SiteConfig holds configuration specific to a single documentation site
type SiteConfig struct {
	StartURLs              []string      `yaml:"start_urls"`
	AllowedDomain          string        `yaml:"allowed_domain"`
	AllowedPathPrefix      string        `yaml:"allowed_path_prefix"`
	DisallowedPathPatterns []string      `yaml:"disallowed_path_patterns,omitempty"` // Regex patterns for paths to exclude
	StripQueryString       *bool         `yaml:"strip_query_string,omitempty"`       // Drop query strings when deduplicating URLs
	UserAgent              string        `yaml:"user_agent,omitempty"`
	DelayPerHost           time.Duration `yaml:"delay_per_host,omitempty"`
	MaxDepth               int           `yaml:"max_depth"`
	SitemapFilename        string        `yaml:"sitemap_filename,omitempty"`
	URLListFilename        string        `yaml:"url_list_filename,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent        string                `yaml:"default_user_agent"`
	DefaultDelayPerHost     time.Duration         `yaml:"default_delay_per_host"`
	NumWorkers              int                   `yaml:"num_workers"`
	MaxRequests             int                   `yaml:"max_requests"`
	MaxRequestsPerHost      int                   `yaml:"max_requests_per_host,omitempty"`
	OutputBaseDir           string                `yaml:"output_base_dir"`
	StateDir                string                `yaml:"state_dir"`
	MaxRetries              int                   `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration         `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration         `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration         `yaml:"semaphore_acquire_timeout,omitempty"`
	GlobalCrawlTimeout      time.Duration         `yaml:"global_crawl_timeout,omitempty"`
	DBGCInterval            time.Duration         `yaml:"db_gc_interval,omitempty"`
	StripQueryString        bool                  `yaml:"strip_query_string,omitempty"`
	SitemapFilename         string                `yaml:"sitemap_filename,omitempty"`
	URLListFilename         string                `yaml:"url_list_filename,omitempty"`
	WriteRunMetadata        bool                  `yaml:"write_run_metadata,omitempty"`
	HTTPClientSettings      HTTPClientConfig      `yaml:"http_client_settings,omitempty"`
	Sites                   map[string]SiteConfig `yaml:"sites"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // Explicitly enable/disable HTTP/2 attempt (nil=default)
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// GetEffectiveStripQueryString determines whether query strings are dropped
// when deduplicating discovered URLs. Site config (if set) overrides global.
// The default is false: query strings are retained.
func GetEffectiveStripQueryString(siteCfg SiteConfig, appCfg AppConfig) bool {
	if siteCfg.StripQueryString != nil {
		return *siteCfg.StripQueryString
	}
	return appCfg.StripQueryString
}

// GetEffectiveUserAgent determines the user agent for a site's requests
func GetEffectiveUserAgent(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.UserAgent != "" {
		return siteCfg.UserAgent
	}
	return appCfg.DefaultUserAgent
}

// GetEffectiveDelayPerHost determines the per-host politeness delay
func GetEffectiveDelayPerHost(siteCfg SiteConfig, appCfg AppConfig) time.Duration {
	if siteCfg.DelayPerHost > 0 {
		return siteCfg.DelayPerHost
	}
	return appCfg.DefaultDelayPerHost
}

// GetEffectiveSitemapFilename determines the filename for the generated sitemap
// Site config (if non-empty) overrides global
// If both site and global are empty, a hardcoded default is returned
func GetEffectiveSitemapFilename(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.SitemapFilename != "" {
		return siteCfg.SitemapFilename
	}
	if appCfg.SitemapFilename != "" {
		return appCfg.SitemapFilename
	}
	return "sitemap.xml"
}

// GetEffectiveURLListFilename determines the filename for the extracted URL list
func GetEffectiveURLListFilename(siteCfg SiteConfig, appCfg AppConfig) string {
	if siteCfg.URLListFilename != "" {
		return siteCfg.URLListFilename
	}
	if appCfg.URLListFilename != "" {
		return appCfg.URLListFilename
	}
	return "urls.txt"
}
