package models

import "time"

// WorkItem represents a URL and its depth to be processed by a crawl worker
type WorkItem struct {
	URL   string
	Depth int
}

// PageDBEntry stores the result of processing a page URL in the database
type PageDBEntry struct {
	Status      PageStatus `json:"status"`                 // "pending", "success" or "failure"
	ErrorType   string     `json:"error_type,omitempty"`   // Error category (on failure)
	ProcessedAt time.Time  `json:"processed_at,omitempty"` // Timestamp of successful processing
	LastAttempt time.Time  `json:"last_attempt"`           // Timestamp of the last processing attempt
	Depth       int        `json:"depth"`                  // Depth at which this page was processed/attempted
}

// RunMetadata holds summary metadata for a single sitemap generation run.
// Written as YAML next to the sitemap file when the run completes.
type RunMetadata struct {
	RunID         string    `yaml:"run_id"`
	SiteKey       string    `yaml:"site_key"`
	AllowedDomain string    `yaml:"allowed_domain"`
	StartTime     time.Time `yaml:"start_time"`
	EndTime       time.Time `yaml:"end_time"`
	URLsAdded     int64     `yaml:"urls_added"`
	URLsIgnored   int64     `yaml:"urls_ignored"`
	FetchErrors   int64     `yaml:"fetch_errors"`
	SitemapPath   string    `yaml:"sitemap_path"`
}
