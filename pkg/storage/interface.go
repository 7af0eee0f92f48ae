package storage

import (
	"context"
	"time"

	"docsmap/pkg/models"
)

// PageStore is the per-URL state surface used by the crawl workers.
type PageStore interface {
	// MarkPageVisited claims a normalized URL. Returns true only for the
	// first claim; the claimed entry reads back as pending.
	MarkPageVisited(normalizedPageURL string) (bool, error)

	// CheckPageStatus returns the recorded state for a URL. A missing key
	// is PageStatusNotFound without error; the entry is non-nil only when a
	// full record was decoded.
	CheckPageStatus(normalizedPageURL string) (status models.PageStatus, entry *models.PageDBEntry, err error)

	// UpdatePageStatus records the outcome of a page attempt.
	UpdatePageStatus(normalizedPageURL string, entry *models.PageDBEntry) error
}

// StoreAdmin covers store lifecycle and whole-DB operations.
type StoreAdmin interface {
	// GetVisitedCount reports how many URLs have been claimed.
	GetVisitedCount() (int, error)

	// RequeueIncomplete streams every pending or failed URL to workChan
	// with its stored depth. Resume-mode only.
	RequeueIncomplete(ctx context.Context, workChan chan<- models.WorkItem) (requeuedCount int, scanErrors int, err error)

	// WriteVisitedLog dumps all claimed URLs to a file, one per line.
	WriteVisitedLog(filePath string) error

	// RunGC loops value-log garbage collection until ctx ends.
	RunGC(ctx context.Context, interval time.Duration)

	// Close releases the underlying database.
	Close() error
}

// VisitedStore is the full store surface the crawler consumes.
type VisitedStore interface {
	PageStore
	StoreAdmin
}
