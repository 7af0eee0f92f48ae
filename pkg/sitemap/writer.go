package sitemap

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"docsmap/pkg/utils"
)

// Writer accumulates accepted page URLs during a crawl and renders them as a
// sitemap XML file. Entries keep first-accepted order; deduplication happens
// upstream in the visited store, so Add never filters.
type Writer struct {
	mu      sync.Mutex
	entries []URLEntry
	log     *logrus.Entry
}

// NewWriter creates an empty sitemap Writer
func NewWriter(log *logrus.Entry) *Writer {
	return &Writer{log: log.WithField("component", "sitemap_writer")}
}

// Add appends a URL to the sitemap with the current timestamp as lastmod
func (w *Writer) Add(loc string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, URLEntry{
		Loc:     loc,
		LastMod: time.Now().UTC().Format("2006-01-02"),
	})
}

// Len returns the number of accumulated entries
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// URLs returns the accumulated locs in first-accepted order
func (w *Writer) URLs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	urls := make([]string, len(w.entries))
	for i, e := range w.entries {
		urls[i] = e.Loc
	}
	return urls
}

// Write renders the accumulated entries to path as sitemap XML. The file is
// written to a temp file in the same directory and renamed into place, so a
// crash mid-write never leaves a truncated sitemap behind.
func (w *Writer) Write(path string) error {
	w.mu.Lock()
	urlSet := URLSet{
		Xmlns: Namespace,
		URLs:  append([]URLEntry(nil), w.entries...),
	}
	w.mu.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating sitemap directory '%s': %w", utils.ErrFilesystem, dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".sitemap-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp sitemap file in '%s': %w", utils.ErrFilesystem, dir, err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath) // No-op after successful rename

	if _, err := tmpFile.WriteString(xml.Header); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: writing sitemap header: %w", utils.ErrFilesystem, err)
	}

	enc := xml.NewEncoder(tmpFile)
	enc.Indent("", "  ")
	if err := enc.Encode(urlSet); err != nil {
		tmpFile.Close()
		return fmt.Errorf("encoding sitemap XML: %w", err)
	}
	// Trailing newline after the closing tag
	if _, err := tmpFile.WriteString("\n"); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: writing sitemap: %w", utils.ErrFilesystem, err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: syncing sitemap file: %w", utils.ErrFilesystem, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("%w: closing sitemap file: %w", utils.ErrFilesystem, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: renaming sitemap into place at '%s': %w", utils.ErrFilesystem, path, err)
	}

	w.log.Infof("Wrote sitemap with %d URLs to %s", len(urlSet.URLs), path)
	return nil
}
