package crawl

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"docsmap/pkg/models"
)

const runMetadataFilename = "run_metadata.yaml"

// writeRunMetadata records a summary of the completed run as YAML next to
// the sitemap file.
func (c *Crawler) writeRunMetadata(start, end time.Time) error {
	meta := models.RunMetadata{
		RunID:         uuid.NewString(),
		SiteKey:       c.siteKey,
		AllowedDomain: c.siteCfg.AllowedDomain,
		StartTime:     start.UTC(),
		EndTime:       end.UTC(),
		URLsAdded:     int64(c.writer.Len()),
		URLsIgnored:   c.ignoredCounter.Load(),
		FetchErrors:   c.errorCounter.Load(),
		SitemapPath:   c.SitemapPath(),
	}

	data, err := yaml.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("marshalling run metadata: %w", err)
	}

	metaPath := filepath.Join(c.siteOutputDir, runMetadataFilename)
	if err := os.WriteFile(metaPath, data, 0644); err != nil {
		return fmt.Errorf("writing run metadata to '%s': %w", metaPath, err)
	}
	c.log.WithField("path", metaPath).Debug("Run metadata written.")
	return nil
}
