package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool {
	return &b
}

func TestGetEffectiveStripQueryString(t *testing.T) {
	tests := []struct {
		name     string
		siteCfg  SiteConfig
		appCfg   AppConfig
		expected bool
	}{
		{
			name:     "site enabled overrides global disabled",
			siteCfg:  SiteConfig{StripQueryString: boolPtr(true)},
			appCfg:   AppConfig{StripQueryString: false},
			expected: true,
		},
		{
			name:     "site disabled overrides global enabled",
			siteCfg:  SiteConfig{StripQueryString: boolPtr(false)},
			appCfg:   AppConfig{StripQueryString: true},
			expected: false,
		},
		{
			name:     "site nil uses global enabled",
			siteCfg:  SiteConfig{StripQueryString: nil},
			appCfg:   AppConfig{StripQueryString: true},
			expected: true,
		},
		{
			name:     "site nil and global unset defaults to retaining queries",
			siteCfg:  SiteConfig{StripQueryString: nil},
			appCfg:   AppConfig{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetEffectiveStripQueryString(tt.siteCfg, tt.appCfg)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestGetEffectiveSitemapFilename(t *testing.T) {
	tests := []struct {
		name     string
		siteCfg  SiteConfig
		appCfg   AppConfig
		expected string
	}{
		{
			name:     "site filename overrides global",
			siteCfg:  SiteConfig{SitemapFilename: "site.xml"},
			appCfg:   AppConfig{SitemapFilename: "global.xml"},
			expected: "site.xml",
		},
		{
			name:     "site empty uses global filename",
			siteCfg:  SiteConfig{},
			appCfg:   AppConfig{SitemapFilename: "global.xml"},
			expected: "global.xml",
		},
		{
			name:     "both empty uses default",
			siteCfg:  SiteConfig{},
			appCfg:   AppConfig{},
			expected: "sitemap.xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetEffectiveSitemapFilename(tt.siteCfg, tt.appCfg))
		})
	}
}

func TestGetEffectiveURLListFilename(t *testing.T) {
	tests := []struct {
		name     string
		siteCfg  SiteConfig
		appCfg   AppConfig
		expected string
	}{
		{
			name:     "site filename overrides global",
			siteCfg:  SiteConfig{URLListFilename: "angular-docs-urls.txt"},
			appCfg:   AppConfig{URLListFilename: "urls-global.txt"},
			expected: "angular-docs-urls.txt",
		},
		{
			name:     "site empty uses global filename",
			siteCfg:  SiteConfig{},
			appCfg:   AppConfig{URLListFilename: "urls-global.txt"},
			expected: "urls-global.txt",
		},
		{
			name:     "both empty uses default",
			siteCfg:  SiteConfig{},
			appCfg:   AppConfig{},
			expected: "urls.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetEffectiveURLListFilename(tt.siteCfg, tt.appCfg))
		})
	}
}

func TestGetEffectiveUserAgent(t *testing.T) {
	site := SiteConfig{UserAgent: "site-bot/1.0"}
	app := AppConfig{DefaultUserAgent: "docsmap/1.0"}

	assert.Equal(t, "site-bot/1.0", GetEffectiveUserAgent(site, app))
	assert.Equal(t, "docsmap/1.0", GetEffectiveUserAgent(SiteConfig{}, app))
}

func TestGetEffectiveDelayPerHost(t *testing.T) {
	site := SiteConfig{DelayPerHost: 2 * time.Second}
	app := AppConfig{DefaultDelayPerHost: 500 * time.Millisecond}

	assert.Equal(t, 2*time.Second, GetEffectiveDelayPerHost(site, app))
	assert.Equal(t, 500*time.Millisecond, GetEffectiveDelayPerHost(SiteConfig{}, app))
}
