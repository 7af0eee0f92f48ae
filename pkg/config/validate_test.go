package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docsmap/pkg/utils"
)

func TestAppConfig_Validate_AppliesDefaults(t *testing.T) {
	cfg := AppConfig{}
	warnings, err := cfg.Validate()

	assert.NoError(t, err)
	assert.NotEmpty(t, warnings)

	assert.Equal(t, 4, cfg.NumWorkers)
	assert.Equal(t, 10, cfg.MaxRequests)
	assert.Equal(t, "./sitemaps", cfg.OutputBaseDir)
	assert.Equal(t, "./crawler_state", cfg.StateDir)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.InitialRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.SemaphoreAcquireTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DBGCInterval)

	// HTTP client defaults
	assert.Equal(t, 45*time.Second, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
	assert.Equal(t, 2, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
}

func TestAppConfig_Validate_RetryDelayOrdering(t *testing.T) {
	cfg := AppConfig{
		MaxRetries:        3,
		InitialRetryDelay: 60 * time.Second,
		MaxRetryDelay:     10 * time.Second,
	}
	warnings, err := cfg.Validate()

	assert.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 10*time.Second, cfg.InitialRetryDelay)
}

func TestAppConfig_Validate_NegativeGlobalTimeout(t *testing.T) {
	cfg := AppConfig{GlobalCrawlTimeout: -1 * time.Second}
	_, err := cfg.Validate()

	assert.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.GlobalCrawlTimeout)
}

func TestSiteConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SiteConfig
		wantErr bool
	}{
		{
			name: "valid minimal",
			cfg: SiteConfig{
				StartURLs:     []string{"https://angular.dev/"},
				AllowedDomain: "angular.dev",
			},
			wantErr: false,
		},
		{
			name:    "missing start urls",
			cfg:     SiteConfig{AllowedDomain: "angular.dev"},
			wantErr: true,
		},
		{
			name: "missing allowed domain",
			cfg: SiteConfig{
				StartURLs: []string{"https://angular.dev/"},
			},
			wantErr: true,
		},
		{
			name: "relative start url",
			cfg: SiteConfig{
				StartURLs:     []string{"/docs/intro"},
				AllowedDomain: "angular.dev",
			},
			wantErr: true,
		},
		{
			name: "non-http scheme",
			cfg: SiteConfig{
				StartURLs:     []string{"ftp://angular.dev/"},
				AllowedDomain: "angular.dev",
			},
			wantErr: true,
		},
		{
			name: "bad disallowed pattern",
			cfg: SiteConfig{
				StartURLs:              []string{"https://angular.dev/"},
				AllowedDomain:          "angular.dev",
				DisallowedPathPatterns: []string{"[unclosed"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, utils.ErrConfigValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSiteConfig_Validate_PathPrefixNormalization(t *testing.T) {
	cfg := SiteConfig{
		StartURLs:         []string{"https://angular.dev/guide/"},
		AllowedDomain:     "angular.dev",
		AllowedPathPrefix: "guide",
	}
	_, err := cfg.Validate()
	assert.NoError(t, err)
	assert.Equal(t, "/guide", cfg.AllowedPathPrefix)

	cfg2 := SiteConfig{
		StartURLs:     []string{"https://angular.dev/"},
		AllowedDomain: "angular.dev",
	}
	_, err = cfg2.Validate()
	assert.NoError(t, err)
	assert.Equal(t, "/", cfg2.AllowedPathPrefix)
}

func TestSiteConfig_Validate_NegativeDepth(t *testing.T) {
	cfg := SiteConfig{
		StartURLs:     []string{"https://angular.dev/"},
		AllowedDomain: "angular.dev",
		MaxDepth:      -2,
	}
	warnings, err := cfg.Validate()
	assert.NoError(t, err)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, 0, cfg.MaxDepth)
}
