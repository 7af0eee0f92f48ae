package parse

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		stripQuery bool
		expected   string
	}{
		{"LowercasesSchemeAndHost", "HTTPS://Angular.DEV/Guide", false, "https://angular.dev/Guide"},
		{"RemovesDefaultHTTPSPort", "https://angular.dev:443/guide", false, "https://angular.dev/guide"},
		{"RemovesDefaultHTTPPort", "http://angular.dev:80/guide", false, "http://angular.dev/guide"},
		{"KeepsNonDefaultPort", "https://angular.dev:8443/guide", false, "https://angular.dev:8443/guide"},
		{"EmptyPathBecomesRoot", "https://angular.dev", false, "https://angular.dev/"},
		{"StripsTrailingSlash", "https://angular.dev/guide/", false, "https://angular.dev/guide"},
		{"KeepsRootSlash", "https://angular.dev/", false, "https://angular.dev/"},
		{"RemovesFragment", "https://angular.dev/guide#setup", false, "https://angular.dev/guide"},
		{"KeepsQueryByDefault", "https://angular.dev/search?q=signals", false, "https://angular.dev/search?q=signals"},
		{"StripsQueryWhenAsked", "https://angular.dev/search?q=signals", true, "https://angular.dev/search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeURL(mustParse(t, tt.input), tt.stripQuery)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeURL_Nil(t *testing.T) {
	assert.Equal(t, "", NormalizeURL(nil, false))
}

func TestNormalizeURL_DoesNotMutateInput(t *testing.T) {
	u := mustParse(t, "https://angular.dev/guide/?q=1#frag")
	_ = NormalizeURL(u, true)
	assert.Equal(t, "https://angular.dev/guide/?q=1#frag", u.String())
}

func TestParseAndNormalize(t *testing.T) {
	norm, parsed, err := ParseAndNormalize("https://Angular.dev/api/", false)
	assert.NoError(t, err)
	assert.Equal(t, "https://angular.dev/api", norm)
	assert.Equal(t, "Angular.dev", parsed.Host)
}

func TestParseAndNormalize_RejectsRelative(t *testing.T) {
	_, _, err := ParseAndNormalize("/guide/setup", false)
	assert.Error(t, err)
}

func TestParseAndNormalize_QueryDedupEquivalence(t *testing.T) {
	// With strip-query enabled, two URLs differing only in query normalize
	// to the same key.
	a, _, err := ParseAndNormalize("https://angular.dev/guide?ref=home", true)
	assert.NoError(t, err)
	b, _, err := ParseAndNormalize("https://angular.dev/guide?ref=footer", true)
	assert.NoError(t, err)
	assert.Equal(t, a, b)

	// Retained by default: distinct keys.
	a2, _, _ := ParseAndNormalize("https://angular.dev/guide?ref=home", false)
	b2, _, _ := ParseAndNormalize("https://angular.dev/guide?ref=footer", false)
	assert.NotEqual(t, a2, b2)
}
