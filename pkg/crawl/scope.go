package crawl

import (
	"net/url"
	"strings"
)

// Ignore reasons recorded against out-of-scope URLs.
const (
	reasonScheme     = "Scope_Scheme"
	reasonDomain     = "Scope_Domain"
	reasonPathPrefix = "Scope_PathPrefix"
	reasonDisallowed = "Scope_DisallowedPattern"
	reasonDepth      = "Policy_MaxDepth"
	reasonRobots     = "Policy_Robots"
)

// inScope checks a URL against the site's crawl scope: scheme, allowed
// domain, allowed path prefix, and disallowed path patterns. Returns whether
// the URL is crawlable and, if not, the reason it was rejected.
func (c *Crawler) inScope(u *url.URL) (bool, string) {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, reasonScheme
	}
	if u.Hostname() != c.siteCfg.AllowedDomain {
		return false, reasonDomain
	}
	targetPath := u.Path
	if targetPath == "" {
		targetPath = "/"
	}
	if !strings.HasPrefix(targetPath, c.siteCfg.AllowedPathPrefix) {
		return false, reasonPathPrefix
	}
	for _, pattern := range c.disallowedPatterns {
		if pattern.MatchString(u.Path) {
			return false, reasonDisallowed
		}
	}
	return true, ""
}
