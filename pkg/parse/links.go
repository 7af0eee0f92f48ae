package parse

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractLinks parses an HTML document and returns the absolute form of every
// href found in anchor tags, resolved against base (the final URL of the page
// after redirects). Fragments-only links, mailto/javascript schemes, and
// hrefs that fail to resolve are skipped. Order follows document order;
// duplicates are preserved (deduplication is the caller's concern).
func ExtractLinks(htmlBody []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", base, err)
	}

	// <base href> overrides the resolution base when present
	resolveBase := base
	if baseHref, exists := doc.Find("base[href]").First().Attr("href"); exists {
		if parsed, errBase := base.Parse(baseHref); errBase == nil {
			resolveBase = parsed
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "tel:") {
			return
		}
		// Respect rel=nofollow
		if rel, _ := sel.Attr("rel"); strings.Contains(rel, "nofollow") {
			return
		}

		resolved, errResolve := resolveBase.Parse(href)
		if errResolve != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		links = append(links, resolved.String())
	})

	return links, nil
}
