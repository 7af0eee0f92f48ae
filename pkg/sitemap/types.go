package sitemap

import "encoding/xml"

// Namespace is the sitemap protocol namespace written on generated files.
const Namespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// URLEntry represents a <url> element in a sitemap
type URLEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// URLSet represents a <urlset> element in a sitemap
type URLSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []URLEntry `xml:"url"`
}

// IndexEntry represents a <sitemap> element in a sitemap index file
type IndexEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Index represents a <sitemapindex> element
type Index struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Xmlns    string       `xml:"xmlns,attr"`
	Sitemaps []IndexEntry `xml:"sitemap"`
}
