package sitemap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"docsmap/pkg/utils"
)

// Extractor reads a sitemap XML file and writes its page URLs to a plain
// text file, one per line.
type Extractor struct {
	log *logrus.Entry
}

// NewExtractor creates an Extractor
func NewExtractor(log *logrus.Entry) *Extractor {
	return &Extractor{log: log.WithField("component", "extractor")}
}

// ExtractURLs parses sitemap XML from r and returns the text of every <loc>
// child of a <url> entry, in document order. Element names are matched by
// local name so namespaced and namespace-less sitemaps parse identically.
// Text is returned exactly as it appears, without trimming; duplicates and
// empty locs are kept. Returns an ErrParse-wrapped error on malformed XML.
func ExtractURLs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	urls := []string{}
	var stack []string // local names of currently open elements
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			sawRoot = true
			if t.Name.Local == "loc" && len(stack) > 0 && stack[len(stack)-1] == "url" {
				text, textErr := elementText(dec)
				if textErr != nil {
					return nil, fmt.Errorf("%w: %w", utils.ErrParse, textErr)
				}
				urls = append(urls, text)
				continue // loc end element already consumed
			}
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("%w: no root element found", utils.ErrParse)
	}
	return urls, nil
}

// elementText consumes tokens up to the current element's end tag and returns
// the concatenated character data directly inside it. Nested elements (which
// a well-formed loc never has) contribute no text.
func elementText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return sb.String(), nil
			}
			depth--
		case xml.CharData:
			if depth == 0 {
				sb.Write(t)
			}
		}
	}
}

// ExtractToFile reads the sitemap at inputPath and writes the extracted URLs
// to outputPath, joined with single newlines and no trailing newline. The
// output file is only touched after the whole sitemap has parsed, so a
// malformed sitemap never clobbers an existing URL list. Returns the number
// of URLs extracted.
func (e *Extractor) ExtractToFile(inputPath, outputPath string) (int, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%w: sitemap file '%s'", utils.ErrNotFound, inputPath)
		}
		return 0, fmt.Errorf("%w: opening sitemap file '%s': %w", utils.ErrFilesystem, inputPath, err)
	}
	defer file.Close()

	e.log.Debugf("Parsing sitemap file: %s", inputPath)
	urls, err := ExtractURLs(file)
	if err != nil {
		return 0, err
	}

	content := strings.Join(urls, "\n")
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return 0, fmt.Errorf("%w: writing URL list '%s': %w", utils.ErrFilesystem, outputPath, err)
	}

	e.log.Debugf("Wrote %d URLs to %s", len(urls), outputPath)
	return len(urls), nil
}
