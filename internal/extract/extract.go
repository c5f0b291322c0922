// Package extract holds the per-site document parsers. Extractors never do I/O:
// they receive a fetched body and return work items or records.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"harvest/scraper/internal/domain"
	"harvest/scraper/internal/pipeline"
)

// Site parses both phases of one website.
type Site interface {
	pipeline.ListingExtractor
	pipeline.RecordExtractor

	// Fields lists the default CSV columns, nil to derive them from records.
	Fields() []string
}

// DirectoryExtractor turns a site's directory page into sources.
type DirectoryExtractor interface {
	ExtractSources(ref string, body []byte) ([]domain.Source, error)
}

// ForSite returns the extractor registered under name.
func ForSite(name, baseURL string) (Site, error) {
	switch strings.ToLower(name) {
	case "businesslist":
		return NewBusinessList(baseURL), nil
	case "jiji":
		return NewJiji(baseURL), nil
	default:
		return nil, fmt.Errorf("unknown site %q", name)
	}
}

// resolve makes href absolute against ref, falling back to base.
func resolve(base, ref, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	for _, root := range []string{ref, base} {
		rootURL, err := url.Parse(root)
		if err != nil || !rootURL.IsAbs() {
			continue
		}
		if hrefURL, err := url.Parse(href); err == nil {
			return rootURL.ResolveReference(hrefURL).String()
		}
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}

func listOrNil[T any](xs []T) any {
	if len(xs) == 0 {
		return nil
	}
	return xs
}

func mapOrNil[V any](m map[string]V) any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// snakeKey lowercases a label and joins its words with underscores.
func snakeKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}
