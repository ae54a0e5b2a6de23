package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/combined-epg/pkg/httpclient"
	"github.com/Adda-Baaj/combined-epg/pkg/xmltv"
)

const (
	defaultIndexSuffix = ".xml.gz"
	maxListingBytes    = 4 << 20 // 4 MiB
)

// indexFetcher reads an HTML directory listing and fetches every linked
// XMLTV file, in link order, through the wrapped fetcher.
type indexFetcher struct {
	client  HTTPClient
	inner   Fetcher
	timeout time.Duration
	log     Logger
}

// NewIndexFetcher builds a fetcher for TypeXMLTVIndex sources.
func NewIndexFetcher(client HTTPClient, inner Fetcher, timeout time.Duration, log Logger) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if inner == nil {
		inner = NewXMLTVFetcher(client, TypeXMLTVGzip, timeout)
	}
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}
	return &indexFetcher{
		client:  client,
		inner:   inner,
		timeout: timeout,
		log:     ensureLogger(log),
	}
}

func (f *indexFetcher) ID() string {
	return TypeXMLTVIndex
}

// Fetch concatenates the documents of every matching link. Links that fail
// are logged and skipped; the source fails only if none succeed.
func (f *indexFetcher) Fetch(ctx context.Context, src Source) (*xmltv.Document, error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, fmt.Errorf("source %q url is empty", src.ID)
	}

	body, err := fetchBody(ctx, f.client, src, src.URL, f.timeout)
	if err != nil {
		return nil, err
	}
	if len(body) > maxListingBytes {
		body = body[:maxListingBytes]
	}

	links, err := listingLinks(body, src)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%s listing has no matching links", src.ID)
	}

	combined := &xmltv.Document{}
	var errs []error
	succeeded := 0
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sub := src
		sub.ID = fmt.Sprintf("%s#%d", src.ID, i)
		sub.URL = link
		doc, err := f.inner.Fetch(ctx, sub)
		if err != nil {
			errs = append(errs, err)
			f.log.WarnObj("index entry fetch failed", "index_entry_error", map[string]any{
				"source_id": src.ID,
				"url":       link,
				"error":     err.Error(),
			})
			continue
		}
		combined.Append(doc)
		succeeded++
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%s: all %d listed files failed: %w", src.ID, len(links), errors.Join(errs...))
	}

	f.log.DebugObj("index source fetched", "index_result", map[string]any{
		"source_id":  src.ID,
		"links":      len(links),
		"succeeded":  succeeded,
		"channels":   len(combined.Channels),
		"programmes": len(combined.Programmes),
	})
	return combined, nil
}

// listingLinks extracts absolute links from an HTML listing that end with the
// configured suffix and match the optional pattern. Duplicates keep their
// first position.
func listingLinks(body []byte, src Source) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	suffix := strings.ToLower(ConfigString(src, ConfigSuffixKey, defaultIndexSuffix))
	var pattern *regexp.Regexp
	if raw := ConfigString(src, ConfigPatternKey, ""); raw != "" {
		if pattern, err = compilePattern(raw); err != nil {
			return nil, fmt.Errorf("compile pattern: %w", err)
		}
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := resolveURL(strings.TrimSpace(href), base)
		if abs == "" {
			return
		}
		if !strings.HasSuffix(strings.ToLower(abs), suffix) {
			return
		}
		if pattern != nil && !pattern.MatchString(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links, nil
}

func resolveURL(href string, base *url.URL) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
