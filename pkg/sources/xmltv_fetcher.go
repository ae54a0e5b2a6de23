package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/combined-epg/pkg/httpclient"
	"github.com/Adda-Baaj/combined-epg/pkg/xmltv"
)

// xmltvFetcher downloads a single XMLTV document, gzip-compressed or plain.
type xmltvFetcher struct {
	client     HTTPClient
	typ        string
	compressed bool
	timeout    time.Duration
}

// NewXMLTVFetcher builds a fetcher for typ, which must be TypeXMLTVGzip or TypeXMLTV.
func NewXMLTVFetcher(client HTTPClient, typ string, timeout time.Duration) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}
	return &xmltvFetcher{
		client:     client,
		typ:        typ,
		compressed: typ != TypeXMLTV,
		timeout:    timeout,
	}
}

func (f *xmltvFetcher) ID() string {
	return f.typ
}

// Fetch downloads src.URL and decodes it in memory.
func (f *xmltvFetcher) Fetch(ctx context.Context, src Source) (*xmltv.Document, error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, fmt.Errorf("source %q url is empty", src.ID)
	}

	body, err := fetchBody(ctx, f.client, src, src.URL, f.timeout)
	if err != nil {
		return nil, err
	}

	decode := xmltv.Decode
	if f.compressed {
		decode = xmltv.DecodeGzip
	}
	doc, err := decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", src.URL, err)
	}
	return doc, nil
}
