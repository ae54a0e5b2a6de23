package sources

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Adda-Baaj/combined-epg/pkg/httpclient"
)

// fetcherRegistry implements FetcherRegistry.
type fetcherRegistry struct {
	fetchersByID   map[string]Fetcher
	fetchersByType map[string]Fetcher
	mu             sync.RWMutex
}

// NewFetcherRegistry builds a registry for the provided fetcher implementations keyed by source id.
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	return NewTypeFetcherRegistry(nil, fetchers...)
}

// NewTypeFetcherRegistry builds a registry with type-based fetchers and optional source-specific fetchers.
func NewTypeFetcherRegistry(typeFetchers map[string]Fetcher, fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{
		fetchersByID:   make(map[string]Fetcher),
		fetchersByType: make(map[string]Fetcher),
	}

	for _, f := range fetchers {
		reg.registerIDFetcher(f)
	}
	for typ, f := range typeFetchers {
		reg.registerTypeFetcher(typ, f)
	}

	return reg
}

func (r *fetcherRegistry) registerIDFetcher(f Fetcher) {
	if f == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(f.ID()))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchersByID[key] = f
	r.mu.Unlock()
}

func (r *fetcherRegistry) registerTypeFetcher(typ string, f Fetcher) {
	if f == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchersByType[key] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the given source based on its id or type.
func (r *fetcherRegistry) FetcherFor(src Source) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("fetcher registry is nil")
	}
	if strings.TrimSpace(src.ID) == "" {
		return nil, fmt.Errorf("source id is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idKey := strings.ToLower(strings.TrimSpace(src.ID))
	if f, ok := r.fetchersByID[idKey]; ok {
		return f, nil
	}

	typeKey := strings.ToLower(strings.TrimSpace(src.Type))
	if typeKey == "" {
		typeKey = TypeXMLTVGzip
	}
	if f, ok := r.fetchersByType[typeKey]; ok {
		return f, nil
	}

	return nil, fmt.Errorf("no fetcher registered for source %q (type %q)", src.ID, src.Type)
}

// DefaultHTTPClient returns the resty-backed client used for source downloads.
func DefaultHTTPClient() HTTPClient {
	return httpclient.NewRestyClient(httpclient.Options{Timeout: httpclient.DefaultTimeout})
}

// DefaultFetcherRegistry wires up the known source types. timeout is the
// per-source fallback when a source sets none.
func DefaultFetcherRegistry(client HTTPClient, timeout time.Duration, log Logger) FetcherRegistry {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}

	gz := NewXMLTVFetcher(client, TypeXMLTVGzip, timeout)
	typeFetchers := map[string]Fetcher{
		TypeXMLTVGzip:  gz,
		TypeXMLTV:      NewXMLTVFetcher(client, TypeXMLTV, timeout),
		TypeXMLTVIndex: NewIndexFetcher(client, gz, timeout, log),
	}

	return NewTypeFetcherRegistry(typeFetchers)
}
