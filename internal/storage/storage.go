// Package storage keeps an optional ledger of per-source fetch outcomes.
package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/combined-epg/internal/domain"
)

// Record is the stored history for one source.
type Record struct {
	Last          domain.SourceResult `json:"last"`
	LastSuccessAt time.Time           `json:"last_success_at,omitempty"`
}

// Store tracks fetch outcomes by source id.
type Store interface {
	Close() error
	Lookup(sourceID string) (Record, bool, error)
	Save(res domain.SourceResult) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	RecordTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRecordTTL       = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RecordTTL <= 0 {
		opts.RecordTTL = defaultRecordTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                        { return nil }
func (noopStore) Lookup(string) (Record, bool, error) { return Record{}, false, nil }
func (noopStore) Save(domain.SourceResult) error      { return nil }
