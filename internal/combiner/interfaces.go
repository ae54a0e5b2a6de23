package combiner

import (
	"github.com/Adda-Baaj/combined-epg/internal/domain"
	"github.com/Adda-Baaj/combined-epg/internal/storage"
)

// History records per-source outcomes and recalls the previous one.
type History interface {
	Lookup(sourceID string) (storage.Record, bool, error)
	Save(res domain.SourceResult) error
}
