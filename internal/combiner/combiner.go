package combiner

import (
	"context"
	"fmt"
	"time"

	"github.com/Adda-Baaj/combined-epg/internal/domain"
	"github.com/Adda-Baaj/combined-epg/internal/logger"
	"github.com/Adda-Baaj/combined-epg/pkg/sources"
	"github.com/Adda-Baaj/combined-epg/pkg/xmltv"
)

// Service fetches sources one at a time and merges them into a single document.
type Service struct {
	registry sources.FetcherRegistry
	gen      xmltv.Generator
	log      logger.Logger
	history  History
	now      func() time.Time
}

// NewService wires a combiner with the source fetcher registry. history may be nil.
func NewService(reg sources.FetcherRegistry, gen xmltv.Generator, log logger.Logger, history History) *Service {
	return &Service{
		registry: reg,
		gen:      gen,
		log:      logger.Ensure(log),
		history:  history,
		now:      time.Now,
	}
}

// Merge fetches srcs in order and returns the combined document with one
// result per source. Failed sources are logged and skipped; the only error
// returned is context cancellation or an uninitialized service.
func (s *Service) Merge(ctx context.Context, srcs []sources.Source) (*xmltv.Document, []domain.SourceResult, error) {
	if s == nil || s.registry == nil {
		return nil, nil, fmt.Errorf("combiner service is not initialized")
	}

	merger := xmltv.NewMerger(s.gen)
	if len(srcs) == 0 {
		s.log.WarnObj("no sources configured; writing empty guide", "sources_count", 0)
		return merger.Document(), nil, nil
	}

	results := make([]domain.SourceResult, 0, len(srcs))
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			return nil, results, fmt.Errorf("merge interrupted: %w", err)
		}

		res := s.runSource(ctx, merger, src)
		if !res.OK && ctx.Err() != nil {
			return nil, results, fmt.Errorf("merge interrupted: %w", ctx.Err())
		}
		s.record(res)
		results = append(results, res)
	}

	doc := merger.Document()
	s.log.InfoObj("sources merged", "merge_result", map[string]any{
		"sources_count": len(srcs),
		"channels":      len(doc.Channels),
		"programmes":    len(doc.Programmes),
	})
	return doc, results, nil
}

func (s *Service) runSource(ctx context.Context, merger *xmltv.Merger, src sources.Source) domain.SourceResult {
	res := domain.SourceResult{
		SourceID:  src.ID,
		URL:       src.URL,
		StartedAt: s.now().UTC(),
	}

	doc, err := s.fetch(ctx, src)
	res.FinishedAt = s.now().UTC()
	if err != nil {
		res.Error = err.Error()
		s.logFailure(src, err)
		return res
	}

	stats := merger.Add(doc)
	res.OK = true
	res.Channels = stats.Channels
	res.DuplicateChannels = stats.DuplicateChannels
	res.Programmes = stats.Programmes

	s.log.InfoObj("source merged", "source_result", map[string]any{
		"source_id":          src.ID,
		"channels":           stats.Channels,
		"duplicate_channels": stats.DuplicateChannels,
		"programmes":         stats.Programmes,
		"elapsed_ms":         res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	})
	return res
}

func (s *Service) fetch(ctx context.Context, src sources.Source) (*xmltv.Document, error) {
	fetcher, err := s.registry.FetcherFor(src)
	if err != nil {
		return nil, fmt.Errorf("resolve fetcher for source %s: %w", src.ID, err)
	}
	doc, err := fetcher.Fetch(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("fetch source %s: %w", src.ID, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("fetch source %s: no document", src.ID)
	}
	return doc, nil
}

func (s *Service) logFailure(src sources.Source, err error) {
	fields := map[string]any{
		"source_id": src.ID,
		"url":       src.URL,
		"error":     err.Error(),
	}
	if s.history != nil {
		rec, found, lookupErr := s.history.Lookup(src.ID)
		switch {
		case lookupErr != nil:
			s.log.WarnObj("source history lookup failed", "history_error", map[string]any{
				"source_id": src.ID,
				"error":     lookupErr.Error(),
			})
		case found && !rec.LastSuccessAt.IsZero():
			fields["last_success_at"] = rec.LastSuccessAt
		}
	}
	s.log.ErrorObj("source fetch failed", "source_error", fields)
}

func (s *Service) record(res domain.SourceResult) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(res); err != nil {
		s.log.WarnObj("source history save failed", "history_error", map[string]any{
			"source_id": res.SourceID,
			"error":     err.Error(),
		})
	}
}
