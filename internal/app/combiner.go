package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Adda-Baaj/combined-epg/internal/combiner"
	"github.com/Adda-Baaj/combined-epg/internal/config"
	"github.com/Adda-Baaj/combined-epg/internal/domain"
	"github.com/Adda-Baaj/combined-epg/internal/logger"
	"github.com/Adda-Baaj/combined-epg/internal/storage"
	"github.com/Adda-Baaj/combined-epg/pkg/httpclient"
	"github.com/Adda-Baaj/combined-epg/pkg/publishers"
	"github.com/Adda-Baaj/combined-epg/pkg/sources"
	"github.com/Adda-Baaj/combined-epg/pkg/xmltv"
)

// Combiner is the one-shot runtime: merge every enabled source, write the
// guide, record per-source history and announce the run.
type Combiner struct {
	cfg     *config.Config
	gen     xmltv.Generator
	sources []sources.Source
	service *combiner.Service
	fanout  *publishers.Fanout
	store   storage.Store
	log     logger.Logger
}

// NewCombiner builds the runtime from config.
func NewCombiner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Combiner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	sourceReg, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	enabled := sourceReg.Enabled()
	sourceIDs := make([]string, 0, len(enabled))
	for _, s := range enabled {
		sourceIDs = append(sourceIDs, s.ID)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"count": len(sourceIDs),
		"ids":   sourceIDs,
	})

	client := httpclient.NewRestyClient(httpclient.Options{
		Timeout:   sources.MaxTimeout(enabled, cfg.FetchTimeout),
		UserAgent: cfg.UserAgent,
	})
	fetchers := sources.DefaultFetcherRegistry(client, cfg.FetchTimeout, log)

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		RecordTTL:       cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"record_ttl_seconds":       int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	gen := xmltv.Generator{Name: cfg.GeneratorInfoName, URL: cfg.GeneratorInfoURL}

	return &Combiner{
		cfg:     cfg,
		gen:     gen,
		sources: enabled,
		service: combiner.NewService(fetchers, gen, log, store),
		fanout:  fanout,
		store:   store,
		log:     log,
	}, nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	if len(enabled) == 0 {
		return publishers.NewFanout(nil), nil
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Run performs a single merge and writes the combined guide to the configured
// output path. Only cancellation and write failures are returned.
func (c *Combiner) Run(ctx context.Context) (domain.RunSummary, error) {
	if c == nil || c.service == nil {
		return domain.RunSummary{}, fmt.Errorf("combiner is not initialized")
	}
	defer c.close()

	summary := domain.RunSummary{
		RunID:         uuid.NewString(),
		GeneratorName: c.gen.Name,
		OutputPath:    c.cfg.OutputPath,
		StartedAt:     time.Now().UTC(),
	}
	c.log.InfoObj("combine started", "run_meta", map[string]any{
		"run_id":        summary.RunID,
		"sources_count": len(c.sources),
	})

	doc, results, err := c.service.Merge(ctx, c.sources)
	if err != nil {
		return summary, err
	}
	summary.Sources = results
	summary.Channels = len(doc.Channels)
	summary.Programmes = len(doc.Programmes)

	if err := xmltv.WriteGzipFile(c.cfg.OutputPath, doc); err != nil {
		return summary, fmt.Errorf("write combined guide: %w", err)
	}
	summary.FinishedAt = time.Now().UTC()

	c.log.InfoObj("combined guide written", "run_result", map[string]any{
		"run_id":         summary.RunID,
		"output_path":    summary.OutputPath,
		"channels":       summary.Channels,
		"programmes":     summary.Programmes,
		"failed_sources": summary.FailedSources(),
		"elapsed_ms":     summary.FinishedAt.Sub(summary.StartedAt).Milliseconds(),
	})

	c.publish(ctx, summary)
	return summary, nil
}

func (c *Combiner) publish(ctx context.Context, summary domain.RunSummary) {
	if c.fanout.Size() == 0 {
		return
	}
	delivered, err := c.fanout.Publish(ctx, publishers.NewEvent(summary))
	if err != nil {
		c.log.ErrorObj("run event publish failed", "publish_error", map[string]any{
			"run_id":    summary.RunID,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	c.log.DebugObj("run event published", "publish_result", map[string]any{
		"run_id":    summary.RunID,
		"delivered": delivered,
	})
}

// close releases the store and publisher clients, logging any errors encountered.
func (c *Combiner) close() {
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.log.ErrorObj("storage close failed", "error", err)
		}
	}
	if err := c.fanout.Close(); err != nil {
		c.log.ErrorObj("publisher close failed", "error", err)
	}
}
