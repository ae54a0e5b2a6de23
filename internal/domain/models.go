package domain

import "time"

// SourceResult is the outcome of fetching and merging one source.
type SourceResult struct {
	SourceID          string    `json:"source_id"`
	URL               string    `json:"url"`
	OK                bool      `json:"ok"`
	Error             string    `json:"error,omitempty"`
	Channels          int       `json:"channels"`
	Programmes        int       `json:"programmes"`
	DuplicateChannels int       `json:"duplicate_channels"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// RunSummary describes one completed combine run.
type RunSummary struct {
	RunID         string         `json:"run_id"`
	GeneratorName string         `json:"generator_name"`
	OutputPath    string         `json:"output_path"`
	Channels      int            `json:"channels"`
	Programmes    int            `json:"programmes"`
	Sources       []SourceResult `json:"sources"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
}

// FailedSources counts the sources that contributed nothing.
func (r RunSummary) FailedSources() int {
	n := 0
	for _, s := range r.Sources {
		if !s.OK {
			n++
		}
	}
	return n
}
