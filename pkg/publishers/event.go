package publishers

import (
	"time"

	"github.com/Adda-Baaj/combined-epg/internal/domain"
)

// EventTypeCombined marks an event announcing a freshly written guide.
const EventTypeCombined = "epg.combined"

// Event represents the payload published downstream.
type Event struct {
	Type        string            `json:"type"`
	Summary     domain.RunSummary `json:"summary"`
	PublishedAt time.Time         `json:"published_at"`
}

// NewEvent constructs an Event for a completed run.
func NewEvent(summary domain.RunSummary) Event {
	return Event{
		Type:        EventTypeCombined,
		Summary:     summary,
		PublishedAt: time.Now().UTC(),
	}
}

// attributes returns the message attributes shared by queue-style sinks.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type": e.Type,
		"run_id":     e.Summary.RunID,
	}
}
