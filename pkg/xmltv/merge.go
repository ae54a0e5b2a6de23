package xmltv

// Merger accumulates channels and programmes from several documents.
// Channels are unique by id with the first occurrence kept; programmes are
// concatenated as-is.
type Merger struct {
	gen        Generator
	channelIdx map[string]struct{}
	channels   []Element
	programmes []Element
}

// MergeStats reports what one Add call contributed.
type MergeStats struct {
	Channels          int
	DuplicateChannels int
	Programmes        int
}

// NewMerger builds an empty merger whose output carries gen's identity.
func NewMerger(gen Generator) *Merger {
	return &Merger{
		gen:        gen,
		channelIdx: make(map[string]struct{}),
	}
}

// Add folds doc into the accumulated result. A nil doc contributes nothing.
func (m *Merger) Add(doc *Document) MergeStats {
	var stats MergeStats
	if m == nil || doc == nil {
		return stats
	}

	for _, ch := range doc.Channels {
		id := ch.ID()
		if _, seen := m.channelIdx[id]; seen {
			stats.DuplicateChannels++
			continue
		}
		m.channelIdx[id] = struct{}{}
		m.channels = append(m.channels, ch)
		stats.Channels++
	}

	m.programmes = append(m.programmes, doc.Programmes...)
	stats.Programmes = len(doc.Programmes)
	return stats
}

// Document returns the combined tv document: retained channels in first-seen
// order followed by every programme in the order added.
func (m *Merger) Document() *Document {
	if m == nil {
		return NewDocument(Generator{})
	}
	out := NewDocument(m.gen)
	out.Channels = append([]Element(nil), m.channels...)
	out.Programmes = append([]Element(nil), m.programmes...)
	return out
}
