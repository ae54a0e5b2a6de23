package xmltv

import (
	"encoding/xml"
)

// Package xmltv models XMLTV documents as opaque element subtrees.

const (
	RootTag      = "tv"
	ChannelTag   = "channel"
	ProgrammeTag = "programme"

	AttrID                = "id"
	AttrGeneratorInfoName = "generator-info-name"
	AttrGeneratorInfoURL  = "generator-info-url"
)

// Element is a top-level XMLTV element carried through without interpretation.
// Attributes keep their source order and Inner holds the raw nested XML.
type Element struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

// Attr returns the value of the unqualified attribute name, or "".
func (e Element) Attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ID returns the element's id attribute.
func (e Element) ID() string { return e.Attr(AttrID) }

// Document is a tv root with its channel and programme children.
type Document struct {
	Attrs      []xml.Attr
	Channels   []Element
	Programmes []Element
}

// Generator identifies the program that produced a combined document.
type Generator struct {
	Name string
	URL  string
}

// NewDocument returns an empty tv document stamped with the generator identity.
func NewDocument(gen Generator) *Document {
	return &Document{
		Attrs: []xml.Attr{
			{Name: xml.Name{Local: AttrGeneratorInfoName}, Value: gen.Name},
			{Name: xml.Name{Local: AttrGeneratorInfoURL}, Value: gen.URL},
		},
	}
}

// Attr returns the value of the root attribute name, or "".
func (d *Document) Attr(name string) string {
	if d == nil {
		return ""
	}
	for _, a := range d.Attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Len reports the number of children under the root.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Channels) + len(d.Programmes)
}

// Append concatenates other's children onto d without deduplication.
func (d *Document) Append(other *Document) {
	if d == nil || other == nil {
		return
	}
	d.Channels = append(d.Channels, other.Channels...)
	d.Programmes = append(d.Programmes, other.Programmes...)
}
