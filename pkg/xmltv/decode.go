package xmltv

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html/charset"
)

var (
	ErrNoRoot        = errors.New("xmltv: document has no root element")
	ErrMultipleRoots = errors.New("xmltv: content after root element")
)

// Decode parses an XMLTV document, keeping only the channel and programme
// children of the root. The whole input is consumed so that trailing garbage
// is reported as an error.
func Decode(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	doc := &Document{}
	rootSeen := false
	depth := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if rootSeen {
					return nil, ErrMultipleRoots
				}
				rootSeen = true
				doc.Attrs = append([]xml.Attr(nil), t.Attr...)
				depth = 1
				continue
			}
			if err := decodeChild(dec, t, doc); err != nil {
				return nil, err
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, fmt.Errorf("parse xml: unexpected text outside root element")
			}
		}
	}

	if !rootSeen {
		return nil, ErrNoRoot
	}
	return doc, nil
}

func decodeChild(dec *xml.Decoder, start xml.StartElement, doc *Document) error {
	switch start.Name.Local {
	case ChannelTag, ProgrammeTag:
	default:
		if err := dec.Skip(); err != nil {
			return fmt.Errorf("parse xml: skip <%s>: %w", start.Name.Local, err)
		}
		return nil
	}

	var el Element
	if err := dec.DecodeElement(&el, &start); err != nil {
		return fmt.Errorf("parse xml: decode <%s>: %w", start.Name.Local, err)
	}
	el.XMLName.Space = ""

	if start.Name.Local == ChannelTag {
		doc.Channels = append(doc.Channels, el)
	} else {
		doc.Programmes = append(doc.Programmes, el)
	}
	return nil
}

// DecodeGzip decompresses r and parses the XMLTV document inside it.
func DecodeGzip(r io.Reader) (*Document, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()

	doc, err := Decode(zr)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
