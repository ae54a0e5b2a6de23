package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

var newline = xml.CharData("\n")

// Encode writes doc as UTF-8 XML prefixed with the XML declaration.
func Encode(w io.Writer, doc *Document) error {
	if doc == nil {
		doc = &Document{}
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xml header: %w", err)
	}

	enc := xml.NewEncoder(w)
	root := xml.StartElement{Name: xml.Name{Local: RootTag}, Attr: doc.Attrs}
	if err := enc.EncodeToken(root); err != nil {
		return fmt.Errorf("encode root: %w", err)
	}
	if err := enc.EncodeToken(newline); err != nil {
		return err
	}

	for _, group := range [][]Element{doc.Channels, doc.Programmes} {
		for i := range group {
			if err := enc.Encode(group[i]); err != nil {
				return fmt.Errorf("encode <%s>: %w", group[i].XMLName.Local, err)
			}
			if err := enc.EncodeToken(newline); err != nil {
				return err
			}
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return fmt.Errorf("encode root end: %w", err)
	}
	if err := enc.EncodeToken(newline); err != nil {
		return err
	}
	return enc.Flush()
}

// EncodeGzip writes doc as gzip-compressed XML.
func EncodeGzip(w io.Writer, doc *Document) error {
	zw := gzip.NewWriter(w)
	if err := Encode(zw, doc); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close gzip stream: %w", err)
	}
	return nil
}

// WriteGzipFile writes doc to path as gzip-compressed XML. The data goes to a
// temporary file in the same directory first and is renamed into place.
func WriteGzipFile(path string, doc *Document) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err = EncodeGzip(tmp, doc); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}
