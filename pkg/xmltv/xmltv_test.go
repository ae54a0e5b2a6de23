package xmltv

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

const sourceA = `<?xml version="1.0" encoding="UTF-8"?>
<tv generator-info-name="ripper">
  <channel id="1"><display-name lang="en">One &amp; Only</display-name><icon src="http://x/1.png"/></channel>
  <channel id="2"><display-name>Two</display-name></channel>
  <programme start="20250101000000 +0000" stop="20250101010000 +0000" channel="1"><title>A1</title></programme>
  <programme start="20250101010000 +0000" stop="20250101020000 +0000" channel="1"><title>A2</title></programme>
  <programme start="20250101000000 +0000" stop="20250101010000 +0000" channel="2"><title>A3</title><desc>d</desc></programme>
</tv>`

const sourceB = `<?xml version="1.0" encoding="UTF-8"?>
<tv>
  <channel id="2"><display-name>Two from B</display-name></channel>
  <channel id="3"><display-name>Three</display-name></channel>
  <programme start="20250101000000 +0000" stop="20250101010000 +0000" channel="2"><title>B1</title></programme>
  <programme start="20250101000000 +0000" stop="20250101010000 +0000" channel="2"><title>B1</title></programme>
</tv>`

var testGen = Generator{Name: "Combined EPG", URL: "https://example.com/combined-epg"}

func mustDecode(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := Decode(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return doc
}

func gzipBytes(t *testing.T, raw string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(raw)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeKeepsTopLevelChannelsAndProgrammes(t *testing.T) {
	doc := mustDecode(t, sourceA)

	if len(doc.Channels) != 2 || len(doc.Programmes) != 3 {
		t.Fatalf("expected 2 channels / 3 programmes, got %d / %d", len(doc.Channels), len(doc.Programmes))
	}
	if got := doc.Attr("generator-info-name"); got != "ripper" {
		t.Fatalf("root attr = %q", got)
	}
	if doc.Channels[0].ID() != "1" {
		t.Fatalf("first channel id = %q", doc.Channels[0].ID())
	}
	inner := string(doc.Channels[0].Inner)
	if !strings.Contains(inner, `<display-name lang="en">One &amp; Only</display-name>`) {
		t.Fatalf("inner xml not preserved verbatim: %s", inner)
	}
	if got := doc.Programmes[2].Attr("channel"); got != "2" {
		t.Fatalf("programme channel attr = %q", got)
	}
}

func TestDecodeSkipsUnknownTopLevelElements(t *testing.T) {
	doc := mustDecode(t, `<tv><note>ignore <b>me</b></note><channel id="x"/></tv>`)
	if len(doc.Channels) != 1 || doc.Len() != 1 {
		t.Fatalf("expected only the channel, got %+v", doc)
	}
}

func TestDecodeRejectsMalformedXML(t *testing.T) {
	cases := map[string]string{
		"unclosed":       `<tv><channel id="1"></tv>`,
		"empty":          ``,
		"trailing root":  `<tv></tv><tv></tv>`,
		"trailing text":  `<tv></tv>junk`,
		"bad entity":     `<tv><channel id="1">&nbsp;</channel></tv>`,
		"truncated root": `<tv><channel id="1"/>`,
	}
	for name, raw := range cases {
		if _, err := Decode(strings.NewReader(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeHandlesLatin1(t *testing.T) {
	raw := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><tv><channel id=\"c\"><display-name>Caf\xe9</display-name></channel></tv>"
	doc := mustDecode(t, raw)
	if !strings.Contains(string(doc.Channels[0].Inner), "Café") {
		t.Fatalf("expected utf-8 transcoded inner xml, got %q", doc.Channels[0].Inner)
	}
}

func TestDecodeGzip(t *testing.T) {
	doc, err := DecodeGzip(bytes.NewReader(gzipBytes(t, sourceB)))
	if err != nil {
		t.Fatalf("DecodeGzip: %v", err)
	}
	if len(doc.Channels) != 2 || len(doc.Programmes) != 2 {
		t.Fatalf("unexpected counts %d / %d", len(doc.Channels), len(doc.Programmes))
	}

	if _, err := DecodeGzip(strings.NewReader(sourceB)); err == nil {
		t.Fatalf("expected error for non-gzip input")
	}
}

func TestMergerFirstChannelWinsAndProgrammesConcatenate(t *testing.T) {
	m := NewMerger(testGen)
	statsA := m.Add(mustDecode(t, sourceA))
	statsB := m.Add(mustDecode(t, sourceB))
	m.Add(nil)

	if statsA.Channels != 2 || statsA.Programmes != 3 || statsA.DuplicateChannels != 0 {
		t.Fatalf("unexpected stats for A: %+v", statsA)
	}
	if statsB.Channels != 1 || statsB.DuplicateChannels != 1 || statsB.Programmes != 2 {
		t.Fatalf("unexpected stats for B: %+v", statsB)
	}

	doc := m.Document()
	ids := make([]string, 0, len(doc.Channels))
	for _, ch := range doc.Channels {
		ids = append(ids, ch.ID())
	}
	if strings.Join(ids, ",") != "1,2,3" {
		t.Fatalf("channel order = %v", ids)
	}
	if !strings.Contains(string(doc.Channels[1].Inner), "<display-name>Two</display-name>") {
		t.Fatalf("channel 2 should come from the first source, got %s", doc.Channels[1].Inner)
	}
	if len(doc.Programmes) != 5 {
		t.Fatalf("expected 5 programmes including duplicates, got %d", len(doc.Programmes))
	}
	if doc.Attr(AttrGeneratorInfoName) != testGen.Name || doc.Attr(AttrGeneratorInfoURL) != testGen.URL {
		t.Fatalf("generator attrs missing: %+v", doc.Attrs)
	}
}

func TestMergerWithNothingAddedIsEmptyRoot(t *testing.T) {
	doc := NewMerger(testGen).Document()
	if doc.Len() != 0 {
		t.Fatalf("expected no children, got %d", doc.Len())
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<tv generator-info-name="Combined EPG" generator-info-url="https://example.com/combined-epg">` + "\n</tv>\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestEncodeRoundTripPreservesElements(t *testing.T) {
	m := NewMerger(testGen)
	m.Add(mustDecode(t, sourceA))
	combined := m.Document()

	var buf bytes.Buffer
	if err := Encode(&buf, combined); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, xmlHeaderLine) {
		t.Fatalf("missing xml declaration: %q", out[:40])
	}
	if !strings.Contains(out, `<channel id="1"><display-name lang="en">One &amp; Only</display-name><icon src="http://x/1.png"/></channel>`) {
		t.Fatalf("channel not carried verbatim:\n%s", out)
	}
	if !strings.Contains(out, `<programme start="20250101000000 +0000" stop="20250101010000 +0000" channel="1"><title>A1</title></programme>`) {
		t.Fatalf("programme attributes reordered or lost:\n%s", out)
	}

	again, err := Decode(strings.NewReader(out))
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if len(again.Channels) != 2 || len(again.Programmes) != 3 {
		t.Fatalf("round trip lost elements: %d / %d", len(again.Channels), len(again.Programmes))
	}
	if !bytes.Equal(again.Programmes[2].Inner, combined.Programmes[2].Inner) {
		t.Fatalf("programme inner changed: %q vs %q", again.Programmes[2].Inner, combined.Programmes[2].Inner)
	}
}

const xmlHeaderLine = `<?xml version="1.0" encoding="UTF-8"?>`

func TestWriteGzipFileIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	m := NewMerger(testGen)
	m.Add(mustDecode(t, sourceA))
	m.Add(mustDecode(t, sourceB))

	first := filepath.Join(dir, "a.xml.gz")
	second := filepath.Join(dir, "b.xml.gz")
	if err := WriteGzipFile(first, m.Document()); err != nil {
		t.Fatalf("WriteGzipFile: %v", err)
	}
	if err := WriteGzipFile(second, m.Document()); err != nil {
		t.Fatalf("WriteGzipFile: %v", err)
	}

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("expected identical output for identical input")
	}

	doc, err := DecodeGzip(bytes.NewReader(a))
	if err != nil {
		t.Fatalf("DecodeGzip output: %v", err)
	}
	if doc.Attr(AttrGeneratorInfoName) != testGen.Name || len(doc.Channels) != 3 || len(doc.Programmes) != 5 {
		t.Fatalf("unexpected output document %+v", doc)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestWriteGzipFileFailsForMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.xml.gz")
	if err := WriteGzipFile(path, NewDocument(testGen)); err == nil {
		t.Fatalf("expected error writing into a missing directory")
	}
}
