package sources

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/Adda-Baaj/combined-epg/pkg/httpclient"
	"github.com/Adda-Baaj/combined-epg/pkg/xmltv"
)

// fakeResponse lets us stub the httpclient.Client interface.
type fakeResponse struct {
	body       []byte
	statusCode int
}

func (f fakeResponse) Body() []byte         { return f.body }
func (f fakeResponse) StatusCode() int      { return f.statusCode }
func (f fakeResponse) Header(string) string { return "" }

// fakeHTTPClient returns canned responses per URL to avoid network calls.
type fakeHTTPClient struct {
	responses map[string]fakeResponse
	calls     []string
	headers   []map[string]string
	deadlines []bool
}

func (f *fakeHTTPClient) Get(ctx context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	f.calls = append(f.calls, url)
	f.headers = append(f.headers, headers)
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
	resp, ok := f.responses[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	if resp.statusCode == 0 {
		resp.statusCode = 200
	}
	return resp, nil
}

func gz(t *testing.T, raw string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(raw)); err != nil {
		t.Fatalf("gzip: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

const epgOne = `<tv><channel id="c1"><display-name>One</display-name></channel><programme channel="c1" start="1"><title>P</title></programme></tv>`
const epgTwo = `<tv><channel id="c2"/><programme channel="c2" start="2"/><programme channel="c2" start="3"/></tv>`

func TestXMLTVFetcherDecodesGzip(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://a/epg.xml.gz": {body: gz(t, epgOne)},
	}}
	f := NewXMLTVFetcher(client, TypeXMLTVGzip, time.Second)

	doc, err := f.Fetch(context.Background(), Source{ID: "a", URL: "https://a/epg.xml.gz", Headers: map[string]string{"X-A": "1"}})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(doc.Channels) != 1 || len(doc.Programmes) != 1 {
		t.Fatalf("unexpected doc %+v", doc)
	}
	if client.headers[0]["X-A"] != "1" {
		t.Fatalf("source headers not forwarded: %#v", client.headers[0])
	}
	if !client.deadlines[0] {
		t.Fatalf("expected request context to carry a deadline")
	}
}

func TestXMLTVFetcherFailures(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://x/status":    {statusCode: 404, body: []byte("not found")},
		"https://x/notgzip":   {body: []byte(epgOne)},
		"https://x/malformed": {body: gz(t, `<tv><channel id="1">`)},
	}}
	f := NewXMLTVFetcher(client, TypeXMLTVGzip, time.Second)

	for _, u := range []string{"https://x/status", "https://x/notgzip", "https://x/malformed", "https://x/offline"} {
		doc, err := f.Fetch(context.Background(), Source{ID: "x", URL: u})
		if err == nil || doc != nil {
			t.Fatalf("%s: expected failure, got doc=%v err=%v", u, doc, err)
		}
	}
}

func TestXMLTVFetcherPlain(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://p/epg.xml": {body: []byte(epgTwo)},
	}}
	f := NewXMLTVFetcher(client, TypeXMLTV, time.Second)
	doc, err := f.Fetch(context.Background(), Source{ID: "p", URL: "https://p/epg.xml", Type: TypeXMLTV})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(doc.Programmes) != 2 {
		t.Fatalf("expected 2 programmes, got %d", len(doc.Programmes))
	}
}

const listing = `<html><body>
<a href="../">Parent</a>
<a href="epg_ripper_US1.xml.gz">US1</a>
<a href="epg_ripper_CA1.xml.gz">CA1</a>
<a href="/epgshare01/epg_ripper_US2.xml.gz">US2</a>
<a href="epg_ripper_US1.xml.gz">US1 again</a>
<a href="readme.txt">readme</a>
<a href="epg_ripper_US3.xml.gz">US3</a>
</body></html>`

func TestIndexFetcherFetchesMatchingLinksInOrder(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://epg.example/epgshare01/":                      {body: []byte(listing)},
		"https://epg.example/epgshare01/epg_ripper_US1.xml.gz": {body: gz(t, epgOne)},
		"https://epg.example/epgshare01/epg_ripper_US2.xml.gz": {body: gz(t, epgTwo)},
		// US3 is missing and fails.
	}}
	reg := DefaultFetcherRegistry(client, time.Second, nil)
	src := Source{
		ID:     "idx",
		Type:   TypeXMLTVIndex,
		URL:    "https://epg.example/epgshare01/",
		Config: map[string]any{ConfigPatternKey: `_US[0-9]+\.`},
	}

	f, err := reg.FetcherFor(src)
	if err != nil {
		t.Fatalf("FetcherFor: %v", err)
	}
	doc, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	wantCalls := []string{
		"https://epg.example/epgshare01/",
		"https://epg.example/epgshare01/epg_ripper_US1.xml.gz",
		"https://epg.example/epgshare01/epg_ripper_US2.xml.gz",
		"https://epg.example/epgshare01/epg_ripper_US3.xml.gz",
	}
	if strings.Join(client.calls, "\n") != strings.Join(wantCalls, "\n") {
		t.Fatalf("unexpected calls:\n%s", strings.Join(client.calls, "\n"))
	}
	if len(doc.Channels) != 2 || doc.Channels[0].ID() != "c1" || doc.Channels[1].ID() != "c2" {
		t.Fatalf("unexpected channels %+v", doc.Channels)
	}
	if len(doc.Programmes) != 3 {
		t.Fatalf("expected 3 programmes, got %d", len(doc.Programmes))
	}
}

func TestIndexFetcherFailsWhenNothingSucceeds(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://epg.example/epgshare01/": {body: []byte(listing)},
	}}
	f := NewIndexFetcher(client, nil, time.Second, nil)
	if _, err := f.Fetch(context.Background(), Source{ID: "idx", URL: "https://epg.example/epgshare01/"}); err == nil {
		t.Fatalf("expected error when every listed file fails")
	}

	empty := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://epg.example/": {body: []byte(`<html><a href="x.txt">x</a></html>`)},
	}}
	f = NewIndexFetcher(empty, nil, time.Second, nil)
	if _, err := f.Fetch(context.Background(), Source{ID: "idx", URL: "https://epg.example/"}); err == nil {
		t.Fatalf("expected error for listing without links")
	}
}

type stubFetcher struct{ id string }

func (s stubFetcher) ID() string { return s.id }
func (s stubFetcher) Fetch(context.Context, Source) (*xmltv.Document, error) {
	return &xmltv.Document{}, nil
}

func TestFetcherRegistryPrefersIDOverType(t *testing.T) {
	reg := NewTypeFetcherRegistry(map[string]Fetcher{
		TypeXMLTVGzip: stubFetcher{id: "by-type"},
	}, stubFetcher{id: "Special"})

	f, err := reg.FetcherFor(Source{ID: "special", Type: TypeXMLTVGzip})
	if err != nil || f.ID() != "Special" {
		t.Fatalf("expected id fetcher, got %v %v", f, err)
	}
	f, err = reg.FetcherFor(Source{ID: "other"})
	if err != nil || f.ID() != "by-type" {
		t.Fatalf("expected default type fetcher, got %v %v", f, err)
	}
	if _, err := reg.FetcherFor(Source{ID: "other", Type: TypeXMLTV}); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
	if _, err := reg.FetcherFor(Source{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
