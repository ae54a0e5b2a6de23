package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRestyClientSendsDefaultAndRequestHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "combined-epg/test" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := r.Header.Get("X-Token"); got != "abc" {
			t.Errorf("X-Token = %q", got)
		}
		w.Header().Set("Content-Type", "application/gzip")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("body"))
	}))
	defer srv.Close()

	client := NewRestyClient(Options{Timeout: time.Second, UserAgent: "combined-epg/test"})
	resp, err := client.Get(context.Background(), srv.URL, map[string]string{"X-Token": "abc"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusTeapot {
		t.Fatalf("StatusCode = %d", resp.StatusCode())
	}
	if string(resp.Body()) != "body" {
		t.Fatalf("Body = %q", resp.Body())
	}
	if resp.Header("Content-Type") != "application/gzip" {
		t.Fatalf("Content-Type = %q", resp.Header("Content-Type"))
	}
}

func TestRestyClientTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewRestyClient(Options{Timeout: 50 * time.Millisecond})
	if _, err := client.Get(context.Background(), srv.URL, nil); err == nil {
		t.Fatalf("expected timeout error")
	}
}
