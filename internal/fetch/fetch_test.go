package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDocument_SetsUserAgent(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<html><body><h1>Hello</h1></body></html>`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "truelens-sync/1.0")
	doc, err := client.Document(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if agent != "truelens-sync/1.0" {
		t.Errorf("expected custom user agent, got %q", agent)
	}
	if got := doc.Find("h1").Text(); got != "Hello" {
		t.Errorf("unexpected document content: %q", got)
	}
}

func TestDocument_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "")
	if _, err := client.Document(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestFavicon_PrefersAppleTouchIcon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
<link rel="icon" href="/favicon.ico"/>
<link rel="apple-touch-icon" href="/apple-icon.png"/>
</head><body></body></html>`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "")
	got, err := client.Favicon(context.Background(), srv.URL+"/news/123/some-article")
	if err != nil {
		t.Fatalf("Favicon failed: %v", err)
	}
	if got != srv.URL+"/apple-icon.png" {
		t.Errorf("expected apple-touch-icon, got %q", got)
	}
}

func TestFavicon_ResolvesRelativeHref(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><link rel="icon" href="assets/logo.png"/></head><body></body></html>`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "")
	got, err := client.Favicon(context.Background(), srv.URL+"/deep/article/path")
	if err != nil {
		t.Fatalf("Favicon failed: %v", err)
	}
	// Relative hrefs resolve against the origin, not the article path.
	if got != srv.URL+"/assets/logo.png" {
		t.Errorf("unexpected icon url: %q", got)
	}
}

func TestFavicon_NoIconDeclared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>plain</title></head><body></body></html>`)
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), "")
	got, err := client.Favicon(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Favicon failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty icon url, got %q", got)
	}
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.adaderana.lk/news/123456/title", "https://www.adaderana.lk", false},
		{"http://example.com:8080/path?q=1", "http://example.com:8080", false},
		{"/relative/path", "", true},
		{"not a url at all\x7f://", "", true},
	}
	for _, tt := range tests {
		got, err := Origin(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Origin(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Origin(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Origin(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
