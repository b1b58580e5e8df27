package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"sync/atomic"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestFilterByTopics(t *testing.T) {
	urls := []string{
		"https://developer.example.com/encompass/loans/pipeline",
		"https://developer.example.com/blog/news",
		"https://developer.example.com/auth/oauth-tokens",
	}
	tests := []struct {
		name   string
		topics []string
		want   []string
	}{
		{name: "no topics keeps all", topics: nil, want: urls},
		{name: "stemmed match", topics: []string{"loan"}, want: urls[:1]},
		{name: "any topic", topics: []string{"Loan", "token"}, want: []string{urls[0], urls[2]}},
		{name: "no match", topics: []string{"weather"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByTopics(urls, tt.topics)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FilterByTopics() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSitemapReaderFollowsIndex(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/docs.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/docs.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://developer.example.com/loans</loc></url>
  <url><loc> https://developer.example.com/auth </loc></url>
</urlset>`)
	})

	r := NewSitemapReader(DefaultConfig(), zaptest.NewLogger(t))
	got, err := r.Read(context.Background(), srv.URL+"/sitemap.xml")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	sort.Strings(got)
	want := []string{"https://developer.example.com/auth", "https://developer.example.com/loans"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Read() = %v, want %v", got, want)
	}
}

func TestSitemapReaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var nestedHits atomic.Int32
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/docs.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/docs.xml", func(w http.ResponseWriter, r *http.Request) {
		nestedHits.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>`)
	})

	r := NewSitemapReader(DefaultConfig(), zaptest.NewLogger(t))
	_, err := r.Read(ctx, srv.URL+"/sitemap.xml")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Read() error = %v, want context.Canceled", err)
	}
	if n := nestedHits.Load(); n != 0 {
		t.Errorf("nested sitemap fetched %d times after cancel", n)
	}
}
