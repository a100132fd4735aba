package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ArticleForge/internal/domain"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Event News</title>
    <link>https://example.jp</link>
    <item>
      <title>コラボカフェ開催決定</title>
      <link>https://example.jp/news/1</link>
      <description><![CDATA[<p>渋谷で<strong>期間限定</strong>カフェ</p>]]></description>
      <category>イベント</category>
      <category>カフェ</category>
      <pubDate>Mon, 24 Aug 2026 09:00:00 +0900</pubDate>
    </item>
    <item>
      <title>新グッズ情報</title>
      <link>https://example.jp/news/2</link>
      <description>プレーンテキストの告知</description>
    </item>
  </channel>
</rss>`

func TestFetchParsesItemsInOrder(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFixture))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), nil)
	entries, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if first.Title != "コラボカフェ開催決定" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Link != "https://example.jp/news/1" {
		t.Fatalf("unexpected link: %q", first.Link)
	}
	if first.Description != "渋谷で期間限定カフェ" {
		t.Fatalf("HTML should be stripped to text, got %q", first.Description)
	}
	if len(first.Categories) != 2 {
		t.Fatalf("unexpected categories: %v", first.Categories)
	}
	if first.PublishedAt == nil {
		t.Fatal("pubDate should be parsed")
	}

	if entries[1].Title != "新グッズ情報" {
		t.Fatalf("feed order must be preserved, got %q first", entries[1].Title)
	}
}

func TestFetchTransportErrorIsProviderError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client(), nil)
	_, err := fetcher.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected an error for a 502 response")
	}

	var provider *domain.ProviderError
	if !errors.As(err, &provider) {
		t.Fatalf("expected ProviderError, got %T: %v", err, err)
	}
	if provider.Step != "feed fetch" {
		t.Fatalf("error should identify the failing step, got %q", provider.Step)
	}
}

func TestStripHTML(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"<p>hello <b>world</b></p>", "hello world"},
		{"plain text", "plain text"},
		{"  padded  ", "padded"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := StripHTML(tc.in); got != tc.want {
			t.Fatalf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
