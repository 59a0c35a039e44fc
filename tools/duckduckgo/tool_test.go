package duckduckgo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const resultHTML = `<div class="result">
  <h2 class="result__title">
    <a class="result__a" href="%s">%s</a>
  </h2>
  <a class="result__snippet">%s</a>
</div>`

func startSearchServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q == "" {
			t.Errorf("missing q parameter in search request")
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
}

func TestSearchParsesResults(t *testing.T) {
	body := fmt.Sprintf(resultHTML, "https://example.com/tesla", "Tesla news", "Latest <b>Tesla</b> coverage.") +
		fmt.Sprintf(resultHTML, "https://example.org/markets", "Market trends", "Analysis of market trends.")
	srv := startSearchServer(t, "<html><body>"+body+"</body></html>", http.StatusOK)
	defer srv.Close()

	tool := New(WithBaseURL(srv.URL))
	output := new(Output)
	if err := tool.Run(context.Background(), NewInput("latest tesla news"), output); err != nil {
		t.Fatalf("Error running search: %v", err)
	}
	if len(output.Results) != 2 {
		t.Fatalf("Error number of results, expect 2, but got %d", len(output.Results))
	}
	item := output.Results[0]
	if item.Title != "Tesla news" {
		t.Errorf("Expect title Tesla news, but got %s", item.Title)
	}
	if item.URL != "https://example.com/tesla" {
		t.Errorf("Expect url https://example.com/tesla, but got %s", item.URL)
	}
	if item.Query != "latest tesla news" {
		t.Errorf("Expect query latest tesla news, but got %s", item.Query)
	}
	if item.Content == "" {
		t.Errorf("Expect non-empty snippet content")
	}
}

func TestSearchDecodesRedirectLinks(t *testing.T) {
	href := "//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fdecoded&rut=abc"
	body := fmt.Sprintf(resultHTML, href, "Redirected", "snippet")
	srv := startSearchServer(t, body, http.StatusOK)
	defer srv.Close()

	tool := New(WithBaseURL(srv.URL))
	output := new(Output)
	if err := tool.Run(context.Background(), NewInput("query"), output); err != nil {
		t.Fatalf("Error running search: %v", err)
	}
	if len(output.Results) != 1 {
		t.Fatalf("Error number of results, expect 1, but got %d", len(output.Results))
	}
	if url := output.Results[0].URL; url != "https://example.com/decoded" {
		t.Errorf("Expect decoded url, but got %s", url)
	}
}

func TestSearchWithMaxResults(t *testing.T) {
	var body string
	for i := 0; i < 5; i++ {
		body += fmt.Sprintf(resultHTML, fmt.Sprintf("https://example.com/%d", i), fmt.Sprintf("Result %d", i), "content")
	}
	srv := startSearchServer(t, body, http.StatusOK)
	defer srv.Close()

	tool := New(WithBaseURL(srv.URL), WithMaxResults(2))
	output := new(Output)
	if err := tool.Run(context.Background(), NewInput("query"), output); err != nil {
		t.Fatalf("Error running search: %v", err)
	}
	if len(output.Results) != 2 {
		t.Errorf("Error number of results, expect 2, but got %d", len(output.Results))
	}
}

func TestSearchUnavailable(t *testing.T) {
	srv := startSearchServer(t, "rate limited", http.StatusTooManyRequests)
	defer srv.Close()

	tool := New(WithBaseURL(srv.URL))
	output := new(Output)
	err := tool.Run(context.Background(), NewInput("query"), output)
	if err == nil {
		t.Fatalf("Expect error for non-200 response")
	}
	if !errors.Is(err, ErrSearchUnavailable) {
		t.Errorf("Expect ErrSearchUnavailable, but got %v", err)
	}
}

func TestOutputSourcesOrder(t *testing.T) {
	output := Output{Results: []SearchResultItem{
		{URL: "https://a.example.com", Title: "a"},
		{URL: "https://b.example.com", Title: "b"},
	}}
	sources := output.Sources()
	if len(sources) != 2 || sources[0] != "https://a.example.com" || sources[1] != "https://b.example.com" {
		t.Errorf("Expect sources in result order, but got %v", sources)
	}
}
