package duckduckgo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/clipperhouse/uax29/sentences"

	"github.com/bububa/financial-agents/schema"
	"github.com/bububa/financial-agents/tools"
)

// ErrSearchUnavailable is returned for any provider failure: network errors,
// quota responses and unparsable payloads all surface as this single condition.
var ErrSearchUnavailable = errors.New("web search unavailable")

// Input Schema for input to a tool for searching for information, news, references,
// and other content using DuckDuckGo.
// Returns a list of search results with a short description or content snippet and
// URLs for further exploration
type Input struct {
	schema.Base
	// Queries list of search queries.
	Queries []string `json:"queries" jsonschema:"title=queries,description=List of search queries." validate:"required"`
}

func NewInput(queries ...string) *Input {
	return &Input{
		Queries: queries,
	}
}

func (s Input) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

// SearchResultItem represents a single search result item
type SearchResultItem struct {
	schema.Base
	// URL The URL of the search result
	URL string `json:"url" jsonschema:"title=url,description=The URL of the search result" validate:"required,url"`
	// Title The title of the search result
	Title string `json:"title" jsonschema:"title=title,description=The title of the search result" validate:"required"`
	// Content The content snippet of the search result
	Content string `json:"content,omitempty" jsonschema:"title=content,description=The content snippet of the search result"`
	// Query The query used to obtain this search result
	Query string `json:"query" jsonschema:"title=query,description=The query used to obtain this search result" validate:"required"`
}

func (s SearchResultItem) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

// Output represents the output of the DuckDuckGo search tool.
type Output struct {
	schema.Base
	// Results List of search result items
	Results []SearchResultItem `json:"results,omitempty" jsonschema:"title=results,description=List of search result items"`
}

func (s Output) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

// Title implements systemprompt.ContextProvider
func (s Output) Title() string {
	return "Web Search Results"
}

// Info implements systemprompt.ContextProvider, rendering the results as a
// markdown list usable inside a system prompt.
func (s Output) Info() string {
	var buf bytes.Buffer
	for _, item := range s.Results {
		fmt.Fprintf(&buf, "- [%s](%s)\n", item.Title, item.URL)
		if item.Content != "" {
			fmt.Fprintf(&buf, "  %s\n", item.Content)
		}
	}
	return strings.TrimSpace(buf.String())
}

// Sources returns the result URLs in order.
func (s Output) Sources() []string {
	list := make([]string, 0, len(s.Results))
	for _, item := range s.Results {
		list = append(list, item.URL)
	}
	return list
}

type Config struct {
	tools.Config
	baseURL     string
	region      string
	maxResults  int
	maxSnippets int
	httpClient  *http.Client
}

// Search is a tool for performing web searches against DuckDuckGo's HTML
// endpoint based on the provided queries.
type Search struct {
	Config
}

func New(opts ...Option) *Search {
	ret := new(Search)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle("DuckDuckGoSearchTool")
	}
	if ret.baseURL == "" {
		ret.baseURL = "https://html.duckduckgo.com/html"
	}
	if ret.maxResults == 0 {
		ret.maxResults = 10
	}
	if ret.maxSnippets == 0 {
		ret.maxSnippets = 3
	}
	if ret.httpClient == nil {
		ret.httpClient = http.DefaultClient
	}
	return ret
}

// Run runs the search tool synchronously with the given parameters
func (t *Search) Run(ctx context.Context, input *Input, output *Output) error {
	t.OnStart(ctx, input)
	for _, query := range input.Queries {
		items, err := t.fetchSearchResults(ctx, query)
		if err != nil {
			t.OnError(ctx, input, err)
			return fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
		}
		output.Results = append(output.Results, items...)
		if len(output.Results) >= t.maxResults {
			output.Results = output.Results[:t.maxResults]
			break
		}
	}
	t.OnEnd(ctx, input, output)
	return nil
}

// fetchSearchResults queries the search engine and parses the result page
func (t *Search) fetchSearchResults(ctx context.Context, query string) ([]SearchResultItem, error) {
	values := url.Values{}
	values.Set("q", query)
	if t.region != "" {
		values.Set("kl", t.region)
	}
	searchURL := fmt.Sprintf("%s/?%s", t.baseURL, values.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error querying search engine: %v", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 response from search engine: %d", httpResp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(httpResp.Body)
	if err != nil {
		return nil, err
	}
	var items []SearchResultItem
	doc.Find("div.result").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.result__a")
		href, found := link.Attr("href")
		if !found {
			return
		}
		item := SearchResultItem{
			URL:   resolveURL(href),
			Title: strings.TrimSpace(link.Text()),
			Query: query,
		}
		if item.URL == "" || item.Title == "" {
			return
		}
		if snippetHTML, err := sel.Find(".result__snippet").Html(); err == nil && snippetHTML != "" {
			if md, err := htmltomarkdown.ConvertString(snippetHTML); err == nil {
				item.Content = trimSentences(strings.TrimSpace(md), t.maxSnippets)
			}
		}
		items = append(items, item)
	})
	return items, nil
}

// resolveURL decodes DuckDuckGo's redirect links into the target URL.
func resolveURL(href string) string {
	if strings.HasPrefix(href, "//duckduckgo.com/l/") || strings.HasPrefix(href, "/l/") {
		if u, err := url.Parse(href); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				return target
			}
		}
	}
	return href
}

// trimSentences keeps the first maxSentences sentences of a snippet.
func trimSentences(text string, maxSentences int) string {
	if maxSentences <= 0 {
		return text
	}
	segments := sentences.SegmentAll([]byte(text))
	if len(segments) <= maxSentences {
		return text
	}
	var buf bytes.Buffer
	for _, segment := range segments[:maxSentences] {
		buf.Write(segment)
	}
	return strings.TrimSpace(buf.String())
}
