package agents

import "strings"

// RouteFunc decides which delegates handle a query. It must be deterministic:
// the same query always yields the same subset of delegate names.
type RouteFunc func(query string) []string

// tickerStopwords are common all-caps tokens that are not ticker symbols.
var tickerStopwords = map[string]struct{}{
	"A": {}, "I": {}, "AI": {}, "CEO": {}, "CFO": {}, "ETF": {}, "EPS": {},
	"EU": {}, "FED": {}, "GDP": {}, "IPO": {}, "NASDAQ": {}, "NYSE": {},
	"OK": {}, "PE": {}, "SEC": {}, "UK": {}, "US": {}, "USA": {}, "USD": {},
}

// financeVocabulary marks a query as answerable from market data.
var financeVocabulary = []string{
	"price", "stock", "share", "ticker", "earnings", "fundamental",
	"analyst", "recommendation", "dividend", "valuation", "market cap", "quote",
}

// newsVocabulary marks a query as asking for news coverage.
var newsVocabulary = []string{
	"news", "latest", "headline", "trend", "recent", "announce", "report",
}

// ExtractTickers returns the ticker symbols mentioned in a query, in order of
// appearance. A token qualifies when prefixed with '$', or when it is a 2-5
// letter all-caps word that is not a known abbreviation.
func ExtractTickers(query string) []string {
	var (
		seen    = make(map[string]struct{})
		tickers []string
	)
	for _, field := range strings.Fields(query) {
		token := strings.Trim(field, ".,!?:;()'\"")
		explicit := strings.HasPrefix(token, "$")
		token = strings.TrimPrefix(token, "$")
		if explicit {
			token = strings.ToUpper(token)
		}
		if token == "" || !isUpperAlpha(token) {
			continue
		}
		if !explicit {
			if len(token) < 2 || len(token) > 5 {
				continue
			}
			if _, found := tickerStopwords[token]; found {
				continue
			}
		}
		if _, found := seen[token]; found {
			continue
		}
		seen[token] = struct{}{}
		tickers = append(tickers, token)
	}
	return tickers
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// DefaultRoute selects the finance delegate whenever the query names a ticker
// symbol, and the search delegate for news requests or whenever market data
// alone cannot answer the query.
func DefaultRoute(query string) []string {
	var (
		lower = strings.ToLower(query)
		names []string
	)
	hasTicker := len(ExtractTickers(query)) > 0
	if hasTicker {
		names = append(names, FinanceDelegateName)
	}
	if !hasTicker || containsAny(lower, newsVocabulary) || !containsAny(lower, financeVocabulary) {
		names = append(names, SearchDelegateName)
	}
	return names
}
