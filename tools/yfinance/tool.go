package yfinance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrDataUnavailable is returned for any provider failure: unknown symbols,
// network errors and malformed payloads all surface as this single condition.
var ErrDataUnavailable = errors.New("market data unavailable")

// Run runs the market data tool synchronously with the given parameters
func (t *MarketData) Run(ctx context.Context, input *Input, output *Output) error {
	t.OnStart(ctx, input)
	symbol := strings.ToUpper(strings.TrimSpace(input.Symbol))
	if symbol == "" {
		err := fmt.Errorf("%w: empty symbol", ErrDataUnavailable)
		t.OnError(ctx, input, err)
		return err
	}
	modules := input.Modules
	if len(modules) == 0 {
		modules = []Module{PriceModule, RecommendationTrendModule, KeyStatisticsModule, FinancialDataModule}
	}
	summary, err := t.fetchQuoteSummary(ctx, symbol, modules)
	if err != nil {
		t.OnError(ctx, input, err)
		return fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}
	output.fromSummary(symbol, summary)
	t.OnEnd(ctx, input, output)
	return nil
}

// fetchQuoteSummary queries the quoteSummary endpoint and returns the parsed result
func (t *MarketData) fetchQuoteSummary(ctx context.Context, symbol string, modules []Module) (*quoteSummaryResult, error) {
	values := url.Values{}
	values.Set("modules", strings.Join(modules, ","))
	quoteURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", t.baseURL, url.PathEscape(symbol), values.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, quoteURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", t.userAgent)

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error querying quote provider: %v", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 response from quote provider: %d", httpResp.StatusCode)
	}

	var envelope quoteSummaryEnvelope
	if err := json.NewDecoder(httpResp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("quote provider error: %s", envelope.QuoteSummary.Error.Description)
	}
	if len(envelope.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("no data for symbol %s", symbol)
	}
	return &envelope.QuoteSummary.Result[0], nil
}

// quoteSummaryEnvelope mirrors the provider's response envelope
type quoteSummaryEnvelope struct {
	QuoteSummary struct {
		Result []quoteSummaryResult `json:"result"`
		Error  *providerError       `json:"error"`
	} `json:"quoteSummary"`
}

type providerError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type quoteSummaryResult struct {
	Price *struct {
		Symbol                     string   `json:"symbol"`
		ShortName                  string   `json:"shortName"`
		Currency                   string   `json:"currency"`
		RegularMarketPrice         rawValue `json:"regularMarketPrice"`
		RegularMarketChange        rawValue `json:"regularMarketChange"`
		RegularMarketChangePercent rawValue `json:"regularMarketChangePercent"`
		MarketCap                  rawValue `json:"marketCap"`
	} `json:"price"`
	RecommendationTrend *struct {
		Trend []struct {
			Period     string `json:"period"`
			StrongBuy  int    `json:"strongBuy"`
			Buy        int    `json:"buy"`
			Hold       int    `json:"hold"`
			Sell       int    `json:"sell"`
			StrongSell int    `json:"strongSell"`
		} `json:"trend"`
	} `json:"recommendationTrend"`
	DefaultKeyStatistics *struct {
		TrailingEps      rawValue `json:"trailingEps"`
		ForwardPE        rawValue `json:"forwardPE"`
		PriceToBook      rawValue `json:"priceToBook"`
		FiftyTwoWeekHigh rawValue `json:"fiftyTwoWeekHigh"`
		FiftyTwoWeekLow  rawValue `json:"fiftyTwoWeekLow"`
	} `json:"defaultKeyStatistics"`
	FinancialData *struct {
		TargetMeanPrice   rawValue `json:"targetMeanPrice"`
		RecommendationKey string   `json:"recommendationKey"`
	} `json:"financialData"`
}

// rawValue is the provider's {raw, fmt} numeric wrapper
type rawValue struct {
	Raw float64 `json:"raw"`
	Fmt string  `json:"fmt"`
}
