package yfinance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bububa/financial-agents/schema"
	"github.com/bububa/financial-agents/tools"
)

// Module selects a metric category from the market data provider
type Module = string

const (
	PriceModule               Module = "price"
	RecommendationTrendModule Module = "recommendationTrend"
	KeyStatisticsModule       Module = "defaultKeyStatistics"
	FinancialDataModule       Module = "financialData"
)

// Input Schema for input to a tool for retrieving stock price quotes, analyst
// recommendations and fundamental metrics for a ticker symbol.
type Input struct {
	schema.Base
	// Symbol the ticker symbol to look up.
	Symbol string `json:"symbol" jsonschema:"title=symbol,description=The ticker symbol to look up." validate:"required"`
	// Modules metric categories to retrieve. All categories are retrieved when empty.
	Modules []Module `json:"modules,omitempty" jsonschema:"title=modules,description=Metric categories to retrieve (price, recommendationTrend, defaultKeyStatistics, financialData)."`
}

func NewInput(symbol string, modules ...Module) *Input {
	return &Input{
		Symbol:  symbol,
		Modules: modules,
	}
}

func (s Input) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

// Quote is a price quote for a single symbol
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	MarketCap     float64 `json:"market_cap,omitempty"`
}

// RecommendationPeriod is one period of the analyst recommendation trend
type RecommendationPeriod struct {
	Period     string `json:"period"`
	StrongBuy  int    `json:"strong_buy"`
	Buy        int    `json:"buy"`
	Hold       int    `json:"hold"`
	Sell       int    `json:"sell"`
	StrongSell int    `json:"strong_sell"`
}

// Fundamentals holds key statistics for a symbol
type Fundamentals struct {
	TrailingEPS       float64 `json:"trailing_eps,omitempty"`
	ForwardPE         float64 `json:"forward_pe,omitempty"`
	PriceToBook       float64 `json:"price_to_book,omitempty"`
	FiftyTwoWeekHigh  float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow   float64 `json:"fifty_two_week_low,omitempty"`
	TargetMeanPrice   float64 `json:"target_mean_price,omitempty"`
	RecommendationKey string  `json:"recommendation_key,omitempty"`
}

// Output represents the output of the market data tool.
type Output struct {
	schema.Base
	// Symbol the ticker symbol the data belongs to
	Symbol string `json:"symbol" jsonschema:"title=symbol,description=The ticker symbol the data belongs to"`
	// Quote the price quote
	Quote *Quote `json:"quote,omitempty" jsonschema:"title=quote,description=The price quote"`
	// Recommendations the analyst recommendation trend
	Recommendations []RecommendationPeriod `json:"recommendations,omitempty" jsonschema:"title=recommendations,description=The analyst recommendation trend"`
	// Fundamentals key statistics for the symbol
	Fundamentals *Fundamentals `json:"fundamentals,omitempty" jsonschema:"title=fundamentals,description=Key statistics for the symbol"`
}

func (s Output) String() string {
	bs, _ := json.Marshal(s)
	return string(bs)
}

// Title implements systemprompt.ContextProvider
func (s Output) Title() string {
	return "Market Data"
}

// Info implements systemprompt.ContextProvider, rendering the structured
// record as markdown tables usable inside a system prompt.
func (s Output) Info() string {
	var buf bytes.Buffer
	if q := s.Quote; q != nil {
		buf.WriteString("| Symbol | Price | Change | Change % | Currency |\n")
		buf.WriteString("| --- | --- | --- | --- | --- |\n")
		fmt.Fprintf(&buf, "| %s | %.2f | %+.2f | %+.2f%% | %s |\n\n", q.Symbol, q.Price, q.Change, q.ChangePercent*100, q.Currency)
	}
	if len(s.Recommendations) > 0 {
		buf.WriteString("### Analyst Recommendations\n\n")
		buf.WriteString("| Period | Strong Buy | Buy | Hold | Sell | Strong Sell |\n")
		buf.WriteString("| --- | --- | --- | --- | --- | --- |\n")
		for _, r := range s.Recommendations {
			fmt.Fprintf(&buf, "| %s | %d | %d | %d | %d | %d |\n", r.Period, r.StrongBuy, r.Buy, r.Hold, r.Sell, r.StrongSell)
		}
		buf.WriteString("\n")
	}
	if f := s.Fundamentals; f != nil {
		buf.WriteString("### Fundamentals\n\n")
		buf.WriteString("| Metric | Value |\n")
		buf.WriteString("| --- | --- |\n")
		if f.TrailingEPS != 0 {
			fmt.Fprintf(&buf, "| Trailing EPS | %.2f |\n", f.TrailingEPS)
		}
		if f.ForwardPE != 0 {
			fmt.Fprintf(&buf, "| Forward P/E | %.2f |\n", f.ForwardPE)
		}
		if f.PriceToBook != 0 {
			fmt.Fprintf(&buf, "| Price/Book | %.2f |\n", f.PriceToBook)
		}
		if f.FiftyTwoWeekHigh != 0 {
			fmt.Fprintf(&buf, "| 52w High | %.2f |\n", f.FiftyTwoWeekHigh)
		}
		if f.FiftyTwoWeekLow != 0 {
			fmt.Fprintf(&buf, "| 52w Low | %.2f |\n", f.FiftyTwoWeekLow)
		}
		if f.TargetMeanPrice != 0 {
			fmt.Fprintf(&buf, "| Target Mean Price | %.2f |\n", f.TargetMeanPrice)
		}
		if f.RecommendationKey != "" {
			fmt.Fprintf(&buf, "| Consensus | %s |\n", f.RecommendationKey)
		}
	}
	return strings.TrimSpace(buf.String())
}

// Source returns the canonical quote page URL used for attribution.
func (s Output) Source() string {
	return fmt.Sprintf("https://finance.yahoo.com/quote/%s", s.Symbol)
}

func (s *Output) fromSummary(symbol string, result *quoteSummaryResult) {
	s.Symbol = symbol
	if p := result.Price; p != nil {
		s.Quote = &Quote{
			Symbol:        p.Symbol,
			Name:          p.ShortName,
			Currency:      p.Currency,
			Price:         p.RegularMarketPrice.Raw,
			Change:        p.RegularMarketChange.Raw,
			ChangePercent: p.RegularMarketChangePercent.Raw,
			MarketCap:     p.MarketCap.Raw,
		}
		if s.Quote.Symbol == "" {
			s.Quote.Symbol = symbol
		}
	}
	if rt := result.RecommendationTrend; rt != nil {
		for _, trend := range rt.Trend {
			s.Recommendations = append(s.Recommendations, RecommendationPeriod{
				Period:     trend.Period,
				StrongBuy:  trend.StrongBuy,
				Buy:        trend.Buy,
				Hold:       trend.Hold,
				Sell:       trend.Sell,
				StrongSell: trend.StrongSell,
			})
		}
	}
	if ks := result.DefaultKeyStatistics; ks != nil {
		s.Fundamentals = &Fundamentals{
			TrailingEPS:      ks.TrailingEps.Raw,
			ForwardPE:        ks.ForwardPE.Raw,
			PriceToBook:      ks.PriceToBook.Raw,
			FiftyTwoWeekHigh: ks.FiftyTwoWeekHigh.Raw,
			FiftyTwoWeekLow:  ks.FiftyTwoWeekLow.Raw,
		}
	}
	if fd := result.FinancialData; fd != nil {
		if s.Fundamentals == nil {
			s.Fundamentals = new(Fundamentals)
		}
		s.Fundamentals.TargetMeanPrice = fd.TargetMeanPrice.Raw
		s.Fundamentals.RecommendationKey = fd.RecommendationKey
	}
}

type Config struct {
	tools.Config
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// MarketData is a tool for retrieving quotes, analyst recommendations and
// fundamentals from the Yahoo Finance quoteSummary endpoint.
type MarketData struct {
	Config
}

func New(opts ...Option) *MarketData {
	ret := new(MarketData)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle("MarketDataTool")
	}
	if ret.baseURL == "" {
		ret.baseURL = "https://query1.finance.yahoo.com"
	}
	if ret.userAgent == "" {
		ret.userAgent = "Mozilla/5.0 (compatible; financial-agents/1.0)"
	}
	if ret.httpClient == nil {
		ret.httpClient = http.DefaultClient
	}
	return ret
}
