package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/bububa/financial-agents/components"
	"github.com/bububa/financial-agents/components/systemprompt"
	"github.com/bububa/financial-agents/components/systemprompt/cot"
	"github.com/bububa/financial-agents/schema"
	"github.com/bububa/financial-agents/tools/duckduckgo"
	"github.com/bububa/financial-agents/tools/yfinance"
)

const (
	// SearchDelegateName identifies the web search delegate in routing decisions.
	SearchDelegateName = "web_search"
	// FinanceDelegateName identifies the market data delegate in routing decisions.
	FinanceDelegateName = "finance"

	// SearchCapability names the capability in user facing failure messages.
	SearchCapability = "web search"
	// FinanceCapability names the capability in user facing failure messages.
	FinanceCapability = "market data"
)

// Summary is a delegate's contribution to a merged response: a short sourced
// markdown summary plus the identifiers of every source it drew from.
type Summary struct {
	Delegate string   `json:"delegate"`
	Heading  string   `json:"heading"`
	Text     string   `json:"text"`
	Sources  []string `json:"sources,omitempty"`
}

// Delegate is a specialized agent bound to one external data tool. A delegate
// receives a natural-language request, invokes its tool at most once, and
// returns a sourced summary. Delegates retain no state between invocations;
// a nil Summary with nil error means the delegate had nothing to contribute.
type Delegate interface {
	Name() string
	Run(ctx context.Context, query string, apiResp *components.ApiResponse) (*Summary, error)
}

// CapabilityError marks a delegate failure caused by its external provider,
// as opposed to a language model failure. The coordinating team turns these
// into user-visible capability notes instead of aborting the whole request.
type CapabilityError struct {
	Capability string
	Err        error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Capability, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// budgetedContext limits a context provider's info to a token budget so tool
// output cannot blow up the summarizer prompt.
type budgetedContext struct {
	provider systemprompt.ContextProvider
	counter  components.TokenCounter
	budget   int
}

func (b budgetedContext) Title() string {
	return b.provider.Title()
}

func (b budgetedContext) Info() string {
	return components.TruncateSentences(b.counter, b.provider.Info(), b.budget)
}

// delegateConfig is shared construction state for both delegates.
type delegateConfig struct {
	Config
	opts    []Option
	counter components.TokenCounter
	budget  int
}

func newDelegateConfig(opts []Option) delegateConfig {
	cfg := delegateConfig{opts: opts}
	for _, opt := range opts {
		opt(&cfg.Config)
	}
	if counter, err := components.NewTikTokenCounter("cl100k_base"); err == nil {
		cfg.counter = counter
	} else {
		cfg.counter = components.WordsTokenCounter{}
	}
	cfg.budget = cfg.contextBudget
	if cfg.budget <= 0 {
		cfg.budget = 2048
	}
	return cfg
}

// summarize runs a one-shot summarizer agent over the tool output. A fresh
// agent and memory are created per invocation so no state leaks between
// requests. When no language model client is configured the tool output is
// rendered directly.
func (c delegateConfig) summarize(ctx context.Context, query string, gen systemprompt.Generator, fallback systemprompt.ContextProvider, apiResp *components.ApiResponse) (string, error) {
	if c.client == nil {
		return fallback.Info(), nil
	}
	opts := append([]Option{}, c.opts...)
	opts = append(opts, WithMemory(components.NewMemory(0)), WithSystemPromptGenerator(gen))
	agent := NewAgent[schema.Input, schema.Output](opts...)
	output := new(schema.Output)
	if err := agent.Run(ctx, schema.NewInput(query), output, apiResp); err != nil {
		return "", err
	}
	return output.ChatMessage, nil
}

// SearchDelegate binds the web search tool. Given a request it searches once,
// then summarizes the ranked snippets with attributed sources.
type SearchDelegate struct {
	delegateConfig
	tool *duckduckgo.Search
}

// NewSearchDelegate returns a new SearchDelegate instance
func NewSearchDelegate(tool *duckduckgo.Search, opts ...Option) *SearchDelegate {
	return &SearchDelegate{
		delegateConfig: newDelegateConfig(opts),
		tool:           tool,
	}
}

func (d *SearchDelegate) Name() string {
	return SearchDelegateName
}

func (d *SearchDelegate) Run(ctx context.Context, query string, apiResp *components.ApiResponse) (*Summary, error) {
	searchOutput := new(duckduckgo.Output)
	if err := d.tool.Run(ctx, duckduckgo.NewInput(query), searchOutput); err != nil {
		return nil, &CapabilityError{Capability: SearchCapability, Err: err}
	}
	if len(searchOutput.Results) == 0 {
		return nil, nil
	}
	gen := cot.New(
		cot.WithBackground([]string{
			"- You are a financial news researcher.",
			"- Your task is to summarize web search results relevant to the user's request.",
		}),
		cot.WithSteps([]string{
			"- You will receive the user's request and a list of search results.",
			"- Summarize the findings that answer the request, citing the result URLs inline.",
		}),
		cot.WithOutputInstructs([]string{
			"- Format the response as markdown.",
			"- Only report information present in the search results, never invent figures.",
		}),
		cot.WithContextProviders(budgetedContext{provider: searchOutput, counter: d.counter, budget: d.budget}),
	)
	text, err := d.summarize(ctx, query, gen, searchOutput, apiResp)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Delegate: d.Name(),
		Heading:  "Market News",
		Text:     strings.TrimSpace(text),
		Sources:  searchOutput.Sources(),
	}, nil
}

// FinanceDelegate binds the market data tool. It extracts a ticker symbol
// from the request, fetches quotes, analyst recommendations and fundamentals
// once, and summarizes them in markdown tables.
type FinanceDelegate struct {
	delegateConfig
	tool *yfinance.MarketData
}

// NewFinanceDelegate returns a new FinanceDelegate instance
func NewFinanceDelegate(tool *yfinance.MarketData, opts ...Option) *FinanceDelegate {
	return &FinanceDelegate{
		delegateConfig: newDelegateConfig(opts),
		tool:           tool,
	}
}

func (d *FinanceDelegate) Name() string {
	return FinanceDelegateName
}

func (d *FinanceDelegate) Run(ctx context.Context, query string, apiResp *components.ApiResponse) (*Summary, error) {
	symbols := ExtractTickers(query)
	if len(symbols) == 0 {
		return nil, nil
	}
	// the adapter is invoked at most once per request
	dataOutput := new(yfinance.Output)
	if err := d.tool.Run(ctx, yfinance.NewInput(symbols[0]), dataOutput); err != nil {
		return nil, &CapabilityError{Capability: FinanceCapability, Err: err}
	}
	gen := cot.New(
		cot.WithBackground([]string{
			"- You are an investment analyst that researches stock prices, analyst recommendations, and stock fundamentals.",
		}),
		cot.WithSteps([]string{
			"- You will receive the user's request and structured market data for a ticker symbol.",
			"- Analyze the data and answer the request.",
		}),
		cot.WithOutputInstructs([]string{
			"- Format your response using markdown and use tables to display data where possible.",
			"- Keep every figure exactly as provided in the market data, never invent numbers.",
		}),
		cot.WithContextProviders(dataOutput),
	)
	text, err := d.summarize(ctx, query, gen, dataOutput, apiResp)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Delegate: d.Name(),
		Heading:  "Market Data",
		Text:     strings.TrimSpace(text),
		Sources:  []string{dataOutput.Source()},
	}, nil
}
