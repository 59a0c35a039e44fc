package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bububa/instructor-go/pkg/instructor"
	cohereClient "github.com/cohere-ai/cohere-go/v2/client"
	cohereOption "github.com/cohere-ai/cohere-go/v2/option"
	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bububa/financial-agents/agents"
	"github.com/bububa/financial-agents/config"
	"github.com/bububa/financial-agents/server"
	"github.com/bububa/financial-agents/tools/duckduckgo"
	"github.com/bububa/financial-agents/tools/yfinance"
	"github.com/bububa/financial-agents/ui"
)

func main() {
	var (
		configPath string
		listenAddr string
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&listenAddr, "listen", "", "run the HTTP playground on this address instead of the shell")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	apiKey, err := cfg.APIKey()
	if err != nil {
		log.Fatal(err)
	}
	client := newInstructor(cfg, apiKey)

	searchTool := duckduckgo.New(
		duckduckgo.WithBaseURL(cfg.SearchBaseURL),
		duckduckgo.WithMaxResults(cfg.MaxResults),
	)
	financeTool := yfinance.New(
		yfinance.WithBaseURL(cfg.FinanceBaseURL),
	)

	modelOpts := []agents.Option{
		agents.WithClient(client),
		agents.WithModel(cfg.Model),
		agents.WithTemperature(cfg.Temperature),
		agents.WithMaxTokens(cfg.MaxTokens),
		agents.WithContextBudget(cfg.ContextBudget),
	}
	// the finance delegate is authoritative for market figures and renders first
	team := agents.NewTeam(
		agents.WithDelegates(
			agents.NewFinanceDelegate(financeTool, modelOpts...),
			agents.NewSearchDelegate(searchTool, modelOpts...),
		),
	)

	if listenAddr != "" {
		srv := server.New(team, server.WithOverview(overviewItems(financeTool, cfg.Watchlist)))
		if err := srv.ListenAndServe(context.Background(), listenAddr); err != nil {
			log.Fatal(err)
		}
		return
	}

	shell := ui.New(team, ui.WithOverview(overviewHeader(financeTool, cfg.Watchlist)))
	if _, err := tea.NewProgram(shell, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}

// newInstructor builds the structured-output client for the configured
// provider. JSON mode with retries and output validation across providers.
func newInstructor(cfg *config.Config, apiKey string) instructor.Instructor {
	switch cfg.Provider {
	case config.Anthropic:
		opts := make([]anthropic.ClientOption, 0, 1)
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		clt := anthropic.NewClient(apiKey, opts...)
		return instructor.FromAnthropic(clt, instructor.WithMode(instructor.ModeJSON), instructor.WithMaxRetries(3), instructor.WithValidation())
	case config.Cohere:
		opts := make([]cohereOption.RequestOption, 0, 2)
		opts = append(opts, cohereOption.WithToken(apiKey))
		if cfg.BaseURL != "" {
			opts = append(opts, cohereOption.WithBaseURL(cfg.BaseURL))
		}
		clt := cohereClient.NewClient(opts...)
		return instructor.FromCohere(clt, instructor.WithMode(instructor.ModeJSON), instructor.WithMaxRetries(3), instructor.WithValidation())
	default:
		openaiCfg := openai.DefaultConfig(apiKey)
		if cfg.BaseURL != "" {
			openaiCfg.BaseURL = cfg.BaseURL
		}
		clt := openai.NewClientWithConfig(openaiCfg)
		return instructor.FromOpenAI(clt, instructor.WithMode(instructor.ModeJSON), instructor.WithMaxRetries(3), instructor.WithValidation())
	}
}

func fetchWatchlist(ctx context.Context, tool *yfinance.MarketData, watchlist []string) ([]yfinance.Quote, error) {
	quotes := make([]yfinance.Quote, 0, len(watchlist))
	for _, symbol := range watchlist {
		output := new(yfinance.Output)
		if err := tool.Run(ctx, yfinance.NewInput(symbol, yfinance.PriceModule), output); err != nil {
			return nil, err
		}
		if output.Quote != nil {
			quotes = append(quotes, *output.Quote)
		}
	}
	return quotes, nil
}

func overviewHeader(tool *yfinance.MarketData, watchlist []string) ui.OverviewFunc {
	return func(ctx context.Context) (string, error) {
		quotes, err := fetchWatchlist(ctx, tool, watchlist)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(quotes))
		for _, q := range quotes {
			parts = append(parts, fmt.Sprintf("%s %.2f (%+.2f%%)", q.Symbol, q.Price, q.ChangePercent*100))
		}
		return strings.Join(parts, "  |  "), nil
	}
}

func overviewItems(tool *yfinance.MarketData, watchlist []string) server.OverviewFunc {
	return func(ctx context.Context) ([]server.OverviewItem, error) {
		quotes, err := fetchWatchlist(ctx, tool, watchlist)
		if err != nil {
			return nil, err
		}
		items := make([]server.OverviewItem, 0, len(quotes))
		for _, q := range quotes {
			items = append(items, server.OverviewItem{
				Symbol:        q.Symbol,
				Price:         q.Price,
				Change:        q.Change,
				ChangePercent: q.ChangePercent * 100,
				Currency:      q.Currency,
			})
		}
		return items, nil
	}
}
