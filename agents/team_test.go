package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bububa/financial-agents/components"
)

type stubDelegate struct {
	name    string
	summary *Summary
	err     error
	usage   *components.ApiUsage
	calls   int
}

func (d *stubDelegate) Name() string {
	return d.name
}

func (d *stubDelegate) Run(_ context.Context, _ string, apiResp *components.ApiResponse) (*Summary, error) {
	d.calls++
	if apiResp != nil && d.usage != nil {
		apiResp.Usage = &components.ApiUsage{
			InputTokens:  d.usage.InputTokens,
			OutputTokens: d.usage.OutputTokens,
		}
	}
	return d.summary, d.err
}

func routeAll(names ...string) RouteFunc {
	return func(string) []string {
		return names
	}
}

func TestTeamRunEmptyQuery(t *testing.T) {
	team := NewTeam()
	for _, query := range []string{"", "   ", "\n\t"} {
		if _, err := team.Run(context.Background(), query, nil); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Run(%q) error = %v, want ErrEmptyQuery", query, err)
		}
	}
}

func TestTeamRunRouting(t *testing.T) {
	finance := &stubDelegate{
		name: FinanceDelegateName,
		summary: &Summary{
			Delegate: FinanceDelegateName,
			Heading:  "Market Data",
			Text:     "AAPL trades at 230.",
			Sources:  []string{"https://finance.yahoo.com/quote/AAPL"},
		},
	}
	search := &stubDelegate{
		name: SearchDelegateName,
		summary: &Summary{
			Delegate: SearchDelegateName,
			Heading:  "Market News",
			Text:     "Apple shipped a new product.",
			Sources:  []string{"https://example.com/apple"},
		},
	}
	team := NewTeam(
		WithDelegates(finance, search),
		WithRoute(routeAll(FinanceDelegateName)),
	)
	resp, err := team.Run(context.Background(), "AAPL price", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if finance.calls != 1 || search.calls != 0 {
		t.Errorf("calls = finance %d, search %d; want 1, 0", finance.calls, search.calls)
	}
	if len(resp.Sections) != 1 || resp.Sections[0].Delegate != FinanceDelegateName {
		t.Errorf("Sections = %+v, want one finance section", resp.Sections)
	}
}

func TestTeamRunMergesInRegistrationOrder(t *testing.T) {
	finance := &stubDelegate{
		name: FinanceDelegateName,
		summary: &Summary{
			Delegate: FinanceDelegateName,
			Heading:  "Market Data",
			Text:     "numbers",
			Sources:  []string{"https://finance.yahoo.com/quote/NVDA"},
		},
	}
	search := &stubDelegate{
		name: SearchDelegateName,
		summary: &Summary{
			Delegate: SearchDelegateName,
			Heading:  "Market News",
			Text:     "news",
			Sources:  []string{"https://finance.yahoo.com/quote/NVDA", "https://example.com/nvda"},
		},
	}
	// registration order wins over routing order
	team := NewTeam(
		WithDelegates(finance, search),
		WithRoute(routeAll(SearchDelegateName, FinanceDelegateName)),
	)
	resp, err := team.Run(context.Background(), "NVDA latest news", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(resp.Sections) != 2 {
		t.Fatalf("Sections = %+v, want 2", resp.Sections)
	}
	if resp.Sections[0].Delegate != FinanceDelegateName || resp.Sections[1].Delegate != SearchDelegateName {
		t.Errorf("section order = [%s %s], want finance first", resp.Sections[0].Delegate, resp.Sections[1].Delegate)
	}
	want := []string{"https://finance.yahoo.com/quote/NVDA", "https://example.com/nvda"}
	if len(resp.Sources) != len(want) {
		t.Fatalf("Sources = %v, want %v", resp.Sources, want)
	}
	for i, src := range want {
		if resp.Sources[i] != src {
			t.Errorf("Sources[%d] = %q, want %q", i, resp.Sources[i], src)
		}
	}
}

func TestTeamRunCapabilityFailure(t *testing.T) {
	finance := &stubDelegate{
		name: FinanceDelegateName,
		err:  &CapabilityError{Capability: FinanceCapability, Err: errors.New("503")},
	}
	search := &stubDelegate{
		name: SearchDelegateName,
		summary: &Summary{
			Delegate: SearchDelegateName,
			Heading:  "Market News",
			Text:     "still got news",
			Sources:  []string{"https://example.com/n"},
		},
	}
	team := NewTeam(
		WithDelegates(finance, search),
		WithRoute(routeAll(FinanceDelegateName, SearchDelegateName)),
	)
	resp, err := team.Run(context.Background(), "TSLA latest news", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	rendered := resp.Render()
	if !strings.Contains(rendered, "still got news") {
		t.Errorf("render missing surviving section:\n%s", rendered)
	}
	if !strings.Contains(rendered, "> Note: market data is currently unavailable.") {
		t.Errorf("render missing capability note:\n%s", rendered)
	}
}

func TestTeamRunAllCapabilitiesFail(t *testing.T) {
	finance := &stubDelegate{
		name: FinanceDelegateName,
		err:  &CapabilityError{Capability: FinanceCapability, Err: errors.New("down")},
	}
	search := &stubDelegate{
		name: SearchDelegateName,
		err:  &CapabilityError{Capability: SearchCapability, Err: errors.New("down")},
	}
	team := NewTeam(
		WithDelegates(finance, search),
		WithRoute(routeAll(FinanceDelegateName, SearchDelegateName)),
	)
	resp, err := team.Run(context.Background(), "TSLA latest news", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := resp.Render(); got != FallbackMessage {
		t.Errorf("Render() = %q, want fallback message", got)
	}
}

func TestTeamRunModelFailureAborts(t *testing.T) {
	modelErr := errors.New("model quota exceeded")
	finance := &stubDelegate{name: FinanceDelegateName, err: modelErr}
	search := &stubDelegate{
		name:    SearchDelegateName,
		summary: &Summary{Delegate: SearchDelegateName, Heading: "Market News", Text: "x"},
	}
	team := NewTeam(
		WithDelegates(finance, search),
		WithRoute(routeAll(FinanceDelegateName, SearchDelegateName)),
	)
	if _, err := team.Run(context.Background(), "TSLA latest news", nil); !errors.Is(err, modelErr) {
		t.Fatalf("Run() error = %v, want wrapped model error", err)
	}
	if search.calls != 0 {
		t.Errorf("search delegate ran after abort")
	}
}

func TestTeamRunSkipsNilSummary(t *testing.T) {
	finance := &stubDelegate{name: FinanceDelegateName}
	team := NewTeam(
		WithDelegates(finance),
		WithRoute(routeAll(FinanceDelegateName)),
	)
	resp, err := team.Run(context.Background(), "no tickers here", nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !resp.Empty() {
		t.Errorf("Sections = %+v, want none", resp.Sections)
	}
	if got := resp.Render(); got != FallbackMessage {
		t.Errorf("Render() = %q, want fallback message", got)
	}
}

func TestTeamRunMergesUsage(t *testing.T) {
	finance := &stubDelegate{
		name:    FinanceDelegateName,
		summary: &Summary{Delegate: FinanceDelegateName, Heading: "Market Data", Text: "x"},
		usage:   &components.ApiUsage{InputTokens: 10, OutputTokens: 5},
	}
	search := &stubDelegate{
		name:    SearchDelegateName,
		summary: &Summary{Delegate: SearchDelegateName, Heading: "Market News", Text: "y"},
		usage:   &components.ApiUsage{InputTokens: 7, OutputTokens: 3},
	}
	team := NewTeam(
		WithDelegates(finance, search),
		WithRoute(routeAll(FinanceDelegateName, SearchDelegateName)),
	)
	apiResp := new(components.ApiResponse)
	if _, err := team.Run(context.Background(), "AAPL latest news", apiResp); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if apiResp.Usage == nil {
		t.Fatal("usage not accumulated")
	}
	if apiResp.Usage.InputTokens != 17 || apiResp.Usage.OutputTokens != 8 {
		t.Errorf("usage = %+v, want 17 in, 8 out", apiResp.Usage)
	}
}

type blockingDelegate struct {
	started chan struct{}
	release chan struct{}
	blocked bool
}

func (d *blockingDelegate) Name() string {
	return FinanceDelegateName
}

func (d *blockingDelegate) Run(context.Context, string, *components.ApiResponse) (*Summary, error) {
	// blocks the first invocation only
	if !d.blocked {
		d.blocked = true
		close(d.started)
		<-d.release
	}
	return nil, nil
}

func TestTeamRunBusy(t *testing.T) {
	blocking := &blockingDelegate{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	team := NewTeam(
		WithDelegates(blocking),
		WithRoute(routeAll(FinanceDelegateName)),
	)
	done := make(chan error, 1)
	go func() {
		_, err := team.Run(context.Background(), "AAPL price", nil)
		done <- err
	}()
	<-blocking.started
	if _, err := team.Run(context.Background(), "MSFT price", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Run() error = %v, want ErrBusy", err)
	}
	close(blocking.release)
	if err := <-done; err != nil {
		t.Errorf("first Run() error = %v", err)
	}
	// the team accepts new requests once the first one finishes
	if _, err := team.Run(context.Background(), "MSFT price", nil); err != nil {
		t.Errorf("Run() after release error = %v", err)
	}
}
