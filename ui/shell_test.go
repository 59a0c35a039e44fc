package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bububa/financial-agents/agents"
	"github.com/bububa/financial-agents/components"
)

type stubRunner struct {
	resp  *agents.Response
	err   error
	calls int
}

func (r *stubRunner) Run(_ context.Context, query string, _ *components.ApiResponse) (*agents.Response, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.resp != nil {
		return r.resp, nil
	}
	return agents.NewResponse(query), nil
}

func keyMsg(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func TestShellEmptyQueryStaysIdle(t *testing.T) {
	runner := new(stubRunner)
	m := New(runner)
	for _, value := range []string{"", "   "} {
		m.input.SetValue(value)
		var cmd tea.Cmd
		m, cmd = update(t, m, keyMsg(tea.KeyEnter))
		if m.State() != StateIdle {
			t.Errorf("state after empty submit = %v, want StateIdle", m.State())
		}
		if cmd != nil {
			t.Error("empty submit returned a command")
		}
		if !strings.Contains(m.View(), emptyQueryNotice) {
			t.Error("validation notice not shown")
		}
	}
	if runner.calls != 0 {
		t.Errorf("runner called %d times for empty queries", runner.calls)
	}
}

func TestShellSubmitLifecycle(t *testing.T) {
	runner := new(stubRunner)
	m := New(runner)
	m.input.SetValue("AAPL price today")

	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	if m.State() != StateSubmitted {
		t.Fatalf("state after submit = %v, want StateSubmitted", m.State())
	}
	if cmd == nil {
		t.Fatal("submit returned no command")
	}

	m, _ = update(t, m, dispatchedMsg{})
	if m.State() != StateWaiting {
		t.Fatalf("state after dispatch = %v, want StateWaiting", m.State())
	}
	if !strings.Contains(m.View(), "researching") {
		t.Error("waiting view missing progress indicator")
	}

	resp := agents.NewResponse("AAPL price today")
	resp.AddSummary(&agents.Summary{
		Delegate: agents.FinanceDelegateName,
		Heading:  "Market Data",
		Text:     "AAPL trades at 230.",
		Sources:  []string{"https://finance.yahoo.com/quote/AAPL"},
	})
	m, _ = update(t, m, responseMsg{resp: resp})
	if m.State() != StateRendered {
		t.Fatalf("state after response = %v, want StateRendered", m.State())
	}
	if got := m.content(); !strings.Contains(got, "AAPL trades at 230.") {
		t.Errorf("rendered content = %q, want response markdown", got)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	if m.State() != StateIdle {
		t.Errorf("state after next keypress = %v, want StateIdle", m.State())
	}
}

func TestShellIgnoresSubmitWhileWaiting(t *testing.T) {
	runner := new(stubRunner)
	m := New(runner)
	m.input.SetValue("NVDA latest news")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	m, _ = update(t, m, dispatchedMsg{})

	m.input.SetValue("second query")
	m, cmd := update(t, m, keyMsg(tea.KeyEnter))
	if m.State() != StateWaiting {
		t.Errorf("state after busy submit = %v, want StateWaiting", m.State())
	}
	if cmd != nil {
		t.Error("busy submit returned a command")
	}
}

func TestShellRendersFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("model provider down")}
	m := New(runner)
	m.input.SetValue("TSLA price")
	m, _ = update(t, m, keyMsg(tea.KeyEnter))
	m, _ = update(t, m, dispatchedMsg{})
	m, _ = update(t, m, responseMsg{err: runner.err})
	if m.State() != StateRendered {
		t.Fatalf("state after failure = %v, want StateRendered", m.State())
	}
	if got := m.content(); !strings.Contains(got, "model provider down") {
		t.Errorf("failure content = %q, want error text", got)
	}
}

func TestShellOverviewHeader(t *testing.T) {
	m := New(new(stubRunner))
	m, _ = update(t, m, overviewMsg{header: "AAPL 230.00 (+1.25%)"})
	if !strings.Contains(m.View(), "AAPL 230.00 (+1.25%)") {
		t.Error("overview header not shown")
	}
	// a failed fetch hides the header without blocking the shell
	m2 := New(new(stubRunner))
	m2, _ = update(t, m2, overviewMsg{err: errors.New("quota")})
	if strings.Contains(m2.View(), "quota") {
		t.Error("overview failure leaked into the view")
	}
}

func TestShellHelpToggle(t *testing.T) {
	m := New(new(stubRunner))
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	if got := m.content(); !strings.Contains(got, ExampleQueries[0]) {
		t.Errorf("help content = %q, want example queries", got)
	}
	m, _ = update(t, m, keyMsg(tea.KeyTab))
	if got := m.content(); strings.Contains(got, ExampleQueries[0]) {
		t.Error("help still shown after toggle off")
	}
}
