package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bububa/financial-agents/agents"
	"github.com/bububa/financial-agents/components"
)

// State is the shell's request lifecycle state.
type State int

const (
	// StateIdle accepts input.
	StateIdle State = iota
	// StateSubmitted holds a validated query that is about to be dispatched.
	StateSubmitted
	// StateWaiting has a request in flight. New submissions are ignored.
	StateWaiting
	// StateRendered shows the merged response until the next user action.
	StateRendered
)

// Runner dispatches one query and returns the merged response.
// *agents.Team satisfies it.
type Runner interface {
	Run(ctx context.Context, query string, apiResp *components.ApiResponse) (*agents.Response, error)
}

// OverviewFunc fetches the market overview header once at startup.
// An error hides the header without blocking the shell.
type OverviewFunc func(ctx context.Context) (string, error)

// ExampleQueries mirror the original sidebar suggestions.
var ExampleQueries = []string{
	"What's the latest news and financial performance of Apple (AAPL)?",
	"Analyze the semiconductor market performance focusing on NVDA",
	"Evaluate the automotive industry's current state including TSLA",
	"Summarize analyst recommendations for AMZN",
}

const emptyQueryNotice = "Please enter a query."

type responseMsg struct {
	resp *agents.Response
	err  error
}

type dispatchedMsg struct{}

type overviewMsg struct {
	header string
	err    error
}

type styles struct {
	title    lipgloss.Style
	overview lipgloss.Style
	notice   lipgloss.Style
	errText  lipgloss.Style
	status   lipgloss.Style
	help     lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		overview: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		errText:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Model is the interactive shell. It validates queries locally, dispatches
// them to the coordinating team, and renders the merged markdown.
type Model struct {
	runner   Runner
	overview OverviewFunc

	state    State
	query    string
	notice   string
	errMsg   string
	rendered string
	header   string
	showHelp bool

	input    textinput.Model
	spin     spinner.Model
	viewport viewport.Model
	styles   styles

	width  int
	height int
	ready  bool
}

type Option func(m *Model)

// WithOverview configures the startup market overview header.
func WithOverview(fn OverviewFunc) Option {
	return func(m *Model) {
		m.overview = fn
	}
}

// New returns a new shell Model instance
func New(runner Runner, opts ...Option) Model {
	input := textinput.New()
	input.Placeholder = "Ask about markets, tickers or financial news (tab for examples)"
	input.Prompt = "> "
	input.CharLimit = 512
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := Model{
		runner:   runner,
		state:    StateIdle,
		input:    input,
		spin:     spin,
		viewport: viewport.New(80, 20),
		styles:   newStyles(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// State returns the current lifecycle state.
func (m Model) State() State {
	return m.state
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.overview != nil {
		fetch := m.overview
		cmds = append(cmds, func() tea.Msg {
			header, err := fetch(context.Background())
			return overviewMsg{header: header, err: err}
		})
	}
	return tea.Batch(cmds...)
}

func (m Model) dispatchCmd(query string) tea.Cmd {
	runner := m.runner
	return func() tea.Msg {
		resp, err := runner.Run(context.Background(), query, nil)
		return responseMsg{resp: resp, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			if m.state == StateIdle || m.state == StateRendered {
				m.showHelp = !m.showHelp
				m.state = StateIdle
				m.viewport.SetContent(m.content())
			}
			return m, nil
		case tea.KeyEnter:
			if m.state == StateWaiting || m.state == StateSubmitted {
				// one request in flight at a time
				return m, nil
			}
			m.state = StateIdle
			m.notice = ""
			m.errMsg = ""
			m.showHelp = false
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				m.notice = emptyQueryNotice
				return m, nil
			}
			m.query = query
			m.state = StateSubmitted
			return m, tea.Batch(
				m.spin.Tick,
				func() tea.Msg { return dispatchedMsg{} },
				m.dispatchCmd(query),
			)
		default:
			if m.state == StateRendered {
				m.state = StateIdle
			}
		}
	case dispatchedMsg:
		if m.state == StateSubmitted {
			m.state = StateWaiting
		}
		return m, nil
	case responseMsg:
		m.state = StateRendered
		if msg.err != nil {
			m.errMsg = fmt.Sprintf("Request failed: %v", msg.err)
			m.rendered = ""
		} else {
			m.rendered = msg.resp.Render()
		}
		m.viewport.SetContent(m.content())
		m.viewport.GotoTop()
		m.input.Reset()
		return m, nil
	case overviewMsg:
		if msg.err == nil {
			m.header = msg.header
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}
		m.ready = true
		m.viewport.SetContent(m.content())
		return m, nil
	case spinner.TickMsg:
		if m.state == StateWaiting || m.state == StateSubmitted {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) content() string {
	if m.showHelp {
		var b strings.Builder
		b.WriteString("Example queries:\n")
		for _, q := range ExampleQueries {
			fmt.Fprintf(&b, "\n  - %s", q)
		}
		return m.styles.help.Render(b.String())
	}
	if m.errMsg != "" {
		return m.styles.errText.Render(m.errMsg)
	}
	return m.rendered
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render("Financial Agents"))
	b.WriteString("\n")
	if m.header != "" {
		b.WriteString(m.styles.overview.Render(m.header))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(m.styles.notice.Render(m.notice))
		b.WriteString("\n")
	}
	switch m.state {
	case StateSubmitted, StateWaiting:
		b.WriteString(m.spin.View())
		b.WriteString(m.styles.status.Render(" researching..."))
	default:
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(m.styles.status.Render("enter: ask  tab: examples  esc: quit"))
	return b.String()
}
