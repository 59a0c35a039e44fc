package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/atomic"

	"github.com/bububa/financial-agents/components"
)

var (
	// ErrEmptyQuery is returned when the query is empty or whitespace-only.
	// Callers are expected to validate before dispatching; the team rejects
	// such queries as well so no delegate can ever be invoked for them.
	ErrEmptyQuery = errors.New("empty query")
	// ErrBusy is returned when a request is submitted while another one is
	// still in flight. One logical request per team at a time.
	ErrBusy = errors.New("a request is already in flight")
)

// Team is the coordinating agent. It routes a user query to its delegates
// via an explicit strategy function, runs the selected delegates sequentially
// in registration order, and merges their summaries into a single markdown
// response with attributed sources.
type Team struct {
	name      string
	delegates []Delegate
	route     RouteFunc
	busy      atomic.Bool
}

// NewTeam returns a new Team instance
func NewTeam(opts ...TeamOption) *Team {
	ret := new(Team)
	for _, opt := range opts {
		opt(ret)
	}
	if ret.name == "" {
		ret.name = "Financer Team"
	}
	if ret.route == nil {
		ret.route = DefaultRoute
	}
	return ret
}

type TeamOption func(t *Team)

func WithTeamName(name string) TeamOption {
	return func(t *Team) {
		t.name = name
	}
}

func WithDelegates(delegates ...Delegate) TeamOption {
	return func(t *Team) {
		t.delegates = append(t.delegates, delegates...)
	}
}

func WithRoute(route RouteFunc) TeamOption {
	return func(t *Team) {
		t.route = route
	}
}

func (t *Team) Name() string {
	return t.name
}

// Delegates returns the registered delegates in registration order.
func (t *Team) Delegates() []Delegate {
	return t.delegates
}

// Run dispatches the query to the delegates selected by the routing strategy
// and merges their summaries. Provider failures of individual delegates become
// capability notes on the response; language model failures abort the request.
// A non-nil apiResp accumulates token usage across all delegate calls.
func (t *Team) Run(ctx context.Context, query string, apiResp *components.ApiResponse) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if !t.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer t.busy.Store(false)

	selected := make(map[string]struct{})
	for _, name := range t.route(query) {
		selected[name] = struct{}{}
	}
	resp := NewResponse(query)
	for _, delegate := range t.delegates {
		if _, found := selected[delegate.Name()]; !found {
			continue
		}
		delegateResp := new(components.ApiResponse)
		summary, err := delegate.Run(ctx, query, delegateResp)
		if apiResp != nil && delegateResp.Usage != nil {
			if apiResp.Usage == nil {
				apiResp.Usage = new(components.ApiUsage)
			}
			apiResp.Usage.Merge(delegateResp.Usage)
		}
		if err != nil {
			var capErr *CapabilityError
			if errors.As(err, &capErr) {
				resp.AddFailure(capErr.Capability)
				continue
			}
			return nil, fmt.Errorf("delegate %s: %w", delegate.Name(), err)
		}
		if summary == nil || summary.Text == "" {
			continue
		}
		resp.AddSummary(summary)
	}
	return resp, nil
}
