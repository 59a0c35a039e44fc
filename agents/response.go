package agents

import (
	"bytes"
	"fmt"
	"strings"
)

// FallbackMessage is returned verbatim when no delegate produced a result.
const FallbackMessage = "No information found for your query."

// Section is one delegate's contribution to the merged response.
type Section struct {
	Delegate string `json:"delegate"`
	Heading  string `json:"heading"`
	Body     string `json:"body"`
}

// Response is the merged result of one coordinated request. It is owned by
// the caller for a single render cycle and never persisted. Rendering is a
// pure function of the response fields: rendering the same response twice
// produces byte-identical markdown.
type Response struct {
	Query    string    `json:"query"`
	Sections []Section `json:"sections,omitempty"`
	// Failures lists capabilities that were unavailable during the request.
	Failures []string `json:"failures,omitempty"`
	// Sources lists every source identifier referenced by any section,
	// deduplicated by literal string equality, first-seen order preserved.
	Sources []string `json:"sources,omitempty"`

	seen map[string]struct{}
}

// NewResponse returns a new Response instance
func NewResponse(query string) *Response {
	return &Response{
		Query: query,
		seen:  make(map[string]struct{}),
	}
}

// AddSummary appends a delegate summary as a section and merges its sources.
func (r *Response) AddSummary(s *Summary) {
	r.Sections = append(r.Sections, Section{
		Delegate: s.Delegate,
		Heading:  s.Heading,
		Body:     s.Text,
	})
	for _, src := range s.Sources {
		if _, found := r.seen[src]; found {
			continue
		}
		r.seen[src] = struct{}{}
		r.Sources = append(r.Sources, src)
	}
}

// AddFailure records an unavailable capability.
func (r *Response) AddFailure(capability string) {
	for _, v := range r.Failures {
		if v == capability {
			return
		}
	}
	r.Failures = append(r.Failures, capability)
}

// Empty reports whether no delegate contributed a section.
func (r *Response) Empty() bool {
	return len(r.Sections) == 0
}

// Render merges the sections into a single markdown document with a trailing
// Sources section. When no delegate produced a result the fixed fallback
// message is returned verbatim.
func (r *Response) Render() string {
	if r.Empty() {
		return FallbackMessage
	}
	var buf bytes.Buffer
	for _, section := range r.Sections {
		if section.Heading != "" {
			fmt.Fprintf(&buf, "## %s\n\n", section.Heading)
		}
		buf.WriteString(strings.TrimSpace(section.Body))
		buf.WriteString("\n\n")
	}
	for _, capability := range r.Failures {
		fmt.Fprintf(&buf, "> Note: %s is currently unavailable.\n\n", capability)
	}
	if len(r.Sources) > 0 {
		buf.WriteString("## Sources\n")
		for _, src := range r.Sources {
			fmt.Fprintf(&buf, "\n- %s", src)
		}
	}
	return strings.TrimSpace(buf.String())
}
