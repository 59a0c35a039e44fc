package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"gitlab.com/golang-commonmark/markdown"

	"github.com/google/uuid"

	"github.com/bububa/financial-agents/agents"
	"github.com/bububa/financial-agents/components"
)

// Runner dispatches one query and returns the merged response.
// *agents.Team satisfies it.
type Runner interface {
	Run(ctx context.Context, query string, apiResp *components.ApiResponse) (*agents.Response, error)
}

// OverviewFunc fetches watchlist quotes for the overview endpoint.
type OverviewFunc func(ctx context.Context) ([]OverviewItem, error)

// OverviewItem is one watchlist entry in the overview payload.
type OverviewItem struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Currency      string  `json:"currency,omitempty"`
}

// QueryRequest is the playground query payload.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse is the playground query result.
type QueryResponse struct {
	ID       string               `json:"id"`
	Query    string               `json:"query"`
	Markdown string               `json:"markdown"`
	HTML     string               `json:"html"`
	Sources  []string             `json:"sources,omitempty"`
	Usage    *components.ApiUsage `json:"usage,omitempty"`
}

type errorResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Server is the HTTP playground. It exposes the coordinating team to a
// browser; any request failure is returned to the client and the process
// keeps serving.
type Server struct {
	runner   Runner
	overview OverviewFunc
	md       *markdown.Markdown
	logger   *log.Logger
}

type Option func(s *Server)

// WithOverview configures the watchlist overview endpoint.
func WithOverview(fn OverviewFunc) Option {
	return func(s *Server) {
		s.overview = fn
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New returns a new Server instance
func New(runner Runner, opts ...Option) *Server {
	srv := &Server{
		runner: runner,
		md:     markdown.New(markdown.XHTMLOutput(true), markdown.Tables(true)),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Handler returns the playground route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/overview", s.handleOverview)
	return mux
}

// ListenAndServe starts the playground on addr and blocks until the listener
// fails or ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()
	s.logger.Printf("playground listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Financial Agents Playground</title></head>
<body>
<h1>Financial Agents Playground</h1>
<p>POST /v1/query with {"query": "..."} for a merged research response.</p>
<p>GET /v1/overview for watchlist quotes.</p>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := uuid.NewString()
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ID: requestID, Error: "invalid request body"})
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{ID: requestID, Error: "empty query"})
		return
	}
	apiResp := new(components.ApiResponse)
	resp, err := s.runner.Run(r.Context(), query, apiResp)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, agents.ErrBusy) {
			status = http.StatusConflict
		} else if errors.Is(err, agents.ErrEmptyQuery) {
			status = http.StatusBadRequest
		}
		s.logger.Printf("query %s failed: %v", requestID, err)
		writeJSON(w, status, errorResponse{ID: requestID, Error: err.Error()})
		return
	}
	rendered := resp.Render()
	writeJSON(w, http.StatusOK, QueryResponse{
		ID:       requestID,
		Query:    query,
		Markdown: rendered,
		HTML:     s.md.RenderToString([]byte(rendered)),
		Sources:  resp.Sources,
		Usage:    apiResp.Usage,
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := uuid.NewString()
	if s.overview == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{ID: requestID, Error: "overview not configured"})
		return
	}
	items, err := s.overview(r.Context())
	if err != nil {
		s.logger.Printf("overview %s failed: %v", requestID, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{ID: requestID, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": requestID, "quotes": items})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
