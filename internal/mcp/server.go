package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/reelvibe/internal/catalog"
	"github.com/Aman-CERP/reelvibe/internal/search"
	"github.com/Aman-CERP/reelvibe/pkg/version"
)

// ServerName is reported to MCP clients.
const ServerName = "reelvibe"

// Engine is the search surface the server exposes.
type Engine interface {
	Search(ctx context.Context, raw string, limit, offset int) (*search.Response, error)
	Details(ctx context.Context, id string) (*catalog.Entry, error)
	Explain(ctx context.Context, raw, id string) (*search.Explanation, error)
}

// Server is the MCP server. It bridges AI clients with the search engine.
type Server struct {
	mcp    *mcp.Server
	engine Engine
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_movies",
		Description: "Find films matching a mood, theme or vibe described in plain language. Results are ranked; unverified entries are AI suggestions that are not in the local catalog.",
	},
	{
		Name:        "movie_details",
		Description: "Full catalog details for one film, by the id returned from search_movies.",
	},
	{
		Name:        "explain_match",
		Description: "Explain why one catalog film fits a search, grounded in its tropes and semantic similarity to the query.",
	},
}

// NewServer creates an MCP server over engine.
func NewServer(engine Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("search engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{engine: engine, logger: logger}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.searchMoviesHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.movieDetailsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.explainMatchHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

func (s *Server) searchMoviesHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchMoviesInput) (
	*mcp.CallToolResult,
	SearchMoviesOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchMoviesOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if input.Offset < 0 {
		return nil, SearchMoviesOutput{}, NewInvalidParamsError("offset cannot be negative")
	}

	resp, err := s.engine.Search(ctx, input.Query, input.Limit, input.Offset)
	if err != nil {
		return nil, SearchMoviesOutput{}, MapError(err)
	}

	return textResult(FormatSearchResults(resp)), toSearchOutput(resp), nil
}

func (s *Server) movieDetailsHandler(ctx context.Context, _ *mcp.CallToolRequest, input MovieDetailsInput) (
	*mcp.CallToolResult,
	MovieDetailsOutput,
	error,
) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, MovieDetailsOutput{}, NewInvalidParamsError("id parameter is required")
	}

	e, err := s.engine.Details(ctx, input.ID)
	if err != nil {
		return nil, MovieDetailsOutput{}, MapError(err)
	}
	return textResult(FormatDetails(e)), toDetailsOutput(e), nil
}

func (s *Server) explainMatchHandler(ctx context.Context, _ *mcp.CallToolRequest, input ExplainMatchInput) (
	*mcp.CallToolResult,
	ExplainMatchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, ExplainMatchOutput{}, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	if strings.TrimSpace(input.ID) == "" {
		return nil, ExplainMatchOutput{}, NewInvalidParamsError("id parameter is required")
	}

	x, err := s.engine.Explain(ctx, input.Query, input.ID)
	if err != nil {
		return nil, ExplainMatchOutput{}, MapError(err)
	}
	return textResult(FormatExplanation(x)), toExplainOutput(x), nil
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		} else {
			s.logger.Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func toSearchOutput(resp *search.Response) SearchMoviesOutput {
	out := SearchMoviesOutput{
		RequestID: resp.RequestID,
		Intent:    string(resp.Query.Intent),
		Regime:    string(resp.Regime),
		Total:     resp.Total,
		Offset:    resp.Offset,
		Limit:     resp.Limit,
		Fallback:  resp.Fallback,
		Rejected:  resp.Rejected,
		Reason:    resp.Reason,
		Results:   make([]MovieResult, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		m := MovieResult{
			Rank:            r.Rank,
			ID:              r.ID,
			Title:           r.Title,
			Verified:        r.Verified,
			Score:           r.Score,
			DisplayScore:    r.Display,
			ConfidenceLabel: r.Label,
			MatchMethod:     string(r.Method),
		}
		if r.Year != nil {
			m.Year = *r.Year
		}
		out.Results = append(out.Results, m)
	}
	return out
}

func toDetailsOutput(e *catalog.Entry) MovieDetailsOutput {
	return MovieDetailsOutput{
		ID:        e.ID,
		Title:     e.Title,
		Year:      e.Year,
		Overview:  e.Overview,
		Tagline:   e.Tagline,
		Director:  e.Director,
		Cast:      e.Cast,
		Genres:    e.Genres,
		Tags:      e.Tags,
		Runtime:   e.Runtime,
		Rating:    e.Rating,
		PosterURL: e.PosterURL,
	}
}

func toExplainOutput(x *search.Explanation) ExplainMatchOutput {
	return ExplainMatchOutput{
		ID:          x.ID,
		Title:       x.Title,
		Year:        x.Year,
		Query:       x.Query,
		Explanation: x.Text,
		Confidence:  x.Confidence,
		Generated:   x.Generated,
		TopTropes:   x.Grounding.TopTropes,
		Semantic:    x.Grounding.SemanticMatch,
		QueryTerms:  x.Grounding.QueryTerms,
	}
}
