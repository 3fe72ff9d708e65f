// Package mcp exposes stored models as Model Context Protocol tools so an
// assistant can validate, run and compare them.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/workspace"
)

const modelsURI = "arbor://models"

// ValidateResponse is the outcome of validate_model.
type ValidateResponse struct {
	Checked bool              `json:"checked" jsonschema_description:"True when the model is eligible for evaluation"`
	Errors  []validator.Issue `json:"errors" jsonschema_description:"Every problem found, one per node and field"`
}

// RunResponse is the outcome of run_model.
type RunResponse struct {
	Model    string           `json:"model"`
	Branches []runtime.Branch `json:"branches" jsonschema_description:"Expected values of each strategy, chosen one flagged"`
	ICER     []runtime.ICER   `json:"icer,omitempty" jsonschema_description:"Cost-effectiveness table for cea and bca models"`
}

// PSAResponse is the outcome of run_psa and PSA scenarios.
type PSAResponse struct {
	Model      string                  `json:"model"`
	Iterations int                     `json:"iterations"`
	Summary    []runtime.BranchSummary `json:"summary" jsonschema_description:"Mean and 95% interval per strategy and dimension"`
}

type modelArgs struct {
	Model string `mapstructure:"model"`
}

type psaArgs struct {
	Model        string `mapstructure:"model"`
	Iterations   int    `mapstructure:"iterations"`
	Seed         int64  `mapstructure:"seed"`
	CRN          bool   `mapstructure:"crn"`
	SampleParams bool   `mapstructure:"sample_params"`
	Workers      int    `mapstructure:"workers"`
}

type scenarioArgs struct {
	Model    string `mapstructure:"model"`
	Scenario string `mapstructure:"scenario"`
}

type referenceArgs struct {
	Model string `mapstructure:"model"`
	Name  string `mapstructure:"name"`
}

// Server wraps the engine and a workspace as an MCP server.
type Server struct {
	engine    ports.Evaluator
	ws        *workspace.Manager
	library   ports.ScenarioLibrary
	logger    *slog.Logger
	version   string
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLibrary adds an external scenario library to run_scenario.
func WithLibrary(lib ports.ScenarioLibrary) Option {
	return func(s *Server) { s.library = lib }
}

// WithLogger configures the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithVersion sets the version announced to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.Evaluator, ws *workspace.Manager, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		ws:      ws,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("arbor-mcp", s.version)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on addr using SSE until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	model := mcp.WithString("model", mcp.Required(), mcp.Description("Name of a stored model"))

	s.mcpServer.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List the names of every stored model."),
	), s.handleListModels)

	s.mcpServer.AddTool(mcp.NewTool("validate_model",
		mcp.WithDescription("Check every expression, probability sum and Markov setting of a model."),
		model,
		mcp.WithOutputSchema[ValidateResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("run_model",
		mcp.WithDescription("Evaluate a model with expected values and report each strategy's outcome."),
		model,
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleRun))

	s.mcpServer.AddTool(mcp.NewTool("run_psa",
		mcp.WithDescription("Run a probabilistic sensitivity analysis and summarize each strategy."),
		model,
		mcp.WithNumber("iterations", mcp.Required(), mcp.Description("Number of Monte Carlo iterations")),
		mcp.WithNumber("seed", mcp.Description("Seed for common random numbers")),
		mcp.WithBoolean("crn", mcp.Description("Reuse the same parameter draws per iteration index")),
		mcp.WithBoolean("sample_params", mcp.Description("Sample parameters each iteration (default true)")),
		mcp.WithNumber("workers", mcp.Description("Parallel workers")),
		mcp.WithOutputSchema[PSAResponse](),
	), mcp.NewStructuredToolHandler(s.handlePSA))

	s.mcpServer.AddTool(mcp.NewTool("list_scenarios",
		mcp.WithDescription("List the scenarios defined for a model."),
		model,
	), s.handleListScenarios)

	s.mcpServer.AddTool(mcp.NewTool("run_scenario",
		mcp.WithDescription("Run a model under one of its scenarios."),
		model,
		mcp.WithString("scenario", mcp.Required(), mcp.Description("Scenario name")),
	), s.handleRunScenario)

	s.mcpServer.AddTool(mcp.NewTool("find_references",
		mcp.WithDescription("Find every parameter, variable and node expression that mentions a name."),
		model,
		mcp.WithString("name", mcp.Required(), mcp.Description("Parameter, variable or table name")),
	), s.handleReferences)
}

func bind(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleListModels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.ws.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	return jsonResult(names)
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (ValidateResponse, error) {
	var a modelArgs
	if err := bind(args, &a); err != nil {
		return ValidateResponse{}, err
	}
	var resp ValidateResponse
	err := s.ws.Evaluate(ctx, a.Model, func(ctx context.Context, m *domain.Model) error {
		report := s.engine.Validate(m)
		resp = ValidateResponse{Checked: report.Checked(), Errors: report.Errors}
		return nil
	})
	return resp, err
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
	var a modelArgs
	if err := bind(args, &a); err != nil {
		return RunResponse{}, err
	}
	var resp RunResponse
	err := s.ws.Evaluate(ctx, a.Model, func(ctx context.Context, m *domain.Model) error {
		if err := s.engine.Validate(m).Err(); err != nil {
			return err
		}
		res, err := s.engine.Run(ctx, m)
		if err != nil {
			return err
		}
		resp = RunResponse{Model: m.Name, Branches: res.Branches}
		if m.Dimensions.AnalysisType != domain.AnalysisEV {
			resp.ICER, err = res.CEA(m.Dimensions)
		}
		return err
	})
	if err != nil {
		s.logger.Warn("MCP run_model failed", "model", a.Model, "err", err)
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}
	return resp, nil
}

func (s *Server) handlePSA(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (PSAResponse, error) {
	a := psaArgs{SampleParams: true}
	if err := bind(args, &a); err != nil {
		return PSAResponse{}, err
	}
	settings := runtime.Settings{
		Iterations:   a.Iterations,
		CRN1:         a.CRN,
		Seed1:        a.Seed,
		SampleParams: a.SampleParams,
		Workers:      a.Workers,
	}
	var resp PSAResponse
	err := s.ws.Evaluate(ctx, a.Model, func(ctx context.Context, m *domain.Model) error {
		if err := s.engine.Validate(m).Err(); err != nil {
			return err
		}
		its, err := s.engine.RunPSA(ctx, m, settings)
		if err != nil {
			return err
		}
		resp = PSAResponse{Model: m.Name, Iterations: len(its), Summary: runtime.Summarize(its)}
		return nil
	})
	if err != nil {
		return PSAResponse{}, fmt.Errorf("psa failed: %w", err)
	}
	return resp, nil
}

// scenarios lists the model's scenarios followed by library ones not
// shadowed by name.
func (s *Server) scenarios(ctx context.Context, m *domain.Model) ([]*domain.Scenario, error) {
	out := append([]*domain.Scenario(nil), m.Scenarios...)
	if s.library == nil {
		return out, nil
	}
	lib, err := s.library.Scenarios(ctx, m.Name)
	if err != nil {
		return nil, err
	}
	for _, sc := range lib {
		if m.Scenario(sc.Name) == nil {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *Server) handleListScenarios(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var a modelArgs
	if err := bind(request.GetArguments(), &a); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var names []string
	err := s.ws.Evaluate(ctx, a.Model, func(ctx context.Context, m *domain.Model) error {
		list, err := s.scenarios(ctx, m)
		for _, sc := range list {
			names = append(names, sc.Name)
		}
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list scenarios failed: %v", err)), nil
	}
	return jsonResult(names)
}

func (s *Server) handleRunScenario(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var a scenarioArgs
	if err := bind(request.GetArguments(), &a); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var out any
	err := s.ws.Evaluate(ctx, a.Model, func(ctx context.Context, m *domain.Model) error {
		list, err := s.scenarios(ctx, m)
		if err != nil {
			return err
		}
		for _, sc := range list {
			if sc.Name != a.Scenario {
				continue
			}
			res, err := s.engine.RunScenario(ctx, m, sc)
			if err != nil {
				return err
			}
			if res.Result != nil {
				out = RunResponse{Model: m.Name, Branches: res.Result.Branches}
			} else {
				out = PSAResponse{Model: m.Name, Iterations: len(res.Iterations), Summary: res.Summary}
			}
			return nil
		}
		return fmt.Errorf("scenario %q not found", a.Scenario)
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run scenario failed: %v", err)), nil
	}
	return jsonResult(out)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(modelsURI, "Stored models",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		names, err := s.ws.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}
		b, _ := json.Marshal(names)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      modelsURI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	})
}

func (s *Server) handleReferences(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var a referenceArgs
	if err := bind(request.GetArguments(), &a); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	refs := []domain.Reference{}
	err := s.ws.Evaluate(ctx, a.Model, func(ctx context.Context, m *domain.Model) error {
		refs = append(refs, m.References(a.Name)...)
		return nil
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("find references failed: %v", err)), nil
	}
	return jsonResult(refs)
}
