// Package http exposes stored models over a JSON API: model CRUD, validation,
// deterministic runs, PSA, scenarios and a websocket progress stream.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/workspace"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBody bounds request bodies.
const maxBody = 8 << 20

// Server serves the arbor API.
type Server struct {
	Engine    ports.Evaluator
	Workspace *workspace.Manager
	Library   ports.ScenarioLibrary
	Results   ports.ResultStore
	Hub       *Hub

	gatherer prometheus.Gatherer
	logger   *slog.Logger
	version  string
	stop     context.CancelFunc
}

// Option configures the Server.
type Option func(*Server)

// WithLibrary adds an external scenario library.
func WithLibrary(lib ports.ScenarioLibrary) Option {
	return func(s *Server) { s.Library = lib }
}

// WithResults records every PSA iteration in store.
func WithResults(store ports.ResultStore) Option {
	return func(s *Server) { s.Results = store }
}

// WithGatherer selects the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger configures the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server and starts its progress hub. Call Close to
// stop the hub.
func NewServer(engine ports.Evaluator, ws *workspace.Manager, opts ...Option) *Server {
	s := &Server{
		Engine:    engine,
		Workspace: ws,
		gatherer:  prometheus.DefaultGatherer,
		logger:    logging.NewNop(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Hub = NewHub(s.logger)
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.Hub.Run(ctx)
	return s
}

// Close stops the progress hub and disconnects its clients.
func (s *Server) Close() {
	s.stop()
}

// Handler returns the router with CORS enabled.
func (s *Server) Handler() http.Handler {
	return enableCORS(s.router())
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.Hub.ServeWS)

	r.Route("/models", func(r chi.Router) {
		r.Get("/", s.listModels)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.getModel)
			r.Put("/", s.putModel)
			r.Delete("/", s.deleteModel)
			r.Post("/undo", s.undo)
			r.Post("/redo", s.redo)
			r.Get("/references/{ident}", s.references)
			r.Post("/validate", s.validate)
			r.Post("/run", s.run)
			r.Post("/psa", s.psa)
			r.Get("/iterations", s.listIterations)
			r.Delete("/iterations", s.clearIterations)
			r.Get("/scenarios", s.listScenarios)
			r.Put("/scenarios/{scenario}", s.putScenario)
			r.Post("/scenarios/{scenario}/run", s.runScenario)
		})
	})

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -- Handlers --

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := Spec(r.Context()); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	writeJSON(w, s.logger, map[string]string{
		"app":         "arbor-http",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	names, err := s.Workspace.List(r.Context())
	if err != nil {
		s.fail(w, "List models", err)
		return
	}
	writeJSON(w, s.logger, names)
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	m, err := s.Workspace.Load(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "Load model", err)
		return
	}
	writeJSON(w, s.logger, m)
}

// putModel decodes the body by Content-Type: JSON (default), YAML or HCL.
func (s *Server) putModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	m, err := file.Decode(formatOf(r), data, name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid model: %v", err), http.StatusBadRequest)
		s.logger.Warn("PutModel: invalid model", "model", name, "err", err)
		return
	}
	if m.Name == "" {
		m.Name = name
	}
	before := s.current(r.Context(), name)
	if err := s.Workspace.Save(r.Context(), name, m); err != nil {
		s.fail(w, "Save model", err)
		return
	}
	diff := s.announce(r.Context(), name, "put", before)
	writeJSON(w, s.logger, map[string]any{"name": name, "nodes": m.Tree.Len(), "diff": diff})
}

func formatOf(r *http.Request) file.Format {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/yaml", "application/x-yaml", "text/yaml":
		return file.FormatYAML
	case "application/hcl", "text/x-hcl":
		return file.FormatHCL
	default:
		return file.FormatJSON
	}
}

func (s *Server) deleteModel(w http.ResponseWriter, r *http.Request) {
	if err := s.Workspace.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.fail(w, "Delete model", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	before := s.current(r.Context(), name)
	label, err := s.Workspace.Undo(r.Context(), name)
	if err != nil {
		s.fail(w, "Undo", err)
		return
	}
	writeJSON(w, s.logger, map[string]any{"undone": label, "diff": s.announce(r.Context(), name, "undo "+label, before)})
}

func (s *Server) redo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	before := s.current(r.Context(), name)
	label, err := s.Workspace.Redo(r.Context(), name)
	if err != nil {
		s.fail(w, "Redo", err)
		return
	}
	writeJSON(w, s.logger, map[string]any{"redone": label, "diff": s.announce(r.Context(), name, "redo "+label, before)})
}

// current returns the stored model, or nil when it cannot be loaded.
func (s *Server) current(ctx context.Context, name string) *domain.Model {
	m, err := s.Workspace.Load(ctx, name)
	if err != nil {
		return nil
	}
	return m
}

// announce diffs the stored model against before and broadcasts the change
// to websocket clients. It returns nil when nothing changed.
func (s *Server) announce(ctx context.Context, name, label string, before *domain.Model) *domain.ModelDiff {
	after, err := s.Workspace.Load(ctx, name)
	if err != nil {
		s.logger.Warn("Announce: reload failed", "model", name, "err", err)
		return nil
	}
	diff := domain.Diff(before, after)
	if diff != nil {
		s.Hub.BroadcastJSON(Change{Type: "model_changed", Label: label, Diff: diff})
	}
	return diff
}

func (s *Server) references(w http.ResponseWriter, r *http.Request) {
	ident := chi.URLParam(r, "ident")
	refs := []domain.Reference{}
	err := s.Workspace.Evaluate(r.Context(), chi.URLParam(r, "name"), func(ctx context.Context, m *domain.Model) error {
		refs = append(refs, m.References(ident)...)
		return nil
	})
	if err != nil {
		s.fail(w, "References", err)
		return
	}
	writeJSON(w, s.logger, refs)
}

type validateResponse struct {
	Checked bool `json:"checked"`
	Errors  any  `json:"errors"`
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	var resp validateResponse
	err := s.Workspace.Evaluate(r.Context(), chi.URLParam(r, "name"), func(ctx context.Context, m *domain.Model) error {
		report := s.Engine.Validate(m)
		resp = validateResponse{Checked: report.Checked(), Errors: report.Errors}
		return nil
	})
	if err != nil {
		s.fail(w, "Validate", err)
		return
	}
	writeJSON(w, s.logger, resp)
}

type runResponse struct {
	*runtime.Result
	ICER []runtime.ICER `json:"icer,omitempty"`
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	var resp runResponse
	err := s.Workspace.Evaluate(r.Context(), chi.URLParam(r, "name"), func(ctx context.Context, m *domain.Model) error {
		if err := s.Engine.Validate(m).Err(); err != nil {
			return err
		}
		res, err := s.Engine.Run(ctx, m)
		if err != nil {
			return err
		}
		resp.Result = res
		if m.Dimensions.AnalysisType != domain.AnalysisEV {
			resp.ICER, err = res.CEA(m.Dimensions)
		}
		return err
	})
	if err != nil {
		s.fail(w, "Run", err)
		return
	}
	writeJSON(w, s.logger, resp)
}

type psaRequest struct {
	Iterations   int   `json:"iterations"`
	CRN1         bool  `json:"crn1"`
	Seed1        int64 `json:"seed1"`
	CRN2         bool  `json:"crn2"`
	Seed2        int64 `json:"seed2"`
	SampleParams bool  `json:"sample_params"`
	UseParamSets bool  `json:"use_param_sets"`
	Workers      int   `json:"workers"`
}

type psaResponse struct {
	Iterations int                     `json:"iterations"`
	Summary    []runtime.BranchSummary `json:"summary"`
}

func (s *Server) psa(w http.ResponseWriter, r *http.Request) {
	var req psaRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PSA: invalid request body", "err", err)
		return
	}
	settings := runtime.Settings{
		Iterations:   req.Iterations,
		CRN1:         req.CRN1,
		Seed1:        req.Seed1,
		CRN2:         req.CRN2,
		Seed2:        req.Seed2,
		SampleParams: req.SampleParams,
		UseParamSets: req.UseParamSets,
		Workers:      req.Workers,
		Sink:         s.sink(),
	}

	var resp psaResponse
	err := s.Workspace.Evaluate(r.Context(), chi.URLParam(r, "name"), func(ctx context.Context, m *domain.Model) error {
		if err := s.Engine.Validate(m).Err(); err != nil {
			return err
		}
		its, err := s.Engine.RunPSA(ctx, m, settings)
		if err != nil {
			return err
		}
		resp = psaResponse{Iterations: len(its), Summary: runtime.Summarize(its)}
		return nil
	})
	if err != nil {
		s.fail(w, "PSA", err)
		return
	}
	writeJSON(w, s.logger, resp)
}

// sink streams iterations to websocket clients and, when configured, the
// result store.
func (s *Server) sink() runtime.IterationSink {
	return runtime.SinkFunc(func(ctx context.Context, model string, it runtime.IterationResult) error {
		_ = s.Hub.Record(ctx, model, it)
		if s.Results != nil {
			return s.Results.Record(ctx, model, it)
		}
		return nil
	})
}

func (s *Server) listIterations(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		http.Error(w, "No result store configured", http.StatusNotImplemented)
		return
	}
	its, err := s.Results.Iterations(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, "List iterations", err)
		return
	}
	writeJSON(w, s.logger, its)
}

func (s *Server) clearIterations(w http.ResponseWriter, r *http.Request) {
	if s.Results == nil {
		http.Error(w, "No result store configured", http.StatusNotImplemented)
		return
	}
	if err := s.Results.Clear(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.fail(w, "Clear iterations", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scenarios merges the model's own scenarios with the library's. Library
// entries win on name clashes.
func (s *Server) scenarios(ctx context.Context, name string, m *domain.Model) ([]*domain.Scenario, error) {
	out := make([]*domain.Scenario, 0, len(m.Scenarios))
	index := make(map[string]int)
	for _, sc := range m.Scenarios {
		index[sc.Name] = len(out)
		out = append(out, sc)
	}
	if s.Library == nil {
		return out, nil
	}
	lib, err := s.Library.Scenarios(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, sc := range lib {
		if i, ok := index[sc.Name]; ok {
			out[i] = sc
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var list []*domain.Scenario
	err := s.Workspace.Evaluate(r.Context(), name, func(ctx context.Context, m *domain.Model) error {
		var err error
		list, err = s.scenarios(ctx, name, m)
		return err
	})
	if err != nil {
		s.fail(w, "List scenarios", err)
		return
	}
	writeJSON(w, s.logger, list)
}

func (s *Server) putScenario(w http.ResponseWriter, r *http.Request) {
	if s.Library == nil {
		http.Error(w, "No scenario library configured", http.StatusNotImplemented)
		return
	}
	var sc domain.Scenario
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&sc); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	sc.Name = chi.URLParam(r, "scenario")
	if err := s.Library.SaveScenario(r.Context(), chi.URLParam(r, "name"), &sc); err != nil {
		s.fail(w, "Save scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var errScenarioNotFound = errors.New("scenario not found")

func (s *Server) runScenario(w http.ResponseWriter, r *http.Request) {
	name, scenario := chi.URLParam(r, "name"), chi.URLParam(r, "scenario")
	var res *runtime.ScenarioResult
	err := s.Workspace.Evaluate(r.Context(), name, func(ctx context.Context, m *domain.Model) error {
		list, err := s.scenarios(ctx, name, m)
		if err != nil {
			return err
		}
		for _, sc := range list {
			if sc.Name == scenario {
				res, err = s.Engine.RunScenario(ctx, m, sc, func(st *runtime.Settings) { st.Sink = s.sink() })
				return err
			}
		}
		return fmt.Errorf("%w: %s", errScenarioNotFound, scenario)
	})
	if err != nil {
		s.fail(w, "Run scenario", err)
		return
	}
	writeJSON(w, s.logger, res)
}

// -- Helpers --

// fail maps domain errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var (
		evalErr  *domain.EvaluationError
		limitErr *domain.IterationLimitExceeded
		aggErr   *domain.AggregateError
	)
	switch {
	case errors.Is(err, domain.ErrModelNotFound), errors.Is(err, errScenarioNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, workspace.ErrNothingToUndo):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &evalErr), errors.As(err, &limitErr), errors.As(err, &aggErr):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, fmt.Sprintf("%s error: %v", op, err), http.StatusInternalServerError)
		s.logger.Error(op+" failed", "err", err)
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}
