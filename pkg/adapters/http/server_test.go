package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/sqlite"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/workspace"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// strategies builds a cost/effect decision between two chance branches.
func strategies(t *testing.T) *domain.Model {
	t.Helper()
	m := domain.NewModel("strategies", "Cost", "QALY")
	m.Dimensions.AnalysisType = domain.AnalysisCEA
	m.Dimensions.CostDim, m.Dimensions.EffectDim = 0, 1
	m.Dimensions.WTP = 1000
	m.Parameters = []*domain.Parameter{
		{Name: "p", Expression: "Uniform(0.2, 0.6)"},
		{Name: "cTreat", Expression: "100"},
	}
	m.Scenarios = []*domain.Scenario{{Name: "base", NumIterations: 1}}

	branch := func(name, cost string, recover string) {
		i, err := m.Tree.AddChild(0, domain.KindChance)
		require.NoError(t, err)
		m.Tree.Nodes[i].Name = name
		m.Tree.Nodes[i].Payload.(*domain.Chance).Cost = []string{cost, "0"}

		r, err := m.Tree.AddChild(i, domain.KindChance)
		require.NoError(t, err)
		m.Tree.Nodes[r].Name = "Recover"
		m.Tree.Nodes[r].Prob = recover
		m.Tree.Nodes[r].Payload.(*domain.Chance).Cost = []string{"0", "1"}

		f, err := m.Tree.AddChild(i, domain.KindChance)
		require.NoError(t, err)
		m.Tree.Nodes[f].Name = "Fail"
		m.Tree.Nodes[f].Prob = domain.Complement
	}
	branch("None", "0", "p")
	branch("Treat", "cTreat", "p + 0.2")
	return m
}

type fixture struct {
	srv *Server
	ts  *httptest.Server
	ws  *workspace.Manager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ws := workspace.NewManager(memory.NewStore())
	require.NoError(t, ws.Save(context.Background(), "strategies", strategies(t)))

	srv := NewServer(runtime.NewEngine(), ws, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &fixture{srv: srv, ts: ts, ws: ws}
}

func (f *fixture) do(t *testing.T, method, path, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t, WithVersion("1.2.3"))

	resp := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var info map[string]string
	decode(t, f.do(t, http.MethodGet, "/info", "", nil), &info)
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	resp = f.do(t, http.MethodOptions, "/models", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_RoutesAreDocumented(t *testing.T) {
	doc, err := Spec(context.Background())
	require.NoError(t, err)

	srv := NewServer(runtime.NewEngine(), workspace.NewManager(memory.NewStore()))
	defer srv.Close()

	err = chi.Walk(srv.router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		path := strings.TrimSuffix(route, "/")
		item := doc.Paths.Value(path)
		if assert.NotNil(t, item, "route %s is not documented", path) {
			assert.NotNil(t, item.GetOperation(method), "%s %s is not documented", method, path)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestServer_ModelLifecycle(t *testing.T) {
	f := newFixture(t)

	var names []string
	decode(t, f.do(t, http.MethodGet, "/models", "", nil), &names)
	assert.Equal(t, []string{"strategies"}, names)

	// 1. PUT as JSON, name taken from the path
	m := strategies(t)
	m.Name = ""
	body, err := json.Marshal(m)
	require.NoError(t, err)
	resp := f.do(t, http.MethodPut, "/models/copy", "application/json", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.Model
	decode(t, f.do(t, http.MethodGet, "/models/copy", "", nil), &got)
	assert.Equal(t, "copy", got.Name)
	assert.Equal(t, m.Tree.Len(), got.Tree.Len())

	// 2. PUT as YAML and HCL
	for format, contentType := range map[file.Format]string{
		file.FormatYAML: "application/yaml",
		file.FormatHCL:  "application/hcl",
	} {
		name := strings.TrimPrefix(string(format), ".")
		data, err := file.Encode(format, strategies(t))
		require.NoError(t, err)
		resp = f.do(t, http.MethodPut, "/models/"+name, contentType, data)
		assert.Equal(t, http.StatusOK, resp.StatusCode, format)

		var loaded domain.Model
		decode(t, f.do(t, http.MethodGet, "/models/"+name, "", nil), &loaded)
		assert.Equal(t, 7, loaded.Tree.Len(), format)
	}

	// 3. Garbage
	resp = f.do(t, http.MethodPut, "/models/bad", "application/json", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// 4. DELETE
	resp = f.do(t, http.MethodDelete, "/models/copy", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/models/copy", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_UndoRedo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp := f.do(t, http.MethodPost, "/models/strategies/undo", "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, err := f.ws.Update(ctx, "strategies", "raise cost", func(m *domain.Model) error {
		m.Parameters[1].Expression = "200"
		return nil
	})
	require.NoError(t, err)

	var undone struct {
		Undone string            `json:"undone"`
		Diff   *domain.ModelDiff `json:"diff"`
	}
	decode(t, f.do(t, http.MethodPost, "/models/strategies/undo", "", nil), &undone)
	assert.Equal(t, "raise cost", undone.Undone)
	require.NotNil(t, undone.Diff)
	require.NotNil(t, undone.Diff.Parameters["cTreat"])
	assert.Equal(t, "100", *undone.Diff.Parameters["cTreat"])
	m, err := f.ws.Load(ctx, "strategies")
	require.NoError(t, err)
	assert.Equal(t, "100", m.Parameters[1].Expression)

	resp = f.do(t, http.MethodPost, "/models/strategies/redo", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	m, err = f.ws.Load(ctx, "strategies")
	require.NoError(t, err)
	assert.Equal(t, "200", m.Parameters[1].Expression)
}

func TestServer_Validate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var report struct {
		Checked bool              `json:"checked"`
		Errors  []json.RawMessage `json:"errors"`
	}
	decode(t, f.do(t, http.MethodPost, "/models/strategies/validate", "", nil), &report)
	assert.True(t, report.Checked)
	assert.Empty(t, report.Errors)

	_, err := f.ws.Update(ctx, "strategies", "break", func(m *domain.Model) error {
		m.Tree.Nodes[3].Prob = "0.9"
		return nil
	})
	require.NoError(t, err)

	decode(t, f.do(t, http.MethodPost, "/models/strategies/validate", "", nil), &report)
	assert.False(t, report.Checked)
	assert.NotEmpty(t, report.Errors)

	resp := f.do(t, http.MethodPost, "/models/strategies/run", "", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestServer_Run(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	ws := workspace.NewManager(memory.NewStore())
	require.NoError(t, ws.Save(context.Background(), "strategies", strategies(t)))
	srv := NewServer(runtime.NewEngine(runtime.WithHooks(metrics.Hooks())), ws, WithGatherer(reg))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Close()
	f := &fixture{srv: srv, ts: ts, ws: ws}

	var res struct {
		Branches []runtime.Branch `json:"branches"`
		ICER     []runtime.ICER   `json:"icer"`
	}
	resp := f.do(t, http.MethodPost, "/models/strategies/run", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &res)
	require.Len(t, res.Branches, 2)
	assert.Equal(t, "None", res.Branches[0].Name)
	assert.InDelta(t, 0.4, res.Branches[0].Values[1], 1e-9)
	assert.InDelta(t, 100, res.Branches[1].Values[0], 1e-9)
	assert.NotEmpty(t, res.ICER)

	resp = f.do(t, http.MethodGet, "/metrics", "", nil)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `arbor_runs_total{model="strategies"`)

	resp = f.do(t, http.MethodPost, "/models/missing/run", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_PSA(t *testing.T) {
	results, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer results.Close()
	f := newFixture(t, WithResults(results))

	body := []byte(`{"iterations": 25, "crn1": true, "seed1": 3, "sample_params": true, "workers": 2}`)
	var out psaResponse
	resp := f.do(t, http.MethodPost, "/models/strategies/psa", "application/json", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &out)
	assert.Equal(t, 25, out.Iterations)
	require.Len(t, out.Summary, 2)
	assert.Equal(t, "Treat", out.Summary[1].Name)

	var its []runtime.IterationResult
	decode(t, f.do(t, http.MethodGet, "/models/strategies/iterations", "", nil), &its)
	require.Len(t, its, 25)
	assert.Equal(t, 0, its[0].Index)

	resp = f.do(t, http.MethodDelete, "/models/strategies/iterations", "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	decode(t, f.do(t, http.MethodGet, "/models/strategies/iterations", "", nil), &its)
	assert.Empty(t, its)

	resp = f.do(t, http.MethodPost, "/models/strategies/psa", "application/json", []byte(`{"iterations": 0}`))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_IterationsWithoutStore(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/models/strategies/iterations", "", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	resp = f.do(t, http.MethodPut, "/models/strategies/scenarios/x", "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestServer_Scenarios(t *testing.T) {
	lib := memory.NewLibrary("strategies", &domain.Scenario{Name: "psa", NumIterations: 10, CRN1: true, Seed1: 1, SampleParams: true})
	f := newFixture(t, WithLibrary(lib))

	var list []domain.Scenario
	decode(t, f.do(t, http.MethodGet, "/models/strategies/scenarios", "", nil), &list)
	require.Len(t, list, 2)
	assert.Equal(t, "base", list[0].Name)
	assert.Equal(t, "psa", list[1].Name)

	// Model scenario, single run
	var single runtime.ScenarioResult
	decode(t, f.do(t, http.MethodPost, "/models/strategies/scenarios/base/run", "", nil), &single)
	require.NotNil(t, single.Result)
	assert.Len(t, single.Result.Branches, 2)

	// Library scenario, PSA
	var psa runtime.ScenarioResult
	decode(t, f.do(t, http.MethodPost, "/models/strategies/scenarios/psa/run", "", nil), &psa)
	assert.Len(t, psa.Iterations, 10)
	assert.Len(t, psa.Summary, 2)

	// Saved through the API
	resp := f.do(t, http.MethodPut, "/models/strategies/scenarios/cheap", "application/json",
		[]byte(`{"num_iterations": 1, "object_updates": "cTreat = 10"}`))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var cheap runtime.ScenarioResult
	decode(t, f.do(t, http.MethodPost, "/models/strategies/scenarios/cheap/run", "", nil), &cheap)
	require.NotNil(t, cheap.Result)
	assert.InDelta(t, 10, cheap.Result.Branches[1].Values[0], 1e-9)

	resp = f.do(t, http.MethodPost, "/models/strategies/scenarios/nope/run", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ProgressStream(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.Hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	resp := f.do(t, http.MethodPost, "/models/strategies/psa", "application/json", []byte(`{"iterations": 3, "sample_params": true}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	seen := make(map[int]bool)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for len(seen) < 3 {
		var p Progress
		require.NoError(t, conn.ReadJSON(&p))
		assert.Equal(t, "iteration", p.Type)
		assert.Equal(t, "strategies", p.Model)
		assert.Len(t, p.Branches, 2)
		seen[p.Iteration] = true
	}

	f.srv.Close()
	assert.Eventually(t, func() bool { return f.srv.Hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_References(t *testing.T) {
	f := newFixture(t)

	var refs []domain.Reference
	resp := f.do(t, http.MethodGet, "/models/strategies/references/p", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &refs)
	require.Len(t, refs, 2)
	assert.Equal(t, "prob", refs[0].Field)
	assert.Equal(t, "p", refs[0].Text)
	assert.Equal(t, "p + 0.2", refs[1].Text)

	resp = f.do(t, http.MethodGet, "/models/strategies/references/cTreat", "", nil)
	decode(t, resp, &refs)
	require.Len(t, refs, 1)
	assert.Equal(t, "Treat", refs[0].Owner)

	resp = f.do(t, http.MethodGet, "/models/missing/references/p", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ChangeBroadcast(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.Hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	m := strategies(t)
	m.Parameters[0].Expression = "0.5"
	body, err := json.Marshal(m)
	require.NoError(t, err)
	resp := f.do(t, http.MethodPut, "/models/strategies", "application/json", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var c Change
	require.NoError(t, conn.ReadJSON(&c))
	assert.Equal(t, "model_changed", c.Type)
	require.NotNil(t, c.Diff)
	assert.Equal(t, "strategies", c.Diff.Model)
	require.NotNil(t, c.Diff.Parameters["p"])
	assert.Equal(t, "0.5", *c.Diff.Parameters["p"])
}
