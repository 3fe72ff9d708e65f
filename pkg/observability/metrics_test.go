package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func base(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, Model: "hiv"}
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	hooks := m.Hooks()
	ctx := context.Background()
	hooks.OnRunFinish(ctx, &domain.RunEvent{EventBase: base(domain.EventRunFinish), Duration: time.Millisecond})
	hooks.OnRunFinish(ctx, &domain.RunEvent{EventBase: base(domain.EventRunFinish), Err: errors.New("boom")})
	for c := 0; c < 3; c++ {
		hooks.OnCycle(ctx, &domain.CycleEvent{EventBase: base(domain.EventCycle), Chain: "Care", Cycle: c})
	}
	hooks.OnIteration(ctx, &domain.IterationEvent{EventBase: base(domain.EventIteration), Iteration: 0, Total: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("hiv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("hiv", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Cycles.WithLabelValues("hiv", "Care")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Iterations.WithLabelValues("hiv")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestNewMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewMetrics(reg)
	require.NoError(t, err)
	b, err := NewMetrics(reg)
	require.NoError(t, err)

	b.Iterations.WithLabelValues("m").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Iterations.WithLabelValues("m")))
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	hooks := LogHooks(logger).Merge(domain.LifecycleHooks{})
	ctx := context.Background()
	hooks.OnRunStart(ctx, &domain.RunEvent{EventBase: base(domain.EventRunStart)})
	hooks.OnCycle(ctx, &domain.CycleEvent{EventBase: base(domain.EventCycle), Chain: "Care", Cycle: 4})
	hooks.OnRunFinish(ctx, &domain.RunEvent{EventBase: base(domain.EventRunFinish), Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "msg=run_start")
	assert.Contains(t, out, "chain=Care cycle=4")
	assert.Contains(t, out, "level=WARN msg=run_finish")
	assert.Contains(t, out, "err=boom")
}
