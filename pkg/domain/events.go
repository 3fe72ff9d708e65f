package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventRunStart  EventType = "run_start"
	EventRunFinish EventType = "run_finish"
	EventCycle     EventType = "cycle"
	EventIteration EventType = "iteration"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Model     string    `json:"model"`
}

// RunEvent marks the start or end of an evaluation pass.
type RunEvent struct {
	EventBase
	Sampled  bool          `json:"sampled"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// CycleEvent reports one completed Markov cycle.
type CycleEvent struct {
	EventBase
	Chain     string    `json:"chain"`
	Cycle     int       `json:"cycle"`
	Occupancy []float64 `json:"occupancy"`
	Rewards   []float64 `json:"rewards"`
}

// IterationEvent reports one completed PSA iteration.
type IterationEvent struct {
	EventBase
	Iteration int                  `json:"iteration"`
	Total     int                  `json:"total"`
	Outcomes  map[string][]float64 `json:"outcomes"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnRunStart  func(context.Context, *RunEvent)
	OnRunFinish func(context.Context, *RunEvent)
	OnCycle     func(context.Context, *CycleEvent)
	OnIteration func(context.Context, *IterationEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnRunStart:  chain(h.OnRunStart, other.OnRunStart),
		OnRunFinish: chain(h.OnRunFinish, other.OnRunFinish),
		OnCycle:     chain(h.OnCycle, other.OnCycle),
		OnIteration: chain(h.OnIteration, other.OnIteration),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
