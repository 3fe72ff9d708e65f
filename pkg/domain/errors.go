package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLeafNode is returned when adding a child to a Transition.
	ErrLeafNode = errors.New("transition nodes cannot have children")
	// ErrInvalidPlacement is returned when a node kind is not allowed under the requested parent.
	ErrInvalidPlacement = errors.New("invalid node placement")
	// ErrRootNode is returned when an operation cannot be applied to the root.
	ErrRootNode = errors.New("operation not allowed on the root node")
	// ErrNodeNotFound is returned for an index outside the tree.
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidTypeChange is returned when a type change is not Chance <-> Transition.
	ErrInvalidTypeChange = errors.New("invalid type change")
	// ErrDuplicateName is returned when a name collides within its scope.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrIncompatibleDimensions is returned when pasting a subtree built for a different dimension count.
	ErrIncompatibleDimensions = errors.New("incompatible dimensions")
	// ErrDimensionOutOfRange is returned when a cost, effect or objective index names no dimension.
	ErrDimensionOutOfRange = errors.New("dimension index out of range")
	// ErrModelNotFound is returned when a model name cannot be found in a store.
	ErrModelNotFound = errors.New("model not found")
)

// ProbabilityMismatchError reports branch probabilities that do not sum to one.
type ProbabilityMismatchError struct {
	Node      string
	Sum       float64
	Tolerance float64
}

func (e *ProbabilityMismatchError) Error() string {
	return fmt.Sprintf("probabilities of %s sum to %g, not 1 (tolerance %g)", e.Node, e.Sum, e.Tolerance)
}

// IterationLimitExceeded reports a Markov chain that did not terminate within the cycle cap.
type IterationLimitExceeded struct {
	Chain string
	Limit int
}

func (e *IterationLimitExceeded) Error() string {
	return fmt.Sprintf("chain %s did not terminate within %d cycles", e.Chain, e.Limit)
}

// EvaluationError attaches the originating node to an evaluation failure.
type EvaluationError struct {
	Node string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// AggregateError collects every failure found by a fail-soft pass.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d error(s):\n  %s", len(e.Errors), strings.Join(msgs, "\n  "))
}

func (e *AggregateError) Unwrap() []error { return e.Errors }
