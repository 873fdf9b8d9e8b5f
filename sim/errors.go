package sim

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by Run when the caller's context is cancelled at a
// day boundary. It is not a failure: the result is simply left unset.
var ErrCancelled = errors.New("simulation cancelled")

// ConfigurationError reports a configuration field that violates an invariant.
// Validate joins one ConfigurationError per offending field; use errors.As to
// recover the first one.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SimulationFault is an internal invariant violation detected while a
// replication is running (negative stock, clock regression, position leak).
// A fault aborts the replication and every job that depends on it.
type SimulationFault struct {
	Clock  float64
	Node   NodeID
	Reason string
}

func (e *SimulationFault) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("simulation fault at t=%.6f: %s", e.Clock, e.Reason)
	}
	return fmt.Sprintf("simulation fault at t=%.6f on %s: %s", e.Clock, e.Node, e.Reason)
}

func faultf(clock float64, node NodeID, format string, args ...any) *SimulationFault {
	return &SimulationFault{Clock: clock, Node: node, Reason: fmt.Sprintf(format, args...)}
}
