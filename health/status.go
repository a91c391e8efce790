// Package health provides health monitoring functionality for components and systems
package health

import (
	"slices"
	"strings"
	"time"
)

// Health states.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status represents the health state of a component or system
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"` // true only in StateHealthy
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool { return s.Status == StateHealthy }

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool { return s.Status == StateDegraded }

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status.
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewUnhealthy creates an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

// NewDegraded creates a degraded status.
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// FromError reports name as healthy when err is nil and as unhealthy with
// the sanitized error text otherwise.
func FromError(name string, err error) Status {
	if err == nil {
		return NewHealthy(name, "ok")
	}
	return NewUnhealthy(name, sanitizeErrorMessage(err.Error()))
}

// Aggregate combines subs into one status for component. Any unhealthy
// sub-status makes the result unhealthy, otherwise any degraded one makes
// it degraded. The message names the offending components. Sub-statuses
// are copied and sorted by component.
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return NewHealthy(component, "nothing to report")
	}

	sorted := slices.Clone(subs)
	slices.SortFunc(sorted, func(a, b Status) int {
		return strings.Compare(a.Component, b.Component)
	})

	var unhealthy, degraded []string
	for _, sub := range sorted {
		switch {
		case sub.IsUnhealthy():
			unhealthy = append(unhealthy, sub.Component)
		case sub.IsDegraded():
			degraded = append(degraded, sub.Component)
		}
	}

	var status Status
	switch {
	case len(unhealthy) > 0:
		status = NewUnhealthy(component, "unhealthy: "+strings.Join(unhealthy, ", "))
	case len(degraded) > 0:
		status = NewDegraded(component, "degraded: "+strings.Join(degraded, ", "))
	default:
		status = NewHealthy(component, "all components healthy")
	}
	status.SubStatuses = sorted
	return status
}
