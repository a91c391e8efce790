package health

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusConstructors(t *testing.T) {
	tests := []struct {
		status  Status
		state   string
		healthy bool
	}{
		{NewHealthy("gateway", "0 clients"), StateHealthy, true},
		{NewDegraded("nats", "reconnecting"), StateDegraded, false},
		{NewUnhealthy("nats", "disconnected"), StateUnhealthy, false},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.state, tt.status.Status)
			assert.Equal(t, tt.healthy, tt.status.Healthy)
			assert.Equal(t, tt.healthy, tt.status.IsHealthy())
			assert.Equal(t, tt.state == StateDegraded, tt.status.IsDegraded())
			assert.Equal(t, tt.state == StateUnhealthy, tt.status.IsUnhealthy())
			assert.False(t, tt.status.Timestamp.IsZero())
		})
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		subs    []Status
		state   string
		message string
	}{
		{"empty", nil, StateHealthy, "nothing to report"},
		{
			"all healthy",
			[]Status{NewHealthy("gateway", ""), NewHealthy("nats", "")},
			StateHealthy, "all components healthy",
		},
		{
			"degraded",
			[]Status{NewHealthy("gateway", ""), NewDegraded("nats", "")},
			StateDegraded, "degraded: nats",
		},
		{
			"unhealthy wins over degraded",
			[]Status{NewUnhealthy("nats", ""), NewDegraded("breaker", ""), NewUnhealthy("gateway", "")},
			StateUnhealthy, "unhealthy: gateway, nats",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Aggregate("wdat", tt.subs)
			assert.Equal(t, "wdat", status.Component)
			assert.Equal(t, tt.state, status.Status)
			assert.Equal(t, tt.message, status.Message)
			assert.Len(t, status.SubStatuses, len(tt.subs))
		})
	}
}

func TestAggregate_SortsCopy(t *testing.T) {
	subs := []Status{NewHealthy("nats", ""), NewHealthy("gateway", "")}
	status := Aggregate("wdat", subs)

	assert.Equal(t, "gateway", status.SubStatuses[0].Component)
	assert.Equal(t, "nats", subs[0].Component, "input order is kept")
}

func TestFromError(t *testing.T) {
	status := FromError("nats", nil)
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "ok", status.Message)

	status = FromError("repository", fmt.Errorf("dial https://gnode.example.org/api failed"))
	assert.True(t, status.IsUnhealthy())
	assert.Equal(t, "dial [URL] failed", status.Message)
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"connection refused", "connection refused"},
		{"connect nats://nats:4222 failed", "connect [URL] failed"},
		{"open /etc/wdat/config.yaml: denied", "open [PATH]: denied"},
		{`open C:\wdat\config.yaml`, "open [PATH]"},
		{"dial tcp 10.0.0.7 refused", "dial tcp [IP] refused"},
		{"listen on localhost:8080", "listen on localhost[PORT]"},
		{"auth failed password=hunter2", "auth failed [REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeErrorMessage(tt.in))
		})
	}
}

func TestMonitor_UpdateAndRemove(t *testing.T) {
	m := NewMonitor()

	_, ok := m.Get("nats")
	assert.False(t, ok)

	m.Update("nats", NewHealthy("renamed", "connected"))
	status, ok := m.Get("nats")
	require.True(t, ok)
	assert.Equal(t, "nats", status.Component)
	assert.True(t, status.IsHealthy())

	m.UpdateDegraded("nats", "reconnecting")
	status, _ = m.Get("nats")
	assert.True(t, status.IsDegraded())

	m.UpdateUnhealthy("gateway", "stopped")
	assert.True(t, m.AggregateHealth("wdat").IsUnhealthy())

	m.Remove("gateway")
	assert.True(t, m.AggregateHealth("wdat").IsDegraded())
}

func TestMonitor_ConcurrentUpdates(t *testing.T) {
	m := NewMonitor()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("component-%d", i)
			for j := range 50 {
				if j%2 == 0 {
					m.UpdateHealthy(name, "ok")
				} else {
					m.UpdateDegraded(name, "busy")
				}
				_ = m.AggregateHealth("wdat")
			}
		}()
	}
	wg.Wait()

	status := m.AggregateHealth("wdat")
	assert.Len(t, status.SubStatuses, 10)
	assert.True(t, status.IsDegraded())
}
