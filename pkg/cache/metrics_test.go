package cache

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Node/wdat2-sub001/metric"
)

func TestCacheMetricsIntegration(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	c, err := New[*body](1, WithMetrics[*body](registry, "responses"))
	require.NoError(t, err)

	c.Store("/a", "ea", &body{})
	c.Store("/b", "eb", &body{})
	_, found := c.ContentForETag("eb")
	assert.True(t, found)
	_, found = c.ContentForETag("ea-unknown")
	assert.False(t, found)
	c.EvictOverCapacity()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	hits := byName["wdat_cache_hits_total"]
	require.NotNil(t, hits)
	assert.Equal(t, 1.0, hits.Metric[0].GetCounter().GetValue())
	assert.Equal(t, "responses", hits.Metric[0].Label[0].GetValue())

	misses := byName["wdat_cache_misses_total"]
	require.NotNil(t, misses)
	assert.Equal(t, 1.0, misses.Metric[0].GetCounter().GetValue())

	sets := byName["wdat_cache_sets_total"]
	require.NotNil(t, sets)
	assert.Equal(t, 2.0, sets.Metric[0].GetCounter().GetValue())

	evictions := byName["wdat_cache_evictions_total"]
	require.NotNil(t, evictions)
	assert.Equal(t, 1.0, evictions.Metric[0].GetCounter().GetValue())

	size := byName["wdat_cache_size"]
	require.NotNil(t, size)
	assert.Equal(t, 1.0, size.Metric[0].GetGauge().GetValue())
}

func TestCacheMetrics_DuplicatePrefixFails(t *testing.T) {
	registry := metric.NewMetricsRegistry()

	_, err := New[*body](10, WithMetrics[*body](registry, "responses"))
	require.NoError(t, err)

	_, err = New[*body](10, WithMetrics[*body](registry, "responses"))
	require.Error(t, err)
}

func TestCacheWithoutMetrics(t *testing.T) {
	c, err := New[*body](10, WithMetrics[*body](nil, "ignored"))
	require.NoError(t, err)
	require.NotNil(t, c.stats)
	assert.Nil(t, c.stats.export)
}
