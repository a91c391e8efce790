package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/G-Node/wdat2-sub001/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1000, cfg.Capacity)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	err := Config{Capacity: 0}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	assert.Error(t, Config{Capacity: -3}.Validate())
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig[*body](Config{Capacity: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, c.Capacity())

	_, err = NewFromConfig[*body](Config{})
	require.Error(t, err)
}
