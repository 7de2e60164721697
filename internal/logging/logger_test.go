package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	log, err := NewLogger(Config{Level: DEBUG})
	require.NoError(t, err)
	assert.True(t, log.IsDebugEnabled())

	log, err = NewLogger(Config{Level: ERROR})
	require.NoError(t, err)
	assert.False(t, log.IsDebugEnabled())
}

func TestWithComponent_KeepsDebugMode(t *testing.T) {
	log, err := NewLogger(Config{Level: DEBUG})
	require.NoError(t, err)

	child := log.WithComponent("scan")
	require.NotNil(t, child)
	assert.True(t, child.IsDebugEnabled())
}
