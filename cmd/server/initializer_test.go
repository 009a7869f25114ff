package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeServerDefaultsToMemoryBackend(t *testing.T) {
	components, err := InitializeServer()
	require.NoError(t, err)
	defer components.Cleanup()

	assert.NotNil(t, components.Config)
	assert.NotNil(t, components.Memory)
}

func TestInitializeServerUsesSQLiteWhenPathSet(t *testing.T) {
	t.Setenv("EM_SQLITE_PATH", t.TempDir()+"/episodic.db")

	components, err := InitializeServer()
	require.NoError(t, err)
	defer components.Cleanup()

	assert.NotNil(t, components.Memory)
}

func TestInitializeServerCleanupIsIdempotent(t *testing.T) {
	components, err := InitializeServer()
	require.NoError(t, err)

	require.NoError(t, components.Cleanup())
	require.NoError(t, components.Cleanup())
}

func TestServerComponentsCleanupWithNilMemory(t *testing.T) {
	components := &ServerComponents{}
	assert.NoError(t, components.Cleanup())
}
