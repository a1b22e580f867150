package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvFloat(t *testing.T) {
	t.Setenv("LLM_TEMPERATURE", "")
	_, ok := envFloat("LLM_TEMPERATURE")
	require.False(t, ok)

	t.Setenv("LLM_TEMPERATURE", "0.2")
	v, ok := envFloat("LLM_TEMPERATURE")
	require.True(t, ok)
	require.Equal(t, 0.2, v)

	t.Setenv("LLM_TEMPERATURE", "warm")
	_, ok = envFloat("LLM_TEMPERATURE")
	require.False(t, ok)
}
