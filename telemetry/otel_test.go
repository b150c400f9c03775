package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	provider, shutdown, err := New(context.Background(), "http://127.0.0.1:4318", "token", "kvcache-test")
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.NotNil(t, provider.Tracer("test"))
	shutdown()
}

func TestNewInvalidURL(t *testing.T) {
	_, _, err := New(context.Background(), "://nope", "", "kvcache-test")
	assert.Error(t, err)

	_, _, err = New(context.Background(), "ftp://collector", "", "kvcache-test")
	assert.Error(t, err)
}
