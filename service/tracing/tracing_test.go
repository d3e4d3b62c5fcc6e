package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitWithoutEndpoint(t *testing.T) {
	tp, err := Init(context.Background(), "")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "job")
	defer span.End()

	assert.True(t, span.SpanContext().IsValid(), "spans get real ids once the provider is installed")
}
