package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = abc ,broken, =x,tenant=ledger")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "ledger"}, headers)
}

func TestInitWithoutExporters(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)

	shutdown, err := Init(context.Background(), Config{ServiceName: "ledgerd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestResourceDescribesNode(t *testing.T) {
	res, err := Resource(Config{
		ServiceName:  "ledgerd",
		Environment:  "test",
		InstanceID:   "node-1",
		Programs:     []string{"payments", "dice", "system"},
		StateVersion: 1,
	})
	require.NoError(t, err)
	set := res.Set()

	programs, ok := set.Value(ProgramsKey)
	require.True(t, ok)
	require.Equal(t, []string{"dice", "payments", "system"}, programs.AsStringSlice())

	version, ok := set.Value(StateVersionKey)
	require.True(t, ok)
	require.Equal(t, int64(1), version.AsInt64())

	instance, ok := set.Value(semconv.ServiceInstanceIDKey)
	require.True(t, ok)
	require.Equal(t, "node-1", instance.AsString())

	generated, err := Resource(Config{ServiceName: "ledgerd"})
	require.NoError(t, err)
	id, ok := generated.Set().Value(semconv.ServiceInstanceIDKey)
	require.True(t, ok)
	require.NotEmpty(t, id.AsString())
	_, ok = generated.Set().Value(ProgramsKey)
	require.False(t, ok)
}
