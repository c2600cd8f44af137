package instrumentation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestInstrumentation(t *testing.T) (*Instrumentation, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	inst, err := New(Config{Enabled: true, MeterProvider: mp})
	require.NoError(t, err)
	return inst, reader
}

// sumFor returns the sum of all data points of the named counter whose
// attributes include every given key/value pair.
func sumFor(t *testing.T, reader *sdkmetric.ManualReader, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				match := true
				for _, kv := range want {
					v, found := dp.Attributes.Value(kv.Key)
					if !found || v.Emit() != kv.Value.Emit() {
						match = false
						break
					}
				}
				if match {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestMetrics_TokenFlow(t *testing.T) {
	inst, reader := newTestInstrumentation(t)
	ctx := context.Background()
	m := inst.Metrics()

	m.RecordTokenRequest(ctx, "client_credentials", ResultSuccess)
	m.RecordTokenRequest(ctx, "client_credentials", ResultSuccess)
	m.RecordTokenRequest(ctx, "authorization_code", "invalid_grant")
	m.RecordTokenIssued(ctx, "client_credentials", false)

	assert.Equal(t, int64(2), sumFor(t, reader, "oauth.token.requests",
		attribute.String("grant_type", "client_credentials"),
		attribute.String("result", ResultSuccess)))
	assert.Equal(t, int64(1), sumFor(t, reader, "oauth.token.requests",
		attribute.String("result", "invalid_grant")))
	assert.Equal(t, int64(1), sumFor(t, reader, "oauth.token.issued",
		attribute.Bool("refresh", false)))
}

func TestMetrics_AuthorizeAndResource(t *testing.T) {
	inst, reader := newTestInstrumentation(t)
	ctx := context.Background()
	m := inst.Metrics()

	m.RecordAuthorizeRequest(ctx, "code", ResultSuccess)
	m.RecordAuthorizeRequest(ctx, "token", "access_denied")
	m.RecordCodeIssued(ctx)
	m.RecordResourceVerification(ctx, "invalid_token")
	m.RecordRateLimitExceeded(ctx, "client")

	assert.Equal(t, int64(1), sumFor(t, reader, "oauth.authorize.requests",
		attribute.String("response_type", "token"),
		attribute.String("result", "access_denied")))
	assert.Equal(t, int64(1), sumFor(t, reader, "oauth.code.issued"))
	assert.Equal(t, int64(1), sumFor(t, reader, "oauth.resource.verifications",
		attribute.String("result", "invalid_token")))
	assert.Equal(t, int64(1), sumFor(t, reader, "oauth.rate_limit.exceeded",
		attribute.String("limiter_type", "client")))
}

func TestMetrics_StorageOperation(t *testing.T) {
	inst, reader := newTestInstrumentation(t)

	inst.Metrics().RecordStorageOperation(context.Background(), "consume_authorization_code", ResultSuccess, 0.4)

	assert.Equal(t, int64(1), sumFor(t, reader, "storage.operation.total",
		attribute.String("operation", "consume_authorization_code")))
}

func TestMetrics_NoopDoesNotPanic(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	require.NoError(t, err)
	ctx := context.Background()
	m := inst.Metrics()

	assert.NotPanics(t, func() {
		m.RecordTokenRequest(ctx, "password", ResultSuccess)
		m.RecordTokenIssued(ctx, "password", true)
		m.RecordAuthorizeRequest(ctx, "code", ResultSuccess)
		m.RecordCodeIssued(ctx)
		m.RecordResourceVerification(ctx, ResultSuccess)
		m.RecordRateLimitExceeded(ctx, "client")
		m.RecordStorageOperation(ctx, "get_client", ResultSuccess, 1.5)
	})
}
