package instrumentation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew_Defaults(t *testing.T) {
	inst, err := New(Config{})
	require.NoError(t, err)
	defer func() { _ = inst.Shutdown(context.Background()) }()

	assert.Equal(t, DefaultServiceName, inst.config.ServiceName)
	assert.Equal(t, DefaultServiceVersion, inst.config.ServiceVersion)
	assert.NotNil(t, inst.Metrics())
	assert.NotNil(t, inst.Resource())
	assert.NotNil(t, inst.Meter("server"))
	assert.NotNil(t, inst.Tracer("server"))
}

func TestNew_DisabledIgnoresProviders(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	inst, err := New(Config{Enabled: false, MeterProvider: mp})
	require.NoError(t, err)

	inst.Metrics().RecordCodeIssued(context.Background())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Empty(t, rm.ScopeMetrics)
}

func TestShutdown_Idempotent(t *testing.T) {
	inst, err := New(Config{Enabled: true})
	require.NoError(t, err)

	calls := 0
	inst.shutdownFuncs = append(inst.shutdownFuncs, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, inst.Shutdown(context.Background()))
	require.NoError(t, inst.Shutdown(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestTracer_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	inst, err := New(Config{Enabled: true, TracerProvider: tp})
	require.NoError(t, err)

	_, span := inst.Tracer("server").Start(context.Background(), "oauth.token")
	AddOAuthFlowAttributes(span, "client-1", "", "read")
	AddOutcomeAttributes(span, 400, "invalid_grant")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "oauth.token", ended[0].Name())
	assert.Equal(t, "github.com/giantswarm/oauth2-engine/server", ended[0].InstrumentationScope().Name)

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "client-1", attrs[AttrClientID])
	assert.Equal(t, "read", attrs[AttrScope])
	assert.Equal(t, "invalid_grant", attrs[AttrError])
	assert.Equal(t, "400", attrs[AttrStatusCode])
	_, hasUser := attrs[AttrUserID]
	assert.False(t, hasUser)
}

func TestRegisterStorageSizeCallbacks(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	inst, err := New(Config{Enabled: true, MeterProvider: mp})
	require.NoError(t, err)

	err = inst.RegisterStorageSizeCallbacks(
		func() int64 { return 3 },
		func() int64 { return 2 },
		nil,
		func() int64 { return 1 },
	)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := gaugeValues(rm)
	assert.Equal(t, int64(3), values["storage.access_tokens.count"])
	assert.Equal(t, int64(2), values["storage.refresh_tokens.count"])
	assert.Equal(t, int64(1), values["storage.clients.count"])
	_, hasCodes := values["storage.authorization_codes.count"]
	assert.False(t, hasCodes)
}

func gaugeValues(rm metricdata.ResourceMetrics) map[string]int64 {
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
				out[m.Name] = g.DataPoints[0].Value
			}
		}
	}
	return out
}
