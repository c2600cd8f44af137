// Package instrumentation provides OpenTelemetry instrumentation for the OAuth engine.
//
// Every engine entry point opens a span and records flow metrics; the
// in-memory store records storage operation metrics. With instrumentation
// disabled (the default) no-op providers are used and the overhead is nil.
//
// # Quick Start
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-auth-server",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//		MeterProvider:  meterProvider,  // e.g. an sdk/metric provider with a Prometheus reader
//		TracerProvider: tracerProvider, // e.g. an sdk/trace provider with an OTLP exporter
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// Exporters are owned by the host; this package only creates instruments.
//
// # Available Metrics
//
// Token endpoint:
//   - oauth.token.requests{grant_type, result} - token requests by outcome (result is "success" or the error code)
//   - oauth.token.issued{grant_type, refresh} - access tokens minted
//
// Authorize endpoint:
//   - oauth.authorize.requests{response_type, result} - authorize decisions by outcome
//   - oauth.code.issued{} - authorization codes minted
//
// Resource verification:
//   - oauth.resource.verifications{result} - bearer verifications by outcome
//
// Security:
//   - oauth.rate_limit.exceeded{limiter_type} - rate limit violations
//
// Storage:
//   - storage.operation.total{operation, result} - storage operations
//   - storage.operation.duration{operation} - storage latency in milliseconds
//   - storage.access_tokens.count, storage.refresh_tokens.count,
//     storage.authorization_codes.count, storage.clients.count - gauges
//
// # Traces
//
// Spans: oauth.token, oauth.authorize.validate, oauth.authorize.handle,
// oauth.resource.verify and storage.<operation>. Span attributes never carry
// token, code or secret values; see the Attr* constants.
package instrumentation
