package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ResultSuccess is the result attribute value for successful operations.
// Failed engine operations use their OAuth error code as the result.
const ResultSuccess = "success"

// Metrics holds all metric instruments for the engine
type Metrics struct {
	// Flow metrics
	TokenRequests         metric.Int64Counter
	TokensIssued          metric.Int64Counter
	AuthorizeRequests     metric.Int64Counter
	CodesIssued           metric.Int64Counter
	ResourceVerifications metric.Int64Counter

	// Security metrics
	RateLimitExceeded metric.Int64Counter

	// Storage metrics
	StorageOperationTotal     metric.Int64Counter
	StorageOperationDuration  metric.Float64Histogram
	StorageAccessTokens       metric.Int64ObservableGauge
	StorageRefreshTokens      metric.Int64ObservableGauge
	StorageAuthorizationCodes metric.Int64ObservableGauge
	StorageClients            metric.Int64ObservableGauge
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	serverMeter := inst.Meter("server")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")

	m := &Metrics{}
	var err error

	if m.TokenRequests, err = serverMeter.Int64Counter(
		"oauth.token.requests",
		metric.WithDescription("Number of token endpoint requests by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token.requests counter: %w", err)
	}

	if m.TokensIssued, err = serverMeter.Int64Counter(
		"oauth.token.issued",
		metric.WithDescription("Number of access tokens issued"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token.issued counter: %w", err)
	}

	if m.AuthorizeRequests, err = serverMeter.Int64Counter(
		"oauth.authorize.requests",
		metric.WithDescription("Number of authorize endpoint decisions by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create authorize.requests counter: %w", err)
	}

	if m.CodesIssued, err = serverMeter.Int64Counter(
		"oauth.code.issued",
		metric.WithDescription("Number of authorization codes issued"),
		metric.WithUnit("{code}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create code.issued counter: %w", err)
	}

	if m.ResourceVerifications, err = serverMeter.Int64Counter(
		"oauth.resource.verifications",
		metric.WithDescription("Number of bearer token verifications by outcome"),
		metric.WithUnit("{verification}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create resource.verifications counter: %w", err)
	}

	if m.RateLimitExceeded, err = securityMeter.Int64Counter(
		"oauth.rate_limit.exceeded",
		metric.WithDescription("Number of rate limit violations"),
		metric.WithUnit("{violation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.exceeded counter: %w", err)
	}

	if m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"storage.operation.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.total counter: %w", err)
	}

	if m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	if m.StorageAccessTokens, err = storageMeter.Int64ObservableGauge(
		"storage.access_tokens.count",
		metric.WithDescription("Number of stored access tokens"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storage.access_tokens.count gauge: %w", err)
	}

	if m.StorageRefreshTokens, err = storageMeter.Int64ObservableGauge(
		"storage.refresh_tokens.count",
		metric.WithDescription("Number of stored refresh tokens"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storage.refresh_tokens.count gauge: %w", err)
	}

	if m.StorageAuthorizationCodes, err = storageMeter.Int64ObservableGauge(
		"storage.authorization_codes.count",
		metric.WithDescription("Number of stored authorization codes"),
		metric.WithUnit("{code}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storage.authorization_codes.count gauge: %w", err)
	}

	if m.StorageClients, err = storageMeter.Int64ObservableGauge(
		"storage.clients.count",
		metric.WithDescription("Number of registered clients"),
		metric.WithUnit("{client}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create storage.clients.count gauge: %w", err)
	}

	return m, nil
}

// RecordTokenRequest records the outcome of a token endpoint request
func (m *Metrics) RecordTokenRequest(ctx context.Context, grantType, result string) {
	m.TokenRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant_type", grantType),
		attribute.String("result", result),
	))
}

// RecordTokenIssued records a minted access token
func (m *Metrics) RecordTokenIssued(ctx context.Context, grantType string, withRefresh bool) {
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String("grant_type", grantType),
		attribute.Bool("refresh", withRefresh),
	))
}

// RecordAuthorizeRequest records the outcome of an authorize decision
func (m *Metrics) RecordAuthorizeRequest(ctx context.Context, responseType, result string) {
	m.AuthorizeRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("response_type", responseType),
		attribute.String("result", result),
	))
}

// RecordCodeIssued records a minted authorization code
func (m *Metrics) RecordCodeIssued(ctx context.Context) {
	m.CodesIssued.Add(ctx, 1)
}

// RecordResourceVerification records the outcome of a bearer verification
func (m *Metrics) RecordResourceVerification(ctx context.Context, result string) {
	m.ResourceVerifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}
