// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the mcp-auth library.
//
// This package enables observability across all library layers through:
// - Metrics: Counters, histograms, and gauges for monitoring authorization operations
// - Traces: Distributed tracing for request flows across components
//
// # Quick Start
//
// Enable basic instrumentation:
//
//	import "github.com/giantswarm/mcp-auth/instrumentation"
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-auth-service",
//		ServiceVersion: "1.0.0",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
// # Available Metrics
//
// HTTP Layer:
//   - auth.http.requests.total{method, endpoint, status} - Total HTTP requests
//   - auth.http.request.duration{endpoint} - Request duration in milliseconds
//
// Authorization Flows:
//   - auth.client.registered - Clients registered
//   - auth.code.issued{client_id} - Authorization codes issued
//   - auth.code.exchanged{client_id} - Authorization codes exchanged for tokens
//   - auth.token.issued{client_id} - Access tokens issued
//   - auth.token.validated{valid} - Bearer token validations
//
// Security:
//   - auth.rate_limit.exceeded{limiter_type} - Rate limit violations
//   - auth.tool_call.denied{tool} - Tool invocations rejected by the gate
//
// Storage:
//   - storage.operation.total{operation, result} - Storage operations
//   - storage.operation.duration{operation} - Operation duration in milliseconds
//   - storage.clients.count / storage.codes.count / storage.tokens.count - Current sizes
//
// # Performance
//
// When instrumentation is disabled, no-op providers are used and recording has
// effectively zero overhead.
//
// # Security Considerations
//
// Never record actual token values, authorization codes, or client secrets as
// metric attributes or span attributes. Only metadata (token types, expiry
// times, validation results) belongs in observability data.
package instrumentation
