// Package graphql serves a processor over HTTP.
//
// # Routes
//
//   - GET and POST on the configured path (default /graphql) run a query.
//     POST accepts a JSON body {"query", "variables", "operationName"} or a
//     raw application/graphql document.
//   - GET /schema returns the schema document.
//   - GET /health reports the aggregated component health. An unhealthy
//     component answers 503; degraded still answers 200.
//   - GET /metrics exposes Prometheus metrics when a registry is given.
//   - GET / serves the GraphQL Playground when enabled.
//
// # Errors
//
// Parse and validation failures answer 422 with the GRAPHQL_VALIDATION_FAILED
// code. Execution errors answer 200 next to the partial data, and each error
// carries a "code" extension derived from the resolver's error:
//
//	TIMEOUT, SERVICE_UNAVAILABLE, CONNECTION_CLOSED   remote gateway transport
//	DEADLINE_EXCEEDED, CANCELLED                      request context
//	INVALID_INPUT, INTERNAL_ERROR, TRANSIENT_ERROR    error class
//
// Transport and transient errors also set "retryable": true.
//
// # Configuration
//
//	server:
//	  bind_address: ":8080"
//	  path: /graphql
//	  enable_playground: true
//	  enable_cors: true
//	  timeout: 30s
//	  max_query_depth: 10
//	  tls:
//	    enabled: true
//	    cert_file: server.pem
//	    key_file: server-key.pem
//	    client_ca_files: [clients.pem]   # verify client certificates
//	    require_client_cert: true
//	    allowed_client_cns: [ops]
//
// With tls enabled the server only speaks HTTPS.
package graphql
