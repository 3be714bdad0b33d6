// Package semql answers GraphQL queries over linked data gateways.
//
// A query is resolved field by field. Each field is bound to a catalog
// property, and the entities it returns are fetched from agora gateways that
// expose fragments of a larger graph. The schema is either written by hand or
// synthesized from the catalog.
//
// # Architecture
//
// Requests flow through four layers:
//
//	gateway/graphql   HTTP transport: routing, error codes, health, metrics
//	processor         parse, validate, depth limit, execute
//	resolver          field middleware: gateway planning, entity cache, pick
//	agora             gateways and loaders: memory, NATS, HTTP, fragment cache
//
// The vocabulary, rdf and fountain packages hold the shared model: prefixed
// names, terms and graphs, and the type catalog. The schema package builds an
// executable schema from SDL and synthesizes SDL from a catalog. The match
// package holds the name matching used when a field is bound to a property.
//
// # Backends
//
// With the memory backend a catalog file and a dataset file are indexed in
// process. With the nats backend both the catalog and the gateway live behind
// a subject prefix and are reached through request/reply. A memory instance
// started with nats.serve answers those requests for other instances.
//
// # Infrastructure
//
// The errors package classifies failures as transient, invalid or fatal and
// the classes survive the NATS hop. Logging uses log/slog, metrics use
// Prometheus through metric.MetricsRegistry, and traces use OpenTelemetry.
// Configuration is layered YAML or JSON with SEMQL_ environment overrides.
//
// See cmd/semql for the command line and config for every setting.
package semql
