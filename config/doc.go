// Package config loads the service configuration.
//
// A Loader starts from Default, merges each YAML or JSON layer in order and
// then applies SEMQL_* environment variables. Layers only override the keys
// they set, so a layer may tune one nested value and keep every other default.
// Duration fields accept Go duration strings plus a day suffix ("14d").
//
//	loader := config.NewLoader()
//	loader.AddLayer("semql.yaml")
//	loader.AddLayer("semql.prod.yaml")
//	cfg, err := loader.Load()
//
// A complete layer:
//
//	backend: memory            # or nats
//	catalog:
//	  file: catalog.yaml
//	  cache: {enabled: true, max_size: 10000}
//	dataset:
//	  file: people.yaml
//	nats:
//	  url: nats://localhost:4222
//	  prefix: semql.agora
//	  serve: false             # answer gateway requests with the local backend
//	  reply_workers: 8         # served requests handled concurrently
//	  reply_queue: 256
//	  handler_timeout: 10s
//	  ping_interval: 30s
//	  drain_timeout: 5s
//	  tls: {enabled: false, ca_files: [ca.pem], cert_file: "", key_file: ""}
//	loader:
//	  enabled: true            # dereference entity IRIs over HTTP
//	  timeout: 10s
//	  rate_limit: 50
//	fragment_cache: {enabled: true, max_size: 50000, ttl: 10m}
//	resolver: {max_concurrency: 16, eager_roots: false, share_gateways: false}
//	schema: {file: "", identity_field: false}
//	server:
//	  bind_address: ":8080"
//	  path: /graphql
//	  timeout: 30s
//	  tls: {enabled: false, cert_file: server.pem, key_file: server-key.pem, client_ca_files: []}
//	log: {level: info, format: text}
//	tracing: {enabled: false, exporter: stdout}
//
// Environment overrides: SEMQL_BACKEND, SEMQL_CATALOG_FILE,
// SEMQL_DATASET_FILE, SEMQL_SCHEMA_FILE, SEMQL_SERVER_BIND_ADDRESS,
// SEMQL_NATS_URL, SEMQL_NATS_PREFIX, SEMQL_NATS_USERNAME, SEMQL_NATS_PASSWORD,
// SEMQL_NATS_TOKEN, SEMQL_NATS_SERVE, SEMQL_LOADER_ENABLED, SEMQL_LOG_LEVEL,
// SEMQL_LOG_FORMAT and SEMQL_TRACING_ENABLED.
package config
