package resolver

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/c360/semql/resolver"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Execution is the state shared by every field resolution of one query
// execution. It is built before execution starts and not replaced afterwards.
type Execution struct {
	// ID identifies the execution in logs and traces.
	ID string
	// Query is the query document text handed to the planner.
	Query string
	// Introspection marks schema queries, which bypass the middleware.
	Introspection bool
	// Entities is the execution's entity cache.
	Entities *EntityCache
	// Gateways, when set, coalesces gateway handles of identical root queries.
	// It may be shared between executions.
	Gateways *GatewayCache
}

type executionKey struct{}

// WithExecution returns a context carrying exec.
func WithExecution(ctx context.Context, exec *Execution) context.Context {
	return context.WithValue(ctx, executionKey{}, exec)
}

// ExecutionFrom returns the execution carried by ctx, or nil.
func ExecutionFrom(ctx context.Context) *Execution {
	exec, _ := ctx.Value(executionKey{}).(*Execution)
	return exec
}

func newExecutionID() string {
	return uuid.NewString()
}
