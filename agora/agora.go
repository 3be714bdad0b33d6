// Package agora defines the collaborators the resolver relies on but does not
// implement: the planner that turns a query into a fragment request, the data
// gateway that evaluates it, the loader that dereferences one entity, and the
// discovery service that lists the access descriptions of a type.
//
// Implementations live in subpackages: memory (an in-process dataset), natsgw
// (a gateway reached over NATS request/reply), httploader (dereferencing over
// HTTP) and fragcache (a fragment cache around any Loader).
package agora

import (
	"context"
	"iter"

	"github.com/c360/semql/rdf"
)

// PlanRequest asks for the fragment request of one root field of a query.
type PlanRequest struct {
	// Query is the full query document text.
	Query string `json:"query"`
	// Field is the response key (alias or name) of the root field.
	Field string `json:"field"`
	// Type is the catalog type the field returns, when the caller knows it.
	Type string `json:"type,omitempty"`
	// RootMode restricts the request to the root entity bindings.
	RootMode bool `json:"root_mode"`
}

// Constraint binds a query parameter to a predicate of the root entities.
type Constraint struct {
	Param     string `json:"param"`
	Predicate string `json:"predicate"`
}

// FragmentRequest is the planner's description of the graph fragment that
// satisfies a root field.
type FragmentRequest struct {
	// Types are the full IRIs an entity must be typed with (any of them).
	Types       []string     `json:"types"`
	Constraints []Constraint `json:"constraints,omitempty"`
	RootMode    bool         `json:"root_mode"`
}

// DataOptions configures a data gateway.
type DataOptions struct {
	// Serverless evaluates the fragment within the calling process instead of
	// registering a long-lived fragment server.
	Serverless bool `json:"serverless"`
}

// DiscoverOptions configures discovery.
type DiscoverOptions struct {
	// Strict limits results to descriptions of exactly the requested type.
	Strict bool `json:"strict"`
	// Lazy allows the ecosystem to be resolved on demand.
	Lazy bool `json:"lazy"`
}

// DescriptionKind tells access descriptions apart.
type DescriptionKind string

const (
	// KindTD is a thing description: a parameterised access template.
	KindTD DescriptionKind = "td"
	// KindResource is a plain seed resource.
	KindResource DescriptionKind = "resource"
)

// Reserved template variables that name the current item and its parent.
const (
	VarItem   = "$item"
	VarParent = "$parent"
)

// Description is one access description of an ecosystem.
type Description struct {
	ID   string          `json:"id" yaml:"id"`
	Kind DescriptionKind `json:"kind" yaml:"kind"`
	// Type is the catalog type the description yields.
	Type string `json:"type" yaml:"type"`
	// Vars are the declared template variables, "$"-prefixed.
	Vars []string `json:"vars" yaml:"vars"`
}

// Ecosystem is the result of a discovery.
type Ecosystem struct {
	Roots []Description `json:"roots"`
}

// Metadata describes a loaded fragment (content type, cache headers).
type Metadata map[string]string

// Loader dereferences one entity into its graph fragment.
type Loader interface {
	Load(ctx context.Context, id string) (*rdf.Graph, Metadata, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, id string) (*rdf.Graph, Metadata, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, id string) (*rdf.Graph, Metadata, error) {
	return f(ctx, id)
}

// Planner translates a query into a fragment request.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (FragmentRequest, error)
}

// DescriptionContext names the graph of root-mode quads that describe root
// entities which cannot be dereferenced later. Their subjects are not roots.
const DescriptionContext = "urn:semql:description"

// DataGateway evaluates one fragment request.
type DataGateway interface {
	// Fragment streams the quads of the fragment for the given parameters.
	// The sequence is single-pass. Evaluating the same request and
	// parameters again yields the quads in the same order, which lets a
	// remote caller page through it by offset.
	//
	// In root mode every root is the subject of a quad outside
	// DescriptionContext. A blank-node root also has its description, blank
	// nodes reachable from it included, in DescriptionContext.
	Fragment(ctx context.Context, params map[string]any) iter.Seq2[rdf.Quad, error]

	// Loader returns the gateway's entity dereferencing function.
	Loader() Loader
}

// Discoverer lists the access descriptions of a type.
type Discoverer interface {
	Discover(ctx context.Context, typeIRI string, opts DiscoverOptions) (Ecosystem, error)
}

// Gateway is the external runtime the resolver plans and fetches through.
type Gateway interface {
	Planner
	Discoverer

	// Data returns a gateway handle for req.
	Data(ctx context.Context, req FragmentRequest, opts DataOptions) (DataGateway, error)
}
