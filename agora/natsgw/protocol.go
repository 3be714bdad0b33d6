// Package natsgw carries the agora gateway and the ontology catalog over NATS
// request/reply. Responder exposes a local gateway and catalog on a subject
// prefix; Client implements agora.Gateway and fountain.Catalog against it.
//
// Messages are JSON. Fragments are paged so a large fragment never exceeds the
// server's payload limit: the client asks for successive pages until the
// responder reports no more quads.
package natsgw

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/natsclient"
	"github.com/c360/semql/rdf"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "semql.agora"

// DefaultPageSize is the number of quads per fragment page.
const DefaultPageSize = 1000

// Subject suffixes.
const (
	subjectPlan     = "plan"
	subjectDiscover = "discover"
	subjectData     = "data"
	subjectFragment = "fragment"
	subjectLoad     = "load"
	subjectTypes    = "catalog.types"
	subjectType     = "catalog.type"
	subjectProperty = "catalog.property"
	subjectPrefixes = "catalog.prefixes"
)

// Requester sends one request and waits for its reply.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// Replier registers a request handler on a subject.
type Replier interface {
	Reply(ctx context.Context, subject, queue string, handler natsclient.Handler) error
}

func subject(prefix, suffix string) string {
	return prefix + "." + suffix
}

type discoverMsg struct {
	Type    string                `json:"type"`
	Options agora.DiscoverOptions `json:"options"`
}

type dataMsg struct {
	Request agora.FragmentRequest `json:"request"`
	Options agora.DataOptions     `json:"options"`
}

// fragmentMsg asks for one page. Cursor is empty on the first page and then
// echoes the cursor of the previous reply.
type fragmentMsg struct {
	Request agora.FragmentRequest `json:"request"`
	Params  map[string]any        `json:"params,omitempty"`
	Offset  int                   `json:"offset"`
	Limit   int                   `json:"limit"`
	Cursor  string                `json:"cursor,omitempty"`
}

type fragmentReply struct {
	Quads  []rdf.Quad `json:"quads"`
	More   bool       `json:"more"`
	Cursor string     `json:"cursor,omitempty"`
}

type loadMsg struct {
	Request agora.FragmentRequest `json:"request"`
	ID      string                `json:"id"`
}

type loadReply struct {
	Graph    *rdf.Graph     `json:"graph"`
	Metadata agora.Metadata `json:"metadata,omitempty"`
}

type idMsg struct {
	ID string `json:"id"`
}

// sentinels survive the trip through a responder by their message text.
var sentinels = []error{
	errors.ErrPlanningFailed,
	errors.ErrUnknownType,
	errors.ErrEntityNotFound,
	errors.ErrUnsupportedSchema,
	errors.ErrNoLoader,
	errors.ErrInvalidData,
	errors.ErrRateLimited,
}

// fromRemote restores the class and, when recognizable, the sentinel of an
// error raised by the responder. Transport errors are transient.
func fromRemote(err error, method string) error {
	var remote *natsclient.RemoteError
	if !errors.As(err, &remote) {
		return errors.WrapTransient(err, "natsgw", method, "request")
	}

	cause := error(remote)
	for _, s := range sentinels {
		if strings.Contains(remote.Message, s.Error()) {
			cause = fmt.Errorf("%w: %w", s, remote)
			break
		}
	}

	switch remote.Class {
	case errors.ErrorInvalid.String():
		return errors.WrapInvalid(cause, "natsgw", method, "remote call")
	case errors.ErrorFatal.String():
		return errors.WrapFatal(cause, "natsgw", method, "remote call")
	default:
		return errors.WrapTransient(cause, "natsgw", method, "remote call")
	}
}
