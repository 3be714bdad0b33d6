package natsgw

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/natsclient"
	"github.com/c360/semql/pkg/cache"
	"github.com/c360/semql/rdf"
	"github.com/c360/semql/vocabulary"
)

// QueueGroup is the queue group responders join, so that several responders on
// one prefix share the load.
const QueueGroup = "semql-agora"

// Evaluated fragments are kept for the pages that follow the first one.
const (
	maxPagingSessions = 256
	pagingTTL         = time.Minute
)

// Responder serves a gateway and a catalog on a subject prefix.
type Responder struct {
	conn     Replier
	gateway  agora.Gateway
	catalog  fountain.Catalog
	prefix   string
	maxLimit int
	pages    cache.Cache[[]rdf.Quad]
	logger   *slog.Logger
}

// ResponderOption configures a Responder.
type ResponderOption func(*Responder)

// WithResponderPrefix sets the subject prefix.
func WithResponderPrefix(prefix string) ResponderOption {
	return func(r *Responder) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithResponderLogger sets the logger.
func WithResponderLogger(logger *slog.Logger) ResponderOption {
	return func(r *Responder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxPageSize caps the page size a client may request.
func WithMaxPageSize(n int) ResponderOption {
	return func(r *Responder) {
		if n > 0 {
			r.maxLimit = n
		}
	}
}

// NewResponder creates a responder. Either collaborator may be nil, in which
// case its subjects are not served.
func NewResponder(conn Replier, gateway agora.Gateway, catalog fountain.Catalog, opts ...ResponderOption) *Responder {
	r := &Responder{
		conn:     conn,
		gateway:  gateway,
		catalog:  catalog,
		prefix:   DefaultPrefix,
		maxLimit: 10 * DefaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "natsgw-responder", "prefix", r.prefix)
	if pages, err := cache.NewLRU[[]rdf.Quad](maxPagingSessions, pagingTTL); err == nil {
		r.pages = pages
	}
	return r
}

// Start registers every handler. Handlers run until the connection closes or
// ctx is cancelled.
func (r *Responder) Start(ctx context.Context) error {
	handlers := map[string]natsclient.Handler{}
	if r.gateway != nil {
		handlers[subjectPlan] = handle(r.plan)
		handlers[subjectDiscover] = handle(r.discover)
		handlers[subjectData] = handle(r.data)
		handlers[subjectFragment] = handle(r.fragment)
		handlers[subjectLoad] = handle(r.load)
	}
	if r.catalog != nil {
		handlers[subjectTypes] = handle(r.types)
		handlers[subjectType] = handle(r.typ)
		handlers[subjectProperty] = handle(r.property)
		handlers[subjectPrefixes] = handle(r.prefixes)
	}
	if len(handlers) == 0 {
		return errors.WrapFatal(errors.ErrMissingConfig, "Responder", "Start", "nothing to serve")
	}

	for suffix, h := range handlers {
		if err := r.conn.Reply(ctx, subject(r.prefix, suffix), QueueGroup, r.logged(suffix, h)); err != nil {
			return errors.Wrap(err, "Responder", "Start", "register "+suffix)
		}
	}
	r.logger.Info("Agora responder started", "subjects", len(handlers))
	return nil
}

func (r *Responder) logged(suffix string, h natsclient.Handler) natsclient.Handler {
	return func(ctx context.Context, data []byte) ([]byte, error) {
		out, err := h(ctx, data)
		if err != nil {
			r.logger.Debug("Request failed", "subject", suffix, "error", err)
		}
		return out, err
	}
}

// handle adapts a typed handler to the byte-level protocol.
func handle[In, Out any](fn func(context.Context, In) (Out, error)) natsclient.Handler {
	return func(ctx context.Context, data []byte) ([]byte, error) {
		var in In
		if len(data) > 0 {
			if err := json.Unmarshal(data, &in); err != nil {
				return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "Responder", "handle", "decode request")
			}
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}
}

func (r *Responder) plan(ctx context.Context, req agora.PlanRequest) (agora.FragmentRequest, error) {
	return r.gateway.Plan(ctx, req)
}

func (r *Responder) discover(ctx context.Context, msg discoverMsg) (agora.Ecosystem, error) {
	return r.gateway.Discover(ctx, msg.Type, msg.Options)
}

func (r *Responder) data(ctx context.Context, msg dataMsg) (struct{}, error) {
	_, err := r.gateway.Data(ctx, msg.Request, msg.Options)
	return struct{}{}, err
}

func (r *Responder) fragment(ctx context.Context, msg fragmentMsg) (fragmentReply, error) {
	limit := msg.Limit
	if limit <= 0 || limit > r.maxLimit {
		limit = r.maxLimit
	}

	if msg.Cursor != "" && r.pages != nil {
		if quads, ok := r.pages.Get(msg.Cursor); ok {
			return r.page(msg.Cursor, quads, msg.Offset, limit), nil
		}
		// Expired, or the page was routed to another queue member.
		r.logger.Debug("Paging cursor unknown, evaluating fragment again", "cursor", msg.Cursor)
	}

	dg, err := r.gateway.Data(ctx, msg.Request, agora.DataOptions{Serverless: true})
	if err != nil {
		return fragmentReply{}, err
	}
	var quads []rdf.Quad
	for q, err := range dg.Fragment(ctx, msg.Params) {
		if err != nil {
			return fragmentReply{}, err
		}
		quads = append(quads, q)
	}

	cursor := ""
	if len(quads)-msg.Offset > limit && r.pages != nil {
		cursor = uuid.NewString()
		if _, err := r.pages.Set(cursor, quads); err != nil {
			cursor = ""
		}
	}
	return r.page(cursor, quads, msg.Offset, limit), nil
}

// page cuts quads[offset:offset+limit]. The cursor is dropped with the last
// page.
func (r *Responder) page(cursor string, quads []rdf.Quad, offset, limit int) fragmentReply {
	offset = min(max(offset, 0), len(quads))
	end := min(offset+limit, len(quads))
	out := fragmentReply{Quads: quads[offset:end], More: end < len(quads)}
	if out.More {
		out.Cursor = cursor
	} else if cursor != "" {
		_, _ = r.pages.Delete(cursor)
	}
	return out
}

func (r *Responder) load(ctx context.Context, msg loadMsg) (loadReply, error) {
	dg, err := r.gateway.Data(ctx, msg.Request, agora.DataOptions{Serverless: true})
	if err != nil {
		return loadReply{}, err
	}
	loader := dg.Loader()
	if loader == nil {
		return loadReply{}, errors.WrapInvalid(errors.ErrNoLoader, "Responder", "load", "resolve loader")
	}
	g, meta, err := loader.Load(ctx, msg.ID)
	if err != nil {
		return loadReply{}, err
	}
	return loadReply{Graph: g, Metadata: meta}, nil
}

func (r *Responder) types(ctx context.Context, _ struct{}) ([]string, error) {
	return r.catalog.Types(ctx)
}

func (r *Responder) typ(ctx context.Context, msg idMsg) (fountain.Type, error) {
	return r.catalog.Type(ctx, msg.ID)
}

func (r *Responder) property(ctx context.Context, msg idMsg) (fountain.Property, error) {
	return r.catalog.Property(ctx, msg.ID)
}

func (r *Responder) prefixes(ctx context.Context, _ struct{}) (vocabulary.Prefixes, error) {
	return r.catalog.Prefixes(ctx)
}
