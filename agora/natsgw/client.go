package natsgw

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/rdf"
	"github.com/c360/semql/vocabulary"
)

// Client is a remote agora.Gateway and fountain.Catalog.
type Client struct {
	conn     Requester
	prefix   string
	pageSize int
	logger   *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) ClientOption {
	return func(c *Client) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithPageSize sets the number of quads requested per fragment page.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client sending requests through conn, typically a
// connected *natsclient.Client.
func NewClient(conn Requester, opts ...ClientOption) *Client {
	c := &Client{
		conn:     conn,
		prefix:   DefaultPrefix,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "natsgw-client", "prefix", c.prefix)
	return c
}

func (c *Client) call(ctx context.Context, method, suffix string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return errors.WrapInvalid(err, "natsgw", method, "encode request")
	}
	reply, err := c.conn.Request(ctx, subject(c.prefix, suffix), data)
	if err != nil {
		return fromRemote(err, method)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return errors.WrapInvalid(err, "natsgw", method, "decode reply")
	}
	return nil
}

// Plan implements agora.Planner.
func (c *Client) Plan(ctx context.Context, req agora.PlanRequest) (agora.FragmentRequest, error) {
	var out agora.FragmentRequest
	err := c.call(ctx, "Plan", subjectPlan, req, &out)
	return out, err
}

// Discover implements agora.Discoverer.
func (c *Client) Discover(ctx context.Context, typeIRI string, opts agora.DiscoverOptions) (agora.Ecosystem, error) {
	var out agora.Ecosystem
	err := c.call(ctx, "Discover", subjectDiscover, discoverMsg{Type: typeIRI, Options: opts}, &out)
	return out, err
}

// Data asks the responder to accept req, then returns a handle that pages
// fragments and loads entities remotely.
func (c *Client) Data(ctx context.Context, req agora.FragmentRequest, opts agora.DataOptions) (agora.DataGateway, error) {
	if err := c.call(ctx, "Data", subjectData, dataMsg{Request: req, Options: opts}, nil); err != nil {
		return nil, err
	}
	return &remoteData{client: c, req: req}, nil
}

// Types implements fountain.Catalog.
func (c *Client) Types(ctx context.Context) ([]string, error) {
	var out []string
	err := c.call(ctx, "Types", subjectTypes, struct{}{}, &out)
	return out, err
}

// Type implements fountain.Catalog.
func (c *Client) Type(ctx context.Context, id string) (fountain.Type, error) {
	var out fountain.Type
	err := c.call(ctx, "Type", subjectType, idMsg{ID: id}, &out)
	return out, err
}

// Property implements fountain.Catalog.
func (c *Client) Property(ctx context.Context, id string) (fountain.Property, error) {
	var out fountain.Property
	err := c.call(ctx, "Property", subjectProperty, idMsg{ID: id}, &out)
	return out, err
}

// Prefixes implements fountain.Catalog.
func (c *Client) Prefixes(ctx context.Context) (vocabulary.Prefixes, error) {
	var out vocabulary.Prefixes
	err := c.call(ctx, "Prefixes", subjectPrefixes, struct{}{}, &out)
	return out, err
}

type remoteData struct {
	client *Client
	req    agora.FragmentRequest
}

func (d *remoteData) Fragment(ctx context.Context, params map[string]any) iter.Seq2[rdf.Quad, error] {
	return func(yield func(rdf.Quad, error) bool) {
		offset, cursor := 0, ""
		for {
			var page fragmentReply
			msg := fragmentMsg{Request: d.req, Params: params, Offset: offset, Limit: d.client.pageSize, Cursor: cursor}
			if err := d.client.call(ctx, "Fragment", subjectFragment, msg, &page); err != nil {
				yield(rdf.Quad{}, err)
				return
			}
			for _, q := range page.Quads {
				if !yield(q, nil) {
					return
				}
			}
			if !page.More || len(page.Quads) == 0 {
				return
			}
			offset += len(page.Quads)
			cursor = page.Cursor
		}
	}
}

func (d *remoteData) Loader() agora.Loader {
	return agora.LoaderFunc(func(ctx context.Context, id string) (*rdf.Graph, agora.Metadata, error) {
		var out loadReply
		if err := d.client.call(ctx, "Load", subjectLoad, loadMsg{Request: d.req, ID: id}, &out); err != nil {
			return nil, nil, err
		}
		if out.Graph == nil {
			out.Graph = rdf.NewGraph()
		}
		return out.Graph, out.Metadata, nil
	})
}

var (
	_ agora.Gateway    = (*Client)(nil)
	_ fountain.Catalog = (*Client)(nil)
)
