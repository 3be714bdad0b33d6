// Package natsclient manages the NATS connection used by the remote agora
// gateway: connection lifecycle, a circuit breaker around connection attempts,
// and the request/reply primitives the gateway protocol is built on.
package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/metric"
	"github.com/c360/semql/pkg/worker"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected      = stderrors.New("not connected to NATS")
	ErrCircuitOpen       = stderrors.New("circuit breaker is open")
	ErrConnectionTimeout = stderrors.New("connection timeout")
)

// Status holds runtime status information for the client.
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	RTT             time.Duration
}

// Handler answers one request. The returned bytes are sent as the reply; an
// error is reported to the requester through the error header.
type Handler func(ctx context.Context, data []byte) ([]byte, error)

// ErrorHeader carries a handler error back to the requester.
const ErrorHeader = "Semql-Error"

// Client manages a NATS connection with a circuit breaker.
type Client struct {
	url      string
	status   atomic.Value // ConnectionStatus
	failures atomic.Int32
	logger   *slog.Logger
	metrics  *requestMetrics
	registry *metric.MetricsRegistry

	conn *nats.Conn
	subs []*nats.Subscription

	replyWorkers int
	replyQueue   int
	replies      *worker.Pool[replyJob]

	lastFailure      atomic.Value // time.Time
	backoff          atomic.Value // time.Duration
	circuitFailures  atomic.Int32
	circuitThreshold int32
	maxBackoff       time.Duration

	maxReconnects  int
	reconnectWait  time.Duration
	pingInterval   time.Duration
	timeout        time.Duration
	drainTimeout   time.Duration
	handlerTimeout time.Duration

	// Cleared on close.
	username string
	password string
	token    string

	tlsConfig *tls.Config

	clientName  string
	compression bool

	onHealthChange func(bool)

	healthTicker   *time.Ticker
	healthInterval time.Duration
	healthDone     chan struct{}

	mu      sync.RWMutex
	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a client for url. It does not connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		healthInterval:   10 * time.Second,
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		handlerTimeout:   30 * time.Second,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient", "url", url)

	if c.replyWorkers > 0 {
		var poolOpts []worker.Option[replyJob]
		if c.registry != nil {
			poolOpts = append(poolOpts, worker.WithMetrics[replyJob](c.registry))
		}
		pool, err := worker.NewPool("nats_replies", c.replyWorkers, c.replyQueue, c.respond, poolOpts...)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "create reply pool")
		}
		c.replies = pool
	}

	c.status.Store(StatusDisconnected)
	c.backoff.Store(time.Second)
	c.lastFailure.Store(time.Time{})

	return c, nil
}

// URL returns the NATS server URL
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	val := c.status.Load()
	if val == nil {
		return StatusDisconnected
	}
	return val.(ConnectionStatus)
}

// Conn returns the underlying connection, or nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.status.Store(status)
}

// IsHealthy reports whether the client is connected.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the failure count since the last successful operation.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// Backoff returns the current circuit breaker backoff.
func (c *Client) Backoff() time.Duration {
	return c.backoff.Load().(time.Duration)
}

// recordFailure counts a connection failure and opens the circuit once the
// threshold is reached in the current round.
func (c *Client) recordFailure() {
	total := c.failures.Add(1)
	c.lastFailure.Store(time.Now())
	round := c.circuitFailures.Add(1)

	c.logger.Debug("Recorded NATS failure", "failures", total, "circuit_failures", round)

	if round < c.circuitThreshold {
		return
	}

	current := c.Status()
	if current == StatusCircuitOpen {
		c.growBackoff()
		c.circuitFailures.Store(0)
		c.logger.Warn("Circuit breaker still open", "backoff", c.Backoff())
		return
	}

	// Only one goroutine opens the circuit.
	if c.status.CompareAndSwap(current, StatusCircuitOpen) {
		wait := c.Backoff()
		c.growBackoff()
		c.circuitFailures.Store(0)
		c.logger.Warn("Circuit breaker opened", "failures", round, "backoff", wait)
		time.AfterFunc(wait, c.testCircuit)
	}
}

func (c *Client) growBackoff() {
	next := min(c.Backoff()*2, c.maxBackoff)
	c.backoff.Store(next)
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuitFailures.Store(0)
	c.backoff.Store(time.Second)
	c.lastFailure.Store(time.Time{})

	if c.Status() == StatusCircuitOpen {
		c.setStatus(StatusDisconnected)
	}
}

// testCircuit half-opens the circuit so the next Connect is attempted.
func (c *Client) testCircuit() {
	if c.Status() == StatusCircuitOpen {
		c.logger.Debug("Circuit breaker half-open")
		c.setStatus(StatusDisconnected)
	}
}

// WaitForConnection blocks until the client is connected or ctx is done.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrConnectionTimeout, ctx.Err())
		case <-ticker.C:
			if c.IsHealthy() {
				return nil
			}
		}
	}
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}

	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.tlsConfig != nil {
		opts = append(opts, nats.Secure(c.tlsConfig))
	}
	if c.clientName != "" {
		opts = append(opts, nats.Name(c.clientName))
	}
	if c.compression {
		opts = append(opts, nats.Compression(true))
	}
	return opts
}

// GetStatus returns a snapshot of the client state.
func (c *Client) GetStatus() *Status {
	status := &Status{
		Status:          c.Status(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: c.lastFailure.Load().(time.Time),
	}
	if rtt, err := c.RTT(); err == nil {
		status.RTT = rtt
	}
	return status
}

// Connect dials the server. It fails fast with ErrCircuitOpen while the
// circuit breaker is open.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Info("Connecting to NATS")

	opts := c.connectionOptions()
	done := make(chan error, 1)
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		if err != nil {
			done <- err
			return
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return c.connectFailed(errors.WrapTransient(err, "Client", "Connect", "establish connection"))
		}
	case <-ctx.Done():
		return c.connectFailed(errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled"))
	}

	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Connected to NATS")

	if c.healthInterval > 0 {
		c.startHealthMonitoring()
	}
	if c.onHealthChange != nil {
		c.onHealthChange(true)
	}
	return nil
}

func (c *Client) connectFailed(err error) error {
	c.recordFailure()
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	c.setStatus(StatusDisconnected)
	return err
}

// Close unsubscribes every handler and drains the connection. The drain is
// bounded by the drain timeout and by ctx.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Load() {
		return nil
	}
	c.closed.Store(true)

	c.stopHealthMonitoring()

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}
	c.subs = nil

	if c.replies != nil {
		if err := c.replies.Stop(c.drainTimeout); err != nil {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "stop reply workers"))
		}
	}

	if c.conn != nil {
		drainTimeout := c.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drained := make(chan error, 1)
		conn := c.conn
		go func() { drained <- conn.Drain() }()

		select {
		case err := <-drained:
			if err != nil {
				errs = append(errs, errors.Wrap(err, "Client", "Close", "drain connection"))
			}
		case <-time.After(drainTimeout):
			errs = append(errs, errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout), "Client", "Close", "drain timeout"))
		case <-ctx.Done():
			errs = append(errs, errors.Wrap(ctx.Err(), "Client", "Close", "context cancelled during drain"))
		}

		conn.Close()
		c.conn = nil
	}

	c.username = ""
	c.password = ""
	c.token = ""
	c.setStatus(StatusDisconnected)

	for _, err := range errs {
		c.logger.Error("NATS close failed", "error", err)
	}
	return stderrors.Join(errs...)
}

// RTT returns the round-trip time to the server.
func (c *Client) RTT() (time.Duration, error) {
	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

func (c *Client) connected() (*nats.Conn, error) {
	if c.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}
	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// Publish sends data on subject without waiting for a reply.
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn, err := c.connected()
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

// Request sends data on subject and waits for the reply. A reply carrying
// the error header is returned as an error with the handler's message.
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	conn, err := c.connected()
	if err != nil {
		c.metrics.record(subject, "unavailable")
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		c.metrics.record(subject, "error")
		return nil, err
	}
	if remote := msg.Header.Get(ErrorHeader); remote != "" {
		c.metrics.record(subject, "remote_error")
		return nil, &RemoteError{Subject: subject, Message: remote, Class: msg.Header.Get(ErrorClassHeader)}
	}
	c.metrics.record(subject, "ok")
	return msg.Data, nil
}

// ErrorClassHeader carries the classification of a handler error.
const ErrorClassHeader = "Semql-Error-Class"

// RemoteError is a handler error returned by a responder.
type RemoteError struct {
	Subject string
	Message string
	// Class is the responder-side error class ("transient", "invalid", "fatal").
	Class string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Message)
}

// Reply subscribes handler to subject in the given queue group. Each request
// gets a context derived from ctx bounded by the handler timeout.
func (c *Client) Reply(ctx context.Context, subject, queue string, handler Handler) error {
	conn, err := c.connected()
	if err != nil {
		return err
	}
	if err := c.startReplies(); err != nil {
		return err
	}

	sub, err := conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		job := replyJob{ctx: ctx, subject: subject, handler: handler, msg: msg}
		if c.replies == nil {
			_ = c.respond(ctx, job)
			return
		}
		if err := c.replies.Submit(job); err != nil {
			c.logger.Warn("Reply dropped", "subject", subject, "error", err)
			c.sendReply(job, nil, errors.WrapTransient(err, "Client", "Reply", "server busy"))
		}
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Reply", "subscribe "+subject)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

// replyJob is one request waiting for a reply worker.
type replyJob struct {
	ctx     context.Context
	subject string
	handler Handler
	msg     *nats.Msg
}

func (c *Client) startReplies() error {
	if c.replies == nil {
		return nil
	}
	err := c.replies.Start(context.Background())
	if err != nil && !errors.Is(err, worker.ErrPoolAlreadyStarted) {
		return errors.Wrap(err, "Client", "Reply", "start reply pool")
	}
	return nil
}

func (c *Client) respond(_ context.Context, job replyJob) error {
	msgCtx, cancel := context.WithTimeout(job.ctx, c.handlerTimeout)
	defer cancel()

	data, err := job.handler(msgCtx, job.msg.Data)
	c.sendReply(job, data, err)
	return err
}

func (c *Client) sendReply(job replyJob, data []byte, err error) {
	reply := nats.NewMsg(job.msg.Reply)
	if err != nil {
		reply.Header.Set(ErrorHeader, err.Error())
		reply.Header.Set(ErrorClassHeader, errors.Classify(err).String())
	} else {
		reply.Data = data
	}
	if err := job.msg.RespondMsg(reply); err != nil {
		c.logger.Error("Reply failed", "subject", job.subject, "error", err)
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.setStatus(StatusReconnecting)
	c.logger.Warn("Disconnected from NATS", "error", err)

	c.mu.RLock()
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (c *Client) handleReconnect(_ *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.logger.Info("Reconnected to NATS")

	c.mu.RLock()
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onHealthChange != nil {
		go onHealthChange(true)
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)

	c.mu.RLock()
	onHealthChange := c.onHealthChange
	c.mu.RUnlock()

	if onHealthChange != nil {
		go onHealthChange(false)
	}
}

func (c *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	c.logger.Error("NATS error", "error", err)
}

func (c *Client) startHealthMonitoring() {
	c.stopHealthMonitoring()

	c.mu.Lock()
	c.healthTicker = time.NewTicker(c.healthInterval)
	c.healthDone = make(chan struct{})
	ticker, done := c.healthTicker, c.healthDone
	c.mu.Unlock()

	go func() {
		defer ticker.Stop()
		lastHealthy := c.IsHealthy()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				conn := c.Conn()
				if conn == nil {
					continue
				}

				healthy := conn.IsConnected()
				if _, err := conn.RTT(); err != nil {
					healthy = false
				}

				if healthy && c.Status() != StatusConnected {
					c.setStatus(StatusConnected)
				} else if !healthy && c.Status() == StatusConnected {
					c.setStatus(StatusReconnecting)
				}

				c.mu.RLock()
				onHealthChange := c.onHealthChange
				c.mu.RUnlock()
				if healthy != lastHealthy && onHealthChange != nil {
					onHealthChange(healthy)
				}
				lastHealthy = healthy
			}
		}
	}()
}

func (c *Client) stopHealthMonitoring() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.healthTicker != nil {
		c.healthTicker.Stop()
		c.healthTicker = nil
	}
	if c.healthDone != nil {
		close(c.healthDone)
		c.healthDone = nil
	}
}
