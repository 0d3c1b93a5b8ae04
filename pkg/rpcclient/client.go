package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/abicall/abicall/pkg/ethrpc"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout    = 4 * time.Second
	defaultRequestTimeout = 4 * time.Second
)

// Client represents the middleman for executing JSON RPC calls
// to remote EVM-compatible nodes. Client is thread-safe and can be used from
// multiple goroutines.
type Client struct {
	cli      *http.Client
	endpoint *url.URL
	ctx      context.Context
	opts     Options
	log      *zap.Logger
	requestF func(*ethrpc.Request) (*ethrpc.Response, error)

	latestReqID *atomic.Uint64
	// getNextRequestID returns an ID to be used for the subsequent request creation.
	// It is defined on Client, so that our testing code can override this method
	// for the sake of more predictable request IDs generation behavior.
	getNextRequestID func() uint64
}

// Options defines options for the RPC client.
// All values are optional. If any duration is not specified,
// a default of 4 seconds will be used.
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	// Limit total number of connections per host. No limit by default.
	MaxConnsPerHost int
	// Logger receives debug messages about requests, nop logger is used
	// if not set.
	Logger *zap.Logger
}

// New returns a new Client ready to use. The context is used for all
// requests made by the client.
func New(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	cl := new(Client)
	err := initClient(ctx, cl, endpoint, opts)
	if err != nil {
		return nil, err
	}
	return cl, nil
}

func initClient(ctx context.Context, cl *Client, endpoint string, opts Options) error {
	url, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	if url.Scheme == "" || url.Host == "" {
		return fmt.Errorf("invalid endpoint %q", endpoint)
	}

	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: opts.DialTimeout,
			}).DialContext,
			MaxConnsPerHost: opts.MaxConnsPerHost,
		},
		Timeout: opts.RequestTimeout,
	}

	cl.ctx = ctx
	cl.cli = httpClient
	cl.endpoint = url
	cl.latestReqID = atomic.NewUint64(0)
	cl.getNextRequestID = (cl).getRequestID
	cl.opts = opts
	cl.log = opts.Logger
	cl.requestF = cl.makeHTTPRequest
	return nil
}

func (c *Client) getRequestID() uint64 {
	return c.latestReqID.Inc()
}

// Endpoint returns the client endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// Close closes unused underlying networks connections.
func (c *Client) Close() {
	c.cli.CloseIdleConnections()
}

// performRequest sends a request and unmarshals its result into v. Node
// errors are returned as *ethrpc.Error or *ethrpc.RevertError, everything
// else is wrapped into ethrpc.ErrTransport.
func (c *Client) performRequest(method string, p []any, v any) error {
	if p == nil {
		p = []any{}
	}
	var r = ethrpc.Request{
		JSONRPC: ethrpc.JSONRPCVersion,
		Method:  method,
		Params:  p,
		ID:      c.getNextRequestID(),
	}

	start := time.Now()
	raw, err := c.requestF(&r)

	switch {
	case raw != nil && raw.Error != nil:
		err = raw.Error.Classify()
	case err != nil:
		err = fmt.Errorf("%w: %s: %w", ethrpc.ErrTransport, method, err)
	case raw == nil || raw.Result == nil:
		err = fmt.Errorf("%w: %s: no result returned", ethrpc.ErrTransport, method)
	default:
		if uerr := json.Unmarshal(raw.Result, v); uerr != nil {
			err = fmt.Errorf("%w: %s: bad result: %w", ethrpc.ErrTransport, method, uerr)
		}
	}
	addReqTimeMetric(method, time.Since(start), err)
	c.log.Debug("RPC request",
		zap.String("method", method),
		zap.Uint64("id", r.ID),
		zap.Duration("time", time.Since(start)),
		zap.Error(err))
	return err
}

func (c *Client) makeHTTPRequest(r *ethrpc.Request) (*ethrpc.Response, error) {
	var (
		buf = new(bytes.Buffer)
		raw = new(ethrpc.Response)
	)

	if err := json.NewEncoder(buf).Encode(r); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(c.ctx, http.MethodPost, c.endpoint.String(), buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The node might send us a proper JSON anyway, so look there first and if
	// it parses, it has more relevant data than HTTP error code.
	err = json.NewDecoder(resp.Body).Decode(raw)
	if err != nil {
		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("HTTP %d/%s", resp.StatusCode, http.StatusText(resp.StatusCode))
		} else {
			err = fmt.Errorf("JSON decoding: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Ping attempts to create a connection to the endpoint
// and returns an error if there is any.
func (c *Client) Ping() error {
	host := c.endpoint.Host
	if c.endpoint.Port() == "" {
		switch c.endpoint.Scheme {
		case "https", "wss":
			host = net.JoinHostPort(c.endpoint.Hostname(), "443")
		default:
			host = net.JoinHostPort(c.endpoint.Hostname(), "80")
		}
	}
	conn, err := net.DialTimeout("tcp", host, c.opts.DialTimeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ethrpc.ErrTransport, err)
	}
	_ = conn.Close()
	return nil
}
