package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abicall/abicall/pkg/ethrpc"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// WSClient is a websocket-enabled RPC client that can be used with
// appropriate servers. It's supposed to be faster than Client because it
// uses one connection for all requests. Responses are matched to requests
// by their IDs, so concurrent requests are fine. WSClient is thread-safe
// and can be used from multiple goroutines.
type WSClient struct {
	Client

	ws          *websocket.Conn
	wsOpts      WSOptions
	requests    chan *ethrpc.Request
	shutdown    chan struct{}
	readerDone  chan struct{}
	writerDone  chan struct{}
	closeCalled atomic.Bool

	closeErrLock sync.RWMutex
	closeErr     error

	respLock     sync.Mutex
	respChannels map[uint64]chan *ethrpc.Response
}

// WSOptions defines options for the web-socket RPC client. It contains a
// set of options for the underlying standard RPC client.
type WSOptions struct {
	Options
	// PingPeriod is the interval of keep-alive pings, 30 seconds are used
	// if not set.
	PingPeriod time.Duration
}

const (
	// Message limit for receiving side.
	wsReadLimit = 10 * 1024 * 1024

	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2
)

var (
	// ErrWSConnLost is returned when the connection was lost before the
	// response was received.
	ErrWSConnLost = errors.New("connection lost")
	// errConnClosedByUser is set as the close reason when WSClient.Close
	// is called.
	errConnClosedByUser = errors.New("connection closed by user")
)

// NewWS returns a new WSClient ready to use. It dials the specified
// endpoint ("ws://" or "wss://" scheme).
func NewWS(ctx context.Context, endpoint string, opts WSOptions) (*WSClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: opts.DialTimeout}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = defaultDialTimeout
	}
	ws, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			err = fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", ethrpc.ErrTransport, err)
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = wsPingPeriod
	}
	wsc := &WSClient{
		Client: Client{},

		ws:           ws,
		wsOpts:       opts,
		requests:     make(chan *ethrpc.Request),
		shutdown:     make(chan struct{}),
		readerDone:   make(chan struct{}),
		writerDone:   make(chan struct{}),
		respChannels: make(map[uint64]chan *ethrpc.Response),
	}

	err = initClient(ctx, &wsc.Client, endpoint, opts.Options)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	wsc.Client.requestF = wsc.makeWsRequest
	go wsc.wsReader()
	go wsc.wsWriter()
	return wsc, nil
}

// Close closes connection to the remote side rendering this client instance
// unusable.
func (c *WSClient) Close() {
	if c.closeCalled.CompareAndSwap(false, true) {
		c.setCloseErr(errConnClosedByUser)
		// Closing shutdown channel sends a signal to wsWriter to break out
		// of the loop. In doing so it does ws.Close() closing the network
		// connection which in turn makes wsReader receive an err from
		// ws.ReadJSON() and also break out of the loop closing c.readerDone.
		close(c.shutdown)
	}
	<-c.readerDone
	<-c.writerDone
}

func (c *WSClient) wsReader() {
	c.ws.SetReadLimit(wsReadLimit)
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.pongLimit()))
	})
	var connCloseErr error
readloop:
	for {
		rr := new(ethrpc.Response)
		err := c.ws.SetReadDeadline(time.Now().Add(c.pongLimit()))
		if err != nil {
			connCloseErr = fmt.Errorf("failed to set response read deadline: %w", err)
			break readloop
		}
		err = c.ws.ReadJSON(rr)
		if err != nil {
			// Timeout/connection loss/malformed response.
			connCloseErr = fmt.Errorf("failed to read JSON response (timeout/connection loss/malformed response): %w", err)
			break readloop
		}
		id, ok := responseID(rr.ID)
		if !ok {
			// Notifications and responses with foreign IDs are not expected.
			c.log.Debug("unexpected websocket message", zap.ByteString("id", rr.ID))
			continue
		}
		if !c.deliver(id, rr) {
			c.log.Debug("response to unknown request", zap.Uint64("id", id))
		}
	}
	if connCloseErr != nil {
		c.setCloseErr(connCloseErr)
	}
	close(c.readerDone)
	c.respLock.Lock()
	for _, ch := range c.respChannels {
		close(ch)
	}
	c.respChannels = nil
	c.respLock.Unlock()
}

// responseID returns the numeric ID of the response, IDs encoded as decimal
// strings are accepted too.
func responseID(raw json.RawMessage) (uint64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var id uint64
	if json.Unmarshal(raw, &id) == nil {
		return id, true
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	return id, err == nil
}

func (c *WSClient) wsWriter() {
	pingTicker := time.NewTicker(c.wsOpts.PingPeriod)
	defer c.ws.Close()
	defer pingTicker.Stop()
	defer close(c.writerDone)
	var connCloseErr error
writeloop:
	for {
		select {
		case <-c.shutdown:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteLimit))
			break writeloop
		case <-c.readerDone:
			break writeloop
		case req := <-c.requests:
			if err := c.ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				connCloseErr = fmt.Errorf("failed to set request write deadline: %w", err)
				break writeloop
			}
			if err := c.ws.WriteJSON(req); err != nil {
				connCloseErr = fmt.Errorf("failed to write JSON request (%s, %d parameters): %w", req.Method, len(req.Params), err)
				break writeloop
			}
		case <-pingTicker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				connCloseErr = fmt.Errorf("failed to set ping write deadline: %w", err)
				break writeloop
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				connCloseErr = fmt.Errorf("failed to write ping message: %w", err)
				break writeloop
			}
		}
	}
	if connCloseErr != nil {
		c.setCloseErr(connCloseErr)
	}
}

func (c *WSClient) pongLimit() time.Duration {
	return 2 * c.wsOpts.PingPeriod
}

// unregisterRespChannel removes the response channel of the request. It's
// safe to call it after wsReader is done.
func (c *WSClient) unregisterRespChannel(id uint64) {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	if ch, ok := c.respChannels[id]; ok {
		delete(c.respChannels, id)
		close(ch)
	}
}

// deliver passes the response to the waiting request and forgets about the
// request, it returns false if there is no such request.
func (c *WSClient) deliver(id uint64, r *ethrpc.Response) bool {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	ch, ok := c.respChannels[id]
	if !ok {
		return false
	}
	delete(c.respChannels, id)
	ch <- r // Buffered and used once.
	return true
}

// registerRespChannel registers a response channel for the request, it
// fails if the connection is already gone.
func (c *WSClient) registerRespChannel(id uint64) (chan *ethrpc.Response, error) {
	c.respLock.Lock()
	defer c.respLock.Unlock()
	if c.respChannels == nil {
		return nil, c.connLostErr()
	}
	ch := make(chan *ethrpc.Response, 1)
	c.respChannels[id] = ch
	return ch, nil
}

func (c *WSClient) makeWsRequest(r *ethrpc.Request) (*ethrpc.Response, error) {
	ch, err := c.registerRespChannel(r.ID)
	if err != nil {
		return nil, err
	}

	select {
	case <-c.ctx.Done():
		c.unregisterRespChannel(r.ID)
		return nil, c.ctx.Err()
	case <-c.readerDone:
		return nil, fmt.Errorf("%w: before sending the request", c.connLostErr())
	case c.requests <- r:
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		c.unregisterRespChannel(r.ID)
		return nil, c.ctx.Err()
	case <-timer.C:
		c.unregisterRespChannel(r.ID)
		return nil, fmt.Errorf("%s request timed out after %s", r.Method, c.opts.RequestTimeout)
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%w: before receiving the response", c.connLostErr())
		}
		return resp, nil
	}
}

func (c *WSClient) setCloseErr(err error) {
	c.closeErrLock.Lock()
	defer c.closeErrLock.Unlock()

	if c.closeErr == nil {
		c.closeErr = err
	}
}

// GetError returns the reason of WS connection closing. It returns nil in
// case if connection was closed by the user via Close() method calling or
// if the connection is still alive.
func (c *WSClient) GetError() error {
	c.closeErrLock.RLock()
	defer c.closeErrLock.RUnlock()

	if c.closeErr != nil && errors.Is(c.closeErr, errConnClosedByUser) {
		return nil
	}
	return c.closeErr
}

func (c *WSClient) connLostErr() error {
	if err := c.GetError(); err != nil {
		return fmt.Errorf("%w: %w", ErrWSConnLost, err)
	}
	return ErrWSConnLost
}

// IsWebsocketEndpoint tells whether the endpoint requires WSClient.
func IsWebsocketEndpoint(endpoint string) bool {
	return strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://")
}
