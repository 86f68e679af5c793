package playstore

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

const (
	defaultCallTimeout = 30 * time.Second
	eventBuffer        = 64
)

// BridgeClient is an update.UpdateBackend backed by a device bridge.
// Notifications are delivered in order on a dedicated goroutine, so a
// handler may call back into the client.
type BridgeClient struct {
	conn    *websocket.Conn
	log     zerolog.Logger
	timeout time.Duration

	writeMu sync.Mutex

	mu         sync.Mutex
	nextID     uint64
	pending    map[uint64]chan *rpcMessage
	handler    func(update.InstallState)
	handlerGen uint64
	closed     bool
	err        error

	events chan update.InstallState
	done   chan struct{}
}

var _ update.UpdateBackend = (*BridgeClient)(nil)

// BridgeOption configures a BridgeClient.
type BridgeOption func(*BridgeClient)

// WithBridgeLogger sets the logger.
func WithBridgeLogger(l zerolog.Logger) BridgeOption {
	return func(c *BridgeClient) { c.log = l }
}

// WithCallTimeout bounds requests whose context has no deadline.
func WithCallTimeout(d time.Duration) BridgeOption {
	return func(c *BridgeClient) { c.timeout = d }
}

// Dial connects to the bridge at rawURL (ws:// or wss://).
func Dial(ctx context.Context, rawURL string, opts ...BridgeOption) (*BridgeClient, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return nil, update.WrapError(update.KindInvalidURL, "invalid bridge URL: "+rawURL, err)
	}

	d := websocket.Dialer{
		Subprotocols:     []string{"jsonrpc"},
		HandshakeTimeout: 5 * time.Second,
	}
	// nolint:bodyclose
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, update.WrapError(update.KindStoreUnavailable, "in-app update bridge not reachable", err)
	}

	c := &BridgeClient{
		conn:    conn,
		log:     zerolog.Nop(),
		timeout: defaultCallTimeout,
		pending: make(map[uint64]chan *rpcMessage),
		events:  make(chan update.InstallState, eventBuffer),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With().Str("component", "bridge").Logger()

	go c.readLoop()
	go c.dispatchLoop()
	return c, nil
}

// QueryAvailability asks Play Core whether an update is published.
func (c *BridgeClient) QueryAvailability(ctx context.Context) (*update.PlayStoreUpdateInfo, error) {
	var info update.PlayStoreUpdateInfo
	if err := c.call(ctx, methodCheck, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StartFlow launches the Play Core update UI.
func (c *BridgeClient) StartFlow(ctx context.Context, t update.UpdateType) error {
	return c.call(ctx, methodStart, startParams{UpdateType: t}, nil)
}

// CompleteFlow asks Play Core to install a downloaded update. The app is
// restarted by the platform, so no reply is awaited.
func (c *BridgeClient) CompleteFlow(context.Context) error {
	return c.notify(methodComplete, nil)
}

// Subscribe installs the install-state handler, replacing any previous one.
func (c *BridgeClient) Subscribe(fn func(update.InstallState)) (func(), error) {
	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.handlerGen++
	gen := c.handlerGen
	c.handler = fn
	c.mu.Unlock()

	if err := c.notify(methodSubscribe, nil); err != nil {
		c.clearHandler(gen)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if c.clearHandler(gen) {
				if err := c.notify(methodUnsubscribe, nil); err != nil {
					c.log.Debug().Err(err).Msg("unsubscribe not delivered")
				}
			}
		})
	}, nil
}

func (c *BridgeClient) clearHandler(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlerGen != gen {
		return false
	}
	c.handler = nil
	return true
}

// Done is closed once the connection is gone.
func (c *BridgeClient) Done() <-chan struct{} { return c.done }

// Close performs the close handshake and releases the connection.
func (c *BridgeClient) Close() error {
	deadline := time.Now().Add(1500 * time.Millisecond)
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *BridgeClient) call(ctx context.Context, method string, params any, out any) error {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.mu.Lock()
	if c.closed {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *rpcMessage, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	msg, err := newMessage(method, params)
	if err != nil {
		return update.WrapError(update.KindUnknown, "failed to encode "+method, err)
	}
	msg.ID = &id
	if err := c.write(msg); err != nil {
		return err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return classify(resp.Error)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return update.WrapError(update.KindUnknown, "failed to decode "+method+" result", err)
			}
		}
		return nil
	case <-ctx.Done():
		return update.WrapError(update.KindNetwork, method+" timed out", ctx.Err())
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.err
	}
}

func (c *BridgeClient) notify(method string, params any) error {
	msg, err := newMessage(method, params)
	if err != nil {
		return update.WrapError(update.KindUnknown, "failed to encode "+method, err)
	}
	return c.write(msg)
}

func (c *BridgeClient) write(msg *rpcMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return update.WrapError(update.KindNetwork, "bridge write failed", err)
	}
	return nil
}

func newMessage(method string, params any) (*rpcMessage, error) {
	msg := &rpcMessage{JSONRPC: jsonrpcVersion, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		msg.Params = raw
	}
	return msg, nil
}

func (c *BridgeClient) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed bridge message")
			continue
		}

		switch {
		case msg.ID != nil && msg.Method == "":
			c.mu.Lock()
			ch := c.pending[*msg.ID]
			c.mu.Unlock()
			if ch != nil {
				ch <- &msg
			}
		case isEvent(msg.Method):
			var s update.InstallState
			if err := json.Unmarshal(msg.Params, &s); err != nil {
				c.log.Warn().Err(err).Str("event", msg.Method).Msg("dropping malformed install state")
				continue
			}
			c.events <- s
		default:
			c.log.Debug().Str("method", msg.Method).Msg("ignoring bridge message")
		}
	}
}

func (c *BridgeClient) dispatchLoop() {
	for s := range c.events {
		c.mu.Lock()
		fn := c.handler
		c.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	}
}

func (c *BridgeClient) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.log.Debug().Msg("bridge closed")
	} else {
		c.log.Warn().Err(err).Msg("bridge connection lost")
	}
	c.err = update.WrapError(update.KindNetwork, "bridge connection closed", err)
	close(c.done)
}
