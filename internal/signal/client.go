package signal

import (
	"context"
	"sync"
	"time"

	"tvcast/receiver/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrBackpressure is returned by Send when the outbound queue is full.
var ErrBackpressure = errors.New("backpressure")

const (
	sendQueueSize = 32
	writeWait     = 5 * time.Second
)

// Config configures a Client.
type Config struct {
	// URL is the signaling WebSocket endpoint, e.g. ws://host:8080/ws.
	URL string

	Identity domain.Identity

	// PingInterval is the WebSocket keepalive period. Zero disables it.
	PingInterval time.Duration

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	url          string
	identity     domain.Identity
	pingInterval time.Duration
	dialer       *websocket.Dialer
	handler      domain.Handler

	mu      sync.Mutex
	conn    *connection
	dialing bool
	closed  bool
	wg      sync.WaitGroup
}

// connection is one dialed socket. The write pump owns all writes after
// the identify handshake.
type connection struct {
	ws   *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// close reports whether this call was the one that closed the connection.
func (c *connection) close() bool {
	first := false
	c.once.Do(func() {
		first = true
		close(c.done)
		_ = c.ws.Close()
	})
	return first
}

// NewClient creates a new signaling client. Inbound messages go to handler.
func NewClient(cfg Config, handler domain.Handler) *Client {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &Client{
		url:          cfg.URL,
		identity:     cfg.Identity,
		pingInterval: cfg.PingInterval,
		dialer:       dialer,
		handler:      handler,
	}
}

// Connect dials the signaling server, sends identify and starts the pumps.
// A failure is reported to the handler and returned; Connect never retries.
// While a connection is live or being dialed, Connect is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if c.conn != nil || c.dialing {
		c.mu.Unlock()
		return nil
	}
	c.dialing = true
	c.mu.Unlock()

	conn, err := c.dial(ctx)

	c.mu.Lock()
	c.dialing = false
	if err == nil && c.closed {
		err = domain.ErrChannelClosed
		_ = conn.ws.Close()
	}
	if err != nil {
		c.mu.Unlock()
		if !errors.Is(err, domain.ErrChannelClosed) {
			c.handler.OnChannelError(err)
		}
		return err
	}
	c.conn = conn
	c.wg.Add(2)
	c.mu.Unlock()

	go c.readPump(conn)
	go c.writePump(conn)

	log.Info().Str("module", "signal").Str("tv_id", c.identity.ID).Msg("connected, identify sent")
	return nil
}

func (c *Client) dial(ctx context.Context) (*connection, error) {
	log.Info().Str("module", "signal").Str("url", c.url).Msg("connecting")

	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "websocket dial")
	}
	if err := c.writeIdentify(ws); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return &connection{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}, nil
}

func (c *Client) writeIdentify(ws *websocket.Conn) error {
	data, err := Encode(c.identity.IdentifyMessage())
	if err != nil {
		return err
	}
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	log.Debug().Str("module", "signal").RawJSON("frame", data).Msg(">>>")
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "send identify")
	}
	return nil
}

// Send encodes msg and queues it for the write pump. It never blocks;
// failures are logged and returned but the message is simply dropped.
func (c *Client) Send(msg domain.ControlMessage) error {
	data, err := Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode")
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		log.Warn().Str("module", "signal").Str("type", string(msg.Type())).Msg("send dropped: not connected")
		return domain.ErrChannelClosed
	}

	select {
	case <-conn.done:
		log.Warn().Str("module", "signal").Str("type", string(msg.Type())).Msg("send dropped: connection closing")
		return domain.ErrChannelClosed
	default:
	}

	select {
	case conn.send <- data:
		return nil
	default:
		log.Warn().Str("module", "signal").Str("type", string(msg.Type())).Msg("send dropped: queue full")
		return ErrBackpressure
	}
}

// Connected reports whether a live connection exists.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Disconnected returns a channel closed when the current connection ends.
// With no connection the returned channel is already closed.
func (c *Client) Disconnected() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.conn.done
}

// Close shuts down the connection and waits for the pumps to exit. It is
// safe to call more than once and before Connect, but must not be called
// from a Handler callback.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.close()
	}
	c.wg.Wait()
	log.Info().Str("module", "signal").Msg("closed")
}

func (c *Client) readPump(conn *connection) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}

		log.Debug().Str("module", "signal").Bytes("frame", data).Msg("<<<")

		msg, err := Decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Msg("dropping frame")
			continue
		}

		select {
		case <-conn.done:
			return
		default:
		}
		c.handler.OnControlMessage(msg)
	}
}

func (c *Client) writePump(conn *connection) {
	defer c.wg.Done()

	var tick <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-conn.done:
			return

		case data := <-conn.send:
			if err := conn.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.drop(conn, err)
				return
			}
			log.Debug().Str("module", "signal").Bytes("frame", data).Msg(">>>")
			if err := conn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.drop(conn, err)
				return
			}

		case <-tick:
			if err := conn.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.drop(conn, err)
				return
			}
		}
	}
}

// drop retires conn after an I/O error. The handler hears about it unless
// the client itself is closing.
func (c *Client) drop(conn *connection, cause error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	closing := c.closed
	c.mu.Unlock()

	if !conn.close() || closing || !current {
		return
	}
	log.Warn().Err(cause).Str("module", "signal").Msg("connection lost")
	c.handler.OnChannelError(errors.Wrap(domain.ErrChannelClosed, cause.Error()))
}
