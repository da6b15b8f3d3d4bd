package voiceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/astrovoice/kundli/backend/internal/model/voice"
)

var (
	// ErrNotConnected is returned when a send is attempted and the socket
	// is not open.
	ErrNotConnected = errors.New("voice transport is not connected")
	// ErrAlreadyConnected is returned by Connect on a live client.
	ErrAlreadyConnected = errors.New("voice transport already connected")
)

// Callbacks receive inbound frames and lifecycle events. All callbacks are
// invoked from the client's read goroutine; nil entries are skipped.
type Callbacks struct {
	OnConnected       func()
	OnDisconnected    func(err error)
	OnAudioResponse   func(audio []byte, format string)
	OnTextResponse    func(text string)
	OnBalance         func(balance float64, elapsed int64)
	OnPaused          func(reason string)
	OnError           func(message string)
	OnReconnectFailed func(attempts int)
}

// Options configure a Client. Each session owns its own explicitly
// constructed Client; there is no process-wide instance.
type Options struct {
	// BaseURL is the server root, e.g. "ws://localhost:8080". http(s)
	// schemes are accepted and rewritten.
	BaseURL   string
	SessionID string
	// ReconnectBase is the unit of the linear backoff: attempt N waits
	// N*ReconnectBase before redialing.
	ReconnectBase time.Duration
	// MaxReconnects caps automatic redial attempts after an unexpected
	// close. Exhaustion fires OnReconnectFailed.
	MaxReconnects    int
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.ReconnectBase <= 0 {
		o.ReconnectBase = 3 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 5
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
}

// Client maintains exactly one live socket per active session, serializes
// audio uploads into tagged frames, and dispatches inbound frames to the
// registered callbacks.
type Client struct {
	opts Options

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	cbs      Callbacks
	attempts int
	redialer *time.Timer
	// gen is bumped by Disconnect so an in-flight dial cannot install its
	// connection after an explicit teardown.
	gen uint64

	writeMu sync.Mutex
}

// New builds a client for one session endpoint.
func New(opts Options) *Client {
	opts.withDefaults()
	return &Client{opts: opts}
}

// Connect opens the session socket. It returns once the socket is open, or
// with the dial error. Callbacks stay registered until Disconnect.
func (c *Client) Connect(ctx context.Context, cbs Callbacks) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.cbs = cbs
	c.attempts = 0
	gen := c.gen
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return err
	}

	if !c.attach(conn, gen) {
		return ErrNotConnected
	}
	return nil
}

// Disconnect closes the socket, cancels any pending reconnect and clears
// the registered callbacks. It is idempotent; the client may be connected
// again afterwards.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.cbs = Callbacks{}
	c.attempts = 0
	c.gen++
	if c.redialer != nil {
		c.redialer.Stop()
		c.redialer = nil
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendAudio reads the recording bytes, encodes them to base64 and transmits
// a tagged audio frame. The recording is treated as read-only.
func (c *Client) SendAudio(rec voice.AudioRecording) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	data, err := os.ReadFile(rec.Path)
	if err != nil {
		return fmt.Errorf("reading recording %s: %w", rec.Path, err)
	}

	return c.send(voice.ClientMessage{
		Type:  voice.TypeAudio,
		Audio: voice.EncodeAudio(data),
	})
}

// SendText transmits a tagged text frame.
func (c *Client) SendText(text string) error {
	return c.send(voice.ClientMessage{Type: voice.TypeText, Text: text})
}

// SendConfig selects the astrologer for the session.
func (c *Client) SendConfig(astrologerID string) error {
	return c.send(voice.ClientMessage{Type: voice.TypeConfig, AstrologerID: astrologerID})
}

func (c *Client) send(msg voice.ClientMessage) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

func (c *Client) endpoint() string {
	base := strings.TrimSuffix(c.opts.BaseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/voice/ws/" + c.opts.SessionID
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach installs a freshly dialed connection and starts its loops. A
// Disconnect that raced the dial has bumped gen; the stale connection is
// closed instead of installed, and attach reports whether it was kept.
func (c *Client) attach(conn *websocket.Conn, gen uint64) bool {
	done := make(chan struct{})

	c.mu.Lock()
	if c.gen != gen || c.state != StateConnecting {
		c.mu.Unlock()
		conn.Close()
		return false
	}
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	onConnected := c.cbs.OnConnected
	c.mu.Unlock()

	go c.readLoop(conn, done)
	go c.pingLoop(done)

	if onConnected != nil {
		onConnected()
	}
	return true
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(conn, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) handleReadError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A Disconnect or newer connection already superseded this one.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateDisconnected
	onDisconnected := c.cbs.OnDisconnected
	gen := c.gen
	c.mu.Unlock()

	conn.Close()
	log.Printf("[voiceclient] connection lost session=%s: %v", c.opts.SessionID, err)
	if onDisconnected != nil {
		onDisconnected(err)
	}

	c.scheduleReconnect(gen)
}

// scheduleReconnect arms the linear backoff timer: attempt N fires no
// earlier than N*ReconnectBase after the close that triggered it. A stale
// generation means Disconnect intervened and no timer is armed.
func (c *Client) scheduleReconnect(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}

	c.attempts++
	attempt := c.attempts
	if attempt > c.opts.MaxReconnects {
		onFailed := c.cbs.OnReconnectFailed
		c.mu.Unlock()
		log.Printf("[voiceclient] reconnect attempts exhausted session=%s attempts=%d", c.opts.SessionID, c.opts.MaxReconnects)
		if onFailed != nil {
			onFailed(c.opts.MaxReconnects)
		}
		return
	}

	delay := time.Duration(attempt) * c.opts.ReconnectBase
	c.redialer = time.AfterFunc(delay, c.redial)
	c.mu.Unlock()

	log.Printf("[voiceclient] reconnect attempt %d scheduled in %s session=%s", attempt, delay, c.opts.SessionID)
}

func (c *Client) redial() {
	c.mu.Lock()
	if c.state != StateDisconnected || c.redialer == nil {
		// Explicitly disconnected while the timer was pending.
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.redialer = nil
	gen := c.gen
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.HandshakeTimeout)
	defer cancel()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.state = StateDisconnected
		c.mu.Unlock()
		c.scheduleReconnect(gen)
		return
	}

	c.attach(conn, gen)
}

func (c *Client) pingLoop(done chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.send(voice.ClientMessage{Type: voice.TypePing}); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame by its type tag. Malformed frames are
// logged and dropped.
func (c *Client) dispatch(data []byte) {
	var msg voice.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[voiceclient] dropping malformed frame session=%s: %v", c.opts.SessionID, err)
		return
	}

	c.mu.Lock()
	cbs := c.cbs
	c.mu.Unlock()

	switch msg.Type {
	case voice.TypeAudioResponse:
		audio, err := voice.DecodeAudio(msg.Audio)
		if err != nil {
			log.Printf("[voiceclient] dropping undecodable audio frame session=%s: %v", c.opts.SessionID, err)
			return
		}
		if cbs.OnAudioResponse != nil {
			cbs.OnAudioResponse(audio, msg.Format)
		}
	case voice.TypeTextResponse:
		if cbs.OnTextResponse != nil {
			cbs.OnTextResponse(msg.Text)
		}
	case voice.TypeBalanceUpdate:
		if cbs.OnBalance != nil {
			cbs.OnBalance(msg.Balance, msg.Elapsed)
		}
	case voice.TypeSessionPaused:
		if cbs.OnPaused != nil {
			cbs.OnPaused(msg.Reason)
		}
	case voice.TypeError:
		if cbs.OnError != nil {
			cbs.OnError(msg.Error)
		}
	case voice.TypePong:
		log.Printf("[voiceclient] pong session=%s", c.opts.SessionID)
	default:
		log.Printf("[voiceclient] dropping frame with unknown type %q session=%s", msg.Type, c.opts.SessionID)
	}
}
