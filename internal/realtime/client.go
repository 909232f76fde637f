// Package realtime maintains the push channel to the server: a persistent
// websocket carrying media-key presses and library change notifications.
package realtime

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pingInterval     = 30 * time.Second
	initialBackoff   = time.Second
	maxBackoff       = 30 * time.Second
	handshakeTimeout = 10 * time.Second

	// Band frames above this rate are dropped rather than queued
	bandFrameInterval = 50 * time.Millisecond
)

// Message is the wire envelope for events in both directions
type Message struct {
	Type  string `json:"type"`
	Key   string `json:"key,omitempty"`
	Bands []int  `json:"bands,omitempty"`
}

// Controls is the subset of player intents the server can trigger remotely
type Controls interface {
	TogglePlay(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Pause() error
}

// Client holds a websocket to the server, reconnecting with capped
// exponential backoff. Each connection identifies itself with a stable
// per-process client id.
type Client struct {
	serverURL string
	clientID  string
	controls  Controls

	// onLibraryChanged fires when the server reports catalog changes
	onLibraryChanged func()

	// mu also serializes all writes on the connection
	mu            sync.Mutex
	conn          *websocket.Conn
	lastBandFrame time.Time
}

// NewClient creates a realtime client targeting the given server
func NewClient(serverURL string, controls Controls) *Client {
	return &Client{
		serverURL: serverURL,
		clientID:  uuid.New().String(),
		controls:  controls,
	}
}

// SetOnLibraryChanged registers the catalog invalidation callback
func (c *Client) SetOnLibraryChanged(callback func()) {
	c.onLibraryChanged = callback
}

// Connected reports whether the event channel is currently up
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// SendBands pushes a frequency band frame to the server for visualization
// by attached UIs. Frames above the throttle rate or sent while
// disconnected are dropped, never queued.
func (c *Client) SendBands(bands []uint8) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	now := time.Now()
	if now.Sub(c.lastBandFrame) < bandFrameInterval {
		return
	}
	c.lastBandFrame = now

	frame := make([]int, len(bands))
	for i, b := range bands {
		frame[i] = int(b)
	}
	if err := c.conn.WriteJSON(Message{Type: "audio_bands", Bands: frame}); err != nil {
		log.Printf("[REALTIME] Band frame write failed: %v", err)
	}
}

// Run connects and keeps reconnecting until the context is cancelled
func (c *Client) Run(ctx context.Context) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		err := c.runConn(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("[REALTIME] Connection lost: %v (retrying in %s)", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runConn dials, pumps messages until the connection drops, and returns
// the terminal error
func (c *Client) runConn(ctx context.Context) error {
	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := make(http.Header)
	header.Set("X-Client-ID", c.clientID)

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	log.Printf("[REALTIME] Connected to %s", wsURL)

	// Close the socket when the context ends so ReadJSON unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.mu.Unlock()
			conn.Close()
		case <-done:
		}
	}()

	go c.pingLoop(ctx, conn, done)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		c.dispatch(ctx, msg)
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteJSON(Message{Type: "ping"})
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-done:
			return
		}
	}
}

// dispatch maps a server event onto a player intent
func (c *Client) dispatch(ctx context.Context, msg Message) {
	switch msg.Type {
	case "pong":
		// keepalive reply, nothing to do

	case "media_key":
		c.handleMediaKey(ctx, msg.Key)

	case "library_updated", "scan_complete":
		if c.onLibraryChanged != nil {
			c.onLibraryChanged()
		}

	default:
		// Unknown event types are ignored so server additions don't break
		// older clients
	}
}

func (c *Client) handleMediaKey(ctx context.Context, key string) {
	var err error
	switch key {
	case "play_pause":
		err = c.controls.TogglePlay(ctx)
	case "next":
		err = c.controls.Next(ctx)
	case "previous":
		err = c.controls.Previous(ctx)
	case "stop":
		err = c.controls.Pause()
	default:
		log.Printf("[REALTIME] Unknown media key %q", key)
		return
	}
	if err != nil {
		log.Printf("[REALTIME] Media key %q failed: %v", key, err)
	}
}

// websocketURL derives the ws:// endpoint from the configured server URL
func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}
