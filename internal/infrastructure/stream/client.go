package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rfoxley/hearthsync/internal/infrastructure/config"
)

// wsSendBufferSize is the outbound frame buffer size.
const wsSendBufferSize = 256

// Client is a websocket-backed push feed over the remote store. It speaks a
// small JSON frame protocol: the client sends subscribe and write frames, the
// server answers every subscribed path with full-value snapshot frames.
//
// Client implements realtime.Source.
type Client struct {
	conn *websocket.Conn
	cfg  config.WebSocketConfig

	// send carries outbound frames to the single writer goroutine.
	// gorilla/websocket allows at most one concurrent writer.
	send chan []byte

	feeds  map[string]*feed
	feedMu sync.Mutex

	closed   chan struct{}
	closeErr error
	closeMu  sync.Mutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Dial connects to the websocket feed endpoint.
//
// The access token, if non-empty, is sent as a bearer Authorization header
// on the upgrade request. Read and write pumps start immediately; the
// returned client is ready for Subscribe and Write.
func Dial(cfg config.WebSocketConfig, accessToken string) (*Client, error) {
	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, resp.Status, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDialFailed, err)
	}

	c := &Client{
		conn:   conn,
		cfg:    cfg,
		send:   make(chan []byte, wsSendBufferSize),
		feeds:  make(map[string]*feed),
		closed: make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	return c, nil
}

// Close tears the connection down. All subscriber channels are closed and
// further Subscribe and Write calls return ErrClosed.
func (c *Client) Close() error {
	c.shutdown(nil)
	return nil
}

// shutdown closes the connection once and records the cause.
func (c *Client) shutdown(err error) {
	c.closeMu.Lock()
	select {
	case <-c.closed:
		c.closeMu.Unlock()
		return
	default:
	}
	c.closeErr = err
	close(c.closed)
	c.closeMu.Unlock()

	c.conn.Close()

	c.feedMu.Lock()
	for path, f := range c.feeds {
		f.closeAll()
		delete(c.feeds, path)
	}
	c.feedMu.Unlock()
}

// isClosed reports whether the client has shut down.
func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// readPump reads frames from the connection and demuxes snapshots to feeds.
// It owns the read side; on any read error the whole client shuts down and
// subscriber channels close, which is how consumers observe feed loss.
func (c *Client) readPump() {
	defer c.shutdown(nil)

	c.conn.SetReadLimit(int64(c.cfg.MaxMessageSize))
	pingInterval := time.Duration(c.cfg.PingInterval) * time.Second
	pongWait := time.Duration(c.cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				if logger := c.getLogger(); logger != nil {
					logger.Warn("websocket read error", "error", err)
				}
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleFrame(message)
	}
}

// writePump owns the write side of the connection and keeps it alive with
// protocol-level pings.
func (c *Client) writePump() {
	pingInterval := time.Duration(c.cfg.PingInterval) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	pongWait := time.Duration(c.cfg.PongTimeout) * time.Second

	for {
		select {
		case <-c.closed:
			//nolint:errcheck // Best-effort close message
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case message := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.shutdown(err)
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}

// handleFrame processes one inbound frame.
func (c *Client) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("websocket frame not valid JSON", "error", err)
		}
		return
	}

	switch f.Type {
	case frameTypeSnapshot:
		c.dispatchSnapshot(f)
	case frameTypeError:
		if logger := c.getLogger(); logger != nil {
			logger.Warn("websocket server error", "path", f.Path, "message", f.Message)
		}
	default:
		if logger := c.getLogger(); logger != nil {
			logger.Debug("websocket frame ignored", "type", f.Type)
		}
	}
}

// enqueue hands a frame to the writer goroutine.
func (c *Client) enqueue(f frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("stream: marshal frame: %w", err)
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return ErrClosed
	}
}

// SetLogger sets a logger for protocol warnings.
// If not set, malformed frames are silently dropped.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}
