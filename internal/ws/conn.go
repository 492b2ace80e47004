package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var (
	ErrClosed     = errors.New("connection closed")
	ErrInvalidURL = errors.New("invalid base url")
)

type Options struct {
	HTTPClient *http.Client
	ReadLimit  int64
	Logger     *zap.Logger
}

// Conn is the single live connection of one session.
type Conn struct {
	conn *websocket.Conn
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// URL derives the session endpoint {base}/rooms/ws/{roomCode}/{playerID}.
func URL(base, roomCode string, playerID int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if roomCode == "" {
		return "", fmt.Errorf("%w: empty room code", ErrInvalidURL)
	}

	u = u.JoinPath("rooms", "ws", url.PathEscape(roomCode), strconv.Itoa(playerID))
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Dial opens the session connection. Nothing is sent on open: an established
// connection is itself the signal that events may start flowing.
func Dial(ctx context.Context, base, roomCode string, playerID int, opts Options) (*Conn, error) {
	endpoint, err := URL(base, roomCode, playerID)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{HTTPClient: opts.HTTPClient})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if opts.ReadLimit > 0 {
		c.SetReadLimit(opts.ReadLimit)
	}

	log.Debug("connected", zap.String("url", endpoint))
	return &Conn{conn: c, log: log, done: make(chan struct{})}, nil
}

// Run reads frames in arrival order and hands each to handle before reading the
// next. It returns nil when the peer closes normally and the read error otherwise.
// The connection is closed when Run returns.
func (c *Conn) Run(ctx context.Context, handle func(frame []byte)) error {
	defer c.markClosed()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			if c.isClosed() {
				return nil
			}
			_ = c.conn.Close(websocket.StatusInternalError, "read failed")
			return err
		}
		handle(data)
	}
}

// Send writes one outgoing frame. It fails fast once the connection is gone.
func (c *Conn) Send(ctx context.Context, data []byte) error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		if c.isClosed() {
			return ErrClosed
		}
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Close ends the connection. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	if err != nil && !errors.Is(err, net.ErrClosed) && websocket.CloseStatus(err) == -1 {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
