package hub

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bazinga-client/internal/session"
)

var (
	ErrSessionExists = errors.New("session already open")
	ErrNoSession     = errors.New("no such session")
	ErrHubClosed     = errors.New("hub closed")
)

// Key identifies one local player's session in one room.
type Key struct {
	RoomCode string
	PlayerID int
}

func (k Key) String() string { return fmt.Sprintf("%s/%d", k.RoomCode, k.PlayerID) }

type OpenFunc func(ctx context.Context) (*session.Session, error)

type HubMsg interface{ isHubMsg() }

type OpenResult struct {
	Session *session.Session
	Err     error
}

// OpenSession reserves Key and runs Open outside the loop, so a slow dial never
// blocks other sessions.
type OpenSession struct {
	Key   Key
	Open  OpenFunc
	Reply chan OpenResult
}

type GetSession struct {
	Key   Key
	Reply chan *session.Session // nil when absent
}

// RemoveSession forgets Key if it still maps to Session.
type RemoveSession struct {
	Key     Key
	Session *session.Session
}

type ListSessions struct {
	Reply chan []Key
}

type ShutdownHub struct {
	Reply chan error
}

type opened struct {
	Key    Key
	Result OpenResult
	Reply  chan OpenResult
}

func (OpenSession) isHubMsg()   {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ListSessions) isHubMsg()  {}
func (ShutdownHub) isHubMsg()   {}
func (opened) isHubMsg()        {}

// Hub keeps every live session isolated under its own key.
type Hub struct {
	inbox    chan HubMsg
	sessions map[Key]*session.Session
	pending  map[Key]bool
	log      *zap.Logger
	opening  sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[Key]*session.Session),
		pending:  make(map[Key]bool),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer h.stop()

	for {
		select {
		case <-h.ctx.Done():
			if err := h.closeAll(); err != nil {
				h.log.Warn("closing sessions", zap.Error(err))
			}
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case OpenSession:
				if h.sessions[msg.Key] != nil || h.pending[msg.Key] {
					msg.Reply <- OpenResult{Err: fmt.Errorf("%w: %s", ErrSessionExists, msg.Key)}
					break
				}
				h.pending[msg.Key] = true
				h.opening.Add(1)
				go h.open(msg)

			case opened:
				delete(h.pending, msg.Key)
				if msg.Result.Err == nil {
					h.sessions[msg.Key] = msg.Result.Session
					go h.watch(msg.Key, msg.Result.Session)
					h.log.Info("session opened", zap.Stringer("key", msg.Key))
				}
				msg.Reply <- msg.Result

			case GetSession:
				msg.Reply <- h.sessions[msg.Key] // may be nil

			case RemoveSession:
				if s := h.sessions[msg.Key]; s != nil && s == msg.Session {
					delete(h.sessions, msg.Key)
					h.log.Info("session removed", zap.Stringer("key", msg.Key), zap.NamedError("cause", s.Err()))
				}

			case ListSessions:
				keys := make([]Key, 0, len(h.sessions))
				for k := range h.sessions {
					keys = append(keys, k)
				}
				slices.SortFunc(keys, func(a, b Key) int {
					if c := strings.Compare(a.RoomCode, b.RoomCode); c != 0 {
						return c
					}
					return a.PlayerID - b.PlayerID
				})
				msg.Reply <- keys

			case ShutdownHub:
				err := h.closeAll()
				h.cancel()
				msg.Reply <- err
				return
			}
		}
	}
}

func (h *Hub) open(msg OpenSession) {
	defer h.opening.Done()

	s, err := msg.Open(h.ctx)
	res := OpenResult{Session: s, Err: err}
	select {
	case h.inbox <- opened{Key: msg.Key, Result: res, Reply: msg.Reply}:
	case <-h.ctx.Done():
		discard(opened{Key: msg.Key, Result: res, Reply: msg.Reply})
	}
}

// stop waits for in-flight opens and closes whatever they produced after the
// loop stopped reading.
func (h *Hub) stop() {
	h.cancel()
	h.opening.Wait()
	for {
		select {
		case m := <-h.inbox:
			if o, ok := m.(opened); ok {
				discard(o)
			}
		default:
			close(h.done)
			return
		}
	}
}

func discard(o opened) {
	if o.Result.Session != nil {
		_ = o.Result.Session.Close()
	}
	o.Reply <- OpenResult{Err: ErrHubClosed}
}

// watch removes a session once it terminates on its own.
func (h *Hub) watch(k Key, s *session.Session) {
	select {
	case <-s.Done():
	case <-h.done:
		return
	}
	select {
	case h.inbox <- RemoveSession{Key: k, Session: s}:
	case <-h.done:
	}
}

func (h *Hub) closeAll() error {
	var err error
	for k, s := range h.sessions {
		err = multierr.Append(err, s.Close())
		delete(h.sessions, k)
	}
	return err
}

func (h *Hub) post(ctx context.Context, m HubMsg) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Open starts a session under k unless one is already open or opening.
func (h *Hub) Open(ctx context.Context, k Key, open OpenFunc) (*session.Session, error) {
	reply := make(chan OpenResult, 1)
	if err := h.post(ctx, OpenSession{Key: k, Open: open, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.Session, res.Err
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) Get(ctx context.Context, k Key) (*session.Session, error) {
	reply := make(chan *session.Session, 1)
	if err := h.post(ctx, GetSession{Key: k, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case s := <-reply:
		if s == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoSession, k)
		}
		return s, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hub) List(ctx context.Context) ([]Key, error) {
	reply := make(chan []Key, 1)
	if err := h.post(ctx, ListSessions{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case keys := <-reply:
		return keys, nil
	case <-h.done:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown closes every session and stops the hub. Calling it on a stopped hub
// is a no-op.
func (h *Hub) Shutdown(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := h.post(ctx, ShutdownHub{Reply: reply}); err != nil {
		if errors.Is(err, ErrHubClosed) {
			return nil
		}
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
