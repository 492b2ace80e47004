package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
	"github.com/DoyleJ11/bazinga-client/internal/store"
)

var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrDialFailed     = errors.New("could not connect to game server")
)

type Msg interface{ isSessionMsg() }

// FromServer carries one decoded event and the frame it came from.
type FromServer struct {
	Event engine.Event
	Frame []byte
}

func (FromServer) isSessionMsg() {}

type Subscribe struct {
	ID     string
	Outbox chan Snapshot // receives the current snapshot, then one per change
}

func (Subscribe) isSessionMsg() {}

type Unsubscribe struct{ ID string }

func (Unsubscribe) isSessionMsg() {}

type StartGame struct {
	Theme        string
	NumQuestions int
	Reply        chan error
}

func (StartGame) isSessionMsg() {}

type SubmitAnswer struct {
	Text  string
	Reply chan error
}

func (SubmitAnswer) isSessionMsg() {}

type SubmitVote struct {
	AnswerID int
	Reply    chan error
}

func (SubmitVote) isSessionMsg() {}

// Reset is the play-again request from the presentation layer.
type Reset struct{ Reply chan error }

func (Reset) isSessionMsg() {}

type GetState struct{ Reply chan Snapshot }

func (GetState) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

type connLost struct{ Err error }

func (connLost) isSessionMsg() {}

// Snapshot is what observers see. State must be treated as read-only.
type Snapshot struct {
	Version int
	State   engine.State
	Notice  string // set for non-fatal server errors
	Closed  bool
}

type Conn interface {
	Sender
	Run(ctx context.Context, handle func(frame []byte)) error
	Close() error
}

type Journal interface {
	Append(ctx context.Context, e store.Entry) error
}

type Config struct {
	OutboxSize int
	Logger     *zap.Logger
	Journal    Journal
	OnClose    func() // runs once after the session is torn down

	// Roster seeds Players from the join handshake. The first player_update
	// replaces it.
	Roster []engine.Player
}

// Session owns one live connection and the state it feeds. A single goroutine
// applies every event and command, so the state needs no locking.
type Session struct {
	id      engine.Identity
	inbox   chan Msg
	conn    Conn
	emit    *Emitter
	state   engine.State
	version int
	clients map[string]chan Snapshot
	log     *zap.Logger
	journal Journal
	cfg     Config

	ctx        context.Context
	cancel     context.CancelFunc
	readerDone chan struct{}
	done       chan struct{}
	startOnce  sync.Once
	lostErr    error
	journalErr error
	closeErr   error
	final      Snapshot
}

// New wires a session to an already established connection without starting it.
func New(parent context.Context, id engine.Identity, conn Conn, cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 16
	}
	log := cfg.Logger.With(zap.String("room", id.RoomCode()), zap.Int("player", id.PlayerID()))
	ctx, cancel := context.WithCancel(parent)

	state := engine.NewState()
	if len(cfg.Roster) > 0 {
		state.Players = slices.Clone(cfg.Roster)
	}

	return &Session{
		id:         id,
		inbox:      make(chan Msg, 64),
		conn:       conn,
		emit:       NewEmitter(id, conn, log),
		state:      state,
		clients:    make(map[string]chan Snapshot),
		log:        log,
		journal:    cfg.Journal,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the reader and the dispatch loop.
func (s *Session) Start() error {
	started := false
	s.startOnce.Do(func() {
		started = true
		go s.read()
		go s.loop()
	})
	if !started {
		return ErrAlreadyStarted
	}
	return nil
}

// Dialer opens the connection for an identity.
type Dialer func(ctx context.Context, id engine.Identity) (Conn, error)

// Open dials and starts a session. The context bounds only the dial; the session
// lives until Close or connection loss.
func Open(ctx context.Context, id engine.Identity, dial Dialer, cfg Config) (*Session, error) {
	if !id.Known() {
		return nil, ErrIdentityUnknown
	}
	conn, err := dial(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%d: %w", ErrDialFailed, id.RoomCode(), id.PlayerID(), err)
	}
	s := New(context.WithoutCancel(ctx), id, conn, cfg)
	if err := s.Start(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) loop() {
	defer s.teardown()
	s.recordSeed()

	for {
		select {
		case <-s.ctx.Done():
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case FromServer:
				s.dispatch(msg)

			case Subscribe:
				s.clients[msg.ID] = msg.Outbox
				msg.Outbox <- s.snapshot()

			case Unsubscribe:
				if ch, ok := s.clients[msg.ID]; ok {
					close(ch)
					delete(s.clients, msg.ID)
				}

			case StartGame:
				msg.Reply <- s.emit.StartGame(s.ctx, msg.Theme, msg.NumQuestions)

			case SubmitAnswer:
				err := s.emit.SubmitAnswer(s.ctx, s.state, msg.Text)
				if err == nil && s.state.LastError != "" {
					s.state = engine.ClearLastError(s.state)
					s.version++
					s.broadcast(s.snapshot())
				}
				msg.Reply <- err

			case SubmitVote:
				msg.Reply <- s.emit.SubmitVote(s.ctx, msg.AnswerID)

			case Reset:
				next, err := engine.Reset(s.state)
				if err == nil {
					s.state = next
					s.version++
					s.broadcast(s.snapshot())
				}
				msg.Reply <- err

			case GetState:
				msg.Reply <- s.snapshot()

			case connLost:
				s.lostErr = msg.Err
				if msg.Err != nil {
					s.log.Warn("connection lost", zap.Error(msg.Err))
				} else {
					s.log.Info("connection closed by server")
				}
				return

			case Shutdown:
				return
			}
		}
	}
}

// teardown runs on every exit path of the loop: explicit close, connection loss
// or parent cancellation.
func (s *Session) teardown() {
	s.cancel()
	s.closeErr = multierr.Combine(s.conn.Close(), s.journalErr)
	<-s.readerDone

	s.final = s.snapshot()
	s.final.Closed = true
	for id, ch := range s.clients {
		select {
		case ch <- s.final:
		default:
		}
		close(ch)
		delete(s.clients, id)
	}

	close(s.done)
	if s.cfg.OnClose != nil {
		s.cfg.OnClose()
	}
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{Version: s.version, State: s.state}
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		select {
		case ch <- snap:
			// ok
		default:
			// Observer is slow/full - drop it.
			s.log.Debug("dropping slow subscriber", zap.String("subscriber", id))
			close(ch)
			delete(s.clients, id)
		}
	}
}

// Inbox exposes the loop's inbox so tests and the hub can post messages directly.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) Identity() engine.Identity { return s.id }

func (s *Session) Done() <-chan struct{} { return s.done }

// Err reports why the connection ended; nil while open or after a clean close.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.lostErr
	default:
		return nil
	}
}

// Close terminates the session and always closes its connection. The error
// combines the connection close with any journal failures.
func (s *Session) Close() error {
	select {
	case s.inbox <- Shutdown{}:
	case <-s.done:
	}
	<-s.done
	return s.closeErr
}

func (s *Session) post(ctx context.Context, m Msg) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.inbox <- m:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, s *Session, reply chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		// The loop may have answered just before shutting down.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, ErrClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (s *Session) command(ctx context.Context, m Msg, reply chan error) error {
	if err := s.post(ctx, m); err != nil {
		return err
	}
	err, waitErr := await(ctx, s, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (s *Session) StartGame(ctx context.Context, theme string, numQuestions int) error {
	reply := make(chan error, 1)
	return s.command(ctx, StartGame{Theme: theme, NumQuestions: numQuestions, Reply: reply}, reply)
}

func (s *Session) SubmitAnswer(ctx context.Context, text string) error {
	reply := make(chan error, 1)
	return s.command(ctx, SubmitAnswer{Text: text, Reply: reply}, reply)
}

func (s *Session) SubmitVote(ctx context.Context, answerID int) error {
	reply := make(chan error, 1)
	return s.command(ctx, SubmitVote{AnswerID: answerID, Reply: reply}, reply)
}

func (s *Session) Reset(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.command(ctx, Reset{Reply: reply}, reply)
}

// Snapshot returns the current state. After the session ends it returns the
// final state marked Closed.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := s.post(ctx, GetState{Reply: reply}); err != nil {
		if errors.Is(err, ErrClosed) {
			return s.final, nil
		}
		return Snapshot{}, err
	}
	snap, err := await(ctx, s, reply)
	if errors.Is(err, ErrClosed) {
		return s.final, nil
	}
	return snap, err
}

// Subscribe registers an observer. The returned channel is closed when the
// session ends or the observer falls behind.
func (s *Session) Subscribe(ctx context.Context) (string, <-chan Snapshot, error) {
	id := uuid.NewString()
	out := make(chan Snapshot, s.cfg.OutboxSize)
	if err := s.post(ctx, Subscribe{ID: id, Outbox: out}); err != nil {
		return "", nil, err
	}
	return id, out, nil
}

func (s *Session) Unsubscribe(ctx context.Context, id string) error {
	return s.post(ctx, Unsubscribe{ID: id})
}
