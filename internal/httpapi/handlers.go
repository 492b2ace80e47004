package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
	"github.com/DoyleJ11/bazinga-client/internal/hub"
	"github.com/DoyleJ11/bazinga-client/internal/rooms"
	"github.com/DoyleJ11/bazinga-client/internal/session"
	"github.com/DoyleJ11/bazinga-client/internal/store"
	"github.com/DoyleJ11/bazinga-client/internal/types"
	"github.com/DoyleJ11/bazinga-client/internal/view"
)

// Local command tags, next to the wire ones in types.
const (
	CmdNextQuestion = "NEXT_QUESTION"
	CmdReset        = "RESET"
)

// Rooms is the part of the game server reached over plain HTTP.
type Rooms interface {
	CreateRoom(ctx context.Context, name, username, password string) (rooms.Room, error)
	JoinRoom(ctx context.Context, roomCode, username, password string) (rooms.Room, error)
	Themes(ctx context.Context) ([]string, error)
	NextQuestion(ctx context.Context, roomCode string, playerID int) error
}

// Nickname bounds, counted in characters after trimming.
const (
	minUsernameLen = 2
	maxUsernameLen = 15
)

type Handler struct {
	hub      *hub.Hub
	rooms    Rooms
	dial     session.Dialer
	sessions session.Config
	journal  store.Journal // nil when the session journal cannot be read back
	log      *zap.Logger
}

func New(h *hub.Hub, r Rooms, dial session.Dialer, cfg session.Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	j, _ := cfg.Journal.(store.Journal)
	return &Handler{hub: h, rooms: r, dial: dial, sessions: cfg, journal: j, log: log}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Themes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.rooms.Themes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, themes)
}

type openRequest struct {
	Mode     string `json:"mode"` // create | join
	RoomCode string `json:"room_code"`
	RoomName string `json:"room_name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateSession runs the join handshake, then opens the live session for the
// resulting identity.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if n := utf8.RuneCountInString(req.Username); n < minUsernameLen || n > maxUsernameLen {
		h.fail(w, r, fmt.Errorf("%w: username must be %d to %d characters", ErrBadRequest, minUsernameLen, maxUsernameLen))
		return
	}
	req.RoomCode = strings.ToUpper(strings.TrimSpace(req.RoomCode))

	var (
		room rooms.Room
		err  error
	)
	switch req.Mode {
	case "create":
		name := req.RoomName
		if name == "" {
			name = req.Username + "'s Room"
		}
		room, err = h.rooms.CreateRoom(r.Context(), name, req.Username, req.Password)
	case "join":
		if req.RoomCode == "" {
			h.fail(w, r, fmt.Errorf("%w: room_code is required to join", ErrBadRequest))
			return
		}
		room, err = h.rooms.JoinRoom(r.Context(), req.RoomCode, req.Username, req.Password)
	default:
		err = fmt.Errorf("%w: mode must be create or join", ErrBadRequest)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	id, err := room.Identity(req.Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	cfg := h.sessions
	cfg.Roster = room.Roster()

	key := hub.Key{RoomCode: id.RoomCode(), PlayerID: id.PlayerID()}
	s, err := h.hub.Open(r.Context(), key, func(ctx context.Context) (*session.Session, error) {
		return session.Open(ctx, id, h.dial, cfg)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	snap, err := s.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.log.Info("session ready", zap.Stringer("key", key), zap.Bool("host", id.IsHost()))
	writeJSON(w, http.StatusCreated, viewOf(s, snap))
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	keys, err := h.hub.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	type entry struct {
		RoomCode string `json:"room_code"`
		PlayerID int    `json:"player_id"`
	}
	out := make([]entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, entry{RoomCode: k.RoomCode, PlayerID: k.PlayerID})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.lookup(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := s.Snapshot(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(s, snap))
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.lookup(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := s.Close(); err != nil {
		h.log.Warn("session close", zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// Command returns a handler running one command against the addressed session.
// The request body is the command payload.
func (h *Handler) Command(cmd string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.lookup(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		if err := h.run(r.Context(), s, cmd, payload); err != nil {
			h.fail(w, r, err)
			return
		}
		snap, err := s.Snapshot(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, viewOf(s, snap))
	}
}

// run executes a command tag with its JSON payload. Shared by the REST
// endpoints and the stream.
func (h *Handler) run(ctx context.Context, s *session.Session, cmd string, payload []byte) error {
	switch cmd {
	case types.CmdStartGame:
		var p types.StartGamePayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		return s.StartGame(ctx, p.Theme, p.NumQuestions)

	case types.CmdSubmitAnswer:
		var p types.SubmitAnswerPayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		return s.SubmitAnswer(ctx, p.AnswerText)

	case types.CmdSubmitVote:
		var p types.SubmitVotePayload
		if err := decodePayload(payload, &p); err != nil {
			return err
		}
		return s.SubmitVote(ctx, p.AnswerID)

	case CmdNextQuestion:
		id := s.Identity()
		return h.rooms.NextQuestion(ctx, id.RoomCode(), id.PlayerID())

	case CmdReset:
		return s.Reset(ctx)
	}
	return fmt.Errorf("%w: unknown command %q", ErrBadRequest, cmd)
}

type journalEntry struct {
	Version   int             `json:"version"`
	Tag       string          `json:"tag"`
	Frame     json.RawMessage `json:"frame"`
	CreatedAt time.Time       `json:"created_at"`
}

type journalResponse struct {
	Entries []journalEntry `json:"entries"`
	Replay  view.View      `json:"replay"`
}

// Journal returns the frames recorded for a session and the view they replay
// to. It keeps answering after the session closed, for as long as the journal
// holds the entries.
func (h *Handler) Journal(w http.ResponseWriter, r *http.Request) {
	key, err := keyOf(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if h.journal == nil {
		h.fail(w, r, fmt.Errorf("%w: journal is not readable", ErrNoJournal))
		return
	}
	entries, err := h.journal.Load(r.Context(), key.RoomCode, key.PlayerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(entries) == 0 {
		h.fail(w, r, fmt.Errorf("%w: %s", ErrNoJournal, key))
		return
	}

	// The owner is only known while the session is open.
	id := engine.NewIdentity(key.RoomCode, key.PlayerID, 0)
	if s, err := h.hub.Get(r.Context(), key); err == nil {
		id = s.Identity()
	}
	state, version := store.ReplayEntries(key.PlayerID, entries)

	resp := journalResponse{
		Entries: make([]journalEntry, 0, len(entries)),
		Replay:  view.Build(id, version, state),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, journalEntry{Version: e.Version, Tag: e.Tag, Frame: e.Frame, CreatedAt: e.CreatedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

func keyOf(r *http.Request) (hub.Key, error) {
	code := chi.URLParam(r, "code")
	player, err := strconv.Atoi(chi.URLParam(r, "player"))
	if err != nil || code == "" {
		return hub.Key{}, fmt.Errorf("%w: session is addressed by room code and numeric player id", ErrBadRequest)
	}
	return hub.Key{RoomCode: code, PlayerID: player}, nil
}

func (h *Handler) lookup(r *http.Request) (*session.Session, error) {
	key, err := keyOf(r)
	if err != nil {
		return nil, err
	}
	return h.hub.Get(r.Context(), key)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeError(w, err)
}

func viewOf(s *session.Session, snap session.Snapshot) view.View {
	v := view.Build(s.Identity(), snap.Version, snap.State)
	v.Notice = snap.Notice
	v.Closed = snap.Closed
	return v
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// decodePayload accepts an empty payload as the zero value.
func decodePayload(payload []byte, v any) error {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}
