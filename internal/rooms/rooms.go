package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
)

var (
	ErrPlayerNotInRoom = errors.New("player not found in room")
	ErrInvalidBaseURL  = errors.New("invalid api base url")
)

// APIError is a non-2xx answer from the game server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("game server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("game server returned %d: %s", e.StatusCode, e.Detail)
}

type RoomPlayer struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Room is the join handshake result.
type Room struct {
	RoomCode string       `json:"room_code"`
	Name     string       `json:"name"`
	OwnerID  int          `json:"owner_id"`
	Players  []RoomPlayer `json:"players"`
}

// Identity finds the local player by username. The id is fixed from here on.
func (r Room) Identity(username string) (engine.Identity, error) {
	for _, p := range r.Players {
		if p.Username == username {
			return engine.NewIdentity(r.RoomCode, p.ID, r.OwnerID), nil
		}
	}
	return engine.Identity{}, fmt.Errorf("%w: %q in %s", ErrPlayerNotInRoom, username, r.RoomCode)
}

// Roster is the player list as of the handshake. The live connection may miss
// the server's join broadcast, so sessions start from it.
func (r Room) Roster() []engine.Player {
	out := make([]engine.Player, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, engine.Player{ID: p.ID, Username: p.Username, Score: p.Score})
	}
	return out
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createRoomRequest struct {
	Name string      `json:"name"`
	User credentials `json:"user"`
}

// Client talks to the game server's room endpoints.
type Client struct {
	base   *url.URL
	client *http.Client
	log    *zap.Logger
}

func NewClient(baseURL string, client *http.Client, log *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{base: u, client: client, log: log}, nil
}

// BaseURL is the server root the session connection is derived from.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) CreateRoom(ctx context.Context, name, username, password string) (Room, error) {
	var room Room
	body := createRoomRequest{Name: name, User: credentials{Username: username, Password: password}}
	// The trailing slash is part of the route.
	if err := c.do(ctx, http.MethodPost, c.base.JoinPath("rooms").String()+"/", body, &room); err != nil {
		return Room{}, fmt.Errorf("create room: %w", err)
	}
	return room, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomCode, username, password string) (Room, error) {
	var room Room
	endpoint := c.base.JoinPath("rooms", url.PathEscape(roomCode), "join").String()
	if err := c.do(ctx, http.MethodPost, endpoint, credentials{Username: username, Password: password}, &room); err != nil {
		return Room{}, fmt.Errorf("join room %s: %w", roomCode, err)
	}
	return room, nil
}

func (c *Client) Themes(ctx context.Context) ([]string, error) {
	var themes []string
	if err := c.do(ctx, http.MethodGet, c.base.JoinPath("rooms", "themes").String(), nil, &themes); err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	return themes, nil
}

// NextQuestion asks the server to advance the room. Only the host may; the
// server answers 403 otherwise.
func (c *Client) NextQuestion(ctx context.Context, roomCode string, playerID int) error {
	endpoint := c.base.JoinPath("rooms", url.PathEscape(roomCode), "next_question", strconv.Itoa(playerID)).String()
	if err := c.do(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
		return fmt.Errorf("next question %s: %w", roomCode, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.log.Debug("game server request", zap.String("method", method), zap.String("url", endpoint), zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError reads the server's detail field. Validation failures carry a
// list there instead of a string; it is kept as raw JSON.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		apiErr.Detail = http.StatusText(resp.StatusCode)
		return apiErr
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		apiErr.Detail = detail
	} else {
		apiErr.Detail = string(body.Detail)
	}
	return apiErr
}
