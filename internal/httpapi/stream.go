package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const streamWriteTimeout = 3 * time.Second

type streamCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type streamFrame struct {
	Type  string `json:"type"` // "view" | "error"
	View  any    `json:"view,omitempty"`
	Error string `json:"error,omitempty"`
	For   string `json:"for,omitempty"`
}

// Stream upgrades to a websocket that pushes a view on every session change and
// accepts the same commands as the REST endpoints, as {type, payload} frames.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	s, err := h.lookup(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	subID, out, err := s.Subscribe(r.Context())
	if err != nil {
		_ = conn.Close(websocket.StatusGoingAway, "session closed")
		return
	}
	defer func() { _ = s.Unsubscribe(context.Background(), subID) }()

	log := h.log.With(zap.String("room", s.Identity().RoomCode()), zap.Int("player", s.Identity().PlayerID()))

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for snap := range out {
			if err := writeFrame(writeCtx, conn, streamFrame{Type: "view", View: viewOf(s, snap)}); err != nil {
				log.Debug("stream write failed", zap.Error(err))
				return
			}
		}
		// The session ended or this observer fell behind.
		_ = conn.Close(websocket.StatusGoingAway, "session closed")
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				log.Debug("stream read ended", zap.Error(err))
			}
			return
		}

		var cmd streamCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			_ = writeFrame(r.Context(), conn, streamFrame{Type: "error", Error: "bad json"})
			continue
		}
		if err := h.run(r.Context(), s, cmd.Type, cmd.Payload); err != nil {
			_ = writeFrame(r.Context(), conn, streamFrame{Type: "error", Error: err.Error(), For: cmd.Type})
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, f streamFrame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
