package session

import (
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
	"github.com/DoyleJ11/bazinga-client/internal/store"
	"github.com/DoyleJ11/bazinga-client/internal/types"
)

// read pumps frames from the connection into the inbox in arrival order.
// Malformed frames never reach the loop.
func (s *Session) read() {
	defer close(s.readerDone)

	err := s.conn.Run(s.ctx, func(frame []byte) {
		ev, err := types.DecodeEvent(frame)
		if err != nil {
			s.log.Debug("dropping malformed frame", zap.Error(err), zap.ByteString("frame", frame))
			return
		}
		select {
		case s.inbox <- FromServer{Event: ev, Frame: frame}:
		case <-s.ctx.Done():
		}
	})

	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.inbox <- connLost{Err: err}:
	case <-s.ctx.Done():
	}
}

func (s *Session) dispatch(msg FromServer) {
	if u, ok := msg.Event.(engine.Unknown); ok {
		s.log.Debug("ignoring unknown event", zap.String("event", u.EventTag))
		return
	}

	s.state = engine.Apply(s.state, s.id.PlayerID(), msg.Event)
	s.version++
	s.record(msg)

	snap := s.snapshot()
	if se, ok := msg.Event.(engine.ServerError); ok {
		s.log.Info("server error", zap.String("message", se.Message))
		snap.Notice = se.Message
	}
	s.broadcast(snap)
}

// recordSeed journals the handshake roster as version 0, so a replay starts
// from the same players the live state did.
func (s *Session) recordSeed() {
	if s.journal == nil || len(s.state.Players) == 0 {
		return
	}
	frame, err := types.PlayerUpdateFrame(s.state.Players)
	if err != nil {
		s.log.Warn("encode roster seed", zap.Error(err))
		return
	}
	s.record(FromServer{Event: engine.PlayerUpdate{Players: s.state.Players}, Frame: frame})
}

// record appends the applied frame to the journal. A failing journal never
// stops the session; the failures surface from Close.
func (s *Session) record(msg FromServer) {
	if s.journal == nil {
		return
	}
	err := s.journal.Append(s.ctx, store.Entry{
		RoomCode:  s.id.RoomCode(),
		PlayerID:  s.id.PlayerID(),
		Version:   s.version,
		Tag:       msg.Event.Tag(),
		Frame:     msg.Frame,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn("journal append failed", zap.Int("version", s.version), zap.Error(err))
		s.journalErr = multierr.Append(s.journalErr, err)
	}
}
