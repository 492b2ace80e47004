package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
	"github.com/DoyleJ11/bazinga-client/internal/types"
	"github.com/DoyleJ11/bazinga-client/internal/ws"
)

var (
	ErrIdentityUnknown = errors.New("local player identity unknown")
	ErrNoQuestion      = errors.New("no current question")
	ErrEmptyAnswer     = errors.New("answer is empty")
	ErrClosed          = ws.ErrClosed
)

type Sender interface {
	Send(ctx context.Context, data []byte) error
}

// Emitter turns player intents into outgoing commands. A failed precondition
// sends nothing. Commands are fire-and-forget: the server's answer, if any,
// arrives later as an ordinary event.
type Emitter struct {
	id     engine.Identity
	sender Sender
	log    *zap.Logger
	lower  cases.Caser
}

func NewEmitter(id engine.Identity, sender Sender, log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{id: id, sender: sender, log: log, lower: cases.Lower(language.Und)}
}

// StartGame has no local precondition; the server checks host rights and the
// requested question count.
func (e *Emitter) StartGame(ctx context.Context, theme string, numQuestions int) error {
	return e.send(ctx, types.StartGame(theme, numQuestions))
}

func (e *Emitter) SubmitAnswer(ctx context.Context, s engine.State, text string) error {
	if !e.id.Known() {
		return ErrIdentityUnknown
	}
	if s.CurrentQuestion == nil {
		return ErrNoQuestion
	}
	answer := e.normalize(text)
	if answer == "" {
		return ErrEmptyAnswer
	}
	return e.send(ctx, types.SubmitAnswer(s.CurrentQuestion.ID, answer))
}

// SubmitVote does no duplicate detection; the server reports rejected votes.
func (e *Emitter) SubmitVote(ctx context.Context, answerID int) error {
	if !e.id.Known() {
		return ErrIdentityUnknown
	}
	return e.send(ctx, types.SubmitVote(answerID))
}

func (e *Emitter) send(ctx context.Context, m types.ClientMessage) error {
	data, err := types.Encode(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Type, err)
	}
	if err := e.sender.Send(ctx, data); err != nil {
		if errors.Is(err, ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("send %s: %w", m.Type, err)
	}
	e.log.Debug("command sent", zap.String("type", m.Type), zap.String("room", e.id.RoomCode()))
	return nil
}

// normalize trims, lowercases and NFC-normalizes a typed answer so the server's
// duplicate check sees the canonical form.
func (e *Emitter) normalize(text string) string {
	return norm.NFC.String(e.lower.String(strings.TrimSpace(text)))
}
