package types

import (
	"encoding/json"
	"errors"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
)

var ErrMalformedFrame = errors.New("malformed frame")

const (
	CmdStartGame    = "START_GAME"
	CmdSubmitAnswer = "SUBMIT_ANSWER"
	CmdSubmitVote   = "SUBMIT_VOTE"
)

// ClientMessage is the outgoing command envelope.
type ClientMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type StartGamePayload struct {
	Theme        string `json:"theme"`
	NumQuestions int    `json:"num_questions"`
}

type SubmitAnswerPayload struct {
	QuestionID int    `json:"question_id"`
	AnswerText string `json:"answer_text"`
}

type SubmitVotePayload struct {
	AnswerID int `json:"answer_id"`
}

func StartGame(theme string, numQuestions int) ClientMessage {
	return ClientMessage{Type: CmdStartGame, Payload: StartGamePayload{Theme: theme, NumQuestions: numQuestions}}
}

func SubmitAnswer(questionID int, text string) ClientMessage {
	return ClientMessage{Type: CmdSubmitAnswer, Payload: SubmitAnswerPayload{QuestionID: questionID, AnswerText: text}}
}

func SubmitVote(answerID int) ClientMessage {
	return ClientMessage{Type: CmdSubmitVote, Payload: SubmitVotePayload{AnswerID: answerID}}
}

func Encode(m ClientMessage) ([]byte, error) {
	return json.Marshal(m)
}

// PlayerUpdateFrame renders a roster the way the server sends it.
func PlayerUpdateFrame(players []engine.Player) ([]byte, error) {
	return json.Marshal(ServerMessage{Event: engine.TagPlayerUpdate, Players: players})
}

// ServerMessage is the incoming envelope. Only the fields of the tagged event are set.
type ServerMessage struct {
	Event       string          `json:"event"`
	Players     []engine.Player `json:"players,omitempty"`
	Question    *wireQuestion   `json:"question,omitempty"`
	Answers     []wireAnswer    `json:"answers,omitempty"`
	UserID      *int            `json:"user_id,omitempty"`
	Results     json.RawMessage `json:"results,omitempty"` // object for all_vote_results, list for round_over
	Leaderboard []engine.Player `json:"leaderboard,omitempty"`
	Message     string          `json:"message,omitempty"`
}

type wireQuestion struct {
	ID           int    `json:"id"`
	QuestionText string `json:"question_text"`
	Text         string `json:"text"`
}

type wireAnswer struct {
	ID         int    `json:"id"`
	AnswerText string `json:"answer_text"`
	Text       string `json:"text"`
	PlayerID   *int   `json:"player_id"`
}

type wireVoteOutcome struct {
	Text      string  `json:"text"`
	IsCorrect bool    `json:"is_correct"`
	FooledBy  *string `json:"fooled_by"`
}

type wireRoundResult struct {
	AnswerText string   `json:"answer_text"`
	Text       string   `json:"text"`
	Author     string   `json:"author"`
	Voters     []string `json:"voters"`
	Points     int      `json:"points"`
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
