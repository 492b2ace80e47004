package types

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
)

// DecodeEvent turns one inbound frame into a typed event. Any frame that is not a
// well-formed envelope for its tag yields ErrMalformedFrame; a well-formed envelope
// with an unrecognized tag yields engine.Unknown.
func DecodeEvent(frame []byte) (engine.Event, error) {
	var msg ServerMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("%w: missing event tag", ErrMalformedFrame)
	}

	switch msg.Event {
	case engine.TagPlayerUpdate:
		if msg.Players == nil {
			return nil, missing(msg.Event, "players")
		}
		return engine.PlayerUpdate{Players: msg.Players}, nil

	case engine.TagGameStarted:
		return engine.GameStarted{}, nil

	case engine.TagNewQuestion:
		if msg.Question == nil {
			return nil, missing(msg.Event, "question")
		}
		return engine.NewQuestion{Question: engine.Question{
			ID:   msg.Question.ID,
			Text: firstNonEmpty(msg.Question.QuestionText, msg.Question.Text),
		}}, nil

	case engine.TagPlayerAnswered:
		if msg.UserID == nil {
			return nil, missing(msg.Event, "user_id")
		}
		return engine.PlayerAnswered{UserID: *msg.UserID}, nil

	case engine.TagStartVoting:
		if msg.Answers == nil {
			return nil, missing(msg.Event, "answers")
		}
		answers := make([]engine.AnswerOption, 0, len(msg.Answers))
		for _, a := range msg.Answers {
			opt := engine.AnswerOption{ID: a.ID, Text: firstNonEmpty(a.AnswerText, a.Text)}
			if a.PlayerID != nil {
				opt.AuthorPlayerID = *a.PlayerID
			}
			answers = append(answers, opt)
		}
		return engine.StartVoting{Answers: answers}, nil

	case engine.TagPlayerVoted:
		if msg.UserID == nil {
			return nil, missing(msg.Event, "user_id")
		}
		return engine.PlayerVoted{UserID: *msg.UserID}, nil

	case engine.TagAllVoteResults:
		return decodeVoteResults(msg)

	case engine.TagRoundOver:
		return decodeRoundOver(msg)

	case engine.TagGameOver:
		if msg.Leaderboard == nil {
			return nil, missing(msg.Event, "leaderboard")
		}
		return engine.GameOver{Leaderboard: msg.Leaderboard}, nil

	case engine.TagDuplicateAnswer:
		return engine.DuplicateAnswer{Message: msg.Message}, nil

	case engine.TagError:
		return engine.ServerError{Message: msg.Message}, nil

	default:
		return engine.Unknown{EventTag: msg.Event}, nil
	}
}

func decodeVoteResults(msg ServerMessage) (engine.Event, error) {
	if len(msg.Results) == 0 {
		return nil, missing(msg.Event, "results")
	}
	var raw map[string]wireVoteOutcome
	if err := json.Unmarshal(msg.Results, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s results: %v", ErrMalformedFrame, msg.Event, err)
	}

	results := make(map[int]engine.VoteOutcome, len(raw))
	for key, r := range raw {
		id, err := strconv.Atoi(key)
		if err != nil {
			// Keys are player ids; anything else cannot belong to a player.
			continue
		}
		results[id] = engine.VoteOutcome{Text: r.Text, IsCorrect: r.IsCorrect, FooledBy: r.FooledBy}
	}
	return engine.AllVoteResults{Results: results}, nil
}

func decodeRoundOver(msg ServerMessage) (engine.Event, error) {
	if len(msg.Results) == 0 {
		return nil, missing(msg.Event, "results")
	}
	var raw []wireRoundResult
	if err := json.Unmarshal(msg.Results, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s results: %v", ErrMalformedFrame, msg.Event, err)
	}

	results := make([]engine.RoundResult, 0, len(raw))
	for _, r := range raw {
		results = append(results, engine.RoundResult{
			Text:   firstNonEmpty(r.AnswerText, r.Text),
			Author: r.Author,
			Voters: r.Voters,
			Points: r.Points,
		})
	}
	return engine.RoundOver{Results: results}, nil
}

func missing(tag, field string) error {
	return fmt.Errorf("%w: %s without %s", ErrMalformedFrame, tag, field)
}
