package engine

import (
	"errors"
	"maps"
	"slices"
)

var ErrResetNotAllowed = errors.New("reset is only allowed after the game is over")

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseAnswering Phase = "answering"
	PhaseVoting    Phase = "voting"
	PhaseVoted     Phase = "voted"
	PhaseRoundOver Phase = "round_over"
	PhaseGameOver  Phase = "game_over"
)

// TrueAnswerAuthor is the author the server puts on the real answer in round results.
const TrueAnswerAuthor = "Bazinga!"

type Player struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
}

type Question struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// AnswerOption is one votable answer. AuthorPlayerID is 0 for the true answer.
type AnswerOption struct {
	ID             int    `json:"id"`
	Text           string `json:"text"`
	AuthorPlayerID int    `json:"author_player_id"`
}

type RoundResult struct {
	Text   string   `json:"text"`
	Author string   `json:"author"`
	Voters []string `json:"voters"`
	Points int      `json:"points"`
}

func (r RoundResult) IsTrueAnswer() bool { return r.Author == TrueAnswerAuthor }

type VoteOutcome struct {
	Text      string  `json:"text"`
	IsCorrect bool    `json:"is_correct"`
	FooledBy  *string `json:"fooled_by,omitempty"`
}

// State is the local view of the server-authoritative session. Values are
// copy-on-write: Apply never mutates the maps or slices of the state it is given,
// so a State handed to an observer stays valid after later events.
type State struct {
	Phase             Phase
	Players           []Player // snapshot order, as sent by the server
	CurrentQuestion   *Question
	AnswerOptions     []AnswerOption
	AnsweredPlayerIDs map[int]bool
	VotedPlayerIDs    map[int]bool
	RoundResults      []RoundResult
	Leaderboard       []Player
	SelfVoteOutcome   *VoteOutcome
	LastError         string
}

// Apply runs one server event through the phase state machine. The server is the
// only arbiter of legality: any event is accepted in any phase.
func Apply(s State, localPlayerID int, ev Event) State {
	next := s

	switch e := ev.(type) {
	case PlayerUpdate:
		next.Players = slices.Clone(e.Players)

	case GameStarted:
		next.Phase = PhaseAnswering

	case NewQuestion:
		q := e.Question
		next.CurrentQuestion = &q
		next.AnsweredPlayerIDs = map[int]bool{}
		next.VotedPlayerIDs = map[int]bool{}
		next.AnswerOptions = nil
		next.RoundResults = nil
		next.SelfVoteOutcome = nil
		next.LastError = ""
		next.Phase = PhaseAnswering

	case PlayerAnswered:
		next.AnsweredPlayerIDs = withID(s.AnsweredPlayerIDs, e.UserID)
		next.LastError = ""

	case StartVoting:
		next.AnswerOptions = slices.Clone(e.Answers)
		next.Phase = PhaseVoting

	case PlayerVoted:
		next.VotedPlayerIDs = withID(s.VotedPlayerIDs, e.UserID)

	case AllVoteResults:
		if outcome, ok := e.Results[localPlayerID]; ok {
			next.SelfVoteOutcome = &outcome
		}
		next.Phase = PhaseVoted

	case RoundOver:
		next.RoundResults = slices.Clone(e.Results)
		next.Phase = PhaseRoundOver

	case GameOver:
		next.Leaderboard = slices.Clone(e.Leaderboard)
		next.Phase = PhaseGameOver

	case DuplicateAnswer:
		next.LastError = e.Message

	case ServerError:
		// Surfaced as a notice by the caller; nothing to record.

	case Unknown:
		// ignored

	default:
		return s
	}

	return next
}

// Reset is the play-again edge. The roster survives; everything scoped to the
// finished game is dropped.
func Reset(s State) (State, error) {
	if s.Phase != PhaseGameOver {
		return s, ErrResetNotAllowed
	}
	next := NewState()
	next.Players = s.Players
	return next, nil
}

// ClearLastError drops the inline answer error after a fresh submission.
func ClearLastError(s State) State {
	s.LastError = ""
	return s
}

// Reduce rebuilds a state by replaying events from the start of a session.
func Reduce(localPlayerID int, events []Event) State {
	s := NewState()
	for _, ev := range events {
		s = Apply(s, localPlayerID, ev)
	}
	return s
}

func withID(set map[int]bool, id int) map[int]bool {
	next := make(map[int]bool, len(set)+1)
	maps.Copy(next, set)
	next[id] = true
	return next
}
