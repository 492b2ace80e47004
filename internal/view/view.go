// Package view derives presentation-ready values from session state. Nothing here
// mutates the state it reads.
package view

import (
	"cmp"
	"slices"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
)

// SortedRoster orders players by score, highest first. Ties keep snapshot order.
func SortedRoster(players []engine.Player) []engine.Player {
	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b engine.Player) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return sorted
}

// HasActed is the per-player round indicator: answered while answering, voted
// while voting or after the votes are counted.
func HasActed(s engine.State, playerID int) bool {
	switch s.Phase {
	case engine.PhaseAnswering:
		return s.AnsweredPlayerIDs[playerID]
	case engine.PhaseVoting, engine.PhaseVoted:
		return s.VotedPlayerIDs[playerID]
	}
	return false
}

func HasAnswered(s engine.State, playerID int) bool {
	return s.Phase == engine.PhaseAnswering && s.AnsweredPlayerIDs[playerID]
}

func HasVoted(s engine.State, playerID int) bool {
	return (s.Phase == engine.PhaseVoting || s.Phase == engine.PhaseVoted) && s.VotedPlayerIDs[playerID]
}

func Winner(leaderboard []engine.Player) (engine.Player, bool) {
	if len(leaderboard) == 0 {
		return engine.Player{}, false
	}
	return SortedRoster(leaderboard)[0], true
}

type RosterEntry struct {
	engine.Player
	HasActed bool `json:"has_acted"`
	IsSelf   bool `json:"is_self"`
}

type Option struct {
	engine.AnswerOption
	IsOwn bool `json:"is_own"`
}

type Result struct {
	engine.RoundResult
	IsTrueAnswer bool `json:"is_true_answer"`
}

type View struct {
	Version       int                 `json:"version"`
	RoomCode      string              `json:"room_code"`
	PlayerID      int                 `json:"player_id"`
	IsHost        bool                `json:"is_host"`
	Phase         engine.Phase        `json:"phase"`
	Roster        []RosterEntry       `json:"roster"`
	InRoster      bool                `json:"in_roster"`
	HasAnswered   bool                `json:"has_answered"`
	HasVoted      bool                `json:"has_voted"`
	Question      *engine.Question    `json:"question"`
	AnswerOptions []Option            `json:"answer_options"`
	RoundResults  []Result            `json:"round_results"`
	VoteOutcome   *engine.VoteOutcome `json:"vote_outcome"`
	Leaderboard   []engine.Player     `json:"leaderboard"`
	Winner        *engine.Player      `json:"winner"`
	LastError     string              `json:"last_error"`
	Notice        string              `json:"notice,omitempty"`
	Closed        bool                `json:"closed"`
}

func Build(id engine.Identity, version int, s engine.State) View {
	self := id.PlayerID()
	v := View{
		Version:     version,
		RoomCode:    id.RoomCode(),
		PlayerID:    self,
		IsHost:      id.IsHost(),
		Phase:       s.Phase,
		InRoster:    engine.ContainsPlayer(s.Players, self),
		HasAnswered: HasAnswered(s, self),
		HasVoted:    HasVoted(s, self),
		Question:    s.CurrentQuestion,
		VoteOutcome: s.SelfVoteOutcome,
		Leaderboard: SortedRoster(s.Leaderboard),
		LastError:   s.LastError,
	}

	for _, p := range SortedRoster(s.Players) {
		v.Roster = append(v.Roster, RosterEntry{Player: p, HasActed: HasActed(s, p.ID), IsSelf: p.ID == self})
	}
	for _, r := range s.RoundResults {
		v.RoundResults = append(v.RoundResults, Result{RoundResult: r, IsTrueAnswer: r.IsTrueAnswer()})
	}
	for _, o := range s.AnswerOptions {
		v.AnswerOptions = append(v.AnswerOptions, Option{AnswerOption: o, IsOwn: o.AuthorPlayerID == self})
	}
	if s.Phase == engine.PhaseGameOver {
		if w, ok := Winner(s.Leaderboard); ok {
			v.Winner = &w
		}
	}
	return v
}
