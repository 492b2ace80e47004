package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
)

func TestSortedRoster_StableByScoreDescending(t *testing.T) {
	players := []engine.Player{
		{ID: 1, Username: "A", Score: 1},
		{ID: 2, Username: "B", Score: 5},
		{ID: 3, Username: "C", Score: 1},
		{ID: 4, Username: "D", Score: 5},
	}

	got := SortedRoster(players)

	ids := []int{}
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int{2, 4, 1, 3}, ids)
	assert.Equal(t, 1, players[0].ID, "input must not be reordered")
}

func TestSortedRoster_FollowsLatestSnapshot(t *testing.T) {
	s := engine.NewState()
	updates := [][]engine.Player{
		{{ID: 1, Username: "A", Score: 9}, {ID: 2, Username: "B", Score: 1}},
		{{ID: 1, Username: "A", Score: 0}},
		{{ID: 2, Username: "B", Score: 4}, {ID: 1, Username: "A", Score: 6}},
	}
	for _, u := range updates {
		s = engine.Apply(s, 1, engine.PlayerUpdate{Players: u})
	}

	assert.Equal(t, []engine.Player{{ID: 1, Username: "A", Score: 6}, {ID: 2, Username: "B", Score: 4}}, SortedRoster(s.Players))
}

func TestHasActed(t *testing.T) {
	s := engine.NewState()
	s.AnsweredPlayerIDs = map[int]bool{1: true}
	s.VotedPlayerIDs = map[int]bool{2: true}

	tests := []struct {
		phase  engine.Phase
		player int
		want   bool
	}{
		{engine.PhaseAnswering, 1, true},
		{engine.PhaseAnswering, 2, false},
		{engine.PhaseVoting, 1, false},
		{engine.PhaseVoting, 2, true},
		{engine.PhaseVoted, 2, true},
		{engine.PhaseRoundOver, 2, false},
		{engine.PhaseWaiting, 1, false},
		{engine.PhaseGameOver, 2, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			s.Phase = tt.phase
			assert.Equal(t, tt.want, HasActed(s, tt.player))
		})
	}
}

func TestLocalFlags(t *testing.T) {
	s := engine.Reduce(7, []engine.Event{
		engine.NewQuestion{Question: engine.Question{ID: 1, Text: "Q"}},
		engine.PlayerAnswered{UserID: 7},
	})
	assert.True(t, HasAnswered(s, 7))
	assert.False(t, HasVoted(s, 7))

	s = engine.Apply(s, 7, engine.StartVoting{Answers: []engine.AnswerOption{{ID: 10, Text: "a", AuthorPlayerID: 7}}})
	assert.False(t, HasAnswered(s, 7))

	s = engine.Apply(s, 7, engine.PlayerVoted{UserID: 7})
	assert.True(t, HasVoted(s, 7))
}

func TestWinner(t *testing.T) {
	_, ok := Winner(nil)
	assert.False(t, ok)

	w, ok := Winner([]engine.Player{{ID: 1, Username: "A", Score: 10}, {ID: 2, Username: "B", Score: 20}})
	require.True(t, ok)
	assert.Equal(t, "B", w.Username)

	w, _ = Winner([]engine.Player{{ID: 1, Username: "A", Score: 20}, {ID: 2, Username: "B", Score: 20}})
	assert.Equal(t, "A", w.Username, "ties go to snapshot order")
}

func TestBuild(t *testing.T) {
	id := engine.NewIdentity("ROOM", 7, 7)
	s := engine.Reduce(7, []engine.Event{
		engine.PlayerUpdate{Players: []engine.Player{{ID: 3, Username: "Sam", Score: 1}, {ID: 7, Username: "me", Score: 2}}},
		engine.GameStarted{},
		engine.NewQuestion{Question: engine.Question{ID: 1, Text: "Q"}},
		engine.PlayerAnswered{UserID: 3},
		engine.StartVoting{Answers: []engine.AnswerOption{{ID: 10, Text: "a", AuthorPlayerID: 7}, {ID: 11, Text: "b"}}},
		engine.PlayerVoted{UserID: 3},
	})

	v := Build(id, 6, s)

	assert.Equal(t, 6, v.Version)
	assert.Equal(t, "ROOM", v.RoomCode)
	assert.True(t, v.IsHost)
	assert.True(t, v.InRoster)
	assert.Equal(t, engine.PhaseVoting, v.Phase)
	require.Len(t, v.Roster, 2)
	assert.Equal(t, 7, v.Roster[0].ID)
	assert.True(t, v.Roster[0].IsSelf)
	assert.False(t, v.Roster[0].HasActed)
	assert.True(t, v.Roster[1].HasActed)
	require.Len(t, v.AnswerOptions, 2)
	assert.True(t, v.AnswerOptions[0].IsOwn)
	assert.False(t, v.AnswerOptions[1].IsOwn)
	assert.Nil(t, v.Winner)
}

func TestBuild_ScenarioDWinner(t *testing.T) {
	s := engine.Apply(engine.NewState(), 1, engine.GameOver{Leaderboard: []engine.Player{
		{ID: 1, Username: "A", Score: 10},
		{ID: 2, Username: "B", Score: 20},
	}})

	v := Build(engine.NewIdentity("ROOM", 1, 2), 1, s)

	assert.Equal(t, engine.PhaseGameOver, v.Phase)
	assert.False(t, v.IsHost)
	require.NotNil(t, v.Winner)
	assert.Equal(t, "B", v.Winner.Username)
	assert.Equal(t, "B", v.Leaderboard[0].Username)
}

func TestBuild_FlagsTrueAnswer(t *testing.T) {
	s := engine.Apply(engine.NewState(), 7, engine.RoundOver{Results: []engine.RoundResult{
		{Text: "paris", Author: engine.TrueAnswerAuthor, Voters: []string{"Sam"}},
		{Text: "lyon", Author: "Sam", Voters: []string{"me"}, Points: 500},
	}})

	v := Build(engine.NewIdentity("ROOM", 7, 7), 1, s)

	require.Len(t, v.RoundResults, 2)
	assert.True(t, v.RoundResults[0].IsTrueAnswer)
	assert.False(t, v.RoundResults[1].IsTrueAnswer)
	assert.Equal(t, 500, v.RoundResults[1].Points)
}
