package engine

import (
	"errors"
	"reflect"
	"slices"
	"testing"
)

const selfID = 7

func strPtr(s string) *string { return &s }

// phaseRank orders phases along the round cycle.
var phaseRank = map[Phase]int{
	PhaseWaiting:   0,
	PhaseAnswering: 1,
	PhaseVoting:    2,
	PhaseVoted:     3,
	PhaseRoundOver: 4,
	PhaseGameOver:  5,
}

func stateIn(phase Phase) State {
	s := NewState()
	s.Phase = phase
	s.CurrentQuestion = &Question{ID: 1, Text: "old"}
	s.AnsweredPlayerIDs = map[int]bool{1: true, 2: true}
	s.VotedPlayerIDs = map[int]bool{1: true}
	s.AnswerOptions = []AnswerOption{{ID: 10, Text: "a", AuthorPlayerID: selfID}}
	s.RoundResults = []RoundResult{{Text: "x", Author: "A", Points: 1}}
	s.SelfVoteOutcome = &VoteOutcome{Text: "x"}
	s.LastError = "too similar"
	return s
}

func TestScenarioA_PlayerAnsweredAfterNewQuestion(t *testing.T) {
	s := NewState()
	s = Apply(s, selfID, NewQuestion{Question: Question{ID: 1, Text: "Q"}})
	s = Apply(s, selfID, PlayerAnswered{UserID: selfID})

	if s.Phase != PhaseAnswering {
		t.Fatalf("phase: got %v, want %v", s.Phase, PhaseAnswering)
	}
	if !reflect.DeepEqual(s.AnsweredPlayerIDs, map[int]bool{selfID: true}) {
		t.Fatalf("answered: got %v", s.AnsweredPlayerIDs)
	}
	if s.CurrentQuestion == nil || s.CurrentQuestion.Text != "Q" {
		t.Fatalf("question: got %+v", s.CurrentQuestion)
	}
}

func TestScenarioB_StartVoting(t *testing.T) {
	s := Reduce(selfID, []Event{
		NewQuestion{Question: Question{ID: 1, Text: "Q"}},
		PlayerAnswered{UserID: selfID},
		StartVoting{Answers: []AnswerOption{{ID: 10, Text: "a", AuthorPlayerID: 7}}},
	})

	if s.Phase != PhaseVoting {
		t.Fatalf("phase: got %v, want %v", s.Phase, PhaseVoting)
	}
	want := []AnswerOption{{ID: 10, Text: "a", AuthorPlayerID: 7}}
	if !reflect.DeepEqual(s.AnswerOptions, want) {
		t.Fatalf("options: got %+v, want %+v", s.AnswerOptions, want)
	}
}

func TestScenarioC_AllVoteResultsForSelf(t *testing.T) {
	s := stateIn(PhaseVoting)
	s = Apply(s, selfID, AllVoteResults{Results: map[int]VoteOutcome{
		selfID: {Text: "a", IsCorrect: false, FooledBy: strPtr("Sam")},
		3:      {Text: "b", IsCorrect: true},
	}})

	if s.Phase != PhaseVoted {
		t.Fatalf("phase: got %v, want %v", s.Phase, PhaseVoted)
	}
	got := s.SelfVoteOutcome
	if got == nil || got.Text != "a" || got.IsCorrect || got.FooledBy == nil || *got.FooledBy != "Sam" {
		t.Fatalf("self outcome: got %+v", got)
	}
}

func TestAllVoteResults_MissingSelfStillTransitions(t *testing.T) {
	s := NewState()
	s.Phase = PhaseVoting
	s = Apply(s, selfID, AllVoteResults{Results: map[int]VoteOutcome{3: {Text: "b"}}})

	if s.Phase != PhaseVoted {
		t.Fatalf("phase: got %v, want %v", s.Phase, PhaseVoted)
	}
	if s.SelfVoteOutcome != nil {
		t.Fatalf("self outcome: want nil, got %+v", s.SelfVoteOutcome)
	}
}

func TestScenarioD_GameOver(t *testing.T) {
	board := []Player{{ID: 1, Username: "A", Score: 10}, {ID: 2, Username: "B", Score: 20}}
	s := Apply(stateIn(PhaseRoundOver), selfID, GameOver{Leaderboard: board})

	if s.Phase != PhaseGameOver {
		t.Fatalf("phase: got %v, want %v", s.Phase, PhaseGameOver)
	}
	if !reflect.DeepEqual(s.Leaderboard, board) {
		t.Fatalf("leaderboard: got %+v", s.Leaderboard)
	}
}

func TestNewQuestion_ClearsRoundFromAnyPhase(t *testing.T) {
	phases := []Phase{PhaseWaiting, PhaseAnswering, PhaseVoting, PhaseVoted, PhaseRoundOver}

	for _, phase := range phases {
		t.Run(string(phase), func(t *testing.T) {
			s := Apply(stateIn(phase), selfID, NewQuestion{Question: Question{ID: 2, Text: "new"}})

			if s.Phase != PhaseAnswering {
				t.Fatalf("phase: got %v, want %v", s.Phase, PhaseAnswering)
			}
			if len(s.AnsweredPlayerIDs) != 0 || len(s.VotedPlayerIDs) != 0 {
				t.Fatalf("sets not cleared: %v %v", s.AnsweredPlayerIDs, s.VotedPlayerIDs)
			}
			if s.AnswerOptions != nil || s.RoundResults != nil || s.SelfVoteOutcome != nil || s.LastError != "" {
				t.Fatalf("round fields not cleared: %+v", s)
			}
			if s.CurrentQuestion.ID != 2 {
				t.Fatalf("question: got %+v", s.CurrentQuestion)
			}
		})
	}
}

func TestNewQuestion_DropsLastRoundOptions(t *testing.T) {
	s := NewState()
	s = Apply(s, selfID, NewQuestion{Question: Question{ID: 1, Text: "Q1"}})
	s = Apply(s, selfID, StartVoting{Answers: []AnswerOption{{ID: 10, Text: "a", AuthorPlayerID: selfID}}})
	s = Apply(s, selfID, RoundOver{Results: []RoundResult{{Text: "a", Author: "A"}}})
	s = Apply(s, selfID, NewQuestion{Question: Question{ID: 2, Text: "Q2"}})

	if s.Phase != PhaseAnswering {
		t.Fatalf("phase: got %v, want %v", s.Phase, PhaseAnswering)
	}
	if len(s.AnswerOptions) != 0 {
		t.Fatalf("answer options from the last round survived: %+v", s.AnswerOptions)
	}
}

func TestPlayerUpdate_ReplacesRosterWholesale(t *testing.T) {
	s := NewState()
	s = Apply(s, selfID, PlayerUpdate{Players: []Player{{ID: 1, Username: "A"}, {ID: 2, Username: "B"}}})
	s = Apply(s, selfID, PlayerUpdate{Players: []Player{{ID: 2, Username: "B", Score: 3}}})

	want := []Player{{ID: 2, Username: "B", Score: 3}}
	if !reflect.DeepEqual(s.Players, want) {
		t.Fatalf("players: got %+v, want %+v", s.Players, want)
	}
	if s.Phase != PhaseWaiting {
		t.Fatalf("phase changed: %v", s.Phase)
	}
}

func TestApply_TableOfPhaseEffects(t *testing.T) {
	cases := []struct {
		name string
		from Phase
		ev   Event
		want Phase
	}{
		{"game started", PhaseWaiting, GameStarted{}, PhaseAnswering},
		{"player answered keeps phase", PhaseAnswering, PlayerAnswered{UserID: 3}, PhaseAnswering},
		{"start voting", PhaseAnswering, StartVoting{}, PhaseVoting},
		{"player voted keeps phase", PhaseVoting, PlayerVoted{UserID: 3}, PhaseVoting},
		{"round over", PhaseVoted, RoundOver{}, PhaseRoundOver},
		{"new question after round", PhaseRoundOver, NewQuestion{}, PhaseAnswering},
		{"game over after round", PhaseRoundOver, GameOver{}, PhaseGameOver},
		{"duplicate answer keeps phase", PhaseAnswering, DuplicateAnswer{Message: "dup"}, PhaseAnswering},
		{"server error keeps phase", PhaseVoting, ServerError{Message: "boom"}, PhaseVoting},
		{"unknown tag ignored", PhaseVoted, Unknown{EventTag: "confetti"}, PhaseVoted},
		{"player update keeps phase", PhaseRoundOver, PlayerUpdate{}, PhaseRoundOver},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewState()
			s.Phase = tc.from
			got := Apply(s, selfID, tc.ev)
			if got.Phase != tc.want {
				t.Fatalf("got %v, want %v", got.Phase, tc.want)
			}
		})
	}
}

func TestApply_FullGameFollowsRoundCycle(t *testing.T) {
	allowed := map[Phase][]Phase{
		PhaseWaiting:   {PhaseAnswering},
		PhaseAnswering: {PhaseVoting},
		PhaseVoting:    {PhaseVoted},
		PhaseVoted:     {PhaseRoundOver},
		PhaseRoundOver: {PhaseAnswering, PhaseGameOver},
	}
	round := func(qid int) []Event {
		return []Event{
			NewQuestion{Question: Question{ID: qid, Text: "Q"}},
			PlayerAnswered{UserID: selfID},
			PlayerAnswered{UserID: 3},
			StartVoting{Answers: []AnswerOption{{ID: 10, Text: "a", AuthorPlayerID: 3}}},
			PlayerVoted{UserID: selfID},
			PlayerVoted{UserID: 3},
			AllVoteResults{Results: map[int]VoteOutcome{selfID: {Text: "a"}}},
			PlayerUpdate{Players: []Player{{ID: selfID, Username: "me"}, {ID: 3, Username: "Sam", Score: 1}}},
			RoundOver{Results: []RoundResult{{Text: "a", Author: "Sam", Voters: []string{"me"}, Points: 1}}},
		}
	}
	events := []Event{PlayerUpdate{}, GameStarted{}}
	events = append(events, round(1)...)
	events = append(events, round(2)...)
	events = append(events, GameOver{Leaderboard: []Player{{ID: 3, Username: "Sam", Score: 2}}})

	s := NewState()
	for _, ev := range events {
		next := Apply(s, selfID, ev)
		if next.Phase != s.Phase && !slices.Contains(allowed[s.Phase], next.Phase) {
			t.Fatalf("%s moved %s to %s", ev.Tag(), s.Phase, next.Phase)
		}
		if phaseRank[next.Phase] < phaseRank[s.Phase] && next.Phase != PhaseAnswering {
			t.Fatalf("%s regressed %s to %s", ev.Tag(), s.Phase, next.Phase)
		}
		s = next
	}
	if s.Phase != PhaseGameOver {
		t.Fatalf("final phase: got %v", s.Phase)
	}
}

func TestApply_AcceptsEventsOutOfPhase(t *testing.T) {
	// The server is trusted: a new question mid-vote forces the jump back.
	s := stateIn(PhaseVoting)
	s = Apply(s, selfID, NewQuestion{Question: Question{ID: 5, Text: "again"}})
	if s.Phase != PhaseAnswering {
		t.Fatalf("phase: got %v, want %v", s.Phase, PhaseAnswering)
	}
}

func TestDuplicateAnswer_SetsErrorAndPlayerAnsweredClearsIt(t *testing.T) {
	s := stateIn(PhaseAnswering)
	s = Apply(s, selfID, DuplicateAnswer{Message: "Someone already submitted that answer."})
	if s.LastError != "Someone already submitted that answer." {
		t.Fatalf("last error: got %q", s.LastError)
	}

	s = Apply(s, selfID, PlayerAnswered{UserID: selfID})
	if s.LastError != "" {
		t.Fatalf("last error not cleared: %q", s.LastError)
	}
}

func TestApply_DoesNotMutatePreviousState(t *testing.T) {
	before := stateIn(PhaseAnswering)
	answered := before.AnsweredPlayerIDs
	voted := before.VotedPlayerIDs

	_ = Apply(before, selfID, PlayerAnswered{UserID: 99})
	_ = Apply(before, selfID, PlayerVoted{UserID: 99})

	if answered[99] || voted[99] {
		t.Fatalf("previous state sets were mutated: %v %v", answered, voted)
	}
}

func TestReset(t *testing.T) {
	t.Run("from game over keeps roster", func(t *testing.T) {
		s := stateIn(PhaseGameOver)
		s.Players = []Player{{ID: 1, Username: "A", Score: 4}}
		s.Leaderboard = s.Players

		got, err := Reset(s)
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if got.Phase != PhaseWaiting || got.CurrentQuestion != nil || got.Leaderboard != nil {
			t.Fatalf("not reset: %+v", got)
		}
		if len(got.AnsweredPlayerIDs) != 0 || len(got.RoundResults) != 0 || got.LastError != "" {
			t.Fatalf("round fields survived reset: %+v", got)
		}
		if !reflect.DeepEqual(got.Players, s.Players) {
			t.Fatalf("players: got %+v", got.Players)
		}
	})

	t.Run("rejected mid game", func(t *testing.T) {
		s := stateIn(PhaseVoting)
		got, err := Reset(s)
		if !errors.Is(err, ErrResetNotAllowed) {
			t.Fatalf("want ErrResetNotAllowed, got %v", err)
		}
		if got.Phase != PhaseVoting {
			t.Fatalf("state changed on rejected reset: %v", got.Phase)
		}
	})
}

func TestIdentity(t *testing.T) {
	cases := []struct {
		name      string
		id        Identity
		wantHost  bool
		wantKnown bool
	}{
		{"owner", NewIdentity("ABCD", 7, 7), true, true},
		{"guest", NewIdentity("ABCD", 8, 7), false, true},
		{"unknown player", NewIdentity("ABCD", 0, 0), false, false},
		{"missing room", NewIdentity("", 7, 7), true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.id.IsHost() != tc.wantHost {
				t.Fatalf("IsHost: got %v, want %v", tc.id.IsHost(), tc.wantHost)
			}
			if tc.id.Known() != tc.wantKnown {
				t.Fatalf("Known: got %v, want %v", tc.id.Known(), tc.wantKnown)
			}
		})
	}
}
