package engine

// Event is one server-pushed session event. The set is closed: every variant lives
// in this file and Apply handles each of them.
type Event interface {
	isEvent()
	Tag() string
}

const (
	TagPlayerUpdate    = "player_update"
	TagGameStarted     = "game_started"
	TagNewQuestion     = "new_question"
	TagPlayerAnswered  = "player_answered"
	TagStartVoting     = "start_voting"
	TagPlayerVoted     = "player_voted"
	TagAllVoteResults  = "all_vote_results"
	TagRoundOver       = "round_over"
	TagGameOver        = "game_over"
	TagDuplicateAnswer = "duplicate_answer"
	TagError           = "error"
)

type PlayerUpdate struct{ Players []Player }

type GameStarted struct{}

type NewQuestion struct{ Question Question }

type PlayerAnswered struct{ UserID int }

type StartVoting struct{ Answers []AnswerOption }

type PlayerVoted struct{ UserID int }

// AllVoteResults carries every voter's outcome keyed by player id.
type AllVoteResults struct{ Results map[int]VoteOutcome }

type RoundOver struct{ Results []RoundResult }

type GameOver struct{ Leaderboard []Player }

type DuplicateAnswer struct{ Message string }

type ServerError struct{ Message string }

// Unknown is a well-formed envelope whose tag this client does not understand.
type Unknown struct{ EventTag string }

func (PlayerUpdate) isEvent()    {}
func (GameStarted) isEvent()     {}
func (NewQuestion) isEvent()     {}
func (PlayerAnswered) isEvent()  {}
func (StartVoting) isEvent()     {}
func (PlayerVoted) isEvent()     {}
func (AllVoteResults) isEvent()  {}
func (RoundOver) isEvent()       {}
func (GameOver) isEvent()        {}
func (DuplicateAnswer) isEvent() {}
func (ServerError) isEvent()     {}
func (Unknown) isEvent()         {}

func (PlayerUpdate) Tag() string    { return TagPlayerUpdate }
func (GameStarted) Tag() string     { return TagGameStarted }
func (NewQuestion) Tag() string     { return TagNewQuestion }
func (PlayerAnswered) Tag() string  { return TagPlayerAnswered }
func (StartVoting) Tag() string     { return TagStartVoting }
func (PlayerVoted) Tag() string     { return TagPlayerVoted }
func (AllVoteResults) Tag() string  { return TagAllVoteResults }
func (RoundOver) Tag() string       { return TagRoundOver }
func (GameOver) Tag() string        { return TagGameOver }
func (DuplicateAnswer) Tag() string { return TagDuplicateAnswer }
func (ServerError) Tag() string     { return TagError }
func (u Unknown) Tag() string       { return u.EventTag }
