package types

// Client -> Server, envelope { "type": string, "payload": object }
// START_GAME:
//   theme: string
//   num_questions: number (1..20, enforced by the server)
//
// SUBMIT_ANSWER:
//   question_id: number
//   answer_text: string
//
// SUBMIT_VOTE:
//   answer_id: number
//
// Server -> Client, envelope { "event": string, ...fields }
// player_update:    players: Player[]
// game_started:     game: object (ignored)
// new_question:     question: { id, question_text }
// player_answered:  user_id: number
// start_voting:     answers: { id, answer_text, player_id | null }[]
// player_voted:     user_id: number
// all_vote_results: results: { [playerId]: { text, is_correct, fooled_by | null } }
// round_over:       results: { answer_text, author, voters: string[], points }[]
// game_over:        leaderboard: Player[]
// duplicate_answer: message: string
// error:            message: string
