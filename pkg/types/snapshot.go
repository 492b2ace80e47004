package types

// Session view served by GET /sessions/{code}/{player}:
//   version: number
//   room_code: string
//   player_id: number
//   is_host: boolean
//   phase: "waiting" | "answering" | "voting" | "voted" | "round_over" | "game_over"
//   roster: { id, username, score, has_acted, is_self }[] // score descending
//   has_answered: boolean
//   has_voted: boolean
//   question: { id, text } | null
//   answer_options: { id, text, author_player_id, is_own }[]
//   round_results: { text, author, voters, points, is_true_answer }[]
//   vote_outcome: { text, is_correct, fooled_by? } | null
//   leaderboard: Player[]
//   winner: Player | null // game_over only
//   last_error: string
//   notice?: string // non-fatal server error, only on the snapshot that carried it
//   closed: boolean
