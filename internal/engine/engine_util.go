package engine

func NewState() State {
	return State{
		Phase:             PhaseWaiting,
		AnsweredPlayerIDs: map[int]bool{},
		VotedPlayerIDs:    map[int]bool{},
	}
}

func ContainsPlayer(players []Player, id int) bool {
	for _, p := range players {
		if p.ID == id {
			return true
		}
	}
	return false
}
