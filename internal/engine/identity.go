package engine

// Identity is fixed at join time and never changes for the session's lifetime.
type Identity struct {
	roomCode string
	playerID int
	ownerID  int
	host     bool
}

func NewIdentity(roomCode string, playerID, ownerID int) Identity {
	return Identity{
		roomCode: roomCode,
		playerID: playerID,
		ownerID:  ownerID,
		host:     playerID != 0 && playerID == ownerID,
	}
}

func (i Identity) RoomCode() string { return i.roomCode }
func (i Identity) PlayerID() int    { return i.playerID }
func (i Identity) OwnerID() int     { return i.ownerID }
func (i Identity) IsHost() bool     { return i.host }

// Known reports whether the join handshake produced a usable local player id.
func (i Identity) Known() bool { return i.playerID > 0 && i.roomCode != "" }
