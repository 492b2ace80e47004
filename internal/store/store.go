package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/DoyleJ11/bazinga-client/internal/engine"
	"github.com/DoyleJ11/bazinga-client/internal/types"
)

var ErrDuplicateEntry = errors.New("journal entry already recorded")

// Entry is one applied server frame of one session.
type Entry struct {
	RoomCode  string    `json:"room_code"`
	PlayerID  int       `json:"player_id"`
	Version   int       `json:"version"`
	Tag       string    `json:"tag"`
	Frame     []byte    `json:"frame"`
	CreatedAt time.Time `json:"created_at"`
}

type Journal interface {
	Append(ctx context.Context, e Entry) error
	Load(ctx context.Context, roomCode string, playerID int) ([]Entry, error)
}

type key struct {
	room   string
	player int
}

// DefaultMemorySessions is how many sessions a Memory journal keeps when no
// limit is given.
const DefaultMemorySessions = 64

// Memory keeps the journals of the most recently active sessions. When a new
// session would exceed the limit, the one that appended least recently is dropped.
type Memory struct {
	mu      sync.Mutex
	entries map[key][]Entry
	order   []key // least recently appended first
	max     int
}

func NewMemory(maxSessions int) *Memory {
	if maxSessions <= 0 {
		maxSessions = DefaultMemorySessions
	}
	return &Memory{entries: make(map[key][]Entry), max: maxSessions}
}

func (m *Memory) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{e.RoomCode, e.PlayerID}
	for _, prev := range m.entries[k] {
		if prev.Version == e.Version {
			return fmt.Errorf("%w: %s/%d v%d", ErrDuplicateEntry, e.RoomCode, e.PlayerID, e.Version)
		}
	}
	e.Frame = slices.Clone(e.Frame)
	m.entries[k] = append(m.entries[k], e)
	m.touch(k)
	return nil
}

func (m *Memory) touch(k key) {
	if i := slices.Index(m.order, k); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	m.order = append(m.order, k)
	for len(m.order) > m.max {
		delete(m.entries, m.order[0])
		m.order = m.order[1:]
	}
}

func (m *Memory) Load(_ context.Context, roomCode string, playerID int) ([]Entry, error) {
	m.mu.Lock()
	out := slices.Clone(m.entries[key{roomCode, playerID}])
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Entry) int { return a.Version - b.Version })
	return out, nil
}

// Replay rebuilds the state a session reached from its journal.
func Replay(ctx context.Context, j Journal, roomCode string, playerID int) (engine.State, int, error) {
	entries, err := j.Load(ctx, roomCode, playerID)
	if err != nil {
		return engine.State{}, 0, fmt.Errorf("load %s/%d: %w", roomCode, playerID, err)
	}
	state, version := ReplayEntries(playerID, entries)
	return state, version, nil
}

// ReplayEntries folds loaded entries in order. Entries that no longer decode are
// skipped, the same way the live reader drops them.
func ReplayEntries(playerID int, entries []Entry) (engine.State, int) {
	events := make([]engine.Event, 0, len(entries))
	version := 0
	for _, e := range entries {
		ev, err := types.DecodeEvent(e.Frame)
		if err != nil {
			continue
		}
		events = append(events, ev)
		version = e.Version
	}
	return engine.Reduce(playerID, events), version
}
