package repo

import (
	"encoding/json"
	"errors"
	"fmt"

	"colonies/internal/deck"
	"colonies/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the stored turn no longer matches the expected one.
	ErrConflict = errors.New("conflict")
	ErrExists   = errors.New("already exists")
)

// gameRow is the column form of a game shared by both drivers. Chats live in
// their own table and are attached after the read.
type gameRow struct {
	Key          string
	ID           string
	CreatorUUID  string
	OpponentUUID string
	FirstPlayer  int
	Turn         int
	Players      []byte
	Turns        []byte
	Cards        []byte
	Settings     []byte
	Scoring      []byte
	CreatedAt    string
	UpdatedAt    string
	CompletedAt  *string
}

func encodeGame(g domain.Game) (gameRow, error) {
	row := gameRow{
		Key:          g.Key,
		ID:           g.ID,
		CreatorUUID:  g.Players[0].UUID,
		OpponentUUID: g.Players[1].UUID,
		FirstPlayer:  g.FirstPlayer,
		Turn:         g.Turn,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
		CompletedAt:  g.CompletedAt,
	}
	turns := g.Turns
	if turns == nil {
		turns = []domain.Turn{}
	}
	var err error
	if row.Players, err = json.Marshal(g.Players); err != nil {
		return row, fmt.Errorf("marshal players: %w", err)
	}
	if row.Turns, err = json.Marshal(turns); err != nil {
		return row, fmt.Errorf("marshal turns: %w", err)
	}
	if row.Cards, err = json.Marshal(g.Cards); err != nil {
		return row, fmt.Errorf("marshal cards: %w", err)
	}
	if row.Settings, err = json.Marshal(g.Settings); err != nil {
		return row, fmt.Errorf("marshal settings: %w", err)
	}
	if g.Scoring != nil {
		if row.Scoring, err = json.Marshal(g.Scoring); err != nil {
			return row, fmt.Errorf("marshal scoring: %w", err)
		}
	}
	return row, nil
}

func (row gameRow) decode() (domain.Game, error) {
	g := domain.Game{
		ID:          row.ID,
		Key:         row.Key,
		FirstPlayer: row.FirstPlayer,
		Turn:        row.Turn,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		CompletedAt: row.CompletedAt,
		Chats:       []domain.Chat{},
	}
	if err := json.Unmarshal(row.Players, &g.Players); err != nil {
		return g, fmt.Errorf("game %s players: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Turns, &g.Turns); err != nil {
		return g, fmt.Errorf("game %s turns: %w", row.ID, err)
	}
	var cards deck.Piles
	if err := json.Unmarshal(row.Cards, &cards); err != nil {
		return g, fmt.Errorf("game %s cards: %w", row.ID, err)
	}
	g.Cards = cards
	if err := json.Unmarshal(row.Settings, &g.Settings); err != nil {
		return g, fmt.Errorf("game %s settings: %w", row.ID, err)
	}
	if len(row.Scoring) > 0 {
		var s domain.Scoring
		if err := json.Unmarshal(row.Scoring, &s); err != nil {
			return g, fmt.Errorf("game %s scoring: %w", row.ID, err)
		}
		g.Scoring = &s
	}
	return g, nil
}
