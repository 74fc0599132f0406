// Package events carries facts about committed games to whoever listens.
// Delivery is best effort: a failed publish never undoes a commit.
package events

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

const (
	TypeTurnCompleted = "turn.completed"
	TypeGameInvite    = "game.invite"
	TypeGameCompleted = "game.completed"
)

// TurnCompleted is emitted after every accepted turn and after game creation.
type TurnCompleted struct {
	GameID          string `json:"game_id"`
	ActingPlayer    string `json:"acting_player"`
	NextPlayer      string `json:"next_player"`
	IsNewGameInvite bool   `json:"is_new_game_invite"`
	Completed       bool   `json:"completed"`
	Turn            int    `json:"turn"`
	Timestamp       string `json:"timestamp"`
}

// Type classifies the fact for filtering.
func (e TurnCompleted) Type() string {
	switch {
	case e.IsNewGameInvite:
		return TypeGameInvite
	case e.Completed:
		return TypeGameCompleted
	default:
		return TypeTurnCompleted
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt TurnCompleted) error
}

// Nop drops every fact.
type Nop struct{}

func (Nop) Publish(context.Context, TurnCompleted) error { return nil }

// Log writes each fact as a structured log line.
type Log struct {
	Logger *logrus.Logger
}

func (p Log) Publish(_ context.Context, evt TurnCompleted) error {
	logger := p.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"event":       evt.Type(),
		"game_id":     evt.GameID,
		"acting":      evt.ActingPlayer,
		"next":        evt.NextPlayer,
		"turn":        evt.Turn,
		"occurred_at": evt.Timestamp,
	}).Info("game event")
	return nil
}

// Multi fans a fact out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt TurnCompleted) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
