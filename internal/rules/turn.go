package rules

import (
	"fmt"
	"math/rand/v2"
	"time"

	"colonies/internal/deck"
	"colonies/internal/domain"
)

// IsMyTurn reports whether seat moves on the given turn. The first player
// takes even turns.
func IsMyTurn(turn, firstPlayer, seat int) bool {
	want := 1
	if seat == firstPlayer {
		want = 0
	}
	return turn%2 == want
}

// PlayerTurn returns the seat that moves on the given turn.
func PlayerTurn(turn, firstPlayer int) int {
	if turn%2 == 0 {
		return firstPlayer
	}
	return 1 - firstPlayer
}

// NewGame deals a fresh game and picks the first player uniformly at random.
func NewGame(l deck.Layout, rng *rand.Rand, id, key string, players [2]domain.Player, settings domain.Settings, now time.Time) domain.Game {
	first := rng.IntN(2)
	players[0].First = first == 0
	players[1].First = first == 1
	ts := domain.Timestamp(now)
	return domain.Game{
		ID:          id,
		Key:         key,
		Players:     players,
		FirstPlayer: first,
		Turn:        0,
		Turns:       []domain.Turn{},
		Cards:       l.Deal(rng),
		Settings:    settings,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
}

// Move is one submission: the acting seat, the turn number the player saw,
// and what they want to do.
type Move struct {
	Seat   int
	Turn   int
	Action Action
}

// Outcome is the state after an accepted move.
type Outcome struct {
	Game      domain.Game
	Drawn     deck.Card
	Completed bool
}

// Apply validates m against g and returns the successor state. g is never
// modified; a rejected move leaves no trace.
func Apply(l deck.Layout, g domain.Game, m Move, now time.Time) (Outcome, error) {
	if g.CompletedAt != nil {
		return Outcome{}, domain.ErrGameAlreadyCompleted
	}
	if m.Turn != g.Turn {
		return Outcome{}, fmt.Errorf("%w: expected %d, got %d", domain.ErrStaleTurnNumber, g.Turn, m.Turn)
	}
	if m.Seat != 0 && m.Seat != 1 {
		return Outcome{}, domain.ErrNotYourTurn
	}
	if !IsMyTurn(g.Turn, g.FirstPlayer, m.Seat) {
		return Outcome{}, domain.ErrNotYourTurn
	}

	cards := g.Cards.Clone()
	a := m.Action
	hand := cards.Hands[m.Seat]
	idx := deck.IndexOf(hand, a.Card)
	if idx < 0 {
		return Outcome{}, fmt.Errorf("%w: %s", domain.ErrCardNotInHand, a.Card)
	}
	cards.Hands[m.Seat] = append(hand[:idx], hand[idx+1:]...)

	switch a.Kind {
	case Play:
		pile := cards.Played[m.Seat][a.Card.Suit]
		if !l.ValidPlay(a.Card, pile) {
			return Outcome{}, fmt.Errorf("%w: %s", domain.ErrIllegalPlayDestination, a.Card)
		}
		cards.Played[m.Seat][a.Card.Suit] = prepend(pile, a.Card)
	case Discard:
		cards.Discarded[a.Card.Suit] = prepend(cards.Discarded[a.Card.Suit], a.Card)
	default:
		return Outcome{}, domain.ErrMalformedAction
	}

	var drawn deck.Card
	if a.Draw != nil {
		pile := cards.Discarded[a.Draw.Suit]
		top, ok := deck.Top(pile)
		if !ok || top != *a.Draw {
			return Outcome{}, fmt.Errorf("%w: %s", domain.ErrIllegalDrawTarget, *a.Draw)
		}
		drawn = top
		cards.Discarded[a.Draw.Suit] = pile[1:]
	} else {
		top, ok := deck.Top(cards.Deck)
		if !ok {
			return Outcome{}, domain.ErrGameAlreadyCompleted
		}
		drawn = top
		cards.Deck = cards.Deck[1:]
	}
	cards.Hands[m.Seat] = append(cards.Hands[m.Seat], drawn)

	ts := domain.Timestamp(now)
	next := g
	next.Cards = cards
	next.Turns = append(append(make([]domain.Turn, 0, len(g.Turns)+1), g.Turns...), domain.Turn{
		Player:    m.Seat,
		Action:    a.String(),
		CreatedAt: ts,
	})
	next.Turn = g.Turn + 1
	next.UpdatedAt = ts

	out := Outcome{Drawn: drawn}
	if len(cards.Deck) == 0 {
		scoring := Score(l, cards.Played, true)
		next.Scoring = &scoring
		next.CompletedAt = &ts
		out.Completed = true
	}
	out.Game = next
	return out, nil
}

func prepend(pile []deck.Card, c deck.Card) []deck.Card {
	return append([]deck.Card{c}, pile...)
}
