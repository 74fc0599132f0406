package rules

import (
	"fmt"
	"regexp"
	"strconv"

	"colonies/internal/deck"
	"colonies/internal/domain"
)

type Kind byte

const (
	Play    Kind = 'P'
	Discard Kind = 'D'
)

// Action is a parsed turn: play or discard one card, then draw either blind
// from the deck (Draw == nil) or the named top card of a discard pile.
type Action struct {
	Kind Kind
	Card deck.Card
	Draw *deck.Card
}

var actionPattern = regexp.MustCompile(`^([PD])(\d{1,3}):(\d{1,3})(?:::(\d{1,3}):(\d{1,3}))?$`)

// ParseAction decodes `("P"|"D") suit:rank ("::" suit:rank)?` against the layout.
func ParseAction(l deck.Layout, s string) (Action, error) {
	m := actionPattern.FindStringSubmatch(s)
	if m == nil {
		return Action{}, fmt.Errorf("%w: %q", domain.ErrMalformedAction, s)
	}
	a := Action{
		Kind: Kind(m[1][0]),
		Card: deck.Card{Suit: atoi(m[2]), Rank: atoi(m[3])},
	}
	if !l.Contains(a.Card) {
		return Action{}, fmt.Errorf("%w: no card %s", domain.ErrMalformedAction, a.Card)
	}
	if m[4] != "" {
		draw := deck.Card{Suit: atoi(m[4]), Rank: atoi(m[5])}
		if !l.Contains(draw) {
			return Action{}, fmt.Errorf("%w: no card %s", domain.ErrMalformedAction, draw)
		}
		a.Draw = &draw
	}
	return a, nil
}

// String returns the canonical action encoding.
func (a Action) String() string {
	s := string(a.Kind) + a.Card.String()
	if a.Draw != nil {
		s += "::" + a.Draw.String()
	}
	return s
}

func PlayAction(c deck.Card) Action    { return Action{Kind: Play, Card: c} }
func DiscardAction(c deck.Card) Action { return Action{Kind: Discard, Card: c} }

// DrawingFrom returns a copy of a that draws the given discard-pile top.
func (a Action) DrawingFrom(c deck.Card) Action {
	a.Draw = &c
	return a
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
