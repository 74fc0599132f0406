package deck

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	DefaultRanks    = 12
	DefaultHandSize = 8
)

// DefaultSuits are the expedition names in suit-index order.
var DefaultSuits = []string{"agriculture", "medicine", "military", "politics", "science"}

// DefaultWagerRanks are the multiplier ranks: the two lowest and the highest.
var DefaultWagerRanks = []int{0, 1, DefaultRanks - 1}

// Layout describes the card set a game is played with.
type Layout struct {
	Suits      []string `json:"suits"`
	Ranks      int      `json:"ranks"`
	WagerRanks []int    `json:"wager_ranks"`
	HandSize   int      `json:"hand_size"`
}

func DefaultLayout() Layout {
	return Layout{
		Suits:      append([]string(nil), DefaultSuits...),
		Ranks:      DefaultRanks,
		WagerRanks: append([]int(nil), DefaultWagerRanks...),
		HandSize:   DefaultHandSize,
	}
}

// Validate ensures the layout can deal a two-player game with a non-empty deck.
func (l Layout) Validate() error {
	if len(l.Suits) == 0 {
		return errors.New("layout requires at least one suit")
	}
	if l.Ranks < 1 {
		return errors.New("layout requires at least one rank")
	}
	for _, r := range l.WagerRanks {
		if r < 0 || r >= l.Ranks {
			return fmt.Errorf("wager rank %d outside 0..%d", r, l.Ranks-1)
		}
	}
	if l.HandSize < 1 {
		return errors.New("hand size must be positive")
	}
	if 2*l.HandSize >= l.Size() {
		return fmt.Errorf("hand size %d leaves no deck for %d cards", l.HandSize, l.Size())
	}
	return nil
}

// Size is the number of cards in the full set.
func (l Layout) Size() int {
	return len(l.Suits) * l.Ranks
}

func (l Layout) IsWager(rank int) bool {
	for _, r := range l.WagerRanks {
		if r == rank {
			return true
		}
	}
	return false
}

// Contains reports whether c belongs to the card set.
func (l Layout) Contains(c Card) bool {
	return c.Suit >= 0 && c.Suit < len(l.Suits) && c.Rank >= 0 && c.Rank < l.Ranks
}

// FullSet returns every card once, ordered by suit then rank.
func (l Layout) FullSet() []Card {
	cards := make([]Card, 0, l.Size())
	for s := range l.Suits {
		for r := 0; r < l.Ranks; r++ {
			cards = append(cards, Card{Suit: s, Rank: r})
		}
	}
	return cards
}

// Label is the display text for a card: "multiplier" for wager ranks.
func (l Layout) Label(c Card) string {
	if l.IsWager(c.Rank) {
		return "multiplier"
	}
	return strconv.Itoa(c.Rank)
}
