package deck

import (
	"math/rand/v2"
	"sort"
)

// Piles is the full placement of every card in a game. Index 0 of the deck
// and of every played or discard pile is its top.
type Piles struct {
	Deck      []Card      `json:"deck"`
	Hands     [2][]Card   `json:"hands"`
	Played    [2][][]Card `json:"played"`
	Discarded [][]Card    `json:"discarded"`
}

// Shuffle permutes cards in place with a Fisher-Yates shuffle driven by rng.
func Shuffle(cards []Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// ShuffledDeck returns one uniformly random permutation of the full set.
func (l Layout) ShuffledDeck(rng *rand.Rand) []Card {
	cards := l.FullSet()
	Shuffle(cards, rng)
	return cards
}

// Deal shuffles a fresh deck and hands out 2*HandSize cards alternately,
// starting with seat 0. Played and discard piles start empty.
func (l Layout) Deal(rng *rand.Rand) Piles {
	cards := l.ShuffledDeck(rng)
	p := Piles{
		Hands:     [2][]Card{make([]Card, 0, l.HandSize), make([]Card, 0, l.HandSize)},
		Played:    [2][][]Card{emptyPiles(len(l.Suits)), emptyPiles(len(l.Suits))},
		Discarded: emptyPiles(len(l.Suits)),
	}
	n := 2 * l.HandSize
	for i := 0; i < n; i++ {
		p.Hands[i%2] = append(p.Hands[i%2], cards[i])
	}
	p.Deck = append([]Card{}, cards[n:]...)
	return p
}

func emptyPiles(n int) [][]Card {
	piles := make([][]Card, n)
	for i := range piles {
		piles[i] = []Card{}
	}
	return piles
}

// Clone returns a deep copy that shares no slices with p.
func (p Piles) Clone() Piles {
	out := Piles{
		Deck:      cloneCards(p.Deck),
		Discarded: clonePiles(p.Discarded),
	}
	for i := 0; i < 2; i++ {
		out.Hands[i] = cloneCards(p.Hands[i])
		out.Played[i] = clonePiles(p.Played[i])
	}
	return out
}

// Count is the number of cards across every location.
func (p Piles) Count() int {
	n := len(p.Deck) + len(p.Hands[0]) + len(p.Hands[1])
	for _, piles := range [][][]Card{p.Played[0], p.Played[1], p.Discarded} {
		for _, pile := range piles {
			n += len(pile)
		}
	}
	return n
}

// All returns every card regardless of location, sorted by suit then rank.
func (p Piles) All() []Card {
	all := make([]Card, 0, p.Count())
	all = append(all, p.Deck...)
	all = append(all, p.Hands[0]...)
	all = append(all, p.Hands[1]...)
	for _, piles := range [][][]Card{p.Played[0], p.Played[1], p.Discarded} {
		for _, pile := range piles {
			all = append(all, pile...)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Suit != all[j].Suit {
			return all[i].Suit < all[j].Suit
		}
		return all[i].Rank < all[j].Rank
	})
	return all
}

// Top returns the top card of pile.
func Top(pile []Card) (Card, bool) {
	if len(pile) == 0 {
		return Card{}, false
	}
	return pile[0], true
}

func cloneCards(cards []Card) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	return out
}

func clonePiles(piles [][]Card) [][]Card {
	if piles == nil {
		return nil
	}
	out := make([][]Card, len(piles))
	for i, pile := range piles {
		out[i] = cloneCards(pile)
	}
	return out
}
