package deck

import "sort"

// ValidPlay reports whether c may be laid on an expedition pile whose top is
// pile[0]. A wager card never goes on a numbered card, and numbered cards must
// not descend. Anything may follow a wager card.
func (l Layout) ValidPlay(c Card, pile []Card) bool {
	top, ok := Top(pile)
	if !ok || l.IsWager(top.Rank) {
		return true
	}
	return !l.IsWager(c.Rank) && c.Rank >= top.Rank
}

// SortForDisplay orders a hand by suit, wager cards first within a suit, then
// ascending rank. The input is not modified.
func (l Layout) SortForDisplay(hand []Card) []Card {
	out := cloneCards(hand)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Suit != b.Suit {
			return a.Suit < b.Suit
		}
		aw, bw := l.IsWager(a.Rank), l.IsWager(b.Rank)
		if aw != bw {
			return aw
		}
		return a.Rank < b.Rank
	})
	return out
}
