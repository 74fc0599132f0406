package rules

import (
	"colonies/internal/deck"
	"colonies/internal/domain"
)

const (
	ExpeditionCost      = 20
	LongExpeditionCards = 8
	LongExpeditionBonus = 20
)

// ScoreSuit scores one expedition pile.
func ScoreSuit(l deck.Layout, suit int, pile []deck.Card) domain.SuitScore {
	s := domain.SuitScore{Suit: suit, Cards: len(pile)}
	if len(pile) > 0 {
		s.Cost = -ExpeditionCost
	}
	if len(pile) >= LongExpeditionCards {
		s.Bonus = LongExpeditionBonus
	}
	for _, c := range pile {
		if l.IsWager(c.Rank) {
			s.Wagers++
			continue
		}
		s.Sum += c.Rank
	}
	s.Multiplier = 1 + s.Wagers
	s.Subtotal = s.Sum + s.Cost
	s.Total = s.Subtotal*s.Multiplier + s.Bonus
	return s
}

// ScorePlayer scores every expedition of one player.
func ScorePlayer(l deck.Layout, piles [][]deck.Card) domain.PlayerScore {
	ps := domain.PlayerScore{Suits: make([]domain.SuitScore, 0, len(piles))}
	for suit, pile := range piles {
		s := ScoreSuit(l, suit, pile)
		ps.Suits = append(ps.Suits, s)
		ps.Score += s.Total
	}
	return ps
}

// Score compares both players. The winner is only named when final is set and
// one total is strictly higher.
func Score(l deck.Layout, played [2][][]deck.Card, final bool) domain.Scoring {
	out := domain.Scoring{
		Scores: [2]domain.PlayerScore{ScorePlayer(l, played[0]), ScorePlayer(l, played[1])},
	}
	out.Tied = out.Scores[0].Score == out.Scores[1].Score
	if final && !out.Tied {
		winner := 0
		if out.Scores[1].Score > out.Scores[0].Score {
			winner = 1
		}
		out.Winner = &winner
	}
	return out
}
