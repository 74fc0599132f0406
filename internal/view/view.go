// Package view projects the stored game into what one player may see. The
// opponent's hand never leaves this package.
package view

import (
	"colonies/internal/deck"
	"colonies/internal/domain"
	"colonies/internal/rules"
)

// DefaultNearlyEmpty is the deck size below which the remaining count is shown
// even without live scoring.
const DefaultNearlyEmpty = 8

type Options struct {
	Layout      deck.Layout
	NearlyEmpty int
	// SealedKey is the client-facing form of the game key.
	SealedKey string
}

type Card struct {
	Suit  int    `json:"suit"`
	Rank  int    `json:"card"`
	Label string `json:"label"`
}

type HandCard struct {
	Card
	CanPlay           bool   `json:"can_play"`
	OpponentCouldPlay bool   `json:"opponent_could_play"`
	ActionPlay        string `json:"action_play,omitempty"`
	ActionDiscard     string `json:"action_discard"`
}

type DiscardCard struct {
	Card
	// Draw is set on the top card only; it is the draw target suffix for an action.
	Draw string `json:"draw,omitempty"`
}

type PlayerSummary struct {
	Username string `json:"username"`
	First    bool   `json:"first"`
}

type Cards struct {
	DeckCount *int            `json:"deck_count,omitempty"`
	Hand      []HandCard      `json:"hand"`
	Played    [2][][]Card     `json:"played"`
	Discarded [][]DiscardCard `json:"discarded"`
	Suits     []string        `json:"suits"`
}

// PlayerView is the full game as seen by one participant.
type PlayerView struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Status      string          `json:"status"`
	IsMyTurn    bool            `json:"is_my_turn"`
	Turn        int             `json:"turn"`
	FirstPlayer int             `json:"first_player"`
	PlayerIndex int             `json:"player_index"`
	PlayerTurn  int             `json:"player_turn"`
	Players     []PlayerSummary `json:"players"`
	Turns       []domain.Turn   `json:"turns"`
	Cards       Cards           `json:"cards"`
	Scoring     *domain.Scoring `json:"scoring,omitempty"`
	Settings    domain.Settings `json:"settings"`
	Chats       []domain.Chat   `json:"chats"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
	CompletedAt *string         `json:"completed_at,omitempty" format:"date-time"`
}

// Summary is the short list form of a game.
type Summary struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Status      string          `json:"status"`
	IsMyTurn    bool            `json:"is_my_turn"`
	Turn        int             `json:"turn"`
	FirstPlayer int             `json:"first_player"`
	Players     []PlayerSummary `json:"players"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
	CompletedAt *string         `json:"completed_at,omitempty" format:"date-time"`
}

// Project builds the view of g for the participant identified by uuid.
func Project(g domain.Game, uuid string, opts Options) (PlayerView, error) {
	seat := g.PlayerIndex(uuid)
	if seat < 0 {
		return PlayerView{}, domain.ErrGameNotFound
	}
	l := opts.Layout
	nearlyEmpty := opts.NearlyEmpty
	if nearlyEmpty <= 0 {
		nearlyEmpty = DefaultNearlyEmpty
	}
	opponent := 1 - seat
	myTurn := rules.IsMyTurn(g.Turn, g.FirstPlayer, seat)
	playerTurn := opponent
	if myTurn {
		playerTurn = seat
	}

	v := PlayerView{
		ID:          g.ID,
		Key:         opts.SealedKey,
		Status:      g.Status(),
		IsMyTurn:    myTurn,
		Turn:        g.Turn,
		FirstPlayer: g.FirstPlayer,
		PlayerIndex: seat,
		PlayerTurn:  playerTurn,
		Players:     players(g),
		Turns:       append([]domain.Turn{}, g.Turns...),
		Settings:    g.Settings,
		Chats:       append([]domain.Chat{}, g.Chats...),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		CompletedAt: g.CompletedAt,
	}

	piles := g.Cards
	if g.Settings.LiveScoring || len(piles.Deck) < nearlyEmpty {
		n := len(piles.Deck)
		v.Cards.DeckCount = &n
	}
	v.Cards.Suits = append([]string{}, l.Suits...)

	hand := l.SortForDisplay(piles.Hands[seat])
	v.Cards.Hand = make([]HandCard, 0, len(hand))
	for _, c := range hand {
		hc := HandCard{
			Card:              cardView(l, c),
			CanPlay:           l.ValidPlay(c, pileAt(piles.Played[seat], c.Suit)),
			OpponentCouldPlay: l.ValidPlay(c, pileAt(piles.Played[opponent], c.Suit)),
			ActionDiscard:     rules.DiscardAction(c).String(),
		}
		if hc.CanPlay {
			hc.ActionPlay = rules.PlayAction(c).String()
		}
		v.Cards.Hand = append(v.Cards.Hand, hc)
	}

	for i := 0; i < 2; i++ {
		v.Cards.Played[i] = make([][]Card, len(piles.Played[i]))
		for s, pile := range piles.Played[i] {
			v.Cards.Played[i][s] = make([]Card, 0, len(pile))
			for _, c := range pile {
				v.Cards.Played[i][s] = append(v.Cards.Played[i][s], cardView(l, c))
			}
		}
	}

	v.Cards.Discarded = make([][]DiscardCard, len(piles.Discarded))
	for s, pile := range piles.Discarded {
		v.Cards.Discarded[s] = make([]DiscardCard, 0, len(pile))
		for i, c := range pile {
			dc := DiscardCard{Card: cardView(l, c)}
			if i == 0 {
				dc.Draw = c.String()
			}
			v.Cards.Discarded[s] = append(v.Cards.Discarded[s], dc)
		}
	}

	if g.CompletedAt != nil || g.Settings.LiveScoring {
		if g.Scoring != nil {
			scoring := *g.Scoring
			v.Scoring = &scoring
		} else {
			scoring := rules.Score(l, piles.Played, g.CompletedAt != nil)
			v.Scoring = &scoring
		}
	}
	return v, nil
}

// Summarize builds the list form of g for the participant identified by uuid.
func Summarize(g domain.Game, uuid string, sealedKey string) (Summary, error) {
	seat := g.PlayerIndex(uuid)
	if seat < 0 {
		return Summary{}, domain.ErrGameNotFound
	}
	return Summary{
		ID:          g.ID,
		Key:         sealedKey,
		Status:      g.Status(),
		IsMyTurn:    rules.IsMyTurn(g.Turn, g.FirstPlayer, seat),
		Turn:        g.Turn,
		FirstPlayer: g.FirstPlayer,
		Players:     players(g),
		CreatedAt:   g.CreatedAt,
		UpdatedAt:   g.UpdatedAt,
		CompletedAt: g.CompletedAt,
	}, nil
}

func players(g domain.Game) []PlayerSummary {
	out := make([]PlayerSummary, 0, len(g.Players))
	for _, p := range g.Players {
		out = append(out, PlayerSummary{Username: p.Username, First: p.First})
	}
	return out
}

func cardView(l deck.Layout, c deck.Card) Card {
	return Card{Suit: c.Suit, Rank: c.Rank, Label: l.Label(c)}
}

func pileAt(piles [][]deck.Card, suit int) []deck.Card {
	if suit < 0 || suit >= len(piles) {
		return nil
	}
	return piles[suit]
}
