package rules_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colonies/internal/deck"
	"colonies/internal/domain"
	"colonies/internal/rules"
)

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newGame(t *testing.T, seed uint64) (deck.Layout, domain.Game) {
	t.Helper()
	l := deck.DefaultLayout()
	players := [2]domain.Player{{UUID: "alice", Username: "alice"}, {UUID: "bob", Username: "bob"}}
	g := rules.NewGame(l, rand.New(rand.NewPCG(seed, 0)), "id-1", "alice::bob:1", players, domain.Settings{}, now)
	return l, g
}

// fixedGame builds a game where seat 0 moves first and holds the given hand.
func fixedGame(t *testing.T, hand0 []deck.Card) (deck.Layout, domain.Game) {
	t.Helper()
	l, g := newGame(t, 1)
	g.FirstPlayer = 0
	g.Players[0].First, g.Players[1].First = true, false
	var rest []deck.Card
	for _, c := range l.FullSet() {
		if deck.IndexOf(hand0, c) < 0 {
			rest = append(rest, c)
		}
	}
	g.Cards.Hands[0] = append([]deck.Card(nil), hand0...)
	g.Cards.Hands[1] = append([]deck.Card(nil), rest[:l.HandSize]...)
	g.Cards.Deck = append([]deck.Card(nil), rest[l.HandSize:]...)
	return l, g
}

func card(s, r int) deck.Card { return deck.Card{Suit: s, Rank: r} }

func TestParseAction(t *testing.T) {
	l := deck.DefaultLayout()
	a, err := rules.ParseAction(l, "P0:5")
	require.NoError(t, err)
	assert.Equal(t, rules.Play, a.Kind)
	assert.Equal(t, card(0, 5), a.Card)
	assert.Nil(t, a.Draw)
	assert.Equal(t, "P0:5", a.String())

	a, err = rules.ParseAction(l, "D4:11::2:3")
	require.NoError(t, err)
	assert.Equal(t, rules.Discard, a.Kind)
	require.NotNil(t, a.Draw)
	assert.Equal(t, card(2, 3), *a.Draw)
	assert.Equal(t, "D4:11::2:3", a.String())

	for _, bad := range []string{"", "X0:1", "P0", "P5:1", "P0:12", "P0:1::", "P0:1::9:1", "P0:1:2:3", "p0:1", " P0:1"} {
		_, err := rules.ParseAction(l, bad)
		assert.ErrorIs(t, err, domain.ErrMalformedAction, bad)
	}
}

func TestIsMyTurnParity(t *testing.T) {
	for turn := 0; turn < 50; turn++ {
		for first := 0; first < 2; first++ {
			for seat := 0; seat < 2; seat++ {
				want := 1
				if seat == first {
					want = 0
				}
				assert.Equal(t, turn%2 == want, rules.IsMyTurn(turn, first, seat))
			}
			seat := rules.PlayerTurn(turn, first)
			assert.True(t, rules.IsMyTurn(turn, first, seat))
			assert.False(t, rules.IsMyTurn(turn, first, 1-seat))
		}
	}
}

func TestNewGameDeal(t *testing.T) {
	l, g := newGame(t, 9)
	assert.Equal(t, 0, g.Turn)
	assert.Len(t, g.Cards.Deck, l.Size()-16)
	assert.Len(t, g.Cards.Hands[0], 8)
	assert.Len(t, g.Cards.Hands[1], 8)
	assert.True(t, g.Players[g.FirstPlayer].First)
	assert.False(t, g.Players[1-g.FirstPlayer].First)
	assert.Equal(t, domain.StatusInProgress, g.Status())
	assert.Equal(t, l.FullSet(), g.Cards.All())
}

func TestApplyPlayFromDeck(t *testing.T) {
	hand := []deck.Card{card(0, 5), card(0, 2), card(1, 3), card(1, 9), card(2, 0), card(3, 4), card(4, 6), card(4, 11)}
	l, g := fixedGame(t, hand)
	top := g.Cards.Deck[0]
	a, err := rules.ParseAction(l, "P0:5")
	require.NoError(t, err)

	out, err := rules.Apply(l, g, rules.Move{Seat: 0, Turn: 0, Action: a}, now)
	require.NoError(t, err)
	next := out.Game

	assert.Equal(t, 1, next.Turn)
	assert.Equal(t, top, out.Drawn)
	assert.Len(t, next.Cards.Hands[0], 8)
	assert.NotContains(t, next.Cards.Hands[0], card(0, 5))
	assert.Contains(t, next.Cards.Hands[0], top)
	assert.Equal(t, []deck.Card{card(0, 5)}, next.Cards.Played[0][0])
	assert.Len(t, next.Cards.Deck, len(g.Cards.Deck)-1)
	require.Len(t, next.Turns, 1)
	assert.Equal(t, domain.Turn{Player: 0, Action: "P0:5", CreatedAt: domain.Timestamp(now)}, next.Turns[0])
	assert.True(t, rules.IsMyTurn(next.Turn, next.FirstPlayer, 1))
	assert.False(t, out.Completed)

	// input snapshot untouched
	assert.Equal(t, 0, g.Turn)
	assert.Contains(t, g.Cards.Hands[0], card(0, 5))
	assert.Empty(t, g.Cards.Played[0][0])
	assert.Empty(t, g.Turns)
}

func TestApplyRejections(t *testing.T) {
	hand := []deck.Card{card(0, 5), card(0, 2), card(0, 1), card(1, 9), card(2, 0), card(3, 4), card(4, 6), card(4, 11)}
	l, g := fixedGame(t, hand)
	g.Cards.Played[0][0] = []deck.Card{card(0, 4)}
	g.Cards.Deck = g.Cards.Deck[1:]
	g.Cards.Discarded[3] = []deck.Card{card(3, 8), card(3, 7)}

	move := func(seat, turn int, s string) error {
		a, err := rules.ParseAction(l, s)
		require.NoError(t, err, s)
		_, err = rules.Apply(l, g, rules.Move{Seat: seat, Turn: turn, Action: a}, now)
		return err
	}

	assert.ErrorIs(t, move(0, 1, "P0:5"), domain.ErrStaleTurnNumber)
	assert.ErrorIs(t, move(1, 0, "P0:5"), domain.ErrNotYourTurn)
	assert.ErrorIs(t, move(0, 0, "P0:7"), domain.ErrCardNotInHand)
	assert.ErrorIs(t, move(0, 0, "P0:2"), domain.ErrIllegalPlayDestination, "descending")
	assert.ErrorIs(t, move(0, 0, "P0:1"), domain.ErrIllegalPlayDestination, "wager on numbered card")
	assert.ErrorIs(t, move(0, 0, "D0:2::3:7"), domain.ErrIllegalDrawTarget, "not the top")
	assert.ErrorIs(t, move(0, 0, "D0:2::2:3"), domain.ErrIllegalDrawTarget, "empty pile")

	require.NoError(t, move(0, 0, "P0:5"))
	require.NoError(t, move(0, 0, "D0:2::3:8"))
	require.NoError(t, move(0, 0, "D0:2::0:2"), "drawing back the card just discarded")
}

func TestApplyDrawFromDiscard(t *testing.T) {
	hand := []deck.Card{card(0, 5), card(0, 2), card(1, 3), card(1, 9), card(2, 0), card(3, 4), card(4, 6), card(4, 11)}
	l, g := fixedGame(t, hand)
	// move the top deck card onto its suit's discard pile
	d := g.Cards.Deck[0]
	g.Cards.Deck = g.Cards.Deck[1:]
	g.Cards.Discarded[d.Suit] = []deck.Card{d}
	var discard deck.Card
	for _, c := range hand {
		if c.Suit != d.Suit {
			discard = c
			break
		}
	}

	a := rules.DiscardAction(discard).DrawingFrom(d)
	out, err := rules.Apply(l, g, rules.Move{Seat: 0, Turn: 0, Action: a}, now)
	require.NoError(t, err)
	assert.Equal(t, d, out.Drawn)
	assert.Contains(t, out.Game.Cards.Hands[0], d)
	assert.Len(t, out.Game.Cards.Deck, len(g.Cards.Deck))
	assert.Equal(t, []deck.Card{discard}, out.Game.Cards.Discarded[discard.Suit])
	assert.Empty(t, out.Game.Cards.Discarded[d.Suit])
	assert.Equal(t, l.FullSet(), out.Game.Cards.All())
}

func TestPlayOnWagerRun(t *testing.T) {
	hand := []deck.Card{card(2, 1), card(2, 11), card(2, 3), card(2, 2), card(2, 0), card(3, 4), card(4, 6), card(4, 10)}
	l, g := fixedGame(t, hand)
	// force seat 0 to move every turn by alternating first player
	seq := []string{"P2:1", "P2:11", "P2:3"}
	for _, s := range seq {
		a, err := rules.ParseAction(l, s)
		require.NoError(t, err)
		out, err := rules.Apply(l, g, rules.Move{Seat: 0, Turn: g.Turn, Action: a}, now)
		require.NoError(t, err, s)
		g = out.Game
		g.FirstPlayer = 1 - g.FirstPlayer
	}
	assert.Equal(t, []deck.Card{card(2, 3), card(2, 11), card(2, 1)}, g.Cards.Played[0][2])

	a, _ := rules.ParseAction(l, "P2:2")
	_, err := rules.Apply(l, g, rules.Move{Seat: 0, Turn: g.Turn, Action: a}, now)
	assert.ErrorIs(t, err, domain.ErrIllegalPlayDestination)
	a, _ = rules.ParseAction(l, "P2:0")
	_, err = rules.Apply(l, g, rules.Move{Seat: 0, Turn: g.Turn, Action: a}, now)
	assert.ErrorIs(t, err, domain.ErrIllegalPlayDestination)
}

func TestFullGameConservesCardsAndCompletes(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		l, g := newGame(t, seed)
		rng := rand.New(rand.NewPCG(seed, 99))
		for steps := 0; g.CompletedAt == nil; steps++ {
			require.Less(t, steps, 10000, "game did not finish")
			seat := rules.PlayerTurn(g.Turn, g.FirstPlayer)
			hand := g.Cards.Hands[seat]
			c := hand[rng.IntN(len(hand))]
			a := rules.DiscardAction(c)
			if l.ValidPlay(c, g.Cards.Played[seat][c.Suit]) {
				a = rules.PlayAction(c)
			}
			if rng.IntN(5) == 0 {
				s := rng.IntN(len(l.Suits))
				// discarding onto the same pile would change its top before the draw
				if top, ok := deck.Top(g.Cards.Discarded[s]); ok && !(a.Kind == rules.Discard && s == c.Suit) {
					a = a.DrawingFrom(top)
				}
			}
			out, err := rules.Apply(l, g, rules.Move{Seat: seat, Turn: g.Turn, Action: a}, now)
			require.NoError(t, err, "seed %d turn %d action %s", seed, g.Turn, a)
			g = out.Game

			require.Equal(t, l.Size(), g.Cards.Count())
			require.Equal(t, l.FullSet(), g.Cards.All())
			require.Len(t, g.Cards.Hands[seat], l.HandSize)
			require.Len(t, g.Turns, g.Turn)
			require.Equal(t, out.Completed, len(g.Cards.Deck) == 0)
		}

		require.NotNil(t, g.Scoring)
		assert.Equal(t, domain.StatusCompleted, g.Status())
		assert.Equal(t, rules.Score(l, g.Cards.Played, true), *g.Scoring)

		// any later submission is rejected
		seat := rules.PlayerTurn(g.Turn, g.FirstPlayer)
		_, err := rules.Apply(l, g, rules.Move{Seat: seat, Turn: g.Turn, Action: rules.DiscardAction(g.Cards.Hands[seat][0])}, now)
		assert.ErrorIs(t, err, domain.ErrGameAlreadyCompleted)
	}
}

func TestReplayedTurnIsRejected(t *testing.T) {
	l, g := newGame(t, 11)
	seat := rules.PlayerTurn(0, g.FirstPlayer)
	m := rules.Move{Seat: seat, Turn: 0, Action: rules.DiscardAction(g.Cards.Hands[seat][0])}
	out, err := rules.Apply(l, g, m, now)
	require.NoError(t, err)
	_, err = rules.Apply(l, out.Game, m, now)
	assert.ErrorIs(t, err, domain.ErrStaleTurnNumber)
}

func TestScoreSuit(t *testing.T) {
	l := deck.DefaultLayout()
	s := rules.ScoreSuit(l, 0, []deck.Card{card(0, 5), card(0, 2)})
	assert.Equal(t, domain.SuitScore{Suit: 0, Cards: 2, Sum: 7, Cost: -20, Subtotal: -13, Multiplier: 1, Total: -13}, s)

	s = rules.ScoreSuit(l, 0, []deck.Card{card(0, 5), card(0, 2), card(0, 0)})
	assert.Equal(t, 2, s.Multiplier)
	assert.Equal(t, -26, s.Total)

	empty := rules.ScoreSuit(l, 3, nil)
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 1, empty.Multiplier)

	long := []deck.Card{card(1, 10), card(1, 9), card(1, 8), card(1, 7), card(1, 6), card(1, 5), card(1, 4), card(1, 1)}
	s = rules.ScoreSuit(l, 1, long)
	assert.Equal(t, 49, s.Sum)
	assert.Equal(t, 20, s.Bonus)
	assert.Equal(t, (49-20)*2+20, s.Total)
}

func TestScoreWinnerAndTie(t *testing.T) {
	l := deck.DefaultLayout()
	var played [2][][]deck.Card
	for i := range played {
		played[i] = make([][]deck.Card, len(l.Suits))
	}
	played[0][0] = []deck.Card{card(0, 10), card(0, 9), card(0, 8)}
	played[1][1] = []deck.Card{card(1, 3)}

	s := rules.Score(l, played, true)
	assert.Equal(t, 7, s.Scores[0].Score)
	assert.Equal(t, -17, s.Scores[1].Score)
	require.NotNil(t, s.Winner)
	assert.Equal(t, 0, *s.Winner)
	assert.False(t, s.Tied)

	assert.Nil(t, rules.Score(l, played, false).Winner, "no winner mid-game")

	played[1][1] = []deck.Card{card(1, 10), card(1, 9), card(1, 8)}
	s = rules.Score(l, played, true)
	assert.True(t, s.Tied)
	assert.Nil(t, s.Winner)
}
