package deck_test

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colonies/internal/deck"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func TestDealNewGame(t *testing.T) {
	l := deck.DefaultLayout()
	require.NoError(t, l.Validate())
	p := l.Deal(seeded(1))

	assert.Len(t, p.Deck, l.Size()-2*l.HandSize)
	assert.Len(t, p.Hands[0], l.HandSize)
	assert.Len(t, p.Hands[1], l.HandSize)
	for seat := 0; seat < 2; seat++ {
		require.Len(t, p.Played[seat], len(l.Suits))
		for _, pile := range p.Played[seat] {
			assert.Empty(t, pile)
		}
	}
	require.Len(t, p.Discarded, len(l.Suits))
	for _, pile := range p.Discarded {
		assert.Empty(t, pile)
	}
	assert.Equal(t, l.FullSet(), p.All(), "every card dealt exactly once")
}

func TestDealIsReproducibleWithSameSource(t *testing.T) {
	l := deck.DefaultLayout()
	assert.Equal(t, l.Deal(seeded(42)), l.Deal(seeded(42)))
	assert.NotEqual(t, l.Deal(seeded(42)).Deck, l.Deal(seeded(43)).Deck)
}

func TestShuffledDeckIsPermutation(t *testing.T) {
	l := deck.DefaultLayout()
	cards := l.ShuffledDeck(seeded(7))
	seen := make(map[deck.Card]bool, len(cards))
	for _, c := range cards {
		require.True(t, l.Contains(c), "card %s outside layout", c)
		require.False(t, seen[c], "duplicate %s", c)
		seen[c] = true
	}
	assert.Len(t, seen, l.Size())
}

func TestValidPlay(t *testing.T) {
	l := deck.DefaultLayout()
	c := func(rank int) deck.Card { return deck.Card{Suit: 2, Rank: rank} }

	// empty pile accepts anything
	for r := 0; r < l.Ranks; r++ {
		assert.True(t, l.ValidPlay(c(r), nil), "rank %d on empty pile", r)
	}

	// numbered top: accept r >= top, never a wager
	for top := 2; top <= 10; top++ {
		pile := []deck.Card{c(top)}
		for r := 0; r < l.Ranks; r++ {
			want := !l.IsWager(r) && r >= top
			assert.Equal(t, want, l.ValidPlay(c(r), pile), "rank %d on %d", r, top)
		}
	}

	// wager top: accept anything
	for _, w := range l.WagerRanks {
		pile := []deck.Card{c(w)}
		for r := 0; r < l.Ranks; r++ {
			assert.True(t, l.ValidPlay(c(r), pile), "rank %d on wager %d", r, w)
		}
	}

	// only the top matters
	pile := []deck.Card{c(7), c(3), c(0)}
	assert.False(t, l.ValidPlay(c(5), pile))
	assert.True(t, l.ValidPlay(c(7), pile))
	assert.False(t, l.ValidPlay(c(1), pile))
}

func TestSortForDisplay(t *testing.T) {
	l := deck.DefaultLayout()
	hand := []deck.Card{
		{Suit: 1, Rank: 9}, {Suit: 0, Rank: 11}, {Suit: 0, Rank: 4},
		{Suit: 1, Rank: 0}, {Suit: 0, Rank: 2}, {Suit: 0, Rank: 1},
		{Suit: 3, Rank: 11}, {Suit: 1, Rank: 5},
	}
	orig := append([]deck.Card(nil), hand...)
	got := l.SortForDisplay(hand)
	assert.Equal(t, []deck.Card{
		{Suit: 0, Rank: 1}, {Suit: 0, Rank: 11}, {Suit: 0, Rank: 2}, {Suit: 0, Rank: 4},
		{Suit: 1, Rank: 0}, {Suit: 1, Rank: 5}, {Suit: 1, Rank: 9},
		{Suit: 3, Rank: 11},
	}, got)
	assert.Equal(t, orig, hand, "input untouched")
}

func TestParseCard(t *testing.T) {
	c, err := deck.ParseCard("3:10")
	require.NoError(t, err)
	assert.Equal(t, deck.Card{Suit: 3, Rank: 10}, c)
	assert.Equal(t, "3:10", c.String())

	for _, bad := range []string{"", "3", "3:", ":4", "a:1", "1:b", "-1:2"} {
		_, err := deck.ParseCard(bad)
		assert.Error(t, err, bad)
	}
}

func TestPilesJSONUsesCanonicalEncoding(t *testing.T) {
	p := deck.Piles{Deck: []deck.Card{{Suit: 4, Rank: 11}}}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"deck":["4:11"]`)

	var back deck.Piles
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, p.Deck, back.Deck)
}

func TestCloneIsDeep(t *testing.T) {
	l := deck.DefaultLayout()
	p := l.Deal(seeded(3))
	cp := p.Clone()
	cp.Hands[0][0] = deck.Card{Suit: 9, Rank: 9}
	cp.Played[1][2] = append(cp.Played[1][2], deck.Card{Suit: 2, Rank: 2})
	cp.Deck = cp.Deck[1:]
	assert.NotEqual(t, deck.Card{Suit: 9, Rank: 9}, p.Hands[0][0])
	assert.Empty(t, p.Played[1][2])
	assert.Equal(t, l.Size(), p.Count())
}

func TestLayoutValidate(t *testing.T) {
	l := deck.DefaultLayout()
	l.WagerRanks = []int{12}
	assert.Error(t, l.Validate())

	l = deck.DefaultLayout()
	l.HandSize = 30
	assert.Error(t, l.Validate())

	l = deck.DefaultLayout()
	l.Suits = nil
	assert.Error(t, l.Validate())
}
