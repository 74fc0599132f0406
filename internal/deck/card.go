package deck

import (
	"fmt"
	"strconv"
	"strings"
)

// Card identifies one physical card by suit index and rank.
type Card struct {
	Suit int
	Rank int
}

// String returns the canonical "suit:rank" encoding.
func (c Card) String() string {
	return strconv.Itoa(c.Suit) + ":" + strconv.Itoa(c.Rank)
}

// ParseCard decodes the canonical "suit:rank" encoding. Range checks against a
// Layout are the caller's concern.
func ParseCard(s string) (Card, error) {
	suitStr, rankStr, ok := strings.Cut(s, ":")
	if !ok {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}
	suit, err := strconv.Atoi(suitStr)
	if err != nil || suit < 0 {
		return Card{}, fmt.Errorf("invalid card suit %q", s)
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil || rank < 0 {
		return Card{}, fmt.Errorf("invalid card rank %q", s)
	}
	return Card{Suit: suit, Rank: rank}, nil
}

func (c Card) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Card) UnmarshalText(b []byte) error {
	parsed, err := ParseCard(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// IndexOf returns the position of c in cards, or -1.
func IndexOf(cards []Card, c Card) int {
	for i, candidate := range cards {
		if candidate == c {
			return i
		}
	}
	return -1
}
