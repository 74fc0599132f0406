package domain

import "colonies/internal/deck"

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

type Player struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	First    bool   `json:"first"`
}

// Turn is one accepted move. Turns are append-only.
type Turn struct {
	Player    int    `json:"player"`
	Action    string `json:"action"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Settings struct {
	LiveScoring bool `json:"live_scoring"`
	// Layout is the card set the game was dealt with. Games stored without
	// one follow the configured layout.
	Layout *deck.Layout `json:"layout,omitempty"`
}

type SuitScore struct {
	Suit       int `json:"suit"`
	Cards      int `json:"cards"`
	Wagers     int `json:"wagers"`
	Sum        int `json:"sum"`
	Cost       int `json:"cost"`
	Subtotal   int `json:"subtotal"`
	Multiplier int `json:"multiplier"`
	Bonus      int `json:"bonus"`
	Total      int `json:"total"`
}

type PlayerScore struct {
	Score int         `json:"score"`
	Suits []SuitScore `json:"suits"`
}

// Scoring is derived from played piles. Winner is nil while the game runs and
// when the totals are tied.
type Scoring struct {
	Scores [2]PlayerScore `json:"scores"`
	Tied   bool           `json:"tied"`
	Winner *int           `json:"winner,omitempty"`
}

type Chat struct {
	UUID      string `json:"uuid"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Game is the stored aggregate. Turn doubles as the optimistic-concurrency
// version: storage only accepts a new state whose predecessor turn matches.
type Game struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Players     [2]Player  `json:"players"`
	FirstPlayer int        `json:"first_player"`
	Turn        int        `json:"turn"`
	Turns       []Turn     `json:"turns"`
	Cards       deck.Piles `json:"cards"`
	Settings    Settings   `json:"settings"`
	Scoring     *Scoring   `json:"scoring,omitempty"`
	Chats       []Chat     `json:"chats,omitempty"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
	CompletedAt *string    `json:"completed_at,omitempty" format:"date-time"`
}

func (g Game) Status() string {
	if g.CompletedAt != nil {
		return StatusCompleted
	}
	return StatusInProgress
}

// PlayerIndex returns the seat of the player with the given external identity,
// or -1 when uuid is not a participant.
func (g Game) PlayerIndex(uuid string) int {
	for i, p := range g.Players {
		if p.UUID == uuid {
			return i
		}
	}
	return -1
}

// Account is the identity collaborator's view of a user.
type Account struct {
	UUID      string `json:"uuid"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Verified  bool   `json:"verified"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}
