package coloniessdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Colonies HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BasePath:    "v0",
		BearerToken: token,
		Timeout:     10 * time.Second,
	}
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
	Draw string `json:"draw,omitempty"`
}

type Player struct {
	Username string `json:"username"`
	First    bool   `json:"first"`
}

type Turn struct {
	Player    int    `json:"player"`
	Action    string `json:"action"`
	CreatedAt string `json:"created_at"`
}

type Chat struct {
	UUID      string `json:"uuid"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// Scoring is kept loose; its shape is only of interest to renderers.
type Scoring map[string]any

// Game is one player's view of a game.
type Game struct {
	ID          string   `json:"id"`
	Key         string   `json:"key"`
	Status      string   `json:"status"`
	IsMyTurn    bool     `json:"is_my_turn"`
	Turn        int      `json:"turn"`
	FirstPlayer int      `json:"first_player"`
	PlayerIndex int      `json:"player_index"`
	PlayerTurn  int      `json:"player_turn"`
	Players     []Player `json:"players"`
	Turns       []Turn   `json:"turns"`
	Cards       struct {
		DeckCount *int            `json:"deck_count,omitempty"`
		Hand      []HandCard      `json:"hand"`
		Played    [2][][]Card     `json:"played"`
		Discarded [][]DiscardCard `json:"discarded"`
		Suits     []string        `json:"suits"`
	} `json:"cards"`
	Scoring     Scoring `json:"scoring,omitempty"`
	Chats       []Chat  `json:"chats"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// Summary is the list form of a game.
type Summary struct {
	ID          string   `json:"id"`
	Key         string   `json:"key"`
	Status      string   `json:"status"`
	IsMyTurn    bool     `json:"is_my_turn"`
	Turn        int      `json:"turn"`
	FirstPlayer int      `json:"first_player"`
	Players     []Player `json:"players"`
	UpdatedAt   string   `json:"updated_at"`
}

type TurnResult struct {
	Game  Game `json:"game"`
	Drawn Card `json:"drawn"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// Retryable reports whether the request lost a race and may be retried
// after re-reading the game.
func (e *APIError) Retryable() bool {
	return e.Code == "concurrent_modification"
}

// CreateGame invites opponent to a new game.
func (c *Client) CreateGame(ctx context.Context, opponent string, liveScoring bool) (Game, error) {
	body := map[string]any{"opponent": opponent, "live_scoring": liveScoring}
	var resp Game
	err := c.do(ctx, http.MethodPost, "games", body, &resp)
	return resp, err
}

func (c *Client) ListGames(ctx context.Context) ([]Summary, error) {
	var resp struct {
		Items []Summary `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "games", nil, &resp)
	return resp.Items, err
}

// Game fetches a game by id or sealed key.
func (c *Client) Game(ctx context.Context, ref string) (Game, error) {
	var resp Game
	err := c.do(ctx, http.MethodGet, "games/"+url.PathEscape(ref), nil, &resp)
	return resp, err
}

// SubmitTurn sends action for the given turn number.
func (c *Client) SubmitTurn(ctx context.Context, ref string, turn int, action string) (TurnResult, error) {
	body := map[string]any{"turn": turn, "action": action}
	var resp TurnResult
	err := c.do(ctx, http.MethodPost, "games/"+url.PathEscape(ref)+"/turns", body, &resp)
	return resp, err
}

func (c *Client) PostChat(ctx context.Context, ref, message string) (Game, error) {
	var resp Game
	err := c.do(ctx, http.MethodPost, "games/"+url.PathEscape(ref)+"/chats", map[string]any{"message": message}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
