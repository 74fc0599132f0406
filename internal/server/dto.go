package server

import (
	"colonies/internal/domain"
	"colonies/internal/view"
)

type CreateGameRequest struct {
	Opponent    string `json:"opponent" minLength:"1" doc:"Username of the invited player"`
	LiveScoring bool   `json:"live_scoring,omitempty" doc:"Show scores while the game runs"`
}

type TurnRequest struct {
	Turn   int    `json:"turn" minimum:"0" doc:"Turn number the action was chosen on"`
	Action string `json:"action" minLength:"1" example:"P0:5::2:7" doc:"P or D, suit:rank, then optionally :: and the discard top to draw"`
}

type ChatRequest struct {
	Message string `json:"message" minLength:"1" maxLength:"1000"`
}

type GameListResponse struct {
	Items []view.Summary `json:"items"`
}

type WhoAmIResponse struct {
	PlayerID string          `json:"player_id"`
	Source   string          `json:"source"`
	Account  *domain.Account `json:"account,omitempty"`
}
