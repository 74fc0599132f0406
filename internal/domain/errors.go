package domain

import "errors"

// Rule and lifecycle failures. Messages are safe to show to players.
var (
	ErrMalformedAction        = errors.New("invalid turn action specified")
	ErrNotYourTurn            = errors.New("it is not your turn")
	ErrStaleTurnNumber        = errors.New("invalid turn number specified")
	ErrCardNotInHand          = errors.New("invalid action card specified: not in hand")
	ErrIllegalPlayDestination = errors.New("invalid action card specified: destination prohibited")
	ErrIllegalDrawTarget      = errors.New("invalid draw card specified")
	ErrGameAlreadyCompleted   = errors.New("game is already over")
	ErrConcurrentModification = errors.New("game changed while the turn was being saved; reload and retry")
	ErrGameNotFound           = errors.New("game not found")
	ErrOpponentIdentical      = errors.New("invalid opponent")
	ErrUnverifiedAccount      = errors.New("account has not been verified")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidChat            = errors.New("chat message must be between 1 and 1000 characters")
)

// Retryable reports whether err may be retried after re-reading game state.
func Retryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
