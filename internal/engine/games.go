package engine

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"colonies/internal/domain"
	"colonies/internal/events"
	"colonies/internal/rules"
	"colonies/internal/view"
)

const maxChatLength = 1000

// CreateGameOptions are parameters for starting a game.
type CreateGameOptions struct {
	// Creator is the external identity of the caller.
	Creator     string
	Opponent    string
	LiveScoring bool
}

// CreateGame deals a new game between the caller and the named opponent.
func (e Engine) CreateGame(ctx context.Context, opts CreateGameOptions) (view.PlayerView, error) {
	opponentName := strings.TrimSpace(opts.Opponent)
	if opponentName == "" {
		return view.PlayerView{}, fmt.Errorf("%w: opponent is required", domain.ErrAccountNotFound)
	}

	var creator, opponent domain.Account
	sctx, cancel := e.storage(ctx)
	grp, gctx := errgroup.WithContext(sctx)
	grp.Go(func() error {
		a, err := e.Accounts.AccountByUUID(gctx, opts.Creator)
		if err != nil {
			return accountErr(err, "caller")
		}
		creator = a
		return nil
	})
	grp.Go(func() error {
		a, err := e.Accounts.AccountByUsername(gctx, opponentName)
		if err != nil {
			return accountErr(err, opponentName)
		}
		opponent = a
		return nil
	})
	err := grp.Wait()
	cancel()
	if err != nil {
		return view.PlayerView{}, err
	}

	if !creator.Verified {
		return view.PlayerView{}, fmt.Errorf("%w: you have not verified your account", domain.ErrUnverifiedAccount)
	}
	if !opponent.Verified {
		return view.PlayerView{}, fmt.Errorf("%w: opponent has not verified their account", domain.ErrUnverifiedAccount)
	}
	if opponent.UUID == creator.UUID {
		return view.PlayerView{}, domain.ErrOpponentIdentical
	}

	now := e.now()
	key := fmt.Sprintf("%s::%s:%d", creator.UUID, opponent.UUID, now.UnixMilli())
	players := [2]domain.Player{
		{UUID: creator.UUID, Username: creator.Username},
		{UUID: opponent.UUID, Username: opponent.Username},
	}
	l := e.layout()
	settings := domain.Settings{LiveScoring: opts.LiveScoring, Layout: &l}
	g := rules.NewGame(l, e.rng(), uuid.NewString(), key, players, settings, now)
	g.Chats = []domain.Chat{}

	sctx, cancel = e.storage(ctx)
	defer cancel()
	if err := e.Store.InsertGame(sctx, g); err != nil {
		return view.PlayerView{}, fmt.Errorf("insert game: %w", err)
	}
	e.log().WithFields(logrus.Fields{"game_id": g.ID, "creator": creator.Username, "opponent": opponent.Username, "first_player": g.FirstPlayer}).Info("game created")

	e.publish(ctx, events.TurnCompleted{
		GameID:          g.ID,
		ActingPlayer:    creator.UUID,
		NextPlayer:      opponent.UUID,
		IsNewGameInvite: true,
		Turn:            g.Turn,
		Timestamp:       g.CreatedAt,
	})
	return e.project(g, creator.UUID)
}

// resolve turns a public id or a sealed key into the storage key.
func (e Engine) resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", domain.ErrGameNotFound
	}
	if _, err := uuid.Parse(ref); err == nil {
		sctx, cancel := e.storage(ctx)
		defer cancel()
		key, err := e.Store.GameKeyByID(sctx, ref)
		if err != nil {
			return "", gameErr(err)
		}
		return key, nil
	}
	key, err := e.Sealer.Open(ref)
	if err != nil {
		return "", domain.ErrGameNotFound
	}
	return key, nil
}

// load reads the latest committed game and the caller's seat. Outsiders get
// ErrGameNotFound so they cannot probe for games.
func (e Engine) load(ctx context.Context, player, ref string) (domain.Game, int, error) {
	key, err := e.resolve(ctx, ref)
	if err != nil {
		return domain.Game{}, -1, err
	}
	sctx, cancel := e.storage(ctx)
	defer cancel()
	g, err := e.Store.GetGame(sctx, key)
	if err != nil {
		return domain.Game{}, -1, gameErr(err)
	}
	seat := g.PlayerIndex(player)
	if seat < 0 {
		return domain.Game{}, -1, domain.ErrGameNotFound
	}
	return g, seat, nil
}

// GetGame returns the caller's view of a game addressed by id or sealed key.
func (e Engine) GetGame(ctx context.Context, player, ref string) (view.PlayerView, error) {
	g, _, err := e.load(ctx, player, ref)
	if err != nil {
		return view.PlayerView{}, err
	}
	return e.project(g, player)
}

// ListGames summarizes every game the caller takes part in.
func (e Engine) ListGames(ctx context.Context, player string) ([]view.Summary, error) {
	sctx, cancel := e.storage(ctx)
	defer cancel()
	games, err := e.Store.ListGames(sctx, player)
	if err != nil {
		return nil, err
	}
	out := make([]view.Summary, 0, len(games))
	for _, g := range games {
		sealed, err := e.Sealer.Seal(g.Key)
		if err != nil {
			return nil, fmt.Errorf("seal game key: %w", err)
		}
		s, err := view.Summarize(g, player, sealed)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// TurnOptions are parameters for submitting a turn.
type TurnOptions struct {
	Player string
	Game   string
	// Turn is the turn number the player saw when choosing the action.
	Turn   int
	Action string
}

type TurnResult struct {
	Game  view.PlayerView `json:"game"`
	Drawn view.Card       `json:"drawn"`
}

// SubmitTurn validates and applies one move, then commits it only if nobody
// else committed since the game was read. A lost race yields
// ErrConcurrentModification; the caller re-reads and decides again.
func (e Engine) SubmitTurn(ctx context.Context, opts TurnOptions) (TurnResult, error) {
	g, seat, err := e.load(ctx, opts.Player, opts.Game)
	if err != nil {
		return TurnResult{}, err
	}
	l := e.gameLayout(g)
	action, err := rules.ParseAction(l, strings.TrimSpace(opts.Action))
	if err != nil {
		return TurnResult{}, err
	}
	out, err := rules.Apply(l, g, rules.Move{Seat: seat, Turn: opts.Turn, Action: action}, e.now())
	if err != nil {
		return TurnResult{}, err
	}

	fields := logrus.Fields{"game_id": g.ID, "turn": g.Turn, "player": seat}
	sctx, cancel := e.storage(ctx)
	defer cancel()
	if err := e.Store.CommitTurn(sctx, g.Key, g.Turn, out.Game); err != nil {
		err = gameErr(err)
		if domain.Retryable(err) {
			e.log().WithFields(fields).Info("turn lost commit race")
		}
		return TurnResult{}, err
	}
	e.log().WithFields(fields).WithField("action", action.String()).Info("turn accepted")
	if out.Completed {
		e.log().WithFields(fields).Info("game completed")
	}

	next := out.Game
	e.publish(ctx, events.TurnCompleted{
		GameID:       next.ID,
		ActingPlayer: next.Players[seat].UUID,
		NextPlayer:   next.Players[rules.PlayerTurn(next.Turn, next.FirstPlayer)].UUID,
		Completed:    out.Completed,
		Turn:         next.Turn,
		Timestamp:    next.UpdatedAt,
	})

	v, err := e.project(next, opts.Player)
	if err != nil {
		return TurnResult{}, err
	}
	return TurnResult{
		Game:  v,
		Drawn: view.Card{Suit: out.Drawn.Suit, Rank: out.Drawn.Rank, Label: l.Label(out.Drawn)},
	}, nil
}

// PostChat appends a message to the game's chat. Chat does not touch the turn
// counter, so it never conflicts with turns.
func (e Engine) PostChat(ctx context.Context, player, ref, message string) (view.PlayerView, error) {
	message = strings.TrimSpace(message)
	if message == "" || utf8.RuneCountInString(message) > maxChatLength {
		return view.PlayerView{}, domain.ErrInvalidChat
	}
	g, _, err := e.load(ctx, player, ref)
	if err != nil {
		return view.PlayerView{}, err
	}
	c := domain.Chat{UUID: player, Message: message, CreatedAt: domain.Timestamp(e.now())}
	sctx, cancel := e.storage(ctx)
	defer cancel()
	if err := e.Store.AppendChat(sctx, g.Key, c); err != nil {
		return view.PlayerView{}, gameErr(err)
	}
	g.Chats = append(g.Chats, c)
	g.UpdatedAt = c.CreatedAt
	return e.project(g, player)
}
