package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"

	"colonies/internal/config"
	"colonies/internal/deck"
	"colonies/internal/domain"
	"colonies/internal/events"
	"colonies/internal/repo"
	"colonies/internal/view"
)

// Store persists games. CommitTurn must only replace a game whose stored turn
// still equals expectedTurn, returning repo.ErrConflict otherwise.
type Store interface {
	InsertGame(ctx context.Context, g domain.Game) error
	GetGame(ctx context.Context, key string) (domain.Game, error)
	GameKeyByID(ctx context.Context, id string) (string, error)
	ListGames(ctx context.Context, uuid string) ([]domain.Game, error)
	CommitTurn(ctx context.Context, key string, expectedTurn int, g domain.Game) error
	AppendChat(ctx context.Context, key string, c domain.Chat) error
}

// Directory looks up accounts by external identity or username.
type Directory interface {
	AccountByUUID(ctx context.Context, uuid string) (domain.Account, error)
	AccountByUsername(ctx context.Context, username string) (domain.Account, error)
}

// Sealer hides game keys from clients.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(token string) (string, error)
}

const DefaultPublishTimeout = 10 * time.Second

type Engine struct {
	Store       Store
	Accounts    Directory
	Sealer      Sealer
	Events      events.Publisher
	Layout      deck.Layout
	NearlyEmpty int
	Now         func() time.Time
	Rand        func() *rand.Rand
	Log         *logrus.Logger

	// Timeout bounds each storage call.
	Timeout time.Duration

	// PublishTimeout bounds event delivery after a commit.
	PublishTimeout time.Duration
}

// New builds an engine from config. Events default to nothing.
func New(store Store, accounts Directory, sealer Sealer, cfg *config.Config) Engine {
	return Engine{
		Store:       store,
		Accounts:    accounts,
		Sealer:      sealer,
		Events:      events.Nop{},
		Layout:      cfg.Layout(),
		NearlyEmpty: cfg.Rules.NearlyEmpty,
		Timeout:     cfg.StorageTimeout(),
		Now:         time.Now,
		Log:         logrus.StandardLogger(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) rng() *rand.Rand {
	if e.Rand != nil {
		return e.Rand()
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (e Engine) log() *logrus.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logrus.StandardLogger()
}

func (e Engine) layout() deck.Layout {
	if len(e.Layout.Suits) == 0 {
		return deck.DefaultLayout()
	}
	return e.Layout
}

// gameLayout is the layout g was dealt with. Games stored without one use the
// configured layout.
func (e Engine) gameLayout(g domain.Game) deck.Layout {
	if g.Settings.Layout != nil && len(g.Settings.Layout.Suits) > 0 {
		return *g.Settings.Layout
	}
	return e.layout()
}

// storage bounds one storage round trip. Abandoning the request before
// commit leaves nothing behind.
func (e Engine) storage(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}

func gameErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return domain.ErrGameNotFound
	case errors.Is(err, repo.ErrConflict):
		return domain.ErrConcurrentModification
	}
	return err
}

func accountErr(err error, who string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, who)
	}
	return err
}

// publish ignores cancellation of ctx; delivery is bounded by PublishTimeout.
func (e Engine) publish(ctx context.Context, evt events.TurnCompleted) {
	if e.Events == nil {
		return
	}
	timeout := e.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := e.Events.Publish(ctx, evt); err != nil {
		e.log().WithError(err).WithFields(logrus.Fields{"game_id": evt.GameID, "turn": evt.Turn}).Warn("publish game event failed")
	}
}

func (e Engine) project(g domain.Game, uuid string) (view.PlayerView, error) {
	sealed, err := e.Sealer.Seal(g.Key)
	if err != nil {
		return view.PlayerView{}, fmt.Errorf("seal game key: %w", err)
	}
	return view.Project(g, uuid, view.Options{Layout: e.gameLayout(g), NearlyEmpty: e.NearlyEmpty, SealedKey: sealed})
}
