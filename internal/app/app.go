// Package app wires configuration into a ready engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"colonies/internal/config"
	"colonies/internal/db"
	"colonies/internal/domain"
	"colonies/internal/engine"
	"colonies/internal/events"
	"colonies/internal/migrate"
	"colonies/internal/repo"
	"colonies/internal/seal"
)

// Accounts is the account directory plus the writes the CLI needs.
type Accounts interface {
	engine.Directory
	UpsertAccount(ctx context.Context, a domain.Account) error
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

type App struct {
	Config   *config.Config
	Engine   engine.Engine
	Accounts Accounts
	closers  []func() error
}

// Open connects storage for the configured driver, applies migrations and
// builds the engine with its sealer and publishers.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg}

	var store engine.Store
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := db.OpenPostgres(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := migrate.Postgres(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
		pg := repo.Postgres{Pool: pool}
		store, a.Accounts = pg, pg
	default:
		conn, err := db.Open(db.Config{Workspace: cfg.Storage.Workspace})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, conn.Close)
		if err := migrate.Migrate(conn); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		r := repo.Repo{DB: conn}
		store, a.Accounts = r, r
	}

	sealer, err := Sealer(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	eng := engine.New(store, a.Accounts, sealer, cfg)
	eng.Log = logger
	eng.Events = Publisher(cfg, logger)
	a.closers = append(a.closers, func() error { return closePublisher(eng.Events) })
	a.Engine = eng
	return a, nil
}

// Sealer builds the key sealer. Without a configured key a random one is used,
// so sealed keys do not survive a restart.
func Sealer(cfg *config.Config, logger *logrus.Logger) (seal.Sealer, error) {
	key := strings.TrimSpace(cfg.Sealing.EncryptionKey)
	if key == "" {
		generated, err := seal.GenerateKey()
		if err != nil {
			return seal.Sealer{}, err
		}
		logger.Warn("sealing.encryption_key not set; using an ephemeral key")
		key = generated
	}
	return seal.FromBase64(key)
}

// Publisher assembles the configured notification destinations.
func Publisher(cfg *config.Config, logger *logrus.Logger) events.Publisher {
	var pubs events.Multi
	if cfg.Notify.Log {
		pubs = append(pubs, events.Log{Logger: logger})
	}
	if addr := strings.TrimSpace(cfg.Notify.Redis.Addr); addr != "" {
		pubs = append(pubs, events.NewRedis(addr, cfg.Notify.Redis.Channel))
	}
	if hooks := cfg.Webhooks(); len(hooks) > 0 {
		pubs = append(pubs, events.Webhooks{Hooks: hooks, Client: &http.Client{}})
	}
	if len(pubs) == 0 {
		return events.Nop{}
	}
	return pubs
}

func closePublisher(p events.Publisher) error {
	var errs []error
	switch p := p.(type) {
	case events.Multi:
		for _, inner := range p {
			errs = append(errs, closePublisher(inner))
		}
	case events.Redis:
		errs = append(errs, p.Client.Close())
	}
	return errors.Join(errs...)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
