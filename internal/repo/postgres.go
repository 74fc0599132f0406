package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"colonies/internal/domain"
)

// Postgres is the same store as Repo on a pgx pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

const pgUniqueViolation = "23505"

func scanPgGame(row pgx.Row) (domain.Game, error) {
	var r gameRow
	err := row.Scan(&r.Key, &r.ID, &r.CreatorUUID, &r.OpponentUUID, &r.FirstPlayer, &r.Turn,
		&r.Players, &r.Turns, &r.Cards, &r.Settings, &r.Scoring, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Game{}, ErrNotFound
	}
	if err != nil {
		return domain.Game{}, err
	}
	return r.decode()
}

func (p Postgres) InsertGame(ctx context.Context, g domain.Game) error {
	row, err := encodeGame(g)
	if err != nil {
		return err
	}
	_, err = p.Pool.Exec(ctx, `INSERT INTO games(`+gameColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		row.Key, row.ID, row.CreatorUUID, row.OpponentUUID, row.FirstPlayer, row.Turn,
		string(row.Players), string(row.Turns), string(row.Cards), string(row.Settings), nullableBytes(row.Scoring),
		row.CreatedAt, row.UpdatedAt, row.CompletedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrExists
	}
	return err
}

func (p Postgres) GetGame(ctx context.Context, key string) (domain.Game, error) {
	g, err := scanPgGame(p.Pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE game_key=$1`, key))
	if err != nil {
		return g, err
	}
	chats, err := p.ListChats(ctx, key)
	if err != nil {
		return g, err
	}
	g.Chats = chats
	return g, nil
}

func (p Postgres) GameKeyByID(ctx context.Context, id string) (string, error) {
	var key string
	err := p.Pool.QueryRow(ctx, `SELECT game_key FROM games WHERE id=$1`, id).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return key, err
}

func (p Postgres) ListGames(ctx context.Context, uuid string) ([]domain.Game, error) {
	rows, err := p.Pool.Query(ctx, `SELECT `+gameColumns+` FROM games WHERE creator_uuid=$1 OR opponent_uuid=$1 ORDER BY updated_at DESC, id DESC`, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Game{}
	for rows.Next() {
		g, err := scanPgGame(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (p Postgres) CommitTurn(ctx context.Context, key string, expectedTurn int, g domain.Game) error {
	row, err := encodeGame(g)
	if err != nil {
		return err
	}
	tag, err := p.Pool.Exec(ctx, `UPDATE games SET turn=$1,turns_json=$2,cards_json=$3,scoring_json=$4,updated_at=$5,completed_at=$6
WHERE game_key=$7 AND turn=$8`,
		row.Turn, string(row.Turns), string(row.Cards), nullableBytes(row.Scoring), row.UpdatedAt, row.CompletedAt,
		key, expectedTurn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists int
	err = p.Pool.QueryRow(ctx, `SELECT 1 FROM games WHERE game_key=$1`, key).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func (p Postgres) AppendChat(ctx context.Context, key string, c domain.Chat) error {
	tag, err := p.Pool.Exec(ctx, `INSERT INTO game_chats(game_key,uuid,message,created_at) SELECT game_key,$1,$2,$3 FROM games WHERE game_key=$4`,
		c.UUID, c.Message, c.CreatedAt, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = p.Pool.Exec(ctx, `UPDATE games SET updated_at=$1 WHERE game_key=$2`, c.CreatedAt, key)
	return err
}

func (p Postgres) ListChats(ctx context.Context, key string) ([]domain.Chat, error) {
	rows, err := p.Pool.Query(ctx, `SELECT uuid,message,created_at FROM game_chats WHERE game_key=$1 ORDER BY seq`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Chat{}
	for rows.Next() {
		var c domain.Chat
		if err := rows.Scan(&c.UUID, &c.Message, &c.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (p Postgres) UpsertAccount(ctx context.Context, a domain.Account) error {
	_, err := p.Pool.Exec(ctx, `INSERT INTO accounts(`+accountColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT(uuid) DO UPDATE SET username=EXCLUDED.username, email=EXCLUDED.email, name=EXCLUDED.name, verified=EXCLUDED.verified, updated_at=EXCLUDED.updated_at`,
		a.UUID, a.Username, a.Email, a.Name, a.Verified, a.CreatedAt, a.UpdatedAt)
	return err
}

func scanPgAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.UUID, &a.Username, &a.Email, &a.Name, &a.Verified, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

func (p Postgres) AccountByUUID(ctx context.Context, uuid string) (domain.Account, error) {
	return scanPgAccount(p.Pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE uuid=$1`, uuid))
}

func (p Postgres) AccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	return scanPgAccount(p.Pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username=$1`, username))
}

func (p Postgres) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := p.Pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Account{}
	for rows.Next() {
		a, err := scanPgAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
