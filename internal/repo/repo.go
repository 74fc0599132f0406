package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"colonies/internal/domain"
)

// Repo is the SQLite store.
type Repo struct {
	DB *sql.DB
}

const gameColumns = `game_key,id,creator_uuid,opponent_uuid,first_player,turn,players_json,turns_json,cards_json,settings_json,scoring_json,created_at,updated_at,completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(s scanner) (domain.Game, error) {
	var (
		row                             gameRow
		players, turns, cards, settings string
		scoring, completedAt            sql.NullString
	)
	err := s.Scan(&row.Key, &row.ID, &row.CreatorUUID, &row.OpponentUUID, &row.FirstPlayer, &row.Turn,
		&players, &turns, &cards, &settings, &scoring, &row.CreatedAt, &row.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return domain.Game{}, ErrNotFound
	}
	if err != nil {
		return domain.Game{}, err
	}
	row.Players, row.Turns, row.Cards, row.Settings = []byte(players), []byte(turns), []byte(cards), []byte(settings)
	if scoring.Valid {
		row.Scoring = []byte(scoring.String)
	}
	if completedAt.Valid {
		row.CompletedAt = &completedAt.String
	}
	return row.decode()
}

func (r Repo) InsertGame(ctx context.Context, g domain.Game) error {
	row, err := encodeGame(g)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO games(`+gameColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		row.Key, row.ID, row.CreatorUUID, row.OpponentUUID, row.FirstPlayer, row.Turn,
		string(row.Players), string(row.Turns), string(row.Cards), string(row.Settings), nullableBytes(row.Scoring),
		row.CreatedAt, row.UpdatedAt, nullableStringPtr(row.CompletedAt))
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrExists
	}
	return err
}

// GetGame reads the latest committed state for key, chats included.
func (r Repo) GetGame(ctx context.Context, key string) (domain.Game, error) {
	g, err := scanGame(r.DB.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE game_key=?`, key))
	if err != nil {
		return g, err
	}
	chats, err := r.ListChats(ctx, key)
	if err != nil {
		return g, err
	}
	g.Chats = chats
	return g, nil
}

// GameKeyByID resolves the public id through the secondary index.
func (r Repo) GameKeyByID(ctx context.Context, id string) (string, error) {
	var key string
	err := r.DB.QueryRowContext(ctx, `SELECT game_key FROM games WHERE id=?`, id).Scan(&key)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return key, err
}

// ListGames returns the games uuid takes part in, most recently updated first.
// Chats are not loaded.
func (r Repo) ListGames(ctx context.Context, uuid string) ([]domain.Game, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+gameColumns+` FROM games WHERE creator_uuid=? OR opponent_uuid=? ORDER BY updated_at DESC, id DESC`, uuid, uuid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// CommitTurn replaces the stored state only while its turn still equals
// expectedTurn. A lost race returns ErrConflict; a missing game ErrNotFound.
func (r Repo) CommitTurn(ctx context.Context, key string, expectedTurn int, g domain.Game) error {
	row, err := encodeGame(g)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE games SET turn=?,turns_json=?,cards_json=?,scoring_json=?,updated_at=?,completed_at=?
WHERE game_key=? AND turn=?`,
		row.Turn, string(row.Turns), string(row.Cards), nullableBytes(row.Scoring), row.UpdatedAt, nullableStringPtr(row.CompletedAt),
		key, expectedTurn)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists int
	err = r.DB.QueryRowContext(ctx, `SELECT 1 FROM games WHERE game_key=?`, key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func (r Repo) AppendChat(ctx context.Context, key string, c domain.Chat) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO game_chats(game_key,uuid,message,created_at) SELECT game_key,?,?,? FROM games WHERE game_key=?`,
		c.UUID, c.Message, c.CreatedAt, key)
	if err != nil {
		return err
	}
	return r.touch(ctx, key, c.CreatedAt)
}

func (r Repo) touch(ctx context.Context, key, ts string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE games SET updated_at=? WHERE game_key=?`, ts, key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListChats(ctx context.Context, key string) ([]domain.Chat, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT uuid,message,created_at FROM game_chats WHERE game_key=? ORDER BY seq`, key)
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

func nullableBytes(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
