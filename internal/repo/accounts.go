package repo

import (
	"context"
	"database/sql"

	"colonies/internal/domain"
)

const accountColumns = `uuid,username,email,name,verified,created_at,updated_at`

func scanAccount(s scanner) (domain.Account, error) {
	var a domain.Account
	var verified int
	err := s.Scan(&a.UUID, &a.Username, &a.Email, &a.Name, &verified, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.Verified = verified != 0
	return a, err
}

// UpsertAccount inserts or updates the account keyed by uuid.
func (r Repo) UpsertAccount(ctx context.Context, a domain.Account) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO accounts(`+accountColumns+`) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(uuid) DO UPDATE SET username=excluded.username, email=excluded.email, name=excluded.name, verified=excluded.verified, updated_at=excluded.updated_at`,
		a.UUID, a.Username, a.Email, a.Name, boolInt(a.Verified), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) AccountByUUID(ctx context.Context, uuid string) (domain.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE uuid=?`, uuid))
}

func (r Repo) AccountByUsername(ctx context.Context, username string) (domain.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username=?`, username))
}

func (r Repo) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
