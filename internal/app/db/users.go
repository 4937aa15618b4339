/*
Package db provides the PostgreSQL credential backend.

This file defines UserBackend, which keeps one row per registered user in
chat_users. The case-insensitive unique index makes concurrent registrations
of the same name fail in the database as well as in the Store.
*/
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"linechat/internal/app/user"
	"linechat/internal/pkg/errs"
)

const (
	selectUsersSQL = `SELECT username, password FROM chat_users ORDER BY created_at, username`
	insertUserSQL  = `INSERT INTO chat_users (username, password) VALUES ($1, $2)`
)

// querier is the subset of *pgxpool.Pool used by UserBackend.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UserBackend implements user.Backend on PostgreSQL.
type UserBackend struct {
	db querier
}

// NewUserBackend wraps a connection pool.
func NewUserBackend(db querier) *UserBackend {
	return &UserBackend{db: db}
}

// Load returns all rows in registration order.
func (b *UserBackend) Load(ctx context.Context) ([]user.Credential, error) {
	rows, err := b.db.Query(ctx, selectUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("query chat users: %w", err)
	}
	defer rows.Close()

	creds := []user.Credential{}
	for rows.Next() {
		var c user.Credential
		if err := rows.Scan(&c.Username, &c.Password); err != nil {
			return nil, fmt.Errorf("scan chat user: %w", err)
		}
		if c.Username == "" {
			return nil, user.Corrupt(fmt.Errorf("chat_users row %d has an empty username", len(creds)+1))
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read chat users: %w", err)
	}

	return creds, nil
}

// Save inserts the new row only.
func (b *UserBackend) Save(ctx context.Context, _ []user.Credential, added user.Credential) error {
	if _, err := b.db.Exec(ctx, insertUserSQL, added.Username, added.Password); err != nil {
		if isDuplicateUsername(err) {
			return errs.Wrap(errs.ErrCredentialExists, err, added.Username)
		}
		return fmt.Errorf("insert chat user: %w", err)
	}
	return nil
}
