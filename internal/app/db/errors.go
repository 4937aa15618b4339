package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// uniqueViolation is the SQLSTATE of a unique constraint violation.
	uniqueViolation = "23505"

	// constraints that make a username unique in chat_users.
	usernamePrimaryKey = "chat_users_pkey"
	usernameLowerIndex = "chat_users_username_lower_idx"
)

// isDuplicateUsername reports whether err is a unique violation on one of
// the chat_users username constraints.
func isDuplicateUsername(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return pgErr.ConstraintName == usernamePrimaryKey || pgErr.ConstraintName == usernameLowerIndex
}
