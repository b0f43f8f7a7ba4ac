// Package store implements the credential store: per-user email, sealed
// password, cached auth token and minute quotas, backed by SQLite or
// PostgreSQL with an in-memory read-through cache for emails.
package store

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by the repositories. Both
// *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository is the persistence contract for user records.
//
// Field getters return common.ErrNotFound when the row is missing or the
// field is NULL. GetMinutes instead treats a missing row as (0, 0).
type Repository interface {
	CreateUser(ctx context.Context, userID int64, email string) error
	UserExists(ctx context.Context, userID int64) (bool, error)

	GetEmail(ctx context.Context, userID int64) (string, error)
	SetEmail(ctx context.Context, userID int64, email string) error

	GetPassword(ctx context.Context, userID int64) (string, error)
	SetPassword(ctx context.Context, userID int64, password string) error

	GetToken(ctx context.Context, userID int64) (string, error)
	SetToken(ctx context.Context, userID int64, token string) error

	GetMinutes(ctx context.Context, userID int64) (maxMinutes, usedMinutes int64, err error)
	SetMinutes(ctx context.Context, userID int64, maxMinutes, usedMinutes int64) error
}
