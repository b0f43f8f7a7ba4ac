package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mpetrovs/scribebot/internal/common"
)

// SQLiteRepository stores user records in a local SQLite database.
type SQLiteRepository struct {
	db DBTX
}

func NewSQLiteRepository(db DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, userID int64, email string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, email) VALUES (?, ?)`, userID, email)
	if err != nil {
		// modernc reports unique-key violations as "UNIQUE constraint failed".
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("user %d: %w", userID, common.ErrAlreadyExists)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) getField(ctx context.Context, column string, userID int64) (string, error) {
	var v sql.NullString
	query := fmt.Sprintf(`SELECT %s FROM users WHERE user_id = ?`, column)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	if !v.Valid || v.String == "" {
		return "", common.ErrNotFound
	}
	return v.String, nil
}

func (r *SQLiteRepository) setField(ctx context.Context, column string, userID int64, value string) error {
	query := fmt.Sprintf(`UPDATE users SET %s = ? WHERE user_id = ?`, column)
	if _, err := r.db.ExecContext(ctx, query, value, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetEmail(ctx context.Context, userID int64) (string, error) {
	return r.getField(ctx, "email", userID)
}

func (r *SQLiteRepository) SetEmail(ctx context.Context, userID int64, email string) error {
	return r.setField(ctx, "email", userID, email)
}

func (r *SQLiteRepository) GetPassword(ctx context.Context, userID int64) (string, error) {
	return r.getField(ctx, "user_password", userID)
}

func (r *SQLiteRepository) SetPassword(ctx context.Context, userID int64, password string) error {
	return r.setField(ctx, "user_password", userID, password)
}

func (r *SQLiteRepository) GetToken(ctx context.Context, userID int64) (string, error) {
	return r.getField(ctx, "auth_token", userID)
}

func (r *SQLiteRepository) SetToken(ctx context.Context, userID int64, token string) error {
	return r.setField(ctx, "auth_token", userID, token)
}

func (r *SQLiteRepository) GetMinutes(ctx context.Context, userID int64) (int64, int64, error) {
	var maxMinutes, usedMinutes int64
	err := r.db.QueryRowContext(ctx,
		`SELECT max_minutes, used_minutes FROM users WHERE user_id = ?`, userID).
		Scan(&maxMinutes, &usedMinutes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("db error: %w", err)
	}
	return maxMinutes, usedMinutes, nil
}

func (r *SQLiteRepository) SetMinutes(ctx context.Context, userID int64, maxMinutes, usedMinutes int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, max_minutes, used_minutes) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET max_minutes = excluded.max_minutes, used_minutes = excluded.used_minutes
	`, userID, maxMinutes, usedMinutes)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
