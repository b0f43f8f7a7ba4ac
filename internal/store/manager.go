package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/mpetrovs/scribebot/internal/store/migrations"
)

// Manager owns the database handle, selects the repository backend from
// the DSN and applies goose migrations.
type Manager struct {
	db      *sql.DB
	repo    Repository
	dialect string
}

// NewManager opens the database behind dsn. A postgres:// or
// postgresql:// DSN selects the pgx backend; anything else is treated as
// a SQLite file path. The SQLite handle is limited to a single
// connection, which serializes all store access through one writer.
func NewManager(dsn string) (*Manager, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		return &Manager{db: db, repo: NewPostgresRepository(db), dialect: "postgres"}, nil
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Manager{db: db, repo: NewSQLiteRepository(db), dialect: "sqlite3"}, nil
}

func (m *Manager) Users() Repository {
	return m.repo
}

func (m *Manager) Conn() *sql.DB {
	return m.db
}

func (m *Manager) Close() error {
	return m.db.Close()
}

func (m *Manager) RunMigrations(ctx context.Context) error {
	dir := "sqlite"
	if m.dialect == "postgres" {
		dir = "postgres"
	}

	sub, err := fs.Sub(migrations.Migrations, dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	goose.SetBaseFS(sub)
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}
