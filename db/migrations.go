// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// ErrNoMigrations is returned by Rollback when nothing has been applied.
var ErrNoMigrations = errors.New("no migrations applied")

// Migration is one schema change. Statements run in order inside a
// transaction; Down undoes Up. goose records applied versions in
// goose_db_version.
type Migration struct {
	Version int64
	Name    string
	Up      []string
	Down    []string
}

func (m Migration) String() string { return fmt.Sprintf("%d_%s", m.Version, m.Name) }

// Migrations lists every schema change in the order it is applied.
var Migrations = []Migration{
	{
		Version: 20200101000000,
		Name:    "create_users",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				username TEXT NOT NULL UNIQUE,
				email TEXT,
				name TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		Down: []string{`DROP TABLE IF EXISTS users`},
	},
	{
		Version: 20200101000100,
		Name:    "create_addresses",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS addresses (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				network TEXT NOT NULL,
				address TEXT NOT NULL UNIQUE,
				default_address BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_addresses_user_id ON addresses(user_id)`,
		},
		Down: []string{`DROP TABLE IF EXISTS addresses`},
	},
	{
		Version: 20200101000200,
		Name:    "create_post_types_and_topics",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS post_types (
				id INTEGER PRIMARY KEY,
				name TEXT NOT NULL UNIQUE
			)`, `
			CREATE TABLE IF NOT EXISTS post_topics (
				id INTEGER PRIMARY KEY,
				name TEXT NOT NULL UNIQUE
			)`,
			`INSERT INTO post_types (id, name) VALUES (1, 'Discussion'), (2, 'On chain')`,
			`INSERT INTO post_topics (id, name) VALUES
				(1, 'Democracy'), (2, 'Council'), (3, 'Technical Committee'), (4, 'Treasury'), (5, 'General')`,
		},
		Down: []string{
			`DROP TABLE IF EXISTS post_topics`,
			`DROP TABLE IF EXISTS post_types`,
		},
	},
	{
		Version: 20200101000300,
		Name:    "create_posts",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS posts (
				id TEXT PRIMARY KEY,
				author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title TEXT,
				content TEXT,
				type_id INTEGER NOT NULL REFERENCES post_types(id),
				topic_id INTEGER NOT NULL REFERENCES post_topics(id),
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_posts_type_id ON posts(type_id)`,
		},
		Down: []string{`DROP TABLE IF EXISTS posts`},
	},
	{
		Version: 20200101000400,
		Name:    "create_comments",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS comments (
				id TEXT PRIMARY KEY,
				post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				author_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id)`,
		},
		Down: []string{`DROP TABLE IF EXISTS comments`},
	},
	{
		Version: 20200101000500,
		Name:    "create_tech_committee_proposals",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS tech_committee_proposals (
				id INTEGER PRIMARY KEY,
				proposal_hash TEXT NOT NULL,
				proposer TEXT NOT NULL,
				method TEXT,
				status TEXT NOT NULL DEFAULT 'Proposed',
				block_number INTEGER,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
		Down: []string{`DROP TABLE IF EXISTS tech_committee_proposals`},
	},
	{
		Version: 20200101000600,
		Name:    "create_onchain_links",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS onchain_links (
				id TEXT PRIMARY KEY,
				post_id TEXT NOT NULL UNIQUE REFERENCES posts(id) ON DELETE CASCADE,
				proposer_address TEXT NOT NULL,
				onchain_referendum_id INTEGER,
				onchain_motion_id INTEGER,
				onchain_tech_committee_proposal_id INTEGER REFERENCES tech_committee_proposals(id),
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_onchain_links_tc ON onchain_links(onchain_tech_committee_proposal_id)`,
		},
		Down: []string{`DROP TABLE IF EXISTS onchain_links`},
	},
	{
		Version: 20200101000700,
		Name:    "create_calendar_events",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS calendar_events (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				content TEXT,
				start_time TIMESTAMP NOT NULL,
				end_time TIMESTAMP NOT NULL,
				module TEXT,
				network TEXT NOT NULL,
				url TEXT,
				event_type TEXT,
				event_id TEXT,
				status TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_calendar_events_network ON calendar_events(network)`,
		},
		Down: []string{`DROP TABLE IF EXISTS calendar_events`},
	},
	{
		Version: 20200101000800,
		Name:    "create_subscriptions_and_notifications",
		Up: []string{`
			CREATE TABLE IF NOT EXISTS post_subscriptions (
				post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (post_id, user_id)
			)`, `
			CREATE TABLE IF NOT EXISTS notifications (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				post_id TEXT REFERENCES posts(id) ON DELETE CASCADE,
				comment_id TEXT REFERENCES comments(id) ON DELETE CASCADE,
				kind TEXT NOT NULL,
				message TEXT NOT NULL,
				is_read BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id)`,
		},
		Down: []string{
			`DROP TABLE IF EXISTS notifications`,
			`DROP TABLE IF EXISTS post_subscriptions`,
		},
	},
	{
		Version: 20220330152605,
		Name:    "add_image_column",
		Up:      []string{`ALTER TABLE users ADD COLUMN image TEXT`},
		Down:    []string{`ALTER TABLE users DROP COLUMN image`},
	},
}

func newProvider(db *DB) (*goose.Provider, error) {
	dialect := goose.DialectSQLite3
	if db.Dialect == Postgres {
		dialect = goose.DialectPostgres
	}

	migrations := make([]*goose.Migration, 0, len(Migrations))
	for _, m := range Migrations {
		migrations = append(migrations, goose.NewGoMigration(m.Version, statements(m.Up), statements(m.Down)))
	}
	p, err := goose.NewProvider(dialect, db.DB, nil,
		goose.WithGoMigrations(migrations...),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up migrations: %w", err)
	}
	return p, nil
}

func statements(stmts []string) *goose.GoFunc {
	return &goose.GoFunc{
		RunTx: func(ctx context.Context, tx *sql.Tx) error {
			for _, stmt := range stmts {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Version returns the latest applied migration version, or 0.
func Version(ctx context.Context, db *DB) (int64, error) {
	p, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Migrate applies every pending migration. Safe to call multiple times.
func Migrate(ctx context.Context, db *DB) error {
	p, err := newProvider(db)
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	for _, r := range results {
		slog.Info("migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Rollback undoes the most recently applied migration and returns its
// version.
func Rollback(ctx context.Context, db *DB) (int64, error) {
	p, err := newProvider(db)
	if err != nil {
		return 0, err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if current == 0 {
		return 0, ErrNoMigrations
	}

	r, err := p.Down(ctx)
	if err != nil {
		return 0, fmt.Errorf("rollback %d failed: %w", current, err)
	}
	slog.Info("migration rolled back", "version", r.Source.Version, "duration", r.Duration)
	return r.Source.Version, nil
}
