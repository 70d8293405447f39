// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and manages its schema.

# Connections

Open supports Postgres (lib/pq) and SQLite (modernc.org/sqlite):

	conn, err := db.Open(db.Postgres, "postgres://...")
	conn, err := db.Open(db.SQLite, "govboard.db")

Queries are always written with Postgres style $N placeholders. For SQLite
the DB and Tx wrappers rewrite them to positional ? before execution.

# Migrations

Migrations are registered with goose (pressly/goose/v3) as Go migrations.
Migrate applies every pending entry inside its own transaction and goose
records it in goose_db_version:

	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatal(err)
	}

Rollback undoes the latest applied migration and Version reports the
current one. The last migration, 20220330152605_add_image_column, adds
users.image.

# Tables

  - users, addresses: accounts and their on-chain addresses
  - post_types, post_topics: seeded lookup tables
  - posts, comments: discussion content
  - onchain_links: ties a post to a referendum, motion or tech committee proposal
  - tech_committee_proposals: indexed proposals
  - calendar_events: governance calendar per network
  - post_subscriptions, notifications: comment and proposal notifications

# Relationships

	users 1──* addresses
	users 1──* posts 1──* comments
	posts 1──1 onchain_links *──1 tech_committee_proposals
	posts *──* users (via post_subscriptions)
	users 1──* notifications
*/
package db
