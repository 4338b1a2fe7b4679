// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database dialects and schema creation.

# Dialects

QuickPoll runs on PostgreSQL in production and on SQLite for local
development and tests. The two differ only in how a serial key is declared
and how the current time is read:

	d, err := db.DialectFor(cfg.DatabaseType)
	conn, err := sql.Open(d.DriverName, cfg.DatabaseURL)

All timestamps are stored as integer Unix seconds computed by d.Now inside
the statement that writes them, so every comparison uses the database
clock.

# Schema Creation

	if err := db.CreateSchema(ctx, conn, d); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.

# Tables

  - polls: Poll metadata, expiry and frozen winner
  - poll_options: Options with their running vote_count
  - votes: One row per (poll, IP)
  - rate_limits: Fixed-window counters per (IP, action)

# Relationships

	polls 1──* poll_options
	polls 1──* votes
	poll_options 1──* votes

Foreign keys use ON DELETE CASCADE. rate_limits is independent.
*/
package db
