// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the QuickPoll API server.

QuickPoll is an anonymous polling service: anyone can create a poll with
2 to 20 options (optionally with images and a password), share a direct
link for voting or a short-lived view-only link, and vote once per IP
address. Polls expire after a set number of hours or days, at which point
the winner is frozen.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... VIEW_TOKEN_SECRET=... go run .

For local development with the embedded SQLite driver:

	go run . -t sqlite -d "file:quickpoll.db" --view-secret dev

A .env file in the working directory is loaded first if present.

# Configuration

Required settings:

  - DATABASE_URL (-d): database connection string
  - VIEW_TOKEN_SECRET (--view-secret): HMAC secret for view-only tokens

Optional settings:

  - PORT (-p): server port (default: 3318)
  - DATABASE_TYPE (-t): postgres or sqlite (default: postgres)
  - BASE_URL: public origin for links; derived from the request if unset
  - UPLOAD_DIR, MAX_IMAGE_SIZE: image storage (default: uploads, 5 MB)
  - MAX_POLLS_PER_HOUR, MAX_VOTES_PER_MINUTE, RATE_LIMIT_BLOCK_SECONDS
  - SWEEP_INTERVAL, RETENTION_DAYS: background expiry and cleanup
  - LOG_LEVEL: debug, info, warn or error
  - TRUSTED_PROXIES: proxies allowed to set X-Forwarded-For (default:
    loopback and private peers; "*" for any)

Run a single sweep and exit, for cron:

	go run . -sweep-once

# Architecture

  - handlers: HTTP request handlers (polls, results, voting)
  - router: route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers, client IP
  - engine: validation, access rules, lazy expiry, voting, sweeper
  - store: SQL persistence over sqlx for PostgreSQL and SQLite
  - ratelimit: per-IP fixed-window limiter with lockout
  - blob: image upload validation and storage
  - auth: poll ids, password hashing, view tokens
  - models: request/response types
  - db: dialects and schema creation
  - cliparse: configuration parsing

See package documentation for each component.
*/
package main
