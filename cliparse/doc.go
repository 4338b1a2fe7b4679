// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

A .env file in the working directory is loaded first if present. Values
already set in the environment are not overwritten by it.

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Connection string (required)
  - DatabaseType: postgres (default) or sqlite
  - ViewTokenSecret: HMAC secret for view-only links (required)
  - BaseURL: Public base URL for poll links (default: derived from request)
  - UploadDir: Image directory (default: uploads)
  - MaxImageSize: Upload cap in bytes (default: 5MB)
  - MaxPollsPerHour / MaxVotesPerMinute: Per-IP limits (default: 5 / 10)
  - BlockDuration: Lockout after exceeding a limit (default: 1h)
  - SweepInterval: Expiry sweep period (default: 1h)
  - Retention: How long expired polls are kept (default: 7 days)
  - TrustedProxies: Peers allowed to name the client in forwarding headers
    (default: loopback and private addresses; "*" trusts every peer)

# CLI Flags

	-p               Server port
	-d               Database URL
	-t               Database type
	-view-secret     View token secret
	-base-url        Public base URL
	-upload-dir      Upload directory
	-max-image-size  Image cap in bytes
	-max-polls       Polls per IP per hour
	-max-votes       Votes per IP per minute
	-block-seconds   Lockout duration
	-sweep-interval  Sweep period (Go duration)
	-retention-days  Expired poll retention
	-sweep-once      Run one sweep and exit
	-log-level       debug, info, warn, error
	-trusted-proxies Comma-separated proxy IPs or CIDRs

# Environment Variables

Flags fall back to environment variables:

	PORT                     → -p
	DATABASE_URL             → -d
	DATABASE_TYPE            → -t
	VIEW_TOKEN_SECRET        → -view-secret
	BASE_URL                 → -base-url
	UPLOAD_DIR               → -upload-dir
	MAX_IMAGE_SIZE           → -max-image-size
	MAX_POLLS_PER_HOUR       → -max-polls
	MAX_VOTES_PER_MINUTE     → -max-votes
	RATE_LIMIT_BLOCK_SECONDS → -block-seconds
	TRUSTED_PROXIES          → -trusted-proxies
	SWEEP_INTERVAL           → -sweep-interval
	RETENTION_DAYS           → -retention-days
	LOG_LEVEL                → -log-level
*/
package cliparse
