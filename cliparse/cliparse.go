package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Database types
const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

type Config struct {
	Port            int
	DatabaseURL     string
	DatabaseType    string
	ViewTokenSecret string
	BaseURL         string
	UploadDir       string
	MaxImageSize    int64
	LogLevel        string

	// Peers whose forwarding headers name the client. Empty trusts
	// loopback and private addresses only.
	TrustedProxies []netip.Prefix

	// Rate limits
	MaxPollsPerHour   int
	MaxVotesPerMinute int
	BlockDuration     time.Duration

	// Background sweep
	SweepInterval time.Duration
	Retention     time.Duration
	SweepOnce     bool
}

// Defaults mirror the production deployment
const (
	defaultPort              = 3318
	defaultUploadDir         = "uploads"
	defaultMaxImageSize      = 5 << 20
	defaultMaxPollsPerHour   = 5
	defaultMaxVotesPerMinute = 10
	defaultBlockSeconds      = 3600
	defaultSweepInterval     = time.Hour
	defaultRetentionDays     = 7
)

// ParseFlags loads an optional .env file, then parses flags with environment
// fallback. CLI flags take precedence over the environment.
func ParseFlags(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	var blockSeconds, retentionDays int
	var trustedProxies string

	fs := flag.NewFlagSet("quickpoll", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.BaseURL, "base-url", "", "Public base URL used for poll links")
	fs.StringVar(&cfg.UploadDir, "upload-dir", "", "Directory for uploaded option images")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&trustedProxies, "trusted-proxies", "", "Comma-separated proxy IPs or CIDRs allowed to set X-Forwarded-For (* for any)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.ViewTokenSecret, "view-secret", "", "View-only token secret (prefer env)")

	// Limits
	fs.Int64Var(&cfg.MaxImageSize, "max-image-size", 0, "Maximum image size in bytes")
	fs.IntVar(&cfg.MaxPollsPerHour, "max-polls", 0, "Polls per IP per hour")
	fs.IntVar(&cfg.MaxVotesPerMinute, "max-votes", 0, "Votes per IP per minute")
	fs.IntVar(&blockSeconds, "block-seconds", 0, "Rate limit lockout in seconds")

	// Sweep
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", 0, "Interval between expiry sweeps")
	fs.IntVar(&retentionDays, "retention-days", 0, "Days to keep expired polls")
	fs.BoolVar(&cfg.SweepOnce, "sweep-once", false, "Run one sweep and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Fall back to environment variables
	var err error
	if cfg.Port == 0 {
		if cfg.Port, err = envInt("PORT", defaultPort); err != nil {
			return Config{}, err
		}
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = os.Getenv("DATABASE_TYPE")
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = DatabasePostgres
		}
	}
	if cfg.DatabaseType != DatabasePostgres && cfg.DatabaseType != DatabaseSQLite {
		return Config{}, fmt.Errorf("unsupported DATABASE_TYPE %q", cfg.DatabaseType)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("BASE_URL")
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.Getenv("UPLOAD_DIR")
		if cfg.UploadDir == "" {
			cfg.UploadDir = defaultUploadDir
		}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = os.Getenv("LOG_LEVEL")
	}
	if trustedProxies == "" {
		trustedProxies = os.Getenv("TRUSTED_PROXIES")
	}
	if cfg.TrustedProxies, err = parseTrustedProxies(trustedProxies); err != nil {
		return Config{}, err
	}

	if cfg.MaxImageSize == 0 {
		size, err := envInt("MAX_IMAGE_SIZE", defaultMaxImageSize)
		if err != nil {
			return Config{}, err
		}
		cfg.MaxImageSize = int64(size)
	}
	if cfg.MaxPollsPerHour == 0 {
		if cfg.MaxPollsPerHour, err = envInt("MAX_POLLS_PER_HOUR", defaultMaxPollsPerHour); err != nil {
			return Config{}, err
		}
	}
	if cfg.MaxVotesPerMinute == 0 {
		if cfg.MaxVotesPerMinute, err = envInt("MAX_VOTES_PER_MINUTE", defaultMaxVotesPerMinute); err != nil {
			return Config{}, err
		}
	}
	if blockSeconds == 0 {
		if blockSeconds, err = envInt("RATE_LIMIT_BLOCK_SECONDS", defaultBlockSeconds); err != nil {
			return Config{}, err
		}
	}
	cfg.BlockDuration = time.Duration(blockSeconds) * time.Second

	if cfg.SweepInterval == 0 {
		if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, errors.New("invalid SWEEP_INTERVAL env variable")
			}
			cfg.SweepInterval = d
		} else {
			cfg.SweepInterval = defaultSweepInterval
		}
	}
	if retentionDays == 0 {
		if retentionDays, err = envInt("RETENTION_DAYS", defaultRetentionDays); err != nil {
			return Config{}, err
		}
	}
	cfg.Retention = time.Duration(retentionDays) * 24 * time.Hour

	// Secrets - MUST be provided
	if cfg.ViewTokenSecret == "" {
		cfg.ViewTokenSecret = os.Getenv("VIEW_TOKEN_SECRET")
	}
	if cfg.ViewTokenSecret == "" {
		return Config{}, errors.New("VIEW_TOKEN_SECRET required")
	}

	return cfg, nil
}

// parseTrustedProxies reads a comma-separated list of IPs and CIDRs.
// "*" trusts every peer.
func parseTrustedProxies(list string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		switch {
		case item == "":
			continue
		case item == "*":
			prefixes = append(prefixes, netip.MustParsePrefix("0.0.0.0/0"), netip.MustParsePrefix("::/0"))
		case strings.Contains(item, "/"):
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", item)
			}
			prefixes = append(prefixes, p.Masked())
		default:
			addr, err := netip.ParseAddr(item)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q", item)
			}
			addr = addr.Unmap()
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes, nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s env variable", name)
	}
	return n, nil
}
