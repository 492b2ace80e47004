package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds bazinga client configuration.
type Config struct {
	APIURL      string `env:"BAZINGA_API_URL"     envDefault:"http://localhost:8000"`
	ListenAddr  string `env:"BAZINGA_LISTEN_ADDR" envDefault:"127.0.0.1:8090"`
	DatabaseURL string `env:"BAZINGA_DATABASE_URL"`

	JournalSessions int `env:"BAZINGA_JOURNAL_SESSIONS" envDefault:"64"` // in-memory journal only

	DialTimeout    time.Duration `env:"BAZINGA_DIAL_TIMEOUT"    envDefault:"10s"`
	RequestTimeout time.Duration `env:"BAZINGA_REQUEST_TIMEOUT" envDefault:"15s"`
	ReadLimit      int64         `env:"BAZINGA_READ_LIMIT"      envDefault:"1048576"`

	SubscriberBuffer int     `env:"BAZINGA_SUBSCRIBER_BUFFER" envDefault:"16"`
	RateLimit        float64 `env:"BAZINGA_RATE_LIMIT"        envDefault:"10"` // requests per second
	RateLimitBurst   int     `env:"BAZINGA_RATE_LIMIT_BURST"  envDefault:"20"`

	LogLevel  string `env:"BAZINGA_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"BAZINGA_LOG_FORMAT" envDefault:"json"`
}

// LoadDotEnv reads the given .env files into the environment. Variables that are
// already set win. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ParseConfig parses the environment, then flags, into a Config.
func ParseConfig(fset *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fset.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "game server base url")
	fset.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "local control api address")
	fset.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "postgres dsn for the event journal (empty keeps it in memory)")
	fset.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "timeout for opening a session connection")
	fset.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "timeout for game server http calls")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fset.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api url must be an http(s) url, got %q", c.APIURL)
	}
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive, got %s", c.DialTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("read limit must be positive, got %d", c.ReadLimit)
	}
	if c.JournalSessions < 1 {
		return fmt.Errorf("journal sessions must be at least 1, got %d", c.JournalSessions)
	}
	if c.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber buffer must be at least 1, got %d", c.SubscriberBuffer)
	}
	if c.RateLimit < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
