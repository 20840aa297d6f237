package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/jhchabran/ideabox"
	"github.com/jhchabran/ideabox/redisstore"
	"github.com/jhchabran/ideabox/sqlstore"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	LogLevel         string `json:"log_level"`
	LogFormat        string `json:"log_format"`
	DatabaseDriver   string `json:"database_driver"`
	DatabaseURL      string `json:"database_url"`
	DatabaseName     string `json:"database_name"`
	DatabaseUser     string `json:"database_user"`
	DatabaseHost     string `json:"database_host"`
	DatabasePassword string `json:"database_password"`
	RedisAddr        string `json:"redis_addr"`
	ServerSecret     string `json:"server_secret"`
	SlackWebhookURL  string `json:"slack_webhook_url"`
	ProposalsPerPage int    `json:"proposals_per_page"`
	Addr             string `json:"addr"`
	CreateSchema     bool   `json:"create_schema"`
	SecureCookies    bool   `json:"secure_cookies"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "json",
		DatabaseDriver: sqlstore.DriverPostgres,
		DatabaseName:   "ideabox",
		DatabaseUser:   "postgres",
		Addr:           "localhost:8080",
	}
}

// Load reads config.json if present, then the .env file if present, then the
// environment. Values set in the environment take precedence over .env ones,
// which take precedence over config.json ones.
func (c *Config) Load() error {
	return c.load("config.json", ".env")
}

func (c *Config) load(jsonPath string, envPath string) error {
	f, err := os.Open(jsonPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err == nil {
		defer f.Close()
		err = json.NewDecoder(f).Decode(c)
		if err != nil {
			return fmt.Errorf("%s: %w", jsonPath, err)
		}
	}

	// godotenv never overrides variables already set in the environment
	err = godotenv.Load(envPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", envPath, err)
	}

	envStrings := map[string]*string{
		"LOG_LEVEL":         &c.LogLevel,
		"LOG_FORMAT":        &c.LogFormat,
		"DATABASE_DRIVER":   &c.DatabaseDriver,
		"DATABASE_URL":      &c.DatabaseURL,
		"DATABASE_NAME":     &c.DatabaseName,
		"DATABASE_USER":     &c.DatabaseUser,
		"DATABASE_HOST":     &c.DatabaseHost,
		"DATABASE_PASSWORD": &c.DatabasePassword,
		"REDIS_ADDR":        &c.RedisAddr,
		"SERVER_SECRET":     &c.ServerSecret,
		"SLACK_WEBHOOK_URL": &c.SlackWebhookURL,
		"ADDR":              &c.Addr,
	}
	for name, field := range envStrings {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}

	v := os.Getenv("PROPOSALS_PER_PAGE")
	if v != "" {
		vi, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PROPOSALS_PER_PAGE: %w", err)
		}

		c.ProposalsPerPage = vi
	}

	bools := map[string]*bool{
		"CREATE_SCHEMA":  &c.CreateSchema,
		"SECURE_COOKIES": &c.SecureCookies,
	}
	for name, field := range bools {
		if v := os.Getenv(name); v != "" {
			vb, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*field = vb
		}
	}

	switch c.DatabaseDriver {
	case sqlstore.DriverPostgres, sqlstore.DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}

	if c.ProposalsPerPage < 0 {
		return fmt.Errorf("proposals per page must not be negative")
	}

	return nil
}

// DatabaseDSN returns the connection string of the database, and false if no
// credentials were configured.
func (c *Config) DatabaseDSN() (string, bool) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, true
	}

	if c.DatabaseDriver != sqlstore.DriverPostgres || c.DatabaseHost == "" {
		return "", false
	}

	return fmt.Sprintf(
		"user=%v dbname=%v sslmode=disable password=%v host=%v",
		quoteDSNValue(c.DatabaseUser),
		quoteDSNValue(c.DatabaseName),
		quoteDSNValue(c.DatabasePassword),
		quoteDSNValue(c.DatabaseHost),
	), true
}

var dsnQuoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quoteDSNValue quotes a value of a key/value postgres connection string.
func quoteDSNValue(v string) string {
	return "'" + dsnQuoter.Replace(v) + "'"
}

// Secret returns the key signing the identity cookies. Without a configured secret,
// a random one is generated and identifiers will not survive a restart.
func (c *Config) Secret(logger zerolog.Logger) []byte {
	if c.ServerSecret != "" {
		return []byte(c.ServerSecret)
	}

	logger.Warn().Msg("No server secret configured, identity cookies will be invalidated on restart")
	return securecookie.GenerateRandomKey(32)
}

// Stores holds the stores described by a Config.
type Stores struct {
	Store ideabox.Store
	Polls ideabox.PollStore
	SQL   *sqlstore.SQLStore
	Redis *redisstore.RedisStore
}

// OpenStores connects to the configured stores. Without database credentials, it
// returns stores whose operations all fail with ideabox.ErrStoreNotConfigured, so
// that the server can still run.
func OpenStores(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Stores, error) {
	dsn, ok := cfg.DatabaseDSN()
	if !ok {
		logger.Warn().Msg("No database credentials configured, store backed routes are disabled")
		unconfigured := ideabox.UnconfiguredStore()
		return &Stores{Store: unconfigured, Polls: unconfigured}, nil
	}

	stores := &Stores{SQL: sqlstore.New(cfg.DatabaseDriver, dsn)}
	err := stores.SQL.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DatabaseDriver, err)
	}

	if cfg.CreateSchema {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err := stores.SQL.CreateSchema(ctx)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
		logger.Info().Str("driver", cfg.DatabaseDriver).Msg("Schema created")
	}

	stores.Store = stores.SQL
	stores.Polls = stores.SQL

	if cfg.RedisAddr != "" {
		stores.Redis = redisstore.New(cfg.RedisAddr)
		err := stores.Redis.Connect()
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		stores.Polls = stores.Redis
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Big issue poll stored in redis")
	}

	return stores, nil
}

func (s *Stores) Close() {
	if s.SQL != nil {
		s.SQL.Close()
	}
	if s.Redis != nil {
		s.Redis.Close()
	}
}

func SetupLogger(cfg *Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("input", cfg.LogLevel).Msg("Cannot parse log level")
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "" || cfg.LogFormat == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
}
