// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is read from the environment. Mains load .env first through
// godotenv/autoload.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PGHost           string `env:"PG_HOST" envDefault:"localhost"`
	PGPort           string `env:"PG_PORT" envDefault:"5432"`
	PGDatabase       string `env:"PG_DATABASE" envDefault:"pobudka"`

	RedisAddr      string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	RedisRoomLocks bool          `env:"REDIS_ROOM_LOCKS" envDefault:"false"`
	RoomLockTTL    time.Duration `env:"ROOM_LOCK_TTL" envDefault:"5s"`

	HistorianQueue     string `env:"HISTORIAN_QUEUE_NAME" envDefault:"pobudka_actions"`
	HistorianBatchSize int    `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMs   int    `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`

	// Ed25519 PEM key paths. Without them the server signs with a key
	// generated at startup.
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"pobudka.db"`

	// TokenExpireTime is a Go duration, or "never"/"0"/"" for tokens without exp.
	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// PostgresURL builds the pgx connection string.
func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.PostgresUser, c.PostgresPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// TokenTTL returns zero for tokens that never expire.
func (c Config) TokenTTL() (time.Duration, error) {
	switch c.TokenExpireTime {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(c.TokenExpireTime)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// HistorianFlushDelay converts HISTORIAN_FLUSH_MS.
func (c Config) HistorianFlushDelay() time.Duration {
	return time.Duration(c.HistorianFlushMs) * time.Millisecond
}

// Logger returns a logrus logger at LOG_LEVEL, falling back to info.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
