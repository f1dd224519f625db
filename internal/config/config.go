package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port            int           `envconfig:"PORT" default:"5001"`
	Env             string        `envconfig:"APP_ENV" default:"development"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"localhost:*,127.0.0.1:*,frontend-codac.vercel.app,*.vercel.app"`
	ExecuteURL      string        `envconfig:"EXECUTE_URL" default:"https://emkc.org/api/v2/piston/execute"`
	ExecuteTimeout  time.Duration `envconfig:"EXECUTE_TIMEOUT" default:"15s"`
	LockTimeout     time.Duration `envconfig:"LOCK_TIMEOUT" default:"10s"`
	OutboxSize      int           `envconfig:"OUTBOX_SIZE" default:"64"`
	MessagesPerSec  float64       `envconfig:"MESSAGES_PER_SECOND" default:"50"`
	MessageBurst    int           `envconfig:"MESSAGE_BURST" default:"100"`
	MaxMessageBytes int64         `envconfig:"MAX_MESSAGE_BYTES" default:"1048576"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

var ErrInvalid = errors.New("invalid configuration")

// Load reads the environment, after loading files (default ".env") when
// they exist. Variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Production() bool { return c.Env == "production" }

func (c Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

func (c Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: PORT %d out of range", ErrInvalid, c.Port)
	case c.LockTimeout <= 0:
		return fmt.Errorf("%w: LOCK_TIMEOUT must be positive", ErrInvalid)
	case c.ExecuteTimeout <= 0:
		return fmt.Errorf("%w: EXECUTE_TIMEOUT must be positive", ErrInvalid)
	case c.OutboxSize <= 0:
		return fmt.Errorf("%w: OUTBOX_SIZE must be positive", ErrInvalid)
	case c.MessagesPerSec <= 0 || c.MessageBurst <= 0:
		return fmt.Errorf("%w: MESSAGES_PER_SECOND and MESSAGE_BURST must be positive", ErrInvalid)
	}
	return nil
}
