package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultPort is the TCP port used when none is configured.
const DefaultPort = 6000

// Config holds the server settings, read from the environment.
type Config struct {
	Host          string        `env:"CHAT_HOST"`
	Port          int           `env:"CHAT_PORT,default=6000" validate:"gte=0,lte=65535"`
	WebSocketAddr string        `env:"CHAT_WS_ADDR"`
	WriteTimeout  time.Duration `env:"CHAT_WRITE_TIMEOUT,default=0s" validate:"gte=0"`
	LogLevel      string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToUpper(c.LogLevel)
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Address is the host:port the TCP listener binds to.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
