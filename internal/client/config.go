package client

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 6000
)

// Config holds the client settings, read from the environment.
type Config struct {
	Host         string `env:"CHAT_SERVER_HOST,default=127.0.0.1" validate:"required"`
	Port         int    `env:"CHAT_SERVER_PORT,default=6000" validate:"gte=1,lte=65535"`
	WebSocketURL string `env:"CHAT_SERVER_WS_URL" validate:"omitempty,url"`
	Color        bool   `env:"CHAT_COLOR,default=false"`
	LogLevel     string `env:"LOG_LEVEL,default=WARN" validate:"oneof=DEBUG INFO WARN ERROR"`
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

// Address is the host:port of the TCP server.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
