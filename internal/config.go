package internal

import (
	"fmt"
	"time"
)

const (
	StorageBadger   = "badger"
	StoragePostgres = "postgres"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,required=true"`
	GrpcHealthPort int    `env:"GRPC_HEALTH_PORT,default=0"`
	DebugPort      int    `env:"DEBUG_PORT,default=8081"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	StorageDriver  string `env:"STORAGE_DRIVER,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	PostgresDSN    string `env:"POSTGRES_DSN"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL,default=estate-chat:messages"`

	JwtSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	RealtimePingInterval time.Duration `env:"REALTIME_PING_INTERVAL,default=30s"`

	MaxContentLength int    `env:"MAX_CONTENT_LENGTH,required=true"`
	CharReplacement  string `env:"CHARACTER_REPLACEMENT,required=true"`
	SearchLimit      int    `env:"SEARCH_LIMIT,default=50"`
}

// Validate checks the combinations go-env cannot express with tags.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageBadger:
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required with STORAGE_DRIVER=%s", StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if len(c.JwtSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must hold at least 32 bytes")
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	}
	return nil
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
