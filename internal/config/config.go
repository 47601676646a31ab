package config

import (
	"errors"
	"time"
)

type Config struct {
	Service   *ServiceConfig
	Logger    *LoggerConfig
	Tracer    *TracerConfig
	Store     *StoreConfig
	Mongo     *MongoConfig
	Postgres  *PostgresConfig
	Redis     *RedisConfig
	Auth      *AuthConfig
	RateLimit *RateLimitConfig
	WebSocket *WebSocketConfig
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Enabled bool
	Address string
}

// StoreConfig selects the persistence backend: "mongo", "postgres" or "memory".
type StoreConfig struct {
	Driver string
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
	MaxPoolSize    uint64
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type AuthConfig struct {
	JWTSecret    string
	Issuer       string
	TokenTTL     time.Duration
	CookieName   string
	CookieSecure bool

	// ResetTokenTTL bounds how long a password reset token can be redeemed.
	ResetTokenTTL time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type WebSocketConfig struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

func (c *Config) IsDevelopment() bool {
	return c.Service.Env == "development"
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("config: JWT_SECRET is required outside development"))
	}
	if c.WebSocket.PingPeriod <= 0 || c.WebSocket.PongWait <= 0 || c.WebSocket.WriteWait <= 0 {
		errs = append(errs, errors.New("config: WS_PING_PERIOD, WS_PONG_WAIT and WS_WRITE_WAIT must be positive"))
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		errs = append(errs, errors.New("config: WS_PING_PERIOD must be shorter than WS_PONG_WAIT"))
	}
	if c.Auth.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("config: RESET_TOKEN_TTL must be positive"))
	}
	if c.WebSocket.SendBuffer <= 0 {
		errs = append(errs, errors.New("config: WS_SEND_BUFFER must be positive"))
	}
	switch c.Store.Driver {
	case "mongo", "postgres", "memory":
	default:
		errs = append(errs, errors.New("config: STORE_DRIVER must be mongo, postgres or memory"))
	}
	return errors.Join(errs...)
}
