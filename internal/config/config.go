package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type DBConfig struct {
	Driver     string `env:"DB_DRIVER" envDefault:"postgres"`
	Host       string `env:"DB_HOST" envDefault:"localhost"`
	Port       string `env:"DB_PORT" envDefault:"5432"`
	User       string `env:"DB_USER"`
	Password   string `env:"DB_PASSWORD"`
	Name       string `env:"DB_NAME"`
	SSLMode    string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"DB_SQLITE_PATH" envDefault:"identity.db"`
}

type JWTConfig struct {
	Secret       string        `env:"JWT_SECRET,notEmpty"`
	Expiration   time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`
	CookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"session"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`
}

type OAuthProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	SubjectClaim string `env:"SUBJECT_CLAIM"`
}

type OAuthConfig struct {
	Google OAuthProviderConfig `envPrefix:"GOOGLE_"`
	GitHub OAuthProviderConfig `envPrefix:"GITHUB_"`
	// RedirectURL carries one %s for the provider name.
	RedirectURL string `env:"OAUTH_REDIRECT_URL" envDefault:"http://localhost:8080/auth/oauth/%s/callback"`
	// TrustGitHubEmailMerge lets a GitHub login join an existing account by
	// its login-derived email.
	TrustGitHubEmailMerge bool   `env:"IDENTITY_TRUST_GITHUB_EMAIL_MERGE" envDefault:"true"`
	LoginSuccessURL       string `env:"LOGIN_SUCCESS_URL" envDefault:"/"`
	LoginFailureURL       string `env:"LOGIN_FAILURE_URL" envDefault:"/login"`
}

type ServerConfig struct {
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"15s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// KafkaConfig is optional; events are dropped when KafkaUrl is empty.
type KafkaConfig struct {
	KafkaUrl            string `env:"KAFKA_URL"`
	SchemaRegistryUrl   string `env:"SCHEMA_REGISTRY_URL"`
	IdentityEventsTopic string `env:"IDENTITY_EVENTS_TOPIC" envDefault:"identity-events"`
}

type Config struct {
	DB        DBConfig
	JWT       JWTConfig
	OAuth     OAuthConfig
	Server    ServerConfig
	Kafka     KafkaConfig
	AppPort   string `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse builds the configuration from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.OAuth.Google.SubjectClaim == "" {
		cfg.OAuth.Google.SubjectClaim = "sub"
	}
	if cfg.OAuth.GitHub.SubjectClaim == "" {
		cfg.OAuth.GitHub.SubjectClaim = "id"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.JWT.Expiration <= 0 {
		return errors.New("JWT_EXPIRATION must be positive")
	}
	if c.Kafka.KafkaUrl != "" && c.Kafka.SchemaRegistryUrl == "" {
		return errors.New("SCHEMA_REGISTRY_URL is required when KAFKA_URL is set")
	}
	return nil
}

// GetDSN returns the database connection string
func (c *DBConfig) GetDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
