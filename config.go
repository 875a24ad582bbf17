package iam

import (
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultAccessTokenTTL  = 3600
	DefaultRefreshTokenTTL = 86400

	HashArgon2 = "argon2"
	HashBcrypt = "bcrypt"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	NotifyLog   = "log"
	NotifyRedis = "redis"
)

// Config is the process configuration. It is loaded once at startup and must
// not be mutated afterwards.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Token    TokenConfig
	Hashing  HashingConfig
	Discord  DiscordConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Addr         string        `env:"APP_ADDR" envDefault:":3000"`
	ReadTimeout  time.Duration `env:"APP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"APP_WRITE_TIMEOUT" envDefault:"10s"`
}

type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DB_DSN" envDefault:"file:iam.db?cache=shared"`
	Debug  bool   `env:"DB_DEBUG"`
}

// TokenConfig holds the JWT settings. TTLs are in seconds.
type TokenConfig struct {
	Secret          string `env:"JWT_SECRET"`
	Audience        string `env:"JWT_TOKEN_AUDIENCE" envDefault:"localhost"`
	Issuer          string `env:"JWT_TOKEN_ISSUER" envDefault:"localhost"`
	AccessTokenTTL  int    `env:"JWT_ACCESS_TOKEN_TTL" envDefault:"3600"`
	RefreshTokenTTL int    `env:"JWT_REFRESH_TOKEN_TTL" envDefault:"86400"`
}

// AccessTTL returns the access token lifetime
func (c TokenConfig) AccessTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return DefaultAccessTokenTTL * time.Second
	}
	return time.Duration(c.AccessTokenTTL) * time.Second
}

// RefreshTTL returns the refresh token lifetime
func (c TokenConfig) RefreshTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return DefaultRefreshTokenTTL * time.Second
	}
	return time.Duration(c.RefreshTokenTTL) * time.Second
}

func (c TokenConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Secret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.Audience, validation.Required),
		validation.Field(&c.Issuer, validation.Required),
		validation.Field(&c.AccessTokenTTL, validation.Min(0)),
		validation.Field(&c.RefreshTokenTTL, validation.Min(0)),
	)
}

type HashingConfig struct {
	Algorithm  string `env:"HASH_ALGORITHM" envDefault:"argon2"`
	BcryptCost int    `env:"BCRYPT_COST" envDefault:"12"`
}

type DiscordConfig struct {
	ClientID     string `env:"DISCORD_CLIENT_ID"`
	ClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	CallbackURL  string `env:"DISCORD_CALLBACK_URL"`

	// RequireVerifiedEmail rejects Discord accounts whose email is unverified
	RequireVerifiedEmail bool `env:"DISCORD_REQUIRE_VERIFIED_EMAIL" envDefault:"true"`
}

// Enabled reports whether social login through Discord is configured
func (c DiscordConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type NotifyConfig struct {
	Driver        string        `env:"NOTIFY_DRIVER" envDefault:"log"`
	Workers       int           `env:"NOTIFY_WORKERS" envDefault:"2"`
	QueueSize     int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"64"`
	SendTimeout   time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"10s"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisKey      string        `env:"NOTIFY_REDIS_KEY" envDefault:"iam:notifications"`
}

// LoadConfig reads the configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse configuration").
			WithTextCode(TextCodeInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks cross field constraints
func (c Config) Validate() error {
	if err := c.Token.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid token configuration").
			WithTextCode(TextCodeInvalidConfig)
	}

	err := validation.Errors{
		"db_driver":      validation.Validate(c.Database.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		"db_dsn":         validation.Validate(c.Database.DSN, validation.Required),
		"hash_algorithm": validation.Validate(c.Hashing.Algorithm, validation.In(HashArgon2, HashBcrypt)),
		"notify_driver":  validation.Validate(c.Notify.Driver, validation.In(NotifyLog, NotifyRedis)),
		"notify_workers": validation.Validate(c.Notify.Workers, validation.Min(1)),
	}.Filter()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
			WithTextCode(TextCodeInvalidConfig)
	}

	return nil
}
