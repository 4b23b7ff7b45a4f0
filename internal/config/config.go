package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Store    StoreConfig    `mapstructure:"store"    validate:"required"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"  validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains credential issuance settings.
// Access and refresh tokens are signed with different secrets so that leaking
// one key does not compromise the other credential class.
type AuthConfig struct {
	AccessTokenSecret           string `mapstructure:"access_token_secret"            validate:"required,min=32"`
	RefreshTokenSecret          string `mapstructure:"refresh_token_secret"           validate:"required,min=32,nefield=AccessTokenSecret"`
	AccessTokenLifetimeMinutes  int    `mapstructure:"access_token_lifetime_minutes"  validate:"required,gte=1,lte=60"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gte=60,lte=129600"`
	BcryptCost                  int    `mapstructure:"bcrypt_cost"                    validate:"gte=4,lte=31"`
	CaseInsensitiveUsernames    bool   `mapstructure:"case_insensitive_usernames"`
}

// StoreConfig selects the backend for refresh records.
type StoreConfig struct {
	RefreshBackend string `mapstructure:"refresh_backend" validate:"required,oneof=postgres redis"`
	RedisAddr      string `mapstructure:"redis_addr"      validate:"required_if=RefreshBackend redis"`
	RedisPassword  string `mapstructure:"redis_password"`
	RedisDB        int    `mapstructure:"redis_db"        validate:"gte=0"`
	RedisKeyPrefix string `mapstructure:"redis_key_prefix"`
}

// SweeperConfig controls the retention sweep of expired refresh records.
type SweeperConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes" validate:"gte=1"`
}
