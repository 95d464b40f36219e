package config

type Config struct {
	Environment string `mapstructure:"environment" yaml:"environment"`
	Port        int    `mapstructure:"port" yaml:"port"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`

	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Auth     AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Authz    AuthzConfig    `mapstructure:"authz" yaml:"authz"`
}

// DatabaseConfig points at the MySQL-compatible policy database.
type DatabaseConfig struct {
	Host     string            `mapstructure:"host" yaml:"host"`
	Port     int               `mapstructure:"port" yaml:"port"`
	User     string            `mapstructure:"user" yaml:"user"`
	Password string            `mapstructure:"password" yaml:"password"`
	Name     string            `mapstructure:"name" yaml:"name"`
	TLS      bool              `mapstructure:"tls" yaml:"tls"`
	Params   map[string]string `mapstructure:"params" yaml:"params"`
}

// CacheConfig configures the Valkey/Redis node used for verdict
// memoization. When disabled the server runs with an in-process fallback.
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Password string `mapstructure:"password" yaml:"password"`
	TTL      int    `mapstructure:"ttl" yaml:"ttl"` // seconds
}

// AuthConfig covers bearer-token parsing only. Authentication itself is
// upstream; the gateway trusts the token and extracts identity claims.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
}

// AuthzConfig tunes the authorization layer.
type AuthzConfig struct {
	// BypassPrefixes are URL prefixes outside the authorization regime
	// (admin UI, static assets, docs, auth endpoints).
	BypassPrefixes []string `mapstructure:"bypass_prefixes" yaml:"bypass_prefixes"`
	// DecisionCacheTTL bounds verdict memoization, in seconds. Zero
	// disables the decision cache.
	DecisionCacheTTL int `mapstructure:"decision_cache_ttl" yaml:"decision_cache_ttl"`
	// Debug includes exception details in 500 envelopes.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// DefaultBypassPrefixes is the stock list applied when none is configured.
var DefaultBypassPrefixes = []string{
	"/admin/",
	"/accounts/",
	"/dashboard/",
	"/static/",
	"/media/",
	"/favicon.ico",
	"/api/schema/",
	"/api/docs/",
}
