// Package config provides functionality for managing configuration options
// for the DevTrack client and the reference server. Values are layered:
// built-in defaults, then a JSON config file, then a .env file, then
// environment variables. Command-line flags are applied last by the caller.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends for persisted session slots.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Duration is a time.Duration that reads "10s"-style strings from both
// JSON and the environment.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Options holds the configuration values for the client.
type Options struct {
	// APIURL is the backend base URL.
	APIURL string `json:"api_url" env:"DEVTRACK_API_URL"`
	// WSURL is the push channel base URL. Derived from APIURL when empty.
	WSURL string `json:"ws_url" env:"DEVTRACK_WS_URL"`

	// Store selects where the session slots are persisted: file, sqlite or redis.
	Store string `json:"store" env:"DEVTRACK_STORE"`
	// StatePath is the file (file store) or database (sqlite store) path.
	StatePath     string `json:"state_path" env:"DEVTRACK_STATE_PATH"`
	RedisAddr     string `json:"redis_addr" env:"DEVTRACK_REDIS_ADDR"`
	RedisPassword string `json:"redis_password" env:"DEVTRACK_REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db" env:"DEVTRACK_REDIS_DB"`

	// CAFile is an optional PEM bundle trusted for HTTPS/WSS backends.
	CAFile  string   `json:"ca_file" env:"DEVTRACK_CA_FILE"`
	Timeout Duration `json:"timeout" env:"DEVTRACK_TIMEOUT"`

	LogLevel string `json:"log_level" env:"DEVTRACK_LOG_LEVEL"`
	// LogFile receives logs while the interactive UI owns the terminal.
	LogFile string `json:"log_file" env:"DEVTRACK_LOG_FILE"`
}

// Defaults returns the built-in client configuration.
func Defaults() *Options {
	dir := stateDir()
	return &Options{
		APIURL:    "http://localhost:8000",
		Store:     StoreFile,
		StatePath: filepath.Join(dir, "session.json"),
		RedisAddr: "localhost:6379",
		Timeout:   Duration{10 * time.Second},
		LogLevel:  "info",
		LogFile:   filepath.Join(dir, "devtrack.log"),
	}
}

// Load builds client Options from defaults, the optional JSON file at
// path, a .env file in the working directory, and the environment.
func Load(path string) (*Options, error) {
	opts := Defaults()
	if err := layer(path, opts); err != nil {
		return nil, err
	}
	if err := opts.Sanitize(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Sanitize fills derived values and rejects unusable ones.
func (o *Options) Sanitize() error {
	o.APIURL = strings.TrimRight(o.APIURL, "/")
	if o.APIURL == "" {
		return errors.New("api url is required")
	}
	if o.WSURL == "" {
		ws, err := DeriveWSURL(o.APIURL)
		if err != nil {
			return err
		}
		o.WSURL = ws
	}
	o.WSURL = strings.TrimRight(o.WSURL, "/")

	switch o.Store {
	case "":
		o.Store = StoreFile
	case StoreFile, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("unknown store %q", o.Store)
	}
	if o.Store == StoreSQLite && filepath.Ext(o.StatePath) == ".json" {
		o.StatePath = strings.TrimSuffix(o.StatePath, ".json") + ".db"
	}
	if o.Timeout.Duration <= 0 {
		o.Timeout = Duration{10 * time.Second}
	}
	if o.LogLevel == "" {
		o.LogLevel = "info"
	}
	return nil
}

// DeriveWSURL maps http(s)://host[/prefix] to ws(s)://host[/prefix].
func DeriveWSURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api url scheme %q", u.Scheme)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// ServerOptions holds the configuration values for the reference server.
type ServerOptions struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"addr" env:"SERVER_ADDRESS"`
	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`
	// JWTSecret signs access tokens.
	JWTSecret string   `json:"jwt_secret" env:"SECRET_KEY"`
	TokenTTL  Duration `json:"token_ttl" env:"ACCESS_TOKEN_TTL"`
	// Seed inserts the demo users into an empty database.
	Seed bool `json:"seed" env:"SEED_DEMO_USERS"`
	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert  string `json:"tls_cert" env:"TLS_CERT"`
	TLSKey   string `json:"tls_key" env:"TLS_KEY"`
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`
}

// ServerDefaults returns the built-in server configuration.
func ServerDefaults() *ServerOptions {
	return &ServerOptions{
		Addr:      "localhost:8000",
		JWTSecret: "devtrack-development-secret",
		TokenTTL:  Duration{30 * time.Minute},
		Seed:      true,
		LogLevel:  "info",
	}
}

// LoadServer builds ServerOptions the same way Load does for the client.
func LoadServer(path string) (*ServerOptions, error) {
	opts := ServerDefaults()
	if err := layer(path, opts); err != nil {
		return nil, err
	}
	if opts.DatabaseDSN == "" {
		return nil, errors.New("database dsn is required")
	}
	if opts.TokenTTL.Duration <= 0 {
		opts.TokenTTL = Duration{30 * time.Minute}
	}
	return opts, nil
}

// layer applies the config file, .env and environment onto dst.
func layer(path string, dst any) error {
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, dst); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("error while reading config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}

	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func stateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".devtrack"
	}
	return filepath.Join(dir, "devtrack")
}
