package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	envPrefix  = "ACCOUNTS_"
	configName = "config.yaml"
)

var defaultSearchPaths = []string{".", "config", "../config"}

type Config struct {
	HTTP    HTTP    `json:"http" yaml:"http"`
	Log     Log     `json:"log" yaml:"log"`
	Storage Storage `json:"storage" yaml:"storage"`
	Hasher  Hasher  `json:"hasher" yaml:"hasher"`
	Listing Listing `json:"listing" yaml:"listing"`
}

type HTTP struct {
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout  time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
	MaxBodyBytes int64         `json:"maxBodyBytes" yaml:"maxBodyBytes"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// Storage selects the account store. Driver is one of memory, sqlite or mongo.
type Storage struct {
	Driver string `json:"driver" yaml:"driver"`
	SQLite SQLite `json:"sqlite" yaml:"sqlite"`
	Mongo  Mongo  `json:"mongo" yaml:"mongo"`
}

type SQLite struct {
	Path string `json:"path" yaml:"path"`
}

type Mongo struct {
	URI            string        `json:"uri" yaml:"uri"`
	Database       string        `json:"database" yaml:"database"`
	Collection     string        `json:"collection" yaml:"collection"`
	ConnectTimeout time.Duration `json:"connectTimeout" yaml:"connectTimeout"`
}

// Hasher holds the bcrypt cost.
type Hasher struct {
	Cost int `json:"cost" yaml:"cost"`
}

// Listing controls what the account listing exposes.
type Listing struct {
	ExposePasswordHash bool `json:"exposePasswordHash" yaml:"exposePasswordHash"`
}

func Default() Config {
	return Config{
		HTTP: HTTP{
			Port:         8090,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Log:     Log{Level: "info"},
		Storage: Storage{
			Driver: "memory",
			SQLite: SQLite{Path: "accounts.db"},
			Mongo: Mongo{
				URI:            "mongodb://127.0.0.1:27017",
				Database:       "accounts",
				Collection:     "accounts",
				ConnectTimeout: 10 * time.Second,
			},
		},
		Hasher: Hasher{Cost: 12},
	}
}

// New loads config.yaml from the default search paths, if one exists, and
// applies ACCOUNTS_* environment overrides on top of the defaults.
func New() (*Config, error) {
	return Load(defaultSearchPaths...)
}

func Load(searchPaths ...string) (*Config, error) {
	k := koanf.New(".")

	if path, ok := findConfigFile(searchPaths); ok {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read %s failed", path)
		}
	}

	existing := k.Raw()
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, v string) (string, any) {
			// ACCOUNTS_HTTP_READTIMEOUT -> http.readTimeout when the file
			// already has that key, http.readtimeout otherwise.
			return canonicalizeEnvKey(strings.TrimPrefix(key, envPrefix), existing), v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal config failed")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.Errorf("invalid http port: %d", c.HTTP.Port)
	}

	switch c.Storage.Driver {
	case "memory", "sqlite", "mongo":
	default:
		return errors.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	// bcrypt.MinCost and bcrypt.MaxCost
	if c.Hasher.Cost < 4 || c.Hasher.Cost > 31 {
		return errors.Errorf("bcrypt cost out of range: %d", c.Hasher.Cost)
	}
	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		matched, next := segment, map[string]any(nil)
		for key, value := range current {
			if strings.EqualFold(key, segment) {
				matched = key
				next, _ = value.(map[string]any)
				break
			}
		}
		canonical = append(canonical, matched)
		current = next
	}

	return strings.Join(canonical, ".")
}

func findConfigFile(searchPaths []string) (string, bool) {
	for _, path := range searchPaths {
		candidate := filepath.Join(path, configName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}
