// Package config loads the service configuration of the pdfstamp binaries.
//
// Configuration is a JSON file, every key optional:
//
//	{
//	  "listen": ":8080",
//	  "log": {"level": "info", "development": false},
//	  "auth": {"secret": "..."},
//	  "fetch": {"timeout": "15s", "max_bytes": 33554432, "user_agent": "pdfstamp", "image_concurrency": 4},
//	  "cache": {"type": "redis", "ttl": "10m", "redis": {"host": "localhost", "port": 6379}},
//	  "server": {"max_body_bytes": 8388608, "shutdown_timeout": "10s"},
//	  "fonts": {"default": "helvetica", "form": "courier"}
//	}
//
// PDFSTAMP_LISTEN, PDFSTAMP_AUTH_SECRET, PDFSTAMP_REDIS_ADDR (host:port) and
// PDFSTAMP_LOG_LEVEL override the file.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lvillar/pdfstamp"
	"github.com/lvillar/pdfstamp/fetch"
	"github.com/lvillar/pdfstamp/pageops"
)

// ErrInvalid reports a configuration that fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Cache types.
const (
	CacheNone   = ""
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the service configuration.
type Config struct {
	Listen string     `json:"listen"`
	Log    LogConf    `json:"log"`
	Auth   AuthConf   `json:"auth"`
	Fetch  FetchConf  `json:"fetch"`
	Cache  CacheConf  `json:"cache"`
	Server ServerConf `json:"server"`
	Fonts  FontConf   `json:"fonts"`
}

type LogConf struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// AuthConf enables HS256 bearer authentication when Secret is set.
type AuthConf struct {
	Secret string `json:"secret"`
}

type FetchConf struct {
	Timeout          Duration `json:"timeout"`
	MaxBytes         int64    `json:"max_bytes"`
	UserAgent        string   `json:"user_agent"`
	ImageConcurrency int      `json:"image_concurrency"`
}

type CacheConf struct {
	Type       string          `json:"type"` // "", "memory" or "redis"
	TTL        Duration        `json:"ttl"`
	MaxEntries int             `json:"max_entries"` // memory only
	Prefix     string          `json:"prefix"`      // redis only
	Redis      fetch.RedisConf `json:"redis"`
}

type ServerConf struct {
	MaxBodyBytes    int64    `json:"max_body_bytes"`
	ReadTimeout     Duration `json:"read_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout"`
}

type FontConf struct {
	Default string `json:"default"`
	Form    string `json:"form"`
}

// Duration is a time.Duration written as a string such as "10s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string such as \"10s\": %s", b)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used for missing keys.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log:    LogConf{Level: "info"},
		Fetch: FetchConf{
			Timeout:          Duration(fetch.DefaultTimeout),
			MaxBytes:         fetch.DefaultMaxBytes,
			UserAgent:        "pdfstamp",
			ImageConcurrency: 4,
		},
		Cache: CacheConf{
			TTL:        Duration(10 * time.Minute),
			MaxEntries: 256,
			Prefix:     "pdfstamp:",
			Redis:      fetch.RedisConf{Host: "localhost", Port: 6379},
		},
		Server: ServerConf{
			MaxBodyBytes:    8 << 20,
			ReadTimeout:     Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Fonts: FontConf{Default: pageops.Helvetica, Form: pageops.Courier},
	}
}

// Load reads the file at path over the defaults, applies the environment
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := json.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PDFSTAMP_LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := lookup("PDFSTAMP_AUTH_SECRET"); ok {
		c.Auth.Secret = v
	}
	if v, ok := lookup("PDFSTAMP_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("PDFSTAMP_REDIS_ADDR"); ok && v != "" {
		host, port, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("%w: PDFSTAMP_REDIS_ADDR: %v", ErrInvalid, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("%w: PDFSTAMP_REDIS_ADDR port %q", ErrInvalid, port)
		}
		c.Cache.Type = CacheRedis
		c.Cache.Redis.Host, c.Cache.Redis.Port = host, p
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is empty"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %v", err))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, errors.New("fetch.max_bytes must be positive"))
	}
	if c.Fetch.ImageConcurrency < 1 {
		errs = append(errs, errors.New("fetch.image_concurrency must be at least 1"))
	}
	switch c.Cache.Type {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.Host == "" || c.Cache.Redis.Port <= 0 {
			errs = append(errs, errors.New("cache.redis needs host and port"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.type %q is not one of memory, redis", c.Cache.Type))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	fonts := pageops.NewFontRegistry(pageops.Helvetica)
	for _, f := range []struct{ name, key string }{{"fonts.default", c.Fonts.Default}, {"fonts.form", c.Fonts.Form}} {
		if _, ok := fonts.Lookup(f.key); !ok {
			errs = append(errs, fmt.Errorf("%s: unknown font %q", f.name, f.key))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Logger builds the process logger. Both presets write to stderr.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Fetcher builds the fetcher for remote templates and images, wrapped in
// the configured cache. The returned close function releases the cache.
func (c *Config) Fetcher(ctx context.Context, log *zap.Logger) (fetch.Fetcher, func() error, error) {
	base := &fetch.HTTPFetcher{
		Timeout:   c.Fetch.Timeout.Std(),
		MaxBytes:  c.Fetch.MaxBytes,
		UserAgent: c.Fetch.UserAgent,
	}
	noop := func() error { return nil }
	switch c.Cache.Type {
	case CacheMemory:
		return &fetch.CachingFetcher{
			Fetcher: base,
			Cache:   fetch.NewMemoryCache(c.Cache.MaxEntries),
			TTL:     c.Cache.TTL.Std(),
			Log:     log,
		}, noop, nil
	case CacheRedis:
		cache := fetch.NewRedisCache(c.Cache.Redis, c.Cache.Prefix)
		if err := cache.Ping(ctx); err != nil {
			cache.Close()
			return nil, nil, fmt.Errorf("config: redis %s:%d: %w", c.Cache.Redis.Host, c.Cache.Redis.Port, err)
		}
		return &fetch.CachingFetcher{Fetcher: base, Cache: cache, TTL: c.Cache.TTL.Std(), Log: log}, cache.Close, nil
	}
	return base, noop, nil
}

// EngineOptions returns the engine options the configuration sets.
func (c *Config) EngineOptions(log *zap.Logger, f fetch.Fetcher) []pdfstamp.Option {
	return []pdfstamp.Option{
		pdfstamp.WithLogger(log),
		pdfstamp.WithFetcher(f),
		pdfstamp.WithImageConcurrency(c.Fetch.ImageConcurrency),
		pdfstamp.WithDefaultFont(c.Fonts.Default),
		pdfstamp.WithFormFont(c.Fonts.Form),
	}
}
