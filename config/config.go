// Package config loads server settings from defaults, an optional YAML
// file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// RateLimitConfig caps inbound frames per connection: Burst frames per
// RefillInterval.
type RateLimitConfig struct {
	Burst          int           `yaml:"burst"`
	RefillInterval time.Duration `yaml:"refill_interval"`
}

type Config struct {
	// Addr is the listen address, e.g. ":3000".
	Addr string `yaml:"addr"`

	// AllowedOrigins lists origins allowed to open a WebSocket. "*" allows
	// any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the largest inbound frame in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// SendBuffer is the number of outbound signals queued per connection
	// before it is dropped as too slow.
	SendBuffer int `yaml:"send_buffer"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// StaticDir, when set, is served at / for the browser front end.
	StaticDir string `yaml:"static_dir"`

	LogLevel string `yaml:"log_level"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func Default() Config {
	return Config{
		Addr:           ":3000",
		AllowedOrigins: []string{"*"},
		MaxMessageSize: 4096,
		SendBuffer:     256,
		RateLimit: RateLimitConfig{
			Burst:          120,
			RefillInterval: time.Second,
		},
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Sanitize replaces unusable values with defaults.
func (c Config) Sanitize() Config {
	def := Default()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = def.SendBuffer
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadFile overlays the YAML file at path onto c. A missing file is an
// error; an empty path is not.
func (c Config) LoadFile(path string) (Config, error) {
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return c, nil
}

// LoadEnv overlays environment variables onto c. PORT is honoured for
// hosting platforms that only set that.
func (c Config) LoadEnv(getenv func(string) string) Config {
	if port := getenv("PORT"); port != "" {
		c.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if addr := getenv("WHITEBOARD_ADDR"); addr != "" {
		c.Addr = addr
	}
	if origins := getenv("WHITEBOARD_ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = parseList(origins)
	}
	if size := getenv("WHITEBOARD_MAX_MESSAGE_SIZE"); size != "" {
		if n, err := strconv.ParseInt(size, 10, 64); err == nil && n > 0 {
			c.MaxMessageSize = n
		}
	}
	if burst := getenv("WHITEBOARD_RATE_LIMIT_BURST"); burst != "" {
		if n, err := strconv.Atoi(burst); err == nil && n > 0 {
			c.RateLimit.Burst = n
		}
	}
	if dir := getenv("WHITEBOARD_STATIC_DIR"); dir != "" {
		c.StaticDir = dir
	}
	if level := getenv("WHITEBOARD_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	return c
}

// Flags holds the command-line overrides. Only flags that were set on the
// command line are applied.
type Flags struct {
	ConfigPath string

	set       *pflag.FlagSet
	addr      string
	staticDir string
	logLevel  string
	origins   []string
}

func (f *Flags) AddFlags(set *pflag.FlagSet) {
	f.set = set
	set.StringVarP(&f.ConfigPath, "config", "c", "", "path to a YAML config file")
	set.StringVar(&f.addr, "addr", "", "listen address (default :3000)")
	set.StringVar(&f.staticDir, "static-dir", "", "directory of front-end files to serve at /")
	set.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	set.StringSliceVar(&f.origins, "allowed-origin", nil, "origin allowed to connect; repeatable, * for any")
}

func (f *Flags) Apply(c Config) Config {
	if f.set == nil {
		return c
	}
	if f.set.Changed("addr") {
		c.Addr = f.addr
	}
	if f.set.Changed("static-dir") {
		c.StaticDir = f.staticDir
	}
	if f.set.Changed("log-level") {
		c.LogLevel = f.logLevel
	}
	if f.set.Changed("allowed-origin") {
		c.AllowedOrigins = f.origins
	}
	return c
}

// Load builds the final configuration from args and the process
// environment.
func Load(name string, args []string) (Config, error) {
	set := pflag.NewFlagSet(name, pflag.ContinueOnError)
	var flags Flags
	flags.AddFlags(set)
	if err := set.Parse(args); err != nil {
		return Config{}, err
	}
	if rest := set.Args(); len(rest) > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := Default().LoadFile(flags.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.LoadEnv(os.Getenv)
	cfg = flags.Apply(cfg)
	return cfg.Sanitize(), nil
}

// IsHelp reports whether err came from -h or --help.
func IsHelp(err error) bool {
	return errors.Is(err, pflag.ErrHelp)
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
