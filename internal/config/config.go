// Package config loads the reportpath configuration file.
//
// The file lives at ~/.config/reportpath/config.toml (XDG_CONFIG_HOME is
// honored) and everything in it is optional: a missing file yields a usable
// default configuration. Credentials may also come from the environment,
// which takes precedence over nothing but never over an explicit file value.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "reportpath"

// Duration wraps time.Duration so TOML values can be written as "24h".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the full file schema.
type Config struct {
	GitHub      GitHub      `toml:"github"`
	LibrariesIO LibrariesIO `toml:"librariesio"`
	Cache       Cache       `toml:"cache"`
	Check       Check       `toml:"check"`
	Overrides   []Override  `toml:"override"`
}

type GitHub struct {
	// Token authorizes api.github.com calls. Falls back to $GITHUB_TOKEN.
	Token string `toml:"token"`
}

type LibrariesIO struct {
	// APIKey enables the libraries.io locator fallback. Falls back to
	// $LIBRARIESIO_API_KEY.
	APIKey string `toml:"api_key"`
}

type Cache struct {
	// Backend selects the cache store: "file" (default), "redis", "none".
	Backend string `toml:"backend"`
	// TTL bounds how long fetched responses are reused.
	TTL Duration `toml:"ttl"`

	Redis Redis `toml:"redis"`
}

type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type Check struct {
	// Timeout bounds one whole resolution.
	Timeout Duration `toml:"timeout"`
	// MaxCandidates truncates the ranked output. 0 means unlimited.
	MaxCandidates int `toml:"max_candidates"`
	// Concurrency bounds parallel probes.
	Concurrency int `toml:"concurrency"`
	// NoGuess disables the heuristic repository guess.
	NoGuess bool `toml:"no_guess"`
}

// Override pins a known-good disclosure contact for a package, ranked ahead
// of anything detection finds.
type Override struct {
	// Package is the identifier the override applies to, e.g.
	// "pkg:npm/left-pad". Versions are ignored when matching.
	Package string `toml:"package"`
	// Contact is an email address or reporting URL.
	Contact string `toml:"contact"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Cache: Cache{
			Backend: "file",
			TTL:     Duration(24 * time.Hour),
		},
		Check: Check{
			Timeout:       Duration(60 * time.Second),
			MaxCandidates: 10,
		},
	}
}

// Path returns the config file location.
func Path() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			cfg.fromEnv()
			return cfg, nil
		}
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.fromEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fromEnv()
	return cfg, cfg.validate()
}

// fromEnv fills credentials the file left empty.
func (c *Config) fromEnv() {
	if c.GitHub.Token == "" {
		c.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.LibrariesIO.APIKey == "" {
		c.LibrariesIO.APIKey = os.Getenv("LIBRARIESIO_API_KEY")
	}
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "", "file", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		return errors.New("cache backend redis requires cache.redis.addr")
	}
	for _, o := range c.Overrides {
		if o.Package == "" || o.Contact == "" {
			return errors.New("override entries need both package and contact")
		}
	}
	return nil
}

// OverridesFor returns the override contacts configured for pkg, matched on
// the canonical identifier with any version stripped.
func (c *Config) OverridesFor(canonical string) []string {
	want := stripVersion(canonical)
	var out []string
	for _, o := range c.Overrides {
		if stripVersion(normalizeOverrideKey(o.Package)) == want {
			out = append(out, o.Contact)
		}
	}
	return out
}

func normalizeOverrideKey(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "pkg:") {
		s = "pkg:" + s
	}
	return s
}

func stripVersion(s string) string {
	if i := strings.LastIndex(s, "@"); i > strings.LastIndex(s, "/") {
		return s[:i]
	}
	return s
}
