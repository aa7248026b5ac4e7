// Package cli implements the reportpath command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/reportpath/reportpath/internal/config"
	"github.com/reportpath/reportpath/pkg/buildinfo"
	"github.com/reportpath/reportpath/pkg/cache"
	"github.com/reportpath/reportpath/pkg/fetch"
)

const (
	// appName is the application name used for directories and display.
	appName = "reportpath"

	// userAgent identifies us to the services we probe.
	userAgent = "reportpath/" + "1.x (+https://github.com/reportpath/reportpath)"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "reportpath",
		Short:        "Reportpath finds where to report a vulnerability in an open-source package",
		Long:         `Reportpath discovers the private disclosure channels for an open-source package: security policy contacts, the code host's private vulnerability reporting form, coordinated-disclosure services, and a public-tracker fallback when nothing better exists.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default ~/.config/reportpath/config.toml)")

	// Commands read the logger back out of their context, so subcommands
	// and the HTTP handlers share one wiring path.
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		return nil
	}

	root.AddCommand(c.checkCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration honoring the --config flag.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

// newFetcher builds the shared evidence fetcher from the configured cache
// backend.
func (c *CLI) newFetcher(ctx context.Context, cfg *config.Config, noCache bool) (*fetch.Fetcher, func(), error) {
	store, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, nil, err
	}
	f := fetch.New(store,
		fetch.WithTTL(time.Duration(cfg.Cache.TTL)),
		fetch.WithUserAgent(userAgent),
		fetch.WithLogger(c.Logger),
	)
	return f, func() { _ = store.Close() }, nil
}

func newCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Cache.Backend == "none" {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard
// (~/.cache/reportpath/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
