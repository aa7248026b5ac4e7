package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/reportpath/reportpath/internal/server"
	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/detect"
	"github.com/reportpath/reportpath/pkg/locate"
	"github.com/reportpath/reportpath/pkg/purl"
)

// resolverFunc adapts a closure to the server.Resolver interface. The
// disclosure-registry detector is keyed by package, so the detector set is
// rebuilt per request rather than shared.
type resolverFunc func(ctx context.Context, pkg purl.Package, opts check.Options) (*check.Result, error)

func (f resolverFunc) Resolve(ctx context.Context, pkg purl.Package, opts check.Options) (*check.Result, error) {
	return f(ctx, pkg, opts)
}

func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the resolution engine as an HTTP service",
		Long: `Serve exposes resolution over HTTP: POST /v1/check with a JSON body
{"package": "pkg:pypi/requests"} returns the ranked disclosure channels.
The evidence cache and rate-limit budget are shared across requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	fetcher, cleanup, err := c.newFetcher(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	locator := &locate.Locator{
		LibrariesIOKey: cfg.LibrariesIO.APIKey,
		NoGuess:        cfg.Check.NoGuess,
	}

	resolver := resolverFunc(func(ctx context.Context, pkg purl.Package, opts check.Options) (*check.Result, error) {
		detectors := detect.Default(detect.Options{
			Package:     pkg,
			GitHubToken: cfg.GitHub.Token,
		})
		for _, contact := range cfg.OverridesFor(pkg.String()) {
			opts.Overrides = append(opts.Overrides, check.Candidate{Target: contact})
		}
		return check.NewEngine(locator, detectors, fetcher).Resolve(ctx, pkg, opts)
	})

	baseOpts := check.Options{
		Timeout:       time.Duration(cfg.Check.Timeout),
		MaxCandidates: cfg.Check.MaxCandidates,
		Concurrency:   cfg.Check.Concurrency,
		Logger:        logger,
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(resolver, baseOpts, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
