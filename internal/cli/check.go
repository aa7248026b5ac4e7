package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/detect"
	"github.com/reportpath/reportpath/pkg/locate"
	"github.com/reportpath/reportpath/pkg/purl"
)

func (c *CLI) checkCommand() *cobra.Command {
	var (
		jsonOut bool
		noCache bool
		noGuess bool
		timeout time.Duration
		maxCand int
	)

	cmd := &cobra.Command{
		Use:   "check <package>",
		Short: "Find disclosure channels for a package",
		Long: `Check resolves a package identifier (purl format, e.g. pkg:pypi/requests)
to its source locations and probes each for private disclosure channels:
security policy contacts, the code host's vulnerability reporting form,
coordinated-disclosure services, and a public-tracker fallback.`,
		Example: `  reportpath check pkg:pypi/requests
  reportpath check pkg:npm/@babel/core --json
  reportpath check pkg:github/golang/go --no-cache`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(cmd.Context(), args[0], checkFlags{
				jsonOut: jsonOut,
				noCache: noCache,
				noGuess: noGuess,
				timeout: timeout,
				max:     maxCand,
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the result as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the evidence cache")
	cmd.Flags().BoolVar(&noGuess, "no-guess", false, "disable the heuristic repository guess")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall resolution timeout (default from config)")
	cmd.Flags().IntVar(&maxCand, "max", 0, "maximum candidates to report (default from config)")

	return cmd
}

type checkFlags struct {
	jsonOut bool
	noCache bool
	noGuess bool
	timeout time.Duration
	max     int
}

func (c *CLI) runCheck(ctx context.Context, arg string, flags checkFlags) error {
	pkg, err := purl.Parse(arg)
	if err != nil {
		return err
	}

	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	fetcher, cleanup, err := c.newFetcher(ctx, cfg, flags.noCache)
	if err != nil {
		return err
	}
	defer cleanup()

	locator := &locate.Locator{
		LibrariesIOKey: cfg.LibrariesIO.APIKey,
		NoGuess:        flags.noGuess || cfg.Check.NoGuess,
	}
	detectors := detect.Default(detect.Options{
		Package:     pkg,
		GitHubToken: cfg.GitHub.Token,
	})
	engine := check.NewEngine(locator, detectors, fetcher)

	opts := check.Options{
		Timeout:       time.Duration(cfg.Check.Timeout),
		MaxCandidates: cfg.Check.MaxCandidates,
		Concurrency:   cfg.Check.Concurrency,
		Logger:        logger,
	}
	if flags.timeout > 0 {
		opts.Timeout = flags.timeout
	}
	if flags.max > 0 {
		opts.MaxCandidates = flags.max
	}
	for _, contact := range cfg.OverridesFor(pkg.String()) {
		opts.Overrides = append(opts.Overrides, check.Candidate{Target: contact})
	}

	var spinner *Spinner
	if !flags.jsonOut {
		spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Resolving %s", pkg.String()))
		spinner.Start()
	}

	prog := newProgress(logger)
	result, err := engine.Resolve(ctx, pkg, opts)

	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("resolve %s: %w", pkg.String(), err)
	}
	prog.done(fmt.Sprintf("resolved %s", pkg.String()))

	if flags.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	renderResult(result)
	return nil
}

// renderResult prints a resolution to stdout in the human-readable format.
func renderResult(r *check.Result) {
	fmt.Println()
	fmt.Println(StyleTitle.Render(r.Package.String()))

	if len(r.Locations) > 0 {
		for _, loc := range r.Locations {
			printDetail("source: %s (%s)", loc.String(), loc.Trust)
		}
	} else {
		printWarning("no source repository found")
	}
	fmt.Println()

	if len(r.Candidates) == 0 {
		printError("no disclosure channels found")
		return
	}

	if r.Confirmed {
		printSuccess("found %s", plural(len(r.Candidates), "disclosure channel"))
	} else {
		printWarning("only fallback channels found")
	}

	for i, cand := range r.Candidates {
		conf := confidenceStyle(cand.Confidence).Render(fmt.Sprintf("%.0f%%", cand.Confidence*100))
		fmt.Printf("  %d. %s %s %s\n",
			i+1,
			StyleLink.Render(cand.Display()),
			conf,
			styleDetector.Render("("+cand.Detector+")"))
	}

	if len(r.Notes) > 0 {
		fmt.Println()
		for _, n := range r.Notes {
			printWarning("%s", n)
		}
	}

	if r.Partial {
		fmt.Println()
		printWarning("resolution timed out; results may be incomplete")
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
