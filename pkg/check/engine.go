package check

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
)

// Options configures one resolution run.
type Options struct {
	// Timeout bounds the whole run. On expiry, in-flight probes are
	// abandoned and whatever completed is aggregated with Partial set.
	Timeout time.Duration

	// MaxCandidates truncates the ranked result. 0 means unlimited.
	MaxCandidates int

	// Concurrency bounds parallel (location x detector) probes.
	Concurrency int

	// Policy supplies the confidence constants. Zero value means
	// DefaultPolicy.
	Policy Policy

	// Overrides are operator-supplied candidates, typically from the
	// config file, merged with detector output before ranking. Missing
	// fields are filled in: detector name, override confidence, and a
	// kind inferred from the target.
	Overrides []Candidate

	Logger *log.Logger
}

const (
	defaultTimeout     = 60 * time.Second
	defaultConcurrency = 10
)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if (o.Policy == Policy{}) {
		o.Policy = DefaultPolicy()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Engine wires a locator, a detector set and the shared fetcher into the
// single Resolve entry point. Construct once with [NewEngine]; safe for
// concurrent use.
type Engine struct {
	locator   Locator
	detectors []Detector
	fetcher   *fetch.Fetcher
}

// NewEngine creates an engine. The detector slice is used as given; order
// does not affect ranking (ties are broken by the fixed priority in
// policy.go), only log readability.
func NewEngine(locator Locator, detectors []Detector, fetcher *fetch.Fetcher) *Engine {
	return &Engine{locator: locator, detectors: detectors, fetcher: fetcher}
}

// Resolve finds disclosure channels for pkg.
//
// It always returns a Result for a structurally valid package: location
// lookups, probes and even panicking detectors degrade to fewer
// candidates, never to an error. The returned error is non-nil only when
// the parent context was already cancelled.
func (e *Engine) Resolve(ctx context.Context, pkg purl.Package, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	logger := opts.Logger
	logger.Debug("resolving", "package", pkg.String())

	locations, err := e.locator.Locate(ctx, pkg, e.fetcher)
	if err != nil {
		// Locator failures are soft: resolution proceeds with whatever
		// locations (possibly none) were produced.
		logger.Warn("source location lookup degraded", "package", pkg.String(), "err", err)
	}
	sort.SliceStable(locations, func(i, j int) bool {
		return locations[i].Trust > locations[j].Trust
	})
	logger.Debug("located", "package", pkg.String(), "locations", len(locations))

	type probeOutcome struct {
		ProbeResult
		detector string
		loc      Location
	}

	outcomes := make([]probeOutcome, len(locations)*len(e.detectors))
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	for li, loc := range locations {
		for di, det := range e.detectors {
			loc, det := loc, det
			slot := li*len(e.detectors) + di
			g.Go(func() error {
				res := e.probe(ctx, det, loc, logger)
				outcomes[slot] = probeOutcome{ProbeResult: res, detector: det.Name(), loc: loc}
				return nil
			})
		}
	}
	_ = g.Wait() // probes never return errors; failures are isolated above

	var all []Candidate
	var notes []string
	seenNote := map[string]bool{}
	for _, out := range outcomes {
		all = append(all, out.Candidates...)
		for _, n := range out.Notes {
			if !seenNote[n] {
				seenNote[n] = true
				notes = append(notes, n)
			}
		}
	}
	sort.Strings(notes)

	for _, c := range opts.Overrides {
		all = append(all, normalizeOverride(c, opts.Policy))
	}

	ranked, confirmed := aggregate(all, opts.MaxCandidates)

	result := &Result{
		Package:    pkg,
		Locations:  locations,
		Candidates: ranked,
		Notes:      notes,
		Confirmed:  confirmed,
		Partial:    ctx.Err() != nil,
		Duration:   time.Since(start),
	}
	logger.Debug("resolved",
		"package", pkg.String(),
		"candidates", len(ranked),
		"confirmed", confirmed,
		"partial", result.Partial,
		"took", result.Duration.Round(time.Millisecond))
	return result, nil
}

func normalizeOverride(c Candidate, p Policy) Candidate {
	if c.Detector == "" {
		c.Detector = DetectorOverride
	}
	if c.Confidence == 0 {
		c.Confidence = p.Override
	}
	if c.Kind == "" {
		if strings.Contains(c.Target, "@") {
			c.Kind = ChannelEmail
		} else {
			c.Kind = ChannelContactURL
		}
	}
	return c
}

// probe runs one detector against one location, isolating panics so a
// misbehaving detector cannot take down its siblings.
func (e *Engine) probe(ctx context.Context, det Detector, loc Location, logger *log.Logger) (res ProbeResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("detector panicked", "detector", det.Name(), "location", loc.String(), "panic", r)
			res = ProbeResult{}
		}
	}()

	res, err := det.Probe(ctx, loc, e.fetcher)
	if err != nil {
		logger.Debug("detector skipped", "detector", det.Name(), "location", loc.String(), "err", err)
		return ProbeResult{}
	}
	return res
}
