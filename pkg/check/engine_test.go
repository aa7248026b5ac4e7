package check

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reportpath/reportpath/pkg/cache"
	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
)

type stubLocator struct {
	locations []Location
	err       error
}

func (s *stubLocator) Locate(ctx context.Context, pkg purl.Package, f *fetch.Fetcher) ([]Location, error) {
	return s.locations, s.err
}

type stubDetector struct {
	name       string
	candidates []Candidate
	notes      []string
	err        error
	panics     bool
	delay      time.Duration
}

func (s *stubDetector) Name() string { return s.name }

func (s *stubDetector) Probe(ctx context.Context, loc Location, f *fetch.Fetcher) (ProbeResult, error) {
	if s.panics {
		panic("detector bug")
	}
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ProbeResult{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	if s.err != nil {
		return ProbeResult{}, s.err
	}
	out := make([]Candidate, len(s.candidates))
	for i, c := range s.candidates {
		c.Detector = s.name
		c.Location = loc
		out[i] = c
	}
	return ProbeResult{Candidates: out, Notes: s.notes}, nil
}

var testLoc = Location{Host: "github.com", Owner: "acme", Repo: "widget", Trust: TrustDeclared}

func testEngine(locator Locator, detectors ...Detector) *Engine {
	return NewEngine(locator, detectors, fetch.New(cache.NewNullCache()))
}

func TestResolveRanksAcrossDetectors(t *testing.T) {
	engine := testEngine(
		&stubLocator{locations: []Location{testLoc}},
		&stubDetector{name: DetectorSecurityPolicy, candidates: []Candidate{
			{Kind: ChannelEmail, Target: "security@example.com", Confidence: 0.9},
		}},
		&stubDetector{name: DetectorContactPage, candidates: []Candidate{
			{Kind: ChannelEmail, Target: "security@example.com", Confidence: 0.6},
			{Kind: ChannelContactURL, Target: "https://example.com/contact", Confidence: 0.3},
		}},
		&stubDetector{name: DetectorFallback, candidates: []Candidate{
			{Kind: ChannelIssueTracker, Target: "https://github.com/acme/widget/issues", Confidence: 0.1},
		}},
	)

	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemPyPI, Name: "requests"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if len(res.Candidates) != 3 {
		t.Fatalf("candidates = %d, want 3 (email deduped)", len(res.Candidates))
	}
	top, _ := res.Top()
	if top.Target != "security@example.com" || top.Confidence != 0.9 {
		t.Errorf("top = %+v, want deduped email at 0.9", top)
	}
	if res.Candidates[2].Kind != ChannelIssueTracker {
		t.Error("fallback not last")
	}
	if !res.Confirmed {
		t.Error("Confirmed = false, want true")
	}
}

func TestResolveFallbackOnly(t *testing.T) {
	engine := testEngine(
		&stubLocator{locations: []Location{testLoc}},
		&stubDetector{name: DetectorSecurityPolicy},
		&stubDetector{name: DetectorFallback, candidates: []Candidate{
			{Kind: ChannelIssueTracker, Target: "https://github.com/acme/widget/issues", Confidence: 0.1},
		}},
	)

	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemGitHub, Namespace: "acme", Name: "widget"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want exactly the fallback", len(res.Candidates))
	}
	if res.Confirmed {
		t.Error("Confirmed = true for fallback-only result")
	}
}

func TestResolveDetectorFailuresIsolated(t *testing.T) {
	engine := testEngine(
		&stubLocator{locations: []Location{testLoc}},
		&stubDetector{name: DetectorAdvisoryPlatform, panics: true},
		&stubDetector{name: DetectorDisclosureRegistry, err: errors.New("probe bug")},
		&stubDetector{name: DetectorSecurityPolicy, candidates: []Candidate{
			{Kind: ChannelEmail, Target: "security@example.com", Confidence: 0.9},
		}},
	)

	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemNPM, Name: "left-pad"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("candidates = %d, want 1 from the healthy detector", len(res.Candidates))
	}
}

func TestResolveLocatorErrorDegrades(t *testing.T) {
	engine := testEngine(
		&stubLocator{err: errors.New("registry timed out")},
		&stubDetector{name: DetectorSecurityPolicy, candidates: []Candidate{
			{Kind: ChannelEmail, Target: "security@example.com", Confidence: 0.9},
		}},
	)

	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemPyPI, Name: "requests"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v (locator failures must be soft)", err)
	}
	if len(res.Candidates) != 0 {
		t.Errorf("candidates = %d, want 0 (no locations to probe)", len(res.Candidates))
	}
	if res.Confirmed {
		t.Error("Confirmed = true for empty result")
	}
}

func TestResolveLocatorPartialDegrade(t *testing.T) {
	heuristic := Location{Host: "github.com", Owner: "requests", Repo: "requests", Trust: TrustHeuristic}
	engine := testEngine(
		&stubLocator{locations: []Location{heuristic}, err: errors.New("registry timed out")},
		&stubDetector{name: DetectorFallback, candidates: []Candidate{
			{Kind: ChannelIssueTracker, Target: "https://github.com/requests/requests/issues", Confidence: 0.1},
		}},
	)

	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemPyPI, Name: "requests"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Errorf("candidates = %d, want fallback from heuristic location", len(res.Candidates))
	}
}

func TestResolveTimeoutReturnsPartial(t *testing.T) {
	engine := testEngine(
		&stubLocator{locations: []Location{testLoc}},
		&stubDetector{name: DetectorSecurityPolicy, candidates: []Candidate{
			{Kind: ChannelEmail, Target: "fast@example.com", Confidence: 0.9},
		}},
		&stubDetector{name: DetectorContactPage, delay: 5 * time.Second, candidates: []Candidate{
			{Kind: ChannelEmail, Target: "slow@example.com", Confidence: 0.5},
		}},
	)

	start := time.Now()
	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemNPM, Name: "left-pad"},
		Options{Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if took := time.Since(start); took > 2*time.Second {
		t.Errorf("Resolve took %v, want prompt return on timeout", took)
	}
	if !res.Partial {
		t.Error("Partial = false after timeout")
	}
	if _, ok := res.Top(); !ok {
		t.Error("completed candidates missing from partial result")
	}
}

func TestResolveLocationsSortedByTrust(t *testing.T) {
	engine := testEngine(
		&stubLocator{locations: []Location{
			{Host: "github.com", Owner: "guess", Repo: "guess", Trust: TrustHeuristic},
			{Host: "github.com", Owner: "acme", Repo: "widget", Trust: TrustDeclared},
		}},
		&stubDetector{name: DetectorSecurityPolicy},
	)

	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemNPM, Name: "widget"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Locations) != 2 || res.Locations[0].Trust != TrustDeclared {
		t.Errorf("locations not trust-ordered: %+v", res.Locations)
	}
}

func TestResolveNotesDeduplicated(t *testing.T) {
	engine := testEngine(
		&stubLocator{locations: []Location{testLoc}},
		&stubDetector{name: DetectorSecurityPolicy, notes: []string{"repository acme/widget is archived"}},
		&stubDetector{name: DetectorAdvisoryPlatform, notes: []string{"repository acme/widget is archived"}},
	)

	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemNPM, Name: "widget"}, Options{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Notes) != 1 {
		t.Errorf("notes = %v, want deduplicated single note", res.Notes)
	}
}

func TestResolveOverridesRankFirst(t *testing.T) {
	engine := testEngine(
		&stubLocator{locations: []Location{testLoc}},
		&stubDetector{name: DetectorSecurityPolicy, candidates: []Candidate{
			{Kind: ChannelEmail, Target: "security@example.com", Confidence: 0.9},
		}},
	)

	res, err := engine.Resolve(context.Background(), purl.Package{Ecosystem: purl.EcosystemNPM, Name: "widget"},
		Options{Overrides: []Candidate{{Target: "psirt@vendor.example"}}})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	top, ok := res.Top()
	if !ok {
		t.Fatal("no candidates")
	}
	if top.Target != "psirt@vendor.example" || top.Detector != DetectorOverride {
		t.Errorf("top = %+v, want the override", top)
	}
	if top.Kind != ChannelEmail {
		t.Errorf("Kind = %v, want inferred email", top.Kind)
	}
	if top.Confidence != DefaultPolicy().Override {
		t.Errorf("Confidence = %v, want override tier", top.Confidence)
	}
}

func TestResolveCancelledParentContext(t *testing.T) {
	engine := testEngine(&stubLocator{}, &stubDetector{name: DetectorSecurityPolicy})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := engine.Resolve(ctx, purl.Package{Ecosystem: purl.EcosystemNPM, Name: "x"}, Options{}); err == nil {
		t.Error("Resolve() with cancelled context returned nil error")
	}
}
