// Package check implements the disclosure-channel resolution engine.
//
// Given a parsed package identifier, [Resolve] maps it to candidate source
// locations, fans out every registered detector against every location,
// and merges the emitted candidates into one deterministic ranking. The
// engine tolerates partial failure everywhere below the identifier: a
// missing location, an exhausted rate limit or a panicking detector cost
// candidates, never the run.
package check

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
)

// TrustTier ranks how a source location was obtained. Higher is better.
type TrustTier int

const (
	// TrustHeuristic locations are guessed (e.g. github.com/{name}/{name}).
	TrustHeuristic TrustTier = iota
	// TrustDeclared locations come from registry metadata.
	TrustDeclared
	// TrustDirect locations are the identifier itself (pkg:github/...).
	TrustDirect
)

// String returns the tier label used in output and evidence.
func (t TrustTier) String() string {
	switch t {
	case TrustDirect:
		return "direct"
	case TrustDeclared:
		return "declared"
	default:
		return "heuristic"
	}
}

// Location is a resolved source-repository address. None is assumed
// authoritative until a detector finds evidence there.
type Location struct {
	Host  string    `json:"host"`  // "github.com", "gitlab.com", ...
	Owner string    `json:"owner"` // repository owner or org
	Repo  string    `json:"repo"`
	Trust TrustTier `json:"-"`
}

// URL returns the canonical https URL for the location.
func (l Location) URL() string {
	return fmt.Sprintf("https://%s/%s/%s", l.Host, l.Owner, l.Repo)
}

// String returns "host/owner/repo".
func (l Location) String() string {
	return fmt.Sprintf("%s/%s/%s", l.Host, l.Owner, l.Repo)
}

// IsGitHub reports whether the location is hosted on github.com.
func (l Location) IsGitHub() bool { return l.Host == "github.com" }

// KnownHost reports whether the host has a public issue tracker we can
// point to as a last resort.
func (l Location) KnownHost() bool {
	return l.Host == "github.com" || l.Host == "gitlab.com" || l.Host == "codeberg.org"
}

// ChannelKind classifies a disclosure channel.
type ChannelKind string

const (
	// ChannelAdvisoryPlatform is a code host's native private
	// vulnerability-reporting feature.
	ChannelAdvisoryPlatform ChannelKind = "advisory-platform"
	// ChannelDisclosureRegistry is a third-party coordinated-disclosure
	// service covering the package (e.g. Tidelift).
	ChannelDisclosureRegistry ChannelKind = "disclosure-registry"
	// ChannelSecurityPolicy is a reporting URL taken from a security
	// policy document.
	ChannelSecurityPolicy ChannelKind = "security-policy"
	// ChannelEmail is a direct email address.
	ChannelEmail ChannelKind = "email"
	// ChannelContactURL is a scraped, unverified contact link.
	ChannelContactURL ChannelKind = "contact-url"
	// ChannelIssueTracker is the public-tracker fallback, surfaced only
	// when nothing stronger exists.
	ChannelIssueTracker ChannelKind = "issue-tracker-fallback"
)

// Evidence records one fetch attempt backing a candidate. Immutable after
// creation.
type Evidence struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Outcome   string    `json:"outcome"` // "ok", "not-found", ...
	HTTPCode  int       `json:"http_code,omitempty"`
	Cached    bool      `json:"cached,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// EvidenceFrom builds an Evidence record from a fetch result.
func EvidenceFrom(res *fetch.Result) Evidence {
	if res == nil {
		return Evidence{ID: uuid.NewString(), Outcome: "skipped"}
	}
	return Evidence{
		ID:        uuid.NewString(),
		URL:       res.URL,
		Outcome:   res.Status.String(),
		HTTPCode:  res.Code,
		Cached:    res.Cached,
		FetchedAt: res.FetchedAt,
	}
}

// Candidate is one disclosure-channel suggestion, created by exactly one
// detector invocation and immutable once emitted.
type Candidate struct {
	Kind       ChannelKind `json:"kind"`
	Target     string      `json:"target"`         // URL or address
	Name       string      `json:"name,omitempty"` // display name for emails
	Detector   string      `json:"detector"`
	Location   Location    `json:"location"`
	Confidence float64     `json:"confidence"` // 0.0 - 1.0
	Evidence   []Evidence  `json:"evidence,omitempty"`
}

// Display returns a human-readable rendering of the candidate target.
func (c Candidate) Display() string {
	switch c.Kind {
	case ChannelEmail:
		if c.Name != "" {
			return c.Name + " <" + c.Target + ">"
		}
		return c.Target
	case ChannelAdvisoryPlatform:
		return "Private vulnerability reporting <" + c.Target + ">"
	case ChannelDisclosureRegistry:
		if strings.Contains(c.Target, "tidelift") {
			return "Tidelift Security <" + c.Target + ">"
		}
		return c.Target
	case ChannelIssueTracker:
		return "Public issue tracker <" + c.Target + "> (last resort)"
	default:
		return c.Target
	}
}

// ProbeResult is everything a detector found at one location.
type ProbeResult struct {
	Candidates []Candidate
	Notes      []string // advisory remarks, e.g. "repository is archived"
}

// Detector is one independent detection strategy. Implementations probe a
// single signal type and must not depend on other detectors' output.
//
// NotFound fetch outcomes mean "no candidate", any fetch failure means
// "contribute nothing"; implementations should only return an error for
// programming mistakes, and even those are isolated by the engine.
type Detector interface {
	// Name is the stable detector identifier used for ranking tie-breaks.
	Name() string

	// Probe inspects one source location using the shared fetcher.
	Probe(ctx context.Context, loc Location, f *fetch.Fetcher) (ProbeResult, error)
}

// Locator maps a package identifier to trust-ordered candidate locations.
type Locator interface {
	// Locate returns zero or more locations ordered by descending trust.
	// Lookup failures degrade to fewer locations, not errors.
	Locate(ctx context.Context, pkg purl.Package, f *fetch.Fetcher) ([]Location, error)
}

// Result is the ranked outcome of one resolution. Constructed once per
// request and not mutated afterwards.
type Result struct {
	Package    purl.Package `json:"package"`
	Locations  []Location   `json:"locations,omitempty"`
	Candidates []Candidate  `json:"candidates"`
	Notes      []string     `json:"notes,omitempty"`
	// Confirmed is true when at least one non-fallback candidate
	// survived deduplication.
	Confirmed bool `json:"confirmed"`
	// Partial is true when the run hit its timeout and some probes were
	// abandoned; the ranking covers only what completed.
	Partial bool `json:"partial,omitempty"`
	// Duration serializes as nanoseconds, Go's native duration unit.
	Duration time.Duration `json:"duration_ns"`
}

// Top returns the best candidate, or false when none exist.
func (r *Result) Top() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}
