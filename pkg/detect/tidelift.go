package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
)

// TideliftEmail is where reports for Tidelift-covered packages go.
const TideliftEmail = "security@tidelift.com"

// Tidelift checks whether the package is covered by a Tidelift subscription.
// Coverage is keyed by the package identifier, so the lookup is the same at
// every location; the shared fetcher collapses the repeats into one request.
type Tidelift struct {
	Package purl.Package
	Policy  check.Policy

	baseURL string // test override
}

func (d *Tidelift) Name() string { return check.DetectorDisclosureRegistry }

func (d *Tidelift) Probe(ctx context.Context, loc check.Location, f *fetch.Fetcher) (check.ProbeResult, error) {
	url := d.subscriptionURL()
	if url == "" {
		return check.ProbeResult{}, nil
	}

	// Uncovered packages redirect to a marketing page; only a direct 200
	// means coverage, so redirects must not be followed.
	res, err := f.Do(ctx, fetch.Request{URL: url, NoFollowRedirects: true})
	if err != nil {
		return check.ProbeResult{}, err
	}
	if !res.OK() {
		return check.ProbeResult{}, nil
	}

	return check.ProbeResult{Candidates: []check.Candidate{{
		Kind:       check.ChannelDisclosureRegistry,
		Target:     TideliftEmail,
		Name:       "Tidelift Security",
		Detector:   check.DetectorDisclosureRegistry,
		Location:   loc,
		Confidence: d.Policy.DisclosureRegistry,
		Evidence:   []check.Evidence{check.EvidenceFrom(res)},
	}}}, nil
}

// subscriptionURL builds the Tidelift lookup URL,
// e.g. https://tidelift.com/subscription/pkg/pypi-requests. Namespaced
// packages join namespace and name with "-", with npm's "@" mapped to ".".
func (d *Tidelift) subscriptionURL() string {
	pkg := d.Package
	if pkg.Name == "" {
		return ""
	}
	suffix := pkg.Name
	if pkg.Namespace != "" {
		suffix = strings.ReplaceAll(pkg.Namespace, "@", ".") + "-" + pkg.Name
	}
	base := d.baseURL
	if base == "" {
		base = "https://tidelift.com"
	}
	return fmt.Sprintf("%s/subscription/pkg/%s-%s", base, pkg.Ecosystem, suffix)
}
