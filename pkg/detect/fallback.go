package detect

import (
	"context"

	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/fetch"
)

// Fallback emits the public-issue-tracker suggestion of last resort. It
// performs no network I/O; the aggregator already guarantees the candidate
// ranks below everything else and is only surfaced alone when nothing
// stronger exists.
type Fallback struct {
	Policy check.Policy
}

func (d *Fallback) Name() string { return check.DetectorFallback }

func (d *Fallback) Probe(ctx context.Context, loc check.Location, f *fetch.Fetcher) (check.ProbeResult, error) {
	if !loc.KnownHost() {
		return check.ProbeResult{}, nil
	}
	return check.ProbeResult{Candidates: []check.Candidate{{
		Kind:       check.ChannelIssueTracker,
		Target:     loc.URL() + "/issues",
		Detector:   check.DetectorFallback,
		Location:   loc,
		Confidence: d.Policy.Fallback,
	}}}, nil
}
