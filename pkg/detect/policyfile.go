package detect

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/contact"
	"github.com/reportpath/reportpath/pkg/fetch"
)

// policyPaths are the well-known security policy locations, probed relative
// to the repository root. The same list is probed in the owner's ".github"
// community-health repository on GitHub.
var policyPaths = []string{
	"SECURITY.md",
	"Security.md",
	"security.md",
	"security.markdown",
	"security.rst",
	"security.adoc",
	".github/SECURITY.md",
	".github/security.md",
	".github/security.markdown",
	".github/security.rst",
	".github/security.adoc",
	"doc/security.md",
	"doc/security.rst",
	"docs/security.md",
	"docs/security.markdown",
	"docs/security.rst",
	"docs/security.adoc",
}

// otherPaths are ordinary repository files that regularly carry a
// maintainer contact without being a security policy: package manifests
// name their authors, license texts occasionally do. "%name%" expands to
// the repository name. Contacts found here rank below policy directives.
var otherPaths = []string{
	"%name%.gemspec",
	"Cargo.toml",
	"LICENSE",
	"composer.json",
}

const policyProbeConcurrency = 8

// SecurityPolicy probes well-known security policy file paths and extracts
// contact directives from any that exist.
type SecurityPolicy struct {
	Policy check.Policy

	rawBase string // test override for the raw-content host
}

func (d *SecurityPolicy) Name() string { return check.DetectorSecurityPolicy }

func (d *SecurityPolicy) Probe(ctx context.Context, loc check.Location, f *fetch.Fetcher) (check.ProbeResult, error) {
	targets := d.rawTargets(loc)
	if len(targets) == 0 {
		return check.ProbeResult{}, nil
	}

	var mu sync.Mutex
	var out check.ProbeResult

	var g errgroup.Group
	g.SetLimit(policyProbeConcurrency)
	for _, t := range targets {
		t := t
		g.Go(func() error {
			res, err := f.Get(ctx, t.url)
			if err != nil || !res.OK() {
				return nil // missing files and fetch failures contribute nothing
			}
			var candidates []check.Candidate
			if t.policy {
				candidates = d.fromPolicy(string(res.Body), loc, check.EvidenceFrom(res))
			} else {
				candidates = d.fromOtherFile(string(res.Body), loc, check.EvidenceFrom(res))
			}
			mu.Lock()
			out.Candidates = append(out.Candidates, candidates...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

// fromPolicy maps extracted contacts onto candidates. A directive inside a
// security policy is a stronger signal than the same string found on an
// arbitrary page, so the policy-specific confidences apply.
func (d *SecurityPolicy) fromPolicy(text string, loc check.Location, ev check.Evidence) []check.Candidate {
	var out []check.Candidate
	for _, found := range contact.Extract(text) {
		c := check.Candidate{
			Detector: check.DetectorSecurityPolicy,
			Location: loc,
			Target:   found.Value,
			Name:     found.Name,
			Evidence: []check.Evidence{ev},
		}
		switch found.Kind {
		case contact.KindEmail:
			c.Kind = check.ChannelEmail
			c.Confidence = d.Policy.PolicyEmail
		case contact.KindAdvisoryForm:
			c.Kind = check.ChannelAdvisoryPlatform
			c.Confidence = d.Policy.PolicyDirective
		case contact.KindTidelift:
			c.Kind = check.ChannelDisclosureRegistry
			c.Name = "Tidelift Security"
			c.Confidence = d.Policy.DisclosureRegistry
		case contact.KindURL:
			if found.SecurityRelated {
				c.Kind = check.ChannelSecurityPolicy
				c.Confidence = d.Policy.PolicyDirective
			} else {
				c.Kind = check.ChannelContactURL
				c.Confidence = d.Policy.ScrapedURL
			}
		}
		out = append(out, c)
	}
	return out
}

// fromOtherFile maps contacts found in ordinary repository files. An
// address in a gemspec or manifest is a weaker signal than a policy
// directive, and plain links are dropped outright: license texts are full
// of URLs that have nothing to do with disclosure.
func (d *SecurityPolicy) fromOtherFile(text string, loc check.Location, ev check.Evidence) []check.Candidate {
	var out []check.Candidate
	for _, found := range contact.Extract(text) {
		c := check.Candidate{
			Detector: check.DetectorSecurityPolicy,
			Location: loc,
			Target:   found.Value,
			Name:     found.Name,
			Evidence: []check.Evidence{ev},
		}
		switch found.Kind {
		case contact.KindEmail:
			c.Kind = check.ChannelEmail
			c.Confidence = d.Policy.Email
		case contact.KindTidelift:
			c.Kind = check.ChannelDisclosureRegistry
			c.Name = "Tidelift Security"
			c.Confidence = d.Policy.DisclosureRegistry
		case contact.KindAdvisoryForm:
			c.Kind = check.ChannelAdvisoryPlatform
			c.Confidence = d.Policy.ScrapedSecurityURL
		default:
			continue
		}
		out = append(out, c)
	}
	return out
}

// probeTarget pairs a raw-content URL with how to weigh what it contains.
type probeTarget struct {
	url    string
	policy bool
}

// rawTargets lists the raw-content URLs to probe for loc. "HEAD" resolves
// the default branch on both hosts, which avoids a metadata API call per
// repository.
func (d *SecurityPolicy) rawTargets(loc check.Location) []probeTarget {
	var targets []probeTarget
	switch loc.Host {
	case "github.com":
		base := d.rawBase
		if base == "" {
			base = "https://raw.githubusercontent.com"
		}
		for _, p := range policyPaths {
			targets = append(targets,
				probeTarget{fmt.Sprintf("%s/%s/%s/HEAD/%s", base, loc.Owner, loc.Repo, p), true},
				// Org-wide policies live in the owner's .github repository.
				probeTarget{fmt.Sprintf("%s/%s/.github/HEAD/%s", base, loc.Owner, p), true})
		}
		for _, p := range expandName(otherPaths, loc.Repo) {
			targets = append(targets,
				probeTarget{fmt.Sprintf("%s/%s/%s/HEAD/%s", base, loc.Owner, loc.Repo, p), false})
		}
	case "gitlab.com":
		base := d.rawBase
		if base == "" {
			base = "https://gitlab.com"
		}
		for _, p := range policyPaths {
			targets = append(targets,
				probeTarget{fmt.Sprintf("%s/%s/%s/-/raw/HEAD/%s", base, loc.Owner, loc.Repo, p), true})
		}
		for _, p := range expandName(otherPaths, loc.Repo) {
			targets = append(targets,
				probeTarget{fmt.Sprintf("%s/%s/%s/-/raw/HEAD/%s", base, loc.Owner, loc.Repo, p), false})
		}
	}
	return targets
}

func expandName(paths []string, repo string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, strings.ReplaceAll(p, "%name%", repo))
	}
	return out
}
