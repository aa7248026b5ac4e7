package check

import "fmt"

// Detector names, fixed here so ranking stays deterministic even if the
// detector list is reordered by a caller.
const (
	DetectorSecurityPolicy     = "security-policy"
	DetectorAdvisoryPlatform   = "advisory-platform"
	DetectorDisclosureRegistry = "disclosure-registry"
	DetectorContactPage        = "contact-page"
	DetectorFallback           = "fallback"
	DetectorOverride           = "override"
)

// detectorRank is the fixed priority order used to break ranking ties:
// lower rank wins. Unknown detectors sort after all known ones.
var detectorRank = map[string]int{
	DetectorOverride:           0,
	DetectorSecurityPolicy:     1,
	DetectorAdvisoryPlatform:   2,
	DetectorDisclosureRegistry: 3,
	DetectorContactPage:        4,
	DetectorFallback:           5,
}

func rankOf(detector string) int {
	if r, ok := detectorRank[detector]; ok {
		return r
	}
	return len(detectorRank)
}

// Policy holds the confidence assigned to each signal strength. The values
// are a ranking policy, not a probability estimate; only their relative
// order matters and the aggregate tests pin that order down.
type Policy struct {
	// AdvisoryPlatform: the host explicitly reports private
	// vulnerability reporting is enabled.
	AdvisoryPlatform float64
	// DisclosureRegistry: a coordinated-disclosure service covers the
	// package.
	DisclosureRegistry float64
	// PolicyDirective: a security policy file names a reporting URL or
	// advisory form outright.
	PolicyDirective float64
	// PolicyEmail: an email address found inside a security policy file.
	PolicyEmail float64
	// Email: an email address found in other repository files.
	Email float64
	// ScrapedURL: a link harvested from project pages; enrichment only.
	ScrapedURL float64
	// ScrapedSecurityURL: same, but the link itself mentions
	// security/vulnerability reporting.
	ScrapedSecurityURL float64
	// Fallback: the public-issue-tracker suggestion of last resort.
	Fallback float64
	// Override: operator-configured contact from the config file.
	Override float64
}

// DefaultPolicy mirrors the 0-100 priority scale the project historically
// used (lower priority = better), mapped onto 0.0-1.0 confidence.
func DefaultPolicy() Policy {
	return Policy{
		AdvisoryPlatform:   1.0, // p=0
		Override:           0.97,
		DisclosureRegistry: 0.95, // p=5
		PolicyDirective:    0.90, // p=10
		PolicyEmail:        0.80,
		Email:              0.75, // p=25
		ScrapedSecurityURL: 0.65,
		ScrapedURL:         0.30, // p=70
		Fallback:           0.10, // p=100
	}
}

// Validate checks that every confidence is within [0,1] and that the
// relative ordering the ranking relies on holds.
func (p Policy) Validate() error {
	fields := map[string]float64{
		"AdvisoryPlatform":   p.AdvisoryPlatform,
		"Override":           p.Override,
		"DisclosureRegistry": p.DisclosureRegistry,
		"PolicyDirective":    p.PolicyDirective,
		"PolicyEmail":        p.PolicyEmail,
		"Email":              p.Email,
		"ScrapedSecurityURL": p.ScrapedSecurityURL,
		"ScrapedURL":         p.ScrapedURL,
		"Fallback":           p.Fallback,
	}
	for name, v := range fields {
		if v < 0 || v > 1 {
			return fmt.Errorf("policy %s = %v out of range [0,1]", name, v)
		}
	}
	ordered := []struct {
		hi, lo   string
		hiV, loV float64
	}{
		{"AdvisoryPlatform", "DisclosureRegistry", p.AdvisoryPlatform, p.DisclosureRegistry},
		{"DisclosureRegistry", "PolicyDirective", p.DisclosureRegistry, p.PolicyDirective},
		{"PolicyDirective", "PolicyEmail", p.PolicyDirective, p.PolicyEmail},
		{"PolicyEmail", "Email", p.PolicyEmail, p.Email},
		{"Email", "ScrapedSecurityURL", p.Email, p.ScrapedSecurityURL},
		{"ScrapedSecurityURL", "ScrapedURL", p.ScrapedSecurityURL, p.ScrapedURL},
		{"ScrapedURL", "Fallback", p.ScrapedURL, p.Fallback},
	}
	for _, o := range ordered {
		if o.hiV < o.loV {
			return fmt.Errorf("policy %s (%v) must rank at or above %s (%v)", o.hi, o.hiV, o.lo, o.loV)
		}
	}
	return nil
}
