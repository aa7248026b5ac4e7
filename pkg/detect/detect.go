// Package detect implements the detection strategies behind a resolution:
// security-policy files, the code host's private vulnerability-reporting
// feature, the Tidelift disclosure registry, contact-page scraping, and the
// public-tracker fallback.
//
// Detectors are independent: each probes one signal type against one
// location and never reads another detector's output. Construct the default
// ordered set with [Default].
package detect

import (
	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/purl"
)

// Options configures the default detector set for one resolution run.
type Options struct {
	// Package is the identifier under resolution. The disclosure-registry
	// lookup is keyed by package name, not source location.
	Package purl.Package

	// GitHubToken authorizes api.github.com requests when set. Anonymous
	// requests work but hit a much lower rate limit.
	GitHubToken string

	// Policy supplies confidence constants; zero value means
	// check.DefaultPolicy.
	Policy check.Policy
}

// Default returns the full detector set in registration order.
func Default(opts Options) []check.Detector {
	if (opts.Policy == check.Policy{}) {
		opts.Policy = check.DefaultPolicy()
	}
	return []check.Detector{
		&SecurityPolicy{Policy: opts.Policy},
		&AdvisoryPlatform{Token: opts.GitHubToken, Policy: opts.Policy},
		&Tidelift{Package: opts.Package, Policy: opts.Policy},
		&ContactPage{Policy: opts.Policy},
		&Fallback{Policy: opts.Policy},
	}
}
