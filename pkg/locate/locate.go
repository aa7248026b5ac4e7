// Package locate maps a package identifier to the source locations worth
// probing, ordered by how much the mapping can be trusted: identifiers that
// name a repository directly, then repositories the package's registry
// metadata declares, then a last-resort name-based guess.
package locate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/reportpath/reportpath/pkg/check"
	"github.com/reportpath/reportpath/pkg/fetch"
	"github.com/reportpath/reportpath/pkg/purl"
	"github.com/reportpath/reportpath/pkg/registry"
	"github.com/reportpath/reportpath/pkg/registry/crates"
	"github.com/reportpath/reportpath/pkg/registry/librariesio"
	"github.com/reportpath/reportpath/pkg/registry/npm"
	"github.com/reportpath/reportpath/pkg/registry/packagist"
	"github.com/reportpath/reportpath/pkg/registry/pypi"
	"github.com/reportpath/reportpath/pkg/registry/rubygems"
)

// Locator implements check.Locator over the registry clients.
type Locator struct {
	// LibrariesIOKey enables the libraries.io fallback lookup when set.
	LibrariesIOKey string

	// NoGuess disables the heuristic repository guess for packages whose
	// registry metadata declares no repository.
	NoGuess bool

	// Registry overrides per-ecosystem client selection when set.
	Registry registry.Lookuper
}

// Locate resolves pkg to candidate source locations. A registry failure is
// reported alongside whatever locations could still be derived; callers are
// expected to continue with the partial set.
func (l *Locator) Locate(ctx context.Context, pkg purl.Package, f *fetch.Fetcher) ([]check.Location, error) {
	if pkg.IsRepository() {
		return []check.Location{{
			Host:  string(pkg.Ecosystem) + ".com",
			Owner: pkg.Namespace,
			Repo:  pkg.Name,
			Trust: check.TrustDirect,
		}}, nil
	}

	if pkg.Ecosystem == purl.EcosystemGo {
		if loc, ok := fromModulePath(pkg); ok {
			return []check.Location{loc}, nil
		}
	}

	var locations []check.Location
	var errs []error

	client := l.Registry
	if client == nil {
		client = l.clientFor(pkg.Ecosystem, f)
	}
	if client != nil {
		proj, err := client.Lookup(ctx, pkg)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", client.Registry(), err))
		} else {
			locations = append(locations, fromProject(proj)...)
		}
	}

	if len(locations) == 0 && l.LibrariesIOKey != "" {
		lio := librariesio.NewClient(f, l.LibrariesIOKey)
		if lio.Supports(pkg.Ecosystem) {
			proj, err := lio.Lookup(ctx, pkg)
			if err != nil {
				errs = append(errs, fmt.Errorf("libraries.io: %w", err))
			} else {
				locations = append(locations, fromProject(proj)...)
			}
		}
	}

	if len(locations) == 0 && !l.NoGuess {
		if loc, ok := guess(pkg); ok {
			locations = append(locations, loc)
		}
	}

	return dedup(locations), errors.Join(errs...)
}

func (l *Locator) clientFor(eco purl.Ecosystem, f *fetch.Fetcher) registry.Lookuper {
	switch eco {
	case purl.EcosystemNPM:
		return npm.NewClient(f)
	case purl.EcosystemPyPI:
		return pypi.NewClient(f)
	case purl.EcosystemGem:
		return rubygems.NewClient(f)
	case purl.EcosystemCargo:
		return crates.NewClient(f)
	case purl.EcosystemComposer:
		return packagist.NewClient(f)
	default:
		return nil
	}
}

// fromModulePath derives a location from a Go module path identifier like
// pkg:golang/github.com/user/repo. The module path itself declares where
// the source lives, so the mapping is direct.
func fromModulePath(pkg purl.Package) (check.Location, bool) {
	parts := strings.Split(pkg.Namespace+"/"+pkg.Name, "/")
	if len(parts) < 3 || !knownHost(parts[0]) {
		return check.Location{}, false
	}
	return check.Location{
		Host:  strings.ToLower(parts[0]),
		Owner: strings.ToLower(parts[1]),
		Repo:  strings.ToLower(strings.TrimSuffix(parts[2], ".git")),
		Trust: check.TrustDirect,
	}, true
}

// fromProject turns declared registry metadata into locations: the declared
// repository first, then the bug tracker (often hosted alongside the code),
// then the homepage.
func fromProject(proj *registry.Project) []check.Location {
	var out []check.Location
	for _, u := range []string{proj.Repository, proj.BugTracker, proj.Homepage} {
		if loc, ok := ParseRepoURL(registry.NormalizeRepoURL(u)); ok {
			loc.Trust = check.TrustDeclared
			out = append(out, loc)
		}
	}
	return out
}

// guess produces the name-based heuristic location github.com/{name}/{name}.
// Self-named projects (requests/requests, moment/moment) hit often enough
// to be worth a cached probe when nothing was declared.
func guess(pkg purl.Package) (check.Location, bool) {
	name := strings.ToLower(pkg.Name)
	if name == "" || strings.HasPrefix(name, "@") {
		return check.Location{}, false
	}
	return check.Location{
		Host:  "github.com",
		Owner: name,
		Repo:  name,
		Trust: check.TrustHeuristic,
	}, true
}

func knownHost(host string) bool {
	switch strings.ToLower(host) {
	case "github.com", "gitlab.com", "codeberg.org":
		return true
	}
	return false
}

// ParseRepoURL extracts a location from a repository URL on a known code
// host. Deeper paths (issue pages, tree views) collapse to the repository
// root.
func ParseRepoURL(raw string) (check.Location, bool) {
	if raw == "" {
		return check.Location{}, false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !knownHost(u.Host) {
		return check.Location{}, false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return check.Location{}, false
	}
	return check.Location{
		Host:  strings.ToLower(u.Host),
		Owner: strings.ToLower(parts[0]),
		Repo:  strings.ToLower(strings.TrimSuffix(parts[1], ".git")),
	}, true
}

// dedup collapses duplicate locations, keeping the highest trust seen.
func dedup(locations []check.Location) []check.Location {
	seen := map[string]int{} // key -> index into out
	var out []check.Location
	for _, loc := range locations {
		key := loc.Host + "/" + loc.Owner + "/" + loc.Repo
		if i, ok := seen[key]; ok {
			if loc.Trust > out[i].Trust {
				out[i].Trust = loc.Trust
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, loc)
	}
	return out
}
