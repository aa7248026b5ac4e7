// Package purl parses Package URLs (purls) into a canonical, validated form.
//
// A purl looks like "pkg:type/namespace/name@version", for example
// "pkg:npm/left-pad", "pkg:pypi/requests@2.31.0" or "pkg:github/madler/zlib".
// The "pkg:" prefix is optional on input; the canonical [Package.String]
// form always includes it.
//
// Parsing is a pure function: no I/O, no side effects. [ErrInvalid] is the
// only error returned and callers should treat it as terminal.
package purl

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalid is returned when the input cannot be parsed into a known
// ecosystem + name form.
var ErrInvalid = errors.New("invalid package URL")

// Ecosystem identifies the package registry or code host a name belongs to.
type Ecosystem string

// Supported ecosystems. Aliases (rubygems→gem, crates→cargo) are folded to
// the canonical value during parsing.
const (
	EcosystemNPM      Ecosystem = "npm"
	EcosystemPyPI     Ecosystem = "pypi"
	EcosystemGem      Ecosystem = "gem"
	EcosystemCargo    Ecosystem = "cargo"
	EcosystemComposer Ecosystem = "composer"
	EcosystemMaven    Ecosystem = "maven"
	EcosystemGo       Ecosystem = "golang"
	EcosystemGitHub   Ecosystem = "github"
	EcosystemGitLab   Ecosystem = "gitlab"
)

var aliases = map[string]Ecosystem{
	"rubygems":  EcosystemGem,
	"crates":    EcosystemCargo,
	"packagist": EcosystemComposer,
	"go":        EcosystemGo,
}

var known = map[Ecosystem]bool{
	EcosystemNPM:      true,
	EcosystemPyPI:     true,
	EcosystemGem:      true,
	EcosystemCargo:    true,
	EcosystemComposer: true,
	EcosystemMaven:    true,
	EcosystemGo:       true,
	EcosystemGitHub:   true,
	EcosystemGitLab:   true,
}

// Naming rules are deliberately loose: a superset of what the registries
// accept, tight enough to reject shell metacharacters and whitespace.
var (
	validName      = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)
	validNamespace = regexp.MustCompile(`^@?[a-zA-Z0-9][a-zA-Z0-9._-]*(/[a-zA-Z0-9][a-zA-Z0-9._-]*)*$`)
	validVersion   = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)
)

// Package is a parsed, canonical package identifier.
//
// Ecosystem+Namespace+Name uniquely address a package; Version is advisory
// only. Values are immutable after Parse.
type Package struct {
	Ecosystem Ecosystem `json:"ecosystem"`
	Namespace string    `json:"namespace,omitempty"`
	Name      string    `json:"name"`
	Version   string    `json:"version,omitempty"`
}

// Parse converts a purl string into a canonical Package.
// It fails with an error wrapping [ErrInvalid] for anything it cannot
// understand; it never guesses.
func Parse(raw string) (Package, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "pkg:")
	s = strings.TrimPrefix(s, "/")
	if s == "" {
		return Package{}, fmt.Errorf("%w: empty input", ErrInvalid)
	}

	typ, rest, ok := strings.Cut(s, "/")
	if !ok || rest == "" {
		return Package{}, fmt.Errorf("%w: missing name in %q", ErrInvalid, raw)
	}

	eco := Ecosystem(strings.ToLower(typ))
	if alias, ok := aliases[string(eco)]; ok {
		eco = alias
	}
	if !known[eco] {
		return Package{}, fmt.Errorf("%w: unknown ecosystem %q", ErrInvalid, typ)
	}

	rest, version := splitVersion(rest)

	var namespace, name string
	if i := strings.LastIndex(rest, "/"); i >= 0 {
		namespace, name = rest[:i], rest[i+1:]
	} else {
		name = rest
	}

	p := Package{Ecosystem: eco, Namespace: namespace, Name: name, Version: version}
	if err := p.validate(); err != nil {
		return Package{}, err
	}
	return p.canonicalize(), nil
}

// splitVersion strips a trailing "@version" qualifier. The separator must
// appear after the final path segment starts, so npm scopes ("@babel/core")
// survive intact.
func splitVersion(s string) (rest, version string) {
	i := strings.LastIndex(s, "@")
	if i <= 0 {
		return s, ""
	}
	if strings.Contains(s[i:], "/") {
		return s, ""
	}
	return s[:i], s[i+1:]
}

func (p Package) validate() error {
	if p.Name == "" || !validName.MatchString(p.Name) {
		return fmt.Errorf("%w: bad package name %q", ErrInvalid, p.Name)
	}
	if p.Namespace != "" && !validNamespace.MatchString(p.Namespace) {
		return fmt.Errorf("%w: bad namespace %q", ErrInvalid, p.Namespace)
	}
	if p.Version != "" && !validVersion.MatchString(p.Version) {
		return fmt.Errorf("%w: bad version %q", ErrInvalid, p.Version)
	}
	if p.IsRepository() && p.Namespace == "" {
		return fmt.Errorf("%w: %s packages need an owner (pkg:%s/owner/repo)", ErrInvalid, p.Ecosystem, p.Ecosystem)
	}
	return nil
}

func (p Package) canonicalize() Package {
	switch p.Ecosystem {
	case EcosystemPyPI:
		// PEP 503: case-insensitive, underscores equivalent to hyphens.
		p.Name = strings.ReplaceAll(strings.ToLower(p.Name), "_", "-")
	case EcosystemGitHub, EcosystemGitLab:
		p.Namespace = strings.ToLower(p.Namespace)
		p.Name = strings.ToLower(strings.TrimSuffix(p.Name, ".git"))
	}
	return p
}

// String returns the canonical purl form, e.g. "pkg:pypi/requests@2.31.0".
func (p Package) String() string {
	var b strings.Builder
	b.WriteString("pkg:")
	b.WriteString(string(p.Ecosystem))
	b.WriteByte('/')
	if p.Namespace != "" {
		b.WriteString(p.Namespace)
		b.WriteByte('/')
	}
	b.WriteString(p.Name)
	if p.Version != "" {
		b.WriteByte('@')
		b.WriteString(p.Version)
	}
	return b.String()
}

// RegistryName returns the name as the package registry spells it:
// "namespace/name" for scoped ecosystems, "namespace:name" for Maven
// coordinates, bare name otherwise.
func (p Package) RegistryName() string {
	if p.Namespace == "" {
		return p.Name
	}
	if p.Ecosystem == EcosystemMaven {
		return p.Namespace + ":" + p.Name
	}
	return p.Namespace + "/" + p.Name
}

// IsRepository reports whether the identifier addresses a code host
// directly rather than a package registry.
func (p Package) IsRepository() bool {
	return p.Ecosystem == EcosystemGitHub || p.Ecosystem == EcosystemGitLab
}
