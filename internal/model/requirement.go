package model

import (
	"regexp"
	"strings"
)

// Requirement is a single parsed package request: a package name plus an
// optional version constraint.
type Requirement struct {
	Name       string `json:"name" yaml:"name"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

// String reconstructs the requirement in its wire form.
func (r Requirement) String() string {
	if r.Constraint == "" {
		return r.Name
	}
	if strings.ContainsAny(r.Constraint, "=<>~") {
		return r.Name + r.Constraint
	}
	return r.Name + "-" + r.Constraint
}

var (
	nameRe    = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.]*$`)
	versionRe = regexp.MustCompile(`^[A-Za-z0-9_.+]+$`)
	// Comparison operators, longest first so ">=" wins over ">".
	constraintOps = []string{"==", ">=", "<=", "~=", ">", "<"}
)

// ParseRequirement parses a requirement string of the form "name",
// "name-version" or "name<op>version" (op one of ==, >=, <=, ~=, >, <).
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Requirement{}, Errf(KindValidation, "requirement must not be empty")
	}

	for _, op := range constraintOps {
		if i := strings.Index(s, op); i > 0 {
			name, version := s[:i], s[i+len(op):]
			if !nameRe.MatchString(name) {
				return Requirement{}, Errf(KindValidation, "invalid package name %q", name).WithDetail("requirement", s)
			}
			if !versionRe.MatchString(version) {
				return Requirement{}, Errf(KindValidation, "invalid version %q in requirement %q", version, s)
			}
			return Requirement{Name: name, Constraint: op + version}, nil
		}
	}

	// Dash form: everything after the last name-like segment boundary is the
	// version range, e.g. "python-3.11" -> name "python", constraint "3.11".
	if i := strings.LastIndex(s, "-"); i > 0 {
		name, version := s[:i], s[i+1:]
		if nameRe.MatchString(name) && versionRe.MatchString(version) {
			return Requirement{Name: name, Constraint: version}, nil
		}
	}

	if !nameRe.MatchString(s) {
		return Requirement{}, Errf(KindValidation, "invalid requirement %q", s)
	}
	return Requirement{Name: s}, nil
}

// ParseRequirementSet parses an ordered list of requirement strings. The set
// must be non-empty and every entry must parse; the first malformed entry
// fails the whole set.
func ParseRequirementSet(in []string) (RequirementSet, error) {
	if len(in) == 0 {
		return nil, Errf(KindValidation, "requirement list must not be empty")
	}
	set := make(RequirementSet, 0, len(in))
	for _, s := range in {
		req, err := ParseRequirement(s)
		if err != nil {
			return nil, err
		}
		set = append(set, req)
	}
	return set, nil
}

// RequirementSet is an ordered sequence of requirements. Order is preserved
// end-to-end: it is part of the cache key, so reordered requirements are a
// cache miss, and it drives deterministic environment construction.
type RequirementSet []Requirement

// Strings returns the wire form of every requirement, in order.
func (rs RequirementSet) Strings() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

// CacheKey returns the normalized encoding of the requirement set plus
// platform used as the resolution cache key. The unit separator keeps
// requirement boundaries unambiguous regardless of their content.
func (rs RequirementSet) CacheKey(platform PlatformDescriptor) string {
	return strings.Join(rs.Strings(), "\x1f") + "|" + platform.String()
}
