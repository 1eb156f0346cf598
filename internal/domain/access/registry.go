// Package access holds the route guard registry and the access decision shared
// by the request-time gate and the client-side guard.
package access

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	apperrors "github.com/coverdesk/portal-gate/internal/errors"
)

// Decision is the outcome of an access check.
type Decision int

const (
	Allow Decision = iota
	Deny
)

func (d Decision) String() string {
	if d == Deny {
		return "deny"
	}
	return "allow"
}

// Entry pairs a route prefix with the roles permitted under it.
type Entry struct {
	Prefix string            `json:"path"`
	Roles  []domainauth.Role `json:"roles"`
}

// Permits reports whether role is a member of the entry's role set.
func (e Entry) Permits(role domainauth.Role) bool {
	return slices.Contains(e.Roles, role)
}

// covers reports whether p equals the prefix or lies beneath it on a segment boundary.
func (e Entry) covers(p string) bool {
	return p == e.Prefix || strings.HasPrefix(p, e.Prefix+"/")
}

// Registry is an ordered, validated list of guard entries.
// It is never mutated after NewRegistry returns.
type Registry struct {
	entries []Entry
}

// NewRegistry validates entries and returns an immutable registry.
// Validation rejects malformed prefixes, duplicate prefixes, entries shadowed by an
// earlier broader prefix (unreachable under first-match), and empty or unknown roles.
func NewRegistry(entries []Entry) (*Registry, error) {
	out := make([]Entry, 0, len(entries))
	for i, e := range entries {
		field := fmt.Sprintf("routes[%d]", i)
		prefix, err := canonicalPrefix(e.Prefix)
		if err != nil {
			return nil, apperrors.ValidationField(field+".path", err.Error())
		}
		roles, err := canonicalRoles(e.Roles)
		if err != nil {
			return nil, apperrors.ValidationField(field+".roles", err.Error())
		}
		candidate := Entry{Prefix: prefix, Roles: roles}
		for _, prev := range out {
			if prev.Prefix == prefix {
				return nil, apperrors.ValidationField(field+".path",
					fmt.Sprintf("duplicate prefix %q", prefix))
			}
			if prev.covers(prefix) {
				return nil, apperrors.ValidationField(field+".path",
					fmt.Sprintf("prefix %q is unreachable behind %q", prefix, prev.Prefix))
			}
		}
		out = append(out, candidate)
	}
	return &Registry{entries: out}, nil
}

// MustRegistry is NewRegistry for static tables known to be valid; it panics otherwise.
func MustRegistry(entries []Entry) *Registry {
	r, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}
	return r
}

// Entries returns a copy of the registry entries in match order.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = Entry{Prefix: e.Prefix, Roles: slices.Clone(e.Roles)}
	}
	return out
}

// Match returns the first entry guarding p.
func (r *Registry) Match(p string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	p = CanonicalPath(p)
	for _, e := range r.entries {
		if e.covers(p) {
			return e, true
		}
	}
	return Entry{}, false
}

// Decide returns Allow for unguarded paths, otherwise Allow iff role is permitted.
func (r *Registry) Decide(p string, role domainauth.Role) Decision {
	e, ok := r.Match(p)
	if !ok || e.Permits(role) {
		return Allow
	}
	return Deny
}

// CanonicalPath cleans a request path so that dot segments, doubled slashes,
// and trailing slashes cannot step around a guarded prefix.
func CanonicalPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func canonicalPrefix(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") {
		return "", fmt.Errorf("prefix %q must start with /", raw)
	}
	p := path.Clean(raw)
	if p == "/" {
		return "", fmt.Errorf("prefix %q would guard every route", raw)
	}
	return p, nil
}

func canonicalRoles(in []domainauth.Role) ([]domainauth.Role, error) {
	if len(in) == 0 {
		return nil, errors.New("at least one role is required")
	}
	out := make([]domainauth.Role, 0, len(in))
	for _, r := range in {
		canon, ok := domainauth.ParseRole(string(r))
		if !ok {
			return nil, fmt.Errorf("unknown role %q", r)
		}
		if !slices.Contains(out, canon) {
			out = append(out, canon)
		}
	}
	return out, nil
}
