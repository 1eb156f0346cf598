package access

import (
	"slices"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
)

// NavItem is one link in the dashboard navigation.
type NavItem struct {
	Title   string            `json:"title"`
	Path    string            `json:"path"`
	Section string            `json:"section,omitempty"`
	Icon    string            `json:"icon,omitempty"`
	Roles   []domainauth.Role `json:"roles"`
}

// BuildEntries derives guard entries from the navigation list followed by
// guard-only entries that are not surfaced as links.
func BuildEntries(nav []NavItem, extra []Entry) []Entry {
	out := make([]Entry, 0, len(nav)+len(extra))
	for _, item := range nav {
		out = append(out, Entry{Prefix: item.Path, Roles: slices.Clone(item.Roles)})
	}
	for _, e := range extra {
		out = append(out, Entry{Prefix: e.Prefix, Roles: slices.Clone(e.Roles)})
	}
	return out
}

// Table is the single declarative source for both navigation and guarding.
type Table struct {
	Navigation []NavItem
	Guards     []Entry
}

// Policy bundles the validated registry with the navigation it was derived from.
type Policy struct {
	registry *Registry
	nav      []NavItem
}

// NewPolicy validates the table and builds the registry consumed by the gate
// and the client guard.
func NewPolicy(t Table) (*Policy, error) {
	reg, err := NewRegistry(BuildEntries(t.Navigation, t.Guards))
	if err != nil {
		return nil, err
	}
	// Registry entries are canonical; copy them back so nav links match what is guarded.
	entries := reg.Entries()
	nav := make([]NavItem, len(t.Navigation))
	for i, item := range t.Navigation {
		item.Path = entries[i].Prefix
		item.Roles = entries[i].Roles
		nav[i] = item
	}
	return &Policy{registry: reg, nav: nav}, nil
}

// Registry returns the guard registry.
func (p *Policy) Registry() *Registry { return p.registry }

// Navigation returns every navigation item in table order.
func (p *Policy) Navigation() []NavItem {
	return cloneNav(p.nav)
}

// VisibleFor filters navigation to the links role may open.
func (p *Policy) VisibleFor(role domainauth.Role) []NavItem {
	out := make([]NavItem, 0, len(p.nav))
	for _, item := range p.nav {
		if p.registry.Decide(item.Path, role) == Allow {
			out = append(out, item)
		}
	}
	return cloneNav(out)
}

func cloneNav(in []NavItem) []NavItem {
	out := make([]NavItem, len(in))
	for i, item := range in {
		item.Roles = slices.Clone(item.Roles)
		out[i] = item
	}
	return out
}
