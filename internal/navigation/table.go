// Package navigation loads the declarative navigation and guard table.
package navigation

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coverdesk/portal-gate/internal/domain/access"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	apperrors "github.com/coverdesk/portal-gate/internal/errors"
)

//go:embed routes.yaml
var defaultRoutes []byte

type document struct {
	Navigation []navDoc   `yaml:"navigation"`
	Guards     []guardDoc `yaml:"guards"`
}

type navDoc struct {
	Title   string   `yaml:"title"`
	Path    string   `yaml:"path"`
	Section string   `yaml:"section"`
	Icon    string   `yaml:"icon"`
	Roles   []string `yaml:"roles"`
}

type guardDoc struct {
	Path  string   `yaml:"path"`
	Roles []string `yaml:"roles"`
}

// Default returns the policy compiled from the embedded routes.yaml.
func Default() (*access.Policy, error) {
	return Parse(bytes.NewReader(defaultRoutes))
}

// DefaultYAML returns the embedded table as written.
func DefaultYAML() []byte {
	return bytes.Clone(defaultRoutes)
}

// LoadFile reads a table from disk. An empty path yields Default().
func LoadFile(path string) (*access.Policy, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open routes file: %w", err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("routes file %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML table and validates it into a policy.
// Unknown keys and unknown role names are rejected.
func Parse(r io.Reader) (*access.Policy, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "decode routes yaml")
	}
	if len(doc.Navigation) == 0 && len(doc.Guards) == 0 {
		return nil, apperrors.Validationf("routes table is empty")
	}

	tbl := access.Table{
		Navigation: make([]access.NavItem, 0, len(doc.Navigation)),
		Guards:     make([]access.Entry, 0, len(doc.Guards)),
	}
	for i, n := range doc.Navigation {
		rs, err := parseRoles(n.Roles)
		if err != nil {
			return nil, apperrors.ValidationField(fmt.Sprintf("navigation[%d].roles", i), err.Error())
		}
		tbl.Navigation = append(tbl.Navigation, access.NavItem{
			Title:   n.Title,
			Path:    n.Path,
			Section: n.Section,
			Icon:    n.Icon,
			Roles:   rs,
		})
	}
	for i, g := range doc.Guards {
		rs, err := parseRoles(g.Roles)
		if err != nil {
			return nil, apperrors.ValidationField(fmt.Sprintf("guards[%d].roles", i), err.Error())
		}
		tbl.Guards = append(tbl.Guards, access.Entry{Prefix: g.Path, Roles: rs})
	}
	return access.NewPolicy(tbl)
}

func parseRoles(raw []string) ([]domainauth.Role, error) {
	out := make([]domainauth.Role, 0, len(raw))
	for _, s := range raw {
		r, ok := domainauth.ParseRole(s)
		if !ok {
			return nil, fmt.Errorf("unknown role %q", s)
		}
		out = append(out, r)
	}
	return out, nil
}
