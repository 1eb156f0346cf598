package config

import (
	"errors"
	"fmt"
	"strings"
)

// GateConfig controls where the gate sends callers it turns away.
type GateConfig struct {
	LoginPath        string `env:"GATE_LOGIN_PATH"        envDefault:"/login"`
	UnauthorizedPath string `env:"GATE_UNAUTHORIZED_PATH" envDefault:"/unauthorized"`
	CallbackParam    string `env:"GATE_CALLBACK_PARAM"    envDefault:"callbackUrl"`

	// RoutesFile replaces the built-in navigation and guard table when set.
	RoutesFile string `env:"GATE_ROUTES_FILE"`
}

// Sanitize trims values and restores defaults cleared by blank env vars.
func (g *GateConfig) Sanitize() {
	g.LoginPath = strings.TrimSpace(g.LoginPath)
	if g.LoginPath == "" {
		g.LoginPath = "/login"
	}
	g.UnauthorizedPath = strings.TrimSpace(g.UnauthorizedPath)
	if g.UnauthorizedPath == "" {
		g.UnauthorizedPath = "/unauthorized"
	}
	g.CallbackParam = strings.TrimSpace(g.CallbackParam)
	if g.CallbackParam == "" {
		g.CallbackParam = "callbackUrl"
	}
	g.RoutesFile = strings.TrimSpace(g.RoutesFile)
}

// Validate requires same-origin redirect targets.
func (g *GateConfig) Validate() error {
	var errs []error
	for name, p := range map[string]string{
		"GATE_LOGIN_PATH":        g.LoginPath,
		"GATE_UNAUTHORIZED_PATH": g.UnauthorizedPath,
	} {
		if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
			errs = append(errs, fmt.Errorf("%s must be an absolute path, got %q", name, p))
		}
	}
	if g.LoginPath == g.UnauthorizedPath {
		errs = append(errs, errors.New("GATE_LOGIN_PATH and GATE_UNAUTHORIZED_PATH must differ"))
	}
	return errors.Join(errs...)
}
