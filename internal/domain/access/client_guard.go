package access

import (
	"context"
	"fmt"
	"net/url"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/notify"
)

// Redirect targets used when none are configured.
const (
	DefaultLoginPath        = "/login"
	DefaultUnauthorizedPath = "/unauthorized"
	DefaultCallbackParam    = "callbackUrl"
)

// SessionStatus is the session state observed by the rendered shell.
type SessionStatus int

const (
	StatusLoading SessionStatus = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s SessionStatus) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

// SessionSnapshot is the client's view of its session at one render.
// Role is only meaningful when Status is StatusAuthenticated.
type SessionSnapshot struct {
	Status SessionStatus
	Role   domainauth.Role
}

// Action tells the shell what to do for the current render.
type Action int

const (
	ActionLoading Action = iota
	ActionRender
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	default:
		return "loading"
	}
}

// GuardOutcome is the result of one client guard evaluation.
type GuardOutcome struct {
	Action   Action
	Location string
	Decision Decision
}

// GuardInput is one observation of path and session state.
type GuardInput struct {
	Path    string
	Query   string
	Session SessionSnapshot
}

// Navigator performs client-side navigation.
type Navigator interface {
	Navigate(ctx context.Context, location string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, location string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, location string) error { return f(ctx, location) }

// ClientGuard mirrors the request-time gate for navigations that never hit the server.
// It is advisory only; the gate remains the enforcement point.
type ClientGuard struct {
	Registry         *Registry
	LoginPath        string
	UnauthorizedPath string
	CallbackParam    string
	// Events receives a toast for every redirect. Optional.
	Events notify.Publisher
}

// Evaluate maps one path and session snapshot onto an outcome. It has no side effects.
func (g *ClientGuard) Evaluate(p string, s SessionSnapshot) GuardOutcome {
	return g.evaluate(GuardInput{Path: p, Session: s})
}

func (g *ClientGuard) evaluate(in GuardInput) GuardOutcome {
	p := CanonicalPath(in.Path)
	switch in.Session.Status {
	case StatusUnauthenticated:
		if p == CanonicalPath(g.loginPath()) {
			return GuardOutcome{Action: ActionRender, Decision: Allow}
		}
		return GuardOutcome{
			Action:   ActionRedirect,
			Location: LoginLocation(g.loginPath(), g.callbackParam(), CallbackTarget(p, in.Query)),
			Decision: Deny,
		}
	case StatusAuthenticated:
		if g.Registry.Decide(p, in.Session.Role) == Deny {
			return GuardOutcome{Action: ActionRedirect, Location: g.unauthorizedPath(), Decision: Deny}
		}
		return GuardOutcome{Action: ActionRender, Decision: Allow}
	default:
		return GuardOutcome{Action: ActionLoading}
	}
}

// Check evaluates in and publishes a toast when the outcome is a redirect.
func (g *ClientGuard) Check(ctx context.Context, in GuardInput) GuardOutcome {
	out := g.evaluate(in)
	if out.Action == ActionRedirect {
		g.publish(ctx, in, out)
	}
	return out
}

// Watch evaluates every input received on updates and navigates when the outcome
// is a redirect to a target different from the last one issued. A non-redirect
// outcome clears the remembered target. Watch returns nil when updates is closed
// and ctx.Err() when ctx is cancelled.
func (g *ClientGuard) Watch(ctx context.Context, updates <-chan GuardInput, nav Navigator) error {
	var last string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in, ok := <-updates:
			if !ok {
				return nil
			}
			out := g.Check(ctx, in)
			if out.Action != ActionRedirect {
				last = ""
				continue
			}
			if out.Location == last {
				continue
			}
			if err := nav.Navigate(ctx, out.Location); err != nil {
				return fmt.Errorf("navigate to %s: %w", out.Location, err)
			}
			last = out.Location
		}
	}
}

func (g *ClientGuard) publish(ctx context.Context, in GuardInput, out GuardOutcome) {
	if g.Events == nil {
		return
	}
	t := notify.Toast{Kind: notify.KindWarning, Path: CanonicalPath(in.Path)}
	if in.Session.Status == StatusUnauthenticated {
		t.Kind = notify.KindInfo
		t.Title = "Sign in required"
		t.Message = "Please sign in to continue."
	} else {
		t.Title = "Access denied"
		t.Message = fmt.Sprintf("The %s role cannot open %s.", in.Session.Role, t.Path)
	}
	g.Events.Publish(ctx, t)
}

func (g *ClientGuard) loginPath() string {
	if g.LoginPath == "" {
		return DefaultLoginPath
	}
	return g.LoginPath
}

func (g *ClientGuard) unauthorizedPath() string {
	if g.UnauthorizedPath == "" {
		return DefaultUnauthorizedPath
	}
	return g.UnauthorizedPath
}

func (g *ClientGuard) callbackParam() string {
	if g.CallbackParam == "" {
		return DefaultCallbackParam
	}
	return g.CallbackParam
}

// LoginLocation builds the login redirect carrying callback as a query parameter.
// An empty callback yields the bare login path.
func LoginLocation(loginPath, param, callback string) string {
	if callback == "" {
		return loginPath
	}
	return loginPath + "?" + url.Values{param: []string{callback}}.Encode()
}

// CallbackTarget joins a path and raw query into the value carried to the login page.
func CallbackTarget(p, rawQuery string) string {
	if rawQuery == "" {
		return p
	}
	return p + "?" + rawQuery
}
