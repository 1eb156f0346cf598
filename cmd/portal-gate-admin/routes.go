package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/coverdesk/portal-gate/internal/domain/access"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/navigation"
)

type routesOptions struct {
	File string
	JSON bool
}

func newRoutesFlagSet(name string, opts *routesOptions) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.File, "file", os.Getenv("GATE_ROUTES_FILE"), "routes YAML file (default: built-in table)")
	fs.BoolVar(&opts.JSON, "json", false, "print JSON instead of a table")
	return fs
}

func runRoutes(cmdCtx *commandContext, args []string) error {
	var opts routesOptions
	if err := newRoutesFlagSet("routes", &opts).Parse(args); err != nil {
		return err
	}
	policy, err := navigation.LoadFile(opts.File)
	if err != nil {
		return err
	}
	return printRoutes(cmdCtx.Out, policy, opts.JSON)
}

func printRoutes(w io.Writer, policy *access.Policy, asJSON bool) error {
	entries := policy.Registry().Entries()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"navigation": policy.Navigation(),
			"guards":     entries,
		})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "PREFIX\tROLES\tNAV"); err != nil {
		return err
	}
	titles := make(map[string]string)
	for _, item := range policy.Navigation() {
		titles[access.CanonicalPath(item.Path)] = item.Title
	}
	for _, e := range entries {
		nav := titles[e.Prefix]
		if nav == "" {
			nav = "-"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Prefix, joinRoles(e.Roles), nav); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func joinRoles(roles []domainauth.Role) string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return strings.Join(out, ",")
}

var errDenied = errors.New("one or more paths denied")

func runCheck(cmdCtx *commandContext, args []string) error {
	var (
		opts routesOptions
		role string
	)
	fs := newRoutesFlagSet("check", &opts)
	fs.StringVar(&role, "role", "", "role to check")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if role == "" {
		return errors.New("check: -role is required")
	}
	paths := fs.Args()
	if len(paths) == 0 {
		return errors.New("check: at least one path is required")
	}
	policy, err := navigation.LoadFile(opts.File)
	if err != nil {
		return err
	}
	return checkPaths(cmdCtx.Out, policy.Registry(), role, paths)
}

// checkPaths prints one decision per path and returns errDenied if any is denied.
// The role is normalized the same way the gate normalizes session roles.
func checkPaths(w io.Writer, reg *access.Registry, rawRole string, paths []string) error {
	role := domainauth.NormalizeRole(rawRole)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "PATH\tROLE\tDECISION\tMATCHED"); err != nil {
		return err
	}
	denied := false
	for _, p := range paths {
		matched := "-"
		if e, ok := reg.Match(p); ok {
			matched = e.Prefix
		}
		d := reg.Decide(p, role)
		if d == access.Deny {
			denied = true
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p, role, d, matched); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if denied {
		return errDenied
	}
	return nil
}
