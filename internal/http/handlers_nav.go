package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/coverdesk/portal-gate/internal/domain/access"
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
)

// NavHandlers serves the role-filtered navigation and the client guard outcome.
type NavHandlers struct {
	Policy      *access.Policy
	ClientGuard *access.ClientGuard
}

type navigationResponse struct {
	Role  domainauth.Role  `json:"role"`
	Items []access.NavItem `json:"items"`
}

// Navigation lists the links visible to the caller's role.
// GET /api/navigation.
func (h *NavHandlers) Navigation(w http.ResponseWriter, r *http.Request) {
	role, ok := CallerRole(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	items := h.Policy.VisibleFor(role)
	if items == nil {
		items = []access.NavItem{}
	}
	WriteJSON(w, http.StatusOK, navigationResponse{Role: role, Items: items})
}

type guardResponse struct {
	Action   string `json:"action"`
	Location string `json:"location,omitempty"`
	Decision string `json:"decision"`
}

// Guard evaluates the client guard for the caller's session and a page path.
// GET /api/guard?path=<path[?query]>.
func (h *NavHandlers) Guard(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("path"))
	u, err := url.Parse(raw)
	if raw == "" || err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     errors.New("path must be an absolute path starting with /"),
		})
		return
	}

	snapshot := access.SessionSnapshot{Status: access.StatusUnauthenticated}
	if role, ok := CallerRole(r.Context()); ok {
		snapshot = access.SessionSnapshot{Status: access.StatusAuthenticated, Role: role}
	}

	out := h.ClientGuard.Check(r.Context(), access.GuardInput{Path: u.Path, Query: u.RawQuery, Session: snapshot})
	WriteJSON(w, http.StatusOK, guardResponse{
		Action:   out.Action.String(),
		Location: out.Location,
		Decision: out.Decision.String(),
	})
}
