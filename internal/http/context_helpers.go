package httpx

import (
	"context"
	"net/http"
	"sync"

	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
)

// sessionKey carries the resolved session attached by the gate.
type sessionKey struct{}

// requestNoteKey holds the *requestNote shared by the outer middleware.
type requestNoteKey struct{}

// requestNote lets outer middleware see what happened further in: the
// session the gate or OptionalSession attached, and the gate's redirect outcome.
type requestNote struct {
	mu          sync.Mutex
	session     *domainauth.Session
	gateOutcome string
}

// withRequestNote returns r carrying a note, reusing one an outer middleware
// already installed.
func withRequestNote(r *http.Request) (*http.Request, *requestNote) {
	if note, ok := r.Context().Value(requestNoteKey{}).(*requestNote); ok {
		return r, note
	}
	note := &requestNote{}
	return r.WithContext(context.WithValue(r.Context(), requestNoteKey{}, note)), note
}

func (n *requestNote) getSession() *domainauth.Session {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.session
}

func (n *requestNote) getGateOutcome() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.gateOutcome
}

// markGateOutcome records a redirect issued by AccessGate. It is a no-op
// without a note in ctx.
func markGateOutcome(ctx context.Context, outcome string) {
	if note, ok := ctx.Value(requestNoteKey{}).(*requestNote); ok {
		note.mu.Lock()
		note.gateOutcome = outcome
		note.mu.Unlock()
	}
}

// SetSessionInContext attaches a resolved session. A nil session leaves ctx as is.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	if note, ok := ctx.Value(requestNoteKey{}).(*requestNote); ok {
		note.mu.Lock()
		note.session = session
		note.mu.Unlock()
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the session the gate attached, if any.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*domainauth.Session)
	if !ok || session == nil {
		return nil, false
	}
	return session, true
}

// GetSessionFromContext is GetUserSessionFromContext without the presence flag.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	session, _ := GetUserSessionFromContext(ctx)
	return session
}

// CallerRole returns the normalized role of the attached session.
// Requests without a session report false.
func CallerRole(ctx context.Context) (domainauth.Role, bool) {
	session, ok := GetUserSessionFromContext(ctx)
	if !ok {
		return "", false
	}
	return domainauth.NormalizeRole(string(session.Role)), true
}
