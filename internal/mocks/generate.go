// Package mocks provides gomock implementations of the ports used by portal-gate.
//
// The mocks are generated with go.uber.org/mock (gomock) via go:generate directives.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	verifier := mocks.NewMockSessionVerifier(ctrl)
//	verifier.EXPECT().Verify(gomock.Any(), "token").Return(claims, nil)
package mocks

// Generate mocks for the session ports in internal/ports:
// SessionVerifier (Verify), TokenIssuer (Issue), RevocationStore (Revoke, IsRevoked).
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=ports_mock.go github.com/coverdesk/portal-gate/internal/ports SessionVerifier,TokenIssuer,RevocationStore

// Generate mock for the SessionResolver consumed by the HTTP layer.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_resolver_mock.go github.com/coverdesk/portal-gate/internal/http SessionResolver
