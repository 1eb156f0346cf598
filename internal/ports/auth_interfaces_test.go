package ports_test

import (
	"testing"

	"github.com/coverdesk/portal-gate/internal/adapters/authroles"
	"github.com/coverdesk/portal-gate/internal/adapters/jwtsession"
	redisadapter "github.com/coverdesk/portal-gate/internal/adapters/redis"
	"github.com/coverdesk/portal-gate/internal/mocks"
	authmocks "github.com/coverdesk/portal-gate/internal/mocks/auth"
	"github.com/coverdesk/portal-gate/internal/ports"
)

// Compile-time checks that adapters and test doubles satisfy the ports.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.SessionVerifier = (*jwtsession.Verifier)(nil)
	var _ ports.TokenIssuer = (*jwtsession.Issuer)(nil)
	var _ ports.RevocationStore = (*redisadapter.RevocationStore)(nil)
	var _ ports.RoleMapper = authroles.StaticRoleMapper{}

	var _ ports.SessionVerifier = (*authmocks.StaticVerifier)(nil)
	var _ ports.TokenIssuer = (*authmocks.StaticVerifier)(nil)
	var _ ports.RevocationStore = (*authmocks.MemoryRevocationStore)(nil)
	var _ ports.RoleMapper = authmocks.RoleMapperFunc(nil)

	var _ ports.SessionVerifier = (*mocks.MockSessionVerifier)(nil)
	var _ ports.TokenIssuer = (*mocks.MockTokenIssuer)(nil)
	var _ ports.RevocationStore = (*mocks.MockRevocationStore)(nil)
}
