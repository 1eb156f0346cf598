package authroles

import (
	domainauth "github.com/coverdesk/portal-gate/internal/domain/auth"
	"github.com/coverdesk/portal-gate/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps IdP groups to roles by exact group name.
// When several groups match, the most privileged role wins: admin, agent, support, partner.
type StaticRoleMapper struct {
	AdminGroup   string
	AgentGroup   string
	SupportGroup string
	PartnerGroup string
}

// Map returns the role claim for groups, or "" when no configured group is present.
func (m StaticRoleMapper) Map(groups []string) string {
	ranked := []struct {
		group string
		role  domainauth.Role
	}{
		{m.AdminGroup, domainauth.RoleAdmin},
		{m.AgentGroup, domainauth.RoleAgent},
		{m.SupportGroup, domainauth.RoleSupport},
		{m.PartnerGroup, domainauth.RolePartner},
	}
	for _, r := range ranked {
		if r.group == "" {
			continue
		}
		for _, g := range groups {
			if g == r.group {
				return string(r.role)
			}
		}
	}
	return ""
}
