package authroles

import (
	domainauth "github.com/target/ssogate/internal/domain/auth"
	"github.com/target/ssogate/internal/ports"
)

// Mapper normalizes provider role grants before they replace stored global roles.
// Duplicate role ids collapse to one grant; a role is accepted if any duplicate
// was accepted. When Allowed is non-empty, roles outside it are dropped.
type Mapper struct {
	allowed map[domainauth.Role]struct{}
}

var _ ports.RoleMapper = (*Mapper)(nil)

// NewMapper builds a Mapper. Invalid entries in allowed are ignored.
func NewMapper(allowed []string) *Mapper {
	m := &Mapper{}
	for _, raw := range allowed {
		role, ok := domainauth.ParseRole(raw)
		if !ok {
			continue
		}
		if m.allowed == nil {
			m.allowed = make(map[domainauth.Role]struct{}, len(allowed))
		}
		m.allowed[role] = struct{}{}
	}
	return m
}

// Map returns the normalized grants in first-seen order.
func (m *Mapper) Map(grants []domainauth.RoleGrant) []domainauth.RoleGrant {
	out := make([]domainauth.RoleGrant, 0, len(grants))
	index := make(map[domainauth.Role]int, len(grants))
	for _, g := range grants {
		role, ok := domainauth.ParseRole(string(g.RoleID))
		if !ok {
			continue
		}
		if m.allowed != nil {
			if _, permitted := m.allowed[role]; !permitted {
				continue
			}
		}
		if i, seen := index[role]; seen {
			out[i].Accepted = out[i].Accepted || g.Accepted
			continue
		}
		index[role] = len(out)
		out = append(out, domainauth.RoleGrant{RoleID: role, Accepted: g.Accepted})
	}
	return out
}
