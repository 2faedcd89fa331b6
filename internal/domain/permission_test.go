package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePermissionReadScopes(t *testing.T) {
	cases := []struct {
		raw   string
		scope PermissionScope
	}{
		{"ticket:read:assigned:any", ScopeAny},
		{"ticket:read:assigned:team:any", ScopeTeamAny},
		{"ticket:read:assigned:team:unclaimed", ScopeTeamUnclaimed},
		{"ticket:read:assigned:self", ScopeSelf},
		{"ticket:read:createdby:team:any", ScopeTeamAny},
	}
	for _, tc := range cases {
		p, ok := ParsePermission(tc.raw)
		require.True(t, ok, tc.raw)
		assert.Equal(t, "ticket", p.Domain)
		assert.Equal(t, ActionRead, p.Action)
		assert.Equal(t, tc.scope, p.Scope, tc.raw)
		assert.Equal(t, tc.raw, p.Raw)
	}
}

func TestParsePermissionClaimAssign(t *testing.T) {
	p, ok := ParsePermission("ticket:claim:team:unclaimed")
	require.True(t, ok)
	assert.Equal(t, ActionClaim, p.Action)
	assert.Equal(t, ScopeTeam, p.Scope)
	assert.Equal(t, QualifierUnclaimed, p.Qualifier)

	p, ok = ParsePermission("ticket:assign:any:force")
	require.True(t, ok)
	assert.Equal(t, ActionAssign, p.Action)
	assert.Equal(t, ScopeAny, p.Scope)
	assert.Equal(t, QualifierForce, p.Qualifier)
}

func TestParsePermissionRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"ticket",
		"ticket:read",
		"ticket:read:assigned:team",
		"ticket:read:assigned:team:sometimes",
		"ticket:claim:self:force",
		"ticket:dance:assigned:any",
		"category:view:team",
	} {
		_, ok := ParsePermission(raw)
		assert.False(t, ok, raw)
	}
}

func TestGrantsTicketReadAny(t *testing.T) {
	p, _ := ParsePermission("ticket:action:status:any")
	assert.True(t, p.GrantsTicketReadAny())

	p, _ = ParsePermission("ticket:action:status:team")
	assert.False(t, p.GrantsTicketReadAny())

	p, _ = ParsePermission("ticket:read:assigned:any")
	assert.True(t, p.GrantsTicketReadAny())

	p, _ = ParsePermission("category:view:any")
	assert.False(t, p.GrantsTicketReadAny())
}

func TestParsePermissionsDropsBadEntries(t *testing.T) {
	parsed := ParsePermissions([]string{"ticket:read:assigned:any", "garbage", "ticket:claim:team:force"})
	assert.Len(t, parsed, 2)
}
