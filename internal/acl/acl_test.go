package acl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowedDirectPermission(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.EnsureGroup(1, "operators", []string{"mgr://ops/*"}))
	tbl.EnsureAccess(1, []int64{1}, "//ietf/dtnma-agent/ctrl/*", []Permission{PermExecute})

	require.True(t, tbl.Allowed("mgr://ops/alice", false, PermExecute, "//ietf/dtnma-agent/ctrl/reset"))
	require.False(t, tbl.Allowed("mgr://sales/bob", false, PermExecute, "//ietf/dtnma-agent/ctrl/reset"))
}

func TestAllowedBasePermissionImplication(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.EnsureGroup(1, "admins", []string{"mgr://admin/*"}))
	tbl.EnsureAccess(1, []int64{1}, "**", []Permission{PermDeleteODM})

	// Granting delete-odm implies the more general delete-object.
	require.True(t, tbl.Allowed("mgr://admin/root", false, PermDeleteObject, "//ietf/foo/const/x"))
	// But not the unrelated create-object permission.
	require.False(t, tbl.Allowed("mgr://admin/root", false, PermCreateObject, "//ietf/foo/const/x"))
}

func TestAllowedInternalUsesAgentGroup(t *testing.T) {
	tbl := NewTable()
	tbl.EnsureAccess(1, []int64{AgentGroup}, "**", []Permission{PermExecute})

	require.True(t, tbl.Allowed("", true, PermExecute, "//ietf/foo/ctrl/x"))
	require.False(t, tbl.Allowed("", false, PermExecute, "//ietf/foo/ctrl/x"))
}

func TestAllowedDefaultPermissions(t *testing.T) {
	tbl := NewTable()
	tbl.DefaultPermissions[PermProduce] = true

	require.True(t, tbl.Allowed("mgr://anyone", false, PermProduce, "//ietf/foo/edd/x"))
}

func TestDiscardGroupZeroRejected(t *testing.T) {
	tbl := NewTable()
	err := tbl.DiscardGroup(AgentGroup)
	require.Error(t, err)
}

func TestCompilePatternWildcards(t *testing.T) {
	re, err := compilePattern("//ietf/*/ctrl/**")
	require.NoError(t, err)
	require.True(t, re.MatchString("//ietf/dtnma-agent/ctrl/reset"))
	require.True(t, re.MatchString("//ietf/dtnma-agent/ctrl/reset/sub"))
	require.False(t, re.MatchString("//ietf/a/b/ctrl/reset"))
}
