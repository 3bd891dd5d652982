// Package acl implements the access control layer: a group table, an
// access table, and the permission check that gates every
// externally-triggered CTRL execution and EDD production, per spec
// section 4.10.
//
// Grounded in the teacher's kernel.RateLimiter: a map guarded by a
// single mutex, config-driven thresholds keyed by a composite
// (subject, resource) pair, generalized here from (user, endpoint)
// request counts to (group, ARI-pattern) permission sets.
package acl

import (
	"regexp"
	"sync"

	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
)

// Permission is one of the permission identities from spec section
// 4.10. "base" permissions are implied by more specific ones per the
// baseOf table below.
type Permission string

const (
	PermExecute      Permission = "execute"
	PermProduce      Permission = "produce"
	PermModifyVar    Permission = "modify-var"
	PermCreateODM    Permission = "create-odm"
	PermDeleteODM    Permission = "delete-odm"
	PermCreateObject Permission = "create-object"
	PermDeleteObject Permission = "delete-object"
)

// baseOf maps a permission to the more general permission it is
// implied by, grounded in ietf_dtnma_agent_acl.c's base-permission
// implication rule: deleting an object-defining-model implies deleting
// the plain object permission, and likewise for creation.
var baseOf = map[Permission]Permission{
	PermDeleteODM: PermDeleteObject,
	PermCreateODM: PermCreateObject,
}

// AgentGroup is the implicit group 0 ("agent itself"); manager-assigned
// groups use other ids.
const AgentGroup int64 = 0

// Group is one group-table row: an id, a display name, and an ordered
// list of endpoint patterns its members must match.
type Group struct {
	ID       int64
	Name     string
	Patterns []*regexp.Regexp
	raw      []string
}

// AccessEntry is one access-table row: the group-ids it applies to, an
// ARI pattern (an object-path prefix with optional wildcard segments),
// and the permissions it grants.
type AccessEntry struct {
	ID          int64
	Groups      map[int64]bool
	ARIPattern  string
	Permissions map[Permission]bool
}

// Table is the agent's group/access tables, guarded by a single mutex
// per the rate-limiter idiom: reads and writes are both infrequent
// relative to execution-engine traffic, so one coarse lock is simpler
// than per-row locking and never becomes a bottleneck.
type Table struct {
	mu     sync.Mutex
	groups map[int64]*Group
	access map[int64]*AccessEntry

	// DefaultPermissions backs the default-access VAR: permissions
	// granted to every subject regardless of access-table entries.
	DefaultPermissions map[Permission]bool
}

// NewTable returns an empty access control table, pre-seeded with the
// implicit group 0.
func NewTable() *Table {
	return &Table{
		groups:             map[int64]*Group{AgentGroup: {ID: AgentGroup, Name: "agent"}},
		access:             make(map[int64]*AccessEntry),
		DefaultPermissions: make(map[Permission]bool),
	}
}

// EnsureGroup creates or replaces a group's member-pattern list.
func (t *Table) EnsureGroup(id int64, name string, patterns []string) error {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := compilePattern(p)
		if err != nil {
			return amperr.Wrap(amperr.KindInvalidArguments, err, "group %d pattern %d", id, i)
		}
		compiled[i] = re
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.groups[id] = &Group{ID: id, Name: name, Patterns: compiled, raw: patterns}
	return nil
}

// EnsureGroupMembers replaces a group's pattern list in place, leaving
// its name untouched; DiscardGroup is the only way to remove a group.
func (t *Table) EnsureGroupMembers(id int64, patterns []string) error {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := compilePattern(p)
		if err != nil {
			return amperr.Wrap(amperr.KindInvalidArguments, err, "group %d pattern %d", id, i)
		}
		compiled[i] = re
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[id]
	if !ok {
		return amperr.New(amperr.KindNotFound, "group %d not defined", id)
	}
	g.Patterns = compiled
	g.raw = patterns
	return nil
}

// DiscardGroup removes a group; group 0 cannot be discarded.
func (t *Table) DiscardGroup(id int64) error {
	if id == AgentGroup {
		return amperr.New(amperr.KindInvalidArguments, "group 0 is implicit and cannot be discarded")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.groups, id)
	return nil
}

// EnsureAccess creates or replaces an access entry.
func (t *Table) EnsureAccess(id int64, groupIDs []int64, ariPattern string, perms []Permission) {
	groups := make(map[int64]bool, len(groupIDs))
	for _, g := range groupIDs {
		groups[g] = true
	}
	permSet := make(map[Permission]bool, len(perms))
	for _, p := range perms {
		permSet[p] = true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access[id] = &AccessEntry{ID: id, Groups: groups, ARIPattern: ariPattern, Permissions: permSet}
}

// DiscardAccess removes an access entry.
func (t *Table) DiscardAccess(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.access, id)
}

// Groups returns a snapshot of every defined group, for the catalogue
// EDD.
func (t *Table) Groups() []*Group {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Group, 0, len(t.groups))
	for _, g := range t.groups {
		out = append(out, g)
	}
	return out
}

// AccessEntries returns a snapshot of every defined access entry.
func (t *Table) AccessEntries() []*AccessEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*AccessEntry, 0, len(t.access))
	for _, a := range t.access {
		out = append(out, a)
	}
	return out
}

// Allowed implements the permission check from spec section 4.10:
// determine the groups whose member patterns match mgrEID (plus group 0
// if internal is set), union the permissions of every access entry
// whose group set intersects and whose ARI pattern matches objPath, and
// report whether op is in that union (directly, as a base permission,
// or via DefaultPermissions).
func (t *Table) Allowed(mgrEID string, internal bool, op Permission, objPath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	matchedGroups := make(map[int64]bool)
	if internal {
		matchedGroups[AgentGroup] = true
	}
	for _, g := range t.groups {
		if g.ID == AgentGroup {
			continue
		}
		for _, re := range g.Patterns {
			if re.MatchString(mgrEID) {
				matchedGroups[g.ID] = true
				break
			}
		}
	}

	union := make(map[Permission]bool)
	for k, v := range t.DefaultPermissions {
		if v {
			union[k] = true
		}
	}
	for _, a := range t.access {
		if !groupsIntersect(a.Groups, matchedGroups) {
			continue
		}
		if !ariPatternMatches(a.ARIPattern, objPath) {
			continue
		}
		for p, v := range a.Permissions {
			if v {
				union[p] = true
			}
		}
	}

	if union[op] {
		return true
	}
	if base, ok := baseOf[op]; ok {
		return union[base]
	}
	// op may itself be the base of a granted specific permission.
	for specific, base := range baseOf {
		if base == op && union[specific] {
			return true
		}
	}
	return false
}

func groupsIntersect(a, b map[int64]bool) bool {
	for id := range a {
		if b[id] {
			return true
		}
	}
	return false
}

// ariPatternMatches treats pattern as a literal object-path prefix with
// "*" standing in for exactly one path segment, and "**" matching any
// suffix of remaining segments.
func ariPatternMatches(pattern, path string) bool {
	if pattern == "" || pattern == "**" {
		return true
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return pattern == path
	}
	return re.MatchString(path)
}

// compilePattern converts a manager-endpoint or ARI glob pattern ("*",
// "**") into an anchored regular expression.
func compilePattern(p string) (*regexp.Regexp, error) {
	var b []byte
	b = append(b, '^')
	for i := 0; i < len(p); i++ {
		switch {
		case p[i] == '*' && i+1 < len(p) && p[i+1] == '*':
			b = append(b, '.', '*')
			i++
		case p[i] == '*':
			b = append(b, '[', '^', '/', ']', '*')
		default:
			b = append(b, regexp.QuoteMeta(string(p[i]))...)
		}
	}
	b = append(b, '$')
	return regexp.Compile(string(b))
}

// ObjPathString renders an object path the same way acl patterns are
// written against: //org/model/type/name.
func ObjPathString(path ari.ObjectPath) string {
	return path.String()
}
