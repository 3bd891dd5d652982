// Package agentacl registers the ietf/dtnma-agent-acl ADM: the
// permission identities, and the group/access CTRLs and catalogue EDDs
// that drive the agent's internal/acl.Table, per spec section 4.10.
//
// Grounded the same way as agentadm: a Register constructor closing
// over the store and the acl.Table it wires CTRLs onto, the teacher's
// kernel.RegisterRateLimiterAdmin pattern applied to a permission table
// instead of a request-rate table.
package agentacl

import (
	"context"

	"github.com/dtn-amp/agent/internal/acl"
	"github.com/dtn-amp/agent/internal/amm/types"
	"github.com/dtn-amp/agent/internal/amperr"
	"github.com/dtn-amp/agent/internal/ari"
	"github.com/dtn-amp/agent/internal/exec"
	"github.com/dtn-amp/agent/internal/store"
)

const (
	Org   = "ietf"
	Model = "dtnma-agent-acl"
)

// Permission identities, registered as IDENT objects so other ADMs'
// access-table rows can cite them by reference, per spec section 4.10.
var permissionNames = []acl.Permission{
	acl.PermExecute, acl.PermProduce, acl.PermModifyVar,
	acl.PermCreateODM, acl.PermDeleteODM,
	acl.PermCreateObject, acl.PermDeleteObject,
}

type ctrlID int64

const (
	ctrlEnsureGroup ctrlID = iota
	ctrlEnsureGroupMembers
	ctrlDiscardGroup
	ctrlEnsureAccess
	ctrlDiscardAccess
)

// Register populates the ietf/dtnma-agent-acl namespace, wiring its
// CTRLs onto table.
func Register(s *store.Store, table *acl.Table) *store.Namespace {
	ns := s.AddNamespace(ari.NameIdent(Org), ari.NameIdent(Model), "1.0")

	for i, p := range permissionNames {
		_ = s.Register(ns, &store.Object{Type: ari.ObjIdent, Name: string(p), HasIntID: true, IntID: int64(i)})
	}

	registerEDDs(s, ns, table)
	registerCtrls(s, ns, table)
	return ns
}

func registerEDDs(s *store.Store, ns *store.Namespace, table *acl.Table) {
	_ = s.Register(ns, &store.Object{
		Type: ari.ObjEDD, Name: "group-list", HasIntID: true, IntID: 0,
		ResultType: types.Use(ari.LitTBL),
		Descriptor: &store.EDDDescriptor{
			Produce: func(ctx context.Context) (ari.ARI, error) {
				var cells []ari.ARI
				for _, g := range table.Groups() {
					cells = append(cells, ari.VastLiteral(g.ID), ari.TextLiteral(g.Name))
				}
				return ari.TblLiteral(&ari.Table{Columns: 2, Cells: cells}), nil
			},
		},
	})
	_ = s.Register(ns, &store.Object{
		Type: ari.ObjEDD, Name: "access-list", HasIntID: true, IntID: 1,
		ResultType: types.Use(ari.LitTBL),
		Descriptor: &store.EDDDescriptor{
			Produce: func(ctx context.Context) (ari.ARI, error) {
				var cells []ari.ARI
				for _, e := range table.AccessEntries() {
					cells = append(cells, ari.VastLiteral(e.ID), ari.TextLiteral(e.ARIPattern))
				}
				return ari.TblLiteral(&ari.Table{Columns: 2, Cells: cells}), nil
			},
		},
	})
}

func registerCtrls(s *store.Store, ns *store.Namespace, table *acl.Table) {
	reg := func(name string, id ctrlID, formals []store.Param, fn exec.CtrlFunc) {
		_ = s.Register(ns, &store.Object{
			Type: ari.ObjCtrl, Name: name, HasIntID: true, IntID: int64(id),
			Params:     formals,
			Descriptor: &exec.CtrlDescriptor{Formals: formals, Execute: fn},
		})
	}

	textList := types.UList(types.Use(ari.LitTextstr), 0, 0)
	vastList := types.UList(types.Use(ari.LitVast), 0, 0)

	reg("ensure-group", ctrlEnsureGroup,
		[]store.Param{
			{Name: "id", Type: types.Use(ari.LitVast)},
			{Name: "name", Type: types.Use(ari.LitTextstr)},
			{Name: "patterns", Type: textList},
		},
		func(c *exec.Ctx) {
			id, _ := c.Env.Get("id")
			name, _ := c.Env.Get("name")
			patternsV, _ := c.Env.Get("patterns")
			patterns, err := textstrItems(patternsV)
			if err != nil {
				c.Fail(err)
				return
			}
			if err := table.EnsureGroup(id.Lit.Int64, name.Lit.Text, patterns); err != nil {
				c.Fail(err)
				return
			}
			c.SetResult(ari.Undefined())
		},
	)

	reg("ensure-group-members", ctrlEnsureGroupMembers,
		[]store.Param{
			{Name: "id", Type: types.Use(ari.LitVast)},
			{Name: "patterns", Type: textList},
		},
		func(c *exec.Ctx) {
			id, _ := c.Env.Get("id")
			patternsV, _ := c.Env.Get("patterns")
			patterns, err := textstrItems(patternsV)
			if err != nil {
				c.Fail(err)
				return
			}
			if err := table.EnsureGroupMembers(id.Lit.Int64, patterns); err != nil {
				c.Fail(err)
				return
			}
			c.SetResult(ari.Undefined())
		},
	)

	reg("discard-group", ctrlDiscardGroup,
		[]store.Param{{Name: "id", Type: types.Use(ari.LitVast)}},
		func(c *exec.Ctx) {
			id, _ := c.Env.Get("id")
			if err := table.DiscardGroup(id.Lit.Int64); err != nil {
				c.Fail(err)
				return
			}
			c.SetResult(ari.Undefined())
		},
	)

	reg("ensure-access", ctrlEnsureAccess,
		[]store.Param{
			{Name: "id", Type: types.Use(ari.LitVast)},
			{Name: "groups", Type: vastList},
			{Name: "ari-pattern", Type: types.Use(ari.LitTextstr)},
			{Name: "perms", Type: textList},
		},
		func(c *exec.Ctx) {
			id, _ := c.Env.Get("id")
			groupsV, _ := c.Env.Get("groups")
			patternV, _ := c.Env.Get("ari-pattern")
			permsV, _ := c.Env.Get("perms")

			groups, err := vastItems(groupsV)
			if err != nil {
				c.Fail(err)
				return
			}
			permNames, err := textstrItems(permsV)
			if err != nil {
				c.Fail(err)
				return
			}
			perms := make([]acl.Permission, len(permNames))
			for i, n := range permNames {
				perms[i] = acl.Permission(n)
			}
			table.EnsureAccess(id.Lit.Int64, groups, patternV.Lit.Text, perms)
			c.SetResult(ari.Undefined())
		},
	)

	reg("discard-access", ctrlDiscardAccess,
		[]store.Param{{Name: "id", Type: types.Use(ari.LitVast)}},
		func(c *exec.Ctx) {
			id, _ := c.Env.Get("id")
			table.DiscardAccess(id.Lit.Int64)
			c.SetResult(ari.Undefined())
		},
	)
}

func textstrItems(v ari.ARI) ([]string, error) {
	if v.Kind != ari.KindLiteral || v.Lit.Type != ari.LitAC {
		return nil, amperr.New(amperr.KindInvalidArguments, "expected a list of TEXTSTR")
	}
	out := make([]string, 0, len(v.Lit.AC.Items))
	for _, it := range v.Lit.AC.Items {
		if it.Kind != ari.KindLiteral || it.Lit.Type != ari.LitTextstr {
			return nil, amperr.New(amperr.KindInvalidArguments, "expected a list of TEXTSTR")
		}
		out = append(out, it.Lit.Text)
	}
	return out, nil
}

func vastItems(v ari.ARI) ([]int64, error) {
	if v.Kind != ari.KindLiteral || v.Lit.Type != ari.LitAC {
		return nil, amperr.New(amperr.KindInvalidArguments, "expected a list of VAST")
	}
	out := make([]int64, 0, len(v.Lit.AC.Items))
	for _, it := range v.Lit.AC.Items {
		if it.Kind != ari.KindLiteral || it.Lit.Type != ari.LitVast {
			return nil, amperr.New(amperr.KindInvalidArguments, "expected a list of VAST")
		}
		out = append(out, it.Lit.Int64)
	}
	return out, nil
}

// Path builds a reference into this namespace.
func Path(t ari.ObjType, name string) ari.ObjectPath {
	return ari.ObjectPath{Org: ari.NameIdent(Org), Model: ari.NameIdent(Model), Type: t, Obj: ari.NameIdent(name)}
}
