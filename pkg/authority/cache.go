/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package authority

import (
	"sync"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/sets"
)

// PermissionSet is one user's resolved global permissions. Wildcard marks
// membership in the super-admin role and short-circuits every check.
type PermissionSet struct {
	Wildcard  bool
	Codenames sets.Set
}

func (p *PermissionSet) Has(codename string) bool {
	if p == nil {
		return false
	}
	return p.Wildcard || p.Codenames.Has(codename)
}

// permissionCache memoizes resolved permission sets per user id. Entries live
// until explicitly invalidated; there is no TTL.
type permissionCache struct {
	entries sync.Map
}

func (c *permissionCache) get(userId string) (*PermissionSet, bool) {
	val, ok := c.entries.Load(userId)
	if !ok {
		return nil, false
	}
	return val.(*PermissionSet), true
}

func (c *permissionCache) put(userId string, set *PermissionSet) {
	c.entries.Store(userId, set)
}

// invalidate drops one user's entry. Called after the user's role memberships
// change.
func (c *permissionCache) invalidate(userId string) {
	c.entries.Delete(userId)
}

// invalidateAll drops every entry. Called after a role's permission grants
// change, since any user may hold that role.
func (c *permissionCache) invalidateAll() {
	c.entries.Range(func(key, _ interface{}) bool {
		c.entries.Delete(key)
		return true
	})
}
