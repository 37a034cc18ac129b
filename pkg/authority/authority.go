/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package authority

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/sets"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/slice"
)

var (
	authorityOnce sync.Once
	authorityInst *Authority
)

// Authority resolves layered access checks against the store: global
// codenames from roles, per-object ACLs, tag grants, per-service delegation
// and credential visibility rules.
type Authority struct {
	store dbclient.Interface
	cache permissionCache

	keyOnce sync.Once
	key     []byte
	keyErr  error
}

// NewAuthority creates and returns a singleton instance of Authority.
func NewAuthority(store dbclient.Interface) *Authority {
	authorityOnce.Do(func() {
		authorityInst = &Authority{store: store}
	})
	return authorityInst
}

// GetPermissionSet resolves the user's global permissions, serving from the
// cache when present.
func (a *Authority) GetPermissionSet(ctx context.Context, userId string) (*PermissionSet, error) {
	if userId == "" {
		return nil, commonerrors.NewBadRequest("the request userId is empty")
	}
	if set, ok := a.cache.get(userId); ok {
		return set, nil
	}
	roleNames, err := a.store.GetUserRoleNames(ctx, userId)
	if err != nil {
		return nil, err
	}
	set := &PermissionSet{Codenames: sets.NewSet()}
	if slice.ContainsString(roleNames, common.SuperAdminRole) {
		set.Wildcard = true
	} else {
		codenames, err := a.store.GetUserPermissionCodenames(ctx, userId)
		if err != nil {
			return nil, err
		}
		set.Codenames = sets.NewSetByKeys(codenames...)
	}
	a.cache.put(userId, set)
	return set, nil
}

// HasPermission reports whether the user holds the global codename, either
// directly or through the super-admin wildcard.
func (a *Authority) HasPermission(ctx context.Context, userId, codename string) (bool, error) {
	set, err := a.GetPermissionSet(ctx, userId)
	if err != nil {
		return false, err
	}
	return set.Has(codename), nil
}

// RequirePermission returns a forbidden error unless the user holds the
// global codename.
func (a *Authority) RequirePermission(ctx context.Context, userId, codename string) error {
	ok, err := a.HasPermission(ctx, userId, codename)
	if err != nil {
		return err
	}
	if !ok {
		return commonerrors.NewForbidden(
			fmt.Sprintf("The user is not allowed to perform %s", codename))
	}
	return nil
}

// InvalidateUser drops the user's cached permission set. Called after the
// user's role memberships change.
func (a *Authority) InvalidateUser(userId string) {
	a.cache.invalidate(userId)
}

// InvalidateAll drops every cached permission set. Called after any role's
// permission grants change.
func (a *Authority) InvalidateAll() {
	a.cache.invalidateAll()
}

// CheckObjectPermission evaluates the layered rules for one inventory object
// in strict order: the super-admin wildcard, per-object deny rules, per-object
// allow rules, tag grants, then the type-level fallback. A matching deny
// always wins over any allow. Objects of the service type delegate to
// CheckServicePermission so per-service rules stay authoritative.
func (a *Authority) CheckObjectPermission(ctx context.Context, userId, objectId, permSuffix string) error {
	set, err := a.GetPermissionSet(ctx, userId)
	if err != nil {
		return err
	}
	if set.Wildcard {
		return nil
	}
	obj, err := a.store.GetInventoryObject(ctx, objectId)
	if err != nil {
		return err
	}
	typ, err := a.store.GetInventoryType(ctx, obj.TypeId)
	if err != nil {
		return err
	}

	acls, err := a.store.GetObjectACLsForUser(ctx, objectId, userId)
	if err != nil {
		return err
	}
	allowed := false
	for _, acl := range acls {
		if !permMatches(acl.Permission, permSuffix) {
			continue
		}
		if acl.Effect == common.EffectDeny {
			return commonerrors.NewForbidden(
				fmt.Sprintf("Access to the object is denied by rule for %s", permSuffix))
		}
		allowed = true
	}
	if allowed {
		return nil
	}

	tagPerms, err := a.store.GetTagPermissionsForUser(ctx, objectId, userId)
	if err != nil {
		return err
	}
	for _, p := range tagPerms {
		if permMatches(p, permSuffix) {
			return nil
		}
	}

	if typ.Slug == "service" {
		return a.CheckServicePermission(ctx, userId,
			objectName(obj.Data), permSuffix, serviceCodename(permSuffix))
	}
	fullPerm := fmt.Sprintf("inventory.%s.%s", typ.Slug, permSuffix)
	if set.Has(fullPerm) {
		return nil
	}
	return commonerrors.NewForbidden(
		fmt.Sprintf("The user is not allowed to %s the object", permSuffix))
}

// objectName pulls the display name out of an object's structured data blob.
func objectName(data []byte) string {
	var fields struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	return fields.Name
}

func serviceCodename(permSuffix string) string {
	if permSuffix == common.AclConfig {
		return common.PermServicesConfigView
	}
	return "services." + permSuffix
}

// CheckServicePermission authorizes a service action. When per-service rules
// exist they are authoritative and the global codename is ignored; a service
// with no rules at all falls back to the global codename.
func (a *Authority) CheckServicePermission(ctx context.Context, userId, serviceName, perm, globalCodename string) error {
	set, err := a.GetPermissionSet(ctx, userId)
	if err != nil {
		return err
	}
	if set.Wildcard {
		return nil
	}
	count, err := a.store.CountServiceACLs(ctx, serviceName)
	if err != nil {
		return err
	}
	if count == 0 {
		if set.Has(globalCodename) {
			return nil
		}
		return commonerrors.NewForbidden(
			fmt.Sprintf("The user is not allowed to %s service %s", perm, serviceName))
	}
	perms, err := a.store.GetServicePermissionsForUser(ctx, serviceName, userId)
	if err != nil {
		return err
	}
	for _, p := range perms {
		if permMatches(p, perm) {
			return nil
		}
	}
	return commonerrors.NewForbidden(
		fmt.Sprintf("The user is not allowed to %s service %s", perm, serviceName))
}

// CanViewCredential evaluates the user's credential access rules against a
// credential of the given type attached to the named service and instance.
// Every denied attempt is recorded in the audit log.
func (a *Authority) CanViewCredential(ctx context.Context, userId, username, credType, serviceName, hostname string, tags []string) (bool, error) {
	set, err := a.GetPermissionSet(ctx, userId)
	if err != nil {
		return false, err
	}
	if set.Wildcard {
		return true, nil
	}
	rules, err := a.store.GetCredentialRulesForUser(ctx, userId)
	if err != nil {
		return false, err
	}
	// no rules for any of the user's roles leaves credentials unrestricted
	if len(rules) == 0 {
		return true, nil
	}
	for _, rule := range rules {
		if !credentialTypeMatches(rule.CredentialType, credType) {
			continue
		}
		if credentialScopeMatches(rule, serviceName, hostname, tags) {
			return true, nil
		}
	}
	a.auditCredentialDenied(ctx, userId, username, credType, serviceName, hostname)
	return false, nil
}

// credentialTypeMatches treats "*" (or an unset type) as every credential type.
func credentialTypeMatches(ruleType, credType string) bool {
	return ruleType == "" || ruleType == common.CredentialTypeAny || ruleType == credType
}

func credentialScopeMatches(rule *model.CredentialAccessRule, serviceName, hostname string, tags []string) bool {
	switch rule.ScopeType {
	case common.ScopeAll:
		return true
	case common.ScopeService:
		return rule.ScopeValue != "" && rule.ScopeValue == serviceName
	case common.ScopeInstance:
		return rule.ScopeValue != "" && rule.ScopeValue == hostname
	case common.ScopeTag:
		return rule.ScopeValue != "" && slice.ContainsString(tags, rule.ScopeValue)
	}
	return false
}

func (a *Authority) auditCredentialDenied(ctx context.Context, userId, username, credType, serviceName, hostname string) {
	resource := serviceName
	if hostname != "" {
		resource = strings.TrimPrefix(resource+"/"+hostname, "/")
	}
	entry := &model.AuditLog{
		UserId:    dbNullString(userId),
		Username:  username,
		Action:    "credential.access_denied",
		Resource:  resource,
		Details:   []byte(fmt.Sprintf(`{"credentialType":%q}`, credType)),
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.InsertAuditLog(ctx, entry); err != nil {
		klog.ErrorS(err, "failed to audit denied credential access", "user", username)
	}
}

// permMatches treats the full grant as implying every narrower permission.
func permMatches(granted, wanted string) bool {
	return granted == wanted || granted == common.AclFull
}

func dbNullString(val string) sql.NullString {
	return sql.NullString{String: val, Valid: val != ""}
}
