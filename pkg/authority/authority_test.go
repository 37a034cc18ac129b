/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package authority

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

func newTestAuthority(t *testing.T) (*Authority, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Authority{store: dbclient.NewClientWithDB(sqlx.NewDb(db, "postgres"))}, mock
}

func expectRoleNames(mock sqlmock.Sqlmock, userId string, names ...string) {
	rows := sqlmock.NewRows([]string{"name"})
	for _, n := range names {
		rows.AddRow(n)
	}
	mock.ExpectQuery(`SELECT r\.name`).WithArgs(userId).WillReturnRows(rows)
}

func expectCodenames(mock sqlmock.Sqlmock, userId string, codenames ...string) {
	rows := sqlmock.NewRows([]string{"codename"})
	for _, c := range codenames {
		rows.AddRow(c)
	}
	mock.ExpectQuery(`SELECT DISTINCT p\.codename`).WithArgs(userId).WillReturnRows(rows)
}

func TestSuperAdminWildcard(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", common.SuperAdminRole, "operators")

	ok, err := a.HasPermission(context.Background(), "u1", common.PermServicesDeploy)
	require.NoError(t, err)
	assert.True(t, ok)

	// wildcard covers codenames never granted explicitly
	ok, err = a.HasPermission(context.Background(), "u1", "users.manage")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionSetCached(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1", common.PermServicesView)

	ok, err := a.HasPermission(context.Background(), "u1", common.PermServicesView)
	require.NoError(t, err)
	assert.True(t, ok)

	// second check is served from the cache, no further queries expected
	ok, err = a.HasPermission(context.Background(), "u1", common.PermServicesStop)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())

	// after invalidation the store is consulted again
	a.InvalidateUser("u1")
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1", common.PermServicesView, common.PermServicesStop)
	ok, err = a.HasPermission(context.Background(), "u1", common.PermServicesStop)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectObjectWithType(mock sqlmock.Sqlmock, objectId, typeId, slug string) {
	mock.ExpectQuery(`SELECT \* FROM inventory_object WHERE id = \$1`).
		WithArgs(objectId).
		WillReturnRows(sqlmock.NewRows([]string{"id", "type_id", "data"}).
			AddRow(objectId, typeId, []byte(`{"name":"obj"}`)))
	mock.ExpectQuery(`SELECT \* FROM inventory_type WHERE id = \$1`).
		WithArgs(typeId).
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug"}).AddRow(typeId, slug))
}

func TestCheckObjectPermissionDenyWins(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1", common.PermServicesView)
	expectObjectWithType(mock, "obj1", "t1", "vm")

	// both an allow and a deny rule reach the user; the deny must win
	mock.ExpectQuery(`SELECT a\.\* FROM object_acl a`).
		WithArgs("obj1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "object_id", "role_id", "permission", "effect"}).
			AddRow("acl1", "obj1", "r1", common.AclView, common.EffectAllow).
			AddRow("acl2", "obj1", "r2", common.AclView, common.EffectDeny))

	err := a.CheckObjectPermission(context.Background(), "u1", "obj1", common.AclView)
	require.Error(t, err)
	assert.True(t, commonerrors.IsForbidden(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckObjectPermissionTagFallback(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1")
	expectObjectWithType(mock, "obj1", "t1", "vm")

	mock.ExpectQuery(`SELECT a\.\* FROM object_acl a`).
		WithArgs("obj1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT DISTINCT tp\.permission FROM tag_permission tp`).
		WithArgs("obj1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"permission"}).AddRow(common.AclFull))

	// the full tag grant implies view
	err := a.CheckObjectPermission(context.Background(), "u1", "obj1", common.AclView)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckObjectPermissionTypeFallback(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1", "inventory.vm.view")
	expectObjectWithType(mock, "obj1", "t1", "vm")

	mock.ExpectQuery(`SELECT a\.\* FROM object_acl a`).
		WithArgs("obj1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT DISTINCT tp\.permission FROM tag_permission tp`).
		WithArgs("obj1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"permission"}))

	// no rule matched, but the type-level codename covers the suffix
	err := a.CheckObjectPermission(context.Background(), "u1", "obj1", common.AclView)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckServicePermissionFallback(t *testing.T) {
	testCases := []struct {
		name      string
		aclCount  int
		aclPerms  []string
		codenames []string
		wantErr   bool
	}{
		{
			name:      "no rules falls back to global codename",
			aclCount:  0,
			codenames: []string{common.PermServicesDeploy},
			wantErr:   false,
		},
		{
			name:      "no rules and no codename is forbidden",
			aclCount:  0,
			codenames: []string{common.PermServicesView},
			wantErr:   true,
		},
		{
			name:      "rules exist and codename alone is not enough",
			aclCount:  2,
			aclPerms:  []string{},
			codenames: []string{common.PermServicesDeploy},
			wantErr:   true,
		},
		{
			name:      "rules exist and the user holds one",
			aclCount:  2,
			aclPerms:  []string{common.AclDeploy},
			codenames: []string{},
			wantErr:   false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, mock := newTestAuthority(t)
			expectRoleNames(mock, "u1", "operators")
			expectCodenames(mock, "u1", tc.codenames...)
			mock.ExpectQuery(`SELECT COUNT\(\*\) FROM service_acl`).
				WithArgs("grafana").
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tc.aclCount))
			if tc.aclCount > 0 {
				rows := sqlmock.NewRows([]string{"permission"})
				for _, p := range tc.aclPerms {
					rows.AddRow(p)
				}
				mock.ExpectQuery(`SELECT DISTINCT sa\.permission FROM service_acl sa`).
					WithArgs("grafana", "u1").
					WillReturnRows(rows)
			}

			err := a.CheckServicePermission(context.Background(), "u1", "grafana",
				common.AclDeploy, common.PermServicesDeploy)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, commonerrors.IsForbidden(err))
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCredentialScopeMatching(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1")
	mock.ExpectQuery(`SELECT r\.\* FROM credential_access_rule r`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "role_id", "credential_type", "scope_type", "scope_value", "require_personal_key"}).
			AddRow("c1", "r1", "password", common.ScopeService, "grafana", false))

	ok, err := a.CanViewCredential(context.Background(), "u1", "alice",
		"password", "grafana", "host-1", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialNoRulesFallsThrough(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1")
	mock.ExpectQuery(`SELECT r\.\* FROM credential_access_rule r`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// no rules reach the user's roles: credentials stay unrestricted and no
	// denial is audited
	ok, err := a.CanViewCredential(context.Background(), "u1", "alice",
		"password", "grafana", "", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialTypeWildcardMatchesAll(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1")
	mock.ExpectQuery(`SELECT r\.\* FROM credential_access_rule r`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "role_id", "credential_type", "scope_type", "scope_value", "require_personal_key"}).
			AddRow("c1", "r1", common.CredentialTypeAny, common.ScopeAll, "", false))

	ok, err := a.CanViewCredential(context.Background(), "u1", "alice",
		"ssh_key", "grafana", "host-1", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialDeniedIsAudited(t *testing.T) {
	a, mock := newTestAuthority(t)
	expectRoleNames(mock, "u1", "operators")
	expectCodenames(mock, "u1")
	// a rule exists but is scoped to a different service, so the deny applies
	mock.ExpectQuery(`SELECT r\.\* FROM credential_access_rule r`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "role_id", "credential_type", "scope_type", "scope_value", "require_personal_key"}).
			AddRow("c1", "r1", "password", common.ScopeService, "prometheus", false))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ok, err := a.CanViewCredential(context.Background(), "u1", "alice",
		"password", "grafana", "", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
