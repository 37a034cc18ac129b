/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
)

const (
	TRole           = "role"
	TPermission     = "permission"
	TRolePermission = "role_permission"
)

var (
	getRoleCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TRole)
	getRoleByNameCmd = fmt.Sprintf(`SELECT * FROM %s WHERE name = $1 LIMIT 1`, TRole)
	insertRoleFormat = `INSERT INTO ` + TRole + ` (%s) VALUES (%s)`

	// the union of permission codenames granted through the user's roles
	userPermissionsCmd = fmt.Sprintf(`SELECT DISTINCT p.codename
		FROM %s p
		JOIN %s rp ON rp.permission_id = p.id
		JOIN %s ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1`, TPermission, TRolePermission, TUserRole)

	userRoleNamesCmd = fmt.Sprintf(`SELECT r.name
		FROM %s r JOIN %s ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`, TRole, TUserRole)
)

func (c *Client) InsertRole(ctx context.Context, role *model.Role) error {
	if role == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*role, insertRoleFormat), role)
	if err != nil {
		klog.ErrorS(err, "failed to insert role db", "name", role.Name)
	}
	return err
}

func (c *Client) UpdateRole(ctx context.Context, role *model.Role) error {
	cmd := fmt.Sprintf(`UPDATE %s SET name = :name, description = :description WHERE id = :id`, TRole)
	_, err := c.q.NamedExecContext(ctx, cmd, role)
	return err
}

func (c *Client) GetRole(ctx context.Context, roleId string) (*model.Role, error) {
	var roles []*model.Role
	if err := c.q.SelectContext(ctx, &roles, getRoleCmd, roleId); err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, commonerrors.NewNotFound("Role", roleId)
	}
	return roles[0], nil
}

func (c *Client) GetRoleByName(ctx context.Context, name string) (*model.Role, error) {
	var roles []*model.Role
	if err := c.q.SelectContext(ctx, &roles, getRoleByNameCmd, name); err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, commonerrors.NewNotFound("Role", name)
	}
	return roles[0], nil
}

func (c *Client) SelectRoles(ctx context.Context, query sqrl.Sqlizer, orderBy []string) ([]*model.Role, error) {
	sql, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TRole).Where(query).OrderBy(orderBy...).ToSql()
	if err != nil {
		return nil, err
	}
	var roles []*model.Role
	err = c.q.SelectContext(ctx, &roles, sql, args...)
	return roles, err
}

// DeleteRole removes a role and its permission grants. System roles and roles
// with members are rejected at the handler layer.
func (c *Client) DeleteRole(ctx context.Context, roleId string) error {
	if _, err := c.q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE role_id = $1`, TRolePermission), roleId); err != nil {
		return err
	}
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TRole), roleId)
	return err
}

func (c *Client) SelectPermissions(ctx context.Context) ([]*model.Permission, error) {
	var perms []*model.Permission
	err := c.q.SelectContext(ctx, &perms,
		fmt.Sprintf(`SELECT * FROM %s ORDER BY category, codename`, TPermission))
	return perms, err
}

// SetRolePermissions replaces the role's permission grants. Callers must
// invalidate the whole permission cache afterwards.
func (c *Client) SetRolePermissions(ctx context.Context, roleId string, permissionIds []string) error {
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE role_id = $1`, TRolePermission)
	if _, err := c.q.ExecContext(ctx, cmd, roleId); err != nil {
		return err
	}
	insertCmd := fmt.Sprintf(`INSERT INTO %s (role_id, permission_id) VALUES ($1, $2)`, TRolePermission)
	for _, permId := range permissionIds {
		if _, err := c.q.ExecContext(ctx, insertCmd, roleId, permId); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) GetRolePermissionIds(ctx context.Context, roleId string) ([]string, error) {
	cmd := fmt.Sprintf(`SELECT permission_id FROM %s WHERE role_id = $1`, TRolePermission)
	var ids []string
	err := c.q.SelectContext(ctx, &ids, cmd, roleId)
	return ids, err
}

// GetUserPermissionCodenames returns the union of codenames granted via the
// user's roles. Membership in the system super-admin role is reported by
// GetUserRoleNames; the wildcard itself is not stored as a row.
func (c *Client) GetUserPermissionCodenames(ctx context.Context, userId string) ([]string, error) {
	var codenames []string
	err := c.q.SelectContext(ctx, &codenames, userPermissionsCmd, userId)
	return codenames, err
}

func (c *Client) GetUserRoleNames(ctx context.Context, userId string) ([]string, error) {
	var names []string
	err := c.q.SelectContext(ctx, &names, userRoleNamesCmd, userId)
	return names, err
}
