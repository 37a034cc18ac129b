/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
)

const (
	TObjectACL     = "object_acl"
	TTagPermission = "tag_permission"
	TServiceACL    = "service_acl"
)

var (
	insertObjectACLFormat     = `INSERT INTO ` + TObjectACL + ` (%s) VALUES (%s)`
	insertTagPermissionFormat = `INSERT INTO ` + TTagPermission + ` (%s) VALUES (%s)`
	insertServiceACLFormat    = `INSERT INTO ` + TServiceACL + ` (%s) VALUES (%s)`

	objectACLsForRolesCmd = fmt.Sprintf(`SELECT a.* FROM %s a
		JOIN %s ur ON ur.role_id = a.role_id
		WHERE a.object_id = $1 AND ur.user_id = $2`, TObjectACL, TUserRole)

	tagPermissionsForRolesCmd = fmt.Sprintf(`SELECT DISTINCT tp.permission FROM %s tp
		JOIN %s ot ON ot.tag_id = tp.tag_id
		JOIN %s ur ON ur.role_id = tp.role_id
		WHERE ot.object_id = $1 AND ur.user_id = $2`, TTagPermission, TObjectTag, TUserRole)

	serviceACLsForUserCmd = fmt.Sprintf(`SELECT DISTINCT sa.permission FROM %s sa
		JOIN %s ur ON ur.role_id = sa.role_id
		WHERE sa.service_name = $1 AND ur.user_id = $2`, TServiceACL, TUserRole)

	countServiceACLsCmd = fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE service_name = $1`, TServiceACL)
)

func (c *Client) InsertObjectACL(ctx context.Context, acl *model.ObjectACL) error {
	if acl == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*acl, insertObjectACLFormat), acl)
	if err != nil {
		klog.ErrorS(err, "failed to insert object acl db", "objectId", acl.ObjectId)
	}
	return err
}

func (c *Client) DeleteObjectACL(ctx context.Context, id string) error {
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TObjectACL), id)
	return err
}

func (c *Client) SelectObjectACLs(ctx context.Context, objectId string) ([]*model.ObjectACL, error) {
	cmd := fmt.Sprintf(`SELECT * FROM %s WHERE object_id = $1`, TObjectACL)
	var rows []*model.ObjectACL
	err := c.q.SelectContext(ctx, &rows, cmd, objectId)
	return rows, err
}

// GetObjectACLsForUser returns every per-object rule attached to the object
// through any of the user's roles, deny and allow rows both.
func (c *Client) GetObjectACLsForUser(ctx context.Context, objectId, userId string) ([]*model.ObjectACL, error) {
	var rows []*model.ObjectACL
	err := c.q.SelectContext(ctx, &rows, objectACLsForRolesCmd, objectId, userId)
	return rows, err
}

func (c *Client) InsertTagPermission(ctx context.Context, tp *model.TagPermission) error {
	if tp == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*tp, insertTagPermissionFormat), tp)
	if err != nil {
		klog.ErrorS(err, "failed to insert tag permission db", "tagId", tp.TagId)
	}
	return err
}

func (c *Client) DeleteTagPermission(ctx context.Context, id string) error {
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TTagPermission), id)
	return err
}

func (c *Client) SelectTagPermissions(ctx context.Context, tagId string) ([]*model.TagPermission, error) {
	cmd := fmt.Sprintf(`SELECT * FROM %s WHERE tag_id = $1`, TTagPermission)
	var rows []*model.TagPermission
	err := c.q.SelectContext(ctx, &rows, cmd, tagId)
	return rows, err
}

// GetTagPermissionsForUser returns the permissions the user holds on the
// object through tag grants on any tag attached to the object.
func (c *Client) GetTagPermissionsForUser(ctx context.Context, objectId, userId string) ([]string, error) {
	var perms []string
	err := c.q.SelectContext(ctx, &perms, tagPermissionsForRolesCmd, objectId, userId)
	return perms, err
}

func (c *Client) InsertServiceACL(ctx context.Context, acl *model.ServiceACL) error {
	if acl == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*acl, insertServiceACLFormat), acl)
	if err != nil {
		klog.ErrorS(err, "failed to insert service acl db", "service", acl.ServiceName)
	}
	return err
}

func (c *Client) DeleteServiceACL(ctx context.Context, id string) error {
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TServiceACL), id)
	return err
}

func (c *Client) SelectServiceACLs(ctx context.Context, serviceName string) ([]*model.ServiceACL, error) {
	cmd := fmt.Sprintf(`SELECT * FROM %s WHERE service_name = $1`, TServiceACL)
	var rows []*model.ServiceACL
	err := c.q.SelectContext(ctx, &rows, cmd, serviceName)
	return rows, err
}

// GetServicePermissionsForUser returns the service-level permissions the user
// holds through role grants on the named service.
func (c *Client) GetServicePermissionsForUser(ctx context.Context, serviceName, userId string) ([]string, error) {
	var perms []string
	err := c.q.SelectContext(ctx, &perms, serviceACLsForUserCmd, serviceName, userId)
	return perms, err
}

// CountServiceACLs reports whether any rules exist for the service at all.
// With zero rules the service falls back to global permissions.
func (c *Client) CountServiceACLs(ctx context.Context, serviceName string) (int, error) {
	var cnt int
	err := c.q.GetContext(ctx, &cnt, countServiceACLsCmd, serviceName)
	return cnt, err
}
