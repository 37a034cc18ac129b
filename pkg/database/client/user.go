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
	TUser     = "users"
	TUserRole = "user_role"
)

var (
	getUserCmd           = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TUser)
	getUserByUsernameCmd = fmt.Sprintf(`SELECT * FROM %s WHERE username = $1 LIMIT 1`, TUser)
	insertUserFormat     = `INSERT INTO ` + TUser + ` (%s) VALUES (%s)`
	updateUserCmd        = fmt.Sprintf(`UPDATE %s
		SET email = :email,
		    display_name = :display_name,
		    is_active = :is_active,
		    ssh_public_key = :ssh_public_key,
		    ssh_private_key = :ssh_private_key,
		    totp_secret_encrypted = :totp_secret_encrypted,
		    mfa_enabled = :mfa_enabled,
		    backup_codes = :backup_codes,
		    password_hash = :password_hash,
		    invite_accepted_at = :invite_accepted_at
		WHERE id = :id`, TUser)
)

func (c *Client) InsertUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*user, insertUserFormat), user)
	if err != nil {
		klog.ErrorS(err, "failed to insert user db", "id", user.Id)
	}
	return err
}

func (c *Client) UpdateUser(ctx context.Context, user *model.User) error {
	if user == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, updateUserCmd, user)
	if err != nil {
		klog.ErrorS(err, "failed to update user db", "id", user.Id)
	}
	return err
}

func (c *Client) GetUser(ctx context.Context, userId string) (*model.User, error) {
	var users []*model.User
	if err := c.q.SelectContext(ctx, &users, getUserCmd, userId); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, commonerrors.NewNotFound("User", userId)
	}
	return users[0], nil
}

func (c *Client) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var users []*model.User
	if err := c.q.SelectContext(ctx, &users, getUserByUsernameCmd, username); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, commonerrors.NewNotFound("User", username)
	}
	return users[0], nil
}

func (c *Client) SelectUsers(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*model.User, error) {
	sql, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TUser).
		Where(query).
		OrderBy(orderBy...).
		Limit(uint64(limit)).
		Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, err
	}
	var users []*model.User
	ctx2, cancel := c.queryContext(ctx)
	defer cancel()
	err = c.q.SelectContext(ctx2, &users, sql, args...)
	return users, err
}

func (c *Client) CountUsers(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	sql, args, err := sqrl.Select("COUNT(*)").PlaceholderFormat(sqrl.Dollar).From(TUser).Where(query).ToSql()
	if err != nil {
		return 0, err
	}
	var cnt int
	err = c.q.GetContext(ctx, &cnt, sql, args...)
	return cnt, err
}

// SetUserActive deactivates or reactivates a user. Users are never hard-deleted
// through the API.
func (c *Client) SetUserActive(ctx context.Context, userId string, active bool) error {
	cmd := fmt.Sprintf(`UPDATE %s SET is_active = $2 WHERE id = $1`, TUser)
	_, err := c.q.ExecContext(ctx, cmd, userId, active)
	if err != nil {
		klog.ErrorS(err, "failed to set user active", "id", userId, "active", active)
	}
	return err
}

func (c *Client) GetUserRoleIds(ctx context.Context, userId string) ([]string, error) {
	cmd := fmt.Sprintf(`SELECT role_id FROM %s WHERE user_id = $1`, TUserRole)
	var roleIds []string
	err := c.q.SelectContext(ctx, &roleIds, cmd, userId)
	return roleIds, err
}

// SetUserRoles replaces the user's role memberships. Callers must invalidate
// the permission cache entry for this user afterwards.
func (c *Client) SetUserRoles(ctx context.Context, userId string, roleIds []string) error {
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, TUserRole)
	if _, err := c.q.ExecContext(ctx, cmd, userId); err != nil {
		return err
	}
	insertCmd := fmt.Sprintf(`INSERT INTO %s (user_id, role_id) VALUES ($1, $2)`, TUserRole)
	for _, roleId := range roleIds {
		if _, err := c.q.ExecContext(ctx, insertCmd, userId, roleId); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) CountUsersWithRole(ctx context.Context, roleId string) (int, error) {
	cmd := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE role_id = $1`, TUserRole)
	var cnt int
	err := c.q.GetContext(ctx, &cnt, cmd, roleId)
	return cnt, err
}
