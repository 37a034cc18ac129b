/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
)

const (
	TWorkspace       = "workspace"
	TWorkspaceMember = "workspace_member"
)

var (
	getWorkspaceCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TWorkspace)
	getWorkspaceByNameCmd = fmt.Sprintf(`SELECT * FROM %s WHERE name = $1 LIMIT 1`, TWorkspace)
	insertWorkspaceFormat = `INSERT INTO ` + TWorkspace + ` (%s) VALUES (%s)`
)

func (c *Client) InsertWorkspace(ctx context.Context, ws *model.Workspace) error {
	if ws == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*ws, insertWorkspaceFormat), ws)
	if err != nil {
		klog.ErrorS(err, "failed to insert workspace db", "name", ws.Name)
	}
	return err
}

func (c *Client) UpdateWorkspace(ctx context.Context, ws *model.Workspace) error {
	cmd := fmt.Sprintf(`UPDATE %s SET name = :name, description = :description WHERE id = :id`, TWorkspace)
	_, err := c.q.NamedExecContext(ctx, cmd, ws)
	return err
}

func (c *Client) GetWorkspace(ctx context.Context, id string) (*model.Workspace, error) {
	var workspaces []*model.Workspace
	if err := c.q.SelectContext(ctx, &workspaces, getWorkspaceCmd, id); err != nil {
		return nil, err
	}
	if len(workspaces) == 0 {
		return nil, commonerrors.NewNotFound("Workspace", id)
	}
	return workspaces[0], nil
}

func (c *Client) GetWorkspaceByName(ctx context.Context, name string) (*model.Workspace, error) {
	var workspaces []*model.Workspace
	if err := c.q.SelectContext(ctx, &workspaces, getWorkspaceByNameCmd, name); err != nil {
		return nil, err
	}
	if len(workspaces) == 0 {
		return nil, commonerrors.NewNotFound("Workspace", name)
	}
	return workspaces[0], nil
}

func (c *Client) SelectWorkspaces(ctx context.Context) ([]*model.Workspace, error) {
	var workspaces []*model.Workspace
	err := c.q.SelectContext(ctx, &workspaces,
		fmt.Sprintf(`SELECT * FROM %s ORDER BY name`, TWorkspace))
	return workspaces, err
}

// DeleteWorkspace removes a workspace and its memberships. System rows are
// rejected at the handler layer.
func (c *Client) DeleteWorkspace(ctx context.Context, id string) error {
	if _, err := c.q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE workspace_id = $1`, TWorkspaceMember), id); err != nil {
		return err
	}
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TWorkspace), id)
	return err
}

// SetWorkspaceMembers replaces the membership list.
func (c *Client) SetWorkspaceMembers(ctx context.Context, workspaceId string, userIds []string) error {
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE workspace_id = $1`, TWorkspaceMember)
	if _, err := c.q.ExecContext(ctx, cmd, workspaceId); err != nil {
		return err
	}
	insertCmd := fmt.Sprintf(`INSERT INTO %s (workspace_id, user_id) VALUES ($1, $2)`, TWorkspaceMember)
	for _, userId := range userIds {
		if _, err := c.q.ExecContext(ctx, insertCmd, workspaceId, userId); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) GetWorkspaceMemberIds(ctx context.Context, workspaceId string) ([]string, error) {
	cmd := fmt.Sprintf(`SELECT user_id FROM %s WHERE workspace_id = $1`, TWorkspaceMember)
	var ids []string
	err := c.q.SelectContext(ctx, &ids, cmd, workspaceId)
	return ids, err
}
