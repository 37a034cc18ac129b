/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// ListWorkspaces lists workspaces.
// GET /api/workspaces
func (h *Handler) ListWorkspaces(c *gin.Context) {
	handle(c, h.listWorkspaces)
}

// GetWorkspace returns one workspace with its member ids.
// GET /api/workspaces/:id
func (h *Handler) GetWorkspace(c *gin.Context) {
	handle(c, h.getWorkspace)
}

// CreateWorkspace creates a workspace.
// POST /api/workspaces
func (h *Handler) CreateWorkspace(c *gin.Context) {
	handle(c, h.createWorkspace)
}

// UpdateWorkspace updates a workspace and its members. The seeded default
// workspace cannot be renamed.
// PUT /api/workspaces/:id
func (h *Handler) UpdateWorkspace(c *gin.Context) {
	handle(c, h.updateWorkspace)
}

// DeleteWorkspace deletes a workspace. System rows are immutable.
// DELETE /api/workspaces/:id
func (h *Handler) DeleteWorkspace(c *gin.Context) {
	handle(c, h.deleteWorkspace)
}

func (h *Handler) requireWorkspacesManage(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermWorkspacesManage)
}

func (h *Handler) listWorkspaces(c *gin.Context) (interface{}, error) {
	if err := h.requireWorkspacesManage(c); err != nil {
		return nil, err
	}
	workspaces, err := h.store.SelectWorkspaces(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(workspaces), Items: workspaces}, nil
}

func (h *Handler) getWorkspace(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireWorkspacesManage(c); err != nil {
		return nil, err
	}
	ws, err := h.store.GetWorkspace(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	memberIds, err := h.store.GetWorkspaceMemberIds(ctx, ws.Id)
	if err != nil {
		return nil, err
	}
	return gin.H{"workspace": ws, "memberIds": memberIds}, nil
}

type workspaceRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description"`
	MemberIds   *[]string `json:"memberIds"`
}

func (h *Handler) createWorkspace(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireWorkspacesManage(c); err != nil {
		return nil, err
	}
	var req workspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if _, err := h.store.GetWorkspaceByName(ctx, req.Name); err == nil {
		return nil, commonerrors.NewAlreadyExist(
			fmt.Sprintf("The workspace %s already exists", req.Name))
	} else if !commonerrors.IsNotFound(err) {
		return nil, err
	}
	ws := &model.Workspace{
		Id:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	err := h.store.WithTx(ctx, func(tx *dbclient.Client) error {
		if err := tx.InsertWorkspace(ctx, ws); err != nil {
			return err
		}
		if req.MemberIds != nil {
			return tx.SetWorkspaceMembers(ctx, ws.Id, *req.MemberIds)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (h *Handler) updateWorkspace(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireWorkspacesManage(c); err != nil {
		return nil, err
	}
	var req workspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	ws, err := h.store.GetWorkspace(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	if ws.IsSystem && req.Name != ws.Name {
		return nil, commonerrors.NewConflict(
			fmt.Sprintf("The system workspace %s cannot be renamed", ws.Name))
	}
	ws.Name = req.Name
	ws.Description = req.Description
	err = h.store.WithTx(ctx, func(tx *dbclient.Client) error {
		if err := tx.UpdateWorkspace(ctx, ws); err != nil {
			return err
		}
		if req.MemberIds != nil {
			return tx.SetWorkspaceMembers(ctx, ws.Id, *req.MemberIds)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (h *Handler) deleteWorkspace(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireWorkspacesManage(c); err != nil {
		return nil, err
	}
	ws, err := h.store.GetWorkspace(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	if ws.IsSystem {
		return nil, commonerrors.NewConflict(
			fmt.Sprintf("The system workspace %s cannot be deleted", ws.Name))
	}
	if err = h.store.DeleteWorkspace(ctx, ws.Id); err != nil {
		return nil, err
	}
	return gin.H{"id": ws.Id}, nil
}
