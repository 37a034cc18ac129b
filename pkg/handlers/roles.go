/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// ListRoles lists all roles.
// GET /api/roles
func (h *Handler) ListRoles(c *gin.Context) {
	handle(c, h.listRoles)
}

// GetRole returns one role with its permission ids.
// GET /api/roles/:id
func (h *Handler) GetRole(c *gin.Context) {
	handle(c, h.getRole)
}

// CreateRole creates a role with an optional permission set.
// POST /api/roles
func (h *Handler) CreateRole(c *gin.Context) {
	handle(c, h.createRole)
}

// UpdateRole updates a role. System roles are immutable.
// PUT /api/roles/:id
func (h *Handler) UpdateRole(c *gin.Context) {
	handle(c, h.updateRole)
}

// DeleteRole deletes a role with no members.
// DELETE /api/roles/:id
func (h *Handler) DeleteRole(c *gin.Context) {
	handle(c, h.deleteRole)
}

// ListPermissions returns the permission catalog.
// GET /api/permissions
func (h *Handler) ListPermissions(c *gin.Context) {
	handle(c, h.listPermissions)
}

func (h *Handler) requireRolesManage(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermRolesManage)
}

func (h *Handler) listRoles(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	roles, err := h.store.SelectRoles(ctx, nil, []string{"name ASC"})
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(roles), Items: roles}, nil
}

func (h *Handler) getRole(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	role, err := h.store.GetRole(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	permissionIds, err := h.store.GetRolePermissionIds(ctx, role.Id)
	if err != nil {
		return nil, err
	}
	return gin.H{"role": role, "permissionIds": permissionIds}, nil
}

type roleRequest struct {
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	PermissionIds []string `json:"permissionIds"`
}

func (h *Handler) createRole(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if _, err := h.store.GetRoleByName(ctx, req.Name); err == nil {
		return nil, commonerrors.NewAlreadyExist(
			fmt.Sprintf("The role %s already exists", req.Name))
	} else if !commonerrors.IsNotFound(err) {
		return nil, err
	}
	role := &model.Role{
		Id:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
	}
	err := h.store.WithTx(ctx, func(tx *dbclient.Client) error {
		if err := tx.InsertRole(ctx, role); err != nil {
			return err
		}
		if len(req.PermissionIds) > 0 {
			return tx.SetRolePermissions(ctx, role.Id, req.PermissionIds)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (h *Handler) updateRole(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	role, err := h.store.GetRole(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, commonerrors.NewConflict(
			fmt.Sprintf("The system role %s cannot be modified", role.Name))
	}
	role.Name = req.Name
	role.Description = req.Description
	err = h.store.WithTx(ctx, func(tx *dbclient.Client) error {
		if err := tx.UpdateRole(ctx, role); err != nil {
			return err
		}
		return tx.SetRolePermissions(ctx, role.Id, req.PermissionIds)
	})
	if err != nil {
		return nil, err
	}
	// every member of the role may have a stale permission set now
	h.authority.InvalidateAll()
	return role, nil
}

func (h *Handler) deleteRole(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	role, err := h.store.GetRole(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, commonerrors.NewConflict(
			fmt.Sprintf("The system role %s cannot be deleted", role.Name))
	}
	members, err := h.store.CountUsersWithRole(ctx, role.Id)
	if err != nil {
		return nil, err
	}
	if members > 0 {
		return nil, commonerrors.NewConflict(
			fmt.Sprintf("The role %s still has %d members", role.Name, members))
	}
	if err = h.store.DeleteRole(ctx, role.Id); err != nil {
		return nil, err
	}
	h.authority.InvalidateAll()
	return gin.H{"id": role.Id}, nil
}

func (h *Handler) listPermissions(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	permissions, err := h.store.SelectPermissions(ctx)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(permissions), Items: permissions}, nil
}
