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
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// ListTagPermissions lists the grants attached to a tag.
// GET /api/inventory/tags/:id/permissions
func (h *Handler) ListTagPermissions(c *gin.Context) {
	handle(c, h.listTagPermissions)
}

// CreateTagPermission grants a role a permission on every object carrying the
// tag.
// POST /api/inventory/tags/:id/permissions
func (h *Handler) CreateTagPermission(c *gin.Context) {
	handle(c, h.createTagPermission)
}

// DeleteTagPermission removes a tag grant.
// DELETE /api/inventory/tag-permissions/:id
func (h *Handler) DeleteTagPermission(c *gin.Context) {
	handle(c, h.deleteTagPermission)
}

// ListServiceACLs lists the per-service rules.
// GET /api/services/:name/acls
func (h *Handler) ListServiceACLs(c *gin.Context) {
	handle(c, h.listServiceACLs)
}

// CreateServiceACL adds a per-service rule. Once any rule exists for a
// service the global services.* codenames stop applying to it.
// POST /api/services/:name/acls
func (h *Handler) CreateServiceACL(c *gin.Context) {
	handle(c, h.createServiceACL)
}

// DeleteServiceACL removes a per-service rule.
// DELETE /api/services/acls/:id
func (h *Handler) DeleteServiceACL(c *gin.Context) {
	handle(c, h.deleteServiceACL)
}

func (h *Handler) listTagPermissions(c *gin.Context) (interface{}, error) {
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	grants, err := h.store.SelectTagPermissions(c.Request.Context(), c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(grants), Items: grants}, nil
}

type tagPermissionRequest struct {
	RoleId     string `json:"roleId" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

func (h *Handler) createTagPermission(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	var req tagPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if _, err := h.store.GetRole(ctx, req.RoleId); err != nil {
		return nil, err
	}
	grant := &model.TagPermission{
		Id:         uuid.NewString(),
		TagId:      c.Param(common.Id),
		RoleId:     req.RoleId,
		Permission: req.Permission,
	}
	if err := h.store.InsertTagPermission(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

func (h *Handler) deleteTagPermission(c *gin.Context) (interface{}, error) {
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	grantId := c.Param(common.Id)
	if err := h.store.DeleteTagPermission(c.Request.Context(), grantId); err != nil {
		return nil, err
	}
	return gin.H{"id": grantId}, nil
}

func (h *Handler) listServiceACLs(c *gin.Context) (interface{}, error) {
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	acls, err := h.store.SelectServiceACLs(c.Request.Context(), c.Param(common.Name))
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(acls), Items: acls}, nil
}

type serviceACLRequest struct {
	RoleId     string `json:"roleId" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

func (h *Handler) createServiceACL(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	var req serviceACLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	name := c.Param(common.Name)
	if !h.catalog.Has(name) {
		return nil, commonerrors.NewNotFound("Service", name)
	}
	if _, err := h.store.GetRole(ctx, req.RoleId); err != nil {
		return nil, err
	}
	acl := &model.ServiceACL{
		Id:          uuid.NewString(),
		ServiceName: name,
		RoleId:      req.RoleId,
		Permission:  req.Permission,
	}
	if err := h.store.InsertServiceACL(ctx, acl); err != nil {
		return nil, err
	}
	return acl, nil
}

func (h *Handler) deleteServiceACL(c *gin.Context) (interface{}, error) {
	if err := h.requireRolesManage(c); err != nil {
		return nil, err
	}
	aclId := c.Param(common.Id)
	if err := h.store.DeleteServiceACL(c.Request.Context(), aclId); err != nil {
		return nil, err
	}
	return gin.H{"id": aclId}, nil
}
