/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// ListBlueprints lists blueprints.
// GET /api/blueprints
func (h *Handler) ListBlueprints(c *gin.Context) {
	handle(c, h.listBlueprints)
}

// GetBlueprint returns one blueprint.
// GET /api/blueprints/:id
func (h *Handler) GetBlueprint(c *gin.Context) {
	handle(c, h.getBlueprint)
}

// CreateBlueprint creates a blueprint, an ordered list of services.
// POST /api/blueprints
func (h *Handler) CreateBlueprint(c *gin.Context) {
	handle(c, h.createBlueprint)
}

// UpdateBlueprint replaces a blueprint's service list.
// PUT /api/blueprints/:id
func (h *Handler) UpdateBlueprint(c *gin.Context) {
	handle(c, h.updateBlueprint)
}

// DeleteBlueprint deletes a blueprint.
// DELETE /api/blueprints/:id
func (h *Handler) DeleteBlueprint(c *gin.Context) {
	handle(c, h.deleteBlueprint)
}

// DeployBlueprint starts an ordered deployment of the blueprint's services.
// POST /api/blueprints/:id/deploy
func (h *Handler) DeployBlueprint(c *gin.Context) {
	handle(c, h.deployBlueprint)
}

// ListBlueprintDeployments lists past and running deployments.
// GET /api/blueprint-deployments
func (h *Handler) ListBlueprintDeployments(c *gin.Context) {
	handle(c, h.listBlueprintDeployments)
}

// GetBlueprintDeployment returns one deployment with per-step progress.
// GET /api/blueprint-deployments/:id
func (h *Handler) GetBlueprintDeployment(c *gin.Context) {
	handle(c, h.getBlueprintDeployment)
}

func (h *Handler) requireBlueprintsManage(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermBlueprintsManage)
}

func (h *Handler) listBlueprints(c *gin.Context) (interface{}, error) {
	blueprints, err := h.store.SelectBlueprints(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(blueprints), Items: blueprints}, nil
}

func (h *Handler) getBlueprint(c *gin.Context) (interface{}, error) {
	return h.store.GetBlueprint(c.Request.Context(), c.Param(common.Id))
}

type blueprintRequest struct {
	Name     string   `json:"name" binding:"required"`
	Services []string `json:"services" binding:"required"`
}

func (req *blueprintRequest) validate(h *Handler) error {
	if len(req.Services) == 0 {
		return commonerrors.NewBadRequest("a blueprint needs at least one service")
	}
	for _, name := range req.Services {
		if !h.catalog.Has(name) {
			return commonerrors.NewBadRequest(
				fmt.Sprintf("unknown service %s in blueprint", name))
		}
	}
	return nil
}

func (h *Handler) createBlueprint(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireBlueprintsManage(c); err != nil {
		return nil, err
	}
	var req blueprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if err := req.validate(h); err != nil {
		return nil, err
	}
	if _, err := h.store.GetBlueprintByName(ctx, req.Name); err == nil {
		return nil, commonerrors.NewAlreadyExist(
			fmt.Sprintf("The blueprint %s already exists", req.Name))
	} else if !commonerrors.IsNotFound(err) {
		return nil, err
	}
	bp := &model.Blueprint{
		Id:       uuid.NewString(),
		Name:     req.Name,
		Services: json.MarshalSilently(req.Services),
	}
	if err := h.store.InsertBlueprint(ctx, bp); err != nil {
		return nil, err
	}
	return bp, nil
}

func (h *Handler) updateBlueprint(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireBlueprintsManage(c); err != nil {
		return nil, err
	}
	var req blueprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if err := req.validate(h); err != nil {
		return nil, err
	}
	bp, err := h.store.GetBlueprint(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	bp.Name = req.Name
	bp.Services = json.MarshalSilently(req.Services)
	if err = h.store.UpdateBlueprint(ctx, bp); err != nil {
		return nil, err
	}
	return bp, nil
}

func (h *Handler) deleteBlueprint(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireBlueprintsManage(c); err != nil {
		return nil, err
	}
	bp, err := h.store.GetBlueprint(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	if err = h.store.DeleteBlueprint(ctx, bp.Id); err != nil {
		return nil, err
	}
	return gin.H{"id": bp.Id}, nil
}

func (h *Handler) deployBlueprint(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	err := h.authority.RequirePermission(ctx, c.GetString(common.UserId),
		common.PermBlueprintsDeploy)
	if err != nil {
		return nil, err
	}
	dep, err := h.deployer.Deploy(ctx, c.Param(common.Id), caller(c))
	if err != nil {
		return nil, err
	}
	return dep, nil
}

func (h *Handler) listBlueprintDeployments(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	var query sqrl.Sqlizer
	if blueprintId := c.Query("blueprint_id"); blueprintId != "" {
		query = sqrl.Eq{"blueprint_id": blueprintId}
	}
	limit, offset := parsePagination(c)
	deployments, err := h.store.SelectBlueprintDeployments(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(deployments), Items: deployments}, nil
}

func (h *Handler) getBlueprintDeployment(c *gin.Context) (interface{}, error) {
	return h.store.GetBlueprintDeployment(c.Request.Context(), c.Param(common.Id))
}
