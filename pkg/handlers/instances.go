/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// StopInstance stops one cloud instance by label and region.
// POST /api/instances/stop
func (h *Handler) StopInstance(c *gin.Context) {
	handle(c, h.stopInstance)
}

// RefreshInstances refreshes the provider instance cache.
// POST /api/instances/refresh
func (h *Handler) RefreshInstances(c *gin.Context) {
	handle(c, h.refreshInstances)
}

type stopInstanceRequest struct {
	Label  string `json:"label" binding:"required"`
	Region string `json:"region" binding:"required"`
}

func (h *Handler) stopInstance(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	var req stopInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	err := h.authority.RequirePermission(ctx, c.GetString(common.UserId), common.PermInstancesStop)
	if err != nil {
		return nil, err
	}
	job, err := h.runner.StopInstance(ctx, req.Label, req.Region, caller(c))
	if err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.Id, "status": job.Status()}, nil
}

func (h *Handler) refreshInstances(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	err := h.authority.RequirePermission(ctx, c.GetString(common.UserId), common.PermInstancesRefresh)
	if err != nil {
		return nil, err
	}
	job, err := h.runner.RefreshInstances(ctx, caller(c))
	if err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.Id, "status": job.Status()}, nil
}
