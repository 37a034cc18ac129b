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
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/pollers"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// ListDriftReports lists drift reports, newest first.
// GET /api/drift/reports
func (h *Handler) ListDriftReports(c *gin.Context) {
	handle(c, h.listDriftReports)
}

// GetLatestDriftReport returns the most recent drift report.
// GET /api/drift/reports/latest
func (h *Handler) GetLatestDriftReport(c *gin.Context) {
	handle(c, h.getLatestDriftReport)
}

// GetDriftSettings returns the drift notification settings.
// GET /api/drift/settings
func (h *Handler) GetDriftSettings(c *gin.Context) {
	handle(c, h.getDriftSettings)
}

// UpdateDriftSettings replaces the drift notification settings.
// PUT /api/drift/settings
func (h *Handler) UpdateDriftSettings(c *gin.Context) {
	handle(c, h.updateDriftSettings)
}

// GetHealthStatus returns the latest health probe results.
// GET /api/health/status
func (h *Handler) GetHealthStatus(c *gin.Context) {
	handle(c, h.getHealthStatus)
}

func (h *Handler) requireDriftView(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermDriftView)
}

func (h *Handler) listDriftReports(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireDriftView(c); err != nil {
		return nil, err
	}
	limit, offset := parsePagination(c)
	reports, err := h.store.SelectDriftReports(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(reports), Items: reports}, nil
}

func (h *Handler) getLatestDriftReport(c *gin.Context) (interface{}, error) {
	if err := h.requireDriftView(c); err != nil {
		return nil, err
	}
	return h.store.GetLatestDriftReport(c.Request.Context())
}

func (h *Handler) getDriftSettings(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireDriftView(c); err != nil {
		return nil, err
	}
	meta, err := h.store.GetMetadata(ctx, common.MetaNotificationSettings)
	if commonerrors.IsNotFound(err) {
		return &pollers.NotificationSettings{}, nil
	}
	if err != nil {
		return nil, err
	}
	var settings pollers.NotificationSettings
	if err = json.Unmarshal(meta.Value, &settings); err != nil {
		return nil, commonerrors.NewInternalError(err.Error())
	}
	return &settings, nil
}

func (h *Handler) updateDriftSettings(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	err := h.authority.RequirePermission(ctx, c.GetString(common.UserId),
		common.PermDriftManage)
	if err != nil {
		return nil, err
	}
	var settings pollers.NotificationSettings
	if err = c.ShouldBindJSON(&settings); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if settings.Enabled && len(settings.Recipients) == 0 {
		return nil, commonerrors.NewBadRequest("enabled notifications need at least one recipient")
	}
	err = h.store.SetMetadata(ctx, common.MetaNotificationSettings,
		json.MarshalSilently(&settings))
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (h *Handler) getHealthStatus(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireDriftView(c); err != nil {
		return nil, err
	}
	meta, err := h.store.GetMetadata(ctx, common.MetaHealthStatus)
	if commonerrors.IsNotFound(err) {
		return []pollers.HealthStatus{}, nil
	}
	if err != nil {
		return nil, err
	}
	return meta.Value, nil
}
