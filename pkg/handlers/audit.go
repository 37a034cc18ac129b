/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// ListAuditLogs lists audit entries with optional action/username/since
// filters.
// GET /api/audit
func (h *Handler) ListAuditLogs(c *gin.Context) {
	handle(c, h.listAuditLogs)
}

// ListAuditActions returns the distinct recorded actions for filter
// dropdowns.
// GET /api/audit/actions
func (h *Handler) ListAuditActions(c *gin.Context) {
	handle(c, h.listAuditActions)
}

// ListCredentialDenials lists denied credential reveal attempts.
// GET /api/credentials/audit
func (h *Handler) ListCredentialDenials(c *gin.Context) {
	handle(c, h.listCredentialDenials)
}

func (h *Handler) requireAuditView(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermAuditView)
}

func (h *Handler) listAuditLogs(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireAuditView(c); err != nil {
		return nil, err
	}
	conditions := sqrl.And{}
	if action := c.Query("action"); action != "" {
		conditions = append(conditions, sqrl.Eq{"action": action})
	}
	if username := c.Query("username"); username != "" {
		conditions = append(conditions, sqrl.Eq{"username": username})
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid since timestamp: %v", err))
		}
		conditions = append(conditions, sqrl.GtOrEq{"created_at": since})
	}
	var query sqrl.Sqlizer
	if len(conditions) > 0 {
		query = conditions
	}
	limit, offset := parsePagination(c)
	total, err := h.store.CountAuditLogs(ctx, query)
	if err != nil {
		return nil, err
	}
	entries, err := h.store.SelectAuditLogs(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: total, Items: entries}, nil
}

func (h *Handler) listAuditActions(c *gin.Context) (interface{}, error) {
	if err := h.requireAuditView(c); err != nil {
		return nil, err
	}
	actions, err := h.store.DistinctAuditActions(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return actions, nil
}

func (h *Handler) listCredentialDenials(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireAuditView(c); err != nil {
		return nil, err
	}
	query := sqrl.Eq{"action": "credential.access_denied"}
	limit, offset := parsePagination(c)
	total, err := h.store.CountAuditLogs(ctx, query)
	if err != nil {
		return nil, err
	}
	entries, err := h.store.SelectAuditLogs(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: total, Items: entries}, nil
}
