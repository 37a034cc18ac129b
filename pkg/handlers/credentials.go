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

// ListCredentialRules lists all credential access rules.
// GET /api/credentials/rules
func (h *Handler) ListCredentialRules(c *gin.Context) {
	handle(c, h.listCredentialRules)
}

// CreateCredentialRule grants a role access to a class of credentials.
// POST /api/credentials/rules
func (h *Handler) CreateCredentialRule(c *gin.Context) {
	handle(c, h.createCredentialRule)
}

// DeleteCredentialRule removes a credential access rule.
// DELETE /api/credentials/rules/:id
func (h *Handler) DeleteCredentialRule(c *gin.Context) {
	handle(c, h.deleteCredentialRule)
}

func (h *Handler) requireCredentialsManage(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermCredentialsManage)
}

func (h *Handler) listCredentialRules(c *gin.Context) (interface{}, error) {
	if err := h.requireCredentialsManage(c); err != nil {
		return nil, err
	}
	rules, err := h.store.SelectCredentialRules(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(rules), Items: rules}, nil
}

type credentialRuleRequest struct {
	RoleId             string `json:"roleId" binding:"required"`
	CredentialType     string `json:"credentialType"`
	ScopeType          string `json:"scopeType" binding:"required"`
	ScopeValue         string `json:"scopeValue"`
	RequirePersonalKey bool   `json:"requirePersonalKey"`
}

func (h *Handler) createCredentialRule(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireCredentialsManage(c); err != nil {
		return nil, err
	}
	var req credentialRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	switch req.ScopeType {
	case common.ScopeAll:
	case common.ScopeInstance, common.ScopeService, common.ScopeTag:
		if req.ScopeValue == "" {
			return nil, commonerrors.NewBadRequest(
				fmt.Sprintf("scopeValue is required for scope %s", req.ScopeType))
		}
	default:
		return nil, commonerrors.NewBadRequest(
			fmt.Sprintf("unknown scopeType %s", req.ScopeType))
	}
	if _, err := h.store.GetRole(ctx, req.RoleId); err != nil {
		return nil, err
	}
	rule := &model.CredentialAccessRule{
		Id:                 uuid.NewString(),
		RoleId:             req.RoleId,
		CredentialType:     req.CredentialType,
		ScopeType:          req.ScopeType,
		ScopeValue:         req.ScopeValue,
		RequirePersonalKey: req.RequirePersonalKey,
	}
	if err := h.store.InsertCredentialRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (h *Handler) deleteCredentialRule(c *gin.Context) (interface{}, error) {
	if err := h.requireCredentialsManage(c); err != nil {
		return nil, err
	}
	ruleId := c.Param(common.Id)
	if err := h.store.DeleteCredentialRule(c.Request.Context(), ruleId); err != nil {
		return nil, err
	}
	return gin.H{"id": ruleId}, nil
}
