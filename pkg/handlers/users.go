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
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// ListUsers lists users.
// GET /api/users
func (h *Handler) ListUsers(c *gin.Context) {
	handle(c, h.listUsers)
}

// GetUser returns one user with its role ids.
// GET /api/users/:id
func (h *Handler) GetUser(c *gin.Context) {
	handle(c, h.getUser)
}

// CreateUser creates a user with an optional initial role set.
// POST /api/users
func (h *Handler) CreateUser(c *gin.Context) {
	handle(c, h.createUser)
}

// UpdateUser updates profile fields, password and roles.
// PUT /api/users/:id
func (h *Handler) UpdateUser(c *gin.Context) {
	handle(c, h.updateUser)
}

// DeleteUser deactivates a user. Rows are kept so audit and job history
// stay attributable.
// DELETE /api/users/:id
func (h *Handler) DeleteUser(c *gin.Context) {
	handle(c, h.deleteUser)
}

func (h *Handler) requireUsersManage(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermUsersManage)
}

func (h *Handler) listUsers(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireUsersManage(c); err != nil {
		return nil, err
	}
	var query sqrl.Sqlizer
	if search := c.Query("search"); search != "" {
		query = sqrl.Like{"username": "%" + search + "%"}
	}
	limit, offset := parsePagination(c)
	total, err := h.store.CountUsers(ctx, query)
	if err != nil {
		return nil, err
	}
	users, err := h.store.SelectUsers(ctx, query, []string{"username ASC"}, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: total, Items: users}, nil
}

func (h *Handler) getUser(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireUsersManage(c); err != nil {
		return nil, err
	}
	user, err := h.store.GetUser(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	roleIds, err := h.store.GetUserRoleIds(ctx, user.Id)
	if err != nil {
		return nil, err
	}
	return gin.H{"user": user, "roleIds": roleIds}, nil
}

type createUserRequest struct {
	Username    string   `json:"username" binding:"required"`
	Password    string   `json:"password" binding:"required"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	RoleIds     []string `json:"roleIds"`
}

func (h *Handler) createUser(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireUsersManage(c); err != nil {
		return nil, err
	}
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if _, err := h.store.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, commonerrors.NewAlreadyExist(
			fmt.Sprintf("The user %s already exists", req.Username))
	} else if !commonerrors.IsNotFound(err) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, commonerrors.NewInternalError(err.Error())
	}
	user := &model.User{
		Id:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	err = h.store.WithTx(ctx, func(tx *dbclient.Client) error {
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		if len(req.RoleIds) > 0 {
			return tx.SetUserRoles(ctx, user.Id, req.RoleIds)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

type updateUserRequest struct {
	Email        *string   `json:"email"`
	DisplayName  *string   `json:"displayName"`
	Password     *string   `json:"password"`
	IsActive     *bool     `json:"isActive"`
	SshPublicKey *string   `json:"sshPublicKey"`
	RoleIds      *[]string `json:"roleIds"`
}

func (h *Handler) updateUser(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireUsersManage(c); err != nil {
		return nil, err
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	user, err := h.store.GetUser(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.SshPublicKey != nil {
		user.SshPublicKey = *req.SshPublicKey
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, commonerrors.NewInternalError(err.Error())
		}
		user.PasswordHash = string(hash)
	}
	err = h.store.WithTx(ctx, func(tx *dbclient.Client) error {
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		if req.RoleIds != nil {
			return tx.SetUserRoles(ctx, user.Id, *req.RoleIds)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// role or activation changes take effect on the next permission check
	h.authority.InvalidateUser(user.Id)
	return user, nil
}

func (h *Handler) deleteUser(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireUsersManage(c); err != nil {
		return nil, err
	}
	userId := c.Param(common.Id)
	if userId == c.GetString(common.UserId) {
		return nil, commonerrors.NewConflict("You cannot delete your own account")
	}
	user, err := h.store.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	if err = h.store.SetUserActive(ctx, user.Id, false); err != nil {
		return nil, err
	}
	h.authority.InvalidateUser(user.Id)
	return gin.H{"id": user.Id, "isActive": false}, nil
}
