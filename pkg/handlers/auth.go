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
	"golang.org/x/crypto/bcrypt"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/authority"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// AuthStatus reports whether initial setup has been completed.
// GET /api/auth/status
func (h *Handler) AuthStatus(c *gin.Context) {
	handle(c, h.authStatus)
}

// AuthSetup creates the first super-admin account. Only valid while no user
// exists.
// POST /api/auth/setup
func (h *Handler) AuthSetup(c *gin.Context) {
	handle(c, h.authSetup)
}

// Login verifies credentials and issues a session token.
// POST /api/auth/login
func (h *Handler) Login(c *gin.Context) {
	handle(c, h.login)
}

// Logout clears the session cookie.
// POST /api/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	handle(c, h.logout)
}

// Me returns the authenticated user with its roles and permissions.
// GET /api/auth/me
func (h *Handler) Me(c *gin.Context) {
	handle(c, h.me)
}

func (h *Handler) authStatus(c *gin.Context) (interface{}, error) {
	count, err := h.store.CountUsers(c.Request.Context(), nil)
	if err != nil {
		return nil, err
	}
	return gin.H{"setupComplete": count > 0}, nil
}

type setupRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (h *Handler) authSetup(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	count, err := h.store.CountUsers(ctx, nil)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, commonerrors.NewForbidden("Setup has already been completed")
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
		role, err := tx.GetRoleByName(ctx, common.SuperAdminRole)
		if commonerrors.IsNotFound(err) {
			role = &model.Role{
				Id:          uuid.NewString(),
				Name:        common.SuperAdminRole,
				Description: "Unrestricted access to everything",
				IsSystem:    true,
			}
			if err = tx.InsertRole(ctx, role); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		return tx.SetUserRoles(ctx, user.Id, []string{role.Id})
	})
	if err != nil {
		return nil, err
	}
	klog.Infof("initial setup completed, super-admin %s created", user.Username)
	return user, nil
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	user, err := h.store.GetUserByUsername(ctx, req.Username)
	if commonerrors.IsNotFound(err) {
		return nil, commonerrors.NewUnauthorized("Invalid username or password")
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, commonerrors.NewForbidden(
			fmt.Sprintf("The user %s is deactivated", user.Username))
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return nil, commonerrors.NewUnauthorized("Invalid username or password")
	}

	expireSeconds := commonconfig.GetUserTokenExpire()
	token, err := h.authority.GenerateToken(ctx, authority.TokenItem{
		UserId: user.Id,
		Expire: time.Now().Add(time.Duration(expireSeconds) * time.Second).Unix(),
	})
	if err != nil {
		return nil, err
	}
	c.SetCookie(authority.CookieToken, token, expireSeconds, "/", "", false, true)
	return gin.H{"token": token, "user": user}, nil
}

func (h *Handler) logout(c *gin.Context) (interface{}, error) {
	c.SetCookie(authority.CookieToken, "", -1, "/", "", false, true)
	return gin.H{"loggedOut": true}, nil
}

func (h *Handler) me(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	userId := c.GetString(common.UserId)
	user, err := h.store.GetUser(ctx, userId)
	if err != nil {
		return nil, err
	}
	roleNames, err := h.store.GetUserRoleNames(ctx, userId)
	if err != nil {
		return nil, err
	}
	set, err := h.authority.GetPermissionSet(ctx, userId)
	if err != nil {
		return nil, err
	}
	rsp := gin.H{"user": user, "roles": roleNames}
	if set.Wildcard {
		rsp["permissions"] = []string{common.WildcardPermission}
	} else {
		rsp["permissions"] = set.Codenames.UnsortedList()
	}
	return rsp, nil
}
