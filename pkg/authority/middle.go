/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package authority

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

const (
	CookieToken  = "cloudlab_token"
	BearerPrefix = "Bearer "
)

// Middleware authenticates every request: a bearer header first, the session
// cookie as fallback. On success the user id and username land in the gin
// context for handlers downstream.
func (a *Authority) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.parseRequest(c); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (a *Authority) parseRequest(c *gin.Context) error {
	tokenStr := extractToken(c)
	if tokenStr == "" {
		return commonerrors.NewUnauthorized(InvalidToken)
	}
	token, err := a.ValidateToken(c.Request.Context(), tokenStr)
	if err != nil {
		return commonerrors.NewUnauthorized(err.Error())
	}
	user, err := a.store.GetUser(c.Request.Context(), token.UserId)
	if err != nil {
		return commonerrors.NewUnauthorized(InvalidToken)
	}
	if !user.IsActive {
		return commonerrors.NewForbidden(
			fmt.Sprintf("The user %s is deactivated", user.Username))
	}
	c.Set(common.UserId, user.Id)
	c.Set(common.UserName, user.Username)
	return nil
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, BearerPrefix) {
		return strings.TrimPrefix(header, BearerPrefix)
	}
	token, err := c.Cookie(CookieToken)
	if err != nil {
		return ""
	}
	return token
}

func abortWithError(c *gin.Context, err error) {
	code := http.StatusUnauthorized
	if status, ok := err.(apierrors.APIStatus); ok && status.Status().Code > 0 {
		code = int(status.Status().Code)
	}
	c.AbortWithStatusJSON(code, gin.H{
		"errorCode":    commonerrors.GetErrorCode(err),
		"errorMessage": err.Error(),
	})
}
