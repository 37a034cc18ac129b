/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/authority"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/blueprint"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/runner"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/services"
)

// Handler carries the shared collaborators every route needs.
type Handler struct {
	store     dbclient.Interface
	runner    *runner.Runner
	catalog   *services.Catalog
	authority *authority.Authority
	deployer  *blueprint.Orchestrator
}

func NewHandler(store dbclient.Interface, r *runner.Runner, catalog *services.Catalog,
	auth *authority.Authority, deployer *blueprint.Orchestrator) *Handler {
	return &Handler{
		store:     store,
		runner:    r,
		catalog:   catalog,
		authority: auth,
		deployer:  deployer,
	}
}

type handleFunc func(*gin.Context) (interface{}, error)

// handle executes the handler function and renders the response or error.
func handle(c *gin.Context, fn handleFunc) {
	response, err := fn(c)
	if err != nil {
		AbortWithApiError(c, err)
		return
	}
	code := http.StatusOK
	if c.Writer.Status() > 0 {
		code = c.Writer.Status()
	}
	switch responseType := response.(type) {
	case nil:
		c.Status(code)
	case []byte:
		c.Data(code, "application/json", responseType)
	case string:
		c.Data(code, "application/json", []byte(responseType))
	default:
		c.JSON(code, responseType)
	}
}

// ApiError is the unified error response: HTTP code, error code, message.
type ApiError struct {
	HttpCode     int    `json:"-"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (err *ApiError) Error() string {
	return err.ErrorMessage
}

// AbortWithApiError converts any error into the standardized response shape
// and aborts the request.
func AbortWithApiError(c *gin.Context, err error) {
	_ = c.Error(err)
	rsp := convertToErrResponse(err)
	c.AbortWithStatusJSON(rsp.HttpCode, rsp)
}

func convertToErrResponse(err error) ApiError {
	var result *ApiError
	if errors.As(err, &result) {
		return *result
	}
	var status *apierrors.StatusError
	if !errors.As(err, &status) {
		status = commonerrors.NewInternalError(err.Error())
	}
	return ApiError{
		HttpCode:     int(status.Status().Code),
		ErrorCode:    string(status.Status().Reason),
		ErrorMessage: status.Error(),
	}
}

// ListResponse is the common envelope for paginated collections.
type ListResponse struct {
	Total int         `json:"total"`
	Items interface{} `json:"items"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func parsePagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil && val > 0 {
			limit = val
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := c.Query("offset"); raw != "" {
		if val, err := strconv.Atoi(raw); err == nil && val >= 0 {
			offset = val
		}
	}
	return limit, offset
}

func caller(c *gin.Context) runner.Caller {
	return runner.Caller{
		UserId:   c.GetString(common.UserId),
		Username: c.GetString(common.UserName),
	}
}
