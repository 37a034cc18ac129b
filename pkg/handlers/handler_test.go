/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

func serve(fn handleFunc) *httptest.ResponseRecorder {
	engine := gin.New()
	engine.GET("/t", func(c *gin.Context) { handle(c, fn) })
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t", nil))
	return rec
}

func TestHandleRendersResponse(t *testing.T) {
	rec := serve(func(*gin.Context) (interface{}, error) {
		return gin.H{"ok": true}, nil
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = serve(func(*gin.Context) (interface{}, error) {
		return []byte(`{"raw":1}`), nil
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"raw":1}`, rec.Body.String())
}

func TestHandleMapsErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:     "not found",
			err:      commonerrors.NewNotFound("Job", "j1"),
			wantCode: http.StatusNotFound,
			wantErr:  commonerrors.JobNotFound,
		},
		{
			name:     "forbidden",
			err:      commonerrors.NewForbidden("no"),
			wantCode: http.StatusForbidden,
			wantErr:  commonerrors.Forbidden,
		},
		{
			name:     "bad request",
			err:      commonerrors.NewBadRequest("bad"),
			wantCode: http.StatusBadRequest,
			wantErr:  commonerrors.BadRequest,
		},
		{
			name:     "plain errors become internal",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
			wantErr:  commonerrors.InternalError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(func(*gin.Context) (interface{}, error) {
				return nil, tt.err
			})
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
		})
	}
}

func TestHandleApiErrorPassthrough(t *testing.T) {
	rec := serve(func(*gin.Context) (interface{}, error) {
		return nil, &ApiError{
			HttpCode:     http.StatusTeapot,
			ErrorCode:    "CloudLab.99999",
			ErrorMessage: "odd",
		}
	})
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.JSONEq(t, `{"errorCode":"CloudLab.99999","errorMessage":"odd"}`, rec.Body.String())
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: "", wantLimit: defaultPageSize, wantOffset: 0},
		{name: "explicit", query: "?limit=10&offset=30", wantLimit: 10, wantOffset: 30},
		{name: "capped", query: "?limit=100000", wantLimit: maxPageSize, wantOffset: 0},
		{name: "garbage ignored", query: "?limit=x&offset=-2", wantLimit: defaultPageSize, wantOffset: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/t"+tt.query, nil)
			limit, offset := parsePagination(c)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
