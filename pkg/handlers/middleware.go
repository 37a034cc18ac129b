/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/slice"
)

// maxAuditBodySize caps the request body captured into audit details (8KB).
const maxAuditBodySize = 8192

var sensitiveFieldPatterns = []*regexp.Regexp{
	regexp.MustCompile(`("password"\s*:\s*)"[^"]*"`),
	regexp.MustCompile(`("token"\s*:\s*)"[^"]*"`),
	regexp.MustCompile(`("secret"\s*:\s*)"[^"]*"`),
	regexp.MustCompile(`("apiKey"\s*:\s*)"[^"]*"`),
	regexp.MustCompile(`("api_key"\s*:\s*)"[^"]*"`),
}

// Cors allows the configured origins. Requests from other origins get no CORS
// headers and fail in the browser; non-browser clients are unaffected.
func Cors(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slice.ContainsString(origins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Audit records one audit_log row for every successful mutating request.
// Reads are never audited; failed requests leave no trace beyond the
// application log.
func Audit(store dbclient.AuditInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isWriteOperation(c.Request.Method) {
			c.Next()
			return
		}
		body := captureBody(c)
		c.Next()
		if c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		entry := &model.AuditLog{
			UserId:    dbNullString(c.GetString(common.UserId)),
			Username:  c.GetString(common.UserName),
			Action:    c.Request.Method + " " + c.FullPath(),
			Resource:  c.Request.URL.Path,
			Details:   sanitizeBody(body),
			IpAddress: c.ClientIP(),
			CreatedAt: time.Now().UTC(),
		}
		if err := store.InsertAuditLog(c.Request.Context(), entry); err != nil {
			klog.ErrorS(err, "failed to write audit log", "action", entry.Action)
		}
	}
}

func isWriteOperation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// captureBody reads the request body for the audit trail and restores it for
// the handler.
func captureBody(c *gin.Context) []byte {
	if c.Request.Body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBodySize+1))
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), c.Request.Body))
	if len(data) > maxAuditBodySize {
		data = data[:maxAuditBodySize]
	}
	return data
}

// sanitizeBody redacts credentials and guarantees the result is valid JSON;
// truncated or non-JSON bodies are stored as a quoted string.
func sanitizeBody(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	for _, pattern := range sensitiveFieldPatterns {
		body = pattern.ReplaceAll(body, []byte(`$1"[REDACTED]"`))
	}
	if !json.Valid(body) {
		quoted, err := json.Marshal(string(body))
		if err != nil {
			return nil
		}
		return quoted
	}
	return body
}

func dbNullString(val string) sql.NullString {
	return sql.NullString{String: val, Valid: val != ""}
}
