/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuditStore struct {
	entries []*model.AuditLog
	err     error
}

func (f *fakeAuditStore) InsertAuditLog(_ context.Context, entry *model.AuditLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditStore) SelectAuditLogs(context.Context, sqrl.Sqlizer, int, int) ([]*model.AuditLog, error) {
	return f.entries, nil
}

func (f *fakeAuditStore) CountAuditLogs(context.Context, sqrl.Sqlizer) (int, error) {
	return len(f.entries), nil
}

func (f *fakeAuditStore) DistinctAuditActions(context.Context) ([]string, error) {
	return nil, nil
}

func newAuditEngine(store *fakeAuditStore) *gin.Engine {
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(common.UserId, "user-1")
		c.Set(common.UserName, "alice")
	})
	engine.Use(Audit(store))
	engine.POST("/api/things", func(c *gin.Context) {
		// the handler still sees the full body after the middleware read it
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{"received": len(body)})
	})
	engine.POST("/api/broken", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"errorMessage": "nope"})
	})
	engine.GET("/api/things", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})
	return engine
}

func TestAuditRecordsMutatingRequest(t *testing.T) {
	store := &fakeAuditStore{}
	engine := newAuditEngine(store)

	body := `{"name":"web","password":"hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/api/things", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, "POST /api/things", entry.Action)
	assert.Equal(t, "/api/things", entry.Resource)
	assert.Equal(t, "alice", entry.Username)
	assert.Equal(t, "user-1", entry.UserId.String)
	assert.Contains(t, string(entry.Details), `"[REDACTED]"`)
	assert.NotContains(t, string(entry.Details), "hunter2")
	assert.Contains(t, rec.Body.String(), `"received":35`)
}

func TestAuditSkipsReadsAndFailures(t *testing.T) {
	store := &fakeAuditStore{}
	engine := newAuditEngine(store)

	req := httptest.NewRequest(http.MethodGet, "/api/things", nil)
	engine.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, store.entries)

	req = httptest.NewRequest(http.MethodPost, "/api/broken", bytes.NewBufferString(`{}`))
	engine.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, store.entries)
}

func TestSanitizeBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "redacts password",
			in:   `{"user":"bob","password":"s3cret"}`,
			want: `{"user":"bob","password":"[REDACTED]"}`,
		},
		{
			name: "redacts api key variants",
			in:   `{"apiKey":"a","api_key":"b"}`,
			want: `{"apiKey":"[REDACTED]","api_key":"[REDACTED]"}`,
		},
		{
			name: "wraps non-json as a string",
			in:   `plain text`,
			want: `"plain text"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(sanitizeBody([]byte(tt.in))))
		})
	}
	assert.Nil(t, sanitizeBody(nil))
}

func TestCors(t *testing.T) {
	engine := gin.New()
	engine.Use(Cors([]string{"https://portal.example.com"}))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
