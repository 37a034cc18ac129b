/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// ListJobs lists jobs. Users without jobs.view only see their own.
// GET /api/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	handle(c, h.listJobs)
}

// GetJob returns one job including its output.
// GET /api/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	handle(c, h.getJob)
}

// RerunJob dispatches a fresh job with the original invocation.
// POST /api/jobs/:id/rerun
func (h *Handler) RerunJob(c *gin.Context) {
	handle(c, h.rerunJob)
}

// CancelJob terminates a running job.
// POST /api/jobs/:id/cancel
func (h *Handler) CancelJob(c *gin.Context) {
	handle(c, h.cancelJob)
}

func (h *Handler) listJobs(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	filter := &dbclient.JobFilter{
		Service:     c.Query("service"),
		Status:      c.Query("status"),
		ParentJobId: c.Query("parent_job_id"),
		UserId:      c.Query("user_id"),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid since timestamp: %v", err))
		}
		filter.Since = since
	}

	userId := c.GetString(common.UserId)
	canViewAll, err := h.authority.HasPermission(ctx, userId, common.PermJobsView)
	if err != nil {
		return nil, err
	}
	if !canViewAll {
		filter.UserId = userId
	}

	limit, offset := parsePagination(c)
	total, err := h.store.CountJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	jobs, err := h.store.SelectJobs(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: total, Items: jobs}, nil
}

func (h *Handler) getJob(c *gin.Context) (interface{}, error) {
	record, err := h.loadVisibleJob(c)
	if err != nil {
		return nil, err
	}
	// prefer the live job's buffered output over the last flush
	if live := h.runner.GetLiveJob(record.Id); live != nil {
		record.Output = live.Output()
		record.Status = live.Status()
	}
	return record, nil
}

// loadVisibleJob fetches the job and enforces owner-or-viewer access.
func (h *Handler) loadVisibleJob(c *gin.Context) (*model.JobRecord, error) {
	ctx := c.Request.Context()
	record, err := h.store.GetJob(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	userId := c.GetString(common.UserId)
	if record.UserId.Valid && record.UserId.String == userId {
		return record, nil
	}
	if err = h.authority.RequirePermission(ctx, userId, common.PermJobsView); err != nil {
		return nil, err
	}
	return record, nil
}

func (h *Handler) rerunJob(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	record, err := h.store.GetJob(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	if err = h.checkJobPermission(c, record); err != nil {
		return nil, err
	}
	job, err := h.runner.Rerun(ctx, record.Id, caller(c))
	if err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.Id, "status": job.Status()}, nil
}

// checkJobPermission requires the permission class of the job's original
// invocation, so a rerun needs exactly what the first run needed.
func (h *Handler) checkJobPermission(c *gin.Context, record *model.JobRecord) error {
	ctx := c.Request.Context()
	userId := c.GetString(common.UserId)
	switch record.Action {
	case common.ActionStopHost:
		return h.authority.RequirePermission(ctx, userId, common.PermInstancesStop)
	case common.ActionRefresh:
		return h.authority.RequirePermission(ctx, userId, common.PermInstancesRefresh)
	case common.ActionBulkDeploy:
		return h.authority.RequirePermission(ctx, userId, common.PermServicesDeploy)
	case common.ActionBulkStop:
		return h.authority.RequirePermission(ctx, userId, common.PermServicesStop)
	}
	perm, codename := h.scriptPermission(record.Service, record.Script)
	return h.authority.CheckServicePermission(ctx, userId, record.Service, perm, codename)
}

func (h *Handler) cancelJob(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	record, err := h.store.GetJob(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	userId := c.GetString(common.UserId)
	if !(record.UserId.Valid && record.UserId.String == userId) {
		if err = h.authority.RequirePermission(ctx, userId, common.PermJobsManage); err != nil {
			return nil, err
		}
	}
	if err = h.runner.Cancel(ctx, record.Id); err != nil {
		return nil, err
	}
	// the job settles as cancelled once its process exits
	status := common.JobCancelled
	if live := h.runner.GetLiveJob(record.Id); live != nil {
		status = live.Status()
	}
	return gin.H{"jobId": record.Id, "status": status}, nil
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// JobOutputWS streams job output over a websocket: the backlog first, then
// live lines until the job finishes or the client hangs up.
// GET /api/jobs/:id/output/ws
func (h *Handler) JobOutputWS(c *gin.Context) {
	record, err := h.loadVisibleJob(c)
	if err != nil {
		AbortWithApiError(c, err)
		return
	}
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		klog.ErrorS(err, "websocket upgrade failed", "job", record.Id)
		return
	}
	defer conn.Close()

	live := h.runner.GetLiveJob(record.Id)
	if live == nil {
		// already terminal: replay the stored output and close
		for _, line := range record.Output {
			if conn.WriteMessage(websocket.TextMessage, []byte(line)) != nil {
				return
			}
		}
		return
	}

	lines, unsubscribe := live.Subscribe()
	defer unsubscribe()
	for _, line := range live.Output() {
		if conn.WriteMessage(websocket.TextMessage, []byte(line)) != nil {
			return
		}
	}
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			if conn.WriteMessage(websocket.TextMessage, []byte(line)) != nil {
				return
			}
		case <-live.Done():
			for {
				select {
				case line, ok := <-lines:
					if !ok {
						return
					}
					if conn.WriteMessage(websocket.TextMessage, []byte(line)) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}
