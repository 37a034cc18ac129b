/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/services"
)

// ListServices lists the catalog entries the user may view.
// GET /api/services
func (h *Handler) ListServices(c *gin.Context) {
	handle(c, h.listServices)
}

// GetService returns one service definition.
// GET /api/services/:name
func (h *Handler) GetService(c *gin.Context) {
	handle(c, h.getService)
}

// GetServiceOutputs returns the portal outputs of a service with credential
// entries filtered by the caller's credential access rules.
// GET /api/services/:name/outputs
func (h *Handler) GetServiceOutputs(c *gin.Context) {
	handle(c, h.getServiceOutputs)
}

// DeployService dispatches the deploy script.
// POST /api/services/:name/deploy
func (h *Handler) DeployService(c *gin.Context) {
	handle(c, h.deployService)
}

// StopService dispatches the stop script.
// POST /api/services/:name/stop
func (h *Handler) StopService(c *gin.Context) {
	handle(c, h.stopService)
}

// RunServiceScript dispatches a named script.
// POST /api/services/:name/run
func (h *Handler) RunServiceScript(c *gin.Context) {
	handle(c, h.runServiceScript)
}

// BulkDeploy deploys several services under one parent job.
// POST /api/services/actions/bulk-deploy
func (h *Handler) BulkDeploy(c *gin.Context) {
	handle(c, h.bulkDeploy)
}

// BulkStop stops several services under one parent job.
// POST /api/services/actions/bulk-stop
func (h *Handler) BulkStop(c *gin.Context) {
	handle(c, h.bulkStop)
}

// ReloadCatalog rescans the services directory.
// POST /api/services/actions/reload
func (h *Handler) ReloadCatalog(c *gin.Context) {
	handle(c, h.reloadCatalog)
}

// serviceView is the list/get representation of a catalog entry. Script
// commands and env stay server-side.
type serviceView struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Scripts     []string               `json:"scripts"`
	Personal    *services.PersonalSpec `json:"personal,omitempty"`
	ConfigHash  string                 `json:"configHash"`
}

func newServiceView(def *services.Definition) *serviceView {
	names := make([]string, 0, len(def.Scripts))
	for name := range def.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return &serviceView{
		Name:        def.Name,
		Description: def.Description,
		Scripts:     names,
		Personal:    def.Personal,
		ConfigHash:  def.ConfigHash,
	}
}

func (h *Handler) listServices(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	userId := c.GetString(common.UserId)
	defs := h.catalog.List()
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })

	items := make([]*serviceView, 0, len(defs))
	for _, def := range defs {
		err := h.authority.CheckServicePermission(ctx, userId, def.Name,
			common.AclView, common.PermServicesView)
		if commonerrors.IsForbidden(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, newServiceView(def))
	}
	return &ListResponse{Total: len(items), Items: items}, nil
}

func (h *Handler) getService(c *gin.Context) (interface{}, error) {
	def, err := h.catalog.Get(c.Param(common.Name))
	if err != nil {
		return nil, err
	}
	err = h.authority.CheckServicePermission(c.Request.Context(), c.GetString(common.UserId),
		def.Name, common.AclView, common.PermServicesView)
	if err != nil {
		return nil, err
	}
	return newServiceView(def), nil
}

// outputView exposes a portal output to an authorized viewer. Password is
// hidden on the model's own JSON shape, so allowed credentials get an
// explicit field here.
type outputView struct {
	*services.PortalOutput
	Password string `json:"password,omitempty"`
}

func (h *Handler) getServiceOutputs(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	userId := c.GetString(common.UserId)
	username := c.GetString(common.UserName)
	def, err := h.catalog.Get(c.Param(common.Name))
	if err != nil {
		return nil, err
	}
	err = h.authority.CheckServicePermission(ctx, userId, def.Name,
		common.AclView, common.PermServicesView)
	if err != nil {
		return nil, err
	}

	items := make([]*outputView, 0, len(def.Outputs))
	for _, out := range def.Outputs {
		if out.Kind != services.OutputKindCredential {
			items = append(items, &outputView{PortalOutput: out})
			continue
		}
		allowed, err := h.authority.CanViewCredential(ctx, userId, username,
			out.CredentialType, def.Name, out.Hostname, out.Tags)
		if err != nil {
			return nil, err
		}
		if !allowed {
			continue
		}
		items = append(items, &outputView{PortalOutput: out, Password: out.Password})
	}
	return &ListResponse{Total: len(items), Items: items}, nil
}

type runRequest struct {
	Script string            `json:"script"`
	Inputs map[string]string `json:"inputs"`
}

func (h *Handler) deployService(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	name := c.Param(common.Name)
	var req runRequest
	_ = c.ShouldBindJSON(&req) // body optional, inputs only
	err := h.authority.CheckServicePermission(ctx, c.GetString(common.UserId),
		name, common.AclDeploy, common.PermServicesDeploy)
	if err != nil {
		return nil, err
	}
	job, err := h.runner.Deploy(ctx, name, caller(c), req.Inputs)
	if err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.Id, "status": job.Status()}, nil
}

func (h *Handler) stopService(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	name := c.Param(common.Name)
	err := h.authority.CheckServicePermission(ctx, c.GetString(common.UserId),
		name, common.AclStop, common.PermServicesStop)
	if err != nil {
		return nil, err
	}
	job, err := h.runner.Stop(ctx, name, caller(c))
	if err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.Id, "status": job.Status()}, nil
}

func (h *Handler) runServiceScript(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	name := c.Param(common.Name)
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if req.Script == "" {
		return nil, commonerrors.NewBadRequest("script is required")
	}
	perm, codename := h.scriptPermission(name, req.Script)
	err := h.authority.CheckServicePermission(ctx, c.GetString(common.UserId),
		name, perm, codename)
	if err != nil {
		return nil, err
	}
	job, err := h.runner.RunScript(ctx, name, req.Script, req.Inputs, caller(c))
	if err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.Id, "status": job.Status()}, nil
}

// scriptPermission maps a script to the service permission guarding it:
// stop-class scripts need stop, everything else needs deploy.
func (h *Handler) scriptPermission(serviceName, script string) (perm, codename string) {
	class := common.AclDeploy
	if def, err := h.catalog.Get(serviceName); err == nil {
		class = def.ScriptClass(script)
	}
	if class == common.AclStop {
		return common.AclStop, common.PermServicesStop
	}
	return common.AclDeploy, common.PermServicesDeploy
}

type bulkRequest struct {
	ServiceNames []string `json:"service_names" binding:"required"`
}

func (h *Handler) bulkDeploy(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	err := h.authority.RequirePermission(ctx, c.GetString(common.UserId), common.PermServicesDeploy)
	if err != nil {
		return nil, err
	}
	return h.runner.BulkDeploy(ctx, req.ServiceNames, caller(c))
}

func (h *Handler) bulkStop(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	err := h.authority.RequirePermission(ctx, c.GetString(common.UserId), common.PermServicesStop)
	if err != nil {
		return nil, err
	}
	return h.runner.BulkStop(ctx, req.ServiceNames, caller(c))
}

func (h *Handler) reloadCatalog(c *gin.Context) (interface{}, error) {
	err := h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermServicesManage)
	if err != nil {
		return nil, err
	}
	if err = h.catalog.Reload(); err != nil {
		return nil, commonerrors.NewInternalError(err.Error())
	}
	return gin.H{"services": len(h.catalog.Names())}, nil
}
