/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"
	"strings"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// ListInventoryTypes lists inventory types.
// GET /api/inventory/types
func (h *Handler) ListInventoryTypes(c *gin.Context) {
	handle(c, h.listInventoryTypes)
}

// GetInventoryType returns one inventory type by slug.
// GET /api/inventory/types/:slug
func (h *Handler) GetInventoryType(c *gin.Context) {
	handle(c, h.getInventoryType)
}

// CreateInventoryType registers a new inventory type.
// POST /api/inventory/types
func (h *Handler) CreateInventoryType(c *gin.Context) {
	handle(c, h.createInventoryType)
}

// UpdateInventoryType updates an inventory type's label, icon and fields.
// PUT /api/inventory/types/:slug
func (h *Handler) UpdateInventoryType(c *gin.Context) {
	handle(c, h.updateInventoryType)
}

// ListInventoryObjects lists objects, optionally filtered by type and search.
// GET /api/inventory/objects
func (h *Handler) ListInventoryObjects(c *gin.Context) {
	handle(c, h.listInventoryObjects)
}

// GetInventoryObject returns one object with its tags.
// GET /api/inventory/objects/:id
func (h *Handler) GetInventoryObject(c *gin.Context) {
	handle(c, h.getInventoryObject)
}

// CreateInventoryObject creates an object.
// POST /api/inventory/objects
func (h *Handler) CreateInventoryObject(c *gin.Context) {
	handle(c, h.createInventoryObject)
}

// UpdateInventoryObject replaces an object's data blob.
// PUT /api/inventory/objects/:id
func (h *Handler) UpdateInventoryObject(c *gin.Context) {
	handle(c, h.updateInventoryObject)
}

// DeleteInventoryObject deletes an object and its tags and ACLs.
// DELETE /api/inventory/objects/:id
func (h *Handler) DeleteInventoryObject(c *gin.Context) {
	handle(c, h.deleteInventoryObject)
}

// RunObjectAction dispatches a service script against an object.
// POST /api/inventory/objects/:id/actions
func (h *Handler) RunObjectAction(c *gin.Context) {
	handle(c, h.runObjectAction)
}

// ListInventoryTags lists all tags.
// GET /api/inventory/tags
func (h *Handler) ListInventoryTags(c *gin.Context) {
	handle(c, h.listInventoryTags)
}

// SetObjectTags replaces the tag set of an object, creating unknown tags.
// PUT /api/inventory/objects/:id/tags
func (h *Handler) SetObjectTags(c *gin.Context) {
	handle(c, h.setObjectTags)
}

// ListObjectACLs lists the per-object rules.
// GET /api/inventory/objects/:id/acls
func (h *Handler) ListObjectACLs(c *gin.Context) {
	handle(c, h.listObjectACLs)
}

// CreateObjectACL adds a per-object rule.
// POST /api/inventory/objects/:id/acls
func (h *Handler) CreateObjectACL(c *gin.Context) {
	handle(c, h.createObjectACL)
}

// DeleteObjectACL removes a per-object rule.
// DELETE /api/inventory/acls/:id
func (h *Handler) DeleteObjectACL(c *gin.Context) {
	handle(c, h.deleteObjectACL)
}

func (h *Handler) requireInventoryManage(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermInventoryManage)
}

func (h *Handler) requireInventoryView(c *gin.Context) error {
	return h.authority.RequirePermission(c.Request.Context(),
		c.GetString(common.UserId), common.PermInventoryView)
}

func (h *Handler) listInventoryTypes(c *gin.Context) (interface{}, error) {
	if err := h.requireInventoryView(c); err != nil {
		return nil, err
	}
	types, err := h.store.SelectInventoryTypes(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(types), Items: types}, nil
}

func (h *Handler) getInventoryType(c *gin.Context) (interface{}, error) {
	if err := h.requireInventoryView(c); err != nil {
		return nil, err
	}
	return h.store.GetInventoryTypeBySlug(c.Request.Context(), c.Param(common.Slug))
}

type inventoryTypeRequest struct {
	Slug   string          `json:"slug" binding:"required"`
	Label  string          `json:"label" binding:"required"`
	Icon   string          `json:"icon"`
	Fields json.RawMessage `json:"fields"`
}

func (h *Handler) createInventoryType(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	var req inventoryTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if _, err := h.store.GetInventoryTypeBySlug(ctx, req.Slug); err == nil {
		return nil, commonerrors.NewAlreadyExist(
			fmt.Sprintf("The inventory type %s already exists", req.Slug))
	} else if !commonerrors.IsNotFound(err) {
		return nil, err
	}
	t := &model.InventoryType{
		Id:     uuid.NewString(),
		Slug:   req.Slug,
		Label:  req.Label,
		Icon:   req.Icon,
		Fields: req.Fields,
	}
	if err := h.store.InsertInventoryType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (h *Handler) updateInventoryType(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	var req inventoryTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	t, err := h.store.GetInventoryTypeBySlug(ctx, c.Param(common.Slug))
	if err != nil {
		return nil, err
	}
	t.Label = req.Label
	t.Icon = req.Icon
	t.Fields = req.Fields
	if err = h.store.UpdateInventoryType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (h *Handler) listInventoryObjects(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireInventoryView(c); err != nil {
		return nil, err
	}
	conditions := sqrl.And{}
	if slug := c.Query("type"); slug != "" {
		t, err := h.store.GetInventoryTypeBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, sqrl.Eq{"type_id": t.Id})
	}
	if search := c.Query("search"); search != "" {
		conditions = append(conditions,
			sqrl.Like{"search_text": "%" + strings.ToLower(search) + "%"})
	}
	var query sqrl.Sqlizer
	if len(conditions) > 0 {
		query = conditions
	}
	limit, offset := parsePagination(c)
	objects, err := h.store.SelectInventoryObjects(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(objects), Items: objects}, nil
}

func (h *Handler) getInventoryObject(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	objectId := c.Param(common.Id)
	err := h.authority.CheckObjectPermission(ctx, c.GetString(common.UserId),
		objectId, common.AclView)
	if err != nil {
		return nil, err
	}
	obj, err := h.store.GetInventoryObject(ctx, objectId)
	if err != nil {
		return nil, err
	}
	tags, err := h.store.GetObjectTagNames(ctx, objectId)
	if err != nil {
		return nil, err
	}
	return gin.H{"object": obj, "tags": tags}, nil
}

type inventoryObjectRequest struct {
	TypeSlug string          `json:"typeSlug"`
	Data     json.RawMessage `json:"data" binding:"required"`
}

func (h *Handler) createInventoryObject(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	var req inventoryObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if req.TypeSlug == "" {
		return nil, commonerrors.NewBadRequest("typeSlug is required")
	}
	t, err := h.store.GetInventoryTypeBySlug(ctx, req.TypeSlug)
	if err != nil {
		return nil, err
	}
	obj := &model.InventoryObject{
		Id:         uuid.NewString(),
		TypeId:     t.Id,
		Data:       req.Data,
		SearchText: searchText(req.Data),
		CreatedAt:  time.Now().UTC(),
	}
	if err = h.store.InsertInventoryObject(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (h *Handler) updateInventoryObject(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	objectId := c.Param(common.Id)
	err := h.authority.CheckObjectPermission(ctx, c.GetString(common.UserId),
		objectId, common.AclEdit)
	if err != nil {
		return nil, err
	}
	var req inventoryObjectRequest
	if err = c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	obj, err := h.store.GetInventoryObject(ctx, objectId)
	if err != nil {
		return nil, err
	}
	obj.Data = req.Data
	obj.SearchText = searchText(req.Data)
	if err = h.store.UpdateInventoryObject(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (h *Handler) deleteInventoryObject(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	objectId := c.Param(common.Id)
	err := h.authority.CheckObjectPermission(ctx, c.GetString(common.UserId),
		objectId, common.AclDelete)
	if err != nil {
		return nil, err
	}
	if err = h.store.DeleteInventoryObject(ctx, objectId); err != nil {
		return nil, err
	}
	return gin.H{"id": objectId}, nil
}

type objectActionRequest struct {
	Action string            `json:"action" binding:"required"`
	Inputs map[string]string `json:"inputs"`
}

// runObjectAction resolves the service recorded on the object and dispatches
// the named script with the object id wired into the inputs, mirroring what
// the scheduler does for inventory_action rows.
func (h *Handler) runObjectAction(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	objectId := c.Param(common.Id)
	var req objectActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	err := h.authority.CheckObjectPermission(ctx, c.GetString(common.UserId),
		objectId, req.Action)
	if err != nil {
		return nil, err
	}
	obj, err := h.store.GetInventoryObject(ctx, objectId)
	if err != nil {
		return nil, err
	}
	var data struct {
		Service  string `json:"service"`
		Hostname string `json:"hostname"`
	}
	if err = json.Unmarshal(obj.Data, &data); err != nil || data.Service == "" {
		return nil, commonerrors.NewBadRequest("the object does not reference a service")
	}
	inputs := map[string]string{"object_id": obj.Id}
	if data.Hostname != "" {
		inputs["hostname"] = data.Hostname
	}
	for k, v := range req.Inputs {
		inputs[k] = v
	}
	job, err := h.runner.RunScript(ctx, data.Service, req.Action, inputs, caller(c))
	if err != nil {
		return nil, err
	}
	return gin.H{"jobId": job.Id, "status": job.Status()}, nil
}

func (h *Handler) listInventoryTags(c *gin.Context) (interface{}, error) {
	if err := h.requireInventoryView(c); err != nil {
		return nil, err
	}
	tags, err := h.store.SelectInventoryTags(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(tags), Items: tags}, nil
}

type setTagsRequest struct {
	Tags []string `json:"tags"`
}

func (h *Handler) setObjectTags(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	objectId := c.Param(common.Id)
	err := h.authority.CheckObjectPermission(ctx, c.GetString(common.UserId),
		objectId, common.AclEdit)
	if err != nil {
		return nil, err
	}
	var req setTagsRequest
	if err = c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if _, err = h.store.GetInventoryObject(ctx, objectId); err != nil {
		return nil, err
	}

	current, err := h.store.GetObjectTagIds(ctx, objectId)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(req.Tags))
	for _, name := range req.Tags {
		tag, err := h.store.GetInventoryTagByName(ctx, name)
		if commonerrors.IsNotFound(err) {
			tag = &model.InventoryTag{Id: uuid.NewString(), Name: name}
			if err = h.store.InsertInventoryTag(ctx, tag); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		wanted[tag.Id] = true
		if err = h.store.TagObject(ctx, objectId, tag.Id); err != nil {
			return nil, err
		}
	}
	for _, tagId := range current {
		if !wanted[tagId] {
			if err = h.store.UntagObject(ctx, objectId, tagId); err != nil {
				return nil, err
			}
		}
	}
	names, err := h.store.GetObjectTagNames(ctx, objectId)
	if err != nil {
		return nil, err
	}
	return gin.H{"objectId": objectId, "tags": names}, nil
}

func (h *Handler) listObjectACLs(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	acls, err := h.store.SelectObjectACLs(ctx, c.Param(common.Id))
	if err != nil {
		return nil, err
	}
	return &ListResponse{Total: len(acls), Items: acls}, nil
}

type objectACLRequest struct {
	RoleId     string `json:"roleId" binding:"required"`
	Permission string `json:"permission" binding:"required"`
	Effect     string `json:"effect"`
}

func (h *Handler) createObjectACL(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	var req objectACLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	if req.Effect == "" {
		req.Effect = common.EffectAllow
	}
	if req.Effect != common.EffectAllow && req.Effect != common.EffectDeny {
		return nil, commonerrors.NewBadRequest(fmt.Sprintf("unknown effect %s", req.Effect))
	}
	objectId := c.Param(common.Id)
	if _, err := h.store.GetInventoryObject(ctx, objectId); err != nil {
		return nil, err
	}
	acl := &model.ObjectACL{
		Id:         uuid.NewString(),
		ObjectId:   objectId,
		RoleId:     req.RoleId,
		Permission: req.Permission,
		Effect:     req.Effect,
	}
	if err := h.store.InsertObjectACL(ctx, acl); err != nil {
		return nil, err
	}
	return acl, nil
}

func (h *Handler) deleteObjectACL(c *gin.Context) (interface{}, error) {
	if err := h.requireInventoryManage(c); err != nil {
		return nil, err
	}
	aclId := c.Param(common.Id)
	if err := h.store.DeleteObjectACL(c.Request.Context(), aclId); err != nil {
		return nil, err
	}
	return gin.H{"id": aclId}, nil
}

// searchText flattens the data blob's string values for substring search.
func searchText(data []byte) string {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	parts := make([]string, 0, len(fields))
	for _, v := range fields {
		if s, ok := v.(string); ok {
			parts = append(parts, strings.ToLower(s))
		}
	}
	return strings.Join(parts, " ")
}
