/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"fmt"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

const (
	TInventoryType   = "inventory_type"
	TInventoryObject = "inventory_object"
	TInventoryTag    = "inventory_tag"
	TObjectTag       = "object_tag"
)

var (
	getInventoryTypeCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TInventoryType)
	getInventoryTypeBySlugCmd = fmt.Sprintf(`SELECT * FROM %s WHERE slug = $1 LIMIT 1`, TInventoryType)
	insertInventoryTypeFormat = `INSERT INTO ` + TInventoryType + ` (%s) VALUES (%s)`
	updateInventoryTypeCmd    = fmt.Sprintf(`UPDATE %s
		SET slug = :slug, label = :label, icon = :icon, config_hash = :config_hash, fields = :fields
		WHERE id = :id`, TInventoryType)

	getInventoryObjectCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TInventoryObject)
	insertInventoryObjectFormat = `INSERT INTO ` + TInventoryObject + ` (%s) VALUES (%s)`
	updateInventoryObjectCmd    = fmt.Sprintf(`UPDATE %s
		SET data = :data, search_text = :search_text
		WHERE id = :id`, TInventoryObject)

	objectTagNamesCmd = fmt.Sprintf(`SELECT t.name
		FROM %s t JOIN %s ot ON ot.tag_id = t.id
		WHERE ot.object_id = $1 ORDER BY t.name`, TInventoryTag, TObjectTag)

	objectsByTagNameCmd = fmt.Sprintf(`SELECT o.*
		FROM %s o
		JOIN %s ot ON ot.object_id = o.id
		JOIN %s t ON t.id = ot.tag_id
		WHERE t.name = $1`, TInventoryObject, TObjectTag, TInventoryTag)
)

func (c *Client) InsertInventoryType(ctx context.Context, t *model.InventoryType) error {
	if t == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*t, insertInventoryTypeFormat), t)
	if err != nil {
		klog.ErrorS(err, "failed to insert inventory type db", "slug", t.Slug)
	}
	return err
}

func (c *Client) UpdateInventoryType(ctx context.Context, t *model.InventoryType) error {
	_, err := c.q.NamedExecContext(ctx, updateInventoryTypeCmd, t)
	return err
}

func (c *Client) GetInventoryType(ctx context.Context, id string) (*model.InventoryType, error) {
	var rows []*model.InventoryType
	if err := c.q.SelectContext(ctx, &rows, getInventoryTypeCmd, id); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("InventoryObject", id)
	}
	return rows[0], nil
}

func (c *Client) GetInventoryTypeBySlug(ctx context.Context, slug string) (*model.InventoryType, error) {
	var rows []*model.InventoryType
	if err := c.q.SelectContext(ctx, &rows, getInventoryTypeBySlugCmd, slug); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("InventoryObject", slug)
	}
	return rows[0], nil
}

func (c *Client) SelectInventoryTypes(ctx context.Context) ([]*model.InventoryType, error) {
	var rows []*model.InventoryType
	err := c.q.SelectContext(ctx, &rows,
		fmt.Sprintf(`SELECT * FROM %s ORDER BY slug`, TInventoryType))
	return rows, err
}

func (c *Client) InsertInventoryObject(ctx context.Context, obj *model.InventoryObject) error {
	if obj == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*obj, insertInventoryObjectFormat), obj)
	if err != nil {
		klog.ErrorS(err, "failed to insert inventory object db", "id", obj.Id)
	}
	return err
}

func (c *Client) UpdateInventoryObject(ctx context.Context, obj *model.InventoryObject) error {
	_, err := c.q.NamedExecContext(ctx, updateInventoryObjectCmd, obj)
	return err
}

func (c *Client) GetInventoryObject(ctx context.Context, id string) (*model.InventoryObject, error) {
	var rows []*model.InventoryObject
	if err := c.q.SelectContext(ctx, &rows, getInventoryObjectCmd, id); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("InventoryObject", id)
	}
	return rows[0], nil
}

func (c *Client) SelectInventoryObjects(ctx context.Context, query sqrl.Sqlizer, limit, offset int) ([]*model.InventoryObject, error) {
	sql, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TInventoryObject).
		Where(query).
		OrderBy("created_at " + DESC).
		Limit(uint64(limit)).
		Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []*model.InventoryObject
	ctx2, cancel := c.queryContext(ctx)
	defer cancel()
	err = c.q.SelectContext(ctx2, &rows, sql, args...)
	return rows, err
}

// DeleteInventoryObject removes the object along with its tag bindings and
// per-object ACL rows.
func (c *Client) DeleteInventoryObject(ctx context.Context, id string) error {
	if _, err := c.q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE object_id = $1`, TObjectTag), id); err != nil {
		return err
	}
	if _, err := c.q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE object_id = $1`, TObjectACL), id); err != nil {
		return err
	}
	_, err := c.q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TInventoryObject), id)
	return err
}

func (c *Client) InsertInventoryTag(ctx context.Context, tag *model.InventoryTag) error {
	cmd := fmt.Sprintf(`INSERT INTO %s (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`, TInventoryTag)
	_, err := c.q.ExecContext(ctx, cmd, tag.Id, tag.Name)
	return err
}

func (c *Client) GetInventoryTagByName(ctx context.Context, name string) (*model.InventoryTag, error) {
	var rows []*model.InventoryTag
	cmd := fmt.Sprintf(`SELECT * FROM %s WHERE name = $1 LIMIT 1`, TInventoryTag)
	if err := c.q.SelectContext(ctx, &rows, cmd, name); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("InventoryObject", name)
	}
	return rows[0], nil
}

func (c *Client) SelectInventoryTags(ctx context.Context) ([]*model.InventoryTag, error) {
	var rows []*model.InventoryTag
	err := c.q.SelectContext(ctx, &rows,
		fmt.Sprintf(`SELECT * FROM %s ORDER BY name`, TInventoryTag))
	return rows, err
}

func (c *Client) TagObject(ctx context.Context, objectId, tagId string) error {
	cmd := fmt.Sprintf(`INSERT INTO %s (object_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, TObjectTag)
	_, err := c.q.ExecContext(ctx, cmd, objectId, tagId)
	return err
}

func (c *Client) UntagObject(ctx context.Context, objectId, tagId string) error {
	cmd := fmt.Sprintf(`DELETE FROM %s WHERE object_id = $1 AND tag_id = $2`, TObjectTag)
	_, err := c.q.ExecContext(ctx, cmd, objectId, tagId)
	return err
}

// GetObjectTagNames returns the names of every tag attached to the object.
func (c *Client) GetObjectTagNames(ctx context.Context, objectId string) ([]string, error) {
	var names []string
	err := c.q.SelectContext(ctx, &names, objectTagNamesCmd, objectId)
	return names, err
}

func (c *Client) GetObjectTagIds(ctx context.Context, objectId string) ([]string, error) {
	cmd := fmt.Sprintf(`SELECT tag_id FROM %s WHERE object_id = $1`, TObjectTag)
	var ids []string
	err := c.q.SelectContext(ctx, &ids, cmd, objectId)
	return ids, err
}

func (c *Client) FindObjectsByTagName(ctx context.Context, tagName string) ([]*model.InventoryObject, error) {
	var rows []*model.InventoryObject
	err := c.q.SelectContext(ctx, &rows, objectsByTagNameCmd, tagName)
	return rows, err
}
