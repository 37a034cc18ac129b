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
	TBlueprint           = "blueprint"
	TBlueprintDeployment = "blueprint_deployment"
)

var (
	getBlueprintCmd        = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TBlueprint)
	getBlueprintByNameCmd  = fmt.Sprintf(`SELECT * FROM %s WHERE name = $1 LIMIT 1`, TBlueprint)
	insertBlueprintFormat  = `INSERT INTO ` + TBlueprint + ` (%s) VALUES (%s)`
	updateBlueprintCmd     = fmt.Sprintf(`UPDATE %s SET name = :name, services = :services WHERE id = :id`, TBlueprint)
	getDeploymentCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TBlueprintDeployment)
	insertDeploymentFormat = `INSERT INTO ` + TBlueprintDeployment + ` (%s) VALUES (%s)`
	updateDeploymentCmd    = fmt.Sprintf(`UPDATE %s
		SET status = :status,
		    progress = :progress,
		    started_at = :started_at,
		    finished_at = :finished_at
		WHERE id = :id`, TBlueprintDeployment)
)

func (c *Client) InsertBlueprint(ctx context.Context, bp *model.Blueprint) error {
	if bp == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*bp, insertBlueprintFormat), bp)
	if err != nil {
		klog.ErrorS(err, "failed to insert blueprint db", "name", bp.Name)
	}
	return err
}

func (c *Client) UpdateBlueprint(ctx context.Context, bp *model.Blueprint) error {
	_, err := c.q.NamedExecContext(ctx, updateBlueprintCmd, bp)
	return err
}

func (c *Client) GetBlueprint(ctx context.Context, id string) (*model.Blueprint, error) {
	var rows []*model.Blueprint
	if err := c.q.SelectContext(ctx, &rows, getBlueprintCmd, id); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("Blueprint", id)
	}
	return rows[0], nil
}

func (c *Client) GetBlueprintByName(ctx context.Context, name string) (*model.Blueprint, error) {
	var rows []*model.Blueprint
	if err := c.q.SelectContext(ctx, &rows, getBlueprintByNameCmd, name); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("Blueprint", name)
	}
	return rows[0], nil
}

func (c *Client) SelectBlueprints(ctx context.Context) ([]*model.Blueprint, error) {
	var rows []*model.Blueprint
	err := c.q.SelectContext(ctx, &rows,
		fmt.Sprintf(`SELECT * FROM %s ORDER BY name`, TBlueprint))
	return rows, err
}

func (c *Client) DeleteBlueprint(ctx context.Context, id string) error {
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TBlueprint), id)
	return err
}

func (c *Client) InsertBlueprintDeployment(ctx context.Context, dep *model.BlueprintDeployment) error {
	if dep == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*dep, insertDeploymentFormat), dep)
	if err != nil {
		klog.ErrorS(err, "failed to insert blueprint deployment db", "id", dep.Id)
	}
	return err
}

func (c *Client) UpdateBlueprintDeployment(ctx context.Context, dep *model.BlueprintDeployment) error {
	_, err := c.q.NamedExecContext(ctx, updateDeploymentCmd, dep)
	if err != nil {
		klog.ErrorS(err, "failed to update blueprint deployment db", "id", dep.Id)
	}
	return err
}

func (c *Client) GetBlueprintDeployment(ctx context.Context, id string) (*model.BlueprintDeployment, error) {
	var rows []*model.BlueprintDeployment
	if err := c.q.SelectContext(ctx, &rows, getDeploymentCmd, id); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("Blueprint", id)
	}
	return rows[0], nil
}

func (c *Client) SelectBlueprintDeployments(ctx context.Context, query sqrl.Sqlizer, limit, offset int) ([]*model.BlueprintDeployment, error) {
	sql, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TBlueprintDeployment).
		Where(query).
		OrderBy("started_at " + DESC).
		Limit(uint64(limit)).
		Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []*model.BlueprintDeployment
	err = c.q.SelectContext(ctx, &rows, sql, args...)
	return rows, err
}
