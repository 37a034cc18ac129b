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
)

const TAuditLog = "audit_log"

// the id column is autoincrement, so it is skipped in the insert
var insertAuditFormat = `INSERT INTO ` + TAuditLog + ` (%s) VALUES (%s)`

func (c *Client) InsertAuditLog(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*entry, insertAuditFormat, "id"), entry)
	if err != nil {
		klog.ErrorS(err, "failed to insert audit log db", "action", entry.Action)
	}
	return err
}

func (c *Client) SelectAuditLogs(ctx context.Context, query sqrl.Sqlizer, limit, offset int) ([]*model.AuditLog, error) {
	sql, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TAuditLog).
		Where(query).
		OrderBy("created_at " + DESC).
		Limit(uint64(limit)).
		Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, err
	}
	var entries []*model.AuditLog
	ctx2, cancel := c.queryContext(ctx)
	defer cancel()
	err = c.q.SelectContext(ctx2, &entries, sql, args...)
	return entries, err
}

func (c *Client) CountAuditLogs(ctx context.Context, query sqrl.Sqlizer) (int, error) {
	sql, args, err := sqrl.Select("COUNT(*)").PlaceholderFormat(sqrl.Dollar).
		From(TAuditLog).Where(query).ToSql()
	if err != nil {
		return 0, err
	}
	var cnt int
	err = c.q.GetContext(ctx, &cnt, sql, args...)
	return cnt, err
}

func (c *Client) DistinctAuditActions(ctx context.Context) ([]string, error) {
	cmd := fmt.Sprintf(`SELECT DISTINCT action FROM %s ORDER BY action`, TAuditLog)
	var actions []string
	err := c.q.SelectContext(ctx, &actions, cmd)
	return actions, err
}
