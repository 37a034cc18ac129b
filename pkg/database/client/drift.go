/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

const (
	TDriftReport = "drift_report"
	TSnapshot    = "snapshot"
)

var (
	insertDriftReportFormat = `INSERT INTO ` + TDriftReport + ` (%s) VALUES (%s)`
	insertSnapshotFormat    = `INSERT INTO ` + TSnapshot + ` (%s) VALUES (%s)`

	latestDriftReportCmd = fmt.Sprintf(`SELECT * FROM %s ORDER BY created_at DESC LIMIT 1`, TDriftReport)
	pendingSnapshotsCmd  = fmt.Sprintf(`SELECT * FROM %s WHERE status = $1 ORDER BY created_at`, TSnapshot)
	countPendingCmd      = fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE status = $1`, TSnapshot)
)

func (c *Client) InsertDriftReport(ctx context.Context, report *model.DriftReport) error {
	if report == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*report, insertDriftReportFormat), report)
	if err != nil {
		klog.ErrorS(err, "failed to insert drift report db", "id", report.Id)
	}
	return err
}

func (c *Client) GetLatestDriftReport(ctx context.Context) (*model.DriftReport, error) {
	var rows []*model.DriftReport
	if err := c.q.SelectContext(ctx, &rows, latestDriftReportCmd); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFoundWithMessage("no drift report recorded yet")
	}
	return rows[0], nil
}

func (c *Client) SelectDriftReports(ctx context.Context, limit, offset int) ([]*model.DriftReport, error) {
	cmd := fmt.Sprintf(`SELECT * FROM %s ORDER BY created_at DESC LIMIT $1 OFFSET $2`, TDriftReport)
	var rows []*model.DriftReport
	err := c.q.SelectContext(ctx, &rows, cmd, limit, offset)
	return rows, err
}

func (c *Client) InsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*snap, insertSnapshotFormat), snap)
	if err != nil {
		klog.ErrorS(err, "failed to insert snapshot db", "hostname", snap.Hostname)
	}
	return err
}

func (c *Client) SelectPendingSnapshots(ctx context.Context) ([]*model.Snapshot, error) {
	var rows []*model.Snapshot
	err := c.q.SelectContext(ctx, &rows, pendingSnapshotsCmd, model.SnapshotPending)
	return rows, err
}

// CountPendingSnapshots is cheap enough to gate the sync poller every tick.
func (c *Client) CountPendingSnapshots(ctx context.Context) (int, error) {
	var cnt int
	err := c.q.GetContext(ctx, &cnt, countPendingCmd, model.SnapshotPending)
	return cnt, err
}

func (c *Client) MarkSnapshotStatus(ctx context.Context, id, status string, syncedAt time.Time) error {
	cmd := fmt.Sprintf(`UPDATE %s SET status = $2, synced_at = $3 WHERE id = $1`, TSnapshot)
	var t sql.NullTime
	if !syncedAt.IsZero() {
		t = sql.NullTime{Time: syncedAt, Valid: true}
	}
	_, err := c.q.ExecContext(ctx, cmd, id, status, t)
	return err
}
