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

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

const TScheduledJob = "scheduled_job"

var (
	getScheduleCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TScheduledJob)
	getScheduleByNameCmd = fmt.Sprintf(`SELECT * FROM %s WHERE name = $1 LIMIT 1`, TScheduledJob)
	insertScheduleFormat = `INSERT INTO ` + TScheduledJob + ` (%s) VALUES (%s)`
	updateScheduleCmd    = fmt.Sprintf(`UPDATE %s
		SET name = :name,
		    description = :description,
		    cron_expression = :cron_expression,
		    is_enabled = :is_enabled,
		    skip_if_running = :skip_if_running,
		    next_run_at = :next_run_at,
		    service_name = :service_name,
		    script_name = :script_name,
		    type_slug = :type_slug,
		    action_name = :action_name,
		    object_id = :object_id,
		    inputs = :inputs
		WHERE id = :id`, TScheduledJob)

	// fired in id order so concurrent due schedules dispatch deterministically
	dueSchedulesCmd = fmt.Sprintf(`SELECT * FROM %s
		WHERE is_enabled = true AND next_run_at <= $1
		ORDER BY id`, TScheduledJob)

	earliestNextRunCmd = fmt.Sprintf(`SELECT MIN(next_run_at) FROM %s WHERE is_enabled = true`, TScheduledJob)
)

func (c *Client) InsertSchedule(ctx context.Context, sj *model.ScheduledJob) error {
	if sj == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*sj, insertScheduleFormat), sj)
	if err != nil {
		klog.ErrorS(err, "failed to insert scheduled job db", "name", sj.Name)
	}
	return err
}

func (c *Client) UpdateSchedule(ctx context.Context, sj *model.ScheduledJob) error {
	if sj == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, updateScheduleCmd, sj)
	if err != nil {
		klog.ErrorS(err, "failed to update scheduled job db", "id", sj.Id)
	}
	return err
}

func (c *Client) GetSchedule(ctx context.Context, id string) (*model.ScheduledJob, error) {
	var rows []*model.ScheduledJob
	if err := c.q.SelectContext(ctx, &rows, getScheduleCmd, id); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("Schedule", id)
	}
	return rows[0], nil
}

func (c *Client) GetScheduleByName(ctx context.Context, name string) (*model.ScheduledJob, error) {
	var rows []*model.ScheduledJob
	if err := c.q.SelectContext(ctx, &rows, getScheduleByNameCmd, name); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, commonerrors.NewNotFound("Schedule", name)
	}
	return rows[0], nil
}

func (c *Client) SelectSchedules(ctx context.Context, query sqrl.Sqlizer, orderBy []string) ([]*model.ScheduledJob, error) {
	sql, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TScheduledJob).Where(query).OrderBy(orderBy...).ToSql()
	if err != nil {
		return nil, err
	}
	var rows []*model.ScheduledJob
	err = c.q.SelectContext(ctx, &rows, sql, args...)
	return rows, err
}

func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TScheduledJob), id)
	return err
}

// SelectDueSchedules returns enabled schedules whose next_run_at has passed,
// ordered by id.
func (c *Client) SelectDueSchedules(ctx context.Context, now time.Time) ([]*model.ScheduledJob, error) {
	var rows []*model.ScheduledJob
	err := c.q.SelectContext(ctx, &rows, dueSchedulesCmd, now)
	return rows, err
}

// EarliestNextRun returns the soonest next_run_at among enabled schedules, or
// a zero time when none exist.
func (c *Client) EarliestNextRun(ctx context.Context) (time.Time, error) {
	var t sql.NullTime
	if err := c.q.GetContext(ctx, &t, earliestNextRunCmd); err != nil {
		return time.Time{}, err
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}

// AdvanceSchedule moves next_run_at forward before the run is dispatched, so a
// crash mid-run cannot re-fire the same occurrence.
func (c *Client) AdvanceSchedule(ctx context.Context, id string, nextRunAt time.Time) error {
	cmd := fmt.Sprintf(`UPDATE %s SET next_run_at = $2 WHERE id = $1`, TScheduledJob)
	_, err := c.q.ExecContext(ctx, cmd, id, nextRunAt)
	return err
}

// MarkScheduleFired records the run that an occurrence produced.
func (c *Client) MarkScheduleFired(ctx context.Context, id string, firedAt time.Time, jobId string) error {
	cmd := fmt.Sprintf(`UPDATE %s SET last_run_at = $2, last_job_id = $3 WHERE id = $1`, TScheduledJob)
	lastJob := sql.NullString{String: jobId, Valid: jobId != ""}
	_, err := c.q.ExecContext(ctx, cmd, id, firedAt, lastJob)
	return err
}

// SeedSystemSchedule inserts a schedule only when no row with the same name
// exists, so operator edits to cadence or enablement survive restarts.
func (c *Client) SeedSystemSchedule(ctx context.Context, sj *model.ScheduledJob) error {
	_, err := c.GetScheduleByName(ctx, sj.Name)
	if err == nil {
		return nil
	}
	if !commonerrors.IsNotFound(err) {
		return err
	}
	return c.InsertSchedule(ctx, sj)
}
