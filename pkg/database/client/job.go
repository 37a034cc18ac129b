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
	"github.com/lib/pq"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

const TJob = "job"

var (
	getJobCmd       = fmt.Sprintf(`SELECT * FROM %s WHERE id = $1 LIMIT 1`, TJob)
	insertJobFormat = `INSERT INTO ` + TJob + ` (%s) VALUES (%s)`
	updateJobCmd    = fmt.Sprintf(`UPDATE %s
		SET status = :status,
		    finished_at = :finished_at,
		    output = :output
		WHERE id = :id`, TJob)
)

func (c *Client) InsertJob(ctx context.Context, job *model.JobRecord) error {
	if job == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, genInsertCommand(*job, insertJobFormat), job)
	if err != nil {
		klog.ErrorS(err, "failed to insert job db", "id", job.Id, "service", job.Service)
	}
	return err
}

// UpdateJob persists the mutable part of a job row: status, finish time and
// the accumulated output lines. The runner calls this on every flush and on
// terminal transition.
func (c *Client) UpdateJob(ctx context.Context, job *model.JobRecord) error {
	if job == nil {
		return nil
	}
	_, err := c.q.NamedExecContext(ctx, updateJobCmd, job)
	if err != nil {
		klog.ErrorS(err, "failed to update job db", "id", job.Id)
	}
	return err
}

func (c *Client) AppendJobOutput(ctx context.Context, jobId string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	cmd := fmt.Sprintf(`UPDATE %s SET output = output || $2 WHERE id = $1`, TJob)
	_, err := c.q.ExecContext(ctx, cmd, jobId, pq.StringArray(lines))
	return err
}

func (c *Client) GetJob(ctx context.Context, jobId string) (*model.JobRecord, error) {
	var jobs []*model.JobRecord
	if err := c.q.SelectContext(ctx, &jobs, getJobCmd, jobId); err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, commonerrors.NewNotFound("Job", jobId)
	}
	return jobs[0], nil
}

// JobFilter narrows SelectJobs. Zero values mean "no constraint". When
// ParentJobId is set only the children are returned, never the parent itself.
type JobFilter struct {
	Service     string
	Status      string
	UserId      string
	ParentJobId string
	Since       time.Time
}

func (f *JobFilter) sqlizer() sqrl.Sqlizer {
	and := sqrl.And{}
	if f.Service != "" {
		and = append(and, sqrl.Eq{"service": f.Service})
	}
	if f.Status != "" {
		and = append(and, sqrl.Eq{"status": f.Status})
	}
	if f.UserId != "" {
		and = append(and, sqrl.Eq{"user_id": f.UserId})
	}
	if f.ParentJobId != "" {
		and = append(and, sqrl.Eq{"parent_job_id": f.ParentJobId})
	}
	if !f.Since.IsZero() {
		and = append(and, sqrl.GtOrEq{"started_at": f.Since})
	}
	return and
}

func (c *Client) SelectJobs(ctx context.Context, filter *JobFilter, limit, offset int) ([]*model.JobRecord, error) {
	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TJob).
		OrderBy("started_at " + DESC).
		Limit(uint64(limit)).
		Offset(uint64(offset))
	if filter != nil {
		builder = builder.Where(filter.sqlizer())
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	var jobs []*model.JobRecord
	ctx2, cancel := c.queryContext(ctx)
	defer cancel()
	err = c.q.SelectContext(ctx2, &jobs, sql, args...)
	return jobs, err
}

func (c *Client) CountJobs(ctx context.Context, filter *JobFilter) (int, error) {
	builder := sqrl.Select("COUNT(*)").PlaceholderFormat(sqrl.Dollar).From(TJob)
	if filter != nil {
		builder = builder.Where(filter.sqlizer())
	}
	sql, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}
	var cnt int
	err = c.q.GetContext(ctx, &cnt, sql, args...)
	return cnt, err
}

// DeleteJob removes a job row and detaches any children so bulk history stays
// listable after the parent is pruned.
func (c *Client) DeleteJob(ctx context.Context, jobId string) error {
	detachCmd := fmt.Sprintf(`UPDATE %s SET parent_job_id = NULL WHERE parent_job_id = $1`, TJob)
	if _, err := c.q.ExecContext(ctx, detachCmd, jobId); err != nil {
		return err
	}
	_, err := c.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, TJob), jobId)
	return err
}

// FailOrphanedJobs marks every row still in the running state as failed with a
// trailing note line. Called once at startup before the runner accepts work.
func (c *Client) FailOrphanedJobs(ctx context.Context, note string) (int64, error) {
	cmd := fmt.Sprintf(`UPDATE %s
		SET status = $1, finished_at = $2, output = output || $3
		WHERE status = $4`, TJob)
	res, err := c.q.ExecContext(ctx, cmd,
		common.JobFailed, sql.NullTime{Time: time.Now().UTC(), Valid: true},
		pq.StringArray{note}, common.JobRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
