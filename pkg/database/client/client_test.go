/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewClientWithDB(sqlx.NewDb(db, "postgres")), mock
}

func TestGenInsertCommand(t *testing.T) {
	cmd := genInsertCommand(model.Role{}, `INSERT INTO role (%s) VALUES (%s)`)
	assert.Equal(t, `INSERT INTO role (id, name, description, is_system) VALUES (:id, :name, :description, :is_system)`, cmd)

	cmd = genInsertCommand(model.AuditLog{}, `INSERT INTO audit_log (%s) VALUES (%s)`, "id")
	assert.NotContains(t, cmd, "(id,")
	assert.Contains(t, cmd, "username")
}

func TestGetJobNotFound(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectQuery(`SELECT \* FROM job WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := c.GetJob(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
	assert.Equal(t, commonerrors.JobNotFound, commonerrors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectJobsFilter(t *testing.T) {
	testCases := []struct {
		name    string
		filter  *JobFilter
		pattern string
	}{
		{
			name:    "by service and status",
			filter:  &JobFilter{Service: "grafana", Status: common.JobRunning},
			pattern: `SELECT \* FROM job WHERE \(service = \$1 AND status = \$2\) ORDER BY started_at desc`,
		},
		{
			name:    "children of a bulk parent",
			filter:  &JobFilter{ParentJobId: "parent-1"},
			pattern: `SELECT \* FROM job WHERE \(parent_job_id = \$1\) ORDER BY started_at desc`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, mock := newMockClient(t)
			mock.ExpectQuery(tc.pattern).
				WillReturnRows(sqlmock.NewRows([]string{"id", "service", "status"}).
					AddRow("job-1", "grafana", common.JobRunning))

			jobs, err := c.SelectJobs(context.Background(), tc.filter, 20, 0)
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			assert.Equal(t, "job-1", jobs[0].Id)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteJobDetachesChildren(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec(`UPDATE job SET parent_job_id = NULL WHERE parent_job_id = \$1`).
		WithArgs("parent-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM job WHERE id = \$1`).
		WithArgs("parent-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := c.DeleteJob(context.Background(), "parent-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailOrphanedJobs(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec(`UPDATE job\s+SET status = \$1, finished_at = \$2, output = output \|\| \$3\s+WHERE status = \$4`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := c.FailOrphanedJobs(context.Background(), "job terminated: manager restarted")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectDueSchedulesOrderedById(t *testing.T) {
	c, mock := newMockClient(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM scheduled_job\s+WHERE is_enabled = true AND next_run_at <= \$1\s+ORDER BY id`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("a", "first").
			AddRow("b", "second"))

	due, err := c.SelectDueSchedules(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].Id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedSystemScheduleKeepsExisting(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectQuery(`SELECT \* FROM scheduled_job WHERE name = \$1`).
		WithArgs(common.TaskRefreshCosts).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "cron_expression"}).
			AddRow("s1", common.TaskRefreshCosts, "0 2 * * *"))

	err := c.SeedSystemSchedule(context.Background(), &model.ScheduledJob{Name: common.TaskRefreshCosts})
	require.NoError(t, err)
	// no insert expected: the operator-edited row survives
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateMetadata(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec(`INSERT INTO app_metadata \(key, value\) VALUES \(\$1, \$2\)\s+ON CONFLICT \(key\) DO NOTHING`).
		WithArgs(common.MetaSigningKey, []byte(`"candidate"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM app_metadata WHERE key = \$1`).
		WithArgs(common.MetaSigningKey).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow(common.MetaSigningKey, []byte(`"winner"`)))

	value, err := c.GetOrCreateMetadata(context.Background(), common.MetaSigningKey, []byte(`"candidate"`))
	require.NoError(t, err)
	// the stored value wins over the freshly generated fallback
	assert.Equal(t, []byte(`"winner"`), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM job WHERE id = \$1`).
		WithArgs("j1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := c.WithTx(context.Background(), func(tx *Client) error {
		if _, execErr := tx.q.ExecContext(context.Background(), `DELETE FROM job WHERE id = $1`, "j1"); execErr != nil {
			return execErr
		}
		return commonerrors.NewConflict("abort")
	})
	require.Error(t, err)
	assert.True(t, commonerrors.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
