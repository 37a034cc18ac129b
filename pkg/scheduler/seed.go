/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/timeutil"
)

// personal-instance cleanup runs every quarter hour
const personalCleanupCron = "*/15 * * * *"

// SeedSystemSchedules inserts the built-in schedules when absent. Existing
// rows are never touched, so operator edits to cadence or enablement survive
// restarts.
func SeedSystemSchedules(ctx context.Context, store dbclient.ScheduleInterface) error {
	now := time.Now().UTC()
	next, err := timeutil.NextCronTime(personalCleanupCron, now)
	if err != nil {
		return err
	}
	return store.SeedSystemSchedule(ctx, &model.ScheduledJob{
		Id:             uuid.NewString(),
		Name:           common.TaskPersonalCleanup,
		Description:    "Destroys personal instances whose TTL has expired",
		JobType:        common.JobTypeSystemTask,
		SystemTask:     common.TaskPersonalCleanup,
		CronExpression: personalCleanupCron,
		IsEnabled:      true,
		SkipIfRunning:  true,
		NextRunAt:      next,
	})
}
