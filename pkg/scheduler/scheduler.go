/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/runner"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/channel"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/timeutil"
)

// Store is the slice of the database client the scheduler drives.
type Store interface {
	SelectDueSchedules(ctx context.Context, now time.Time) ([]*model.ScheduledJob, error)
	EarliestNextRun(ctx context.Context) (time.Time, error)
	AdvanceSchedule(ctx context.Context, id string, nextRunAt time.Time) error
	MarkScheduleFired(ctx context.Context, id string, firedAt time.Time, jobId string) error
	GetInventoryObject(ctx context.Context, id string) (*model.InventoryObject, error)
}

// SystemTasks is the fixed registry of named in-process routines the
// scheduler can fire. Implemented by the pollers manager.
type SystemTasks interface {
	RunSystemTask(ctx context.Context, name string) error
	IsSystemTaskRunning(name string) bool
}

// Scheduler fires due ScheduledJob rows. One loop, woken every tick or at the
// earliest next_run_at, whichever comes first.
type Scheduler struct {
	store  Store
	runner *runner.Runner
	tasks  SystemTasks

	tick time.Duration
	tomb *channel.Tomb
}

func NewScheduler(store Store, r *runner.Runner, tasks SystemTasks) *Scheduler {
	return &Scheduler{
		store:  store,
		runner: r,
		tasks:  tasks,
		tick:   time.Duration(commonconfig.GetSchedulerTickSecond()) * time.Second,
		tomb:   channel.NewTomb(),
	}
}

func (s *Scheduler) Start() {
	go s.loop()
}

func (s *Scheduler) Stop() {
	s.tomb.Stop()
}

func (s *Scheduler) loop() {
	defer s.tomb.Done()
	for {
		select {
		case <-s.tomb.Stopping():
			return
		case <-time.After(s.sleepUntilNext()):
		}
		if err := s.Tick(context.Background()); err != nil {
			klog.ErrorS(err, "scheduler tick failed")
		}
	}
}

// sleepUntilNext returns the default tick, shortened when an enabled schedule
// is due sooner.
func (s *Scheduler) sleepUntilNext() time.Duration {
	earliest, err := s.store.EarliestNextRun(context.Background())
	if err != nil || earliest.IsZero() {
		return s.tick
	}
	until := time.Until(earliest)
	if until <= 0 {
		return time.Second
	}
	if until < s.tick {
		return until
	}
	return s.tick
}

// Tick fires every due schedule once, in id order. Firing advances
// next_run_at before dispatch so a crash mid-dispatch can only miss a run,
// never double-fire it.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := s.store.SelectDueSchedules(ctx, now)
	if err != nil {
		return err
	}
	for _, sj := range due {
		if err := s.fire(ctx, sj, now); err != nil {
			klog.ErrorS(err, "failed to fire schedule", "schedule", sj.Name)
		}
	}
	return nil
}

func (s *Scheduler) fire(ctx context.Context, sj *model.ScheduledJob, now time.Time) error {
	nextRun, err := timeutil.NextCronTime(sj.CronExpression, now)
	if err != nil {
		return fmt.Errorf("schedule %s has invalid cron %q: %w", sj.Name, sj.CronExpression, err)
	}
	if err = s.store.AdvanceSchedule(ctx, sj.Id, nextRun); err != nil {
		return err
	}
	if sj.SkipIfRunning && s.isCollision(sj) {
		klog.V(2).Infof("schedule %s skipped, a matching job is still running", sj.Name)
		return nil
	}

	jobId, err := s.dispatch(ctx, sj)
	if err != nil {
		return err
	}
	return s.store.MarkScheduleFired(ctx, sj.Id, now, jobId)
}

// isCollision consults the live job map (or the task registry) for a run that
// the new occurrence would collide with.
func (s *Scheduler) isCollision(sj *model.ScheduledJob) bool {
	switch sj.JobType {
	case common.JobTypeServiceScript:
		return s.runner.HasRunningServiceJob(sj.ServiceName, sj.ScriptName)
	case common.JobTypeSystemTask:
		return s.tasks.IsSystemTaskRunning(sj.SystemTask)
	case common.JobTypeInventoryAction:
		return s.runner.HasRunningScriptJob(sj.ActionName, sj.ObjectId)
	}
	return false
}

// dispatch routes one occurrence by job type. System tasks run in-process and
// produce no job id.
func (s *Scheduler) dispatch(ctx context.Context, sj *model.ScheduledJob) (string, error) {
	inputs := decodeInputs(sj.Inputs)
	switch sj.JobType {
	case common.JobTypeServiceScript:
		job, err := s.runner.RunScript(ctx, sj.ServiceName, sj.ScriptName, inputs, runner.SchedulerCaller)
		if err != nil {
			return "", err
		}
		return job.Id, nil
	case common.JobTypeSystemTask:
		go func() {
			if err := s.tasks.RunSystemTask(context.Background(), sj.SystemTask); err != nil {
				klog.ErrorS(err, "system task failed", "task", sj.SystemTask)
			}
		}()
		return "", nil
	case common.JobTypeInventoryAction:
		return s.dispatchInventoryAction(ctx, sj, inputs)
	}
	return "", fmt.Errorf("schedule %s has unknown job type %q", sj.Name, sj.JobType)
}

// dispatchInventoryAction resolves the target object and runs the action's
// script on the object's owning service. The object id rides along in the
// inputs for collision detection.
func (s *Scheduler) dispatchInventoryAction(ctx context.Context, sj *model.ScheduledJob, inputs map[string]string) (string, error) {
	obj, err := s.store.GetInventoryObject(ctx, sj.ObjectId)
	if err != nil {
		return "", err
	}
	var data struct {
		Name     string `json:"name"`
		Service  string `json:"service"`
		Hostname string `json:"hostname"`
	}
	if err = json.Unmarshal(obj.Data, &data); err != nil {
		return "", err
	}
	serviceName := data.Service
	if serviceName == "" {
		serviceName = data.Name
	}
	if serviceName == "" {
		return "", fmt.Errorf("object %s has no service to run %s on", sj.ObjectId, sj.ActionName)
	}
	if inputs == nil {
		inputs = map[string]string{}
	}
	inputs["object_id"] = sj.ObjectId
	if data.Hostname != "" {
		inputs["hostname"] = data.Hostname
	}
	job, err := s.runner.RunScript(ctx, serviceName, sj.ActionName, inputs, runner.SchedulerCaller)
	if err != nil {
		return "", err
	}
	return job.Id, nil
}

func decodeInputs(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var inputs map[string]string
	if err := json.Unmarshal(raw, &inputs); err != nil {
		klog.ErrorS(err, "failed to decode schedule inputs")
		return nil
	}
	return inputs
}
