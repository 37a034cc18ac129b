/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/runner"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/services"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

type fakeScheduleStore struct {
	mu        sync.Mutex
	due       []*model.ScheduledJob
	objects   map[string]*model.InventoryObject
	advanced  map[string]time.Time
	fired     map[string]string
	jobs      map[string]*model.JobRecord
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{
		objects:  map[string]*model.InventoryObject{},
		advanced: map[string]time.Time{},
		fired:    map[string]string{},
		jobs:     map[string]*model.JobRecord{},
	}
}

func (s *fakeScheduleStore) SelectDueSchedules(_ context.Context, _ time.Time) ([]*model.ScheduledJob, error) {
	return s.due, nil
}

func (s *fakeScheduleStore) EarliestNextRun(_ context.Context) (time.Time, error) {
	return time.Time{}, nil
}

func (s *fakeScheduleStore) AdvanceSchedule(_ context.Context, id string, nextRunAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanced[id] = nextRunAt
	return nil
}

func (s *fakeScheduleStore) MarkScheduleFired(_ context.Context, id string, _ time.Time, jobId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fired[id] = jobId
	return nil
}

func (s *fakeScheduleStore) GetInventoryObject(_ context.Context, id string) (*model.InventoryObject, error) {
	obj, ok := s.objects[id]
	if !ok {
		return nil, commonerrors.NewNotFound("InventoryObject", id)
	}
	return obj, nil
}

// job store half, reused by the runner
func (s *fakeScheduleStore) InsertJob(_ context.Context, job *model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Id] = job
	return nil
}

func (s *fakeScheduleStore) UpdateJob(_ context.Context, job *model.JobRecord) error {
	return s.InsertJob(context.Background(), job)
}

func (s *fakeScheduleStore) AppendJobOutput(_ context.Context, _ string, _ []string) error { return nil }

func (s *fakeScheduleStore) GetJob(_ context.Context, jobId string) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobId]
	if !ok {
		return nil, commonerrors.NewNotFound("Job", jobId)
	}
	return job, nil
}

func (s *fakeScheduleStore) FailOrphanedJobs(_ context.Context, _ string) (int64, error) { return 0, nil }

type fakeTasks struct {
	mu      sync.Mutex
	ran     []string
	running map[string]bool
}

func (f *fakeTasks) RunSystemTask(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, name)
	return nil
}

func (f *fakeTasks) IsSystemTaskRunning(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[name]
}

func newTestScheduler(t *testing.T, store *fakeScheduleStore, tasks *fakeTasks, scripts map[string]string) (*Scheduler, *runner.Runner) {
	root := t.TempDir()
	dir := filepath.Join(root, "web")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	config := "scripts:\n"
	for name, body := range scripts {
		path := filepath.Join(dir, name+".sh")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
		config += "  " + name + ":\n    command: ./" + name + ".sh\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, services.ConfigFile), []byte(config), 0o644))
	catalog := services.NewCatalog(root)
	require.NoError(t, catalog.Reload())
	r := runner.NewRunner(store, catalog)
	s := NewScheduler(store, r, tasks)
	return s, r
}

func serviceSchedule(id string) *model.ScheduledJob {
	return &model.ScheduledJob{
		Id:             id,
		Name:           "nightly-backup",
		JobType:        common.JobTypeServiceScript,
		CronExpression: "0 2 * * *",
		IsEnabled:      true,
		SkipIfRunning:  true,
		ServiceName:    "web",
		ScriptName:     "backup",
	}
}

func TestFireServiceScript(t *testing.T) {
	store := newFakeScheduleStore()
	tasks := &fakeTasks{running: map[string]bool{}}
	s, _ := newTestScheduler(t, store, tasks, map[string]string{"backup": "echo ok\n"})
	store.due = []*model.ScheduledJob{serviceSchedule("s1")}

	require.NoError(t, s.Tick(context.Background()))

	// next_run_at advanced and the run recorded with its job id
	next, ok := store.advanced["s1"]
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))
	jobId, ok := store.fired["s1"]
	require.True(t, ok)
	assert.NotEmpty(t, jobId)
}

func TestSkipIfRunningAdvancesWithoutFiring(t *testing.T) {
	store := newFakeScheduleStore()
	tasks := &fakeTasks{running: map[string]bool{}}
	s, r := newTestScheduler(t, store, tasks, map[string]string{
		"backup": "sleep 2\n",
	})
	// occupy the service with the same script the schedule would run
	job, err := r.RunScript(context.Background(), "web", "backup", nil,
		runner.Caller{Username: "alice"})
	require.NoError(t, err)
	require.True(t, job.IsRunning())

	store.due = []*model.ScheduledJob{serviceSchedule("s1")}
	require.NoError(t, s.Tick(context.Background()))

	_, advanced := store.advanced["s1"]
	assert.True(t, advanced)
	_, fired := store.fired["s1"]
	assert.False(t, fired, "a colliding occurrence must not record a run")
}

func TestUnrelatedScriptDoesNotSuppressSchedule(t *testing.T) {
	store := newFakeScheduleStore()
	tasks := &fakeTasks{running: map[string]bool{}}
	s, r := newTestScheduler(t, store, tasks, map[string]string{
		"backup": "echo ok\n",
		"deploy": "sleep 2\n",
	})
	// a long deploy on the same service is not a collision for the backup
	job, err := r.Deploy(context.Background(), "web", runner.Caller{Username: "alice"}, nil)
	require.NoError(t, err)
	require.True(t, job.IsRunning())

	store.due = []*model.ScheduledJob{serviceSchedule("s1")}
	require.NoError(t, s.Tick(context.Background()))

	jobId, fired := store.fired["s1"]
	require.True(t, fired)
	assert.NotEmpty(t, jobId)
}

func TestFireSystemTask(t *testing.T) {
	store := newFakeScheduleStore()
	tasks := &fakeTasks{running: map[string]bool{}}
	s, _ := newTestScheduler(t, store, tasks, nil)
	store.due = []*model.ScheduledJob{{
		Id:             "s2",
		Name:           common.TaskPersonalCleanup,
		JobType:        common.JobTypeSystemTask,
		SystemTask:     common.TaskPersonalCleanup,
		CronExpression: "*/15 * * * *",
		IsEnabled:      true,
	}}

	require.NoError(t, s.Tick(context.Background()))

	// system tasks produce no job id
	jobId, ok := store.fired["s2"]
	require.True(t, ok)
	assert.Empty(t, jobId)
	assert.Eventually(t, func() bool {
		tasks.mu.Lock()
		defer tasks.mu.Unlock()
		return len(tasks.ran) == 1 && tasks.ran[0] == common.TaskPersonalCleanup
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSystemTaskCollisionSkipped(t *testing.T) {
	store := newFakeScheduleStore()
	tasks := &fakeTasks{running: map[string]bool{common.TaskDriftCheck: true}}
	s, _ := newTestScheduler(t, store, tasks, nil)
	store.due = []*model.ScheduledJob{{
		Id:             "s3",
		JobType:        common.JobTypeSystemTask,
		SystemTask:     common.TaskDriftCheck,
		CronExpression: "0 * * * *",
		IsEnabled:      true,
		SkipIfRunning:  true,
	}}

	require.NoError(t, s.Tick(context.Background()))
	_, fired := store.fired["s3"]
	assert.False(t, fired)
	assert.Empty(t, tasks.ran)
}

func TestFireInventoryAction(t *testing.T) {
	store := newFakeScheduleStore()
	tasks := &fakeTasks{running: map[string]bool{}}
	s, _ := newTestScheduler(t, store, tasks, map[string]string{
		"reboot": "echo rebooting $INPUT_HOSTNAME\n",
	})
	store.objects["obj1"] = &model.InventoryObject{
		Id:     "obj1",
		TypeId: "t1",
		Data:   json.MarshalSilently(map[string]string{"service": "web", "hostname": "vm-7"}),
	}
	store.due = []*model.ScheduledJob{{
		Id:             "s4",
		JobType:        common.JobTypeInventoryAction,
		TypeSlug:       "vm",
		ActionName:     "reboot",
		ObjectId:       "obj1",
		CronExpression: "0 3 * * *",
		IsEnabled:      true,
	}}

	require.NoError(t, s.Tick(context.Background()))
	jobId := store.fired["s4"]
	require.NotEmpty(t, jobId)

	record, err := store.GetJob(context.Background(), jobId)
	require.NoError(t, err)
	assert.Equal(t, "web", record.Service)
	assert.Equal(t, common.SchedulerUser, record.Username)
	var inputs map[string]string
	require.NoError(t, json.Unmarshal(record.Inputs, &inputs))
	assert.Equal(t, "vm-7", inputs["hostname"])
	assert.Equal(t, "obj1", inputs["object_id"])
}

func TestInvalidCronReported(t *testing.T) {
	store := newFakeScheduleStore()
	tasks := &fakeTasks{running: map[string]bool{}}
	s, _ := newTestScheduler(t, store, tasks, nil)
	store.due = []*model.ScheduledJob{{
		Id:             "s5",
		JobType:        common.JobTypeSystemTask,
		SystemTask:     common.TaskHealthCheck,
		CronExpression: "not a cron",
		IsEnabled:      true,
	}}

	// a bad row is logged and skipped, the tick itself succeeds
	require.NoError(t, s.Tick(context.Background()))
	_, advanced := store.advanced["s5"]
	assert.False(t, advanced)
}
