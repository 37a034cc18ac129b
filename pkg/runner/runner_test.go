/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package runner

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
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/services"
)

// fakeStore keeps job records in memory for subprocess tests.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*model.JobRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*model.JobRecord{}}
}

func (s *fakeStore) InsertJob(_ context.Context, job *model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[job.Id] = job
	return nil
}

func (s *fakeStore) UpdateJob(_ context.Context, job *model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[job.Id] = job
	return nil
}

func (s *fakeStore) AppendJobOutput(_ context.Context, jobId string, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[jobId]; ok {
		record.Output = append(record.Output, lines...)
	}
	return nil
}

func (s *fakeStore) GetJob(_ context.Context, jobId string) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[jobId]
	if !ok {
		return nil, commonerrors.NewNotFound("Job", jobId)
	}
	return record, nil
}

func (s *fakeStore) FailOrphanedJobs(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (s *fakeStore) record(jobId string) *model.JobRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[jobId]
}

func writeScript(t *testing.T, dir, name, body string) {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
}

// newTestRunner builds a catalog with one service whose scripts are real
// shell snippets.
func newTestRunner(t *testing.T, scripts map[string]string) (*Runner, *fakeStore) {
	root := t.TempDir()
	dir := filepath.Join(root, "web")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	config := "scripts:\n"
	for name, body := range scripts {
		writeScript(t, dir, name+".sh", body)
		config += "  " + name + ":\n    command: ./" + name + ".sh\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, services.ConfigFile), []byte(config), 0o644))

	catalog := services.NewCatalog(root)
	require.NoError(t, catalog.Reload())

	store := newFakeStore()
	r := NewRunner(store, catalog)
	r.flushInterval = 50 * time.Millisecond
	r.stopGrace = 100 * time.Millisecond
	return r, store
}

func waitJob(t *testing.T, job *Job) {
	select {
	case <-job.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("job %s did not finish in time", job.Id)
	}
}

func TestDeployCompletes(t *testing.T) {
	r, store := newTestRunner(t, map[string]string{
		"deploy": "echo line one\necho line two\n",
	})
	job, err := r.Deploy(context.Background(), "web", Caller{UserId: "u1", Username: "alice"}, nil)
	require.NoError(t, err)
	waitJob(t, job)

	assert.Equal(t, common.JobCompleted, job.Status())
	assert.Equal(t, []string{"line one", "line two"}, job.Output())

	// the runner forgets finished jobs; the persisted record is the truth
	assert.Eventually(t, func() bool { return r.GetLiveJob(job.Id) == nil },
		2*time.Second, 20*time.Millisecond)
	record := store.record(job.Id)
	require.NotNil(t, record)
	assert.Equal(t, common.JobCompleted, record.Status)
	assert.True(t, record.FinishedAt.Valid)
	assert.Equal(t, "alice", record.Username)
}

func TestNonZeroExitFails(t *testing.T) {
	r, store := newTestRunner(t, map[string]string{
		"deploy": "echo boom 1>&2\nexit 3\n",
	})
	job, err := r.Deploy(context.Background(), "web", Caller{Username: "alice"}, nil)
	require.NoError(t, err)
	waitJob(t, job)

	assert.Equal(t, common.JobFailed, job.Status())
	assert.Contains(t, job.Output(), "boom")
	assert.Eventually(t, func() bool {
		rec := store.record(job.Id)
		return rec != nil && rec.Status == common.JobFailed && rec.FinishedAt.Valid
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSpawnFailure(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "web")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	config := "scripts:\n  deploy:\n    command: ./does-not-exist.sh\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, services.ConfigFile), []byte(config), 0o644))
	catalog := services.NewCatalog(root)
	require.NoError(t, catalog.Reload())
	store := newFakeStore()
	r := NewRunner(store, catalog)

	job, err := r.Deploy(context.Background(), "web", Caller{Username: "alice"}, nil)
	require.NoError(t, err)

	assert.Equal(t, common.JobFailed, job.Status())
	output := job.Output()
	require.NotEmpty(t, output)
	// the spawn error text is the last output line
	assert.Contains(t, output[len(output)-1], "does-not-exist.sh")
	record := store.record(job.Id)
	require.NotNil(t, record)
	assert.Equal(t, common.JobFailed, record.Status)
}

func TestUnknownServiceRejected(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{"deploy": "true\n"})
	_, err := r.Deploy(context.Background(), "ghost", Caller{Username: "alice"}, nil)
	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
}

func TestInputsSurfaceAsEnv(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"deploy": "echo host=$INPUT_HOSTNAME\n",
	})
	job, err := r.Deploy(context.Background(), "web", Caller{Username: "alice"},
		map[string]string{"hostname": "vm-7"})
	require.NoError(t, err)
	waitJob(t, job)
	assert.Equal(t, common.JobCompleted, job.Status())
	assert.Contains(t, job.Output(), "host=vm-7")
}

func TestBulkDeployPartial(t *testing.T) {
	r, store := newTestRunner(t, map[string]string{
		"deploy": "echo deployed\n",
		"stop":   "echo stopped\n",
	})
	result, err := r.BulkDeploy(context.Background(), []string{"web", "ghost"},
		Caller{UserId: "u1", Username: "alice"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, []string{"web"}, result.Succeeded)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "ghost", result.Skipped[0].Name)
	assert.Equal(t, SkipReasonNotFound, result.Skipped[0].Reason)
	require.NotEmpty(t, result.JobId)

	// invalid names do not fail the parent
	assert.Eventually(t, func() bool {
		rec := store.record(result.JobId)
		return rec != nil && rec.Status == common.JobCompleted
	}, 5*time.Second, 50*time.Millisecond)
	rec := store.record(result.JobId)
	assert.Equal(t, common.ActionBulkDeploy, rec.Action)
	assert.Equal(t, "bulk (1 services)", rec.Service)
}

func TestBulkAllInvalid(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{"stop": "true\n"})
	result, err := r.BulkStop(context.Background(), []string{"ghost1", "ghost2"}, Caller{Username: "alice"})
	require.NoError(t, err)
	assert.Empty(t, result.JobId)
	assert.Len(t, result.Skipped, 2)
	assert.Empty(t, result.Succeeded)
}

func TestBulkNoChildDispatchedLeavesNoJobId(t *testing.T) {
	// the service exists but has no stop script: every dispatch is rejected
	// before spawn, so no job id may surface and the parent settles failed
	r, store := newTestRunner(t, map[string]string{"deploy": "true\n"})
	result, err := r.BulkStop(context.Background(), []string{"web"}, Caller{Username: "alice"})
	require.NoError(t, err)

	assert.Empty(t, result.JobId)
	assert.Empty(t, result.Succeeded)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "web", result.Skipped[0].Name)

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, rec := range store.records {
		if rec.Action == common.ActionBulkStop {
			assert.Equal(t, common.JobFailed, rec.Status)
			assert.Nil(t, r.GetLiveJob(rec.Id))
		}
	}
}

func TestBulkParentFailsWhenChildFails(t *testing.T) {
	r, store := newTestRunner(t, map[string]string{
		"stop": "exit 1\n",
	})
	result, err := r.BulkStop(context.Background(), []string{"web"}, Caller{Username: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, result.JobId)
	assert.Eventually(t, func() bool {
		rec := store.record(result.JobId)
		return rec != nil && rec.Status == common.JobFailed
	}, 5*time.Second, 50*time.Millisecond)

	// the child carries the parent link
	store.mu.Lock()
	children := 0
	for _, rec := range store.records {
		if rec.ParentJobId.Valid && rec.ParentJobId.String == result.JobId {
			children++
		}
	}
	store.mu.Unlock()
	assert.Equal(t, 1, children)
}

func TestDestroyDedup(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"destroy": "sleep 2\n",
	})
	first, err := r.DestroyInstance(context.Background(), "web", "vm-7", TTLCleanupCaller)
	require.NoError(t, err)
	require.NotNil(t, first)

	// identical destroy is silently skipped while the first is running
	second, err := r.DestroyInstance(context.Background(), "web", "vm-7", TTLCleanupCaller)
	require.NoError(t, err)
	assert.Nil(t, second)

	// a different hostname is not deduped
	third, err := r.DestroyInstance(context.Background(), "web", "vm-8", TTLCleanupCaller)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestRerunPreservesInvocation(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"migrate": "echo migrating $INPUT_TARGET\n",
	})
	orig, err := r.RunScript(context.Background(), "web", "migrate",
		map[string]string{"target": "v2"}, Caller{UserId: "u1", Username: "alice"})
	require.NoError(t, err)
	waitJob(t, orig)

	rerun, err := r.Rerun(context.Background(), orig.Id, Caller{UserId: "u2", Username: "bob"})
	require.NoError(t, err)
	waitJob(t, rerun)

	assert.NotEqual(t, orig.Id, rerun.Id)
	assert.Empty(t, rerun.ParentJobId)
	assert.Equal(t, orig.Service, rerun.Service)
	assert.Equal(t, orig.Action, rerun.Action)
	assert.Equal(t, orig.Script, rerun.Script)
	assert.Equal(t, orig.Inputs, rerun.Inputs)
	assert.Equal(t, "bob", rerun.Username)
	assert.Contains(t, rerun.Output(), "migrating v2")
}

func TestCancel(t *testing.T) {
	r, store := newTestRunner(t, map[string]string{
		"deploy": "sleep 30\n",
	})
	job, err := r.Deploy(context.Background(), "web", Caller{Username: "alice"}, nil)
	require.NoError(t, err)
	require.True(t, job.IsRunning())

	require.NoError(t, r.Cancel(context.Background(), job.Id))

	// a second cancel while the first is in flight conflicts
	err = r.Cancel(context.Background(), job.Id)
	require.Error(t, err)
	assert.True(t, commonerrors.IsConflict(err))

	// the job settles as cancelled only after the process exits
	waitJob(t, job)
	assert.Equal(t, common.JobCancelled, job.Status())
	assert.Contains(t, job.Output(), "job cancelled by request")

	// cancelling a finished job conflicts too
	err = r.Cancel(context.Background(), job.Id)
	require.Error(t, err)
	assert.True(t, commonerrors.IsConflict(err))

	assert.Eventually(t, func() bool {
		rec := store.record(job.Id)
		return rec != nil && rec.Status == common.JobCancelled && rec.FinishedAt.Valid
	}, 5*time.Second, 50*time.Millisecond)
}

func TestCancelReachesChildProcesses(t *testing.T) {
	// the script parks behind a child; killing only the script's own pid would
	// leave the child holding the output pipes and the job running
	r, store := newTestRunner(t, map[string]string{
		"deploy": "sleep 30 &\nwait $!\n",
	})
	job, err := r.Deploy(context.Background(), "web", Caller{Username: "alice"}, nil)
	require.NoError(t, err)
	require.True(t, job.IsRunning())

	require.NoError(t, r.Cancel(context.Background(), job.Id))
	waitJob(t, job)
	assert.Equal(t, common.JobCancelled, job.Status())
	assert.Eventually(t, func() bool {
		rec := store.record(job.Id)
		return rec != nil && rec.Status == common.JobCancelled
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSubscribeStreamsLines(t *testing.T) {
	r, _ := newTestRunner(t, map[string]string{
		"deploy": "sleep 0.5\necho first\necho second\n",
	})
	job, err := r.Deploy(context.Background(), "web", Caller{Username: "alice"}, nil)
	require.NoError(t, err)

	ch, cancel := job.Subscribe()
	defer cancel()
	var got []string
	for line := range ch {
		got = append(got, line)
	}
	assert.Equal(t, []string{"first", "second"}, got)
	waitJob(t, job)
}
