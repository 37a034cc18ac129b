/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package blueprint

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

type fakeStore struct {
	mu          sync.Mutex
	blueprints  map[string]*model.Blueprint
	deployments map[string]*model.BlueprintDeployment
	jobs        map[string]*model.JobRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		blueprints:  map[string]*model.Blueprint{},
		deployments: map[string]*model.BlueprintDeployment{},
		jobs:        map[string]*model.JobRecord{},
	}
}

func (s *fakeStore) GetBlueprint(_ context.Context, id string) (*model.Blueprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, ok := s.blueprints[id]
	if !ok {
		return nil, commonerrors.NewNotFound("Blueprint", id)
	}
	return bp, nil
}

func (s *fakeStore) InsertBlueprintDeployment(_ context.Context, dep *model.BlueprintDeployment) error {
	return s.UpdateBlueprintDeployment(context.Background(), dep)
}

func (s *fakeStore) UpdateBlueprintDeployment(_ context.Context, dep *model.BlueprintDeployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *dep
	s.deployments[dep.Id] = &clone
	return nil
}

func (s *fakeStore) GetBlueprintDeployment(_ context.Context, id string) (*model.BlueprintDeployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dep, ok := s.deployments[id]
	if !ok {
		return nil, commonerrors.NewNotFound("Blueprint", id)
	}
	return dep, nil
}

func (s *fakeStore) InsertJob(_ context.Context, job *model.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Id] = job
	return nil
}

func (s *fakeStore) UpdateJob(_ context.Context, job *model.JobRecord) error {
	return s.InsertJob(context.Background(), job)
}

func (s *fakeStore) AppendJobOutput(_ context.Context, _ string, _ []string) error { return nil }

func (s *fakeStore) GetJob(_ context.Context, jobId string) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobId]
	if !ok {
		return nil, commonerrors.NewNotFound("Job", jobId)
	}
	return job, nil
}

func (s *fakeStore) FailOrphanedJobs(_ context.Context, _ string) (int64, error) { return 0, nil }

func writeService(t *testing.T, root, name, deployBody string) {
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	script := filepath.Join(dir, "deploy.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"+deployBody), 0o755))
	config := "scripts:\n  deploy:\n    command: ./deploy.sh\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, services.ConfigFile), []byte(config), 0o644))
}

func newTestOrchestrator(t *testing.T, store *fakeStore, serviceBodies map[string]string) *Orchestrator {
	root := t.TempDir()
	for name, body := range serviceBodies {
		writeService(t, root, name, body)
	}
	catalog := services.NewCatalog(root)
	require.NoError(t, catalog.Reload())
	r := runner.NewRunner(store, catalog)
	o := NewOrchestrator(store, r, catalog)
	o.pollInterval = 20 * time.Millisecond
	return o
}

func seedBlueprint(store *fakeStore, id string, steps []Step) {
	store.blueprints[id] = &model.Blueprint{
		Id:       id,
		Name:     "stack",
		Services: json.MarshalSilently(steps),
	}
}

func progressOf(t *testing.T, store *fakeStore, depId string) map[string]string {
	dep, err := store.GetBlueprintDeployment(context.Background(), depId)
	require.NoError(t, err)
	var progress map[string]string
	require.NoError(t, json.Unmarshal(dep.Progress, &progress))
	return progress
}

func waitStatus(t *testing.T, store *fakeStore, depId string, want string) {
	require.Eventually(t, func() bool {
		dep, err := store.GetBlueprintDeployment(context.Background(), depId)
		return err == nil && dep.Status == want
	}, 10*time.Second, 50*time.Millisecond, "deployment never reached %s", want)
}

func TestBlueprintCompletes(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, map[string]string{
		"alpha": "echo a\n",
		"beta":  "echo b\n",
	})
	seedBlueprint(store, "bp1", []Step{{Name: "alpha"}, {Name: "beta"}})

	dep, err := o.Deploy(context.Background(), "bp1", runner.Caller{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, common.DeploymentPending, dep.Status)

	waitStatus(t, store, dep.Id, common.DeploymentCompleted)
	progress := progressOf(t, store, dep.Id)
	assert.Equal(t, common.StepCompleted, progress["alpha"])
	assert.Equal(t, common.StepCompleted, progress["beta"])

	final, err := store.GetBlueprintDeployment(context.Background(), dep.Id)
	require.NoError(t, err)
	assert.True(t, final.StartedAt.Valid)
	assert.True(t, final.FinishedAt.Valid)
	assert.Equal(t, "alice", final.DeployedBy)
}

func TestBlueprintPartialOnMissingService(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, map[string]string{
		"alpha": "echo a\n",
	})
	seedBlueprint(store, "bp1", []Step{{Name: "alpha"}, {Name: "ghost"}, {Name: "never"}})

	dep, err := o.Deploy(context.Background(), "bp1", runner.Caller{Username: "alice"})
	require.NoError(t, err)

	waitStatus(t, store, dep.Id, common.DeploymentPartial)
	progress := progressOf(t, store, dep.Id)
	assert.Equal(t, common.StepCompleted, progress["alpha"])
	assert.Equal(t, common.StepFailed, progress["ghost"])
	// the loop stops at the first failure; later steps stay pending
	assert.Equal(t, common.StepPending, progress["never"])
}

func TestBlueprintPartialOnFailedDeploy(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, map[string]string{
		"alpha": "exit 1\n",
		"beta":  "echo b\n",
	})
	seedBlueprint(store, "bp1", []Step{{Name: "alpha"}, {Name: "beta"}})

	dep, err := o.Deploy(context.Background(), "bp1", runner.Caller{Username: "alice"})
	require.NoError(t, err)

	waitStatus(t, store, dep.Id, common.DeploymentPartial)
	progress := progressOf(t, store, dep.Id)
	assert.Equal(t, common.StepFailed, progress["alpha"])
	assert.Equal(t, common.StepPending, progress["beta"])
}

func TestBlueprintStepsRunInOrder(t *testing.T) {
	store := newFakeStore()
	marker := filepath.Join(t.TempDir(), "order.txt")
	o := newTestOrchestrator(t, store, map[string]string{
		"alpha": "sleep 0.3\necho alpha >> " + marker + "\n",
		"beta":  "echo beta >> " + marker + "\n",
	})
	seedBlueprint(store, "bp1", []Step{{Name: "alpha"}, {Name: "beta"}})

	dep, err := o.Deploy(context.Background(), "bp1", runner.Caller{Username: "alice"})
	require.NoError(t, err)
	waitStatus(t, store, dep.Id, common.DeploymentCompleted)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "alpha\nbeta\n", string(data))
}
