/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package blueprint

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/runner"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/services"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

const defaultPollInterval = time.Second

// Step is one entry of a blueprint's ordered service list.
type Step struct {
	Name   string            `json:"name"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// Store is the slice of the database client the orchestrator needs.
type Store interface {
	GetBlueprint(ctx context.Context, id string) (*model.Blueprint, error)
	InsertBlueprintDeployment(ctx context.Context, dep *model.BlueprintDeployment) error
	UpdateBlueprintDeployment(ctx context.Context, dep *model.BlueprintDeployment) error
	GetBlueprintDeployment(ctx context.Context, id string) (*model.BlueprintDeployment, error)
}

// Orchestrator deploys blueprints: an ordered list of services, each step
// waiting for the previous deploy to finish before starting.
type Orchestrator struct {
	store        Store
	runner       *runner.Runner
	catalog      *services.Catalog
	pollInterval time.Duration
}

func NewOrchestrator(store Store, r *runner.Runner, catalog *services.Catalog) *Orchestrator {
	return &Orchestrator{
		store:        store,
		runner:       r,
		catalog:      catalog,
		pollInterval: defaultPollInterval,
	}
}

// Deploy creates a pending deployment for the blueprint and starts the run in
// the background. The returned record is the pending snapshot.
func (o *Orchestrator) Deploy(ctx context.Context, blueprintId string, caller runner.Caller) (*model.BlueprintDeployment, error) {
	bp, err := o.store.GetBlueprint(ctx, blueprintId)
	if err != nil {
		return nil, err
	}
	var steps []Step
	if err = json.Unmarshal(bp.Services, &steps); err != nil {
		return nil, err
	}

	progress := make(map[string]string, len(steps))
	for _, step := range steps {
		progress[step.Name] = common.StepPending
	}
	dep := &model.BlueprintDeployment{
		Id:          uuid.NewString(),
		BlueprintId: bp.Id,
		Status:      common.DeploymentPending,
		Progress:    json.MarshalSilently(progress),
		DeployedBy:  caller.Username,
	}
	if err = o.store.InsertBlueprintDeployment(ctx, dep); err != nil {
		return nil, err
	}

	go o.run(dep, steps, progress, caller)
	return dep, nil
}

// run walks the steps in declaration order. A missing service or a failed
// deploy marks that step failed and ends the walk with a partial deployment;
// only a full walk of completed steps yields the completed status.
func (o *Orchestrator) run(dep *model.BlueprintDeployment, steps []Step, progress map[string]string, caller runner.Caller) {
	ctx := context.Background()
	dep.Status = common.DeploymentRunning
	dep.StartedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	o.persist(ctx, dep, progress)

	final := common.DeploymentCompleted
	for _, step := range steps {
		progress[step.Name] = common.StepRunning
		o.persist(ctx, dep, progress)

		if !o.catalog.Has(step.Name) {
			klog.Errorf("blueprint deployment %s: service %s not found", dep.Id, step.Name)
			progress[step.Name] = common.StepFailed
			final = common.DeploymentPartial
			break
		}
		job, err := o.runner.DeployStep(ctx, step.Name, caller, step.Inputs, dep.Id)
		if err != nil {
			klog.ErrorS(err, "blueprint deployment step dispatch failed",
				"deployment", dep.Id, "service", step.Name)
			progress[step.Name] = common.StepFailed
			final = common.DeploymentFailed
			break
		}
		if o.waitForJob(job) == common.JobCompleted {
			progress[step.Name] = common.StepCompleted
			o.persist(ctx, dep, progress)
			continue
		}
		progress[step.Name] = common.StepFailed
		final = common.DeploymentPartial
		break
	}

	dep.Status = final
	dep.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	o.persist(ctx, dep, progress)
	klog.Infof("blueprint deployment %s finished with status %s", dep.Id, dep.Status)
}

// waitForJob polls the live job until it leaves the running state.
func (o *Orchestrator) waitForJob(job *runner.Job) string {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		if status := job.Status(); status != common.JobRunning {
			return status
		}
	}
	return common.JobFailed
}

func (o *Orchestrator) persist(ctx context.Context, dep *model.BlueprintDeployment, progress map[string]string) {
	dep.Progress = json.MarshalSilently(progress)
	if err := o.store.UpdateBlueprintDeployment(ctx, dep); err != nil {
		klog.ErrorS(err, "failed to persist blueprint deployment", "deployment", dep.Id)
	}
}
