/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package runner

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
)

const SkipReasonNotFound = "Service not found"

type SkippedService struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// BulkResult reports a bulk dispatch. JobId is empty only when every
// requested name was invalid and no parent job exists.
type BulkResult struct {
	Succeeded []string         `json:"succeeded"`
	Skipped   []SkippedService `json:"skipped"`
	Total     int              `json:"total"`
	JobId     string           `json:"jobId,omitempty"`
}

// BulkDeploy deploys every known service in the list under one parent job.
func (r *Runner) BulkDeploy(ctx context.Context, serviceNames []string, caller Caller) (*BulkResult, error) {
	return r.bulk(ctx, serviceNames, caller, common.ActionBulkDeploy)
}

// BulkStop stops every known service in the list under one parent job.
func (r *Runner) BulkStop(ctx context.Context, serviceNames []string, caller Caller) (*BulkResult, error) {
	return r.bulk(ctx, serviceNames, caller, common.ActionBulkStop)
}

// bulk validates the requested names, dispatches a child per known service
// and settles the parent once every child finished. Unknown names become
// skipped entries; they never fail the parent.
func (r *Runner) bulk(ctx context.Context, serviceNames []string, caller Caller, action string) (*BulkResult, error) {
	result := &BulkResult{
		Succeeded: []string{},
		Skipped:   []SkippedService{},
		Total:     len(serviceNames),
	}
	var valid []string
	for _, name := range serviceNames {
		if r.catalog.Has(name) {
			valid = append(valid, name)
		} else {
			result.Skipped = append(result.Skipped, SkippedService{Name: name, Reason: SkipReasonNotFound})
		}
	}
	if len(valid) == 0 {
		return result, nil
	}

	parent := newJob(uuid.NewString())
	parent.Service = fmt.Sprintf("bulk (%d services)", len(valid))
	parent.Action = action
	parent.UserId = caller.UserId
	parent.Username = caller.Username
	if err := r.store.InsertJob(ctx, parent.Record()); err != nil {
		return nil, err
	}
	r.track(parent, nil)

	children := make([]*Job, 0, len(valid))
	for _, name := range valid {
		var child *Job
		var err error
		req := dispatchRequest{
			Service:     name,
			Caller:      caller,
			ParentJobId: parent.Id,
		}
		if action == common.ActionBulkDeploy {
			req.Action = common.ActionDeploy
			req.Script = "deploy"
		} else {
			req.Action = common.ActionStop
			req.Script = "stop"
		}
		child, err = r.dispatch(ctx, req)
		if err != nil {
			// dispatch rejected before spawn, e.g. the script is missing
			result.Skipped = append(result.Skipped, SkippedService{Name: name, Reason: err.Error()})
			continue
		}
		parent.AppendLine(fmt.Sprintf("dispatched %s for %s as job %s", req.Script, name, child.Id))
		result.Succeeded = append(result.Succeeded, name)
		children = append(children, child)
	}
	if len(children) == 0 {
		// every dispatch was rejected before spawn; the parent never had
		// children and must not surface as a job id
		parent.AppendLine("no service could be dispatched")
		parent.finish(common.JobFailed)
		if err := r.store.UpdateJob(ctx, parent.Record()); err != nil {
			klog.ErrorS(err, "failed to persist childless bulk parent", "job", parent.Id)
		}
		r.untrack(parent.Id)
		return result, nil
	}
	result.JobId = parent.Id

	go r.settleParent(parent, children)
	return result, nil
}

// settleParent waits for every child and marks the parent completed only when
// all children completed.
func (r *Runner) settleParent(parent *Job, children []*Job) {
	allCompleted := true
	for _, child := range children {
		<-child.Done()
		status := child.Status()
		parent.AppendLine(fmt.Sprintf("%s finished with status %s", child.Service, status))
		if status != common.JobCompleted {
			allCompleted = false
		}
	}
	status := common.JobCompleted
	if !allCompleted || len(children) == 0 {
		status = common.JobFailed
	}
	parent.finish(status)
	if err := r.store.UpdateJob(context.Background(), parent.Record()); err != nil {
		klog.ErrorS(err, "failed to persist bulk parent state", "job", parent.Id)
	}
	r.untrack(parent.Id)
}
