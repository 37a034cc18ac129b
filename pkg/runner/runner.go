/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/services"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// SystemService is the reserved service directory carrying manager-owned
// scripts: stop_instance, refresh_instances and the personal-instance destroy.
const SystemService = "system"

const orphanNote = "job terminated: manager restarted while the job was running"

// Caller identifies who a job runs for. System actors carry a synthetic
// username and no user id.
type Caller struct {
	UserId   string
	Username string
}

var (
	SchedulerCaller  = Caller{Username: common.SchedulerUser}
	TTLCleanupCaller = Caller{Username: common.TTLCleanupUser}
)

// JobStore is the slice of the store the runner writes through. Satisfied by
// the database client.
type JobStore interface {
	InsertJob(ctx context.Context, job *model.JobRecord) error
	UpdateJob(ctx context.Context, job *model.JobRecord) error
	AppendJobOutput(ctx context.Context, jobId string, lines []string) error
	GetJob(ctx context.Context, jobId string) (*model.JobRecord, error)
	FailOrphanedJobs(ctx context.Context, note string) (int64, error)
}

var _ JobStore = (dbclient.Interface)(nil)

// Runner owns every live job. Jobs leave the map on terminal transition, at
// which point their persisted JobRecord becomes the source of truth.
type Runner struct {
	store   JobStore
	catalog *services.Catalog

	mu    sync.RWMutex
	jobs  map[string]*Job
	procs map[string]*os.Process

	flushInterval time.Duration
	stopGrace     time.Duration
}

func NewRunner(store JobStore, catalog *services.Catalog) *Runner {
	return &Runner{
		store:         store,
		catalog:       catalog,
		jobs:          map[string]*Job{},
		procs:         map[string]*os.Process{},
		flushInterval: time.Duration(commonconfig.GetRunnerFlushSecond()) * time.Second,
		stopGrace:     time.Duration(commonconfig.GetRunnerStopGraceSecond()) * time.Second,
	}
}

// FailOrphans marks every job row left running by a previous process as
// failed. Must run once at startup before any dispatch.
func (r *Runner) FailOrphans(ctx context.Context) error {
	n, err := r.store.FailOrphanedJobs(ctx, orphanNote)
	if err != nil {
		return err
	}
	if n > 0 {
		klog.Infof("marked %d orphaned jobs as failed", n)
	}
	return nil
}

// Deploy dispatches the service's deploy script.
func (r *Runner) Deploy(ctx context.Context, serviceName string, caller Caller, inputs map[string]string) (*Job, error) {
	return r.dispatch(ctx, dispatchRequest{
		Service: serviceName,
		Action:  common.ActionDeploy,
		Script:  "deploy",
		Caller:  caller,
		Inputs:  inputs,
	})
}

// DeployStep dispatches a deploy on behalf of a blueprint deployment; the
// job carries the deployment id for traceability.
func (r *Runner) DeployStep(ctx context.Context, serviceName string, caller Caller, inputs map[string]string, deploymentId string) (*Job, error) {
	return r.dispatch(ctx, dispatchRequest{
		Service:      serviceName,
		Action:       common.ActionDeploy,
		Script:       "deploy",
		Caller:       caller,
		Inputs:       inputs,
		DeploymentId: deploymentId,
	})
}

// RunScript dispatches an arbitrary named script of the service.
func (r *Runner) RunScript(ctx context.Context, serviceName, script string, inputs map[string]string, caller Caller) (*Job, error) {
	return r.dispatch(ctx, dispatchRequest{
		Service: serviceName,
		Action:  common.ActionRunScript,
		Script:  script,
		Caller:  caller,
		Inputs:  inputs,
	})
}

// Stop dispatches the service's stop script.
func (r *Runner) Stop(ctx context.Context, serviceName string, caller Caller) (*Job, error) {
	return r.dispatch(ctx, dispatchRequest{
		Service: serviceName,
		Action:  common.ActionStop,
		Script:  "stop",
		Caller:  caller,
	})
}

// StopInstance dispatches the reserved system script against one instance.
func (r *Runner) StopInstance(ctx context.Context, label, region string, caller Caller) (*Job, error) {
	return r.dispatch(ctx, dispatchRequest{
		Service: SystemService,
		Action:  common.ActionStopHost,
		Script:  "stop_instance",
		Caller:  caller,
		Inputs:  map[string]string{"label": label, "region": region},
	})
}

// RefreshInstances dispatches the provider inventory refresh.
func (r *Runner) RefreshInstances(ctx context.Context, caller Caller) (*Job, error) {
	return r.dispatch(ctx, dispatchRequest{
		Service: SystemService,
		Action:  common.ActionRefresh,
		Script:  "refresh_instances",
		Caller:  caller,
	})
}

// DestroyInstance dispatches the destroy script of the owning service for one
// hostname, skipping silently when an identical destroy is already running.
// Returns (nil, nil) on a dedup skip.
func (r *Runner) DestroyInstance(ctx context.Context, serviceName, hostname string, caller Caller) (*Job, error) {
	if r.HasRunningDestroy(serviceName, hostname) {
		klog.Infof("skipping destroy of %s/%s, an identical job is already running", serviceName, hostname)
		return nil, nil
	}
	return r.dispatch(ctx, dispatchRequest{
		Service: serviceName,
		Action:  common.ActionRunScript,
		Script:  "destroy",
		Caller:  caller,
		Inputs:  map[string]string{"hostname": hostname},
	})
}

// Rerun reconstructs a past job's invocation and dispatches it as a fresh,
// unrelated job under the requesting caller.
func (r *Runner) Rerun(ctx context.Context, jobId string, caller Caller) (*Job, error) {
	record, err := r.store.GetJob(ctx, jobId)
	if err != nil {
		return nil, err
	}
	var inputs map[string]string
	if len(record.Inputs) > 0 {
		if err = json.Unmarshal(record.Inputs, &inputs); err != nil {
			return nil, commonerrors.NewInternalError(
				fmt.Sprintf("failed to decode stored inputs of job %s: %v", jobId, err))
		}
	}
	script := record.Script
	if script == "" {
		script = scriptForAction(record.Action)
	}
	return r.dispatch(ctx, dispatchRequest{
		Service: record.Service,
		Action:  record.Action,
		Script:  script,
		Caller:  caller,
		Inputs:  inputs,
	})
}

func scriptForAction(action string) string {
	switch action {
	case common.ActionStop:
		return "stop"
	default:
		return "deploy"
	}
}

// GetJob returns the live job when present, falling back to the persisted
// record wrapped read-only.
func (r *Runner) GetJob(ctx context.Context, jobId string) (*Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[jobId]
	r.mu.RUnlock()
	if ok {
		return job, nil
	}
	record, err := r.store.GetJob(ctx, jobId)
	if err != nil {
		return nil, err
	}
	return jobFromRecord(record), nil
}

// GetLiveJob returns the live job only, or nil when it already finished.
func (r *Runner) GetLiveJob(jobId string) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[jobId]
}

// HasRunningServiceJob reports a live job on the service running the named
// script, used by the scheduler's skip-if-running policy. An empty script
// matches any job of the service.
func (r *Runner) HasRunningServiceJob(serviceName, script string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		if job.Service == serviceName && (script == "" || job.Script == script) && job.IsRunning() {
			return true
		}
	}
	return false
}

// HasRunningScriptJob reports a live job running the named script. A
// non-empty objectId narrows the match to jobs carrying that object input.
func (r *Runner) HasRunningScriptJob(script, objectId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		if job.Script != script || !job.IsRunning() {
			continue
		}
		if objectId == "" || job.Inputs["object_id"] == objectId {
			return true
		}
	}
	return false
}

// HasRunningDestroy reports a live destroy of the given hostname on the
// service.
func (r *Runner) HasRunningDestroy(serviceName, hostname string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, job := range r.jobs {
		if job.Service == serviceName && job.Script == "destroy" &&
			job.Inputs["hostname"] == hostname && job.IsRunning() {
			return true
		}
	}
	return false
}

// Cancel terminates a running job: SIGTERM to the process group, a grace
// period, then SIGKILL. The job transitions to cancelled only after the
// process exits, in supervise.
func (r *Runner) Cancel(ctx context.Context, jobId string) error {
	r.mu.RLock()
	job, ok := r.jobs[jobId]
	proc := r.procs[jobId]
	r.mu.RUnlock()
	if !ok || !job.IsRunning() {
		return commonerrors.NewConflict(fmt.Sprintf("job %s is not running", jobId))
	}
	if !job.markCancelRequested() {
		return commonerrors.NewConflict(fmt.Sprintf("job %s is already being cancelled", jobId))
	}
	job.AppendLine("job cancelled by request")
	if proc == nil {
		// no process backs this job (bulk parent); settle it directly
		job.finish(common.JobCancelled)
		return nil
	}
	go terminate(proc, r.stopGrace)
	return nil
}

// terminate signals the whole process group so the script's children die with
// it; the group exists because spawn starts commands with Setpgid.
func terminate(proc *os.Process, grace time.Duration) {
	if err := syscall.Kill(-proc.Pid, syscall.SIGTERM); err != nil {
		return
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	<-timer.C
	_ = syscall.Kill(-proc.Pid, syscall.SIGKILL)
}

type dispatchRequest struct {
	Service      string
	Action       string
	Script       string
	Caller       Caller
	Inputs       map[string]string
	ParentJobId  string
	DeploymentId string
}

// dispatch allocates a job, persists it in the running state and spawns the
// script process. It returns as soon as the process has started; streaming,
// flushing and the terminal transition happen in background goroutines.
func (r *Runner) dispatch(ctx context.Context, req dispatchRequest) (*Job, error) {
	def, err := r.catalog.Get(req.Service)
	if err != nil {
		return nil, err
	}
	argv, err := def.Argv(req.Script)
	if err != nil {
		return nil, err
	}

	job := newJob(uuid.NewString())
	job.Service = req.Service
	job.Action = req.Action
	job.Script = req.Script
	job.UserId = req.Caller.UserId
	job.Username = req.Caller.Username
	job.Inputs = req.Inputs
	job.ParentJobId = req.ParentJobId
	job.DeploymentId = req.DeploymentId

	if err = r.store.InsertJob(ctx, job.Record()); err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = def.Dir
	cmd.Env = buildEnv(def.ScriptEnv(req.Script), req.Inputs)
	// own process group, so Cancel can signal the script and its children
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err = r.spawn(job, cmd); err != nil {
		// spawn failure: the job fails immediately with the error as its last line
		job.AppendLine(err.Error())
		job.finish(common.JobFailed)
		if updateErr := r.store.UpdateJob(context.Background(), job.Record()); updateErr != nil {
			klog.ErrorS(updateErr, "failed to persist spawn failure", "job", job.Id)
		}
	}
	return job, nil
}

func (r *Runner) spawn(job *Job, cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err = cmd.Start(); err != nil {
		return err
	}
	r.track(job, cmd.Process)
	go r.supervise(job, cmd, stdout, stderr)
	return nil
}

func (r *Runner) track(job *Job, proc *os.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.Id] = job
	r.procs[job.Id] = proc
}

func (r *Runner) untrack(jobId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobId)
	delete(r.procs, jobId)
}

// supervise streams output, flushes it on a cadence and settles the terminal
// status from the process exit code.
func (r *Runner) supervise(job *Job, cmd *exec.Cmd, stdout, stderr io.Reader) {
	flushDone := make(chan struct{})
	go r.flushLoop(job, flushDone)

	streamOutput(job, stdout, stderr)
	waitErr := cmd.Wait()
	close(flushDone)

	status := common.JobCompleted
	switch {
	case job.isCancelRequested():
		status = common.JobCancelled
	case waitErr != nil:
		status = common.JobFailed
	}
	if job.finish(status) && status == common.JobFailed {
		job.AppendLine(waitErr.Error())
	}
	if err := r.store.UpdateJob(context.Background(), job.Record()); err != nil {
		klog.ErrorS(err, "failed to persist terminal job state", "job", job.Id)
	}
	r.untrack(job.Id)
	klog.Infof("job %s (%s %s) finished with status %s", job.Id, job.Service, job.Script, job.Status())
}

func (r *Runner) flushLoop(job *Job, done <-chan struct{}) {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if lines := job.takeUnflushed(); len(lines) > 0 {
				if err := r.store.AppendJobOutput(context.Background(), job.Id, lines); err != nil {
					klog.ErrorS(err, "failed to flush job output", "job", job.Id)
				}
			}
		}
	}
}

// buildEnv layers the service env and the job inputs over the inherited
// process environment. Inputs surface as INPUT_<NAME> variables.
func buildEnv(overlay, inputs map[string]string) []string {
	env := os.Environ()
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	for k, v := range inputs {
		env = append(env, "INPUT_"+strings.ToUpper(k)+"="+v)
	}
	return env
}

func jobFromRecord(record *model.JobRecord) *Job {
	job := &Job{
		Id:        record.Id,
		Service:   record.Service,
		Action:    record.Action,
		Script:    record.Script,
		Username:  record.Username,
		StartedAt: record.StartedAt,
		status:    record.Status,
		output:    append([]string{}, record.Output...),
		done:      make(chan struct{}),
	}
	if record.Status != common.JobRunning {
		close(job.done)
	}
	if record.UserId.Valid {
		job.UserId = record.UserId.String
	}
	if record.ParentJobId.Valid {
		job.ParentJobId = record.ParentJobId.String
	}
	if record.DeploymentId.Valid {
		job.DeploymentId = record.DeploymentId.String
	}
	if record.FinishedAt.Valid {
		job.finishedAt = record.FinishedAt.Time
	}
	if len(record.Inputs) > 0 {
		_ = json.Unmarshal(record.Inputs, &job.Inputs)
	}
	return job
}
