/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package runner

import (
	"database/sql"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// Job is the live, runner-owned record of one script invocation. The store's
// JobRecord mirror is refreshed on every flush and becomes the source of
// truth once the job reaches a terminal status.
type Job struct {
	Id           string
	Service      string
	Action       string
	Script       string
	UserId       string
	Username     string
	Inputs       map[string]string
	ParentJobId  string
	DeploymentId string
	StartedAt    time.Time

	mu              sync.Mutex
	status          string
	cancelRequested bool
	finishedAt      time.Time
	output          []string
	unflushed       []string
	subscribers     map[chan string]struct{}
	done            chan struct{}
}

func newJob(id string) *Job {
	return &Job{
		Id:          id,
		StartedAt:   time.Now().UTC(),
		status:      common.JobRunning,
		subscribers: map[chan string]struct{}{},
		done:        make(chan struct{}),
	}
}

// Done is closed when the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) Status() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) IsRunning() bool {
	return j.Status() == common.JobRunning
}

// AppendLine adds one output line and fans it out to live subscribers.
// Subscribers that cannot keep up miss lines rather than block the reader.
func (j *Job) AppendLine(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = append(j.output, line)
	j.unflushed = append(j.unflushed, line)
	for ch := range j.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// takeUnflushed returns the lines accumulated since the previous call.
func (j *Job) takeUnflushed() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	lines := j.unflushed
	j.unflushed = nil
	return lines
}

// markCancelRequested records the cancel intent once. The job stays running
// until the process exits; supervise settles it as cancelled.
func (j *Job) markCancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != common.JobRunning || j.cancelRequested {
		return false
	}
	j.cancelRequested = true
	return true
}

func (j *Job) isCancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

// finish transitions the job to a terminal status once. Later calls are
// ignored so a cancel racing process exit settles on the first outcome.
func (j *Job) finish(status string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != common.JobRunning {
		return false
	}
	j.status = status
	j.finishedAt = time.Now().UTC()
	for ch := range j.subscribers {
		close(ch)
	}
	j.subscribers = map[chan string]struct{}{}
	close(j.done)
	return true
}

// Subscribe registers a live output channel. The channel is closed on
// terminal transition; the returned cancel detaches early.
func (j *Job) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 256)
	j.mu.Lock()
	if j.status != common.JobRunning {
		j.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	j.subscribers[ch] = struct{}{}
	j.mu.Unlock()
	return ch, func() {
		j.mu.Lock()
		if _, ok := j.subscribers[ch]; ok {
			delete(j.subscribers, ch)
			close(ch)
		}
		j.mu.Unlock()
	}
}

// Output returns a copy of the full output so far.
func (j *Job) Output() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.output))
	copy(out, j.output)
	return out
}

// Record snapshots the job into its persistent mirror.
func (j *Job) Record() *model.JobRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	record := &model.JobRecord{
		Id:           j.Id,
		Service:      j.Service,
		Action:       j.Action,
		Script:       j.Script,
		Status:       j.status,
		StartedAt:    j.StartedAt,
		Output:       pq.StringArray(append([]string{}, j.output...)),
		UserId:       sql.NullString{String: j.UserId, Valid: j.UserId != ""},
		Username:     j.Username,
		ParentJobId:  sql.NullString{String: j.ParentJobId, Valid: j.ParentJobId != ""},
		DeploymentId: sql.NullString{String: j.DeploymentId, Valid: j.DeploymentId != ""},
	}
	if !j.finishedAt.IsZero() {
		record.FinishedAt = sql.NullTime{Time: j.finishedAt, Valid: true}
	}
	if len(j.Inputs) > 0 {
		record.Inputs = json.MarshalSilently(j.Inputs)
	}
	return record
}
