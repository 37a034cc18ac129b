/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pollers

import (
	"context"
	"fmt"
	"sync"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	dbclient "github.com/AMD-AIG-AIMA/cloudlab/pkg/database/client"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/mailer"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/runner"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/channel"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/httpclient"
)

// Store is the slice of the database client the pollers touch.
type Store interface {
	GetMetadata(ctx context.Context, key string) (*model.AppMetadata, error)
	SetMetadata(ctx context.Context, key string, value []byte) error
	InsertDriftReport(ctx context.Context, report *model.DriftReport) error
	SelectPendingSnapshots(ctx context.Context) ([]*model.Snapshot, error)
	CountPendingSnapshots(ctx context.Context) (int, error)
	MarkSnapshotStatus(ctx context.Context, id, status string, syncedAt time.Time) error
	FindObjectsByTagName(ctx context.Context, tagName string) ([]*model.InventoryObject, error)
	GetObjectTagNames(ctx context.Context, objectId string) ([]string, error)
	SelectInventoryObjects(ctx context.Context, query sqrl.Sqlizer, limit, offset int) ([]*model.InventoryObject, error)
}

var _ Store = (dbclient.Interface)(nil)

// Manager owns the background loops and doubles as the scheduler's system
// task registry. Each named task runs at most once at a time.
type Manager struct {
	store    Store
	runner   *runner.Runner
	sender   mailer.Sender
	provider *providerClient

	mu      sync.Mutex
	running map[string]bool

	tombs []*channel.Tomb
}

func NewManager(store Store, r *runner.Runner, sender mailer.Sender) *Manager {
	return &Manager{
		store:    store,
		runner:   r,
		sender:   sender,
		provider: newProviderClient(httpclient.NewHttpClient()),
		running:  map[string]bool{},
	}
}

// RunSystemTask executes one registry entry synchronously. Unknown names are
// an error so a typo in a schedule row surfaces in the log instead of firing
// nothing forever.
func (m *Manager) RunSystemTask(ctx context.Context, name string) error {
	if !m.tryAcquire(name) {
		klog.V(2).Infof("system task %s already running, skipped", name)
		return nil
	}
	defer m.release(name)

	switch name {
	case common.TaskRefreshInstances:
		_, err := m.runner.RefreshInstances(ctx, runner.SchedulerCaller)
		return err
	case common.TaskRefreshCosts:
		return m.refreshCosts(ctx)
	case common.TaskPersonalCleanup:
		return m.cleanupPersonalInstances(ctx)
	case common.TaskSnapshotSync:
		return m.syncSnapshots(ctx)
	case common.TaskDriftCheck:
		return m.checkDrift(ctx)
	case common.TaskHealthCheck:
		return m.checkHealth(ctx)
	}
	return fmt.Errorf("unknown system task %q", name)
}

func (m *Manager) IsSystemTaskRunning(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[name]
}

func (m *Manager) tryAcquire(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[name] {
		return false
	}
	m.running[name] = true
	return true
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, name)
}

// Start launches the periodic loops. The TTL cleanup has no loop here; it
// fires through its seeded schedule.
func (m *Manager) Start() {
	m.spawn(m.costLoop)
	m.spawn(m.healthLoop)
	m.spawn(m.driftLoop)
	m.spawn(m.snapshotLoop)
}

// Stop signals every loop and waits for each to exit.
func (m *Manager) Stop() {
	for _, t := range m.tombs {
		t.Stop()
	}
}

func (m *Manager) spawn(loop func(t *channel.Tomb)) {
	t := channel.NewTomb()
	m.tombs = append(m.tombs, t)
	go loop(t)
}

// costLoop seeds the plan cache on startup when empty, then refreshes every
// few hours of wall clock.
func (m *Manager) costLoop(t *channel.Tomb) {
	defer t.Done()
	if m.plansCacheEmpty() {
		m.runLogged(common.TaskRefreshCosts)
	}
	interval := time.Duration(commonconfig.GetCostRefreshHour()) * time.Hour
	m.every(t, interval, common.TaskRefreshCosts)
}

func (m *Manager) healthLoop(t *channel.Tomb) {
	defer t.Done()
	interval := time.Duration(commonconfig.GetHealthIntervalSecond()) * time.Second
	m.every(t, interval, common.TaskHealthCheck)
}

func (m *Manager) driftLoop(t *channel.Tomb) {
	defer t.Done()
	interval := time.Duration(commonconfig.GetDriftIntervalSecond()) * time.Second
	m.every(t, interval, common.TaskDriftCheck)
}

// snapshotLoop only dispatches the sync when something is pending.
func (m *Manager) snapshotLoop(t *channel.Tomb) {
	defer t.Done()
	interval := time.Duration(commonconfig.GetSnapshotPollSecond()) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Stopping():
			return
		case <-ticker.C:
		}
		pending, err := m.store.CountPendingSnapshots(context.Background())
		if err != nil {
			klog.ErrorS(err, "failed to count pending snapshots")
			continue
		}
		if pending == 0 {
			continue
		}
		m.runLogged(common.TaskSnapshotSync)
	}
}

func (m *Manager) every(t *channel.Tomb, interval time.Duration, task string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Stopping():
			return
		case <-ticker.C:
		}
		m.runLogged(task)
	}
}

// runLogged is the poller boundary: failures are logged and the loop goes on.
func (m *Manager) runLogged(task string) {
	if err := m.RunSystemTask(context.Background(), task); err != nil {
		klog.ErrorS(err, "poller run failed", "task", task)
	}
}

func (m *Manager) plansCacheEmpty() bool {
	meta, err := m.store.GetMetadata(context.Background(), common.MetaPlansCache)
	if err != nil {
		return true
	}
	return len(meta.Value) == 0
}
