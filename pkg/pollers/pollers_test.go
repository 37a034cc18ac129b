/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pollers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/runner"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/services"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/httpclient"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

type fakeStore struct {
	mu        sync.Mutex
	metadata  map[string][]byte
	objects   []*model.InventoryObject
	tags      map[string][]string
	reports   []*model.DriftReport
	snapshots map[string]*model.Snapshot
	jobs      map[string]*model.JobRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		metadata:  map[string][]byte{},
		tags:      map[string][]string{},
		snapshots: map[string]*model.Snapshot{},
		jobs:      map[string]*model.JobRecord{},
	}
}

func (s *fakeStore) GetMetadata(_ context.Context, key string) (*model.AppMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.metadata[key]
	if !ok {
		return nil, commonerrors.NewNotFound("AppMetadata", key)
	}
	return &model.AppMetadata{Key: key, Value: value}, nil
}

func (s *fakeStore) SetMetadata(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
	return nil
}

func (s *fakeStore) InsertDriftReport(_ context.Context, report *model.DriftReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
	return nil
}

func (s *fakeStore) SelectPendingSnapshots(_ context.Context) ([]*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []*model.Snapshot
	for _, snap := range s.snapshots {
		if snap.Status == model.SnapshotPending {
			pending = append(pending, snap)
		}
	}
	return pending, nil
}

func (s *fakeStore) CountPendingSnapshots(_ context.Context) (int, error) {
	pending, _ := s.SelectPendingSnapshots(context.Background())
	return len(pending), nil
}

func (s *fakeStore) MarkSnapshotStatus(_ context.Context, id, status string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.snapshots[id]; ok {
		snap.Status = status
	}
	return nil
}

func (s *fakeStore) FindObjectsByTagName(_ context.Context, tagName string) ([]*model.InventoryObject, error) {
	var matched []*model.InventoryObject
	for _, obj := range s.objects {
		for _, tag := range s.tags[obj.Id] {
			if tag == tagName {
				matched = append(matched, obj)
				break
			}
		}
	}
	return matched, nil
}

func (s *fakeStore) GetObjectTagNames(_ context.Context, objectId string) ([]string, error) {
	return s.tags[objectId], nil
}

func (s *fakeStore) SelectInventoryObjects(_ context.Context, _ sqrl.Sqlizer, _, _ int) ([]*model.InventoryObject, error) {
	return s.objects, nil
}

// job store half for the runner
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

type fakeSender struct {
	mu       sync.Mutex
	subjects []string
	to       []string
}

func (f *fakeSender) Send(to []string, subject, _, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.to = to
	return true
}

func newTestManager(t *testing.T, store *fakeStore, sender *fakeSender, providerURL string) *Manager {
	root := t.TempDir()
	dir := filepath.Join(root, "vm-pool")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	script := filepath.Join(dir, "destroy.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho destroyed $INPUT_HOSTNAME\n"), 0o755))
	config := "scripts:\n  destroy:\n    command: ./destroy.sh\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, services.ConfigFile), []byte(config), 0o644))
	catalog := services.NewCatalog(root)
	require.NoError(t, catalog.Reload())

	m := NewManager(store, runner.NewRunner(store, catalog), sender)
	m.provider = &providerClient{http: httpclient.NewHttpClient(), endpoint: providerURL, apiKey: "test-key"}
	return m
}

func TestParseTTLTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want ttlSpec
	}{
		{
			name: "full set",
			tags: []string{"personal-instance", "pi-ttl:8", "pi-service:vm-pool", "pi-user:alice"},
			want: ttlSpec{TTLHours: 8, Service: "vm-pool", Owner: "alice"},
		},
		{
			name: "no ttl means never",
			tags: []string{"personal-instance", "pi-service:vm-pool"},
			want: ttlSpec{Service: "vm-pool"},
		},
		{
			name: "garbage ttl ignored",
			tags: []string{"pi-ttl:soon", "pi-service:vm-pool"},
			want: ttlSpec{Service: "vm-pool"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTTLTags(tt.tags))
		})
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Now().UTC()
	tests := []struct {
		name    string
		spec    ttlSpec
		created time.Time
		want    bool
	}{
		{"expired", ttlSpec{TTLHours: 1}, now.Add(-2 * time.Hour), true},
		{"not yet", ttlSpec{TTLHours: 4}, now.Add(-2 * time.Hour), false},
		{"zero never expires", ttlSpec{TTLHours: 0}, now.Add(-1000 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.expired(tt.created, now))
		})
	}
}

func TestCleanupDestroysExpiredInstance(t *testing.T) {
	store := newFakeStore()
	addPersonal := func(id, hostname string, age time.Duration, tags ...string) {
		store.objects = append(store.objects, &model.InventoryObject{
			Id:        id,
			Data:      json.MarshalSilently(map[string]string{"hostname": hostname}),
			CreatedAt: time.Now().UTC().Add(-age),
		})
		store.tags[id] = append([]string{common.TagPersonalInstance}, tags...)
	}
	addPersonal("expired", "vm-1", 3*time.Hour, "pi-ttl:2", "pi-service:vm-pool", "pi-user:alice")
	addPersonal("fresh", "vm-2", time.Hour, "pi-ttl:8", "pi-service:vm-pool")
	addPersonal("no-service", "vm-3", 3*time.Hour, "pi-ttl:2")
	addPersonal("no-ttl", "vm-4", 1000*time.Hour, "pi-service:vm-pool")

	m := newTestManager(t, store, &fakeSender{}, "")
	require.NoError(t, m.RunSystemTask(context.Background(), common.TaskPersonalCleanup))

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		for _, job := range store.jobs {
			if job.Status != common.JobRunning {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, "vm-pool", job.Service)
		assert.Equal(t, common.TTLCleanupUser, job.Username)
		var inputs map[string]string
		require.NoError(t, json.Unmarshal(job.Inputs, &inputs))
		assert.Equal(t, "vm-1", inputs["hostname"])
	}
}

func TestCompareDrift(t *testing.T) {
	obj := func(hostname, plan, region string) *model.InventoryObject {
		return &model.InventoryObject{
			Id:   hostname,
			Data: json.MarshalSilently(inventoryHost{Hostname: hostname, Plan: plan, Region: region}),
		}
	}
	instances := []providerInstance{
		{Hostname: "a", Plan: "small", Region: "us-east"},
		{Hostname: "b", Plan: "large", Region: "us-east"},
		{Hostname: "stray", Plan: "small", Region: "eu-west"},
	}
	objects := []*model.InventoryObject{
		obj("a", "small", "us-east"), // in sync
		obj("b", "small", "us-east"), // plan drifted
		obj("gone", "small", ""),     // missing from cloud
	}

	summary := compareDrift(instances, objects)
	assert.Equal(t, []string{"b"}, summary.Drifted)
	assert.Equal(t, []string{"gone"}, summary.Missing)
	assert.Equal(t, []string{"stray"}, summary.Unknown)
}

func TestDriftCheckPersistsAndNotifies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"instances":[{"hostname":"stray"}]}`))
	}))
	defer srv.Close()

	store := newFakeStore()
	store.metadata[common.MetaNotificationSettings] = json.MarshalSilently(&NotificationSettings{
		Enabled:    true,
		Recipients: []string{"ops@example.com"},
	})
	sender := &fakeSender{}
	m := newTestManager(t, store, sender, srv.URL)

	require.NoError(t, m.RunSystemTask(context.Background(), common.TaskDriftCheck))

	require.Len(t, store.reports, 1)
	assert.Equal(t, 1, store.reports[0].UnknownCount)
	require.Len(t, sender.subjects, 1)
	assert.Contains(t, sender.subjects[0], "1 untracked")
	assert.Equal(t, []string{"ops@example.com"}, sender.to)
}

func TestDriftNotificationSuppressedWhenClean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"instances":[]}`))
	}))
	defer srv.Close()

	store := newFakeStore()
	store.metadata[common.MetaNotificationSettings] = json.MarshalSilently(&NotificationSettings{
		Enabled:    true,
		Recipients: []string{"ops@example.com"},
	})
	sender := &fakeSender{}
	m := newTestManager(t, store, sender, srv.URL)

	require.NoError(t, m.RunSystemTask(context.Background(), common.TaskDriftCheck))
	require.Len(t, store.reports, 1)
	assert.Empty(t, sender.subjects)
}

func TestRefreshCostsCachesPlans(t *testing.T) {
	plans := `{"plans":[{"id":"small","hourly":0.05}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/plans", r.URL.Path)
		_, _ = w.Write([]byte(plans))
	}))
	defer srv.Close()

	store := newFakeStore()
	m := newTestManager(t, store, &fakeSender{}, srv.URL)

	require.NoError(t, m.RunSystemTask(context.Background(), common.TaskRefreshCosts))
	assert.Equal(t, plans, string(store.metadata[common.MetaPlansCache]))
}

func TestSyncSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("hostname") {
		case "done":
			_, _ = w.Write([]byte(`{"snapshots":[{"status":"complete"}]}`))
		case "broken":
			_, _ = w.Write([]byte(`{"snapshots":[{"status":"error"}]}`))
		default:
			_, _ = w.Write([]byte(`{"snapshots":[{"status":"in-progress"}]}`))
		}
	}))
	defer srv.Close()

	store := newFakeStore()
	for _, hostname := range []string{"done", "broken", "waiting"} {
		store.snapshots[hostname] = &model.Snapshot{Id: hostname, Hostname: hostname, Status: model.SnapshotPending}
	}
	m := newTestManager(t, store, &fakeSender{}, srv.URL)

	require.NoError(t, m.RunSystemTask(context.Background(), common.TaskSnapshotSync))
	assert.Equal(t, model.SnapshotSynced, store.snapshots["done"].Status)
	assert.Equal(t, model.SnapshotFailed, store.snapshots["broken"].Status)
	assert.Equal(t, model.SnapshotPending, store.snapshots["waiting"].Status)
}

func TestUnknownSystemTask(t *testing.T) {
	m := newTestManager(t, newFakeStore(), &fakeSender{}, "")
	assert.Error(t, m.RunSystemTask(context.Background(), "defragment"))
}

func TestSystemTaskSingleFlight(t *testing.T) {
	m := newTestManager(t, newFakeStore(), &fakeSender{}, "")
	require.True(t, m.tryAcquire(common.TaskDriftCheck))
	assert.True(t, m.IsSystemTaskRunning(common.TaskDriftCheck))
	// a second start is a silent no-op
	assert.NoError(t, m.RunSystemTask(context.Background(), common.TaskDriftCheck))
	m.release(common.TaskDriftCheck)
	assert.False(t, m.IsSystemTaskRunning(common.TaskDriftCheck))
}
