/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pollers

import (
	"context"
	"net/http"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/httpclient"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// HealthStatus is one probe result. The full set is persisted as a single
// metadata row every round, replace-on-write.
type HealthStatus struct {
	Target     string    `json:"target"`
	Healthy    bool      `json:"healthy"`
	StatusCode int       `json:"statusCode,omitempty"`
	LatencyMs  int64     `json:"latencyMs"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

func (m *Manager) checkHealth(ctx context.Context) error {
	targets := commonconfig.GetHealthTargets()
	if len(targets) == 0 {
		return nil
	}
	timeout := time.Duration(commonconfig.GetHealthTimeoutSecond()) * time.Second

	statuses := make([]HealthStatus, 0, len(targets))
	for _, target := range targets {
		statuses = append(statuses, m.probe(ctx, target, timeout))
	}
	if err := m.store.SetMetadata(ctx, common.MetaHealthStatus, json.MarshalSilently(statuses)); err != nil {
		return err
	}
	for _, st := range statuses {
		if !st.Healthy {
			klog.Warningf("health probe %s unhealthy: code=%d err=%s", st.Target, st.StatusCode, st.Error)
		}
	}
	return nil
}

func (m *Manager) probe(ctx context.Context, target string, timeout time.Duration) HealthStatus {
	status := HealthStatus{Target: target, CheckedAt: time.Now().UTC()}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := httpclient.BuildRequest(target, http.MethodGet, nil)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	start := time.Now()
	result, err := m.provider.http.Do(req.WithContext(probeCtx))
	status.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.StatusCode = result.StatusCode
	status.Healthy = result.IsSuccess()
	return status
}
