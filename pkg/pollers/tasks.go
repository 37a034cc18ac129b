/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pollers

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
)

// refreshCosts pulls the plan catalogue and caches it whole, so readers see
// either the old catalogue or the new one, never a mix.
func (m *Manager) refreshCosts(ctx context.Context) error {
	if !m.provider.configured() {
		klog.V(2).Infof("provider api not configured, skipping cost refresh")
		return nil
	}
	plans, err := m.provider.fetchPlans()
	if err != nil {
		return err
	}
	if err = m.store.SetMetadata(ctx, common.MetaPlansCache, plans); err != nil {
		return err
	}
	klog.Infof("plan catalogue refreshed, %d bytes", len(plans))
	return nil
}

// syncSnapshots reconciles pending snapshot rows against the provider. Rows
// the provider has no answer for stay pending and are retried next tick.
func (m *Manager) syncSnapshots(ctx context.Context) error {
	if !m.provider.configured() {
		klog.V(2).Infof("provider api not configured, skipping snapshot sync")
		return nil
	}
	pending, err := m.store.SelectPendingSnapshots(ctx)
	if err != nil {
		return err
	}
	for _, snap := range pending {
		status, err := m.provider.snapshotStatus(snap.Hostname)
		if err != nil {
			klog.ErrorS(err, "failed to query snapshot status", "hostname", snap.Hostname)
			continue
		}
		switch status {
		case "complete", "completed":
			err = m.store.MarkSnapshotStatus(ctx, snap.Id, model.SnapshotSynced, time.Now().UTC())
		case "error", "failed":
			err = m.store.MarkSnapshotStatus(ctx, snap.Id, model.SnapshotFailed, time.Now().UTC())
		default:
			continue
		}
		if err != nil {
			klog.ErrorS(err, "failed to mark snapshot", "hostname", snap.Hostname)
		}
	}
	return nil
}
