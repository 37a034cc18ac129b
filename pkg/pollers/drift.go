/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pollers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// NotificationSettings controls drift alert mail. Stored as a single
// app_metadata row so operators can edit it through the API.
type NotificationSettings struct {
	Enabled       bool     `json:"enabled"`
	Recipients    []string `json:"recipients"`
	NotifyOnClean bool     `json:"notifyOnClean"`
}

type driftSummary struct {
	Drifted []string `json:"drifted,omitempty"`
	Missing []string `json:"missing,omitempty"`
	Unknown []string `json:"unknown,omitempty"`
}

type inventoryHost struct {
	Hostname string `json:"hostname"`
	Plan     string `json:"plan"`
	Region   string `json:"region"`
}

const maxDriftObjects = 10000

// checkDrift compares the provider's live instance list against the inventory
// and persists one report per run. Hosts present on both sides drift when a
// recorded plan or region no longer matches.
func (m *Manager) checkDrift(ctx context.Context) error {
	if !m.provider.configured() {
		klog.V(2).Infof("provider api not configured, skipping drift check")
		return nil
	}
	instances, err := m.provider.listInstances()
	if err != nil {
		return err
	}
	objects, err := m.store.SelectInventoryObjects(ctx, nil, maxDriftObjects, 0)
	if err != nil {
		return err
	}

	summary := compareDrift(instances, objects)
	report := &model.DriftReport{
		Id:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		DriftedCount: len(summary.Drifted),
		MissingCount: len(summary.Missing),
		UnknownCount: len(summary.Unknown),
		Summary:      json.MarshalSilently(summary),
	}
	if err = m.store.InsertDriftReport(ctx, report); err != nil {
		return err
	}
	m.notifyDrift(ctx, report, summary)
	return nil
}

func compareDrift(instances []providerInstance, objects []*model.InventoryObject) *driftSummary {
	cloud := make(map[string]providerInstance, len(instances))
	for _, inst := range instances {
		if inst.Hostname != "" {
			cloud[inst.Hostname] = inst
		}
	}

	summary := &driftSummary{}
	tracked := map[string]bool{}
	for _, obj := range objects {
		var host inventoryHost
		if err := json.Unmarshal(obj.Data, &host); err != nil || host.Hostname == "" {
			continue
		}
		tracked[host.Hostname] = true
		inst, ok := cloud[host.Hostname]
		if !ok {
			summary.Missing = append(summary.Missing, host.Hostname)
			continue
		}
		if (host.Plan != "" && inst.Plan != host.Plan) ||
			(host.Region != "" && inst.Region != host.Region) {
			summary.Drifted = append(summary.Drifted, host.Hostname)
		}
	}
	for _, inst := range instances {
		if inst.Hostname != "" && !tracked[inst.Hostname] {
			summary.Unknown = append(summary.Unknown, inst.Hostname)
		}
	}
	return summary
}

// notifyDrift is fire-and-forget: a missing or malformed settings row simply
// means nobody gets mail.
func (m *Manager) notifyDrift(ctx context.Context, report *model.DriftReport, summary *driftSummary) {
	settings, err := m.notificationSettings(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to load drift notification settings")
		return
	}
	if settings == nil || !settings.Enabled || len(settings.Recipients) == 0 {
		return
	}
	total := report.DriftedCount + report.MissingCount + report.UnknownCount
	if total == 0 && !settings.NotifyOnClean {
		return
	}
	subject := fmt.Sprintf("Drift report: %d drifted, %d missing, %d untracked",
		report.DriftedCount, report.MissingCount, report.UnknownCount)
	m.sender.Send(settings.Recipients, subject, driftHtml(summary), driftText(summary))
}

func (m *Manager) notificationSettings(ctx context.Context) (*NotificationSettings, error) {
	meta, err := m.store.GetMetadata(ctx, common.MetaNotificationSettings)
	if commonerrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	settings := &NotificationSettings{}
	if err = json.Unmarshal(meta.Value, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func driftText(summary *driftSummary) string {
	return fmt.Sprintf("Drifted: %v\nMissing from cloud: %v\nUntracked in inventory: %v\n",
		summary.Drifted, summary.Missing, summary.Unknown)
}

func driftHtml(summary *driftSummary) string {
	return fmt.Sprintf("<p>Drifted: %v</p><p>Missing from cloud: %v</p><p>Untracked in inventory: %v</p>",
		summary.Drifted, summary.Missing, summary.Unknown)
}
