/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pollers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/runner"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// ttlSpec is what the personal-instance tags say about one object.
type ttlSpec struct {
	TTLHours int
	Service  string
	Owner    string
}

func parseTTLTags(tags []string) ttlSpec {
	var spec ttlSpec
	for _, tag := range tags {
		switch {
		case strings.HasPrefix(tag, common.TagTTLPrefix):
			if hours, err := strconv.Atoi(strings.TrimPrefix(tag, common.TagTTLPrefix)); err == nil {
				spec.TTLHours = hours
			}
		case strings.HasPrefix(tag, common.TagServicePrefix):
			spec.Service = strings.TrimPrefix(tag, common.TagServicePrefix)
		case strings.HasPrefix(tag, common.TagUserPrefix):
			spec.Owner = strings.TrimPrefix(tag, common.TagUserPrefix)
		}
	}
	return spec
}

// expired reports whether the instance outlived its TTL. A zero or absent TTL
// means it never expires.
func (s ttlSpec) expired(createdAt, now time.Time) bool {
	if s.TTLHours <= 0 {
		return false
	}
	return !now.Before(createdAt.Add(time.Duration(s.TTLHours) * time.Hour))
}

// cleanupPersonalInstances destroys expired personal instances. The runner's
// destroy dedup keeps a host that is already being torn down from getting a
// second job, so reruns of this task are harmless.
func (m *Manager) cleanupPersonalInstances(ctx context.Context) error {
	objects, err := m.store.FindObjectsByTagName(ctx, common.TagPersonalInstance)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, obj := range objects {
		tags, err := m.store.GetObjectTagNames(ctx, obj.Id)
		if err != nil {
			klog.ErrorS(err, "failed to load tags for personal instance", "object", obj.Id)
			continue
		}
		spec := parseTTLTags(tags)
		if !spec.expired(obj.CreatedAt, now) {
			continue
		}
		if spec.Service == "" {
			klog.Warningf("personal instance %s expired but has no %s tag, skipped", obj.Id, common.TagServicePrefix)
			continue
		}
		hostname := objectHostname(obj)
		if hostname == "" {
			klog.Warningf("personal instance %s expired but records no hostname, skipped", obj.Id)
			continue
		}
		job, err := m.runner.DestroyInstance(ctx, spec.Service, hostname, runner.TTLCleanupCaller)
		if err != nil {
			klog.ErrorS(err, "failed to destroy expired personal instance", "hostname", hostname)
			continue
		}
		if job != nil {
			klog.Infof("personal instance %s (owner %s) expired after %dh, destroy job %s dispatched",
				hostname, spec.Owner, spec.TTLHours, job.Id)
		}
	}
	return nil
}

func objectHostname(obj *model.InventoryObject) string {
	var data struct {
		Hostname string `json:"hostname"`
	}
	if err := json.Unmarshal(obj.Data, &data); err != nil {
		return ""
	}
	return data.Hostname
}
