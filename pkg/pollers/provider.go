/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package pollers

import (
	"fmt"
	"strings"

	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/httpclient"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/json"
)

// providerClient is a thin wrapper over the cloud provider's read-only API.
// Only the endpoints the pollers need are surfaced.
type providerClient struct {
	http     httpclient.Interface
	endpoint string
	apiKey   string
}

func newProviderClient(http httpclient.Interface) *providerClient {
	return &providerClient{
		http:     http,
		endpoint: strings.TrimRight(commonconfig.GetProviderEndpoint(), "/"),
		apiKey:   commonconfig.GetProviderApiKey(),
	}
}

func (p *providerClient) configured() bool {
	return p.endpoint != "" && p.apiKey != ""
}

func (p *providerClient) get(path string) ([]byte, error) {
	result, err := p.http.Get(p.endpoint+path, "Authorization", "Bearer "+p.apiKey)
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() {
		return nil, fmt.Errorf("provider api %s failed: %s", path, result.String())
	}
	return result.Body, nil
}

// fetchPlans returns the raw plan catalogue, cached verbatim in app metadata.
func (p *providerClient) fetchPlans() ([]byte, error) {
	return p.get("/v1/plans")
}

type providerInstance struct {
	Hostname string `json:"hostname"`
	Label    string `json:"label"`
	Region   string `json:"region"`
	Plan     string `json:"plan"`
	Status   string `json:"status"`
}

func (p *providerClient) listInstances() ([]providerInstance, error) {
	body, err := p.get("/v1/instances")
	if err != nil {
		return nil, err
	}
	var payload struct {
		Instances []providerInstance `json:"instances"`
	}
	if err = json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode instance list: %w", err)
	}
	return payload.Instances, nil
}

// snapshotStatus returns the provider-side state of the most recent snapshot
// for a host, empty when the provider knows none.
func (p *providerClient) snapshotStatus(hostname string) (string, error) {
	body, err := p.get("/v1/snapshots?hostname=" + hostname)
	if err != nil {
		return "", err
	}
	var payload struct {
		Snapshots []struct {
			Status string `json:"status"`
		} `json:"snapshots"`
	}
	if err = json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode snapshot list: %w", err)
	}
	if len(payload.Snapshots) == 0 {
		return "", nil
	}
	return payload.Snapshots[0].Status, nil
}
