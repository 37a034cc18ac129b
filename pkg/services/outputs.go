/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package services

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

const (
	OutputKindLink       = "link"
	OutputKindCredential = "credential"
)

// PortalOutput is one row of a service's service_outputs.yaml: a link or a
// credential surfaced on the portal after deployment. Credential outputs are
// filtered per user by the authority's credential access rules.
type PortalOutput struct {
	Label          string   `yaml:"label" json:"label"`
	Kind           string   `yaml:"kind" json:"kind"`
	Value          string   `yaml:"value" json:"value,omitempty"`
	Username       string   `yaml:"username" json:"username,omitempty"`
	Password       string   `yaml:"password" json:"-"`
	CredentialType string   `yaml:"credential_type" json:"credentialType,omitempty"`
	Hostname       string   `yaml:"hostname" json:"hostname,omitempty"`
	Tags           []string `yaml:"tags" json:"tags,omitempty"`
}

type outputsFile struct {
	Outputs []*PortalOutput `yaml:"outputs"`
}

func loadOutputs(dir string) []*PortalOutput {
	data, err := os.ReadFile(filepath.Join(dir, OutputsFile))
	if err != nil {
		return nil
	}
	var parsed outputsFile
	if err = yaml.Unmarshal(data, &parsed); err != nil {
		klog.ErrorS(err, "failed to parse service outputs", "dir", dir)
		return nil
	}
	for _, out := range parsed.Outputs {
		if out.Kind == "" {
			out.Kind = OutputKindLink
		}
	}
	return parsed.Outputs
}
