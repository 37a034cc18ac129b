/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

func writeService(t *testing.T, root, name, config string, extras map[string]string) {
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(config), 0o644))
	for file, content := range extras {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
	}
}

const grafanaConfig = `
description: dashboards
env:
  REGION: us-east
scripts:
  deploy:
    command: ./deploy.sh --profile default
    env:
      PROFILE: default
  stop:
    command: ./stop.sh
  destroy:
    command: ./destroy.sh --force
  reindex:
    command: ./scripts/reindex.sh
    class: stop
`

func TestCatalogReload(t *testing.T) {
	root := t.TempDir()
	writeService(t, root, "grafana", grafanaConfig, map[string]string{
		PersonalFile: "enabled: true\ndefault_ttl_hours: 8\nscript: deploy\n",
		OutputsFile: `outputs:
  - label: Dashboard
    kind: link
    value: https://grafana.example.com
  - label: Admin login
    kind: credential
    credential_type: password
    username: admin
    password: hunter2
    hostname: grafana-host
`,
	})
	writeService(t, root, "broken", "scripts: [not a map", nil)

	catalog := NewCatalog(root)
	require.NoError(t, catalog.Reload())

	// the unparsable directory is skipped, not fatal
	assert.False(t, catalog.Has("broken"))
	require.True(t, catalog.Has("grafana"))

	def, err := catalog.Get("grafana")
	require.NoError(t, err)
	assert.Equal(t, "dashboards", def.Description)
	assert.NotEmpty(t, def.ConfigHash)
	require.NotNil(t, def.Personal)
	assert.Equal(t, 8, def.Personal.DefaultTTLHours)
	require.Len(t, def.Outputs, 2)
	assert.Equal(t, OutputKindCredential, def.Outputs[1].Kind)

	_, err = catalog.Get("missing")
	require.Error(t, err)
	assert.True(t, commonerrors.IsNotFound(err))
	assert.Equal(t, commonerrors.ServiceNotFound, commonerrors.GetErrorCode(err))
}

func TestDefinitionArgv(t *testing.T) {
	root := t.TempDir()
	writeService(t, root, "grafana", grafanaConfig, nil)
	catalog := NewCatalog(root)
	require.NoError(t, catalog.Reload())
	def, err := catalog.Get("grafana")
	require.NoError(t, err)

	argv, err := def.Argv("deploy")
	require.NoError(t, err)
	assert.Equal(t, []string{"./deploy.sh", "--profile", "default"}, argv)

	_, err = def.Argv("nope")
	require.Error(t, err)
	assert.True(t, commonerrors.IsBadRequest(err))
}

func TestScriptClassAndEnv(t *testing.T) {
	root := t.TempDir()
	writeService(t, root, "grafana", grafanaConfig, nil)
	catalog := NewCatalog(root)
	require.NoError(t, catalog.Reload())
	def, err := catalog.Get("grafana")
	require.NoError(t, err)

	testCases := []struct {
		script string
		class  string
	}{
		{"deploy", common.AclDeploy},
		{"stop", common.AclStop},
		{"destroy", common.AclStop},
		{"reindex", common.AclStop}, // explicit class wins over the name
		{"unknown", common.AclDeploy},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.class, def.ScriptClass(tc.script), tc.script)
	}

	env := def.ScriptEnv("deploy")
	assert.Equal(t, "us-east", env["REGION"])
	assert.Equal(t, "default", env["PROFILE"])

	// script without overrides still sees the service env
	env = def.ScriptEnv("stop")
	assert.Equal(t, "us-east", env["REGION"])
}

func TestConfigHashTracksInstanceFile(t *testing.T) {
	root := t.TempDir()
	writeService(t, root, "grafana", grafanaConfig, map[string]string{InstanceFile: "plan: small\n"})
	catalog := NewCatalog(root)
	require.NoError(t, catalog.Reload())
	def, err := catalog.Get("grafana")
	require.NoError(t, err)
	first := def.ConfigHash

	require.NoError(t, os.WriteFile(
		filepath.Join(root, "grafana", InstanceFile), []byte("plan: large\n"), 0o644))
	require.NoError(t, catalog.Reload())
	def, err = catalog.Get("grafana")
	require.NoError(t, err)
	assert.NotEqual(t, first, def.ConfigHash)
}
