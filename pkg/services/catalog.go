/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

const (
	ConfigFile   = "config.yaml"
	InstanceFile = "instance.yaml"
	PersonalFile = "personal.yaml"
	OutputsFile  = "service_outputs.yaml"
)

// Script is one named entry point of a service. Class decides which
// permission guards it: stop-class scripts need the stop permission,
// everything else needs deploy.
type Script struct {
	Name    string            `yaml:"-"`
	Command string            `yaml:"command"`
	Class   string            `yaml:"class"`
	Env     map[string]string `yaml:"env"`
}

type PersonalSpec struct {
	Enabled         bool   `yaml:"enabled"`
	DefaultTTLHours int    `yaml:"default_ttl_hours"`
	Script          string `yaml:"script"`
}

type serviceConfig struct {
	Description string             `yaml:"description"`
	Env         map[string]string  `yaml:"env"`
	Scripts     map[string]*Script `yaml:"scripts"`
}

// Definition is one service directory parsed into memory. The raw YAML files
// stay on disk for the scripts themselves; the manager only needs the command
// lines, env overlays and portal outputs.
type Definition struct {
	Name        string
	Dir         string
	Description string
	Env         map[string]string
	Scripts     map[string]*Script
	Personal    *PersonalSpec
	Outputs     []*PortalOutput
	ConfigHash  string
}

// Argv assembles the explicit argument vector for a script. The command line
// is tokenized, never handed to a shell.
func (d *Definition) Argv(scriptName string) ([]string, error) {
	script, ok := d.Scripts[scriptName]
	if !ok {
		return nil, commonerrors.NewBadRequest(
			fmt.Sprintf("service %s has no script %s", d.Name, scriptName))
	}
	argv, err := shlex.Split(script.Command)
	if err != nil {
		return nil, commonerrors.NewBadRequest(
			fmt.Sprintf("invalid command for script %s: %v", scriptName, err))
	}
	if len(argv) == 0 {
		return nil, commonerrors.NewBadRequest(
			fmt.Sprintf("empty command for script %s", scriptName))
	}
	return argv, nil
}

// ScriptEnv merges the service-level env with the script's own overrides.
func (d *Definition) ScriptEnv(scriptName string) map[string]string {
	merged := make(map[string]string, len(d.Env))
	for k, v := range d.Env {
		merged[k] = v
	}
	if script, ok := d.Scripts[scriptName]; ok {
		for k, v := range script.Env {
			merged[k] = v
		}
	}
	return merged
}

// ScriptClass returns the permission class of a script: the explicit class
// when configured, else stop for the conventional stop/destroy names and
// deploy for everything else.
func (d *Definition) ScriptClass(scriptName string) string {
	if script, ok := d.Scripts[scriptName]; ok && script.Class != "" {
		return script.Class
	}
	switch scriptName {
	case "stop", "destroy":
		return common.AclStop
	}
	return common.AclDeploy
}

func (d *Definition) HasScript(scriptName string) bool {
	_, ok := d.Scripts[scriptName]
	return ok
}

// Catalog holds every service definition found under the services directory.
// Reload replaces the whole map atomically; readers never see a partial scan.
type Catalog struct {
	dir      string
	mu       sync.RWMutex
	services map[string]*Definition
}

func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir, services: map[string]*Definition{}}
}

// Reload rescans the services directory. A directory that fails to parse is
// logged and skipped, it does not poison the rest of the catalog.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read services dir %s: %w", c.dir, err)
	}
	services := make(map[string]*Definition, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		def, err := c.loadService(entry.Name())
		if err != nil {
			klog.ErrorS(err, "skipping unparsable service", "service", entry.Name())
			continue
		}
		services[def.Name] = def
	}
	c.mu.Lock()
	c.services = services
	c.mu.Unlock()
	klog.Infof("loaded %d services from %s", len(services), c.dir)
	return nil
}

func (c *Catalog) loadService(name string) (*Definition, error) {
	dir := filepath.Join(c.dir, name)
	data, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil {
		return nil, err
	}
	var cfg serviceConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	for scriptName, script := range cfg.Scripts {
		if script == nil {
			return nil, fmt.Errorf("script %s has no body", scriptName)
		}
		script.Name = scriptName
	}
	def := &Definition{
		Name:        name,
		Dir:         dir,
		Description: cfg.Description,
		Env:         cfg.Env,
		Scripts:     cfg.Scripts,
		ConfigHash:  configHash(dir, data),
	}
	if def.Scripts == nil {
		def.Scripts = map[string]*Script{}
	}
	def.Personal = loadPersonal(dir)
	def.Outputs = loadOutputs(dir)
	return def, nil
}

func loadPersonal(dir string) *PersonalSpec {
	data, err := os.ReadFile(filepath.Join(dir, PersonalFile))
	if err != nil {
		return nil
	}
	var spec PersonalSpec
	if err = yaml.Unmarshal(data, &spec); err != nil {
		klog.ErrorS(err, "failed to parse personal spec", "dir", dir)
		return nil
	}
	return &spec
}

// configHash digests the config plus the instance file so either file
// changing shows up as a new hash.
func configHash(dir string, configData []byte) string {
	digest := xxhash.New()
	_, _ = digest.Write(configData)
	if instance, err := os.ReadFile(filepath.Join(dir, InstanceFile)); err == nil {
		_, _ = digest.Write(instance)
	}
	return strconv.FormatUint(digest.Sum64(), 16)
}

func (c *Catalog) Get(name string) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.services[name]
	if !ok {
		return nil, commonerrors.NewNotFound("Service", name)
	}
	return def, nil
}

func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.services[name]
	return ok
}

func (c *Catalog) List() []*Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]*Definition, 0, len(c.services))
	for _, def := range c.services {
		result = append(result, def)
	}
	return result
}

func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	return names
}
