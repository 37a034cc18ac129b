/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"fmt"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
)

// permissionCatalog is the full set of permission codenames seeded at startup.
// Seeding is idempotent; removing an entry here does not delete granted rows.
var permissionCatalog = []model.Permission{
	{Codename: common.PermServicesView, Category: "services", Label: "View services"},
	{Codename: common.PermServicesDeploy, Category: "services", Label: "Deploy services"},
	{Codename: common.PermServicesStop, Category: "services", Label: "Stop services"},
	{Codename: common.PermServicesConfigView, Category: "services", Label: "View service configuration"},
	{Codename: common.PermInstancesStop, Category: "instances", Label: "Stop instances"},
	{Codename: common.PermInstancesRefresh, Category: "instances", Label: "Refresh instances"},
	{Codename: common.PermJobsView, Category: "jobs", Label: "View all jobs"},
	{Codename: common.PermJobsManage, Category: "jobs", Label: "Manage any job"},
	{Codename: common.PermServicesManage, Category: "services", Label: "Manage the service catalog"},
	{Codename: common.PermUsersManage, Category: "admin", Label: "Manage users"},
	{Codename: common.PermRolesManage, Category: "admin", Label: "Manage roles"},
	{Codename: common.PermSchedulesManage, Category: "admin", Label: "Manage schedules"},
	{Codename: common.PermWorkspacesManage, Category: "admin", Label: "Manage workspaces"},
	{Codename: common.PermInventoryView, Category: "inventory", Label: "View inventory"},
	{Codename: common.PermInventoryManage, Category: "inventory", Label: "Manage inventory"},
	{Codename: common.PermBlueprintsDeploy, Category: "blueprints", Label: "Deploy blueprints"},
	{Codename: common.PermBlueprintsManage, Category: "blueprints", Label: "Manage blueprints"},
	{Codename: common.PermAuditView, Category: "admin", Label: "View audit log"},
	{Codename: common.PermDriftView, Category: "drift", Label: "View drift reports"},
	{Codename: common.PermDriftManage, Category: "drift", Label: "Manage drift settings"},
	{Codename: common.PermCredentialsManage, Category: "credentials", Label: "Manage credential access rules"},
}

// Migrate applies the schema idempotently: legacy in-place renames first,
// then AutoMigrate over every model, then the seed rows.
func (c *Client) Migrate() error {
	if c.gorm == nil {
		return fmt.Errorf("the gorm handle is not initialized")
	}
	if err := c.applyRenames(); err != nil {
		return err
	}
	if err := c.gorm.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Permission{},
		&model.UserRole{},
		&model.RolePermission{},
		&model.JobRecord{},
		&model.ScheduledJob{},
		&model.InventoryType{},
		&model.InventoryObject{},
		&model.InventoryTag{},
		&model.ObjectTag{},
		&model.ObjectACL{},
		&model.TagPermission{},
		&model.ServiceACL{},
		&model.CredentialAccessRule{},
		&model.AppMetadata{},
		&model.Blueprint{},
		&model.BlueprintDeployment{},
		&model.AuditLog{},
		&model.DriftReport{},
		&model.Snapshot{},
		&model.Workspace{},
		&model.WorkspaceMember{},
	); err != nil {
		return err
	}
	return c.seed()
}

// applyRenames rewrites legacy row identifiers in place, preserving primary
// keys. Runs before AutoMigrate so renamed rows are never duplicated by a
// later seed.
func (c *Client) applyRenames() error {
	migrator := c.gorm.Migrator()
	if !migrator.HasTable(&model.ScheduledJob{}) {
		return nil
	}
	res := c.gorm.Exec(
		`UPDATE scheduled_job SET name = ?, system_task = ? WHERE name = ?`,
		common.TaskPersonalCleanup, common.TaskPersonalCleanup, "personal_jumphost_cleanup")
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		klog.Infof("renamed legacy schedule personal_jumphost_cleanup to %s", common.TaskPersonalCleanup)
	}
	return nil
}

func (c *Client) seed() error {
	for i := range permissionCatalog {
		perm := permissionCatalog[i]
		perm.Id = uuid.NewString()
		res := c.gorm.Exec(
			`INSERT INTO permission (id, codename, category, label, description) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (codename) DO NOTHING`,
			perm.Id, perm.Codename, perm.Category, perm.Label, perm.Description)
		if res.Error != nil {
			return res.Error
		}
	}

	role := model.Role{
		Id:          uuid.NewString(),
		Name:        common.SuperAdminRole,
		Description: "Holds every permission",
		IsSystem:    true,
	}
	if res := c.gorm.Exec(
		`INSERT INTO role (id, name, description, is_system) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name) DO NOTHING`,
		role.Id, role.Name, role.Description, role.IsSystem); res.Error != nil {
		return res.Error
	}
	// grant the system role every catalogued permission
	if res := c.gorm.Exec(
		`INSERT INTO role_permission (role_id, permission_id)
		 SELECT r.id, p.id FROM role r CROSS JOIN permission p WHERE r.name = ?
		 ON CONFLICT DO NOTHING`,
		common.SuperAdminRole); res.Error != nil {
		return res.Error
	}

	if res := c.gorm.Exec(
		`INSERT INTO workspace (id, name, description, is_system, created_at) VALUES (?, ?, ?, ?, NOW())
		 ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), common.DefaultWorkspace, "All users", true); res.Error != nil {
		return res.Error
	}
	return nil
}
