/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package common

const (
	// gin context keys
	UserId   = "userId"
	UserName = "userName"

	// route params
	Name = "name"
	Id   = "id"
	Slug = "slug"

	RouterRootPath = "/api/"

	// the pseudo permission held by super-admin members
	WildcardPermission = "*"
	SuperAdminRole     = "super-admin"

	// usernames recorded on jobs not started by a person
	SchedulerUser  = "scheduler"
	TTLCleanupUser = "system:ttl-cleanup"

	// the seeded workspace every deployment starts with
	DefaultWorkspace = "default"
)

// job statuses
const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// job actions
const (
	ActionDeploy     = "deploy"
	ActionStop       = "stop"
	ActionRunScript  = "run_script"
	ActionBulkDeploy = "bulk_deploy"
	ActionBulkStop   = "bulk_stop"
	ActionStopHost   = "stop_instance"
	ActionRefresh    = "refresh_instances"
)

// schedule job types
const (
	JobTypeServiceScript   = "service_script"
	JobTypeSystemTask      = "system_task"
	JobTypeInventoryAction = "inventory_action"
)

// system task names, the fixed registry dispatched by the scheduler
const (
	TaskRefreshInstances = "refresh_instances"
	TaskRefreshCosts     = "refresh_costs"
	TaskPersonalCleanup  = "personal_instance_cleanup"
	TaskSnapshotSync     = "snapshot_sync"
	TaskDriftCheck       = "drift_check"
	TaskHealthCheck      = "health_check"
)

// app_metadata keys
const (
	MetaPlansCache           = "plans_cache"
	MetaInstancesCache       = "instances_cache"
	MetaOsCatalogue          = "os_catalogue"
	MetaSigningKey           = "signing_key"
	MetaVaultPassword        = "vault_password"
	MetaNotificationSettings = "drift_notification_settings"
	MetaHealthStatus         = "health_status"
)

// inventory tags understood by the personal-instance TTL cleanup
const (
	TagPersonalInstance = "personal-instance"
	TagTTLPrefix        = "pi-ttl:"
	TagServicePrefix    = "pi-service:"
	TagUserPrefix       = "pi-user:"

	// credential scope tags
	TagInstancePrefix = "instance:"
	TagSvcPrefix      = "svc:"
)

// global permission codenames
const (
	PermServicesView       = "services.view"
	PermServicesDeploy     = "services.deploy"
	PermServicesStop       = "services.stop"
	PermServicesConfigView = "services.config.view"
	PermInstancesStop      = "instances.stop"
	PermInstancesRefresh   = "instances.refresh"
	PermJobsView           = "jobs.view"
	PermJobsManage         = "jobs.manage"
	PermServicesManage     = "services.manage"
	PermUsersManage        = "users.manage"
	PermRolesManage        = "roles.manage"
	PermSchedulesManage    = "schedules.manage"
	PermInventoryView      = "inventory.view"
	PermInventoryManage    = "inventory.manage"
	PermAuditView          = "audit.view"
	PermBlueprintsManage   = "blueprints.manage"
	PermBlueprintsDeploy   = "blueprints.deploy"
	PermDriftView          = "drift.view"
	PermDriftManage        = "drift.manage"
	PermCredentialsManage  = "credentials.manage"
	PermWorkspacesManage   = "workspaces.manage"
)

// service and object ACL permissions
const (
	AclView   = "view"
	AclDeploy = "deploy"
	AclStop   = "stop"
	AclConfig = "config"
	AclEdit   = "edit"
	AclDelete = "delete"
	AclFull   = "full"
)

// ObjectACL effects
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// blueprint deployment statuses
const (
	DeploymentPending   = "pending"
	DeploymentRunning   = "running"
	DeploymentCompleted = "completed"
	DeploymentPartial   = "partial"
	DeploymentFailed    = "failed"
)

// per-step statuses inside a blueprint deployment
const (
	StepPending   = "pending"
	StepRunning   = "running"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// credential access rule scopes
const (
	ScopeAll      = "all"
	ScopeInstance = "instance"
	ScopeService  = "service"
	ScopeTag      = "tag"

	// the credential type wildcard accepted on rules
	CredentialTypeAny = "*"
)
