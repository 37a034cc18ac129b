/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package model

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type User struct {
	Id                  string         `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Username            string         `db:"username" gorm:"column:username;uniqueIndex" json:"username"`
	PasswordHash        string         `db:"password_hash" gorm:"column:password_hash" json:"-"`
	Email               string         `db:"email" gorm:"column:email" json:"email"`
	DisplayName         string         `db:"display_name" gorm:"column:display_name" json:"displayName"`
	IsActive            bool           `db:"is_active" gorm:"column:is_active" json:"isActive"`
	SshPublicKey        string         `db:"ssh_public_key" gorm:"column:ssh_public_key" json:"sshPublicKey"`
	SshPrivateKey       string         `db:"ssh_private_key" gorm:"column:ssh_private_key" json:"-"`
	TotpSecretEncrypted string         `db:"totp_secret_encrypted" gorm:"column:totp_secret_encrypted" json:"-"`
	MfaEnabled          bool           `db:"mfa_enabled" gorm:"column:mfa_enabled" json:"mfaEnabled"`
	BackupCodes         pq.StringArray `db:"backup_codes" gorm:"column:backup_codes;type:text[]" json:"-"`
	CreatedAt           time.Time      `db:"created_at" gorm:"column:created_at" json:"createdAt"`
	InviteAcceptedAt    sql.NullTime   `db:"invite_accepted_at" gorm:"column:invite_accepted_at" json:"-"`
}

func (User) TableName() string { return "users" }

type Role struct {
	Id          string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Name        string `db:"name" gorm:"column:name;uniqueIndex" json:"name"`
	Description string `db:"description" gorm:"column:description" json:"description"`
	IsSystem    bool   `db:"is_system" gorm:"column:is_system" json:"isSystem"`
}

func (Role) TableName() string { return "role" }

type Permission struct {
	Id          string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Codename    string `db:"codename" gorm:"column:codename;uniqueIndex" json:"codename"`
	Category    string `db:"category" gorm:"column:category" json:"category"`
	Label       string `db:"label" gorm:"column:label" json:"label"`
	Description string `db:"description" gorm:"column:description" json:"description"`
}

func (Permission) TableName() string { return "permission" }

type UserRole struct {
	UserId string `db:"user_id" gorm:"column:user_id;primaryKey" json:"userId"`
	RoleId string `db:"role_id" gorm:"column:role_id;primaryKey" json:"roleId"`
}

func (UserRole) TableName() string { return "user_role" }

type RolePermission struct {
	RoleId       string `db:"role_id" gorm:"column:role_id;primaryKey" json:"roleId"`
	PermissionId string `db:"permission_id" gorm:"column:permission_id;primaryKey" json:"permissionId"`
}

func (RolePermission) TableName() string { return "role_permission" }

// JobRecord is the persistent mirror of a runner job. The runner owns the
// live record while the job is running; the row becomes the source of truth
// on terminal transition.
type JobRecord struct {
	Id           string         `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Service      string         `db:"service" gorm:"column:service;index" json:"service"`
	Action       string         `db:"action" gorm:"column:action" json:"action"`
	Script       string         `db:"script" gorm:"column:script" json:"script,omitempty"`
	Status       string         `db:"status" gorm:"column:status;index" json:"status"`
	StartedAt    time.Time      `db:"started_at" gorm:"column:started_at" json:"startedAt"`
	FinishedAt   sql.NullTime   `db:"finished_at" gorm:"column:finished_at" json:"-"`
	Output       pq.StringArray `db:"output" gorm:"column:output;type:text[]" json:"output"`
	UserId       sql.NullString `db:"user_id" gorm:"column:user_id" json:"-"`
	Username     string         `db:"username" gorm:"column:username" json:"username"`
	Inputs       []byte         `db:"inputs" gorm:"column:inputs;type:jsonb" json:"-"`
	ParentJobId  sql.NullString `db:"parent_job_id" gorm:"column:parent_job_id;index" json:"-"`
	DeploymentId sql.NullString `db:"deployment_id" gorm:"column:deployment_id" json:"-"`
}

func (JobRecord) TableName() string { return "job" }

type ScheduledJob struct {
	Id             string         `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Name           string         `db:"name" gorm:"column:name;uniqueIndex" json:"name"`
	Description    string         `db:"description" gorm:"column:description" json:"description"`
	JobType        string         `db:"job_type" gorm:"column:job_type" json:"jobType"`
	CronExpression string         `db:"cron_expression" gorm:"column:cron_expression" json:"cronExpression"`
	IsEnabled      bool           `db:"is_enabled" gorm:"column:is_enabled" json:"isEnabled"`
	SkipIfRunning  bool           `db:"skip_if_running" gorm:"column:skip_if_running" json:"skipIfRunning"`
	NextRunAt      time.Time      `db:"next_run_at" gorm:"column:next_run_at;index" json:"nextRunAt"`
	LastRunAt      sql.NullTime   `db:"last_run_at" gorm:"column:last_run_at" json:"-"`
	LastJobId      sql.NullString `db:"last_job_id" gorm:"column:last_job_id" json:"-"`
	ServiceName    string         `db:"service_name" gorm:"column:service_name" json:"serviceName,omitempty"`
	ScriptName     string         `db:"script_name" gorm:"column:script_name" json:"scriptName,omitempty"`
	SystemTask     string         `db:"system_task" gorm:"column:system_task" json:"systemTask,omitempty"`
	TypeSlug       string         `db:"type_slug" gorm:"column:type_slug" json:"typeSlug,omitempty"`
	ActionName     string         `db:"action_name" gorm:"column:action_name" json:"actionName,omitempty"`
	ObjectId       string         `db:"object_id" gorm:"column:object_id" json:"objectId,omitempty"`
	Inputs         []byte         `db:"inputs" gorm:"column:inputs;type:jsonb" json:"-"`
}

func (ScheduledJob) TableName() string { return "scheduled_job" }

type InventoryType struct {
	Id         string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Slug       string `db:"slug" gorm:"column:slug;uniqueIndex" json:"slug"`
	Label      string `db:"label" gorm:"column:label" json:"label"`
	Icon       string `db:"icon" gorm:"column:icon" json:"icon"`
	ConfigHash string `db:"config_hash" gorm:"column:config_hash" json:"configHash"`
	Fields     []byte `db:"fields" gorm:"column:fields;type:jsonb" json:"fields"`
}

func (InventoryType) TableName() string { return "inventory_type" }

type InventoryObject struct {
	Id         string    `db:"id" gorm:"column:id;primaryKey" json:"id"`
	TypeId     string    `db:"type_id" gorm:"column:type_id;index" json:"typeId"`
	Data       []byte    `db:"data" gorm:"column:data;type:jsonb" json:"data"`
	SearchText string    `db:"search_text" gorm:"column:search_text" json:"searchText"`
	CreatedAt  time.Time `db:"created_at" gorm:"column:created_at" json:"createdAt"`
}

func (InventoryObject) TableName() string { return "inventory_object" }

type InventoryTag struct {
	Id   string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Name string `db:"name" gorm:"column:name;uniqueIndex" json:"name"`
}

func (InventoryTag) TableName() string { return "inventory_tag" }

type ObjectTag struct {
	ObjectId string `db:"object_id" gorm:"column:object_id;primaryKey" json:"objectId"`
	TagId    string `db:"tag_id" gorm:"column:tag_id;primaryKey" json:"tagId"`
}

func (ObjectTag) TableName() string { return "object_tag" }

type ObjectACL struct {
	Id         string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	ObjectId   string `db:"object_id" gorm:"column:object_id;index" json:"objectId"`
	RoleId     string `db:"role_id" gorm:"column:role_id" json:"roleId"`
	Permission string `db:"permission" gorm:"column:permission" json:"permission"`
	Effect     string `db:"effect" gorm:"column:effect" json:"effect"`
}

func (ObjectACL) TableName() string { return "object_acl" }

type TagPermission struct {
	Id         string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	TagId      string `db:"tag_id" gorm:"column:tag_id;index" json:"tagId"`
	RoleId     string `db:"role_id" gorm:"column:role_id" json:"roleId"`
	Permission string `db:"permission" gorm:"column:permission" json:"permission"`
}

func (TagPermission) TableName() string { return "tag_permission" }

type ServiceACL struct {
	Id          string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	ServiceName string `db:"service_name" gorm:"column:service_name;index" json:"serviceName"`
	RoleId      string `db:"role_id" gorm:"column:role_id" json:"roleId"`
	Permission  string `db:"permission" gorm:"column:permission" json:"permission"`
}

func (ServiceACL) TableName() string { return "service_acl" }

type CredentialAccessRule struct {
	Id                 string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	RoleId             string `db:"role_id" gorm:"column:role_id;index" json:"roleId"`
	CredentialType     string `db:"credential_type" gorm:"column:credential_type" json:"credentialType"`
	ScopeType          string `db:"scope_type" gorm:"column:scope_type" json:"scopeType"`
	ScopeValue         string `db:"scope_value" gorm:"column:scope_value" json:"scopeValue,omitempty"`
	RequirePersonalKey bool   `db:"require_personal_key" gorm:"column:require_personal_key" json:"requirePersonalKey"`
}

func (CredentialAccessRule) TableName() string { return "credential_access_rule" }

// Workspace groups users for organizational purposes. The seeded default
// workspace is a system row and cannot be renamed or deleted.
type Workspace struct {
	Id          string    `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Name        string    `db:"name" gorm:"column:name;uniqueIndex" json:"name"`
	Description string    `db:"description" gorm:"column:description" json:"description"`
	IsSystem    bool      `db:"is_system" gorm:"column:is_system" json:"isSystem"`
	CreatedAt   time.Time `db:"created_at" gorm:"column:created_at" json:"createdAt"`
}

func (Workspace) TableName() string { return "workspace" }

type WorkspaceMember struct {
	WorkspaceId string `db:"workspace_id" gorm:"column:workspace_id;primaryKey" json:"workspaceId"`
	UserId      string `db:"user_id" gorm:"column:user_id;primaryKey" json:"userId"`
}

func (WorkspaceMember) TableName() string { return "workspace_member" }

// AppMetadata stores one opaque serialized value per key, last-writer-wins.
type AppMetadata struct {
	Key   string `db:"key" gorm:"column:key;primaryKey" json:"key"`
	Value []byte `db:"value" gorm:"column:value;type:jsonb" json:"value"`
}

func (AppMetadata) TableName() string { return "app_metadata" }

type Blueprint struct {
	Id       string `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Name     string `db:"name" gorm:"column:name;uniqueIndex" json:"name"`
	Services []byte `db:"services" gorm:"column:services;type:jsonb" json:"services"`
}

func (Blueprint) TableName() string { return "blueprint" }

type BlueprintDeployment struct {
	Id          string       `db:"id" gorm:"column:id;primaryKey" json:"id"`
	BlueprintId string       `db:"blueprint_id" gorm:"column:blueprint_id;index" json:"blueprintId"`
	Status      string       `db:"status" gorm:"column:status" json:"status"`
	Progress    []byte       `db:"progress" gorm:"column:progress;type:jsonb" json:"progress"`
	StartedAt   sql.NullTime `db:"started_at" gorm:"column:started_at" json:"-"`
	FinishedAt  sql.NullTime `db:"finished_at" gorm:"column:finished_at" json:"-"`
	DeployedBy  string       `db:"deployed_by" gorm:"column:deployed_by" json:"deployedBy"`
}

func (BlueprintDeployment) TableName() string { return "blueprint_deployment" }

// AuditLog rows are append-only; there is no update or delete path.
type AuditLog struct {
	Id        int64          `db:"id" gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserId    sql.NullString `db:"user_id" gorm:"column:user_id" json:"-"`
	Username  string         `db:"username" gorm:"column:username" json:"username"`
	Action    string         `db:"action" gorm:"column:action;index" json:"action"`
	Resource  string         `db:"resource" gorm:"column:resource" json:"resource,omitempty"`
	Details   []byte         `db:"details" gorm:"column:details;type:jsonb" json:"details,omitempty"`
	IpAddress string         `db:"ip_address" gorm:"column:ip_address" json:"ipAddress,omitempty"`
	CreatedAt time.Time      `db:"created_at" gorm:"column:created_at;index" json:"createdAt"`
}

func (AuditLog) TableName() string { return "audit_log" }

type DriftReport struct {
	Id           string    `db:"id" gorm:"column:id;primaryKey" json:"id"`
	CreatedAt    time.Time `db:"created_at" gorm:"column:created_at;index" json:"createdAt"`
	DriftedCount int       `db:"drifted_count" gorm:"column:drifted_count" json:"driftedCount"`
	MissingCount int       `db:"missing_count" gorm:"column:missing_count" json:"missingCount"`
	UnknownCount int       `db:"unknown_count" gorm:"column:unknown_count" json:"unknownCount"`
	Summary      []byte    `db:"summary" gorm:"column:summary;type:jsonb" json:"summary"`
}

func (DriftReport) TableName() string { return "drift_report" }

type Snapshot struct {
	Id        string       `db:"id" gorm:"column:id;primaryKey" json:"id"`
	Hostname  string       `db:"hostname" gorm:"column:hostname;index" json:"hostname"`
	Status    string       `db:"status" gorm:"column:status;index" json:"status"`
	CreatedAt time.Time    `db:"created_at" gorm:"column:created_at" json:"createdAt"`
	SyncedAt  sql.NullTime `db:"synced_at" gorm:"column:synced_at" json:"-"`
}

func (Snapshot) TableName() string { return "snapshot" }

const (
	SnapshotPending = "pending"
	SnapshotSynced  = "synced"
	SnapshotFailed  = "failed"
)
