/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package client

import (
	"context"
	"time"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/database/model"
)

// Interface is the full store surface. *Client implements it; consumers
// declare the interface so tests can mock the slice they need.
type Interface interface {
	UserInterface
	RoleInterface
	JobInterface
	ScheduleInterface
	InventoryInterface
	ACLInterface
	CredentialInterface
	MetadataInterface
	AuditInterface
	BlueprintInterface
	DriftInterface
	WorkspaceInterface

	WithTx(ctx context.Context, fn func(tx *Client) error) error
}

type UserInterface interface {
	InsertUser(ctx context.Context, user *model.User) error
	UpdateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, userId string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	SelectUsers(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit, offset int) ([]*model.User, error)
	CountUsers(ctx context.Context, query sqrl.Sqlizer) (int, error)
	SetUserActive(ctx context.Context, userId string, active bool) error
	GetUserRoleIds(ctx context.Context, userId string) ([]string, error)
	SetUserRoles(ctx context.Context, userId string, roleIds []string) error
	CountUsersWithRole(ctx context.Context, roleId string) (int, error)
}

type RoleInterface interface {
	InsertRole(ctx context.Context, role *model.Role) error
	UpdateRole(ctx context.Context, role *model.Role) error
	GetRole(ctx context.Context, roleId string) (*model.Role, error)
	GetRoleByName(ctx context.Context, name string) (*model.Role, error)
	SelectRoles(ctx context.Context, query sqrl.Sqlizer, orderBy []string) ([]*model.Role, error)
	DeleteRole(ctx context.Context, roleId string) error
	SelectPermissions(ctx context.Context) ([]*model.Permission, error)
	SetRolePermissions(ctx context.Context, roleId string, permissionIds []string) error
	GetRolePermissionIds(ctx context.Context, roleId string) ([]string, error)
	GetUserPermissionCodenames(ctx context.Context, userId string) ([]string, error)
	GetUserRoleNames(ctx context.Context, userId string) ([]string, error)
}

type JobInterface interface {
	InsertJob(ctx context.Context, job *model.JobRecord) error
	UpdateJob(ctx context.Context, job *model.JobRecord) error
	AppendJobOutput(ctx context.Context, jobId string, lines []string) error
	GetJob(ctx context.Context, jobId string) (*model.JobRecord, error)
	SelectJobs(ctx context.Context, filter *JobFilter, limit, offset int) ([]*model.JobRecord, error)
	CountJobs(ctx context.Context, filter *JobFilter) (int, error)
	DeleteJob(ctx context.Context, jobId string) error
	FailOrphanedJobs(ctx context.Context, note string) (int64, error)
}

type ScheduleInterface interface {
	InsertSchedule(ctx context.Context, sj *model.ScheduledJob) error
	UpdateSchedule(ctx context.Context, sj *model.ScheduledJob) error
	GetSchedule(ctx context.Context, id string) (*model.ScheduledJob, error)
	GetScheduleByName(ctx context.Context, name string) (*model.ScheduledJob, error)
	SelectSchedules(ctx context.Context, query sqrl.Sqlizer, orderBy []string) ([]*model.ScheduledJob, error)
	DeleteSchedule(ctx context.Context, id string) error
	SelectDueSchedules(ctx context.Context, now time.Time) ([]*model.ScheduledJob, error)
	EarliestNextRun(ctx context.Context) (time.Time, error)
	AdvanceSchedule(ctx context.Context, id string, nextRunAt time.Time) error
	MarkScheduleFired(ctx context.Context, id string, firedAt time.Time, jobId string) error
	SeedSystemSchedule(ctx context.Context, sj *model.ScheduledJob) error
}

type InventoryInterface interface {
	InsertInventoryType(ctx context.Context, t *model.InventoryType) error
	UpdateInventoryType(ctx context.Context, t *model.InventoryType) error
	GetInventoryType(ctx context.Context, id string) (*model.InventoryType, error)
	GetInventoryTypeBySlug(ctx context.Context, slug string) (*model.InventoryType, error)
	SelectInventoryTypes(ctx context.Context) ([]*model.InventoryType, error)
	InsertInventoryObject(ctx context.Context, obj *model.InventoryObject) error
	UpdateInventoryObject(ctx context.Context, obj *model.InventoryObject) error
	GetInventoryObject(ctx context.Context, id string) (*model.InventoryObject, error)
	SelectInventoryObjects(ctx context.Context, query sqrl.Sqlizer, limit, offset int) ([]*model.InventoryObject, error)
	DeleteInventoryObject(ctx context.Context, id string) error
	InsertInventoryTag(ctx context.Context, tag *model.InventoryTag) error
	GetInventoryTagByName(ctx context.Context, name string) (*model.InventoryTag, error)
	SelectInventoryTags(ctx context.Context) ([]*model.InventoryTag, error)
	TagObject(ctx context.Context, objectId, tagId string) error
	UntagObject(ctx context.Context, objectId, tagId string) error
	GetObjectTagNames(ctx context.Context, objectId string) ([]string, error)
	GetObjectTagIds(ctx context.Context, objectId string) ([]string, error)
	FindObjectsByTagName(ctx context.Context, tagName string) ([]*model.InventoryObject, error)
}

type ACLInterface interface {
	InsertObjectACL(ctx context.Context, acl *model.ObjectACL) error
	DeleteObjectACL(ctx context.Context, id string) error
	SelectObjectACLs(ctx context.Context, objectId string) ([]*model.ObjectACL, error)
	GetObjectACLsForUser(ctx context.Context, objectId, userId string) ([]*model.ObjectACL, error)
	InsertTagPermission(ctx context.Context, tp *model.TagPermission) error
	DeleteTagPermission(ctx context.Context, id string) error
	SelectTagPermissions(ctx context.Context, tagId string) ([]*model.TagPermission, error)
	GetTagPermissionsForUser(ctx context.Context, objectId, userId string) ([]string, error)
	InsertServiceACL(ctx context.Context, acl *model.ServiceACL) error
	DeleteServiceACL(ctx context.Context, id string) error
	SelectServiceACLs(ctx context.Context, serviceName string) ([]*model.ServiceACL, error)
	GetServicePermissionsForUser(ctx context.Context, serviceName, userId string) ([]string, error)
	CountServiceACLs(ctx context.Context, serviceName string) (int, error)
}

type CredentialInterface interface {
	InsertCredentialRule(ctx context.Context, rule *model.CredentialAccessRule) error
	DeleteCredentialRule(ctx context.Context, id string) error
	SelectCredentialRules(ctx context.Context) ([]*model.CredentialAccessRule, error)
	GetCredentialRulesForUser(ctx context.Context, userId string) ([]*model.CredentialAccessRule, error)
}

type MetadataInterface interface {
	GetMetadata(ctx context.Context, key string) (*model.AppMetadata, error)
	SetMetadata(ctx context.Context, key string, value []byte) error
	GetOrCreateMetadata(ctx context.Context, key string, fallback []byte) ([]byte, error)
	DeleteMetadata(ctx context.Context, key string) error
}

type AuditInterface interface {
	InsertAuditLog(ctx context.Context, entry *model.AuditLog) error
	SelectAuditLogs(ctx context.Context, query sqrl.Sqlizer, limit, offset int) ([]*model.AuditLog, error)
	CountAuditLogs(ctx context.Context, query sqrl.Sqlizer) (int, error)
	DistinctAuditActions(ctx context.Context) ([]string, error)
}

type BlueprintInterface interface {
	InsertBlueprint(ctx context.Context, bp *model.Blueprint) error
	UpdateBlueprint(ctx context.Context, bp *model.Blueprint) error
	GetBlueprint(ctx context.Context, id string) (*model.Blueprint, error)
	GetBlueprintByName(ctx context.Context, name string) (*model.Blueprint, error)
	SelectBlueprints(ctx context.Context) ([]*model.Blueprint, error)
	DeleteBlueprint(ctx context.Context, id string) error
	InsertBlueprintDeployment(ctx context.Context, dep *model.BlueprintDeployment) error
	UpdateBlueprintDeployment(ctx context.Context, dep *model.BlueprintDeployment) error
	GetBlueprintDeployment(ctx context.Context, id string) (*model.BlueprintDeployment, error)
	SelectBlueprintDeployments(ctx context.Context, query sqrl.Sqlizer, limit, offset int) ([]*model.BlueprintDeployment, error)
}

type DriftInterface interface {
	InsertDriftReport(ctx context.Context, report *model.DriftReport) error
	GetLatestDriftReport(ctx context.Context) (*model.DriftReport, error)
	SelectDriftReports(ctx context.Context, limit, offset int) ([]*model.DriftReport, error)
	InsertSnapshot(ctx context.Context, snap *model.Snapshot) error
	SelectPendingSnapshots(ctx context.Context) ([]*model.Snapshot, error)
	CountPendingSnapshots(ctx context.Context) (int, error)
	MarkSnapshotStatus(ctx context.Context, id, status string, syncedAt time.Time) error
}

type WorkspaceInterface interface {
	InsertWorkspace(ctx context.Context, ws *model.Workspace) error
	UpdateWorkspace(ctx context.Context, ws *model.Workspace) error
	GetWorkspace(ctx context.Context, id string) (*model.Workspace, error)
	GetWorkspaceByName(ctx context.Context, name string) (*model.Workspace, error)
	SelectWorkspaces(ctx context.Context) ([]*model.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) error
	SetWorkspaceMembers(ctx context.Context, workspaceId string, userIds []string) error
	GetWorkspaceMemberIds(ctx context.Context, workspaceId string) ([]string, error)
}

var _ Interface = (*Client)(nil)
