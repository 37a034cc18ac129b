/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AMD-AIG-AIMA/cloudlab/pkg/common"
	commonconfig "github.com/AMD-AIG-AIMA/cloudlab/pkg/config"
	commonerrors "github.com/AMD-AIG-AIMA/cloudlab/pkg/errors"
)

// NewEngine builds the gin engine with the global middleware chain and every
// route registered.
func NewEngine(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(Cors(commonconfig.GetCorsOrigins()))
	engine.NoRoute(func(c *gin.Context) {
		AbortWithApiError(c, commonerrors.NewNotFoundWithMessage(
			"The requested route does not exist"))
	})
	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	InitRouters(engine, h)
	return engine
}

// InitRouters registers the API surface. The public group carries no auth;
// everything else goes through the token middleware and the audit recorder.
func InitRouters(engine *gin.Engine, h *Handler) {
	root := engine.Group(common.RouterRootPath)

	public := root.Group("auth")
	{
		public.GET("status", h.AuthStatus)
		public.POST("setup", h.AuthSetup)
		public.POST("login", h.Login)
	}

	authed := root.Group("")
	authed.Use(h.authority.Middleware())
	authed.Use(Audit(h.store))

	auth := authed.Group("auth")
	{
		auth.POST("logout", h.Logout)
		auth.GET("me", h.Me)
	}

	jobs := authed.Group("jobs")
	{
		jobs.GET("", h.ListJobs)
		jobs.GET(":id", h.GetJob)
		jobs.GET(":id/output/ws", h.JobOutputWS) // live tail
		jobs.POST(":id/rerun", h.RerunJob)
		jobs.POST(":id/cancel", h.CancelJob)
	}

	services := authed.Group("services")
	{
		services.GET("", h.ListServices)
		services.GET(":name", h.GetService)
		services.GET(":name/outputs", h.GetServiceOutputs)
		services.POST(":name/deploy", h.DeployService)
		services.POST(":name/stop", h.StopService)
		services.POST(":name/run", h.RunServiceScript)
		services.GET(":name/acls", h.ListServiceACLs)
		services.POST(":name/acls", h.CreateServiceACL)
		services.DELETE("acls/:id", h.DeleteServiceACL)
		services.POST("actions/bulk-deploy", h.BulkDeploy)
		services.POST("actions/bulk-stop", h.BulkStop)
		services.POST("actions/reload", h.ReloadCatalog)
	}

	instances := authed.Group("instances")
	{
		instances.POST("stop", h.StopInstance)
		instances.POST("refresh", h.RefreshInstances)
	}

	users := authed.Group("users")
	{
		users.GET("", h.ListUsers)
		users.GET(":id", h.GetUser)
		users.POST("", h.CreateUser)
		users.PUT(":id", h.UpdateUser)
		users.DELETE(":id", h.DeleteUser) // deactivates, rows are kept
	}

	roles := authed.Group("roles")
	{
		roles.GET("", h.ListRoles)
		roles.GET(":id", h.GetRole)
		roles.POST("", h.CreateRole)
		roles.PUT(":id", h.UpdateRole)
		roles.DELETE(":id", h.DeleteRole)
	}
	authed.GET("permissions", h.ListPermissions)

	schedules := authed.Group("schedules")
	{
		schedules.GET("", h.ListSchedules)
		schedules.GET(":id", h.GetSchedule)
		schedules.POST("", h.CreateSchedule)
		schedules.PUT(":id", h.UpdateSchedule)
		schedules.DELETE(":id", h.DeleteSchedule)
		schedules.POST(":id/enabled", h.SetScheduleEnabled)
	}

	workspaces := authed.Group("workspaces")
	{
		workspaces.GET("", h.ListWorkspaces)
		workspaces.GET(":id", h.GetWorkspace)
		workspaces.POST("", h.CreateWorkspace)
		workspaces.PUT(":id", h.UpdateWorkspace)
		workspaces.DELETE(":id", h.DeleteWorkspace)
	}

	inventory := authed.Group("inventory")
	{
		inventory.GET("types", h.ListInventoryTypes)
		inventory.GET("types/:slug", h.GetInventoryType)
		inventory.POST("types", h.CreateInventoryType)
		inventory.PUT("types/:slug", h.UpdateInventoryType)

		inventory.GET("objects", h.ListInventoryObjects)
		inventory.GET("objects/:id", h.GetInventoryObject)
		inventory.POST("objects", h.CreateInventoryObject)
		inventory.PUT("objects/:id", h.UpdateInventoryObject)
		inventory.DELETE("objects/:id", h.DeleteInventoryObject)
		inventory.POST("objects/:id/actions", h.RunObjectAction)
		inventory.PUT("objects/:id/tags", h.SetObjectTags)
		inventory.GET("objects/:id/acls", h.ListObjectACLs)
		inventory.POST("objects/:id/acls", h.CreateObjectACL)
		inventory.DELETE("acls/:id", h.DeleteObjectACL)

		inventory.GET("tags", h.ListInventoryTags)
		inventory.GET("tags/:id/permissions", h.ListTagPermissions)
		inventory.POST("tags/:id/permissions", h.CreateTagPermission)
		inventory.DELETE("tag-permissions/:id", h.DeleteTagPermission)
	}

	audit := authed.Group("audit")
	{
		audit.GET("", h.ListAuditLogs)
		audit.GET("actions", h.ListAuditActions)
	}

	credentials := authed.Group("credentials")
	{
		credentials.GET("audit", h.ListCredentialDenials)
		credentials.GET("rules", h.ListCredentialRules)
		credentials.POST("rules", h.CreateCredentialRule)
		credentials.DELETE("rules/:id", h.DeleteCredentialRule)
	}

	blueprints := authed.Group("blueprints")
	{
		blueprints.GET("", h.ListBlueprints)
		blueprints.GET(":id", h.GetBlueprint)
		blueprints.POST("", h.CreateBlueprint)
		blueprints.PUT(":id", h.UpdateBlueprint)
		blueprints.DELETE(":id", h.DeleteBlueprint)
		blueprints.POST(":id/deploy", h.DeployBlueprint)
	}
	deployments := authed.Group("blueprint-deployments")
	{
		deployments.GET("", h.ListBlueprintDeployments)
		deployments.GET(":id", h.GetBlueprintDeployment)
	}

	drift := authed.Group("drift")
	{
		drift.GET("reports", h.ListDriftReports)
		drift.GET("reports/latest", h.GetLatestDriftReport)
		drift.GET("settings", h.GetDriftSettings)
		drift.PUT("settings", h.UpdateDriftSettings)
	}
	authed.GET("health/status", h.GetHealthStatus)
}
