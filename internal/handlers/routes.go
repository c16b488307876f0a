package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the internal API under r
func RegisterRoutes(r gin.IRouter) {
	r.GET("/health", HealthCheck)

	compile := r.Group("/compile")
	{
		compile.POST("/static", CompileStatic)
		compile.POST("/validate", ValidateSchedule)
		compile.POST("/preview", PreviewSchedule)
		compile.POST("/dynamic", CompileDynamic)
		compile.POST("/decode", DecodeDocument)
	}

	schedules := r.Group("/schedules")
	{
		schedules.GET("", ListSchedules)
		schedules.GET("/:id", GetSchedule)
		schedules.GET("/:id/document", GetScheduleDocument)
		schedules.PUT("/:id", PutSchedule)
		schedules.POST("/:id/import", ImportSchedule)
		schedules.DELETE("/:id", DeleteSchedule)
	}

	sync := r.Group("/sync")
	{
		sync.GET("/targets", ListTargets)
		sync.GET("/runs", ListSyncRuns)
		sync.GET("/archives/:id", GetArchive)
		sync.POST("/:target", TriggerSync)
		sync.GET("/:target/override", GetOverride)
		sync.PUT("/:target/override", SetOverride)
		sync.DELETE("/:target/override", ClearOverride)
	}
}
