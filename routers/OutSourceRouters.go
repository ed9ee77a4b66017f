package routers

import (
	"github.com/GrainArc/GeoHub/views"
	"github.com/gin-gonic/gin"
)

func OutSourceRouters(r *gin.Engine) {
	importCtrl := views.NewImportController()
	syncCtrl := &views.SyncController{}
	outSourceRouter := r.Group("/outsource")
	{
		outSourceRouter.POST("/Import", importCtrl.Import)
		outSourceRouter.POST("/BatchImport", importCtrl.BatchImport)
		outSourceRouter.GET("/TaskStatus", importCtrl.TaskStatus)
		outSourceRouter.GET("/TaskProgress", importCtrl.TaskProgress)
		outSourceRouter.POST("/Sync", syncCtrl.Sync)
	}
}
