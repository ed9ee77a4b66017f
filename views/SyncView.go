package views

import (
	"github.com/GrainArc/GeoHub/models"
	"github.com/GrainArc/GeoHub/services"
	"github.com/gin-gonic/gin"
)

// SyncRequest 同步请求参数
type SyncRequest struct {
	Type       string `json:"type" binding:"required"`   // track, poi, media, taxonomy
	Author     string `json:"author" binding:"required"` // 用户ID或邮箱
	Provider   string `json:"provider"`
	Endpoint   string `json:"endpoint"`
	Activity   string `json:"activity"`
	NameFormat string `json:"nameFormat"`
	App        int64  `json:"app"`
}

type SyncController struct {
}

// Sync 参数全部校验通过才执行同步，任一参数不合法返回400且不写任何正式记录
func (ctrl *SyncController) Sync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	sync := services.NewSyncEcFromOutSource(models.DB, req.Type, req.Author, req.Provider, req.Endpoint, req.Activity, req.NameFormat, req.App)
	if err := sync.CheckParameters(); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	result, err := sync.Sync()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, result)
}
