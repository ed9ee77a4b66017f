package views

import (
	"net/http"

	"github.com/GrainArc/GeoHub/config"
	"github.com/GrainArc/GeoHub/models"
	"github.com/GrainArc/GeoHub/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 生产环境需要严格检查
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ImportRequest 单条导入请求
type ImportRequest struct {
	Type     string `json:"type" binding:"required"`     // track, poi, media
	Endpoint string `json:"endpoint" binding:"required"` // 来源端点
	SourceID string `json:"sourceId" binding:"required"` // 来源ID
}

// BatchImportRequest 批量导入请求，sourceIds为空时导入端点的全部条目
type BatchImportRequest struct {
	Type      string   `json:"type" binding:"required"`
	Endpoint  string   `json:"endpoint" binding:"required"`
	SourceIDs []string `json:"sourceIds"`
}

type ImportController struct {
	manager  *services.ImportManager
	fetcher  services.Fetcher
	taxonomy *services.TaxonomyService
	media    services.Storage
}

// NewImportController 获取器按主机积累限流和熔断状态，所有请求共用一份
func NewImportController() *ImportController {
	fetcher := services.NewHTTPFetcher(services.DefaultFetcherConfig())
	taxonomy := services.NewTaxonomyService(services.NewLocalStorage(config.MappingDir))
	media := services.NewLocalStorage(config.MediaDir)
	return &ImportController{
		manager:  services.NewImportManager(models.DB, fetcher, taxonomy, media),
		fetcher:  fetcher,
		taxonomy: taxonomy,
		media:    media,
	}
}

// Import 导入单个要素
func (ctrl *ImportController) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	importer := services.NewOutSourceImporterFeatureWP(models.DB, ctrl.fetcher, ctrl.taxonomy, ctrl.media, req.Type, req.Endpoint, req.SourceID)
	id, err := importer.ImportFeature()
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"id": id})
}

// BatchImport 启动批量导入任务
func (ctrl *ImportController) BatchImport(c *gin.Context) {
	var req BatchImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	task := ctrl.manager.StartBatchImport(req.Type, req.Endpoint, req.SourceIDs)
	c.JSON(200, task)
}

// TaskStatus 查询任务状态
func (ctrl *ImportController) TaskStatus(c *gin.Context) {
	taskID := c.Query("taskId")
	task, ok := ctrl.manager.GetTask(taskID)
	if !ok {
		c.JSON(404, gin.H{"error": "task not found"})
		return
	}
	c.JSON(200, task)
}

// TaskProgress 升级WebSocket推送任务进度
func (ctrl *ImportController) TaskProgress(c *gin.Context) {
	taskID := c.Query("taskId")
	if _, ok := ctrl.manager.GetTask(taskID); !ok {
		c.JSON(404, gin.H{"error": "task not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	ctrl.manager.AddClient(taskID, conn)
}
