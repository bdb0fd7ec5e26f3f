package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/studyhub/backend-go/app/bootstrap"
	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/kafka"
	"github.com/studyhub/backend-go/internal/repository"
	"github.com/studyhub/backend-go/internal/services"
)

// IngestionController 文件夹摄取控制器
type IngestionController struct {
	BaseController
	ingestionService *services.IngestionService
	ingestionRepo    repository.IngestionRepository
}

func (c *IngestionController) Prepare() {
	if app := bootstrap.GetApp(); app != nil {
		if c.ingestionService == nil {
			c.ingestionService = app.Ingestion()
		}
		if c.ingestionRepo == nil {
			c.ingestionRepo = app.IngestionRepo()
		}
	}
}

// IngestFolderRequest 摄取请求体
// async为真时请求只入队，实际处理由消费者完成。
type IngestFolderRequest struct {
	Folder    string `json:"folder"`
	Namespace string `json:"namespace"`
	Async     bool   `json:"async"`
}

// IngestFolder 摄取一个文件夹下的PDF
func (c *IngestionController) IngestFolder() {
	if c.ingestionService == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	var req IngestFolderRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求格式错误")
		return
	}
	if req.Folder == "" {
		c.JSONError(http.StatusBadRequest, "folder不能为空")
		return
	}

	if req.Async {
		c.enqueueIngest(req)
		return
	}

	report, err := c.ingestionService.IngestFolder(c.Ctx.Request.Context(), req.Folder, req.Namespace)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(report)
}

// enqueueIngest 把摄取请求投到Kafka，由消费者进程执行
func (c *IngestionController) enqueueIngest(req IngestFolderRequest) {
	producer := kafka.GetProducer()
	if producer == nil {
		c.JSONError(http.StatusServiceUnavailable, "异步摄取不可用，Kafka未启用")
		return
	}

	message := kafka.IngestRequestMessage{
		Folder:    req.Folder,
		Namespace: req.Namespace,
		RequestID: c.Ctx.Input.Header("X-Request-Id"),
	}
	if err := producer.Publish(c.Ctx.Request.Context(), config.AppConfig.Kafka.RequestsTopic, message); err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSON(http.StatusAccepted, map[string]interface{}{
		"success":  true,
		"accepted": true,
		"folder":   req.Folder,
	})
}

// ListRuns 查询最近的摄取运行
func (c *IngestionController) ListRuns() {
	if c.ingestionRepo == nil {
		c.JSONError(http.StatusServiceUnavailable, "摄取台账未启用")
		return
	}

	limit, _ := strconv.Atoi(c.GetString("limit", "20"))
	runs, err := c.ingestionRepo.ListRuns(c.Ctx.Request.Context(), limit)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun 查询单次运行及逐文件结果
func (c *IngestionController) GetRun() {
	if c.ingestionRepo == nil {
		c.JSONError(http.StatusServiceUnavailable, "摄取台账未启用")
		return
	}

	runID, err := strconv.ParseUint(c.GetString(":id"), 10, 32)
	if err != nil {
		c.JSONError(http.StatusBadRequest, "参数格式错误")
		return
	}

	run, docs, err := c.ingestionRepo.GetRun(c.Ctx.Request.Context(), uint(runID))
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"run":       run,
		"documents": docs,
	})
}
