package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/studyhub/backend-go/app/bootstrap"
	"github.com/studyhub/backend-go/internal/services"
)

// NotesController 笔记问答控制器
type NotesController struct {
	BaseController
	notesService *services.NotesService
}

func (c *NotesController) Prepare() {
	if c.notesService == nil {
		if app := bootstrap.GetApp(); app != nil {
			c.notesService = app.Notes()
		}
	}
}

// AskRequest 问答请求体
type AskRequest struct {
	Query string `json:"query"`
}

// Ask 基于笔记库回答问题
func (c *NotesController) Ask() {
	if c.notesService == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	var req AskRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求格式错误")
		return
	}

	answer, err := c.notesService.Answer(c.Ctx.Request.Context(), req.Query)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"query":  req.Query,
		"answer": answer,
	})
}
