package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/studyhub/backend-go/app/bootstrap"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/services"
)

// QuizController 测验生成控制器
type QuizController struct {
	BaseController
	quizService *services.QuizService
}

func (c *QuizController) Prepare() {
	if c.quizService == nil {
		if app := bootstrap.GetApp(); app != nil {
			c.quizService = app.Quiz()
		}
	}
}

// Generate 按年级、难度、学科生成一份测验
func (c *QuizController) Generate() {
	if c.quizService == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	var req services.QuizRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求格式错误")
		return
	}

	quiz, err := c.quizService.GenerateQuiz(c.Ctx.Request.Context(), req)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"level":      req.Level,
		"difficulty": req.Difficulty,
		"subject":    req.Subject,
		"quiz":       quiz,
	})
}

// SeedRequest 灌题请求体
type SeedRequest struct {
	Questions []knowledge.QuizQuestionRecord `json:"questions"`
}

// Seed 批量写入精选题库
func (c *QuizController) Seed() {
	if c.quizService == nil {
		c.JSONError(http.StatusServiceUnavailable, "服务未初始化")
		return
	}

	var req SeedRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "请求格式错误")
		return
	}

	if err := c.quizService.SeedQuestions(c.Ctx.Request.Context(), req.Questions); err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"seeded": len(req.Questions),
	})
}
