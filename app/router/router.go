package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/studyhub/backend-go/app/controllers"
	"github.com/studyhub/backend-go/app/middleware"
	"github.com/studyhub/backend-go/internal/config"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)
	web.InsertFilter("/*", web.BeforeRouter, middleware.MarkRequestStart)
	web.InsertFilter("/*", web.FinishRouter, middleware.AccessLogFilter, web.WithReturnOnOutput(false))

	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Router("/ready", &controllers.HealthController{}, "get:Ready")

	if config.AppConfig == nil || config.AppConfig.Prometheus.Enabled {
		web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")
	}

	// 笔记问答
	notesController := &controllers.NotesController{}
	web.Router("/api/notes", notesController, "post:Ask")

	// 测验生成与题库灌入
	quizController := &controllers.QuizController{}
	web.Router("/api/quiz", quizController, "post:Generate")
	web.Router("/api/quiz/questions", quizController, "post:Seed")

	// 文件夹摄取与台账
	ingestionController := &controllers.IngestionController{}
	web.Router("/api/ingestion/folder", ingestionController, "post:IngestFolder")
	web.Router("/api/ingestion/runs", ingestionController, "get:ListRuns")
	web.Router("/api/ingestion/runs/:id", ingestionController, "get:GetRun")
}
