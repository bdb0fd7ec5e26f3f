package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/app/bootstrap"
	"github.com/studyhub/backend-go/app/router"
	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/logger"
)

func main() {
	app, err := bootstrap.Init(bootstrap.Options{
		AutoCreateCollections: false,
		StartConsumer:         true,
	})
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}

	router.Init()

	// 配置Beego全局设置
	web.BConfig.AppName = "StudyHub Retrieval Service"
	web.BConfig.CopyRequestBody = true

	port := 8000
	if p, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		port = p
	}
	web.BConfig.Listen.HTTPPort = port

	// 收到退出信号先注销注册、放掉连接，再退进程
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		app.Shutdown()
		os.Exit(0)
	}()

	logger.Info("🚀 Starting StudyHub Retrieval Service", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
