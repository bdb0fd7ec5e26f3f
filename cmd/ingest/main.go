package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/studyhub/backend-go/app/bootstrap"
)

// 命令行批量摄取入口
// 同一套管线跑在前台，适合首次建库和定时任务。
func main() {
	folder := flag.String("folder", "", "要摄取的PDF文件夹路径")
	namespace := flag.String("namespace", "", "向量命名空间，留空用配置默认值")
	recursive := flag.Bool("recursive", false, "递归处理子目录")
	flag.Parse()

	if *folder == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -folder <path> [-namespace <ns>] [-recursive]")
		os.Exit(2)
	}

	// 标志显式给出时覆盖配置，配置在bootstrap阶段读入
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "recursive" {
			os.Setenv("STUDYHUB_INGEST_RECURSIVE", fmt.Sprintf("%t", *recursive))
		}
	})

	app, err := bootstrap.Init(bootstrap.Options{
		AutoCreateCollections: true,
		StartConsumer:         false,
	})
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	report, err := app.Ingestion().IngestFolder(context.Background(), *folder, *namespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingestion failed: %v\n", err)
		app.Shutdown()
		os.Exit(1)
	}

	output, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(output))
}
