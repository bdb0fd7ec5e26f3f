package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/studyhub/backend-go/internal/pdf"
)

// 把Word讲义转成Markdown，输出文件可直接丢进摄取文件夹
func main() {
	var (
		input  = flag.String("input", "", "输入DOCX文件路径（必需）")
		output = flag.String("output", "", "输出Markdown文件路径（可选，默认为输入文件名.md）")
	)
	flag.Parse()

	if *input == "" {
		fmt.Fprintf(os.Stderr, "错误: 必须指定输入DOCX文件路径 (-input)\n")
		flag.Usage()
		os.Exit(1)
	}

	// 检查输入文件是否存在
	if _, err := os.Stat(*input); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "错误: 输入文件不存在: %s\n", *input)
		os.Exit(1)
	}

	// 确定输出文件路径
	outputPath := *output
	if outputPath == "" {
		ext := filepath.Ext(*input)
		outputPath = strings.TrimSuffix(*input, ext) + ".md"
	}

	if err := convert(*input, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "错误: 转换失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ DOCX转换成功: %s -> %s\n", *input, outputPath)
}

func convert(inputPath, outputPath string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("读取DOCX文件失败: %w", err)
	}
	defer f.Close()

	// 摄取管线用同一套解析器，这里转出来的文本和入库的一致
	parsers := pdf.NewFileParserManager()
	text, err := parsers.ParseFile(f, filepath.Base(inputPath))
	if err != nil {
		return err
	}

	var md strings.Builder
	md.WriteString(fmt.Sprintf("# %s\n\n", pdf.FileStem(inputPath)))
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		md.WriteString(line)
		md.WriteString("\n\n")
	}

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("写入Markdown文件失败: %w", err)
	}
	return nil
}
