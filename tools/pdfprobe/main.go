package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/unidoc/unipdf/v3/model"

	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/pdf"
)

// 单文件诊断工具：分类、逐页提取、切块，打印每一步的判定
// 用来在真实语料上调分类阈值和块大小。
func main() {
	var (
		input        = flag.String("input", "", "输入PDF文件路径（必需）")
		samplePages  = flag.Int("sample-pages", 3, "分类采样页数")
		minChars     = flag.Int("min-chars", 32, "判定有文本层的最少非空白字符数")
		chunkSize    = flag.Int("chunk-size", 800, "块大小（rune）")
		chunkOverlap = flag.Int("chunk-overlap", 120, "块重叠（rune）")
		ocrBinary    = flag.String("ocr-binary", "", "OCR二进制路径，留空禁用OCR")
		ocrLanguages = flag.String("ocr-languages", "eng", "OCR语言")
		dpi          = flag.Int("dpi", 300, "扫描页光栅化DPI")
		showText     = flag.Bool("show-text", false, "打印每页提取文本的前120字符")
	)
	flag.Parse()

	if *input == "" {
		fmt.Fprintf(os.Stderr, "错误: 必须指定输入PDF文件路径 (-input)\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := probe(*input, *samplePages, *minChars, *chunkSize, *chunkOverlap, *ocrBinary, *ocrLanguages, *dpi, *showText); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func probe(path string, samplePages, minChars, chunkSize, chunkOverlap int, ocrBinary, ocrLanguages string, dpi int, showText bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开PDF文件失败: %w", err)
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return fmt.Errorf("解析PDF失败: %w", err)
	}

	ocr := pdf.NewOCREngine(ocrBinary != "", ocrBinary, ocrLanguages, 30*time.Second)
	extractor := pdf.NewPageTextExtractor(ocr, samplePages, minChars, dpi)
	chunker := knowledge.NewChunker(chunkSize, chunkOverlap)

	pdfType, err := extractor.Classify(pdfReader)
	if err != nil {
		return err
	}
	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return fmt.Errorf("获取PDF页数失败: %w", err)
	}

	stem := pdf.FileStem(path)
	fmt.Printf("file:      %s\n", path)
	fmt.Printf("pages:     %d\n", numPages)
	fmt.Printf("type:      %s (sample=%d, min-chars=%d)\n", pdfType, samplePages, minChars)
	fmt.Printf("ocr-ready: %t\n", extractor.OCRReady())
	fmt.Println(strings.Repeat("-", 60))

	ctx := context.Background()
	totalChunks := 0
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page, err := pdfReader.GetPage(pageNum)
		if err != nil {
			fmt.Printf("page %-4d  read error: %v\n", pageNum, err)
			continue
		}

		native, err := extractor.ExtractNative(page)
		if err != nil {
			native = ""
		}

		text, err := extractor.ExtractPage(ctx, page, pdfType)
		if err != nil {
			fmt.Printf("page %-4d  native=%-6d extract error: %v\n", pageNum, len([]rune(native)), err)
			continue
		}

		chunks := chunker.Split(text)
		totalChunks += len(chunks)

		fmt.Printf("page %-4d  native=%-6d extracted=%-6d chunks=%-3d id=%s\n",
			pageNum,
			len([]rune(strings.TrimSpace(native))),
			len([]rune(text)),
			len(chunks),
			pdf.DocumentID(stem, pageNum))

		if showText {
			preview := []rune(strings.TrimSpace(text))
			if len(preview) > 120 {
				preview = preview[:120]
			}
			fmt.Printf("           %q\n", string(preview))
		}
	}

	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("total chunks: %d (size=%d overlap=%d)\n", totalChunks, chunkSize, chunkOverlap)
	return nil
}
