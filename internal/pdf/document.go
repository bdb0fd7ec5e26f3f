package pdf

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PDFType 文档类型判定结果
type PDFType string

const (
	// PDFTypeDigital 有文本层，直接提取
	PDFTypeDigital PDFType = "digital"
	// PDFTypeScanned 无文本层，走光栅化加OCR
	PDFTypeScanned PDFType = "scanned"
)

// Document 一页源文档，摄取管线的基本单位
type Document struct {
	ID         string
	SourceFile string
	PageNumber int
	Text       string
}

// SkippedFile 被跳过的文件及原因
type SkippedFile struct {
	Path   string
	Reason string
}

// FileStem 文件名去掉目录和扩展名，并收敛成安全的ID片段
func FileStem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// DocumentID 组合出全局唯一的页ID：<文件名去后缀>-p<页码>
func DocumentID(stem string, pageNumber int) string {
	return fmt.Sprintf("%s-p%d", stem, pageNumber)
}
