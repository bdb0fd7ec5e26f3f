package pdf

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/unidoc/unioffice/document"

	"github.com/studyhub/backend-go/internal/errors"
)

// FileParser 非PDF文件的整文件解析器
// PDF不走这里，它有自己的分页提取管线。
type FileParser interface {
	Parse(reader io.Reader, filename string) (string, error)
	Supports(filename string) bool
}

// TextParser 纯文本解析器
type TextParser struct{}

func (p *TextParser) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".txt" || ext == ".md" || ext == ".markdown"
}

func (p *TextParser) Parse(reader io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "读取文件失败").WithCause(err)
	}
	return string(content), nil
}

// WordParser Word文档解析器，仅支持.docx
type WordParser struct{}

func (p *WordParser) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".docx" || ext == ".doc"
}

func (p *WordParser) Parse(reader io.Reader, filename string) (string, error) {
	if strings.ToLower(filepath.Ext(filename)) == ".doc" {
		return "", errors.NewExtractionError(errors.ErrCodeUnsupportedFormat, "暂不支持.doc格式，请使用.docx格式")
	}

	docBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "读取Word文件失败").WithCause(err)
	}

	// document.Read需要ReaderAt
	readerAt := bytes.NewReader(docBytes)
	doc, err := document.Read(readerAt, int64(len(docBytes)))
	if err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "解析Word文档失败").WithCause(err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			textBuilder.WriteString(run.Text())
		}
		textBuilder.WriteString("\n")
	}
	return textBuilder.String(), nil
}

// FileParserManager 按扩展名分发到对应解析器
type FileParserManager struct {
	parsers []FileParser
}

// NewFileParserManager 创建解析器管理器
func NewFileParserManager() *FileParserManager {
	return &FileParserManager{
		parsers: []FileParser{
			&WordParser{},
			&TextParser{},
		},
	}
}

// Supports 是否有解析器能处理该文件
func (m *FileParserManager) Supports(filename string) bool {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return true
		}
	}
	return false
}

// ParseFile 解析整个文件为单段文本
func (m *FileParserManager) ParseFile(reader io.Reader, filename string) (string, error) {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return parser.Parse(reader, filename)
		}
	}
	return "", errors.NewExtractionError(errors.ErrCodeUnsupportedFormat,
		fmt.Sprintf("不支持的文件格式: %s", filename))
}
