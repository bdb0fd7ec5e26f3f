package pdf

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unidoc/unipdf/v3/model"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/logger"
)

// LoadResult 单个文件的加载结果
// Documents 只包含提取成功的页；全部页失败时列表为空，由调用方决定跳过。
type LoadResult struct {
	Documents   []Document
	PDFType     PDFType
	PageCount   int
	FailedPages int
}

// DocumentLoader 枚举文件夹并按(文件,页)顺序产出Document
type DocumentLoader struct {
	extractor    *PageTextExtractor
	parsers      *FileParserManager
	recursive    bool
	allowedTypes map[string]bool
}

// NewDocumentLoader 创建加载器，allowedTypes为空时只认.pdf
func NewDocumentLoader(extractor *PageTextExtractor, recursive bool, allowedTypes []string) *DocumentLoader {
	allowed := make(map[string]bool)
	for _, ext := range allowedTypes {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	if len(allowed) == 0 {
		allowed[".pdf"] = true
	}
	return &DocumentLoader{
		extractor:    extractor,
		parsers:      NewFileParserManager(),
		recursive:    recursive,
		allowedTypes: allowed,
	}
}

// ListFiles 列出待摄取文件，按路径排序保证摄取顺序稳定
func (l *DocumentLoader) ListFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewInvalidInputError("folder", "文件夹不存在或不可读").WithCause(err)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidInputError("folder", "路径不是文件夹")
	}

	var files []string
	if l.recursive {
		walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// 子目录不可读不中断整次摄取
				logger.Warn("skipping unreadable path",
					zap.String("path", path),
					zap.Error(err))
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if l.allowedTypes[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, errors.NewSystemError(errors.ErrCodeInternalServer, "遍历文件夹失败").WithCause(walkErr)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, errors.NewInvalidInputError("folder", "读取文件夹失败").WithCause(err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if l.allowedTypes[strings.ToLower(filepath.Ext(entry.Name()))] {
				files = append(files, filepath.Join(root, entry.Name()))
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// LoadFile 加载单个文件，产出按页序排列的Document
func (l *DocumentLoader) LoadFile(ctx context.Context, path string) (*LoadResult, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return l.loadPDF(ctx, path)
	}
	if l.parsers.Supports(path) {
		return l.loadWithParser(path)
	}
	return nil, errors.NewExtractionError(errors.ErrCodeUnsupportedFormat, "不支持的文件格式: "+ext)
}

func (l *DocumentLoader) loadPDF(ctx context.Context, path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "打开PDF文件失败").WithCause(err)
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "解析PDF失败").WithCause(err)
	}

	pdfType, err := l.extractor.Classify(pdfReader)
	if err != nil {
		return nil, err
	}
	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "获取PDF页数失败").WithCause(err)
	}

	stem := FileStem(path)
	sourceFile := filepath.Base(path)
	result := &LoadResult{PDFType: pdfType, PageCount: numPages}
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := pdfReader.GetPage(pageNum)
		if err != nil {
			result.FailedPages++
			logger.Warn("skipping unreadable page",
				zap.String("file", sourceFile),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		text, err := l.extractor.ExtractPage(ctx, page, pdfType)
		if err != nil {
			// 单页失败只影响该页，同文件其他页继续
			result.FailedPages++
			logger.Warn("page extraction failed",
				zap.String("file", sourceFile),
				zap.Int("page", pageNum),
				zap.String("pdf_type", string(pdfType)),
				zap.Error(err))
			continue
		}

		result.Documents = append(result.Documents, Document{
			ID:         DocumentID(stem, pageNum),
			SourceFile: sourceFile,
			PageNumber: pageNum,
			Text:       text,
		})
	}
	return result, nil
}

// loadWithParser 非PDF文件整个解析成第1页的单个Document
func (l *DocumentLoader) loadWithParser(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "打开文件失败").WithCause(err)
	}
	defer f.Close()

	text, err := l.parsers.ParseFile(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}

	return &LoadResult{
		PDFType:   PDFTypeDigital,
		PageCount: 1,
		Documents: []Document{{
			ID:         DocumentID(FileStem(path), 1),
			SourceFile: filepath.Base(path),
			PageNumber: 1,
			Text:       text,
		}},
	}, nil
}
