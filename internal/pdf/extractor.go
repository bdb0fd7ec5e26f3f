package pdf

import (
	"context"
	"image"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
	"github.com/unidoc/unipdf/v3/render"

	"github.com/studyhub/backend-go/internal/errors"
)

// PageTextExtractor 按页提取文本
// 数字档直接读文本层，扫描档光栅化后交给OCR。
type PageTextExtractor struct {
	ocr            OCREngine
	samplePages    int
	minNativeChars int
	dpi            int
}

// NewPageTextExtractor 创建页面提取器，非法参数回退默认值
func NewPageTextExtractor(ocr OCREngine, samplePages, minNativeChars, dpi int) *PageTextExtractor {
	if ocr == nil {
		ocr = NoopOCR{}
	}
	if samplePages <= 0 {
		samplePages = 3
	}
	if minNativeChars <= 0 {
		minNativeChars = 32
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &PageTextExtractor{
		ocr:            ocr,
		samplePages:    samplePages,
		minNativeChars: minNativeChars,
		dpi:            dpi,
	}
}

// ExtractNative 读取页面文本层
func (e *PageTextExtractor) ExtractNative(page *model.PdfPage) (string, error) {
	ex, err := extractor.New(page)
	if err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "创建文本提取器失败").WithCause(err)
	}
	text, err := ex.ExtractText()
	if err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "提取页面文本失败").WithCause(err)
	}
	return text, nil
}

// ExtractPage 按文档类型提取一页
// OCR返回空文本是合法结果，整页是插图时就是空的。
func (e *PageTextExtractor) ExtractPage(ctx context.Context, page *model.PdfPage, pdfType PDFType) (string, error) {
	if pdfType == PDFTypeScanned {
		img, err := e.rasterize(page)
		if err != nil {
			return "", err
		}
		return e.ocr.Recognize(ctx, img)
	}
	return e.ExtractNative(page)
}

// rasterize 把页面渲染成位图
func (e *PageTextExtractor) rasterize(page *model.PdfPage) (image.Image, error) {
	device := render.NewImageDevice()
	if mediaBox, err := page.GetMediaBox(); err == nil && mediaBox != nil {
		widthPt := mediaBox.Urx - mediaBox.Llx
		if widthPt > 0 {
			// PDF坐标单位是1/72英寸，按DPI换算输出宽度
			device.OutputWidth = int(widthPt / 72.0 * float64(e.dpi))
		}
	}
	img, err := device.Render(page)
	if err != nil {
		return nil, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "页面光栅化失败").WithCause(err)
	}
	return img, nil
}

// Classify 采样若干页做多数表决，判定数字档还是扫描档
// 每个文件只判一次，之后所有页走同一条提取路径。
func (e *PageTextExtractor) Classify(pdfReader *model.PdfReader) (PDFType, error) {
	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "获取PDF页数失败").WithCause(err)
	}
	if numPages <= 0 {
		return PDFTypeDigital, nil
	}

	var sampleTexts []string
	for _, pageNum := range samplePageNumbers(numPages, e.samplePages) {
		page, err := pdfReader.GetPage(pageNum)
		if err != nil {
			continue
		}
		text, err := e.ExtractNative(page)
		if err != nil {
			continue
		}
		sampleTexts = append(sampleTexts, text)
	}
	return classifyVotes(sampleTexts, e.minNativeChars), nil
}

// OCRReady OCR引擎是否可用
func (e *PageTextExtractor) OCRReady() bool {
	return e.ocr.Ready()
}
