package pdf

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/logger"
)

// OCREngine 图像转文字
// 识别结果为空是合法输出（比如整页都是插图），不算错误。
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Ready() bool
}

// NoopOCR OCR未配置时的占位实现
// 遇到扫描页时返回提取类错误，由上层按页记录并跳过。
type NoopOCR struct{}

func (NoopOCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	return "", errors.NewExtractionError(errors.ErrCodeOCRUnavailable, "OCR引擎未配置")
}

func (NoopOCR) Ready() bool {
	return false
}

// TesseractOCR 调用外部tesseract进程识别
type TesseractOCR struct {
	binary    string
	languages string
	timeout   time.Duration
}

// NewOCREngine 构建OCR引擎
// 未启用或者二进制找不到时返回占位实现，扫描件在摄取时按页记为提取失败。
func NewOCREngine(enabled bool, binary, languages string, timeout time.Duration) OCREngine {
	if !enabled {
		return NoopOCR{}
	}
	if binary == "" {
		binary = "tesseract"
	}
	if languages == "" {
		languages = "eng"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if _, err := exec.LookPath(binary); err != nil {
		logger.Warn("ocr binary not found, falling back to noop",
			zap.String("binary", binary),
			zap.Error(err))
		return NoopOCR{}
	}
	return &TesseractOCR{
		binary:    binary,
		languages: languages,
		timeout:   timeout,
	}
}

func (t *TesseractOCR) Recognize(ctx context.Context, img image.Image) (string, error) {
	tmp, err := os.CreateTemp("", "ocr-page-*.png")
	if err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "创建OCR临时文件失败").WithCause(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "编码OCR图像失败").WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "写入OCR图像失败").WithCause(err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.binary, tesseractArgs(tmpPath, t.languages)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed, "OCR识别超时").WithCause(ctx.Err())
		}
		return "", errors.NewExtractionError(errors.ErrCodeExtractionFailed,
			"OCR识别失败: "+strings.TrimSpace(stderr.String())).WithCause(err)
	}
	return stdout.String(), nil
}

func tesseractArgs(imagePath, languages string) []string {
	return []string{imagePath, "stdout", "-l", languages}
}

func (t *TesseractOCR) Ready() bool {
	return t.binary != ""
}
