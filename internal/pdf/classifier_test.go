package pdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSamplePageNumbers(t *testing.T) {
	tests := []struct {
		name  string
		total int
		n     int
		want  []int
	}{
		{"十页取三页含首尾", 10, 3, []int{1, 5, 10}},
		{"页数不足全取", 2, 3, []int{1, 2}},
		{"单页", 1, 3, []int{1}},
		{"只取一页", 10, 1, []int{1}},
		{"零页", 0, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, samplePageNumbers(tt.total, tt.n))
		})
	}
}

func TestClassifyVotes(t *testing.T) {
	richText := strings.Repeat("光合作用需要阳光。", 10)
	tests := []struct {
		name    string
		samples []string
		want    PDFType
	}{
		{"全部有文本层", []string{richText, richText, richText}, PDFTypeDigital},
		{"全部为空", []string{"", "", ""}, PDFTypeScanned},
		{"三页中两页有文本", []string{richText, "", richText}, PDFTypeDigital},
		{"三页中一页有文本", []string{richText, "", ""}, PDFTypeScanned},
		{"恰好一半有文本", []string{richText, ""}, PDFTypeDigital},
		{"无可用采样页", nil, PDFTypeScanned},
		{"只有少量噪声字符", []string{"ab", "c", ""}, PDFTypeScanned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyVotes(tt.samples, 32))
		})
	}
}

func TestCountNonWhitespace(t *testing.T) {
	assert.Equal(t, 0, countNonWhitespace("  \n\t "))
	assert.Equal(t, 4, countNonWhitespace(" a b\nc\td "))
	assert.Equal(t, 6, countNonWhitespace("植物需要阳光"))
}
