package pdf

import "unicode"

// samplePageNumbers 在1..total里均匀取最多n页，总是包含首页和末页
func samplePageNumbers(total, n int) []int {
	if total <= 0 {
		return nil
	}
	if n <= 1 {
		return []int{1}
	}
	if total <= n {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	pages := make([]int, 0, n)
	seen := make(map[int]bool)
	for k := 0; k < n; k++ {
		p := 1 + k*(total-1)/(n-1)
		if !seen[p] {
			seen[p] = true
			pages = append(pages, p)
		}
	}
	return pages
}

// classifyVotes 文本层字符数过阈值的采样页投数字票，多数获胜
// 所有采样页都提取失败时按扫描件处理，交给OCR兜底。
func classifyVotes(sampleTexts []string, minChars int) PDFType {
	if len(sampleTexts) == 0 {
		return PDFTypeScanned
	}
	digital := 0
	for _, text := range sampleTexts {
		if countNonWhitespace(text) >= minChars {
			digital++
		}
	}
	if digital*2 >= len(sampleTexts) {
		return PDFTypeDigital
	}
	return PDFTypeScanned
}

func countNonWhitespace(text string) int {
	count := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			count++
		}
	}
	return count
}
