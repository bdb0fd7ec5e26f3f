package knowledge

import (
	"strings"
	"unicode"
)

// Chunk 文本分块
type Chunk struct {
	Index int
	Text  string
}

// Chunker 把长文本切成带重叠的滑动窗口
// 窗口大小与重叠都按rune计数，多字节字符不会被截断。
// 切点优先选段落边界，其次句子边界，最后硬切。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器，非法参数回退到安全默认值
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split 切分文本，空白文本返回零个块
// 相邻两块恰好共享chunkOverlap个rune，与切点位置无关。
func (c *Chunker) Split(text string) []Chunk {
	normalized := normalizeText(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) <= c.chunkSize {
		return []Chunk{{Index: 0, Text: normalized}}
	}

	var chunks []Chunk
	pos := 0
	index := 0
	for pos < len(runes) {
		end := pos + c.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, Chunk{Index: index, Text: string(runes[pos:])})
			break
		}
		end = c.findCutPoint(runes, pos, end)
		chunks = append(chunks, Chunk{Index: index, Text: string(runes[pos:end])})
		index++
		// 下一块从切点回退overlap个rune开始，保证重叠量精确
		pos = end - c.chunkOverlap
	}
	return chunks
}

// findCutPoint 在窗口内从后往前找切点
// 切点必须大于pos+chunkOverlap，否则下一块无法前进。
func (c *Chunker) findCutPoint(runes []rune, pos, end int) int {
	minCut := pos + c.chunkOverlap + 1

	// 段落边界：空行之后
	for i := end - 2; i >= pos; i-- {
		if i+2 < minCut {
			break
		}
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i + 2
		}
	}

	// 句子边界：句末标点之后
	for i := end - 1; i >= pos; i-- {
		if i+1 < minCut {
			break
		}
		if isSentenceEnd(runes, i) {
			return i + 1
		}
	}

	return end
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '。', '！', '？':
		return true
	case '.', '!', '?':
		return i+1 >= len(runes) || unicode.IsSpace(runes[i+1])
	}
	return false
}

// normalizeText 统一换行符并压缩空白
// 保留段落结构：单换行保留，连续空行压成一个，行内空白压成单个空格。
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	pendingNewlines := 0
	wrote := false
	for _, r := range text {
		switch {
		case r == '\n':
			pendingNewlines++
			pendingSpace = false
		case unicode.IsSpace(r):
			pendingSpace = true
		default:
			if wrote {
				if pendingNewlines >= 2 {
					b.WriteString("\n\n")
				} else if pendingNewlines == 1 {
					b.WriteByte('\n')
				} else if pendingSpace {
					b.WriteByte(' ')
				}
			}
			pendingNewlines = 0
			pendingSpace = false
			b.WriteRune(r)
			wrote = true
		}
	}
	return b.String()
}
