package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/studyhub/backend-go/internal/knowledge"
)

// 截断片段的最小保留量，低于这个量直接丢弃该片段
const minSnippetTokens = 50

var sentenceEndPattern = regexp.MustCompile(`[。！？.!?]+\s*`)

// ContextAssembler 把检索结果拼接成预算内的上下文块
// 片段按检索排名顺序进入，预算不足时截断排名最低的片段，更低排名的全部丢弃
type ContextAssembler struct {
	tokenBudget int
}

// NewContextAssembler 创建上下文拼接器
func NewContextAssembler(tokenBudget int) *ContextAssembler {
	if tokenBudget <= 0 {
		tokenBudget = 2000
	}
	return &ContextAssembler{tokenBudget: tokenBudget}
}

// AssembleNotes 拼接笔记片段，返回上下文块和实际纳入的片段数
// 空匹配列表产生空块，这是合法结果而不是错误
func (ca *ContextAssembler) AssembleNotes(matches []knowledge.RetrievalMatch) (string, int) {
	var parts []string
	remaining := ca.tokenBudget

	for _, m := range matches {
		text := strings.TrimSpace(m.ChunkText)
		if text == "" {
			continue
		}

		header := fmt.Sprintf("[Source: %s, page %d]", m.SourceFile, m.PageNumber)
		cost := estimateTokens(header) + estimateTokens(text)
		if cost > remaining {
			avail := remaining - estimateTokens(header)
			if avail >= minSnippetTokens {
				if truncated := truncateToTokens(text, avail); truncated != "" {
					parts = append(parts, header+"\n"+truncated)
				}
			}
			break
		}

		parts = append(parts, header+"\n"+text)
		remaining -= cost
	}

	return strings.Join(parts, "\n\n"), len(parts)
}

// AssembleQuestions 拼接题库检索结果，题目保持完整，放不下就整题丢弃
// 半截的选择题对出卷没有意义，所以这里不做片段内截断
func (ca *ContextAssembler) AssembleQuestions(matches []knowledge.QuestionMatch) (string, int) {
	var parts []string
	remaining := ca.tokenBudget

	for _, m := range matches {
		question := strings.TrimSpace(m.Question.QuestionText)
		if question == "" {
			continue
		}

		block := fmt.Sprintf("Question %d: %s", len(parts)+1, question)
		if options := strings.TrimSpace(m.Question.OptionsText); options != "" {
			block += "\nOptions: " + options
		}

		cost := estimateTokens(block)
		if cost > remaining {
			break
		}

		parts = append(parts, block)
		remaining -= cost
	}

	return strings.Join(parts, "\n\n"), len(parts)
}

// estimateTokens 估算token数：汉字按字计，其余按词计，再乘1.2冗余
func estimateTokens(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		han := 0
		for _, r := range field {
			if r >= 0x4e00 && r <= 0x9fff {
				han++
			}
		}
		if han > 0 {
			count += han
		} else {
			count++
		}
	}
	return int(float64(count) * 1.2)
}

// truncateToTokens 把文本截断到预算内，优先在句子边界截断，退化为词边界
func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if estimateTokens(text) <= maxTokens {
		return text
	}

	cut := 0
	for _, loc := range sentenceEndPattern.FindAllStringIndex(text, -1) {
		if estimateTokens(text[:loc[1]]) > maxTokens {
			break
		}
		cut = loc[1]
	}
	if cut > 0 {
		return strings.TrimSpace(text[:cut])
	}

	var kept []string
	used := 0
	for _, word := range strings.Fields(text) {
		wordTokens := estimateTokens(word)
		if used+wordTokens > maxTokens {
			break
		}
		kept = append(kept, word)
		used += wordTokens
	}
	return strings.Join(kept, " ")
}
