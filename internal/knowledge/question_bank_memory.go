package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/studyhub/backend-go/internal/errors"
)

// 混合检索的两路权重，沿用线上检索的经验值
const (
	vectorWeight   = 0.6
	fulltextWeight = 0.4
)

// MemoryQuestionBank 进程内题库
// 词法与向量两路各自归一化后加权合并，本地开发和测试用。
type MemoryQuestionBank struct {
	mu        sync.RWMutex
	questions map[string]QuizQuestionRecord
	vectors   map[string][]float32
	embedder  Embedder
}

// NewMemoryQuestionBank 创建内存题库，入库和检索共用同一个embedder
func NewMemoryQuestionBank(embedder Embedder) *MemoryQuestionBank {
	return &MemoryQuestionBank{
		questions: make(map[string]QuizQuestionRecord),
		vectors:   make(map[string][]float32),
		embedder:  embedder,
	}
}

func (b *MemoryQuestionBank) EnsureReady(ctx context.Context) error {
	return nil
}

func (b *MemoryQuestionBank) SeedQuestions(ctx context.Context, questions []QuizQuestionRecord) error {
	if len(questions) == 0 {
		return nil
	}
	texts := make([]string, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return errors.NewInvalidInputError("id", "题目ID不能为空")
		}
		texts[i] = q.QuestionText + "\n" + q.OptionsText
	}

	vectors, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, q := range questions {
		b.questions[q.ID] = q
		b.vectors[q.ID] = vectors[i]
	}
	return nil
}

func (b *MemoryQuestionBank) Search(ctx context.Context, req QuestionSearchRequest) ([]QuestionMatch, error) {
	if req.TopK <= 0 {
		req.TopK = 10
	}

	queryVector, err := b.embedder.Embed(ctx, req.QueryText)
	if err != nil {
		return nil, err
	}
	queryTokens := tokenizeForEmbedding(req.QueryText)
	queryNorm := vectorNorm(queryVector)

	b.mu.RLock()
	defer b.mu.RUnlock()

	vectorScores := make(map[string]float64)
	lexicalScores := make(map[string]float64)
	var maxVector, maxLexical float64
	for id, q := range b.questions {
		if req.Subject != "" && !strings.EqualFold(q.Subject, req.Subject) {
			continue
		}
		vs := cosineSimilarity(queryVector, b.vectors[id], queryNorm)
		ls := lexicalOverlap(queryTokens, q.QuestionText+" "+q.OptionsText)
		vectorScores[id] = vs
		lexicalScores[id] = ls
		if vs > maxVector {
			maxVector = vs
		}
		if ls > maxLexical {
			maxLexical = ls
		}
	}

	matches := make([]QuestionMatch, 0, len(vectorScores))
	for id := range vectorScores {
		score := vectorWeight*normalizeScore(vectorScores[id], maxVector) +
			fulltextWeight*normalizeScore(lexicalScores[id], maxLexical)
		matches = append(matches, QuestionMatch{Question: b.questions[id], Score: score})
	}
	sortQuestionMatches(matches)
	if len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	return matches, nil
}

func (b *MemoryQuestionBank) Ready() bool {
	return true
}

// Count 返回题目总数
func (b *MemoryQuestionBank) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}

// normalizeScore 归一化到[0,1]，两路分数量纲不同不能直接相加
func normalizeScore(score, maxScore float64) float64 {
	if maxScore <= 0 || score < 0 {
		return 0
	}
	return score / maxScore
}

// lexicalOverlap 统计查询词在文本中命中的个数
func lexicalOverlap(queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := tokenizeForEmbedding(text)
	set := make(map[string]struct{}, len(textTokens))
	for _, tok := range textTokens {
		set[tok] = struct{}{}
	}
	var hits float64
	for _, tok := range queryTokens {
		if _, ok := set[tok]; ok {
			hits++
		}
	}
	return hits
}

func sortQuestionMatches(matches []QuestionMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Question.ID < matches[j].Question.ID
	})
}
