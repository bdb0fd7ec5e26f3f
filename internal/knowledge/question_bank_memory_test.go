package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func seedTestQuestions(t *testing.T, bank *MemoryQuestionBank) {
	t.Helper()
	questions := []QuizQuestionRecord{
		{
			ID:           "q-forces-1",
			QuestionText: "Which force slows down a moving bicycle?",
			OptionsText:  "A) friction B) gravity C) magnetism D) tension",
			Level:        "Primary 5",
			Difficulty:   "easy",
			Subject:      "Science",
		},
		{
			ID:           "q-forces-2",
			QuestionText: "What force pulls objects towards the ground?",
			OptionsText:  "A) friction B) gravity C) upthrust D) air resistance",
			Level:        "Primary 5",
			Difficulty:   "easy",
			Subject:      "Science",
		},
		{
			ID:           "q-plants-1",
			QuestionText: "Which part of a plant absorbs water?",
			OptionsText:  "A) leaf B) stem C) root D) flower",
			Level:        "Primary 5",
			Difficulty:   "easy",
			Subject:      "Science",
		},
		{
			ID:           "q-math-1",
			QuestionText: "What is the sum of interior angles of a triangle?",
			OptionsText:  "A) 90 B) 180 C) 270 D) 360",
			Level:        "Primary 5",
			Difficulty:   "easy",
			Subject:      "Mathematics",
		},
	}
	assert.NoError(t, bank.SeedQuestions(context.Background(), questions))
}

func TestMemoryQuestionBankRanksQueryTopic(t *testing.T) {
	bank := NewMemoryQuestionBank(NewLocalEmbedder(256))
	seedTestQuestions(t, bank)

	matches, err := bank.Search(context.Background(), QuestionSearchRequest{
		QueryText: "Primary 5 easy Science questions about forces friction gravity",
		TopK:      4,
	})

	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(matches), 2)
	topTwo := []string{matches[0].Question.ID, matches[1].Question.ID}
	assert.Contains(t, topTwo, "q-forces-1")
	assert.Contains(t, topTwo, "q-forces-2")
}

func TestMemoryQuestionBankStrictSubjectFilter(t *testing.T) {
	bank := NewMemoryQuestionBank(NewLocalEmbedder(256))
	seedTestQuestions(t, bank)

	matches, err := bank.Search(context.Background(), QuestionSearchRequest{
		QueryText: "Primary 5 easy questions about triangle angles",
		TopK:      10,
		Subject:   "Science",
	})

	assert.NoError(t, err)
	// 过滤来自结构化的subject字段，和查询文本里提到什么无关
	assert.Len(t, matches, 3)
	for _, m := range matches {
		assert.Equal(t, "Science", m.Question.Subject)
	}
}

func TestMemoryQuestionBankSeedIdempotent(t *testing.T) {
	bank := NewMemoryQuestionBank(NewLocalEmbedder(64))

	seedTestQuestions(t, bank)
	seedTestQuestions(t, bank)

	assert.Equal(t, 4, bank.Count())
}

func TestMemoryQuestionBankSeedRejectsMissingID(t *testing.T) {
	bank := NewMemoryQuestionBank(NewLocalEmbedder(64))

	err := bank.SeedQuestions(context.Background(), []QuizQuestionRecord{
		{QuestionText: "no id"},
	})

	assert.Error(t, err)
}

func TestMemoryQuestionBankEmptySearch(t *testing.T) {
	bank := NewMemoryQuestionBank(NewLocalEmbedder(64))

	matches, err := bank.Search(context.Background(), QuestionSearchRequest{
		QueryText: "anything",
		TopK:      5,
	})

	assert.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMemoryQuestionBankTopKBound(t *testing.T) {
	bank := NewMemoryQuestionBank(NewLocalEmbedder(128))
	seedTestQuestions(t, bank)

	matches, err := bank.Search(context.Background(), QuestionSearchRequest{
		QueryText: "force friction gravity",
		TopK:      2,
	})

	assert.NoError(t, err)
	assert.Len(t, matches, 2)
}
