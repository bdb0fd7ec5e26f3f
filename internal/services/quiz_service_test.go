package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/knowledge"
)

func setQuizConfig(t *testing.T, strictSubject bool) {
	t.Helper()
	prev := config.AppConfig
	cfg := &config.Config{}
	cfg.Retrieval.TopKQuiz = 15
	cfg.Retrieval.ContextTokenBudget = 2000
	cfg.Retrieval.StrictSubjectFilter = strictSubject
	cfg.Backend.RetryAttempts = 2
	cfg.Backend.RetryBaseDelay = "1ms"
	config.AppConfig = cfg
	t.Cleanup(func() { config.AppConfig = prev })
}

func seedMathQuestions(t *testing.T, bank knowledge.QuestionBank, count int) {
	t.Helper()
	questions := make([]knowledge.QuizQuestionRecord, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, knowledge.QuizQuestionRecord{
			ID:           fmt.Sprintf("math-q%d", i+1),
			QuestionText: fmt.Sprintf("What is %d plus %d?", i+1, i+2),
			OptionsText:  "A) 1 B) 2 C) 3 D) 4",
			Level:        "primary five",
			Difficulty:   "easy",
			Subject:      "mathematics",
		})
	}
	assert.NoError(t, bank.SeedQuestions(context.Background(), questions))
}

func TestGenerateQuizBuildsPromptFromBank(t *testing.T) {
	setQuizConfig(t, false)

	bank := knowledge.NewMemoryQuestionBank(knowledge.NewLocalEmbedder(32))
	seedMathQuestions(t, bank, 12)

	gen := &stubGenerator{reply: "1. What is 1 plus 2?"}
	svc := NewQuizService(bank, gen, nil, nil)

	quiz, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Level:      " primary five ",
		Difficulty: "easy",
		Subject:    "mathematics",
	})
	assert.NoError(t, err)
	assert.Equal(t, "1. What is 1 plus 2?", quiz)

	assert.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "exactly 10 multiple-choice questions")
	assert.Contains(t, prompt, "quiz generator for primary five students")
	assert.Contains(t, prompt, "mathematics at easy difficulty")
	assert.Contains(t, prompt, "Question 1:")
	assert.Contains(t, prompt, "plus")
	assert.Contains(t, prompt, "Options: A) 1 B) 2 C) 3 D) 4")
}

func TestGenerateQuizDegradesWithSmallPool(t *testing.T) {
	setQuizConfig(t, false)

	bank := knowledge.NewMemoryQuestionBank(knowledge.NewLocalEmbedder(32))
	seedMathQuestions(t, bank, 3)

	gen := &stubGenerator{reply: "short quiz"}
	svc := NewQuizService(bank, gen, nil, nil)

	quiz, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Level:      "primary five",
		Difficulty: "easy",
		Subject:    "mathematics",
	})
	assert.NoError(t, err)
	assert.Equal(t, "short quiz", quiz)
	assert.Len(t, gen.prompts, 1)
}

func TestGenerateQuizEmptyBankStillGenerates(t *testing.T) {
	setQuizConfig(t, false)

	bank := knowledge.NewMemoryQuestionBank(knowledge.NewLocalEmbedder(32))
	gen := &stubGenerator{reply: "no material"}
	svc := NewQuizService(bank, gen, nil, nil)

	quiz, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Level:      "primary five",
		Difficulty: "easy",
		Subject:    "history",
	})
	assert.NoError(t, err)
	assert.Equal(t, "no material", quiz)
	assert.Contains(t, gen.prompts[0], "(no reference questions available)")
}

func TestGenerateQuizRejectsMissingFields(t *testing.T) {
	setQuizConfig(t, false)

	gen := &stubGenerator{reply: "unused"}
	svc := NewQuizService(knowledge.NewMemoryQuestionBank(knowledge.NewLocalEmbedder(32)), gen, nil, nil)

	_, err := svc.GenerateQuiz(context.Background(), QuizRequest{Level: "primary five"})
	assert.Error(t, err)
	assert.Equal(t, errors.ReasonInvalidRequest, errors.CategoryOf(err))
	assert.Empty(t, gen.prompts)
}

func TestGenerateQuizStrictSubjectFilter(t *testing.T) {
	setQuizConfig(t, true)

	bank := knowledge.NewMemoryQuestionBank(knowledge.NewLocalEmbedder(32))
	seedMathQuestions(t, bank, 5)
	assert.NoError(t, bank.SeedQuestions(context.Background(), []knowledge.QuizQuestionRecord{{
		ID:           "sci-q1",
		QuestionText: "Which planet is closest to the sun?",
		OptionsText:  "A) Venus B) Mercury C) Mars D) Earth",
		Level:        "primary five",
		Difficulty:   "easy",
		Subject:      "science",
	}}))

	gen := &stubGenerator{reply: "science quiz"}
	svc := NewQuizService(bank, gen, nil, nil)

	_, err := svc.GenerateQuiz(context.Background(), QuizRequest{
		Level:      "primary five",
		Difficulty: "easy",
		Subject:    "science",
	})
	assert.NoError(t, err)
	assert.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Which planet is closest to the sun?")
	assert.NotContains(t, gen.prompts[0], "plus")
}

func TestSeedQuestionsValidatesInput(t *testing.T) {
	setQuizConfig(t, false)

	svc := NewQuizService(knowledge.NewMemoryQuestionBank(knowledge.NewLocalEmbedder(32)), &stubGenerator{}, nil, nil)

	err := svc.SeedQuestions(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, errors.ReasonInvalidRequest, errors.CategoryOf(err))

	err = svc.SeedQuestions(context.Background(), []knowledge.QuizQuestionRecord{{QuestionText: "no id"}})
	assert.Error(t, err)
}

func TestBuildQuizQuerySentence(t *testing.T) {
	query := buildQuizQuery(QuizRequest{Level: "primary five", Difficulty: "hard", Subject: "science"})
	assert.Equal(t, "primary five hard science questions", query)
}
