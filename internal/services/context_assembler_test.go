package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studyhub/backend-go/internal/knowledge"
)

func repeatWord(word string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = word
	}
	return strings.Join(words, " ")
}

func noteMatch(text, file string, page int, score float64) knowledge.RetrievalMatch {
	return knowledge.RetrievalMatch{ChunkText: text, SourceFile: file, PageNumber: page, Score: score}
}

func TestAssembleNotesKeepsRankOrder(t *testing.T) {
	ca := NewContextAssembler(2000)
	matches := []knowledge.RetrievalMatch{
		noteMatch("alpha facts about plants", "science.pdf", 3, 0.9),
		noteMatch("beta facts about light", "science.pdf", 7, 0.7),
	}

	block, used := ca.AssembleNotes(matches)

	assert.Equal(t, 2, used)
	assert.Contains(t, block, "[Source: science.pdf, page 3]")
	assert.Contains(t, block, "[Source: science.pdf, page 7]")
	assert.Less(t, strings.Index(block, "alpha"), strings.Index(block, "beta"))
}

func TestAssembleNotesTruncatesLowestRanked(t *testing.T) {
	m1 := repeatWord("m1tok", 100) // 120 token
	m2 := repeatWord("m2tok", 100)
	header := estimateTokens("[Source: a.pdf, page 1]")

	// 预算装下m1全量加m2的60个token，m3完全装不下
	ca := NewContextAssembler(120 + header + header + 60)
	matches := []knowledge.RetrievalMatch{
		noteMatch(m1, "a.pdf", 1, 0.9),
		noteMatch(m2, "a.pdf", 1, 0.8),
		noteMatch("m3tok", "a.pdf", 1, 0.7),
	}

	block, used := ca.AssembleNotes(matches)

	assert.Equal(t, 2, used)
	assert.Equal(t, 100, strings.Count(block, "m1tok"))
	assert.Equal(t, 60, strings.Count(block, "m2tok"))
	assert.NotContains(t, block, "m3tok")
}

func TestAssembleNotesDropsBelowMinimumRemainder(t *testing.T) {
	m1 := repeatWord("m1tok", 100)
	header := estimateTokens("[Source: a.pdf, page 1]")

	// m1之后只剩20个token，不足最小保留量，第二段整体丢弃
	ca := NewContextAssembler(120 + header + header + 20)
	matches := []knowledge.RetrievalMatch{
		noteMatch(m1, "a.pdf", 1, 0.9),
		noteMatch(repeatWord("m2tok", 100), "a.pdf", 1, 0.8),
	}

	block, used := ca.AssembleNotes(matches)

	assert.Equal(t, 1, used)
	assert.NotContains(t, block, "m2tok")
}

func TestAssembleNotesEmptyMatches(t *testing.T) {
	ca := NewContextAssembler(2000)

	block, used := ca.AssembleNotes(nil)

	assert.Empty(t, block)
	assert.Zero(t, used)
}

func TestAssembleNotesSkipsBlankChunks(t *testing.T) {
	ca := NewContextAssembler(2000)
	matches := []knowledge.RetrievalMatch{
		noteMatch("   ", "scan.pdf", 1, 0.9),
		noteMatch("usable text", "scan.pdf", 2, 0.8),
	}

	block, used := ca.AssembleNotes(matches)

	assert.Equal(t, 1, used)
	assert.Contains(t, block, "usable text")
	assert.NotContains(t, block, "page 1]")
}

func questionMatch(id, question, options string) knowledge.QuestionMatch {
	return knowledge.QuestionMatch{
		Question: knowledge.QuizQuestionRecord{
			ID:           id,
			QuestionText: question,
			OptionsText:  options,
		},
		Score: 0.5,
	}
}

func TestAssembleQuestionsNumbersBlocks(t *testing.T) {
	ca := NewContextAssembler(2000)
	matches := []knowledge.QuestionMatch{
		questionMatch("q1", "What force slows a moving bicycle?", "A. gravity B. friction C. magnetism D. upthrust"),
		questionMatch("q2", "Which force pulls objects to the ground?", "A. friction B. gravity C. tension D. spring"),
		questionMatch("q3", "What does a spring balance measure?", ""),
	}

	block, used := ca.AssembleQuestions(matches)

	assert.Equal(t, 3, used)
	assert.Contains(t, block, "Question 1: What force slows a moving bicycle?")
	assert.Contains(t, block, "Options: A. gravity B. friction C. magnetism D. upthrust")
	assert.Contains(t, block, "Question 3: What does a spring balance measure?")
}

func TestAssembleQuestionsNeverSplitsAQuestion(t *testing.T) {
	first := fmt.Sprintf("Question 1: %s\nOptions: %s",
		"What force slows a moving bicycle?",
		"A. gravity B. friction C. magnetism D. upthrust")

	// 预算刚好装下第一题，第二题整题出局
	ca := NewContextAssembler(estimateTokens(first))
	matches := []knowledge.QuestionMatch{
		questionMatch("q1", "What force slows a moving bicycle?", "A. gravity B. friction C. magnetism D. upthrust"),
		questionMatch("q2", "Which force pulls objects to the ground?", "A. friction B. gravity C. tension D. spring"),
	}

	block, used := ca.AssembleQuestions(matches)

	assert.Equal(t, 1, used)
	assert.Equal(t, first, block)
}

func TestTruncateToTokensPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence tail words extra."

	got := truncateToTokens(text, 5)

	assert.Equal(t, "First sentence here.", got)
}

func TestTruncateToTokensWordFallback(t *testing.T) {
	got := truncateToTokens(repeatWord("tok", 100), 10)

	assert.Equal(t, 10, strings.Count(got, "tok"))
}
