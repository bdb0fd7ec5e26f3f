package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEmptyText(t *testing.T) {
	c := NewChunker(100, 20)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  \n"))
}

func TestSplitShortText(t *testing.T) {
	c := NewChunker(100, 20)

	chunks := c.Split("hello world")

	assert.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "hello world", chunks[0].Text)
}

func TestSplitExactOverlapOnHardCuts(t *testing.T) {
	const size, overlap = 50, 10
	c := NewChunker(size, overlap)
	// 无任何边界的连续文本，全部硬切
	text := strings.Repeat("abcdefghij", 30)

	chunks := c.Split(text)

	assert.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		curr := []rune(chunks[i].Text)
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(curr[:overlap]),
			"chunk %d 与前一块应精确共享%d个rune", i, overlap)
	}
}

func TestSplitExactOverlapWithBoundaries(t *testing.T) {
	const size, overlap = 80, 16
	c := NewChunker(size, overlap)
	text := strings.Repeat("Plants need sunlight to grow. Water moves through the roots. ", 20)

	chunks := c.Split(text)

	assert.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		curr := []rune(chunks[i].Text)
		assert.GreaterOrEqual(t, len(prev), overlap)
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(curr[:overlap]))
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	c := NewChunker(60, 10)
	para1 := strings.Repeat("a", 40)
	para2 := strings.Repeat("b", 80)

	chunks := c.Split(para1 + "\n\n" + para2)

	assert.Equal(t, para1+"\n\n", chunks[0].Text)
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	c := NewChunker(40, 8)
	text := "First sentence here. Second sentence extends well beyond the window size limit"

	chunks := c.Split(text)

	assert.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "here."))
}

func TestSplitCoversAllText(t *testing.T) {
	const overlap = 12
	c := NewChunker(64, overlap)
	text := strings.Repeat("考试重点：植物需要阳光才能生长。", 40)
	normalized := normalizeText(text)

	chunks := c.Split(text)

	var rebuilt []rune
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		r := []rune(ch.Text)
		if i == 0 {
			rebuilt = append(rebuilt, r...)
		} else {
			rebuilt = append(rebuilt, r[overlap:]...)
		}
	}
	assert.Equal(t, normalized, string(rebuilt))
}

func TestNewChunkerGuards(t *testing.T) {
	c := NewChunker(100, 100)
	assert.Equal(t, 25, c.chunkOverlap)

	c = NewChunker(0, -5)
	assert.Equal(t, 800, c.chunkSize)
	assert.Equal(t, 0, c.chunkOverlap)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b\nc\n\nd", normalizeText("a \t b\r\nc\n\n\n\nd  "))
}
