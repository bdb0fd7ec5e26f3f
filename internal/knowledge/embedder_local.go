package knowledge

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder 本地确定性向量化实现
// 对词和相邻词对做特征哈希，同一文本永远得到同一向量，不依赖外部服务。
// 适合离线部署和测试环境，检索质量低于真实embedding模型。
type LocalEmbedder struct {
	dims int
}

// NewLocalEmbedder 创建本地向量化器，输出维度由调用方指定
func NewLocalEmbedder(dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &LocalEmbedder{dims: dims}
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	tokens := tokenizeForEmbedding(text)
	for i, tok := range tokens {
		addHashedFeature(vec, tok, 1.0)
		if i > 0 {
			addHashedFeature(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	normalizeVector(vec)
	return vec, nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (e *LocalEmbedder) Dimensions() int {
	return e.dims
}

func (e *LocalEmbedder) Ready() bool {
	return true
}

// addHashedFeature 把特征哈希进某个桶
// 哈希最高位决定正负号，不同特征相互区分而不是单调累加。
func addHashedFeature(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(len(vec)))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// tokenizeForEmbedding 小写化后按字母数字段切词，中文按单字切
func tokenizeForEmbedding(text string) []string {
	var tokens []string
	var sb strings.Builder
	flush := func() {
		if sb.Len() > 0 {
			tokens = append(tokens, sb.String())
			sb.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// normalizeVector 原地做L2归一化，零向量保持不变
func normalizeVector(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
