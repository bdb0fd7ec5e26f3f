package knowledge

import (
	"context"
	"sync"
)

// MemoryVectorStore 进程内向量库
// 本地开发和测试用，线性扫描算余弦相似度，数据不落盘。
type MemoryVectorStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]VectorRecord
	dims       int
}

// NewMemoryVectorStore 创建内存向量库，dims大于0时写入会校验向量维度
func NewMemoryVectorStore(dims int) *MemoryVectorStore {
	return &MemoryVectorStore{
		namespaces: make(map[string]map[string]VectorRecord),
		dims:       dims,
	}
}

func (s *MemoryVectorStore) EnsureReady(ctx context.Context) error {
	return nil
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, namespace string, records []VectorRecord) (*UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns := s.namespaces[namespace]
	if ns == nil {
		ns = make(map[string]VectorRecord)
		s.namespaces[namespace] = ns
	}

	result := &UpsertResult{}
	for _, rec := range records {
		if rec.ID == "" || len(rec.Vector) == 0 {
			result.FailedIDs = append(result.FailedIDs, rec.ID)
			continue
		}
		if s.dims > 0 && len(rec.Vector) != s.dims {
			result.FailedIDs = append(result.FailedIDs, rec.ID)
			continue
		}
		ns[rec.ID] = rec
		result.UpsertedCount++
	}
	return result, nil
}

func (s *MemoryVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]RetrievalMatch, error) {
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ns := s.namespaces[namespace]
	if len(ns) == 0 {
		return []RetrievalMatch{}, nil
	}

	queryNorm := vectorNorm(vector)
	matches := make([]RetrievalMatch, 0, len(ns))
	for _, rec := range ns {
		matches = append(matches, RetrievalMatch{
			ChunkText:  rec.Metadata.ChunkText,
			SourceFile: rec.Metadata.SourceFile,
			PageNumber: rec.Metadata.PageNumber,
			Score:      cosineSimilarity(vector, rec.Vector, queryNorm),
		})
	}
	sortMatchesByScore(matches)
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryVectorStore) Ready() bool {
	return true
}

// Count 返回namespace内的记录数
func (s *MemoryVectorStore) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}
