package knowledge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/logger"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	VectorDim  int
	UseTLS     bool
	Timeout    time.Duration
	// AutoCreateCollection 集合不存在时是否自动建
	// 摄取进程开启；检索进程关闭，集合缺失视为配置错误直接拒绝启动。
	AutoCreateCollection bool
	UpsertBatchSize      int
}

type milvusVectorStore struct {
	milvusClient client.Client
	collection   string
	vectorDim    int
	autoCreate   bool
	batchSize    int
}

// NewMilvusVectorStore 创建Milvus向量存储，namespace映射为集合内的分区
func NewMilvusVectorStore(opts MilvusOptions) (VectorStore, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	if opts.Collection == "" {
		opts.Collection = "study_notes"
	}
	if opts.VectorDim <= 0 {
		opts.VectorDim = 1536
	}
	if opts.UpsertBatchSize <= 0 {
		opts.UpsertBatchSize = 256
	}

	milvusClient, err := client.NewClient(
		context.Background(),
		client.Config{
			Address:       opts.Address,
			DBName:        opts.Database,
			Username:      opts.Username,
			Password:      opts.Password,
			EnableTLSAuth: opts.UseTLS,
		},
	)
	if err != nil {
		return nil, errors.NewBackendError(errors.ErrCodeConnectionFailed, "连接Milvus失败").WithCause(err)
	}

	return &milvusVectorStore{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		vectorDim:    opts.VectorDim,
		autoCreate:   opts.AutoCreateCollection,
		batchSize:    opts.UpsertBatchSize,
	}, nil
}

func (s *milvusVectorStore) EnsureReady(ctx context.Context) error {
	hasCollection, err := s.milvusClient.HasCollection(ctx, s.collection)
	if err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "检查Milvus集合失败").WithCause(err)
	}

	if !hasCollection {
		if !s.autoCreate {
			return errors.NewConfigError(errors.ErrCodeIndexMissing,
				fmt.Sprintf("向量集合 %s 不存在", s.collection))
		}
		if err := s.createCollection(ctx); err != nil {
			return err
		}
	} else if err := s.validateDimension(ctx); err != nil {
		return err
	}

	// 搜索前集合必须处于加载状态
	if err := s.milvusClient.LoadCollection(ctx, s.collection, false); err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "加载Milvus集合失败").WithCause(err)
	}
	return nil
}

func (s *milvusVectorStore) createCollection(ctx context.Context) error {
	schema := &entity.Schema{
		CollectionName: s.collection,
		Description:    "Study notes chunk vectors",
		Fields: []*entity.Field{
			{
				Name:       "id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "chunk_text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "source_file",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "page_number",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "vector",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", s.vectorDim),
				},
			},
		},
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "创建Milvus集合失败").WithCause(err)
	}

	var index entity.Index
	index, indexErr := entity.NewIndexHNSW(entity.COSINE, 8, 64)
	if indexErr != nil {
		// HNSW不可用时退回IVF_FLAT
		index, indexErr = entity.NewIndexIvfFlat(entity.COSINE, 128)
		if indexErr != nil {
			return errors.NewBackendError(errors.ErrCodeConnectionFailed, "构建Milvus索引参数失败").WithCause(indexErr)
		}
	}
	if err := s.milvusClient.CreateIndex(ctx, s.collection, "vector", index, false); err != nil {
		// 索引创建失败不影响写入，暴力检索仍然可用
		logger.Warn("failed to create milvus index",
			zap.String("collection", s.collection),
			zap.Error(err))
	}
	return nil
}

// validateDimension 比对已有集合的向量维度与配置
// 不一致说明索引是按别的模型建的，继续写入只会产生废数据。
func (s *milvusVectorStore) validateDimension(ctx context.Context) error {
	desc, err := s.milvusClient.DescribeCollection(ctx, s.collection)
	if err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "读取Milvus集合信息失败").WithCause(err)
	}
	if desc == nil || desc.Schema == nil {
		return nil
	}
	for _, field := range desc.Schema.Fields {
		if field.Name != "vector" || field.DataType != entity.FieldTypeFloatVector {
			continue
		}
		dimStr := field.TypeParams["dim"]
		dim, convErr := strconv.Atoi(dimStr)
		if convErr != nil {
			continue
		}
		if dim != s.vectorDim {
			return errors.NewConfigError(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("向量维度不匹配: 集合 %s 维度为%d，配置为%d", s.collection, dim, s.vectorDim))
		}
	}
	return nil
}

// partitionName Milvus分区名只允许字母数字下划线
func (s *milvusVectorStore) partitionName(namespace string) string {
	var b strings.Builder
	b.WriteString("ns_")
	for _, r := range namespace {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *milvusVectorStore) ensurePartition(ctx context.Context, partition string) error {
	hasPartition, err := s.milvusClient.HasPartition(ctx, s.collection, partition)
	if err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "检查Milvus分区失败").WithCause(err)
	}
	if hasPartition {
		return nil
	}
	if err := s.milvusClient.CreatePartition(ctx, s.collection, partition); err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "创建Milvus分区失败").WithCause(err)
	}
	return nil
}

func (s *milvusVectorStore) Upsert(ctx context.Context, namespace string, records []VectorRecord) (*UpsertResult, error) {
	result := &UpsertResult{}
	if len(records) == 0 {
		return result, nil
	}

	partition := s.partitionName(namespace)
	if err := s.ensurePartition(ctx, partition); err != nil {
		return nil, err
	}

	valid := make([]VectorRecord, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" || len(rec.Vector) != s.vectorDim {
			result.FailedIDs = append(result.FailedIDs, rec.ID)
			continue
		}
		valid = append(valid, rec)
	}

	for start := 0; start < len(valid); start += s.batchSize {
		end := start + s.batchSize
		if end > len(valid) {
			end = len(valid)
		}
		batch := valid[start:end]
		if err := s.upsertBatch(ctx, partition, batch); err != nil {
			logger.Warn("milvus upsert batch failed",
				zap.String("collection", s.collection),
				zap.String("partition", partition),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			for _, rec := range batch {
				result.FailedIDs = append(result.FailedIDs, rec.ID)
			}
			continue
		}
		result.UpsertedCount += len(batch)
	}

	if err := s.milvusClient.Flush(ctx, s.collection, false); err != nil {
		logger.Warn("failed to flush milvus collection",
			zap.String("collection", s.collection),
			zap.Error(err))
	}
	return result, nil
}

// upsertBatch 先按ID删除再插入，同一批ID重复写入得到覆盖语义
func (s *milvusVectorStore) upsertBatch(ctx context.Context, partition string, batch []VectorRecord) error {
	ids := make([]string, len(batch))
	texts := make([]string, len(batch))
	files := make([]string, len(batch))
	pages := make([]int64, len(batch))
	vectors := make([][]float32, len(batch))
	for i, rec := range batch {
		ids[i] = rec.ID
		texts[i] = rec.Metadata.ChunkText
		files[i] = rec.Metadata.SourceFile
		pages[i] = int64(rec.Metadata.PageNumber)
		vectors[i] = rec.Vector
	}

	expr := fmt.Sprintf("id in [%s]", quoteMilvusStrings(ids))
	if err := s.milvusClient.Delete(ctx, s.collection, partition, expr); err != nil {
		return fmt.Errorf("milvus delete failed: %w", err)
	}

	idColumn := entity.NewColumnVarChar("id", ids)
	textColumn := entity.NewColumnVarChar("chunk_text", texts)
	fileColumn := entity.NewColumnVarChar("source_file", files)
	pageColumn := entity.NewColumnInt64("page_number", pages)
	vectorColumn := entity.NewColumnFloatVector("vector", s.vectorDim, vectors)

	_, err := s.milvusClient.Insert(ctx, s.collection, partition,
		idColumn, textColumn, fileColumn, pageColumn, vectorColumn)
	if err != nil {
		return fmt.Errorf("milvus insert failed: %w", err)
	}
	return nil
}

func quoteMilvusStrings(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, ", ")
}

func (s *milvusVectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]RetrievalMatch, error) {
	if len(vector) == 0 {
		return []RetrievalMatch{}, nil
	}
	if topK <= 0 {
		topK = 10
	}

	partition := s.partitionName(namespace)
	hasPartition, err := s.milvusClient.HasPartition(ctx, s.collection, partition)
	if err != nil {
		if isMilvusCollectionMissing(err) {
			return nil, errors.NewConfigError(errors.ErrCodeIndexMissing,
				fmt.Sprintf("向量集合 %s 不存在", s.collection))
		}
		return nil, errors.NewBackendError(errors.ErrCodeSearchFailed, "检查Milvus分区失败").WithCause(err)
	}
	if !hasPartition {
		// namespace还没有任何数据，空结果不是错误
		return []RetrievalMatch{}, nil
	}

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	queryVector := entity.FloatVector(vector)
	searchResults, err := s.milvusClient.Search(
		ctx,
		s.collection,
		[]string{partition},
		"",
		[]string{"chunk_text", "source_file", "page_number"},
		[]entity.Vector{queryVector},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		if isMilvusCollectionMissing(err) {
			return nil, errors.NewConfigError(errors.ErrCodeIndexMissing,
				fmt.Sprintf("向量集合 %s 不存在", s.collection))
		}
		return nil, errors.NewBackendError(errors.ErrCodeSearchFailed, "Milvus检索失败").WithCause(err)
	}

	if len(searchResults) == 0 {
		return []RetrievalMatch{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, errors.NewBackendError(errors.ErrCodeSearchFailed, "Milvus检索失败").WithCause(result.Err)
	}
	if result.ResultCount == 0 {
		return []RetrievalMatch{}, nil
	}

	var texts []string
	var files []string
	var pages []int64
	for _, field := range result.Fields {
		switch field.Name() {
		case "chunk_text":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				texts = val.Data()
			}
		case "source_file":
			if val, ok := field.(*entity.ColumnVarChar); ok {
				files = val.Data()
			}
		case "page_number":
			if val, ok := field.(*entity.ColumnInt64); ok {
				pages = val.Data()
			}
		}
	}

	matches := make([]RetrievalMatch, 0, result.ResultCount)
	for i := 0; i < result.ResultCount; i++ {
		match := RetrievalMatch{}
		if i < len(texts) {
			match.ChunkText = texts[i]
		}
		if i < len(files) {
			match.SourceFile = files[i]
		}
		if i < len(pages) {
			match.PageNumber = int(pages[i])
		}
		if i < len(result.Scores) {
			match.Score = float64(result.Scores[i])
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func isMilvusCollectionMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "collection not found") ||
		strings.Contains(msg, "can't find collection") ||
		strings.Contains(msg, "collection not exist")
}

func (s *milvusVectorStore) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Milvus SDK v2 使用 ListCollections 来检查连接
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}
