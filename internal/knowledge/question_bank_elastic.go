package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/studyhub/backend-go/internal/errors"
)

// ElasticQuestionBank 基于ES的题库
// 词法打分走match，向量打分走knn，同一请求里让ES合并两路分数。
type ElasticQuestionBank struct {
	client    *elasticsearch.Client
	indexName string
	vectorDim int
	embedder  Embedder
	mu        sync.Mutex
	ensured   bool
}

// NewElasticQuestionBank 创建ES题库客户端，地址为空时返回占位实现
func NewElasticQuestionBank(addresses []string, username, password, apiKey, indexName string, vectorDim int, embedder Embedder) (QuestionBank, error) {
	if len(addresses) == 0 {
		return &NoopQuestionBank{}, nil
	}

	cfg := elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
		APIKey:    apiKey,
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, errors.NewBackendError(errors.ErrCodeConnectionFailed, "创建ES客户端失败").WithCause(err)
	}

	if indexName == "" {
		indexName = "question_bank"
	}

	return &ElasticQuestionBank{
		client:    client,
		indexName: indexName,
		vectorDim: vectorDim,
		embedder:  embedder,
	}, nil
}

func (e *ElasticQuestionBank) EnsureReady(ctx context.Context) error {
	e.mu.Lock()
	if e.ensured {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	req := esapi.IndicesExistsRequest{
		Index: []string{e.indexName},
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "检查ES索引失败").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		if err := e.validateMapping(ctx); err != nil {
			return err
		}
		e.mu.Lock()
		e.ensured = true
		e.mu.Unlock()
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"question_text": map[string]interface{}{"type": "text"},
				"options_text":  map[string]interface{}{"type": "text"},
				"level":         map[string]interface{}{"type": "keyword"},
				"difficulty":    map[string]interface{}{"type": "keyword"},
				"subject":       map[string]interface{}{"type": "keyword"},
				"embedding": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       e.vectorDim,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}

	body, _ := json.Marshal(mapping)
	createReq := esapi.IndicesCreateRequest{
		Index: e.indexName,
		Body:  bytes.NewReader(body),
	}
	createResp, err := createReq.Do(ctx, e.client)
	if err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "创建ES索引失败").WithCause(err)
	}
	defer createResp.Body.Close()

	if createResp.IsError() {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed,
			fmt.Sprintf("创建ES索引失败: %s", createResp.String()))
	}

	e.mu.Lock()
	e.ensured = true
	e.mu.Unlock()
	return nil
}

// validateMapping 比对已有索引的向量维度与配置，不一致拒绝启动
func (e *ElasticQuestionBank) validateMapping(ctx context.Context) error {
	req := esapi.IndicesGetMappingRequest{
		Index: []string{e.indexName},
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return errors.NewBackendError(errors.ErrCodeConnectionFailed, "读取ES索引mapping失败").WithCause(err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil
	}
	indexInfo, ok := result[e.indexName].(map[string]interface{})
	if !ok {
		return nil
	}
	mappings, ok := indexInfo["mappings"].(map[string]interface{})
	if !ok {
		return nil
	}
	properties, ok := mappings["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	embedding, ok := properties["embedding"].(map[string]interface{})
	if !ok {
		return nil
	}
	dims, ok := embedding["dims"].(float64)
	if !ok {
		return nil
	}
	if int(dims) != e.vectorDim {
		return errors.NewConfigError(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("向量维度不匹配: 索引 %s 维度为%d，配置为%d", e.indexName, int(dims), e.vectorDim))
	}
	return nil
}

func (e *ElasticQuestionBank) SeedQuestions(ctx context.Context, questions []QuizQuestionRecord) error {
	if e.client == nil || len(questions) == 0 {
		return nil
	}
	if err := e.EnsureReady(ctx); err != nil {
		return err
	}

	texts := make([]string, len(questions))
	for i, q := range questions {
		if q.ID == "" {
			return errors.NewInvalidInputError("id", "题目ID不能为空")
		}
		texts[i] = q.QuestionText + "\n" + q.OptionsText
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	for i, q := range questions {
		doc := map[string]interface{}{
			"question_text": q.QuestionText,
			"options_text":  q.OptionsText,
			"level":         q.Level,
			"difficulty":    q.Difficulty,
			"subject":       q.Subject,
			"embedding":     vectors[i],
		}
		payload, _ := json.Marshal(doc)
		req := esapi.IndexRequest{
			Index:      e.indexName,
			DocumentID: q.ID,
			Body:       bytes.NewReader(payload),
			Refresh:    "true",
		}
		resp, err := req.Do(ctx, e.client)
		if err != nil {
			return errors.NewBackendError(errors.ErrCodeUpsertFailed, "写入题目失败").WithCause(err)
		}
		resp.Body.Close()
		if resp.IsError() {
			return errors.NewBackendError(errors.ErrCodeUpsertFailed,
				fmt.Sprintf("写入题目 %s 失败: %s", q.ID, resp.String()))
		}
	}
	return nil
}

func (e *ElasticQuestionBank) Search(ctx context.Context, req QuestionSearchRequest) ([]QuestionMatch, error) {
	if e.client == nil {
		return nil, nil
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}
	if err := e.EnsureReady(ctx); err != nil {
		return nil, err
	}

	queryVector, err := e.embedder.Embed(ctx, req.QueryText)
	if err != nil {
		return nil, err
	}

	boolQuery := map[string]interface{}{
		"should": []interface{}{
			map[string]interface{}{
				"match": map[string]interface{}{
					"question_text": map[string]interface{}{
						"query": req.QueryText,
						"boost": 2.0,
					},
				},
			},
			map[string]interface{}{
				"match": map[string]interface{}{
					"options_text": map[string]interface{}{
						"query": req.QueryText,
						"boost": 1.0,
					},
				},
			},
		},
		"minimum_should_match": 1,
	}

	numCandidates := req.TopK * 4
	if numCandidates < 50 {
		numCandidates = 50
	}
	knn := map[string]interface{}{
		"field":          "embedding",
		"query_vector":   queryVector,
		"k":              req.TopK,
		"num_candidates": numCandidates,
	}

	if req.Subject != "" {
		subjectFilter := map[string]interface{}{
			"term": map[string]interface{}{
				"subject": req.Subject,
			},
		}
		boolQuery["filter"] = []interface{}{subjectFilter}
		knn["filter"] = subjectFilter
	}

	body := map[string]interface{}{
		"size": req.TopK,
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
		"knn": knn,
	}

	payload, _ := json.Marshal(body)
	searchReq := esapi.SearchRequest{
		Index: []string{e.indexName},
		Body:  bytes.NewReader(payload),
	}
	resp, err := searchReq.Do(ctx, e.client)
	if err != nil {
		return nil, errors.NewBackendError(errors.ErrCodeSearchFailed, "题库检索失败").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, errors.NewConfigError(errors.ErrCodeIndexMissing,
			fmt.Sprintf("题库索引 %s 不存在", e.indexName))
	}
	if resp.IsError() {
		return nil, errors.NewBackendError(errors.ErrCodeSearchFailed,
			fmt.Sprintf("题库检索失败: %s", resp.String()))
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewBackendError(errors.ErrCodeSearchFailed, "解析ES响应失败").WithCause(err)
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	rawHits, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, nil
	}

	matches := make([]QuestionMatch, 0, len(rawHits))
	for _, raw := range rawHits {
		hit, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		score, _ := hit["_score"].(float64)
		id, _ := hit["_id"].(string)
		doc, ok := hit["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		question := QuizQuestionRecord{ID: id}
		question.QuestionText, _ = doc["question_text"].(string)
		question.OptionsText, _ = doc["options_text"].(string)
		question.Level, _ = doc["level"].(string)
		question.Difficulty, _ = doc["difficulty"].(string)
		question.Subject, _ = doc["subject"].(string)

		matches = append(matches, QuestionMatch{
			Question: question,
			Score:    score,
		})
	}
	return matches, nil
}

func (e *ElasticQuestionBank) Ready() bool {
	return e.client != nil
}
