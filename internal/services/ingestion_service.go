package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/interfaces"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/logger"
	"github.com/studyhub/backend-go/internal/models"
	"github.com/studyhub/backend-go/internal/pdf"
)

// 摄取事件类型
const (
	EventRunStarted   = "run_started"
	EventFileIngested = "file_ingested"
	EventRunCompleted = "run_completed"
)

// IngestionLedger 摄取台账，落库每次运行和每个文件的结果
type IngestionLedger interface {
	CreateRun(ctx context.Context, run *models.IngestionRun) error
	FinishRun(ctx context.Context, run *models.IngestionRun) error
	RecordDocument(ctx context.Context, doc *models.IngestedDocument) error
}

// SourceArchiver 源文件归档，摄取成功后把原件传到对象存储
type SourceArchiver interface {
	Archive(ctx context.Context, localPath, namespace string) (string, error)
	Ready() bool
}

// IngestionEvent 摄取过程中广播到消息队列的事件
type IngestionEvent struct {
	Type      string    `json:"type"`
	RunID     uint      `json:"run_id,omitempty"`
	Folder    string    `json:"folder"`
	Namespace string    `json:"namespace"`
	File      string    `json:"file,omitempty"`
	Status    string    `json:"status,omitempty"`
	Chunks    int       `json:"chunks,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PartitionKey 同一命名空间的事件落在同一分区，保持顺序
func (e IngestionEvent) PartitionKey() string {
	return e.Namespace
}

// IngestionReport 一次摄取运行的汇总结果
type IngestionReport struct {
	RunID          uint              `json:"run_id,omitempty"`
	Folder         string            `json:"folder"`
	Namespace      string            `json:"namespace"`
	FilesProcessed int               `json:"files_processed"`
	FilesSkipped   int               `json:"files_skipped"`
	ChunksUpserted int               `json:"chunks_upserted"`
	SkippedFiles   []pdf.SkippedFile `json:"skipped_files,omitempty"`
	Duration       string            `json:"duration"`
}

// IngestionServiceOptions 可选协作方，传nil的能力直接关闭
type IngestionServiceOptions struct {
	Ledger   IngestionLedger
	Archiver SourceArchiver
	Queue    interfaces.QueueInterface
	Metrics  *MetricsService
}

// IngestionService 文件夹摄取编排
// 枚举、解析、切块、向量化、写库整条管线，文件级并行
// 单个文件失败记为跳过，配置类错误直接终止整次运行
type IngestionService struct {
	loader   *pdf.DocumentLoader
	chunker  *knowledge.Chunker
	embedder knowledge.Embedder
	store    knowledge.VectorStore

	ledger   IngestionLedger
	archiver SourceArchiver
	queue    interfaces.QueueInterface
	metrics  *MetricsService

	namespace     string
	maxParallel   int
	batchSize     int
	eventsTopic   string
	retryAttempts int
	retryDelay    time.Duration
}

// NewIngestionService 创建摄取服务，并行度和批大小取自全局配置
func NewIngestionService(loader *pdf.DocumentLoader, chunker *knowledge.Chunker, embedder knowledge.Embedder, store knowledge.VectorStore, opts IngestionServiceOptions) *IngestionService {
	namespace := "default"
	maxParallel := 4
	batchSize := 16
	topic := "ingestion-events"
	attempts := 3
	delay := time.Second

	if cfg := config.AppConfig; cfg != nil {
		namespace = cfg.Retrieval.VectorNamespace
		maxParallel = cfg.Ingest.MaxParallel
		batchSize = cfg.Ingest.EmbedBatchSize
		topic = cfg.Kafka.EventsTopic
		attempts = cfg.Backend.RetryAttempts
		delay = cfg.Backend.BaseDelay()
	}
	if maxParallel <= 0 {
		maxParallel = 1
	}
	if batchSize <= 0 {
		batchSize = 16
	}

	return &IngestionService{
		loader:        loader,
		chunker:       chunker,
		embedder:      embedder,
		store:         store,
		ledger:        opts.Ledger,
		archiver:      opts.Archiver,
		queue:         opts.Queue,
		metrics:       opts.Metrics,
		namespace:     namespace,
		maxParallel:   maxParallel,
		batchSize:     batchSize,
		eventsTopic:   topic,
		retryAttempts: attempts,
		retryDelay:    delay,
	}
}

// fileOutcome 单个文件的摄取结果
type fileOutcome struct {
	path       string
	pdfType    pdf.PDFType
	pages      int
	chunks     int
	archiveKey string
	skip       *pdf.SkippedFile
}

// IngestFolder 摄取一个文件夹，namespace为空时用配置的命名空间
// 记录ID按(文件名, 页码, 块序号)推导，重跑同一文件夹是幂等覆盖
func (s *IngestionService) IngestFolder(ctx context.Context, folder, namespace string) (*IngestionReport, error) {
	start := time.Now()
	folder = strings.TrimSpace(folder)
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = s.namespace
	}

	if err := ValidateIngestionRequest(folder, namespace); err != nil {
		return nil, err
	}

	// 索引缺失或维度不匹配要在动工前暴露，摄取一半才炸会留下残缺索引
	if err := s.store.EnsureReady(ctx); err != nil {
		return nil, err
	}

	files, err := s.loader.ListFiles(folder)
	if err != nil {
		return nil, err
	}
	warnDuplicateStems(files)

	run := s.beginRun(ctx, folder, namespace)
	report := &IngestionReport{RunID: run.RunID, Folder: folder, Namespace: namespace}
	s.publishEvent(ctx, IngestionEvent{
		Type:      EventRunStarted,
		RunID:     run.RunID,
		Folder:    folder,
		Namespace: namespace,
	})

	logger.Info("ingestion run started",
		zap.Uint("run_id", run.RunID),
		zap.String("folder", folder),
		zap.String("namespace", namespace),
		zap.Int("files", len(files)))

	var runErr error
	if len(files) == 0 {
		logger.Warn("ingestion folder has no eligible files", zap.String("folder", folder))
	} else {
		runErr = s.processFiles(ctx, run, namespace, files, report)
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = errors.NewSystemError(errors.ErrCodeOperationFailed, "摄取运行被取消").WithCause(ctx.Err())
	}

	sort.Slice(report.SkippedFiles, func(i, j int) bool {
		return report.SkippedFiles[i].Path < report.SkippedFiles[j].Path
	})
	report.Duration = time.Since(start).Round(time.Millisecond).String()

	s.finishRun(ctx, run, report, runErr)
	s.publishEvent(ctx, IngestionEvent{
		Type:      EventRunCompleted,
		RunID:     run.RunID,
		Folder:    folder,
		Namespace: namespace,
		Status:    run.Status,
		Chunks:    report.ChunksUpserted,
	})
	s.metrics.RecordChunksUpserted(namespace, report.ChunksUpserted)

	logger.Info("ingestion run finished",
		zap.Uint("run_id", run.RunID),
		zap.String("status", run.Status),
		zap.Int("files_processed", report.FilesProcessed),
		zap.Int("files_skipped", report.FilesSkipped),
		zap.Int("chunks_upserted", report.ChunksUpserted),
		zap.Duration("elapsed", time.Since(start)))

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

// processFiles 固定大小的工作池逐个消费文件，返回首个致命错误
func (s *IngestionService) processFiles(ctx context.Context, run *models.IngestionRun, namespace string, files []string, report *IngestionReport) error {
	workers := s.maxParallel
	if workers > len(files) {
		workers = len(files)
	}
	s.metrics.SetGauge("ingest_worker_pool_size", float64(workers), map[string]string{"pool": "ingest"})

	jobs := make(chan string)
	results := make(chan fileOutcome, len(files))

	var fatalMu sync.Mutex
	var fatalErr error
	setFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
	}
	hasFatal := func() bool {
		fatalMu.Lock()
		defer fatalMu.Unlock()
		return fatalErr != nil
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				// 运行级错误已出现时剩余文件不再处理，也不计入跳过
				if hasFatal() || ctx.Err() != nil {
					continue
				}
				out, err := s.processFile(ctx, namespace, path)
				if err != nil {
					setFatal(err)
					continue
				}
				results <- out
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range files {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)

	for out := range results {
		if out.skip != nil {
			report.FilesSkipped++
			report.SkippedFiles = append(report.SkippedFiles, *out.skip)
		} else {
			report.FilesProcessed++
			report.ChunksUpserted += out.chunks
		}
		s.recordOutcome(ctx, run, out)
		s.publishFileEvent(ctx, run, namespace, out)
	}

	fatalMu.Lock()
	defer fatalMu.Unlock()
	return fatalErr
}

// processFile 单文件管线：解析、切块、向量化、写库、归档
// 返回error仅限致命配置错误，其余失败都折算成跳过
func (s *IngestionService) processFile(ctx context.Context, namespace, path string) (fileOutcome, error) {
	out := fileOutcome{path: path}

	loaded, err := s.loader.LoadFile(ctx, path)
	if err != nil {
		return s.skipFile(out, namespace, "文件解析失败", err)
	}
	out.pdfType = loaded.PDFType
	out.pages = loaded.PageCount
	if loaded.FailedPages > 0 {
		logger.Warn("some pages failed to extract",
			zap.String("file", path),
			zap.Int("failed_pages", loaded.FailedPages))
	}

	records, err := s.buildRecords(ctx, loaded.Documents)
	if err != nil {
		return s.skipFile(out, namespace, "向量化失败", err)
	}
	if len(records) == 0 {
		// 整本没提出文本不算失败，处理成功但零产出
		logger.Info("file produced no chunks", zap.String("file", path))
		s.metrics.RecordDocumentsIngested(namespace, out.pages)
		return out, nil
	}

	var result *knowledge.UpsertResult
	err = errors.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
		r, upsertErr := s.store.Upsert(ctx, namespace, records)
		if upsertErr != nil {
			return upsertErr
		}
		result = r
		return nil
	})
	if err != nil {
		return s.skipFile(out, namespace, "向量写入失败", err)
	}
	out.chunks = result.UpsertedCount
	if len(result.FailedIDs) > 0 {
		logger.Warn("upsert rejected some records",
			zap.String("file", path),
			zap.Int("failed", len(result.FailedIDs)))
	}

	if s.archiver != nil && s.archiver.Ready() {
		key, archiveErr := s.archiver.Archive(ctx, path, namespace)
		if archiveErr != nil {
			// 归档是锦上添花，失败不改变摄取结果
			logger.Warn("source archive failed", zap.String("file", path), zap.Error(archiveErr))
		} else {
			out.archiveKey = key
		}
	}

	s.metrics.RecordDocumentsIngested(namespace, out.pages)
	logger.Info("file ingested",
		zap.String("file", path),
		zap.String("pdf_type", string(out.pdfType)),
		zap.Int("pages", out.pages),
		zap.Int("chunks", out.chunks))
	return out, nil
}

// skipFile 把可恢复的失败折算成跳过，致命错误原样上抛
func (s *IngestionService) skipFile(out fileOutcome, namespace, stage string, err error) (fileOutcome, error) {
	if errors.IsFatal(err) {
		return out, err
	}
	logger.Warn("file skipped",
		zap.String("file", out.path),
		zap.String("stage", stage),
		zap.Error(err))
	s.metrics.RecordFileSkipped(namespace, skipCode(err))
	out.skip = &pdf.SkippedFile{Path: out.path, Reason: fmt.Sprintf("%s: %s", stage, err.Error())}
	return out, nil
}

// buildRecords 把页文档切块并向量化，记录ID为 <页ID>-c<块序号>
func (s *IngestionService) buildRecords(ctx context.Context, docs []pdf.Document) ([]knowledge.VectorRecord, error) {
	var records []knowledge.VectorRecord
	var texts []string
	for _, doc := range docs {
		for _, chunk := range s.chunker.Split(doc.Text) {
			records = append(records, knowledge.VectorRecord{
				ID: fmt.Sprintf("%s-c%d", doc.ID, chunk.Index),
				Metadata: knowledge.RecordMetadata{
					ChunkText:  chunk.Text,
					SourceFile: doc.SourceFile,
					PageNumber: doc.PageNumber,
				},
			})
			texts = append(texts, chunk.Text)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	for batchStart := 0; batchStart < len(texts); batchStart += s.batchSize {
		batchEnd := batchStart + s.batchSize
		if batchEnd > len(texts) {
			batchEnd = len(texts)
		}
		var vectors [][]float32
		err := errors.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
			v, embedErr := s.embedder.EmbedBatch(ctx, texts[batchStart:batchEnd])
			if embedErr != nil {
				return embedErr
			}
			vectors = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		for i, vec := range vectors {
			records[batchStart+i].Vector = vec
		}
	}
	return records, nil
}

func (s *IngestionService) beginRun(ctx context.Context, folder, namespace string) *models.IngestionRun {
	run := &models.IngestionRun{
		FolderPath: folder,
		Namespace:  namespace,
		Status:     models.RunStatusRunning,
		StartTime:  time.Now(),
	}
	if s.ledger == nil {
		return run
	}
	if err := s.ledger.CreateRun(ctx, run); err != nil {
		// 台账失败不阻塞摄取本身
		logger.Warn("ingestion run not persisted", zap.Error(err))
	}
	return run
}

func (s *IngestionService) finishRun(ctx context.Context, run *models.IngestionRun, report *IngestionReport, runErr error) {
	run.FilesProcessed = report.FilesProcessed
	run.FilesSkipped = report.FilesSkipped
	run.ChunksUpserted = report.ChunksUpserted
	now := time.Now()
	run.EndTime = &now
	run.Status = models.RunStatusCompleted
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = runErr.Error()
	}
	report.RunID = run.RunID

	if s.ledger == nil {
		return
	}
	if err := s.ledger.FinishRun(ctx, run); err != nil {
		logger.Warn("ingestion run summary not persisted", zap.Uint("run_id", run.RunID), zap.Error(err))
	}
}

func (s *IngestionService) recordOutcome(ctx context.Context, run *models.IngestionRun, out fileOutcome) {
	if s.ledger == nil || run.RunID == 0 {
		return
	}
	doc := &models.IngestedDocument{
		RunID:      run.RunID,
		SourcePath: out.path,
		FileStem:   pdf.FileStem(out.path),
		PDFType:    string(out.pdfType),
		PageCount:  out.pages,
		ChunkCount: out.chunks,
		Status:     models.DocStatusIngested,
		ArchiveKey: out.archiveKey,
	}
	if out.skip != nil {
		doc.Status = models.DocStatusSkipped
		doc.SkipReason = out.skip.Reason
	}
	if err := s.ledger.RecordDocument(ctx, doc); err != nil {
		logger.Warn("document outcome not persisted", zap.String("file", out.path), zap.Error(err))
	}
}

func (s *IngestionService) publishFileEvent(ctx context.Context, run *models.IngestionRun, namespace string, out fileOutcome) {
	event := IngestionEvent{
		Type:      EventFileIngested,
		RunID:     run.RunID,
		Folder:    run.FolderPath,
		Namespace: namespace,
		File:      out.path,
		Status:    models.DocStatusIngested,
		Chunks:    out.chunks,
	}
	if out.skip != nil {
		event.Status = models.DocStatusSkipped
	}
	s.publishEvent(ctx, event)
}

func (s *IngestionService) publishEvent(ctx context.Context, event IngestionEvent) {
	if s.queue == nil {
		return
	}
	event.Timestamp = time.Now()
	if err := s.queue.Publish(ctx, s.eventsTopic, event); err != nil {
		logger.Warn("ingestion event not published", zap.String("type", event.Type), zap.Error(err))
	}
}

// skipCode 取错误码做指标标签，约束标签基数
func skipCode(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return string(appErr.Code)
	}
	return "UNKNOWN"
}

// warnDuplicateStems 记录ID由文件名主干推导，不同路径下的同名文件会互相覆盖
func warnDuplicateStems(files []string) {
	seen := make(map[string]string, len(files))
	for _, path := range files {
		stem := pdf.FileStem(path)
		if prev, ok := seen[stem]; ok {
			logger.Warn("duplicate file stem, records will overwrite each other",
				zap.String("stem", stem),
				zap.String("first", prev),
				zap.String("second", path))
			continue
		}
		seen[stem] = path
	}
}
