package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/models"
	"github.com/studyhub/backend-go/internal/pdf"
)

type memoryLedger struct {
	mu     sync.Mutex
	nextID uint
	runs   map[uint]*models.IngestionRun
	docs   []*models.IngestedDocument
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{runs: make(map[uint]*models.IngestionRun)}
}

func (l *memoryLedger) CreateRun(ctx context.Context, run *models.IngestionRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	run.RunID = l.nextID
	copied := *run
	l.runs[run.RunID] = &copied
	return nil
}

func (l *memoryLedger) FinishRun(ctx context.Context, run *models.IngestionRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *run
	l.runs[run.RunID] = &copied
	return nil
}

func (l *memoryLedger) RecordDocument(ctx context.Context, doc *models.IngestedDocument) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *doc
	l.docs = append(l.docs, &copied)
	return nil
}

type captureQueue struct {
	mu     sync.Mutex
	events []IngestionEvent
}

func (q *captureQueue) Publish(ctx context.Context, topic string, message interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if event, ok := message.(IngestionEvent); ok {
		q.events = append(q.events, event)
	}
	return nil
}

func (q *captureQueue) Close() error { return nil }

func setIngestConfig(t *testing.T, namespace string) {
	t.Helper()
	prev := config.AppConfig
	cfg := &config.Config{}
	cfg.Retrieval.VectorNamespace = namespace
	cfg.Ingest.ChunkSize = 80
	cfg.Ingest.ChunkOverlap = 10
	cfg.Ingest.MaxParallel = 4
	cfg.Ingest.EmbedBatchSize = 4
	cfg.Kafka.EventsTopic = "ingestion-events"
	cfg.Backend.RetryAttempts = 2
	cfg.Backend.RetryBaseDelay = "1ms"
	config.AppConfig = cfg
	t.Cleanup(func() { config.AppConfig = prev })
}

func newTestIngestion(t *testing.T, store knowledge.VectorStore, opts IngestionServiceOptions) *IngestionService {
	t.Helper()
	extractor := pdf.NewPageTextExtractor(pdf.NoopOCR{}, 3, 32, 300)
	loader := pdf.NewDocumentLoader(extractor, false, []string{".pdf", ".txt", ".md", ".docx"})
	chunker := knowledge.NewChunker(80, 10)
	return NewIngestionService(loader, chunker, knowledge.NewLocalEmbedder(32), store, opts)
}

func writeIngestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestFolderProcessesTextFiles(t *testing.T) {
	setIngestConfig(t, "test-ingest")
	dir := t.TempDir()
	writeIngestFile(t, dir, "science.txt", "Plants need sunlight and water to grow. The roots take water from the soil.")
	writeIngestFile(t, dir, "history.txt", "The pyramids were built in ancient Egypt along the river Nile.")

	store := knowledge.NewMemoryVectorStore(32)
	svc := newTestIngestion(t, store, IngestionServiceOptions{})

	report, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.NoError(t, err)
	assert.Equal(t, 2, report.FilesProcessed)
	assert.Equal(t, 0, report.FilesSkipped)
	assert.Empty(t, report.SkippedFiles)
	assert.Greater(t, report.ChunksUpserted, 0)
	assert.Equal(t, report.ChunksUpserted, store.Count("test-ingest"))
	assert.NotEmpty(t, report.Duration)
}

func TestIngestFolderSkipsCorruptFile(t *testing.T) {
	setIngestConfig(t, "test-ingest")
	dir := t.TempDir()
	writeIngestFile(t, dir, "notes.txt", "Fractions have a numerator and a denominator.")
	broken := writeIngestFile(t, dir, "broken.docx", "this is not a zip archive")

	store := knowledge.NewMemoryVectorStore(32)
	svc := newTestIngestion(t, store, IngestionServiceOptions{})

	report, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.NoError(t, err)
	assert.Equal(t, 1, report.FilesProcessed)
	assert.Equal(t, 1, report.FilesSkipped)
	assert.Len(t, report.SkippedFiles, 1)
	assert.Equal(t, broken, report.SkippedFiles[0].Path)
	assert.NotEmpty(t, report.SkippedFiles[0].Reason)
	assert.Equal(t, report.ChunksUpserted, store.Count("test-ingest"))
}

func TestIngestFolderRerunIsIdempotent(t *testing.T) {
	setIngestConfig(t, "test-ingest")
	dir := t.TempDir()
	writeIngestFile(t, dir, "science.txt", "Plants need sunlight and water to grow. The roots take water from the soil.")

	store := knowledge.NewMemoryVectorStore(32)
	svc := newTestIngestion(t, store, IngestionServiceOptions{})

	first, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.NoError(t, err)
	countAfterFirst := store.Count("test-ingest")

	second, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.NoError(t, err)
	assert.Equal(t, first.ChunksUpserted, second.ChunksUpserted)
	assert.Equal(t, countAfterFirst, store.Count("test-ingest"))
}

func TestIngestFolderEmptyFolder(t *testing.T) {
	setIngestConfig(t, "test-ingest")
	dir := t.TempDir()

	store := knowledge.NewMemoryVectorStore(32)
	svc := newTestIngestion(t, store, IngestionServiceOptions{})

	report, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.NoError(t, err)
	assert.Equal(t, 0, report.FilesProcessed)
	assert.Equal(t, 0, report.FilesSkipped)
	assert.Equal(t, 0, report.ChunksUpserted)
}

func TestIngestFolderEmptyFileYieldsZeroChunks(t *testing.T) {
	setIngestConfig(t, "test-ingest")
	dir := t.TempDir()
	writeIngestFile(t, dir, "empty.txt", "")

	store := knowledge.NewMemoryVectorStore(32)
	svc := newTestIngestion(t, store, IngestionServiceOptions{})

	report, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.NoError(t, err)
	assert.Equal(t, 1, report.FilesProcessed)
	assert.Equal(t, 0, report.FilesSkipped)
	assert.Equal(t, 0, report.ChunksUpserted)
	assert.Equal(t, 0, store.Count("test-ingest"))
}

func TestIngestFolderRejectsBlankFolder(t *testing.T) {
	setIngestConfig(t, "test-ingest")

	svc := newTestIngestion(t, knowledge.NewMemoryVectorStore(32), IngestionServiceOptions{})

	_, err := svc.IngestFolder(context.Background(), "   ", "test-ingest")
	assert.Error(t, err)
	assert.Equal(t, errors.ReasonInvalidRequest, errors.CategoryOf(err))
}

func TestIngestFolderMissingFolderFails(t *testing.T) {
	setIngestConfig(t, "test-ingest")

	svc := newTestIngestion(t, knowledge.NewMemoryVectorStore(32), IngestionServiceOptions{})

	_, err := svc.IngestFolder(context.Background(), filepath.Join(t.TempDir(), "no-such-dir"), "test-ingest")
	assert.Error(t, err)
}

func TestIngestFolderDefaultsToConfiguredNamespace(t *testing.T) {
	setIngestConfig(t, "configured-ns")
	dir := t.TempDir()
	writeIngestFile(t, dir, "notes.txt", "Water boils at one hundred degrees celsius.")

	store := knowledge.NewMemoryVectorStore(32)
	svc := newTestIngestion(t, store, IngestionServiceOptions{})

	report, err := svc.IngestFolder(context.Background(), dir, "")
	assert.NoError(t, err)
	assert.Equal(t, "configured-ns", report.Namespace)
	assert.Greater(t, store.Count("configured-ns"), 0)
}

func TestIngestFolderAbortsOnFatalEmbedderError(t *testing.T) {
	setIngestConfig(t, "test-ingest")
	dir := t.TempDir()
	writeIngestFile(t, dir, "notes.txt", "Some study text that will never be embedded.")

	store := knowledge.NewMemoryVectorStore(32)
	extractor := pdf.NewPageTextExtractor(pdf.NoopOCR{}, 3, 32, 300)
	loader := pdf.NewDocumentLoader(extractor, false, []string{".txt"})
	svc := NewIngestionService(loader, knowledge.NewChunker(80, 10), knowledge.NoopEmbedder{}, store, IngestionServiceOptions{})

	report, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.NotNil(t, report)
	assert.Equal(t, 0, report.FilesProcessed)
	assert.Equal(t, 0, store.Count("test-ingest"))
}

func TestIngestFolderWritesLedgerAndEvents(t *testing.T) {
	setIngestConfig(t, "test-ingest")
	dir := t.TempDir()
	writeIngestFile(t, dir, "notes.txt", "Magnets attract iron and steel objects.")
	writeIngestFile(t, dir, "broken.docx", "garbage bytes")

	ledger := newMemoryLedger()
	queue := &captureQueue{}
	store := knowledge.NewMemoryVectorStore(32)
	svc := newTestIngestion(t, store, IngestionServiceOptions{Ledger: ledger, Queue: queue})

	report, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.NoError(t, err)
	assert.NotZero(t, report.RunID)

	run := ledger.runs[report.RunID]
	assert.NotNil(t, run)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.FilesProcessed)
	assert.Equal(t, 1, run.FilesSkipped)
	assert.Equal(t, report.ChunksUpserted, run.ChunksUpserted)
	assert.NotNil(t, run.EndTime)

	assert.Len(t, ledger.docs, 2)
	statuses := map[string]string{}
	for _, doc := range ledger.docs {
		assert.Equal(t, report.RunID, doc.RunID)
		statuses[filepath.Base(doc.SourcePath)] = doc.Status
	}
	assert.Equal(t, models.DocStatusIngested, statuses["notes.txt"])
	assert.Equal(t, models.DocStatusSkipped, statuses["broken.docx"])

	assert.GreaterOrEqual(t, len(queue.events), 4)
	assert.Equal(t, EventRunStarted, queue.events[0].Type)
	assert.Equal(t, EventRunCompleted, queue.events[len(queue.events)-1].Type)

	fileEvents := 0
	for _, event := range queue.events {
		if event.Type == EventFileIngested {
			fileEvents++
			assert.Equal(t, report.RunID, event.RunID)
		}
	}
	assert.Equal(t, 2, fileEvents)
}

func TestIngestFolderParallelismIsBounded(t *testing.T) {
	setIngestConfig(t, "test-ingest")
	config.AppConfig.Ingest.MaxParallel = 2

	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		writeIngestFile(t, dir, name, "Every file carries one short sentence of study text.")
	}

	store := knowledge.NewMemoryVectorStore(32)
	svc := newTestIngestion(t, store, IngestionServiceOptions{})

	report, err := svc.IngestFolder(context.Background(), dir, "test-ingest")
	assert.NoError(t, err)
	assert.Equal(t, 5, report.FilesProcessed)
	assert.Equal(t, report.ChunksUpserted, store.Count("test-ingest"))
}
