package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/consul"
	"github.com/studyhub/backend-go/internal/database"
	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/etcd"
	"github.com/studyhub/backend-go/internal/interfaces"
	"github.com/studyhub/backend-go/internal/kafka"
	"github.com/studyhub/backend-go/internal/knowledge"
	"github.com/studyhub/backend-go/internal/logger"
	"github.com/studyhub/backend-go/internal/middleware"
	"github.com/studyhub/backend-go/internal/pdf"
	"github.com/studyhub/backend-go/internal/repository"
	"github.com/studyhub/backend-go/internal/services"
)

// Options 进程角色差异
// 摄取入口允许自动建集合，HTTP服务进程还要拉起Kafka消费者。
type Options struct {
	AutoCreateCollections bool
	StartConsumer         bool
}

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error

	manager   *middleware.MiddlewareManager
	dbWrapper *database.DatabaseWrapper
	registry  interfaces.RegistryInterface

	metricsService   *services.MetricsService
	errorReporter    *errors.ErrorReporter
	notesService     *services.NotesService
	quizService      *services.QuizService
	ingestionService *services.IngestionService
	ingestionRepo    repository.IngestionRepository
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// SetGlobalApp sets the global app instance
func SetGlobalApp(app *App) {
	globalApp = app
}

// Init bootstraps configuration, logger, backends and the retrieval services.
// 配置类错误（集合缺失、向量维度不一致）直接让启动失败。
func Init(opts Options) (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}
	cfg := config.AppConfig

	// 摄取台账，database.enabled=false时db为nil，台账能力整体关闭
	db, err := database.InitDB()
	if err != nil {
		return nil, err
	}
	if db != nil {
		app.cleanupTasks = append(app.cleanupTasks, database.CloseDB)
		app.ingestionRepo = repository.NewIngestionRepository(db)

		wrapper, err := database.NewDatabaseWrapper(db)
		if err != nil {
			logger.Warn("database health checker unavailable", zap.Error(err))
		} else {
			app.dbWrapper = wrapper
			wrapper.StartHealthChecker(context.Background())
		}
	}

	// Redis答案缓存，连不上只是少了缓存
	if _, err := database.InitRedis(); err != nil {
		logger.Warn("Failed to initialize Redis", zap.Error(err))
	} else {
		app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
	}

	// 向量存储、题库、模型服务、归档
	manager, err := middleware.NewMiddlewareManager(opts.AutoCreateCollections)
	if err != nil {
		return nil, err
	}
	app.manager = manager

	// 向量维度对不上属于配置错误，不能等到第一次写入才发现
	if err := manager.GetAI().ValidateDimensions(); err != nil {
		return nil, err
	}

	app.metricsService = services.NewMetricsService()
	app.errorReporter = errors.NewErrorReporter(
		logger.Logger,
		errors.NewErrorMonitor(app.metricsService.Registerer()),
	)
	answerCache := services.NewAnswerCache(database.RedisClient, cfg.Retrieval.AnswerCacheTTL)

	app.notesService = services.NewNotesService(
		manager.GetAI().Embedder(),
		manager.GetVector().Store(),
		manager.GetAI().Generator(),
		answerCache,
		app.metricsService,
	)
	app.quizService = services.NewQuizService(
		manager.GetQuestionBank().Bank(),
		manager.GetAI().Generator(),
		answerCache,
		app.metricsService,
	)

	// Kafka生产者先于摄取服务建出来，摄取事件经它广播
	if cfg.Kafka.Enabled {
		if err := kafka.InitProducer(cfg.Kafka.Brokers); err != nil {
			logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				kafka.CloseProducer()
				return nil
			})
		}
	}

	app.ingestionService = buildIngestionService(app, manager)

	// 异步摄取请求消费者
	if cfg.Kafka.Enabled && opts.StartConsumer {
		if err := kafka.InitConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID); err != nil {
			logger.Warn("Failed to initialize Kafka consumer", zap.Error(err))
		} else {
			consumer := kafka.GetConsumer()
			consumer.SetMetrics(app.metricsService)
			consumer.RegisterHandler(cfg.Kafka.RequestsTopic, ingestRequestHandler(app.ingestionService))
			if err := consumer.Start(context.Background()); err != nil {
				logger.Warn("Failed to start Kafka consumer", zap.Error(err))
			} else {
				app.cleanupTasks = append(app.cleanupTasks, func() error {
					kafka.CloseConsumer()
					return nil
				})
			}
		}
	}

	// 服务注册，consul优先，其次etcd，默认都关
	if registry, err := buildRegistry(); err != nil {
		logger.Warn("Service registration unavailable", zap.Error(err))
	} else if registry != nil {
		if err := registry.Register(context.Background()); err != nil {
			logger.Warn("Failed to register service", zap.Error(err))
		} else {
			app.registry = registry
			app.cleanupTasks = append(app.cleanupTasks, registry.Deregister)
		}
	}

	SetGlobalApp(app)
	return app, nil
}

func buildIngestionService(app *App, manager *middleware.MiddlewareManager) *services.IngestionService {
	cfg := config.AppConfig

	ocrEngine := pdf.NewOCREngine(
		cfg.Ingest.OCR.Enabled,
		cfg.Ingest.OCR.Binary,
		cfg.Ingest.OCR.Languages,
		time.Duration(cfg.Ingest.OCR.Timeout)*time.Second,
	)
	extractor := pdf.NewPageTextExtractor(
		ocrEngine,
		cfg.Ingest.ClassifySamplePages,
		cfg.Ingest.MinNativeChars,
		cfg.Ingest.OCR.DPI,
	)
	loader := pdf.NewDocumentLoader(extractor, cfg.Ingest.Recursive, cfg.Ingest.AllowedTypes)
	chunker := knowledge.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)

	opts := services.IngestionServiceOptions{
		Metrics: app.metricsService,
	}
	if app.ingestionRepo != nil {
		opts.Ledger = app.ingestionRepo
	}
	if minioService := manager.GetMinIO(); minioService != nil {
		opts.Archiver = minioService.Archiver()
	}
	if producer := kafka.GetProducer(); producer != nil {
		opts.Queue = producer
	}

	return services.NewIngestionService(
		loader,
		chunker,
		manager.GetAI().Embedder(),
		manager.GetVector().Store(),
		opts,
	)
}

// ingestRequestHandler 消费异步摄取请求
// 永久性错误（消息格式坏、请求不合法、配置缺陷）标记跳过，
// 暂时性后端故障返回错误等待重投。
func ingestRequestHandler(svc *services.IngestionService) kafka.MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		req, err := kafka.ParseIngestRequest(message.Value)
		if err != nil {
			logger.Warn("dropping malformed ingest request",
				zap.Int64("offset", message.Offset),
				zap.Error(err))
			return nil
		}

		report, err := svc.IngestFolder(ctx, req.Folder, req.Namespace)
		if err != nil {
			switch errors.CategoryOf(err) {
			case errors.ReasonInvalidRequest, errors.ReasonIndexMissing:
				logger.Warn("dropping unprocessable ingest request",
					zap.String("folder", req.Folder),
					zap.Error(err))
				return nil
			default:
				return err
			}
		}

		logger.Info("async ingestion completed",
			zap.Uint("run_id", report.RunID),
			zap.String("folder", report.Folder),
			zap.Int("files_processed", report.FilesProcessed),
			zap.Int("files_skipped", report.FilesSkipped))
		return nil
	}
}

func buildRegistry() (interfaces.RegistryInterface, error) {
	cfg := config.AppConfig
	if cfg.Consul.Enabled {
		client, err := consul.NewClient(cfg.Consul.Address, true, logger.Logger)
		if err != nil {
			return nil, err
		}
		return consul.NewServiceRegistry(client, cfg.Consul.ServiceID, cfg.Consul.ServiceName, logger.Logger), nil
	}
	if cfg.Etcd.Enabled {
		client, err := etcd.NewClient(cfg.Etcd.Endpoints, true, logger.Logger)
		if err != nil {
			return nil, err
		}
		return etcd.NewServiceRegistry(client, cfg.Etcd.ServiceID, cfg.Etcd.ServiceName, logger.Logger), nil
	}
	return nil, nil
}

// Manager exposes the backend manager for readiness endpoints.
func (a *App) Manager() *middleware.MiddlewareManager {
	return a.manager
}

// Metrics exposes the metrics service for the /metrics endpoint.
func (a *App) Metrics() *services.MetricsService {
	return a.metricsService
}

// ErrorReporter exposes the shared error reporter for the HTTP surface.
func (a *App) ErrorReporter() *errors.ErrorReporter {
	return a.errorReporter
}

// Notes exposes the notes retrieval service.
func (a *App) Notes() *services.NotesService {
	return a.notesService
}

// Quiz exposes the quiz generation service.
func (a *App) Quiz() *services.QuizService {
	return a.quizService
}

// Ingestion exposes the folder ingestion service.
func (a *App) Ingestion() *services.IngestionService {
	return a.ingestionService
}

// IngestionRepo exposes the ingestion ledger, nil when the database is off.
func (a *App) IngestionRepo() repository.IngestionRepository {
	return a.ingestionRepo
}

// DBWrapper exposes the database health wrapper, nil when the database is off.
func (a *App) DBWrapper() *database.DatabaseWrapper {
	return a.dbWrapper
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	if a.dbWrapper != nil {
		if err := a.dbWrapper.Close(); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
