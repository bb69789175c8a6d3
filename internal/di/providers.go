package di

import (
	"context"
	"fmt"

	"github.com/aihub/pdfchat/internal/auth"
	"github.com/aihub/pdfchat/internal/chat"
	"github.com/aihub/pdfchat/internal/config"
	"github.com/aihub/pdfchat/internal/database"
	"github.com/aihub/pdfchat/internal/kafka"
	"github.com/aihub/pdfchat/internal/knowledge"
	"github.com/aihub/pdfchat/internal/metrics"
	"github.com/aihub/pdfchat/internal/repository"
	"github.com/aihub/pdfchat/internal/services"
	"github.com/aihub/pdfchat/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func providers() []interface{} {
	return []interface{}{
		provideMetrics,
		provideDatabase,
		provideRedis,
		provideOpenAIClient,
		provideEmbedder,
		provideChatModel,
		provideVectorStore,
		provideBuildLocker,
		provideMinIOStore,
		provideObjectStore,
		provideContentSource,
		provideLoader,
		provideIndexManager,
		repository.NewDocumentRepository,
		provideHistoryStore,
		chat.NewQueryRewriter,
		chat.NewAnswerSynthesizer,
		provideStatusCache,
		provideStatusListeners,
		provideUploadService,
		provideConversationService,
		provideDocumentService,
		provideJWTService,
		provideHealthChecker,
	}
}

func provideMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func provideDatabase(cfg *config.Config, logger *zap.Logger, lc *Lifecycle) (*gorm.DB, error) {
	db, err := database.NewPostgres(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	lc.Append(func() error { return database.Close(db) })
	return db, nil
}

// provideRedis 未启用或连接失败时返回nil，依赖方退化为进程内实现
func provideRedis(cfg *config.Config, logger *zap.Logger, lc *Lifecycle) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := database.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logger.Warn("Failed to initialize Redis", zap.Error(err))
		return nil
	}
	lc.Append(client.Close)
	return client
}

func provideOpenAIClient(cfg *config.Config, logger *zap.Logger) *openai.Client {
	if cfg.AI.OpenAIAPIKey == "" {
		logger.Warn("OpenAI API key not configured, AI services will not be available")
		return nil
	}
	clientConfig := openai.DefaultConfig(cfg.AI.OpenAIAPIKey)
	if cfg.AI.BaseURL != "" {
		clientConfig.BaseURL = cfg.AI.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

func provideEmbedder(cfg *config.Config, client *openai.Client) knowledge.Embedder {
	return knowledge.NewOpenAIEmbedder(client, cfg.Knowledge.Embedding.Model, cfg.Knowledge.Embedding.BatchSize)
}

func provideChatModel(cfg *config.Config, client *openai.Client) chat.ChatModel {
	return chat.NewOpenAIChatModel(client, cfg.AI.ChatModel, cfg.AI.Temperature, cfg.AI.MaxTokens)
}

func provideVectorStore(cfg *config.Config, logger *zap.Logger) (knowledge.VectorStore, error) {
	vs := cfg.Knowledge.VectorStore
	logger.Info("initializing vector store", zap.String("provider", vs.Provider))

	switch vs.Provider {
	case "qdrant":
		return knowledge.NewQdrantVectorStore(knowledge.QdrantOptions{
			Endpoint:         vs.Qdrant.Endpoint,
			APIKey:           vs.Qdrant.APIKey,
			CollectionPrefix: vs.Qdrant.CollectionPrefix,
			VectorSize:       vs.Qdrant.VectorSize,
			Timeout:          vs.Qdrant.Timeout,
		})
	case "milvus":
		return knowledge.NewMilvusVectorStore(context.Background(), knowledge.MilvusOptions{
			Address:    vs.Milvus.Address,
			Username:   vs.Milvus.Username,
			Password:   vs.Milvus.Password,
			Collection: vs.Milvus.Collection,
			Database:   vs.Milvus.Database,
			VectorSize: vs.Milvus.VectorSize,
			UseTLS:     vs.Milvus.TLS,
		})
	case "memory", "":
		return knowledge.NewMemoryVectorStore(), nil
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", vs.Provider)
	}
}

func provideBuildLocker(cfg *config.Config, client *redis.Client, logger *zap.Logger) (knowledge.BuildLocker, error) {
	lock := cfg.Knowledge.Lock
	if lock.Provider != "redis" {
		return knowledge.LocalBuildLocker{}, nil
	}
	if client == nil {
		return nil, fmt.Errorf("knowledge.lock.provider is redis but redis is not available")
	}
	return knowledge.NewRedisBuildLocker(client, lock.TTL, lock.WaitTimeout, logger), nil
}

// provideMinIOStore storage.provider不是minio时返回nil
func provideMinIOStore(cfg *config.Config, logger *zap.Logger) (*storage.MinIOStore, error) {
	if cfg.Storage.Provider != "minio" {
		return nil, nil
	}
	return storage.NewMinIOStore(context.Background(), cfg.Storage, logger)
}

func provideObjectStore(store *storage.MinIOStore) services.ObjectStore {
	if store == nil {
		return nil
	}
	return store
}

func provideContentSource(store *storage.MinIOStore) knowledge.ContentSource {
	return storage.NewMinIOContentSource(store, knowledge.NewHTTPContentSource(nil))
}

func provideLoader(source knowledge.ContentSource, logger *zap.Logger) knowledge.DocumentLoader {
	return knowledge.NewLoader(source, knowledge.NewPDFParser(), logger)
}

func provideIndexManager(
	cfg *config.Config,
	store knowledge.VectorStore,
	loader knowledge.DocumentLoader,
	embedder knowledge.Embedder,
	documents repository.DocumentRepository,
	locker knowledge.BuildLocker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *knowledge.IndexManager {
	chunker := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	return knowledge.NewIndexManager(store, loader, chunker, embedder, documents, locker, m, logger)
}

func provideHistoryStore(db *gorm.DB, logger *zap.Logger) services.HistoryStore {
	return services.NewGormHistoryStore(db, logger)
}

func provideStatusCache(cfg *config.Config, client *redis.Client, logger *zap.Logger) services.StatusCache {
	if client == nil {
		return services.NewMemoryStatusCache()
	}
	return services.NewRedisStatusCache(client, cfg.Redis.StatusTTL, logger)
}

func provideStatusListeners(cfg *config.Config, cache services.StatusCache, logger *zap.Logger, lc *Lifecycle) []services.StatusListener {
	listeners := []services.StatusListener{cache}
	if !cfg.Kafka.Enabled {
		return listeners
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.StatusTopic, logger)
	if err != nil {
		logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		return listeners
	}
	lc.Append(producer.Close)
	return append(listeners, services.NewKafkaStatusListener(producer, logger))
}

func provideUploadService(
	store services.ObjectStore,
	documents repository.DocumentRepository,
	index *knowledge.IndexManager,
	listeners []services.StatusListener,
	m *metrics.Metrics,
	logger *zap.Logger,
) *services.UploadService {
	return services.NewUploadService(store, documents, index, listeners, m, logger)
}

func provideConversationService(
	cfg *config.Config,
	index *knowledge.IndexManager,
	history services.HistoryStore,
	rewriter *chat.QueryRewriter,
	synthesizer *chat.AnswerSynthesizer,
	m *metrics.Metrics,
	logger *zap.Logger,
) *services.ConversationService {
	return services.NewConversationService(index, history, rewriter, synthesizer, cfg.Knowledge.TopK, m, logger)
}

func provideDocumentService(
	documents repository.DocumentRepository,
	store services.ObjectStore,
	index *knowledge.IndexManager,
	history services.HistoryStore,
	logger *zap.Logger,
) *services.DocumentService {
	return services.NewDocumentService(documents, store, index, history, logger)
}

func provideJWTService(cfg *config.Config) (*auth.JWTService, error) {
	return auth.NewJWTService(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.ExpiresIn)
}

func provideHealthChecker(
	db *gorm.DB,
	client *redis.Client,
	store *storage.MinIOStore,
	index *knowledge.IndexManager,
	logger *zap.Logger,
) (*database.HealthChecker, error) {
	checker := database.NewHealthChecker(logger)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	checker.RegisterSQL("postgres", sqlDB)

	if client != nil {
		checker.Register("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	if store != nil {
		checker.Register("minio", store.Ping)
	}
	checker.Register("knowledge", func(ctx context.Context) error {
		if !index.Ready() {
			return fmt.Errorf("vector store or embedding provider not ready")
		}
		return nil
	})

	return checker, nil
}
