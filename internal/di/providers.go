package di

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/aihub/persona-assistant/internal/config"
	apperrors "github.com/aihub/persona-assistant/internal/errors"
	"github.com/aihub/persona-assistant/internal/knowledge"
	"github.com/aihub/persona-assistant/internal/notify"
	"github.com/aihub/persona-assistant/internal/services"
)

// Infra 启动时建立的可选外部连接; nil fields are disabled.
type Infra struct {
	Redis     redis.Cmdable
	Publisher notify.Publisher
}

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container, cfg *config.Config, logger *zap.Logger, infra Infra) error {
	providers := []interface{}{
		func() *config.Config { return cfg },
		func() *zap.Logger { return logger },
		func() Infra { return infra },
		prometheus.NewRegistry,
		func(reg *prometheus.Registry) *apperrors.ErrorMonitor { return apperrors.NewErrorMonitor(reg) },
		apperrors.NewErrorLogger,
		NewOpenAIClient,
		provideEmbedder,
		func(e knowledge.Embedder) *knowledge.MemoryIndex { return knowledge.NewMemoryIndex(e.Dimensions()) },
		provideLoader,
		providePipeline,
		provideAssembler,
		provideEngine,
		func(reg *prometheus.Registry) *services.ChatMetrics { return services.NewChatMetrics(reg) },
		func(reg *prometheus.Registry) *services.MetricsService { return services.NewMetricsService(reg) },
		provideNotifier,
		provideChatService,
		services.NewChatWindow,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

// NewOpenAIClient 创建OpenAI客户端
func NewOpenAIClient(cfg *config.Config) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.AI.OpenAIAPIKey)
	if cfg.AI.BaseURL != "" {
		clientCfg.BaseURL = cfg.AI.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.AI.RequestTimeout}
	return openai.NewClientWithConfig(clientCfg)
}

// provideEmbedder builds the query embedder: provider plus optional redis cache.
func provideEmbedder(cfg *config.Config, client *openai.Client, logger *zap.Logger, infra Infra) knowledge.Embedder {
	var embedder knowledge.Embedder = knowledge.NewOpenAIEmbedder(client, cfg.AI.EmbeddingModel)
	if infra.Redis != nil {
		embedder = knowledge.NewCachedEmbedder(infra.Redis, embedder, cfg.AI.EmbeddingModel, cfg.Cache.Redis.TTL, logger.Named("embedding_cache"))
	}
	return embedder
}

func provideLoader(logger *zap.Logger, errLog *apperrors.ErrorLogger) *knowledge.DocumentLoader {
	return knowledge.NewDocumentLoader(knowledge.NewFileParserManager(), logger.Named("loader"), errLog)
}

// providePipeline retries embeddings during the startup fan-out; queries do not retry.
func providePipeline(cfg *config.Config, embedder knowledge.Embedder, index *knowledge.MemoryIndex, logger *zap.Logger, errLog *apperrors.ErrorLogger) *knowledge.IndexPipeline {
	retrying := knowledge.NewRetryingEmbedder(embedder, cfg.Knowledge.EmbedRetries, cfg.Knowledge.EmbedBackoff, logger.Named("embedder"))
	chunker := knowledge.NewChunker(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	return knowledge.NewIndexPipeline(chunker, retrying, index, cfg.Knowledge.MaxParallel, logger.Named("indexer"), errLog)
}

func provideAssembler(cfg *config.Config, embedder knowledge.Embedder, index *knowledge.MemoryIndex, logger *zap.Logger, errLog *apperrors.ErrorLogger) *services.ContextAssembler {
	return services.NewContextAssembler(embedder, index, services.NewTokenCounter(),
		cfg.Knowledge.TopK, cfg.Knowledge.MaxContextTokens, logger.Named("retrieval"), errLog)
}

func provideEngine(cfg *config.Config, client *openai.Client, logger *zap.Logger) *services.ConversationEngine {
	persona := services.Persona{Name: cfg.Persona.Name, Description: cfg.Persona.Description}
	return services.NewConversationEngine(client, persona, services.EngineOptions{
		Model:         cfg.AI.ChatModel,
		Temperature:   cfg.AI.Temperature,
		MaxToolRounds: cfg.AI.MaxToolRounds,
		Breaker:       services.NewCircuitBreaker(cfg.AI.BreakerThreshold, cfg.AI.BreakerCooldown),
	}, logger.Named("engine"))
}

// provideNotifier enables each channel whose configuration is complete.
func provideNotifier(cfg *config.Config, logger *zap.Logger, errLog *apperrors.ErrorLogger, infra Infra) *notify.Notifier {
	var (
		channels []notify.Channel
		opts     []notify.Option
	)
	if cfg.PushoverEnabled() {
		push := notify.NewPushoverChannel(cfg.Notify.Pushover.Token, cfg.Notify.Pushover.User,
			cfg.Notify.Pushover.APIURL, cfg.Notify.Timeout)
		channels = append(channels, push)
		opts = append(opts, notify.WithAlertChannel(push))
	}
	if cfg.SMTPEnabled() {
		channels = append(channels, notify.NewEmailChannel(notify.SMTPSettings{
			Host:     cfg.Notify.SMTP.Host,
			Port:     cfg.Notify.SMTP.Port,
			User:     cfg.Notify.SMTP.User,
			Password: cfg.Notify.SMTP.Password,
		}, cfg.Persona.Name, cfg.Notify.Timeout))
		opts = append(opts, notify.WithOwnerAddress(cfg.Notify.SMTP.User))
	}
	if infra.Publisher != nil {
		channels = append(channels, notify.NewKafkaChannel(infra.Publisher))
	}
	opts = append(opts, notify.WithTimeout(cfg.Notify.Timeout))

	n := notify.NewNotifier(notify.DefaultDetector(), channels, logger.Named("notify"), errLog, opts...)
	if len(channels) == 0 {
		logger.Warn("No notification channel configured; triggers will only be logged")
	} else {
		logger.Info("Notification channels enabled", zap.Strings("channels", n.Channels()))
	}
	return n
}

func provideChatService(assembler *services.ContextAssembler, engine *services.ConversationEngine, notifier *notify.Notifier,
	metrics *services.ChatMetrics, logger *zap.Logger, errLog *apperrors.ErrorLogger) *services.ChatService {
	return services.NewChatService(assembler, engine, notifier, metrics, logger.Named("chat"), errLog)
}
