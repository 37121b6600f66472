package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
)

// Config 助手的全部配置，启动时加载并校验一次
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	AI        AIConfig        `mapstructure:"ai"`
	Persona   PersonaConfig   `mapstructure:"persona"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Env  string `mapstructure:"env" validate:"oneof=development production"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// AIConfig AI配置
type AIConfig struct {
	OpenAIAPIKey   string        `mapstructure:"openai_api_key" validate:"required"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model" validate:"required"`
	EmbeddingModel string        `mapstructure:"embedding_model" validate:"required"`
	Temperature    float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxToolRounds  int           `mapstructure:"max_tool_rounds" validate:"min=1"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// BreakerThreshold consecutive failures open the completion breaker; 0 disables it.
	BreakerThreshold int           `mapstructure:"breaker_threshold" validate:"gte=0"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// PersonaConfig 人设配置
type PersonaConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Description string `mapstructure:"description"`
}

// KnowledgeConfig 知识库配置
type KnowledgeConfig struct {
	DocumentsDir     string        `mapstructure:"documents_dir" validate:"required"`
	ChunkSize        int           `mapstructure:"chunk_size" validate:"min=100,max=8000"`
	ChunkOverlap     int           `mapstructure:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	TopK             int           `mapstructure:"top_k" validate:"min=1"`
	MaxContextTokens int           `mapstructure:"max_context_tokens" validate:"min=100"`
	EmbedRetries     int           `mapstructure:"embed_retries" validate:"min=1"`
	EmbedBackoff     time.Duration `mapstructure:"embed_backoff"`
	MaxParallel      int           `mapstructure:"max_parallel" validate:"min=1"`
	// PDFLicenseKey is the unidoc metered key; empty leaves unipdf unlicensed.
	PDFLicenseKey string `mapstructure:"pdf_license_key"`
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout"`
	Pushover PushoverConfig `mapstructure:"pushover"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// PushoverConfig Pushover推送配置
type PushoverConfig struct {
	Token  string `mapstructure:"token"`
	User   string `mapstructure:"user"`
	APIURL string `mapstructure:"api_url"`
}

// SMTPConfig 邮件配置
type SMTPConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// MetricsConfig 指标配置; an empty Listen disables the metrics server.
type MetricsConfig struct {
	Listen string `mapstructure:"listen"`
}

// PushoverEnabled 推送渠道是否完整配置
func (c *Config) PushoverEnabled() bool {
	return c.Notify.Pushover.Token != "" && c.Notify.Pushover.User != ""
}

// SMTPEnabled 邮件渠道是否完整配置
func (c *Config) SMTPEnabled() bool {
	return c.Notify.SMTP.User != "" && c.Notify.SMTP.Password != "" && c.Notify.SMTP.Host != ""
}

// KafkaEnabled 事件流是否启用
func (c *Config) KafkaEnabled() bool {
	return c.Notify.Kafka.Enabled && len(c.Notify.Kafka.Brokers) > 0
}

// legacyEnv maps keys to the plain environment names the assistant has
// always been deployed with. ASSISTANT_* names still take precedence.
var legacyEnv = map[string]string{
	"ai.openai_api_key":         "OPENAI_API_KEY",
	"ai.base_url":               "OPENAI_BASE_URL",
	"notify.pushover.token":     "PUSHOVER_TOKEN",
	"notify.pushover.user":      "PUSHOVER_USER",
	"notify.smtp.user":          "SMTP_USER",
	"notify.smtp.password":      "SMTP_PASS",
	"notify.smtp.host":          "SMTP_SERVER",
	"notify.smtp.port":          "SMTP_PORT",
	"notify.kafka.brokers":      "KAFKA_BROKERS",
	"cache.redis.addr":          "REDIS_ADDR",
	"server.port":               "PORT",
	"server.env":                "ENV",
	"log.level":                 "LOG_LEVEL",
	"knowledge.pdf_license_key": "UNIDOC_LICENSE_API_KEY",
}

// Loader 配置加载器
type Loader struct {
	viper     *viper.Viper
	validator *validator.Validate
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("ASSISTANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{
		viper:     v,
		validator: validator.New(),
	}
}

// Load 从默认值、可选配置文件和环境变量加载配置
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	for key, env := range legacyEnv {
		prefixed := "ASSISTANT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := l.viper.BindEnv(key, prefixed, env); err != nil {
			return nil, apperrors.NewConfigError("bind environment " + env).WithCause(err)
		}
	}

	// 配置文件不存在不是错误
	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		l.viper.SetConfigFile(configFile)
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("read config file %s", configFile)).WithCause(err)
		}
	} else {
		l.viper.SetConfigName("config")
		l.viper.SetConfigType("yaml")
		l.viper.AddConfigPath(".")
		if err := l.viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, apperrors.NewConfigError("read config.yaml").WithCause(err)
			}
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewConfigError("decode configuration").WithCause(err)
	}

	cfg.Notify.Kafka.Brokers = trimAll(cfg.Notify.Kafka.Brokers)

	if err := l.validator.Struct(&cfg); err != nil {
		return nil, apperrors.TranslateValidation(err)
	}
	return &cfg, nil
}

// setDefaults 设置默认值
func (l *Loader) setDefaults() {
	l.viper.SetDefault("server.port", 7860)
	l.viper.SetDefault("server.env", "production")
	l.viper.SetDefault("log.level", "info")

	// AI配置默认值
	l.viper.SetDefault("ai.openai_api_key", "")
	l.viper.SetDefault("ai.base_url", "")
	l.viper.SetDefault("ai.chat_model", "gpt-4o-mini")
	l.viper.SetDefault("ai.embedding_model", "text-embedding-3-small")
	l.viper.SetDefault("ai.temperature", 0.7)
	l.viper.SetDefault("ai.max_tool_rounds", 5)
	l.viper.SetDefault("ai.request_timeout", "60s")
	l.viper.SetDefault("ai.breaker_threshold", 3)
	l.viper.SetDefault("ai.breaker_cooldown", "30s")

	l.viper.SetDefault("persona.name", "Uliana Zbezhkhovska")
	l.viper.SetDefault("persona.description", "")

	// 知识库配置默认值
	l.viper.SetDefault("knowledge.documents_dir", "me")
	l.viper.SetDefault("knowledge.chunk_size", 800)
	l.viper.SetDefault("knowledge.chunk_overlap", 120)
	l.viper.SetDefault("knowledge.top_k", 2)
	l.viper.SetDefault("knowledge.max_context_tokens", 3000)
	l.viper.SetDefault("knowledge.embed_retries", 3)
	l.viper.SetDefault("knowledge.embed_backoff", "200ms")
	l.viper.SetDefault("knowledge.max_parallel", 4)
	l.viper.SetDefault("knowledge.pdf_license_key", "")

	// 通知配置默认值
	l.viper.SetDefault("notify.timeout", "10s")
	l.viper.SetDefault("notify.pushover.token", "")
	l.viper.SetDefault("notify.pushover.user", "")
	l.viper.SetDefault("notify.pushover.api_url", "https://api.pushover.net/1/messages.json")
	l.viper.SetDefault("notify.smtp.user", "")
	l.viper.SetDefault("notify.smtp.password", "")
	l.viper.SetDefault("notify.smtp.host", "smtp.gmail.com")
	l.viper.SetDefault("notify.smtp.port", 587)
	l.viper.SetDefault("notify.kafka.enabled", false)
	l.viper.SetDefault("notify.kafka.brokers", []string{"localhost:9092"})
	l.viper.SetDefault("notify.kafka.topic", "assistant-notifications")

	l.viper.SetDefault("cache.redis.enabled", false)
	l.viper.SetDefault("cache.redis.addr", "localhost:6379")
	l.viper.SetDefault("cache.redis.password", "")
	l.viper.SetDefault("cache.redis.db", 0)
	l.viper.SetDefault("cache.redis.ttl", "24h")

	l.viper.SetDefault("metrics.listen", "")
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
