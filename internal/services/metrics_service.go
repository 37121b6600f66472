package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes reported by ChatMetrics.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// ChatMetrics 对话指标
type ChatMetrics struct {
	turns          *prometheus.CounterVec
	turnDuration   prometheus.Histogram
	matches        prometheus.Histogram
	contextTokens  prometheus.Histogram
	completionToks prometheus.Counter
	notifications  *prometheus.CounterVec
}

// NewChatMetrics 创建对话指标并注册到reg
func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	factory := promauto.With(reg)
	return &ChatMetrics{
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Chat turns by outcome",
		}, []string{"outcome"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_turn_duration_seconds",
			Help:    "Wall time of a chat turn including retrieval and notification",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		matches: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_retrieval_matches",
			Help:    "Chunks retrieved per turn",
			Buckets: prometheus.LinearBuckets(0, 1, 6),
		}),
		contextTokens: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assistant_context_tokens",
			Help:    "Estimated tokens of retrieved context per turn",
			Buckets: prometheus.ExponentialBuckets(64, 2, 7),
		}),
		completionToks: factory.NewCounter(prometheus.CounterOpts{
			Name: "assistant_completion_tokens_total",
			Help: "Tokens reported by the completion API",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_notifications_total",
			Help: "Notification events fired by trigger",
		}, []string{"trigger"}),
	}
}

// ObserveTurn 记录一轮对话; nil metrics are ignored.
func (m *ChatMetrics) ObserveTurn(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(elapsed.Seconds())
}

// ObserveRetrieval 记录检索结果
func (m *ChatMetrics) ObserveRetrieval(ac AssembledContext) {
	if m == nil {
		return
	}
	m.matches.Observe(float64(len(ac.Matches)))
	m.contextTokens.Observe(float64(ac.Tokens))
}

// ObserveCompletion 记录API用量
func (m *ChatMetrics) ObserveCompletion(totalTokens int) {
	if m == nil || totalTokens <= 0 {
		return
	}
	m.completionToks.Add(float64(totalTokens))
}

// ObserveNotification 记录触发的通知
func (m *ChatMetrics) ObserveNotification(trigger string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(trigger).Inc()
}

// MetricsService 指标服务
type MetricsService struct {
	gatherer prometheus.Gatherer
}

// NewMetricsService 创建指标服务
func NewMetricsService(gatherer prometheus.Gatherer) *MetricsService {
	return &MetricsService{gatherer: gatherer}
}

// Handler 返回Prometheus指标的HTTP处理器
func (ms *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(ms.gatherer, promhttp.HandlerOpts{})
}

// ServeHTTP 实现http.Handler接口
func (ms *MetricsService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ms.Handler().ServeHTTP(w, r)
}
