package errors

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrorMonitor 错误监控器
//
// Counts degraded operations (skipped documents, failed embeddings, failed
// notifications) by code and stage. The process keeps running through all of
// them, so this is the only place they add up.
type ErrorMonitor struct {
	errorCounter *prometheus.CounterVec

	stats      map[string]*ErrorStats
	statsMutex sync.RWMutex
}

// ErrorStats 错误统计信息
type ErrorStats struct {
	Code      string
	Type      string
	Stage     string
	Count     int64
	FirstSeen time.Time
	LastSeen  time.Time
}

// NewErrorMonitor 创建错误监控器，指标注册到给定的registry
func NewErrorMonitor(reg prometheus.Registerer) *ErrorMonitor {
	em := &ErrorMonitor{
		stats: make(map[string]*ErrorStats),
	}
	em.errorCounter = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_errors_total",
			Help: "Total number of degraded operations by error code and stage",
		},
		[]string{"code", "type", "stage"},
	)
	return em
}

// Record 记录错误; nil monitor and nil error are no-ops.
func (em *ErrorMonitor) Record(err error, stage string) {
	if em == nil || err == nil {
		return
	}
	appErr := GetAppError(err)
	typ := getErrorTypeString(appErr.Type)
	em.errorCounter.WithLabelValues(string(appErr.Code), typ, stage).Inc()

	em.statsMutex.Lock()
	defer em.statsMutex.Unlock()

	key := string(appErr.Code) + ":" + stage
	now := time.Now()
	stats, exists := em.stats[key]
	if !exists {
		stats = &ErrorStats{
			Code:      string(appErr.Code),
			Type:      typ,
			Stage:     stage,
			FirstSeen: now,
		}
		em.stats[key] = stats
	}
	stats.Count++
	stats.LastSeen = now
}

// GetStats 获取错误统计信息副本
func (em *ErrorMonitor) GetStats() map[string]ErrorStats {
	em.statsMutex.RLock()
	defer em.statsMutex.RUnlock()

	result := make(map[string]ErrorStats, len(em.stats))
	for k, v := range em.stats {
		result[k] = *v
	}
	return result
}

// GetTopErrors 获取最常见的错误
func (em *ErrorMonitor) GetTopErrors(limit int) []ErrorStats {
	em.statsMutex.RLock()
	list := make([]ErrorStats, 0, len(em.stats))
	for _, s := range em.stats {
		list = append(list, *s)
	}
	em.statsMutex.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Code+list[i].Stage < list[j].Code+list[j].Stage
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
