package errors

import (
	"go.uber.org/zap"
)

// ErrorLogger 错误日志器
//
// Logs a degraded operation once and counts it on the monitor. Components
// call it at the point where they decide to continue without the failed
// piece.
type ErrorLogger struct {
	logger  *zap.Logger
	monitor *ErrorMonitor
}

// NewErrorLogger 创建错误日志器; monitor may be nil.
func NewErrorLogger(logger *zap.Logger, monitor *ErrorMonitor) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{logger: logger, monitor: monitor}
}

// LogError 记录错误
func (el *ErrorLogger) LogError(stage string, err error, fields ...zap.Field) {
	if el == nil || err == nil {
		return
	}
	appErr := GetAppError(err)

	logFields := append([]zap.Field{
		zap.String("stage", stage),
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_type", getErrorTypeString(appErr.Type)),
		zap.String("error_message", appErr.Message),
	}, fields...)
	if appErr.Cause != nil {
		logFields = append(logFields, zap.NamedError("cause", appErr.Cause))
	}

	switch appErr.Type {
	case ErrorTypeSystem:
		el.logger.Error("System error", logFields...)
	case ErrorTypeValidation:
		// skipped data, must show at the default level
		el.logger.Warn("Validation error", logFields...)
	default:
		el.logger.Warn("External service error", logFields...)
	}

	el.monitor.Record(appErr, stage)
}
