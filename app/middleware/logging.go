package middleware

import (
	"time"

	"github.com/beego/beego/v2/server/web"
	beecontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

const requestStartKey = "request_start"

// RequestStart 记录请求开始时间
func RequestStart() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		ctx.Input.SetData(requestStartKey, time.Now())
	}
}

// RequestLogger logs the completed request. Register it at FinishRouter
// with WithReturnOnOutput(false) so it runs after the body is written.
func RequestLogger(logger *zap.Logger) web.FilterFunc {
	return func(ctx *beecontext.Context) {
		status := ctx.ResponseWriter.Status
		if status == 0 {
			status = 200
		}
		fields := []zap.Field{
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.Int("status", status),
			zap.String("remote_addr", ClientIP(ctx)),
		}
		if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			fields = append(fields, zap.Duration("duration", time.Since(start)))
		}

		switch {
		case status >= 500:
			logger.Error("Request completed", fields...)
		case status >= 400:
			logger.Warn("Request completed", fields...)
		default:
			logger.Debug("Request completed", fields...)
		}
	}
}

// Install 注册全部过滤器
func Install(handlers *web.ControllerRegister, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := handlers.InsertFilter("*", web.BeforeRouter, RequestStart()); err != nil {
		return err
	}
	if err := handlers.InsertFilter("*", web.BeforeRouter, SecurityHeaders()); err != nil {
		return err
	}
	return handlers.InsertFilter("*", web.FinishRouter, RequestLogger(logger), web.WithReturnOnOutput(false))
}
