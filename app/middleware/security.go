package middleware

import (
	"strings"

	"github.com/beego/beego/v2/server/web"
	beecontext "github.com/beego/beego/v2/server/web/context"
)

// SecurityHeaders 安全头中间件
func SecurityHeaders() web.FilterFunc {
	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'self'; style-src 'self' 'unsafe-inline'",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
	}
	return func(ctx *beecontext.Context) {
		for key, value := range headers {
			ctx.Output.Header(key, value)
		}
	}
}

// ClientIP 获取客户端IP
func ClientIP(ctx *beecontext.Context) string {
	// X-Forwarded-For可能包含多个IP，取第一个
	if xff := ctx.Input.Header("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := ctx.Input.Header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return ctx.Input.IP()
}
