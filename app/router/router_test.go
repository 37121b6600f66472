package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aihub/persona-assistant/internal/knowledge"
	"github.com/aihub/persona-assistant/internal/services"
)

type nopRetriever struct{}

func (nopRetriever) Assemble(ctx context.Context, message string) services.AssembledContext {
	return services.AssembledContext{}
}

type echoReplier struct{}

func (echoReplier) Reply(ctx context.Context, req services.ReplyRequest) (*services.Reply, error) {
	return &services.Reply{Content: "echo: " + req.Message}, nil
}

func TestInit_RegistersRoutes(t *testing.T) {
	window := services.NewChatWindow(services.NewChatService(nopRetriever{}, echoReplier{}, nil, nil, nil, nil))
	handlers := web.NewControllerRegister()
	require.NoError(t, Init(handlers, Deps{
		Title:   "Uliana",
		Window:  window,
		Index:   knowledge.NewMemoryIndex(3),
		Metrics: services.NewMetricsService(prometheus.NewRegistry()),
	}))

	for _, path := range []string{"/", "/health", "/metrics"} {
		rec := httptest.NewRecorder()
		handlers.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(url.Values{"message": {"hi"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handlers.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "echo: hi")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Len(t, window.History(), 2)
}

func TestInit_MetricsRouteOptional(t *testing.T) {
	handlers := web.NewControllerRegister()
	require.NoError(t, Init(handlers, Deps{Index: knowledge.NewMemoryIndex(3)}))

	rec := httptest.NewRecorder()
	handlers.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
