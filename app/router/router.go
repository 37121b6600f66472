package router

import (
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/aihub/persona-assistant/app/controllers"
	"github.com/aihub/persona-assistant/app/middleware"
	"github.com/aihub/persona-assistant/internal/knowledge"
	"github.com/aihub/persona-assistant/internal/services"
)

// Deps 路由需要的服务
type Deps struct {
	Title   string
	Window  *services.ChatWindow
	Index   *knowledge.MemoryIndex
	Metrics *services.MetricsService
	Logger  *zap.Logger
}

// Init registers all routes on the given register; nil means the global app.
func Init(handlers *web.ControllerRegister, deps Deps) error {
	if handlers == nil {
		handlers = web.BeeApp.Handlers
	}

	if err := middleware.Install(handlers, deps.Logger); err != nil {
		return err
	}

	chat := &controllers.ChatController{Chat: deps.Window, Title: deps.Title}
	handlers.Add("/", chat, web.WithRouterMethods(chat, "get:Get;post:Post"))

	health := &controllers.HealthController{Index: deps.Index}
	handlers.Add("/health", health, web.WithRouterMethods(health, "get:Health"))

	if deps.Metrics != nil {
		metrics := &controllers.MetricsController{Metrics: deps.Metrics}
		handlers.Add("/metrics", metrics, web.WithRouterMethods(metrics, "get:Get"))
	}
	return nil
}
