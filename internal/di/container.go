package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/aihub/persona-assistant/internal/config"
)

// NewContainer 创建容器并注册助手的全部组件
func NewContainer(cfg *config.Config, logger *zap.Logger, infra Infra) (*dig.Container, error) {
	container := dig.New()
	if err := RegisterProviders(container, cfg, logger, infra); err != nil {
		return nil, err
	}
	return container, nil
}

// Resolve 从容器中取出单个组件
func Resolve[T any](container *dig.Container) (T, error) {
	var out T
	err := container.Invoke(func(v T) { out = v })
	return out, err
}
