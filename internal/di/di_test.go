package di

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aihub/persona-assistant/internal/config"
	"github.com/aihub/persona-assistant/internal/knowledge"
	"github.com/aihub/persona-assistant/internal/notify"
	"github.com/aihub/persona-assistant/internal/services"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.AI.OpenAIAPIKey = "sk-test"
	cfg.AI.ChatModel = "gpt-4o-mini"
	cfg.AI.EmbeddingModel = "text-embedding-3-small"
	cfg.AI.MaxToolRounds = 5
	cfg.AI.RequestTimeout = time.Minute
	cfg.Persona.Name = "Uliana Zbezhkhovska"
	cfg.Knowledge.DocumentsDir = "me"
	cfg.Knowledge.ChunkSize = 800
	cfg.Knowledge.ChunkOverlap = 120
	cfg.Knowledge.TopK = 2
	cfg.Knowledge.MaxContextTokens = 3000
	cfg.Knowledge.EmbedRetries = 3
	cfg.Knowledge.MaxParallel = 4
	cfg.Notify.Timeout = time.Second
	return cfg
}

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(key, eventType string, payload interface{}) error {
	return m.Called(key, eventType, payload).Error(0)
}

func TestNewContainer_ResolvesChatWindow(t *testing.T) {
	container, err := NewContainer(testConfig(), zap.NewNop(), Infra{})
	require.NoError(t, err)

	err = container.Invoke(func(window *services.ChatWindow, index *knowledge.MemoryIndex, pipeline *knowledge.IndexPipeline, notifier *notify.Notifier) {
		assert.NotNil(t, window)
		assert.NotNil(t, pipeline)
		assert.Equal(t, 1536, index.Dimensions())
		assert.Empty(t, notifier.Channels())
	})
	assert.NoError(t, err)
}

func TestResolve(t *testing.T) {
	container, err := NewContainer(testConfig(), zap.NewNop(), Infra{})
	require.NoError(t, err)

	window, err := Resolve[*services.ChatWindow](container)
	require.NoError(t, err)
	assert.NotNil(t, window)

	_, err = Resolve[*strings.Builder](container)
	assert.Error(t, err, "unregistered types are reported")
}

func TestRegisterProviders_EnablesConfiguredChannels(t *testing.T) {
	cfg := testConfig()
	cfg.Notify.Pushover.Token = "tok"
	cfg.Notify.Pushover.User = "usr"
	cfg.Notify.SMTP.User = "owner@example.com"
	cfg.Notify.SMTP.Password = "secret"
	cfg.Notify.SMTP.Host = "smtp.example.com"
	cfg.Notify.SMTP.Port = 587

	container, err := NewContainer(cfg, zap.NewNop(), Infra{Publisher: new(publisherMock)})
	require.NoError(t, err)

	err = container.Invoke(func(n *notify.Notifier) {
		assert.Equal(t, []string{"push", "email", "kafka"}, n.Channels())
	})
	assert.NoError(t, err)
}

func TestNewOpenAIClient_UsesBaseURL(t *testing.T) {
	cfg := testConfig()
	cfg.AI.BaseURL = "http://localhost:8080/v1"
	assert.NotNil(t, NewOpenAIClient(cfg))
}
