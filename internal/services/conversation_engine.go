package services

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
	"github.com/aihub/persona-assistant/internal/notify"
)

// toolAck is the tool result returned to the model for every recorded call.
const toolAck = `{"recorded":"ok"}`

// ChatCompleter 聊天补全接口，*openai.Client 实现
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ReplyRequest 一次回复所需的输入
type ReplyRequest struct {
	Message string
	History []Turn
	Context string
}

// Reply 模型回复
type Reply struct {
	Content   string
	ToolCalls []notify.ToolCall
	Usage     openai.Usage
}

// EngineOptions 引擎参数
type EngineOptions struct {
	Model         string
	Temperature   float32
	MaxToolRounds int
	// Breaker fails turns fast while the API keeps erroring; nil disables it.
	Breaker *CircuitBreaker
}

// ConversationEngine 无状态的对话引擎
type ConversationEngine struct {
	client  ChatCompleter
	persona Persona
	opts    EngineOptions
	logger  *zap.Logger
}

// NewConversationEngine 创建对话引擎
func NewConversationEngine(client ChatCompleter, persona Persona, opts EngineOptions, logger *zap.Logger) *ConversationEngine {
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationEngine{
		client:  client,
		persona: persona,
		opts:    opts,
		logger:  logger,
	}
}

// Reply sends [system, history..., user] to the model. Tool calls are
// recorded, acknowledged and the model is asked again, at most
// MaxToolRounds times. The engine performs no side effects itself.
func (e *ConversationEngine) Reply(ctx context.Context, req ReplyRequest) (*Reply, error) {
	messages := e.buildMessages(req)
	tools := assistantTools()
	reply := &Reply{}

	for round := 0; round <= e.opts.MaxToolRounds; round++ {
		var resp openai.ChatCompletionResponse
		err := e.opts.Breaker.Call(func() error {
			var callErr error
			resp, callErr = e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       e.opts.Model,
				Messages:    messages,
				Temperature: e.opts.Temperature,
				Tools:       tools,
			})
			return callErr
		})
		if err != nil {
			return nil, apperrors.NewCompletionError("chat completion request", err)
		}
		addUsage(&reply.Usage, resp.Usage)

		if len(resp.Choices) == 0 {
			return nil, apperrors.NewCompletionError("empty choice list", nil)
		}
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			reply.Content = msg.Content
			e.logger.Debug("Completion received",
				zap.String("model", e.opts.Model),
				zap.Int("rounds", round+1),
				zap.Int("total_tokens", reply.Usage.TotalTokens))
			return reply, nil
		}

		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			call := notify.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: e.parseArguments(tc.Function.Name, tc.Function.Arguments),
			}
			reply.ToolCalls = append(reply.ToolCalls, call)
			e.logger.Info("Tool call recorded", zap.String("tool", call.Name))

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    toolAck,
				ToolCallID: tc.ID,
			})
		}
	}

	return nil, apperrors.NewCompletionError(fmt.Sprintf("no final answer after %d tool rounds", e.opts.MaxToolRounds), nil)
}

func (e *ConversationEngine) buildMessages(req ReplyRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: e.persona.SystemPrompt(req.Context),
	})
	for _, t := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})
}

// parseArguments flattens the JSON arguments of a tool call into strings.
// Malformed arguments yield an empty map; the call is still recorded.
func (e *ConversationEngine) parseArguments(tool, raw string) map[string]string {
	args := map[string]string{}
	if raw == "" {
		return args
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		e.logger.Warn("Malformed tool arguments", zap.String("tool", tool), zap.Error(err))
		return args
	}
	for k, v := range decoded {
		switch val := v.(type) {
		case nil:
		case string:
			args[k] = val
		default:
			args[k] = fmt.Sprint(val)
		}
	}
	return args
}

func addUsage(total *openai.Usage, u openai.Usage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}
