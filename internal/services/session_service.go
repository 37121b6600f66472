package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
	"github.com/aihub/persona-assistant/internal/knowledge"
	"github.com/aihub/persona-assistant/internal/notify"
)

// ApologyMessage is shown instead of a reply when the completion call fails.
const ApologyMessage = "Sorry, I could not answer that just now. Please try sending your message again."

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn 一条对话消息
type Turn struct {
	Role    Role
	Content string
}

// Session 会话状态，按值传递
type Session struct {
	History []Turn
	// Notified holds the visitor addresses the owner was already told about.
	Notified []string
}

// With returns a copy of s with turns appended; s itself is not modified.
func (s Session) With(turns ...Turn) Session {
	history := make([]Turn, 0, len(s.History)+len(turns))
	history = append(history, s.History...)
	history = append(history, turns...)
	return Session{History: history, Notified: append([]string(nil), s.Notified...)}
}

// TurnResult 一轮对话的结果
type TurnResult struct {
	Message  string
	Reply    string
	Ignored  bool
	Failed   bool
	Degraded bool
	Matches  []knowledge.SearchMatch
	Events   []notify.Event
	Err      error
}

// Retriever 上下文检索
type Retriever interface {
	Assemble(ctx context.Context, message string) AssembledContext
}

// Replier 生成回复
type Replier interface {
	Reply(ctx context.Context, req ReplyRequest) (*Reply, error)
}

// ExchangeNotifier 通知发送
type ExchangeNotifier interface {
	Notify(ctx context.Context, ex notify.Exchange) []notify.Event
}

// ChatService 对话服务，串起检索、回复和通知
type ChatService struct {
	retriever Retriever
	replier   Replier
	notifier  ExchangeNotifier
	metrics   *ChatMetrics
	logger    *zap.Logger
	errLog    *apperrors.ErrorLogger
}

// NewChatService 创建对话服务; notifier and metrics may be nil.
func NewChatService(retriever Retriever, replier Replier, notifier ExchangeNotifier, metrics *ChatMetrics, logger *zap.Logger, errLog *apperrors.ErrorLogger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		retriever: retriever,
		replier:   replier,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		errLog:    errLog,
	}
}

// Turn runs one exchange against sess and returns the next session state.
// Blank input leaves the session untouched. A failed completion returns sess
// unchanged together with ApologyMessage; the failed turn is not recorded.
func (cs *ChatService) Turn(ctx context.Context, sess Session, message string) (Session, TurnResult) {
	message = strings.TrimSpace(message)
	if message == "" {
		return sess, TurnResult{Ignored: true}
	}
	start := time.Now()

	ac := cs.retriever.Assemble(ctx, message)
	cs.metrics.ObserveRetrieval(ac)

	reply, err := cs.replier.Reply(ctx, ReplyRequest{
		Message: message,
		History: sess.History,
		Context: ac.Text,
	})
	if err != nil {
		cs.errLog.LogError("complete", err)
		cs.metrics.ObserveTurn(OutcomeFailed, time.Since(start))
		return sess, TurnResult{
			Message:  message,
			Reply:    ApologyMessage,
			Failed:   true,
			Degraded: ac.Degraded,
			Matches:  ac.Matches,
			Err:      err,
		}
	}
	cs.metrics.ObserveCompletion(reply.Usage.TotalTokens)

	next := sess.With(
		Turn{Role: RoleUser, Content: message},
		Turn{Role: RoleAssistant, Content: reply.Content},
	)

	var events []notify.Event
	if cs.notifier != nil {
		events = cs.notifier.Notify(ctx, notify.Exchange{
			UserMessage:    message,
			AssistantReply: reply.Content,
			History:        toMessages(sess.History),
			ToolCalls:      reply.ToolCalls,
			Notified:       sess.Notified,
		})
		for _, ev := range events {
			cs.metrics.ObserveNotification(string(ev.Trigger))
		}
		next.Notified = append(next.Notified, notify.ContactAddresses(events)...)
	}

	outcome := OutcomeOK
	if ac.Degraded {
		outcome = OutcomeDegraded
	}
	cs.metrics.ObserveTurn(outcome, time.Since(start))
	cs.logger.Info("Turn completed",
		zap.String("outcome", outcome),
		zap.Int("matches", len(ac.Matches)),
		zap.Int("events", len(events)),
		zap.Duration("elapsed", time.Since(start)))

	return next, TurnResult{
		Message:  message,
		Reply:    reply.Content,
		Degraded: ac.Degraded,
		Matches:  ac.Matches,
		Events:   events,
	}
}

func toMessages(turns []Turn) []notify.Message {
	out := make([]notify.Message, len(turns))
	for i, t := range turns {
		out[i] = notify.Message{Role: string(t.Role), Content: t.Content}
	}
	return out
}

// ChatWindow 唯一的聊天窗口会话
//
// Submissions are serialized: a second Submit waits for the running turn.
type ChatWindow struct {
	mu      sync.Mutex
	service *ChatService
	session Session
}

// NewChatWindow 创建聊天窗口
func NewChatWindow(service *ChatService) *ChatWindow {
	return &ChatWindow{service: service}
}

// Submit 提交一条消息
func (w *ChatWindow) Submit(ctx context.Context, message string) TurnResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, result := w.service.Turn(ctx, w.session, message)
	w.session = next
	return result
}

// History 返回历史副本
func (w *ChatWindow) History() []Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Turn, len(w.session.History))
	copy(out, w.session.History)
	return out
}

// Reset 清空会话
func (w *ChatWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.session = Session{}
}
