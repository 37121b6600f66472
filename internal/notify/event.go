package notify

import (
	"time"

	"github.com/google/uuid"
)

// Trigger 通知触发条件
type Trigger string

const (
	// TriggerContactShared fires when the visitor leaves contact details.
	TriggerContactShared Trigger = "contact_shared"
	// TriggerUnknownQuestion fires when the assistant could not answer.
	TriggerUnknownQuestion Trigger = "unknown_question"
	// TriggerDeliveryFailed reports that another channel failed.
	TriggerDeliveryFailed Trigger = "delivery_failed"
)

const (
	NameNotProvided = "Name not provided"
	NotProvided     = "not provided"
)

// Event 通知事件
type Event struct {
	ID         string    `json:"id"`
	Trigger    Trigger   `json:"trigger"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Question   string    `json:"question,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent 创建事件并分配ID
func NewEvent(trigger Trigger) Event {
	return Event{
		ID:         uuid.NewString(),
		Trigger:    trigger,
		OccurredAt: time.Now().UTC(),
	}
}

// Message 一条历史消息
type Message struct {
	Role    string
	Content string
}

// ToolCall a function call the model requested during the exchange.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]string
}

// Exchange 一轮完整对话，用于触发检测
type Exchange struct {
	UserMessage    string
	AssistantReply string
	// History holds the turns before this exchange, oldest first.
	History   []Message
	ToolCalls []ToolCall
	// Notified lists the addresses already reported earlier in the session.
	Notified []string
}

// merge fills e's empty fields from other.
func (e Event) merge(other Event) Event {
	if e.Email == "" {
		e.Email = other.Email
	}
	if e.Name == "" || e.Name == NameNotProvided {
		if other.Name != "" {
			e.Name = other.Name
		}
	}
	if e.Notes == "" || e.Notes == NotProvided {
		if other.Notes != "" {
			e.Notes = other.Notes
		}
	}
	if e.Question == "" || e.Question == NotProvided {
		if other.Question != "" {
			e.Question = other.Question
		}
	}
	return e
}

func (e Event) withDefaults() Event {
	if e.Name == "" {
		e.Name = NameNotProvided
	}
	if e.Notes == "" {
		e.Notes = NotProvided
	}
	if e.Question == "" {
		e.Question = NotProvided
	}
	return e
}
