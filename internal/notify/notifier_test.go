package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
)

// MockChannel 模拟通知渠道
type MockChannel struct {
	mock.Mock
	name string
}

func (m *MockChannel) Name() string { return m.name }

func (m *MockChannel) Send(ctx context.Context, ev Event) error {
	return m.Called(ev).Error(0)
}

func newMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

func contactExchange() Exchange {
	return Exchange{
		UserMessage: "My email is jane@example.com",
		History: []Message{
			{Role: "user", Content: "Could you send me your papers?"},
		},
	}
}

func TestNotifier_NoTriggerNoDelivery(t *testing.T) {
	push := newMockChannel("push")
	n := NewNotifier(nil, []Channel{push}, nil, nil)

	events := n.Notify(context.Background(), Exchange{UserMessage: "Can you send me your CV?"})
	assert.Empty(t, events)
	push.AssertNotCalled(t, "Send", mock.Anything)
}

func TestNotifier_DeliversToEveryChannel(t *testing.T) {
	push := newMockChannel("push")
	email := newMockChannel("email")
	push.On("Send", mock.AnythingOfType("notify.Event")).Return(nil).Once()
	email.On("Send", mock.AnythingOfType("notify.Event")).Return(nil).Once()

	n := NewNotifier(nil, []Channel{push, email}, nil, nil)
	events := n.Notify(context.Background(), contactExchange())

	require.Len(t, events, 1)
	assert.Equal(t, "jane@example.com", events[0].Email)
	assert.Equal(t, NameNotProvided, events[0].Name)
	assert.Equal(t, NotProvided, events[0].Notes)
	push.AssertExpectations(t)
	email.AssertExpectations(t)
	assert.Equal(t, []string{"push", "email"}, n.Channels())
}

func TestNotifier_FailureIsSwallowedAndReported(t *testing.T) {
	push := newMockChannel("push")
	email := newMockChannel("email")
	push.On("Send", mock.MatchedBy(func(ev Event) bool { return ev.Trigger == TriggerContactShared })).Return(nil).Once()
	email.On("Send", mock.Anything).Return(errors.New("535 auth failed")).Once()
	push.On("Send", mock.MatchedBy(func(ev Event) bool {
		return ev.Trigger == TriggerDeliveryFailed && ev.Notes == "Email failed: 535 auth failed"
	})).Return(nil).Once()

	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	monitor := apperrors.NewErrorMonitor(reg)
	errLog := apperrors.NewErrorLogger(zap.New(core), monitor)

	n := NewNotifier(nil, []Channel{push, email}, zap.New(core), errLog, WithAlertChannel(push))
	events := n.Notify(context.Background(), contactExchange())

	require.Len(t, events, 1)
	push.AssertExpectations(t)
	email.AssertExpectations(t)
	assert.Equal(t, 1, logs.FilterField(zap.String("error_code", string(apperrors.ErrCodeNotification))).Len())
	assert.Equal(t, int64(1), monitor.GetStats()["NOTIFICATION_FAILED:notify"].Count)
}

func TestNotifier_AlertChannelFailureDoesNotLoop(t *testing.T) {
	push := newMockChannel("push")
	push.On("Send", mock.Anything).Return(errors.New("pushover down")).Once()

	n := NewNotifier(nil, []Channel{push}, nil, nil, WithAlertChannel(push))
	events := n.Notify(context.Background(), contactExchange())
	assert.Len(t, events, 1)
	push.AssertNumberOfCalls(t, "Send", 1)
}

func TestNotifier_OwnerAddressIsNotAContact(t *testing.T) {
	push := newMockChannel("push")
	push.On("Send", mock.MatchedBy(func(ev Event) bool { return ev.Email == "" })).Return(nil).Once()

	n := NewNotifier(nil, []Channel{push}, nil, nil, WithOwnerAddress(" Owner@Example.com "))
	events := n.Notify(context.Background(), Exchange{UserMessage: "contact owner@example.com"})
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Email)
	push.AssertExpectations(t)
}

func TestNotifier_TimeoutBoundsDelivery(t *testing.T) {
	var sawDeadline bool
	slowCh := channelFunc{name: "slow", send: func(ctx context.Context, ev Event) error {
		_, sawDeadline = ctx.Deadline()
		return nil
	}}

	n := NewNotifier(nil, []Channel{slowCh}, nil, nil, WithTimeout(time.Second))
	n.Notify(context.Background(), contactExchange())
	assert.True(t, sawDeadline)
}

func TestNotifier_CustomDetector(t *testing.T) {
	var got Exchange
	detect := func(ex Exchange) []Event {
		got = ex
		return []Event{NewEvent(TriggerUnknownQuestion)}
	}
	push := newMockChannel("push")
	push.On("Send", mock.Anything).Return(nil)

	n := NewNotifier(detect, []Channel{push}, nil, nil)
	events := n.Notify(context.Background(), Exchange{UserMessage: "hi"})
	require.Len(t, events, 1)
	assert.Equal(t, "hi", got.UserMessage)
	assert.Empty(t, events[0].Name, "defaults only apply to contact events")
}

type channelFunc struct {
	name string
	send func(ctx context.Context, ev Event) error
}

func (c channelFunc) Name() string                             { return c.name }
func (c channelFunc) Send(ctx context.Context, ev Event) error { return c.send(ctx, ev) }

func TestNotifier_SkipsAddressAlreadyNotified(t *testing.T) {
	push := newMockChannel("push")
	push.On("Send", mock.MatchedBy(func(ev Event) bool { return ev.Trigger == TriggerUnknownQuestion })).Return(nil).Once()

	n := NewNotifier(nil, []Channel{push}, nil, nil)
	ex := Exchange{
		UserMessage: "Yes, that's right",
		ToolCalls: []ToolCall{
			{Name: ToolRecordUserDetails, Arguments: map[string]string{"email": "Jane@Example.com "}},
			{Name: ToolRecordUnknownQuestion, Arguments: map[string]string{"question": "Favourite colour"}},
		},
		Notified: []string{"jane@example.com"},
	}

	events := n.Notify(context.Background(), ex)
	require.Len(t, events, 1)
	assert.Equal(t, TriggerUnknownQuestion, events[0].Trigger)
	assert.Empty(t, ContactAddresses(events))
	push.AssertExpectations(t)
}

func TestContactAddresses(t *testing.T) {
	contact := NewEvent(TriggerContactShared)
	contact.Email = " Jane@Example.com"
	anonymous := NewEvent(TriggerContactShared)
	question := NewEvent(TriggerUnknownQuestion)

	assert.Equal(t, []string{"jane@example.com"}, ContactAddresses([]Event{contact, anonymous, question}))
}
