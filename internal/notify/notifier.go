package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/aihub/persona-assistant/internal/errors"
)

// Channel 通知渠道
type Channel interface {
	Name() string
	// Send delivers ev. A channel that does not handle ev returns nil.
	Send(ctx context.Context, ev Event) error
}

// Notifier 检测触发条件并分发到各渠道
//
// Delivery is best effort: failures are logged and never reach the caller,
// and nothing is retried.
type Notifier struct {
	detect   Detector
	channels []Channel
	alert    Channel
	owners   map[string]bool
	timeout  time.Duration
	logger   *zap.Logger
	errLog   *apperrors.ErrorLogger
}

// Option 配置Notifier
type Option func(*Notifier)

// WithAlertChannel sets the channel that reports failures of the others.
func WithAlertChannel(ch Channel) Option {
	return func(n *Notifier) { n.alert = ch }
}

// WithOwnerAddress marks an address as the owner's own; a contact event
// carrying it is treated as having no visitor email.
func WithOwnerAddress(addr string) Option {
	return func(n *Notifier) {
		if addr = NormalizeAddress(addr); addr != "" {
			n.owners[addr] = true
		}
	}
}

// WithTimeout bounds the total time spent delivering one exchange.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) { n.timeout = d }
}

// NewNotifier 创建通知器; detect defaults to DefaultDetector.
func NewNotifier(detect Detector, channels []Channel, logger *zap.Logger, errLog *apperrors.ErrorLogger, opts ...Option) *Notifier {
	if detect == nil {
		detect = DefaultDetector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{
		detect:   detect,
		channels: channels,
		owners:   make(map[string]bool),
		logger:   logger,
		errLog:   errLog,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify runs detection on ex and delivers every event to every channel.
// A contact event for an address listed in ex.Notified is dropped, so one
// visitor address is reported once per session. It returns the events that
// fired.
func (n *Notifier) Notify(ctx context.Context, ex Exchange) []Event {
	events := n.suppressNotified(n.detect(ex), ex.Notified)
	if len(events) == 0 {
		return nil
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	for i, ev := range events {
		ev = n.normalize(ev)
		events[i] = ev

		n.logger.Info("Notification triggered",
			zap.String("event_id", ev.ID),
			zap.String("trigger", string(ev.Trigger)))

		for _, ch := range n.channels {
			if err := ch.Send(ctx, ev); err != nil {
				n.errLog.LogError("notify", apperrors.NewNotificationError(ch.Name(), err),
					zap.String("event_id", ev.ID),
					zap.String("trigger", string(ev.Trigger)),
					zap.Bool("timeout", apperrors.IsTimeout(err)))
				n.reportFailure(ctx, ch, err)
			}
		}
	}
	return events
}

func (n *Notifier) suppressNotified(events []Event, notified []string) []Event {
	if len(notified) == 0 {
		return events
	}
	seen := make(map[string]bool, len(notified))
	for _, addr := range notified {
		seen[NormalizeAddress(addr)] = true
	}
	out := events[:0]
	for _, ev := range events {
		if ev.Trigger == TriggerContactShared && seen[NormalizeAddress(ev.Email)] {
			n.logger.Debug("Contact already reported", zap.String("event_id", ev.ID))
			continue
		}
		out = append(out, ev)
	}
	return out
}

// ContactAddresses 返回事件中已上报的访客邮箱（已归一化）
func ContactAddresses(events []Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Trigger != TriggerContactShared {
			continue
		}
		if addr := NormalizeAddress(ev.Email); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// Channels 已启用的渠道名称
func (n *Notifier) Channels() []string {
	names := make([]string, 0, len(n.channels))
	for _, ch := range n.channels {
		names = append(names, ch.Name())
	}
	return names
}

func (n *Notifier) normalize(ev Event) Event {
	if ev.Trigger != TriggerContactShared {
		return ev
	}
	if n.owners[NormalizeAddress(ev.Email)] {
		ev.Email = ""
	}
	return ev.withDefaults()
}

func (n *Notifier) reportFailure(ctx context.Context, failed Channel, err error) {
	if n.alert == nil || n.alert == failed {
		return
	}
	notice := NewEvent(TriggerDeliveryFailed)
	notice.Notes = fmt.Sprintf("%s failed: %v", channelTitle(failed.Name()), err)
	if alertErr := n.alert.Send(ctx, notice); alertErr != nil {
		n.errLog.LogError("notify", apperrors.NewNotificationError(n.alert.Name(), alertErr),
			zap.String("event_id", notice.ID))
	}
}

func channelTitle(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// NormalizeAddress lower-cases and trims an email address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
