package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// PushoverChannel 推送到站长手机
type PushoverChannel struct {
	token  string
	user   string
	apiURL string
	client *http.Client
}

// NewPushoverChannel 创建Pushover渠道
func NewPushoverChannel(token, user, apiURL string, timeout time.Duration) *PushoverChannel {
	if apiURL == "" {
		apiURL = DefaultPushoverURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PushoverChannel{
		token:  token,
		user:   user,
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *PushoverChannel) Name() string { return "push" }

func (p *PushoverChannel) Send(ctx context.Context, ev Event) error {
	text := PushText(ev)
	if text == "" {
		return nil
	}

	form := url.Values{
		"token":   {p.token},
		"user":    {p.user},
		"message": {text},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr struct {
			Errors []string `json:"errors"`
		}
		if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
			return fmt.Errorf("pushover status %d: %s", resp.StatusCode, strings.Join(apiErr.Errors, "; "))
		}
		return fmt.Errorf("pushover status %d", resp.StatusCode)
	}
	return nil
}

// PushText renders the owner-facing notification for ev.
func PushText(ev Event) string {
	switch ev.Trigger {
	case TriggerContactShared:
		if ev.Email == "" {
			return fmt.Sprintf("No valid user email provided. Skipping email send.\nName: %s\nQuestion: %s", ev.Name, ev.Question)
		}
		return fmt.Sprintf("New contact: %s, %s\nNotes: %s\nQuestion: %s", ev.Name, ev.Email, ev.Notes, ev.Question)
	case TriggerUnknownQuestion:
		return "Recording unknown question: " + ev.Question
	case TriggerDeliveryFailed:
		return ev.Notes
	default:
		return ""
	}
}
