package notify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Detector 从一轮对话中识别通知事件
type Detector func(Exchange) []Event

const (
	ToolRecordUserDetails     = "record_user_details"
	ToolRecordUnknownQuestion = "record_unknown_question"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	namePattern  = regexp.MustCompile(`(?i:my name is|i am|i'm|this is|call me)\s+(\p{Lu}[\p{L}'\-]*(?:\s+\p{Lu}[\p{L}'\-]*)?)`)
	sendPattern  = regexp.MustCompile(`(?i)\b(send|email|e-mail|mail|share|forward)\b`)
)

const maxQuestionRunes = 120

// ContactDetector fires contact_shared when the visitor's message contains
// an email address. The name comes from an introduction anywhere in the
// conversation and the question from the latest earlier request to send
// something.
func ContactDetector(ex Exchange) []Event {
	email := emailPattern.FindString(ex.UserMessage)
	if email == "" {
		return nil
	}

	ev := NewEvent(TriggerContactShared)
	ev.Email = strings.TrimRight(email, ".")
	ev.Name = findName(ex)
	ev.Question = findSendRequest(ex)
	return []Event{ev}
}

// ToolCallDetector maps the model's recording tools to events.
func ToolCallDetector(ex Exchange) []Event {
	var events []Event
	for _, call := range ex.ToolCalls {
		switch call.Name {
		case ToolRecordUserDetails:
			ev := NewEvent(TriggerContactShared)
			ev.Email = strings.TrimSpace(call.Arguments["email"])
			ev.Name = strings.TrimSpace(call.Arguments["name"])
			ev.Notes = strings.TrimSpace(call.Arguments["notes"])
			ev.Question = strings.TrimSpace(call.Arguments["question"])
			events = append(events, ev)
		case ToolRecordUnknownQuestion:
			ev := NewEvent(TriggerUnknownQuestion)
			ev.Question = strings.TrimSpace(call.Arguments["question"])
			events = append(events, ev)
		}
	}
	return events
}

// Detectors composes detectors. Each trigger fires at most once per
// exchange; later detections of the same trigger only fill missing fields.
func Detectors(detectors ...Detector) Detector {
	return func(ex Exchange) []Event {
		var out []Event
		seen := make(map[Trigger]int)
		for _, detect := range detectors {
			for _, ev := range detect(ex) {
				if i, ok := seen[ev.Trigger]; ok {
					out[i] = out[i].merge(ev)
					continue
				}
				seen[ev.Trigger] = len(out)
				out = append(out, ev)
			}
		}
		return out
	}
}

// DefaultDetector prefers the model's tool calls and falls back to spotting
// an email address in the visitor's message.
func DefaultDetector() Detector {
	return Detectors(ToolCallDetector, ContactDetector)
}

func findName(ex Exchange) string {
	if m := namePattern.FindStringSubmatch(ex.UserMessage); m != nil {
		return m[1]
	}
	for i := len(ex.History) - 1; i >= 0; i-- {
		if ex.History[i].Role != "user" {
			continue
		}
		if m := namePattern.FindStringSubmatch(ex.History[i].Content); m != nil {
			return m[1]
		}
	}
	return ""
}

func findSendRequest(ex Exchange) string {
	for i := len(ex.History) - 1; i >= 0; i-- {
		msg := ex.History[i]
		if msg.Role != "user" || emailPattern.MatchString(msg.Content) {
			continue
		}
		if sendPattern.MatchString(msg.Content) {
			return truncateRunes(strings.TrimSpace(msg.Content), maxQuestionRunes)
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}
