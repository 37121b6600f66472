package services

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/aihub/persona-assistant/internal/notify"
)

// Persona 助手扮演的人物
type Persona struct {
	Name        string
	Description string
}

// SystemPrompt builds the instruction sent before the history. The retrieved
// context is appended verbatim; an empty context says so explicitly.
func (p Persona) SystemPrompt(contextText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are acting as %s. You are answering questions on %s's website.\n", p.Name, p.Name)
	b.WriteString("Respond professionally, politely and clearly to questions about your career, background and research.\n")
	if p.Description != "" {
		fmt.Fprintf(&b, "About you: %s\n", p.Description)
	}
	b.WriteString(`
Ask for the user's name and email ONLY if the user explicitly asks you to send something
(for example "send me your publications", "email me the file", "please share the details").
Otherwise answer normally and do not request personal data.

When the user asks you to send something:
1. Politely ask for their name first. If they prefer not to share it, continue with "Name not provided".
2. Then ask for their email address.
3. Once a valid email is given, repeat it back so the user can correct a typo.
4. When the name (or "Name not provided") and the email are known, call record_user_details with
   the email, the name and a short English summary (3-10 words) of what the user asked,
   for example "Question about publications" or "Request for collaboration".

Do NOT call record_user_details unless the user clearly asked for something to be sent by email.
If you cannot answer a question, call record_unknown_question with a short English summary of it.
Always stay polite, concise and professional.
`)

	b.WriteString("\n## Relevant context\n")
	if strings.TrimSpace(contextText) == "" {
		b.WriteString("(no matching documents)\n")
	} else {
		b.WriteString(contextText)
		b.WriteString("\n")
	}
	return b.String()
}

// assistantTools 模型可调用的记录工具
func assistantTools() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        notify.ToolRecordUserDetails,
				Description: "Record a user's contact info and the question they asked.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"email":    {Type: jsonschema.String, Description: "User email"},
						"name":     {Type: jsonschema.String, Description: "User name"},
						"notes":    {Type: jsonschema.String, Description: "Additional info"},
						"question": {Type: jsonschema.String, Description: "Short summary (3-10 words) of what the user asked"},
					},
					Required:             []string{"email", "question"},
					AdditionalProperties: false,
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        notify.ToolRecordUnknownQuestion,
				Description: "Record any question that couldn't be answered.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"question": {Type: jsonschema.String},
					},
					Required:             []string{"question"},
					AdditionalProperties: false,
				},
			},
		},
	}
}
