package controllers

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/aihub/persona-assistant/app/middleware"
	"github.com/aihub/persona-assistant/internal/logger"
	"github.com/aihub/persona-assistant/internal/services"
)

//go:embed views/chat.tpl
var chatPage string

var chatTemplate = template.Must(template.New("chat").Parse(chatPage))

const degradedNotice = "Background documents were unavailable for this answer."

// ChatController 聊天窗口
//
// Exported fields are copied into the per-request controller by beego.
type ChatController struct {
	BaseController
	Chat  *services.ChatWindow
	Title string
}

type chatEntry struct {
	Role      string
	Content   string
	Transient bool
}

type chatView struct {
	Title   string
	Entries []chatEntry
	Notice  string
}

// Prepare 关闭模板自动渲染
func (c *ChatController) Prepare() {
	c.EnableRender = false
}

// Get 渲染当前对话
func (c *ChatController) Get() {
	c.render(nil, "")
}

// Post 提交表单字段 message 并渲染更新后的对话
func (c *ChatController) Post() {
	message := c.GetString("message")
	result := c.Chat.Submit(c.Ctx.Request.Context(), message)
	if result.Ignored {
		c.render(nil, "")
		return
	}

	var transient []chatEntry
	notice := ""
	if result.Failed {
		// 失败的轮次不写入历史，只在本次页面上显示
		transient = []chatEntry{
			{Role: string(services.RoleUser), Content: result.Message, Transient: true},
			{Role: string(services.RoleAssistant), Content: result.Reply, Transient: true},
		}
		logger.Warn("Chat turn failed", zap.String("ip", middleware.ClientIP(c.Ctx)), zap.Error(result.Err))
	} else if result.Degraded {
		notice = degradedNotice
	}
	c.render(transient, notice)
}

func (c *ChatController) render(transient []chatEntry, notice string) {
	history := c.Chat.History()
	entries := make([]chatEntry, 0, len(history)+len(transient))
	for _, t := range history {
		entries = append(entries, chatEntry{Role: string(t.Role), Content: t.Content})
	}
	entries = append(entries, transient...)

	var buf bytes.Buffer
	if err := chatTemplate.Execute(&buf, chatView{Title: c.Title, Entries: entries, Notice: notice}); err != nil {
		logger.Error("Failed to render chat page", zap.Error(err))
		c.Ctx.Output.SetStatus(http.StatusInternalServerError)
		_ = c.Ctx.Output.Body([]byte("internal error"))
		return
	}
	c.HTML(http.StatusOK, buf.Bytes())
}
