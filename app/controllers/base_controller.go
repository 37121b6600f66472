package controllers

import (
	"github.com/beego/beego/v2/server/web"
)

// BaseController provides helpers for consistent responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	_ = c.ServeJSON()
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// HTML writes a rendered page.
func (c *BaseController) HTML(status int, body []byte) {
	c.Ctx.Output.Header("Content-Type", "text/html; charset=utf-8")
	c.Ctx.Output.SetStatus(status)
	_ = c.Ctx.Output.Body(body)
}
