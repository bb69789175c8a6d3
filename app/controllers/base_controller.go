package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aihub/pdfchat/internal/auth"
	apperrors "github.com/aihub/pdfchat/internal/errors"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
	jwt            *auth.JWTService
	logger         *zap.Logger
	requestTimeout time.Duration
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

var errorTranslator = apperrors.NewErrorTranslator()

// JSONAppError 按错误码输出状态码和面向用户的提示，超时等非AppError先经过转换
func (c *BaseController) JSONAppError(err error) {
	appErr := errorTranslator.Translate(err)
	status := appErr.HTTPCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError && c.logger != nil {
		c.logger.Error("request failed",
			zap.String("path", c.Ctx.Request.URL.Path),
			zap.String("method", c.Ctx.Request.Method),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
	}

	c.JSON(status, map[string]interface{}{
		"success": false,
		"code":    appErr.Code,
		"error":   apperrors.UserMessage(appErr),
	})
}

// authenticatedOwner 从Bearer令牌解析所有者，失败时已写出响应
func (c *BaseController) authenticatedOwner() (string, bool) {
	if c.jwt == nil {
		c.JSONError(http.StatusServiceUnavailable, "authentication is not configured")
		return "", false
	}
	ownerID, err := c.jwt.Authorize(c.Ctx.Input.Header("Authorization"))
	if err != nil {
		c.JSONAppError(err)
		return "", false
	}
	return ownerID, true
}

// requestContext 带请求超时的上下文
func (c *BaseController) requestContext() (context.Context, context.CancelFunc) {
	ctx := c.Ctx.Request.Context()
	if c.requestTimeout > 0 {
		return context.WithTimeout(ctx, c.requestTimeout)
	}
	return context.WithCancel(ctx)
}

// pathParam 读取非空路径参数，失败时已写出响应
func (c *BaseController) pathParam(key string) (string, bool) {
	value := strings.TrimSpace(c.Ctx.Input.Param(key))
	if value == "" {
		c.JSONError(http.StatusBadRequest, "missing path parameter "+strings.TrimPrefix(key, ":"))
		return "", false
	}
	return value, true
}
