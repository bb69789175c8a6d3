package middleware

import (
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

const requestStartKey = "requestStart"

// MarkRequestStart 记录请求开始时间
func MarkRequestStart(ctx *context.Context) {
	ctx.Input.SetData(requestStartKey, time.Now())
}

// AccessLog 请求结束后输出访问日志
func AccessLog(logger *zap.Logger) web.FilterFunc {
	return func(ctx *context.Context) {
		fields := []zap.Field{
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.Int("status", ctx.ResponseWriter.Status),
			zap.String("ip", ctx.Input.IP()),
		}
		if started, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			fields = append(fields, zap.Duration("latency", time.Since(started)))
		}
		logger.Info("request completed", fields...)
	}
}
