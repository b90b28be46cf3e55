package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"ai-hiring-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
)

// HeaderRequestID 请求 ID 头，客户端未带时生成
const HeaderRequestID = "X-Request-ID"

// HeaderAdminKey 招聘方接口的 API Key 头
const HeaderAdminKey = "X-API-Key"

// RequestID 把请求 ID 写入响应头和日志上下文
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Response.Header.Set(HeaderRequestID, id)
		c.Next(logger.WithRequestID(ctx, id))
	}
}

// AccessLog 请求日志
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		glog.CtxInfof(ctx, "请求: %s %s 状态码=%d 耗时=%v",
			c.Method(), c.Path(), c.Response.StatusCode(), time.Since(start))
	}
}

var errInvalidKey = errors.New("invalid api key")

// AdminAuth 校验 X-API-Key；apiKey 为空时不做校验，仅用于本地开发
func AdminAuth(apiKey string) app.HandlerFunc {
	if apiKey == "" {
		logger.Warn().Msg("未配置 admin_api_key，招聘方接口不做鉴权")
		return func(ctx context.Context, c *app.RequestContext) { c.Next(ctx) }
	}
	expected := []byte(apiKey)
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAdminKey, ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), expected) == 1 {
				return true, nil
			}
			return false, errInvalidKey
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			logger.Ctx(ctx).Warn().Err(err).Str("path", string(c.Path())).Msg("招聘方接口鉴权失败")
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "Invalid or missing API key"})
		}),
	)
}
