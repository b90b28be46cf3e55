// Package handler HTTP 处理器。业务规则都在各服务里，这里只做参数解析和错误映射
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"ai-hiring-go/internal/apperr"
	"ai-hiring-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息里使用 json 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// writeError 按错误类别映射状态码，依赖错误只返回概括信息
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := apperr.HTTPStatus(err)
	ev := logger.Ctx(ctx).Warn()
	if status >= consts.StatusInternalServerError {
		ev = logger.Ctx(ctx).Error()
	}
	ev.Err(err).Str("method", string(c.Method())).Str("path", string(c.Path())).Int("status", status).Msg("请求处理失败")
	c.JSON(status, utils.H{"error": apperr.PublicMessage(err)})
}

// bindJSON 解析请求体并按 validate 标签校验
func bindJSON(c *app.RequestContext, op string, v any) error {
	body := c.Request.Body()
	if len(body) == 0 {
		return apperr.Validation(op, "Request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperr.Validation(op, "Invalid JSON body")
	}
	return validateStruct(op, v)
}

func validateStruct(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation(op, "Invalid request")
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required", "required_without":
		return apperr.Validation(op, fmt.Sprintf("%s is required", fe.Field()))
	case "email":
		return apperr.Validation(op, "Invalid email format")
	case "oneof":
		return apperr.Validation(op, fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param()))
	default:
		return apperr.Validation(op, fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// Health 存活检查
func Health(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
