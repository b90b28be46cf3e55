// Package apperr 定义业务错误分类及其到 HTTP 状态码的映射
package apperr

import (
	"context"
	"errors"
	"fmt"

	"ai-hiring-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Kind 错误分类
type Kind int

const (
	// KindInternal 未分类错误，按依赖失败处理
	KindInternal Kind = iota
	// KindValidation 输入缺失或格式错误，不重试
	KindValidation
	// KindConflict 业务冲突：重复申请、令牌已使用、面试顺序错乱
	KindConflict
	// KindNotFound 资源不存在
	KindNotFound
	// KindDependency 数据库、对象存储、大模型、邮件等外部依赖失败
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// GenericMessage 依赖失败时返回给客户端的默认文案
const GenericMessage = "Internal server error"

// Error 业务错误。Message 面向客户端，Err 只写日志
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (操作:%s): %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (操作:%s): %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation 输入校验失败
func Validation(op, message string) error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// Conflict 业务冲突
func Conflict(op, message string) error {
	return &Error{Kind: KindConflict, Op: op, Message: message}
}

// NotFound 资源不存在
func NotFound(op, message string) error {
	return &Error{Kind: KindNotFound, Op: op, Message: message}
}

// Dependency 外部依赖失败；message 是可以给客户端看的概括，为空时使用 GenericMessage
func Dependency(op, message string, err error) error {
	return &Error{Kind: KindDependency, Op: op, Message: message, Err: err}
}

// KindOf 返回错误分类，非 *Error 视为 KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断 err 是否属于给定分类
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus 错误到状态码；Conflict 沿用 400
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindConflict:
		return consts.StatusBadRequest
	case KindNotFound:
		return consts.StatusNotFound
	default:
		return consts.StatusInternalServerError
	}
}

// PublicMessage 客户端可见文案，内部原因不外泄
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return GenericMessage
	}
	if e.Message == "" {
		return GenericMessage
	}
	return e.Message
}

// Warn 记录不影响请求结果的旁路失败
func Warn(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	logger.Ctx(ctx).Warn().Str("op", op).Err(err).Msg("旁路步骤失败，已忽略")
}
