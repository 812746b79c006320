package inter

import (
	"errors"
	"fmt"
)

// 定义请求相关的标准错误
var (
	ErrUnauthenticated    = errors.New("auth: 未登录或登录已失效")
	ErrInvalidCredentials = errors.New("auth: 用户名或密码错误")
	ErrForbidden          = errors.New("auth: 该资源访问受限")
	ErrValidation         = errors.New("request: 输入校验未通过")
	ErrNotFound           = errors.New("request: 资源不存在")
	ErrServer             = errors.New("request: 服务端异常")
)

// LoginFailedMessage 后端没有给出原因时的登录失败提示
const LoginFailedMessage = "登录失败"

// ValidationError 字段级校验错误，客户端校验与后端 400 都会产生
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ResponseError 后端返回非 2xx 或网络失败
type ResponseError struct {
	Status  int    // HTTP 状态码，网络失败时为 0
	Message string // 后端返回的 message 字段或纯文本正文
	Kind    error  // 归类后的标准错误
	Cause   error  // 底层错误
}

func (e *ResponseError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Status == 0 {
		return fmt.Sprintf("%v: %s", e.Kind, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%v (HTTP %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("%v (HTTP %d): %s", e.Kind, e.Status, msg)
}

func (e *ResponseError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// LoginError 登录失败，Message 原样展示给用户
type LoginError struct {
	Message string
	Err     error
}

func (e *LoginError) Error() string { return e.Message }

func (e *LoginError) Unwrap() error { return e.Err }

// ErrorKind 面向展示的错误分类
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnauthenticated
	KindValidation
	KindNotFound
	KindServer
)

// KindOf 对错误进行分类，未知错误视为服务端错误
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return KindUnauthenticated
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindServer
	}
}

// MessageOf 返回适合展示给用户的错误信息
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var le *LoginError
	if errors.As(err, &le) {
		return le.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var re *ResponseError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	switch KindOf(err) {
	case KindUnauthenticated:
		return "登录已失效，请重新登录"
	case KindValidation:
		return "提交的数据未通过校验"
	case KindNotFound:
		return "资源不存在"
	}
	if errors.Is(err, ErrForbidden) {
		return "权限不足"
	}
	return "服务暂时不可用，请稍后重试"
}
