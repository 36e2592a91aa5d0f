package domain

import "errors"

// 错误分类：调用方用 errors.Is 判断类别，用 Error() 取提示信息
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConfiguration = errors.New("configuration error")
)

// ErrInvalidCredentials 登录失败统一返回（不区分用户不存在/停用/密码错误）
var ErrInvalidCredentials = &Error{Kind: ErrUnauthorized, Msg: "invalid credentials"}

// Error 带提示信息的分类错误
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) error     { return &Error{Kind: ErrNotFound, Msg: msg} }
func Conflict(msg string) error     { return &Error{Kind: ErrConflict, Msg: msg} }
func Validation(msg string) error   { return &Error{Kind: ErrValidation, Msg: msg} }
func Unauthorized(msg string) error { return &Error{Kind: ErrUnauthorized, Msg: msg} }

func Configuration(msg string, err error) error {
	return &Error{Kind: ErrConfiguration, Msg: msg, Err: err}
}
