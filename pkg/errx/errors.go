// Package errx 提供带错误码的统一错误类型
package errx

import (
	"errors"
	"fmt"
)

type Code string

type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) *Error { return &Error{Code: code, Msg: msg} }

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, msg string) *Error { return &Error{Code: code, Msg: msg, Err: err} }

func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf 提取错误码，非 errx 错误返回 CodeInternal
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

const (
	// CodeInvalidPattern 规则 pattern 无法编译
	CodeInvalidPattern Code = "INVALID_PATTERN"
	// CodeInvalidRule 规则结构校验失败（缺字段、非法 host 等）
	CodeInvalidRule Code = "INVALID_RULE"
	// CodeNotFound 规则/预设/任务不存在
	CodeNotFound Code = "NOT_FOUND"
	// CodeMalformedCapture 捕获文件在容器层不可读
	CodeMalformedCapture Code = "MALFORMED_CAPTURE"
	// CodeSchemaConflict 字段类型冲突（通过拓宽恢复，仅作为警告）
	CodeSchemaConflict Code = "SCHEMA_CONFLICT"
	// CodePartialParse 解析过程中跳过了部分条目
	CodePartialParse Code = "PARTIAL_PARSE"
	// CodeInternal 内部错误
	CodeInternal Code = "INTERNAL"
)
