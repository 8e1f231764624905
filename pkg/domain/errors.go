package domain

import "errors"

// ErrJobCancelled 解析任务被取消（显式取消或超时强制取消）
var ErrJobCancelled = errors.New("job cancelled")
