// Package tracker 跟踪运行中的解析任务，支持按任务 ID 取消
package tracker

import (
	"context"
	"sync"
	"time"

	"harforge/internal/logger"
)

// Entry 任务追踪条目
type Entry struct {
	ID        string             // 任务唯一ID
	StartTime time.Time          // 任务开始时间
	Cancel    context.CancelFunc // 任务取消函数
}

// Tracker 任务追踪器，负责管理解析任务生命周期内的取消句柄
type Tracker struct {
	pool    sync.Map
	timeout time.Duration
	log     logger.Logger
	done    chan struct{}
}

// New 创建一个新的任务追踪器
// 超过 timeout 仍未结束的任务会被后台清理协程强制取消
func New(timeout time.Duration, l logger.Logger) *Tracker {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	if l == nil {
		l = logger.Nop()
	}
	t := &Tracker{
		timeout: timeout,
		log:     l,
		done:    make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

// Register 登记一个运行中的任务及其取消函数
func (t *Tracker) Register(id string, cancel context.CancelFunc) {
	t.pool.Store(id, &Entry{
		ID:        id,
		StartTime: time.Now(),
		Cancel:    cancel,
	})
}

// Cancel 取消并移除任务，任务不存在时返回 false
func (t *Tracker) Cancel(id string) bool {
	val, ok := t.pool.LoadAndDelete(id)
	if !ok {
		return false
	}
	entry := val.(*Entry)
	if entry.Cancel != nil {
		entry.Cancel()
	}
	return true
}

// Done 任务正常结束时移除登记，不触发取消
func (t *Tracker) Done(id string) {
	t.pool.Delete(id)
}

// Running 判断任务是否仍在运行
func (t *Tracker) Running(id string) bool {
	_, ok := t.pool.Load(id)
	return ok
}

// Stop 停止追踪器，释放资源
func (t *Tracker) Stop() {
	select {
	case <-t.done:
		return
	default:
		close(t.done)
	}
}

// cleanupLoop 定期取消超时任务的后台协程
func (t *Tracker) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			now := time.Now()
			t.pool.Range(func(key, value any) bool {
				entry := value.(*Entry)
				if now.Sub(entry.StartTime) > t.timeout {
					t.pool.Delete(key)
					if entry.Cancel != nil {
						entry.Cancel()
					}
					t.log.Warn("取消超时任务", "id", key, "startTime", entry.StartTime)
				}
				return true
			})
		}
	}
}
