package rules

import "sync/atomic"

// atomicSnapshot 对快照指针的原子封装
// 读方永远得到一份完整发布的快照，不存在半更新状态
type atomicSnapshot struct {
	p atomic.Pointer[Snapshot]
}

func (a *atomicSnapshot) store(s *Snapshot) { a.p.Store(s) }

func (a *atomicSnapshot) load() *Snapshot {
	if s := a.p.Load(); s != nil {
		return s
	}
	return &Snapshot{}
}
