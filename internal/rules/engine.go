// Package rules 实现基于不可变快照的流量过滤规则引擎
package rules

import (
	"context"
	"regexp"
	"sync"

	"harforge/internal/regexutil"
	"harforge/pkg/domain"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"
)

// Loader 规则快照的数据来源（通常为规则存储）
type Loader interface {
	// LoadRules 返回按插入顺序排列的过滤规则与 Host 规则
	LoadRules(ctx context.Context) ([]rulespec.FilterRule, []rulespec.HostRule, error)
}

// compiledFilter 预编译后的过滤规则
type compiledFilter struct {
	rule rulespec.FilterRule
	re   *regexp.Regexp
}

// Snapshot 某一时刻的完整规则集合，发布后不再修改
// 评估方只解引用一次，在单次评估内使用同一份快照
type Snapshot struct {
	filters []compiledFilter
	hosts   []rulespec.HostRule
}

// FilterCount 快照内启用的过滤规则数
func (s *Snapshot) FilterCount() int { return len(s.filters) }

// HostCount 快照内启用的 Host 规则数
func (s *Snapshot) HostCount() int { return len(s.hosts) }

// Engine 规则引擎
// Reload 串行执行并在完整构建快照后一次性发布，Evaluate 可与 Reload 任意并发
type Engine struct {
	snap     atomicSnapshot
	reloadMu sync.Mutex
	regex    *regexutil.Cache

	statsMu  sync.Mutex
	total    int64
	excluded int64
	byRule   map[string]int64
}

// New 创建规则引擎（初始为空快照，所有流量放行）
func New() *Engine {
	e := &Engine{
		regex:  regexutil.New(),
		byRule: make(map[string]int64),
	}
	e.snap.store(&Snapshot{})
	return e
}

// Reload 从 Loader 重建规则快照并原子替换
// 构建或编译失败时保留旧快照不变；重复执行幂等
func (e *Engine) Reload(ctx context.Context, loader Loader) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	filters, hosts, err := loader.LoadRules(ctx)
	if err != nil {
		return err
	}

	snap := &Snapshot{}
	for _, r := range filters {
		if !r.Enabled {
			continue
		}
		re, err := e.regex.Get(r.Pattern)
		if err != nil {
			return errx.Wrap(errx.CodeInvalidPattern, err, "规则 "+r.ID+" 的 pattern 无法编译")
		}
		snap.filters = append(snap.filters, compiledFilter{rule: r, re: re})
	}
	for _, h := range hosts {
		if h.Enabled {
			snap.hosts = append(snap.hosts, h)
		}
	}

	e.snap.store(snap)
	return nil
}

// Current 返回当前生效的快照
func (e *Engine) Current() *Snapshot {
	return e.snap.load()
}

// Evaluate 评估一条交换是否纳入建模
// 过滤规则为 deny-list：命中任一启用规则即排除；
// Host 规则为 allow-list：存在启用规则时 host 必须命中其一，否则放行全部 host
func (e *Engine) Evaluate(ex *domain.RawExchange) bool {
	snap := e.snap.load()

	excludedBy := ""
	for i := range snap.filters {
		f := &snap.filters[i]
		if f.re.MatchString(attribute(ex, f.rule.Type)) {
			excludedBy = f.rule.ID
			break
		}
	}

	included := excludedBy == ""
	if included && len(snap.hosts) > 0 {
		allowed := false
		for i := range snap.hosts {
			if snap.hosts[i].Matches(ex.Host) {
				allowed = true
				break
			}
		}
		included = allowed
	}

	e.statsMu.Lock()
	e.total++
	if !included {
		e.excluded++
	}
	if excludedBy != "" {
		e.byRule[excludedBy]++
	}
	e.statsMu.Unlock()

	return included
}

// attribute 提取规则类型对应的交换属性
// 属性集合固定（method/host/url/content-type），不做反射式字段查找
func attribute(ex *domain.RawExchange, t rulespec.FilterType) string {
	switch t {
	case rulespec.FilterTypeURL:
		return ex.URL
	case rulespec.FilterTypeHost:
		return ex.Host
	case rulespec.FilterTypeContentType:
		return ex.ContentType()
	case rulespec.FilterTypeMethod:
		return ex.Method
	default:
		return ""
	}
}

// Stats 引擎命中统计
type Stats struct {
	Total    int64            `json:"total"`
	Excluded int64            `json:"excluded"`
	ByRule   map[string]int64 `json:"byRule"`
}

// GetStats 获取统计信息
func (e *Engine) GetStats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	byRule := make(map[string]int64, len(e.byRule))
	for k, v := range e.byRule {
		byRule[k] = v
	}
	return Stats{Total: e.total, Excluded: e.excluded, ByRule: byRule}
}

// ResetStats 重置统计信息
func (e *Engine) ResetStats() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.total = 0
	e.excluded = 0
	e.byRule = make(map[string]int64)
}
