// Package rulespec 定义过滤规则、Host 规则与预设包的类型规范
package rulespec

import "github.com/google/uuid"

// FilterType 过滤规则匹配的交换属性
type FilterType string

const (
	FilterTypeURL         FilterType = "url"          // 匹配完整 URL
	FilterTypeHost        FilterType = "host"         // 匹配 host
	FilterTypeContentType FilterType = "content-type" // 匹配请求 Content-Type
	FilterTypeMethod      FilterType = "method"       // 匹配 HTTP 方法
)

// FilterRule 内容过滤规则（deny-list 语义：命中即排除）
// Pattern 必须是可编译的正则，按未锚定方式做子串匹配
type FilterRule struct {
	ID          string     `json:"id" validate:"required"`
	Pattern     string     `json:"pattern" validate:"required"`
	Type        FilterType `json:"type" validate:"required,oneof=url host content-type method"`
	Enabled     bool       `json:"enabled"`
	Description string     `json:"description,omitempty"`
}

// NewFilterRule 创建一条带 UUID 的过滤规则
func NewFilterRule(pattern string, t FilterType) FilterRule {
	return FilterRule{
		ID:      uuid.New().String(),
		Pattern: pattern,
		Type:    t,
		Enabled: true,
	}
}

// HostRule 主机白名单规则（allow-list 语义：存在启用规则时 host 必须命中其一）
type HostRule struct {
	ID                string `json:"id" validate:"required"`
	Host              string `json:"host" validate:"required,hostname_rfc1123"`
	Enabled           bool   `json:"enabled"`
	Description       string `json:"description,omitempty"`
	IncludeSubdomains bool   `json:"includeSubdomains"`
}

// NewHostRule 创建一条带 UUID 的 Host 规则
func NewHostRule(host string) HostRule {
	return HostRule{
		ID:      uuid.New().String(),
		Host:    host,
		Enabled: true,
	}
}

// Matches 判断 host 是否命中本规则
// includeSubdomains 为 true 时额外接受 *.host 的后缀标签匹配
func (h *HostRule) Matches(host string) bool {
	if host == h.Host {
		return true
	}
	if h.IncludeSubdomains {
		return len(host) > len(h.Host)+1 &&
			host[len(host)-len(h.Host)-1] == '.' &&
			host[len(host)-len(h.Host):] == h.Host
	}
	return false
}

// Preset 命名的不可变规则预设包，整体原子应用到规则存储
type Preset struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Rules       []FilterRule `json:"rules"`
}

// PresetInfo 预设包摘要（列表展示用）
type PresetInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RuleCount   int    `json:"ruleCount"`
}

// Info 返回预设包摘要
func (p *Preset) Info() PresetInfo {
	return PresetInfo{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		RuleCount:   len(p.Rules),
	}
}
