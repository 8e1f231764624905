package api

import (
	"context"

	"harforge/internal/logger"
	"harforge/internal/rules"
	"harforge/internal/rulestore"
	"harforge/internal/service"
	"harforge/pkg/domain"
	"harforge/pkg/rulespec"
)

// Service 服务接口
type Service interface {
	// Start 启动服务（工作池与规则引擎首次装载）
	Start(ctx context.Context) error

	// Stop 停止服务
	Stop()

	// AddFilterRule 新增过滤规则
	AddFilterRule(ctx context.Context, rule rulespec.FilterRule) (*rulespec.FilterRule, error)

	// UpdateFilterRule 更新过滤规则
	UpdateFilterRule(ctx context.Context, rule rulespec.FilterRule) error

	// DeleteFilterRule 删除过滤规则
	DeleteFilterRule(ctx context.Context, ruleID string) error

	// ToggleFilterRule 切换过滤规则启用状态
	ToggleFilterRule(ctx context.Context, ruleID string, enabled bool) error

	// ListFilterRules 列出过滤规则
	ListFilterRules(ctx context.Context) ([]rulespec.FilterRule, error)

	// AddHostRule 新增主机规则
	AddHostRule(ctx context.Context, rule rulespec.HostRule) (*rulespec.HostRule, error)

	// UpdateHostRule 更新主机规则
	UpdateHostRule(ctx context.Context, rule rulespec.HostRule) error

	// DeleteHostRule 删除主机规则
	DeleteHostRule(ctx context.Context, ruleID string) error

	// ToggleHostRule 切换主机规则启用状态
	ToggleHostRule(ctx context.Context, ruleID string, enabled bool) error

	// ListHostRules 列出主机规则
	ListHostRules(ctx context.Context) ([]rulespec.HostRule, error)

	// ListPresets 列出预设摘要
	ListPresets(ctx context.Context) ([]rulespec.PresetInfo, error)

	// SavePreset 保存用户预设
	SavePreset(ctx context.Context, preset rulespec.Preset) error

	// ApplyPreset 原子应用预设
	ApplyPreset(ctx context.Context, presetID string) (*rulespec.Preset, error)

	// ReloadRules 重载规则引擎快照
	ReloadRules(ctx context.Context) error

	// RuleStats 获取规则命中统计
	RuleStats() rules.Stats

	// ResetRuleStats 重置规则命中统计
	ResetRuleStats()

	// ParseCapture 解析单个捕获文件
	ParseCapture(ctx context.Context, jobID domain.JobID, file string) (*domain.ParseResult, error)

	// ParseCaptures 并发解析一批捕获文件
	ParseCaptures(ctx context.Context, jobID domain.JobID, files []string) ([]domain.ParseResult, error)

	// CancelJob 取消运行中的解析任务
	CancelJob(jobID domain.JobID) error

	// GenerateTests 由端点目录合成测试计划
	GenerateTests(ctx context.Context, defs []domain.ApiDefinition) (*domain.TestPlan, error)
}

// Options 服务配置
type Options = service.Options

// NewService 创建并返回服务接口实现
func NewService(store *rulestore.Store, opts Options, l logger.Logger) Service {
	return service.New(store, opts, l)
}
