// Package service 组装规则存储、规则引擎与解析流水线，对外提供统一服务层
package service

import (
	"context"
	"sync"
	"time"

	"harforge/internal/builder"
	"harforge/internal/harparse"
	"harforge/internal/logger"
	"harforge/internal/pool"
	"harforge/internal/rules"
	"harforge/internal/rulestore"
	"harforge/internal/synth"
	"harforge/internal/tracker"
	"harforge/pkg/domain"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"

	"github.com/google/uuid"
)

// Options 服务层配置
type Options struct {
	// Concurrency 批量解析捕获文件的最大并发数
	Concurrency int
	// JobTimeout 单个解析任务的最长运行时间
	JobTimeout time.Duration
}

type svc struct {
	store   *rulestore.Store
	engine  *rules.Engine
	builder *builder.Builder
	jobs    *tracker.Tracker
	pool    *pool.Pool
	log     logger.Logger
}

// New 创建并返回服务层实例
func New(store *rulestore.Store, opts Options, l logger.Logger) *svc {
	if l == nil {
		l = logger.Nop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	workPool := pool.New(opts.Concurrency, opts.Concurrency*8)
	workPool.SetLogger(l)

	return &svc{
		store:   store,
		engine:  rules.New(),
		builder: builder.New(l),
		jobs:    tracker.New(opts.JobTimeout, l),
		pool:    workPool,
		log:     l,
	}
}

// Start 启动工作池并完成规则引擎的首次装载
func (s *svc) Start(ctx context.Context) error {
	s.pool.Start(ctx)
	if err := s.engine.Reload(ctx, s.store); err != nil {
		return err
	}
	s.log.Info("服务启动完成", "concurrency", s.pool.GetQueueCap())
	return nil
}

// Stop 停止后台组件
func (s *svc) Stop() {
	s.pool.Stop()
	s.jobs.Stop()
}

// AddFilterRule 新增过滤规则
// 规则变更只落库，新快照由显式 ReloadRules 发布
func (s *svc) AddFilterRule(ctx context.Context, rule rulespec.FilterRule) (*rulespec.FilterRule, error) {
	return s.store.AddFilterRule(ctx, rule)
}

// UpdateFilterRule 更新过滤规则
func (s *svc) UpdateFilterRule(ctx context.Context, rule rulespec.FilterRule) error {
	return s.store.UpdateFilterRule(ctx, rule)
}

// DeleteFilterRule 删除过滤规则
func (s *svc) DeleteFilterRule(ctx context.Context, ruleID string) error {
	return s.store.DeleteFilterRule(ctx, ruleID)
}

// ToggleFilterRule 切换过滤规则启用状态
func (s *svc) ToggleFilterRule(ctx context.Context, ruleID string, enabled bool) error {
	return s.store.ToggleFilterRule(ctx, ruleID, enabled)
}

// ListFilterRules 按求值顺序列出过滤规则
func (s *svc) ListFilterRules(ctx context.Context) ([]rulespec.FilterRule, error) {
	return s.store.ListFilterRules(ctx)
}

// AddHostRule 新增主机规则
func (s *svc) AddHostRule(ctx context.Context, rule rulespec.HostRule) (*rulespec.HostRule, error) {
	return s.store.AddHostRule(ctx, rule)
}

// UpdateHostRule 更新主机规则
func (s *svc) UpdateHostRule(ctx context.Context, rule rulespec.HostRule) error {
	return s.store.UpdateHostRule(ctx, rule)
}

// DeleteHostRule 删除主机规则
func (s *svc) DeleteHostRule(ctx context.Context, ruleID string) error {
	return s.store.DeleteHostRule(ctx, ruleID)
}

// ToggleHostRule 切换主机规则启用状态
func (s *svc) ToggleHostRule(ctx context.Context, ruleID string, enabled bool) error {
	return s.store.ToggleHostRule(ctx, ruleID, enabled)
}

// ListHostRules 按求值顺序列出主机规则
func (s *svc) ListHostRules(ctx context.Context) ([]rulespec.HostRule, error) {
	return s.store.ListHostRules(ctx)
}

// ListPresets 列出内置与用户预设摘要
func (s *svc) ListPresets(ctx context.Context) ([]rulespec.PresetInfo, error) {
	return s.store.ListPresets(ctx)
}

// SavePreset 保存用户预设
func (s *svc) SavePreset(ctx context.Context, preset rulespec.Preset) error {
	return s.store.SavePreset(ctx, preset)
}

// ApplyPreset 原子应用预设
func (s *svc) ApplyPreset(ctx context.Context, presetID string) (*rulespec.Preset, error) {
	return s.store.ApplyPreset(ctx, presetID)
}

// ReloadRules 手动重载规则引擎快照
func (s *svc) ReloadRules(ctx context.Context) error {
	return s.engine.Reload(ctx, s.store)
}

// RuleStats 返回规则引擎命中统计
func (s *svc) RuleStats() rules.Stats {
	return s.engine.GetStats()
}

// ResetRuleStats 重置规则引擎统计
func (s *svc) ResetRuleStats() {
	s.engine.ResetStats()
}

// ParseCapture 解析单个捕获文件并产出端点目录
// jobID 为空时自动分配；任务可通过 CancelJob 中断
func (s *svc) ParseCapture(ctx context.Context, jobID domain.JobID, file string) (*domain.ParseResult, error) {
	if jobID == "" {
		jobID = domain.JobID(uuid.New().String())
	}

	jobCtx, cancel := context.WithCancel(ctx)
	s.jobs.Register(string(jobID), cancel)
	defer func() {
		s.jobs.Done(string(jobID))
		cancel()
	}()

	result, err := s.parseFile(jobCtx, file)
	if err != nil {
		return nil, err
	}
	s.log.Info("捕获文件解析完成", "job", string(jobID), "file", file,
		"endpoints", len(result.Definitions), "partial", result.Partial)
	return result, nil
}

// ParseCaptures 并发解析一批捕获文件，结果与输入顺序一一对应
// 单个文件失败不会中断整批，失败以该文件结果中的诊断形式返回
func (s *svc) ParseCaptures(ctx context.Context, jobID domain.JobID, files []string) ([]domain.ParseResult, error) {
	if jobID == "" {
		jobID = domain.JobID(uuid.New().String())
	}

	jobCtx, cancel := context.WithCancel(ctx)
	s.jobs.Register(string(jobID), cancel)
	defer func() {
		s.jobs.Done(string(jobID))
		cancel()
	}()

	results := make([]domain.ParseResult, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		i, file := i, file
		wg.Add(1)
		err := s.pool.SubmitWait(jobCtx, func() {
			defer wg.Done()
			result, err := s.parseFile(jobCtx, file)
			if err != nil {
				results[i] = failedResult(file, err)
				return
			}
			results[i] = *result
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, domain.ErrJobCancelled
		}
	}
	wg.Wait()

	if jobCtx.Err() != nil {
		return nil, domain.ErrJobCancelled
	}
	return results, nil
}

// CancelJob 取消运行中的解析任务
func (s *svc) CancelJob(jobID domain.JobID) error {
	if !s.jobs.Cancel(string(jobID)) {
		return errx.Newf(errx.CodeNotFound, "任务 %s 不存在或已结束", jobID)
	}
	s.log.Info("任务已取消", "job", string(jobID))
	return nil
}

// GenerateTests 由端点目录合成测试计划
func (s *svc) GenerateTests(ctx context.Context, defs []domain.ApiDefinition) (*domain.TestPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cases := synth.Synthesize(defs)
	markdown, err := synth.RenderDoc(defs)
	if err != nil {
		return nil, errx.Wrap(errx.CodeInternal, err, "渲染接口文档失败")
	}

	s.log.Info("测试计划生成完成", "endpoints", len(defs), "cases", len(cases))
	return &domain.TestPlan{TestCases: cases, Markdown: markdown}, nil
}

// parseFile 解析单个文件：流式读取、规则过滤、建模
func (s *svc) parseFile(ctx context.Context, file string) (*domain.ParseResult, error) {
	p, err := harparse.Open(file)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	built, err := s.builder.Build(ctx, p, s.engine.Evaluate)
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.ErrJobCancelled
		}
		return nil, err
	}

	diags := append(p.Diagnostics(), built.Diagnostics...)
	partial := false
	for _, d := range diags {
		if d.Code == string(errx.CodePartialParse) {
			partial = true
			break
		}
	}

	return &domain.ParseResult{
		File:        file,
		Definitions: built.Definitions,
		Diagnostics: diags,
		Partial:     partial,
		HostStats:   built.HostStats,
	}, nil
}

// failedResult 将文件级失败折叠为带诊断的空结果
func failedResult(file string, err error) domain.ParseResult {
	return domain.ParseResult{
		File:    file,
		Partial: true,
		Diagnostics: []domain.Diagnostic{{
			Stage:   "parse",
			Code:    string(errx.CodeOf(err)),
			Message: err.Error(),
		}},
	}
}
