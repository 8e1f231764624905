// Package rulestore 提供规则与预设的持久化存储，并作为规则引擎的加载来源
package rulestore

import (
	"context"
	"sync"

	"harforge/internal/storage/model"
	"harforge/internal/storage/repo"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store 规则存储
// 写操作持锁串行执行，保证校验失败时存储不发生任何写入
type Store struct {
	mu      sync.Mutex
	db      *gorm.DB
	filters *repo.FilterRuleRepo
	hosts   *repo.HostRuleRepo
	presets *repo.PresetRepo
}

// New 创建规则存储
func New(db *gorm.DB) *Store {
	return &Store{
		db:      db,
		filters: repo.NewFilterRuleRepo(db),
		hosts:   repo.NewHostRuleRepo(db),
		presets: repo.NewPresetRepo(db),
	}
}

// Migrate 执行存储相关的表迁移
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&model.FilterRuleRecord{},
		&model.HostRuleRecord{},
		&model.PresetRecord{},
	)
}

// LoadRules 返回当前全部规则，作为规则引擎重载的数据来源
func (s *Store) LoadRules(ctx context.Context) ([]rulespec.FilterRule, []rulespec.HostRule, error) {
	filters, err := s.filters.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	hosts, err := s.hosts.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return filters, hosts, nil
}

// AddFilterRule 新增过滤规则，ID 为空时自动分配 UUID
func (s *Store) AddFilterRule(ctx context.Context, rule rulespec.FilterRule) (*rulespec.FilterRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if err := rulespec.ValidateFilterRule(&rule); err != nil {
		return nil, err
	}

	existing, err := s.filters.GetByRuleID(ctx, rule.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errx.Newf(errx.CodeInvalidRule, "过滤规则 %s 已存在", rule.ID)
	}

	if _, err := s.filters.Create(ctx, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateFilterRule 全量更新一条过滤规则
func (s *Store) UpdateFilterRule(ctx context.Context, rule rulespec.FilterRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := rulespec.ValidateFilterRule(&rule); err != nil {
		return err
	}
	return s.filters.Update(ctx, &rule)
}

// DeleteFilterRule 删除一条过滤规则
func (s *Store) DeleteFilterRule(ctx context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.Delete(ctx, ruleID)
}

// ToggleFilterRule 切换过滤规则的启用状态
func (s *Store) ToggleFilterRule(ctx context.Context, ruleID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters.SetEnabled(ctx, ruleID, enabled)
}

// ListFilterRules 按求值顺序列出过滤规则
func (s *Store) ListFilterRules(ctx context.Context) ([]rulespec.FilterRule, error) {
	return s.filters.List(ctx)
}

// AddHostRule 新增主机放行规则，ID 为空时自动分配 UUID
func (s *Store) AddHostRule(ctx context.Context, rule rulespec.HostRule) (*rulespec.HostRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if err := rulespec.ValidateHostRule(&rule); err != nil {
		return nil, err
	}

	if _, err := s.hosts.Create(ctx, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateHostRule 全量更新一条主机规则
func (s *Store) UpdateHostRule(ctx context.Context, rule rulespec.HostRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := rulespec.ValidateHostRule(&rule); err != nil {
		return err
	}
	return s.hosts.Update(ctx, &rule)
}

// DeleteHostRule 删除一条主机规则
func (s *Store) DeleteHostRule(ctx context.Context, ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts.Delete(ctx, ruleID)
}

// ToggleHostRule 切换主机规则的启用状态
func (s *Store) ToggleHostRule(ctx context.Context, ruleID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hosts.SetEnabled(ctx, ruleID, enabled)
}

// ListHostRules 按求值顺序列出主机规则
func (s *Store) ListHostRules(ctx context.Context) ([]rulespec.HostRule, error) {
	return s.hosts.List(ctx)
}

// ListPresets 列出全部预设摘要，内置在前，用户保存的在后
func (s *Store) ListPresets(ctx context.Context) ([]rulespec.PresetInfo, error) {
	infos := make([]rulespec.PresetInfo, 0)
	for _, p := range rulespec.BuiltinPresets() {
		infos = append(infos, p.Info())
	}

	records, err := s.presets.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		preset, err := s.presets.ToPreset(&records[i])
		if err != nil {
			return nil, err
		}
		infos = append(infos, preset.Info())
	}
	return infos, nil
}

// SavePreset 保存用户预设（同 ID 覆盖）
func (s *Store) SavePreset(ctx context.Context, preset rulespec.Preset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := rulespec.ValidatePreset(&preset); err != nil {
		return err
	}
	_, err := s.presets.Upsert(ctx, &preset)
	return err
}

// ApplyPreset 将预设整体应用到过滤规则集
// 同 ID 规则原位替换，其余规则追加到末尾；整个应用在单个事务中完成
func (s *Store) ApplyPreset(ctx context.Context, presetID string) (*rulespec.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	preset, err := s.findPreset(ctx, presetID)
	if err != nil {
		return nil, err
	}
	if err := rulespec.ValidatePreset(preset); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		filters := s.filters.WithTx(tx)

		var maxPos int
		if err := tx.Model(&model.FilterRuleRecord{}).Select("COALESCE(MAX(position), 0)").Scan(&maxPos).Error; err != nil {
			return err
		}

		for i := range preset.Rules {
			rule := preset.Rules[i]
			existing, err := filters.GetByRuleID(ctx, rule.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				if err := filters.Update(ctx, &rule); err != nil {
					return err
				}
				continue
			}
			maxPos++
			if err := filters.CreateAt(ctx, &rule, maxPos); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return preset, nil
}

// findPreset 按 ID 查找预设，内置预设优先
func (s *Store) findPreset(ctx context.Context, presetID string) (*rulespec.Preset, error) {
	if p, ok := rulespec.FindBuiltinPreset(presetID); ok {
		return p, nil
	}

	record, err := s.presets.GetByPresetID(ctx, presetID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errx.Newf(errx.CodeNotFound, "预设 %s 不存在", presetID)
	}
	return s.presets.ToPreset(record)
}
