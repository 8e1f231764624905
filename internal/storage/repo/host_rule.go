package repo

import (
	"context"
	"time"

	"harforge/internal/storage/model"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"

	"gorm.io/gorm"
)

// HostRuleRepo 主机放行规则仓库
type HostRuleRepo struct {
	Db *gorm.DB
}

// NewHostRuleRepo 创建主机规则仓库实例
func NewHostRuleRepo(db *gorm.DB) *HostRuleRepo {
	return &HostRuleRepo{Db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *HostRuleRepo) WithTx(tx *gorm.DB) *HostRuleRepo {
	return &HostRuleRepo{Db: tx}
}

// Create 创建规则，追加到当前末尾位置
func (r *HostRuleRepo) Create(ctx context.Context, rule *rulespec.HostRule) (*model.HostRuleRecord, error) {
	pos, err := r.maxPosition(ctx)
	if err != nil {
		return nil, err
	}

	record := &model.HostRuleRecord{
		RuleID:            rule.ID,
		Host:              rule.Host,
		IncludeSubdomains: rule.IncludeSubdomains,
		Enabled:           rule.Enabled,
		Position:          pos + 1,
		Description:       rule.Description,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := r.Db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// Update 按业务 ID 更新规则内容
func (r *HostRuleRepo) Update(ctx context.Context, rule *rulespec.HostRule) error {
	result := r.Db.WithContext(ctx).Model(&model.HostRuleRecord{}).
		Where("rule_id = ?", rule.ID).
		Updates(map[string]any{
			"host":               rule.Host,
			"include_subdomains": rule.IncludeSubdomains,
			"enabled":            rule.Enabled,
			"description":        rule.Description,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errx.Newf(errx.CodeNotFound, "主机规则 %s 不存在", rule.ID)
	}
	return nil
}

// Delete 按业务 ID 删除规则
func (r *HostRuleRepo) Delete(ctx context.Context, ruleID string) error {
	result := r.Db.WithContext(ctx).Where("rule_id = ?", ruleID).Delete(&model.HostRuleRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errx.Newf(errx.CodeNotFound, "主机规则 %s 不存在", ruleID)
	}
	return nil
}

// SetEnabled 切换规则启用状态
func (r *HostRuleRepo) SetEnabled(ctx context.Context, ruleID string, enabled bool) error {
	result := r.Db.WithContext(ctx).Model(&model.HostRuleRecord{}).
		Where("rule_id = ?", ruleID).
		Updates(map[string]any{"enabled": enabled, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errx.Newf(errx.CodeNotFound, "主机规则 %s 不存在", ruleID)
	}
	return nil
}

// List 按位置顺序列出所有规则
func (r *HostRuleRepo) List(ctx context.Context) ([]rulespec.HostRule, error) {
	var records []model.HostRuleRecord
	if err := r.Db.WithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	rules := make([]rulespec.HostRule, 0, len(records))
	for _, record := range records {
		rules = append(rules, rulespec.HostRule{
			ID:                record.RuleID,
			Host:              record.Host,
			Enabled:           record.Enabled,
			Description:       record.Description,
			IncludeSubdomains: record.IncludeSubdomains,
		})
	}
	return rules, nil
}

// maxPosition 返回当前最大位置，空表时为 0
func (r *HostRuleRepo) maxPosition(ctx context.Context) (int, error) {
	var pos *int
	err := r.Db.WithContext(ctx).Model(&model.HostRuleRecord{}).
		Select("MAX(position)").Scan(&pos).Error
	if err != nil {
		return 0, err
	}
	if pos == nil {
		return 0, nil
	}
	return *pos, nil
}
