package repo

import (
	"context"
	"errors"
	"time"

	"harforge/internal/storage/model"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"

	"gorm.io/gorm"
)

// FilterRuleRepo 过滤规则仓库
type FilterRuleRepo struct {
	Db *gorm.DB
}

// NewFilterRuleRepo 创建过滤规则仓库实例
func NewFilterRuleRepo(db *gorm.DB) *FilterRuleRepo {
	return &FilterRuleRepo{Db: db}
}

// WithTx 返回绑定到事务的仓库副本
func (r *FilterRuleRepo) WithTx(tx *gorm.DB) *FilterRuleRepo {
	return &FilterRuleRepo{Db: tx}
}

// Create 创建规则，追加到当前末尾位置
func (r *FilterRuleRepo) Create(ctx context.Context, rule *rulespec.FilterRule) (*model.FilterRuleRecord, error) {
	pos, err := r.maxPosition(ctx)
	if err != nil {
		return nil, err
	}

	record := &model.FilterRuleRecord{
		RuleID:      rule.ID,
		Type:        string(rule.Type),
		Pattern:     rule.Pattern,
		Enabled:     rule.Enabled,
		Position:    pos + 1,
		Description: rule.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := r.Db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// CreateAt 在指定位置创建规则（预设应用时保留原位置用）
func (r *FilterRuleRepo) CreateAt(ctx context.Context, rule *rulespec.FilterRule, position int) error {
	record := &model.FilterRuleRecord{
		RuleID:      rule.ID,
		Type:        string(rule.Type),
		Pattern:     rule.Pattern,
		Enabled:     rule.Enabled,
		Position:    position,
		Description: rule.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	return r.Db.WithContext(ctx).Create(record).Error
}

// Update 按业务 ID 更新规则内容
func (r *FilterRuleRepo) Update(ctx context.Context, rule *rulespec.FilterRule) error {
	result := r.Db.WithContext(ctx).Model(&model.FilterRuleRecord{}).
		Where("rule_id = ?", rule.ID).
		Updates(map[string]any{
			"type":        string(rule.Type),
			"pattern":     rule.Pattern,
			"enabled":     rule.Enabled,
			"description": rule.Description,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errx.Newf(errx.CodeNotFound, "过滤规则 %s 不存在", rule.ID)
	}
	return nil
}

// Delete 按业务 ID 删除规则
func (r *FilterRuleRepo) Delete(ctx context.Context, ruleID string) error {
	result := r.Db.WithContext(ctx).Where("rule_id = ?", ruleID).Delete(&model.FilterRuleRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errx.Newf(errx.CodeNotFound, "过滤规则 %s 不存在", ruleID)
	}
	return nil
}

// SetEnabled 切换规则启用状态
func (r *FilterRuleRepo) SetEnabled(ctx context.Context, ruleID string, enabled bool) error {
	result := r.Db.WithContext(ctx).Model(&model.FilterRuleRecord{}).
		Where("rule_id = ?", ruleID).
		Updates(map[string]any{"enabled": enabled, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errx.Newf(errx.CodeNotFound, "过滤规则 %s 不存在", ruleID)
	}
	return nil
}

// GetByRuleID 按业务 ID 获取规则，不存在时返回 nil
func (r *FilterRuleRepo) GetByRuleID(ctx context.Context, ruleID string) (*model.FilterRuleRecord, error) {
	var record model.FilterRuleRecord
	if err := r.Db.WithContext(ctx).Where("rule_id = ?", ruleID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List 按位置顺序列出所有规则
func (r *FilterRuleRepo) List(ctx context.Context) ([]rulespec.FilterRule, error) {
	var records []model.FilterRuleRecord
	if err := r.Db.WithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	rules := make([]rulespec.FilterRule, 0, len(records))
	for _, record := range records {
		rules = append(rules, toFilterRule(&record))
	}
	return rules, nil
}

// maxPosition 返回当前最大位置，空表时为 0
func (r *FilterRuleRepo) maxPosition(ctx context.Context) (int, error) {
	var pos *int
	err := r.Db.WithContext(ctx).Model(&model.FilterRuleRecord{}).
		Select("MAX(position)").Scan(&pos).Error
	if err != nil {
		return 0, err
	}
	if pos == nil {
		return 0, nil
	}
	return *pos, nil
}

// toFilterRule 将记录转换为规则规范
func toFilterRule(record *model.FilterRuleRecord) rulespec.FilterRule {
	return rulespec.FilterRule{
		ID:          record.RuleID,
		Pattern:     record.Pattern,
		Type:        rulespec.FilterType(record.Type),
		Enabled:     record.Enabled,
		Description: record.Description,
	}
}
