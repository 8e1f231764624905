package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"harforge/internal/storage/model"
	"harforge/pkg/rulespec"

	"gorm.io/gorm"
)

// PresetRepo 规则预设仓库
type PresetRepo struct {
	Db *gorm.DB
}

// NewPresetRepo 创建预设仓库实例
func NewPresetRepo(db *gorm.DB) *PresetRepo {
	return &PresetRepo{Db: db}
}

// Upsert 保存预设（根据预设业务 ID 判断覆盖或新增）
func (r *PresetRepo) Upsert(ctx context.Context, preset *rulespec.Preset) (*model.PresetRecord, error) {
	rulesJSON, err := json.Marshal(preset.Rules)
	if err != nil {
		return nil, fmt.Errorf("序列化预设规则失败: %w", err)
	}

	existing, err := r.GetByPresetID(ctx, preset.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		err := r.Db.WithContext(ctx).Model(&model.PresetRecord{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"name":        preset.Name,
				"description": preset.Description,
				"rules_json":  string(rulesJSON),
				"updated_at":  time.Now(),
			}).Error
		if err != nil {
			return nil, err
		}
		return r.GetByPresetID(ctx, preset.ID)
	}

	record := &model.PresetRecord{
		PresetID:    preset.ID,
		Name:        preset.Name,
		Description: preset.Description,
		RulesJSON:   string(rulesJSON),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := r.Db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// GetByPresetID 根据预设业务 ID 获取预设，不存在时返回 nil
func (r *PresetRepo) GetByPresetID(ctx context.Context, presetID string) (*model.PresetRecord, error) {
	var record model.PresetRecord
	if err := r.Db.WithContext(ctx).Where("preset_id = ?", presetID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List 列出所有预设
func (r *PresetRepo) List(ctx context.Context) ([]model.PresetRecord, error) {
	var records []model.PresetRecord
	if err := r.Db.WithContext(ctx).Order("updated_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Delete 按预设业务 ID 删除预设
func (r *PresetRepo) Delete(ctx context.Context, presetID string) error {
	return r.Db.WithContext(ctx).Where("preset_id = ?", presetID).Delete(&model.PresetRecord{}).Error
}

// ToPreset 将记录转换为 rulespec.Preset
func (r *PresetRepo) ToPreset(record *model.PresetRecord) (*rulespec.Preset, error) {
	if record == nil {
		return nil, nil
	}

	var rules []rulespec.FilterRule
	if record.RulesJSON != "" {
		if err := json.Unmarshal([]byte(record.RulesJSON), &rules); err != nil {
			return nil, fmt.Errorf("解析预设规则失败: %w", err)
		}
	}
	return &rulespec.Preset{
		ID:          record.PresetID,
		Name:        record.Name,
		Description: record.Description,
		Rules:       rules,
	}, nil
}
