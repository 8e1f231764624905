package model

import (
	"time"
)

// FilterRuleRecord 过滤规则表
type FilterRuleRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`               // 数据库主键（内部使用）
	RuleID      string    `gorm:"uniqueIndex;not null" json:"ruleId"` // 规则业务ID（唯一索引）
	Type        string    `gorm:"index;not null" json:"type"`         // url / host / content-type / method
	Pattern     string    `gorm:"not null" json:"pattern"`            // RE2 正则
	Enabled     bool      `gorm:"default:true" json:"enabled"`        // 是否启用
	Position    int       `gorm:"index" json:"position"`              // 求值顺序
	Description string    `json:"description"`                        // 规则说明
	CreatedAt   time.Time `json:"createdAt"`                          // 创建时间
	UpdatedAt   time.Time `json:"updatedAt"`                          // 更新时间
}

// HostRuleRecord 主机放行规则表
type HostRuleRecord struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RuleID            string    `gorm:"uniqueIndex;not null" json:"ruleId"`
	Host              string    `gorm:"not null" json:"host"`        // 放行的主机名
	IncludeSubdomains bool      `json:"includeSubdomains"`           // 是否匹配子域
	Enabled           bool      `gorm:"default:true" json:"enabled"` // 是否启用
	Position          int       `gorm:"index" json:"position"`       // 求值顺序
	Description       string    `json:"description"`                 // 规则说明
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// PresetRecord 规则预设表（存储用户保存的规则组）
type PresetRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PresetID    string    `gorm:"uniqueIndex;not null" json:"presetId"` // 预设业务ID（唯一索引）
	Name        string    `gorm:"not null" json:"name"`                 // 预设名称
	Description string    `json:"description"`                          // 预设描述
	RulesJSON   string    `gorm:"type:text" json:"rulesJson"`           // 完整规则 JSON
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
