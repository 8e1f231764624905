package rulespec

import (
	"regexp"

	"harforge/pkg/errx"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateFilterRule 校验过滤规则：结构合法且 pattern 可编译
// 校验失败时存储不得发生任何写入
func ValidateFilterRule(r *FilterRule) error {
	if err := validate.Struct(r); err != nil {
		return errx.Wrap(errx.CodeInvalidRule, err, "过滤规则校验失败")
	}
	if _, err := regexp.Compile(r.Pattern); err != nil {
		return errx.Wrap(errx.CodeInvalidPattern, err, "规则 pattern 无法编译")
	}
	return nil
}

// ValidateHostRule 校验 Host 规则的结构与域名语法
func ValidateHostRule(r *HostRule) error {
	if err := validate.Struct(r); err != nil {
		return errx.Wrap(errx.CodeInvalidRule, err, "Host 规则校验失败")
	}
	return nil
}

// ValidatePreset 校验预设包：名称非空且每条规则合法、ID 不重复
func ValidatePreset(p *Preset) error {
	if p.ID == "" || p.Name == "" {
		return errx.New(errx.CodeInvalidRule, "预设包缺少 id 或 name")
	}
	seen := make(map[string]bool, len(p.Rules))
	for i := range p.Rules {
		if err := ValidateFilterRule(&p.Rules[i]); err != nil {
			return err
		}
		if seen[p.Rules[i].ID] {
			return errx.Newf(errx.CodeInvalidRule, "预设包内规则 ID '%s' 重复", p.Rules[i].ID)
		}
		seen[p.Rules[i].ID] = true
	}
	return nil
}
