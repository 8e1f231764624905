package rulestore_test

import (
	"context"
	"testing"

	"harforge/internal/rulestore"
	"harforge/internal/storage/db"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"
)

// setupStore 创建基于内存数据库的规则存储。
func setupStore(t *testing.T) *rulestore.Store {
	t.Helper()

	gdb, err := db.New(db.Options{Name: ":memory:", Prefix: "test_"})
	if err != nil {
		t.Fatalf("创建内存数据库失败: %v", err)
	}

	store := rulestore.New(gdb)
	if err := store.Migrate(); err != nil {
		t.Fatalf("迁移数据库失败: %v", err)
	}
	return store
}

// TestStore_FilterRuleLifecycle 测试过滤规则的增删改查与自动 ID 分配。
func TestStore_FilterRuleLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	added, err := s.AddFilterRule(ctx, rulespec.FilterRule{
		Pattern: `\.png$`,
		Type:    rulespec.FilterTypeURL,
		Enabled: true,
	})
	if err != nil {
		t.Fatalf("新增规则失败: %v", err)
	}
	if added.ID == "" {
		t.Fatal("空 ID 应自动分配 UUID")
	}

	t.Run("Duplicate ID", func(t *testing.T) {
		_, err := s.AddFilterRule(ctx, *added)
		if !errx.Is(err, errx.CodeInvalidRule) {
			t.Errorf("重复 ID 应返回 INVALID_RULE，实际 %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		added.Pattern = `\.jpe?g$`
		if err := s.UpdateFilterRule(ctx, *added); err != nil {
			t.Fatalf("更新规则失败: %v", err)
		}
		rules, _ := s.ListFilterRules(ctx)
		if len(rules) != 1 || rules[0].Pattern != `\.jpe?g$` {
			t.Errorf("更新未生效: %+v", rules)
		}
	})

	t.Run("Toggle and Delete", func(t *testing.T) {
		if err := s.ToggleFilterRule(ctx, added.ID, false); err != nil {
			t.Fatalf("禁用规则失败: %v", err)
		}
		rules, _ := s.ListFilterRules(ctx)
		if rules[0].Enabled {
			t.Error("规则应已禁用")
		}

		if err := s.DeleteFilterRule(ctx, added.ID); err != nil {
			t.Fatalf("删除规则失败: %v", err)
		}
		if err := s.DeleteFilterRule(ctx, added.ID); !errx.Is(err, errx.CodeNotFound) {
			t.Errorf("重复删除应返回 NOT_FOUND，实际 %v", err)
		}
	})
}

// TestStore_InvalidRuleRejected 校验失败时存储不发生任何写入。
func TestStore_InvalidRuleRejected(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		rule rulespec.FilterRule
		code errx.Code
	}{
		{"非法正则", rulespec.FilterRule{Pattern: `([`, Type: rulespec.FilterTypeURL}, errx.CodeInvalidPattern},
		{"缺少类型", rulespec.FilterRule{Pattern: `x`}, errx.CodeInvalidRule},
		{"未知类型", rulespec.FilterRule{Pattern: `x`, Type: "protocol"}, errx.CodeInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.AddFilterRule(ctx, tt.rule); !errx.Is(err, tt.code) {
				t.Errorf("预期 %s，实际 %v", tt.code, err)
			}
		})
	}

	rules, err := s.ListFilterRules(ctx)
	if err != nil {
		t.Fatalf("列出规则失败: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("校验失败不应写入任何规则，实际 %d 条", len(rules))
	}
}

// TestStore_HostRules 测试主机规则操作与域名校验。
func TestStore_HostRules(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	added, err := s.AddHostRule(ctx, rulespec.HostRule{Host: "api.example.com", Enabled: true})
	if err != nil {
		t.Fatalf("新增主机规则失败: %v", err)
	}
	if added.ID == "" {
		t.Fatal("空 ID 应自动分配 UUID")
	}

	if _, err := s.AddHostRule(ctx, rulespec.HostRule{Host: "not a host!"}); !errx.Is(err, errx.CodeInvalidRule) {
		t.Errorf("非法域名应返回 INVALID_RULE，实际 %v", err)
	}

	rules, _ := s.ListHostRules(ctx)
	if len(rules) != 1 {
		t.Fatalf("预期 1 条规则，实际 %d", len(rules))
	}
}

// TestStore_LoadRules 验证存储可以作为规则引擎的加载来源。
func TestStore_LoadRules(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if _, err := s.AddFilterRule(ctx, rulespec.FilterRule{Pattern: `\.css$`, Type: rulespec.FilterTypeURL, Enabled: true}); err != nil {
		t.Fatalf("新增规则失败: %v", err)
	}
	if _, err := s.AddHostRule(ctx, rulespec.HostRule{Host: "api.example.com", Enabled: true}); err != nil {
		t.Fatalf("新增主机规则失败: %v", err)
	}

	filters, hosts, err := s.LoadRules(ctx)
	if err != nil {
		t.Fatalf("加载规则失败: %v", err)
	}
	if len(filters) != 1 || len(hosts) != 1 {
		t.Errorf("加载结果错误: %d 过滤规则, %d 主机规则", len(filters), len(hosts))
	}
}

// TestStore_ListPresets 内置预设始终可见，用户预设追加在后。
func TestStore_ListPresets(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	builtin := len(rulespec.BuiltinPresets())
	infos, err := s.ListPresets(ctx)
	if err != nil {
		t.Fatalf("列出预设失败: %v", err)
	}
	if len(infos) != builtin {
		t.Fatalf("预期 %d 个内置预设，实际 %d", builtin, len(infos))
	}

	err = s.SavePreset(ctx, rulespec.Preset{
		ID:   "mine",
		Name: "自定义",
		Rules: []rulespec.FilterRule{
			{ID: "m1", Pattern: `\.map$`, Type: rulespec.FilterTypeURL, Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("保存预设失败: %v", err)
	}

	infos, _ = s.ListPresets(ctx)
	if len(infos) != builtin+1 {
		t.Errorf("预期 %d 个预设，实际 %d", builtin+1, len(infos))
	}
}

// TestStore_ApplyPreset 预设应用为原子操作：同 ID 替换保位置，新规则追加。
func TestStore_ApplyPreset(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	// 预置一条与预设同 ID 的规则和一条无关规则
	if _, err := s.AddFilterRule(ctx, rulespec.FilterRule{ID: "shared", Pattern: `old`, Type: rulespec.FilterTypeURL, Enabled: true}); err != nil {
		t.Fatalf("预置规则失败: %v", err)
	}
	if _, err := s.AddFilterRule(ctx, rulespec.FilterRule{ID: "keep", Pattern: `keep`, Type: rulespec.FilterTypeURL, Enabled: true}); err != nil {
		t.Fatalf("预置规则失败: %v", err)
	}

	err := s.SavePreset(ctx, rulespec.Preset{
		ID:   "pack",
		Name: "测试包",
		Rules: []rulespec.FilterRule{
			{ID: "shared", Pattern: `new`, Type: rulespec.FilterTypeURL, Enabled: true},
			{ID: "added", Pattern: `added`, Type: rulespec.FilterTypeHost, Enabled: true},
		},
	})
	if err != nil {
		t.Fatalf("保存预设失败: %v", err)
	}

	preset, err := s.ApplyPreset(ctx, "pack")
	if err != nil {
		t.Fatalf("应用预设失败: %v", err)
	}
	if len(preset.Rules) != 2 {
		t.Errorf("返回的预设规则数错误: %d", len(preset.Rules))
	}

	rules, _ := s.ListFilterRules(ctx)
	if len(rules) != 3 {
		t.Fatalf("预期 3 条规则，实际 %d", len(rules))
	}
	// 同 ID 规则原位替换，顺序保持 shared, keep, added
	if rules[0].ID != "shared" || rules[0].Pattern != `new` {
		t.Errorf("同 ID 规则应原位替换: %+v", rules[0])
	}
	if rules[1].ID != "keep" || rules[2].ID != "added" {
		t.Errorf("规则顺序错误: %s, %s", rules[1].ID, rules[2].ID)
	}
}

// TestStore_ApplyBuiltinPreset 内置预设可直接按 ID 应用。
func TestStore_ApplyBuiltinPreset(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	builtin := rulespec.BuiltinPresets()[0]
	preset, err := s.ApplyPreset(ctx, builtin.ID)
	if err != nil {
		t.Fatalf("应用内置预设失败: %v", err)
	}

	rules, _ := s.ListFilterRules(ctx)
	if len(rules) != len(preset.Rules) {
		t.Errorf("预期 %d 条规则，实际 %d", len(preset.Rules), len(rules))
	}
}

// TestStore_ApplyMissingPreset 不存在的预设返回 NOT_FOUND。
func TestStore_ApplyMissingPreset(t *testing.T) {
	s := setupStore(t)

	if _, err := s.ApplyPreset(context.Background(), "no-such-preset"); !errx.Is(err, errx.CodeNotFound) {
		t.Errorf("预期 NOT_FOUND，实际 %v", err)
	}
}
