package repo_test

import (
	"context"
	"testing"

	"harforge/internal/storage/db"
	"harforge/internal/storage/model"
	"harforge/internal/storage/repo"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"

	"gorm.io/gorm"
)

// setupTestDB 创建一个用于测试的内存数据库并完成迁移。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// 使用内存数据库，速度快且隔离性好
	gdb, err := db.New(db.Options{
		Name:   ":memory:",
		Prefix: "test_",
	})
	if err != nil {
		t.Fatalf("创建内存数据库失败: %v", err)
	}

	// 执行必要迁移
	err = db.Migrate(gdb, &model.FilterRuleRecord{}, &model.HostRuleRecord{}, &model.PresetRecord{})
	if err != nil {
		t.Fatalf("迁移数据库失败: %v", err)
	}

	return gdb
}

// TestFilterRuleRepo_CreateAndList 测试规则创建后按位置顺序列出。
func TestFilterRuleRepo_CreateAndList(t *testing.T) {
	r := repo.NewFilterRuleRepo(setupTestDB(t))

	first := rulespec.NewFilterRule(`\.png$`, rulespec.FilterTypeURL)
	second := rulespec.NewFilterRule(`^OPTIONS$`, rulespec.FilterTypeMethod)

	rec1, err := r.Create(context.Background(), &first)
	if err != nil {
		t.Fatalf("创建规则失败: %v", err)
	}
	rec2, err := r.Create(context.Background(), &second)
	if err != nil {
		t.Fatalf("创建规则失败: %v", err)
	}

	if rec2.Position != rec1.Position+1 {
		t.Errorf("位置应递增: %d -> %d", rec1.Position, rec2.Position)
	}

	rules, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("列出规则失败: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("预期 2 条规则，实际 %d", len(rules))
	}
	if rules[0].ID != first.ID || rules[1].ID != second.ID {
		t.Errorf("规则顺序错误: %s, %s", rules[0].ID, rules[1].ID)
	}
}

// TestFilterRuleRepo_Update 测试按业务 ID 更新与不存在场景。
func TestFilterRuleRepo_Update(t *testing.T) {
	r := repo.NewFilterRuleRepo(setupTestDB(t))

	rule := rulespec.NewFilterRule(`\.css$`, rulespec.FilterTypeURL)
	if _, err := r.Create(context.Background(), &rule); err != nil {
		t.Fatalf("创建规则失败: %v", err)
	}

	t.Run("Update Existing", func(t *testing.T) {
		rule.Pattern = `\.less$`
		rule.Enabled = false
		if err := r.Update(context.Background(), &rule); err != nil {
			t.Fatalf("更新规则失败: %v", err)
		}

		record, _ := r.GetByRuleID(context.Background(), rule.ID)
		if record == nil || record.Pattern != `\.less$` || record.Enabled {
			t.Errorf("更新未生效: %+v", record)
		}
	})

	t.Run("Update Missing", func(t *testing.T) {
		missing := rulespec.NewFilterRule(`x`, rulespec.FilterTypeURL)
		err := r.Update(context.Background(), &missing)
		if !errx.Is(err, errx.CodeNotFound) {
			t.Errorf("预期 NOT_FOUND，实际 %v", err)
		}
	})
}

// TestFilterRuleRepo_DeleteAndToggle 测试删除与启用状态切换。
func TestFilterRuleRepo_DeleteAndToggle(t *testing.T) {
	r := repo.NewFilterRuleRepo(setupTestDB(t))

	rule := rulespec.NewFilterRule(`google-analytics`, rulespec.FilterTypeHost)
	if _, err := r.Create(context.Background(), &rule); err != nil {
		t.Fatalf("创建规则失败: %v", err)
	}

	t.Run("Toggle", func(t *testing.T) {
		if err := r.SetEnabled(context.Background(), rule.ID, false); err != nil {
			t.Fatalf("禁用规则失败: %v", err)
		}
		record, _ := r.GetByRuleID(context.Background(), rule.ID)
		if record.Enabled {
			t.Error("规则应已禁用")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := r.Delete(context.Background(), rule.ID); err != nil {
			t.Fatalf("删除规则失败: %v", err)
		}
		record, _ := r.GetByRuleID(context.Background(), rule.ID)
		if record != nil {
			t.Error("规则应已删除")
		}
	})

	t.Run("Delete Missing", func(t *testing.T) {
		err := r.Delete(context.Background(), "no-such-rule")
		if !errx.Is(err, errx.CodeNotFound) {
			t.Errorf("预期 NOT_FOUND，实际 %v", err)
		}
	})
}
