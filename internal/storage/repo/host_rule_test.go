package repo_test

import (
	"context"
	"testing"

	"harforge/internal/storage/repo"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"
)

// TestHostRuleRepo_Lifecycle 测试主机规则的创建、更新、切换与删除。
func TestHostRuleRepo_Lifecycle(t *testing.T) {
	r := repo.NewHostRuleRepo(setupTestDB(t))

	rule := rulespec.NewHostRule("api.example.com")
	rule.IncludeSubdomains = true

	if _, err := r.Create(context.Background(), &rule); err != nil {
		t.Fatalf("创建主机规则失败: %v", err)
	}

	t.Run("List", func(t *testing.T) {
		rules, err := r.List(context.Background())
		if err != nil {
			t.Fatalf("列出主机规则失败: %v", err)
		}
		if len(rules) != 1 {
			t.Fatalf("预期 1 条规则，实际 %d", len(rules))
		}
		if rules[0].Host != "api.example.com" || !rules[0].IncludeSubdomains {
			t.Errorf("规则字段错误: %+v", rules[0])
		}
	})

	t.Run("Update", func(t *testing.T) {
		rule.Host = "api.example.org"
		rule.IncludeSubdomains = false
		if err := r.Update(context.Background(), &rule); err != nil {
			t.Fatalf("更新主机规则失败: %v", err)
		}

		rules, _ := r.List(context.Background())
		if rules[0].Host != "api.example.org" || rules[0].IncludeSubdomains {
			t.Errorf("更新未生效: %+v", rules[0])
		}
	})

	t.Run("Toggle", func(t *testing.T) {
		if err := r.SetEnabled(context.Background(), rule.ID, false); err != nil {
			t.Fatalf("禁用主机规则失败: %v", err)
		}
		rules, _ := r.List(context.Background())
		if rules[0].Enabled {
			t.Error("规则应已禁用")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := r.Delete(context.Background(), rule.ID); err != nil {
			t.Fatalf("删除主机规则失败: %v", err)
		}
		rules, _ := r.List(context.Background())
		if len(rules) != 0 {
			t.Errorf("规则应已删除，实际剩余 %d", len(rules))
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if err := r.Delete(context.Background(), "no-such-rule"); !errx.Is(err, errx.CodeNotFound) {
			t.Errorf("预期 NOT_FOUND，实际 %v", err)
		}
	})
}

// TestHostRuleRepo_PositionOrder 测试规则按位置顺序返回。
func TestHostRuleRepo_PositionOrder(t *testing.T) {
	r := repo.NewHostRuleRepo(setupTestDB(t))

	a := rulespec.NewHostRule("a.example.com")
	b := rulespec.NewHostRule("b.example.com")
	if _, err := r.Create(context.Background(), &a); err != nil {
		t.Fatalf("创建规则失败: %v", err)
	}
	if _, err := r.Create(context.Background(), &b); err != nil {
		t.Fatalf("创建规则失败: %v", err)
	}

	rules, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("列出规则失败: %v", err)
	}
	if rules[0].ID != a.ID || rules[1].ID != b.ID {
		t.Errorf("规则顺序错误: %s, %s", rules[0].ID, rules[1].ID)
	}
}
