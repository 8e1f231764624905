package rules_test

import (
	"context"
	"sync"
	"testing"

	"harforge/internal/rules"
	"harforge/pkg/domain"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"
)

// staticLoader 测试用的内存规则来源
type staticLoader struct {
	filters []rulespec.FilterRule
	hosts   []rulespec.HostRule
}

func (l *staticLoader) LoadRules(ctx context.Context) ([]rulespec.FilterRule, []rulespec.HostRule, error) {
	return l.filters, l.hosts, nil
}

func newEngine(t *testing.T, filters []rulespec.FilterRule, hosts []rulespec.HostRule) *rules.Engine {
	t.Helper()
	e := rules.New()
	if err := e.Reload(context.Background(), &staticLoader{filters: filters, hosts: hosts}); err != nil {
		t.Fatalf("加载规则失败: %v", err)
	}
	return e
}

// TestEngine_FilterRules 测试各类过滤规则的 deny-list 评估逻辑
func TestEngine_FilterRules(t *testing.T) {
	tests := []struct {
		name         string
		rule         rulespec.FilterRule
		ex           domain.RawExchange
		wantIncluded bool
	}{
		{"URL 命中排除", rulespec.FilterRule{ID: "r1", Pattern: `\.css(\?|$)`, Type: rulespec.FilterTypeURL, Enabled: true},
			domain.RawExchange{URL: "https://a.com/app.css", Host: "a.com"}, false},
		{"URL 未命中放行", rulespec.FilterRule{ID: "r1", Pattern: `\.css(\?|$)`, Type: rulespec.FilterTypeURL, Enabled: true},
			domain.RawExchange{URL: "https://a.com/api/users", Host: "a.com"}, true},
		{"Host 命中排除", rulespec.FilterRule{ID: "r2", Pattern: `cdn\.`, Type: rulespec.FilterTypeHost, Enabled: true},
			domain.RawExchange{URL: "https://cdn.a.com/x", Host: "cdn.a.com"}, false},
		{"Method 命中排除", rulespec.FilterRule{ID: "r3", Pattern: `OPTIONS`, Type: rulespec.FilterTypeMethod, Enabled: true},
			domain.RawExchange{Method: "OPTIONS", Host: "a.com"}, false},
		{"Content-Type 命中排除", rulespec.FilterRule{ID: "r4", Pattern: `^text/html`, Type: rulespec.FilterTypeContentType, Enabled: true},
			domain.RawExchange{Host: "a.com", RequestHeaders: map[string]string{"Content-Type": "text/html; charset=utf-8"}}, false},
		{"禁用规则不生效", rulespec.FilterRule{ID: "r5", Pattern: `.`, Type: rulespec.FilterTypeURL, Enabled: false},
			domain.RawExchange{URL: "https://a.com/x", Host: "a.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, []rulespec.FilterRule{tt.rule}, nil)
			if got := e.Evaluate(&tt.ex); got != tt.wantIncluded {
				t.Errorf("评估结果期望 %v, 实际 %v", tt.wantIncluded, got)
			}
		})
	}
}

// TestEngine_HostAllowList 测试 Host 规则的 allow-list 语义与空集放行
func TestEngine_HostAllowList(t *testing.T) {
	hosts := []rulespec.HostRule{
		{ID: "h1", Host: "api.example.com", Enabled: true},
		{ID: "h2", Host: "example.org", Enabled: true, IncludeSubdomains: true},
		{ID: "h3", Host: "disabled.com", Enabled: false},
	}

	tests := []struct {
		name         string
		host         string
		wantIncluded bool
	}{
		{"精确命中", "api.example.com", true},
		{"子域名命中", "v2.example.org", true},
		{"根域名命中", "example.org", true},
		{"未开启子域名时不匹配子域名", "sub.api.example.com", false},
		{"非后缀标签不命中", "evilexample.org", false},
		{"未命中任何规则排除", "other.com", false},
		{"禁用规则不参与匹配", "disabled.com", false},
	}

	e := newEngine(t, nil, hosts)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := domain.RawExchange{Method: "GET", URL: "https://" + tt.host + "/x", Host: tt.host}
			if got := e.Evaluate(&ex); got != tt.wantIncluded {
				t.Errorf("host %s 期望 included=%v, 实际 %v", tt.host, tt.wantIncluded, got)
			}
		})
	}

	t.Run("无启用 Host 规则时全部放行", func(t *testing.T) {
		e := newEngine(t, nil, []rulespec.HostRule{{ID: "h", Host: "x.com", Enabled: false}})
		ex := domain.RawExchange{Method: "GET", Host: "anything.com"}
		if !e.Evaluate(&ex) {
			t.Error("Host 规则全部禁用时应放行所有 host")
		}
	})
}

// TestEngine_FilterBeatsHost 过滤规则命中时无论 Host 结果如何都排除
func TestEngine_FilterBeatsHost(t *testing.T) {
	e := newEngine(t,
		[]rulespec.FilterRule{{ID: "f", Pattern: `/static/`, Type: rulespec.FilterTypeURL, Enabled: true}},
		[]rulespec.HostRule{{ID: "h", Host: "api.example.com", Enabled: true}},
	)

	ex := domain.RawExchange{Method: "GET", URL: "https://api.example.com/static/a.png", Host: "api.example.com"}
	if e.Evaluate(&ex) {
		t.Error("host 在白名单内但命中过滤规则时仍应排除")
	}
}

// TestEngine_ReloadInvalidPattern 非法 pattern 导致重载失败且旧快照保持生效
func TestEngine_ReloadInvalidPattern(t *testing.T) {
	e := newEngine(t, []rulespec.FilterRule{{ID: "f", Pattern: `\.css$`, Type: rulespec.FilterTypeURL, Enabled: true}}, nil)

	err := e.Reload(context.Background(), &staticLoader{
		filters: []rulespec.FilterRule{{ID: "bad", Pattern: `(`, Type: rulespec.FilterTypeURL, Enabled: true}},
	})
	if !errx.Is(err, errx.CodeInvalidPattern) {
		t.Fatalf("期望 INVALID_PATTERN 错误, 实际 %v", err)
	}

	// 旧规则仍然生效
	ex := domain.RawExchange{URL: "https://a.com/app.css", Host: "a.com"}
	if e.Evaluate(&ex) {
		t.Error("重载失败后旧快照应保持生效")
	}
}

// TestEngine_ConcurrentReload 重载与评估并发执行时，单次评估永远看到完整的规则集
func TestEngine_ConcurrentReload(t *testing.T) {
	// 两个配置：A 排除所有流量（两条规则都命中），B 不排除任何流量。
	// 若快照发布不原子，评估可能看到只含一半变更的规则集。
	// 这里通过结果与两个合法快照之一一致来间接验证。
	configA := &staticLoader{filters: []rulespec.FilterRule{
		{ID: "a1", Pattern: `example`, Type: rulespec.FilterTypeHost, Enabled: true},
		{ID: "a2", Pattern: `GET`, Type: rulespec.FilterTypeMethod, Enabled: true},
	}}
	configB := &staticLoader{}

	e := rules.New()
	if err := e.Reload(context.Background(), configA); err != nil {
		t.Fatalf("初始加载失败: %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = e.Reload(context.Background(), configB)
			_ = e.Reload(context.Background(), configA)
		}
		close(done)
	}()

	ex := domain.RawExchange{Method: "GET", URL: "https://api.example.com/u", Host: "api.example.com"}
	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
			snap := e.Current()
			// 任一时刻快照里要么是 A 的两条规则，要么为空，绝不会只有一条
			if n := snap.FilterCount(); n != 0 && n != 2 {
				t.Fatalf("观察到半更新快照: 规则数=%d", n)
			}
			_ = e.Evaluate(&ex)
		}
	}
}

// TestEngine_Stats 测试命中统计的记录与重置
func TestEngine_Stats(t *testing.T) {
	e := newEngine(t, []rulespec.FilterRule{{ID: "f", Pattern: `\.png$`, Type: rulespec.FilterTypeURL, Enabled: true}}, nil)

	e.Evaluate(&domain.RawExchange{URL: "https://a.com/x.png", Host: "a.com"})
	e.Evaluate(&domain.RawExchange{URL: "https://a.com/api", Host: "a.com"})

	stats := e.GetStats()
	if stats.Total != 2 || stats.Excluded != 1 {
		t.Errorf("基础统计错误: Total=%d, Excluded=%d", stats.Total, stats.Excluded)
	}
	if stats.ByRule["f"] != 1 {
		t.Errorf("单条规则统计错误: %+v", stats.ByRule)
	}

	e.ResetStats()
	if stats2 := e.GetStats(); stats2.Total != 0 || len(stats2.ByRule) != 0 {
		t.Error("统计重置失败")
	}
}
