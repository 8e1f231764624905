// Package builder 将过滤后的交换记录归并为去重的 API 定义目录
package builder

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"harforge/internal/logger"
	"harforge/internal/schema"
	"harforge/pkg/domain"
	"harforge/pkg/errx"

	"github.com/google/uuid"
)

// Source 交换记录的惰性来源，读尽时返回 io.EOF
type Source interface {
	Next() (*domain.RawExchange, error)
}

// SliceSource 内存切片来源（测试与目录合并用）
type SliceSource struct {
	items []*domain.RawExchange
	pos   int
}

// NewSliceSource 创建内存来源
func NewSliceSource(items ...*domain.RawExchange) *SliceSource {
	return &SliceSource{items: items}
}

// Next 返回下一条记录
func (s *SliceSource) Next() (*domain.RawExchange, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	ex := s.items[s.pos]
	s.pos++
	return ex, nil
}

// Result 建模产物：按首次出现顺序排列的定义目录与诊断
type Result struct {
	Definitions []domain.ApiDefinition
	Diagnostics []domain.Diagnostic
	HostStats   map[string]domain.HostStat
}

// Builder 模型构建器
type Builder struct {
	log logger.Logger
}

// New 创建模型构建器
func New(l logger.Logger) *Builder {
	if l == nil {
		l = logger.Nop()
	}
	return &Builder{log: l}
}

// Build 过滤、归一并合并交换记录，产出 API 定义目录
// include 为空时全部纳入；取消时丢弃部分结果并返回 ctx.Err()
func (b *Builder) Build(ctx context.Context, src Source, include func(*domain.RawExchange) bool) (*Result, error) {
	survivors, err := b.collect(ctx, src, include)
	if err != nil {
		return nil, err
	}
	if len(survivors) == 0 {
		return &Result{Definitions: []domain.ApiDefinition{}, HostStats: map[string]domain.HostStat{}}, nil
	}

	templates := normalizeTemplates(survivors)

	// 按 (method, pathTemplate) 首次出现顺序分组
	type group struct {
		key      string
		method   string
		template string
		samples  []*domain.RawExchange
	}
	groups := make(map[string]*group)
	var order []string
	for i, ex := range survivors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := ex.Method + " " + templates[i]
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, method: ex.Method, template: templates[i]}
			groups[key] = g
			order = append(order, key)
		}
		g.samples = append(g.samples, ex)
	}

	result := &Result{
		Definitions: make([]domain.ApiDefinition, 0, len(order)),
		HostStats:   hostStats(survivors),
	}
	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g := groups[key]
		def, widened := mergeGroup(g.method, g.template, g.samples)
		result.Definitions = append(result.Definitions, def)
		if widened {
			result.Diagnostics = append(result.Diagnostics, domain.Diagnostic{
				Stage:   "build",
				Code:    string(errx.CodeSchemaConflict),
				Message: fmt.Sprintf("端点 %s 存在字段类型冲突，已拓宽为类型并集", key),
			})
		}
	}

	b.log.Debug("建模完成", "exchanges", len(survivors), "endpoints", len(result.Definitions))
	return result, nil
}

// collect 读尽来源并应用纳入谓词
func (b *Builder) collect(ctx context.Context, src Source, include func(*domain.RawExchange) bool) ([]*domain.RawExchange, error) {
	var survivors []*domain.RawExchange
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ex, err := src.Next()
		if err == io.EOF {
			return survivors, nil
		}
		if err != nil {
			return nil, err
		}
		if include != nil && !include(ex) {
			continue
		}
		survivors = append(survivors, ex)
	}
}

// normalizeTemplates 计算每条记录的路径模板
// 先做形态归一（数字/UUID/长十六进制段替换为 {id}），再在同方法同段数的
// 记录族内做变化段合并：两个模板仅在一个位置不同且其中一侧已是 {id} 时，
// 该位置统一替换为 {id}
func normalizeTemplates(survivors []*domain.RawExchange) []string {
	segsOf := make([][]string, len(survivors))
	for i, ex := range survivors {
		segsOf[i] = shapeNormalize(ex.Path)
	}

	// 记录族：method + 段数
	families := make(map[string][]int)
	for i, ex := range survivors {
		famKey := fmt.Sprintf("%s/%d", ex.Method, len(segsOf[i]))
		families[famKey] = append(families[famKey], i)
	}

	for _, members := range families {
		for changed := true; changed; {
			changed = false
			for x := 0; x < len(members); x++ {
				for y := x + 1; y < len(members); y++ {
					a, c := segsOf[members[x]], segsOf[members[y]]
					if mergeVariant(a, c) {
						changed = true
					}
				}
			}
		}
	}

	templates := make([]string, len(survivors))
	for i := range survivors {
		templates[i] = joinTemplate(segsOf[i])
	}
	return templates
}

// mergeVariant 若两个段序列仅在一个位置不同且其中一侧为 {id}，
// 将双方该位置统一为 {id}，返回是否发生修改
func mergeVariant(a, b []string) bool {
	diff := -1
	for i := range a {
		if a[i] != b[i] {
			if diff >= 0 {
				return false
			}
			diff = i
		}
	}
	if diff < 0 {
		return false
	}
	if a[diff] != placeholder && b[diff] != placeholder {
		return false
	}
	a[diff] = placeholder
	b[diff] = placeholder
	return true
}

const placeholder = "{id}"

// shapeNormalize 按形态将可变段替换为 {id}
func shapeNormalize(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	segs := strings.Split(trimmed, "/")
	for i, seg := range segs {
		if isVariableSegment(seg) {
			segs[i] = placeholder
		}
	}
	return segs
}

// isVariableSegment 判断段是否形似标识符：纯数字、UUID 或长十六进制串
func isVariableSegment(seg string) bool {
	if seg == "" {
		return false
	}
	if isDigits(seg) {
		return true
	}
	if len(seg) == 36 {
		if _, err := uuid.Parse(seg); err == nil {
			return true
		}
	}
	return len(seg) >= 16 && isHex(seg)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func joinTemplate(segs []string) string {
	if len(segs) == 0 {
		return "/"
	}
	return "/" + strings.Join(segs, "/")
}

// fieldAgg 头部/查询参数在组内的聚合状态
type fieldAgg struct {
	count   int
	types   map[string]bool
	example string
}

// mergeGroup 合并一组同端点样本，返回定义与是否发生类型拓宽
func mergeGroup(method, template string, samples []*domain.RawExchange) (domain.ApiDefinition, bool) {
	total := len(samples)
	latest := samples[total-1]

	reqHeaders := make(map[string]*fieldAgg)
	respHeaders := make(map[string]*fieldAgg)
	queryParams := make(map[string]*fieldAgg)
	var reqBody, respBody *domain.SchemaNode
	widened := false

	for _, ex := range samples {
		for name, value := range ex.RequestHeaders {
			accumulate(reqHeaders, name, "string", value)
		}
		for name, value := range ex.ResponseHeaders {
			accumulate(respHeaders, name, "string", value)
		}
		for name, value := range ex.Query {
			accumulate(queryParams, name, schema.ScalarType(value), value)
		}

		var w bool
		reqBody, w = mergeBody(reqBody, ex.RequestBody, ex.RequestMIME)
		widened = widened || w
		respBody, w = mergeBody(respBody, ex.ResponseBody, ex.ResponseMIME)
		widened = widened || w
	}

	queryDocs, w := fieldDocs(queryParams, total)
	widened = widened || w
	reqHeaderDocs, _ := fieldDocs(reqHeaders, total)
	respHeaderDocs, _ := fieldDocs(respHeaders, total)

	return domain.ApiDefinition{
		Method:       method,
		PathTemplate: template,
		ExamplePath:  latest.Path,
		SampleCount:  total,
		Request: domain.RequestDoc{
			Headers:     reqHeaderDocs,
			QueryParams: queryDocs,
			BodySchema:  reqBody,
		},
		Response: domain.ResponseDoc{
			StatusCode: latest.StatusCode,
			Headers:    respHeaderDocs,
			BodySchema: respBody,
		},
	}, widened
}

// accumulate 聚合一个字段观测
func accumulate(aggs map[string]*fieldAgg, name, typ, value string) {
	agg, ok := aggs[name]
	if !ok {
		agg = &fieldAgg{types: make(map[string]bool)}
		aggs[name] = agg
	}
	agg.count++
	agg.types[typ] = true
	agg.example = value
}

// fieldDocs 将聚合状态落为文档字段
// 仅在全部样本中出现的字段为必填；类型冲突以 | 连接的并集标记拓宽
func fieldDocs(aggs map[string]*fieldAgg, total int) (map[string]domain.FieldDoc, bool) {
	if len(aggs) == 0 {
		return nil, false
	}
	widened := false
	out := make(map[string]domain.FieldDoc, len(aggs))
	for name, agg := range aggs {
		types := make([]string, 0, len(agg.types))
		for t := range agg.types {
			types = append(types, t)
		}
		sort.Strings(types)
		if len(types) > 1 {
			widened = true
		}
		out[name] = domain.FieldDoc{
			Type:     strings.Join(types, "|"),
			Required: agg.count == total,
			Example:  agg.example,
		}
	}
	return out, widened
}

// mergeBody 将一条样本体并入聚合模式
func mergeBody(agg *domain.SchemaNode, body []byte, mime string) (*domain.SchemaNode, bool) {
	node := schema.Infer(body, mime)
	if node == nil {
		return agg, false
	}
	if agg == nil {
		return node, false
	}
	return schema.Merge(agg, node)
}

// hostStats 统计存活记录的 host 分布
func hostStats(survivors []*domain.RawExchange) map[string]domain.HostStat {
	stats := make(map[string]domain.HostStat)
	for _, ex := range survivors {
		st, ok := stats[ex.Host]
		if !ok {
			st = domain.HostStat{Methods: make(map[string]int)}
		}
		st.Count++
		st.Methods[ex.Method]++
		stats[ex.Host] = st
	}
	return stats
}
