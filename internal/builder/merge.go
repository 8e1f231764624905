package builder

import (
	"sort"
	"strings"

	"harforge/internal/schema"
	"harforge/pkg/domain"
)

// MergeDefinitions 合并两份定义目录
// 同键端点逐字段合并，结果与把两批样本一次性建模等价；
// 顺序保持 a 的首次出现顺序，b 独有的端点按原顺序追加
func MergeDefinitions(a, b []domain.ApiDefinition) []domain.ApiDefinition {
	index := make(map[string]int, len(a))
	out := make([]domain.ApiDefinition, len(a))
	copy(out, a)
	for i := range out {
		index[out[i].Key()] = i
	}

	for i := range b {
		def := b[i]
		if j, ok := index[def.Key()]; ok {
			out[j] = mergeDefinition(out[j], def)
			continue
		}
		index[def.Key()] = len(out)
		out = append(out, def)
	}
	return out
}

// mergeDefinition 合并同一端点的两份描述，b 视为较晚观测
func mergeDefinition(a, b domain.ApiDefinition) domain.ApiDefinition {
	total := a.SampleCount + b.SampleCount
	desc := b.Description
	if desc == "" {
		desc = a.Description
	}

	return domain.ApiDefinition{
		Method:       a.Method,
		PathTemplate: a.PathTemplate,
		Description:  desc,
		ExamplePath:  b.ExamplePath,
		SampleCount:  total,
		Request: domain.RequestDoc{
			Headers:     mergeFieldDocs(a.Request.Headers, b.Request.Headers),
			QueryParams: mergeFieldDocs(a.Request.QueryParams, b.Request.QueryParams),
			BodySchema:  mergeSchemaNodes(a.Request.BodySchema, b.Request.BodySchema),
		},
		Response: domain.ResponseDoc{
			StatusCode: b.Response.StatusCode,
			Headers:    mergeFieldDocs(a.Response.Headers, b.Response.Headers),
			BodySchema: mergeSchemaNodes(a.Response.BodySchema, b.Response.BodySchema),
		},
	}
}

// mergeFieldDocs 合并字段文档
// 仅在双方都必填时保持必填；类型取并集；示例取较晚一侧
func mergeFieldDocs(a, b map[string]domain.FieldDoc) map[string]domain.FieldDoc {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]domain.FieldDoc, len(a)+len(b))
	for name, doc := range a {
		if later, ok := b[name]; ok {
			out[name] = domain.FieldDoc{
				Type:     unionTypes(doc.Type, later.Type),
				Required: doc.Required && later.Required,
				Example:  later.Example,
			}
			continue
		}
		doc.Required = false
		out[name] = doc
	}
	for name, doc := range b {
		if _, ok := a[name]; ok {
			continue
		}
		doc.Required = false
		out[name] = doc
	}
	return out
}

// unionTypes 合并两个 | 连接的类型并集标记
func unionTypes(a, b string) string {
	set := make(map[string]bool)
	for _, t := range strings.Split(a, "|") {
		if t != "" {
			set[t] = true
		}
	}
	for _, t := range strings.Split(b, "|") {
		if t != "" {
			set[t] = true
		}
	}
	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Strings(types)
	return strings.Join(types, "|")
}

// mergeSchemaNodes 合并两侧的体模式，单侧缺失时沿用另一侧
func mergeSchemaNodes(a, b *domain.SchemaNode) *domain.SchemaNode {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	merged, _ := schema.Merge(a, b)
	return merged
}
