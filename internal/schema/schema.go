// Package schema 从原始请求/响应体推断 JSON 模式，并提供与顺序无关的合并
package schema

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"harforge/pkg/domain"

	"github.com/tidwall/gjson"
)

// maxExampleLen 示例值的最大保留长度
const maxExampleLen = 120

// Infer 从原始体推断模式节点
// JSON 与表单体展开为结构化节点；其余内容保留为不透明 blob 节点而非丢弃
func Infer(body []byte, mime string) *domain.SchemaNode {
	if len(body) == 0 {
		return nil
	}

	mime = normalizeMIME(mime)
	switch {
	case strings.Contains(mime, "json") || looksLikeJSON(body):
		if v := gjson.ParseBytes(body); v.Type != gjson.Null || v.Raw == "null" {
			return fromJSON(v)
		}
	case mime == "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(body)); err == nil {
			return fromForm(values)
		}
	}

	return &domain.SchemaNode{
		Kind:        domain.KindAny,
		ContentType: mime,
		Example:     truncate(string(body)),
	}
}

// fromJSON 递归推断 JSON 值的模式
func fromJSON(v gjson.Result) *domain.SchemaNode {
	switch {
	case v.IsObject():
		node := &domain.SchemaNode{
			Kind:       domain.KindObject,
			Properties: make(map[string]*domain.SchemaNode),
		}
		v.ForEach(func(key, value gjson.Result) bool {
			node.Properties[key.String()] = fromJSON(value)
			return true
		})
		return node
	case v.IsArray():
		node := &domain.SchemaNode{Kind: domain.KindArray}
		for _, item := range v.Array() {
			node.Items, _ = Merge(node.Items, fromJSON(item))
		}
		return node
	case v.Type == gjson.True || v.Type == gjson.False:
		return &domain.SchemaNode{Kind: domain.KindBoolean, Example: v.String()}
	case v.Type == gjson.Number:
		return &domain.SchemaNode{Kind: domain.KindNumber, Example: v.String()}
	case v.Type == gjson.String:
		return &domain.SchemaNode{Kind: domain.KindString, Example: truncate(v.String())}
	default:
		return &domain.SchemaNode{Kind: domain.KindNull}
	}
}

// fromForm 将表单体展开为对象节点，每个字段按标量推断
func fromForm(values url.Values) *domain.SchemaNode {
	node := &domain.SchemaNode{
		Kind:       domain.KindObject,
		Properties: make(map[string]*domain.SchemaNode, len(values)),
	}
	for name, vs := range values {
		example := ""
		if len(vs) > 0 {
			example = vs[0]
		}
		node.Properties[name] = &domain.SchemaNode{
			Kind:    domain.KindString,
			Example: truncate(example),
		}
	}
	return node
}

// ScalarType 推断字符串值的参数类型（查询参数/表单字段文档用）
func ScalarType(value string) string {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return "integer"
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return "number"
	}
	switch strings.ToLower(value) {
	case "true", "false":
		return "boolean"
	}
	if _, err := time.Parse(time.RFC3339, value); err == nil {
		return "datetime"
	}
	return "string"
}

// Merge 合并两个模式节点，返回合并结果以及是否发生了类型拓宽
// 对类型并集而言合并满足交换律与结合律；示例值取自较新一侧（第二参数）
func Merge(a, b *domain.SchemaNode) (*domain.SchemaNode, bool) {
	switch {
	case a == nil && b == nil:
		return nil, false
	case a == nil:
		out := clone(b)
		out.Optional = true
		return out, false
	case b == nil:
		out := clone(a)
		out.Optional = true
		return out, false
	}

	optional := a.Optional || b.Optional

	if a.Kind != b.Kind {
		return &domain.SchemaNode{
			Kind:     domain.KindAny,
			Types:    unionTypes(a, b),
			Optional: optional,
			Example:  pickExample(a, b),
		}, true
	}

	out := &domain.SchemaNode{
		Kind:        a.Kind,
		Optional:    optional,
		Example:     pickExample(a, b),
		ContentType: pickString(a.ContentType, b.ContentType),
	}
	widened := false

	switch a.Kind {
	case domain.KindObject:
		out.Properties = make(map[string]*domain.SchemaNode, len(a.Properties)+len(b.Properties))
		for key, av := range a.Properties {
			merged, w := Merge(av, b.Properties[key])
			out.Properties[key] = merged
			widened = widened || w
		}
		for key, bv := range b.Properties {
			if _, seen := a.Properties[key]; seen {
				continue
			}
			merged, _ := Merge(nil, bv)
			out.Properties[key] = merged
		}
	case domain.KindArray:
		items, w := Merge(a.Items, b.Items)
		out.Items = items
		widened = w
	case domain.KindAny:
		out.Types = unionTypes(a, b)
	}

	return out, widened
}

// unionTypes 计算两个节点观测类型的有序并集
func unionTypes(a, b *domain.SchemaNode) []domain.SchemaKind {
	set := make(map[domain.SchemaKind]bool)
	for _, k := range typeSet(a) {
		set[k] = true
	}
	for _, k := range typeSet(b) {
		set[k] = true
	}
	kinds := make([]domain.SchemaKind, 0, len(set))
	for k := range set {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// typeSet 返回节点代表的类型集合
func typeSet(n *domain.SchemaNode) []domain.SchemaKind {
	if n.Kind == domain.KindAny && len(n.Types) > 0 {
		return n.Types
	}
	return []domain.SchemaKind{n.Kind}
}

// pickExample 优先取较新一侧的示例
func pickExample(a, b *domain.SchemaNode) string {
	return pickString(a.Example, b.Example)
}

func pickString(old, new string) string {
	if new != "" {
		return new
	}
	return old
}

// clone 深拷贝模式节点
func clone(n *domain.SchemaNode) *domain.SchemaNode {
	if n == nil {
		return nil
	}
	out := *n
	if n.Types != nil {
		out.Types = append([]domain.SchemaKind(nil), n.Types...)
	}
	if n.Properties != nil {
		out.Properties = make(map[string]*domain.SchemaNode, len(n.Properties))
		for k, v := range n.Properties {
			out.Properties[k] = clone(v)
		}
	}
	out.Items = clone(n.Items)
	return &out
}

// normalizeMIME 去除参数部分并转小写
func normalizeMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(strings.ToLower(mime))
}

// looksLikeJSON 体未声明 MIME 时按内容判断是否为 JSON
func looksLikeJSON(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return false
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return false
	}
	return gjson.Valid(trimmed)
}

func truncate(s string) string {
	if len(s) > maxExampleLen {
		return s[:maxExampleLen]
	}
	return s
}
