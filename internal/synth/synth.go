// Package synth 从 API 定义目录合成测试用例与接口文档
package synth

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"harforge/pkg/domain"

	"github.com/tidwall/sjson"
)

// Synthesize 为每个定义生成一个初始测试用例
// 用例 ID 由方法与路径模板派生，输入相同则输出相同
func Synthesize(defs []domain.ApiDefinition) []domain.TestCase {
	cases := make([]domain.TestCase, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		cases = append(cases, synthesizeOne(def))
	}
	return cases
}

// synthesizeOne 合成单个定义的测试用例
func synthesizeOne(def *domain.ApiDefinition) domain.TestCase {
	tc := domain.TestCase{
		ID:               slug(def),
		ApiDefinitionRef: def.Key(),
		Name:             fmt.Sprintf("%s %s", def.Method, def.PathTemplate),
		Request: domain.TestRequest{
			Method:  def.Method,
			Path:    def.ExamplePath,
			Headers: exampleValues(def.Request.Headers, true),
			Query:   exampleValues(def.Request.QueryParams, false),
		},
		ExpectedResponse: domain.ExpectedResponse{
			StatusCode: def.Response.StatusCode,
			BodySchema: def.Response.BodySchema,
		},
		Tags: []string{"generated", strings.ToLower(def.Method)},
	}

	if body := exampleBody(def.Request.BodySchema); body != "" {
		tc.Request.Body = []byte(body)
	}
	return tc
}

// slug 由方法与路径模板派生稳定的用例 ID
func slug(def *domain.ApiDefinition) string {
	parts := []string{strings.ToLower(def.Method)}
	for _, seg := range strings.Split(strings.Trim(def.PathTemplate, "/"), "/") {
		seg = strings.Trim(seg, "{}")
		if seg == "" {
			continue
		}
		parts = append(parts, strings.ToLower(seg))
	}
	if len(parts) == 1 {
		parts = append(parts, "root")
	}
	return strings.Join(parts, "-")
}

// exampleValues 从字段文档提取示例键值；onlyRequired 时跳过可选字段
func exampleValues(docs map[string]domain.FieldDoc, onlyRequired bool) map[string]string {
	if len(docs) == 0 {
		return nil
	}
	out := make(map[string]string)
	for name, doc := range docs {
		if onlyRequired && !doc.Required {
			continue
		}
		if doc.Example == "" {
			continue
		}
		out[name] = doc.Example
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// exampleBody 按模式构造示例 JSON 体；属性按名称排序保证输出稳定
func exampleBody(node *domain.SchemaNode) string {
	if node == nil || node.Kind != domain.KindObject {
		return ""
	}
	body := "{}"
	for _, name := range sortedKeys(node.Properties) {
		body = setExample(body, name, node.Properties[name])
	}
	return body
}

// setExample 将单个属性的示例值写入 JSON 体
func setExample(body, path string, node *domain.SchemaNode) string {
	switch node.Kind {
	case domain.KindObject:
		for _, name := range sortedKeys(node.Properties) {
			body = setExample(body, path+"."+name, node.Properties[name])
		}
		return body
	case domain.KindArray:
		if node.Items != nil {
			return setExample(body, path+".0", node.Items)
		}
		out, _ := sjson.Set(body, path, []any{})
		return out
	case domain.KindNumber:
		out, _ := sjson.Set(body, path, exampleNumber(node.Example))
		return out
	case domain.KindBoolean:
		out, _ := sjson.Set(body, path, node.Example == "true")
		return out
	case domain.KindNull:
		out, _ := sjson.Set(body, path, nil)
		return out
	default:
		out, _ := sjson.Set(body, path, node.Example)
		return out
	}
}

// exampleNumber 将示例字符串还原为数值，失败时退回 0
func exampleNumber(example string) any {
	var n float64
	if _, err := fmt.Sscanf(example, "%g", &n); err != nil {
		return 0
	}
	if n == float64(int64(n)) {
		return int64(n)
	}
	return n
}

func sortedKeys(m map[string]*domain.SchemaNode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// docTemplate 接口文档的 markdown 模板
// 端点内的段落顺序：描述、请求头、查询参数、请求体、响应
var docTemplate = template.Must(template.New("doc").Funcs(template.FuncMap{
	"sortedFieldNames": sortedFieldNames,
	"renderSchema":     renderSchema,
}).Parse(`# 接口目录

共 {{len .}} 个端点。
{{range .}}
## {{.Method}} {{.PathTemplate}}
{{- if .Description}}

{{.Description}}
{{- end}}

- 示例路径: ` + "`{{.ExamplePath}}`" + `
- 样本数: {{.SampleCount}}
{{- if .Request.Headers}}
{{- $h := .Request.Headers}}

| 请求头 | 类型 | 必填 | 示例 |
| --- | --- | --- | --- |
{{- range $name := sortedFieldNames $h}}
{{- $doc := index $h $name}}
| {{$name}} | {{$doc.Type}} | {{$doc.Required}} | {{$doc.Example}} |
{{- end}}
{{- end}}
{{- if .Request.QueryParams}}
{{- $qp := .Request.QueryParams}}

| 查询参数 | 类型 | 必填 | 示例 |
| --- | --- | --- | --- |
{{- range $name := sortedFieldNames $qp}}
{{- $doc := index $qp $name}}
| {{$name}} | {{$doc.Type}} | {{$doc.Required}} | {{$doc.Example}} |
{{- end}}
{{- end}}
{{- if .Request.BodySchema}}

请求体模式:

` + "```" + `
{{renderSchema .Request.BodySchema}}
` + "```" + `
{{- end}}

响应状态: {{.Response.StatusCode}}
{{- if .Response.BodySchema}}

响应体模式:

` + "```" + `
{{renderSchema .Response.BodySchema}}
` + "```" + `
{{- end}}
{{end}}`))

// renderSchema 将模式节点渲染为缩进文本，属性按名称排序保证输出稳定
func renderSchema(node *domain.SchemaNode) string {
	var sb strings.Builder
	writeSchemaNode(&sb, "", node, 0)
	return strings.TrimRight(sb.String(), "\n")
}

// writeSchemaNode 递归写出节点及其子结构
func writeSchemaNode(sb *strings.Builder, name string, node *domain.SchemaNode, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	if name != "" {
		sb.WriteString(name + ": ")
	}
	sb.WriteString(kindLabel(node))
	if node.Optional {
		sb.WriteString(" (可选)")
	}
	if node.Example != "" {
		sb.WriteString(" 示例: " + node.Example)
	}
	sb.WriteString("\n")

	switch node.Kind {
	case domain.KindObject:
		for _, key := range sortedKeys(node.Properties) {
			writeSchemaNode(sb, key, node.Properties[key], depth+1)
		}
	case domain.KindArray:
		if node.Items != nil {
			writeSchemaNode(sb, "items", node.Items, depth+1)
		}
	}
}

// kindLabel 节点的类型标签；any 节点展开观测到的类型并集或内容类型
func kindLabel(node *domain.SchemaNode) string {
	if node.Kind == domain.KindAny {
		if len(node.Types) > 0 {
			parts := make([]string, 0, len(node.Types))
			for _, t := range node.Types {
				parts = append(parts, string(t))
			}
			return strings.Join(parts, "|")
		}
		if node.ContentType != "" {
			return "any (" + node.ContentType + ")"
		}
	}
	return string(node.Kind)
}

// sortedFieldNames 返回排序后的字段名，保证文档输出稳定
func sortedFieldNames(docs map[string]domain.FieldDoc) []string {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderDoc 渲染定义目录的 markdown 文档，输出与输入一一对应
func RenderDoc(defs []domain.ApiDefinition) (string, error) {
	var sb strings.Builder
	if err := docTemplate.Execute(&sb, defs); err != nil {
		return "", err
	}
	return sb.String(), nil
}
