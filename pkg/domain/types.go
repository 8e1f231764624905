// Package domain 定义流水线各环节共享的核心数据类型
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// JobID 解析任务ID
type JobID string

// RawExchange 一次捕获的请求/响应观测，由捕获解析器产出后不可变
type RawExchange struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Host            string            `json:"host"`
	Path            string            `json:"path"`
	Query           map[string]string `json:"query,omitempty"`
	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	RequestBody     []byte            `json:"requestBody,omitempty"`
	RequestMIME     string            `json:"requestMime,omitempty"`
	StatusCode      int               `json:"statusCode"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    []byte            `json:"responseBody,omitempty"`
	ResponseMIME    string            `json:"responseMime,omitempty"`
	StartedAt       time.Time         `json:"startedAt"`
	TimeMS          float64           `json:"timeMs"`
}

// ContentType 返回请求声明的 Content-Type 主类型（去除参数部分）
func (e *RawExchange) ContentType() string {
	ct := e.RequestMIME
	if ct == "" {
		ct = headerGet(e.RequestHeaders, "Content-Type")
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(strings.ToLower(ct))
}

// headerGet 不区分大小写获取头部值
func headerGet(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	lower := strings.ToLower(name)
	for k, v := range headers {
		if strings.ToLower(k) == lower {
			return v
		}
	}
	return ""
}

// SchemaKind 模式节点的类型标签
type SchemaKind string

const (
	KindAbsent  SchemaKind = "absent"  // 字段缺失
	KindNull    SchemaKind = "null"    // JSON null
	KindBoolean SchemaKind = "boolean" // 布尔
	KindNumber  SchemaKind = "number"  // 数值
	KindString  SchemaKind = "string"  // 字符串
	KindArray   SchemaKind = "array"   // 数组
	KindObject  SchemaKind = "object"  // 对象
	KindAny     SchemaKind = "any"     // 未知或类型冲突拓宽后的并集标记
)

// SchemaNode 推断出的 JSON 模式节点（标签联合结构）
// 类型冲突时 Kind 拓宽为 any，Types 记录观测到的类型并集
type SchemaNode struct {
	Kind        SchemaKind             `json:"kind"`
	Types       []SchemaKind           `json:"types,omitempty"`
	Properties  map[string]*SchemaNode `json:"properties,omitempty"`
	Items       *SchemaNode            `json:"items,omitempty"`
	Optional    bool                   `json:"optional,omitempty"`
	Example     string                 `json:"example,omitempty"`
	ContentType string                 `json:"contentType,omitempty"`
}

// FieldDoc 头部/查询参数的文档描述
// 类型冲突时 Type 拓宽为各观测类型以 | 连接的并集标记
type FieldDoc struct {
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Example  string `json:"example,omitempty"`
}

// RequestDoc 端点的请求侧描述
type RequestDoc struct {
	Headers     map[string]FieldDoc `json:"headers,omitempty"`
	QueryParams map[string]FieldDoc `json:"queryParams,omitempty"`
	BodySchema  *SchemaNode         `json:"bodySchema,omitempty"`
}

// ResponseDoc 端点的响应侧描述
type ResponseDoc struct {
	StatusCode int                 `json:"statusCode"`
	Headers    map[string]FieldDoc `json:"headers,omitempty"`
	BodySchema *SchemaNode         `json:"bodySchema,omitempty"`
}

// ApiDefinition 一个逻辑端点的规范化去重描述
// 由归一到同一 (method, pathTemplate) 的全部 RawExchange 合并而来
type ApiDefinition struct {
	Method       string      `json:"method"`
	PathTemplate string      `json:"pathTemplate"`
	Description  string      `json:"description"`
	ExamplePath  string      `json:"examplePath"`
	SampleCount  int         `json:"sampleCount"`
	Request      RequestDoc  `json:"request"`
	Response     ResponseDoc `json:"response"`
}

// Key 返回端点的去重键
func (d *ApiDefinition) Key() string {
	return d.Method + " " + d.PathTemplate
}

// TestRequest 测试用例的具体请求示例
type TestRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// ExpectedResponse 测试用例的期望响应断言
// 只断言状态码与结构化模式，不做响应体精确比对
type ExpectedResponse struct {
	StatusCode int         `json:"statusCode"`
	BodySchema *SchemaNode `json:"bodySchema,omitempty"`
}

// TestCase 由 ApiDefinition 合成的测试用例规格
// 核心只产出初始版本，后续编辑由外部产品负责
type TestCase struct {
	ID               string           `json:"id"`
	ApiDefinitionRef string           `json:"apiDefinitionRef"`
	Name             string           `json:"name"`
	Request          TestRequest      `json:"request"`
	ExpectedResponse ExpectedResponse `json:"expectedResponse"`
	Tags             []string         `json:"tags,omitempty"`
}

// Diagnostic 处理过程中记录的非致命问题
type Diagnostic struct {
	Stage   string `json:"stage"`   // parse / build
	Code    string `json:"code"`    // errx 错误码
	Message string `json:"message"` // 描述
}

// HostStat 单个 host 的请求统计
type HostStat struct {
	Count   int            `json:"count"`
	Methods map[string]int `json:"methods"`
}

// ParseResult 一次捕获文件处理的完整产物
// Partial 为 true 时 Diagnostics 说明被跳过的条目
type ParseResult struct {
	File        string              `json:"file"`
	Definitions []ApiDefinition     `json:"definitions"`
	Diagnostics []Diagnostic        `json:"diagnostics,omitempty"`
	Partial     bool                `json:"partial"`
	HostStats   map[string]HostStat `json:"hostStats,omitempty"`
}

// TestPlan 测试合成产物：用例集合与文档
type TestPlan struct {
	TestCases []TestCase `json:"testCases"`
	Markdown  string     `json:"markdown"`
}
