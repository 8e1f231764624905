// Package harparse 实现 HAR 捕获文件的流式解析
package harparse

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"harforge/pkg/domain"
	"harforge/pkg/errx"
)

// harNV HAR 的 name/value 键值对
type harNV struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// harEntry HAR 单条记录，未知字段一律忽略
type harEntry struct {
	StartedDateTime string  `json:"startedDateTime"`
	Time            float64 `json:"time"`
	Request         struct {
		Method      string  `json:"method"`
		URL         string  `json:"url"`
		Headers     []harNV `json:"headers"`
		QueryString []harNV `json:"queryString"`
		PostData    *struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
		} `json:"postData"`
	} `json:"request"`
	Response struct {
		Status  int     `json:"status"`
		Headers []harNV `json:"headers"`
		Content *struct {
			MimeType string `json:"mimeType"`
			Text     string `json:"text"`
			Encoding string `json:"encoding"`
		} `json:"content"`
	} `json:"response"`
}

// Parser HAR 文件流式解析器
// 逐条产出 RawExchange，整个文件无需常驻内存；重新 Open 即可重放
type Parser struct {
	rc    io.ReadCloser
	dec   *json.Decoder
	index int
	diags []domain.Diagnostic
}

// Open 打开捕获文件并定位到 log.entries 数组
// 容器层不可识别（非 JSON、缺少 log.entries）时返回 MALFORMED_CAPTURE
func Open(path string) (*Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errx.Wrap(errx.CodeMalformedCapture, err, "无法打开捕获文件")
	}

	p, err := New(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return p, nil
}

// New 基于任意读取器创建解析器
func New(rc io.ReadCloser) (*Parser, error) {
	dec := json.NewDecoder(bufio.NewReader(rc))
	if err := seekEntries(dec); err != nil {
		return nil, err
	}
	return &Parser{rc: rc, dec: dec}, nil
}

// seekEntries 沿 token 流定位到 log.entries 数组的起始位置
func seekEntries(dec *json.Decoder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return errx.Wrap(errx.CodeMalformedCapture, err, "捕获文件不是 JSON 对象")
	}
	for dec.More() {
		key, err := nextKey(dec)
		if err != nil {
			return errx.Wrap(errx.CodeMalformedCapture, err, "读取顶层字段失败")
		}
		if key != "log" {
			if err := skipValue(dec); err != nil {
				return errx.Wrap(errx.CodeMalformedCapture, err, "跳过顶层字段失败")
			}
			continue
		}
		if err := expectDelim(dec, '{'); err != nil {
			return errx.Wrap(errx.CodeMalformedCapture, err, "log 字段不是对象")
		}
		for dec.More() {
			key, err := nextKey(dec)
			if err != nil {
				return errx.Wrap(errx.CodeMalformedCapture, err, "读取 log 字段失败")
			}
			if key == "entries" {
				if err := expectDelim(dec, '['); err != nil {
					return errx.Wrap(errx.CodeMalformedCapture, err, "entries 字段不是数组")
				}
				return nil
			}
			if err := skipValue(dec); err != nil {
				return errx.Wrap(errx.CodeMalformedCapture, err, "跳过 log 字段失败")
			}
		}
		return errx.New(errx.CodeMalformedCapture, "log 对象缺少 entries 数组")
	}
	return errx.New(errx.CodeMalformedCapture, "捕获文件缺少 log 对象")
}

// Next 返回下一条交换记录；数组读尽时返回 io.EOF
// 单条记录的问题记入诊断并跳过，不中断整个解析
func (p *Parser) Next() (*domain.RawExchange, error) {
	for p.dec.More() {
		idx := p.index
		p.index++

		var entry harEntry
		if err := p.dec.Decode(&entry); err != nil {
			// 类型不符时解码器已消费完整个值，流仍然可靠，按坏记录跳过
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				p.diags = append(p.diags, domain.Diagnostic{
					Stage:   "parse",
					Code:    string(errx.CodePartialParse),
					Message: fmt.Sprintf("跳过第 %d 条记录: 字段类型不符: %v", idx, err),
				})
				continue
			}
			// 语法级错误意味着 JSON 流已不可靠，只能整体失败
			return nil, errx.Wrap(errx.CodeMalformedCapture, err, fmt.Sprintf("第 %d 条记录处 JSON 流损坏", idx))
		}

		ex, err := convert(&entry)
		if err != nil {
			p.diags = append(p.diags, domain.Diagnostic{
				Stage:   "parse",
				Code:    string(errx.CodePartialParse),
				Message: fmt.Sprintf("跳过第 %d 条记录: %v", idx, err),
			})
			continue
		}
		return ex, nil
	}
	return nil, io.EOF
}

// Diagnostics 返回解析过程中累计的跳过诊断
func (p *Parser) Diagnostics() []domain.Diagnostic {
	return p.diags
}

// Close 关闭底层文件
func (p *Parser) Close() error {
	return p.rc.Close()
}

// convert 将 HAR 记录转换为 RawExchange
func convert(entry *harEntry) (*domain.RawExchange, error) {
	if entry.Request.Method == "" {
		return nil, fmt.Errorf("缺少请求方法")
	}
	if entry.Request.URL == "" {
		return nil, fmt.Errorf("缺少请求 URL")
	}
	if entry.Response.Status <= 0 {
		return nil, fmt.Errorf("缺少响应状态码")
	}

	u, err := url.Parse(entry.Request.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("URL 不可解析: %s", entry.Request.URL)
	}

	// Host 去掉端口，规则匹配与 host 统计只关心主机名
	ex := &domain.RawExchange{
		Method:          entry.Request.Method,
		URL:             entry.Request.URL,
		Host:            u.Hostname(),
		Path:            u.Path,
		Query:           queryValues(entry.Request.QueryString, u),
		RequestHeaders:  headerMap(entry.Request.Headers),
		ResponseHeaders: headerMap(entry.Response.Headers),
		StatusCode:      entry.Response.Status,
		TimeMS:          entry.Time,
	}

	if entry.StartedDateTime != "" {
		ts, err := time.Parse(time.RFC3339, entry.StartedDateTime)
		if err != nil {
			return nil, fmt.Errorf("startedDateTime 格式非法: %s", entry.StartedDateTime)
		}
		ex.StartedAt = ts
	}

	if pd := entry.Request.PostData; pd != nil && pd.Text != "" {
		ex.RequestBody = []byte(pd.Text)
		ex.RequestMIME = pd.MimeType
	}

	if c := entry.Response.Content; c != nil && c.Text != "" {
		body := []byte(c.Text)
		if strings.EqualFold(c.Encoding, "base64") {
			decoded, err := base64.StdEncoding.DecodeString(c.Text)
			if err != nil {
				return nil, fmt.Errorf("响应体 base64 解码失败: %v", err)
			}
			body = decoded
		}
		ex.ResponseBody = body
		ex.ResponseMIME = c.MimeType
	}

	return ex, nil
}

// queryValues 汇总查询参数，queryString 数组优先，URL 解析结果兜底
func queryValues(pairs []harNV, u *url.URL) map[string]string {
	out := make(map[string]string)
	for k, vs := range u.Query() {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	for _, nv := range pairs {
		out[nv.Name] = nv.Value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// headerMap 将 HAR 头部数组折叠为映射
func headerMap(pairs []harNV) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, nv := range pairs {
		out[nv.Name] = nv.Value
	}
	return out
}

// expectDelim 消费一个指定的 JSON 定界符
func expectDelim(dec *json.Decoder, want rune) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || rune(d) != want {
		return fmt.Errorf("期望 %q, 实际 %v", want, tok)
	}
	return nil
}

// nextKey 消费一个对象键
func nextKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("期望对象键, 实际 %v", tok)
	}
	return key, nil
}

// skipValue 跳过一个完整的 JSON 值
func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	return dec.Decode(&raw)
}
