package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	api "harforge/pkg/api"
	"harforge/pkg/domain"
	"harforge/pkg/errx"
	"harforge/pkg/rulespec"
)

// Server 对外提供 HTTP 接口入口
type Server struct {
	svc api.Service
}

// NewServer 创建 HTTP 接口服务
func NewServer(svc api.Service) *Server {
	return &Server{svc: svc}
}

// ServeHTTP 处理所有 HTTP 请求
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, ErrInvalidRequest.withError(err))
		return
	}
	res := s.dispatch(r.Context(), &req)
	writeResponse(w, res)
}

// Request 表示通用请求结构
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id,omitempty"`
	Params json.RawMessage `json:"params"`
}

// Response 表示通用响应结构
type Response struct {
	ID     string       `json:"id,omitempty"`
	Result interface{}  `json:"result,omitempty"`
	Error  *ErrorObject `json:"error,omitempty"`
}

// ErrorObject 表示错误信息
type ErrorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ApiError 表示协议层错误类型
type ApiError struct {
	Code string
	Err  error
}

func (e ApiError) withError(err error) ApiError {
	return ApiError{Code: e.Code, Err: err}
}

var (
	// ErrInvalidRequest 无效请求
	ErrInvalidRequest = ApiError{Code: "invalid_request"}
	// ErrMethodNotFound 方法不存在
	ErrMethodNotFound = ApiError{Code: "method_not_found"}
	// ErrInvalidParams 参数错误
	ErrInvalidParams = ApiError{Code: "invalid_params"}
)

// filterRuleParams 过滤规则参数
type filterRuleParams struct {
	Rule rulespec.FilterRule `json:"rule"`
}

// hostRuleParams 主机规则参数
type hostRuleParams struct {
	Rule rulespec.HostRule `json:"rule"`
}

// ruleIDParams 仅包含规则标识的参数
type ruleIDParams struct {
	RuleID string `json:"ruleId"`
}

// toggleParams 启停切换参数
type toggleParams struct {
	RuleID  string `json:"ruleId"`
	Enabled bool   `json:"enabled"`
}

// presetSaveParams 预设保存参数
type presetSaveParams struct {
	Preset rulespec.Preset `json:"preset"`
}

// presetApplyParams 预设应用参数
type presetApplyParams struct {
	PresetID string `json:"presetId"`
}

// parseFileParams 单文件解析参数
type parseFileParams struct {
	JobID string `json:"jobId,omitempty"`
	File  string `json:"file"`
}

// parseBatchParams 批量解析参数
type parseBatchParams struct {
	JobID string   `json:"jobId,omitempty"`
	Files []string `json:"files"`
}

// jobParams 仅包含任务标识的参数
type jobParams struct {
	JobID string `json:"jobId"`
}

// generateParams 测试合成参数
type generateParams struct {
	Definitions []domain.ApiDefinition `json:"definitions"`
}

// parseBatchResult 批量解析结果
type parseBatchResult struct {
	Results []domain.ParseResult `json:"results"`
}

// dispatch 根据 method 分发请求
func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	var (
		result interface{}
		err    *ErrorObject
	)
	switch req.Method {
	case "filters.add":
		result, err = s.handleFilterAdd(ctx, req.Params)
	case "filters.update":
		result, err = s.handleFilterUpdate(ctx, req.Params)
	case "filters.delete":
		result, err = s.handleFilterDelete(ctx, req.Params)
	case "filters.toggle":
		result, err = s.handleFilterToggle(ctx, req.Params)
	case "filters.list":
		result, err = s.handleFilterList(ctx, req.Params)
	case "hosts.add":
		result, err = s.handleHostAdd(ctx, req.Params)
	case "hosts.update":
		result, err = s.handleHostUpdate(ctx, req.Params)
	case "hosts.delete":
		result, err = s.handleHostDelete(ctx, req.Params)
	case "hosts.toggle":
		result, err = s.handleHostToggle(ctx, req.Params)
	case "hosts.list":
		result, err = s.handleHostList(ctx, req.Params)
	case "presets.list":
		result, err = s.handlePresetList(ctx, req.Params)
	case "presets.save":
		result, err = s.handlePresetSave(ctx, req.Params)
	case "presets.apply":
		result, err = s.handlePresetApply(ctx, req.Params)
	case "rules.reload":
		result, err = s.handleRulesReload(ctx, req.Params)
	case "stats.rules":
		result, err = s.handleStatsRules(ctx, req.Params)
	case "stats.reset":
		result, err = s.handleStatsReset(ctx, req.Params)
	case "capture.parse":
		result, err = s.handleCaptureParse(ctx, req.Params)
	case "capture.parseBatch":
		result, err = s.handleCaptureParseBatch(ctx, req.Params)
	case "jobs.cancel":
		result, err = s.handleJobCancel(ctx, req.Params)
	case "tests.generate":
		result, err = s.handleTestsGenerate(ctx, req.Params)
	default:
		err = toErrorObject(ErrMethodNotFound)
	}
	return &Response{ID: req.ID, Result: result, Error: err}
}

// writeResponse 写出统一响应
func writeResponse(w http.ResponseWriter, res *Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	_ = enc.Encode(res)
}

// writeError 写出错误响应
func writeError(w http.ResponseWriter, apiErr ApiError) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	_ = enc.Encode(&Response{Error: toErrorObject(apiErr)})
}

// toErrorObject 转换协议层错误为响应错误对象
func toErrorObject(e ApiError) *ErrorObject {
	msg := e.Code
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return &ErrorObject{Code: e.Code, Message: msg}
}

// toDomainError 转换业务错误为响应错误对象，错误码取自 errx
func toDomainError(err error) *ErrorObject {
	return &ErrorObject{Code: string(errx.CodeOf(err)), Message: err.Error()}
}

// handleFilterAdd 处理过滤规则新增
func (s *Server) handleFilterAdd(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p filterRuleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	added, err := s.svc.AddFilterRule(ctx, p.Rule)
	if err != nil {
		return nil, toDomainError(err)
	}
	return added, nil
}

// handleFilterUpdate 处理过滤规则更新
func (s *Server) handleFilterUpdate(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p filterRuleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.Rule.ID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("rule.id is required")))
	}
	if err := s.svc.UpdateFilterRule(ctx, p.Rule); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handleFilterDelete 处理过滤规则删除
func (s *Server) handleFilterDelete(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p ruleIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.RuleID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("ruleId is required")))
	}
	if err := s.svc.DeleteFilterRule(ctx, p.RuleID); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handleFilterToggle 处理过滤规则启停切换
func (s *Server) handleFilterToggle(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p toggleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.RuleID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("ruleId is required")))
	}
	if err := s.svc.ToggleFilterRule(ctx, p.RuleID, p.Enabled); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handleFilterList 处理过滤规则列表查询
func (s *Server) handleFilterList(ctx context.Context, _ json.RawMessage) (interface{}, *ErrorObject) {
	rules, err := s.svc.ListFilterRules(ctx)
	if err != nil {
		return nil, toDomainError(err)
	}
	return rules, nil
}

// handleHostAdd 处理主机规则新增
func (s *Server) handleHostAdd(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p hostRuleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	added, err := s.svc.AddHostRule(ctx, p.Rule)
	if err != nil {
		return nil, toDomainError(err)
	}
	return added, nil
}

// handleHostUpdate 处理主机规则更新
func (s *Server) handleHostUpdate(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p hostRuleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.Rule.ID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("rule.id is required")))
	}
	if err := s.svc.UpdateHostRule(ctx, p.Rule); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handleHostDelete 处理主机规则删除
func (s *Server) handleHostDelete(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p ruleIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.RuleID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("ruleId is required")))
	}
	if err := s.svc.DeleteHostRule(ctx, p.RuleID); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handleHostToggle 处理主机规则启停切换
func (s *Server) handleHostToggle(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p toggleParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.RuleID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("ruleId is required")))
	}
	if err := s.svc.ToggleHostRule(ctx, p.RuleID, p.Enabled); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handleHostList 处理主机规则列表查询
func (s *Server) handleHostList(ctx context.Context, _ json.RawMessage) (interface{}, *ErrorObject) {
	rules, err := s.svc.ListHostRules(ctx)
	if err != nil {
		return nil, toDomainError(err)
	}
	return rules, nil
}

// handlePresetList 处理预设列表查询
func (s *Server) handlePresetList(ctx context.Context, _ json.RawMessage) (interface{}, *ErrorObject) {
	presets, err := s.svc.ListPresets(ctx)
	if err != nil {
		return nil, toDomainError(err)
	}
	return presets, nil
}

// handlePresetSave 处理预设保存
func (s *Server) handlePresetSave(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p presetSaveParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if err := s.svc.SavePreset(ctx, p.Preset); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handlePresetApply 处理预设应用
func (s *Server) handlePresetApply(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p presetApplyParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.PresetID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("presetId is required")))
	}
	preset, err := s.svc.ApplyPreset(ctx, p.PresetID)
	if err != nil {
		return nil, toDomainError(err)
	}
	return preset, nil
}

// handleRulesReload 处理规则引擎重载
func (s *Server) handleRulesReload(ctx context.Context, _ json.RawMessage) (interface{}, *ErrorObject) {
	if err := s.svc.ReloadRules(ctx); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handleStatsRules 处理规则统计查询
func (s *Server) handleStatsRules(_ context.Context, _ json.RawMessage) (interface{}, *ErrorObject) {
	return s.svc.RuleStats(), nil
}

// handleStatsReset 处理规则统计重置
func (s *Server) handleStatsReset(_ context.Context, _ json.RawMessage) (interface{}, *ErrorObject) {
	s.svc.ResetRuleStats()
	return nil, nil
}

// handleCaptureParse 处理单文件解析
func (s *Server) handleCaptureParse(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p parseFileParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.File == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("file is required")))
	}
	result, err := s.svc.ParseCapture(ctx, domain.JobID(p.JobID), p.File)
	if err != nil {
		return nil, toDomainError(err)
	}
	return result, nil
}

// handleCaptureParseBatch 处理批量解析
func (s *Server) handleCaptureParseBatch(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p parseBatchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if len(p.Files) == 0 {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("files is required")))
	}
	results, err := s.svc.ParseCaptures(ctx, domain.JobID(p.JobID), p.Files)
	if err != nil {
		return nil, toDomainError(err)
	}
	return &parseBatchResult{Results: results}, nil
}

// handleJobCancel 处理任务取消
func (s *Server) handleJobCancel(_ context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p jobParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if p.JobID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("jobId is required")))
	}
	if err := s.svc.CancelJob(domain.JobID(p.JobID)); err != nil {
		return nil, toDomainError(err)
	}
	return nil, nil
}

// handleTestsGenerate 处理测试计划合成
func (s *Server) handleTestsGenerate(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p generateParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, toErrorObject(ErrInvalidParams.withError(err))
	}
	if len(p.Definitions) == 0 {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("definitions is required")))
	}
	plan, err := s.svc.GenerateTests(ctx, p.Definitions)
	if err != nil {
		return nil, toDomainError(err)
	}
	return plan, nil
}
