package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"webprobe/internal/export"
	api "webprobe/pkg/api"
	"webprobe/pkg/domain"
	"webprobe/pkg/errx"
)

// Server 无界面模式下的 HTTP 接口入口
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

// ApiError 表示内部错误类型
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
	// ErrSessionNotFound 会话不存在
	ErrSessionNotFound = ApiError{Code: "session_not_found"}
	// ErrInvalidURL 地址非法
	ErrInvalidURL = ApiError{Code: "invalid_url"}
	// ErrNoPendingDialog 没有待处理的对话框
	ErrNoPendingDialog = ApiError{Code: "no_pending_dialog"}
	// ErrUnreachable DevTools 不可达
	ErrUnreachable = ApiError{Code: "devtools_unreachable"}
	// ErrInternal 内部错误
	ErrInternal = ApiError{Code: "internal"}
)

// sessionStartParams 会话创建参数
type sessionStartParams struct {
	DevToolsURL     string `json:"devToolsURL"`
	TargetID        string `json:"targetId,omitempty"`
	UserAgent       string `json:"userAgent"`
	Capacity        int    `json:"capacity"`
	Concurrency     int    `json:"concurrency"`
	PendingCapacity int    `json:"pendingCapacity"`
	ReportMalformed bool   `json:"reportMalformed"`
}

// sessionOnlyParams 仅包含会话标识的参数
type sessionOnlyParams struct {
	SessionID string `json:"sessionId"`
}

// loadParams 页面加载参数
type loadParams struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	UserAgent string `json:"userAgent"`
}

// injectParams 脚本注入参数
type injectParams struct {
	SessionID string `json:"sessionId"`
	Script    string `json:"script"`
}

// dialogParams 对话框应答参数
type dialogParams struct {
	SessionID  string  `json:"sessionId"`
	Accept     bool    `json:"accept"`
	PromptText *string `json:"promptText,omitempty"`
}

// consoleParams 控制台查询参数，levels 为空表示全部级别
type consoleParams struct {
	SessionID string   `json:"sessionId"`
	Levels    []string `json:"levels"`
	Search    string   `json:"search"`
}

// requestParams 请求查询参数，kinds 为空表示全部类型
type requestParams struct {
	SessionID  string   `json:"sessionId"`
	Kinds      []string `json:"kinds"`
	Search     string   `json:"search"`
	OnlyErrors bool     `json:"onlyErrors"`
}

// sessionStartResult 会话创建结果
type sessionStartResult struct {
	SessionID string `json:"sessionId"`
}

// idResult 返回单个标识的结果
type idResult struct {
	ID string `json:"id"`
}

// loadResult 页面加载结果
type loadResult struct {
	URL string `json:"url"`
}

// exportResult 导出结果
type exportResult struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// dispatch 根据 method 分发请求
func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	var (
		result interface{}
		err    *ErrorObject
	)
	switch req.Method {
	case "session.start":
		result, err = s.handleSessionStart(ctx, req.Params)
	case "session.stop":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return nil, s.svc.StopSession(ctx, id)
		})
	case "target.list":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return s.svc.ListTargets(ctx, id)
		})
	case "page.load":
		result, err = s.handlePageLoad(ctx, req.Params)
	case "page.inject":
		result, err = s.handlePageInject(ctx, req.Params)
	case "page.back":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return nil, s.svc.GoBack(ctx, id)
		})
	case "page.forward":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return nil, s.svc.GoForward(ctx, id)
		})
	case "page.reload":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return nil, s.svc.Reload(ctx, id)
		})
	case "page.dialog":
		result, err = s.handlePageDialog(ctx, req.Params)
	case "page.state":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return s.svc.PageState(ctx, id)
		})
	case "page.pendingEvals":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return s.svc.PendingEvals(ctx, id)
		})
	case "logs.console":
		result, err = s.handleLogsConsole(ctx, req.Params)
	case "logs.requests":
		result, err = s.handleLogsRequests(ctx, req.Params)
	case "logs.clear":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return nil, s.svc.ClearLogs(ctx, id)
		})
	case "logs.export":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			content, err := s.svc.ExportLogs(ctx, id)
			if err != nil {
				return nil, err
			}
			return &exportResult{Filename: export.DefaultFilename, Content: content}, nil
		})
	case "logs.stats":
		result, err = s.withSession(ctx, req.Params, func(ctx context.Context, id domain.SessionID) (interface{}, error) {
			return s.svc.LogStats(ctx, id)
		})
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

// toErrorObject 转换错误为响应错误对象
func toErrorObject(e ApiError) *ErrorObject {
	msg := e.Code
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return &ErrorObject{Code: e.Code, Message: msg}
}

// fromServiceError 将服务层错误映射为稳定错误码
func fromServiceError(err error) *ErrorObject {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return toErrorObject(ErrSessionNotFound.withError(err))
	case errors.Is(err, domain.ErrEmptyURL), errors.Is(err, domain.ErrEmptyScript):
		return toErrorObject(ErrInvalidParams.withError(err))
	case errx.Is(err, errx.CodeInvalidURL), errors.Is(err, domain.ErrInvalidURL):
		return toErrorObject(ErrInvalidURL.withError(err))
	case errors.Is(err, domain.ErrNoPendingDialog):
		return toErrorObject(ErrNoPendingDialog.withError(err))
	case errors.Is(err, domain.ErrDevToolsUnreachable):
		return toErrorObject(ErrUnreachable.withError(err))
	default:
		return toErrorObject(ErrInternal.withError(err))
	}
}

// withSession 解析仅含会话标识的参数后执行
func (s *Server) withSession(ctx context.Context, params json.RawMessage,
	fn func(ctx context.Context, id domain.SessionID) (interface{}, error)) (interface{}, *ErrorObject) {
	var p sessionOnlyParams
	if errObj := decodeParams(params, &p); errObj != nil {
		return nil, errObj
	}
	if p.SessionID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("sessionId is required")))
	}
	res, err := fn(ctx, domain.SessionID(p.SessionID))
	if err != nil {
		return nil, fromServiceError(err)
	}
	return res, nil
}

func decodeParams(params json.RawMessage, v interface{}) *ErrorObject {
	if len(params) == 0 {
		return toErrorObject(ErrInvalidParams.withError(errors.New("params is required")))
	}
	if err := json.Unmarshal(params, v); err != nil {
		return toErrorObject(ErrInvalidParams.withError(err))
	}
	return nil
}

// handleSessionStart 处理会话创建
func (s *Server) handleSessionStart(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p sessionStartParams
	if errObj := decodeParams(params, &p); errObj != nil {
		return nil, errObj
	}
	if p.DevToolsURL == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("devToolsURL is required")))
	}
	cfg := domain.SessionConfig{
		DevToolsURL:     p.DevToolsURL,
		TargetID:        p.TargetID,
		UserAgent:       p.UserAgent,
		Capacity:        p.Capacity,
		Concurrency:     p.Concurrency,
		PendingCapacity: p.PendingCapacity,
		ReportMalformed: p.ReportMalformed,
	}
	id, err := s.svc.StartSession(ctx, cfg)
	if err != nil {
		return nil, fromServiceError(err)
	}
	return &sessionStartResult{SessionID: string(id)}, nil
}

// handlePageLoad 处理页面加载
func (s *Server) handlePageLoad(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p loadParams
	if errObj := decodeParams(params, &p); errObj != nil {
		return nil, errObj
	}
	if p.SessionID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("sessionId is required")))
	}
	url, err := s.svc.LoadURL(ctx, domain.SessionID(p.SessionID), p.URL, p.UserAgent)
	if err != nil {
		return nil, fromServiceError(err)
	}
	return &loadResult{URL: url}, nil
}

// handlePageInject 处理脚本注入
func (s *Server) handlePageInject(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p injectParams
	if errObj := decodeParams(params, &p); errObj != nil {
		return nil, errObj
	}
	if p.SessionID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("sessionId is required")))
	}
	id, err := s.svc.InjectScript(ctx, domain.SessionID(p.SessionID), p.Script)
	if err != nil {
		return nil, fromServiceError(err)
	}
	return &idResult{ID: id}, nil
}

// handlePageDialog 处理对话框应答
func (s *Server) handlePageDialog(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p dialogParams
	if errObj := decodeParams(params, &p); errObj != nil {
		return nil, errObj
	}
	if p.SessionID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("sessionId is required")))
	}
	if err := s.svc.HandleDialog(ctx, domain.SessionID(p.SessionID), p.Accept, p.PromptText); err != nil {
		return nil, fromServiceError(err)
	}
	return nil, nil
}

// handleLogsConsole 处理控制台日志查询
func (s *Server) handleLogsConsole(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p consoleParams
	if errObj := decodeParams(params, &p); errObj != nil {
		return nil, errObj
	}
	if p.SessionID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("sessionId is required")))
	}

	f := domain.NewConsoleFilter()
	f.Search = p.Search
	if len(p.Levels) > 0 {
		f.Levels = make(map[domain.ConsoleLevel]bool, len(p.Levels))
		for _, l := range p.Levels {
			f.Levels[domain.ConsoleLevel(l)] = true
		}
	}
	entries, err := s.svc.ConsoleEntries(ctx, domain.SessionID(p.SessionID), f)
	if err != nil {
		return nil, fromServiceError(err)
	}
	return entries, nil
}

// handleLogsRequests 处理请求日志查询
func (s *Server) handleLogsRequests(ctx context.Context, params json.RawMessage) (interface{}, *ErrorObject) {
	var p requestParams
	if errObj := decodeParams(params, &p); errObj != nil {
		return nil, errObj
	}
	if p.SessionID == "" {
		return nil, toErrorObject(ErrInvalidParams.withError(errors.New("sessionId is required")))
	}

	f := domain.NewRequestFilter()
	f.Search = p.Search
	f.OnlyErrors = p.OnlyErrors
	if len(p.Kinds) > 0 {
		f.Kinds = make(map[domain.RequestKind]bool, len(p.Kinds))
		for _, k := range p.Kinds {
			f.Kinds[domain.RequestKind(k)] = true
		}
	}
	entries, err := s.svc.RequestEntries(ctx, domain.SessionID(p.SessionID), f)
	if err != nil {
		return nil, fromServiceError(err)
	}
	return entries, nil
}
