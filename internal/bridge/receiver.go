// Package bridge 是页面消息进入宿主的唯一入口。
//
// 页面脚本通过绑定函数发送 JSON 文本：
//
//	{"type":"console","payload":{"level":"log","args":["a","b"]}}
//	{"type":"js_error","payload":{"message":"boom","location":"app.js:1:2"}}
//	{"type":"request","payload":{"kind":"fetch","method":"GET","url":"https://...","status":200}}
//
// 格式错误的消息被丢弃；未知类型直接忽略。
package bridge

import (
	"strings"

	"webprobe/internal/logger"
	"webprobe/pkg/domain"
	"webprobe/pkg/errx"

	"github.com/tidwall/gjson"
)

// 消息类型
const (
	TypeConsole = "console"
	TypeJSError = "js_error"
	TypeRequest = "request"
)

// MalformedMessage 开启上报时写入控制台的通用错误文本
const MalformedMessage = "Bridge parse error"

// Sink 接收解析后的条目
type Sink interface {
	AppendConsole(level domain.ConsoleLevel, message string) domain.ConsoleEntry
	AppendRequest(kind domain.RequestKind, method, url string, status *int) domain.RequestEntry
}

// Options 接收器选项
type Options struct {
	ReportMalformed bool // 格式错误时追加一条通用错误日志
	Logger          logger.Logger
}

// Receiver 桥接消息接收器
type Receiver struct {
	sink            Sink
	reportMalformed bool
	log             logger.Logger
}

// NewReceiver 创建接收器
func NewReceiver(sink Sink, opts Options) *Receiver {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Receiver{
		sink:            sink,
		reportMalformed: opts.ReportMalformed,
		log:             opts.Logger.With("component", "bridge"),
	}
}

// Receive 处理一条原始消息。
// 格式错误返回 CodeMalformedMessage，未知类型返回 CodeUnknownMessage，二者都不会写入条目（开启上报时除外）。
func (r *Receiver) Receive(raw string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errx.New(errx.CodeMalformedMessage, "panic while decoding")
		}
		if errx.Is(err, errx.CodeMalformedMessage) {
			r.log.Debug("丢弃格式错误的桥接消息", "error", err.Error(), "size", len(raw))
			if r.reportMalformed {
				r.sink.AppendConsole(domain.ConsoleLevelError, MalformedMessage)
			}
		}
	}()

	if !gjson.Valid(raw) {
		return errx.New(errx.CodeMalformedMessage, "invalid json")
	}
	msg := gjson.Parse(raw)
	typ := msg.Get("type")
	if typ.Type != gjson.String {
		return errx.New(errx.CodeMalformedMessage, "missing type")
	}
	payload := msg.Get("payload")

	switch typ.Str {
	case TypeConsole:
		return r.handleConsole(payload)
	case TypeJSError:
		return r.handleJSError(payload)
	case TypeRequest:
		return r.handleRequest(payload)
	default:
		return errx.New(errx.CodeUnknownMessage, typ.Str)
	}
}

func (r *Receiver) handleConsole(payload gjson.Result) error {
	if !payload.IsObject() {
		return errx.New(errx.CodeMalformedMessage, "console: missing payload")
	}
	level, ok := stringField(payload, "level")
	if !ok || !domain.ConsoleLevel(level).Valid() {
		return errx.New(errx.CodeMalformedMessage, "console: bad level")
	}
	argsVal := payload.Get("args")
	if !argsVal.IsArray() {
		return errx.New(errx.CodeMalformedMessage, "console: bad args")
	}
	items := argsVal.Array()
	args := make([]string, 0, len(items))
	for _, a := range items {
		if a.Type != gjson.String {
			return errx.New(errx.CodeMalformedMessage, "console: non-string arg")
		}
		args = append(args, a.Str)
	}

	r.sink.AppendConsole(domain.ConsoleLevel(level), strings.Join(args, " "))
	return nil
}

func (r *Receiver) handleJSError(payload gjson.Result) error {
	if !payload.IsObject() {
		return errx.New(errx.CodeMalformedMessage, "js_error: missing payload")
	}
	message, ok := stringField(payload, "message")
	if !ok {
		return errx.New(errx.CodeMalformedMessage, "js_error: missing message")
	}
	if loc, ok := stringField(payload, "location"); ok && loc != "" {
		message = message + " (" + loc + ")"
	}

	r.sink.AppendConsole(domain.ConsoleLevelError, message)
	return nil
}

func (r *Receiver) handleRequest(payload gjson.Result) error {
	if !payload.IsObject() {
		return errx.New(errx.CodeMalformedMessage, "request: missing payload")
	}
	kind, ok := stringField(payload, "kind")
	if !ok || !domain.RequestKind(kind).IsPageKind() {
		return errx.New(errx.CodeMalformedMessage, "request: bad kind")
	}
	method, ok := stringField(payload, "method")
	if !ok {
		return errx.New(errx.CodeMalformedMessage, "request: missing method")
	}
	url, ok := stringField(payload, "url")
	if !ok {
		return errx.New(errx.CodeMalformedMessage, "request: missing url")
	}

	var status *int
	if s := payload.Get("status"); s.Type == gjson.Number && s.Int() != 0 {
		code := int(s.Int())
		status = &code
	}

	r.sink.AppendRequest(domain.RequestKind(kind), method, url, status)
	return nil
}

func stringField(obj gjson.Result, key string) (string, bool) {
	v := obj.Get(key)
	if v.Type != gjson.String {
		return "", false
	}
	return v.Str, true
}
