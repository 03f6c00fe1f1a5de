package api

import (
	"context"

	"webprobe/internal/logger"
	"webprobe/internal/logstore"
	"webprobe/internal/service"
	"webprobe/pkg/domain"
)

// Service 服务接口，桌面端与 HTTP 端共用
type Service interface {
	// StartSession 启动会话：连接浏览器并附加或新建页面目标
	StartSession(ctx context.Context, cfg domain.SessionConfig) (domain.SessionID, error)

	// StopSession 停止会话
	StopSession(ctx context.Context, id domain.SessionID) error

	// StopAll 停止全部会话
	StopAll(ctx context.Context)

	// ListTargets 列出目标
	ListTargets(ctx context.Context, id domain.SessionID) ([]domain.TargetInfo, error)

	// LoadURL 以指定设备标识加载地址
	LoadURL(ctx context.Context, id domain.SessionID, rawURL, userAgent string) (string, error)

	// InjectScript 注入脚本，结果以控制台日志形式返回
	InjectScript(ctx context.Context, id domain.SessionID, src string) (string, error)

	// GoBack 后退
	GoBack(ctx context.Context, id domain.SessionID) error

	// GoForward 前进
	GoForward(ctx context.Context, id domain.SessionID) error

	// Reload 重新加载
	Reload(ctx context.Context, id domain.SessionID) error

	// HandleDialog 应答页面对话框
	HandleDialog(ctx context.Context, id domain.SessionID, accept bool, promptText *string) error

	// PageState 页面状态
	PageState(ctx context.Context, id domain.SessionID) (domain.PageState, error)

	// PendingEvals 在途脚本执行
	PendingEvals(ctx context.Context, id domain.SessionID) ([]domain.PendingEval, error)

	// ConsoleEntries 过滤后的控制台日志
	ConsoleEntries(ctx context.Context, id domain.SessionID, f domain.ConsoleFilter) ([]domain.ConsoleEntry, error)

	// RequestEntries 过滤后的请求日志
	RequestEntries(ctx context.Context, id domain.SessionID, f domain.RequestFilter) ([]domain.RequestEntry, error)

	// ClearLogs 清空日志
	ClearLogs(ctx context.Context, id domain.SessionID) error

	// ExportLogs 导出完整日志文本
	ExportLogs(ctx context.Context, id domain.SessionID) (string, error)

	// LogStats 日志统计
	LogStats(ctx context.Context, id domain.SessionID) (logstore.Stats, error)

	// SubscribeLogs 订阅日志变更
	SubscribeLogs(ctx context.Context, id domain.SessionID) (<-chan logstore.Event, func(), error)

	// SubscribeState 订阅页面状态
	SubscribeState(ctx context.Context, id domain.SessionID) (<-chan domain.PageState, error)
}

// NewService 创建并返回服务接口实现
func NewService(l logger.Logger, opts ...service.Option) Service {
	return service.New(l, opts...)
}
