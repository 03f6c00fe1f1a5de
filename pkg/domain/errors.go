package domain

import "errors"

// 会话相关错误
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionStartFailed = errors.New("session start failed")
)

// 目标相关错误
var (
	ErrNotAttached    = errors.New("no target attached")
	ErrTargetNotFound = errors.New("target not found")
)

// 连接相关错误
var (
	ErrDevToolsUnreachable = errors.New("devtools unreachable")
)

// 页面操作相关错误
var (
	ErrInvalidURL      = errors.New("invalid url")
	ErrEmptyURL        = errors.New("empty url")
	ErrEmptyScript     = errors.New("empty script")
	ErrNoPendingDialog = errors.New("no pending dialog")
	ErrNoHistoryEntry  = errors.New("no history entry")
)

// 配置相关错误
var (
	ErrInvalidConfig = errors.New("invalid config")
)

// 浏览器相关错误
var (
	ErrBrowserNotRunning  = errors.New("browser not running")
	ErrBrowserStartFailed = errors.New("browser start failed")
)

// 数据库相关错误
var (
	ErrDatabaseNotInitialized = errors.New("database not initialized")
	ErrRecordNotFound         = errors.New("record not found")
)
