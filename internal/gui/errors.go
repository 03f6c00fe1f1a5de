package gui

import (
	"errors"
	"strings"

	"webprobe/pkg/domain"
	"webprobe/pkg/errx"
)

// 错误码常量
const (
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeSessionStartFailed  = "SESSION_START_FAILED"
	CodeNotAttached         = "NOT_ATTACHED"
	CodeTargetNotFound      = "TARGET_NOT_FOUND"
	CodeDevToolsUnreachable = "DEVTOOLS_UNREACHABLE"
	CodeNetworkError        = "NETWORK_ERROR"
	CodeInvalidURL          = "INVALID_URL"
	CodeEmptyURL            = "EMPTY_URL"
	CodeEmptyScript         = "EMPTY_SCRIPT"
	CodeEvalFailed          = "EVAL_FAILED"
	CodeNoPendingDialog     = "NO_PENDING_DIALOG"
	CodeNoHistoryEntry      = "NO_HISTORY_ENTRY"
	CodeInvalidConfig       = "INVALID_CONFIG"
	CodeBrowserNotRunning   = "BROWSER_NOT_RUNNING"
	CodeBrowserStartFailed  = "BROWSER_START_FAILED"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeCancelled           = "CANCELLED"
	CodeUnknown             = "UNKNOWN_ERROR"
)

// 错误映射表（仅返回错误码，前端根据错误码进行国际化）
var errorMappings = map[error]string{
	domain.ErrSessionNotFound:        CodeSessionNotFound,
	domain.ErrSessionStartFailed:     CodeSessionStartFailed,
	domain.ErrNotAttached:            CodeNotAttached,
	domain.ErrTargetNotFound:         CodeTargetNotFound,
	domain.ErrDevToolsUnreachable:    CodeDevToolsUnreachable,
	domain.ErrInvalidURL:             CodeInvalidURL,
	domain.ErrEmptyURL:               CodeEmptyURL,
	domain.ErrEmptyScript:            CodeEmptyScript,
	domain.ErrNoPendingDialog:        CodeNoPendingDialog,
	domain.ErrNoHistoryEntry:         CodeNoHistoryEntry,
	domain.ErrBrowserNotRunning:      CodeBrowserNotRunning,
	domain.ErrBrowserStartFailed:     CodeBrowserStartFailed,
	domain.ErrInvalidConfig:          CodeInvalidConfig,
	domain.ErrDatabaseNotInitialized: CodeDatabaseError,
}

// 带错误码的错误
var codeMappings = map[errx.Code]string{
	errx.CodeInvalidURL:      CodeInvalidURL,
	errx.CodeEvalFailed:      CodeEvalFailed,
	errx.CodeSessionNotFound: CodeSessionNotFound,
}

// translateError 将领域错误转换为错误码（前端根据错误码进行国际化）
func (a *App) translateError(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	if c, ok := errx.CodeOf(err); ok {
		if errorCode, ok := codeMappings[c]; ok {
			a.log.Err(err, "业务错误", "code", errorCode)
			return errorCode, ""
		}
	}

	// 尝试匹配已知的领域错误
	for domainErr, errorCode := range errorMappings {
		if errors.Is(err, domainErr) {
			a.log.Err(err, "业务错误", "code", errorCode)
			return errorCode, ""
		}
	}

	// 处理网络相关错误
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "dial tcp") ||
		strings.Contains(errStr, "websocket: bad handshake") {
		a.log.Err(err, "网络连接错误")
		return CodeNetworkError, ""
	}

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") {
		a.log.Err(err, "网络超时")
		return CodeNetworkError, ""
	}

	// 未知错误
	a.log.Err(err, "未知错误")
	return CodeUnknown, err.Error()
}
