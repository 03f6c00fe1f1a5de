package domain

import "time"

// SessionID 会话ID
type SessionID string

// TargetID 目标ID
type TargetID string

// EntryID 日志条目ID，按创建顺序单调递增
type EntryID int64

// ConsoleLevel 控制台日志级别
type ConsoleLevel string

const (
	ConsoleLevelLog   ConsoleLevel = "log"
	ConsoleLevelWarn  ConsoleLevel = "warn"
	ConsoleLevelError ConsoleLevel = "error"
)

// ConsoleLevels 全部控制台级别（用于默认过滤集合）
var ConsoleLevels = []ConsoleLevel{ConsoleLevelLog, ConsoleLevelWarn, ConsoleLevelError}

// Valid 判断级别是否合法
func (l ConsoleLevel) Valid() bool {
	switch l {
	case ConsoleLevelLog, ConsoleLevelWarn, ConsoleLevelError:
		return true
	}
	return false
}

// RequestKind 请求条目类型
type RequestKind string

const (
	RequestKindFetch              RequestKind = "fetch"
	RequestKindXHR                RequestKind = "xhr"
	RequestKindResource           RequestKind = "resource"
	RequestKindNavigate           RequestKind = "navigate"
	RequestKindNavigationAction   RequestKind = "navigationAction"
	RequestKindNavigationResponse RequestKind = "navigationResponse"
)

// RequestKinds 全部请求类型（用于默认过滤集合）
var RequestKinds = []RequestKind{
	RequestKindFetch,
	RequestKindXHR,
	RequestKindResource,
	RequestKindNavigate,
	RequestKindNavigationAction,
	RequestKindNavigationResponse,
}

// Valid 判断类型是否合法
func (k RequestKind) Valid() bool {
	for _, kind := range RequestKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsPageKind 是否为页面内脚本可上报的类型（fetch/xhr/resource）
func (k RequestKind) IsPageKind() bool {
	return k == RequestKindFetch || k == RequestKindXHR || k == RequestKindResource
}

// IsNavigation 是否为宿主侧导航类型
func (k RequestKind) IsNavigation() bool {
	return k == RequestKindNavigate || k == RequestKindNavigationAction || k == RequestKindNavigationResponse
}

// ConsoleEntry 控制台日志条目，创建后不可变
type ConsoleEntry struct {
	ID        EntryID      `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	Level     ConsoleLevel `json:"level"`
	Message   string       `json:"message"`
}

// RequestEntry 网络/导航请求条目，创建后不可变
type RequestEntry struct {
	ID        EntryID     `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      RequestKind `json:"kind"`
	Method    string      `json:"method"`
	URL       string      `json:"url"`
	Status    *int        `json:"status,omitempty"`
}

// StatusCode 返回状态码，未知时为 0
func (e RequestEntry) StatusCode() int {
	if e.Status == nil {
		return 0
	}
	return *e.Status
}

// ConsoleFilter 控制台过滤状态
type ConsoleFilter struct {
	Levels map[ConsoleLevel]bool `json:"levels"`
	Search string                `json:"search"`
}

// NewConsoleFilter 默认全部级别开启、搜索为空
func NewConsoleFilter() ConsoleFilter {
	levels := make(map[ConsoleLevel]bool, len(ConsoleLevels))
	for _, l := range ConsoleLevels {
		levels[l] = true
	}
	return ConsoleFilter{Levels: levels}
}

// RequestFilter 请求过滤状态
type RequestFilter struct {
	Kinds      map[RequestKind]bool `json:"kinds"`
	Search     string               `json:"search"`
	OnlyErrors bool                 `json:"onlyErrors"`
}

// NewRequestFilter 默认全部类型开启、搜索为空、不限错误
func NewRequestFilter() RequestFilter {
	kinds := make(map[RequestKind]bool, len(RequestKinds))
	for _, k := range RequestKinds {
		kinds[k] = true
	}
	return RequestFilter{Kinds: kinds}
}

// DialogType 页面对话框类型
type DialogType string

const (
	DialogTypeAlert        DialogType = "alert"
	DialogTypeConfirm      DialogType = "confirm"
	DialogTypePrompt       DialogType = "prompt"
	DialogTypeBeforeUnload DialogType = "beforeunload"
)

// DialogState 当前挂起的页面对话框
type DialogState struct {
	ID            string     `json:"id"`
	Type          DialogType `json:"type"`
	Message       string     `json:"message"`
	DefaultPrompt string     `json:"defaultPrompt,omitempty"`
	URL           string     `json:"url"`
}

// PageState 页面运行状态
type PageState struct {
	URL          string       `json:"url"`
	UserAgent    string       `json:"userAgent"`
	Loading      bool         `json:"loading"`
	CanGoBack    bool         `json:"canGoBack"`
	CanGoForward bool         `json:"canGoForward"`
	Dialog       *DialogState `json:"dialog,omitempty"`
	PendingEvals int          `json:"pendingEvals"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	DevToolsURL     string `json:"devToolsURL"`
	TargetID        string `json:"targetId,omitempty"` // 为空时新建页面目标
	UserAgent       string `json:"userAgent"`
	Capacity        int    `json:"capacity"`
	Concurrency     int    `json:"concurrency"`
	PendingCapacity int    `json:"pendingCapacity"`
	ReportMalformed bool   `json:"reportMalformed"`
	BindingName     string `json:"bindingName,omitempty"`
}

// TargetInfo 目标信息
type TargetInfo struct {
	ID        TargetID `json:"id"`
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	IsCurrent bool     `json:"isCurrent"`
}

// PendingEval 尚未返回结果的脚本执行
type PendingEval struct {
	ID        string    `json:"id"`
	Script    string    `json:"script"`
	StartTime time.Time `json:"startTime"`
}
