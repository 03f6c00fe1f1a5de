package gui

import (
	"webprobe/internal/logstore"
	"webprobe/internal/storage/model"
	"webprobe/pkg/domain"
)

// 推送给前端的事件名
const (
	EventLog       = "log-event"
	EventPageState = "page-state"
)

// SessionData 会话数据
type SessionData struct {
	SessionID string `json:"sessionId"`
}

// TargetListData 目标列表数据
type TargetListData struct {
	Targets []domain.TargetInfo `json:"targets"`
}

// BrowserData 浏览器数据
type BrowserData struct {
	DevToolsURL string `json:"devToolsUrl"`
}

// SettingsData 设置数据
type SettingsData struct {
	Settings map[string]string `json:"settings"`
}

// SettingData 单个设置数据
type SettingData struct {
	Value string `json:"value"`
}

// VersionData 版本数据
type VersionData struct {
	Version string `json:"version"`
}

// HistoryData 历史与预设
type HistoryData struct {
	URLs       []string          `json:"urls"`
	UserAgents []string          `json:"userAgents"`
	Scripts    []string          `json:"scripts"`
	LastURL    string            `json:"lastUrl"`
	LastUA     string            `json:"lastUserAgent"`
	Presets    map[string]string `json:"presets"`
}

// LoadData 页面加载结果
type LoadData struct {
	URL        string   `json:"url"`
	URLHistory []string `json:"urlHistory"`
	UAHistory  []string `json:"uaHistory"`
}

// InjectData 脚本注入结果
type InjectData struct {
	ID            string   `json:"id"`
	ScriptHistory []string `json:"scriptHistory"`
}

// PageStateData 页面状态
type PageStateData struct {
	State domain.PageState `json:"state"`
}

// PendingEvalsData 在途脚本执行
type PendingEvalsData struct {
	Evals []domain.PendingEval `json:"evals"`
}

// ConsoleLogsData 控制台日志
type ConsoleLogsData struct {
	Entries []domain.ConsoleEntry `json:"entries"`
}

// RequestLogsData 请求日志
type RequestLogsData struct {
	Entries []domain.RequestEntry `json:"entries"`
}

// LogStatsData 日志统计
type LogStatsData struct {
	Stats logstore.Stats `json:"stats"`
}

// ExportData 导出结果
type ExportData struct {
	Path string `json:"path"`
}

// ArchiveData 归档查询结果
type ArchiveData struct {
	Entries []model.EntryRecord `json:"entries"`
	Total   int64               `json:"total"`
}
