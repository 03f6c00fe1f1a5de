package model

import (
	"time"
)

// Setting 用户设置表
type Setting struct {
	Key       string    `gorm:"primaryKey" json:"key"`  // 设置键
	Value     string    `gorm:"type:text" json:"value"` // 设置值
	UpdatedAt time.Time `json:"updatedAt"`              // 更新时间
}

// 预定义的设置 Key
const (
	SettingKeyLastURL       = "last_url"      // 上次加载的 URL
	SettingKeyLastUserAgent = "last_ua"       // 上次使用的设备标识
	SettingKeyURLHistory    = "url_history"   // URL 历史（JSON 数组）
	SettingKeyUAHistory     = "ua_history"    // 设备标识历史（JSON 数组）
	SettingKeyJSHistory     = "js_history"    // 注入脚本历史（JSON 数组）
	SettingKeyDevToolsURL   = "devtools_url"  // 开发者工具URL
	SettingKeyTheme         = "theme"         // 主题
	SettingKeyLanguage      = "language"      // 语言
	SettingKeyBrowserPath   = "browser_path"  // 浏览器路径
	SettingKeyBrowserArgs   = "browser_args"  // 浏览器额外参数（换行分隔）
	SettingKeyWindowBounds  = "window_bounds" // 窗口大小和位置
)

// 归档条目的数据流类型
const (
	StreamConsole = "console"
	StreamRequest = "request"
)

// EntryRecord 捕获条目归档表
type EntryRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SessionID   string    `gorm:"index" json:"sessionId"`
	Stream      string    `gorm:"index" json:"stream"` // console / request
	EntryID     int64     `json:"entryId"`
	Level       string    `json:"level,omitempty"` // 控制台级别
	Kind        string    `gorm:"index" json:"kind,omitempty"`
	Method      string    `json:"method,omitempty"`
	URL         string    `json:"url,omitempty"`
	Message     string    `gorm:"type:text" json:"message,omitempty"`
	StatusCode  int       `json:"statusCode"`
	PayloadJSON string    `gorm:"type:text" json:"payloadJson"` // 条目完整 JSON
	Timestamp   int64     `gorm:"index" json:"timestamp"`
	CreatedAt   time.Time `json:"createdAt"`
}
