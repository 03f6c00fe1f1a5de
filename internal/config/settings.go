package config

const (
	// DesktopUserAgent 桌面端设备标识
	DesktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	// MobileUserAgent 移动端设备标识
	MobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
)

// DefaultSettings 定义所有设置的默认值
type DefaultSettings struct {
	Language    string
	Theme       string
	URL         string
	UserAgent   string
	DevToolsURL string
	BrowserArgs string
	BrowserPath string
}

// GetDefaultSettings 返回默认设置
func GetDefaultSettings() DefaultSettings {
	return DefaultSettings{
		Language:    "en",
		Theme:       "system",
		URL:         "https://etherneco.co.uk",
		UserAgent:   "", // 空表示使用浏览器默认标识
		DevToolsURL: "http://localhost:9222",
		BrowserArgs: "",
		BrowserPath: "", // 空表示自动检测系统浏览器
	}
}

// UserAgentPresets 预设设备标识
func UserAgentPresets() map[string]string {
	return map[string]string{
		"desktop": DesktopUserAgent,
		"mobile":  MobileUserAgent,
	}
}
