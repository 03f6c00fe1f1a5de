// Package filter 对日志快照做纯投影，不修改输入且保持原有顺序。
package filter

import (
	"strings"

	"webprobe/pkg/domain"
)

// Console 按级别开关与关键字过滤控制台条目
func Console(entries []domain.ConsoleEntry, f domain.ConsoleFilter) []domain.ConsoleEntry {
	search := strings.ToLower(f.Search)
	out := make([]domain.ConsoleEntry, 0, len(entries))
	for _, e := range entries {
		if !f.Levels[e.Level] {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Message), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Requests 按类型开关、仅错误与关键字过滤请求条目
func Requests(entries []domain.RequestEntry, f domain.RequestFilter) []domain.RequestEntry {
	search := strings.ToLower(f.Search)
	out := make([]domain.RequestEntry, 0, len(entries))
	for _, e := range entries {
		if !f.Kinds[e.Kind] {
			continue
		}
		if f.OnlyErrors && !IsError(e) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.URL), search) &&
			!strings.Contains(strings.ToLower(e.Method), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IsError 判断请求是否为 4xx/5xx。
// 有状态码时以状态码为准；没有时退回到 URL 文本：
// 以三位 4xx/5xx 开头，或包含 " 4" / " 5"。
func IsError(e domain.RequestEntry) bool {
	if code := e.StatusCode(); code > 0 {
		return code >= 400
	}
	return hasLeadingErrorStatus(e.URL) ||
		strings.Contains(e.URL, " 4") ||
		strings.Contains(e.URL, " 5")
}

// hasLeadingErrorStatus 匹配 "404 https://..." 形式的前缀
func hasLeadingErrorStatus(s string) bool {
	if len(s) < 4 || s[3] != ' ' {
		return false
	}
	if s[0] != '4' && s[0] != '5' {
		return false
	}
	return isDigit(s[1]) && isDigit(s[2])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
