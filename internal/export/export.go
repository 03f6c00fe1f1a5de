// Package export 将完整日志渲染为纯文本报告。
package export

import (
	"fmt"
	"strings"
	"time"

	"webprobe/pkg/domain"
)

// DefaultFilename 导出文件默认名称
const DefaultFilename = "webview-logs.txt"

// oneLine 把换行折叠为空格，保证每条记录只占一行
var oneLine = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

const (
	consoleHeader = "== Console =="
	requestHeader = "== Requests =="
	timeLayout    = "15:04:05"
)

// Format 渲染报告，loc 为空时使用本地时区
func Format(console []domain.ConsoleEntry, requests []domain.RequestEntry, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	lines := make([]string, 0, len(console)+len(requests)+3)
	lines = append(lines, consoleHeader)
	for _, e := range console {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			e.Timestamp.In(loc).Format(timeLayout), strings.ToUpper(string(e.Level)), oneLine.Replace(e.Message)))
	}
	lines = append(lines, "", requestHeader)
	for _, e := range requests {
		lines = append(lines, fmt.Sprintf("[%s] %s %s %s",
			e.Timestamp.In(loc).Format(timeLayout), e.Kind, oneLine.Replace(e.Method), oneLine.Replace(e.URL)))
	}
	return strings.Join(lines, "\n")
}
