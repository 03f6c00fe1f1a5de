package export_test

import (
	"strings"
	"testing"
	"time"

	"webprobe/internal/export"
	"webprobe/pkg/domain"
)

func TestFormat(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 5, 7, 0, time.UTC)
	console := []domain.ConsoleEntry{
		{ID: 1, Timestamp: ts, Level: domain.ConsoleLevelLog, Message: "hello"},
		{ID: 2, Timestamp: ts, Level: domain.ConsoleLevelWarn, Message: "careful"},
		{ID: 3, Timestamp: ts.Add(13 * time.Hour), Level: domain.ConsoleLevelError, Message: "boom (app.js:1:2)"},
	}
	requests := []domain.RequestEntry{
		{ID: 4, Timestamp: ts, Kind: domain.RequestKindFetch, Method: "GET", URL: "https://x/api"},
		{ID: 5, Timestamp: ts, Kind: domain.RequestKindNavigationResponse, Method: "GET", URL: "404 https://x/missing"},
	}

	got := export.Format(console, requests, time.UTC)
	want := strings.Join([]string{
		"== Console ==",
		"[09:05:07] LOG: hello",
		"[09:05:07] WARN: careful",
		"[22:05:07] ERROR: boom (app.js:1:2)",
		"",
		"== Requests ==",
		"[09:05:07] fetch GET https://x/api",
		"[09:05:07] navigationResponse GET 404 https://x/missing",
	}, "\n")
	if got != want {
		t.Fatalf("导出内容不符合预期:\n%s\n---\n%s", got, want)
	}

	headers, data := 0, 0
	for _, line := range strings.Split(got, "\n") {
		switch {
		case strings.HasPrefix(line, "=="):
			headers++
		case strings.HasPrefix(line, "["):
			data++
		}
	}
	if headers != 2 || data != 5 {
		t.Errorf("预期 2 个标题 5 行数据，实际 %d / %d", headers, data)
	}
}

func TestFormat_Empty(t *testing.T) {
	got := export.Format(nil, nil, nil)
	if got != "== Console ==\n\n== Requests ==" {
		t.Errorf("空日志导出不符合预期: %q", got)
	}
}

func TestFormat_MultilineCollapsed(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 5, 7, 0, time.UTC)
	console := []domain.ConsoleEntry{
		{ID: 1, Timestamp: ts, Level: domain.ConsoleLevelError, Message: "Error: boom\n    at a (app.js:1:2)\r\n    at b (app.js:3:4)"},
		{ID: 2, Timestamp: ts, Level: domain.ConsoleLevelLog, Message: "ok"},
	}
	requests := []domain.RequestEntry{
		{ID: 3, Timestamp: ts, Kind: domain.RequestKindXHR, Method: "GET", URL: "https://x/a\rb"},
	}

	got := export.Format(console, requests, time.UTC)
	lines := strings.Split(got, "\n")
	if len(lines) != 6 {
		t.Fatalf("预期 6 行（2 标题 1 空行 3 数据），实际 %d:\n%s", len(lines), got)
	}
	if lines[1] != "[09:05:07] ERROR: Error: boom     at a (app.js:1:2)     at b (app.js:3:4)" {
		t.Errorf("多行消息应折叠为一行，实际 %q", lines[1])
	}
	if lines[5] != "[09:05:07] xhr GET https://x/a b" {
		t.Errorf("地址中的换行应被替换，实际 %q", lines[5])
	}
}
