package bridge_test

import (
	"testing"

	"webprobe/internal/bridge"
	"webprobe/internal/logstore"
	"webprobe/pkg/domain"
	"webprobe/pkg/errx"
)

func newReceiver(report bool) (*bridge.Receiver, *logstore.Store) {
	store := logstore.New(50)
	return bridge.NewReceiver(store, bridge.Options{ReportMalformed: report}), store
}

func TestReceive_Console(t *testing.T) {
	r, store := newReceiver(false)

	err := r.Receive(`{"type":"console","payload":{"level":"warn","args":["a","b c",""]}}`)
	if err != nil {
		t.Fatalf("处理控制台消息失败: %v", err)
	}
	got := store.Console()
	if len(got) != 1 {
		t.Fatalf("预期 1 条控制台日志，实际 %d", len(got))
	}
	if got[0].Level != domain.ConsoleLevelWarn || got[0].Message != "a b c " {
		t.Errorf("控制台日志不符合预期: %+v", got[0])
	}
}

func TestReceive_JSError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"带位置", `{"type":"js_error","payload":{"message":"boom","location":"app.js:3:7"}}`, "boom (app.js:3:7)"},
		{"空位置", `{"type":"js_error","payload":{"message":"boom","location":""}}`, "boom"},
		{"无位置", `{"type":"js_error","payload":{"message":"boom"}}`, "boom"},
		{"promise", `{"type":"js_error","payload":{"message":"nope","location":"promise"}}`, "nope (promise)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := newReceiver(false)
			if err := r.Receive(tt.raw); err != nil {
				t.Fatalf("处理错误消息失败: %v", err)
			}
			got := store.Console()
			if len(got) != 1 || got[0].Level != domain.ConsoleLevelError || got[0].Message != tt.want {
				t.Errorf("预期 error 级别消息 %q，实际 %+v", tt.want, got)
			}
		})
	}
}

func TestReceive_Request(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantStatus int
	}{
		{"无状态码", `{"type":"request","payload":{"kind":"fetch","method":"GET","url":"https://x/api"}}`, 0},
		{"带状态码", `{"type":"request","payload":{"kind":"xhr","method":"POST","url":"404 https://x/api","status":404}}`, 404},
		{"状态码为 0", `{"type":"request","payload":{"kind":"fetch","method":"GET","url":"https://x/api","status":0}}`, 0},
		{"状态码为字符串", `{"type":"request","payload":{"kind":"resource","method":"img","url":"https://x/a.png","status":"200"}}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := newReceiver(false)
			if err := r.Receive(tt.raw); err != nil {
				t.Fatalf("处理请求消息失败: %v", err)
			}
			got := store.Requests()
			if len(got) != 1 {
				t.Fatalf("预期 1 条请求，实际 %d", len(got))
			}
			if tt.wantStatus == 0 && got[0].Status != nil {
				t.Errorf("不应保留状态码，实际 %d", *got[0].Status)
			}
			if got[0].StatusCode() != tt.wantStatus {
				t.Errorf("状态码预期 %d，实际 %d", tt.wantStatus, got[0].StatusCode())
			}
		})
	}
}

func TestReceive_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"缺少 level", `{"type":"console","payload":{"args":["x"]}}`},
		{"非法 level", `{"type":"console","payload":{"level":"info","args":["x"]}}`},
		{"args 非数组", `{"type":"console","payload":{"level":"log","args":"x"}}`},
		{"args 含非字符串", `{"type":"console","payload":{"level":"log","args":[1]}}`},
		{"缺少 payload", `{"type":"console"}`},
		{"缺少 message", `{"type":"js_error","payload":{"location":"x"}}`},
		{"缺少 url", `{"type":"request","payload":{"kind":"fetch","method":"GET"}}`},
		{"页面上报导航类型", `{"type":"request","payload":{"kind":"navigate","method":"GET","url":"https://x"}}`},
		{"缺少 type", `{"payload":{}}`},
		{"非法 JSON", `{"type":`},
		{"空字符串", ``},
		{"数组", `[1,2]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := newReceiver(false)
			err := r.Receive(tt.raw)
			if !errx.Is(err, errx.CodeMalformedMessage) {
				t.Errorf("预期格式错误，实际 %v", err)
			}
			if len(store.Console()) != 0 || len(store.Requests()) != 0 {
				t.Error("格式错误的消息不应写入任何条目")
			}
		})
	}
}

func TestReceive_ReportMalformed(t *testing.T) {
	r, store := newReceiver(true)
	_ = r.Receive(`{"type":"console","payload":{"args":["x"]}}`)

	got := store.Console()
	if len(got) != 1 || got[0].Message != bridge.MalformedMessage || got[0].Level != domain.ConsoleLevelError {
		t.Errorf("开启上报时应追加一条通用错误，实际 %+v", got)
	}
}

func TestReceive_UnknownType(t *testing.T) {
	r, store := newReceiver(true)
	err := r.Receive(`{"type":"performance","payload":{"x":1}}`)
	if !errx.Is(err, errx.CodeUnknownMessage) {
		t.Errorf("预期未知类型，实际 %v", err)
	}
	if len(store.Console()) != 0 {
		t.Error("未知类型不应写入条目")
	}
}
