package browser

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"webprobe/pkg/domain"
)

func TestFlags(t *testing.T) {
	args := flags(9333, "/tmp/profile", Options{
		Headless:   true,
		UserAgent:  "  Mozilla/5.0 (iPhone)  ",
		WindowSize: "390,844",
		ExtraArgs:  []string{"--lang=en"},
		StartURL:   "https://example.com",
	})

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--remote-debugging-port=9333",
		"--user-data-dir=/tmp/profile",
		"--headless=new",
		"--user-agent=Mozilla/5.0 (iPhone)",
		"--window-size=390,844",
		"--lang=en",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("启动参数缺少 %s", want)
		}
	}
	if args[len(args)-1] != "https://example.com" {
		t.Errorf("最后一个参数应为启动页，实际 %s", args[len(args)-1])
	}
}

func TestFlags_Defaults(t *testing.T) {
	args := flags(9222, "/tmp/p", Options{})
	if args[len(args)-1] != "about:blank" {
		t.Errorf("默认启动页应为 about:blank，实际 %s", args[len(args)-1])
	}
	for _, a := range args {
		if strings.HasPrefix(a, "--user-agent") || strings.HasPrefix(a, "--headless") {
			t.Errorf("未设置时不应出现 %s", a)
		}
	}
}

func TestFreePort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("监听端口失败: %v", err)
	}
	defer l.Close()
	busy := l.Addr().(*net.TCPAddr).Port

	got, err := freePort(busy)
	if err != nil {
		t.Fatalf("选择端口失败: %v", err)
	}
	if got == busy {
		t.Error("端口被占用时应选择其他端口")
	}
}

func TestLocate_Explicit(t *testing.T) {
	_, err := Locate(filepath.Join(t.TempDir(), "no-such-browser"))
	if !errors.Is(err, domain.ErrBrowserStartFailed) {
		t.Errorf("不存在的路径应返回 ErrBrowserStartFailed，实际 %v", err)
	}
}

func TestInstallPaths(t *testing.T) {
	for _, goos := range []string{"linux", "darwin"} {
		if len(installPaths(goos)) == 0 {
			t.Errorf("%s 应有候选路径", goos)
		}
	}
	if installPaths("plan9") != nil {
		t.Error("未知平台不应有候选路径")
	}
}

func TestEndpointReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cli := srv.Client()
	if !endpointReady(context.Background(), cli, srv.URL+"/json/version") {
		t.Error("端点可用时应返回 true")
	}
	if endpointReady(context.Background(), cli, srv.URL+"/missing") {
		t.Error("非 200 时应返回 false")
	}
}

func TestSplitArgs(t *testing.T) {
	got := SplitArgs("  --a  --b=1\t--c ")
	want := []string{"--a", "--b=1", "--c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitArgs() = %v, want %v", got, want)
	}
	if len(SplitArgs("")) != 0 {
		t.Error("空字符串应返回空列表")
	}
}
