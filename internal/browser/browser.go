// Package browser 启动带远程调试端口的 Chromium 系浏览器，供采集会话连接。
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"webprobe/internal/logger"
	"webprobe/pkg/domain"
)

const (
	defaultPort  = 9222
	readyTimeout = 10 * time.Second
	pollEvery    = 300 * time.Millisecond
)

// Options 浏览器启动选项
type Options struct {
	ExecPath   string   // 为空时自动查找
	ProfileDir string   // 为空时使用临时目录，关闭时删除
	Port       int      // 0 表示从 9222 开始找空闲端口
	Headless   bool
	UserAgent  string   // 进程级设备标识，会话内仍可覆盖
	WindowSize string   // 形如 "390,844"
	ExtraArgs  []string // 设置页填写的附加参数
	Env        []string
	StartURL   string // 为空时打开 about:blank
	Output     io.Writer
	Logger     logger.Logger
}

// Browser 已启动的浏览器
type Browser struct {
	DevToolsURL string

	cmd        *exec.Cmd
	port       int
	profileDir string
	ownProfile bool
	log        logger.Logger
}

// commonFlags 关闭与采集无关的后台行为
var commonFlags = []string{
	"--no-first-run",
	"--no-default-browser-check",
	"--disable-background-networking",
	"--disable-background-timer-throttling",
	"--disable-renderer-backgrounding",
	"--disable-breakpad",
	"--disable-default-apps",
	"--disable-extensions",
	"--disable-sync",
	"--metrics-recording-only",
}

// Launch 启动浏览器并等待 DevTools 端点可用
func Launch(ctx context.Context, opts Options) (*Browser, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "browser")

	exe, err := Locate(opts.ExecPath)
	if err != nil {
		return nil, err
	}

	port, err := freePort(opts.Port)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserStartFailed, err)
	}

	b := &Browser{
		DevToolsURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		port:        port,
		profileDir:  opts.ProfileDir,
		log:         log,
	}
	if b.profileDir == "" {
		dir, err := os.MkdirTemp("", "webprobe-profile-")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBrowserStartFailed, err)
		}
		b.profileDir, b.ownProfile = dir, true
	}

	b.cmd = exec.CommandContext(ctx, exe, flags(port, b.profileDir, opts)...)
	if len(opts.Env) > 0 {
		b.cmd.Env = append(os.Environ(), opts.Env...)
	}
	if opts.Output != nil {
		b.cmd.Stdout, b.cmd.Stderr = opts.Output, opts.Output
	}

	if err := b.cmd.Start(); err != nil {
		b.removeProfile()
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserStartFailed, err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := waitReady(readyCtx, b.DevToolsURL); err != nil {
		_ = b.Close(2 * time.Second)
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserStartFailed, err)
	}

	log.Info("浏览器已启动", "exec", exe, "devtools", b.DevToolsURL, "pid", b.cmd.Process.Pid)
	return b, nil
}

// Port 远程调试端口
func (b *Browser) Port() int {
	if b == nil {
		return 0
	}
	return b.port
}

// Close 结束浏览器进程并清理临时配置目录
func (b *Browser) Close(timeout time.Duration) error {
	if b == nil || b.cmd == nil || b.cmd.Process == nil {
		return nil
	}
	defer b.removeProfile()

	exited := make(chan error, 1)
	go func() { exited <- b.cmd.Wait() }()
	// Kill 而非信号，Windows 下没有可靠的优雅退出
	_ = b.cmd.Process.Kill()

	select {
	case err := <-exited:
		b.log.Info("浏览器已关闭", "port", b.port)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	case <-time.After(timeout):
		return errors.New("browser did not exit in time")
	}
}

func (b *Browser) removeProfile() {
	if !b.ownProfile {
		return
	}
	if err := os.RemoveAll(b.profileDir); err != nil {
		b.log.Warn("删除临时配置目录失败", "dir", b.profileDir, "error", err)
	}
}

// Locate 返回可用的浏览器可执行文件，explicit 非空时只校验它
func Locate(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrBrowserStartFailed, err)
		}
		return explicit, nil
	}
	for _, p := range installPaths(runtime.GOOS) {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	for _, name := range []string{"google-chrome", "chrome", "chromium", "chromium-browser", "msedge", "microsoft-edge"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no chromium-based browser found", domain.ErrBrowserStartFailed)
}

// installPaths 各平台的常见安装位置，Chrome 优先于 Edge
func installPaths(goos string) []string {
	switch goos {
	case "windows":
		var paths []string
		for _, root := range []string{os.Getenv("ProgramFiles"), os.Getenv("ProgramFiles(x86)"), os.Getenv("LOCALAPPDATA")} {
			if root == "" {
				continue
			}
			paths = append(paths,
				filepath.Join(root, "Google", "Chrome", "Application", "chrome.exe"),
				filepath.Join(root, "Microsoft", "Edge", "Application", "msedge.exe"),
			)
		}
		return paths
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
			"/usr/bin/microsoft-edge",
		}
	}
	return nil
}

// freePort 优先使用 preferred，被占用时由系统分配
func freePort(preferred int) (int, error) {
	if preferred <= 0 {
		preferred = defaultPort
	}
	if l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", preferred)); err == nil {
		_ = l.Close()
		return preferred, nil
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("find free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func flags(port int, profileDir string, opts Options) []string {
	args := make([]string, 0, len(commonFlags)+len(opts.ExtraArgs)+8)
	args = append(args,
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--user-data-dir="+profileDir,
	)
	args = append(args, commonFlags...)
	if runtime.GOOS == "linux" {
		args = append(args, "--disable-dev-shm-usage")
	}
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		args = append(args, "--user-agent="+ua)
	}
	if opts.WindowSize != "" {
		args = append(args, "--window-size="+opts.WindowSize)
	}
	args = append(args, opts.ExtraArgs...)

	start := opts.StartURL
	if start == "" {
		start = "about:blank"
	}
	return append(args, start)
}

// waitReady 轮询 /json/version 直到返回 200
func waitReady(ctx context.Context, base string) error {
	cli := &http.Client{Timeout: 500 * time.Millisecond}
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("devtools endpoint not ready: %w", ctx.Err())
		case <-ticker.C:
			if endpointReady(ctx, cli, base+"/json/version") {
				return nil
			}
		}
	}
}

func endpointReady(ctx context.Context, cli *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := cli.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// SplitArgs 将设置中以空白分隔的参数串拆分为参数列表
func SplitArgs(s string) []string {
	return strings.Fields(s)
}
