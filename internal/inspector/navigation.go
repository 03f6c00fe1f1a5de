package inspector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"webprobe/pkg/domain"
	"webprobe/pkg/errx"

	"github.com/mafredri/cdp/protocol/emulation"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
)

// NormalizeURL 规范化用户输入的地址：去空白、替换弯引号、缺省补 https://
func NormalizeURL(input string) (string, error) {
	trimmed := strings.TrimSpace(domain.NormalizeQuotes(input))
	if trimmed == "" {
		return "", domain.ErrEmptyURL
	}

	normalized := trimmed
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		normalized = "https://" + trimmed
	}

	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidURL, trimmed)
	}
	return normalized, nil
}

// Load 以指定设备标识加载地址。
// 空地址直接忽略；非法地址写入一条错误日志，不发起导航。
func (i *Inspector) Load(ctx context.Context, rawURL, userAgent string) (string, error) {
	target, err := NormalizeURL(rawURL)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyURL) {
			return "", err
		}
		trimmed := strings.TrimSpace(domain.NormalizeQuotes(rawURL))
		i.store.AppendConsole(domain.ConsoleLevelError, "Invalid URL: "+trimmed)
		return "", errx.Wrap(errx.CodeInvalidURL, err, trimmed)
	}

	client, _, err := i.attached()
	if err != nil {
		return "", err
	}

	ua := strings.TrimSpace(userAgent)
	if err := i.applyUserAgent(ctx, ua); err != nil {
		i.log.Warn("设置设备标识失败", "error", err)
	}

	i.mu.Lock()
	i.pendingURL = target
	i.lastError = ""
	i.mu.Unlock()
	i.update(func(st *domain.PageState) {
		st.Loading = true
		st.UserAgent = ua
	})

	reply, err := client.Page.Navigate(ctx, page.NewNavigateArgs(target))
	if err != nil {
		i.onNavigationFailed(err.Error())
		return target, err
	}
	if reply.ErrorText != nil && *reply.ErrorText != "" {
		i.onNavigationFailed(*reply.ErrorText)
	}
	i.log.Info("发起页面加载", "url", target, "userAgent", ua)
	return target, nil
}

// Back 后退
func (i *Inspector) Back(ctx context.Context) error {
	return i.navigateHistory(ctx, -1)
}

// Forward 前进
func (i *Inspector) Forward(ctx context.Context) error {
	return i.navigateHistory(ctx, 1)
}

// Reload 重新加载当前页面
func (i *Inspector) Reload(ctx context.Context) error {
	client, _, err := i.attached()
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.lastError = ""
	i.mu.Unlock()
	return client.Page.Reload(ctx, page.NewReloadArgs())
}

func (i *Inspector) navigateHistory(ctx context.Context, delta int) error {
	client, _, err := i.attached()
	if err != nil {
		return err
	}
	hist, err := client.Page.GetNavigationHistory(ctx)
	if err != nil {
		return err
	}
	idx := hist.CurrentIndex + delta
	if idx < 0 || idx >= len(hist.Entries) {
		return domain.ErrNoHistoryEntry
	}
	entry := hist.Entries[idx]

	i.mu.Lock()
	i.pendingURL = entry.URL
	i.lastError = ""
	i.mu.Unlock()
	return client.Page.NavigateToHistoryEntry(ctx, page.NewNavigateToHistoryEntryArgs(entry.ID))
}

// refreshHistory 更新可前进/后退状态
func (i *Inspector) refreshHistory(ctx context.Context) {
	client, _, err := i.attached()
	if err != nil {
		return
	}
	hist, err := client.Page.GetNavigationHistory(ctx)
	if err != nil {
		i.log.Debug("获取导航历史失败", "error", err)
		return
	}
	i.update(func(st *domain.PageState) {
		st.CanGoBack = hist.CurrentIndex > 0
		st.CanGoForward = hist.CurrentIndex < len(hist.Entries)-1
	})
}

// applyUserAgent 下发设备标识，空值恢复浏览器默认标识
func (i *Inspector) applyUserAgent(ctx context.Context, ua string) error {
	i.mu.RLock()
	client, applied := i.client, i.appliedUA
	i.mu.RUnlock()
	if client == nil || ua == applied {
		return nil
	}
	if err := client.Emulation.SetUserAgentOverride(ctx, emulation.NewSetUserAgentOverrideArgs(ua)); err != nil {
		return err
	}
	i.mu.Lock()
	i.appliedUA = ua
	i.mu.Unlock()
	return nil
}

func (i *Inspector) isMainFrame(id page.FrameID) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.mainFrame == "" || i.mainFrame == id
}

// onFrameStartedLoading 主框架开始加载，记录 navigate
func (i *Inspector) onFrameStartedLoading(ev *page.FrameStartedLoadingReply) {
	if !i.isMainFrame(ev.FrameID) {
		return
	}
	i.mu.Lock()
	current := i.pendingURL
	if current == "" {
		current = i.state.URL
	}
	i.lastError = ""
	i.mu.Unlock()

	i.update(func(st *domain.PageState) { st.Loading = true })
	if current != "" {
		i.store.AppendRequest(domain.RequestKindNavigate, "GET", current, nil)
	}
}

func (i *Inspector) onFrameStoppedLoading(ev *page.FrameStoppedLoadingReply) {
	if !i.isMainFrame(ev.FrameID) {
		return
	}
	i.onLoadFinished()
}

// onLoadFinished 加载结束，无论成功与否都回到非加载状态
func (i *Inspector) onLoadFinished() {
	i.update(func(st *domain.PageState) { st.Loading = false })
}

// onFrameNavigated 主框架提交导航后更新当前地址，返回是否为主框架
func (i *Inspector) onFrameNavigated(ev *page.FrameNavigatedReply) bool {
	if ev.Frame.ParentID != nil {
		return false
	}
	i.mu.Lock()
	i.mainFrame = ev.Frame.ID
	i.pendingURL = ""
	i.mu.Unlock()

	i.update(func(st *domain.PageState) { st.URL = ev.Frame.URL })
	return true
}

func (i *Inspector) onNavigatedWithinDocument(ev *page.NavigatedWithinDocumentReply) bool {
	if !i.isMainFrame(ev.FrameID) {
		return false
	}
	i.update(func(st *domain.PageState) { st.URL = ev.URL })
	return true
}

// onRequestWillBeSent 文档请求记为 navigationAction
func (i *Inspector) onRequestWillBeSent(ev *network.RequestWillBeSentReply) {
	if ev.Type != network.ResourceTypeDocument {
		return
	}
	method := ev.Request.Method
	if method == "" {
		method = "GET"
	}
	i.store.AppendRequest(domain.RequestKindNavigationAction, method, ev.Request.URL, nil)
}

// onResponseReceived 文档响应记为 navigationResponse，状态码前置到地址中
func (i *Inspector) onResponseReceived(ev *network.ResponseReceivedReply) {
	if ev.Type != network.ResourceTypeDocument {
		return
	}
	status := ev.Response.Status
	i.store.AppendRequest(domain.RequestKindNavigationResponse, "GET",
		fmt.Sprintf("%d %s", status, ev.Response.URL), &status)
}

func (i *Inspector) onLoadingFailed(ev *network.LoadingFailedReply) {
	if ev.Type != network.ResourceTypeDocument {
		return
	}
	i.onNavigationFailed(ev.ErrorText)
}

// onNavigationFailed 记录加载失败并结束加载状态，同一轮加载相同描述只记录一次
func (i *Inspector) onNavigationFailed(desc string) {
	if desc == "" {
		desc = "Navigation failed"
	}
	i.mu.Lock()
	dup := i.lastError == desc
	i.lastError = desc
	i.mu.Unlock()

	if !dup {
		i.store.AppendConsole(domain.ConsoleLevelError, desc)
	}
	i.onLoadFinished()
}
