// Package inspector 负责单个页面目标的采集：安装绑定与监控脚本，
// 消费 CDP 事件流，把页面消息和宿主侧导航事件写入日志存储。
package inspector

import (
	"context"
	"sync"

	"webprobe/internal/bridge"
	"webprobe/internal/logger"
	"webprobe/internal/logstore"
	"webprobe/internal/pool"
	"webprobe/internal/script"
	"webprobe/internal/tracker"
	"webprobe/pkg/domain"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
)

// Config 页面采集配置
type Config struct {
	Store           *logstore.Store
	Pool            *pool.Pool
	Tracker         *tracker.Tracker
	BindingName     string
	UserAgent       string
	ReportMalformed bool
	Logger          logger.Logger
	// OnState 页面状态变化时回调，在事件协程中同步调用
	OnState func(domain.PageState)
}

// Inspector 单个页面目标的采集器
type Inspector struct {
	mu        sync.RWMutex
	client    *cdp.Client
	ctx       context.Context
	store     *logstore.Store
	receiver  *bridge.Receiver
	pool      *pool.Pool
	tracker   *tracker.Tracker
	binding   string
	log       logger.Logger
	onState   func(domain.PageState)
	mainFrame page.FrameID

	state      domain.PageState
	pendingURL string // 已发起但尚未提交的导航地址
	appliedUA  string // 已下发给浏览器的设备标识
	lastError  string // 本轮加载已记录的失败描述，用于去重
}

// New 创建采集器
func New(cfg Config) *Inspector {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Store == nil {
		cfg.Store = logstore.New(logstore.DefaultCapacity)
	}
	if cfg.Pool == nil {
		cfg.Pool = pool.New(pool.Options{Logger: cfg.Logger})
	}
	if !script.ValidBindingName(cfg.BindingName) {
		cfg.BindingName = script.DefaultBindingName
	}
	log := cfg.Logger.With("component", "inspector")
	return &Inspector{
		ctx:   context.Background(),
		store: cfg.Store,
		receiver: bridge.NewReceiver(cfg.Store, bridge.Options{
			ReportMalformed: cfg.ReportMalformed,
			Logger:          cfg.Logger,
		}),
		pool:    cfg.Pool,
		tracker: cfg.Tracker,
		binding: cfg.BindingName,
		log:     log,
		onState: cfg.OnState,
		state:   domain.PageState{UserAgent: cfg.UserAgent},
	}
}

// Store 返回日志存储
func (i *Inspector) Store() *logstore.Store {
	return i.store
}

// Attach 在页面目标上启用采集并开始消费事件流。
// ctx 决定事件流与异步脚本执行的生命周期。
func (i *Inspector) Attach(ctx context.Context, client *cdp.Client) error {
	if client == nil {
		return domain.ErrNotAttached
	}

	if err := client.Page.Enable(ctx); err != nil {
		return err
	}
	if err := client.Runtime.Enable(ctx); err != nil {
		return err
	}
	if err := client.Network.Enable(ctx, nil); err != nil {
		return err
	}
	if err := client.Runtime.AddBinding(ctx, runtime.NewAddBindingArgs(i.binding)); err != nil {
		return err
	}

	src := script.Source(i.binding)
	if _, err := client.Page.AddScriptToEvaluateOnNewDocument(ctx,
		page.NewAddScriptToEvaluateOnNewDocumentArgs(src)); err != nil {
		return err
	}

	// 当前已加载的文档不会再执行新文档脚本，这里补装一次，脚本自身防重复安装
	if _, err := client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(src)); err != nil {
		i.log.Warn("向当前文档安装监控脚本失败", "error", err)
	}

	if tree, err := client.Page.GetFrameTree(ctx); err == nil {
		i.mu.Lock()
		i.mainFrame = tree.FrameTree.Frame.ID
		i.state.URL = tree.FrameTree.Frame.URL
		i.mu.Unlock()
	} else {
		i.log.Warn("获取主框架失败", "error", err)
	}

	i.mu.Lock()
	i.client = client
	i.ctx = ctx
	ua := i.state.UserAgent
	i.mu.Unlock()

	if err := i.applyUserAgent(ctx, ua); err != nil {
		i.log.Warn("设置设备标识失败", "error", err)
	}

	hostStreams, err := i.openHostStreams(ctx, client)
	if err != nil {
		return err
	}
	bindingCalled, err := client.Runtime.BindingCalled(ctx)
	if err != nil {
		hostStreams.close()
		return err
	}

	go i.consumeHost(ctx, hostStreams)
	go i.consumeBridge(ctx, bindingCalled)

	i.refreshHistory(ctx)
	i.log.Info("页面采集已启动", "binding", i.binding, "mainFrame", string(i.mainFrame))
	return nil
}

// State 返回页面状态快照
func (i *Inspector) State() domain.PageState {
	i.mu.RLock()
	st := i.state
	if st.Dialog != nil {
		d := *st.Dialog
		st.Dialog = &d
	}
	i.mu.RUnlock()

	if i.tracker != nil {
		st.PendingEvals = i.tracker.Len()
	}
	return st
}

// update 在锁内修改状态并通知订阅方
func (i *Inspector) update(fn func(st *domain.PageState)) {
	i.mu.Lock()
	fn(&i.state)
	i.mu.Unlock()

	if i.onState != nil {
		i.onState(i.State())
	}
}

func (i *Inspector) attached() (*cdp.Client, context.Context, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.client == nil {
		return nil, nil, domain.ErrNotAttached
	}
	return i.client, i.ctx, nil
}

// hostStreams 宿主侧事件流集合
type hostStreams struct {
	frameStarted    page.FrameStartedLoadingClient
	frameStopped    page.FrameStoppedLoadingClient
	frameNavigated  page.FrameNavigatedClient
	withinDocument  page.NavigatedWithinDocumentClient
	loadEventFired  page.LoadEventFiredClient
	dialogOpening   page.JavascriptDialogOpeningClient
	dialogClosed    page.JavascriptDialogClosedClient
	requestWillSend network.RequestWillBeSentClient
	responseRecv    network.ResponseReceivedClient
	loadingFailed   network.LoadingFailedClient
}

func (h *hostStreams) close() {
	for _, c := range []closer{
		h.frameStarted, h.frameStopped, h.frameNavigated, h.withinDocument, h.loadEventFired,
		h.dialogOpening, h.dialogClosed, h.requestWillSend, h.responseRecv, h.loadingFailed,
	} {
		if c != nil {
			_ = c.Close()
		}
	}
}

type closer interface{ Close() error }

func (i *Inspector) openHostStreams(ctx context.Context, client *cdp.Client) (*hostStreams, error) {
	h := &hostStreams{}
	var err error
	fail := func(e error) (*hostStreams, error) {
		h.close()
		return nil, e
	}

	if h.frameStarted, err = client.Page.FrameStartedLoading(ctx); err != nil {
		return fail(err)
	}
	if h.frameStopped, err = client.Page.FrameStoppedLoading(ctx); err != nil {
		return fail(err)
	}
	if h.frameNavigated, err = client.Page.FrameNavigated(ctx); err != nil {
		return fail(err)
	}
	if h.withinDocument, err = client.Page.NavigatedWithinDocument(ctx); err != nil {
		return fail(err)
	}
	if h.loadEventFired, err = client.Page.LoadEventFired(ctx); err != nil {
		return fail(err)
	}
	if h.dialogOpening, err = client.Page.JavascriptDialogOpening(ctx); err != nil {
		return fail(err)
	}
	if h.dialogClosed, err = client.Page.JavascriptDialogClosed(ctx); err != nil {
		return fail(err)
	}
	if h.requestWillSend, err = client.Network.RequestWillBeSent(ctx); err != nil {
		return fail(err)
	}
	if h.responseRecv, err = client.Network.ResponseReceived(ctx); err != nil {
		return fail(err)
	}
	if h.loadingFailed, err = client.Network.LoadingFailed(ctx); err != nil {
		return fail(err)
	}

	// 宿主侧事件之间保持到达顺序
	if err := cdp.Sync(h.frameStarted, h.frameStopped, h.frameNavigated, h.withinDocument,
		h.loadEventFired, h.dialogOpening, h.dialogClosed,
		h.requestWillSend, h.responseRecv, h.loadingFailed); err != nil {
		return fail(err)
	}
	return h, nil
}

// consumeHost 消费宿主侧导航与对话框事件
func (i *Inspector) consumeHost(ctx context.Context, h *hostStreams) {
	defer h.close()
	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case <-h.frameStarted.Ready():
			var ev *page.FrameStartedLoadingReply
			if ev, err = h.frameStarted.Recv(); err == nil {
				i.onFrameStartedLoading(ev)
			}
		case <-h.frameStopped.Ready():
			var ev *page.FrameStoppedLoadingReply
			if ev, err = h.frameStopped.Recv(); err == nil {
				i.onFrameStoppedLoading(ev)
			}
		case <-h.frameNavigated.Ready():
			var ev *page.FrameNavigatedReply
			if ev, err = h.frameNavigated.Recv(); err == nil {
				if i.onFrameNavigated(ev) {
					i.refreshHistory(ctx)
				}
			}
		case <-h.withinDocument.Ready():
			var ev *page.NavigatedWithinDocumentReply
			if ev, err = h.withinDocument.Recv(); err == nil {
				if i.onNavigatedWithinDocument(ev) {
					i.refreshHistory(ctx)
				}
			}
		case <-h.loadEventFired.Ready():
			if _, err = h.loadEventFired.Recv(); err == nil {
				i.onLoadFinished()
			}
		case <-h.dialogOpening.Ready():
			var ev *page.JavascriptDialogOpeningReply
			if ev, err = h.dialogOpening.Recv(); err == nil {
				i.onDialogOpening(ev)
			}
		case <-h.dialogClosed.Ready():
			if _, err = h.dialogClosed.Recv(); err == nil {
				i.onDialogClosed()
			}
		case <-h.requestWillSend.Ready():
			var ev *network.RequestWillBeSentReply
			if ev, err = h.requestWillSend.Recv(); err == nil {
				i.onRequestWillBeSent(ev)
			}
		case <-h.responseRecv.Ready():
			var ev *network.ResponseReceivedReply
			if ev, err = h.responseRecv.Recv(); err == nil {
				i.onResponseReceived(ev)
			}
		case <-h.loadingFailed.Ready():
			var ev *network.LoadingFailedReply
			if ev, err = h.loadingFailed.Recv(); err == nil {
				i.onLoadingFailed(ev)
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				i.log.Err(err, "接收页面事件失败，停止采集")
			}
			return
		}
	}
}

// consumeBridge 消费页面脚本通过绑定发送的消息
func (i *Inspector) consumeBridge(ctx context.Context, stream runtime.BindingCalledClient) {
	defer stream.Close()
	for {
		ev, err := stream.Recv()
		if err != nil {
			if ctx.Err() == nil {
				i.log.Err(err, "接收桥接消息失败，停止采集")
			}
			return
		}
		i.onBindingCalled(ev)
	}
}

func (i *Inspector) onBindingCalled(ev *runtime.BindingCalledReply) {
	if ev == nil || ev.Name != i.binding {
		return
	}
	_ = i.receiver.Receive(ev.Payload)
}
