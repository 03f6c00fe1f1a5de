package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webprobe/internal/export"
	"webprobe/internal/filter"
	"webprobe/internal/inspector"
	"webprobe/internal/logger"
	"webprobe/internal/logstore"
	"webprobe/internal/manager"
	"webprobe/internal/pool"
	"webprobe/internal/tracker"
	"webprobe/pkg/domain"

	"github.com/google/uuid"
)

// Archiver 捕获条目的归档目标
type Archiver interface {
	RecordConsole(session domain.SessionID, e domain.ConsoleEntry)
	RecordRequest(session domain.SessionID, e domain.RequestEntry)
}

// Option 服务选项
type Option func(*svc)

// WithArchiver 将每个会话捕获的条目同步写入归档
func WithArchiver(a Archiver) Option {
	return func(s *svc) { s.archive = a }
}

type svc struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]*session
	log      logger.Logger
	archive  Archiver
}

type session struct {
	id     domain.SessionID
	cfg    domain.SessionConfig
	ctx    context.Context    // Session 级上下文
	cancel context.CancelFunc // 用于手动停止 Session

	mgr      *manager.Manager
	target   *manager.Session
	ins      *inspector.Inspector
	store    *logstore.Store
	workPool *pool.Pool
	tracker  *tracker.Tracker
	archived sync.WaitGroup

	stateMu sync.RWMutex
	states  chan domain.PageState
	closed  bool
}

// New 创建并返回服务层实例
func New(l logger.Logger, opts ...Option) *svc {
	if l == nil {
		l = logger.NewNop()
	}
	s := &svc{sessions: make(map[domain.SessionID]*session), log: l}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession 连接 DevTools，新建或附加页面目标并开始采集
func (s *svc) StartSession(ctx context.Context, cfg domain.SessionConfig) (domain.SessionID, error) {
	cfg = withDefaults(cfg)
	id := domain.SessionID(uuid.New().String())

	// 会话生命周期独立于发起调用的请求
	sessionCtx, sessionCancel := context.WithCancel(context.WithoutCancel(ctx))
	ses := s.newSession(sessionCtx, sessionCancel, id, cfg)
	ses.mgr = manager.New(cfg.DevToolsURL, s.log)

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()
	if err := ses.mgr.Ping(pingCtx); err != nil {
		s.log.Err(err, "连接 DevTools 失败", "devtools", cfg.DevToolsURL)
		s.teardown(context.Background(), ses)
		return "", err
	}

	var (
		target *manager.Session
		err    error
	)
	if cfg.TargetID == "" {
		target, err = ses.mgr.OpenTarget(sessionCtx)
	} else {
		target, err = ses.mgr.AttachTarget(sessionCtx, domain.TargetID(cfg.TargetID))
	}
	if err != nil {
		s.teardown(context.Background(), ses)
		return "", err
	}
	ses.target = target

	if err := ses.ins.Attach(target.Ctx, target.Client); err != nil {
		s.log.Err(err, "启用页面采集失败", "session", string(id), "target", string(target.ID))
		s.teardown(context.Background(), ses)
		return "", fmt.Errorf("%w: %v", domain.ErrSessionStartFailed, err)
	}

	s.mu.Lock()
	s.sessions[id] = ses
	s.mu.Unlock()

	s.log.Info("创建会话成功", "session", string(id), "devtools", cfg.DevToolsURL,
		"target", string(target.ID), "capacity", cfg.Capacity, "concurrency", cfg.Concurrency)
	return id, nil
}

func withDefaults(cfg domain.SessionConfig) domain.SessionConfig {
	if cfg.Capacity <= 0 {
		cfg.Capacity = logstore.DefaultCapacity
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.PendingCapacity <= 0 {
		cfg.PendingCapacity = 16
	}
	return cfg
}

// newSession 组装会话内组件，不涉及浏览器连接
func (s *svc) newSession(ctx context.Context, cancel context.CancelFunc, id domain.SessionID, cfg domain.SessionConfig) *session {
	l := s.log.With("session", string(id))
	ses := &session{
		id:     id,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		store:  logstore.New(cfg.Capacity),
		states: make(chan domain.PageState, 16),
	}
	ses.tracker = tracker.New(tracker.Options{Logger: l})
	ses.workPool = pool.New(pool.Options{
		Size:     cfg.Concurrency,
		QueueCap: cfg.PendingCapacity,
		Logger:   l,
	})
	ses.workPool.Start(ctx)

	ses.ins = inspector.New(inspector.Config{
		Store:           ses.store,
		Pool:            ses.workPool,
		Tracker:         ses.tracker,
		BindingName:     cfg.BindingName,
		UserAgent:       cfg.UserAgent,
		ReportMalformed: cfg.ReportMalformed,
		Logger:          l,
		OnState:         ses.publishState,
	})

	if s.archive != nil {
		_, events := ses.store.Subscribe(256)
		ses.archived.Add(1)
		go s.forwardArchive(ses, events)
	}
	return ses
}

// forwardArchive 将存储变更写入归档，直到存储关闭
func (s *svc) forwardArchive(ses *session, events <-chan logstore.Event) {
	defer ses.archived.Done()
	for evt := range events {
		switch evt.Type {
		case logstore.EventConsole:
			s.archive.RecordConsole(ses.id, *evt.Console)
		case logstore.EventRequest:
			s.archive.RecordRequest(ses.id, *evt.Request)
		}
	}
}

// publishState 状态通道满时丢弃，订阅方以最新一次为准
func (ses *session) publishState(st domain.PageState) {
	ses.stateMu.RLock()
	defer ses.stateMu.RUnlock()
	if ses.closed {
		return
	}
	select {
	case ses.states <- st:
	default:
	}
}

// teardown 释放会话资源，可用于创建失败的半成品会话
func (s *svc) teardown(ctx context.Context, ses *session) {
	if ses.cancel != nil {
		ses.cancel()
	}
	ses.workPool.Stop()
	ses.tracker.Stop()

	if ses.mgr != nil {
		if ses.target != nil {
			if err := ses.mgr.CloseTarget(ctx, ses.target.ID); err != nil {
				s.log.Warn("停止会话时关闭页面目标失败", "target", string(ses.target.ID), "error", err)
			}
		}
		if err := ses.mgr.DetachAll(); err != nil {
			s.log.Warn("停止会话时断开所有目标连接失败", "error", err)
		}
	}

	ses.store.Close()
	ses.archived.Wait()

	ses.stateMu.Lock()
	if !ses.closed {
		ses.closed = true
		close(ses.states)
	}
	ses.stateMu.Unlock()
}

func (s *svc) get(id domain.SessionID) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ses, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return ses, nil
}

// StopSession 停止并清理指定会话
func (s *svc) StopSession(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	ses, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	s.teardown(ctx, ses)
	s.log.Info("会话已停止", "session", string(id))
	return nil
}

// StopAll 停止全部会话
func (s *svc) StopAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]domain.SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.StopSession(ctx, id)
	}
}

// ListTargets 列出会话所连浏览器中的页面目标
func (s *svc) ListTargets(ctx context.Context, id domain.SessionID) ([]domain.TargetInfo, error) {
	ses, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if ses.mgr == nil {
		return nil, domain.ErrNotAttached
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return ses.mgr.ListTargets(queryCtx)
}

// LoadURL 加载地址，返回规范化后的地址
func (s *svc) LoadURL(ctx context.Context, id domain.SessionID, rawURL, userAgent string) (string, error) {
	ses, err := s.get(id)
	if err != nil {
		return "", err
	}
	return ses.ins.Load(ctx, rawURL, userAgent)
}

// InjectScript 提交脚本执行，返回执行 ID
func (s *svc) InjectScript(ctx context.Context, id domain.SessionID, src string) (string, error) {
	ses, err := s.get(id)
	if err != nil {
		return "", err
	}
	return ses.ins.Inject(src)
}

// GoBack 后退
func (s *svc) GoBack(ctx context.Context, id domain.SessionID) error {
	ses, err := s.get(id)
	if err != nil {
		return err
	}
	return ses.ins.Back(ctx)
}

// GoForward 前进
func (s *svc) GoForward(ctx context.Context, id domain.SessionID) error {
	ses, err := s.get(id)
	if err != nil {
		return err
	}
	return ses.ins.Forward(ctx)
}

// Reload 重新加载
func (s *svc) Reload(ctx context.Context, id domain.SessionID) error {
	ses, err := s.get(id)
	if err != nil {
		return err
	}
	return ses.ins.Reload(ctx)
}

// HandleDialog 应答当前页面对话框
func (s *svc) HandleDialog(ctx context.Context, id domain.SessionID, accept bool, promptText *string) error {
	ses, err := s.get(id)
	if err != nil {
		return err
	}
	return ses.ins.HandleDialog(ctx, accept, promptText)
}

// PageState 返回页面状态
func (s *svc) PageState(ctx context.Context, id domain.SessionID) (domain.PageState, error) {
	ses, err := s.get(id)
	if err != nil {
		return domain.PageState{}, err
	}
	return ses.ins.State(), nil
}

// PendingEvals 返回尚未返回结果的脚本执行
func (s *svc) PendingEvals(ctx context.Context, id domain.SessionID) ([]domain.PendingEval, error) {
	ses, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return ses.tracker.List(), nil
}

// ConsoleEntries 按过滤条件返回控制台日志
func (s *svc) ConsoleEntries(ctx context.Context, id domain.SessionID, f domain.ConsoleFilter) ([]domain.ConsoleEntry, error) {
	ses, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return filter.Console(ses.store.Console(), f), nil
}

// RequestEntries 按过滤条件返回请求日志
func (s *svc) RequestEntries(ctx context.Context, id domain.SessionID, f domain.RequestFilter) ([]domain.RequestEntry, error) {
	ses, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return filter.Requests(ses.store.Requests(), f), nil
}

// ClearLogs 清空两类日志
func (s *svc) ClearLogs(ctx context.Context, id domain.SessionID) error {
	ses, err := s.get(id)
	if err != nil {
		return err
	}
	ses.store.Clear()
	s.log.Debug("日志已清空", "session", string(id))
	return nil
}

// ExportLogs 渲染完整日志报告，不受过滤条件影响
func (s *svc) ExportLogs(ctx context.Context, id domain.SessionID) (string, error) {
	ses, err := s.get(id)
	if err != nil {
		return "", err
	}
	return export.Format(ses.store.Console(), ses.store.Requests(), nil), nil
}

// LogStats 返回日志存储统计
func (s *svc) LogStats(ctx context.Context, id domain.SessionID) (logstore.Stats, error) {
	ses, err := s.get(id)
	if err != nil {
		return logstore.Stats{}, err
	}
	return ses.store.Stats(), nil
}

// SubscribeLogs 订阅日志变更，返回的取消函数可重复调用
func (s *svc) SubscribeLogs(ctx context.Context, id domain.SessionID) (<-chan logstore.Event, func(), error) {
	ses, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}
	subID, ch := ses.store.Subscribe(0)
	var once sync.Once
	return ch, func() { once.Do(func() { ses.store.Unsubscribe(subID) }) }, nil
}

// SubscribeState 订阅页面状态变化，会话停止时通道关闭
func (s *svc) SubscribeState(ctx context.Context, id domain.SessionID) (<-chan domain.PageState, error) {
	ses, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return ses.states, nil
}
