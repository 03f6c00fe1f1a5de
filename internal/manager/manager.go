package manager

import (
	"context"
	"fmt"
	"sync"

	"webprobe/internal/logger"
	"webprobe/pkg/domain"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"
)

// Manager 负责管理页面目标的 CDP 连接
type Manager struct {
	devtoolsURL     string
	writeBufferSize int
	log             logger.Logger
	mu              sync.RWMutex // 读写锁，支持并发读
	targets         map[domain.TargetID]*Session
}

// Session 表示一个已附加的页面目标
type Session struct {
	ID      domain.TargetID
	Target  *devtool.Target
	Conn    *rpcc.Conn
	Client  *cdp.Client
	Ctx     context.Context
	Cancel  context.CancelFunc
	Created bool // 由本工具新建，关闭会话时一并关闭页面
}

// New 创建目标管理器
func New(devtoolsURL string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		devtoolsURL:     devtoolsURL,
		writeBufferSize: 16 * 1024 * 1024,
		log:             log,
		targets:         make(map[domain.TargetID]*Session),
	}
}

// Ping 检查 DevTools 是否可达
func (m *Manager) Ping(ctx context.Context) error {
	if m.devtoolsURL == "" {
		return fmt.Errorf("%w: devtools url empty", domain.ErrDevToolsUnreachable)
	}
	if _, err := devtool.New(m.devtoolsURL).Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDevToolsUnreachable, err)
	}
	return nil
}

// OpenTarget 新建一个空白页面目标并附加
func (m *Manager) OpenTarget(ctx context.Context) (*Session, error) {
	if m.devtoolsURL == "" {
		return nil, fmt.Errorf("%w: devtools url empty", domain.ErrDevToolsUnreachable)
	}
	target, err := devtool.New(m.devtoolsURL).Create(ctx)
	if err != nil {
		m.log.Err(err, "新建页面目标失败")
		return nil, fmt.Errorf("%w: %v", domain.ErrDevToolsUnreachable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	session, err := m.dial(ctx, target)
	if err != nil {
		_ = devtool.New(m.devtoolsURL).Close(context.Background(), target)
		return nil, err
	}
	session.Created = true
	return session, nil
}

// AttachTarget 附加到指定页面目标，target 为空时选择第一个页面
func (m *Manager) AttachTarget(ctx context.Context, target domain.TargetID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.devtoolsURL == "" {
		return nil, fmt.Errorf("%w: devtools url empty", domain.ErrDevToolsUnreachable)
	}

	// 已附加则幂等返回
	if target != "" {
		if ts, ok := m.targets[target]; ok {
			return ts, nil
		}
	}

	selected, err := m.selectTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if selected == nil {
		m.log.Error("未找到可附加的页面目标", "target", string(target))
		return nil, domain.ErrTargetNotFound
	}
	return m.dial(ctx, selected)
}

// dial 建立目标的 websocket 连接，调用方持有写锁
func (m *Manager) dial(ctx context.Context, target *devtool.Target) (*Session, error) {
	// 派生 Session 级 Context，用于该目标的整个生命周期
	sessionCtx, sessionCancel := context.WithCancel(ctx)
	conn, err := rpcc.DialContext(sessionCtx, target.WebSocketDebuggerURL,
		rpcc.WithWriteBufferSize(m.writeBufferSize),
		rpcc.WithCompression())
	if err != nil {
		sessionCancel()
		m.log.Err(err, "连接浏览器 DevTools 失败")
		return nil, fmt.Errorf("%w: %v", domain.ErrDevToolsUnreachable, err)
	}

	client := cdp.NewClient(conn)
	session := &Session{
		ID:     domain.TargetID(target.ID),
		Target: target,
		Conn:   conn,
		Client: client,
		Ctx:    sessionCtx,
		Cancel: sessionCancel,
	}

	m.targets[session.ID] = session
	m.log.Info("附加页面目标成功", "target", string(session.ID), "url", target.URL)

	return session, nil
}

// CloseTarget 断开连接，并关闭由本工具新建的页面
func (m *Manager) CloseTarget(ctx context.Context, target domain.TargetID) error {
	m.mu.Lock()
	session, ok := m.targets[target]
	if ok {
		m.closeSession(session)
		delete(m.targets, target)
	}
	m.mu.Unlock()

	if !ok || !session.Created || session.Target == nil {
		return nil
	}
	if err := devtool.New(m.devtoolsURL).Close(ctx, session.Target); err != nil {
		m.log.Warn("关闭页面目标失败", "target", string(target), "error", err)
		return err
	}
	return nil
}

// DetachAll 断开所有目标连接并释放资源
func (m *Manager) DetachAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.targets {
		m.closeSession(session)
		delete(m.targets, id)
	}
	return nil
}

// ListTargets 列出当前浏览器中的所有 page 目标，并标记哪些已附加
func (m *Manager) ListTargets(ctx context.Context) ([]domain.TargetInfo, error) {
	if m.devtoolsURL == "" {
		return nil, fmt.Errorf("%w: devtools url empty", domain.ErrDevToolsUnreachable)
	}

	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDevToolsUnreachable, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.TargetInfo, 0, len(targets))
	for i := range targets {
		if targets[i] == nil {
			continue
		}
		if targets[i].Type != "page" {
			continue
		}
		id := domain.TargetID(targets[i].ID)
		info := domain.TargetInfo{
			ID:        id,
			Type:      string(targets[i].Type),
			URL:       targets[i].URL,
			Title:     targets[i].Title,
			IsCurrent: m.targets[id] != nil,
		}
		out = append(out, info)
	}
	return out, nil
}

// closeSession 关闭单个会话
func (m *Manager) closeSession(session *Session) {
	if session == nil {
		return
	}
	if session.Cancel != nil {
		session.Cancel()
	}
	if session.Conn != nil {
		_ = session.Conn.Close()
	}
}

// selectTarget 根据传入的 targetID 或默认策略选择目标
func (m *Manager) selectTarget(ctx context.Context, target domain.TargetID) (*devtool.Target, error) {
	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		m.log.Err(err, "获取浏览器目标列表失败")
		return nil, fmt.Errorf("%w: %v", domain.ErrDevToolsUnreachable, err)
	}
	if len(targets) == 0 {
		return nil, nil
	}

	if target != "" {
		for i := range targets {
			if targets[i] != nil && string(targets[i].ID) == string(target) {
				return targets[i], nil
			}
		}
		return nil, nil
	}

	// 默认选择第一个 page 目标
	for i := range targets {
		if targets[i] == nil {
			continue
		}
		if targets[i].Type != "page" {
			continue
		}
		return targets[i], nil
	}

	return nil, nil
}
