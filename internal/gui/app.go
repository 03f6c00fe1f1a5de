package gui

import (
	"context"
	"os"
	"os/exec"
	goruntime "runtime"
	"time"

	"webprobe/internal/browser"
	"webprobe/internal/config"
	"webprobe/internal/export"
	"webprobe/internal/logger"
	"webprobe/internal/service"
	"webprobe/internal/storage/db"
	"webprobe/internal/storage/model"
	"webprobe/internal/storage/repo"
	"webprobe/pkg/api"
	"webprobe/pkg/domain"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"gorm.io/gorm"
	gl "gorm.io/gorm/logger"
)

// App 负责管理会话、浏览器、设置和日志推送，供前端调用。
type App struct {
	ctx             context.Context
	cfg             *config.Config
	log             logger.Logger
	service         api.Service
	currentSession  domain.SessionID
	browser         *browser.Browser
	gdb             *gorm.DB
	settingsRepo    *repo.SettingsRepo
	entryRepo       *repo.EntryRepo
	cancelSubscribe context.CancelFunc
}

// NewApp 创建并返回一个新的 App 实例。
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Writers: cfg.Log.Writer,
	})
	return &App{
		cfg:     cfg,
		log:     log,
		service: api.NewService(log),
	}
}

// Startup 初始化数据库和仓库。
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
	a.log.Info("应用启动")

	gormLogger := db.NewLogger(a.log).LogMode(gl.Warn)
	gdb, err := db.New(db.Options{
		Name:   a.cfg.Sqlite.Db,
		Prefix: a.cfg.Sqlite.Prefix,
		Logger: gormLogger,
	})
	if err != nil {
		a.log.Err(err, "数据库初始化失败")
		return
	}

	if err := db.Migrate(gdb, &model.Setting{}, &model.EntryRecord{}); err != nil {
		a.log.Err(err, "数据库迁移失败")
		return
	}

	a.gdb = gdb
	a.settingsRepo = repo.NewSettingsRepo(gdb, repo.HistoryLimits{
		URL:    a.cfg.History.URLLimit,
		UA:     a.cfg.History.UALimit,
		Script: a.cfg.History.ScriptLimit,
	})
	if a.cfg.Capture.Archive {
		a.entryRepo = repo.NewEntryRepo(gdb, a.log, repo.EntryRepoOptions{})
		a.service = api.NewService(a.log, service.WithArchiver(a.entryRepo))
	}
	a.log.Debug("数据持久化层初始化完成", "archive", a.cfg.Capture.Archive)
}

// Shutdown 负责清理资源。
func (a *App) Shutdown(ctx context.Context) {
	a.log.Info("应用关闭中...")

	if a.cancelSubscribe != nil {
		a.cancelSubscribe()
	}
	a.service.StopAll(ctx)

	if a.browser != nil {
		_ = a.browser.Close(2 * time.Second)
	}

	if a.entryRepo != nil {
		a.entryRepo.Stop()
	}

	if a.gdb != nil {
		if sqlDB, err := a.gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	a.log.Info("应用已关闭")
}

// StartSession 连接浏览器并新建页面，启动日志与状态推送。
func (a *App) StartSession(devToolsURL, userAgent string) api.Response[SessionData] {
	a.log.Info("启动会话", "devToolsURL", devToolsURL)

	if a.cancelSubscribe != nil {
		a.cancelSubscribe()
		a.cancelSubscribe = nil
	}
	if a.currentSession != "" {
		_ = a.service.StopSession(a.ctx, a.currentSession)
		a.currentSession = ""
	}

	cfg := domain.SessionConfig{
		DevToolsURL:     devToolsURL,
		UserAgent:       userAgent,
		Capacity:        a.cfg.Capture.Capacity,
		Concurrency:     a.cfg.Eval.Concurrency,
		PendingCapacity: a.cfg.Eval.PendingCapacity,
		ReportMalformed: a.cfg.Capture.ReportMalformed,
		BindingName:     a.cfg.Capture.BindingName,
	}
	sid, err := a.service.StartSession(a.ctx, cfg)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[SessionData](code, msg)
	}
	a.currentSession = sid

	if a.settingsRepo != nil {
		if err := a.settingsRepo.Set(a.ctx, model.SettingKeyDevToolsURL, devToolsURL); err != nil {
			a.log.Warn("保存 DevTools 地址失败", "error", err)
		}
	}

	subCtx, subCancel := context.WithCancel(a.ctx)
	a.cancelSubscribe = subCancel
	go a.subscribe(subCtx, sid)

	a.log.Info("会话启动成功", "sessionID", sid)
	return api.OK(SessionData{SessionID: string(sid)})
}

// StopSession 停止当前会话。
func (a *App) StopSession() api.Response[api.EmptyData] {
	if a.cancelSubscribe != nil {
		a.cancelSubscribe()
		a.cancelSubscribe = nil
	}

	err := a.service.StopSession(a.ctx, a.currentSession)
	a.currentSession = ""
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[api.EmptyData](code, msg)
	}
	return api.Empty()
}

// GetCurrentSession 返回当前活跃会话的 ID。
func (a *App) GetCurrentSession() api.Response[SessionData] {
	return api.OK(SessionData{SessionID: string(a.currentSession)})
}

// ListTargets 列出浏览器中的页面目标。
func (a *App) ListTargets() api.Response[TargetListData] {
	targets, err := a.service.ListTargets(a.ctx, a.currentSession)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[TargetListData](code, msg)
	}
	return api.OK(TargetListData{Targets: targets})
}

// subscribe 将日志变更与页面状态通过 Wails 事件系统推送到前端。
func (a *App) subscribe(ctx context.Context, sessionID domain.SessionID) {
	logs, unsubscribe, err := a.service.SubscribeLogs(ctx, sessionID)
	if err != nil {
		a.log.Err(err, "订阅日志失败", "sessionID", sessionID)
		return
	}
	defer unsubscribe()

	states, err := a.service.SubscribeState(ctx, sessionID)
	if err != nil {
		a.log.Err(err, "订阅页面状态失败", "sessionID", sessionID)
		return
	}

	a.log.Debug("开始推送日志", "sessionID", sessionID)
	for {
		select {
		case evt, ok := <-logs:
			if !ok {
				a.log.Debug("日志通道已关闭", "sessionID", sessionID)
				return
			}
			runtime.EventsEmit(a.ctx, EventLog, evt)
		case st, ok := <-states:
			if !ok {
				return
			}
			runtime.EventsEmit(a.ctx, EventPageState, st)
		case <-ctx.Done():
			a.log.Debug("日志推送被取消", "sessionID", sessionID)
			return
		}
	}
}

// LoadURL 加载地址并写入历史。
func (a *App) LoadURL(rawURL, userAgent string) api.Response[LoadData] {
	url, err := a.service.LoadURL(a.ctx, a.currentSession, rawURL, userAgent)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[LoadData](code, msg)
	}

	data := LoadData{URL: url}
	if a.settingsRepo != nil {
		if data.URLHistory, err = a.settingsRepo.RememberURL(a.ctx, url); err != nil {
			a.log.Warn("保存地址历史失败", "error", err)
		}
		if data.UAHistory, err = a.settingsRepo.RememberUserAgent(a.ctx, userAgent); err != nil {
			a.log.Warn("保存设备标识历史失败", "error", err)
		}
	}
	return api.OK(data)
}

// InjectScript 注入脚本并写入脚本历史，执行结果在控制台日志中返回。
func (a *App) InjectScript(script string) api.Response[InjectData] {
	id, err := a.service.InjectScript(a.ctx, a.currentSession, script)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[InjectData](code, msg)
	}

	data := InjectData{ID: id}
	if a.settingsRepo != nil {
		if data.ScriptHistory, err = a.settingsRepo.RememberScript(a.ctx, script); err != nil {
			a.log.Warn("保存脚本历史失败", "error", err)
		}
	}
	return api.OK(data)
}

// GoBack 后退。
func (a *App) GoBack() api.Response[api.EmptyData] {
	return a.empty(a.service.GoBack(a.ctx, a.currentSession))
}

// GoForward 前进。
func (a *App) GoForward() api.Response[api.EmptyData] {
	return a.empty(a.service.GoForward(a.ctx, a.currentSession))
}

// Reload 重新加载。
func (a *App) Reload() api.Response[api.EmptyData] {
	return a.empty(a.service.Reload(a.ctx, a.currentSession))
}

// HandleDialog 应答页面对话框，promptText 仅对 prompt 生效。
func (a *App) HandleDialog(accept bool, promptText string) api.Response[api.EmptyData] {
	return a.empty(a.service.HandleDialog(a.ctx, a.currentSession, accept, &promptText))
}

// GetPageState 获取页面状态。
func (a *App) GetPageState() api.Response[PageStateData] {
	st, err := a.service.PageState(a.ctx, a.currentSession)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[PageStateData](code, msg)
	}
	return api.OK(PageStateData{State: st})
}

// GetPendingEvals 获取尚未返回的脚本执行。
func (a *App) GetPendingEvals() api.Response[PendingEvalsData] {
	evals, err := a.service.PendingEvals(a.ctx, a.currentSession)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[PendingEvalsData](code, msg)
	}
	return api.OK(PendingEvalsData{Evals: evals})
}

// GetConsoleLogs 按过滤条件获取控制台日志。
func (a *App) GetConsoleLogs(f domain.ConsoleFilter) api.Response[ConsoleLogsData] {
	if f.Levels == nil {
		f.Levels = domain.NewConsoleFilter().Levels
	}
	entries, err := a.service.ConsoleEntries(a.ctx, a.currentSession, f)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[ConsoleLogsData](code, msg)
	}
	return api.OK(ConsoleLogsData{Entries: entries})
}

// GetRequestLogs 按过滤条件获取请求日志。
func (a *App) GetRequestLogs(f domain.RequestFilter) api.Response[RequestLogsData] {
	if f.Kinds == nil {
		f.Kinds = domain.NewRequestFilter().Kinds
	}
	entries, err := a.service.RequestEntries(a.ctx, a.currentSession, f)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[RequestLogsData](code, msg)
	}
	return api.OK(RequestLogsData{Entries: entries})
}

// GetLogStats 获取日志统计。
func (a *App) GetLogStats() api.Response[LogStatsData] {
	stats, err := a.service.LogStats(a.ctx, a.currentSession)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[LogStatsData](code, msg)
	}
	return api.OK(LogStatsData{Stats: stats})
}

// ClearLogs 清空日志。
func (a *App) ClearLogs() api.Response[api.EmptyData] {
	return a.empty(a.service.ClearLogs(a.ctx, a.currentSession))
}

// ExportLogs 弹出原生保存对话框导出完整日志。
func (a *App) ExportLogs() api.Response[ExportData] {
	content, err := a.service.ExportLogs(a.ctx, a.currentSession)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[ExportData](code, msg)
	}

	path, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		DefaultFilename: export.DefaultFilename,
		Title:           "Export Logs",
		Filters: []runtime.FileFilter{
			{DisplayName: "Text Files (*.txt)", Pattern: "*.txt"},
		},
	})
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[ExportData](code, msg)
	}
	if path == "" {
		return api.Fail[ExportData](CodeCancelled, "")
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		code, msg := a.translateError(err)
		return api.Fail[ExportData](code, msg)
	}
	a.log.Info("日志已导出", "path", path)
	return api.OK(ExportData{Path: path})
}

// CopyLogs 将完整日志复制到剪贴板。
func (a *App) CopyLogs() api.Response[api.EmptyData] {
	content, err := a.service.ExportLogs(a.ctx, a.currentSession)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[api.EmptyData](code, msg)
	}
	return a.empty(runtime.ClipboardSetText(a.ctx, content))
}

// LaunchBrowser 启动新的浏览器实例，如果已有浏览器运行则先关闭。
func (a *App) LaunchBrowser(headless bool) api.Response[BrowserData] {
	a.log.Info("启动浏览器", "headless", headless)

	if a.browser != nil {
		if err := a.browser.Close(2 * time.Second); err != nil {
			a.log.Warn("关闭旧浏览器实例失败", "error", err)
		}
		a.browser = nil
	}

	opts := browser.Options{
		Logger:   a.log,
		Headless: headless,
	}
	if a.settingsRepo != nil {
		opts.ExecPath = a.settingsRepo.GetBrowserPath(a.ctx)
		opts.ExtraArgs = browser.SplitArgs(a.settingsRepo.GetBrowserArgs(a.ctx))
	}

	b, err := browser.Launch(a.ctx, opts)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[BrowserData](code, msg)
	}

	a.browser = b
	a.log.Info("浏览器启动成功", "devToolsURL", b.DevToolsURL)
	return api.OK(BrowserData{DevToolsURL: b.DevToolsURL})
}

// CloseBrowser 关闭已启动的浏览器实例。
func (a *App) CloseBrowser() api.Response[api.EmptyData] {
	if a.browser == nil {
		code, msg := a.translateError(domain.ErrBrowserNotRunning)
		return api.Fail[api.EmptyData](code, msg)
	}

	err := a.browser.Close(2 * time.Second)
	a.browser = nil
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[api.EmptyData](code, msg)
	}

	a.log.Info("浏览器已关闭")
	return api.Empty()
}

// GetBrowserStatus 获取当前浏览器的运行状态。
func (a *App) GetBrowserStatus() api.Response[BrowserData] {
	if a.browser == nil {
		return api.OK(BrowserData{})
	}
	return api.OK(BrowserData{DevToolsURL: a.browser.DevToolsURL})
}

// GetHistory 获取地址、设备标识与脚本历史。
func (a *App) GetHistory() api.Response[HistoryData] {
	if a.settingsRepo == nil {
		code, msg := a.translateError(domain.ErrDatabaseNotInitialized)
		return api.Fail[HistoryData](code, msg)
	}
	return api.OK(HistoryData{
		URLs:       a.settingsRepo.History(a.ctx, model.SettingKeyURLHistory),
		UserAgents: a.settingsRepo.History(a.ctx, model.SettingKeyUAHistory),
		Scripts:    a.settingsRepo.History(a.ctx, model.SettingKeyJSHistory),
		LastURL:    a.settingsRepo.GetLastURL(a.ctx),
		LastUA:     a.settingsRepo.GetLastUserAgent(a.ctx),
		Presets:    config.UserAgentPresets(),
	})
}

// GetVersion 获取应用版本号
func (a *App) GetVersion() api.Response[VersionData] {
	return api.OK(VersionData{Version: a.cfg.Version})
}

// GetSettings 获取所有设置（带默认值）
func (a *App) GetSettings() api.Response[SettingsData] {
	if a.settingsRepo == nil {
		return api.Fail[SettingsData](CodeDatabaseError, "")
	}
	settings, err := a.settingsRepo.GetAllWithDefaults(a.ctx)
	if err != nil {
		return api.Fail[SettingsData]("GET_SETTINGS_FAILED", "")
	}
	return api.OK(SettingsData{Settings: settings})
}

// SaveSettings 保存设置
func (a *App) SaveSettings(settings map[string]string) api.Response[api.EmptyData] {
	if a.settingsRepo == nil {
		return api.Fail[api.EmptyData](CodeDatabaseError, "")
	}
	if err := a.settingsRepo.SetMultiple(a.ctx, settings); err != nil {
		return api.Fail[api.EmptyData]("SAVE_SETTINGS_FAILED", "")
	}
	return api.Empty()
}

// ResetSettings 恢复默认设置，历史列表保留
func (a *App) ResetSettings() api.Response[SettingsData] {
	if a.settingsRepo == nil {
		return api.Fail[SettingsData](CodeDatabaseError, "")
	}
	defaults := config.GetDefaultSettings()

	settings := map[string]string{
		model.SettingKeyLanguage:      defaults.Language,
		model.SettingKeyTheme:         defaults.Theme,
		model.SettingKeyLastURL:       defaults.URL,
		model.SettingKeyLastUserAgent: defaults.UserAgent,
		model.SettingKeyDevToolsURL:   defaults.DevToolsURL,
		model.SettingKeyBrowserArgs:   defaults.BrowserArgs,
		model.SettingKeyBrowserPath:   defaults.BrowserPath,
	}

	if err := a.settingsRepo.SetMultiple(a.ctx, settings); err != nil {
		return api.Fail[SettingsData]("RESET_SETTINGS_FAILED", "")
	}
	return api.OK(SettingsData{Settings: settings})
}

// QueryArchive 查询归档的捕获条目
func (a *App) QueryArchive(sessionID, stream, keyword string, offset, limit int) api.Response[ArchiveData] {
	if a.entryRepo == nil {
		code, msg := a.translateError(domain.ErrDatabaseNotInitialized)
		return api.Fail[ArchiveData](code, msg)
	}
	entries, total, err := a.entryRepo.Query(a.ctx, repo.QueryOptions{
		SessionID: sessionID,
		Stream:    stream,
		Keyword:   keyword,
		Offset:    offset,
		Limit:     limit,
	})
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[ArchiveData](code, msg)
	}
	return api.OK(ArchiveData{Entries: entries, Total: total})
}

// CleanupArchive 清理超过保留天数的归档
func (a *App) CleanupArchive(retentionDays int) api.Response[api.EmptyData] {
	if a.entryRepo == nil {
		code, msg := a.translateError(domain.ErrDatabaseNotInitialized)
		return api.Fail[api.EmptyData](code, msg)
	}
	deleted, err := a.entryRepo.CleanupOldEntries(a.ctx, retentionDays)
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[api.EmptyData](code, msg)
	}
	a.log.Info("已清理旧归档", "retentionDays", retentionDays, "deletedCount", deleted)
	return api.Empty()
}

// OpenDirectory 用系统文件管理器打开指定目录
func (a *App) OpenDirectory(path string) api.Response[api.EmptyData] {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "windows":
		cmd = exec.Command("explorer", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return api.Fail[api.EmptyData]("OPEN_DIRECTORY_FAILED", "")
	}
	return api.Empty()
}

// GetDataDirectory 获取数据目录路径
func (a *App) GetDataDirectory() api.Response[SettingData] {
	dataDir, err := db.GetDefaultDir()
	if err != nil {
		return api.Fail[SettingData]("GET_DATA_DIR_FAILED", "")
	}
	return api.OK(SettingData{Value: dataDir})
}

// GetLogDirectory 获取日志目录路径
func (a *App) GetLogDirectory() api.Response[SettingData] {
	logDir, err := logger.GetDefaultLogDir()
	if err != nil {
		return api.Fail[SettingData]("GET_LOG_DIR_FAILED", "")
	}
	return api.OK(SettingData{Value: logDir})
}

// empty 将无数据返回的操作结果包装为统一响应
func (a *App) empty(err error) api.Response[api.EmptyData] {
	if err != nil {
		code, msg := a.translateError(err)
		return api.Fail[api.EmptyData](code, msg)
	}
	return api.Empty()
}
