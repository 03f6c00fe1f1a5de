package repo

import (
	"context"
	"sync"
	"time"

	"webprobe/internal/logger"
	"webprobe/internal/storage/model"
	"webprobe/pkg/domain"

	"github.com/tidwall/sjson"
	"gorm.io/gorm"
)

// EntryRepoOptions 归档仓库选项
type EntryRepoOptions struct {
	BatchSize     int           // 达到该数量立即刷新
	FlushInterval time.Duration // 定时刷新间隔
	MaxBufferSize int           // 缓冲区上限，超出丢弃最旧记录
}

// EntryRepo 捕获条目归档仓库（异步批量写入）
type EntryRepo struct {
	BaseRepository[model.EntryRecord]
	log     logger.Logger
	opts    EntryRepoOptions
	buffer  []model.EntryRecord
	mu      sync.Mutex
	flushCh chan struct{}
	stopCh  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// NewEntryRepo 创建归档仓库实例并启动后台写入协程
func NewEntryRepo(db *gorm.DB, l logger.Logger, opts EntryRepoOptions) *EntryRepo {
	if l == nil {
		l = logger.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.MaxBufferSize <= 0 {
		opts.MaxBufferSize = 5000
	}
	r := &EntryRepo{
		BaseRepository: *NewBaseRepository[model.EntryRecord](db),
		log:            l,
		opts:           opts,
		buffer:         make([]model.EntryRecord, 0, opts.BatchSize),
		flushCh:        make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
	}
	r.wg.Add(1)
	go r.asyncWriter()
	return r
}

// asyncWriter 异步批量写入协程
func (r *EntryRepo) asyncWriter() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.flush()
			return
		case <-ticker.C:
			r.flush()
		case <-r.flushCh:
			r.flush()
		}
	}
}

// flush 刷新缓冲区到数据库
func (r *EntryRepo) flush() {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return
	}
	toWrite := r.buffer
	r.buffer = make([]model.EntryRecord, 0, r.opts.BatchSize)
	r.mu.Unlock()

	if err := r.CreateBatch(context.Background(), toWrite, 100); err != nil {
		r.log.Err(err, "归档条目写入失败", "count", len(toWrite))
	}
}

// Stop 停止异步写入并刷新剩余数据，可重复调用
func (r *EntryRepo) Stop() {
	r.once.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
	})
}

// RecordConsole 归档一条控制台条目
func (r *EntryRepo) RecordConsole(session domain.SessionID, e domain.ConsoleEntry) {
	payload := "{}"
	payload, _ = sjson.Set(payload, "id", int64(e.ID))
	payload, _ = sjson.Set(payload, "level", string(e.Level))
	payload, _ = sjson.Set(payload, "message", e.Message)
	payload, _ = sjson.Set(payload, "timestamp", e.Timestamp.UnixMilli())

	r.enqueue(model.EntryRecord{
		SessionID:   string(session),
		Stream:      model.StreamConsole,
		EntryID:     int64(e.ID),
		Level:       string(e.Level),
		Message:     e.Message,
		PayloadJSON: payload,
		Timestamp:   e.Timestamp.UnixMilli(),
		CreatedAt:   time.Now(),
	})
}

// RecordRequest 归档一条请求条目
func (r *EntryRepo) RecordRequest(session domain.SessionID, e domain.RequestEntry) {
	payload := "{}"
	payload, _ = sjson.Set(payload, "id", int64(e.ID))
	payload, _ = sjson.Set(payload, "kind", string(e.Kind))
	payload, _ = sjson.Set(payload, "method", e.Method)
	payload, _ = sjson.Set(payload, "url", e.URL)
	if e.Status != nil {
		payload, _ = sjson.Set(payload, "status", *e.Status)
	}
	payload, _ = sjson.Set(payload, "timestamp", e.Timestamp.UnixMilli())

	r.enqueue(model.EntryRecord{
		SessionID:   string(session),
		Stream:      model.StreamRequest,
		EntryID:     int64(e.ID),
		Kind:        string(e.Kind),
		Method:      e.Method,
		URL:         e.URL,
		StatusCode:  e.StatusCode(),
		PayloadJSON: payload,
		Timestamp:   e.Timestamp.UnixMilli(),
		CreatedAt:   time.Now(),
	})
}

// enqueue 写入缓冲区，达到批量大小时触发刷新
func (r *EntryRepo) enqueue(rec model.EntryRecord) {
	r.mu.Lock()
	if len(r.buffer) >= r.opts.MaxBufferSize {
		r.buffer = r.buffer[1:]
		r.log.Warn("归档缓冲区已满，丢弃最旧记录", "max", r.opts.MaxBufferSize)
	}
	r.buffer = append(r.buffer, rec)
	needFlush := len(r.buffer) >= r.opts.BatchSize
	r.mu.Unlock()

	if needFlush {
		select {
		case r.flushCh <- struct{}{}:
		default:
		}
	}
}

// QueryOptions 查询选项
type QueryOptions struct {
	SessionID string
	Stream    string // console / request
	Level     string
	Kind      string
	Keyword   string // 匹配 message / url
	StartTime int64
	EndTime   int64
	Offset    int
	Limit     int
}

// Apply 实现 Filter 接口
func (o QueryOptions) Apply(q *gorm.DB) *gorm.DB {
	if o.SessionID != "" {
		q = q.Where("session_id = ?", o.SessionID)
	}
	if o.Stream != "" {
		q = q.Where("stream = ?", o.Stream)
	}
	if o.Level != "" {
		q = q.Where("level = ?", o.Level)
	}
	if o.Kind != "" {
		q = q.Where("kind = ?", o.Kind)
	}
	if o.Keyword != "" {
		like := "%" + o.Keyword + "%"
		q = q.Where("(message LIKE ? OR url LIKE ?)", like, like)
	}
	if o.StartTime > 0 {
		q = q.Where("timestamp >= ?", o.StartTime)
	}
	if o.EndTime > 0 {
		q = q.Where("timestamp <= ?", o.EndTime)
	}
	return q
}

// Query 查询归档条目，按捕获顺序返回
func (r *EntryRepo) Query(ctx context.Context, opts QueryOptions) ([]model.EntryRecord, int64, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Limit > 1000 {
		opts.Limit = 1000
	}
	return r.FindAll(ctx, opts, &Pagination{Offset: opts.Offset, Limit: opts.Limit},
		Order{Field: "timestamp"}, Order{Field: "entry_id"})
}

// DeleteBySession 删除指定会话的归档
func (r *EntryRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	return r.DeleteWhere(ctx, QueryOptions{SessionID: sessionID})
}

// CleanupOldEntries 根据保留天数清理旧归档
func (r *EntryRepo) CleanupOldEntries(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).UnixMilli()
	return r.DeleteWhere(ctx, QueryOptions{EndTime: cutoff - 1})
}
