package tracker

import (
	"sort"
	"sync"
	"time"

	"webprobe/internal/logger"
	"webprobe/pkg/domain"
)

// Pending 在途的脚本执行
type Pending = domain.PendingEval

// Options 追踪器选项
type Options struct {
	// Retention 超过该时长的记录被移除，仅清理记录本身，不影响执行。
	// 不大于 0 时记录保留到 Done
	Retention time.Duration
	// CleanupInterval 清理周期
	CleanupInterval time.Duration
	Logger          logger.Logger
}

// Tracker 在途脚本执行追踪器，只记录尚未返回结果的执行
type Tracker struct {
	pool      sync.Map
	retention time.Duration
	interval  time.Duration
	log       logger.Logger
	done      chan struct{}
	once      sync.Once
}

// New 创建追踪器并启动清理协程
func New(opts Options) *Tracker {
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	t := &Tracker{
		retention: opts.Retention,
		interval:  opts.CleanupInterval,
		log:       opts.Logger,
		done:      make(chan struct{}),
	}
	if t.retention > 0 {
		go t.cleanupLoop()
	}
	return t
}

// Add 登记一次执行
func (t *Tracker) Add(id, script string) {
	t.pool.Store(id, &Pending{
		ID:        id,
		Script:    script,
		StartTime: time.Now(),
	})
}

// Done 结束一次执行并返回其记录
func (t *Tracker) Done(id string) (Pending, bool) {
	val, ok := t.pool.LoadAndDelete(id)
	if !ok {
		return Pending{}, false
	}
	return *val.(*Pending), true
}

// List 返回全部在途执行，按开始时间排序
func (t *Tracker) List() []Pending {
	out := make([]Pending, 0)
	t.pool.Range(func(_, value any) bool {
		out = append(out, *value.(*Pending))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Len 在途执行数量
func (t *Tracker) Len() int {
	n := 0
	t.pool.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stop 停止清理协程，可重复调用
func (t *Tracker) Stop() {
	t.once.Do(func() {
		close(t.done)
	})
}

func (t *Tracker) cleanupLoop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			now := time.Now()
			t.pool.Range(func(key, value any) bool {
				p := value.(*Pending)
				if now.Sub(p.StartTime) > t.retention {
					t.pool.Delete(key)
					t.log.Debug("移除长时间未返回的脚本执行记录", "id", key, "startTime", p.StartTime)
				}
				return true
			})
		}
	}
}
