package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"webprobe/internal/logger"
)

// Options 工作池选项
type Options struct {
	Size            int           // 最大并发数，<= 0 表示不限制
	QueueCap        int           // 排队容量，<= 0 时为 Size * 8
	MonitorInterval time.Duration // 状态日志间隔，<= 0 时为 30s
	Logger          logger.Logger
}

// Stats 工作池统计
type Stats struct {
	QueueLen    int   `json:"queueLen"`
	QueueCap    int   `json:"queueCap"`
	Active      int64 `json:"active"`
	TotalSubmit int64 `json:"totalSubmit"`
	TotalDrop   int64 `json:"totalDrop"`
}

// Pool 固定 worker 数的任务池，队列满时丢弃新任务。
// 页面脚本执行等待时间不可控，单独排队避免阻塞事件循环。
type Pool struct {
	size     int
	queue    chan func()
	queueCap int
	interval time.Duration
	log      logger.Logger

	active      atomic.Int64
	totalSubmit atomic.Int64
	totalDrop   atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
}

// New 创建工作池
func New(opts Options) *Pool {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = 30 * time.Second
	}
	p := &Pool{
		size:     opts.Size,
		interval: opts.MonitorInterval,
		log:      opts.Logger.With("component", "pool"),
		stop:     make(chan struct{}),
	}
	if opts.Size <= 0 {
		return p
	}
	if opts.QueueCap <= 0 {
		opts.QueueCap = opts.Size * 8
	}
	p.queue = make(chan func(), opts.QueueCap)
	p.queueCap = opts.QueueCap
	return p
}

// Start 启动 worker 与监控协程，重复调用无效
func (p *Pool) Start(ctx context.Context) {
	if !p.IsEnabled() {
		return
	}
	p.startOnce.Do(func() {
		for i := 0; i < p.size; i++ {
			go p.worker(ctx)
		}
		go p.monitor(ctx)
	})
}

// Stop 停止 worker，已排队但未执行的任务被丢弃
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

func (p *Pool) monitor(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			st := p.Stats()
			if st.TotalSubmit == 0 {
				continue
			}
			dropRate := float64(st.TotalDrop) / float64(st.TotalSubmit) * 100
			p.log.Debug("工作池状态", "queueLen", st.QueueLen, "queueCap", st.QueueCap,
				"active", st.Active, "totalSubmit", st.TotalSubmit, "totalDrop", st.TotalDrop,
				"dropRate", fmt.Sprintf("%.2f%%", dropRate))
		}
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case fn := <-p.queue:
			if fn != nil {
				p.run(fn)
			}
		}
	}
}

func (p *Pool) run(fn func()) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("任务执行异常", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Submit 提交任务。
// 未限制并发时直接启动协程；队列已满或池已停止返回 false。
func (p *Pool) Submit(fn func()) bool {
	if !p.IsEnabled() {
		go p.run(fn)
		return true
	}
	submit := p.totalSubmit.Add(1)

	select {
	case <-p.stop:
		p.totalDrop.Add(1)
		return false
	default:
	}

	select {
	case p.queue <- fn:
		return true
	default:
		drop := p.totalDrop.Add(1)
		p.log.Warn("工作池队列已满，任务被丢弃", "queueCap", p.queueCap, "totalSubmit", submit, "totalDrop", drop)
		return false
	}
}

// Stats 返回统计信息
func (p *Pool) Stats() Stats {
	return Stats{
		QueueLen:    len(p.queue),
		QueueCap:    p.queueCap,
		Active:      p.active.Load(),
		TotalSubmit: p.totalSubmit.Load(),
		TotalDrop:   p.totalDrop.Load(),
	}
}

// IsEnabled 是否限制并发
func (p *Pool) IsEnabled() bool {
	return p.size > 0
}
