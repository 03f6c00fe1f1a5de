package logstore

import (
	"sync"
	"time"

	"webprobe/pkg/domain"
)

// DefaultCapacity 每个日志序列的默认容量
const DefaultCapacity = 500

// EventType 变更事件类型
type EventType string

const (
	EventConsole EventType = "console"
	EventRequest EventType = "request"
	EventCleared EventType = "cleared"
)

// Event 日志存储的变更通知
type Event struct {
	Type    EventType            `json:"type"`
	Console *domain.ConsoleEntry `json:"console,omitempty"`
	Request *domain.RequestEntry `json:"request,omitempty"`
}

// Stats 存储统计
type Stats struct {
	Console      int   `json:"console"`
	Requests     int   `json:"requests"`
	Capacity     int   `json:"capacity"`
	TotalAdded   int64 `json:"totalAdded"`
	TotalEvicted int64 `json:"totalEvicted"`
}

// Store 控制台与请求两个有界 FIFO 序列。
// 页面消息与宿主导航事件来自不同协程，所有写入由同一把锁串行化。
type Store struct {
	mu       sync.RWMutex
	capacity int
	console  *ring[domain.ConsoleEntry]
	requests *ring[domain.RequestEntry]
	nextID   int64
	evicted  int64
	now      func() time.Time

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// Option 存储选项
type Option func(*Store)

// WithClock 指定时间源
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New 创建日志存储，capacity <= 0 时使用默认容量
func New(capacity int, opts ...Option) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		capacity: capacity,
		console:  newRing[domain.ConsoleEntry](capacity),
		requests: newRing[domain.RequestEntry](capacity),
		now:      time.Now,
		subs:     make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity 返回单个序列的容量
func (s *Store) Capacity() int {
	return s.capacity
}

// AppendConsole 追加控制台条目，超出容量时淘汰最旧条目
func (s *Store) AppendConsole(level domain.ConsoleLevel, message string) domain.ConsoleEntry {
	s.mu.Lock()
	s.nextID++
	e := domain.ConsoleEntry{
		ID:        domain.EntryID(s.nextID),
		Timestamp: s.now(),
		Level:     level,
		Message:   message,
	}
	if s.console.push(e) {
		s.evicted++
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventConsole, Console: &e})
	return e
}

// AppendRequest 追加请求条目，超出容量时淘汰最旧条目
func (s *Store) AppendRequest(kind domain.RequestKind, method, url string, status *int) domain.RequestEntry {
	s.mu.Lock()
	s.nextID++
	e := domain.RequestEntry{
		ID:        domain.EntryID(s.nextID),
		Timestamp: s.now(),
		Kind:      kind,
		Method:    method,
		URL:       url,
	}
	if status != nil {
		code := *status
		e.Status = &code
	}
	if s.requests.push(e) {
		s.evicted++
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventRequest, Request: &e})
	return e
}

// Console 返回控制台条目快照（最旧在前）
func (s *Store) Console() []domain.ConsoleEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.console.snapshot()
}

// Requests 返回请求条目快照（最旧在前）
func (s *Store) Requests() []domain.RequestEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests.snapshot()
}

// Clear 清空两个序列，可重复调用
func (s *Store) Clear() {
	s.mu.Lock()
	s.console.reset()
	s.requests.reset()
	s.mu.Unlock()

	s.publish(Event{Type: EventCleared})
}

// Stats 返回统计信息
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Console:      s.console.len(),
		Requests:     s.requests.len(),
		Capacity:     s.capacity,
		TotalAdded:   s.nextID,
		TotalEvicted: s.evicted,
	}
}

// Subscribe 订阅变更事件，返回订阅 ID 与只读通道。
// 订阅方消费过慢时事件会被丢弃，不会阻塞写入。
func (s *Store) Subscribe(buffer int) (int, <-chan Event) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSub++
	s.subs[s.nextSub] = ch
	return s.nextSub, ch
}

// Unsubscribe 取消订阅并关闭通道
func (s *Store) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Close 关闭全部订阅
func (s *Store) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) publish(evt Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
