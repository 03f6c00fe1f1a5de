package logstore

// ring 固定容量的环形缓冲，满后覆盖最旧元素，调用方负责加锁
type ring[T any] struct {
	entries  []T
	capacity int
	head     int // 下一次写入位置
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// push 追加元素，返回是否发生了淘汰
func (r *ring[T]) push(v T) bool {
	if len(r.entries) < r.capacity {
		r.entries = append(r.entries, v)
		r.head = (r.head + 1) % r.capacity
		return false
	}
	r.entries[r.head] = v
	r.head = (r.head + 1) % r.capacity
	return true
}

// snapshot 按插入顺序（最旧在前）复制全部元素
func (r *ring[T]) snapshot() []T {
	out := make([]T, len(r.entries))
	if len(r.entries) < r.capacity {
		copy(out, r.entries)
		return out
	}
	n := copy(out, r.entries[r.head:])
	copy(out[n:], r.entries[:r.head])
	return out
}

func (r *ring[T]) len() int {
	return len(r.entries)
}

func (r *ring[T]) reset() {
	r.entries = r.entries[:0]
	r.head = 0
}
