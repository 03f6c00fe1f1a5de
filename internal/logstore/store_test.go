package logstore_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"webprobe/internal/logstore"
	"webprobe/pkg/domain"
)

// TestStore_CapacityConsole 超出容量后只保留最近追加的条目且顺序不变
func TestStore_CapacityConsole(t *testing.T) {
	s := logstore.New(500)
	for i := 0; i < 750; i++ {
		s.AppendConsole(domain.ConsoleLevelLog, fmt.Sprintf("m%d", i))
	}

	got := s.Console()
	if len(got) != 500 {
		t.Fatalf("控制台条目数量预期 500，实际 %d", len(got))
	}
	for i, e := range got {
		want := fmt.Sprintf("m%d", i+250)
		if e.Message != want {
			t.Fatalf("第 %d 条预期 %s，实际 %s", i, want, e.Message)
		}
		if i > 0 && e.ID <= got[i-1].ID {
			t.Fatalf("第 %d 条 ID 未保持递增", i)
		}
	}
}

// TestStore_CapacityRequests 请求序列独立遵守容量限制
func TestStore_CapacityRequests(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		appends  int
		want     int
	}{
		{"未满", 5, 3, 3},
		{"恰好满", 5, 5, 5},
		{"溢出", 5, 12, 5},
		{"默认容量", 0, 501, logstore.DefaultCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := logstore.New(tt.capacity)
			for i := 0; i < tt.appends; i++ {
				s.AppendRequest(domain.RequestKindFetch, "GET", fmt.Sprintf("https://x/%d", i), nil)
			}
			got := s.Requests()
			if len(got) != tt.want {
				t.Fatalf("请求条目数量预期 %d，实际 %d", tt.want, len(got))
			}
			last := got[len(got)-1].URL
			if want := fmt.Sprintf("https://x/%d", tt.appends-1); last != want {
				t.Errorf("最后一条预期 %s，实际 %s", want, last)
			}
			if len(s.Console()) != 0 {
				t.Error("追加请求不应影响控制台序列")
			}
		})
	}
}

// TestStore_ClearIdempotent 清空空存储或连续清空都不会出错
func TestStore_ClearIdempotent(t *testing.T) {
	s := logstore.New(10)
	s.Clear()
	s.AppendConsole(domain.ConsoleLevelWarn, "w")
	s.AppendRequest(domain.RequestKindXHR, "POST", "https://x/api", nil)
	s.Clear()
	s.Clear()

	if len(s.Console()) != 0 || len(s.Requests()) != 0 {
		t.Error("清空后两个序列都应为空")
	}

	e := s.AppendConsole(domain.ConsoleLevelLog, "after")
	if e.ID <= 2 {
		t.Errorf("清空后 ID 仍应单调递增，实际 %d", e.ID)
	}
}

// TestStore_SnapshotIsCopy 快照修改不影响存储
func TestStore_SnapshotIsCopy(t *testing.T) {
	s := logstore.New(10)
	status := 200
	s.AppendRequest(domain.RequestKindResource, "img", "https://x/a.png", &status)
	status = 500

	snap := s.Requests()
	snap[0].URL = "changed"

	got := s.Requests()[0]
	if got.URL != "https://x/a.png" {
		t.Errorf("快照修改影响了存储: %s", got.URL)
	}
	if got.StatusCode() != 200 {
		t.Errorf("状态码预期 200，实际 %d", got.StatusCode())
	}
}

// TestStore_Subscribe 订阅方按顺序收到追加与清空事件
func TestStore_Subscribe(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	s := logstore.New(10, logstore.WithClock(func() time.Time { return fixed }))
	id, ch := s.Subscribe(8)

	s.AppendConsole(domain.ConsoleLevelError, "boom")
	s.AppendRequest(domain.RequestKindNavigate, "GET", "https://a.com", nil)
	s.Clear()

	evt := <-ch
	if evt.Type != logstore.EventConsole || evt.Console.Message != "boom" {
		t.Errorf("第一个事件不符合预期: %+v", evt)
	}
	if !evt.Console.Timestamp.Equal(fixed) {
		t.Errorf("时间戳预期 %v，实际 %v", fixed, evt.Console.Timestamp)
	}
	if evt = <-ch; evt.Type != logstore.EventRequest || evt.Request.Kind != domain.RequestKindNavigate {
		t.Errorf("第二个事件不符合预期: %+v", evt)
	}
	if evt = <-ch; evt.Type != logstore.EventCleared {
		t.Errorf("第三个事件预期为 cleared，实际 %s", evt.Type)
	}

	s.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("取消订阅后通道应已关闭")
	}
	s.Unsubscribe(id)
}

// TestStore_ConcurrentAppend 多个来源并发写入时不丢失、不越界
func TestStore_ConcurrentAppend(t *testing.T) {
	s := logstore.New(100)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.AppendConsole(domain.ConsoleLevelLog, "x")
			}
		}()
	}
	wg.Wait()

	stats := s.Stats()
	if stats.TotalAdded != 200 {
		t.Errorf("总追加数预期 200，实际 %d", stats.TotalAdded)
	}
	if stats.Console != 100 || stats.TotalEvicted != 100 {
		t.Errorf("统计不符合预期: %+v", stats)
	}
}
