package domain_test

import (
	"testing"

	"webprobe/pkg/domain"
)

func TestRequestKind_Classification(t *testing.T) {
	tests := []struct {
		kind       domain.RequestKind
		valid      bool
		page       bool
		navigation bool
	}{
		{domain.RequestKindFetch, true, true, false},
		{domain.RequestKindXHR, true, true, false},
		{domain.RequestKindResource, true, true, false},
		{domain.RequestKindNavigate, true, false, true},
		{domain.RequestKindNavigationAction, true, false, true},
		{domain.RequestKindNavigationResponse, true, false, true},
		{"websocket", false, false, false},
		{"", false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.kind.IsPageKind(); got != tt.page {
				t.Errorf("IsPageKind() = %v, want %v", got, tt.page)
			}
			if got := tt.kind.IsNavigation(); got != tt.navigation {
				t.Errorf("IsNavigation() = %v, want %v", got, tt.navigation)
			}
		})
	}
}

func TestConsoleLevel_Valid(t *testing.T) {
	for _, l := range domain.ConsoleLevels {
		if !l.Valid() {
			t.Errorf("级别 %s 应合法", l)
		}
	}
	for _, l := range []domain.ConsoleLevel{"info", "debug", "ERROR", ""} {
		if l.Valid() {
			t.Errorf("级别 %q 不应合法", l)
		}
	}
}

// TestDefaultFilters 默认过滤状态开启全部级别与类型，搜索为空
func TestDefaultFilters(t *testing.T) {
	cf := domain.NewConsoleFilter()
	if len(cf.Levels) != 3 || cf.Search != "" {
		t.Errorf("控制台默认过滤不符合预期: %+v", cf)
	}
	for _, l := range domain.ConsoleLevels {
		if !cf.Levels[l] {
			t.Errorf("级别 %s 默认应开启", l)
		}
	}

	rf := domain.NewRequestFilter()
	if len(rf.Kinds) != 6 || rf.Search != "" || rf.OnlyErrors {
		t.Errorf("请求默认过滤不符合预期: %+v", rf)
	}

	// 两个默认实例互不影响
	cf.Levels[domain.ConsoleLevelLog] = false
	if !domain.NewConsoleFilter().Levels[domain.ConsoleLevelLog] {
		t.Error("修改一个过滤实例不应影响新实例")
	}
}

func TestRequestEntry_StatusCode(t *testing.T) {
	code := 404
	if got := (domain.RequestEntry{Status: &code}).StatusCode(); got != 404 {
		t.Errorf("StatusCode() = %d, want 404", got)
	}
	if got := (domain.RequestEntry{}).StatusCode(); got != 0 {
		t.Errorf("未知状态码应为 0，实际 %d", got)
	}
}

func TestNormalizeQuotes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"console.log(“hi”)", `console.log("hi")`},
		{"alert(‘x’)", "alert('x')"},
		{`plain "ascii"`, `plain "ascii"`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := domain.NormalizeQuotes(tt.input); got != tt.want {
			t.Errorf("NormalizeQuotes(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
