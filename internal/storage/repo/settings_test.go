package repo_test

import (
	"context"
	"reflect"
	"testing"

	"webprobe/internal/storage/db"
	"webprobe/internal/storage/model"
	"webprobe/internal/storage/repo"
)

// setupSettingsTestDB 创建用于 SettingsRepo 测试的内存数据库。
func setupSettingsTestDB(t *testing.T) *repo.SettingsRepo {
	gdb, err := db.New(db.Options{
		FullPath: ":memory:",
		Prefix:   "test_",
	})
	if err != nil {
		t.Fatalf("创建内存数据库失败: %v", err)
	}

	if err := db.Migrate(gdb, &model.Setting{}); err != nil {
		t.Fatalf("迁移数据库失败: %v", err)
	}

	return repo.NewSettingsRepo(gdb, repo.HistoryLimits{URL: 3, UA: 3, Script: 4})
}

// TestSettingsRepo_SetAndGet 测试设置的保存与读取。
func TestSettingsRepo_SetAndGet(t *testing.T) {
	r := setupSettingsTestDB(t)
	ctx := context.Background()

	if err := r.Set(ctx, "test_key", "test_value"); err != nil {
		t.Fatalf("设置失败: %v", err)
	}

	got, err := r.Get(ctx, "test_key")
	if err != nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if got != "test_value" {
		t.Errorf("预期值为 test_value，实际为 %s", got)
	}

	if v := r.GetWithDefault(ctx, "missing", "fallback"); v != "fallback" {
		t.Errorf("预期返回默认值 fallback，实际返回 %s", v)
	}
}

// TestSettingsRepo_SetMultiple 测试批量设置及删除。
func TestSettingsRepo_SetMultiple(t *testing.T) {
	r := setupSettingsTestDB(t)
	ctx := context.Background()

	kvs := map[string]string{"k1": "v1", "k2": "v2"}
	if err := r.SetMultiple(ctx, kvs); err != nil {
		t.Fatalf("批量设置失败: %v", err)
	}
	all, err := r.GetAll(ctx)
	if err != nil {
		t.Fatalf("获取全部设置失败: %v", err)
	}
	for k, v := range kvs {
		if all[k] != v {
			t.Errorf("键 %s 预期值 %s，实际值 %s", k, v, all[k])
		}
	}

	if err := r.DeleteByKey(ctx, "k1"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := r.Get(ctx, "k1"); err == nil {
		t.Error("预期键已删除，但仍然能获取到值")
	}
}

// TestSettingsRepo_RememberURL 测试最近 URL 及其历史的去重与容量。
func TestSettingsRepo_RememberURL(t *testing.T) {
	r := setupSettingsTestDB(t)
	ctx := context.Background()

	for _, u := range []string{"https://a", "https://b", "https://c", "https://a", "https://d"} {
		if _, err := r.RememberURL(ctx, u); err != nil {
			t.Fatalf("记录 URL 失败: %v", err)
		}
	}

	want := []string{"https://d", "https://a", "https://c"}
	got := r.History(ctx, model.SettingKeyURLHistory)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("URL 历史预期 %v，实际 %v", want, got)
	}
	if last := r.GetLastURL(ctx); last != "https://d" {
		t.Errorf("上次 URL 预期 https://d，实际 %s", last)
	}
}

// TestSettingsRepo_RememberScript 测试脚本历史的弯引号归一化与空值忽略。
func TestSettingsRepo_RememberScript(t *testing.T) {
	r := setupSettingsTestDB(t)
	ctx := context.Background()

	if _, err := r.RememberScript(ctx, "  console.log(“hi”)  "); err != nil {
		t.Fatalf("记录脚本失败: %v", err)
	}
	hist, err := r.RememberScript(ctx, "   ")
	if err != nil {
		t.Fatalf("记录空脚本失败: %v", err)
	}

	want := []string{`console.log("hi")`}
	if !reflect.DeepEqual(hist, want) {
		t.Errorf("脚本历史预期 %v，实际 %v", want, hist)
	}
}

// TestSettingsRepo_Defaults 测试未保存时返回默认值。
func TestSettingsRepo_Defaults(t *testing.T) {
	r := setupSettingsTestDB(t)
	ctx := context.Background()

	if ua := r.GetLastUserAgent(ctx); ua != "" {
		t.Errorf("默认 UA 预期为空，实际 %q", ua)
	}
	if u := r.GetDevToolsURL(ctx); u != "http://localhost:9222" {
		t.Errorf("DevToolsURL 默认值不符合预期，实际为 %s", u)
	}

	all, err := r.GetAllWithDefaults(ctx)
	if err != nil {
		t.Fatalf("获取设置失败: %v", err)
	}
	if all[model.SettingKeyLastURL] == "" {
		t.Error("默认 URL 不应为空")
	}
}

func TestUpdateHistory(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		value  string
		limit  int
		want   []string
	}{
		{"插入空列表", nil, "a", 8, []string{"a"}},
		{"已存在移到头部", []string{"a", "b", "c"}, "c", 8, []string{"c", "a", "b"}},
		{"超出容量截断", []string{"a", "b"}, "c", 2, []string{"c", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repo.UpdateHistory(tt.values, tt.value, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("UpdateHistory() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeHistory(t *testing.T) {
	raw, err := repo.EncodeHistory([]string{"x", `say "hi"`})
	if err != nil {
		t.Fatalf("编码失败: %v", err)
	}
	got := repo.DecodeHistory(raw)
	want := []string{"x", `say "hi"`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("解码结果预期 %v，实际 %v", want, got)
	}

	if got := repo.DecodeHistory("not json"); len(got) != 0 {
		t.Errorf("非法内容应解码为空列表，实际 %v", got)
	}
}
