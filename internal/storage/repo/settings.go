package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"webprobe/internal/config"
	"webprobe/internal/storage/model"
	"webprobe/pkg/domain"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"
)

// HistoryLimits 各历史列表的容量
type HistoryLimits struct {
	URL    int
	UA     int
	Script int
}

// DefaultHistoryLimits URL/UA 保留 8 条，脚本保留 12 条
func DefaultHistoryLimits() HistoryLimits {
	return HistoryLimits{URL: 8, UA: 8, Script: 12}
}

// SettingsRepo 设置仓库
type SettingsRepo struct {
	BaseRepository[model.Setting]
	limits HistoryLimits
}

// NewSettingsRepo 创建设置仓库实例
func NewSettingsRepo(db *gorm.DB, limits HistoryLimits) *SettingsRepo {
	def := DefaultHistoryLimits()
	if limits.URL <= 0 {
		limits.URL = def.URL
	}
	if limits.UA <= 0 {
		limits.UA = def.UA
	}
	if limits.Script <= 0 {
		limits.Script = def.Script
	}
	return &SettingsRepo{
		BaseRepository: *NewBaseRepository[model.Setting](db),
		limits:         limits,
	}
}

// Get 获取设置值
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var setting model.Setting
	err := r.Db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrRecordNotFound
	}
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}

// GetWithDefault 获取设置值，不存在时返回默认值
func (r *SettingsRepo) GetWithDefault(ctx context.Context, key, defaultValue string) string {
	val, err := r.Get(ctx, key)
	if err != nil {
		return defaultValue
	}
	return val
}

// Set 设置值（存在则更新，不存在则创建）
func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	return r.Db.WithContext(ctx).Save(&model.Setting{Key: key, Value: value, UpdatedAt: time.Now()}).Error
}

// DeleteByKey 根据 key 删除设置
func (r *SettingsRepo) DeleteByKey(ctx context.Context, key string) error {
	return r.Db.WithContext(ctx).Delete(&model.Setting{}, "key = ?", key).Error
}

// GetAll 获取所有设置
func (r *SettingsRepo) GetAll(ctx context.Context) (map[string]string, error) {
	var settings []model.Setting
	if err := r.Db.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string, len(settings))
	for _, s := range settings {
		result[s.Key] = s.Value
	}
	return result, nil
}

// GetAllWithDefaults 获取所有设置，未保存的键以默认值补齐
func (r *SettingsRepo) GetAllWithDefaults(ctx context.Context) (map[string]string, error) {
	stored, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	def := config.GetDefaultSettings()
	out := map[string]string{
		model.SettingKeyLanguage:      def.Language,
		model.SettingKeyTheme:         def.Theme,
		model.SettingKeyLastURL:       def.URL,
		model.SettingKeyLastUserAgent: def.UserAgent,
		model.SettingKeyDevToolsURL:   def.DevToolsURL,
		model.SettingKeyBrowserArgs:   def.BrowserArgs,
		model.SettingKeyBrowserPath:   def.BrowserPath,
	}
	for k, v := range stored {
		out[k] = v
	}
	return out, nil
}

// SetMultiple 批量设置
func (r *SettingsRepo) SetMultiple(ctx context.Context, kvs map[string]string) error {
	return r.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for key, value := range kvs {
			if err := tx.Save(&model.Setting{Key: key, Value: value, UpdatedAt: now}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// History 读取指定键下的历史列表（最近使用的在前）
func (r *SettingsRepo) History(ctx context.Context, key string) []string {
	return DecodeHistory(r.GetWithDefault(ctx, key, ""))
}

// PushHistory 将值插入历史列表头部：已存在则先移除旧位置，超出容量截断尾部
func (r *SettingsRepo) PushHistory(ctx context.Context, key, value string, limit int) ([]string, error) {
	value = strings.TrimSpace(domain.NormalizeQuotes(value))
	current := r.History(ctx, key)
	if value == "" {
		return current, nil
	}
	updated := UpdateHistory(current, value, limit)
	encoded, err := EncodeHistory(updated)
	if err != nil {
		return nil, err
	}
	if err := r.Set(ctx, key, encoded); err != nil {
		return nil, err
	}
	return updated, nil
}

// RememberURL 记录最近加载的 URL 并写入 URL 历史
func (r *SettingsRepo) RememberURL(ctx context.Context, url string) ([]string, error) {
	url = strings.TrimSpace(domain.NormalizeQuotes(url))
	if url == "" {
		return r.History(ctx, model.SettingKeyURLHistory), nil
	}
	if err := r.Set(ctx, model.SettingKeyLastURL, url); err != nil {
		return nil, err
	}
	return r.PushHistory(ctx, model.SettingKeyURLHistory, url, r.limits.URL)
}

// RememberUserAgent 记录最近使用的设备标识并写入 UA 历史
func (r *SettingsRepo) RememberUserAgent(ctx context.Context, ua string) ([]string, error) {
	ua = strings.TrimSpace(domain.NormalizeQuotes(ua))
	if err := r.Set(ctx, model.SettingKeyLastUserAgent, ua); err != nil {
		return nil, err
	}
	// 空值表示浏览器默认标识，只记为上次使用
	if ua == "" {
		return r.History(ctx, model.SettingKeyUAHistory), nil
	}
	return r.PushHistory(ctx, model.SettingKeyUAHistory, ua, r.limits.UA)
}

// RememberScript 写入注入脚本历史
func (r *SettingsRepo) RememberScript(ctx context.Context, script string) ([]string, error) {
	return r.PushHistory(ctx, model.SettingKeyJSHistory, script, r.limits.Script)
}

// GetLastURL 获取上次加载的 URL
func (r *SettingsRepo) GetLastURL(ctx context.Context) string {
	return r.GetWithDefault(ctx, model.SettingKeyLastURL, config.GetDefaultSettings().URL)
}

// GetLastUserAgent 获取上次使用的设备标识
func (r *SettingsRepo) GetLastUserAgent(ctx context.Context) string {
	return r.GetWithDefault(ctx, model.SettingKeyLastUserAgent, config.GetDefaultSettings().UserAgent)
}

// GetDevToolsURL 获取 DevTools URL
func (r *SettingsRepo) GetDevToolsURL(ctx context.Context) string {
	return r.GetWithDefault(ctx, model.SettingKeyDevToolsURL, config.GetDefaultSettings().DevToolsURL)
}

// GetBrowserPath 获取浏览器路径
func (r *SettingsRepo) GetBrowserPath(ctx context.Context) string {
	return r.GetWithDefault(ctx, model.SettingKeyBrowserPath, "")
}

// GetBrowserArgs 获取浏览器额外参数
func (r *SettingsRepo) GetBrowserArgs(ctx context.Context) string {
	return r.GetWithDefault(ctx, model.SettingKeyBrowserArgs, "")
}

// UpdateHistory 最近使用优先的去重插入
func UpdateHistory(values []string, value string, limit int) []string {
	out := make([]string, 0, len(values)+1)
	out = append(out, value)
	for _, v := range values {
		if v != value {
			out = append(out, v)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EncodeHistory 将历史列表编码为 JSON 数组
func EncodeHistory(values []string) (string, error) {
	raw := "[]"
	for _, v := range values {
		var err error
		raw, err = sjson.Set(raw, "-1", v)
		if err != nil {
			return "", err
		}
	}
	return raw, nil
}

// DecodeHistory 解析 JSON 数组形式的历史列表，非法内容视为空
func DecodeHistory(raw string) []string {
	res := gjson.Parse(raw)
	if !res.IsArray() {
		return []string{}
	}
	out := make([]string, 0)
	for _, item := range res.Array() {
		v := strings.TrimSpace(item.String())
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
