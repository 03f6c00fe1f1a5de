package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`
	Sqlite  struct {
		Db     string `yaml:"db"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`
	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
	} `yaml:"log"`
	Capture struct {
		Capacity        int    `yaml:"capacity"`        // 每类日志的最大条数
		ReportMalformed bool   `yaml:"reportMalformed"` // 桥接消息解析失败时是否写入一条控制台错误
		BindingName     string `yaml:"bindingName"`     // 页面内桥接函数名
		Archive         bool   `yaml:"archive"`         // 是否将捕获的条目归档到数据库
	} `yaml:"capture"`
	Eval struct {
		Concurrency     int `yaml:"concurrency"`
		PendingCapacity int `yaml:"pendingCapacity"`
	} `yaml:"eval"`
	History struct {
		URLLimit    int `yaml:"urlLimit"`
		UALimit     int `yaml:"uaLimit"`
		ScriptLimit int `yaml:"scriptLimit"`
	} `yaml:"history"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.Sqlite.Db = "data.db"
	cfg.Sqlite.Prefix = "webprobe_"
	cfg.Log.Level = "debug"
	// file需要在console之前，因为打包后浏览器控制台日志无法写入会影响文件日志
	cfg.Log.Writer = []string{"file", "console"}
	cfg.Capture.Capacity = 500
	cfg.Capture.BindingName = "__webprobeBridge"
	cfg.Eval.Concurrency = 2
	cfg.Eval.PendingCapacity = 16
	cfg.History.URLLimit = 8
	cfg.History.UALimit = 8
	cfg.History.ScriptLimit = 12
	cfg.HTTP.Addr = "127.0.0.1:7070"
	return cfg
}

// Load 读取 YAML 配置文件并覆盖默认值，path 为空时直接返回默认配置
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize 将非法取值回退为默认值
func (c *Config) normalize() {
	def := NewConfig()
	if c.Capture.Capacity <= 0 {
		c.Capture.Capacity = def.Capture.Capacity
	}
	if c.Capture.BindingName == "" {
		c.Capture.BindingName = def.Capture.BindingName
	}
	if c.Eval.Concurrency <= 0 {
		c.Eval.Concurrency = def.Eval.Concurrency
	}
	if c.Eval.PendingCapacity <= 0 {
		c.Eval.PendingCapacity = def.Eval.PendingCapacity
	}
	if c.History.URLLimit <= 0 {
		c.History.URLLimit = def.History.URLLimit
	}
	if c.History.UALimit <= 0 {
		c.History.UALimit = def.History.UALimit
	}
	if c.History.ScriptLimit <= 0 {
		c.History.ScriptLimit = def.History.ScriptLimit
	}
}
