package config

import (
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
	Parse struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"parse"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	cfg := &Config{Version: "1.0.0"}
	cfg.Sqlite.Db = "data.db"
	cfg.Sqlite.Prefix = "harforge_"
	cfg.Log.Level = "debug"
	cfg.Log.Writer = []string{"file", "console"}
	cfg.Parse.Concurrency = 4
	return cfg
}

// Load 从 YAML 文件加载配置，未设置的字段保留默认值
func Load(path string) (*Config, error) {
	cfg := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Parse.Concurrency <= 0 {
		cfg.Parse.Concurrency = 4
	}
	return cfg, nil
}
