// Package surrealx 把抽象的增删改查操作翻译成 SurrealQL 在 SurrealDB 上执行。
//
// 典型用法是从配置文件构造一个 Adapter:
//
//	a, err := surrealx.NewFromConfig("surrealx.yaml")
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//	user, err := a.Create(ctx, "user", adapter.Record{"email": "a@b.com"})
package surrealx

import (
	"github.com/hatlonely/surrealx/adapter"
	"github.com/hatlonely/surrealx/cfg"
	"github.com/hatlonely/surrealx/schema"
	"github.com/pkg/errors"
)

// Config 配置文件的结构
type Config struct {
	Adapter adapter.Options   `cfg:"adapter"`
	Schema  schema.Definition `cfg:"schema"`
}

// LoadConfig 按扩展名加载 yaml/toml/json 配置，填充默认值并校验
func LoadConfig(filename string) (*Config, error) {
	var config Config
	if err := cfg.Load(filename, &config); err != nil {
		return nil, errors.WithMessagef(err, "load config %s", filename)
	}
	return &config, nil
}

// New 解析 schema 并构造 Adapter，连接在第一次操作时建立
func New(config *Config) (*adapter.Adapter, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	s, err := schema.NewWithDefinition(&config.Schema)
	if err != nil {
		return nil, err
	}
	return adapter.NewWithOptions(s, &config.Adapter)
}

// NewFromConfig 等价于 LoadConfig 之后 New
func NewFromConfig(filename string) (*adapter.Adapter, error) {
	config, err := LoadConfig(filename)
	if err != nil {
		return nil, err
	}
	return New(config)
}
