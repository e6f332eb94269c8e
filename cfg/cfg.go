// Package cfg 把 yaml/toml/json/ini 配置文件加载到带 cfg tag 的结构体里，
// 加载后依次填充 def tag 默认值并用 validate tag 校验。
package cfg

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Format 配置文件格式
type Format string

const (
	FormatYaml Format = "yaml"
	FormatToml Format = "toml"
	FormatJson Format = "json"
	FormatIni  Format = "ini"
)

// FormatOf 根据文件后缀推断格式
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYaml, nil
	case ".toml":
		return FormatToml, nil
	case ".json":
		return FormatJson, nil
	case ".ini":
		return FormatIni, nil
	}
	return "", errors.Errorf("unsupported config file extension %q", filepath.Ext(filename))
}

// Load 读取配置文件并绑定到 object，object 必须是结构体指针
func Load(filename string, object any) error {
	format, err := FormatOf(filename)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrapf(err, "read config file %s", filename)
	}
	return errors.WithMessagef(Unmarshal(data, format, object), "load config file %s", filename)
}

// Unmarshal 解码配置数据，然后设置默认值并校验
func Unmarshal(data []byte, format Format, object any) error {
	node, err := Decode(data, format)
	if err != nil {
		return err
	}
	if err := node.ConvertTo(object); err != nil {
		return err
	}
	if err := SetDefaults(object); err != nil {
		return errors.WithMessage(err, "set defaults")
	}
	return Validate(object)
}

// Decode 把原始数据解码成通用的 Node
func Decode(data []byte, format Format) (*Node, error) {
	var raw any
	var err error
	switch format {
	case FormatYaml:
		err = yaml.Unmarshal(data, &raw)
	case FormatToml:
		var m map[string]any
		_, err = toml.Decode(string(data), &m)
		raw = m
	case FormatJson:
		err = json.Unmarshal(data, &raw)
	case FormatIni:
		raw, err = decodeIni(data)
	default:
		return nil, errors.Errorf("unsupported config format %q", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", format)
	}
	return NewNode(raw), nil
}
