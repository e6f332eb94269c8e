package cfg

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

// decodeIni 把 ini 解码成嵌套 map，section 名按点号展开成多层
// [adapter.connection] 对应 {"adapter": {"connection": {...}}}
func decodeIni(data []byte) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		AllowShadows:             true,
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, errors.Wrap(err, "load ini")
	}

	result := map[string]any{}
	for _, section := range file.Sections() {
		target := result
		if section.Name() != ini.DefaultSection {
			for _, name := range strings.Split(section.Name(), ".") {
				sub, ok := target[name].(map[string]any)
				if !ok {
					sub = map[string]any{}
					target[name] = sub
				}
				target = sub
			}
		}
		for _, key := range section.Keys() {
			target[key.Name()] = iniValue(key)
		}
	}
	return result, nil
}

func iniValue(key *ini.Key) any {
	if shadows := key.ValueWithShadows(); len(shadows) > 1 {
		values := make([]any, len(shadows))
		for i, s := range shadows {
			values[i] = iniScalar(s)
		}
		return values
	}

	value := key.String()
	// 不含空格的逗号分隔值视为数组
	if strings.Contains(value, ",") && !strings.Contains(value, " ") {
		parts := strings.Split(value, ",")
		values := make([]any, len(parts))
		for i, part := range parts {
			values[i] = iniScalar(part)
		}
		return values
	}
	return iniScalar(value)
}

func iniScalar(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
