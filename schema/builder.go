package schema

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

// EntityNamer 自定义实体名
type EntityNamer interface {
	EntityName() string
}

var timeType = reflect.TypeOf(time.Time{})

// FromStruct 从结构体构建 Entity
// 支持的 tag 格式：
// - `sdb:"name,type=string,required,unique,identifier,ref=user,refField=id,onDelete=cascade,default=1,storage=user_name"`
// - `sdb:"-"` 忽略字段
// 实体名优先取 EntityName() 方法，否则使用结构体名的 lowerCamel 形式
func FromStruct(v any) (Entity, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return Entity{}, errors.Wrapf(ErrConfiguration, "expected struct, got %T", v)
	}
	rt := rv.Type()

	entity := Entity{Name: strcase.ToLowerCamel(rt.Name())}
	if namer, ok := v.(EntityNamer); ok {
		entity.Name = namer.EntityName()
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("sdb")
		if tag == "-" {
			continue
		}
		field, err := parseFieldTag(sf, tag)
		if err != nil {
			return Entity{}, errors.WithMessagef(err, "field %s", sf.Name)
		}
		entity.Fields = append(entity.Fields, field)
	}

	return entity, nil
}

func parseFieldTag(sf reflect.StructField, tag string) (Field, error) {
	field := Field{
		Name: strcase.ToLowerCamel(sf.Name),
		Type: inferFieldType(sf.Type),
	}
	if field.Type == FieldTypeArray {
		field.ElementType = inferFieldType(indirect(sf.Type).Elem())
	}
	if tag == "" {
		return field, nil
	}

	parts := strings.Split(tag, ",")
	if parts[0] != "" && !strings.Contains(parts[0], "=") {
		field.Name = strings.TrimSpace(parts[0])
	}
	parts = parts[1:]

	var defaultValue *string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !hasValue {
			switch key {
			case "required":
				field.Required = true
			case "unique":
				field.Unique = true
			case "identifier":
				field.Identifier = true
			default:
				return Field{}, errors.Wrapf(ErrConfiguration, "unknown tag option %q", key)
			}
			continue
		}

		switch key {
		case "type":
			field.Type = FieldType(value)
		case "elem":
			field.ElementType = FieldType(value)
		case "storage":
			field.StorageName = value
		case "default":
			defaultValue = &value
		case "ref":
			if field.References == nil {
				field.References = &Reference{}
			}
			field.References.Entity = value
		case "refField":
			if field.References == nil {
				field.References = &Reference{}
			}
			field.References.Field = value
		case "onDelete":
			if field.References == nil {
				field.References = &Reference{}
			}
			field.References.OnDelete = OnDelete(value)
		default:
			return Field{}, errors.Wrapf(ErrConfiguration, "unknown tag option %q", key)
		}
	}

	if field.References != nil && field.References.Entity == "" {
		return Field{}, errors.Wrap(ErrConfiguration, "refField/onDelete without ref")
	}
	if defaultValue != nil {
		field.Default = parseDefaultValue(*defaultValue, field.Type)
	}
	return field, nil
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// inferFieldType 从 Go 类型推断字段类型
func inferFieldType(t reflect.Type) FieldType {
	t = indirect(t)
	if t == timeType {
		return FieldTypeDate
	}
	switch t.Kind() {
	case reflect.String:
		return FieldTypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return FieldTypeNumber
	case reflect.Bool:
		return FieldTypeBoolean
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return FieldTypeString
		}
		return FieldTypeArray
	default:
		return FieldTypeJSON
	}
}

// parseDefaultValue 解析默认值
func parseDefaultValue(value string, fieldType FieldType) any {
	switch fieldType {
	case FieldTypeNumber:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		return value
	case FieldTypeBoolean:
		return value == "true" || value == "1"
	default:
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			return value[1 : len(value)-1]
		}
		return value
	}
}
