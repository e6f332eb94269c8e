// Package codec 在抽象值和 SurrealDB 原生值之间转换。
//
// 记录 id 编码为 models.RecordID，日期编码为 models.CustomDateTime，解码时还原为字符串和 time.Time。
package codec

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hatlonely/surrealx/schema"
	"github.com/pkg/errors"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// Action 编码场景
type Action int

const (
	// ActionCreate 写入新记录，缺省字段使用默认值
	ActionCreate Action = iota
	// ActionUpdate 更新记录，调用方给出的值原样写入
	ActionUpdate
	// ActionMatch 等值和集合匹配，id 字段转换为记录 id
	ActionMatch
	// ActionCompare 范围比较和字符串匹配，不做记录 id 转换
	ActionCompare
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionMatch:
		return "match"
	case ActionCompare:
		return "compare"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// Codec 无状态，可以并发使用
type Codec struct {
	schema *schema.Schema
}

func New(s *schema.Schema) *Codec {
	return &Codec{schema: s}
}

func (c *Codec) Schema() *schema.Schema {
	return c.schema
}

// Encode 按以下顺序转换，命中即返回:
// 更新原样返回；空值且有默认值时先生成默认值；id 字段转为 RecordID；时间转为 CustomDateTime；其他原样返回
func (c *Codec) Encode(entity string, f *schema.Field, value any, action Action) any {
	if action == ActionUpdate {
		return value
	}
	if value == nil && f != nil {
		// 默认值继续走后面的规则，生成的 id 同样要转成 RecordID
		if v, ok := f.DefaultValue(); ok {
			value = v
		}
	}
	if f != nil && f.Type == schema.FieldTypeArray {
		if elems, ok := ToSlice(value); ok {
			elem := f.Element()
			out := make([]any, len(elems))
			for i, v := range elems {
				out[i] = c.encodeScalar(entity, elem, v, action)
			}
			return out
		}
	}
	return c.encodeScalar(entity, f, value, action)
}

func (c *Codec) encodeScalar(entity string, f *schema.Field, value any, action Action) any {
	if value == nil {
		return nil
	}
	if action != ActionCompare {
		if target, ok := c.schema.IdentifierTarget(entity, f); ok {
			if id, ok := c.recordID(target, value); ok {
				return id
			}
		}
	}
	switch v := value.(type) {
	case models.RecordID, *models.RecordID, models.CustomDateTime, *models.CustomDateTime:
		return value
	case time.Time:
		return models.CustomDateTime{Time: v}
	case *time.Time:
		if v == nil {
			return nil
		}
		return models.CustomDateTime{Time: *v}
	case string:
		if f != nil && f.Type == schema.FieldTypeString {
			return value
		}
		if t, ok := parseDateTime(v); ok {
			return models.CustomDateTime{Time: t}
		}
	}
	return value
}

// recordID 字符串和整数转换为 RecordID，已经是 RecordID 的原样返回
func (c *Codec) recordID(entity string, value any) (any, bool) {
	switch v := value.(type) {
	case models.RecordID, *models.RecordID:
		return value, true
	case string:
		table, err := c.schema.TableName(entity)
		if err != nil {
			return nil, false
		}
		if v == "" {
			return value, true
		}
		return models.RecordID{Table: table, ID: strings.TrimPrefix(v, table+":")}, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		table, err := c.schema.TableName(entity)
		if err != nil {
			return nil, false
		}
		return models.RecordID{Table: table, ID: v}, true
	}
	return nil, false
}

// EncodeRecord 编码整条记录并把逻辑字段名换成存储字段名，创建时补齐缺省字段的默认值
func (c *Codec) EncodeRecord(entity string, record map[string]any, action Action) (map[string]any, error) {
	e, err := c.schema.Entity(entity)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(record))
	for name, value := range record {
		f, ok := e.Field(name)
		if !ok {
			return nil, errors.Wrapf(schema.ErrConfiguration, "unknown field %q on entity %q", name, entity)
		}
		out[f.StorageName] = c.Encode(entity, f, value, action)
	}
	if action == ActionCreate {
		for i := range e.Fields {
			f := &e.Fields[i]
			if _, ok := record[f.Name]; ok {
				continue
			}
			if v, ok := f.DefaultValue(); ok {
				out[f.StorageName] = c.Encode(entity, f, v, action)
			}
		}
	}
	return out, nil
}

// Decode RecordID 还原为 id 字符串，CustomDateTime 还原为 time.Time，其他值转换成可以 json 序列化的形式
func (c *Codec) Decode(f *schema.Field, value any) any {
	if f != nil && f.Type == schema.FieldTypeDate {
		if s, ok := value.(string); ok {
			if t, ok := parseDateTime(s); ok {
				return t
			}
		}
	}
	if f != nil && f.Type == schema.FieldTypeArray {
		if elems, ok := value.([]any); ok {
			elem := f.Element()
			out := make([]any, len(elems))
			for i, v := range elems {
				out[i] = c.Decode(elem, v)
			}
			return out
		}
	}
	return Normalize(value)
}

// DecodeRecord 解码一行结果并把存储字段名换回逻辑字段名，schema 中没有的列按原名保留
func (c *Codec) DecodeRecord(entity string, row map[string]any) (map[string]any, error) {
	e, err := c.schema.Entity(entity)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(row))
	for name, value := range row {
		f, ok := e.FieldByStorageName(name)
		if !ok {
			out[name] = Normalize(value)
			continue
		}
		out[f.Name] = c.Decode(f, value)
	}
	return out, nil
}

// Normalize 展开原生类型，map[any]any 转为 map[string]any
func Normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case models.RecordID:
		return idString(v.ID)
	case *models.RecordID:
		if v == nil {
			return nil
		}
		return idString(v.ID)
	case models.CustomDateTime:
		return v.Time.UTC()
	case *models.CustomDateTime:
		if v == nil {
			return nil
		}
		return v.Time.UTC()
	case time.Time:
		// 客户端按本地时区解出 datetime，统一成 UTC
		return v.UTC()
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[fmt.Sprint(key)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Normalize(val)
		}
		return out
	}
	return value
}

func idString(id any) string {
	if s, ok := id.(string); ok {
		return s
	}
	return fmt.Sprint(id)
}

func parseDateTime(s string) (time.Time, bool) {
	// 快速排除明显不是时间的字符串
	if len(s) < len("2006-01-02T15:04:05Z") || s[4] != '-' || s[10] != 'T' {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ToSlice 把任意切片转换为 []any，不是切片时返回 false
func ToSlice(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
