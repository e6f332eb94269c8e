package cfg

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Node 解码后的配置树，可以绑定到任意结构体
// 绑定到 any 类型字段的 map 会保留为 *Node，交给 ref.New 在知道目标类型后再转换
type Node struct {
	data any
}

func NewNode(data any) *Node {
	return &Node{data: data}
}

// Data 原始数据
func (n *Node) Data() any {
	return n.data
}

// Sub 按点号分隔的 key 取子节点，不存在时返回空节点
func (n *Node) Sub(key string) *Node {
	cur := n.data
	for _, k := range strings.Split(key, ".") {
		if k == "" {
			continue
		}
		m, ok := normalize(cur).(map[string]any)
		if !ok {
			return NewNode(nil)
		}
		cur = m[k]
	}
	return NewNode(cur)
}

// ConvertTo 绑定到 object，object 必须是指针
func (n *Node) ConvertTo(object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("convert target must be a non-nil pointer, got %T", object)
	}
	return convert(normalize(n.data), rv.Elem(), "")
}

// normalize 把 yaml 解出的 map[any]any 统一成 map[string]any
func normalize(v any) any {
	switch val := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	case []map[string]any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = normalize(item)
		}
		return s
	}
	return v
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	nodeType     = reflect.TypeOf(&Node{})
)

func convert(src any, dst reflect.Value, path string) error {
	if src == nil {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.Type() == nodeType {
			dst.Set(reflect.ValueOf(NewNode(src)))
			return nil
		}
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convert(src, dst.Elem(), path)
	}

	sv := reflect.ValueOf(src)

	if dst.Type() == durationType {
		if s, ok := src.(string); ok {
			d, err := time.ParseDuration(s)
			if err != nil {
				return errors.Wrapf(err, "%s: parse duration", path)
			}
			dst.SetInt(int64(d))
			return nil
		}
	}

	switch dst.Kind() {
	case reflect.Interface:
		if _, ok := src.(map[string]any); ok && dst.Type().NumMethod() == 0 {
			dst.Set(reflect.ValueOf(NewNode(src)))
			return nil
		}
		if sv.Type().AssignableTo(dst.Type()) {
			dst.Set(sv)
			return nil
		}
	case reflect.Struct:
		m, ok := src.(map[string]any)
		if !ok {
			break
		}
		return convertStruct(m, dst, path)
	case reflect.Map:
		m, ok := src.(map[string]any)
		if !ok || dst.Type().Key().Kind() != reflect.String {
			break
		}
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), len(m)))
		}
		for k, item := range m {
			v := reflect.New(dst.Type().Elem()).Elem()
			if err := convert(item, v, join(path, k)); err != nil {
				return err
			}
			dst.SetMapIndex(reflect.ValueOf(k).Convert(dst.Type().Key()), v)
		}
		return nil
	case reflect.Slice:
		s, ok := src.([]any)
		if !ok {
			break
		}
		out := reflect.MakeSlice(dst.Type(), len(s), len(s))
		for i, item := range s {
			if err := convert(item, out.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	default:
		if sv.Type().AssignableTo(dst.Type()) {
			dst.Set(sv)
			return nil
		}
		if sv.Type().ConvertibleTo(dst.Type()) && sameFamily(sv.Kind(), dst.Kind()) {
			dst.Set(sv.Convert(dst.Type()))
			return nil
		}
	}
	return errors.Errorf("%s: cannot convert %T to %v", path, src, dst.Type())
}

func convertStruct(m map[string]any, dst reflect.Value, path string) error {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && f.Tag.Get("cfg") == "" {
			if err := convertStruct(m, dst.Field(i), path); err != nil {
				return err
			}
			continue
		}
		name := fieldKey(f)
		if name == "-" {
			continue
		}
		v, ok := lookup(m, name)
		if !ok {
			continue
		}
		if err := convert(v, dst.Field(i), join(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func fieldKey(f reflect.StructField) string {
	if tag := f.Tag.Get("cfg"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return f.Name
}

// lookup 先精确匹配，再忽略大小写匹配
func lookup(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func sameFamily(a, b reflect.Kind) bool {
	return family(a) != 0 && family(a) == family(b)
}

func family(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 1
	case reflect.String:
		return 2
	case reflect.Bool:
		return 3
	}
	return 0
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
