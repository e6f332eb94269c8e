// Package ref 维护一个「命名空间:类型名 -> 构造函数」的注册表，
// 让 dialer、日志输出器、id 生成器等组件可以直接从配置文件里的
// TypeOptions 构造出来。
package ref

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"
)

// TypeOptions 描述一个可以通过注册表构造的对象
type TypeOptions struct {
	Namespace string `cfg:"namespace"`
	Type      string `cfg:"type" validate:"required"`
	Options   any    `cfg:"options"`
}

// Convertable 由配置节点实现，New 会把它转换成构造函数需要的参数类型
type Convertable interface {
	ConvertTo(object any) error
}

var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	registry  sync.Map
)

type constructor struct {
	fn           reflect.Value
	hasOptions   bool
	returnsError bool
}

func newConstructor(fn any) (*constructor, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, errors.Errorf("constructor must be a function, got %T", fn)
	}
	ft := fv.Type()
	if ft.NumIn() > 1 {
		return nil, errors.Errorf("constructor must take 0 or 1 parameters, got %d", ft.NumIn())
	}
	if ft.NumOut() == 0 || ft.NumOut() > 2 {
		return nil, errors.Errorf("constructor must return 1 or 2 values, got %d", ft.NumOut())
	}
	if ft.NumOut() == 2 && !ft.Out(1).Implements(errorType) {
		return nil, errors.New("second return value of constructor must be an error")
	}
	return &constructor{
		fn:           fv,
		hasOptions:   ft.NumIn() == 1,
		returnsError: ft.NumOut() == 2,
	}, nil
}

func (c *constructor) call(options any) (any, error) {
	var args []reflect.Value
	if c.hasOptions {
		arg, err := c.argument(options)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	out := c.fn.Call(args)
	if c.returnsError && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

// argument 把 options 适配成构造函数的参数类型
// nil 会变成参数类型的零值，指针参数则是一个新分配的零值对象
func (c *constructor) argument(options any) (reflect.Value, error) {
	pt := c.fn.Type().In(0)

	if options == nil {
		if pt.Kind() == reflect.Ptr {
			return reflect.New(pt.Elem()), nil
		}
		return reflect.Zero(pt), nil
	}

	if convertable, ok := options.(Convertable); ok {
		target := pt
		if pt.Kind() == reflect.Ptr {
			target = pt.Elem()
		}
		v := reflect.New(target)
		if err := convertable.ConvertTo(v.Interface()); err != nil {
			return reflect.Value{}, errors.Wrapf(err, "convert options to %v", pt)
		}
		if pt.Kind() == reflect.Ptr {
			return v, nil
		}
		return v.Elem(), nil
	}

	ov := reflect.ValueOf(options)
	switch {
	case ov.Type().AssignableTo(pt):
		return ov, nil
	case pt.Kind() == reflect.Ptr && ov.Type().AssignableTo(pt.Elem()):
		v := reflect.New(pt.Elem())
		v.Elem().Set(ov)
		return v, nil
	case ov.Kind() == reflect.Ptr && !ov.IsNil() && ov.Elem().Type().AssignableTo(pt):
		return ov.Elem(), nil
	}
	return reflect.Value{}, errors.Errorf("options of type %T cannot be passed as %v", options, pt)
}

func key(namespace, typeName string) string {
	return namespace + ":" + typeName
}

// Register 注册构造函数，构造函数的形式为 func([options]) (obj[, error])
// 同一个 key 重复注册同一个函数是允许的
func Register(namespace string, typeName string, fn any) error {
	c, err := newConstructor(fn)
	if err != nil {
		return errors.WithMessagef(err, "register %s", key(namespace, typeName))
	}

	existing, loaded := registry.LoadOrStore(key(namespace, typeName), c)
	if loaded && existing.(*constructor).fn.Pointer() != c.fn.Pointer() {
		return errors.Errorf("constructor for %s already registered with a different function", key(namespace, typeName))
	}
	return nil
}

// MustRegister 注册失败时 panic，用于 init
func MustRegister(namespace string, typeName string, fn any) {
	if err := Register(namespace, typeName, fn); err != nil {
		panic(err)
	}
}

// RegisterT 使用 T 的包路径和类型名作为 key 注册
func RegisterT[T any](fn any) error {
	namespace, typeName, err := typeKey[T]()
	if err != nil {
		return err
	}
	return Register(namespace, typeName, fn)
}

// MustRegisterT 是 RegisterT 的 panic 版本
func MustRegisterT[T any](fn any) {
	if err := RegisterT[T](fn); err != nil {
		panic(err)
	}
}

// New 通过注册表构造对象
func New(namespace string, typeName string, options any) (any, error) {
	v, ok := registry.Load(key(namespace, typeName))
	if !ok {
		return nil, errors.Errorf("constructor not found for %s", key(namespace, typeName))
	}
	obj, err := v.(*constructor).call(options)
	if err != nil {
		return nil, errors.WithMessagef(err, "new %s", key(namespace, typeName))
	}
	return obj, nil
}

// NewWithOptions 通过 TypeOptions 构造对象并断言为 T，T 通常是一个接口
func NewWithOptions[T any](options *TypeOptions) (T, error) {
	var zero T
	if options == nil {
		return zero, errors.New("type options is nil")
	}
	obj, err := New(options.Namespace, options.Type, options.Options)
	if err != nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, errors.Errorf("%s built %T, which is not a %v", key(options.Namespace, options.Type), obj, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}

func typeKey[T any]() (string, string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", "", errors.Errorf("cannot derive a registry key from %v", t)
	}
	return t.PkgPath(), t.Name(), nil
}
