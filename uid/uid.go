// Package uid 提供可以作为字段默认值生成器的 id 生成器。
package uid

import (
	"github.com/hatlonely/surrealx/ref"
	"github.com/hatlonely/surrealx/uid/intgen"
	"github.com/hatlonely/surrealx/uid/strgen"
	"github.com/pkg/errors"
)

// 生成器默认所在的命名空间，配置里的 namespace 为空时按类型名依次查找
var namespaces = []string{
	"github.com/hatlonely/surrealx/uid/strgen",
	"github.com/hatlonely/surrealx/uid/intgen",
}

// NewGeneratorWithOptions 构造一个零参数生成函数，返回 string 或 int64
func NewGeneratorWithOptions(options *ref.TypeOptions) (func() any, error) {
	if options == nil {
		return nil, errors.New("generator options is nil")
	}

	var obj any
	var err error
	if options.Namespace != "" {
		obj, err = ref.New(options.Namespace, options.Type, options.Options)
	} else {
		for _, ns := range namespaces {
			if obj, err = ref.New(ns, options.Type, options.Options); err == nil {
				break
			}
		}
	}
	if err != nil {
		return nil, errors.WithMessage(err, "create id generator")
	}

	switch g := obj.(type) {
	case strgen.StrGenerator:
		return func() any { return g.Generate() }, nil
	case intgen.IntGenerator:
		return func() any { return g.Generate() }, nil
	}
	return nil, errors.Errorf("%T is not an id generator", obj)
}
