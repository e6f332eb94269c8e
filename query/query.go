// Package query 把抽象过滤条件编译成 SurrealQL 谓词和绑定参数。
package query

import (
	"github.com/hatlonely/surrealx/schema"
	"github.com/pkg/errors"
)

// ErrInvalidCondition 条件本身不合法，属于配置类错误
var ErrInvalidCondition = errors.WithMessage(schema.ErrConfiguration, "invalid condition")

// Operator 比较操作符
type Operator string

const (
	OperatorEq         Operator = "eq"
	OperatorNe         Operator = "ne"
	OperatorLt         Operator = "lt"
	OperatorLte        Operator = "lte"
	OperatorGt         Operator = "gt"
	OperatorGte        Operator = "gte"
	OperatorIn         Operator = "in"
	OperatorContains   Operator = "contains"
	OperatorStartsWith Operator = "starts_with"
	OperatorEndsWith   Operator = "ends_with"
)

// Connector 与前一个条件的连接方式
type Connector string

const (
	ConnectorAnd Connector = "AND"
	ConnectorOr  Connector = "OR"
)

// Condition 单个过滤条件，Value 为 nil 表示字段未设置
type Condition struct {
	Field     string    `cfg:"field" json:"field"`
	Operator  Operator  `cfg:"operator" json:"operator,omitempty"`
	Value     any       `cfg:"value" json:"value"`
	Connector Connector `cfg:"connector" json:"connector,omitempty"`
}

// Eq 等值条件
func Eq(field string, value any) Condition {
	return Condition{Field: field, Operator: OperatorEq, Value: value}
}

// Or 把条件的连接方式改为 OR
func (c Condition) Or() Condition {
	c.Connector = ConnectorOr
	return c
}

// Predicate 编译结果，Expr 为空时调用方不应该生成 WHERE 子句
type Predicate struct {
	Expr string
	Vars map[string]any
}

func (p *Predicate) Empty() bool {
	return p == nil || p.Expr == ""
}

// Direction 排序方向
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort 排序字段
type Sort struct {
	Field     string    `cfg:"field" json:"field"`
	Direction Direction `cfg:"direction" json:"direction,omitempty"`
}
