package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hatlonely/surrealx/codec"
	"github.com/hatlonely/surrealx/schema"
	"github.com/pkg/errors"
)

var comparisons = map[Operator]string{
	OperatorEq:  "=",
	OperatorNe:  "!=",
	OperatorLt:  "<",
	OperatorLte: "<=",
	OperatorGt:  ">",
	OperatorGte: ">=",
}

var unsafeParamChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Compiler 无状态，可以并发使用
type Compiler struct {
	schema *schema.Schema
	codec  *codec.Codec
}

func NewCompiler(c *codec.Codec) *Compiler {
	return &Compiler{schema: c.Schema(), codec: c}
}

// Compile 按顺序编译条件，每个条件用自己的连接符与前一个条件连接
func (c *Compiler) Compile(entity string, conditions []Condition) (*Predicate, error) {
	p := &Predicate{Vars: map[string]any{}}
	if len(conditions) == 0 {
		return p, nil
	}

	var sb strings.Builder
	for i, cond := range conditions {
		fragment, err := c.compileCondition(entity, i, cond, p.Vars)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			switch cond.Connector {
			case "", ConnectorAnd:
				sb.WriteString(" AND ")
			case ConnectorOr:
				sb.WriteString(" OR ")
			default:
				return nil, errors.Wrapf(ErrInvalidCondition, "unknown connector %q", cond.Connector)
			}
		}
		sb.WriteString(fragment)
	}
	p.Expr = sb.String()
	return p, nil
}

func (c *Compiler) compileCondition(entity string, index int, cond Condition, vars map[string]any) (string, error) {
	f, err := c.schema.FieldMeta(entity, cond.Field)
	if err != nil {
		return "", err
	}
	name := f.StorageName

	// 空值忽略操作符
	if cond.Value == nil {
		return fmt.Sprintf("(%s IS NONE OR %s IS NULL)", name, name), nil
	}

	param := paramName(entity, name, index)
	op := cond.Operator
	if op == "" {
		op = OperatorEq
	}

	switch op {
	case OperatorEq, OperatorNe:
		vars[param] = c.codec.Encode(entity, f, cond.Value, codec.ActionMatch)
		return fmt.Sprintf("%s %s $%s", name, comparisons[op], param), nil
	case OperatorLt, OperatorLte, OperatorGt, OperatorGte:
		vars[param] = c.codec.Encode(entity, f, cond.Value, codec.ActionCompare)
		return fmt.Sprintf("%s %s $%s", name, comparisons[op], param), nil
	case OperatorIn:
		elems, ok := codec.ToSlice(cond.Value)
		if !ok {
			return "", errors.Wrapf(ErrInvalidCondition, "operator in on %q.%q requires an array, got %T", entity, cond.Field, cond.Value)
		}
		elem := f
		if f.Type == schema.FieldTypeArray {
			elem = f.Element()
		}
		encoded := make([]any, len(elems))
		for i, v := range elems {
			encoded[i] = c.codec.Encode(entity, elem, v, codec.ActionMatch)
		}
		vars[param] = encoded
		return fmt.Sprintf("%s INSIDE $%s", name, param), nil
	case OperatorContains:
		if f.Type == schema.FieldTypeArray {
			vars[param] = c.codec.Encode(entity, f.Element(), cond.Value, codec.ActionCompare)
			return fmt.Sprintf("%s CONTAINS $%s", name, param), nil
		}
		vars[param] = c.codec.Encode(entity, f, cond.Value, codec.ActionCompare)
		return fmt.Sprintf("string::contains(%s, $%s)", name, param), nil
	case OperatorStartsWith:
		vars[param] = c.codec.Encode(entity, f, cond.Value, codec.ActionCompare)
		return fmt.Sprintf("string::starts_with(%s, $%s)", name, param), nil
	case OperatorEndsWith:
		vars[param] = c.codec.Encode(entity, f, cond.Value, codec.ActionCompare)
		return fmt.Sprintf("string::ends_with(%s, $%s)", name, param), nil
	}
	return "", errors.Wrapf(ErrInvalidCondition, "unknown operator %q on %q.%q", cond.Operator, entity, cond.Field)
}

// CompileSort 生成 ORDER BY 之后的部分，没有排序字段时返回空串
func (c *Compiler) CompileSort(entity string, sorts []Sort) (string, error) {
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		name, err := c.schema.StorageFieldName(entity, s.Field)
		if err != nil {
			return "", err
		}
		switch strings.ToLower(string(s.Direction)) {
		case "", string(Asc):
			parts = append(parts, name+" ASC")
		case string(Desc):
			parts = append(parts, name+" DESC")
		default:
			return "", errors.Wrapf(ErrInvalidCondition, "unknown sort direction %q", s.Direction)
		}
	}
	return strings.Join(parts, ", "), nil
}

// CompileSelect 生成投影字段列表，fields 为空时返回 *；未显式排除时总是带上 id
func (c *Compiler) CompileSelect(entity string, fields []string, omitID bool) (string, error) {
	if _, err := c.schema.Entity(entity); err != nil {
		return "", err
	}
	if len(fields) == 0 {
		if omitID {
			return "* OMIT id", nil
		}
		return "*", nil
	}
	parts := make([]string, 0, len(fields)+1)
	if !omitID {
		parts = append(parts, schema.IDField)
	}
	for _, field := range fields {
		if field == schema.IDField {
			continue
		}
		name, err := c.schema.StorageFieldName(entity, field)
		if err != nil {
			return "", err
		}
		parts = append(parts, name)
	}
	if len(parts) == 0 {
		return "", errors.Wrapf(ErrInvalidCondition, "empty projection on %q", entity)
	}
	return strings.Join(parts, ", "), nil
}

func paramName(entity string, field string, index int) string {
	return unsafeParamChars.ReplaceAllString(fmt.Sprintf("%s_%s_%d", entity, field, index), "_")
}
