// Package ddl 从 schema 生成 SurrealQL 的 DEFINE 语句。
package ddl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hatlonely/surrealx/schema"
	"github.com/pkg/errors"
)

// Overwrite 语句已存在时的处理方式
type Overwrite string

const (
	OverwriteNone        Overwrite = ""
	OverwriteAlways      Overwrite = "overwrite"
	OverwriteIfNotExists Overwrite = "ifNotExists"
)

type Options struct {
	Overwrite Overwrite `cfg:"overwrite" validate:"omitempty,oneof=overwrite ifNotExists"`
	// 引用字段加上 REFERENCE ON DELETE 子句，由数据库维护删除行为
	ReferenceTypes bool `cfg:"referenceTypes"`
	// 日期字段写入时按精度取整，例如 1ms
	TimestampPrecision string `cfg:"timestampPrecision"`
	Schemaless         bool   `cfg:"schemaless"`
	FileName           string `cfg:"fileName" def:"schema.surql"`
}

// Script 生成的脚本和建议的文件名
type Script struct {
	Code     string
	FileName string
}

var precisionPattern = regexp.MustCompile(`^[0-9]+(ns|us|µs|ms|s|m|h|d|w|y)$`)

var onDeleteClauses = map[schema.OnDelete]string{
	schema.OnDeleteCascade:  "CASCADE",
	schema.OnDeleteSetNull:  "UNSET",
	schema.OnDeleteRestrict: "REJECT",
	schema.OnDeleteNoAction: "IGNORE",
}

// Emit 按实体和字段的定义顺序生成语句，纯函数
func Emit(s *schema.Schema, options *Options) (*Script, error) {
	if s == nil {
		return nil, errors.Wrap(schema.ErrConfiguration, "schema is nil")
	}
	if options == nil {
		options = &Options{}
	}
	if options.TimestampPrecision != "" && !precisionPattern.MatchString(options.TimestampPrecision) {
		return nil, errors.Wrapf(schema.ErrConfiguration, "invalid timestamp precision %q", options.TimestampPrecision)
	}
	var modifier string
	switch options.Overwrite {
	case OverwriteNone:
	case OverwriteAlways:
		modifier = " OVERWRITE"
	case OverwriteIfNotExists:
		modifier = " IF NOT EXISTS"
	default:
		return nil, errors.Wrapf(schema.ErrConfiguration, "unknown overwrite mode %q", options.Overwrite)
	}

	var sb strings.Builder
	for i, e := range s.Entities() {
		if i > 0 {
			sb.WriteString("\n")
		}
		mode := "SCHEMAFULL"
		if options.Schemaless {
			mode = "SCHEMALESS"
		}
		fmt.Fprintf(&sb, "DEFINE TABLE%s %s %s;\n", modifier, e.StorageName, mode)

		for j := range e.Fields {
			f := &e.Fields[j]
			if f.Name == schema.IDField {
				continue
			}
			typ, err := fieldType(s, e, f)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&sb, "DEFINE FIELD%s %s ON TABLE %s TYPE %s", modifier, f.StorageName, e.StorageName, typ)
			if f.Default != nil {
				if literal, ok := defaultLiteral(f.Default); ok {
					sb.WriteString(" DEFAULT " + literal)
				}
			}
			if options.ReferenceTypes && f.References != nil {
				sb.WriteString(" REFERENCE ON DELETE " + onDeleteClauses[f.References.OnDelete])
			}
			if options.TimestampPrecision != "" && f.Type == schema.FieldTypeDate {
				if f.Required {
					fmt.Fprintf(&sb, " VALUE time::round($value, %s)", options.TimestampPrecision)
				} else {
					fmt.Fprintf(&sb, " VALUE IF $value THEN time::round($value, %s) ELSE $value END", options.TimestampPrecision)
				}
			}
			sb.WriteString(";\n")
		}

		for j := range e.Fields {
			f := &e.Fields[j]
			if !f.Unique || f.Name == schema.IDField {
				continue
			}
			fmt.Fprintf(&sb, "DEFINE INDEX%s %s_%s_unique ON TABLE %s FIELDS %s UNIQUE;\n",
				modifier, e.StorageName, f.StorageName, e.StorageName, f.StorageName)
		}
	}

	fileName := options.FileName
	if fileName == "" {
		fileName = "schema.surql"
	}
	return &Script{Code: sb.String(), FileName: fileName}, nil
}

func fieldType(s *schema.Schema, e *schema.Entity, f *schema.Field) (string, error) {
	var typ string
	if target, ok := s.IdentifierTarget(e.Name, f); ok && f.Type != schema.FieldTypeArray {
		table, err := s.TableName(target)
		if err != nil {
			return "", err
		}
		typ = fmt.Sprintf("record<%s>", table)
	} else {
		elem, err := scalarType(s, e, f, f.Type)
		if err != nil {
			return "", err
		}
		typ = elem
	}
	// any 本身可以为空
	if !f.Required && typ != "any" {
		typ = fmt.Sprintf("option<%s>", typ)
	}
	return typ, nil
}

func scalarType(s *schema.Schema, e *schema.Entity, f *schema.Field, t schema.FieldType) (string, error) {
	switch t {
	case schema.FieldTypeString:
		return "string", nil
	case schema.FieldTypeNumber:
		return "number", nil
	case schema.FieldTypeBoolean:
		return "bool", nil
	case schema.FieldTypeDate:
		return "datetime", nil
	case schema.FieldTypeJSON:
		return "any", nil
	case schema.FieldTypeID:
		return "string", nil
	case schema.FieldTypeArray:
		elem := f.Element()
		if target, ok := s.IdentifierTarget(e.Name, elem); ok {
			table, err := s.TableName(target)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("array<record<%s>>", table), nil
		}
		inner, err := scalarType(s, e, elem, elem.Type)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("array<%s>", inner), nil
	}
	return "", errors.Wrapf(schema.ErrConfiguration, "unknown type %q for field %q.%q", t, e.Name, f.Name)
}

// defaultLiteral 只输出字面量默认值，生成器由写入时填充
func defaultLiteral(v any) (string, bool) {
	switch d := v.(type) {
	case string:
		return strconv.Quote(d), true
	case bool:
		return strconv.FormatBool(d), true
	case int:
		return strconv.Itoa(d), true
	case int64:
		return strconv.FormatInt(d, 10), true
	case float64:
		return strconv.FormatFloat(d, 'f', -1, 64), true
	}
	return "", false
}
