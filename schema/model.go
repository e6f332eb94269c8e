package schema

import (
	"github.com/hatlonely/surrealx/ref"
	"github.com/pkg/errors"
)

// ErrConfiguration 未知实体、未知字段或非法的 schema 定义，属于调用方的编程错误，不应重试
var ErrConfiguration = errors.New("configuration error")

// FieldType 抽象字段类型
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
	FieldTypeJSON    FieldType = "json"
	FieldTypeID      FieldType = "id"
	FieldTypeArray   FieldType = "array"
)

func (t FieldType) valid() bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypeDate, FieldTypeJSON, FieldTypeID, FieldTypeArray:
		return true
	}
	return false
}

// OnDelete 被引用记录删除时的处理策略
type OnDelete string

const (
	OnDeleteCascade  OnDelete = "cascade"
	OnDeleteSetNull  OnDelete = "setNull"
	OnDeleteRestrict OnDelete = "restrict"
	OnDeleteNoAction OnDelete = "noAction"
)

// Reference 字段引用的目标
type Reference struct {
	Entity   string   `cfg:"entity" validate:"required"`
	Field    string   `cfg:"field" def:"id"`
	OnDelete OnDelete `cfg:"onDelete" def:"cascade" validate:"omitempty,oneof=cascade setNull restrict noAction"`
}

// Field 字段定义
type Field struct {
	Name string `cfg:"name" validate:"required"`
	// 为空时等于 Name，StorageCase 为 snake 时转成下划线风格
	StorageName string    `cfg:"storageName"`
	Type        FieldType `cfg:"type" def:"string"`
	// Type 为 array 时的元素类型
	ElementType FieldType `cfg:"elementType"`
	Required    bool      `cfg:"required"`
	Unique      bool      `cfg:"unique"`
	// 显式声明字段保存的是其他实体的记录 id
	Identifier bool `cfg:"identifier"`
	// 字面量，或者 func() any 形式的生成器
	Default any `cfg:"default"`
	// uid 生成器配置，优先于 Default
	Generator  *ref.TypeOptions `cfg:"generator"`
	References *Reference       `cfg:"references"`

	generate func() any
}

// DefaultValue 生成默认值，没有默认值时 ok 为 false
func (f *Field) DefaultValue() (any, bool) {
	if f.generate != nil {
		return f.generate(), true
	}
	switch d := f.Default.(type) {
	case nil:
		return nil, false
	case func() any:
		return d(), true
	}
	return f.Default, true
}

// Element 数组元素的字段描述，继承引用信息
func (f *Field) Element() *Field {
	return &Field{
		Name:        f.Name,
		StorageName: f.StorageName,
		Type:        f.ElementType,
		Identifier:  f.Identifier,
		References:  f.References,
	}
}

// Entity 实体定义
type Entity struct {
	Name string `cfg:"name" validate:"required"`
	// 为空时等于 Name，Pluralize 时为复数形式
	StorageName string  `cfg:"storageName"`
	Fields      []Field `cfg:"fields" validate:"dive"`

	byName    map[string]*Field
	byStorage map[string]*Field
}

// Field 按逻辑名查找字段
func (e *Entity) Field(name string) (*Field, bool) {
	f, ok := e.byName[name]
	return f, ok
}

// FieldByStorageName 按存储名查找字段
func (e *Entity) FieldByStorageName(name string) (*Field, bool) {
	f, ok := e.byStorage[name]
	return f, ok
}

// IdentifierOptions 按命名约定识别引用字段，例如 userId 引用 user
type IdentifierOptions struct {
	Convention bool     `cfg:"convention"`
	Suffix     string   `cfg:"suffix" def:"Id"`
	Exclude    []string `cfg:"exclude"`
}

// Options schema 解析选项
type Options struct {
	// 表名使用复数
	Pluralize bool `cfg:"pluralize"`
	// 为空时字段存储名等于逻辑名，snake 时转为下划线风格
	StorageCase string            `cfg:"storageCase" validate:"omitempty,oneof=snake"`
	Identifier  IdentifierOptions `cfg:"identifier"`
}

// Definition 配置文件中的 schema 描述
type Definition struct {
	Options  Options  `cfg:"options"`
	Entities []Entity `cfg:"entities" validate:"dive"`
}
