package schema

import (
	"regexp"
	"strings"

	"github.com/hatlonely/surrealx/uid"
	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"
	"github.com/pkg/errors"
)

// IDField 记录主键字段
const IDField = "id"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema 解析和校验后的 schema，构造后不可修改，可以被多个 goroutine 同时使用
type Schema struct {
	options  Options
	entities []*Entity
	byName   map[string]*Entity
	exclude  map[string]struct{}
}

// NewWithDefinition 从配置构造 Schema
func NewWithDefinition(def *Definition) (*Schema, error) {
	if def == nil {
		return nil, errors.Wrap(ErrConfiguration, "schema definition is nil")
	}
	return New(def.Entities, &def.Options)
}

// New 校验实体定义并解析出存储名、生成器等信息
func New(entities []Entity, options *Options) (*Schema, error) {
	if options == nil {
		options = &Options{}
	}
	s := &Schema{
		options: *options,
		byName:  map[string]*Entity{},
		exclude: map[string]struct{}{},
	}
	if s.options.Identifier.Suffix == "" {
		s.options.Identifier.Suffix = "Id"
	}
	for _, name := range s.options.Identifier.Exclude {
		s.exclude[name] = struct{}{}
	}

	tables := map[string]string{}
	for i := range entities {
		e := entities[i]
		if !identifierPattern.MatchString(e.Name) {
			return nil, errors.Wrapf(ErrConfiguration, "invalid entity name %q", e.Name)
		}
		if _, ok := s.byName[e.Name]; ok {
			return nil, errors.Wrapf(ErrConfiguration, "duplicate entity %q", e.Name)
		}
		if e.StorageName == "" {
			e.StorageName = e.Name
			if s.options.Pluralize {
				e.StorageName = inflection.Plural(e.Name)
			}
		}
		if !identifierPattern.MatchString(e.StorageName) {
			return nil, errors.Wrapf(ErrConfiguration, "invalid table name %q for entity %q", e.StorageName, e.Name)
		}
		if other, ok := tables[e.StorageName]; ok {
			return nil, errors.Wrapf(ErrConfiguration, "entities %q and %q share table %q", other, e.Name, e.StorageName)
		}
		tables[e.StorageName] = e.Name

		fields := make([]Field, len(e.Fields))
		copy(fields, e.Fields)
		e.Fields = fields
		e.byName = map[string]*Field{}
		e.byStorage = map[string]*Field{}
		for j := range e.Fields {
			if err := s.resolveField(&e, &e.Fields[j]); err != nil {
				return nil, err
			}
		}
		if _, ok := e.byName[IDField]; !ok {
			e.Fields = append([]Field{{Name: IDField, StorageName: IDField, Type: FieldTypeID}}, e.Fields...)
			e.byName = map[string]*Field{}
			e.byStorage = map[string]*Field{}
			for j := range e.Fields {
				e.byName[e.Fields[j].Name] = &e.Fields[j]
				e.byStorage[e.Fields[j].StorageName] = &e.Fields[j]
			}
		}

		s.entities = append(s.entities, &e)
		s.byName[e.Name] = &e
	}

	// 引用目标依赖全部实体，最后统一校验
	for _, e := range s.entities {
		for i := range e.Fields {
			if err := s.checkReference(e, &e.Fields[i]); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

func (s *Schema) resolveField(e *Entity, f *Field) error {
	if !identifierPattern.MatchString(f.Name) {
		return errors.Wrapf(ErrConfiguration, "invalid field name %q on entity %q", f.Name, e.Name)
	}
	if _, ok := e.byName[f.Name]; ok {
		return errors.Wrapf(ErrConfiguration, "duplicate field %q on entity %q", f.Name, e.Name)
	}
	if f.Type == "" {
		f.Type = FieldTypeString
	}
	if f.Name == IDField {
		f.Type = FieldTypeID
		f.StorageName = IDField
	}
	if !f.Type.valid() {
		return errors.Wrapf(ErrConfiguration, "unknown type %q for field %q.%q", f.Type, e.Name, f.Name)
	}
	if f.Type == FieldTypeArray {
		if f.ElementType == "" {
			f.ElementType = FieldTypeJSON
		}
		if !f.ElementType.valid() || f.ElementType == FieldTypeArray {
			return errors.Wrapf(ErrConfiguration, "invalid element type %q for field %q.%q", f.ElementType, e.Name, f.Name)
		}
	}
	if f.StorageName == "" {
		f.StorageName = f.Name
		if s.options.StorageCase == "snake" {
			f.StorageName = strcase.ToSnake(f.Name)
		}
	}
	if !identifierPattern.MatchString(f.StorageName) {
		return errors.Wrapf(ErrConfiguration, "invalid storage name %q for field %q.%q", f.StorageName, e.Name, f.Name)
	}
	if _, ok := e.byStorage[f.StorageName]; ok {
		return errors.Wrapf(ErrConfiguration, "duplicate storage name %q on entity %q", f.StorageName, e.Name)
	}
	if f.Generator != nil {
		generate, err := uid.NewGeneratorWithOptions(f.Generator)
		if err != nil {
			return errors.Wrapf(ErrConfiguration, "field %q.%q generator: %v", e.Name, f.Name, err)
		}
		f.generate = generate
	}
	if f.References != nil {
		r := *f.References
		f.References = &r
		if f.References.Field == "" {
			f.References.Field = IDField
		}
		if f.References.OnDelete == "" {
			f.References.OnDelete = OnDeleteCascade
		}
	}
	e.byName[f.Name] = f
	e.byStorage[f.StorageName] = f
	return nil
}

func (s *Schema) checkReference(e *Entity, f *Field) error {
	if f.References != nil {
		target, ok := s.byName[f.References.Entity]
		if !ok {
			return errors.Wrapf(ErrConfiguration, "field %q.%q references unknown entity %q", e.Name, f.Name, f.References.Entity)
		}
		if _, ok := target.byName[f.References.Field]; !ok {
			return errors.Wrapf(ErrConfiguration, "field %q.%q references unknown field %q.%q", e.Name, f.Name, target.Name, f.References.Field)
		}
		return nil
	}
	if f.Identifier && f.Name != IDField {
		if _, ok := s.conventionTarget(e.Name, f.Name); !ok {
			return errors.Wrapf(ErrConfiguration, "identifier field %q.%q needs a reference or a name like <entity>%s", e.Name, f.Name, s.options.Identifier.Suffix)
		}
	}
	return nil
}

// Options 解析选项
func (s *Schema) Options() Options {
	return s.options
}

// Entities 按定义顺序返回所有实体
func (s *Schema) Entities() []*Entity {
	return s.entities
}

// Entity 按逻辑名查找实体
func (s *Schema) Entity(name string) (*Entity, error) {
	e, ok := s.byName[name]
	if !ok {
		return nil, errors.Wrapf(ErrConfiguration, "unknown entity %q", name)
	}
	return e, nil
}

// TableName 实体对应的表名
func (s *Schema) TableName(entity string) (string, error) {
	e, err := s.Entity(entity)
	if err != nil {
		return "", err
	}
	return e.StorageName, nil
}

// StorageFieldName 字段存储名，id 字段原样返回
func (s *Schema) StorageFieldName(entity string, field string) (string, error) {
	if field == IDField {
		return IDField, nil
	}
	f, err := s.FieldMeta(entity, field)
	if err != nil {
		return "", err
	}
	return f.StorageName, nil
}

// FieldMeta 字段定义
func (s *Schema) FieldMeta(entity string, field string) (*Field, error) {
	e, err := s.Entity(entity)
	if err != nil {
		return nil, err
	}
	f, ok := e.byName[field]
	if !ok {
		return nil, errors.Wrapf(ErrConfiguration, "unknown field %q on entity %q", field, entity)
	}
	return f, nil
}

// IdentifierTarget 字段保存的记录 id 属于哪个实体，非 id 字段返回 false
//
// 判断顺序: id 字段指向自身，引用字段指向引用目标，显式标记或命名约定指向去掉后缀后的实体
func (s *Schema) IdentifierTarget(entity string, f *Field) (string, bool) {
	if f == nil {
		return "", false
	}
	if f.Name == IDField {
		return entity, true
	}
	if f.References != nil {
		return f.References.Entity, true
	}
	if f.Identifier {
		return s.conventionTarget(entity, f.Name)
	}
	if !s.options.Identifier.Convention {
		return "", false
	}
	if f.Type != FieldTypeID && f.Type != FieldTypeString && !(f.Type == FieldTypeArray && f.ElementType == FieldTypeID) {
		return "", false
	}
	if _, ok := s.exclude[f.Name]; ok {
		return "", false
	}
	return s.conventionTarget(entity, f.Name)
}

// conventionTarget userId -> user，实体自身的 <entity>Id 字段不视为引用
func (s *Schema) conventionTarget(entity string, name string) (string, bool) {
	suffix := s.options.Identifier.Suffix
	if len(name) <= len(suffix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	target := strings.TrimSuffix(name, suffix)
	if target == entity {
		return "", false
	}
	if _, ok := s.byName[target]; !ok {
		return "", false
	}
	return target, true
}
