package adapter

import (
	"context"

	"github.com/hatlonely/surrealx/query"
	"github.com/hatlonely/surrealx/schema"
	"github.com/pkg/errors"
)

// join 一个关联，每个关联额外执行一次查询
type join struct {
	// 关联实体名，同时是结果中的字段名
	relation string
	// 当前记录上取值的字段
	localField string
	// 关联实体上匹配的字段
	remoteField string
	// 当前实体持有外键，或者反向外键唯一时只有一条
	single bool
}

// resolveJoins 先找当前实体上指向关联实体的字段，再找关联实体上指向当前实体的字段
func (e *executor) resolveJoins(entity string, relations []string) ([]join, error) {
	if len(relations) == 0 {
		return nil, nil
	}
	source, err := e.schema.Entity(entity)
	if err != nil {
		return nil, err
	}
	joins := make([]join, 0, len(relations))
	for _, relation := range relations {
		target, err := e.schema.Entity(relation)
		if err != nil {
			return nil, err
		}
		if f := e.owningField(source, relation); f != nil {
			remote := schema.IDField
			if f.References != nil {
				remote = f.References.Field
			}
			joins = append(joins, join{relation: relation, localField: f.Name, remoteField: remote, single: true})
			continue
		}
		if f := e.owningField(target, entity); f != nil {
			local := schema.IDField
			if f.References != nil {
				local = f.References.Field
			}
			joins = append(joins, join{relation: relation, localField: local, remoteField: f.Name, single: f.Unique})
			continue
		}
		return nil, errors.Wrapf(schema.ErrConfiguration, "no field links %q and %q", entity, relation)
	}
	return joins, nil
}

// owningField owner 上指向 target 的字段: 引用声明优先，其次是 id 字段识别规则，最后是 <target>Id 命名
func (e *executor) owningField(owner *schema.Entity, target string) *schema.Field {
	for i := range owner.Fields {
		f := &owner.Fields[i]
		if f.References != nil && f.References.Entity == target {
			return f
		}
	}
	for i := range owner.Fields {
		f := &owner.Fields[i]
		if f.Name == schema.IDField {
			continue
		}
		if name, ok := e.schema.IdentifierTarget(owner.Name, f); ok && name == target {
			return f
		}
	}
	if f, ok := owner.Field(target + "Id"); ok {
		return f
	}
	return nil
}

func (e *executor) join(ctx context.Context, record Record, j join) (any, error) {
	value := record[j.localField]
	if value == nil {
		if j.single {
			return nil, nil
		}
		return []Record{}, nil
	}

	limit := e.joinLimit
	if j.single {
		limit = 1
	}
	records, err := e.findMany(ctx, j.relation, &FindManyOptions{
		Where: []query.Condition{query.Eq(j.remoteField, value)},
		Limit: limit,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "join %s", j.relation)
	}
	if j.single {
		if len(records) == 0 {
			return nil, nil
		}
		return records[0], nil
	}
	return records, nil
}
