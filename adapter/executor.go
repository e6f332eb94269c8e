package adapter

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/hatlonely/surrealx/codec"
	"github.com/hatlonely/surrealx/conn"
	"github.com/hatlonely/surrealx/log"
	"github.com/hatlonely/surrealx/query"
	"github.com/hatlonely/surrealx/schema"
	"github.com/pkg/errors"
)

// ErrPersistence 操作要求写入或返回一行，但存储没有返回任何行
var ErrPersistence = errors.New("persistence error")

// Record 逻辑字段名到值
type Record = map[string]any

type FindOptions struct {
	// 投影字段，为空时返回所有字段
	Select []string
	// 显式排除 id，否则结果总是带 id
	OmitID bool
	// 关联实体名，每个关联额外查询一次
	Join []string
}

type FindManyOptions struct {
	Where  []query.Condition
	Sort   []query.Sort
	Limit  int
	Offset int
	Select []string
	OmitID bool
}

// Operations 对 schema 中实体的读写操作
type Operations interface {
	Create(ctx context.Context, entity string, data Record) (Record, error)
	FindOne(ctx context.Context, entity string, where []query.Condition, options *FindOptions) (Record, error)
	FindMany(ctx context.Context, entity string, options *FindManyOptions) ([]Record, error)
	Count(ctx context.Context, entity string, where []query.Condition) (int64, error)
	// Update 合并到所有匹配的记录，只返回第一条，条件应当唯一确定一条记录
	Update(ctx context.Context, entity string, where []query.Condition, data Record) (Record, error)
	UpdateMany(ctx context.Context, entity string, where []query.Condition, data Record) ([]Record, error)
	Delete(ctx context.Context, entity string, where []query.Condition) error
	DeleteMany(ctx context.Context, entity string, where []query.Condition) (int64, error)
}

// executor 组合 schema、编译器和编解码器，每次执行语句时重新获取连接
type executor struct {
	schema    *schema.Schema
	codec     *codec.Codec
	compiler  *query.Compiler
	acquire   func(ctx context.Context) (conn.Conn, error)
	logger    log.Logger
	debug     bool
	joinLimit int
	observer  *observer

	// 事务内执行的语句数，事务外为 nil
	statements *atomic.Int64
}

func (e *executor) exec(ctx context.Context, statement string, vars map[string]any) ([]map[string]any, error) {
	c, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}
	if e.debug {
		e.logger.DebugContext(ctx, "execute", "statement", statement, "vars", vars)
	}
	rows, err := c.Query(ctx, statement, vars)
	if err != nil {
		return nil, errors.WithMessagef(err, "execute [%s]", statement)
	}
	if e.statements != nil {
		e.statements.Add(1)
	}
	return rows, nil
}

// where 编译过滤条件并合并参数，没有条件时不生成 WHERE
func (e *executor) where(entity string, conditions []query.Condition, vars map[string]any) (string, error) {
	p, err := e.compiler.Compile(entity, conditions)
	if err != nil {
		return "", err
	}
	if p.Empty() {
		return "", nil
	}
	maps.Copy(vars, p.Vars)
	return " WHERE " + p.Expr, nil
}

func (e *executor) tableVars(entity string) (map[string]any, error) {
	table, err := e.schema.TableName(entity)
	if err != nil {
		return nil, err
	}
	return map[string]any{"table": table}, nil
}

func (e *executor) decodeRows(entity string, rows []map[string]any) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		record, err := e.codec.DecodeRecord(entity, row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (e *executor) Create(ctx context.Context, entity string, data Record) (record Record, err error) {
	err = e.observer.observe(ctx, "create", entity, func(ctx context.Context) error {
		record, err = e.create(ctx, entity, data)
		return err
	})
	return record, err
}

func (e *executor) create(ctx context.Context, entity string, data Record) (Record, error) {
	vars, err := e.tableVars(entity)
	if err != nil {
		return nil, err
	}
	content, err := e.codec.EncodeRecord(entity, data, codec.ActionCreate)
	if err != nil {
		return nil, err
	}

	statement := "CREATE type::table($table) CONTENT $data RETURN AFTER"
	if id, ok := content[schema.IDField]; ok {
		delete(content, schema.IDField)
		if id != nil {
			statement = "CREATE $id CONTENT $data RETURN AFTER"
			delete(vars, "table")
			vars["id"] = id
		}
	}
	vars["data"] = content

	rows, err := e.exec(ctx, statement, vars)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(ErrPersistence, "create %s returned no row", entity)
	}
	return e.codec.DecodeRecord(entity, rows[0])
}

func (e *executor) FindOne(ctx context.Context, entity string, where []query.Condition, options *FindOptions) (record Record, err error) {
	err = e.observer.observe(ctx, "findOne", entity, func(ctx context.Context) error {
		record, err = e.findOne(ctx, entity, where, options)
		return err
	})
	return record, err
}

func (e *executor) findOne(ctx context.Context, entity string, where []query.Condition, options *FindOptions) (Record, error) {
	if options == nil {
		options = &FindOptions{}
	}
	joins, err := e.resolveJoins(entity, options.Join)
	if err != nil {
		return nil, err
	}

	// 投影里缺少关联需要的字段时临时加上，返回前再去掉
	selected := options.Select
	var extra []string
	if len(selected) > 0 {
		for _, j := range joins {
			if j.localField != schema.IDField && !slices.Contains(selected, j.localField) && !slices.Contains(extra, j.localField) {
				extra = append(extra, j.localField)
			}
		}
		selected = append(append([]string{}, selected...), extra...)
	}
	omitID := options.OmitID
	needID := false
	for _, j := range joins {
		if j.localField == schema.IDField {
			needID = true
		}
	}
	projection, err := e.compiler.CompileSelect(entity, selected, omitID && !needID)
	if err != nil {
		return nil, err
	}

	vars, err := e.tableVars(entity)
	if err != nil {
		return nil, err
	}
	clause, err := e.where(entity, where, vars)
	if err != nil {
		return nil, err
	}

	rows, err := e.exec(ctx, "SELECT "+projection+" FROM type::table($table)"+clause+" LIMIT 1", vars)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	record, err := e.codec.DecodeRecord(entity, rows[0])
	if err != nil {
		return nil, err
	}

	for _, j := range joins {
		value, err := e.join(ctx, record, j)
		if err != nil {
			return nil, err
		}
		record[j.relation] = value
	}
	for _, name := range extra {
		delete(record, name)
	}
	if omitID && needID {
		delete(record, schema.IDField)
	}
	return record, nil
}

func (e *executor) FindMany(ctx context.Context, entity string, options *FindManyOptions) (records []Record, err error) {
	err = e.observer.observe(ctx, "findMany", entity, func(ctx context.Context) error {
		records, err = e.findMany(ctx, entity, options)
		return err
	})
	return records, err
}

func (e *executor) findMany(ctx context.Context, entity string, options *FindManyOptions) ([]Record, error) {
	if options == nil {
		options = &FindManyOptions{}
	}
	if options.Limit < 0 || options.Offset < 0 {
		return nil, errors.Wrapf(query.ErrInvalidCondition, "negative limit %d or offset %d", options.Limit, options.Offset)
	}
	projection, err := e.compiler.CompileSelect(entity, options.Select, options.OmitID)
	if err != nil {
		return nil, err
	}
	vars, err := e.tableVars(entity)
	if err != nil {
		return nil, err
	}

	// 子句顺序固定: WHERE, ORDER BY, LIMIT, START
	var sb strings.Builder
	sb.WriteString("SELECT " + projection + " FROM type::table($table)")
	clause, err := e.where(entity, options.Where, vars)
	if err != nil {
		return nil, err
	}
	sb.WriteString(clause)
	order, err := e.compiler.CompileSort(entity, options.Sort)
	if err != nil {
		return nil, err
	}
	if order != "" {
		sb.WriteString(" ORDER BY " + order)
	}
	if options.Limit > 0 {
		sb.WriteString(" LIMIT $limit")
		vars["limit"] = options.Limit
	}
	if options.Offset > 0 {
		sb.WriteString(" START $start")
		vars["start"] = options.Offset
	}

	rows, err := e.exec(ctx, sb.String(), vars)
	if err != nil {
		return nil, err
	}
	return e.decodeRows(entity, rows)
}

func (e *executor) Count(ctx context.Context, entity string, where []query.Condition) (count int64, err error) {
	err = e.observer.observe(ctx, "count", entity, func(ctx context.Context) error {
		count, err = e.count(ctx, entity, where)
		return err
	})
	return count, err
}

// count 没有匹配行时 GROUP ALL 不返回任何行，按 0 处理
func (e *executor) count(ctx context.Context, entity string, where []query.Condition) (int64, error) {
	vars, err := e.tableVars(entity)
	if err != nil {
		return 0, err
	}
	clause, err := e.where(entity, where, vars)
	if err != nil {
		return 0, err
	}
	rows, err := e.exec(ctx, "SELECT count() AS count FROM type::table($table)"+clause+" GROUP ALL", vars)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || rows[0]["count"] == nil {
		return 0, nil
	}
	n, ok := toInt64(rows[0]["count"])
	if !ok {
		return 0, errors.Errorf("count %s: unexpected value %v (%T)", entity, rows[0]["count"], rows[0]["count"])
	}
	return n, nil
}

// Update 和 UpdateMany 执行同一条语句，条件匹配多条时每条都会被修改，返回值只取第一条
func (e *executor) Update(ctx context.Context, entity string, where []query.Condition, data Record) (record Record, err error) {
	err = e.observer.observe(ctx, "update", entity, func(ctx context.Context) error {
		var records []Record
		records, err = e.update(ctx, entity, where, data)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return errors.Wrapf(ErrPersistence, "update %s matched no row", entity)
		}
		record = records[0]
		return nil
	})
	return record, err
}

func (e *executor) UpdateMany(ctx context.Context, entity string, where []query.Condition, data Record) (records []Record, err error) {
	err = e.observer.observe(ctx, "updateMany", entity, func(ctx context.Context) error {
		records, err = e.update(ctx, entity, where, data)
		return err
	})
	return records, err
}

func (e *executor) update(ctx context.Context, entity string, where []query.Condition, data Record) ([]Record, error) {
	vars, err := e.tableVars(entity)
	if err != nil {
		return nil, err
	}
	content, err := e.codec.EncodeRecord(entity, data, codec.ActionUpdate)
	if err != nil {
		return nil, err
	}
	// 记录 id 不能修改
	delete(content, schema.IDField)
	vars["data"] = content

	clause, err := e.where(entity, where, vars)
	if err != nil {
		return nil, err
	}
	rows, err := e.exec(ctx, "UPDATE type::table($table) MERGE $data"+clause+" RETURN AFTER", vars)
	if err != nil {
		return nil, err
	}
	return e.decodeRows(entity, rows)
}

// Delete 没有匹配行时不报错
func (e *executor) Delete(ctx context.Context, entity string, where []query.Condition) error {
	return e.observer.observe(ctx, "delete", entity, func(ctx context.Context) error {
		vars, err := e.tableVars(entity)
		if err != nil {
			return err
		}
		clause, err := e.where(entity, where, vars)
		if err != nil {
			return err
		}
		_, err = e.exec(ctx, "DELETE type::table($table)"+clause, vars)
		return err
	})
}

// DeleteMany 返回删除的行数
func (e *executor) DeleteMany(ctx context.Context, entity string, where []query.Condition) (count int64, err error) {
	err = e.observer.observe(ctx, "deleteMany", entity, func(ctx context.Context) error {
		vars, err := e.tableVars(entity)
		if err != nil {
			return err
		}
		clause, err := e.where(entity, where, vars)
		if err != nil {
			return err
		}
		rows, err := e.exec(ctx, "DELETE type::table($table)"+clause+" RETURN BEFORE", vars)
		if err != nil {
			return err
		}
		count = int64(len(rows))
		return nil
	})
	return count, err
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
