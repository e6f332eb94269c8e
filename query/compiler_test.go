package query

import (
	"testing"

	"github.com/hatlonely/surrealx/codec"
	"github.com/hatlonely/surrealx/schema"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

func newTestCompiler(t *testing.T) *Compiler {
	s, err := schema.New([]schema.Entity{
		{Name: "user", Fields: []schema.Field{
			{Name: "email", Type: schema.FieldTypeString},
			{Name: "name", Type: schema.FieldTypeString},
			{Name: "age", Type: schema.FieldTypeNumber},
			{Name: "createdAt", Type: schema.FieldTypeDate},
			{Name: "tags", Type: schema.FieldTypeArray, ElementType: schema.FieldTypeString},
		}},
		{Name: "session", Fields: []schema.Field{
			{Name: "userId", References: &schema.Reference{Entity: "user"}},
			{Name: "token", Type: schema.FieldTypeString},
		}},
	}, &schema.Options{StorageCase: "snake"})
	require.NoError(t, err)
	return NewCompiler(codec.New(s))
}

func TestCompile(t *testing.T) {
	Convey("Compile", t, func() {
		c := newTestCompiler(t)

		Convey("空条件", func() {
			p, err := c.Compile("user", nil)
			So(err, ShouldBeNil)
			So(p.Empty(), ShouldBeTrue)
			So(p.Vars, ShouldBeEmpty)
		})

		Convey("等值", func() {
			p, err := c.Compile("user", []Condition{Eq("email", "a@b.com")})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "email = $user_email_0")
			So(p.Vars, ShouldResemble, map[string]any{"user_email_0": "a@b.com"})
		})

		Convey("比较操作符", func() {
			p, err := c.Compile("user", []Condition{
				{Field: "age", Operator: OperatorGte, Value: 18},
				{Field: "age", Operator: OperatorLt, Value: 60},
				{Field: "name", Operator: OperatorNe, Value: "root"},
				{Field: "age", Operator: OperatorLte, Value: 59, Connector: ConnectorOr},
				{Field: "age", Operator: OperatorGt, Value: 0},
			})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "age >= $user_age_0 AND age < $user_age_1 AND name != $user_name_2 OR age <= $user_age_3 AND age > $user_age_4")
			So(len(p.Vars), ShouldEqual, 5)
		})

		Convey("同一字段出现多次参数不冲突", func() {
			p, err := c.Compile("user", []Condition{Eq("email", "a"), Eq("email", "b").Or()})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "email = $user_email_0 OR email = $user_email_1")
			So(p.Vars["user_email_0"], ShouldEqual, "a")
			So(p.Vars["user_email_1"], ShouldEqual, "b")
		})

		Convey("空值忽略操作符", func() {
			p, err := c.Compile("user", []Condition{{Field: "name", Operator: OperatorStartsWith, Value: nil}})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "(name IS NONE OR name IS NULL)")
			So(p.Vars, ShouldBeEmpty)
		})

		Convey("字符串函数", func() {
			p, err := c.Compile("user", []Condition{
				{Field: "email", Operator: OperatorStartsWith, Value: "a"},
				{Field: "email", Operator: OperatorEndsWith, Value: ".com"},
				{Field: "name", Operator: OperatorContains, Value: "li"},
			})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "string::starts_with(email, $user_email_0) AND string::ends_with(email, $user_email_1) AND string::contains(name, $user_name_2)")
		})

		Convey("数组包含", func() {
			p, err := c.Compile("user", []Condition{{Field: "tags", Operator: OperatorContains, Value: "admin"}})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "tags CONTAINS $user_tags_0")
			So(p.Vars["user_tags_0"], ShouldEqual, "admin")
		})

		Convey("in", func() {
			p, err := c.Compile("user", []Condition{{Field: "age", Operator: OperatorIn, Value: []int{1, 2}}})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "age INSIDE $user_age_0")
			So(p.Vars["user_age_0"], ShouldResemble, []any{1, 2})

			_, err = c.Compile("user", []Condition{{Field: "age", Operator: OperatorIn, Value: 1}})
			So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
			So(errors.Is(err, schema.ErrConfiguration), ShouldBeTrue)
		})

		Convey("id 字段只在 eq ne in 时转换", func() {
			p, err := c.Compile("session", []Condition{
				Eq("userId", "u1"),
				{Field: "userId", Operator: OperatorIn, Value: []string{"u2", "u3"}},
				{Field: "id", Operator: OperatorNe, Value: "s1"},
				{Field: "userId", Operator: OperatorStartsWith, Value: "u"},
			})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "user_id = $session_user_id_0 AND user_id INSIDE $session_user_id_1 AND id != $session_id_2 AND string::starts_with(user_id, $session_user_id_3)")
			So(p.Vars["session_user_id_0"], ShouldResemble, models.RecordID{Table: "user", ID: "u1"})
			So(p.Vars["session_user_id_1"], ShouldResemble, []any{
				models.RecordID{Table: "user", ID: "u2"},
				models.RecordID{Table: "user", ID: "u3"},
			})
			So(p.Vars["session_id_2"], ShouldResemble, models.RecordID{Table: "session", ID: "s1"})
			So(p.Vars["session_user_id_3"], ShouldEqual, "u")
		})

		Convey("日期字符串", func() {
			p, err := c.Compile("user", []Condition{{Field: "createdAt", Operator: OperatorGt, Value: "2024-01-02T03:04:05Z"}})
			So(err, ShouldBeNil)
			So(p.Expr, ShouldEqual, "created_at > $user_created_at_0")
			_, ok := p.Vars["user_created_at_0"].(models.CustomDateTime)
			So(ok, ShouldBeTrue)
		})

		Convey("错误", func() {
			_, err := c.Compile("user", []Condition{Eq("nickname", "x")})
			So(errors.Is(err, schema.ErrConfiguration), ShouldBeTrue)
			_, err = c.Compile("team", []Condition{Eq("name", "x")})
			So(errors.Is(err, schema.ErrConfiguration), ShouldBeTrue)
			_, err = c.Compile("user", []Condition{{Field: "name", Operator: "like", Value: "x"}})
			So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
			_, err = c.Compile("user", []Condition{Eq("name", "x"), {Field: "name", Value: "y", Connector: "XOR"}})
			So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
		})
	})
}

func TestCompileSort(t *testing.T) {
	Convey("CompileSort", t, func() {
		c := newTestCompiler(t)

		s, err := c.CompileSort("user", []Sort{{Field: "createdAt", Direction: Desc}, {Field: "email"}})
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "created_at DESC, email ASC")

		s, err = c.CompileSort("user", nil)
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "")

		_, err = c.CompileSort("user", []Sort{{Field: "email", Direction: "up"}})
		So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
		_, err = c.CompileSort("user", []Sort{{Field: "nickname"}})
		So(errors.Is(err, schema.ErrConfiguration), ShouldBeTrue)
	})
}

func TestCompileSelect(t *testing.T) {
	Convey("CompileSelect", t, func() {
		c := newTestCompiler(t)

		s, err := c.CompileSelect("user", nil, false)
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "*")

		s, err = c.CompileSelect("user", nil, true)
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "* OMIT id")

		s, err = c.CompileSelect("user", []string{"email", "createdAt"}, false)
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "id, email, created_at")

		s, err = c.CompileSelect("user", []string{"email", "id"}, true)
		So(err, ShouldBeNil)
		So(s, ShouldEqual, "email")

		_, err = c.CompileSelect("user", []string{"id"}, true)
		So(errors.Is(err, ErrInvalidCondition), ShouldBeTrue)
		_, err = c.CompileSelect("user", []string{"nickname"}, false)
		So(errors.Is(err, schema.ErrConfiguration), ShouldBeTrue)
	})
}
