package schema

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type User struct {
	ID        string    `sdb:"id"`
	Email     string    `sdb:"email,required,unique"`
	Name      string    `sdb:"name,default='anonymous'"`
	Age       int       `sdb:",default=18"`
	Active    bool      `sdb:"active,default=true"`
	CreatedAt time.Time `sdb:"createdAt"`
	Tags      []string
	Profile   map[string]any
	Temp      string `sdb:"-"`
	internal  string
}

type Session struct {
	UserID string `sdb:"userId,ref=user,onDelete=restrict"`
	Token  string `sdb:"token,storage=session_token"`
}

func (Session) EntityName() string {
	return "authSession"
}

func TestFromStruct(t *testing.T) {
	Convey("FromStruct", t, func() {
		Convey("User", func() {
			e, err := FromStruct(&User{})
			So(err, ShouldBeNil)
			So(e.Name, ShouldEqual, "user")
			So(len(e.Fields), ShouldEqual, 8)

			So(e.Fields[0].Name, ShouldEqual, "id")
			So(e.Fields[1].Required, ShouldBeTrue)
			So(e.Fields[1].Unique, ShouldBeTrue)
			So(e.Fields[2].Default, ShouldEqual, "anonymous")
			So(e.Fields[3].Name, ShouldEqual, "age")
			So(e.Fields[3].Type, ShouldEqual, FieldTypeNumber)
			So(e.Fields[3].Default, ShouldEqual, int64(18))
			So(e.Fields[4].Default, ShouldEqual, true)
			So(e.Fields[5].Type, ShouldEqual, FieldTypeDate)
			So(e.Fields[6].Type, ShouldEqual, FieldTypeArray)
			So(e.Fields[6].ElementType, ShouldEqual, FieldTypeString)
			So(e.Fields[7].Type, ShouldEqual, FieldTypeJSON)
		})

		Convey("引用和自定义实体名", func() {
			e, err := FromStruct(Session{})
			So(err, ShouldBeNil)
			So(e.Name, ShouldEqual, "authSession")
			So(e.Fields[0].References.Entity, ShouldEqual, "user")
			So(e.Fields[0].References.OnDelete, ShouldEqual, OnDeleteRestrict)
			So(e.Fields[1].StorageName, ShouldEqual, "session_token")

			user, err := FromStruct(User{})
			So(err, ShouldBeNil)
			s, err := New([]Entity{user, e}, nil)
			So(err, ShouldBeNil)
			name, err := s.StorageFieldName("authSession", "token")
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "session_token")
		})

		Convey("非法输入", func() {
			_, err := FromStruct(1)
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

			_, err = FromStruct(struct {
				A string `sdb:"a,primary"`
			}{})
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)

			_, err = FromStruct(struct {
				A string `sdb:"a,onDelete=cascade"`
			}{})
			So(errors.Is(err, ErrConfiguration), ShouldBeTrue)
		})
	})
}
