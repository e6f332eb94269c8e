package surreal

import (
	"context"
	"testing"

	"github.com/hatlonely/surrealx/conn"
	"github.com/hatlonely/surrealx/ref"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestNewDialerWithOptions(t *testing.T) {
	Convey("NewDialerWithOptions", t, func() {
		Convey("参数校验", func() {
			_, err := NewDialerWithOptions(nil)
			So(err, ShouldNotBeNil)
			_, err = NewDialerWithOptions(&Options{Address: "ws://localhost:8000/rpc"})
			So(err, ShouldNotBeNil)
		})

		Convey("通过注册表构造", func() {
			d, err := ref.New("github.com/hatlonely/surrealx/surreal", "Dialer", &Options{
				Address:   "ws://localhost:8000/rpc",
				Namespace: "app",
				Database:  "auth",
			})
			So(err, ShouldBeNil)
			_, ok := d.(conn.Dialer)
			So(ok, ShouldBeTrue)
		})

		Convey("地址不可达", func() {
			d, err := NewDialerWithOptions(&Options{
				Address:   "ws://127.0.0.1:1/rpc",
				Namespace: "app",
				Database:  "auth",
			})
			So(err, ShouldBeNil)
			_, err = d.Dial(context.Background())
			So(errors.Is(err, conn.ErrConnection), ShouldBeTrue)
		})

		Convey("已取消的 context", func() {
			d, err := NewDialerWithOptions(&Options{Address: "ws://127.0.0.1:1/rpc", Namespace: "app", Database: "auth"})
			So(err, ShouldBeNil)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = d.Dial(ctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestRows(t *testing.T) {
	Convey("Rows", t, func() {
		id := models.RecordID{Table: "user", ID: "u1"}

		So(Rows(nil), ShouldBeNil)
		So(Rows(true), ShouldResemble, []map[string]any{{"result": true}})
		So(Rows(map[any]any{"id": id}), ShouldResemble, []map[string]any{{"id": id}})
		So(Rows([]any{
			map[any]any{"id": id, "count": uint64(1)},
			map[string]any{"email": "a@b.com"},
			uint64(3),
		}), ShouldResemble, []map[string]any{
			{"id": id, "count": uint64(1)},
			{"email": "a@b.com"},
			{"result": uint64(3)},
		})
		So(Rows([]any{}), ShouldResemble, []map[string]any{})
	})
}
