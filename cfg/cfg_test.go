package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type connectionOptions struct {
	ProbeTimeout time.Duration `cfg:"probeTimeout" def:"5s"`
	Serialize    bool          `cfg:"serialize"`
}

type plugin struct {
	Type    string `cfg:"type"`
	Options any    `cfg:"options"`
}

type adapterOptions struct {
	Address    string            `cfg:"address" def:"ws://localhost:8000/rpc"`
	Namespace  string            `cfg:"namespace" validate:"required"`
	Database   string            `cfg:"database" validate:"required"`
	Pluralize  bool              `cfg:"pluralize"`
	MaxRows    int               `cfg:"maxRows" def:"100"`
	Exclude    []string          `cfg:"exclude" def:"providerId,accountId"`
	Connection connectionOptions `cfg:"connection"`
	Logger     *plugin           `cfg:"logger"`
	Labels     map[string]string `cfg:"labels"`
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Load", t, func() {
		Convey("yaml", func() {
			path := writeFile(t, "adapter.yaml", `
namespace: app
database: auth
pluralize: true
connection:
  probeTimeout: 2s
logger:
  type: SLog
  options:
    level: debug
labels:
  env: test
`)
			var options adapterOptions
			So(Load(path, &options), ShouldBeNil)
			So(options.Namespace, ShouldEqual, "app")
			So(options.Database, ShouldEqual, "auth")
			So(options.Pluralize, ShouldBeTrue)
			So(options.Address, ShouldEqual, "ws://localhost:8000/rpc")
			So(options.MaxRows, ShouldEqual, 100)
			So(options.Exclude, ShouldResemble, []string{"providerId", "accountId"})
			So(options.Connection.ProbeTimeout, ShouldEqual, 2*time.Second)
			So(options.Labels["env"], ShouldEqual, "test")
			So(options.Logger.Type, ShouldEqual, "SLog")

			node, ok := options.Logger.Options.(*Node)
			So(ok, ShouldBeTrue)
			var level struct {
				Level string `cfg:"level"`
			}
			So(node.ConvertTo(&level), ShouldBeNil)
			So(level.Level, ShouldEqual, "debug")
		})

		Convey("toml", func() {
			path := writeFile(t, "adapter.toml", `
namespace = "app"
database = "auth"
maxRows = 20

[connection]
serialize = true
`)
			var options adapterOptions
			So(Load(path, &options), ShouldBeNil)
			So(options.MaxRows, ShouldEqual, 20)
			So(options.Connection.Serialize, ShouldBeTrue)
			So(options.Connection.ProbeTimeout, ShouldEqual, 5*time.Second)
		})

		Convey("json", func() {
			path := writeFile(t, "adapter.json", `{"namespace": "app", "database": "auth", "maxRows": 7}`)
			var options adapterOptions
			So(Load(path, &options), ShouldBeNil)
			So(options.MaxRows, ShouldEqual, 7)
		})

		Convey("ini", func() {
			path := writeFile(t, "adapter.ini", `
namespace = app
database = auth
pluralize = true
exclude = providerId,userId

[connection]
probeTimeout = 3s
serialize = true

[labels]
env = test
`)
			var options adapterOptions
			So(Load(path, &options), ShouldBeNil)
			So(options.Namespace, ShouldEqual, "app")
			So(options.Pluralize, ShouldBeTrue)
			So(options.MaxRows, ShouldEqual, 100)
			So(options.Exclude, ShouldResemble, []string{"providerId", "userId"})
			So(options.Connection.ProbeTimeout, ShouldEqual, 3*time.Second)
			So(options.Connection.Serialize, ShouldBeTrue)
			So(options.Labels["env"], ShouldEqual, "test")
		})

		Convey("缺少必填字段", func() {
			path := writeFile(t, "adapter.yaml", "namespace: app\n")
			var options adapterOptions
			So(Load(path, &options), ShouldNotBeNil)
		})

		Convey("不支持的后缀", func() {
			path := writeFile(t, "adapter.conf", "namespace = app\n")
			var options adapterOptions
			So(Load(path, &options), ShouldNotBeNil)
		})

		Convey("文件不存在", func() {
			var options adapterOptions
			So(Load(filepath.Join(t.TempDir(), "missing.yaml"), &options), ShouldNotBeNil)
		})

		Convey("类型不匹配", func() {
			path := writeFile(t, "adapter.yaml", "namespace: app\ndatabase: auth\nmaxRows: many\n")
			var options adapterOptions
			So(Load(path, &options), ShouldNotBeNil)
		})
	})
}

func TestNodeSub(t *testing.T) {
	Convey("Node.Sub", t, func() {
		node, err := Decode([]byte("adapter:\n  connection:\n    serialize: true\n"), FormatYaml)
		So(err, ShouldBeNil)

		var conn connectionOptions
		So(node.Sub("adapter.connection").ConvertTo(&conn), ShouldBeNil)
		So(conn.Serialize, ShouldBeTrue)

		So(node.Sub("adapter.missing.key").Data(), ShouldBeNil)
	})
}

func TestSetDefaults(t *testing.T) {
	Convey("SetDefaults", t, func() {
		Convey("只填充零值", func() {
			options := adapterOptions{MaxRows: 3}
			So(SetDefaults(&options), ShouldBeNil)
			So(options.MaxRows, ShouldEqual, 3)
			So(options.Address, ShouldEqual, "ws://localhost:8000/rpc")
			So(options.Connection.ProbeTimeout, ShouldEqual, 5*time.Second)
		})

		Convey("非指针报错", func() {
			So(SetDefaults(adapterOptions{}), ShouldNotBeNil)
		})

		Convey("非法默认值报错", func() {
			var bad struct {
				N int `def:"abc"`
			}
			So(SetDefaults(&bad), ShouldNotBeNil)
		})
	})
}
