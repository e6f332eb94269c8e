package strgen

import (
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/hatlonely/surrealx/ref"
)

func init() {
	ref.MustRegisterT[UUIDGenerator](NewUUIDGeneratorWithOptions)
}

// StrGenerator 字符串 id 生成器
type StrGenerator interface {
	Generate() string
}

type UUIDOptions struct {
	// v4 或 v7，v7 按时间有序，适合作为记录 id
	Version string `cfg:"version" def:"v7" validate:"omitempty,oneof=v4 v7"`
	// 是否保留连字符
	WithHyphens bool `cfg:"withHyphens"`
}

// UUIDGenerator 生成 uuid，默认去掉连字符，得到 32 位十六进制串
type UUIDGenerator struct {
	version     string
	withHyphens bool
}

func NewUUIDGeneratorWithOptions(options *UUIDOptions) *UUIDGenerator {
	g := &UUIDGenerator{version: "v7"}
	if options != nil {
		if options.Version != "" {
			g.version = options.Version
		}
		g.withHyphens = options.WithHyphens
	}
	return g
}

func (g *UUIDGenerator) Generate() string {
	u := uuid.New()
	if g.version == "v7" {
		if v7, err := uuid.NewV7(); err == nil {
			u = v7
		}
	}
	if g.withHyphens {
		return u.String()
	}
	return hex.EncodeToString(u[:])
}
