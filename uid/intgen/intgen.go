package intgen

import "github.com/hatlonely/surrealx/ref"

func init() {
	ref.MustRegisterT[SnowflakeGenerator](NewSnowflakeGeneratorWithOptions)
	ref.MustRegisterT[RedisGenerator](NewRedisGeneratorWithOptions)
}

// IntGenerator 64 位整数 id 生成器
type IntGenerator interface {
	Generate() int64
}
