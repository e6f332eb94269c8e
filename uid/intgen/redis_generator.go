package intgen

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr     string        `cfg:"addr" def:"localhost:6379"`
	Password string        `cfg:"password"`
	DB       int           `cfg:"db"`
	KeyName  string        `cfg:"keyName" def:"surrealx:uid"`
	Timeout  time.Duration `cfg:"timeout" def:"3s"`
}

// RedisGenerator 多实例共享的 id 生成器：毫秒时间戳 << 12 | redis INCR 得到的序列号
// redis 不可用时退化为只有时间戳的 id
type RedisGenerator struct {
	client  redis.UniversalClient
	keyName string
	timeout time.Duration
}

func NewRedisGeneratorWithOptions(options *RedisOptions) *RedisGenerator {
	if options == nil {
		options = &RedisOptions{}
	}
	g := &RedisGenerator{
		keyName: options.KeyName,
		timeout: options.Timeout,
	}
	if g.keyName == "" {
		g.keyName = "surrealx:uid"
	}
	if g.timeout == 0 {
		g.timeout = 3 * time.Second
	}
	addr := options.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	g.client = redis.NewClient(&redis.Options{Addr: addr, Password: options.Password, DB: options.DB})
	return g
}

func (g *RedisGenerator) Generate() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	for {
		ts := time.Now().UnixMilli()
		key := g.keyName + ":" + strconv.FormatInt(ts, 10)
		n, err := g.client.Incr(ctx, key).Result()
		if err != nil {
			return ts << 12
		}
		if n == 1 {
			g.client.Expire(ctx, key, 2*time.Second)
		}
		if n <= 4096 {
			return ts<<12 | (n - 1)
		}
		// 当前毫秒序列号用完
		time.Sleep(time.Millisecond)
	}
}
