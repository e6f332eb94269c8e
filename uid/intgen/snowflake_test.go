package intgen

import (
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSnowflakeGenerator(t *testing.T) {
	Convey("SnowflakeGenerator", t, func() {
		machineID := int64(1025)
		g := NewSnowflakeGeneratorWithOptions(&SnowflakeOptions{MachineID: &machineID})

		Convey("机器 id 截断到 10 位", func() {
			So(g.machineID, ShouldEqual, 1)
			id := g.Generate()
			So(id>>machineIDShift&maxMachineID, ShouldEqual, 1)
		})

		Convey("并发生成不重复", func() {
			var mu sync.Mutex
			var wg sync.WaitGroup
			seen := map[int64]bool{}
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 1000; j++ {
						id := g.Generate()
						mu.Lock()
						seen[id] = true
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			So(len(seen), ShouldEqual, 8000)
		})
	})
}
