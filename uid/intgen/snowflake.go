package intgen

import (
	"net"
	"sync/atomic"
	"time"
)

// SnowflakeOptions MachineID 为空时取本机第一个非回环 IPv4 的低 10 位
type SnowflakeOptions struct {
	MachineID *int64 `cfg:"machineId"`
}

// SnowflakeGenerator 1 位符号 + 41 位毫秒时间戳 + 10 位机器 id + 12 位序列号
type SnowflakeGenerator struct {
	// 高位时间戳，低 12 位序列号
	state     int64
	machineID int64
	epoch     int64
}

const (
	sequenceBits   = 12
	machineIDBits  = 10
	maxSequence    = 1<<sequenceBits - 1
	maxMachineID   = 1<<machineIDBits - 1
	machineIDShift = sequenceBits
	timestampShift = sequenceBits + machineIDBits
)

var snowflakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

func NewSnowflakeGeneratorWithOptions(options *SnowflakeOptions) *SnowflakeGenerator {
	machineID := int64(0)
	if options != nil && options.MachineID != nil {
		machineID = *options.MachineID
	} else {
		machineID = machineIDFromIP()
	}
	return &SnowflakeGenerator{
		state:     (time.Now().UnixMilli() - snowflakeEpoch) << sequenceBits,
		machineID: machineID & maxMachineID,
		epoch:     snowflakeEpoch,
	}
}

func machineIDFromIP() int64 {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return 0
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip := ipnet.IP.To4(); ip != nil {
				return int64(ip[2])<<8 | int64(ip[3])
			}
		}
	}
	return 0
}

func (g *SnowflakeGenerator) Generate() int64 {
	for {
		old := atomic.LoadInt64(&g.state)
		oldTs, oldSeq := old>>sequenceBits, old&maxSequence

		ts := time.Now().UnixMilli() - g.epoch
		seq := int64(0)
		if ts <= oldTs {
			// 时钟回拨或同一毫秒，沿用旧时间戳
			ts = oldTs
			seq = (oldSeq + 1) & maxSequence
			if seq == 0 {
				for ts <= oldTs {
					ts = time.Now().UnixMilli() - g.epoch
				}
			}
		}

		if atomic.CompareAndSwapInt64(&g.state, old, ts<<sequenceBits|seq) {
			return ts<<timestampShift | g.machineID<<machineIDShift | seq
		}
	}
}
