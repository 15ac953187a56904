// Package cadence 实现实时数据流的采样节奏统计。
// 统计两类间隔：会话内相邻采样时间戳之差（固件采样节奏）
// 与批次到达的墙钟间隔（传输节奏），均为滚动窗口分位数。
package cadence

import (
	"sort"
	"sync"

	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/util/timeutil"
)

// Stats 节奏统计快照（滚动窗口）
// 单位：毫秒。
type Stats struct {
	// Samples 采样间隔样本总数（累计）
	Samples int64
	// Batches 批次总数（累计）
	Batches int64

	// SampleGapP50Ms 相邻采样时间戳间隔 P50
	SampleGapP50Ms float64
	// SampleGapP90Ms 相邻采样时间戳间隔 P90
	SampleGapP90Ms float64
	// SampleGapP99Ms 相邻采样时间戳间隔 P99
	SampleGapP99Ms float64

	// BatchIntervalP50Ms 批次到达间隔 P50
	BatchIntervalP50Ms float64
	// BatchIntervalP90Ms 批次到达间隔 P90
	BatchIntervalP90Ms float64
	// BatchIntervalP99Ms 批次到达间隔 P99
	BatchIntervalP99Ms float64
}

type rollingWindow struct {
	size  int
	buf   []int64
	pos   int
	count int64
	full  bool
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]int64, 0, size)}
}

func (w *rollingWindow) add(v int64) {
	w.count++
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

// quantiles 最近邻分位数：下标 int((n-1)*q)
func (w *rollingWindow) quantiles(qs ...float64) []int64 {
	values := make([]int64, len(qs))
	if len(w.buf) == 0 {
		return values
	}

	tmp := make([]int64, len(w.buf))
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	n := len(tmp)
	for i, q := range qs {
		switch {
		case q <= 0:
			values[i] = tmp[0]
		case q >= 1:
			values[i] = tmp[n-1]
		default:
			values[i] = tmp[int(float64(n-1)*q)]
		}
	}
	return values
}

// Tracker 节奏追踪器
// 并发安全：监控进程的读循环与指标循环分别调用 Observe 与 Stats。
type Tracker struct {
	mu sync.Mutex

	sampleGap     *rollingWindow
	batchInterval *rollingWindow
	batches       int64

	// lastTs 每个会话最后一个采样时间戳
	lastTs map[string]int64
	// lastArrivedNs 上一批次到达时间
	lastArrivedNs int64
}

// NewTracker 创建节奏追踪器
// 参数 windowSize: 滚动窗口大小，用于 P50/P90/P99
func NewTracker(windowSize int) *Tracker {
	return &Tracker{
		sampleGap:     newRollingWindow(windowSize),
		batchInterval: newRollingWindow(windowSize),
		lastTs:        make(map[string]int64),
	}
}

// Observe 记录一个批次
// 参数 sessionID: 会话 ID，采样间隔只在同一会话内计算
// 参数 arrivedNs: 批次到达时间（纳秒）
// 参数 readings: 批次读数（按时间戳升序）；同一时间戳的多路读数只计一次
func (t *Tracker) Observe(sessionID string, arrivedNs int64, readings []model.SensorReading) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.batches++
	if t.lastArrivedNs > 0 && arrivedNs >= t.lastArrivedNs {
		t.batchInterval.add(timeutil.NanoToMs(arrivedNs - t.lastArrivedNs))
	}
	t.lastArrivedNs = arrivedNs

	last, seen := t.lastTs[sessionID]
	for _, r := range readings {
		if seen {
			if r.TimestampMs <= last {
				continue
			}
			t.sampleGap.add(r.TimestampMs - last)
		}
		last = r.TimestampMs
		seen = true
	}
	if seen {
		t.lastTs[sessionID] = last
	}
}

// Forget 会话结束后释放其状态
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastTs, sessionID)
}

// Stats 获取统计快照
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	gap := t.sampleGap.quantiles(0.50, 0.90, 0.99)
	interval := t.batchInterval.quantiles(0.50, 0.90, 0.99)

	return Stats{
		Samples:            t.sampleGap.count,
		Batches:            t.batches,
		SampleGapP50Ms:     float64(gap[0]),
		SampleGapP90Ms:     float64(gap[1]),
		SampleGapP99Ms:     float64(gap[2]),
		BatchIntervalP50Ms: float64(interval[0]),
		BatchIntervalP90Ms: float64(interval[1]),
		BatchIntervalP99Ms: float64(interval[2]),
	}
}
