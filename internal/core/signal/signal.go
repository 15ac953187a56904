// Package signal 实现侧信号聚合与信号调理（平滑、一阶差分）。
// 所有序列均按时间戳升序存储，迭代顺序是差分与起升遍历的前提。
package signal

import (
	"sort"

	"transit-direction-validator/internal/core/model"
)

// SideSignal 单侧聚合信号
// 时间戳唯一且升序；值为同一时间戳下同侧所有读数之和。
type SideSignal struct {
	// Timestamps 时间戳（毫秒，升序）
	Timestamps []int64
	// Values 聚合接近度
	Values []int64
}

// Len 采样点数
func (s SideSignal) Len() int {
	return len(s.Timestamps)
}

// Empty 是否没有任何采样点
func (s SideSignal) Empty() bool {
	return len(s.Timestamps) == 0
}

// Max 返回峰值，空信号返回 0
func (s SideSignal) Max() int64 {
	var max int64
	for i, v := range s.Values {
		if i == 0 || v > max {
			max = v
		}
	}
	return max
}

// Float 转换为浮点序列
func (s SideSignal) Float() Series {
	out := Series{
		Timestamps: s.Timestamps,
		Values:     make([]float64, len(s.Values)),
	}
	for i, v := range s.Values {
		out.Values[i] = float64(v)
	}
	return out
}

// Series 浮点序列（平滑值或差分值）
type Series struct {
	// Timestamps 时间戳（毫秒，升序）
	Timestamps []int64
	// Values 序列值
	Values []float64
}

// Len 采样点数
func (s Series) Len() int {
	return len(s.Timestamps)
}

// Conditioned 调理后的信号对
type Conditioned struct {
	// Smoothed 平滑序列，时间域与源信号一致
	Smoothed Series
	// Derivative 差分序列，时间域为源信号去掉第一个时间戳
	Derivative Series
}

// Aggregate 将读数按逻辑侧聚合为每毫秒信号
// 同一时间戳的同侧读数求和（多块板同时上报是预期行为）。
// 返回: A 侧与 B 侧信号，无读数的一侧为空信号
func Aggregate(readings []model.SensorReading) (sideA, sideB SideSignal) {
	sumA := make(map[int64]int64)
	sumB := make(map[int64]int64)
	for _, r := range readings {
		if r.LogicalSide() == model.SideA {
			sumA[r.TimestampMs] += r.Proximity
		} else {
			sumB[r.TimestampMs] += r.Proximity
		}
	}
	return fromMap(sumA), fromMap(sumB)
}

func fromMap(m map[int64]int64) SideSignal {
	out := SideSignal{
		Timestamps: make([]int64, 0, len(m)),
		Values:     make([]int64, 0, len(m)),
	}
	for ts := range m {
		out.Timestamps = append(out.Timestamps, ts)
	}
	sort.Slice(out.Timestamps, func(i, j int) bool { return out.Timestamps[i] < out.Timestamps[j] })
	for _, ts := range out.Timestamps {
		out.Values = append(out.Values, m[ts])
	}
	return out
}

// Smooth 尾随滑动平均
// 下标 i 的输出为 [max(0, i-window+1) .. i] 的均值；不做前瞻，与实时消费方式一致。
// window < 1 按 1 处理。
func Smooth(s SideSignal, window int) Series {
	if window < 1 {
		window = 1
	}
	out := Series{
		Timestamps: append([]int64(nil), s.Timestamps...),
		Values:     make([]float64, len(s.Values)),
	}

	var sum int64
	for i, v := range s.Values {
		sum += v
		if i >= window {
			sum -= s.Values[i-window]
		}
		n := window
		if i+1 < window {
			n = i + 1
		}
		out.Values[i] = float64(sum) / float64(n)
	}
	return out
}

// Derivative 一阶差分
// 下标 i>=1 的值为 s[i]-s[i-1]（值域差，不除以时间间隔）；时间域不含第一个时间戳。
func Derivative(s Series) Series {
	if s.Len() < 2 {
		return Series{}
	}
	out := Series{
		Timestamps: make([]int64, 0, s.Len()-1),
		Values:     make([]float64, 0, s.Len()-1),
	}
	for i := 1; i < s.Len(); i++ {
		out.Timestamps = append(out.Timestamps, s.Timestamps[i])
		out.Values = append(out.Values, s.Values[i]-s.Values[i-1])
	}
	return out
}

// Condition 平滑并计算差分
func Condition(s SideSignal, window int) Conditioned {
	smoothed := Smooth(s, window)
	return Conditioned{
		Smoothed:   smoothed,
		Derivative: Derivative(smoothed),
	}
}
