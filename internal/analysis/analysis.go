// Package analysis 统计会话的采样时序与各传感器信号质量，
// 用于比较固件积分时间等采集配置。
package analysis

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"transit-direction-validator/internal/core/model"
)

// SensorStats 单个传感器的信号统计
type SensorStats struct {
	// Name 传感器名称，如 P1S2
	Name string `json:"name"`
	// Reads 读数条数
	Reads int `json:"reads"`
	// Baseline 基线（中位数，偶数条时取下中位数）
	Baseline float64 `json:"baseline"`
	// Peak 最大读数
	Peak float64 `json:"peak"`
	// Range 峰值减基线
	Range float64 `json:"range"`
	// SNR 峰值/基线，基线为 0 时为 0
	SNR float64 `json:"snr"`
	// Changes 相邻读数取值变化次数
	Changes int `json:"changes"`
	// EffectiveHz 实际更新频率
	EffectiveHz float64 `json:"effective_hz"`
	// Redundancy 每次取值变化对应的读取次数
	Redundancy float64 `json:"redundancy"`
}

// SessionStats 会话统计
type SessionStats struct {
	// Name 会话名称
	Name string `json:"name"`
	// SpanMs 首末时间戳之差
	SpanMs int64 `json:"span_ms"`
	// Cycles 不同时间戳个数（每个时间戳为一轮 6 传感器读取）
	Cycles int `json:"cycles"`
	// ReadRateHz 固件读取频率
	ReadRateHz float64 `json:"read_rate_hz"`
	// GapMeanMs 相邻时间戳间隔均值
	GapMeanMs float64 `json:"gap_mean_ms"`
	// GapMinMs 间隔最小值
	GapMinMs float64 `json:"gap_min_ms"`
	// GapMaxMs 间隔最大值
	GapMaxMs float64 `json:"gap_max_ms"`
	// Sensors 按 pcb_id、side 排序的传感器统计
	Sensors []SensorStats `json:"sensors"`
	// AvgRedundancy 各传感器冗余度均值
	AvgRedundancy float64 `json:"avg_redundancy"`
	// IntegrationTime 由冗余度估计的积分时间档位
	IntegrationTime string `json:"integration_time"`
}

// EstimateIntegrationTime 由平均冗余度估计传感器积分时间
// 占空比 1/40 时：1T 约 2.3 倍，2T 约 4.5 倍，4T 约 9 倍，8T 约 18 倍。
func EstimateIntegrationTime(avgRedundancy float64) string {
	switch {
	case avgRedundancy > 12:
		return "8T"
	case avgRedundancy > 6:
		return "4T"
	case avgRedundancy > 3:
		return "2T"
	default:
		return "1T/1.5T"
	}
}

type sensorKey struct {
	module int
	side   model.SensorSide
}

// Analyze 统计一个会话
// 读数应已按时间排序；传感器内部按读数顺序统计取值变化。
// 参数 name: 会话名称
// 参数 readings: 会话读数
func Analyze(name string, readings []model.SensorReading) SessionStats {
	out := SessionStats{Name: name}
	if len(readings) == 0 {
		out.IntegrationTime = EstimateIntegrationTime(0)
		return out
	}

	timestamps := distinctTimestamps(readings)
	out.Cycles = len(timestamps)
	out.SpanMs = int64(timestamps[len(timestamps)-1] - timestamps[0])
	if out.SpanMs > 0 {
		out.ReadRateHz = float64(out.Cycles) / float64(out.SpanMs) * 1000
	}
	if len(timestamps) > 1 {
		gaps := make([]float64, len(timestamps)-1)
		floats.SubTo(gaps, timestamps[1:], timestamps[:len(timestamps)-1])
		out.GapMeanMs = stat.Mean(gaps, nil)
		out.GapMinMs = floats.Min(gaps)
		out.GapMaxMs = floats.Max(gaps)
	}

	groups := make(map[sensorKey][]float64)
	var keys []sensorKey
	for _, r := range readings {
		k := sensorKey{module: r.ModuleID, side: r.Side}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], float64(r.Proximity))
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].module != keys[j].module {
			return keys[i].module < keys[j].module
		}
		return keys[i].side < keys[j].side
	})

	redundancies := make([]float64, 0, len(keys))
	for _, k := range keys {
		s := sensorStats(k, groups[k], out.SpanMs)
		out.Sensors = append(out.Sensors, s)
		redundancies = append(redundancies, s.Redundancy)
	}
	out.AvgRedundancy = stat.Mean(redundancies, nil)
	out.IntegrationTime = EstimateIntegrationTime(out.AvgRedundancy)
	return out
}

func sensorStats(k sensorKey, values []float64, spanMs int64) SensorStats {
	s := SensorStats{
		Name:  model.SensorReading{ModuleID: k.module, Side: k.side}.SensorName(),
		Reads: len(values),
	}

	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1] {
			s.Changes++
		}
	}
	if spanMs > 0 {
		s.EffectiveHz = float64(s.Changes) / float64(spanMs) * 1000
	}
	s.Redundancy = float64(s.Reads) / float64(max(s.Changes, 1))

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	s.Baseline = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.Peak = sorted[len(sorted)-1]
	s.Range = s.Peak - s.Baseline
	if s.Baseline > 0 {
		s.SNR = s.Peak / s.Baseline
	}
	return s
}

func distinctTimestamps(readings []model.SensorReading) []float64 {
	seen := make(map[int64]struct{}, len(readings))
	out := make([]float64, 0, len(readings))
	for _, r := range readings {
		if _, ok := seen[r.TimestampMs]; ok {
			continue
		}
		seen[r.TimestampMs] = struct{}{}
		out = append(out, float64(r.TimestampMs))
	}
	sort.Float64s(out)
	return out
}
