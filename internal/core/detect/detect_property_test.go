// Package detect 检测器属性测试
package detect

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
)

// genReadings 生成每毫秒双侧采样的随机会话
func genReadings() gopter.Gen {
	return gopter.CombineGens(
		gen.SliceOfN(80, gen.Int64Range(0, 200)),
		gen.SliceOfN(80, gen.Int64Range(0, 200)),
	).Map(func(vals []interface{}) []model.SensorReading {
		a := vals[0].([]int64)
		b := vals[1].([]int64)
		out := make([]model.SensorReading, 0, len(a)+len(b))
		for i := range a {
			out = append(out,
				model.SensorReading{TimestampMs: int64(i), ModuleID: 1, Side: model.SensorSide2, Proximity: a[i]},
				model.SensorReading{TimestampMs: int64(i), ModuleID: 2, Side: model.SensorSide1, Proximity: b[i]},
			)
		}
		return out
	})
}

func genDetection() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 6),
		gen.Float64Range(0, 60),
		gen.Int64Range(0, 120),
	).Map(func(vals []interface{}) config.DetectionConfig {
		return config.DetectionConfig{
			Method:          "hybrid",
			SmoothingWindow: vals[0].(int),
			MinRise:         vals[1].(float64),
			MaxPeakGapMs:    vals[2].(int64),
		}
	})
}

func TestDetectors_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	for _, m := range model.Methods {
		m := m
		fn, err := For(m)
		if err != nil {
			t.Fatalf("For(%s): %v", m, err)
		}

		properties.Property(m.String()+": 交换两侧方向翻转且置信度不变", prop.ForAll(
			func(readings []model.SensorReading, cfg config.DetectionConfig) bool {
				orig := fn(readings, cfg)
				swapped := fn(swapSides(readings), cfg)
				if swapped.Direction != orig.Direction.Flip() {
					return false
				}
				if swapped.Confidence != orig.Confidence {
					return false
				}
				return cmp.Equal(orig.GapMs, swapped.GapMs) &&
					cmp.Equal(orig.EventTimeA, swapped.EventTimeB) &&
					orig.SideAMax == swapped.SideBMax
			},
			genReadings(),
			genDetection(),
		))

		properties.Property(m.String()+": 相同输入结果相同", prop.ForAll(
			func(readings []model.SensorReading, cfg config.DetectionConfig) bool {
				return cmp.Diff(fn(readings, cfg), fn(readings, cfg)) == ""
			},
			genReadings(),
			genDetection(),
		))

		properties.Property(m.String()+": 结果满足方向与置信度约束", prop.ForAll(
			func(readings []model.SensorReading, cfg config.DetectionConfig) bool {
				r := fn(readings, cfg)
				if r.Confidence < 0 || r.Confidence > 1 {
					return false
				}
				if !r.IsKnown() {
					return r.Confidence == 0
				}
				return r.GapMs != nil && *r.GapMs <= cfg.MaxPeakGapMs &&
					r.EventTimeA != nil && r.EventTimeB != nil
			},
			genReadings(),
			genDetection(),
		))

		properties.Property(m.String()+": min_rise 高于最大幅度时无方向", prop.ForAll(
			func(readings []model.SensorReading, cfg config.DetectionConfig) bool {
				r := fn(readings, cfg)
				peak := r.SideAMax
				if r.SideBMax > peak {
					peak = r.SideBMax
				}
				cfg.MinRise = float64(peak) + 1
				return fn(readings, cfg).Direction == model.DirectionUnknown
			},
			genReadings(),
			genDetection(),
		))

		properties.Property(m.String()+": 间隔增大置信度不降", prop.ForAll(
			func(g1, g2 int64) bool {
				if g1 > g2 {
					g1, g2 = g2, g1
				}
				cfg := config.DefaultDetection()
				r1 := fn(shiftedPulses(g1), cfg)
				r2 := fn(shiftedPulses(g2), cfg)
				if r1.Direction != model.DirectionAToB || r2.Direction != model.DirectionAToB {
					return false
				}
				return r1.Confidence <= r2.Confidence+1e-9
			},
			gen.Int64Range(1, 60),
			gen.Int64Range(1, 60),
		))
	}

	properties.TestingRun(t)
}

// shiftedPulses 两侧相同脉冲，B 侧延后 gap 毫秒
func shiftedPulses(gap int64) []model.SensorReading {
	return session(200,
		func(t int64) int64 { return pulse(t, 30, 10, 6) },
		func(t int64) int64 { return pulse(t, 30+gap, 10, 6) },
	)
}

func TestRiseStart_ShiftedPulseGap(t *testing.T) {
	for _, g := range []int64{1, 5, 20, 45, 60} {
		r := DetectRiseStart(shiftedPulses(g), config.DefaultDetection())
		if r.GapMs == nil || *r.GapMs != g {
			t.Fatalf("gap=%d: GapMs=%v", g, r.GapMs)
		}
		want := (math.Min(1, float64(g)/50) + 1) / 2
		if math.Abs(r.Confidence-want) > 1e-9 {
			t.Fatalf("gap=%d: Confidence=%f, want %f", g, r.Confidence, want)
		}
	}
}
