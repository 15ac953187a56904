package detect

import (
	"math"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/core/signal"
)

// CenterOfMass 计算信号的时间质心
// 权重为 max(0, value-minValue)，只有超过基线的部分参与计算。
// 总权重低于 CenterOfMassWeightFloor 时视为无有效活动，返回 ok=false。
func CenterOfMass(s signal.SideSignal, minValue float64) (com float64, ok bool) {
	var weighted, total float64
	for i, v := range s.Values {
		w := float64(v) - minValue
		if w <= 0 {
			continue
		}
		weighted += float64(s.Timestamps[i]) * w
		total += w
	}
	if total < CenterOfMassWeightFloor {
		return 0, false
	}
	return weighted / total, true
}

// truncPtr 质心时间向零截断为毫秒
func truncPtr(v float64) *int64 {
	return model.Int64Ptr(int64(v))
}

// DetectCenterOfMass 质心检测器
// 直接使用原始聚合信号（不平滑）；基线为 min_rise/2。
// 质心更早的一侧为入口侧，物体在该侧停留的"质量"先出现。
func DetectCenterOfMass(readings []model.SensorReading, cfg config.DetectionConfig) model.DetectionResult {
	s, ok := prepare(readings)
	if !ok {
		return unknown(s, nil, nil, nil)
	}

	minValue := cfg.MinRise / 2
	comA, okA := CenterOfMass(s.a, minValue)
	comB, okB := CenterOfMass(s.b, minValue)
	if !okA || !okB {
		var timeA, timeB *int64
		if okA {
			timeA = truncPtr(comA)
		}
		if okB {
			timeB = truncPtr(comB)
		}
		return unknown(s, timeA, timeB, nil)
	}

	comGap := math.Abs(comA - comB)
	gapMs := int64(comGap)
	timeA, timeB := truncPtr(comA), truncPtr(comB)

	// 任一侧信号过弱
	if float64(s.maxA) < cfg.MinRise || float64(s.maxB) < cfg.MinRise {
		return unknown(s, timeA, timeB, model.Int64Ptr(gapMs))
	}

	direction := earlier(comA, comB)
	if direction == model.DirectionUnknown || gapMs > cfg.MaxPeakGapMs {
		return unknown(s, timeA, timeB, model.Int64Ptr(gapMs))
	}

	return model.DetectionResult{
		Direction:  direction,
		Confidence: confidence(comGap, centerGapNormMs, float64(s.maxA+s.maxB)),
		EventTimeA: timeA,
		EventTimeB: timeB,
		GapMs:      model.Int64Ptr(gapMs),
		SideAMax:   s.maxA,
		SideBMax:   s.maxB,
	}
}
