package detect

import (
	"math"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
)

// DetectHybrid 混合检测器
// 先用起升检测确认两侧属于同一次穿越（峰值间隔门控），再用质心判定方向。
// 任一侧质心无定义时退化为比较峰值时间。
func DetectHybrid(readings []model.SensorReading, cfg config.DetectionConfig) model.DetectionResult {
	s, ok := prepare(readings)
	if !ok {
		return unknown(s, nil, nil, nil)
	}

	mainA, mainB, outcome := confirmRises(s, cfg)
	switch outcome {
	case outcomeNoRise:
		return unknown(s, nil, nil, nil)
	case outcomeGapRejected:
		return gapRejected(s, mainA, mainB)
	}

	var (
		direction    model.Direction
		timeA, timeB *int64
		gapMs        int64
		gap          float64
	)

	minValue := cfg.MinRise / 2
	comA, okA := CenterOfMass(s.a, minValue)
	comB, okB := CenterOfMass(s.b, minValue)
	if okA && okB {
		gap = math.Abs(comA - comB)
		gapMs = int64(gap)
		timeA, timeB = truncPtr(comA), truncPtr(comB)
		direction = earlier(comA, comB)
		if direction == model.DirectionUnknown {
			direction = earlier(float64(mainA.PeakMs), float64(mainB.PeakMs))
		}
	} else {
		gapMs = absInt64(mainA.PeakMs - mainB.PeakMs)
		gap = float64(gapMs)
		timeA, timeB = model.Int64Ptr(mainA.PeakMs), model.Int64Ptr(mainB.PeakMs)
		direction = earlier(float64(mainA.PeakMs), float64(mainB.PeakMs))
	}

	if direction == model.DirectionUnknown || gapMs > cfg.MaxPeakGapMs {
		return unknown(s, timeA, timeB, model.Int64Ptr(gapMs))
	}

	return model.DetectionResult{
		Direction:  direction,
		Confidence: confidence(gap, centerGapNormMs, float64(s.maxA+s.maxB)),
		EventTimeA: timeA,
		EventTimeB: timeB,
		GapMs:      model.Int64Ptr(gapMs),
		SideAMax:   s.maxA,
		SideBMax:   s.maxB,
	}
}
