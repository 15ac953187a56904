package detect

import (
	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/core/signal"
)

// RiseEvent 一次持续起升
// StartMs < PeakMs；Amount 为峰值与起点的平滑值之差。
type RiseEvent struct {
	// StartMs 起升开始时间
	StartMs int64 `json:"start_ms"`
	// PeakMs 峰值时间（差分由正转为非正的位置）
	PeakMs int64 `json:"peak_ms"`
	// Amount 起升幅度
	Amount float64 `json:"amount"`
}

// FindRises 在调理后的信号中查找所有幅度不低于 minRise 的持续起升
// 连续 MinConsecutiveRising 个差分样本超过 RiseDerivativeThreshold 才视为起升开始，
// 用以抑制单样本噪声尖峰；起升持续到差分降为 <=0（局部极大值）。
func FindRises(c signal.Conditioned, minRise float64) []RiseEvent {
	d := c.Derivative
	if d.Len() < 2 {
		return nil
	}

	// 差分下标 j 对应平滑序列下标 j+1
	smoothedAt := func(j int) float64 {
		return c.Smoothed.Values[j+1]
	}

	var rises []RiseEvent
	startIdx := -1
	var startValue float64
	consecutive := 0

	for i := 1; i < d.Len(); i++ {
		prev := d.Values[i-1]
		curr := d.Values[i]

		if curr > RiseDerivativeThreshold {
			consecutive++
			if consecutive >= MinConsecutiveRising && startIdx < 0 {
				startIdx = i - consecutive
				startValue = smoothedAt(startIdx)
			}
		} else {
			consecutive = 0
		}

		if prev > 0 && curr <= 0 && startIdx >= 0 {
			amount := smoothedAt(i-1) - startValue
			if amount >= minRise {
				rises = append(rises, RiseEvent{
					StartMs: d.Timestamps[startIdx],
					PeakMs:  d.Timestamps[i-1],
					Amount:  amount,
				})
			}
			startIdx = -1
		}
	}
	return rises
}

// MainRise 选择幅度最大的起升作为该侧主事件（幅度相同取最早）
func MainRise(rises []RiseEvent) (RiseEvent, bool) {
	if len(rises) == 0 {
		return RiseEvent{}, false
	}
	best := rises[0]
	for _, r := range rises[1:] {
		if r.Amount > best.Amount {
			best = r
		}
	}
	return best, true
}

// confirmOutcome 同一事件确认结果
type confirmOutcome int

const (
	// outcomeNoRise 任一侧没有合格起升（或序列不足两点）
	outcomeNoRise confirmOutcome = iota
	// outcomeGapRejected 两侧峰值间隔超过 max_peak_gap_ms
	outcomeGapRejected
	// outcomeConfirmed 两侧主起升属于同一次穿越
	outcomeConfirmed
)

// confirmRises 对两侧执行起升检测并做同一事件门控
func confirmRises(s sides, cfg config.DetectionConfig) (mainA, mainB RiseEvent, outcome confirmOutcome) {
	ca := signal.Condition(s.a, cfg.SmoothingWindow)
	cb := signal.Condition(s.b, cfg.SmoothingWindow)
	if ca.Derivative.Len() == 0 || cb.Derivative.Len() == 0 {
		return RiseEvent{}, RiseEvent{}, outcomeNoRise
	}

	mainA, okA := MainRise(FindRises(ca, cfg.MinRise))
	mainB, okB := MainRise(FindRises(cb, cfg.MinRise))
	if !okA || !okB {
		return RiseEvent{}, RiseEvent{}, outcomeNoRise
	}

	if absInt64(mainA.PeakMs-mainB.PeakMs) > cfg.MaxPeakGapMs {
		return mainA, mainB, outcomeGapRejected
	}
	return mainA, mainB, outcomeConfirmed
}

// gapRejected 峰值间隔超限时的诊断结果
func gapRejected(s sides, mainA, mainB RiseEvent) model.DetectionResult {
	return unknown(s,
		model.Int64Ptr(mainA.PeakMs),
		model.Int64Ptr(mainB.PeakMs),
		model.Int64Ptr(absInt64(mainA.PeakMs-mainB.PeakMs)),
	)
}

// DetectRiseStart 起升时间检测器
// 物体位于两侧之间时两侧峰值几乎同时出现，无法区分方向；起升开始时间才携带方向信息。
// 先起升的一侧为入口侧；起升时间相同则比较峰值时间。
func DetectRiseStart(readings []model.SensorReading, cfg config.DetectionConfig) model.DetectionResult {
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

	riseGap := absInt64(mainA.StartMs - mainB.StartMs)
	timeA := model.Int64Ptr(mainA.StartMs)
	timeB := model.Int64Ptr(mainB.StartMs)

	direction := earlier(float64(mainA.StartMs), float64(mainB.StartMs))
	if direction == model.DirectionUnknown {
		direction = earlier(float64(mainA.PeakMs), float64(mainB.PeakMs))
	}
	if direction == model.DirectionUnknown || riseGap > cfg.MaxPeakGapMs {
		return unknown(s, timeA, timeB, model.Int64Ptr(riseGap))
	}

	return model.DetectionResult{
		Direction:  direction,
		Confidence: confidence(float64(riseGap), riseGapNormMs, mainA.Amount+mainB.Amount),
		EventTimeA: timeA,
		EventTimeB: timeB,
		GapMs:      model.Int64Ptr(riseGap),
		SideAMax:   s.maxA,
		SideBMax:   s.maxB,
	}
}
