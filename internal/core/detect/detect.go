// Package detect 实现三种穿越方向检测策略：起升时间、质心与混合。
// 每个检测器都是纯函数：同样的读数与参数总是得到相同结果，不保存任何状态。
// 无法判定方向属于正常结果（Direction=unknown），不以 error 形式返回。
package detect

import (
	"math"

	"transit-direction-validator/internal/config"
	"transit-direction-validator/internal/core/model"
	"transit-direction-validator/internal/core/signal"
)

const (
	// RiseDerivativeThreshold 起升判定的差分阈值（经验值，与 min_rise 独立）
	RiseDerivativeThreshold = 2.0
	// MinConsecutiveRising 判定起升所需的连续超阈值样本数
	MinConsecutiveRising = 2
	// CenterOfMassWeightFloor 质心总权重下限（绝对值），低于此值视为无有效活动
	CenterOfMassWeightFloor = 10.0

	// riseGapNormMs 起升时间差归一化（50ms 即满分）
	riseGapNormMs = 50.0
	// centerGapNormMs 质心时间差归一化（30ms 即满分）
	centerGapNormMs = 30.0
	// amplitudeNorm 信号强度归一化
	amplitudeNorm = 100.0
)

// Func 检测器签名
type Func func(readings []model.SensorReading, cfg config.DetectionConfig) model.DetectionResult

// For 返回策略对应的检测器
func For(m model.Method) (Func, error) {
	switch m {
	case model.MethodRiseStart:
		return DetectRiseStart, nil
	case model.MethodCenterOfMass:
		return DetectCenterOfMass, nil
	case model.MethodHybrid:
		return DetectHybrid, nil
	default:
		return nil, &UnknownMethodError{Method: m}
	}
}

// Detect 按 cfg.Method 选择检测器并执行
// 仅在策略名称无效时返回错误。
func Detect(readings []model.SensorReading, cfg config.DetectionConfig) (model.DetectionResult, error) {
	m, err := cfg.MethodValue()
	if err != nil {
		return model.DetectionResult{Direction: model.DirectionUnknown}, err
	}
	fn, err := For(m)
	if err != nil {
		return model.DetectionResult{Direction: model.DirectionUnknown}, err
	}
	return fn(readings, cfg), nil
}

// UnknownMethodError 未注册的检测策略
type UnknownMethodError struct {
	Method model.Method
}

func (e *UnknownMethodError) Error() string {
	return "未注册的检测策略: " + e.Method.String()
}

// sides 聚合后的双侧信号
type sides struct {
	a, b       signal.SideSignal
	maxA, maxB int64
}

// prepare 聚合读数
// 任一侧为空时返回 ok=false，调用方应直接返回 unknown（两侧峰值均为 0）。
func prepare(readings []model.SensorReading) (sides, bool) {
	if len(readings) == 0 {
		return sides{}, false
	}
	a, b := signal.Aggregate(readings)
	if a.Empty() || b.Empty() {
		return sides{}, false
	}
	return sides{a: a, b: b, maxA: a.Max(), maxB: b.Max()}, true
}

// unknown 构造无方向结果，诊断字段按需填充
func unknown(s sides, timeA, timeB, gap *int64) model.DetectionResult {
	return model.DetectionResult{
		Direction:  model.DirectionUnknown,
		Confidence: 0,
		EventTimeA: timeA,
		EventTimeB: timeB,
		GapMs:      gap,
		SideAMax:   s.maxA,
		SideBMax:   s.maxB,
	}
}

// earlier 比较两侧特征时间，相等时返回 unknown
func earlier(a, b float64) model.Direction {
	switch {
	case a < b:
		return model.DirectionAToB
	case b < a:
		return model.DirectionBToA
	default:
		return model.DirectionUnknown
	}
}

// confidence 时间差分量与强度分量的均值
func confidence(gap, gapNorm, amplitude float64) float64 {
	gapConf := math.Min(1, gap/gapNorm)
	ampConf := math.Min(1, amplitude/amplitudeNorm)
	return (gapConf + ampConf) / 2
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
