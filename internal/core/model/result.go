package model

// Direction 穿越方向
type Direction string

const (
	// DirectionUnknown 未检测到穿越（或无法判断）
	DirectionUnknown Direction = "unknown"
	// DirectionAToB 从 A 侧进入、B 侧离开
	DirectionAToB Direction = "a_to_b"
	// DirectionBToA 从 B 侧进入、A 侧离开
	DirectionBToA Direction = "b_to_a"
)

// Directions 按报告顺序列出全部方向
var Directions = []Direction{DirectionAToB, DirectionBToA, DirectionUnknown}

// Index 返回方向在 Directions 中的下标（用于混淆矩阵）
func (d Direction) Index() int {
	switch d {
	case DirectionAToB:
		return 0
	case DirectionBToA:
		return 1
	default:
		return 2
	}
}

// Flip 返回交换 A/B 后的方向
func (d Direction) Flip() Direction {
	switch d {
	case DirectionAToB:
		return DirectionBToA
	case DirectionBToA:
		return DirectionAToB
	default:
		return DirectionUnknown
	}
}

// DetectionResult 检测器统一输出
// 不变式：Direction != unknown 时 EventTimeA/EventTimeB/GapMs 必非空，且 GapMs <= MaxPeakGapMs。
type DetectionResult struct {
	// Direction 检测方向
	Direction Direction `json:"direction"`
	// Confidence 置信度 [0,1]，启发式分数而非概率
	Confidence float64 `json:"confidence"`
	// EventTimeA A 侧特征时间（起升时间或质心时间，随检测器而定）
	EventTimeA *int64 `json:"event_time_a"`
	// EventTimeB B 侧特征时间
	EventTimeB *int64 `json:"event_time_b"`
	// GapMs 两侧特征时间之差的绝对值（毫秒）
	GapMs *int64 `json:"gap_ms"`
	// SideAMax A 侧聚合信号峰值（原始单位）
	SideAMax int64 `json:"side_a_max"`
	// SideBMax B 侧聚合信号峰值（原始单位）
	SideBMax int64 `json:"side_b_max"`
}

// IsKnown 是否给出了明确方向
func (r DetectionResult) IsKnown() bool {
	return r.Direction == DirectionAToB || r.Direction == DirectionBToA
}

// Int64Ptr 返回 v 的指针，便于填充可空字段
func Int64Ptr(v int64) *int64 {
	return &v
}
